/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package router_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shadowsim/shadow/internal/router"
	"github.com/shadowsim/shadow/internal/simtime"
)

var _ = Describe("Single", func() {
	It("holds at most one packet, dropping arrivals while full", func() {
		s := router.NewSingle()

		Expect(s.Enqueue(router.Entry{Bytes: 100}, simtime.Zero)).To(BeTrue())
		Expect(s.Enqueue(router.Entry{Bytes: 50}, simtime.Zero)).To(BeFalse())
		Expect(s.Drops()).To(Equal(uint64(1)))
		Expect(s.Len()).To(Equal(1))
		Expect(s.QueuedBytes()).To(Equal(100))

		e, ok, dropped := s.Dequeue(simtime.Zero)
		Expect(ok).To(BeTrue())
		Expect(dropped).To(BeFalse())
		Expect(e.Bytes).To(Equal(100))
		Expect(s.Len()).To(Equal(0))

		_, ok, _ = s.Dequeue(simtime.Zero)
		Expect(ok).To(BeFalse())
	})

	It("accepts a new arrival once the held packet is drained", func() {
		s := router.NewSingle()
		Expect(s.Enqueue(router.Entry{Bytes: 10}, simtime.Zero)).To(BeTrue())
		_, _, _ = s.Dequeue(simtime.Zero)
		Expect(s.Enqueue(router.Entry{Bytes: 20}, simtime.Zero)).To(BeTrue())
	})
})

var _ = Describe("Static", func() {
	It("admits arrivals up to its byte capacity and drop-tails beyond it", func() {
		s := router.NewStatic(100)

		Expect(s.Enqueue(router.Entry{Bytes: 60}, simtime.Zero)).To(BeTrue())
		Expect(s.Enqueue(router.Entry{Bytes: 60}, simtime.Zero)).To(BeFalse())
		Expect(s.Drops()).To(Equal(uint64(1)))
		Expect(s.QueuedBytes()).To(Equal(60))

		Expect(s.Enqueue(router.Entry{Bytes: 40}, simtime.Zero)).To(BeTrue())
		Expect(s.QueuedBytes()).To(Equal(100))
	})

	It("delivers in FIFO order without ever marking a dequeue dropped", func() {
		s := router.NewStatic(1000)
		s.Enqueue(router.Entry{Bytes: 10, Payload: "a"}, simtime.Zero)
		s.Enqueue(router.Entry{Bytes: 10, Payload: "b"}, simtime.Zero)

		e1, ok, dropped := s.Dequeue(simtime.Zero)
		Expect(ok).To(BeTrue())
		Expect(dropped).To(BeFalse())
		Expect(e1.Payload).To(Equal("a"))

		e2, ok, dropped := s.Dequeue(simtime.Zero)
		Expect(ok).To(BeTrue())
		Expect(dropped).To(BeFalse())
		Expect(e2.Payload).To(Equal("b"))
	})
})
