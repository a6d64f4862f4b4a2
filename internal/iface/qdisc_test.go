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

package iface_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shadowsim/shadow/internal/iface"
)

var _ = Describe("QDisc FIFO", func() {
	It("dequeues in arrival order", func() {
		q := iface.NewQDisc(iface.QDiscFIFO)
		q.Enqueue(iface.Sendable{SocketID: 1, Bytes: 10})
		q.Enqueue(iface.Sendable{SocketID: 2, Bytes: 20})

		s1, ok := q.Dequeue()
		Expect(ok).To(BeTrue())
		Expect(s1.SocketID).To(Equal(uint64(1)))

		s2, ok := q.Dequeue()
		Expect(ok).To(BeTrue())
		Expect(s2.SocketID).To(Equal(uint64(2)))

		Expect(q.Empty()).To(BeTrue())
	})
})

var _ = Describe("QDisc round-robin", func() {
	It("alternates fairly between ready sockets", func() {
		q := iface.NewQDisc(iface.QDiscRoundRobin)
		for i := 0; i < 3; i++ {
			q.Enqueue(iface.Sendable{SocketID: 1, Bytes: 1})
			q.Enqueue(iface.Sendable{SocketID: 2, Bytes: 1})
		}

		var order []uint64
		for i := 0; i < 6; i++ {
			s, ok := q.Dequeue()
			Expect(ok).To(BeTrue())
			order = append(order, s.SocketID)
		}

		Expect(order).To(Equal([]uint64{1, 2, 1, 2, 1, 2}))
	})
})
