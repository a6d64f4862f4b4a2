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

const (
	ms = simtime.Duration(1_000_000)
)

var _ = Describe("CoDel", func() {
	It("never drops while sojourn stays below target", func() {
		c := router.NewCoDel()
		now := simtime.Zero

		for i := 0; i < 50; i++ {
			now = now.Add(1 * ms)
			c.Enqueue(router.Entry{Bytes: 100, Arrival: now}, now)
			e, ok, dropped := c.Dequeue(now)
			Expect(ok).To(BeTrue())
			Expect(dropped).To(BeFalse())
			Expect(e.Bytes).To(Equal(100))
		}
		Expect(c.Drops()).To(Equal(uint64(0)))
	})

	It("enters drop mode once sojourn stays at or above target for a full interval", func() {
		c := router.NewCoDel()

		// Queue up many large packets arriving at t=0, all far bigger than
		// a single MTU combined, so queuedBytesLocked() stays >= MTU while
		// they drain.
		for i := 0; i < 40; i++ {
			c.Enqueue(router.Entry{Bytes: 2000, Arrival: simtime.Zero}, simtime.Zero)
		}

		var sawDrop bool
		now := simtime.Zero
		for i := 0; i < 40; i++ {
			now = now.Add(20 * ms) // sojourn = now, well above the 10ms target
			_, ok, dropped := c.Dequeue(now)
			if !ok {
				break
			}
			if dropped {
				sawDrop = true
				break
			}
		}

		Expect(sawDrop).To(BeTrue())
		Expect(c.Drops()).To(BeNumerically(">", 0))
	})

	It("leaves drop mode as soon as sojourn recovers below target", func() {
		c := router.NewCoDel()
		for i := 0; i < 40; i++ {
			c.Enqueue(router.Entry{Bytes: 2000, Arrival: simtime.Zero}, simtime.Zero)
		}

		now := simtime.Zero
		for i := 0; i < 40; i++ {
			now = now.Add(20 * ms)
			_, ok, _ := c.Dequeue(now)
			if !ok {
				break
			}
		}

		// Now enqueue a fresh, low-sojourn packet and confirm it is
		// delivered rather than dropped once sojourn recovers.
		c.Enqueue(router.Entry{Bytes: 10, Arrival: now}, now)
		e, ok, dropped := c.Dequeue(now)
		Expect(ok).To(BeTrue())
		Expect(dropped).To(BeFalse())
		Expect(e.Bytes).To(Equal(10))
	})
})
