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

package host_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shadowsim/shadow/internal/descriptor"
	"github.com/shadowsim/shadow/internal/host"
	"github.com/shadowsim/shadow/internal/iface"
	"github.com/shadowsim/shadow/internal/simtime"
)

var _ = Describe("RNG", func() {
	It("is deterministic for a given (seed, node id)", func() {
		a := host.NewRNG(42, 7)
		b := host.NewRNG(42, 7)
		for i := 0; i < 10; i++ {
			Expect(a.Int63()).To(Equal(b.Int63()))
		}
	})

	It("diverges across node ids under the same seed", func() {
		a := host.NewRNG(42, 1)
		b := host.NewRNG(42, 2)
		Expect(a.Int63()).NotTo(Equal(b.Int63()))
	})
})

var _ = Describe("CPUModel", func() {
	It("reports zero delay below the configured threshold", func() {
		c := host.NewCPUModel(1000, 1000, 0)
		Expect(c.ProcessingDelay(1)).To(Equal(simtime.Duration(0)))
	})

	It("scales delay with byte count at fixed frequency", func() {
		c := host.NewCPUModel(1000, 0, 0)
		small := c.ProcessingDelay(100)
		large := c.ProcessingDelay(1000)
		Expect(uint64(large)).To(BeNumerically(">", uint64(small)))
	})
})

var _ = Describe("Host", func() {
	It("boots, tracks process registration, and rejects duplicates", func() {
		h := host.New(1, "node1", 42, 0)
		h.Boot(simtime.Zero)
		Expect(h.Booted()).To(BeTrue())

		_, err := h.AddProcess("server", simtime.Zero)
		Expect(err).NotTo(HaveOccurred())

		_, err = h.AddProcess("server", simtime.Zero)
		Expect(err).To(HaveOccurred())

		Expect(h.Processes()).To(HaveLen(1))
	})

	It("rejects an event time that precedes the last observed event time", func() {
		h := host.New(1, "node1", 42, 0)
		h.Boot(simtime.Zero.Add(100))

		Expect(h.ObserveEventTime(simtime.Zero.Add(200))).To(Succeed())
		Expect(h.ObserveEventTime(simtime.Zero.Add(50))).To(HaveOccurred())
	})

	It("force-closes every open descriptor on shutdown", func() {
		h := host.New(1, "node1", 42, 0)
		h.Descriptors.Open(descriptor.KindPipe, 0, nil)
		h.Descriptors.Open(descriptor.KindPipe, 0, nil)
		Expect(h.Descriptors.Len()).To(Equal(2))

		Expect(h.Shutdown()).To(Succeed())
		Expect(h.Descriptors.Len()).To(Equal(0))
	})

	It("attaches interfaces with the requested qdisc mode", func() {
		h := host.New(1, "node1", 42, 0)
		i := h.AddInterface(0x0A000001, 1000, 1000, iface.QDiscRoundRobin)
		Expect(h.Interfaces).To(ConsistOf(i))

		i.QDisc.Enqueue(iface.Sendable{SocketID: 1})
		i.QDisc.Enqueue(iface.Sendable{SocketID: 1})
		i.QDisc.Enqueue(iface.Sendable{SocketID: 2})
		first, _ := i.QDisc.Dequeue()
		second, _ := i.QDisc.Dequeue()
		Expect([]uint64{first.SocketID, second.SocketID}).To(Equal([]uint64{1, 2}), "round-robin alternates sockets")
	})
})
