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

package topology_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shadowsim/shadow/internal/simtime"
	"github.com/shadowsim/shadow/internal/topology"
)

var _ = Describe("Static oracle", func() {
	It("answers latency and reliability for a symmetric edge in both directions", func() {
		s := topology.NewStatic()
		s.AddEdge(1, 2, simtime.Duration(50*1_000_000), 0.99, true)

		l1, err := s.Latency(1, 2)
		Expect(err).NotTo(HaveOccurred())
		l2, err := s.Latency(2, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(l1).To(Equal(l2))

		r, err := s.Reliability(1, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(r).To(Equal(0.99))
	})

	It("reports an error for a missing edge", func() {
		s := topology.NewStatic()
		_, err := s.Latency(1, 2)
		Expect(err).To(HaveOccurred())
	})

	It("tracks the minimum nonzero latency across all edges added", func() {
		s := topology.NewStatic()
		s.AddEdge(1, 2, simtime.Duration(50*1_000_000), 1.0, true)
		s.AddEdge(1, 3, simtime.Duration(10*1_000_000), 1.0, true)
		s.AddEdge(1, 4, simtime.Duration(100*1_000_000), 1.0, true)

		Expect(s.MinLinkLatency()).To(Equal(simtime.Duration(10 * 1_000_000)))
	})

	It("answers per-host bandwidth", func() {
		s := topology.NewStatic()
		s.SetBandwidth(1, 512, 1024)

		up, down, err := s.Bandwidth(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(up).To(Equal(512))
		Expect(down).To(Equal(1024))
	})
})
