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

package tcp_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shadowsim/shadow/internal/descriptor"
	"github.com/shadowsim/shadow/internal/socket"
	"github.com/shadowsim/shadow/internal/tcp"
)

func newTestConnection(iss uint32) *tcp.Connection {
	tbl := descriptor.NewTable()
	d := tbl.Open(descriptor.KindTCP, 0, nil)
	sock := socket.NewTCP(d, 0)
	return tcp.NewConnection(sock, tcp.VariantReno, iss, 65535)
}

var _ = Describe("Handshake", func() {
	It("completes the three-way handshake on both sides", func() {
		client := newTestConnection(1000)
		server := newTestConnection(5000)
		server.Listen()

		clientISN := client.OpenActive()
		Expect(client.State()).To(Equal(tcp.StateSynSent))

		ack, err := server.HandleSyn(clientISN)
		Expect(err).ToNot(HaveOccurred())
		Expect(server.State()).To(Equal(tcp.StateSynRcvd))
		Expect(ack).To(Equal(clientISN + 1))

		Expect(client.HandleSynAck(5000, clientISN+1)).To(Succeed())
		Expect(client.State()).To(Equal(tcp.StateEstablished))

		Expect(server.HandleAck(5000 + 1)).To(Succeed())
		Expect(server.State()).To(Equal(tcp.StateEstablished))
	})

	It("rejects a SYN outside LISTEN", func() {
		c := newTestConnection(1)
		_, err := c.HandleSyn(99)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Unacked-bytes invariant", func() {
	It("keeps sndUna <= sndNxt through sends and partial acks", func() {
		c := newTestConnection(0)
		c.Listen()
		_, _ = c.HandleSyn(0)
		Expect(c.HandleAck(1)).To(Succeed())

		seq, err := c.Send([]byte("hello world"))
		Expect(err).ToNot(HaveOccurred())
		Expect(seq).To(Equal(uint32(1)))
		Expect(c.UnackedBytes()).To(Equal(uint32(11)))

		c.ProcessAck(1+5, nil, time.Now())
		Expect(c.UnackedBytes()).To(Equal(uint32(6)))

		c.ProcessAck(1+11, nil, time.Now())
		Expect(c.UnackedBytes()).To(Equal(uint32(0)))
	})
})

var _ = Describe("Fast retransmit", func() {
	It("marks the oldest unacked segment lost after three duplicate acks", func() {
		c := newTestConnection(0)
		c.Listen()
		_, _ = c.HandleSyn(0)
		Expect(c.HandleAck(1)).To(Succeed())

		seq, _ := c.Send([]byte("abc"))
		_, _ = c.Send([]byte("def"))
		c.MarkSent(seq, time.Now(), false)

		now := time.Now()
		c.ProcessAck(1, nil, now) // first ack at this value: establishes the baseline, not yet a duplicate
		c.ProcessAck(1, nil, now)
		c.ProcessAck(1, nil, now)
		c.ProcessAck(1, nil, now)

		Expect(c.NeedsRetransmit(seq)).To(BeTrue())
	})
})

var _ = Describe("Congestion control variants", func() {
	It("never lets cwnd fall below MinCWnd after repeated loss", func() {
		for _, v := range []tcp.Variant{tcp.VariantAIMD, tcp.VariantReno, tcp.VariantCubic} {
			cc := tcp.NewCongestionControl(v)
			for i := 0; i < 20; i++ {
				cc.OnLoss()
			}
			Expect(cc.CWnd()).To(BeNumerically(">=", float64(tcp.MinCWnd)))
		}
	})

	It("grows cwnd on repeated acks for every variant", func() {
		for _, v := range []tcp.Variant{tcp.VariantAIMD, tcp.VariantReno, tcp.VariantCubic} {
			cc := tcp.NewCongestionControl(v)
			start := cc.CWnd()
			for i := 0; i < 50; i++ {
				cc.OnAck(tcp.MSS, int64(50*time.Millisecond))
			}
			Expect(cc.CWnd()).To(BeNumerically(">", start))
		}
	})
})

var _ = Describe("RTO estimator", func() {
	It("clamps to the configured min and max bounds", func() {
		e := tcp.NewRTOEstimator()
		e.Sample(1 * time.Millisecond)
		Expect(e.RTO()).To(BeNumerically(">=", tcp.MinRTO))

		e.Sample(time.Hour)
		Expect(e.RTO()).To(BeNumerically("<=", tcp.MaxRTO))
	})

	It("doubles on each backoff until a fresh sample resets it", func() {
		e := tcp.NewRTOEstimator()
		e.Sample(500 * time.Millisecond)
		base := e.RTO()
		e.Backoff()
		Expect(e.RTO()).To(BeNumerically(">", base))
		Expect(e.RTO()).To(Equal(2 * base))

		e.Sample(500 * time.Millisecond)
		Expect(e.RTO()).To(Equal(1250*time.Millisecond), "fresh sample clears the backoff: srtt 500ms + 4*rttvar 187.5ms")
	})
})
