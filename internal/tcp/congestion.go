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

package tcp

import "math"

// MSS is the maximum segment size, in bytes, this simulator's
// congestion windows are denominated in packets of.
const MSS = 1500

// MinCWnd is the floor every variant clamps cwnd to, per spec.md §4.3:
// "Minimum cwnd is 10."
const MinCWnd = 10

// InitialCWnd is the starting congestion window in packets, per
// spec.md §4.3: "Initial cwnd defaults to 10 packets."
const InitialCWnd = 10

// CongestionControl is the variant contract spec.md §4.3 defines:
// on_ack/on_loss/on_timeout/cwnd/ssthresh, in packets (not bytes).
type CongestionControl interface {
	OnAck(bytesAcked int, rttNanos int64)
	OnLoss()
	OnTimeout()
	CWnd() float64
	Ssthresh() float64
}

// clampMin returns the larger of v and MinCWnd.
func clampMin(v float64) float64 {
	if v < MinCWnd {
		return MinCWnd
	}
	return v
}

// Reno implements standard slow-start-then-AIMD congestion control, per
// spec.md §4.3: "Reno does standard slow-start until cwnd ≥ ssthresh,
// then AIMD; on fast-retransmit: ssthresh = max(min, cwnd/2),
// cwnd = ssthresh + 3; on RTO: ssthresh = max(min, cwnd/2), cwnd = 10."
type Reno struct {
	cwnd     float64
	ssthresh float64
}

// NewReno builds a Reno controller at its initial window.
func NewReno() *Reno {
	return &Reno{cwnd: InitialCWnd, ssthresh: math.MaxFloat64}
}

func (r *Reno) OnAck(bytesAcked int, _ int64) {
	packets := float64(bytesAcked) / MSS
	if r.cwnd < r.ssthresh {
		// Slow start: one packet of growth per acked packet.
		r.cwnd += packets
		return
	}
	// Congestion avoidance: classic AIMD, ~1/cwnd growth per ack.
	if r.cwnd > 0 {
		r.cwnd += packets / r.cwnd
	}
}

func (r *Reno) OnLoss() {
	r.ssthresh = clampMin(r.cwnd / 2)
	r.cwnd = r.ssthresh + 3
}

func (r *Reno) OnTimeout() {
	r.ssthresh = clampMin(r.cwnd / 2)
	r.cwnd = InitialCWnd
}

func (r *Reno) CWnd() float64     { return clampMin(r.cwnd) }
func (r *Reno) Ssthresh() float64 { return r.ssthresh }

// AIMD is the plain additive-increase/multiplicative-decrease variant
// spec.md §4.3 names alongside Reno and CUBIC — no slow-start phase,
// always additive growth, used as the simplest baseline for tests and
// for links where the more elaborate variants are unnecessary.
type AIMD struct {
	cwnd     float64
	ssthresh float64
}

// NewAIMD builds an AIMD controller at its initial window.
func NewAIMD() *AIMD {
	return &AIMD{cwnd: InitialCWnd, ssthresh: math.MaxFloat64}
}

func (a *AIMD) OnAck(bytesAcked int, _ int64) {
	packets := float64(bytesAcked) / MSS
	if a.cwnd > 0 {
		a.cwnd += packets / a.cwnd
	}
}

func (a *AIMD) OnLoss() {
	a.ssthresh = clampMin(a.cwnd / 2)
	a.cwnd = a.ssthresh
}

func (a *AIMD) OnTimeout() {
	a.ssthresh = clampMin(a.cwnd / 2)
	a.cwnd = InitialCWnd
}

func (a *AIMD) CWnd() float64     { return clampMin(a.cwnd) }
func (a *AIMD) Ssthresh() float64 { return a.ssthresh }

// Cubic implements the CUBIC windowing function (RFC 8312), per
// spec.md §4.3: "CUBIC follows its standard windowing function keyed on
// time since last loss." cwnd(t) = C*(t-K)^3 + wMax, where K is the
// time to reach wMax again and C is the scaling constant.
type Cubic struct {
	cwnd     float64
	ssthresh float64
	wMax     float64
	epochSec float64 // seconds since the last loss event started a new epoch
	started  bool
}

const cubicC = 0.4

// NewCubic builds a Cubic controller at its initial window.
func NewCubic() *Cubic {
	return &Cubic{cwnd: InitialCWnd, ssthresh: math.MaxFloat64, wMax: InitialCWnd}
}

func (c *Cubic) OnAck(bytesAcked int, rttNanos int64) {
	packets := float64(bytesAcked) / MSS
	if c.cwnd < c.ssthresh {
		c.cwnd += packets
		return
	}
	if !c.started {
		c.started = true
		c.epochSec = 0
	}
	rttSec := float64(rttNanos) / 1e9
	c.epochSec += rttSec

	k := math.Cbrt(c.wMax * (1 - 0.7) / cubicC)
	target := cubicC*math.Pow(c.epochSec-k, 3) + c.wMax
	if target > c.cwnd {
		c.cwnd = target
	} else {
		// TCP-friendly region: fall back to Reno-like additive growth
		// to never fall slower than standard AIMD would.
		c.cwnd += packets / c.cwnd
	}
}

func (c *Cubic) OnLoss() {
	c.wMax = c.cwnd
	c.ssthresh = clampMin(c.cwnd * (1 - 0.3))
	c.cwnd = c.ssthresh
	c.started = false
}

func (c *Cubic) OnTimeout() {
	c.wMax = c.cwnd
	c.ssthresh = clampMin(c.cwnd / 2)
	c.cwnd = InitialCWnd
	c.started = false
}

func (c *Cubic) CWnd() float64     { return clampMin(c.cwnd) }
func (c *Cubic) Ssthresh() float64 { return c.ssthresh }

// Variant identifies which CongestionControl implementation to build.
type Variant string

const (
	VariantAIMD  Variant = "aimd"
	VariantReno  Variant = "reno"
	VariantCubic Variant = "cubic"
)

// NewCongestionControl builds the named variant, defaulting to Reno for
// an unrecognized name.
func NewCongestionControl(v Variant) CongestionControl {
	switch v {
	case VariantAIMD:
		return NewAIMD()
	case VariantCubic:
		return NewCubic()
	default:
		return NewReno()
	}
}
