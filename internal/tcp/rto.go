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

import "time"

// RTO bounds from spec.md §3: "RTO (init 1s, min 200ms, max 20min)".
const (
	InitialRTO = time.Second
	MinRTO     = 200 * time.Millisecond
	MaxRTO     = 20 * time.Minute
)

// RTOEstimator implements the Jacobson/Karels SRTT/RTTVAR smoothing
// standard TCP stacks use, clamped to spec.md's bounds.
type RTOEstimator struct {
	srtt    time.Duration
	rttvar  time.Duration
	rto     time.Duration
	backoff uint // consecutive RTO expirations without a fresh sample
	primed  bool
}

// NewRTOEstimator builds an estimator at the initial RTO, no samples
// taken yet.
func NewRTOEstimator() *RTOEstimator {
	return &RTOEstimator{rto: InitialRTO}
}

// Sample feeds a fresh round-trip measurement (only ever taken from an
// unambiguous, non-retransmitted segment — Karn's algorithm — the
// caller's responsibility, not this type's).
func (e *RTOEstimator) Sample(rtt time.Duration) {
	if !e.primed {
		e.srtt = rtt
		e.rttvar = rtt / 2
		e.primed = true
	} else {
		diff := e.srtt - rtt
		if diff < 0 {
			diff = -diff
		}
		e.rttvar = e.rttvar - e.rttvar/4 + diff/4
		e.srtt = e.srtt - e.srtt/8 + rtt/8
	}
	e.backoff = 0
	e.rto = e.clamp(e.srtt + 4*e.rttvar)
}

func (e *RTOEstimator) clamp(d time.Duration) time.Duration {
	if d < MinRTO {
		return MinRTO
	}
	if d > MaxRTO {
		return MaxRTO
	}
	return d
}

// RTO returns the current retransmission timeout, applying exponential
// backoff for each consecutive expiration without an intervening fresh
// sample.
func (e *RTOEstimator) RTO() time.Duration {
	d := e.rto
	for i := uint(0); i < e.backoff; i++ {
		d *= 2
		if d >= MaxRTO {
			return MaxRTO
		}
	}
	return e.clamp(d)
}

// Backoff records a timer expiration, doubling the effective RTO until
// the next fresh sample resets it.
func (e *RTOEstimator) Backoff() {
	e.backoff++
}

// SRTT returns the smoothed round-trip time (zero until primed).
func (e *RTOEstimator) SRTT() time.Duration { return e.srtt }
