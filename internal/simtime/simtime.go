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

// Package simtime defines the virtualized clock shared by every host, event
// and task in the simulation. All simulation time is nanoseconds since the
// start of the run; it never touches the wall clock except to compute an
// emulated date for guest code that asks "what time is it".
package simtime

import "time"

// Time is an unsigned count of nanoseconds since simulation start.
type Time uint64

const (
	// Invalid is a reserved sentinel meaning "no time" / "never scheduled".
	Invalid Time = 0
	// Zero is the first instant of the simulation. It is distinct from
	// Invalid so that an event legitimately scheduled at t=0 is not
	// confused with an unset field.
	Zero Time = 1
	// Max is the largest representable simulation time.
	Max Time = Time(^uint64(0))
)

// Duration is a span of simulation time, in nanoseconds.
type Duration uint64

// Add returns t+d, saturating at Max rather than overflowing.
func (t Time) Add(d Duration) Time {
	if t == Invalid {
		return Invalid
	}
	sum := uint64(t) + uint64(d)
	if sum < uint64(t) {
		return Max
	}
	return Time(sum)
}

// Sub returns the duration between two times. It panics if t is before u;
// callers that cannot guarantee ordering should compare first.
func (t Time) Sub(u Time) Duration {
	if t < u {
		panic("simtime: Sub of time traveling backwards")
	}
	return Duration(uint64(t) - uint64(u))
}

// Before reports whether t happens before u.
func (t Time) Before(u Time) bool { return t < u }

// After reports whether t happens after u.
func (t Time) After(u Time) bool { return t > u }

// Valid reports whether t is a real scheduled instant.
func (t Time) Valid() bool { return t != Invalid }

// FromDuration converts a standard duration into simulation Duration.
func FromDuration(d time.Duration) Duration {
	if d < 0 {
		return 0
	}
	return Duration(d.Nanoseconds())
}

// AsStd converts a simulation Duration into a standard time.Duration.
func (d Duration) AsStd() time.Duration {
	return time.Duration(d)
}

// Clock translates simulation time into an emulated wall-clock date, so
// guest code calling gettimeofday/clock_gettime observes a plausible,
// deterministic recent date rather than the Unix epoch.
type Clock struct {
	epoch time.Time
}

// NewClock returns a Clock whose emulated "now" at simulation Zero is
// epoch. A zero-value epoch defaults to a fixed reference date so runs are
// reproducible across machines and time zones.
func NewClock(epoch time.Time) Clock {
	if epoch.IsZero() {
		epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return Clock{epoch: epoch}
}

// Emulated returns the wall-clock instant corresponding to simulation time t.
func (c Clock) Emulated(t Time) time.Time {
	if t == Invalid {
		t = Zero
	}
	return c.epoch.Add(time.Duration(uint64(t) - uint64(Zero)))
}
