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

package host

import (
	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/shadowsim/shadow/internal/simtime"
)

// CPUModel accounts for processing delay a host's CPU would have spent on
// a given amount of work, per spec.md §3: "a CPU model (frequency, delay
// threshold, precision)".
type CPUModel struct {
	FrequencyMHz   int
	DelayThreshold simtime.Duration
	Precision      simtime.Duration
}

// DefaultFrequencyMHz seeds a host's CPU model from the real machine's
// clock speed when the scenario does not pin one explicitly, via
// shirou/gopsutil/v3 — the same "ask the real host" convention the
// teacher uses to size default worker counts.
func DefaultFrequencyMHz() int {
	infos, err := cpu.Info()
	if err != nil || len(infos) == 0 || infos[0].Mhz <= 0 {
		return 2000
	}
	return int(infos[0].Mhz)
}

// NewCPUModel builds a CPUModel, falling back to the host machine's real
// frequency when mhz is zero.
func NewCPUModel(mhz int, threshold, precision simtime.Duration) *CPUModel {
	if mhz <= 0 {
		mhz = DefaultFrequencyMHz()
	}
	return &CPUModel{FrequencyMHz: mhz, DelayThreshold: threshold, Precision: precision}
}

// ProcessingDelay estimates the simulated time a CPU of this model would
// spend to process n bytes, at one cycle per byte, clamped to at least
// Precision and reported as zero when it falls below DelayThreshold —
// the simulator's way of saying "too cheap to model".
func (c *CPUModel) ProcessingDelay(n int) simtime.Duration {
	if c.FrequencyMHz <= 0 || n <= 0 {
		return 0
	}
	cycles := uint64(n)
	ns := cycles * 1000 / uint64(c.FrequencyMHz)
	d := simtime.Duration(ns)
	if d < c.DelayThreshold {
		return 0
	}
	if d < c.Precision {
		return c.Precision
	}
	return d
}
