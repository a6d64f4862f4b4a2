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

package scheduler

import (
	"sync"

	"github.com/shadowsim/shadow/internal/simtime"
)

// CountDownLatch is the round-synchronization primitive spec.md §4.1
// names explicitly: "at round end all workers synchronize via a
// count-down latch." A plain sync.WaitGroup already is exactly this
// primitive, so it is used directly rather than reimplemented; this type
// only gives the round-barrier code a name that matches the spec's
// vocabulary instead of a bare WaitGroup scattered through Scheduler.
type CountDownLatch struct {
	wg sync.WaitGroup
}

// NewCountDownLatch builds a latch that releases its Wait callers once
// count workers have each called Done once.
func NewCountDownLatch(count int) *CountDownLatch {
	l := &CountDownLatch{}
	l.wg.Add(count)
	return l
}

// Done counts one worker down.
func (l *CountDownLatch) Done() { l.wg.Done() }

// Wait blocks until the latch has counted down to zero.
func (l *CountDownLatch) Wait() { l.wg.Wait() }

// Window is one round's conservative barrier: the interval [Start, End)
// during which every worker may pop and execute events, derived from the
// minimum nonzero link latency currently in use (spec.md §4.1).
type Window struct {
	Start        simtime.Time
	End          simtime.Time
	MinLinkDelay simtime.Duration
}
