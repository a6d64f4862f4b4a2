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

package router

import (
	"math"

	"github.com/shadowsim/shadow/internal/simtime"
)

// CoDel implements RFC 8289 Controlled Delay active queue management,
// per spec.md §4.2: target 10ms, interval 100ms. "Each enqueue records
// an arrival timestamp. On dequeue, sojourn = now − arrival. If sojourn
// < target or total queue bytes < MTU, leave drop mode. Otherwise start
// a drop window; after a full interval of sojourn ≥ target, enter drop
// mode: drop the head packet, then schedule next drop via control law
// t_next = t_last + interval / sqrt(count)."
type CoDel struct {
	target   simtime.Duration
	interval simtime.Duration

	queue []Entry

	dropping   bool
	firstAbove simtime.Time // when sojourn first rose to >= target in this window
	dropNext   simtime.Time
	count      uint64

	drops uint64
}

// NewCoDel builds a CoDel manager with the RFC-specified target and
// interval.
func NewCoDel() *CoDel {
	return &CoDel{
		target:   simtime.Duration(10 * 1_000_000),  // 10ms in nanoseconds
		interval: simtime.Duration(100 * 1_000_000), // 100ms in nanoseconds
	}
}

func (c *CoDel) Enqueue(e Entry, _ simtime.Time) bool {
	c.queue = append(c.queue, e)
	return true
}

func (c *CoDel) queuedBytesLocked() int {
	n := 0
	for _, e := range c.queue {
		n += e.Bytes
	}
	return n
}

// Dequeue pops the head entry, applying the CoDel control law. ok
// reports whether an entry was available at all; dropped reports
// whether the returned entry was dropped (per CoDel) rather than ready
// to deliver — the caller must not forward a dropped entry.
func (c *CoDel) Dequeue(now simtime.Time) (entry Entry, ok bool, dropped bool) {
	if len(c.queue) == 0 {
		c.dropping = false
		return Entry{}, false, false
	}

	e := c.queue[0]
	c.queue = c.queue[1:]

	sojourn := simtime.Duration(uint64(now) - uint64(e.Arrival))
	belowTarget := sojourn < c.target || c.queuedBytesLocked() < MTU

	if c.dropping {
		// Leave drop mode the instant sojourn recovers, per spec.md
		// §4.2: "If sojourn < target or total queue bytes < MTU, leave
		// drop mode."
		if belowTarget {
			c.dropping = false
			return e, true, false
		}
		if !now.Before(c.dropNext) {
			c.count++
			c.dropNext = c.nextDropTime(now)
			c.drops++
			return e, true, true
		}
		return e, true, false
	}

	if !belowTarget {
		if !c.firstAbove.Valid() {
			c.firstAbove = now
		} else if simtime.Duration(uint64(now)-uint64(c.firstAbove)) >= c.interval {
			c.dropping = true
			c.count = 1
			c.dropNext = c.nextDropTime(now)
			c.drops++
			return e, true, true
		}
	} else {
		c.firstAbove = simtime.Invalid
	}

	return e, true, false
}

func (c *CoDel) nextDropTime(now simtime.Time) simtime.Time {
	interval := float64(c.interval) / math.Sqrt(float64(c.count))
	return now.Add(simtime.Duration(interval))
}

func (c *CoDel) Len() int         { return len(c.queue) }
func (c *CoDel) QueuedBytes() int { return c.queuedBytesLocked() }
func (c *CoDel) Drops() uint64    { return c.drops }
