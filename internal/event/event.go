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

package event

import (
	"golang.org/x/exp/slices"

	"github.com/shadowsim/shadow/internal/simtime"
)

// Event is the tuple spec.md §3 defines: scheduled time, source/destination
// host ids, a per-source monotonic sequence number, and the Task to run.
// Total order is by time; ties broken by destination host, then source
// host, then source sequence — independent of which worker thread produced
// the event, which is what lets work-stealing preserve determinism
// (spec.md §4.1 "Determinism").
type Event struct {
	Time     simtime.Time
	SrcHost  uint32
	DstHost  uint32
	SrcSeq   uint64
	Task     *Task
}

// New builds an Event. The caller owns srcSeq allocation (monotonic per
// source host); the scheduler does not allocate it so that pure packet
// delivery and locally-scheduled callbacks (which have no "source" in the
// network sense) can share the same sequence space per host.
func New(t simtime.Time, srcHost, dstHost uint32, srcSeq uint64, task *Task) *Event {
	return &Event{Time: t, SrcHost: srcHost, DstHost: dstHost, SrcSeq: srcSeq, Task: task}
}

// Less implements the total order from spec.md §3: by time; ties by dst
// id, then src id, then source sequence id.
func Less(a, b *Event) bool {
	if a.Time != b.Time {
		return a.Time < b.Time
	}
	if a.DstHost != b.DstHost {
		return a.DstHost < b.DstHost
	}
	if a.SrcHost != b.SrcHost {
		return a.SrcHost < b.SrcHost
	}
	return a.SrcSeq < b.SrcSeq
}

// Equal reports pointer equality, per spec.md §3: "Pointer equality
// collapses to equality."
func Equal(a, b *Event) bool { return a == b }

// Destroy releases the event's Task. An Event is destroyed after
// execution, per spec.md §3.
func (e *Event) Destroy() {
	if e.Task != nil {
		e.Task.Release()
	}
}

// SearchInsertionPoint returns the index at which ev should be inserted
// into an already-sorted slice to keep it sorted, used by the host-single
// policy's per-host bucket to avoid a full heap when arrivals are mostly
// already time-ordered.
func SearchInsertionPoint(evs []*Event, ev *Event) int {
	idx, _ := slices.BinarySearchFunc(evs, ev, func(a, b *Event) int {
		switch {
		case Less(a, b):
			return -1
		case Less(b, a):
			return 1
		default:
			return 0
		}
	})
	return idx
}
