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

// Package iface implements the per-host network interface of spec.md
// §4.2: a rate-limited egress/ingress pair with a pluggable queueing
// discipline. Its token buckets accrue credit continuously with
// simulated time (see NewInterface); no task refills them every
// batch_time.
package iface

import "sync"

// QDiscMode selects between the two egress scheduling disciplines
// spec.md §4.2 names.
type QDiscMode uint8

const (
	QDiscFIFO QDiscMode = iota
	QDiscRoundRobin
)

// Sendable is anything a QDisc can hold and hand to the interface —
// the packet/socket-id pair the qdisc selects by policy, kept generic
// so this package has no dependency on internal/packet.
type Sendable struct {
	SocketID uint64
	Bytes    int
	Send     func() // invoked when the qdisc selects this entry
}

// QDisc is the egress queueing discipline: FIFO (one queue, strict
// order) or round-robin across the sockets with data ready to send,
// per spec.md §4.2: "The qdisc selects one packet per refill per ready
// socket until tokens are exhausted."
type QDisc struct {
	mu   sync.Mutex
	mode QDiscMode

	fifo []Sendable

	// rrQueues holds one pending-packet queue per socket, plus an
	// ordered list of socket ids to round-robin across.
	rrQueues map[uint64][]Sendable
	rrOrder  []uint64
	rrCursor int
}

// NewQDisc builds an empty QDisc in the given mode.
func NewQDisc(mode QDiscMode) *QDisc {
	return &QDisc{mode: mode, rrQueues: make(map[uint64][]Sendable)}
}

// Enqueue adds s to the discipline's pending set.
func (q *QDisc) Enqueue(s Sendable) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.mode == QDiscFIFO {
		q.fifo = append(q.fifo, s)
		return
	}
	if _, ok := q.rrQueues[s.SocketID]; !ok {
		q.rrOrder = append(q.rrOrder, s.SocketID)
	}
	q.rrQueues[s.SocketID] = append(q.rrQueues[s.SocketID], s)
}

// Empty reports whether anything is queued.
func (q *QDisc) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.mode == QDiscFIFO {
		return len(q.fifo) == 0
	}
	for _, sid := range q.rrOrder {
		if len(q.rrQueues[sid]) > 0 {
			return false
		}
	}
	return true
}

// Dequeue selects the next Sendable to transmit, per the discipline's
// policy: FIFO pops the head; round-robin advances through the socket
// order list and pops one packet from the next non-empty socket queue.
func (q *QDisc) Dequeue() (Sendable, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.mode == QDiscFIFO {
		if len(q.fifo) == 0 {
			return Sendable{}, false
		}
		s := q.fifo[0]
		q.fifo = q.fifo[1:]
		return s, true
	}

	n := len(q.rrOrder)
	for i := 0; i < n; i++ {
		idx := (q.rrCursor + i) % n
		sid := q.rrOrder[idx]
		entries := q.rrQueues[sid]
		if len(entries) == 0 {
			continue
		}
		s := entries[0]
		q.rrQueues[sid] = entries[1:]
		q.rrCursor = (idx + 1) % n
		return s, true
	}
	return Sendable{}, false
}
