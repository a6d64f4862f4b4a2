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

// Package router implements a host's ingress queue manager, pluggable
// per spec.md §4.2 between single, static and CoDel (RFC 8289).
package router

import "github.com/shadowsim/shadow/internal/simtime"

// Entry is one queued packet, opaque to the manager beyond its size and
// arrival time — CoDel's sojourn computation needs only these two.
type Entry struct {
	Payload interface{}
	Bytes   int
	Arrival simtime.Time
}

// MTU bounds the "total queue bytes < MTU" check CoDel's drop-mode exit
// condition references, per spec.md §4.2.
const MTU = 1500

// Manager is the ingress queue manager contract: Enqueue admits or
// drops an arrival, Dequeue pops the next entry to deliver (possibly
// dropping it instead, for CoDel), per spec.md §4.2.
type Manager interface {
	Enqueue(e Entry, now simtime.Time) (admitted bool)
	Dequeue(now simtime.Time) (e Entry, ok bool, dropped bool)
	Len() int
	QueuedBytes() int
}

// Single holds at most one packet; any new arrival while full is
// dropped, per spec.md §4.2.
type Single struct {
	held  *Entry
	drops uint64
}

// NewSingle builds an empty single-slot manager.
func NewSingle() *Single { return &Single{} }

func (s *Single) Enqueue(e Entry, _ simtime.Time) bool {
	if s.held != nil {
		s.drops++
		return false
	}
	s.held = &e
	return true
}

func (s *Single) Dequeue(_ simtime.Time) (Entry, bool, bool) {
	if s.held == nil {
		return Entry{}, false, false
	}
	e := *s.held
	s.held = nil
	return e, true, false
}

func (s *Single) Len() int {
	if s.held == nil {
		return 0
	}
	return 1
}

func (s *Single) QueuedBytes() int {
	if s.held == nil {
		return 0
	}
	return s.held.Bytes
}

// Drops returns the number of arrivals dropped for finding the slot
// occupied.
func (s *Single) Drops() uint64 { return s.drops }

// Static is a bounded FIFO with drop-tail overflow behavior, per
// spec.md §4.2.
type Static struct {
	capacity int
	queue    []Entry
	drops    uint64
}

// NewStatic builds an empty bounded FIFO of the given byte capacity.
func NewStatic(capacityBytes int) *Static {
	return &Static{capacity: capacityBytes}
}

func (s *Static) queuedBytes() int {
	n := 0
	for _, e := range s.queue {
		n += e.Bytes
	}
	return n
}

func (s *Static) Enqueue(e Entry, _ simtime.Time) bool {
	if s.queuedBytes()+e.Bytes > s.capacity {
		s.drops++
		return false
	}
	s.queue = append(s.queue, e)
	return true
}

func (s *Static) Dequeue(_ simtime.Time) (Entry, bool, bool) {
	if len(s.queue) == 0 {
		return Entry{}, false, false
	}
	e := s.queue[0]
	s.queue = s.queue[1:]
	return e, true, false
}

func (s *Static) Len() int         { return len(s.queue) }
func (s *Static) QueuedBytes() int { return s.queuedBytes() }
func (s *Static) Drops() uint64    { return s.drops }
