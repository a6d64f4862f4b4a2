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

// Package scheduler implements spec.md §4.1: the pluggable host→worker
// assignment policies, the conservative time-window barrier, and the
// worker loop that drains per-bucket event queues in time order.
package scheduler

import (
	"container/heap"
	"sync"

	"github.com/shadowsim/shadow/internal/event"
	"github.com/shadowsim/shadow/internal/shadowerr"
	"github.com/shadowsim/shadow/internal/simtime"
)

// eventHeap is the thread-unsafe container/heap backing for one bucket;
// callers hold Bucketed.mu around every access. Ordered by event.Less,
// spec.md §3's total order.
type eventHeap []*event.Event

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return event.Less(h[i], h[j]) }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(*event.Event)) }
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Policy is the strategy abstraction of spec.md §4.1: bind hosts to
// execution loci, route pushed events into the right bucket, and hand
// workers their next runnable event in time order.
type Policy interface {
	// Name identifies the variant, for logs and metrics labels.
	Name() string

	// AddHost binds a host id to an execution locus (a worker index).
	AddHost(hostID uint32, workerID int) error

	// Push enqueues ev into the bucket owned by ev.DstHost's assigned
	// worker. Per spec.md §4.1 this must succeed even while that worker
	// is concurrently popping — buckets are a thread-safe pqueue.
	Push(ev *event.Event) error

	// Pop returns the next event this worker is responsible for whose
	// time is strictly before barrier, or ok=false if none is ready.
	Pop(workerID int, barrier simtime.Time) (ev *event.Event, ok bool)

	// NextTime reports the smallest scheduled time in this worker's
	// bucket(s), used by the scheduler to derive the next round barrier.
	NextTime(workerID int) (simtime.Time, bool)
}

// Bucketed implements every named variant except global-single (whose
// single shared queue ignores host→worker assignment entirely) and
// host-single (sortedBucket, below) as one parameterized mechanism: a
// priority-queue bucket per worker, hosts routed to buckets by a stable
// assignment map.
//
//   - thread-single: allowSteal=false, maxHostsPerWorker=0.
//   - host-steal: allowSteal=true — an idle worker's Pop scans every
//     other bucket for the earliest ready event before giving up.
//   - thread-per-host: maxHostsPerWorker=1 — AddHost rejects a second
//     host bound to a worker already holding one.
//   - thread-per-thread: the same mechanism as thread-single, named for
//     configurations that size the worker pool to exactly one goroutine
//     per logical thread rather than to the host count.
type Bucketed struct {
	mu                sync.Mutex
	name              string
	buckets           map[int]*eventHeap
	hostWorker        map[uint32]int
	allowSteal        bool
	maxHostsPerWorker int
}

func newBucketed(name string, allowSteal bool, maxHostsPerWorker int) *Bucketed {
	return &Bucketed{
		name:              name,
		buckets:           make(map[int]*eventHeap),
		hostWorker:        make(map[uint32]int),
		allowSteal:        allowSteal,
		maxHostsPerWorker: maxHostsPerWorker,
	}
}

// NewThreadSingle builds the one-queue-per-worker, permanently-pinned
// variant.
func NewThreadSingle() *Bucketed { return newBucketed("thread-single", false, 0) }

// NewHostSteal builds the work-stealing variant.
func NewHostSteal() *Bucketed { return newBucketed("host-steal", true, 0) }

// NewThreadPerHost builds the variant capping one host per worker.
func NewThreadPerHost() *Bucketed { return newBucketed("thread-per-host", false, 1) }

// NewThreadPerThread builds the variant named for 1:1 thread sizing;
// mechanically identical to thread-single.
func NewThreadPerThread() *Bucketed { return newBucketed("thread-per-thread", false, 0) }

func (b *Bucketed) Name() string { return b.name }

func (b *Bucketed) AddHost(hostID uint32, workerID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxHostsPerWorker > 0 {
		count := 0
		for _, wid := range b.hostWorker {
			if wid == workerID {
				count++
			}
		}
		if count >= b.maxHostsPerWorker {
			return shadowerr.New(shadowerr.CodeConfigInvalidOption,
				"policy %s: worker %d already holds its maximum of %d host(s)", b.name, workerID, b.maxHostsPerWorker)
		}
	}

	b.hostWorker[hostID] = workerID
	if _, ok := b.buckets[workerID]; !ok {
		h := &eventHeap{}
		heap.Init(h)
		b.buckets[workerID] = h
	}
	return nil
}

func (b *Bucketed) Push(ev *event.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	wid, ok := b.hostWorker[ev.DstHost]
	if !ok {
		return shadowerr.New(shadowerr.CodeInvariantUnknownHost,
			"policy %s: destination host %d has no worker assignment", b.name, ev.DstHost)
	}
	heap.Push(b.buckets[wid], ev)
	return nil
}

func (b *Bucketed) Pop(workerID int, barrier simtime.Time) (*event.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if h, ok := b.buckets[workerID]; ok && h.Len() > 0 && (*h)[0].Time.Before(barrier) {
		return heap.Pop(h).(*event.Event), true
	}

	if !b.allowSteal {
		return nil, false
	}

	bestWID := -1
	for wid, h := range b.buckets {
		if wid == workerID || h.Len() == 0 {
			continue
		}
		if !(*h)[0].Time.Before(barrier) {
			continue
		}
		if bestWID == -1 || event.Less((*h)[0], (*b.buckets[bestWID])[0]) {
			bestWID = wid
		}
	}
	if bestWID == -1 {
		return nil, false
	}
	return heap.Pop(b.buckets[bestWID]).(*event.Event), true
}

func (b *Bucketed) NextTime(workerID int) (simtime.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.buckets[workerID]
	if !ok || h.Len() == 0 {
		return 0, false
	}
	return (*h)[0].Time, true
}

// sortedBucket implements the host-single variant with an insertion-sorted
// slice per worker instead of Bucketed's heap. A host's own events arrive
// in roughly SrcSeq order already (spec.md §3's per-source monotonic
// sequence), so event.SearchInsertionPoint's binary search plus a short
// slice shift beats a heap's log n rebalancing on every push for the
// common case where ev lands near the tail.
type sortedBucket struct {
	mu         sync.Mutex
	name       string
	buckets    map[int][]*event.Event
	hostWorker map[uint32]int
}

func newSortedBucket(name string) *sortedBucket {
	return &sortedBucket{
		name:       name,
		buckets:    make(map[int][]*event.Event),
		hostWorker: make(map[uint32]int),
	}
}

// NewHostSingle builds the one-queue-per-host-set variant, backed by the
// sorted-slice bucket rather than Bucketed's heap.
func NewHostSingle() *sortedBucket { return newSortedBucket("host-single") }

func (b *sortedBucket) Name() string { return b.name }

func (b *sortedBucket) AddHost(hostID uint32, workerID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hostWorker[hostID] = workerID
	if _, ok := b.buckets[workerID]; !ok {
		b.buckets[workerID] = nil
	}
	return nil
}

func (b *sortedBucket) Push(ev *event.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	wid, ok := b.hostWorker[ev.DstHost]
	if !ok {
		return shadowerr.New(shadowerr.CodeInvariantUnknownHost,
			"policy %s: destination host %d has no worker assignment", b.name, ev.DstHost)
	}

	q := b.buckets[wid]
	idx := event.SearchInsertionPoint(q, ev)
	q = append(q, nil)
	copy(q[idx+1:], q[idx:])
	q[idx] = ev
	b.buckets[wid] = q
	return nil
}

func (b *sortedBucket) Pop(workerID int, barrier simtime.Time) (*event.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.buckets[workerID]
	if len(q) == 0 || !q[0].Time.Before(barrier) {
		return nil, false
	}
	ev := q[0]
	b.buckets[workerID] = q[1:]
	return ev, true
}

func (b *sortedBucket) NextTime(workerID int) (simtime.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.buckets[workerID]
	if len(q) == 0 {
		return 0, false
	}
	return q[0].Time, true
}

// Global is the global-single variant: one process-wide queue that every
// worker contends on, per spec.md §4.1 — "only suitable as a baseline".
// Per-host ordering is guarded by Host.ObserveEventTime, which rejects an
// event earlier than the host's last one and accepts an equal time. Host
// assignment is recorded but not consulted: every push lands in the same
// queue, and any worker may pop from it.
type Global struct {
	mu    sync.Mutex
	heap  eventHeap
	hosts map[uint32]struct{}
}

// NewGlobalSingle builds the single shared-queue variant.
func NewGlobalSingle() *Global {
	g := &Global{hosts: make(map[uint32]struct{})}
	heap.Init(&g.heap)
	return g
}

func (g *Global) Name() string { return "global-single" }

func (g *Global) AddHost(hostID uint32, _ int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hosts[hostID] = struct{}{}
	return nil
}

func (g *Global) Push(ev *event.Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.hosts[ev.DstHost]; !ok {
		return shadowerr.New(shadowerr.CodeInvariantUnknownHost,
			"global-single: destination host %d was never added", ev.DstHost)
	}
	heap.Push(&g.heap, ev)
	return nil
}

func (g *Global) Pop(_ int, barrier simtime.Time) (*event.Event, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.heap.Len() == 0 || !g.heap[0].Time.Before(barrier) {
		return nil, false
	}
	return heap.Pop(&g.heap).(*event.Event), true
}

func (g *Global) NextTime(_ int) (simtime.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.heap.Len() == 0 {
		return 0, false
	}
	return g.heap[0].Time, true
}

// NewPolicy builds the named variant. Valid names: "global-single",
// "thread-single", "host-single", "host-steal", "thread-per-host",
// "thread-per-thread".
func NewPolicy(name string) (Policy, error) {
	switch name {
	case "global-single":
		return NewGlobalSingle(), nil
	case "thread-single":
		return NewThreadSingle(), nil
	case "host-single":
		return NewHostSingle(), nil
	case "host-steal":
		return NewHostSteal(), nil
	case "thread-per-host":
		return NewThreadPerHost(), nil
	case "thread-per-thread":
		return NewThreadPerThread(), nil
	default:
		return nil, shadowerr.New(shadowerr.CodeConfigUnknownPolicy, "unknown scheduler policy %q", name)
	}
}
