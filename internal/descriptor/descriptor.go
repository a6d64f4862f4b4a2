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

// Package descriptor implements the per-host integer-indexed table of
// file-like objects from spec.md §3/§4.4: a tagged variant over
// {TCP, UDP, pipe, epoll, timer, channel}, addressed by a small integer
// handle the way POSIX addresses file descriptors.
package descriptor

import (
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// Kind tags which object a Descriptor's handle addresses.
type Kind uint8

const (
	KindTCP Kind = iota
	KindUDP
	KindPipe
	KindEpoll
	KindTimer
	KindChannel
)

func (k Kind) String() string {
	switch k {
	case KindTCP:
		return "tcp"
	case KindUDP:
		return "udp"
	case KindPipe:
		return "pipe"
	case KindEpoll:
		return "epoll"
	case KindTimer:
		return "timer"
	case KindChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// StatusBit is one bit of a descriptor's status word, per spec.md §3:
// "status bits {ACTIVE, READABLE, WRITABLE, CLOSED}".
type StatusBit uint

const (
	StatusActive StatusBit = iota
	StatusReadable
	StatusWritable
	StatusClosed

	statusBitCount
)

// Handle is the integer a guest process uses to address a Descriptor,
// analogous to a POSIX file descriptor number.
type Handle int32

// Descriptor is the common envelope every kind of open object carries:
// its handle, kind, status bits, the set of epoll ids watching it, open
// flags and a reference count. A Descriptor is owned by exactly one host
// (spec.md §3); the owning Table enforces that.
type Descriptor struct {
	mu sync.Mutex

	handle Handle
	kind   Kind
	status *bitset.BitSet

	// epollListeners is a weak back-reference set (spec.md §9 "Cyclic
	// references"): epoll holds the strong reference (via the Table),
	// this descriptor only remembers which epoll ids to notify, and
	// removes itself from each on Close so the cycle never leaks.
	epollListeners map[Handle]struct{}

	openFlags int
	refs      int32

	closeFn func()

	// ext holds the kind-specific object this envelope wraps (*Epoll,
	// a TCP/UDP socket, a pipe endpoint...). The descriptor table deals
	// only in the common envelope; callers that need the specialization
	// type-assert Ext() themselves.
	ext interface{}
}

// New builds a Descriptor of the given kind with handle h. closeFn, if
// non-nil, runs exactly once when the reference count reaches zero —
// the hook a TCP/UDP socket or pipe uses to release its own buffers.
func New(h Handle, kind Kind, openFlags int, closeFn func()) *Descriptor {
	d := &Descriptor{
		handle:         h,
		kind:           kind,
		status:         bitset.New(statusBitCount),
		epollListeners: make(map[Handle]struct{}),
		openFlags:      openFlags,
		refs:           1,
		closeFn:        closeFn,
	}
	d.status.Set(uint(StatusActive))
	return d
}

func (d *Descriptor) Handle() Handle { return d.handle }
func (d *Descriptor) Kind() Kind     { return d.kind }

// SetExt attaches the kind-specific object this descriptor wraps.
func (d *Descriptor) SetExt(ext interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ext = ext
}

// Ext returns the kind-specific object previously attached via SetExt.
func (d *Descriptor) Ext() interface{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ext
}

// AdjustStatus sets or clears the bits in mask. Setting a bit that is
// already set (or clearing one already clear) is a documented no-op
// (spec.md §8's "adjustStatus idempotence" invariant) — callers may call
// it unconditionally without tracking prior state themselves.
func (d *Descriptor) AdjustStatus(mask StatusBit, set bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if set {
		d.status.Set(uint(mask))
	} else {
		d.status.Clear(uint(mask))
	}
}

// HasStatus reports whether a status bit is currently set.
func (d *Descriptor) HasStatus(bit StatusBit) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status.Test(uint(bit))
}

// StatusMask returns the current status word as a bitmask, for epoll's
// ready-set computation.
func (d *Descriptor) StatusMask() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var mask uint32
	for i := uint(0); i < statusBitCount; i++ {
		if d.status.Test(i) {
			mask |= 1 << i
		}
	}
	return mask
}

// WatchedBy records that an epoll descriptor is watching this one, so
// Close can unregister itself before the reference disappears.
func (d *Descriptor) WatchedBy(epollHandle Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.epollListeners[epollHandle] = struct{}{}
}

// Unwatch removes an epoll id from the listener set (epoll_ctl DEL, or
// the epoll itself closing).
func (d *Descriptor) Unwatch(epollHandle Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.epollListeners, epollHandle)
}

// Listeners returns a snapshot of the epoll ids currently watching this
// descriptor.
func (d *Descriptor) Listeners() []Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Handle, 0, len(d.epollListeners))
	for h := range d.epollListeners {
		out = append(out, h)
	}
	return out
}

// Ref increments the reference count (e.g. an interface's pending-send
// list taking a hold alongside the descriptor table's own reference).
func (d *Descriptor) Ref() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refs++
}

// Release decrements the reference count; once it reaches zero the
// backing object is freed via closeFn, per spec.md §4.4: "the backing
// object is freed when refcount hits zero and all kernel-side
// references ... have released it."
func (d *Descriptor) Release() {
	d.mu.Lock()
	d.refs--
	done := d.refs <= 0
	fn := d.closeFn
	d.mu.Unlock()
	if done && fn != nil {
		fn()
	}
}

// MarkClosed sets the CLOSED bit and clears ACTIVE, the first step of
// tearing a descriptor down; the handle stays valid (and listed in its
// Table) until Release drops the last reference.
func (d *Descriptor) MarkClosed() {
	d.AdjustStatus(StatusClosed, true)
	d.AdjustStatus(StatusActive, false)
}
