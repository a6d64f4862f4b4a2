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

package descriptor

import "sync"

// EpollEvent is the registered interest mask for one watched descriptor,
// combining the StatusBit values a caller cares about.
type EpollEvent uint32

const (
	EpollIn  EpollEvent = 1 << StatusReadable
	EpollOut EpollEvent = 1 << StatusWritable
)

// Epoll maintains the watch set of an epoll descriptor, per spec.md
// §4.4: "a set of watched descriptors and a ready set computed by union
// of each watched descriptor's status bits masked by its registered
// events." It holds the strong reference to each watched Descriptor;
// the watched Descriptor only keeps a weak (handle-only) back-reference
// to this epoll, breaking the cycle spec.md §9 calls out.
type Epoll struct {
	mu       sync.Mutex
	self     Handle
	watching map[Handle]*watched
}

type watched struct {
	desc *Descriptor
	mask EpollEvent
}

// NewEpoll builds an empty Epoll bound to its own descriptor handle
// (used so watched descriptors can address it back in their
// epollListeners set).
func NewEpoll(self Handle) *Epoll {
	return &Epoll{self: self, watching: make(map[Handle]*watched)}
}

// Add registers d with interest mask, the epoll_ctl(ADD) operation.
func (e *Epoll) Add(d *Descriptor, mask EpollEvent) {
	e.mu.Lock()
	e.watching[d.Handle()] = &watched{desc: d, mask: mask}
	e.mu.Unlock()
	d.WatchedBy(e.self)
}

// Modify changes the interest mask for an already-watched descriptor,
// the epoll_ctl(MOD) operation. A no-op if h is not currently watched.
func (e *Epoll) Modify(h Handle, mask EpollEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if w, ok := e.watching[h]; ok {
		w.mask = mask
	}
}

// Remove stops watching h, the epoll_ctl(DEL) operation (also invoked
// by Table.Close when the watched descriptor itself closes).
func (e *Epoll) Remove(h Handle) {
	e.mu.Lock()
	w, ok := e.watching[h]
	delete(e.watching, h)
	e.mu.Unlock()
	if ok {
		w.desc.Unwatch(e.self)
	}
}

// Wait returns the ready set snapshot immediately: the handles whose
// status, masked by their registered interest, is non-empty. Per
// spec.md §4.4, blocking is realized by the scheduler not advancing the
// guest process rather than by this call looping — a caller that gets
// an empty slice back is responsible for arming a timer event and
// retrying Wait when it fires.
func (e *Epoll) Wait() []Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	ready := make([]Handle, 0)
	for h, w := range e.watching {
		if uint32(w.mask)&w.desc.StatusMask() != 0 {
			ready = append(ready, h)
		}
	}
	return ready
}

// Empty reports whether the ready set is currently empty, used by the
// caller deciding whether to arm a wake-up timer for a timed Wait.
func (e *Epoll) Empty() bool {
	return len(e.Wait()) == 0
}
