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

import (
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/shadowsim/shadow/internal/shadowerr"
)

// MinDescriptor is the first handle value a Table ever hands out, per
// spec.md §3: "integer handle ≥ MIN_DESCRIPTOR". Values below it are
// reserved the way 0/1/2 are reserved for stdio on a real kernel.
const MinDescriptor Handle = 3

// Table is a host's descriptor table: a mapping from handle to
// Descriptor, handing out the smallest free handle above MinDescriptor
// on every Open, per spec.md §4.4.
type Table struct {
	mu sync.Mutex

	used    *bitset.BitSet // bit i set means handle MinDescriptor+i is taken
	entries map[Handle]*Descriptor
}

// NewTable builds an empty descriptor table for one host, sized off the
// real machine's open-file soft limit via defaultTableCapacity — the
// same "ask the real host" convention internal/host's CPUModel follows
// with shirou/gopsutil/v3, applied here to golang.org/x/sys/unix's
// getrlimit(RLIMIT_NOFILE) on platforms that have one.
func NewTable() *Table {
	return &Table{
		used:    bitset.New(defaultTableCapacity()),
		entries: make(map[Handle]*Descriptor),
	}
}

// Open allocates the smallest free handle ≥ MinDescriptor, builds a
// Descriptor of the given kind around it, and installs it in the table.
func (t *Table) Open(kind Kind, openFlags int, closeFn func()) *Descriptor {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.used.NextClear(0)
	if !ok {
		idx = t.used.Len()
	}
	t.used.Set(idx)

	h := MinDescriptor + Handle(idx)
	d := New(h, kind, openFlags, closeFn)
	t.entries[h] = d
	return d
}

// Lookup returns the Descriptor for h, or an error if h is not open.
func (t *Table) Lookup(h Handle) (*Descriptor, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.entries[h]
	if !ok {
		return nil, shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "descriptor %d not open", h)
	}
	return d, nil
}

// Close removes h from the table and releases the table's reference on
// its Descriptor. The handle becomes immediately available for reuse by
// the next Open, matching spec.md §8's "same set-difference behavior as
// the kernel" scenario.
func (t *Table) Close(h Handle) error {
	t.mu.Lock()
	d, ok := t.entries[h]
	if !ok {
		t.mu.Unlock()
		return shadowerr.New(shadowerr.CodeSyscallBadDescriptor, "descriptor %d not open", h)
	}
	delete(t.entries, h)
	idx := uint(h - MinDescriptor)
	t.used.Clear(idx)
	t.mu.Unlock()

	for _, epollHandle := range d.Listeners() {
		if epollDesc, err := t.Lookup(epollHandle); err == nil {
			if e, ok := epollDesc.Ext().(*Epoll); ok {
				e.Remove(h)
			}
		}
	}

	d.MarkClosed()
	d.Release()
	return nil
}

// Len returns the number of currently open descriptors.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Each calls fn for every open descriptor, in no particular order — used
// by Host.shutdown() to force-close everything (spec.md §4.6).
func (t *Table) Each(fn func(*Descriptor)) {
	t.mu.Lock()
	snapshot := make([]*Descriptor, 0, len(t.entries))
	for _, d := range t.entries {
		snapshot = append(snapshot, d)
	}
	t.mu.Unlock()

	for _, d := range snapshot {
		fn(d)
	}
}
