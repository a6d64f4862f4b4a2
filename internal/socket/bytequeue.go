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

package socket

import "sync"

// ByteQueue is the byte-oriented buffer backing a socket's input side
// (both protocols) and a UDP socket's output side, per spec.md §3. It
// optionally autotunes its capacity, per spec.md §4.3's "Autotuning":
// buffers grow proportionally to the observed bandwidth-delay product
// unless NewByteQueue was given an explicit size or DisableAutotuning
// has run.
type ByteQueue struct {
	mu sync.Mutex

	data []byte

	capacity int
	autotune bool
}

// defaultRecvBuffer is the kernel-realistic starting size spec.md §8's
// autotune scenario names explicitly.
const defaultRecvBuffer = 87380

// NewByteQueue builds an empty queue. If explicitSize > 0, autotuning is
// disabled and the capacity is fixed at explicitSize for the socket's
// lifetime (spec.md §8: "--socket-recv-buffer 87380 (explicit) disables
// autotune").
func NewByteQueue(explicitSize int) *ByteQueue {
	if explicitSize > 0 {
		return &ByteQueue{capacity: explicitSize, autotune: false}
	}
	return &ByteQueue{capacity: defaultRecvBuffer, autotune: true}
}

// Len returns the number of unread bytes currently queued.
func (q *ByteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

// Capacity returns the queue's current size limit.
func (q *ByteQueue) Capacity() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity
}

// Autotuning reports whether this queue still grows its capacity from
// observed bandwidth-delay product.
func (q *ByteQueue) Autotuning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.autotune
}

// Available returns how many more bytes can be queued before Write
// blocks (returns 0, short write).
func (q *ByteQueue) Available() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capacity - len(q.data)
}

// Write appends as many bytes of b as fit under the current capacity,
// returning the count actually queued — callers (TCP's send path, a
// UDP socket's receive path) are responsible for treating a short write
// as backpressure.
func (q *ByteQueue) Write(b []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	room := q.capacity - len(q.data)
	if room <= 0 {
		return 0
	}
	if len(b) > room {
		b = b[:room]
	}
	q.data = append(q.data, b...)
	return len(b)
}

// Read drains up to len(p) queued bytes into p, FIFO.
func (q *ByteQueue) Read(p []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := copy(p, q.data)
	q.data = q.data[n:]
	return n
}

// Autotune grows the queue's capacity to at least the given
// bandwidth-delay product (bytes), when autotuning is still enabled.
// Nothing in this module outside tests calls it: tcp.Connection does not
// feed its RTT samples here, so a queue keeps its starting capacity.
func (q *ByteQueue) Autotune(bandwidthDelayProduct int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.autotune {
		return
	}
	if bandwidthDelayProduct > q.capacity {
		q.capacity = bandwidthDelayProduct
	}
}

// DisableAutotuning freezes the queue's capacity at its current value,
// the `disable_*_autotuning` call spec.md §4.3 names.
func (q *ByteQueue) DisableAutotuning() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.autotune = false
}
