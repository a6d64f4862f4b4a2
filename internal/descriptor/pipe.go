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
	"bytes"
	"sync"
)

// Channel is one endpoint of a linked pair sharing a byte queue, per
// spec.md §4.4: "Pipes/socketpairs are implemented as two linked
// channels sharing a byte queue; writes on one side set READABLE on
// the other."
type Channel struct {
	mu      sync.Mutex
	buf     *bytes.Buffer // this endpoint's read queue
	writeTo *bytes.Buffer // the peer's read queue
	peer    *Channel
	desc    *Descriptor
}

// NewPipe builds a connected pair of channels sharing two independent
// byte queues (one per direction), each installed as the Ext of its own
// Descriptor in t.
func NewPipe(t *Table) (a, b *Descriptor) {
	bufAB := new(bytes.Buffer)
	bufBA := new(bytes.Buffer)

	chA := &Channel{buf: bufBA}
	chB := &Channel{buf: bufAB}

	da := t.Open(KindPipe, 0, nil)
	db := t.Open(KindPipe, 0, nil)

	chA.desc, chB.desc = da, db
	chA.peer, chB.peer = chB, chA

	da.SetExt(chA)
	db.SetExt(chB)

	chA.writeTo = bufAB
	chB.writeTo = bufBA

	da.AdjustStatus(StatusWritable, true)
	db.AdjustStatus(StatusWritable, true)

	return da, db
}

// Write appends b to the peer's read queue and marks the peer readable.
func (c *Channel) Write(b []byte) (int, error) {
	c.mu.Lock()
	n, err := c.writeTo.Write(b)
	c.mu.Unlock()
	if c.peer != nil {
		c.peer.desc.AdjustStatus(StatusReadable, true)
	}
	return n, err
}

// Read drains up to len(p) bytes from this channel's own read queue. It
// clears READABLE once the queue is empty again.
func (c *Channel) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, err := c.buf.Read(p)
	if c.buf.Len() == 0 {
		c.desc.AdjustStatus(StatusReadable, false)
	}
	return n, err
}

// Len reports the number of unread bytes queued for this channel.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}
