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

import (
	"sync"

	"github.com/shadowsim/shadow/internal/descriptor"
)

// Socket extends a Descriptor with the addressing and buffering state
// spec.md §3 lists: local/remote binding, an input queue, an output
// queue (UDP only — TCP's output side is the sequence-indexed
// retransmit buffer owned by internal/tcp.Connection), and the
// recv-buffer's autotune flag.
type Socket struct {
	mu sync.Mutex

	desc  *descriptor.Descriptor
	proto Protocol

	local  Addr
	remote Addr

	recvQueue *ByteQueue
	sendQueue *ByteQueue // UDP only; nil for TCP sockets
}

// NewUDP builds a Socket wrapping d with both an input and an output
// byte queue. explicitRecvSize mirrors --socket-recv-buffer; 0 means
// autotune from the default.
func NewUDP(d *descriptor.Descriptor, explicitRecvSize int) *Socket {
	s := &Socket{
		desc:      d,
		proto:     ProtoUDP,
		recvQueue: NewByteQueue(explicitRecvSize),
		sendQueue: NewByteQueue(0),
	}
	d.SetExt(s)
	return s
}

// NewTCP builds a Socket wrapping d with only an input queue; the
// output side belongs to the owning internal/tcp.Connection.
func NewTCP(d *descriptor.Descriptor, explicitRecvSize int) *Socket {
	s := &Socket{
		desc:      d,
		proto:     ProtoTCP,
		recvQueue: NewByteQueue(explicitRecvSize),
	}
	d.SetExt(s)
	return s
}

func (s *Socket) Descriptor() *descriptor.Descriptor { return s.desc }
func (s *Socket) Protocol() Protocol                 { return s.proto }
func (s *Socket) RecvQueue() *ByteQueue              { return s.recvQueue }
func (s *Socket) SendQueue() *ByteQueue              { return s.sendQueue }

// Local returns the socket's bound local address (the zero Addr if
// bind has not yet been called).
func (s *Socket) Local() Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// Remote returns the socket's connected peer address (the zero Addr
// until connect succeeds).
func (s *Socket) Remote() Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

func (s *Socket) setLocal(a Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.local = a
}

func (s *Socket) setRemote(a Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remote = a
}

// Connect records the remote peer address, the effect of a successful
// connect() (UDP: fixes the default destination for send; TCP: recorded
// once the handshake completes).
func (s *Socket) Connect(remote Addr) {
	s.setRemote(remote)
}
