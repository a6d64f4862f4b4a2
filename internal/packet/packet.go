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

// Package packet implements the immutable-header, reference-counted
// carrier described in spec.md §3 "Packet": payload bytes shared by
// reference count, a protocol-dependent header, and a delivery-status
// bitset tracing the packet through creation, enqueue/dequeue, and final
// delivery or drop.
package packet

import (
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
)

// Protocol distinguishes the two header shapes a Packet can carry.
type Protocol uint8

const (
	ProtoUDP Protocol = iota
	ProtoTCP
)

// Status bits trace a packet's life cycle end to end, per spec.md §3:
// "creation, various enqueue/dequeue points, sent/dropped on the wire,
// received/dropped by interface, delivered/dropped by socket, destroyed".
type Status uint

const (
	StatusCreated Status = iota
	StatusSendBufferEnqueued
	StatusSendBufferDequeued
	StatusInterfaceSent
	StatusInterfaceDropped
	StatusRouterEnqueued
	StatusRouterDequeued
	StatusRouterDropped
	StatusWireSent
	StatusWireDropped
	StatusInterfaceReceived
	StatusInterfaceDroppedRx
	StatusSocketDelivered
	StatusSocketDropped
	StatusDestroyed

	statusCount
)

// Payload is a reference-counted, immutable byte buffer shared by every
// Packet view of the same data (e.g. retransmissions of the same segment
// reuse one Payload).
type Payload struct {
	data []byte
	refs int32
}

// NewPayload wraps b (copied, so later caller mutation cannot corrupt a
// packet already in flight) with a reference count of one.
func NewPayload(b []byte) *Payload {
	cp := make([]byte, len(b))
	copy(cp, b)
	return &Payload{data: cp, refs: 1}
}

// Bytes returns the underlying bytes. Callers must not mutate them.
func (p *Payload) Bytes() []byte {
	if p == nil {
		return nil
	}
	return p.data
}

// Len returns the payload length in bytes.
func (p *Payload) Len() int {
	if p == nil {
		return 0
	}
	return len(p.data)
}

// Ref increments the reference count and returns the same Payload, for
// callers handing the payload to a second owner (e.g. a retransmit queue
// entry alongside the original send-buffer entry).
func (p *Payload) Ref() *Payload {
	if p != nil {
		atomic.AddInt32(&p.refs, 1)
	}
	return p
}

// Release decrements the reference count. The caller is expected to have
// dropped its last pointer to p afterwards; Payload carries no finalizer
// since its backing array is reclaimed by the garbage collector once
// unreferenced.
func (p *Payload) Release() {
	if p != nil {
		atomic.AddInt32(&p.refs, -1)
	}
}

// RefCount returns the current reference count (for tests and invariant
// checks only).
func (p *Payload) RefCount() int32 {
	if p == nil {
		return 0
	}
	return atomic.LoadInt32(&p.refs)
}

// UDPHeader carries the fields spec.md §3 lists for a UDP segment.
type UDPHeader struct {
	SrcPort uint16
	DstPort uint16
	Length  uint16
}

// TCPHeader carries the fields spec.md §3 and §4.3 list for a TCP segment:
// ports, sequence, ack, SACK list, window, timestamps.
type TCPHeader struct {
	SrcPort    uint16
	DstPort    uint16
	Seq        uint32
	Ack        uint32
	Flags      TCPFlags
	Window     uint16
	SACKBlocks []SACKBlock
	TSValue    uint32
	TSEcho     uint32
}

// TCPFlags is a bitmask of the standard TCP control bits this simulator
// models (SYN/ACK/FIN/RST are the ones the state machine in internal/tcp
// actually branches on).
type TCPFlags uint8

const (
	FlagFIN TCPFlags = 1 << iota
	FlagSYN
	FlagRST
	FlagACK
)

func (f TCPFlags) Has(bit TCPFlags) bool { return f&bit != 0 }

// SACKBlock is one contiguous acknowledged range reported via TCP SACK.
type SACKBlock struct {
	Start uint32
	End   uint32
}

// Packet is the wire unit handed between network interfaces, routers and
// sockets. Per spec.md §3's invariant, once sent on the wire the header is
// immutable except for the delivery-status annotations used for tracing.
type Packet struct {
	mu sync.Mutex

	proto   Protocol
	udp     UDPHeader
	tcp     TCPHeader
	payload *Payload

	originHost uint32
	packetID   uint64 // monotonically increasing per origin host; tie-breaker

	status *bitset.BitSet

	onWire bool // once true, header mutation is no longer permitted
}

// New creates a Packet with the given protocol, origin host and per-host
// monotonic packet id (spec.md §3's tie-breaker field).
func New(proto Protocol, originHost uint32, packetID uint64, payload *Payload) *Packet {
	p := &Packet{
		proto:      proto,
		payload:    payload,
		originHost: originHost,
		packetID:   packetID,
		status:     bitset.New(uint(statusCount)),
	}
	p.mark(StatusCreated)
	return p
}

func (p *Packet) mark(s Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Set(uint(s))
}

// Mark records a new delivery-status bit. This is always permitted, even
// once the packet is on the wire, since status annotation is explicitly
// exempt from the header-immutability invariant.
func (p *Packet) Mark(s Status) { p.mark(s) }

// HasStatus reports whether a given status bit has ever been set.
func (p *Packet) HasStatus(s Status) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status.Test(uint(s))
}

// FreezeOnWire marks the header immutable. Callers that attempt to mutate
// TCP()/UDP() header fields after this point are violating the invariant;
// this implementation does not panic on write (Go has no const struct
// fields) but FreezeOnWire is the documented boundary enforced by callers
// only ever copying headers out, never mutating Packet's own fields, past
// this point.
func (p *Packet) FreezeOnWire() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onWire = true
}

// OnWire reports whether the packet has been handed to the network.
func (p *Packet) OnWire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onWire
}

func (p *Packet) Protocol() Protocol   { return p.proto }
func (p *Packet) Payload() *Payload    { return p.payload }
func (p *Packet) OriginHost() uint32   { return p.originHost }
func (p *Packet) ID() uint64           { return p.packetID }

// TCP returns a copy of the TCP header. Packets created with ProtoUDP
// return the zero value.
func (p *Packet) TCP() TCPHeader { return p.tcp }

// SetTCP replaces the TCP header. Callers must not call this after
// FreezeOnWire except to add nothing but status, per the header-immutable
// invariant.
func (p *Packet) SetTCP(h TCPHeader) { p.tcp = h }

// UDP returns a copy of the UDP header.
func (p *Packet) UDP() UDPHeader { return p.udp }

// SetUDP replaces the UDP header.
func (p *Packet) SetUDP(h UDPHeader) { p.udp = h }

// Len returns the packet's on-wire length: header size plus payload.
func (p *Packet) Len() int {
	n := p.payload.Len()
	switch p.proto {
	case ProtoTCP:
		n += 20 + len(p.tcp.SACKBlocks)*8
	case ProtoUDP:
		n += 8
	}
	return n
}

// Destroy marks the packet destroyed and releases its payload reference.
// Called exactly once, when no descriptor/queue holds the packet any
// longer.
func (p *Packet) Destroy() {
	p.mark(StatusDestroyed)
	p.payload.Release()
}
