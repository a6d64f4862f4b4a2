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

package tcp

import (
	"sync"
	"time"

	"github.com/shadowsim/shadow/internal/descriptor"
	"github.com/shadowsim/shadow/internal/shadowerr"
	"github.com/shadowsim/shadow/internal/socket"
)

// dupAckThreshold is the number of duplicate ACKs that trigger fast
// retransmit, per spec.md §4.3: "fast-retransmit on 3 duplicate ACKs".
const dupAckThreshold = 3

// segment is one outstanding byte range in the send buffer, tracked so
// the connection can re-slice it on retransmit without re-copying the
// whole unacked window.
type segment struct {
	seq  uint32
	data []byte
	sent time.Time
	rtxd bool // Karn's algorithm: exclude retransmitted segments from RTT samples
}

// Connection is one TCP connection's full state: the eleven-state
// machine, send/receive sequence tracking, RTO estimation, a pluggable
// CongestionControl, a SACK Scoreboard and a RetransmitTally, per
// spec.md §3 "TCP connection".
type Connection struct {
	mu sync.Mutex

	sock  *socket.Socket
	state State

	variant Variant
	cc      CongestionControl
	rto     *RTOEstimator
	scoreIn *Scoreboard // ranges this side has received out of order
	tally   *RetransmitTally

	// Send side.
	iss      uint32 // initial send sequence number
	sndUna   uint32 // oldest unacknowledged byte
	sndNxt   uint32 // next sequence number to send
	sndWnd   uint32 // peer-advertised window
	sendBuf  []segment
	dupAcks  int
	lastAck  uint32

	// Receive side.
	irs     uint32 // initial receive sequence number (peer's ISS)
	rcvNxt  uint32 // next expected sequence number
	rcvWnd  uint32

	connError error
}

// NewConnection builds a Connection bound to sock, with congestion
// control variant v and fresh RTO/scoreboard/tally state. iss is the
// locally chosen initial sequence number (normally drawn from the
// per-host RNG by the caller, not by Connection itself, to keep the
// state machine deterministic and independently testable).
func NewConnection(sock *socket.Socket, v Variant, iss uint32, recvWindow uint32) *Connection {
	return &Connection{
		sock:    sock,
		state:   StateClosed,
		variant: v,
		cc:      NewCongestionControl(v),
		rto:     NewRTOEstimator(),
		scoreIn: NewScoreboard(),
		iss:     iss,
		sndUna:  iss,
		sndNxt:  iss,
		rcvWnd:  recvWindow,
	}
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) setState(s State) { c.state = s }

// Listen transitions a freshly created connection into LISTEN, the
// passive-open half of the handshake.
func (c *Connection) Listen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setState(StateListen)
}

// OpenActive begins the active-open half of the handshake: emits SYN
// and moves to SYN_SENT. Returns the SYN's sequence number for the
// caller to place on the wire.
func (c *Connection) OpenActive() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setState(StateSynSent)
	c.sndNxt = c.iss + 1
	return c.iss
}

// HandleSyn processes an inbound SYN while LISTEN, recording the peer's
// ISS and moving to SYN_RCVD. Returns the SYN-ACK's ack number.
func (c *Connection) HandleSyn(peerISS uint32) (ackNum uint32, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateListen {
		return 0, shadowerr.New(shadowerr.CodeInvariantPastEvent, "SYN received outside LISTEN (state=%s)", c.state)
	}
	c.irs = peerISS
	c.rcvNxt = peerISS + 1
	c.sndNxt = c.iss + 1 // the outgoing SYN-ACK consumes our own ISS
	c.setState(StateSynRcvd)
	return c.rcvNxt, nil
}

// HandleSynAck processes the SYN-ACK reply to an active open, moving
// SYN_SENT → ESTABLISHED.
func (c *Connection) HandleSynAck(peerISS, ackNum uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSynSent {
		return shadowerr.New(shadowerr.CodeInvariantPastEvent, "SYN-ACK received outside SYN_SENT (state=%s)", c.state)
	}
	if ackNum != c.iss+1 {
		return shadowerr.New(shadowerr.CodeSyscallConnectionReset, "SYN-ACK acks unexpected sequence %d", ackNum)
	}
	c.irs = peerISS
	c.rcvNxt = peerISS + 1
	c.sndUna = ackNum
	c.setState(StateEstablished)
	return nil
}

// HandleAck processes the final ACK of a passive open's handshake,
// moving SYN_RCVD → ESTABLISHED.
func (c *Connection) HandleAck(ackNum uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSynRcvd {
		return shadowerr.New(shadowerr.CodeInvariantPastEvent, "final handshake ACK received outside SYN_RCVD (state=%s)", c.state)
	}
	if ackNum != c.iss+1 {
		return shadowerr.New(shadowerr.CodeSyscallConnectionReset, "handshake ACK acks unexpected sequence %d", ackNum)
	}
	c.sndUna = ackNum
	c.setState(StateEstablished)
	return nil
}

// Send queues data for transmission, assigning it the next contiguous
// sequence range. Returns the segment's starting sequence number.
// Invariant (a) from spec.md §3 holds by construction: sndNxt only
// advances here, and ProcessAck never moves sndUna past sndNxt.
func (c *Connection) Send(data []byte) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.CanSend() {
		return 0, shadowerr.New(shadowerr.CodeSyscallConnectionReset, "send on connection in state %s", c.state)
	}
	seq := c.sndNxt
	cp := make([]byte, len(data))
	copy(cp, data)
	c.sendBuf = append(c.sendBuf, segment{seq: seq, data: cp, sent: time.Time{}})
	c.sndNxt += uint32(len(data))
	if c.tally == nil {
		c.tally = NewRetransmitTally(seq, uint(len(data))*64)
	}
	return seq, nil
}

// MarkSent stamps the outstanding segment starting at seq as having
// just gone out on the wire, starting its RTO clock.
func (c *Connection) MarkSent(seq uint32, now time.Time, retransmit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.sendBuf {
		if c.sendBuf[i].seq == seq {
			c.sendBuf[i].sent = now
			c.sendBuf[i].rtxd = retransmit
			return
		}
	}
}

// ProcessAck applies a cumulative ACK plus optional SACK blocks.
// Invariant (b): every acked byte range is dropped from sendBuf here,
// so the caller's output buffer can release it in the same step.
// rttSample/haveSample report a usable (non-retransmitted, per Karn's
// algorithm) RTT observation when ackNum newly covers a segment that
// was never retransmitted.
func (c *Connection) ProcessAck(ackNum uint32, sacks []SACKBlock, now time.Time) (released int, rttSample time.Duration, haveSample bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ackNum == c.lastAck {
		c.dupAcks++
	} else {
		c.dupAcks = 0
		c.lastAck = ackNum
	}

	var bytesReleased int
	if seqLess(c.sndUna, ackNum) && !seqLess(c.sndNxt, ackNum) {
		kept := c.sendBuf[:0]
		for _, s := range c.sendBuf {
			end := s.seq + uint32(len(s.data))
			if !seqLess(s.seq, ackNum) {
				kept = append(kept, s)
				continue
			}
			if seqLess(s.seq, ackNum) && seqLess(ackNum, end) {
				// Partial ack of this segment: trim and keep.
				trimmed := end - ackNum
				bytesReleased += len(s.data) - int(trimmed)
				s.data = s.data[uint32(len(s.data))-trimmed:]
				s.seq = ackNum
				kept = append(kept, s)
				continue
			}
			released++
			bytesReleased += len(s.data)
			if !s.rtxd && !s.sent.IsZero() {
				rttSample = now.Sub(s.sent)
				haveSample = true
			}
			if c.tally != nil {
				c.tally.MarkAcked(s.seq)
			}
		}
		c.sendBuf = kept
		c.sndUna = ackNum
	}

	for _, b := range sacks {
		c.scoreIn.Insert(b.Start, b.End)
		if c.tally != nil {
			for seq := b.Start; seqLess(seq, b.End); seq++ {
				c.tally.MarkSacked(seq)
			}
		}
	}

	if bytesReleased > 0 {
		c.cc.OnAck(bytesReleased, rttSample.Nanoseconds())
	}
	if haveSample {
		c.rto.Sample(rttSample)
	}

	if c.dupAcks >= dupAckThreshold {
		c.onFastRetransmit()
	}

	return released, rttSample, haveSample
}

func (c *Connection) onFastRetransmit() {
	c.cc.OnLoss()
	if c.tally != nil && len(c.sendBuf) > 0 {
		c.tally.MarkLost(c.sendBuf[0].seq)
	}
	c.dupAcks = 0
}

// OnTimeout applies an RTO expiration: congestion-control reset to the
// initial window, RTO backoff, and the oldest unacked segment marked
// lost for retransmission, per spec.md §4.3's "on RTO" rule.
func (c *Connection) OnTimeout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cc.OnTimeout()
	c.rto.Backoff()
	if c.tally != nil && len(c.sendBuf) > 0 {
		c.tally.MarkLost(c.sendBuf[0].seq)
	}
}

// RTO returns the current retransmission timeout to arm the next timer
// with.
func (c *Connection) RTO() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rto.RTO()
}

// CWnd returns the current congestion window in packets.
func (c *Connection) CWnd() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cc.CWnd()
}

// UnackedBytes returns the number of bytes sent but not yet
// acknowledged, i.e. sndNxt - sndUna, directly testing invariant (a).
func (c *Connection) UnackedBytes() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sndNxt - c.sndUna
}

// NeedsRetransmit reports whether seq is still eligible for
// retransmission — invariant (c): a retransmit event must never
// manufacture a sequence number outside [sndUna, sndNxt); callers only
// ever query sequence numbers that are already entries in sendBuf, so
// this can never answer true for an out-of-window sequence.
func (c *Connection) NeedsRetransmit(seq uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seqLess(seq, c.sndUna) || !seqLess(seq, c.sndNxt) {
		return false
	}
	if c.tally == nil {
		return false
	}
	return c.tally.NeedsRetransmit(seq)
}

// CloseActive begins active close: ESTABLISHED → FIN_WAIT_1 (and
// CLOSE_WAIT → LAST_ACK for the passive side closing in turn).
func (c *Connection) CloseActive() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateEstablished:
		c.setState(StateFinWait1)
	case StateCloseWait:
		c.setState(StateLastAck)
	default:
		return shadowerr.New(shadowerr.CodeSyscallConnectionReset, "close on connection in state %s", c.state)
	}
	return nil
}

// HandleFin processes an inbound FIN, advancing the passive-close or
// simultaneous-close branches of the state machine.
func (c *Connection) HandleFin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rcvNxt++
	switch c.state {
	case StateEstablished:
		c.setState(StateCloseWait)
	case StateFinWait1:
		c.setState(StateClosing)
	case StateFinWait2:
		c.setState(StateTimeWait)
	}
}

// HandleFinAck processes the ACK of our own FIN.
func (c *Connection) HandleFinAck() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateFinWait1:
		c.setState(StateFinWait2)
	case StateClosing:
		c.setState(StateTimeWait)
	case StateLastAck:
		c.setState(StateClosed)
	}
}

// Reset forces the connection into CLOSED and records a connection
// error, per spec.md §4.3's failure semantics: "Connection reset
// conditions set the descriptor ACTIVE bit off and surface a non-zero
// get_connection_error value."
func (c *Connection) Reset(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setState(StateClosed)
	c.connError = err
	c.sock.Descriptor().AdjustStatus(descriptor.StatusActive, false)
}

// ConnectionError returns the sticky error set by Reset, if any.
func (c *Connection) ConnectionError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connError
}

// seqLess compares two 32-bit sequence numbers using serial-number
// arithmetic (RFC 1982), so wraparound near 2^32 compares correctly.
func seqLess(a, b uint32) bool {
	return int32(a-b) < 0
}
