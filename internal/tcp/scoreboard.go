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
	"sort"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// observation is the per-sequence-byte classification a RetransmitTally
// tracks, per spec.md's GLOSSARY: "Retransmit tally: Data structure
// recording per-sequence observations so each lost byte is retransmitted
// exactly once per detection."
type observation uint

const (
	obsAcked observation = iota
	obsSacked
	obsLost
	obsRetransmitted

	obsCount
)

// RetransmitTally records, per byte offset relative to the connection's
// initial sequence number, which observations have been made. A byte
// is eligible for retransmission exactly once per loss detection: once
// marked obsRetransmitted it will not be re-selected until a fresh
// obsLost observation supersedes it (MarkLost clears the retransmitted
// bit whenever lost is (re)asserted after it).
type RetransmitTally struct {
	mu   sync.Mutex
	bits map[observation]*bitset.BitSet
	base uint32 // initial sequence number; bit index = seq - base
	size uint
}

// NewRetransmitTally builds a tally covering [base, base+windowBytes).
func NewRetransmitTally(base uint32, windowBytes uint) *RetransmitTally {
	t := &RetransmitTally{
		bits: make(map[observation]*bitset.BitSet, obsCount),
		base: base,
		size: windowBytes,
	}
	for o := observation(0); o < obsCount; o++ {
		t.bits[o] = bitset.New(windowBytes)
	}
	return t
}

func (t *RetransmitTally) idx(seq uint32) uint {
	return uint(seq - t.base)
}

// MarkAcked records that seq was cumulatively acknowledged.
func (t *RetransmitTally) MarkAcked(seq uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bits[obsAcked].Set(t.idx(seq))
}

// MarkSacked records that seq was reported via a SACK block.
func (t *RetransmitTally) MarkSacked(seq uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bits[obsSacked].Set(t.idx(seq))
}

// MarkLost records a loss detection for seq (three duplicate ACKs or
// RTO), clearing any prior obsRetransmitted mark so the byte becomes
// eligible again exactly once for this new detection.
func (t *RetransmitTally) MarkLost(seq uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.idx(seq)
	t.bits[obsLost].Set(i)
	t.bits[obsRetransmitted].Clear(i)
}

// MarkRetransmitted records that seq has now been retransmitted for its
// current loss detection.
func (t *RetransmitTally) MarkRetransmitted(seq uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bits[obsRetransmitted].Set(t.idx(seq))
}

// NeedsRetransmit reports whether seq is marked lost, not yet acked or
// sacked, and not already retransmitted for the current detection —
// the "exactly once per detection" contract the GLOSSARY names.
func (t *RetransmitTally) NeedsRetransmit(seq uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.idx(seq)
	if t.bits[obsAcked].Test(i) || t.bits[obsSacked].Test(i) {
		return false
	}
	return t.bits[obsLost].Test(i) && !t.bits[obsRetransmitted].Test(i)
}

// IsAcked reports whether seq has been cumulatively or selectively
// acknowledged.
func (t *RetransmitTally) IsAcked(seq uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.idx(seq)
	return t.bits[obsAcked].Test(i) || t.bits[obsSacked].Test(i)
}

// SACKBlock is one contiguous range reported via SACK, mirroring
// internal/packet.SACKBlock's shape without importing the wire type.
type SACKBlock struct {
	Start uint32
	End   uint32 // exclusive
}

// Scoreboard maintains the set of reported SACK ranges for one
// connection direction, used both to build outgoing SACK blocks for the
// peer and to interpret incoming ones.
type Scoreboard struct {
	mu     sync.Mutex
	blocks []SACKBlock
}

// NewScoreboard builds an empty scoreboard.
func NewScoreboard() *Scoreboard {
	return &Scoreboard{}
}

// Insert merges [start,end) into the scoreboard, coalescing with any
// overlapping or adjacent existing block.
func (s *Scoreboard) Insert(start, end uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blocks := append(s.blocks, SACKBlock{Start: start, End: end})
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start < blocks[j].Start })

	merged := blocks[:0]
	for _, b := range blocks {
		if len(merged) > 0 && b.Start <= merged[len(merged)-1].End {
			if b.End > merged[len(merged)-1].End {
				merged[len(merged)-1].End = b.End
			}
			continue
		}
		merged = append(merged, b)
	}
	s.blocks = merged
}

// Blocks returns a snapshot of the current SACK ranges, in ascending
// order, ready to be copied into an outgoing packet.TCPHeader.
func (s *Scoreboard) Blocks() []SACKBlock {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SACKBlock, len(s.blocks))
	copy(out, s.blocks)
	return out
}

// Advance drops every block (or portion of a block) below newBase,
// called once the cumulative ACK advances past it — those ranges are
// now covered by plain cumulative acknowledgement.
func (s *Scoreboard) Advance(newBase uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.blocks[:0]
	for _, b := range s.blocks {
		if b.End <= newBase {
			continue
		}
		if b.Start < newBase {
			b.Start = newBase
		}
		kept = append(kept, b)
	}
	s.blocks = kept
}
