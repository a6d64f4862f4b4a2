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

// Package topology defines the topology oracle contract of spec.md §2
// ("Topology oracle (external) — Answers latency(a,b), reliability(a,b),
// bandwidth(h)") plus a static in-memory implementation. The graph
// *loader* (parsing an external topology file/CDF) stays out of scope,
// per spec.md §1; only the query interface and a hand-buildable table
// are implemented here.
package topology

import (
	"github.com/shadowsim/shadow/internal/shadowerr"
	"github.com/shadowsim/shadow/internal/simtime"
)

// Oracle answers the three topology queries spec.md §2 names, plus the
// minimum-link-latency figure the scheduler's conservative barrier
// depends on (spec.md §4.1).
type Oracle interface {
	Latency(src, dst uint64) (simtime.Duration, error)
	Reliability(src, dst uint64) (float64, error)
	Bandwidth(host uint64) (upKiBps, downKiBps int, err error)

	// MinLinkLatency returns the minimum nonzero latency along any edge
	// currently in use, per spec.md §4.1's `min_link_latency`.
	MinLinkLatency() simtime.Duration
}

type edgeKey struct {
	src, dst uint64
}

type edge struct {
	latency     simtime.Duration
	reliability float64
}

type bandwidth struct {
	up, down int
}

// Static is an in-memory topology table built directly by a caller (e.g.
// a scenario loader translating post-parse create-topology actions),
// rather than read from an external graph file.
type Static struct {
	edges     map[edgeKey]edge
	bandwidth map[uint64]bandwidth

	minLatency    simtime.Duration
	minLatencySet bool
}

// NewStatic builds an empty topology table.
func NewStatic() *Static {
	return &Static{
		edges:     make(map[edgeKey]edge),
		bandwidth: make(map[uint64]bandwidth),
	}
}

// AddEdge records latency and reliability for src->dst. When symmetric
// is true the same figures are also recorded for dst->src, per spec.md
// §8's "latency(a,b) == latency(b,a) if the underlying edge is
// symmetric" property.
func (s *Static) AddEdge(src, dst uint64, latency simtime.Duration, reliability float64, symmetric bool) {
	s.edges[edgeKey{src, dst}] = edge{latency: latency, reliability: reliability}
	if symmetric {
		s.edges[edgeKey{dst, src}] = edge{latency: latency, reliability: reliability}
	}
	if latency > 0 && (!s.minLatencySet || latency < s.minLatency) {
		s.minLatency = latency
		s.minLatencySet = true
	}
}

// SetBandwidth records a host's up/down bandwidth in KiB/s.
func (s *Static) SetBandwidth(host uint64, upKiBps, downKiBps int) {
	s.bandwidth[host] = bandwidth{up: upKiBps, down: downKiBps}
}

func (s *Static) Latency(src, dst uint64) (simtime.Duration, error) {
	e, ok := s.edges[edgeKey{src, dst}]
	if !ok {
		return 0, shadowerr.New(shadowerr.CodeInvariantNoRoute, "no topology edge %d -> %d", src, dst)
	}
	return e.latency, nil
}

func (s *Static) Reliability(src, dst uint64) (float64, error) {
	e, ok := s.edges[edgeKey{src, dst}]
	if !ok {
		return 0, shadowerr.New(shadowerr.CodeInvariantNoRoute, "no topology edge %d -> %d", src, dst)
	}
	return e.reliability, nil
}

func (s *Static) Bandwidth(host uint64) (int, int, error) {
	b, ok := s.bandwidth[host]
	if !ok {
		return 0, 0, shadowerr.New(shadowerr.CodeInvariantNoRoute, "no bandwidth entry for host %d", host)
	}
	return b.up, b.down, nil
}

// MinLinkLatency returns the smallest nonzero latency recorded across
// every edge added so far. Edges are expected to be added once at
// startup and occasionally widened by `update_min_time_jump` (spec.md
// §4.1); AddEdge keeps this figure current incrementally rather than
// rescanning the whole table on every call.
func (s *Static) MinLinkLatency() simtime.Duration {
	return s.minLatency
}
