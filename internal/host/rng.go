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

package host

import (
	"math/rand"
	"sync"
)

// RNG is a host's private pseudo-random source, seeded deterministically
// from the run's master seed combined with the host's node id, per
// spec.md §3: "a per-host RNG seeded deterministically from the master
// seed". Two runs with the same (seed, topology, host id) draw the same
// sequence regardless of scheduler variant or worker assignment.
type RNG struct {
	mu  sync.Mutex
	src *rand.Rand
}

// NewRNG derives a host RNG from masterSeed and nodeID. The combination
// mirrors the splitmix-style seed-mixing idiom common across the example
// pack's deterministic-seeding code: fold the node id into the seed with
// a large odd multiplier so adjacent node ids do not produce correlated
// streams.
func NewRNG(masterSeed uint64, nodeID uint64) *RNG {
	mixed := masterSeed ^ (nodeID * 0x9E3779B97F4A7C15)
	return &RNG{src: rand.New(rand.NewSource(int64(mixed)))}
}

// Int63 returns a random non-negative 63-bit integer.
func (r *RNG) Int63() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Int63()
}

// Float64 returns a random value in [0.0, 1.0), used for reliability
// drop decisions against the topology oracle's R(A,B).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Float64()
}

// Intn returns a random value in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.src.Intn(n)
}
