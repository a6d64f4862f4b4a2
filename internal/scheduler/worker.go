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

package scheduler

import (
	"math/rand"

	"github.com/shadowsim/shadow/internal/host"
	"github.com/shadowsim/shadow/internal/simtime"
)

// Worker is the thread-local context of spec.md §4.1's "Worker" row:
// active host, active process, random source, and a local clock,
// reused across every round this worker ever drives.
type Worker struct {
	ID int

	rng *rand.Rand

	ActiveHost    *host.Host
	ActiveProcess string

	Now simtime.Time
}

func newWorker(id int, seed int64) *Worker {
	return &Worker{ID: id, rng: rand.New(rand.NewSource(seed))}
}

// Rand returns the worker-local random source, independent of any
// per-host RNG (spec.md §4.5 keeps those separate so host determinism
// survives reassignment to a different worker).
func (w *Worker) Rand() *rand.Rand { return w.rng }

// enter sets the active host for the duration of one Task execution,
// mirroring the "context switch" spec.md §4.1 and §9 describe. Active
// process tracking is left to the interposition shim, which knows which
// guest instance a Task's obj belongs to; Worker only exposes the field.
func (w *Worker) enter(h *host.Host) {
	w.ActiveHost = h
}

func (w *Worker) leave() {
	w.ActiveHost = nil
	w.ActiveProcess = ""
}
