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
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shadowsim/shadow/internal/event"
	"github.com/shadowsim/shadow/internal/host"
	"github.com/shadowsim/shadow/internal/shadowerr"
	"github.com/shadowsim/shadow/internal/shadowlog"
	"github.com/shadowsim/shadow/internal/simtime"
	"github.com/shadowsim/shadow/internal/topology"
)

// Config holds the run-wide knobs named in spec.md §6's CLI surface that
// this package consumes directly.
type Config struct {
	NumWorkers    int
	Policy        string
	Seed          int64
	EndTime       simtime.Time
	MinRoundFloor simtime.Duration // floor under min_link_latency, for single-host or disconnected runs
}

// Scheduler drives the whole run: it owns the host registry, the chosen
// Policy, the worker pool, and the conservative barrier loop of
// spec.md §4.1.
type Scheduler struct {
	cfg     Config
	policy  Policy
	topo    topology.Oracle
	log     *shadowlog.Logger
	metrics *Metrics

	mu    sync.Mutex
	hosts map[uint32]*host.Host

	workers []*Worker

	now simtime.Time

	callbackDrain func(hostID uint32, now simtime.Time)
}

// New builds a Scheduler with cfg.NumWorkers Workers and the named
// policy, ready to have hosts added via AddHost.
func New(cfg Config, topo topology.Oracle, log *shadowlog.Logger, metrics *Metrics) (*Scheduler, error) {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	p, err := NewPolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NewMetrics()
	}

	workers := make([]*Worker, cfg.NumWorkers)
	for i := range workers {
		workers[i] = newWorker(i, cfg.Seed+int64(i))
	}

	return &Scheduler{
		cfg:     cfg,
		policy:  p,
		topo:    topo,
		log:     log,
		metrics: metrics,
		hosts:   make(map[uint32]*host.Host),
		workers: workers,
	}, nil
}

// hostKey truncates a Host's 64-bit id to the 32-bit space Event uses.
// Scenarios are expected to stay within that range (spec.md's examples
// top out in the low thousands of hosts).
func hostKey(h *host.Host) uint32 { return uint32(h.ID) }

// AddHost registers h with the scheduler and binds it to workerID via
// the active Policy. workerID is reduced modulo the worker count so
// callers can assign round-robin without bounds-checking first.
func (s *Scheduler) AddHost(h *host.Host, workerID int) error {
	workerID = workerID % len(s.workers)
	if workerID < 0 {
		workerID += len(s.workers)
	}

	s.mu.Lock()
	s.hosts[hostKey(h)] = h
	s.mu.Unlock()

	return s.policy.AddHost(hostKey(h), workerID)
}

// Push enqueues ev for eventual execution. Per spec.md §4.1, a push that
// lands in the past is a programming error, not a runtime one — the
// check happens at execution time via Host.ObserveEventTime, matching
// the spec's "fail loudly with an assertion in debug builds" wording.
func (s *Scheduler) Push(ev *event.Event) error {
	return s.policy.Push(ev)
}

// Metrics returns the scheduler's metric set, for callers to register
// against a prometheus.Registry.
func (s *Scheduler) Metrics() *Metrics { return s.metrics }

// SetCallbackDrain installs the hook execute calls immediately after a
// host's event finishes running, letting the caller (internal/runner,
// which owns both the Scheduler and the Shim) turn that host's pending
// guest timers into Events at the exact simulation time they were
// scheduled against, without this package importing internal/shim.
func (s *Scheduler) SetCallbackDrain(fn func(hostID uint32, now simtime.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbackDrain = fn
}

// Run drives conservative-barrier rounds until termination: it returns
// once now reaches the configured EndTime, whether or not events are
// still queued, or once no event is queued anywhere. While some event is
// still queued before EndTime it keeps running rounds, even when no
// event falls before the current round's end.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if !s.now.Before(s.cfg.EndTime) {
			return nil
		}

		minLat := s.topo.MinLinkLatency()
		if minLat == 0 {
			minLat = s.cfg.MinRoundFloor
		}
		if minLat == 0 {
			minLat = simtime.FromDuration(time.Millisecond)
		}

		roundEnd := s.now.Add(minLat)
		if s.cfg.EndTime.Before(roundEnd) {
			roundEnd = s.cfg.EndTime
		}

		start := time.Now()
		if err := s.runRound(ctx, roundEnd); err != nil {
			return err
		}
		s.metrics.Rounds.Inc()
		s.metrics.BarrierRoundSeconds.Observe(time.Since(start).Seconds())

		nextGlobal, has := s.globalNextTime()
		s.now = roundEnd
		if !has || !nextGlobal.Before(roundEnd) {
			// Nothing anywhere is ready before the barrier we just
			// closed. The run has quiesced ahead of configured_end_time
			// only if no event is queued at all; otherwise the next
			// round moves on toward the next queued event.
			if !has {
				return nil
			}
		}
	}
}

// runRound fans every worker out over the policy's buckets until each
// reports nothing left before barrier, then synchronizes via the
// count-down latch before returning.
func (s *Scheduler) runRound(ctx context.Context, barrier simtime.Time) error {
	latch := NewCountDownLatch(len(s.workers))
	g, gctx := errgroup.WithContext(ctx)

	for _, w := range s.workers {
		w := w
		g.Go(func() error {
			defer latch.Done()
			s.metrics.ActiveWorkers.Inc()
			defer s.metrics.ActiveWorkers.Dec()
			return s.drainWorker(gctx, w, barrier)
		})
	}

	err := g.Wait()
	latch.Wait()
	return err
}

func (s *Scheduler) drainWorker(ctx context.Context, w *Worker, barrier simtime.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ev, ok := s.policy.Pop(w.ID, barrier)
		if !ok {
			return nil
		}
		if err := s.execute(w, ev); err != nil {
			return err
		}
	}
}

// execute runs one event's Task under the owning host's context switch,
// per spec.md §4.1/§9: the host is looked up, ObserveEventTime rejects an
// event earlier than the host's last one (equal times pass), the
// worker's active-host slot is set for the call's duration, and the
// task runs.
func (s *Scheduler) execute(w *Worker, ev *event.Event) error {
	defer ev.Destroy()

	s.mu.Lock()
	h, ok := s.hosts[ev.DstHost]
	s.mu.Unlock()
	if !ok {
		return shadowerr.New(shadowerr.CodeInvariantUnknownHost, "event destined for unregistered host %d", ev.DstHost)
	}

	if err := h.ObserveEventTime(ev.Time); err != nil {
		return err
	}

	w.Now = ev.Time
	w.enter(h)
	ev.Task.Execute()
	w.leave()

	s.mu.Lock()
	drain := s.callbackDrain
	s.mu.Unlock()
	if drain != nil {
		drain(ev.DstHost, ev.Time)
	}

	s.metrics.ContextSwitches.Inc()
	return nil
}

// globalNextTime is the smallest NextTime across every worker's bucket,
// used to decide whether the run has quiesced before configured_end_time.
func (s *Scheduler) globalNextTime() (simtime.Time, bool) {
	var (
		best simtime.Time
		has  bool
	)
	for _, w := range s.workers {
		t, ok := s.policy.NextTime(w.ID)
		if !ok {
			continue
		}
		if !has || t.Before(best) {
			best, has = t, true
		}
	}
	return best, has
}
