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

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes the counters and histograms an operator would scrape
// to judge simulation health: round cadence, context-switch volume, and
// retransmit/AQM-drop counters. Retransmits and CodelDrops are plain
// Counters registered with the rest, but no package in this module
// increments them, so they stay at zero.
type Metrics struct {
	Rounds              prometheus.Counter
	ContextSwitches     prometheus.Counter
	Retransmits         prometheus.Counter
	CodelDrops          prometheus.Counter
	BarrierRoundSeconds prometheus.Histogram
	ActiveWorkers       prometheus.Gauge
}

// NewMetrics builds an unregistered Metrics set.
func NewMetrics() *Metrics {
	return &Metrics{
		Rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadow",
			Subsystem: "scheduler",
			Name:      "rounds_total",
			Help:      "Conservative barrier rounds completed.",
		}),
		ContextSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadow",
			Subsystem: "scheduler",
			Name:      "context_switches_total",
			Help:      "Events executed under an active host/process context switch.",
		}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadow",
			Subsystem: "tcp",
			Name:      "retransmits_total",
			Help:      "TCP segments retransmitted.",
		}),
		CodelDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shadow",
			Subsystem: "router",
			Name:      "codel_drops_total",
			Help:      "Packets dropped by CoDel AQM.",
		}),
		BarrierRoundSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shadow",
			Subsystem: "scheduler",
			Name:      "barrier_round_seconds",
			Help:      "Wall-clock duration of one conservative barrier round.",
			Buckets:   prometheus.DefBuckets,
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shadow",
			Subsystem: "scheduler",
			Name:      "active_workers",
			Help:      "Worker goroutines currently draining a round.",
		}),
	}
}

// Register adds every metric to reg, in the teacher's pattern of handing
// a *prometheus.Registry to each component rather than using the global
// default registry.
func (m *Metrics) Register(reg *prometheus.Registry) error {
	for _, c := range []prometheus.Collector{
		m.Rounds, m.ContextSwitches, m.Retransmits, m.CodelDrops, m.BarrierRoundSeconds, m.ActiveWorkers,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
