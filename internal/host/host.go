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

// Package host composes one simulated machine: its descriptor table,
// network interfaces, ingress router, CPU model, RNG, and the set of
// guest processes running on it, per spec.md §3 "Host" and §4.6.
package host

import (
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/shadowsim/shadow/internal/descriptor"
	"github.com/shadowsim/shadow/internal/iface"
	"github.com/shadowsim/shadow/internal/router"
	"github.com/shadowsim/shadow/internal/shadowerr"
	"github.com/shadowsim/shadow/internal/shadowlog"
	"github.com/shadowsim/shadow/internal/simtime"
)

// Process is one guest application instance running on a Host, per
// spec.md §3's "a set of Processes (guest instances)". The plugin ABI
// itself lives in internal/shim; Host only tracks bookkeeping needed to
// start and tear the process down.
type Process struct {
	Name      string
	StartTime simtime.Time
	running   bool
}

// Running reports whether the process has been started and not yet
// torn down.
func (p *Process) Running() bool { return p.running }

// Host is one simulated machine.
type Host struct {
	mu sync.Mutex

	ID   uint64
	Name string

	Descriptors *descriptor.Table
	Interfaces  []*iface.Interface
	Router      router.Manager
	CPU         *CPUModel
	RNG         *RNG
	Store       *Store

	logLevel shadowlog.Level

	lastEventTime simtime.Time
	processes     map[string]*Process

	booted bool
}

// New builds a Host around the given id, CPU model, and RNG seed. The
// descriptor table and router start empty; interfaces are attached via
// AddInterface before Boot.
func New(id uint64, name string, masterSeed uint64, cpuMHz int) *Host {
	return &Host{
		ID:          id,
		Name:        name,
		Descriptors: descriptor.NewTable(),
		Router:      router.NewCoDel(),
		CPU:         NewCPUModel(cpuMHz, 0, 0),
		RNG:         NewRNG(masterSeed, id),
		logLevel:    shadowlog.InfoLevel,
		processes:   make(map[string]*Process),
	}
}

// AddInterface attaches a network interface to the host, binding its
// address, bandwidth and qdisc mode, per spec.md §3.
func (h *Host) AddInterface(address uint32, upKiBps, downKiBps int, mode iface.QDiscMode) *iface.Interface {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := iface.NewInterface(address, upKiBps, downKiBps, mode)
	h.Interfaces = append(h.Interfaces, i)
	return i
}

// SetLogLevel overrides the host's log-level filter independent of the
// global --log-level, per spec.md §3.
func (h *Host) SetLogLevel(lv shadowlog.Level) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.logLevel = lv
}

// LogLevel returns the host's current log-level override.
func (h *Host) LogLevel() shadowlog.Level {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.logLevel
}

// AttachStore opens this host's persisted-state directory under
// dataDir. Call before Boot if persistence is enabled for the run.
func (h *Host) AttachStore(dataDir string) error {
	s, err := OpenStore(dataDir, h.ID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.Store = s
	h.mu.Unlock()
	return nil
}

// Boot marks the host booted and records now (the simulation's start
// time) as its last event time. It does not touch interfaces, reseed the
// RNG (New already seeded it), schedule application starts or arm a
// heartbeat timer: Boot creates no events.
func (h *Host) Boot(now simtime.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastEventTime = now
	h.booted = true
}

// Booted reports whether Boot has run.
func (h *Host) Booted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.booted
}

// AddProcess registers a guest process as started at t, per spec.md §4.6
// "schedules each application's start task at the configured start
// time". Returns an error if a process of that name already runs on
// this host.
func (h *Host) AddProcess(name string, t simtime.Time) (*Process, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.processes[name]; ok && p.running {
		return nil, shadowerr.New(shadowerr.CodeConfigDuplicateHost, "process %q already running on host %d", name, h.ID)
	}
	p := &Process{Name: name, StartTime: t, running: true}
	h.processes[name] = p
	return p, nil
}

// Processes returns a snapshot of every process ever registered on this
// host, running or not.
func (h *Host) Processes() []*Process {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Process, 0, len(h.processes))
	for _, p := range h.processes {
		out = append(out, p)
	}
	return out
}

// ObserveEventTime checks that event times on this host never go
// backwards: a time earlier than the last observed one is an error, an
// equal time is accepted. The scheduler calls this once per event it
// executes on this host.
func (h *Host) ObserveEventTime(t simtime.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.booted && t.Before(h.lastEventTime) {
		return shadowerr.New(shadowerr.CodeInvariantPastEvent, "host %d: event time %d precedes last event time %d", h.ID, t, h.lastEventTime)
	}
	h.lastEventTime = t
	return nil
}

// Shutdown forcibly closes every open descriptor and frees every
// process, per spec.md §4.6 "Host.shutdown()". Per-descriptor close
// errors are aggregated with hashicorp/go-multierror rather than
// aborting at the first failure, so teardown is always attempted for
// every descriptor.
func (h *Host) Shutdown() error {
	h.mu.Lock()
	for _, p := range h.processes {
		p.running = false
	}
	store := h.Store
	h.mu.Unlock()

	var result error
	h.Descriptors.Each(func(d *descriptor.Descriptor) {
		if err := h.Descriptors.Close(d.Handle()); err != nil {
			result = multierror.Append(result, err)
		}
	})

	if store != nil {
		if err := store.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result
}
