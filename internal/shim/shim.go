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

package shim

import (
	"sync"

	"github.com/shadowsim/shadow/internal/shadowerr"
	"github.com/shadowsim/shadow/internal/shadowlog"
	"github.com/shadowsim/shadow/internal/simtime"
	"github.com/shadowsim/shadow/internal/topology"
)

// plugin is one registered plugin: its entry point and the ABI
// constraint it declares.
type plugin struct {
	entry    EntryPoint
	requires string
}

// PendingCallback is a guest-scheduled timer, per spec.md §4.5's
// create_callback(fn, data, delay_ms). The scheduler consumes these
// through Shim.DrainCallbacks and turns each into an Event/Task pair at
// now + delay, per spec.md §3.
type PendingCallback struct {
	Fn          TimerFunc
	Data        interface{}
	DelayMs     uint64
	HostID      uint64
	InstanceKey string
}

// Shim is the process-global plugin registry and interposition boundary:
// "Every intercepted symbol follows the pattern: at call time, look up
// (once, memoized) the pointer to the simulator-side implementation"
// (spec.md §4.5) — here a plain map lookup stands in for dynamic symbol
// resolution, since there is no real shared object to dlsym into.
type Shim struct {
	mu sync.Mutex

	plugins   map[string]plugin
	instances map[string]*Instance // keyed by instance id, e.g. "host:process"
	syscalls  map[string]Handler

	topo topology.Oracle
	log  *shadowlog.Logger

	pending []PendingCallback
}

// New builds an empty Shim. topo is consulted by the built-in
// get_bandwidth ABI call; log backs the built-in log ABI call.
func New(topo topology.Oracle, log *shadowlog.Logger) *Shim {
	return &Shim{
		plugins:   make(map[string]plugin),
		instances: make(map[string]*Instance),
		syscalls:  make(map[string]Handler),
		topo:      topo,
		log:       log,
	}
}

// RegisterSyscall installs the simulator-side implementation of one
// intercepted symbol (e.g. "socket", "send", "epoll_wait"), shared by
// every plugin instance — the same memoized-lookup-by-name pattern
// spec.md §4.5 describes for real dynamic symbol resolution.
func (s *Shim) RegisterSyscall(name string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syscalls[name] = h
}

func (s *Shim) syscallHandler(name string) (Handler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.syscalls[name]
	return h, ok
}

// RegisterPlugin installs a plugin's entry point under id, per spec.md
// §6's create-plugin(id, path) action — path is resolved by the caller
// (scenario loader) to an EntryPoint value rather than dlopen'd here.
func (s *Shim) RegisterPlugin(id string, entry EntryPoint, abiRequires string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plugins[id] = plugin{entry: entry, requires: abiRequires}
}

// StartInstance runs pluginID's entry point to build one new running
// instance identified by instanceKey (typically "<host-id>:<process
// name>"), negotiating ABI version and wiring Register/Log/
// CreateCallback/GetBandwidth per spec.md §4.5. now is the simulation
// time the instance is starting at, stamped onto any syscall the
// plugin's own init code issues via FuncTable.Syscall before an
// Instance (and its Dispatch-driven Now tracking) exists yet.
func (s *Shim) StartInstance(instanceKey string, hostID uint64, pluginID string, argv []string, now simtime.Time) (*Instance, error) {
	s.mu.Lock()
	p, ok := s.plugins[pluginID]
	s.mu.Unlock()
	if !ok {
		return nil, shadowerr.New(shadowerr.CodeConfigUnknownPlugin, "unknown plugin id %q", pluginID)
	}

	abi, err := NegotiateABI(p.requires)
	if err != nil {
		return nil, err
	}

	var (
		newCB    NewCallback
		freeCB   FreeCallback
		notifyCB NotifyCallback
	)

	// instPtr is filled in once newInstance runs below; the Syscall
	// closure captures it by reference so the plugin's own Dispatch
	// calls route through the same Instance the handler sees as inst.
	var instPtr *Instance

	table := FuncTable{
		Register: func(n NewCallback, f FreeCallback, nf NotifyCallback) {
			newCB, freeCB, notifyCB = n, f, nf
		},
		Log: func(level shadowlog.Level, fn, format string, args ...interface{}) {
			if s.log == nil {
				return
			}
			s.log.With(shadowlog.Fields{"plugin": pluginID, "fn": fn}).Infof(format, args...)
		},
		CreateCallback: func(fn TimerFunc, data interface{}, delayMs uint64) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.pending = append(s.pending, PendingCallback{Fn: fn, Data: data, DelayMs: delayMs, HostID: hostID, InstanceKey: instanceKey})
		},
		GetBandwidth: func(ip uint32) (int, int) {
			if s.topo == nil {
				return 0, 0
			}
			up, down, err := s.topo.Bandwidth(uint64(ip))
			if err != nil {
				return 0, 0
			}
			return down, up
		},
		Syscall: func(name string, args ...interface{}) Return {
			if instPtr == nil {
				return Return{Err: shadowerr.New(shadowerr.CodePluginBadABI, "plugin %q called syscall before register()", pluginID)}
			}
			return instPtr.Dispatch(Call{Syscall: name, Args: args, Now: instPtr.Now()})
		},
	}

	if err := p.entry(table); err != nil {
		return nil, shadowerr.Wrap(shadowerr.CodePluginCrashed, "plugin entry point failed", err)
	}
	if newCB == nil {
		return nil, shadowerr.New(shadowerr.CodePluginBadABI, "plugin %q never called register()", pluginID)
	}

	// inst exists, with a nil state, before newCB runs: a plugin's own
	// init function is the natural place to open a socket (spec.md
	// §4.5's new_cb), and that means table.Syscall must already resolve
	// to this instance while newCB is still executing, not only once it
	// returns.
	inst := newInstance(pluginID, abi.String(), hostID, nil, freeCB, notifyCB, s, now)
	instPtr = inst

	state, err := newCB(argv)
	if err != nil {
		return nil, shadowerr.Wrap(shadowerr.CodePluginAborted, "plugin instance init failed", err)
	}
	inst.state = state

	s.mu.Lock()
	s.instances[instanceKey] = inst
	s.mu.Unlock()

	return inst, nil
}

// Instance looks up a previously started instance by key.
func (s *Shim) Instance(instanceKey string) (*Instance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instances[instanceKey]
	return inst, ok
}

// StopInstance closes and forgets an instance.
func (s *Shim) StopInstance(instanceKey string) {
	s.mu.Lock()
	inst, ok := s.instances[instanceKey]
	delete(s.instances, instanceKey)
	s.mu.Unlock()
	if ok {
		inst.Close()
	}
}

// DrainCallbacks removes and returns every timer callback registered
// since the last drain, for the scheduler to turn into Events.
func (s *Shim) DrainCallbacks() []PendingCallback {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// DrainCallbacksForHost removes and returns only the pending timer
// callbacks registered by hostID, leaving every other host's pending
// callbacks queued. This lets the scheduler convert a host's guest
// timers into Events at the exact moment that host finishes executing
// its current Event, rather than draining (and thus timestamping)
// every host's callbacks against whichever host happens to run next.
func (s *Shim) DrainCallbacksForHost(hostID uint64) []PendingCallback {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		out  []PendingCallback
		keep []PendingCallback
	)
	for _, pc := range s.pending {
		if pc.HostID == hostID {
			out = append(out, pc)
		} else {
			keep = append(keep, pc)
		}
	}
	s.pending = keep
	return out
}
