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
	"github.com/shadowsim/shadow/internal/simtime"
)

// Call is one interposed syscall request crossing the guest/simulator
// boundary: "the guest may be thought of as an actor receiving
// call(syscall, args)" (spec.md §9). Now is the simulation time at
// which the call was issued, supplied by whatever drove Dispatch (the
// scheduler's current event, in the normal case) since an Instance has
// no clock of its own.
type Call struct {
	Syscall string
	Args    []interface{}
	Now     simtime.Time
}

// Return is the matching "return(value)" half of the boundary.
type Return struct {
	Value interface{}
	Err   error
}

// Handler answers one interposed syscall, dispatching against a running
// instance. Handlers are registered once, process-wide, on the owning
// Shim (every instance of every plugin is intercepted by the same
// simulator-side socket/descriptor implementation) — not per plugin.
// Unlike the bare opaque-state signature spec.md §4.5 describes for a
// real dlopen'd plugin, handlers here receive the whole Instance so
// they can reach HostID (to find the issuing host's netstack) as well
// as State().
type Handler func(inst *Instance, call Call) Return

// Instance is one running guest process: a plugin id, the host it runs
// on, and its opaque state blob. Real dlopen'd shared objects share one
// BSS segment across every instance and must memcpy state in and out
// around each call (spec.md §4.5's resident-state swap); an in-process
// actor instead owns its state exclusively, so no swap is needed. What
// the spec does still require — even under this substrate, per spec.md
// §9 — is that "context switches" into and out of one instance are
// serialized: Dispatch holds a per-instance mutex for the duration of
// the call, so a plugin can never be re-entered while still inside a
// previous call.
type Instance struct {
	mu sync.Mutex
	// callMu is held by Dispatch and Close for the whole call, so calls
	// into one instance never overlap; mu only guards the fields below,
	// so a handler may still call State and Now.
	callMu sync.Mutex

	PluginID string
	ABI      string
	HostID   uint64

	state      interface{}
	free       FreeCallback
	notify     NotifyCallback
	shim       *Shim
	currentNow simtime.Time

	closed bool
}

func newInstance(pluginID, abi string, hostID uint64, state interface{}, free FreeCallback, notify NotifyCallback, shim *Shim, now simtime.Time) *Instance {
	return &Instance{
		PluginID:   pluginID,
		ABI:        abi,
		HostID:     hostID,
		state:      state,
		free:       free,
		notify:     notify,
		shim:       shim,
		currentNow: now,
	}
}

// State returns the instance's opaque per-plugin state, for handlers
// that receive an *Instance rather than the bare state blob.
func (i *Instance) State() interface{} {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Now returns the simulation time as of the instance's most recent
// Dispatch or SetNow, for FuncTable.Syscall to stamp onto a
// guest-initiated Call that isn't already carrying one.
func (i *Instance) Now() simtime.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.currentNow
}

// SetNow updates the instance's notion of the current simulation time.
// The scheduler has no handle on guest code directly; whatever drives
// guest code outside of Dispatch (netstack's callback drain, running a
// plugin's own timer function) calls this first so a syscall the guest
// issues from within that callback still carries a correct Now.
func (i *Instance) SetNow(t simtime.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.currentNow = t
}

// Dispatch delivers one interposed call to the instance, serialized
// against any concurrent call on the same instance, by looking up the
// matching Handler on the owning Shim and invoking it against this
// instance.
func (i *Instance) Dispatch(call Call) Return {
	i.callMu.Lock()
	defer i.callMu.Unlock()

	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return Return{Err: shadowerr.New(shadowerr.CodePluginCrashed, "instance %s already closed", i.PluginID)}
	}

	i.currentNow = call.Now
	i.mu.Unlock()

	h, ok := i.shim.syscallHandler(call.Syscall)
	if !ok {
		return Return{Err: shadowerr.New(shadowerr.CodePluginBadABI, "plugin %s: unhandled syscall %q", i.PluginID, call.Syscall)}
	}
	return h(i, call)
}

// Close tears the instance down via its registered FreeCallback, after
// notifying it of the "stop" event if it registered a NotifyCallback.
// Further Dispatch calls return CodePluginCrashed.
func (i *Instance) Close() {
	i.callMu.Lock()
	defer i.callMu.Unlock()
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	i.closed = true
	if i.notify != nil {
		i.notify(i.state, "stop")
	}
	if i.free != nil {
		i.free(i.state)
	}
}

// Closed reports whether Close has run.
func (i *Instance) Closed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}
