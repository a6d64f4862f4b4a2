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

// Package shim implements the guest/simulator boundary of spec.md §4.5.
// Per spec.md §9's Design Note on module-level plugin state, this rebuild
// takes the explicitly sanctioned substrate: a plugin runs as an
// in-process actor reached over a message-passing boundary rather than a
// real dlopen'd shared object with memcpy'd BSS. The guest is "an actor
// receiving call(syscall, args) and producing return(value)"; an
// interposed call is a direct function call into the Shim's registered
// handler, serialized per instance (see Instance.Dispatch), with no
// channel and no coroutine yield.
package shim

import "github.com/shadowsim/shadow/internal/shadowlog"

// NewCallback is called once when a plugin instance starts, receiving
// its argv; it returns the opaque per-instance state the plugin will
// thread through every later call.
type NewCallback func(argv []string) (state interface{}, err error)

// FreeCallback tears down a plugin instance's state.
type FreeCallback func(state interface{})

// NotifyCallback informs a plugin instance of a simulator-side event
// (e.g. a timer firing) outside the normal call/return boundary.
type NotifyCallback func(state interface{}, event string)

// TimerFunc is invoked when a callback scheduled via CreateCallback
// fires.
type TimerFunc func(data interface{})

// FuncTable is the function table a plugin's entry point receives, per
// spec.md §4.5: "register(new_cb, free_cb, notify_cb), log(level, fn,
// fmt, ...), create_callback(fn, data, delay_ms), get_bandwidth(ip,
// *down, *up)".
type FuncTable struct {
	Register       func(new NewCallback, free FreeCallback, notify NotifyCallback)
	Log            func(level shadowlog.Level, fn, format string, args ...interface{})
	CreateCallback func(fn TimerFunc, data interface{}, delayMs uint64)
	GetBandwidth   func(ip uint32) (downKiBps, upKiBps int)

	// Syscall is the plugin's only path back into the interposed
	// syscall table described by spec.md §4.5 ("the guest may be
	// thought of as an actor receiving call(syscall, args)"): without
	// it a registered plugin has a Register/Log/CreateCallback/
	// GetBandwidth table but no way to ever open a socket.
	Syscall func(name string, args ...interface{}) Return
}

// EntryPoint is the one symbol a plugin exports, matching spec.md §4.5:
// "A plugin shared object exports one entry point taking a
// function-table." In this substrate it is an ordinary Go function
// value registered at build time instead of resolved via dlopen.
type EntryPoint func(table FuncTable) error
