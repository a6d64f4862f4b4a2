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

// Package event implements the Event and Task types of spec.md §3: a
// time-stamped unit of work with a stable total ordering, and the
// deferred callable it carries.
package event

import "sync/atomic"

// Task is a reference-counted deferred call, per spec.md §3: a callback,
// an opaque receiver object, an opaque argument, and optional free hooks
// for the object and the argument. Tasks execute with their owning host
// locked and the active-host slot set (enforced by the scheduler/worker,
// not by Task itself).
type Task struct {
	refs int32

	fn     func(obj, arg interface{})
	obj    interface{}
	arg    interface{}
	freeFn func(obj interface{})
	freeArg func(arg interface{})
}

// NewTask builds a Task. freeFn/freeArg may be nil when the receiver or
// argument needs no cleanup.
func NewTask(fn func(obj, arg interface{}), obj, arg interface{}, freeFn func(interface{}), freeArg func(interface{})) *Task {
	return &Task{refs: 1, fn: fn, obj: obj, arg: arg, freeFn: freeFn, freeArg: freeArg}
}

// Ref increments the reference count, for schedulers that hand the same
// Task to more than one event (rare, but the model allows it since Task
// itself is stateless besides its closure over obj/arg).
func (t *Task) Ref() *Task {
	atomic.AddInt32(&t.refs, 1)
	return t
}

// Execute invokes the deferred call. It is the caller's (worker's)
// responsibility to hold the owning host's lock and set the active-host
// slot before calling Execute, per spec.md §3 and §5.
func (t *Task) Execute() {
	t.fn(t.obj, t.arg)
}

// Release decrements the reference count and, upon reaching zero, invokes
// the free hooks for the object and argument and tears the Task down. A
// Task is destroyed after execution, per spec.md §3.
func (t *Task) Release() {
	if atomic.AddInt32(&t.refs, -1) > 0 {
		return
	}
	if t.freeFn != nil {
		t.freeFn(t.obj)
	}
	if t.freeArg != nil {
		t.freeArg(t.arg)
	}
}
