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

// Package shadowerr implements the four error kinds of spec.md §7 as a
// single numeric-code error type, in the idiom of the teacher's
// github.com/nabbar/golib/errors package: HTTP-status-shaped codes, parent
// chaining, and compatibility with errors.Is/errors.As.
package shadowerr

import (
	"errors"
	"fmt"
)

// Code is a numeric classification of an error, grouped into the four
// kinds spec.md §7 defines. The ranges mirror HTTP status-code style
// grouping used throughout the teacher's error package.
type Code uint16

const (
	// Unknown is the zero value: no classification was assigned.
	Unknown Code = 0

	// Config errors: fatal at load (unknown plugin id, cyclic topology,
	// duplicate host id). Modeled on the 400 range.
	CodeConfigUnknownPlugin   Code = 400
	CodeConfigDuplicateHost   Code = 401
	CodeConfigCyclicTopology  Code = 402
	CodeConfigInvalidOption   Code = 403
	CodeConfigPluginLoad      Code = 404
	CodeConfigUnknownPolicy   Code = 405

	// Guest syscall errors: returned through the virtual syscall API
	// exactly as the kernel would, never logged above debug. Modeled on
	// the 500 range reserved for descriptor-facing failures.
	CodeSyscallBadDescriptor   Code = 500
	CodeSyscallWouldBlock      Code = 501
	CodeSyscallConnectionReset Code = 502
	CodeSyscallAddressInUse    Code = 503
	CodeSyscallNoRoute         Code = 504
	CodeSyscallNameNotFound    Code = 505

	// Plugin-context errors: guest aborts or segfaults, host terminated,
	// simulation continues. Modeled on the 600 range.
	CodePluginAborted  Code = 600
	CodePluginCrashed  Code = 601
	CodePluginBadABI   Code = 602

	// Simulator invariant violations: fatal, error-level log then abort.
	// Modeled on the 700 range.
	CodeInvariantPastEvent       Code = 700
	CodeInvariantRefcountUnderflow Code = 701
	CodeInvariantNoRoute         Code = 702
	CodeInvariantSequenceOutOfWindow Code = 703
	CodeInvariantUnknownHost        Code = 704
)

// Kind buckets a Code into one of the four kinds named in spec.md §7.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindSyscall
	KindPlugin
	KindInvariant
)

// Kind classifies the receiver's code.
func (c Code) Kind() Kind {
	switch {
	case c >= 400 && c < 500:
		return KindConfig
	case c >= 500 && c < 600:
		return KindSyscall
	case c >= 600 && c < 700:
		return KindPlugin
	case c >= 700 && c < 800:
		return KindInvariant
	default:
		return KindUnknown
	}
}

// Fatal reports whether errors of this kind must abort the process
// (config and invariant errors), per spec.md §7's propagation policy.
func (c Code) Fatal() bool {
	switch c.Kind() {
	case KindConfig, KindInvariant:
		return true
	default:
		return false
	}
}

// Error is the shadow error type: a code, a message, and an optional chain
// of parent errors, compatible with errors.Is/errors.As via Unwrap.
type Error struct {
	code    Code
	message string
	parents []error
}

// New builds an Error with the given code and formatted message.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error with the given code that chains one or more parent
// errors, mirroring the teacher's AddParent/ErrorParent convention.
func Wrap(code Code, msg string, parents ...error) *Error {
	e := &Error{code: code, message: msg}
	for _, p := range parents {
		if p != nil {
			e.parents = append(e.parents, p)
		}
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if len(e.parents) == 0 {
		return e.message
	}
	return fmt.Sprintf("%s: %s", e.message, errors.Join(e.parents...))
}

// Code returns the numeric code carried by the error.
func (e *Error) Code() Code {
	if e == nil {
		return Unknown
	}
	return e.code
}

// Unwrap exposes the first parent so errors.Is/errors.As can walk the
// chain. Multiple parents are still available via Parents.
func (e *Error) Unwrap() error {
	if e == nil || len(e.parents) == 0 {
		return nil
	}
	return e.parents[0]
}

// Parents returns every chained parent error.
func (e *Error) Parents() []error {
	if e == nil {
		return nil
	}
	return e.parents
}

// AddParent appends a parent error to the chain (no-op for nil errors),
// mirroring the teacher's mutable-builder AddParent method.
func (e *Error) AddParent(err error) *Error {
	if e == nil || err == nil {
		return e
	}
	e.parents = append(e.parents, err)
	return e
}

// HasParent reports whether any parent error is attached.
func (e *Error) HasParent() bool {
	return e != nil && len(e.parents) > 0
}

// Is implements code-based comparison for errors.Is: two shadow errors are
// considered equal if their codes match.
func (e *Error) Is(target error) bool {
	var o *Error
	if errors.As(target, &o) {
		return e.code == o.code
	}
	return false
}
