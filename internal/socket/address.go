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

// Package socket implements the addressing, binding and buffering
// primitives common to UDP and TCP sockets from spec.md §3: local/remote
// (ip,port) binding, an input byte queue, an ephemeral port allocator,
// and the per-host bind table enforcing "each (ip,port,protocol) pair is
// bound by at most one socket on a given host".
package socket

import "fmt"

// MinRandomPort is the first port handed out for an unbound connect or
// an explicit bind(0), per spec.md §3.
const MinRandomPort uint16 = 10000

// Protocol distinguishes UDP and TCP bind-table entries.
type Protocol uint8

const (
	ProtoUDP Protocol = iota
	ProtoTCP
)

// Addr is an IPv4 address plus port, the simulator's only address family
// (spec.md §4.6's DNS oracle maps names to IPv4 exclusively).
type Addr struct {
	IP   uint32
	Port uint16
}

func (a Addr) String() string {
	return fmt.Sprintf("%d.%d.%d.%d:%d",
		byte(a.IP>>24), byte(a.IP>>16), byte(a.IP>>8), byte(a.IP), a.Port)
}

// IsZero reports whether the address has never been set.
func (a Addr) IsZero() bool { return a.IP == 0 && a.Port == 0 }

// bindKey identifies one bind-table slot.
type bindKey struct {
	proto Protocol
	ip    uint32
	port  uint16
}
