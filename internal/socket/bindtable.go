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

package socket

import (
	"sync"

	"github.com/shadowsim/shadow/internal/shadowerr"
)

// BindTable is a host's (ip,port,protocol) → Socket map, enforcing
// spec.md §3's binding invariant: "each (ip,port,protocol) pair is
// bound by at most one socket on a given host", and allocating
// ephemeral ports from MinRandomPort upward.
type BindTable struct {
	mu        sync.Mutex
	bound     map[bindKey]*Socket
	nextEph   map[Protocol]uint16
}

// NewBindTable builds an empty bind table for one host.
func NewBindTable() *BindTable {
	return &BindTable{
		bound:   make(map[bindKey]*Socket),
		nextEph: map[Protocol]uint16{ProtoUDP: MinRandomPort, ProtoTCP: MinRandomPort},
	}
}

// Bind reserves (ip,port,proto) for s. port == 0 requests an ephemeral
// port, allocated from MinRandomPort upward; otherwise the exact port
// is reserved or CodeSyscallAddressInUse is returned if already taken.
func (t *BindTable) Bind(s *Socket, ip uint32, port uint16) (Addr, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if port == 0 {
		port = t.allocateEphemeralLocked(s.proto)
	}

	key := bindKey{proto: s.proto, ip: ip, port: port}
	if _, taken := t.bound[key]; taken {
		return Addr{}, shadowerr.New(shadowerr.CodeSyscallAddressInUse, "address %d.%d.%d.%d:%d already bound", byte(ip>>24), byte(ip>>16), byte(ip>>8), byte(ip), port)
	}

	t.bound[key] = s
	a := Addr{IP: ip, Port: port}
	s.setLocal(a)
	return a, nil
}

func (t *BindTable) allocateEphemeralLocked(proto Protocol) uint16 {
	for {
		p := t.nextEph[proto]
		if p == 0 {
			p = MinRandomPort
		}
		t.nextEph[proto] = p + 1
		if p < MinRandomPort {
			continue // wrapped past uint16 max; start over
		}
		return p
	}
}

// Lookup returns the socket bound to (ip,port,proto), if any.
func (t *BindTable) Lookup(proto Protocol, ip uint32, port uint16) (*Socket, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.bound[bindKey{proto: proto, ip: ip, port: port}]
	return s, ok
}

// Unbind releases s's reservation, called when the socket closes.
func (t *BindTable) Unbind(s *Socket) {
	t.mu.Lock()
	defer t.mu.Unlock()
	local := s.Local()
	if local.IsZero() {
		return
	}
	delete(t.bound, bindKey{proto: s.proto, ip: local.IP, port: local.Port})
}
