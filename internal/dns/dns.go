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

// Package dns implements the simulator's process-global name resolver: a
// bidirectional map {name <-> address id <-> IPv4}, per spec.md §4.6.
// Address allocation is deterministic so that a given topology always
// assigns the same address ids across runs. The table is read-only once
// warmup (topology loading) completes, per spec.md §5's "Shared
// resources" note.
package dns

import (
	"sync"

	"github.com/shadowsim/shadow/internal/shadowerr"
)

// AddressID is a stable numeric handle for one simulated host's address,
// assigned in registration order.
type AddressID uint64

type record struct {
	name string
	ipv4 uint32
}

// Resolver is the bidirectional name/address/IPv4 table.
type Resolver struct {
	mu sync.RWMutex

	byName map[string]AddressID
	byIPv4 map[uint32]AddressID
	byID   map[AddressID]record

	nextID AddressID
}

// New builds an empty resolver.
func New() *Resolver {
	return &Resolver{
		byName: make(map[string]AddressID),
		byIPv4: make(map[uint32]AddressID),
		byID:   make(map[AddressID]record),
		nextID: 1,
	}
}

// Register assigns the next address id to (name, ipv4), deterministically
// in call order — the topology loader registers every host exactly once,
// in a fixed order derived from the topology file, so re-running the same
// topology always yields the same id assignment. It is an error to
// register a name or an IPv4 address already bound to a different id.
func (r *Resolver) Register(name string, ipv4 uint32) (AddressID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byName[name]; ok {
		return 0, shadowerr.New(shadowerr.CodeConfigDuplicateHost, "name %q already registered as address id %d", name, id)
	}
	if id, ok := r.byIPv4[ipv4]; ok {
		return 0, shadowerr.New(shadowerr.CodeConfigDuplicateHost, "address %d already registered as address id %d", ipv4, id)
	}

	id := r.nextID
	r.nextID++

	r.byName[name] = id
	r.byIPv4[ipv4] = id
	r.byID[id] = record{name: name, ipv4: ipv4}
	return id, nil
}

// LookupName resolves a hostname to its address id and IPv4 address, per
// spec.md §4.6: "Lookups of unknown names return an error that the guest
// sees as EAI_NONAME."
func (r *Resolver) LookupName(name string) (AddressID, uint32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[name]
	if !ok {
		return 0, 0, shadowerr.New(shadowerr.CodeSyscallNameNotFound, "EAI_NONAME: %q", name)
	}
	return id, r.byID[id].ipv4, nil
}

// LookupIPv4 resolves an IPv4 address to its address id and hostname.
func (r *Resolver) LookupIPv4(ipv4 uint32) (AddressID, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byIPv4[ipv4]
	if !ok {
		return 0, "", shadowerr.New(shadowerr.CodeSyscallNameNotFound, "EAI_NONAME: no host at address %d", ipv4)
	}
	return id, r.byID[id].name, nil
}

// LookupID resolves an address id back to its hostname and IPv4 address.
func (r *Resolver) LookupID(id AddressID) (string, uint32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok {
		return "", 0, shadowerr.New(shadowerr.CodeSyscallNameNotFound, "EAI_NONAME: no host with address id %d", id)
	}
	return rec.name, rec.ipv4, nil
}

// Len reports how many hosts are currently registered.
func (r *Resolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
