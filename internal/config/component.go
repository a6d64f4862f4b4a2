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

package config

import (
	"github.com/spf13/cobra"

	"github.com/shadowsim/shadow/internal/shadowerr"
)

// Component is the lifecycle+flags contract every configurable subsystem
// implements, modeled on the teacher's config/types.Component — trimmed
// to the slice this core actually needs: no monitor-pool registration
// (spec.md's "logging subsystem" and any health/metrics surface are
// external collaborators per spec.md §1, not something a Component here
// registers itself into) and no version/get-other-component plumbing
// (this core has exactly one configurable surface, not a plugin
// marketplace of components).
type Component interface {
	// Type identifies the component for logs and is its key in Manager.
	Type() string

	// RegisterFlag adds this component's CLI flags to cmd and binds them
	// through the owning Manager's viper instance.
	RegisterFlag(cmd *cobra.Command) error

	// Start validates the bound values and makes them available via the
	// component's own accessor (e.g. Options()).
	Start() error

	// Reload re-validates after a config-file or SIGHUP-triggered change.
	Reload() error

	// Stop releases anything Start acquired. Best-effort; does not error.
	Stop()

	// Dependencies lists other component Type()s that must Start before
	// this one and Stop after it.
	Dependencies() []string
}

// Manager registers components and drives them through Start/Reload/Stop
// in dependency order, mirroring the teacher's config.Config lifecycle
// orchestration without the monitor-pool/version wiring Component above
// already dropped.
type Manager struct {
	components map[string]Component
	order      []string
}

// NewManager builds an empty Manager.
func NewManager() *Manager {
	return &Manager{components: make(map[string]Component)}
}

// Register adds a component under its own Type(). Registering the same
// Type twice is a config error.
func (m *Manager) Register(c Component) error {
	t := c.Type()
	if _, ok := m.components[t]; ok {
		return shadowerr.New(shadowerr.CodeConfigInvalidOption, "component %q already registered", t)
	}
	m.components[t] = c
	m.order = nil // invalidate cached topological order
	return nil
}

// RegisterFlags calls RegisterFlag on every registered component.
func (m *Manager) RegisterFlags(cmd *cobra.Command) error {
	for _, t := range m.sortedTypes() {
		if err := m.components[t].RegisterFlag(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Start brings up every component in dependency order.
func (m *Manager) Start() error {
	for _, t := range m.sortedTypes() {
		if err := m.components[t].Start(); err != nil {
			return shadowerr.Wrap(shadowerr.CodeConfigInvalidOption, "start component "+t, err)
		}
	}
	return nil
}

// Reload re-validates every component in dependency order.
func (m *Manager) Reload() error {
	for _, t := range m.sortedTypes() {
		if err := m.components[t].Reload(); err != nil {
			return shadowerr.Wrap(shadowerr.CodeConfigInvalidOption, "reload component "+t, err)
		}
	}
	return nil
}

// Stop tears every component down in reverse dependency order.
func (m *Manager) Stop() {
	order := m.sortedTypes()
	for i := len(order) - 1; i >= 0; i-- {
		m.components[order[i]].Stop()
	}
}

// sortedTypes returns component Type()s in dependency order (Kahn's
// algorithm), caching the result until the registry next changes.
func (m *Manager) sortedTypes() []string {
	if m.order != nil {
		return m.order
	}

	indegree := make(map[string]int, len(m.components))
	dependents := make(map[string][]string, len(m.components))
	for t := range m.components {
		indegree[t] = 0
	}
	for t, c := range m.components {
		for _, dep := range c.Dependencies() {
			if _, ok := m.components[dep]; !ok {
				continue
			}
			indegree[t]++
			dependents[dep] = append(dependents[dep], t)
		}
	}

	var (
		ready []string
		out   []string
	)
	for t, n := range indegree {
		if n == 0 {
			ready = append(ready, t)
		}
	}
	for len(ready) > 0 {
		t := ready[0]
		ready = ready[1:]
		out = append(out, t)
		for _, next := range dependents[t] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	m.order = out
	return out
}
