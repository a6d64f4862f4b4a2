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

package config_test

import (
	"github.com/spf13/cobra"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shadowsim/shadow/internal/config"
)

type stubComponent struct {
	name    string
	deps    []string
	started *[]string
}

func (s *stubComponent) Type() string                          { return s.name }
func (s *stubComponent) Dependencies() []string                { return s.deps }
func (s *stubComponent) RegisterFlag(cmd *cobra.Command) error { return nil }
func (s *stubComponent) Start() error {
	*s.started = append(*s.started, s.name)
	return nil
}
func (s *stubComponent) Reload() error { return nil }
func (s *stubComponent) Stop()         {}

var _ = Describe("Manager", func() {
	It("starts components after their dependencies", func() {
		var started []string
		m := config.NewManager()
		Expect(m.Register(&stubComponent{name: "b", deps: []string{"a"}, started: &started})).To(Succeed())
		Expect(m.Register(&stubComponent{name: "a", started: &started})).To(Succeed())

		Expect(m.Start()).To(Succeed())
		Expect(started).To(Equal([]string{"a", "b"}))
	})

	It("rejects registering the same component type twice", func() {
		m := config.NewManager()
		var started []string
		Expect(m.Register(&stubComponent{name: "a", started: &started})).To(Succeed())
		Expect(m.Register(&stubComponent{name: "a", started: &started})).To(HaveOccurred())
	})
})
