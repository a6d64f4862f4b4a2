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

package shim_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shadowsim/shadow/internal/shim"
	"github.com/shadowsim/shadow/internal/simtime"
	"github.com/shadowsim/shadow/internal/topology"
)

type echoState struct {
	sent int
}

func echoEntryPoint(table shim.FuncTable) error {
	table.Register(
		func(argv []string) (interface{}, error) {
			return &echoState{}, nil
		},
		func(state interface{}) {},
		nil,
	)
	return nil
}

var _ = Describe("Shim", func() {
	It("starts an instance and dispatches a registered syscall to it", func() {
		s := shim.New(topology.NewStatic(), nil)
		s.RegisterSyscall("send", func(inst *shim.Instance, call shim.Call) shim.Return {
			st := inst.State().(*echoState)
			st.sent++
			return shim.Return{Value: st.sent}
		})
		s.RegisterPlugin("echo", echoEntryPoint, "")

		inst, err := s.StartInstance("host1:echo", 1, "echo", []string{"echo"}, simtime.Zero)
		Expect(err).NotTo(HaveOccurred())

		ret := inst.Dispatch(shim.Call{Syscall: "send"})
		Expect(ret.Err).NotTo(HaveOccurred())
		Expect(ret.Value).To(Equal(1))

		ret = inst.Dispatch(shim.Call{Syscall: "send"})
		Expect(ret.Value).To(Equal(2))
	})

	It("rejects an unknown plugin id", func() {
		s := shim.New(topology.NewStatic(), nil)
		_, err := s.StartInstance("host1:bogus", 1, "bogus", nil, simtime.Zero)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a call to an unregistered syscall", func() {
		s := shim.New(topology.NewStatic(), nil)
		s.RegisterPlugin("echo", echoEntryPoint, "")

		inst, err := s.StartInstance("host1:echo", 1, "echo", nil, simtime.Zero)
		Expect(err).NotTo(HaveOccurred())

		ret := inst.Dispatch(shim.Call{Syscall: "nonexistent"})
		Expect(ret.Err).To(HaveOccurred())
	})

	It("rejects a plugin whose ABI constraint the core fails", func() {
		s := shim.New(topology.NewStatic(), nil)
		s.RegisterPlugin("echo", echoEntryPoint, ">= 99.0.0")

		_, err := s.StartInstance("host1:echo", 1, "echo", nil, simtime.Zero)
		Expect(err).To(HaveOccurred())
	})

	It("refuses dispatch after the instance is stopped", func() {
		s := shim.New(topology.NewStatic(), nil)
		s.RegisterSyscall("send", func(inst *shim.Instance, call shim.Call) shim.Return {
			return shim.Return{}
		})
		s.RegisterPlugin("echo", echoEntryPoint, "")

		inst, err := s.StartInstance("host1:echo", 1, "echo", nil, simtime.Zero)
		Expect(err).NotTo(HaveOccurred())

		s.StopInstance("host1:echo")
		Expect(inst.Closed()).To(BeTrue())

		ret := inst.Dispatch(shim.Call{Syscall: "send"})
		Expect(ret.Err).To(HaveOccurred())
	})

	It("collects callbacks scheduled via create_callback", func() {
		s := shim.New(topology.NewStatic(), nil)
		s.RegisterPlugin("timer", func(table shim.FuncTable) error {
			table.Register(func(argv []string) (interface{}, error) { return nil, nil }, nil, nil)
			table.CreateCallback(func(data interface{}) {}, "payload", 500)
			return nil
		}, "")

		_, err := s.StartInstance("host1:timer", 7, "timer", nil, simtime.Zero)
		Expect(err).NotTo(HaveOccurred())

		pending := s.DrainCallbacks()
		Expect(pending).To(HaveLen(1))
		Expect(pending[0].DelayMs).To(Equal(uint64(500)))
		Expect(pending[0].HostID).To(Equal(uint64(7)))

		Expect(s.DrainCallbacks()).To(BeEmpty())
	})

	It("drains only the named host's pending callbacks", func() {
		s := shim.New(topology.NewStatic(), nil)
		s.RegisterPlugin("timer", func(table shim.FuncTable) error {
			table.Register(func(argv []string) (interface{}, error) { return nil, nil }, nil, nil)
			table.CreateCallback(func(data interface{}) {}, nil, 100)
			return nil
		}, "")

		_, err := s.StartInstance("host1:timer", 1, "timer", nil, simtime.Zero)
		Expect(err).NotTo(HaveOccurred())
		_, err = s.StartInstance("host2:timer", 2, "timer", nil, simtime.Zero)
		Expect(err).NotTo(HaveOccurred())

		forHost1 := s.DrainCallbacksForHost(1)
		Expect(forHost1).To(HaveLen(1))

		remaining := s.DrainCallbacks()
		Expect(remaining).To(HaveLen(1))
		Expect(remaining[0].HostID).To(Equal(uint64(2)))
	})

	It("notifies a plugin of its own shutdown", func() {
		s := shim.New(topology.NewStatic(), nil)
		stopped := false
		s.RegisterPlugin("echo", func(table shim.FuncTable) error {
			table.Register(
				func(argv []string) (interface{}, error) { return &echoState{}, nil },
				func(state interface{}) {},
				func(state interface{}, event string) {
					if event == "stop" {
						stopped = true
					}
				},
			)
			return nil
		}, "")

		inst, err := s.StartInstance("host1:echo", 1, "echo", nil, simtime.Zero)
		Expect(err).NotTo(HaveOccurred())

		s.StopInstance("host1:echo")
		Expect(inst.Closed()).To(BeTrue())
		Expect(stopped).To(BeTrue())
	})
})
