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

package runner_test

import (
	"context"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shadowsim/shadow/internal/config"
	"github.com/shadowsim/shadow/internal/descriptor"
	"github.com/shadowsim/shadow/internal/event"
	"github.com/shadowsim/shadow/internal/runner"
	"github.com/shadowsim/shadow/internal/scenario"
	"github.com/shadowsim/shadow/internal/scheduler"
	"github.com/shadowsim/shadow/internal/shadowlog"
	"github.com/shadowsim/shadow/internal/shim"
	"github.com/shadowsim/shadow/internal/simtime"
)

// echoServerState remembers the bound UDP handle and re-polls recv via
// its own create_callback loop until it sees bytes, at which point it
// reports them on the channel the test owns.
type echoServerState struct {
	handle   descriptor.Handle
	table    shim.FuncTable
	received chan []byte
}

func (s *echoServerState) poll(interface{}) {
	ret := s.table.Syscall("recv", s.handle, 64)
	if ret.Err != nil {
		s.table.CreateCallback(s.poll, nil, 5)
		return
	}
	s.received <- ret.Value.([]byte)
}

func echoServerEntry(port uint16, serverIP uint32, received chan []byte) shim.EntryPoint {
	return func(table shim.FuncTable) error {
		table.Register(
			func(argv []string) (interface{}, error) {
				st := &echoServerState{table: table, received: received}

				ret := table.Syscall("socket", "udp")
				if ret.Err != nil {
					return nil, ret.Err
				}
				st.handle = ret.Value.(descriptor.Handle)

				if ret := table.Syscall("bind", st.handle, serverIP, port); ret.Err != nil {
					return nil, ret.Err
				}

				table.CreateCallback(st.poll, nil, 5)
				return st, nil
			},
			func(interface{}) {},
			nil,
		)
		return nil
	}
}

// echoClientEntry opens a UDP socket, connects it to the server and
// sends payload, all synchronously from within its own init — exercising
// the instance-before-init-returns ordering fix that makes table.Syscall
// usable from inside a plugin's own NewCallback.
func echoClientEntry(serverIP uint32, port uint16, payload []byte) shim.EntryPoint {
	return func(table shim.FuncTable) error {
		table.Register(
			func(argv []string) (interface{}, error) {
				ret := table.Syscall("socket", "udp")
				if ret.Err != nil {
					return nil, ret.Err
				}
				h := ret.Value.(descriptor.Handle)

				if ret := table.Syscall("connect", h, serverIP, port); ret.Err != nil {
					return nil, ret.Err
				}
				if ret := table.Syscall("send", h, payload); ret.Err != nil {
					return nil, ret.Err
				}
				return h, nil
			},
			func(interface{}) {},
			nil,
		)
		return nil
	}
}

var _ = Describe("netstack wiring", func() {
	It("carries a UDP payload from a client plugin to a server plugin across topology latency", func() {
		opt := config.Default()
		opt.Workers = 2

		actions := []scenario.Action{
			mustDecode("create-topology", map[string]interface{}{
				"latency-cdf": "const:1000", "reliability": 1.0, "bw": 2048,
			}),
			mustDecode("create-host", map[string]interface{}{"id": "server", "quantity": 1}),
			mustDecode("create-host", map[string]interface{}{"id": "client", "quantity": 1}),
			mustDecode("kill-at", map[string]interface{}{"time": 200}),
		}

		log := shadowlog.New(shadowlog.InfoLevel, io.Discard, false)
		sim, err := runner.Build(opt, scheduler.NewMetrics(), log, actions)
		Expect(err).NotTo(HaveOccurred())

		server := sim.Hosts["server"]
		client := sim.Hosts["client"]
		Expect(server.Interfaces).NotTo(BeEmpty())
		Expect(client.Interfaces).NotTo(BeEmpty())

		const port = uint16(9000)
		payload := []byte("hello from client")
		received := make(chan []byte, 1)

		sim.Shim.RegisterPlugin("echo-server", echoServerEntry(port, server.Interfaces[0].Address, received), "")
		sim.Shim.RegisterPlugin("echo-client", echoClientEntry(server.Interfaces[0].Address, port, payload), "")

		// Started as scheduled Tasks, not by calling StartInstance directly:
		// Scheduler.execute's callback drain only fires once per Event a
		// host processes, so the server's create_callback(poll, ...) needs
		// its start to itself be an Event on that host, same as
		// scheduleApplication does for a real add-application action.
		startErrs := make(chan error, 2)
		startInstance := func(instanceKey string, h uint64, pluginID string) *event.Task {
			return event.NewTask(func(_, _ interface{}) {
				_, err := sim.Shim.StartInstance(instanceKey, h, pluginID, nil, simtime.Zero)
				startErrs <- err
			}, nil, nil, nil, nil)
		}

		Expect(sim.Scheduler.Push(event.New(simtime.Zero, uint32(server.ID), uint32(server.ID), 0,
			startInstance("server:echo-server", server.ID, "echo-server")))).To(Succeed())
		Expect(sim.Scheduler.Push(event.New(simtime.Zero, uint32(client.ID), uint32(client.ID), 0,
			startInstance("client:echo-client", client.ID, "echo-client")))).To(Succeed())

		Expect(runner.Run(context.Background(), sim)).To(Succeed())

		Expect(<-startErrs).NotTo(HaveOccurred())
		Expect(<-startErrs).NotTo(HaveOccurred())

		Eventually(received).Should(Receive(Equal(payload)))
	})
})
