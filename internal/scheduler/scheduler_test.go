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

package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shadowsim/shadow/internal/event"
	"github.com/shadowsim/shadow/internal/host"
	"github.com/shadowsim/shadow/internal/scheduler"
	"github.com/shadowsim/shadow/internal/simtime"
	"github.com/shadowsim/shadow/internal/topology"
)

var _ = Describe("Scheduler", func() {
	var (
		topo *topology.Static
		h1   *host.Host
		h2   *host.Host
	)

	BeforeEach(func() {
		topo = topology.NewStatic()
		topo.AddEdge(1, 2, simtime.FromDuration(0), 1.0, true)
		topo.AddEdge(1, 2, simtime.Duration(1_000_000), 1.0, true) // 1ms floor
		h1 = host.New(1, "h1", 1, 1000)
		h2 = host.New(2, "h2", 2, 1000)
		h1.Boot(0)
		h2.Boot(0)
	})

	It("executes a pushed event's task exactly once, under the destination host's context", func() {
		s, err := scheduler.New(scheduler.Config{
			NumWorkers: 2,
			Policy:     "thread-single",
			EndTime:    simtimeOf(10_000_000),
		}, topo, nil, nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.AddHost(h1, 0)).To(Succeed())
		Expect(s.AddHost(h2, 1)).To(Succeed())

		var (
			mu      sync.Mutex
			seenAs  *host.Host
			fired   int32
		)
		task := event.NewTask(func(obj, arg interface{}) {
			atomic.AddInt32(&fired, 1)
			mu.Lock()
			seenAs = obj.(*host.Host)
			mu.Unlock()
		}, h2, nil, nil, nil)

		Expect(s.Push(event.New(simtimeOf(500_000), 1, 2, 0, task))).To(Succeed())

		Expect(s.Run(context.Background())).To(Succeed())
		Expect(atomic.LoadInt32(&fired)).To(Equal(int32(1)))
		mu.Lock()
		defer mu.Unlock()
		Expect(seenAs).To(BeIdenticalTo(h2))
	})

	It("terminates when no host has any event left before the configured end time", func() {
		s, err := scheduler.New(scheduler.Config{
			NumWorkers: 1,
			Policy:     "global-single",
			EndTime:    simtimeOf(1_000_000_000),
		}, topo, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.AddHost(h1, 0)).To(Succeed())

		Expect(s.Run(context.Background())).To(Succeed())
	})

	It("rejects an event destined for a host the scheduler never registered", func() {
		s, err := scheduler.New(scheduler.Config{
			NumWorkers: 1,
			Policy:     "thread-single",
			EndTime:    simtimeOf(10),
		}, topo, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.AddHost(h1, 0)).To(Succeed())

		task := event.NewTask(func(obj, arg interface{}) {}, nil, nil, nil, nil)
		err = s.Push(event.New(simtimeOf(1), 1, 99, 0, task))
		Expect(err).To(HaveOccurred())
	})
})
