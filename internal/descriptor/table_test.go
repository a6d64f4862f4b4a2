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

package descriptor_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shadowsim/shadow/internal/descriptor"
)

var _ = Describe("Table", func() {
	var tbl *descriptor.Table

	BeforeEach(func() {
		tbl = descriptor.NewTable()
	})

	It("hands out handles starting at MinDescriptor", func() {
		d := tbl.Open(descriptor.KindUDP, 0, nil)
		Expect(d.Handle()).To(Equal(descriptor.MinDescriptor))
	})

	It("reuses the freed handle for the next open, kernel-style", func() {
		var handles []descriptor.Handle
		for i := 0; i < 5; i++ {
			handles = append(handles, tbl.Open(descriptor.KindUDP, 0, nil).Handle())
		}

		Expect(tbl.Close(handles[2])).To(Succeed())

		next := tbl.Open(descriptor.KindUDP, 0, nil)
		Expect(next.Handle()).To(Equal(handles[2]))
	})

	It("fails Lookup for a closed or never-opened handle", func() {
		d := tbl.Open(descriptor.KindUDP, 0, nil)
		Expect(tbl.Close(d.Handle())).To(Succeed())

		_, err := tbl.Lookup(d.Handle())
		Expect(err).To(HaveOccurred())
	})

	It("runs the close hook only once refcount reaches zero", func() {
		closed := 0
		d := tbl.Open(descriptor.KindTCP, 0, func() { closed++ })
		d.Ref()

		Expect(tbl.Close(d.Handle())).To(Succeed())
		Expect(closed).To(Equal(0), "one outstanding reference should withhold the free")

		d.Release()
		Expect(closed).To(Equal(1))
	})
})

var _ = Describe("Descriptor status", func() {
	It("treats AdjustStatus with the same mask twice as a no-op on the second call", func() {
		d := descriptor.New(descriptor.MinDescriptor, descriptor.KindTCP, 0, nil)

		d.AdjustStatus(descriptor.StatusReadable, true)
		Expect(d.HasStatus(descriptor.StatusReadable)).To(BeTrue())

		d.AdjustStatus(descriptor.StatusReadable, true)
		Expect(d.HasStatus(descriptor.StatusReadable)).To(BeTrue())
	})

	It("clears ACTIVE and sets CLOSED on MarkClosed", func() {
		d := descriptor.New(descriptor.MinDescriptor, descriptor.KindTCP, 0, nil)
		d.MarkClosed()

		Expect(d.HasStatus(descriptor.StatusActive)).To(BeFalse())
		Expect(d.HasStatus(descriptor.StatusClosed)).To(BeTrue())
	})
})

var _ = Describe("Epoll", func() {
	It("reports a watched descriptor ready once its status matches the registered mask", func() {
		tbl := descriptor.NewTable()
		epollDesc := tbl.Open(descriptor.KindEpoll, 0, nil)
		e := descriptor.NewEpoll(epollDesc.Handle())
		epollDesc.SetExt(e)

		sock := tbl.Open(descriptor.KindUDP, 0, nil)
		e.Add(sock, descriptor.EpollIn)

		Expect(e.Empty()).To(BeTrue())

		sock.AdjustStatus(descriptor.StatusReadable, true)
		Expect(e.Wait()).To(ConsistOf(sock.Handle()))
	})

	It("unregisters itself from the watched descriptor when the table closes it", func() {
		tbl := descriptor.NewTable()
		epollDesc := tbl.Open(descriptor.KindEpoll, 0, nil)
		e := descriptor.NewEpoll(epollDesc.Handle())
		epollDesc.SetExt(e)

		sock := tbl.Open(descriptor.KindUDP, 0, nil)
		e.Add(sock, descriptor.EpollIn)

		Expect(tbl.Close(sock.Handle())).To(Succeed())
		Expect(sock.Listeners()).To(BeEmpty())
	})
})

var _ = Describe("Pipe", func() {
	It("marks the peer readable on write and clears it once drained", func() {
		tbl := descriptor.NewTable()
		da, db := descriptor.NewPipe(tbl)

		chA := da.Ext().(*descriptor.Channel)
		chB := db.Ext().(*descriptor.Channel)

		_, err := chA.Write([]byte("hello"))
		Expect(err).ToNot(HaveOccurred())

		Expect(db.HasStatus(descriptor.StatusReadable)).To(BeTrue())

		buf := make([]byte, 5)
		n, err := chB.Read(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(buf[:n]).To(Equal([]byte("hello")))

		Expect(db.HasStatus(descriptor.StatusReadable)).To(BeFalse())
	})

	It("grows past its real-host-sized starting capacity without colliding handles", func() {
		tbl := descriptor.NewTable()
		seen := make(map[descriptor.Handle]bool)
		for i := 0; i < 2000; i++ {
			d := tbl.Open(descriptor.KindChannel, 0, nil)
			Expect(seen[d.Handle()]).To(BeFalse())
			seen[d.Handle()] = true
		}
		Expect(seen).To(HaveLen(2000))
	})
})
