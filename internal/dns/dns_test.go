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

package dns_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shadowsim/shadow/internal/dns"
)

var _ = Describe("Resolver", func() {
	It("assigns address ids deterministically in registration order", func() {
		r := dns.New()
		id1, err := r.Register("alpha", 0x0A000001)
		Expect(err).NotTo(HaveOccurred())
		id2, err := r.Register("beta", 0x0A000002)
		Expect(err).NotTo(HaveOccurred())

		Expect(id1).To(Equal(dns.AddressID(1)))
		Expect(id2).To(Equal(dns.AddressID(2)))
	})

	It("resolves name, IPv4 and id bidirectionally", func() {
		r := dns.New()
		id, err := r.Register("alpha", 0x0A000001)
		Expect(err).NotTo(HaveOccurred())

		gotID, gotIP, err := r.LookupName("alpha")
		Expect(err).NotTo(HaveOccurred())
		Expect(gotID).To(Equal(id))
		Expect(gotIP).To(Equal(uint32(0x0A000001)))

		gotID2, gotName, err := r.LookupIPv4(0x0A000001)
		Expect(err).NotTo(HaveOccurred())
		Expect(gotID2).To(Equal(id))
		Expect(gotName).To(Equal("alpha"))

		gotName2, gotIP2, err := r.LookupID(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(gotName2).To(Equal("alpha"))
		Expect(gotIP2).To(Equal(uint32(0x0A000001)))
	})

	It("rejects a duplicate name or IPv4 registration", func() {
		r := dns.New()
		_, err := r.Register("alpha", 0x0A000001)
		Expect(err).NotTo(HaveOccurred())

		_, err = r.Register("alpha", 0x0A000002)
		Expect(err).To(HaveOccurred())

		_, err = r.Register("gamma", 0x0A000001)
		Expect(err).To(HaveOccurred())
	})

	It("surfaces an unknown name as EAI_NONAME-equivalent", func() {
		r := dns.New()
		_, _, err := r.LookupName("missing")
		Expect(err).To(HaveOccurred())
	})
})
