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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shadowsim/shadow/internal/config"
)

var _ = Describe("Options", func() {
	It("accepts the built-in defaults", func() {
		Expect(config.Default().Validate()).To(Succeed())
	})

	It("rejects an unknown scheduler policy", func() {
		o := config.Default()
		o.SchedulerPolicy = "round-robin"
		Expect(o.Validate()).To(HaveOccurred())
	})

	It("rejects an unknown congestion control algorithm", func() {
		o := config.Default()
		o.TCPCongestion = "bbr"
		Expect(o.Validate()).To(HaveOccurred())
	})

	It("rejects zero workers", func() {
		o := config.Default()
		o.Workers = 0
		Expect(o.Validate()).To(HaveOccurred())
	})

	It("rejects an unknown qdisc", func() {
		o := config.Default()
		o.InterfaceQdisc = "sfq"
		Expect(o.Validate()).To(HaveOccurred())
	})
})
