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
	"github.com/spf13/viper"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shadowsim/shadow/internal/config"
)

var _ = Describe("CoreComponent", func() {
	var (
		cmd *cobra.Command
		v   *viper.Viper
		c   *config.CoreComponent
	)

	BeforeEach(func() {
		cmd = &cobra.Command{Use: "shadow"}
		v = viper.New()
		c = config.NewCoreComponent(v)
	})

	It("registers every flag and starts with validated defaults", func() {
		Expect(c.RegisterFlag(cmd)).To(Succeed())
		Expect(c.Start()).To(Succeed())

		opt := c.Options()
		Expect(opt).NotTo(BeNil())
		Expect(opt.Workers).To(Equal(1))
		Expect(opt.SchedulerPolicy).To(Equal("thread-single"))
		Expect(opt.TCPCongestion).To(Equal("reno"))
		Expect(opt.InterfaceQdisc).To(Equal("fifo"))
		Expect(opt.LogLevel).To(Equal("info"))
		Expect(opt.DataDir).NotTo(BeEmpty())
	})

	It("picks up a flag value bound before Start", func() {
		Expect(c.RegisterFlag(cmd)).To(Succeed())
		Expect(cmd.PersistentFlags().Set("workers", "8")).To(Succeed())
		Expect(cmd.PersistentFlags().Set("scheduler-policy", "host-steal")).To(Succeed())

		Expect(c.Start()).To(Succeed())
		opt := c.Options()
		Expect(opt.Workers).To(Equal(8))
		Expect(opt.SchedulerPolicy).To(Equal("host-steal"))
	})

	It("rejects an invalid bound value on Start", func() {
		Expect(c.RegisterFlag(cmd)).To(Succeed())
		Expect(cmd.PersistentFlags().Set("scheduler-policy", "bogus")).To(Succeed())
		Expect(c.Start()).To(HaveOccurred())
	})

	It("re-validates on Reload", func() {
		Expect(c.RegisterFlag(cmd)).To(Succeed())
		Expect(c.Start()).To(Succeed())

		v.Set("workers", 0)
		Expect(c.Reload()).To(HaveOccurred())
	})

	It("resolves a data directory under the home directory by default", func() {
		Expect(c.RegisterFlag(cmd)).To(Succeed())
		Expect(c.Start()).To(Succeed())
		Expect(c.Options().DataDir).To(HaveSuffix(".shadow"))
	})

	It("honors an explicit data-dir flag", func() {
		Expect(c.RegisterFlag(cmd)).To(Succeed())
		Expect(cmd.PersistentFlags().Set("data-dir", "/tmp/shadow-state")).To(Succeed())
		Expect(c.Start()).To(Succeed())
		Expect(c.Options().DataDir).To(Equal("/tmp/shadow-state"))
	})
})
