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

package scenario_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shadowsim/shadow/internal/scenario"
)

var _ = Describe("LoadFile", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("decodes an ordered list of entries from a JSON file", func() {
		path := filepath.Join(dir, "scenario.json")
		Expect(os.WriteFile(path, []byte(`[
			{"type": "create-topology", "raw": {"latency-cdf": "const:1000", "reliability": 0.99, "bw": 1024}},
			{"type": "create-host", "raw": {"id": "server", "quantity": 1}},
			{"type": "create-host", "raw": {"id": "client", "quantity": 2}},
			{"type": "kill-at", "raw": {"time": 60000}}
		]`), 0o600)).To(Succeed())

		actions, err := scenario.LoadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(actions).To(HaveLen(4))
		Expect(actions[0].Type).To(Equal(scenario.CreateTopologyAction))
		Expect(actions[3].Payload.(*scenario.KillAt).Time).To(Equal(uint64(60000)))
	})

	It("fails on an unreadable path", func() {
		_, err := scenario.LoadFile(filepath.Join(dir, "missing.json"))
		Expect(err).To(HaveOccurred())
	})

	It("fails on malformed JSON", func() {
		path := filepath.Join(dir, "bad.json")
		Expect(os.WriteFile(path, []byte("not json"), 0o600)).To(Succeed())
		_, err := scenario.LoadFile(path)
		Expect(err).To(HaveOccurred())
	})

	It("fails on an unknown action type inside the file", func() {
		path := filepath.Join(dir, "bad-action.json")
		Expect(os.WriteFile(path, []byte(`[{"type": "reticulate-splines", "raw": {}}]`), 0o600)).To(Succeed())
		_, err := scenario.LoadFile(path)
		Expect(err).To(HaveOccurred())
	})
})
