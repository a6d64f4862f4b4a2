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

package shim

import (
	"fmt"

	"github.com/hashicorp/go-version"

	"github.com/shadowsim/shadow/internal/shadowerr"
)

// CoreABIVersion is the version this core's plugin ABI implements.
// Bumped whenever FuncTable's shape changes incompatibly.
const CoreABIVersion = "1.0.0"

// NegotiateABI checks a plugin-declared version constraint (e.g.
// ">= 1.0.0, < 2.0.0") against CoreABIVersion at load time, via
// hashicorp/go-version — the same library the teacher's dependency
// bookkeeping uses for SemVer range checks. A plugin whose constraint the
// core fails is rejected before its entry point ever runs.
func NegotiateABI(requires string) (*version.Version, error) {
	core, err := version.NewVersion(CoreABIVersion)
	if err != nil {
		return nil, shadowerr.Wrap(shadowerr.CodePluginBadABI, "parse core ABI version", err)
	}

	if requires == "" {
		return core, nil
	}

	constraints, err := version.NewConstraint(requires)
	if err != nil {
		return nil, shadowerr.Wrap(shadowerr.CodePluginBadABI, fmt.Sprintf("parse plugin ABI constraint %q", requires), err)
	}

	if !constraints.Check(core) {
		return nil, shadowerr.New(shadowerr.CodePluginBadABI, "plugin requires ABI %q, core provides %s", requires, CoreABIVersion)
	}

	return core, nil
}
