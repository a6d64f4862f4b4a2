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

package scenario

import (
	"encoding/json"
	"os"

	"github.com/shadowsim/shadow/internal/shadowerr"
)

// rawEntry is the on-disk shape of one scenario entry: a type tag plus
// its loosely-typed field map, standing in for the external XML parser's
// post-parse struct tree spec.md §6 says the core consumes. JSON is the
// concrete on-disk format this core reads; encoding/json is the only
// reasonable way to get bytes into a generic map, the same boundary role
// mapstructure.Decode plays one step later turning that map into a typed
// struct.
type rawEntry struct {
	Type string                 `json:"type"`
	Raw  map[string]interface{} `json:"raw"`
}

// LoadFile reads a scenario file (a JSON array of {type, raw} entries)
// and decodes it into an ordered Action list.
func LoadFile(path string) ([]Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, shadowerr.Wrap(shadowerr.CodeConfigInvalidOption, "read scenario file "+path, err)
	}

	var entries []rawEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, shadowerr.Wrap(shadowerr.CodeConfigInvalidOption, "parse scenario file "+path, err)
	}

	decodeEntries := make([]struct {
		Type ActionType
		Raw  map[string]interface{}
	}, len(entries))
	for i, e := range entries {
		decodeEntries[i].Type = ActionType(e.Type)
		decodeEntries[i].Raw = e.Raw
	}

	return DecodeAll(decodeEntries)
}
