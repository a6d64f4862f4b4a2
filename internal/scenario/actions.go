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

// Package scenario defines the post-parse action tree spec.md §6 says the
// core consumes from the (out-of-scope) external XML parser: "an ordered
// list of actions ... The core needs only the post-parse struct tree."
// Action payloads arrive as map[string]interface{} and are decoded into
// these typed structs with github.com/mitchellh/mapstructure, the same
// way the teacher's config packages decode loosely-typed option maps
// into typed Config structs (certificates/config.go, file/perm/model.go).
package scenario

import (
	"github.com/mitchellh/mapstructure"

	"github.com/shadowsim/shadow/internal/shadowerr"
)

// ActionType names one of the five action kinds spec.md §6 lists.
type ActionType string

const (
	CreatePluginAction   ActionType = "create-plugin"
	CreateTopologyAction ActionType = "create-topology"
	CreateHostAction     ActionType = "create-host"
	AddApplicationAction ActionType = "add-application"
	KillAtAction         ActionType = "kill-at"
)

// CreatePlugin registers a plugin shared object under an id.
type CreatePlugin struct {
	ID   string `mapstructure:"id"`
	Path string `mapstructure:"path"`
}

// CreateTopology configures the latency/reliability/bandwidth CDFs the
// topology oracle is built from.
type CreateTopology struct {
	LatencyCDF     string  `mapstructure:"latency-cdf"`
	Reliability    float64 `mapstructure:"reliability"`
	BandwidthKiBps int     `mapstructure:"bw"`
}

// CreateHost requests one or more hosts (Quantity) of the given shape.
type CreateHost struct {
	ID          string `mapstructure:"id"`
	IPHint      string `mapstructure:"ip-hint"`
	BWUpKiBps   int    `mapstructure:"bw-up"`
	BWDownKiBps int    `mapstructure:"bw-down"`
	CPUFreqMHz  int    `mapstructure:"cpu-freq"`
	Quantity    int    `mapstructure:"quantity"`
}

// AddApplication schedules a plugin instance's start/stop on every host
// matching HostPattern.
type AddApplication struct {
	HostPattern string `mapstructure:"host-pattern"`
	PluginID    string `mapstructure:"plugin-id"`
	StartTime   uint64 `mapstructure:"start-time"`
	StopTime    uint64 `mapstructure:"stop-time"`
	ArgString   string `mapstructure:"arg-string"`
	Preload     bool   `mapstructure:"preload"`
}

// KillAt forcibly ends the simulation at the given time.
type KillAt struct {
	Time uint64 `mapstructure:"time"`
}

// Action pairs an ActionType tag with its decoded, typed payload (one of
// the structs above).
type Action struct {
	Type    ActionType
	Payload interface{}
}

// Decode builds a typed Action from a (type, raw-fields) pair, as
// produced by the external parser for one scenario entry. Unknown field
// names in raw are ignored by mapstructure's default decoder, matching
// the XML parser's habit of passing through attributes the core does not
// use (e.g. presentation-only fields).
func Decode(actionType string, raw map[string]interface{}) (Action, error) {
	var payload interface{}

	switch ActionType(actionType) {
	case CreatePluginAction:
		payload = &CreatePlugin{}
	case CreateTopologyAction:
		payload = &CreateTopology{}
	case CreateHostAction:
		payload = &CreateHost{}
	case AddApplicationAction:
		payload = &AddApplication{}
	case KillAtAction:
		payload = &KillAt{}
	default:
		return Action{}, shadowerr.New(shadowerr.CodeConfigInvalidOption, "unknown scenario action type %q", actionType)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           payload,
	})
	if err != nil {
		return Action{}, shadowerr.Wrap(shadowerr.CodeConfigInvalidOption, "build scenario action decoder", err)
	}
	if err := dec.Decode(raw); err != nil {
		return Action{}, shadowerr.Wrap(shadowerr.CodeConfigInvalidOption, "decode scenario action", err)
	}

	return Action{Type: ActionType(actionType), Payload: payload}, nil
}

// DecodeAll decodes an ordered list of (type, raw) pairs into Actions,
// stopping at the first decode failure.
func DecodeAll(entries []struct {
	Type ActionType
	Raw  map[string]interface{}
}) ([]Action, error) {
	out := make([]Action, 0, len(entries))
	for _, e := range entries {
		a, err := Decode(string(e.Type), e.Raw)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
