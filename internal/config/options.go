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

// Package config implements spec.md §6's CLI surface as a component the
// core consumes structured options from — the XML scenario parser, the
// real CLI parser, and example-config generation all stay out of scope
// (spec.md §1); this package only defines the option struct they must
// fill in and the validation/reload machinery around it, in the
// teacher's config.Component idiom.
package config

import (
	libval "github.com/go-playground/validator/v10"
)

// Options is the post-parse shape of spec.md §6's CLI surface: every
// flag the core's interface to options consumes, keyed (mapstructure
// tag) by its hyphenated flag name, bound through viper so it may
// equally arrive from a flag, an env var, or a config file key.
type Options struct {
	Workers          int    `mapstructure:"workers" validate:"min=1"`
	Seed             int64  `mapstructure:"seed"`
	RunaheadMS       int64  `mapstructure:"runahead" validate:"min=0"`
	SchedulerPolicy  string `mapstructure:"scheduler-policy" validate:"oneof=global-single thread-single host-single host-steal thread-per-host thread-per-thread"`
	CPUThresholdUS   int64  `mapstructure:"cpu-threshold" validate:"min=0"`
	CPUPrecisionUS   int64  `mapstructure:"cpu-precision" validate:"min=0"`
	TCPWindows       int    `mapstructure:"tcp-windows" validate:"min=1"`
	TCPCongestion    string `mapstructure:"tcp-congestion-control" validate:"oneof=aimd reno cubic"`
	InterfaceBuffer  int    `mapstructure:"interface-buffer" validate:"min=1"`
	InterfaceBatchUS int64  `mapstructure:"interface-batch" validate:"min=0"`
	SocketSendBuffer int    `mapstructure:"socket-send-buffer" validate:"min=1"`
	SocketRecvBuffer int    `mapstructure:"socket-recv-buffer" validate:"min=1"`
	InterfaceQdisc   string `mapstructure:"interface-qdisc" validate:"oneof=fifo rr"`
	LogLevel         string `mapstructure:"log-level" validate:"oneof=debug info warn error"`

	DataDir string `mapstructure:"data-dir" validate:"omitempty"`
	LogPcap bool   `mapstructure:"log-pcap"`
}

// Default returns the options spec.md's CLI surface defaults to absent
// any override, matching the teacher's DefaultConfig convention of
// shipping a filled-in, already-valid struct.
func Default() *Options {
	return &Options{
		Workers:          1,
		Seed:             1,
		RunaheadMS:       0,
		SchedulerPolicy:  "thread-single",
		CPUThresholdUS:   0,
		CPUPrecisionUS:   0,
		TCPWindows:       65535,
		TCPCongestion:    "reno",
		InterfaceBuffer:  1024,
		InterfaceBatchUS: 0,
		SocketSendBuffer: 65536,
		SocketRecvBuffer: 65536,
		InterfaceQdisc:   "fifo",
		LogLevel:         "info",
	}
}

// Validate runs go-playground/validator against the struct tags above,
// in the same `validator.New().Struct(o)` idiom the teacher's
// ConfigNode.Validate uses.
func (o *Options) Validate() error {
	return libval.New().Struct(o)
}
