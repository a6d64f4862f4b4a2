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

package config

import (
	"path/filepath"
	"sync"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shadowsim/shadow/internal/shadowerr"
)

// CoreComponent binds spec.md §6's CLI surface to a *viper.Viper
// instance, in the teacher's RegisterFlag-then-BindPFlag idiom (see
// config/components/log/config.go): flags are registered once on the
// cobra command, bound to viper keys, and Start() decodes+validates the
// bound values into an Options snapshot other packages read via Options.
type CoreComponent struct {
	v *viper.Viper

	mu  sync.RWMutex
	opt *Options
}

// NewCoreComponent builds a CoreComponent bound to v. Pass viper.New()
// for a standalone run, or a shared instance if the caller also reads
// other config sections from the same file.
func NewCoreComponent(v *viper.Viper) *CoreComponent {
	if v == nil {
		v = viper.New()
	}
	return &CoreComponent{v: v}
}

func (c *CoreComponent) Type() string { return "core" }

func (c *CoreComponent) Dependencies() []string { return nil }

// RegisterFlag installs every spec.md §6 flag on cmd's persistent flag
// set and binds each to its viper key, so later calls to Start resolve
// values from flag > env > config-file > default in viper's normal
// precedence order.
func (c *CoreComponent) RegisterFlag(cmd *cobra.Command) error {
	d := Default()
	flags := cmd.PersistentFlags()

	flags.Int("workers", d.Workers, "number of worker goroutines draining event buckets")
	flags.Int64("seed", d.Seed, "master RNG seed")
	flags.Int64("runahead", d.RunaheadMS, "scheduler runahead window, in milliseconds")
	flags.String("scheduler-policy", d.SchedulerPolicy,
		"host->worker assignment strategy: global-single|thread-single|host-single|host-steal|thread-per-host|thread-per-thread")
	flags.Int64("cpu-threshold", d.CPUThresholdUS, "CPU delay floor below which processing time is not modeled, in microseconds")
	flags.Int64("cpu-precision", d.CPUPrecisionUS, "smallest nonzero CPU delay the model reports, in microseconds")
	flags.Int("tcp-windows", d.TCPWindows, "default TCP window size in bytes")
	flags.String("tcp-congestion-control", d.TCPCongestion, "congestion control algorithm: aimd|reno|cubic")
	flags.Int("interface-buffer", d.InterfaceBuffer, "per-interface qdisc buffer depth in packets")
	flags.Int64("interface-batch", d.InterfaceBatchUS, "interface send/receive batching window, in microseconds")
	flags.Int("socket-send-buffer", d.SocketSendBuffer, "default socket send buffer size in bytes")
	flags.Int("socket-recv-buffer", d.SocketRecvBuffer, "default socket receive buffer size in bytes")
	flags.String("interface-qdisc", d.InterfaceQdisc, "interface queueing discipline: fifo|rr")
	flags.String("log-level", d.LogLevel, "minimum log level: debug|info|warn|error")
	flags.String("data-dir", "", "persisted per-host state directory (defaults under the user's home directory)")
	flags.Bool("log-pcap", d.LogPcap, "write a pcap file per interface")

	for _, name := range []string{
		"workers", "seed", "runahead", "scheduler-policy", "cpu-threshold", "cpu-precision",
		"tcp-windows", "tcp-congestion-control", "interface-buffer", "interface-batch",
		"socket-send-buffer", "socket-recv-buffer", "interface-qdisc", "log-level", "data-dir", "log-pcap",
	} {
		if err := c.v.BindPFlag(name, flags.Lookup(name)); err != nil {
			return shadowerr.Wrap(shadowerr.CodeConfigInvalidOption, "bind flag "+name, err)
		}
	}
	return nil
}

// Start decodes every bound value into an Options struct and validates
// it; a missing --data-dir resolves under the user's home directory via
// mitchellh/go-homedir, the same lookup the teacher's cobra helper uses
// for its default config path.
func (c *CoreComponent) Start() error {
	return c.decodeAndValidate()
}

// Reload re-decodes and re-validates, for a fsnotify-triggered config
// file change (wired by the caller via viper.WatchConfig/OnConfigChange).
func (c *CoreComponent) Reload() error {
	return c.decodeAndValidate()
}

func (c *CoreComponent) Stop() {}

func (c *CoreComponent) decodeAndValidate() error {
	opt := &Options{
		Workers:          c.v.GetInt("workers"),
		Seed:             c.v.GetInt64("seed"),
		RunaheadMS:       c.v.GetInt64("runahead"),
		SchedulerPolicy:  c.v.GetString("scheduler-policy"),
		CPUThresholdUS:   c.v.GetInt64("cpu-threshold"),
		CPUPrecisionUS:   c.v.GetInt64("cpu-precision"),
		TCPWindows:       c.v.GetInt("tcp-windows"),
		TCPCongestion:    c.v.GetString("tcp-congestion-control"),
		InterfaceBuffer:  c.v.GetInt("interface-buffer"),
		InterfaceBatchUS: c.v.GetInt64("interface-batch"),
		SocketSendBuffer: c.v.GetInt("socket-send-buffer"),
		SocketRecvBuffer: c.v.GetInt("socket-recv-buffer"),
		InterfaceQdisc:   c.v.GetString("interface-qdisc"),
		LogLevel:         c.v.GetString("log-level"),
		DataDir:          c.v.GetString("data-dir"),
		LogPcap:          c.v.GetBool("log-pcap"),
	}

	if opt.DataDir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return shadowerr.Wrap(shadowerr.CodeConfigInvalidOption, "resolve home directory", err)
		}
		opt.DataDir = filepath.Join(home, ".shadow")
	}

	if err := opt.Validate(); err != nil {
		return shadowerr.Wrap(shadowerr.CodeConfigInvalidOption, "validate options", err)
	}

	c.mu.Lock()
	c.opt = opt
	c.mu.Unlock()
	return nil
}

// Options returns the most recently validated snapshot. Callers must
// call Start (or wait for Manager.Start) before reading it.
func (c *CoreComponent) Options() *Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opt
}
