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

// Command shadow is the simulator's CLI entrypoint: it registers the
// core config component on a cobra command, validates the bound
// options, builds a simulation from a scenario file, and runs it to
// completion, serving Prometheus metrics over HTTP for the run's
// duration. Wiring lives at this single point the way the teacher's
// cobra package centralizes flag registration and command execution.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/hashicorp/go-uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/shadowsim/shadow/internal/config"
	"github.com/shadowsim/shadow/internal/runner"
	"github.com/shadowsim/shadow/internal/scenario"
	"github.com/shadowsim/shadow/internal/scheduler"
	"github.com/shadowsim/shadow/internal/shadowerr"
	"github.com/shadowsim/shadow/internal/shadowlog"
)

var metricsAddr string

func newRootCommand() *cobra.Command {
	v := viper.New()
	core := config.NewCoreComponent(v)
	manager := config.NewManager()

	cmd := &cobra.Command{
		Use:           "shadow <scenario-file>",
		Short:         "discrete-event network simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := manager.Start(); err != nil {
				return err
			}
			return runScenario(args[0], core.Options(), metricsAddr)
		},
	}

	if err := manager.Register(core); err != nil {
		panic(err) // only reachable if core registers its own type twice
	}
	if err := manager.RegisterFlags(cmd); err != nil {
		panic(err)
	}
	cmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "",
		"address to serve Prometheus metrics on (e.g. :9090); empty disables the endpoint")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (json, yaml or toml)")
	cobra.OnInitialize(func() {
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
			_ = v.ReadInConfig()
		}
	})

	return cmd
}

var cfgFile string

func runScenario(path string, opt *config.Options, metricsAddr string) error {
	if opt == nil {
		return shadowerr.New(shadowerr.CodeConfigInvalidOption, "configuration was not started")
	}

	log := shadowlog.New(shadowlog.ParseLevel(opt.LogLevel), os.Stdout, true)

	// A run id tags the start and completion lines this function logs,
	// the way a request id threads through a multi-node hashicorp tool's
	// logs. The simulation below is built with the plain logger, so the
	// lines it logs itself do not carry the run id.
	runID, err := uuid.GenerateUUID()
	if err != nil {
		return shadowerr.Wrap(shadowerr.CodeConfigInvalidOption, "generate run id", err)
	}
	runLog := log.With(shadowlog.Fields{"run_id": runID})
	runLog.Infof("starting simulation run for %s", path)

	metrics := scheduler.NewMetrics()

	reg := prometheus.NewRegistry()
	if err := runner.RegisterMetrics(reg, metrics); err != nil {
		return err
	}

	var server *http.Server
	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			_ = server.ListenAndServe()
		}()
		defer func() { _ = server.Close() }()
	}

	actions, err := scenario.LoadFile(path)
	if err != nil {
		return err
	}

	sim, err := runner.Build(opt, metrics, log, actions)
	if err != nil {
		return err
	}

	if err := runner.Run(context.Background(), sim); err != nil {
		return err
	}

	runLog.Infof("simulation complete")
	return nil
}

// exitCode maps a run error to spec.md §6's CLI exit-code contract: 0 on
// clean completion, non-zero on configuration error, plugin load
// failure, or an error-level log event surfaced as a shadowerr.Error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var se *shadowerr.Error
	if ok := asShadowErr(err, &se); ok {
		return int(se.Code())%100 + 1
	}
	return 1
}

func asShadowErr(err error, target **shadowerr.Error) bool {
	for err != nil {
		if se, ok := err.(*shadowerr.Error); ok {
			*target = se
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "shadow:", err)
	os.Exit(exitCode(err))
}
