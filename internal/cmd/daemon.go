// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dotandev/preflight/internal/daemon"
	"github.com/dotandev/preflight/internal/metrics"
	"github.com/dotandev/preflight/internal/preflight"
	"github.com/dotandev/preflight/internal/telemetry"
)

type daemonOptions struct {
	port         string
	authToken    string
	tracing      bool
	otlpURL      string
	snapshotPath string
}

func newDaemonCmd(g *globalOptions) *cobra.Command {
	opts := &daemonOptions{}

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start the preflight JSON-RPC server",
		Long: `Start a JSON-RPC 2.0 server answering preflight requests from the
configured ledger store.

Methods:
  - Preflight.InvokeHostFunction
  - Preflight.FootprintTTL

Example:
  preflight daemon --port 8080
  preflight daemon --snapshot ledger.json --auth-token secret123`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, g, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.port, "port", "p", "", "Port to listen on (defaults to the configured port)")
	flags.StringVar(&opts.authToken, "auth-token", "", "Authentication token for API access")
	flags.BoolVar(&opts.tracing, "tracing", false, "Enable OpenTelemetry tracing")
	flags.StringVar(&opts.otlpURL, "otlp-url", "", "OTLP exporter URL")
	flags.StringVar(&opts.snapshotPath, "snapshot", "", "Serve entries from a snapshot file instead of the configured store")
	return cmd
}

func runDaemon(cmd *cobra.Command, g *globalOptions, opts *daemonOptions) error {
	cfg := g.cfg
	flags := cmd.Flags()

	port := strconv.Itoa(cfg.Daemon.Port)
	if flags.Changed("port") {
		port = opts.port
	}
	authToken := cfg.Daemon.AuthToken
	if flags.Changed("auth-token") {
		authToken = opts.authToken
	}
	tracing := cfg.Tracing.Enabled || opts.tracing
	otlpURL := cfg.Tracing.ExporterURL
	if flags.Changed("otlp-url") {
		otlpURL = opts.otlpURL
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cleanup, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     tracing,
		ExporterURL: otlpURL,
		ServiceName: "preflight-daemon",
		Version:     Version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	registerShutdownHook("telemetry", func(context.Context) error {
		cleanup()
		return nil
	})

	passphrase, err := cfg.Passphrase()
	if err != nil {
		return err
	}
	authMode := preflight.AuthModeEnforce
	if cfg.DefaultAuthMode != "" {
		if authMode, err = preflight.ParseAuthModeString(cfg.DefaultAuthMode); err != nil {
			return err
		}
	}

	var (
		prom     *metrics.Prometheus
		recorder metrics.Recorder = metrics.Noop{}
	)
	if cfg.Daemon.MetricsEnabled {
		prom = metrics.NewPrometheus()
		recorder = prom
	}

	s, err := g.openSession(opts.snapshotPath, recorder)
	if err != nil {
		return err
	}
	defer s.Close()

	server := daemon.NewServer(s.bridge, s.handle, daemon.Config{
		AuthToken: authToken,
		Metrics:   prom,
		Workers:   cfg.PreflightWorkerCount,
		QueueSize: cfg.PreflightWorkerQueueSize,
		Defaults: daemon.Defaults{
			NetworkPassphrase: passphrase,
			EnableDebug:       cfg.PreflightEnableDebug,
			InstructionLeeway: cfg.DefaultInstructionLeeway,
			AuthMode:          authMode,
		},
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Starting preflight daemon on port %s\n", port)
	fmt.Fprintf(out, "Network: %s\n", cfg.Network)
	if authToken != "" {
		fmt.Fprintln(out, "Authentication: enabled")
	}
	if tracing {
		fmt.Fprintf(out, "Tracing: %s\n", otlpURL)
	}

	return server.Start(ctx, port)
}
