// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotandev/preflight/internal/config"
	"github.com/dotandev/preflight/internal/logger"
	"github.com/dotandev/preflight/internal/shutdown"
)

// globalOptions are the persistent flags and the configuration they
// resolve to before any subcommand runs.
type globalOptions struct {
	configPath    string
	logLevel      string
	logFormat     string
	network       string
	storeType     string
	storePath     string
	simulatorPath string

	cfg *config.Config
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "preflight",
		Short: "Estimate the resources of Soroban operations before submission",
		Long: `Preflight replays a Soroban operation against a ledger snapshot in
simulation mode and reports the minimum resource fee, the footprint,
authorization entries, diagnostic events and the cost of restoring any
archived entries the operation reads.

Examples:
  preflight invoke --snapshot ledger.json --op AAAA... --source GABC...
  preflight extend-ttl --footprint AAAA... --extend-to 500000
  preflight restore --footprint AAAA... --json
  preflight snapshot import ledger.json
  preflight daemon --port 8080`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a TOML config file")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format (text, json)")
	flags.StringVarP(&opts.network, "network", "n", "", "Stellar network (public, testnet, futurenet, standalone)")
	flags.StringVar(&opts.storeType, "store", "", "Ledger store backend (memory, sqlite, leveldb)")
	flags.StringVar(&opts.storePath, "store-path", "", "Path of the sqlite or leveldb ledger store")
	flags.StringVar(&opts.simulatorPath, "simulator", "", "Path to the simulator binary")

	rootCmd.AddCommand(
		newInvokeCmd(opts),
		newExtendTTLCmd(opts),
		newRestoreCmd(opts),
		newSnapshotCmd(opts),
		newDaemonCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// load resolves defaults, config file, environment and then flags.
func (o *globalOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.WithLogLevel(o.logLevel)
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}
	if flags.Changed("network") {
		cfg.Network = config.Network(o.network)
		cfg.NetworkPassphrase = ""
	}
	if flags.Changed("store") || flags.Changed("store-path") {
		storeType := cfg.LedgerStore.Type
		if flags.Changed("store") {
			storeType = o.storeType
		}
		storePath := cfg.LedgerStore.Path
		if flags.Changed("store-path") {
			storePath = o.storePath
		}
		cfg.WithLedgerStore(storeType, storePath)
	}
	if flags.Changed("simulator") {
		cfg.WithSimulatorPath(o.simulatorPath)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	logger.SetOutput(cmd.ErrOrStderr(), cfg.LogFormat == "json")
	logger.Logger.Debug("Configuration loaded", "config", cfg.String())

	o.cfg = cfg
	return nil
}

// Execute runs the CLI until it finishes or an interrupt arrives.
// This is called by main.main().
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	coordinator := shutdown.NewCoordinator()
	setShutdownCoordinator(coordinator)
	defer clearShutdownCoordinator()

	rootCmd := NewRootCmd()
	return executeWithSignals(ctx, cancel, sigCh, coordinator, func(execCtx context.Context) error {
		return rootCmd.ExecuteContext(execCtx)
	})
}

func executeWithSignals(ctx context.Context, cancel context.CancelFunc, sigCh <-chan os.Signal, coordinator *shutdown.Coordinator, run func(context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		done <- run(ctx)
	}()

	select {
	case err := <-done:
		runShutdownHooksWithTimeout(coordinator, shutdownTimeout)
		return err
	case sig := <-sigCh:
		logger.Logger.Info("Received signal, shutting down", "signal", sig.String())
		cancel()
		runShutdownHooksWithTimeout(coordinator, shutdownTimeout)
		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			logger.Logger.Warn("Command did not stop before the shutdown timeout")
		}
		return ErrInterrupted
	}
}
