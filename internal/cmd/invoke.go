// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dotandev/preflight/internal/metrics"
	"github.com/dotandev/preflight/internal/preflight"
)

type invokeOptions struct {
	ledger   ledgerOptions
	op       string
	source   string
	leeway   uint64
	authMode string
	debug    bool
}

func newInvokeCmd(g *globalOptions) *cobra.Command {
	opts := &invokeOptions{}

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Preflight an InvokeHostFunction operation",
		Long: `Simulate an InvokeHostFunctionOp and report the resources, fee, auth
entries and events it needs. Archived entries read by the invocation are
listed with the cost of restoring them first.

Example:
  preflight invoke --snapshot ledger.json --op AAAAAA... --source GABC... --auth-mode record`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(cmd, g, opts)
		},
	}

	opts.ledger.bind(cmd)
	flags := cmd.Flags()
	flags.StringVar(&opts.op, "op", "", "Base64 XDR InvokeHostFunctionOp")
	flags.StringVar(&opts.source, "source", "", "Source account as a G... address or base64 XDR AccountId")
	flags.Uint64Var(&opts.leeway, "leeway", 0, "Extra CPU instructions to budget for (defaults to the configured value)")
	flags.StringVar(&opts.authMode, "auth-mode", "", "Authorization mode: enforce, record, record-allow-nonroot")
	flags.BoolVar(&opts.debug, "debug", false, "Collect diagnostic events")
	_ = cmd.MarkFlagRequired("op")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

func runInvoke(cmd *cobra.Command, g *globalOptions, opts *invokeOptions) error {
	cfg := g.cfg
	flags := cmd.Flags()

	passphrase, err := cfg.Passphrase()
	if err != nil {
		return err
	}

	params := preflight.InvokeHostFunctionParams{
		LedgerInfo:  opts.ledger.params(passphrase),
		EnableDebug: cfg.PreflightEnableDebug,
		ResourceConfig: preflight.ResourceConfig{
			InstructionLeeway: cfg.DefaultInstructionLeeway,
		},
	}
	if params.InvokeHostFunctionOp, err = preflight.DecodeXDRArg("invoke host function op", opts.op); err != nil {
		return err
	}
	if params.SourceAccount, err = preflight.DecodeSourceAccount(opts.source); err != nil {
		return err
	}

	authMode := cfg.DefaultAuthMode
	if flags.Changed("auth-mode") {
		authMode = opts.authMode
	}
	if authMode == "" {
		authMode = preflight.AuthModeEnforce.String()
	}
	if params.AuthMode, err = preflight.ParseAuthModeString(authMode); err != nil {
		return err
	}
	if flags.Changed("leeway") {
		params.ResourceConfig.InstructionLeeway = opts.leeway
	}
	if flags.Changed("debug") {
		params.EnableDebug = opts.debug
	}

	s, err := g.openSession(opts.ledger.snapshotPath, metrics.Noop{})
	if err != nil {
		return err
	}
	defer s.Close()
	params.Handle = s.handle

	res := s.bridge.PreflightInvokeHostFunction(cmd.Context(), params)
	return printResult(cmd.OutOrStdout(), res, opts.ledger.jsonOutput)
}
