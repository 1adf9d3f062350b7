// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/stellar/go/xdr"

	"github.com/dotandev/preflight/internal/errors"
	"github.com/dotandev/preflight/internal/metrics"
	"github.com/dotandev/preflight/internal/preflight"
)

// footprintOptions describe the footprint either as one encoded
// LedgerFootprint or as a list of ledger keys.
type footprintOptions struct {
	ledger    ledgerOptions
	footprint string
	keys      []string
}

func (f *footprintOptions) bind(cmd *cobra.Command) {
	f.ledger.bind(cmd)
	flags := cmd.Flags()
	flags.StringVar(&f.footprint, "footprint", "", "Base64 XDR LedgerFootprint")
	flags.StringArrayVar(&f.keys, "key", nil, "Base64 XDR LedgerKey to include (repeatable)")
	cmd.MarkFlagsMutuallyExclusive("footprint", "key")
}

// encode returns the footprint XDR. Keys given with --key go to the
// read-only side for extensions and the read-write side for restores.
func (f *footprintOptions) encode(readWrite bool) ([]byte, error) {
	if f.footprint == "" && len(f.keys) == 0 {
		return nil, errors.WrapValidationError("one of --footprint or --key is required")
	}
	if f.footprint != "" {
		return preflight.DecodeXDRArg("ledger footprint", f.footprint)
	}

	keys := make([]xdr.LedgerKey, 0, len(f.keys))
	for _, k := range f.keys {
		var key xdr.LedgerKey
		if err := xdr.SafeUnmarshalBase64(k, &key); err != nil {
			return nil, errors.WrapDecodeFailed("ledger key", err)
		}
		keys = append(keys, key)
	}

	var fp xdr.LedgerFootprint
	if readWrite {
		fp.ReadWrite = keys
	} else {
		fp.ReadOnly = keys
	}
	out, err := fp.MarshalBinary()
	if err != nil {
		return nil, errors.WrapEncodeFailed("ledger footprint", err)
	}
	return out, nil
}

func newExtendTTLCmd(g *globalOptions) *cobra.Command {
	opts := &footprintOptions{}
	var (
		extendTo uint32
		rawOp    string
	)

	cmd := &cobra.Command{
		Use:   "extend-ttl",
		Short: "Preflight an ExtendFootprintTtl operation",
		Long: `Estimate the fee of extending the TTL of the read-only entries of a
footprint. Archived entries are restored first and reported separately.

Example:
  preflight extend-ttl --key AAAABg... --extend-to 500000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := rawOp
			if body == "" && !cmd.Flags().Changed("extend-to") {
				return errors.WrapValidationError("one of --extend-to or --op is required")
			}
			if body == "" {
				encoded, err := xdr.MarshalBase64(xdr.OperationBody{
					Type:                 xdr.OperationTypeExtendFootprintTtl,
					ExtendFootprintTtlOp: &xdr.ExtendFootprintTtlOp{ExtendTo: xdr.Uint32(extendTo)},
				})
				if err != nil {
					return errors.WrapEncodeFailed("operation body", err)
				}
				body = encoded
			}
			return runFootprintTTL(cmd, g, opts, body, false)
		},
	}

	opts.bind(cmd)
	cmd.Flags().Uint32Var(&extendTo, "extend-to", 0, "Number of ledgers the entries should live for")
	cmd.Flags().StringVar(&rawOp, "op", "", "Base64 XDR OperationBody, overrides --extend-to")
	return cmd
}

func newRestoreCmd(g *globalOptions) *cobra.Command {
	opts := &footprintOptions{}

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Preflight a RestoreFootprint operation",
		Long: `Estimate the fee of restoring the archived read-write entries of a
footprint.

Example:
  preflight restore --footprint AAAAAA... --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := xdr.MarshalBase64(xdr.OperationBody{
				Type:               xdr.OperationTypeRestoreFootprint,
				RestoreFootprintOp: &xdr.RestoreFootprintOp{},
			})
			if err != nil {
				return errors.WrapEncodeFailed("operation body", err)
			}
			return runFootprintTTL(cmd, g, opts, body, true)
		},
	}

	opts.bind(cmd)
	return cmd
}

func runFootprintTTL(cmd *cobra.Command, g *globalOptions, opts *footprintOptions, body string, readWrite bool) error {
	passphrase, err := g.cfg.Passphrase()
	if err != nil {
		return err
	}

	params := preflight.FootprintTTLParams{LedgerInfo: opts.ledger.params(passphrase)}
	if params.OperationBody, err = preflight.DecodeXDRArg("operation body", body); err != nil {
		return err
	}
	if params.Footprint, err = opts.encode(readWrite); err != nil {
		return err
	}

	s, err := g.openSession(opts.ledger.snapshotPath, metrics.Noop{})
	if err != nil {
		return err
	}
	defer s.Close()
	params.Handle = s.handle

	res := s.bridge.PreflightFootprintTTL(cmd.Context(), params)
	return printResult(cmd.OutOrStdout(), res, opts.ledger.jsonOutput)
}
