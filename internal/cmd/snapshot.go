// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotandev/preflight/internal/ledger"
	"github.com/dotandev/preflight/internal/logger"
	"github.com/dotandev/preflight/internal/simulator"
	"github.com/dotandev/preflight/internal/snapshot"
)

func newSnapshotCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Move ledger entries between snapshot files and the ledger store",
	}
	cmd.AddCommand(newSnapshotImportCmd(g), newSnapshotExportCmd(g))
	return cmd
}

func newSnapshotImportCmd(g *globalOptions) *cobra.Command {
	var withNetworkConfig bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load a snapshot file into the configured ledger store",
		Long: `Load the ledger entries of a snapshot file into the configured ledger
store. With --with-network-config the default state archival settings are
written too, for stores built from partial snapshots.

Example:
  preflight --store sqlite --store-path ledger.db snapshot import ledger.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := snapshot.Load(args[0])
			if err != nil {
				return err
			}

			store, err := ledger.Open(g.cfg.LedgerStore.Type, g.cfg.LedgerStore.Path, 0)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := snap.LoadInto(store)
			if err != nil {
				return err
			}
			if withNetworkConfig {
				if err := store.Put(simulator.StateArchivalEntry(simulator.DefaultNetworkConfig(0))); err != nil {
					return err
				}
				n++
			}

			logger.Logger.Info("Snapshot imported", "path", args[0], "entries", n, "store", g.cfg.LedgerStore.Type)
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries from %s\n", n, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&withNetworkConfig, "with-network-config", false, "Also write the default state archival settings")
	return cmd
}

func newSnapshotExportCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Write the configured ledger store to a snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ledger.Open(g.cfg.LedgerStore.Type, g.cfg.LedgerStore.Path, 0)
			if err != nil {
				return err
			}
			defer store.Close()

			snap, err := snapshot.FromStore(store)
			if err != nil {
				return err
			}
			if err := snapshot.Save(args[0], snap); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", len(snap.LedgerEntries), args[0])
			return nil
		},
	}
}
