// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/dotandev/preflight/internal/errors"
	"github.com/dotandev/preflight/internal/ledger"
	"github.com/dotandev/preflight/internal/logger"
	"github.com/dotandev/preflight/internal/metrics"
	"github.com/dotandev/preflight/internal/preflight"
	"github.com/dotandev/preflight/internal/simulator"
	"github.com/dotandev/preflight/internal/snapshot"
)

// supportedProtocols is the range the simulator binary is registered for.
const supportedProtocols = ">= 20"

// newEngine is replaced in tests.
var newEngine = func(simulatorPath string) (preflight.Engine, error) {
	return simulator.NewRunner(simulatorPath)
}

// ledgerOptions are the flags describing the ledger a command simulates
// against.
type ledgerOptions struct {
	protocol       uint32
	sequence       uint32
	timestamp      uint64
	baseReserve    uint32
	bucketListSize uint64
	snapshotPath   string
	jsonOutput     bool
}

func (l *ledgerOptions) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Uint32Var(&l.protocol, "protocol", 22, "Ledger protocol version")
	flags.Uint32Var(&l.sequence, "ledger-seq", 1, "Ledger sequence number to simulate at")
	flags.Uint64Var(&l.timestamp, "timestamp", 0, "Ledger close time in unix seconds (0 uses the current time)")
	flags.Uint32Var(&l.baseReserve, "base-reserve", 5_000_000, "Base reserve in stroops")
	flags.Uint64Var(&l.bucketListSize, "bucket-list-size", 0, "Bucket list size in bytes")
	flags.StringVar(&l.snapshotPath, "snapshot", "", "Load ledger entries from a snapshot file instead of the configured store")
	flags.BoolVar(&l.jsonOutput, "json", false, "Print the result as JSON")
}

func (l *ledgerOptions) params(passphrase string) preflight.LedgerInfoParams {
	ts := l.timestamp
	if ts == 0 {
		ts = uint64(time.Now().Unix())
	}
	return preflight.LedgerInfoParams{
		ProtocolVersion:   l.protocol,
		SequenceNumber:    l.sequence,
		Timestamp:         ts,
		BaseReserve:       l.baseReserve,
		BucketListSize:    l.bucketListSize,
		NetworkPassphrase: passphrase,
	}
}

// session owns the ledger store, its handle and the bridge for one command.
type session struct {
	store    *ledger.Store
	registry *ledger.Registry
	handle   ledger.Handle
	bridge   *preflight.Bridge

	closeOnce sync.Once
	closeErr  error
}

// openSession opens the ledger store, from snapshotPath when set, and
// registers the simulator engine.
func (o *globalOptions) openSession(snapshotPath string, recorder metrics.Recorder) (*session, error) {
	store, err := o.openStore(snapshotPath)
	if err != nil {
		return nil, err
	}

	engine, err := newEngine(o.cfg.SimulatorPath)
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := ledger.NewRegistry()
	bridge := preflight.NewBridge(registry, preflight.WithRecorder(recorder))
	if err := bridge.Register(supportedProtocols, engine); err != nil {
		store.Close()
		return nil, err
	}

	s := &session{
		store:    store,
		registry: registry,
		handle:   registry.Register(store),
		bridge:   bridge,
	}
	registerSessionCloseHook(s)
	return s, nil
}

func (o *globalOptions) openStore(snapshotPath string) (*ledger.Store, error) {
	cacheSize := o.cfg.LedgerStore.CacheSize
	if snapshotPath == "" {
		return ledger.Open(o.cfg.LedgerStore.Type, o.cfg.LedgerStore.Path, cacheSize)
	}

	snap, err := snapshot.Load(snapshotPath)
	if err != nil {
		return nil, err
	}
	store, err := ledger.Open(ledger.BackendMemory, "", cacheSize)
	if err != nil {
		return nil, err
	}
	n, err := snap.LoadInto(store)
	if err != nil {
		store.Close()
		return nil, err
	}
	logger.Logger.Debug("Snapshot loaded", "path", snapshotPath, "entries", n)
	return store, nil
}

// Close releases the handle and closes the store. It is safe to call more
// than once.
func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.registry.Release(s.handle)
		if err := s.store.Close(); err != nil {
			s.closeErr = errors.WrapLedgerStoreUnavailable(err)
		}
	})
	return s.closeErr
}
