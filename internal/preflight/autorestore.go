// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package preflight

import (
	"context"

	"github.com/stellar/go/xdr"

	"github.com/dotandev/preflight/internal/logger"
)

// AutoRestoringSnapshot hides entries whose TTL ran out before the current
// ledger and remembers their keys so that the cost of restoring them can be
// simulated afterwards.
type AutoRestoringSnapshot struct {
	inner   SnapshotSource
	ledger  LedgerInfo
	pending []xdr.LedgerKey
	seen    map[string]struct{}
}

func NewAutoRestoringSnapshot(inner SnapshotSource, li LedgerInfo) *AutoRestoringSnapshot {
	return &AutoRestoringSnapshot{
		inner:  inner,
		ledger: li,
		seen:   make(map[string]struct{}),
	}
}

func (s *AutoRestoringSnapshot) Get(key xdr.LedgerKey) (*EntryWithLiveUntil, error) {
	entry, err := s.inner.Get(key)
	if err != nil || entry == nil {
		return entry, err
	}
	if entry.LiveUntil == nil || *entry.LiveUntil >= s.ledger.SequenceNumber {
		return entry, nil
	}

	s.markForRestore(key)
	return nil, nil
}

// markForRestore skips keys that cannot be encoded since they could not be
// placed in a restore footprint either.
func (s *AutoRestoringSnapshot) markForRestore(key xdr.LedgerKey) {
	raw, err := key.MarshalBinary()
	if err != nil {
		logger.Logger.Warn("Skipping restore of unencodable ledger key", "type", key.Type, "error", err)
		return
	}
	if _, dup := s.seen[string(raw)]; dup {
		return
	}
	s.seen[string(raw)] = struct{}{}
	s.pending = append(s.pending, key)
}

// PendingRestore returns the expired keys read so far, in first-read order.
func (s *AutoRestoringSnapshot) PendingRestore() []xdr.LedgerKey {
	out := make([]xdr.LedgerKey, len(s.pending))
	copy(out, s.pending)
	return out
}

// SimulateRestoreKeys simulates restoring every pending key against the
// undecorated snapshot with the default adjustment. It returns nil when
// nothing expired.
func (s *AutoRestoringSnapshot) SimulateRestoreKeys(ctx context.Context, engine Engine, nc NetworkConfig) (*RestoreSimulation, error) {
	if len(s.pending) == 0 {
		return nil, nil
	}
	return engine.SimulateRestore(ctx, s.inner, nc, DefaultAdjustmentConfig(), s.ledger, s.PendingRestore())
}
