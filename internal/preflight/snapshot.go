// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package preflight

import (
	"github.com/stellar/go/xdr"

	"github.com/dotandev/preflight/internal/errors"
	"github.com/dotandev/preflight/internal/ledger"
)

type snapshotState int

const (
	snapshotLive snapshotState = iota
	snapshotPoisoned
)

// LedgerSnapshot reads entries from raw ledger storage for a single call.
//
// The first key encode, entry decode or storage failure poisons the
// snapshot: the cause is kept and that read, as well as every later one,
// returns errors.ErrStorageInternal without touching storage again. It is
// not safe for concurrent use.
type LedgerSnapshot struct {
	storage     ledger.Storage
	state       snapshotState
	internalErr error
}

func NewLedgerSnapshot(storage ledger.Storage) *LedgerSnapshot {
	return &LedgerSnapshot{storage: storage}
}

func (s *LedgerSnapshot) Get(key xdr.LedgerKey) (*EntryWithLiveUntil, error) {
	if s.state == snapshotPoisoned {
		return nil, errors.ErrStorageInternal
	}

	keyXDR, err := key.MarshalBinary()
	if err != nil {
		return nil, s.poison(errors.WrapEncodeFailed("ledger key", err))
	}

	raw, liveUntil, found, err := s.storage.GetLedgerEntry(keyXDR)
	if err != nil {
		return nil, s.poison(errors.WrapLedgerStoreUnavailable(err))
	}
	if !found {
		return nil, nil
	}

	var entry xdr.LedgerEntry
	if err := xdr.SafeUnmarshal(raw, &entry); err != nil {
		return nil, s.poison(errors.WrapDecodeFailed("ledger entry", err))
	}

	return &EntryWithLiveUntil{Entry: entry, LiveUntil: liveUntil}, nil
}

func (s *LedgerSnapshot) poison(cause error) error {
	if s.state == snapshotLive {
		s.state = snapshotPoisoned
		s.internalErr = cause
	}
	return errors.ErrStorageInternal
}

// Poisoned reports whether storage was found corrupt during this call.
func (s *LedgerSnapshot) Poisoned() bool {
	return s.state == snapshotPoisoned
}

// InternalError is the cause that poisoned the snapshot, if any.
func (s *LedgerSnapshot) InternalError() error {
	return s.internalErr
}
