// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package ledger provides the raw ledger storage that preflight snapshots read
// from: key-value backends, the Store that resolves entries and their TTLs,
// and the handle registry through which callers hand storage to the bridge.
package ledger

// Storage is the raw accessor behind a ledger snapshot handle. Keys and
// entries are XDR encoded. liveUntil is nil for entries without a TTL.
type Storage interface {
	GetLedgerEntry(keyXDR []byte) (entryXDR []byte, liveUntil *uint32, found bool, err error)
}

// KV is a byte-level key-value backend.
type KV interface {
	Get(key []byte) ([]byte, bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Iterate calls fn for every key with the given prefix in key order.
	// Returning an error from fn stops the iteration.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// StorageFunc adapts a function to the Storage interface.
type StorageFunc func(keyXDR []byte) ([]byte, *uint32, bool, error)

func (f StorageFunc) GetLedgerEntry(keyXDR []byte) ([]byte, *uint32, bool, error) {
	return f(keyXDR)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// prefixEnd returns the smallest key greater than every key with the prefix,
// or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
