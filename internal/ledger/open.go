// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"github.com/dotandev/preflight/internal/errors"
	"github.com/dotandev/preflight/internal/logger"
)

// Backend names accepted by Open.
const (
	BackendMemory  = "memory"
	BackendSQLite  = "sqlite"
	BackendLevelDB = "leveldb"
)

// Open builds a Store on the named backend, optionally behind an LRU of
// cacheSize entries.
func Open(backend, path string, cacheSize int) (*Store, error) {
	var (
		kv  KV
		err error
	)
	switch backend {
	case "", BackendMemory:
		kv = NewMemoryKV()
	case BackendSQLite:
		kv, err = OpenSQLite(path)
	case BackendLevelDB:
		kv, err = OpenLevelDB(path)
	default:
		return nil, errors.WrapValidationError("unknown ledger store backend: " + backend)
	}
	if err != nil {
		return nil, errors.WrapLedgerStoreUnavailable(err)
	}

	if cacheSize > 0 {
		cached, err := NewCachedKV(kv, cacheSize)
		if err != nil {
			kv.Close()
			return nil, errors.WrapLedgerStoreUnavailable(err)
		}
		kv = cached
	}

	logger.Logger.Debug("Ledger store opened", "backend", backend, "path", path, "cache_size", cacheSize)
	return NewStore(kv), nil
}
