// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"encoding/binary"
	"fmt"

	"github.com/stellar/go/xdr"

	"github.com/dotandev/preflight/internal/errors"
)

var (
	entryPrefix = []byte("e:")
	ttlPrefix   = []byte("t:")
)

// Store is a Storage over a KV backend. Entries are stored under their key
// XDR, TTLs under the hash of the key they govern.
type Store struct {
	kv KV
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

func entryKey(keyXDR []byte) []byte {
	return append(clone(entryPrefix), keyXDR...)
}

func ttlKey(hash xdr.Hash) []byte {
	return append(clone(ttlPrefix), hash[:]...)
}

// GetLedgerEntry returns a copy of the stored entry and its live-until ledger.
func (s *Store) GetLedgerEntry(keyXDR []byte) ([]byte, *uint32, bool, error) {
	entry, found, err := s.kv.Get(entryKey(keyXDR))
	if err != nil {
		return nil, nil, false, err
	}
	if !found {
		return nil, nil, false, nil
	}

	raw, found, err := s.kv.Get(ttlKey(KeyHash(keyXDR)))
	if err != nil {
		return nil, nil, false, err
	}
	if !found {
		return clone(entry), nil, true, nil
	}
	if len(raw) != 4 {
		return nil, nil, false, fmt.Errorf("malformed ttl record of %d bytes", len(raw))
	}
	liveUntil := binary.BigEndian.Uint32(raw)
	return clone(entry), &liveUntil, true, nil
}

// Put stores an entry under its derived key. TTL entries update the
// live-until ledger of the entry they refer to.
func (s *Store) Put(entry xdr.LedgerEntry) error {
	if entry.Data.Type == xdr.LedgerEntryTypeTtl && entry.Data.Ttl != nil {
		return s.putTTLHash(entry.Data.Ttl.KeyHash, uint32(entry.Data.Ttl.LiveUntilLedgerSeq))
	}

	key, err := LedgerKeyFromEntry(entry)
	if err != nil {
		return err
	}
	keyXDR, err := key.MarshalBinary()
	if err != nil {
		return errors.WrapEncodeFailed("ledger key", err)
	}
	entryXDR, err := entry.MarshalBinary()
	if err != nil {
		return errors.WrapEncodeFailed("ledger entry", err)
	}
	return s.PutRaw(keyXDR, entryXDR)
}

// PutRaw stores already encoded bytes without checking them.
func (s *Store) PutRaw(keyXDR, entryXDR []byte) error {
	return s.kv.Put(entryKey(keyXDR), entryXDR)
}

// PutTTL sets the live-until ledger of a contract data or code key.
func (s *Store) PutTTL(key xdr.LedgerKey, liveUntil uint32) error {
	if !HasTTL(key) {
		return errors.WrapValidationError("ledger key of type " + key.Type.String() + " has no TTL")
	}
	keyXDR, err := key.MarshalBinary()
	if err != nil {
		return errors.WrapEncodeFailed("ledger key", err)
	}
	return s.putTTLHash(KeyHash(keyXDR), liveUntil)
}

func (s *Store) putTTLHash(hash xdr.Hash, liveUntil uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], liveUntil)
	return s.kv.Put(ttlKey(hash), buf[:])
}

// Delete removes an entry and its TTL.
func (s *Store) Delete(key xdr.LedgerKey) error {
	keyXDR, err := key.MarshalBinary()
	if err != nil {
		return errors.WrapEncodeFailed("ledger key", err)
	}
	if err := s.kv.Delete(entryKey(keyXDR)); err != nil {
		return err
	}
	return s.kv.Delete(ttlKey(KeyHash(keyXDR)))
}

// Entries walks all stored entries in key order.
func (s *Store) Entries(fn func(keyXDR, entryXDR []byte, liveUntil *uint32) error) error {
	return s.kv.Iterate(entryPrefix, func(k, v []byte) error {
		keyXDR := k[len(entryPrefix):]
		_, liveUntil, _, err := s.GetLedgerEntry(keyXDR)
		if err != nil {
			return err
		}
		return fn(clone(keyXDR), clone(v), liveUntil)
	})
}

func (s *Store) Close() error {
	return s.kv.Close()
}
