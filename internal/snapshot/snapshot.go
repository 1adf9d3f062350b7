// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package snapshot

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/stellar/go/xdr"

	"github.com/dotandev/preflight/internal/errors"
	"github.com/dotandev/preflight/internal/ledger"
)

// LedgerEntryTuple represents a (Key, Value) pair where both are Base64 XDR strings.
// An optional third element carries the live-until ledger sequence in decimal.
type LedgerEntryTuple []string

// Snapshot represents the structure of a soroban-cli compatible snapshot file.
// strict schema compatibility: "ledgerEntries" key containing list of tuples.
type Snapshot struct {
	LedgerEntries []LedgerEntryTuple `json:"ledgerEntries"`
}

// LoadInto decodes every tuple and writes it to store. It returns the number
// of entries written.
func (s *Snapshot) LoadInto(store *ledger.Store) (int, error) {
	n := 0
	for i, tuple := range s.LedgerEntries {
		if len(tuple) < 2 || len(tuple) > 3 {
			return n, errors.WrapValidationError(fmt.Sprintf("ledgerEntries[%d]: expected 2 or 3 elements, got %d", i, len(tuple)))
		}

		var key xdr.LedgerKey
		if err := xdr.SafeUnmarshalBase64(tuple[0], &key); err != nil {
			return n, errors.WrapDecodeFailed(fmt.Sprintf("ledgerEntries[%d] key", i), err)
		}
		var entry xdr.LedgerEntry
		if err := xdr.SafeUnmarshalBase64(tuple[1], &entry); err != nil {
			return n, errors.WrapDecodeFailed(fmt.Sprintf("ledgerEntries[%d] entry", i), err)
		}

		if entry.Data.Type == xdr.LedgerEntryTypeTtl {
			if err := store.Put(entry); err != nil {
				return n, err
			}
		} else {
			keyXDR, _ := base64.StdEncoding.DecodeString(tuple[0])
			entryXDR, _ := base64.StdEncoding.DecodeString(tuple[1])
			if err := store.PutRaw(keyXDR, entryXDR); err != nil {
				return n, err
			}
		}

		if len(tuple) == 3 {
			liveUntil, err := strconv.ParseUint(tuple[2], 10, 32)
			if err != nil {
				return n, errors.WrapValidationError(fmt.Sprintf("ledgerEntries[%d]: invalid live-until %q", i, tuple[2]))
			}
			if err := store.PutTTL(key, uint32(liveUntil)); err != nil {
				return n, err
			}
		}
		n++
	}
	return n, nil
}

// FromStore dumps every entry in store into a snapshot.
func FromStore(store *ledger.Store) (*Snapshot, error) {
	entries := make([]LedgerEntryTuple, 0)
	err := store.Entries(func(keyXDR, entryXDR []byte, liveUntil *uint32) error {
		tuple := LedgerEntryTuple{
			base64.StdEncoding.EncodeToString(keyXDR),
			base64.StdEncoding.EncodeToString(entryXDR),
		}
		if liveUntil != nil {
			tuple = append(tuple, strconv.FormatUint(uint64(*liveUntil), 10))
		}
		entries = append(entries, tuple)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return &Snapshot{LedgerEntries: entries}, nil
}

// Load reads a snapshot from a JSON file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot JSON: %w", err)
	}

	return &snap, nil
}

// Save writes a snapshot to a JSON file with indentation for readability.
// Entries are written sorted by key.
func Save(path string, snap *Snapshot) error {
	if snap == nil {
		snap = &Snapshot{}
	}
	out := &Snapshot{LedgerEntries: make([]LedgerEntryTuple, len(snap.LedgerEntries))}
	copy(out.LedgerEntries, snap.LedgerEntries)
	sortEntries(out.LedgerEntries)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot file: %w", err)
	}

	return nil
}

func sortEntries(entries []LedgerEntryTuple) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].key() < entries[j].key()
	})
}

func (t LedgerEntryTuple) key() string {
	if len(t) == 0 {
		return ""
	}
	return t[0]
}
