// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/require"
)

func accountEntry(t *testing.T, balance int64) xdr.LedgerEntry {
	t.Helper()
	acc := xdr.AccountEntry{
		AccountId: xdr.MustAddress(keypair.MustRandom().Address()),
		Balance:   xdr.Int64(balance),
	}
	return xdr.LedgerEntry{
		LastModifiedLedgerSeq: 10,
		Data: xdr.LedgerEntryData{
			Type:    xdr.LedgerEntryTypeAccount,
			Account: &acc,
		},
	}
}

func codeEntry(seed byte) xdr.LedgerEntry {
	code := xdr.ContractCodeEntry{
		Hash: xdr.Hash{seed},
		Code: []byte{0x00, 0x61, 0x73, 0x6d, seed},
	}
	return xdr.LedgerEntry{
		LastModifiedLedgerSeq: 10,
		Data: xdr.LedgerEntryData{
			Type:         xdr.LedgerEntryTypeContractCode,
			ContractCode: &code,
		},
	}
}

func mustKeyXDR(t *testing.T, entry xdr.LedgerEntry) (xdr.LedgerKey, []byte) {
	t.Helper()
	key, err := LedgerKeyFromEntry(entry)
	require.NoError(t, err)
	raw, err := key.MarshalBinary()
	require.NoError(t, err)
	return key, raw
}
