// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"crypto/sha256"

	"github.com/stellar/go/xdr"

	"github.com/dotandev/preflight/internal/errors"
)

// KeyHash is the SHA-256 of a ledger key's XDR. TTL entries are keyed by it.
func KeyHash(keyXDR []byte) xdr.Hash {
	return xdr.Hash(sha256.Sum256(keyXDR))
}

// HasTTL reports whether entries under the key carry a live-until ledger.
func HasTTL(key xdr.LedgerKey) bool {
	return key.Type == xdr.LedgerEntryTypeContractData || key.Type == xdr.LedgerEntryTypeContractCode
}

// TTLKey returns the key of the TTL entry governing key.
func TTLKey(key xdr.LedgerKey) (xdr.LedgerKey, error) {
	if !HasTTL(key) {
		return xdr.LedgerKey{}, errors.WrapValidationError("ledger key of type " + key.Type.String() + " has no TTL")
	}
	keyXDR, err := key.MarshalBinary()
	if err != nil {
		return xdr.LedgerKey{}, errors.WrapEncodeFailed("ledger key", err)
	}
	return xdr.LedgerKey{
		Type: xdr.LedgerEntryTypeTtl,
		Ttl:  &xdr.LedgerKeyTtl{KeyHash: KeyHash(keyXDR)},
	}, nil
}

// LedgerKeyFromEntry derives the key under which an entry is stored.
func LedgerKeyFromEntry(entry xdr.LedgerEntry) (xdr.LedgerKey, error) {
	data := entry.Data
	switch data.Type {
	case xdr.LedgerEntryTypeAccount:
		if data.Account != nil {
			return xdr.LedgerKey{
				Type:    xdr.LedgerEntryTypeAccount,
				Account: &xdr.LedgerKeyAccount{AccountId: data.Account.AccountId},
			}, nil
		}

	case xdr.LedgerEntryTypeTrustline:
		if data.TrustLine != nil {
			return xdr.LedgerKey{
				Type: xdr.LedgerEntryTypeTrustline,
				TrustLine: &xdr.LedgerKeyTrustLine{
					AccountId: data.TrustLine.AccountId,
					Asset:     data.TrustLine.Asset,
				},
			}, nil
		}

	case xdr.LedgerEntryTypeContractData:
		if data.ContractData != nil {
			return xdr.LedgerKey{
				Type: xdr.LedgerEntryTypeContractData,
				ContractData: &xdr.LedgerKeyContractData{
					Contract:   data.ContractData.Contract,
					Key:        data.ContractData.Key,
					Durability: data.ContractData.Durability,
				},
			}, nil
		}

	case xdr.LedgerEntryTypeContractCode:
		if data.ContractCode != nil {
			return xdr.LedgerKey{
				Type:         xdr.LedgerEntryTypeContractCode,
				ContractCode: &xdr.LedgerKeyContractCode{Hash: data.ContractCode.Hash},
			}, nil
		}

	case xdr.LedgerEntryTypeConfigSetting:
		if data.ConfigSetting != nil {
			return xdr.LedgerKey{
				Type: xdr.LedgerEntryTypeConfigSetting,
				ConfigSetting: &xdr.LedgerKeyConfigSetting{
					ConfigSettingId: data.ConfigSetting.ConfigSettingId,
				},
			}, nil
		}

	case xdr.LedgerEntryTypeTtl:
		if data.Ttl != nil {
			return xdr.LedgerKey{
				Type: xdr.LedgerEntryTypeTtl,
				Ttl:  &xdr.LedgerKeyTtl{KeyHash: data.Ttl.KeyHash},
			}, nil
		}
	}

	return xdr.LedgerKey{}, errors.WrapValidationError("unsupported or empty ledger entry of type " + data.Type.String())
}
