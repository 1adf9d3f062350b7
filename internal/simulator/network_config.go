// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package simulator

import (
	"fmt"

	"github.com/stellar/go/xdr"

	"github.com/dotandev/preflight/internal/errors"
	"github.com/dotandev/preflight/internal/preflight"
)

// NetworkConfig holds the ledger settings an engine needs beyond the caller
// supplied ledger info.
type NetworkConfig struct {
	BucketListSize   uint64 `json:"bucket_list_size"`
	MinTemporaryTTL  uint32 `json:"min_temporary_ttl"`
	MinPersistentTTL uint32 `json:"min_persistent_ttl"`
	MaxEntryTTL      uint32 `json:"max_entry_ttl"`
}

func (c *NetworkConfig) FillLedgerInfo(li *preflight.LedgerInfo) {
	li.MinTempEntryTTL = c.MinTemporaryTTL
	li.MinPersistentEntryTTL = c.MinPersistentTTL
	li.MaxEntryTTL = c.MaxEntryTTL
}

// DefaultNetworkConfig mirrors the state archival settings of pubnet.
func DefaultNetworkConfig(bucketListSize uint64) *NetworkConfig {
	return &NetworkConfig{
		BucketListSize:   bucketListSize,
		MinTemporaryTTL:  16,
		MinPersistentTTL: 2_073_600,
		MaxEntryTTL:      3_110_400,
	}
}

// StateArchivalKey is the ledger key of the CONFIG_SETTING_STATE_ARCHIVAL
// entry.
func StateArchivalKey() xdr.LedgerKey {
	return xdr.LedgerKey{
		Type: xdr.LedgerEntryTypeConfigSetting,
		ConfigSetting: &xdr.LedgerKeyConfigSetting{
			ConfigSettingId: xdr.ConfigSettingIdConfigSettingStateArchival,
		},
	}
}

// LoadNetworkConfig reads the state archival settings through src. A read
// failure is returned unchanged so that storage corruption keeps its class.
func LoadNetworkConfig(src preflight.SnapshotSource, bucketListSize uint64) (*NetworkConfig, error) {
	entry, err := src.Get(StateArchivalKey())
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: state archival config setting not found in ledger", errors.ErrSimulationFailed)
	}

	setting := entry.Entry.Data.ConfigSetting
	if setting == nil || setting.StateArchivalSettings == nil {
		return nil, fmt.Errorf("%w: config setting entry does not hold state archival settings", errors.ErrSimulationFailed)
	}

	archival := setting.StateArchivalSettings
	return &NetworkConfig{
		BucketListSize:   bucketListSize,
		MinTemporaryTTL:  uint32(archival.MinTemporaryTtl),
		MinPersistentTTL: uint32(archival.MinPersistentTtl),
		MaxEntryTTL:      uint32(archival.MaxEntryTtl),
	}, nil
}

// StateArchivalEntry builds the config setting entry LoadNetworkConfig reads.
// Used to seed snapshots of standalone networks.
func StateArchivalEntry(c *NetworkConfig) xdr.LedgerEntry {
	return xdr.LedgerEntry{
		Data: xdr.LedgerEntryData{
			Type: xdr.LedgerEntryTypeConfigSetting,
			ConfigSetting: &xdr.ConfigSettingEntry{
				ConfigSettingId: xdr.ConfigSettingIdConfigSettingStateArchival,
				StateArchivalSettings: &xdr.StateArchivalSettings{
					MaxEntryTtl:      xdr.Uint32(c.MaxEntryTTL),
					MinTemporaryTtl:  xdr.Uint32(c.MinTemporaryTTL),
					MinPersistentTtl: xdr.Uint32(c.MinPersistentTTL),
				},
			},
		},
	}
}
