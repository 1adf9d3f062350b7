// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package config

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/dotandev/preflight/internal/errors"
)

// --- NetworkValidator ---

func TestNetworkValidator_ValidNetworks(t *testing.T) {
	v := NetworkValidator{}
	for _, net := range []Network{NetworkPublic, NetworkTestnet, NetworkFuturenet, NetworkStandalone} {
		cfg := &Config{Network: net}
		if err := v.Validate(cfg); err != nil {
			t.Errorf("network %q should be valid: %v", net, err)
		}
	}
}

func TestNetworkValidator_EmptyAllowed(t *testing.T) {
	v := NetworkValidator{}
	if err := v.Validate(&Config{}); err != nil {
		t.Errorf("empty network should be allowed: %v", err)
	}
}

func TestNetworkValidator_InvalidNetwork(t *testing.T) {
	v := NetworkValidator{}
	cases := []string{"mainnet", "TESTNET", "Futurenet", "invalid", " testnet"}
	for _, net := range cases {
		cfg := &Config{Network: Network(net)}
		err := v.Validate(cfg)
		if err == nil {
			t.Errorf("network %q should be invalid", net)
			continue
		}
		if !stderrors.Is(err, errors.ErrInvalidNetwork) {
			t.Errorf("expected ErrInvalidNetwork for %q, got %v", net, err)
		}
	}
}

// --- LedgerStoreValidator ---

func TestLedgerStoreValidator(t *testing.T) {
	v := LedgerStoreValidator{}
	cases := []struct {
		store   LedgerStoreConfig
		wantErr bool
	}{
		{LedgerStoreConfig{}, false},
		{LedgerStoreConfig{Type: StoreMemory}, false},
		{LedgerStoreConfig{Type: StoreSQLite, Path: "/tmp/l.db"}, false},
		{LedgerStoreConfig{Type: StoreLevelDB}, true},
		{LedgerStoreConfig{Type: "bolt", Path: "/tmp/x"}, true},
		{LedgerStoreConfig{Type: StoreMemory, CacheSize: -1}, true},
	}
	for _, tc := range cases {
		err := v.Validate(&Config{LedgerStore: tc.store})
		if (err != nil) != tc.wantErr {
			t.Errorf("store %+v: expected error=%v, got %v", tc.store, tc.wantErr, err)
		}
	}
}

// --- SimulatorValidator ---

func TestSimulatorValidator_Empty(t *testing.T) {
	v := SimulatorValidator{}
	if err := v.Validate(&Config{}); err != nil {
		t.Errorf("empty simulator_path should be allowed: %v", err)
	}
}

func TestSimulatorValidator_AbsolutePath(t *testing.T) {
	v := SimulatorValidator{}
	if err := v.Validate(&Config{SimulatorPath: "/usr/local/bin/preflight-sim"}); err != nil {
		t.Errorf("absolute path should be valid: %v", err)
	}
}

func TestSimulatorValidator_RelativePath(t *testing.T) {
	v := SimulatorValidator{}
	err := v.Validate(&Config{SimulatorPath: "bin/preflight-sim"})
	if err == nil {
		t.Fatal("relative path should be rejected")
	}
	if !strings.Contains(err.Error(), "absolute") {
		t.Errorf("unexpected error message: %v", err)
	}
}

// --- LogLevelValidator ---

func TestLogLevelValidator_ValidLevels(t *testing.T) {
	v := LogLevelValidator{}
	for _, lvl := range []string{"trace", "debug", "info", "warn", "error", "INFO"} {
		if err := v.Validate(&Config{LogLevel: lvl}); err != nil {
			t.Errorf("log level %q should be valid: %v", lvl, err)
		}
	}
}

func TestLogLevelValidator_InvalidLevel(t *testing.T) {
	v := LogLevelValidator{}
	for _, lvl := range []string{"verbose", "fatal", "all"} {
		if err := v.Validate(&Config{LogLevel: lvl}); err == nil {
			t.Errorf("log level %q should be invalid", lvl)
		}
	}
}

// --- AuthModeValidator ---

func TestAuthModeValidator(t *testing.T) {
	v := AuthModeValidator{}
	for _, mode := range []string{"", "enforce", "record", "record-allow-nonroot"} {
		if err := v.Validate(&Config{DefaultAuthMode: mode}); err != nil {
			t.Errorf("auth mode %q should be valid: %v", mode, err)
		}
	}
	err := v.Validate(&Config{DefaultAuthMode: "skip"})
	if !stderrors.Is(err, errors.ErrInvalidAuthMode) {
		t.Errorf("expected ErrInvalidAuthMode, got %v", err)
	}
}

func TestRunValidators_StopsAtFirstError(t *testing.T) {
	cfg := &Config{Network: "bogus", LogLevel: "bogus"}
	err := RunValidators(cfg, DefaultValidators())
	if !stderrors.Is(err, errors.ErrInvalidNetwork) {
		t.Errorf("expected network error first, got %v", err)
	}
}

func TestPreflightWorkersValidator(t *testing.T) {
	v := PreflightWorkersValidator{}
	if err := v.Validate(&Config{}); err != nil {
		t.Errorf("zero workers should fall back to the default: %v", err)
	}
	if err := v.Validate(&Config{PreflightWorkerCount: 4, PreflightWorkerQueueSize: 16}); err != nil {
		t.Errorf("positive bounds should be valid: %v", err)
	}
	for _, cfg := range []*Config{
		{PreflightWorkerCount: -1},
		{PreflightWorkerQueueSize: -1},
	} {
		err := v.Validate(cfg)
		if !stderrors.Is(err, errors.ErrValidationError) {
			t.Errorf("expected validation error for %+v, got %v", cfg, err)
		}
	}
}
