// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dotandev/preflight/internal/errors"
	"github.com/dotandev/preflight/internal/preflight"
)

// Validator validates a specific aspect of the configuration.
type Validator interface {
	Validate(cfg *Config) error
}

// NetworkValidator checks that the configured network is recognized.
// A custom passphrase lifts the restriction.
type NetworkValidator struct{}

func (v NetworkValidator) Validate(cfg *Config) error {
	if cfg.NetworkPassphrase != "" {
		return nil
	}
	if cfg.Network != "" && !validNetworks[string(cfg.Network)] {
		return errors.WrapInvalidNetwork(string(cfg.Network))
	}
	return nil
}

// LedgerStoreValidator checks the store backend and its path.
type LedgerStoreValidator struct{}

func (v LedgerStoreValidator) Validate(cfg *Config) error {
	switch cfg.LedgerStore.Type {
	case "", StoreMemory:
	case StoreSQLite, StoreLevelDB:
		if cfg.LedgerStore.Path == "" {
			return errors.WrapValidationError("ledger_store.path is required for " + cfg.LedgerStore.Type + " stores")
		}
	default:
		return errors.WrapValidationError("ledger_store.type must be one of: memory, sqlite, leveldb")
	}
	if cfg.LedgerStore.CacheSize < 0 {
		return errors.WrapValidationError("ledger_store.cache_size cannot be negative")
	}
	return nil
}

// SimulatorValidator checks that the simulator path, when set, looks valid.
type SimulatorValidator struct{}

func (v SimulatorValidator) Validate(cfg *Config) error {
	if cfg.SimulatorPath == "" {
		return nil
	}
	if !filepath.IsAbs(cfg.SimulatorPath) {
		return errors.WrapValidationError("simulator_path must be an absolute path")
	}
	return nil
}

// LogLevelValidator checks that the log level is a known value.
type LogLevelValidator struct{}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func (v LogLevelValidator) Validate(cfg *Config) error {
	if cfg.LogLevel != "" && !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return errors.WrapValidationError("log_level must be one of: trace, debug, info, warn, error")
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return errors.WrapValidationError("log_format must be one of: text, json")
	}
	return nil
}

// AuthModeValidator checks the default auth mode used when a request omits one.
type AuthModeValidator struct{}

func (v AuthModeValidator) Validate(cfg *Config) error {
	if cfg.DefaultAuthMode == "" {
		return nil
	}
	_, err := preflight.ParseAuthModeString(cfg.DefaultAuthMode)
	return err
}

// DaemonValidator checks the daemon listen port.
type DaemonValidator struct{}

func (v DaemonValidator) Validate(cfg *Config) error {
	if cfg.Daemon.Port < 0 || cfg.Daemon.Port > 65535 {
		return errors.WrapValidationError("daemon.port out of range: " + strconv.Itoa(cfg.Daemon.Port))
	}
	return nil
}

// PreflightWorkersValidator checks the daemon worker pool bounds.
type PreflightWorkersValidator struct{}

func (v PreflightWorkersValidator) Validate(cfg *Config) error {
	if cfg.PreflightWorkerCount < 0 {
		return errors.WrapValidationError("preflight_worker_count must not be negative: " + strconv.Itoa(cfg.PreflightWorkerCount))
	}
	if cfg.PreflightWorkerQueueSize < 0 {
		return errors.WrapValidationError("preflight_worker_queue_size must not be negative: " + strconv.Itoa(cfg.PreflightWorkerQueueSize))
	}
	return nil
}

// DefaultValidators returns the standard set of validators.
func DefaultValidators() []Validator {
	return []Validator{
		NetworkValidator{},
		LedgerStoreValidator{},
		SimulatorValidator{},
		LogLevelValidator{},
		AuthModeValidator{},
		DaemonValidator{},
		PreflightWorkersValidator{},
	}
}

// RunValidators executes each validator against the config, returning the
// first error encountered.
func RunValidators(cfg *Config, validators []Validator) error {
	for _, v := range validators {
		if err := v.Validate(cfg); err != nil {
			return err
		}
	}
	return nil
}
