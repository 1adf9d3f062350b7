// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/dotandev/preflight/internal/errors"
)

const envPrefix = "PREFLIGHT"

type Network string

const (
	NetworkPublic     Network = "public"
	NetworkTestnet    Network = "testnet"
	NetworkFuturenet  Network = "futurenet"
	NetworkStandalone Network = "standalone"
)

var validNetworks = map[string]bool{
	string(NetworkPublic):     true,
	string(NetworkTestnet):    true,
	string(NetworkFuturenet):  true,
	string(NetworkStandalone): true,
}

// Ledger store backends.
const (
	StoreMemory  = "memory"
	StoreSQLite  = "sqlite"
	StoreLevelDB = "leveldb"
)

type LedgerStoreConfig struct {
	Type string `mapstructure:"type" toml:"type"`
	Path string `mapstructure:"path" toml:"path"`
	// CacheSize is the number of raw entries kept in the read-through LRU.
	// Zero disables the cache.
	CacheSize int `mapstructure:"cache_size" toml:"cache_size"`
}

type DaemonConfig struct {
	Port           int    `mapstructure:"port" toml:"port"`
	AuthToken      string `mapstructure:"auth_token" toml:"auth_token"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled" toml:"metrics_enabled"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" toml:"enabled"`
	ExporterURL string `mapstructure:"exporter_url" toml:"exporter_url"`
}

// Config represents the general configuration for preflight
type Config struct {
	Network           Network           `mapstructure:"network" toml:"network"`
	NetworkPassphrase string            `mapstructure:"network_passphrase" toml:"network_passphrase"`
	LedgerStore       LedgerStoreConfig `mapstructure:"ledger_store" toml:"ledger_store"`
	SimulatorPath     string            `mapstructure:"simulator_path" toml:"simulator_path"`
	LogLevel          string            `mapstructure:"log_level" toml:"log_level"`
	LogFormat         string            `mapstructure:"log_format" toml:"log_format"`

	// PreflightEnableDebug turns on diagnostic event collection for requests
	// that do not set it themselves.
	PreflightEnableDebug     bool   `mapstructure:"preflight_enable_debug" toml:"preflight_enable_debug"`
	DefaultInstructionLeeway uint64 `mapstructure:"default_instruction_leeway" toml:"default_instruction_leeway"`
	DefaultAuthMode          string `mapstructure:"default_auth_mode" toml:"default_auth_mode"`

	// PreflightWorkerCount bounds concurrent daemon preflights and
	// PreflightWorkerQueueSize the requests allowed to wait for a worker.
	PreflightWorkerCount     int `mapstructure:"preflight_worker_count" toml:"preflight_worker_count"`
	PreflightWorkerQueueSize int `mapstructure:"preflight_worker_queue_size" toml:"preflight_worker_queue_size"`

	Daemon  DaemonConfig  `mapstructure:"daemon" toml:"daemon"`
	Tracing TracingConfig `mapstructure:"tracing" toml:"tracing"`
}

var defaultConfig = &Config{
	Network: NetworkTestnet,
	LedgerStore: LedgerStoreConfig{
		Type:      StoreMemory,
		CacheSize: 4096,
	},
	LogLevel:        "info",
	LogFormat:       "text",
	DefaultAuthMode: "enforce",

	PreflightWorkerCount:     runtime.NumCPU(),
	PreflightWorkerQueueSize: runtime.NumCPU(),

	Daemon: DaemonConfig{
		Port:           8080,
		MetricsEnabled: true,
	},
	Tracing: TracingConfig{
		ExporterURL: "http://localhost:4318",
	},
}

// GetConfigPath returns the path to the preflight configuration directory
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".preflight"), nil
}

// Load reads defaults, the first TOML file found, then PREFLIGHT_* environment
// variables. An explicit path must exist.
func Load(path string) (*Config, error) {
	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, errors.WrapConfigError("config file not found", err)
	}

	vp := viper.New()
	setDefaults(vp)

	if path != "" {
		if err := checkTOML(path); err != nil {
			return nil, err
		}
		vp.SetConfigFile(path)
		vp.SetConfigType("toml")
		if err := vp.ReadInConfig(); err != nil {
			return nil, errors.WrapConfigError("failed to read config file", err)
		}
	}

	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	cfg := &Config{}
	if err := vp.Unmarshal(cfg); err != nil {
		return nil, errors.WrapConfigError("failed to decode config", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func findConfigFile() string {
	paths := []string{
		".preflight.toml",
		filepath.Join(os.ExpandEnv("$HOME"), ".preflight.toml"),
		"/etc/preflight/config.toml",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// checkTOML decodes the file strictly so that type mismatches and unknown
// keys are reported before viper's lenient decoding runs.
func checkTOML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapConfigError("failed to read config file", err)
	}

	decoder := toml.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	var checker Config
	if err := decoder.Decode(&checker); err != nil {
		var decodeErr *toml.DecodeError
		if stderrors.As(err, &decodeErr) {
			return errors.WrapConfigError(fmt.Sprintf("invalid config %s:\n%s", path, decodeErr.String()), nil)
		}
		var strictErr *toml.StrictMissingError
		if stderrors.As(err, &strictErr) {
			return errors.WrapConfigError(fmt.Sprintf("unknown keys in %s:\n%s", path, strictErr.String()), nil)
		}
		return errors.WrapConfigError("invalid config "+path, err)
	}
	return nil
}

func setDefaults(vp *viper.Viper) {
	d := defaultConfig
	vp.SetDefault("network", string(d.Network))
	vp.SetDefault("network_passphrase", d.NetworkPassphrase)
	vp.SetDefault("ledger_store.type", d.LedgerStore.Type)
	vp.SetDefault("ledger_store.path", d.LedgerStore.Path)
	vp.SetDefault("ledger_store.cache_size", d.LedgerStore.CacheSize)
	vp.SetDefault("simulator_path", d.SimulatorPath)
	vp.SetDefault("log_level", d.LogLevel)
	vp.SetDefault("log_format", d.LogFormat)
	vp.SetDefault("preflight_enable_debug", d.PreflightEnableDebug)
	vp.SetDefault("default_instruction_leeway", d.DefaultInstructionLeeway)
	vp.SetDefault("default_auth_mode", d.DefaultAuthMode)
	vp.SetDefault("preflight_worker_count", d.PreflightWorkerCount)
	vp.SetDefault("preflight_worker_queue_size", d.PreflightWorkerQueueSize)
	vp.SetDefault("daemon.port", d.Daemon.Port)
	vp.SetDefault("daemon.auth_token", d.Daemon.AuthToken)
	vp.SetDefault("daemon.metrics_enabled", d.Daemon.MetricsEnabled)
	vp.SetDefault("tracing.enabled", d.Tracing.Enabled)
	vp.SetDefault("tracing.exporter_url", d.Tracing.ExporterURL)
}

func (c *Config) Validate() error {
	return RunValidators(c, DefaultValidators())
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Network: %s, Store: %s:%s, LogLevel: %s, AuthMode: %s}",
		c.Network, c.LedgerStore.Type, c.LedgerStore.Path, c.LogLevel, c.DefaultAuthMode,
	)
}

func DefaultConfig() *Config {
	cfg := *defaultConfig
	return &cfg
}

func NewConfig(network Network) *Config {
	cfg := DefaultConfig()
	cfg.Network = network
	return cfg
}

func (c *Config) WithSimulatorPath(path string) *Config {
	c.SimulatorPath = path
	return c
}

func (c *Config) WithLogLevel(level string) *Config {
	c.LogLevel = level
	return c
}

func (c *Config) WithLedgerStore(storeType, path string) *Config {
	c.LedgerStore.Type = storeType
	c.LedgerStore.Path = path
	return c
}
