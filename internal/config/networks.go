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

package config

import (
	"github.com/stellar/go/network"

	"github.com/dotandev/preflight/internal/errors"
)

const (
	futurenetPassphrase  = "Test SDF Future Network ; October 2022"
	standalonePassphrase = "Standalone Network ; February 2017"
)

// PassphraseFor returns the network passphrase of a well-known network.
func PassphraseFor(n Network) (string, error) {
	switch n {
	case NetworkPublic:
		return network.PublicNetworkPassphrase, nil
	case NetworkTestnet:
		return network.TestNetworkPassphrase, nil
	case NetworkFuturenet:
		return futurenetPassphrase, nil
	case NetworkStandalone:
		return standalonePassphrase, nil
	default:
		return "", errors.WrapInvalidNetwork(string(n))
	}
}

// Passphrase resolves the passphrase to simulate against. An explicit
// network_passphrase wins over the network name.
func (c *Config) Passphrase() (string, error) {
	if c.NetworkPassphrase != "" {
		return c.NetworkPassphrase, nil
	}
	if c.Network == "" {
		return PassphraseFor(defaultConfig.Network)
	}
	return PassphraseFor(c.Network)
}

// NetworkID is the SHA-256 of the resolved passphrase.
func (c *Config) NetworkID() ([32]byte, error) {
	passphrase, err := c.Passphrase()
	if err != nil {
		return [32]byte{}, err
	}
	return network.ID(passphrase), nil
}
