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
	"crypto/sha256"
	"testing"

	"github.com/stellar/go/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassphraseFor(t *testing.T) {
	p, err := PassphraseFor(NetworkPublic)
	require.NoError(t, err)
	assert.Equal(t, network.PublicNetworkPassphrase, p)

	p, err = PassphraseFor(NetworkTestnet)
	require.NoError(t, err)
	assert.Equal(t, network.TestNetworkPassphrase, p)

	_, err = PassphraseFor("mainnet")
	assert.Error(t, err)
}

func TestConfigPassphraseOverride(t *testing.T) {
	cfg := NewConfig(NetworkPublic)
	cfg.NetworkPassphrase = "Local Sandbox ; 2026"

	p, err := cfg.Passphrase()
	require.NoError(t, err)
	assert.Equal(t, "Local Sandbox ; 2026", p)
}

func TestConfigNetworkID(t *testing.T) {
	cfg := NewConfig(NetworkTestnet)

	id, err := cfg.NetworkID()
	require.NoError(t, err)
	assert.Equal(t, sha256.Sum256([]byte(network.TestNetworkPassphrase)), id)
}
