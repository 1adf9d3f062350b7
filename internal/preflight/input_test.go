// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package preflight

import (
	"encoding/base64"
	stderrors "errors"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotandev/preflight/internal/errors"
)

func TestDecodeSourceAccount(t *testing.T) {
	kp := keypair.MustRandom()
	id := xdr.MustAddress(kp.Address())
	want, err := id.MarshalBinary()
	require.NoError(t, err)

	fromAddress, err := DecodeSourceAccount(kp.Address())
	require.NoError(t, err)
	assert.Equal(t, want, fromAddress)

	fromXDR, err := DecodeSourceAccount(base64.StdEncoding.EncodeToString(want))
	require.NoError(t, err)
	assert.Equal(t, want, fromXDR)

	assert.Equal(t, kp.Address(), SourceAddress(fromXDR))
	assert.Empty(t, SourceAddress([]byte{0x01}))

	_, err = DecodeSourceAccount("not base64 at all!")
	assert.True(t, stderrors.Is(err, errors.ErrDecodeFailed))
}
