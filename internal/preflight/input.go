// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package preflight

import (
	"encoding/base64"
	"strings"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"

	"github.com/dotandev/preflight/internal/errors"
)

// DecodeXDRArg decodes a base64 XDR argument supplied over a text transport.
func DecodeXDRArg(what, b64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, errors.WrapDecodeFailed(what, err)
	}
	return raw, nil
}

// DecodeSourceAccount accepts either a G... account address or a base64 XDR
// AccountId and returns the XDR AccountId.
func DecodeSourceAccount(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if !strkey.IsValidEd25519PublicKey(s) {
		return DecodeXDRArg("source account", s)
	}

	var id xdr.AccountId
	if err := id.SetAddress(s); err != nil {
		return nil, errors.WrapDecodeFailed("source account", err)
	}
	raw, err := id.MarshalBinary()
	if err != nil {
		return nil, errors.WrapEncodeFailed("source account", err)
	}
	return raw, nil
}

// SourceAddress renders an XDR AccountId as a G... address, or "" when it
// does not decode.
func SourceAddress(raw []byte) string {
	var id xdr.AccountId
	if err := xdr.SafeUnmarshal(raw, &id); err != nil {
		return ""
	}
	addr, err := id.GetAddress()
	if err != nil {
		return ""
	}
	return addr
}
