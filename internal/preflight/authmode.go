// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package preflight

import (
	"strconv"
	"strings"

	"github.com/stellar/go/xdr"

	"github.com/dotandev/preflight/internal/errors"
)

// AuthMode selects how authorization is handled during an invocation.
type AuthMode uint32

const (
	// AuthModeEnforce checks exactly the entries supplied with the operation.
	AuthModeEnforce AuthMode = iota
	// AuthModeRecord records the authorization the invocation needs and
	// requires a root-level signer.
	AuthModeRecord
	// AuthModeRecordAllowNonroot records without the root-level requirement.
	AuthModeRecordAllowNonroot
)

var authModeNames = map[AuthMode]string{
	AuthModeEnforce:            "enforce",
	AuthModeRecord:             "record",
	AuthModeRecordAllowNonroot: "record-allow-nonroot",
}

func (m AuthMode) String() string {
	if name, ok := authModeNames[m]; ok {
		return name
	}
	return "AuthMode(" + strconv.FormatUint(uint64(m), 10) + ")"
}

func ParseAuthMode(v uint32) (AuthMode, error) {
	m := AuthMode(v)
	if _, ok := authModeNames[m]; !ok {
		return 0, errors.WrapInvalidAuthMode(strconv.FormatUint(uint64(v), 10))
	}
	return m, nil
}

func ParseAuthModeString(s string) (AuthMode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range authModeNames {
		if n == name {
			return m, nil
		}
	}
	return 0, errors.WrapInvalidAuthMode(s)
}

// AuthPolicy is the resolved authorization behaviour handed to the engine.
// Entries is only meaningful when Enforce is set; an empty list then means
// no authorization is valid.
type AuthPolicy struct {
	Enforce         bool
	Entries         []xdr.SorobanAuthorizationEntry
	RequireRootAuth bool
}

// Policy maps the mode to an AuthPolicy. Recording modes ignore entries.
func (m AuthMode) Policy(entries []xdr.SorobanAuthorizationEntry) AuthPolicy {
	switch m {
	case AuthModeRecord:
		return AuthPolicy{RequireRootAuth: true}
	case AuthModeRecordAllowNonroot:
		return AuthPolicy{}
	default:
		if entries == nil {
			entries = []xdr.SorobanAuthorizationEntry{}
		}
		return AuthPolicy{Enforce: true, Entries: entries}
	}
}
