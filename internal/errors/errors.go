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

package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison with errors.Is
var (
	// ErrStorageInternal is the fixed error handed to an engine once the ledger
	// storage of a call is known to be corrupt. Engines must halt on it.
	ErrStorageInternal = errors.New("storage internal error")

	ErrUnsupportedOperation   = errors.New("unsupported operation")
	ErrInvalidAuthMode        = errors.New("invalid auth mode")
	ErrInvalidResourceConfig  = errors.New("invalid resource config")
	ErrUnknownHandle          = errors.New("unknown ledger storage handle")
	ErrUnsupportedProtocol    = errors.New("unsupported protocol version")
	ErrDecodeFailed           = errors.New("failed to decode XDR")
	ErrEncodeFailed           = errors.New("failed to encode XDR")
	ErrSimulationFailed       = errors.New("simulation execution failed")
	ErrEngineFailure          = errors.New("engine failure")
	ErrSimulatorNotFound      = errors.New("simulator binary not found")
	ErrConfigError            = errors.New("configuration error")
	ErrValidationError        = errors.New("validation error")
	ErrInvalidNetwork         = errors.New("invalid network")
	ErrLedgerStoreUnavailable = errors.New("ledger store unavailable")
)

// Wrap functions for consistent error wrapping
func WrapStorageInternal(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageInternal, err)
}

func WrapUnsupportedOperation(msg string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedOperation, msg)
}

func WrapInvalidAuthMode(value string) error {
	return fmt.Errorf("%w: %s. Must be one of: enforce, record, record-allow-nonroot", ErrInvalidAuthMode, value)
}

func WrapInvalidResourceConfig(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidResourceConfig, msg)
}

func WrapUnknownHandle(handle uint64) error {
	return fmt.Errorf("%w: %d", ErrUnknownHandle, handle)
}

func WrapUnsupportedProtocol(version uint32) error {
	return fmt.Errorf("%w: %d", ErrUnsupportedProtocol, version)
}

func WrapDecodeFailed(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDecodeFailed, what, err)
}

func WrapEncodeFailed(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrEncodeFailed, what, err)
}

func WrapSimulationFailed(err error, stderr string) error {
	return fmt.Errorf("%w: %w, stderr: %s", ErrSimulationFailed, err, stderr)
}

func WrapEngineFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrEngineFailure, err)
}

func WrapSimulatorNotFound(msg string) error {
	return fmt.Errorf("%w: %s", ErrSimulatorNotFound, msg)
}

func WrapConfigError(msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrConfigError, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrConfigError, msg, err)
}

func WrapValidationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidationError, msg)
}

func WrapInvalidNetwork(network string) error {
	return fmt.Errorf("%w: %s. Must be one of: public, testnet, futurenet, standalone", ErrInvalidNetwork, network)
}

func WrapLedgerStoreUnavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrLedgerStoreUnavailable, err)
}
