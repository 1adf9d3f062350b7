// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package preflight

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/stellar/go/xdr"

	"github.com/dotandev/preflight/internal/errors"
)

// UnsupportedOperationError rejects an operation body the footprint TTL path
// cannot simulate. It matches errors.ErrUnsupportedOperation.
type UnsupportedOperationError struct {
	Type xdr.OperationType
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf(
		"encountered unsupported operation type: '%s', instead of 'ExtendFootprintTtl' or 'RestoreFootprint' operations.",
		strings.TrimPrefix(e.Type.String(), "OperationType"),
	)
}

func (e *UnsupportedOperationError) Is(target error) bool {
	return target == errors.ErrUnsupportedOperation
}

var invalidInput = []error{
	errors.ErrUnsupportedOperation,
	errors.ErrInvalidAuthMode,
	errors.ErrInvalidResourceConfig,
	errors.ErrUnknownHandle,
	errors.ErrUnsupportedProtocol,
	errors.ErrDecodeFailed,
}

func classify(err error) ErrorClass {
	if err == nil {
		return ErrorClassNone
	}
	if stderrors.Is(err, errors.ErrStorageInternal) {
		return ErrorClassStorage
	}
	for _, target := range invalidInput {
		if stderrors.Is(err, target) {
			return ErrorClassInvalidInput
		}
	}
	return ErrorClassSimulation
}

// extractError picks the single error reported for a call. A poisoned
// snapshot wins over the outcome of the restore pass.
func extractError(snap *LedgerSnapshot, outcome error) (string, ErrorClass) {
	if snap != nil && snap.Poisoned() {
		return snap.InternalError().Error(), ErrorClassStorage
	}
	if outcome != nil {
		return outcome.Error(), classify(outcome)
	}
	return "", ErrorClassNone
}
