// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package preflight

import (
	"encoding"

	"github.com/stellar/go/xdr"

	"github.com/dotandev/preflight/internal/errors"
)

// ErrorClass tells which path produced a Result's error.
type ErrorClass int

const (
	ErrorClassNone ErrorClass = iota
	// ErrorClassInvalidInput is a rejected request.
	ErrorClassInvalidInput
	// ErrorClassSimulation is an operation or engine failure.
	ErrorClassSimulation
	// ErrorClassStorage means the ledger storage returned corrupt data.
	ErrorClassStorage
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorClassNone:
		return "none"
	case ErrorClassInvalidInput:
		return "invalid_input"
	case ErrorClassSimulation:
		return "simulation"
	case ErrorClassStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// XDRDiff is an encoded LedgerEntryDiff. A nil side is absent.
type XDRDiff struct {
	Before []byte `json:"before"`
	After  []byte `json:"after"`
}

// Result is the outcome of one preflight call. Byte fields hold XDR and are
// owned by the caller. When Error is set the other fields only hold what was
// computed before the failure.
type Result struct {
	Error                     string     `json:"error"`
	Auth                      [][]byte   `json:"auth"`
	Result                    []byte     `json:"result"`
	MinFee                    int64      `json:"min_fee"`
	TransactionData           []byte     `json:"transaction_data"`
	Events                    [][]byte   `json:"events"`
	CPUInstructions           uint64     `json:"cpu_instructions"`
	MemoryBytes               uint64     `json:"memory_bytes"`
	LedgerEntryDiff           []XDRDiff  `json:"ledger_entry_diff"`
	PreRestoreMinFee          int64      `json:"pre_restore_min_fee"`
	PreRestoreTransactionData []byte     `json:"pre_restore_transaction_data"`
	ErrorClass                ErrorClass `json:"-"`
}

func encode(what string, v encoding.BinaryMarshaler) ([]byte, error) {
	b, err := v.MarshalBinary()
	if err != nil {
		return nil, errors.WrapEncodeFailed(what, err)
	}
	return b, nil
}

func encodeOptional(what string, v encoding.BinaryMarshaler, present bool) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return encode(what, v)
}

func (r *Result) setRestore(restore *RestoreSimulation) error {
	if restore == nil {
		return nil
	}
	data, err := encode("restore transaction data", restore.TransactionData)
	if err != nil {
		return err
	}
	r.PreRestoreMinFee = int64(restore.TransactionData.ResourceFee)
	r.PreRestoreTransactionData = data
	return nil
}

func newInvokeResult(sim *InvokeHostFunctionSimulation, restore *RestoreSimulation) (Result, error) {
	res := Result{
		CPUInstructions: sim.SimulatedInstructions,
		MemoryBytes:     sim.SimulatedMemory,
	}

	for _, a := range sim.Auth {
		b, err := encode("authorization entry", a)
		if err != nil {
			return Result{}, err
		}
		res.Auth = append(res.Auth, b)
	}

	var err error
	if sim.InvokeErr == nil && sim.InvokeResult != nil {
		if res.Result, err = encode("invoke result", sim.InvokeResult); err != nil {
			return Result{}, err
		}
	}

	if sim.TransactionData != nil {
		res.MinFee = int64(sim.TransactionData.ResourceFee)
		if res.TransactionData, err = encode("transaction data", sim.TransactionData); err != nil {
			return Result{}, err
		}
	}

	for _, ev := range sim.DiagnosticEvents {
		b, err := encode("diagnostic event", ev)
		if err != nil {
			return Result{}, err
		}
		res.Events = append(res.Events, b)
	}

	for _, d := range sim.ModifiedEntries {
		var diff XDRDiff
		if diff.Before, err = encodeOptional("entry before", d.StateBefore, d.StateBefore != nil); err != nil {
			return Result{}, err
		}
		if diff.After, err = encodeOptional("entry after", d.StateAfter, d.StateAfter != nil); err != nil {
			return Result{}, err
		}
		res.LedgerEntryDiff = append(res.LedgerEntryDiff, diff)
	}

	if err := res.setRestore(restore); err != nil {
		return Result{}, err
	}
	return res, nil
}

func newTransactionDataResult(txData *xdr.SorobanTransactionData, restore *RestoreSimulation) (Result, error) {
	var res Result
	if txData != nil {
		data, err := encode("transaction data", txData)
		if err != nil {
			return Result{}, err
		}
		res.MinFee = int64(txData.ResourceFee)
		res.TransactionData = data
	}
	if err := res.setRestore(restore); err != nil {
		return Result{}, err
	}
	return res, nil
}
