// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package simulator

import (
	"encoding/hex"
	stderrors "errors"
	"fmt"

	"github.com/stellar/go/xdr"

	"github.com/dotandev/preflight/internal/errors"
	"github.com/dotandev/preflight/internal/preflight"
)

// Message types of the line protocol spoken with the simulator binary. The
// engine writes one request line, then answers every "get" line until the
// child prints a "result" line and exits.
const (
	MessageInvokeHostFunction = "invoke_host_function"
	MessageExtendTTL          = "extend_ttl"
	MessageRestore            = "restore"
	MessageGet                = "get"
	MessageEntry              = "entry"
	MessageResult             = "result"
)

type LedgerInfoMessage struct {
	ProtocolVersion       uint32 `json:"protocol_version"`
	SequenceNumber        uint32 `json:"sequence_number"`
	Timestamp             uint64 `json:"timestamp"`
	NetworkID             string `json:"network_id"`
	BaseReserve           uint32 `json:"base_reserve"`
	MinTempEntryTTL       uint32 `json:"min_temp_entry_ttl"`
	MinPersistentEntryTTL uint32 `json:"min_persistent_entry_ttl"`
	MaxEntryTTL           uint32 `json:"max_entry_ttl"`
}

func ledgerInfoMessage(li preflight.LedgerInfo) LedgerInfoMessage {
	return LedgerInfoMessage{
		ProtocolVersion:       li.ProtocolVersion,
		SequenceNumber:        li.SequenceNumber,
		Timestamp:             li.Timestamp,
		NetworkID:             hex.EncodeToString(li.NetworkID[:]),
		BaseReserve:           li.BaseReserve,
		MinTempEntryTTL:       li.MinTempEntryTTL,
		MinPersistentEntryTTL: li.MinPersistentEntryTTL,
		MaxEntryTTL:           li.MaxEntryTTL,
	}
}

type FactorMessage struct {
	Multiplicative float64 `json:"multiplicative"`
	Additive       uint32  `json:"additive"`
}

type AdjustmentMessage struct {
	Instructions  FactorMessage `json:"instructions"`
	ReadBytes     FactorMessage `json:"read_bytes"`
	WriteBytes    FactorMessage `json:"write_bytes"`
	TxSize        FactorMessage `json:"tx_size"`
	RefundableFee FactorMessage `json:"refundable_fee"`
}

func factor(f preflight.AdjustmentFactor) FactorMessage {
	return FactorMessage{Multiplicative: f.Multiplicative, Additive: f.Additive}
}

func adjustmentMessage(a preflight.AdjustmentConfig) AdjustmentMessage {
	return AdjustmentMessage{
		Instructions:  factor(a.Instructions),
		ReadBytes:     factor(a.ReadBytes),
		WriteBytes:    factor(a.WriteBytes),
		TxSize:        factor(a.TxSize),
		RefundableFee: factor(a.RefundableFee),
	}
}

type AuthMessage struct {
	Enforce         bool     `json:"enforce"`
	Entries         []string `json:"entries"`
	RequireRootAuth bool     `json:"require_root_auth"`
}

// Request is the first line written to the simulator. XDR values are base64.
type Request struct {
	Type          string            `json:"type"`
	LedgerInfo    LedgerInfoMessage `json:"ledger_info"`
	NetworkConfig NetworkConfig     `json:"network_config"`
	Adjustment    AdjustmentMessage `json:"adjustment"`

	HostFunction string       `json:"host_function,omitempty"`
	Auth         *AuthMessage `json:"auth,omitempty"`
	Source       string       `json:"source,omitempty"`
	Seed         string       `json:"seed,omitempty"`
	EnableDebug  bool         `json:"enable_debug,omitempty"`

	Keys     []string `json:"keys,omitempty"`
	ExtendTo uint32   `json:"extend_to,omitempty"`
}

// Message is a line printed by the simulator: a "get" for a ledger entry or
// the final "result".
type Message struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`

	// Failure aborts the call. Error is a recoverable failure of the invoked
	// host function.
	Failure string `json:"failure,omitempty"`
	Error   string `json:"error,omitempty"`

	Auth            []string      `json:"auth,omitempty"`
	Result          string        `json:"result,omitempty"`
	TransactionData string        `json:"transaction_data,omitempty"`
	Events          []string      `json:"events,omitempty"`
	CPUInstructions uint64        `json:"cpu_instructions,omitempty"`
	MemoryBytes     uint64        `json:"memory_bytes,omitempty"`
	ModifiedEntries []DiffMessage `json:"modified_entries,omitempty"`
}

type DiffMessage struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// EntryReply answers a "get". Entry is empty when the key is absent; Error
// is set when the ledger snapshot could not be read.
type EntryReply struct {
	Type      string  `json:"type"`
	Entry     string  `json:"entry,omitempty"`
	LiveUntil *uint32 `json:"live_until,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func encodeKeys(keys []xdr.LedgerKey) ([]string, error) {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		s, err := xdr.MarshalBase64(k)
		if err != nil {
			return nil, errors.WrapEncodeFailed("ledger key", err)
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeOptional(what, b64 string, v interface{}) (bool, error) {
	if b64 == "" {
		return false, nil
	}
	if err := xdr.SafeUnmarshalBase64(b64, v); err != nil {
		// not a caller input problem, so ErrDecodeFailed is not wrapped
		return false, errors.WrapEngineFailure(fmt.Errorf("bad %s: %v", what, err))
	}
	return true, nil
}

func (m *Message) transactionData() (*xdr.SorobanTransactionData, error) {
	var data xdr.SorobanTransactionData
	ok, err := decodeOptional("simulator transaction data", m.TransactionData, &data)
	if err != nil || !ok {
		return nil, err
	}
	return &data, nil
}

func (m *Message) invokeSimulation() (*preflight.InvokeHostFunctionSimulation, error) {
	sim := &preflight.InvokeHostFunctionSimulation{
		SimulatedInstructions: m.CPUInstructions,
		SimulatedMemory:       m.MemoryBytes,
	}

	for _, a := range m.Auth {
		var entry xdr.SorobanAuthorizationEntry
		if _, err := decodeOptional("simulator auth entry", a, &entry); err != nil {
			return nil, err
		}
		sim.Auth = append(sim.Auth, entry)
	}

	var err error
	if sim.TransactionData, err = m.transactionData(); err != nil {
		return nil, err
	}

	for _, e := range m.Events {
		var ev xdr.DiagnosticEvent
		if _, err := decodeOptional("simulator event", e, &ev); err != nil {
			return nil, err
		}
		sim.DiagnosticEvents = append(sim.DiagnosticEvents, ev)
	}

	for _, d := range m.ModifiedEntries {
		var diff preflight.LedgerEntryDiff
		var before, after xdr.LedgerEntry
		if ok, err := decodeOptional("simulator entry before", d.Before, &before); err != nil {
			return nil, err
		} else if ok {
			diff.StateBefore = &before
		}
		if ok, err := decodeOptional("simulator entry after", d.After, &after); err != nil {
			return nil, err
		} else if ok {
			diff.StateAfter = &after
		}
		sim.ModifiedEntries = append(sim.ModifiedEntries, diff)
	}

	if m.Error != "" {
		sim.InvokeErr = stderrors.New(m.Error)
		return sim, nil
	}
	var val xdr.ScVal
	if ok, err := decodeOptional("simulator invoke result", m.Result, &val); err != nil {
		return nil, err
	} else if ok {
		sim.InvokeResult = &val
	}
	return sim, nil
}
