// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package preflight estimates the resources of a Soroban operation by
// replaying it against a simulation engine over a ledger snapshot, then
// folds the outcome into a single Result.
package preflight

import (
	"context"
	"math"

	"github.com/stellar/go/xdr"

	"github.com/dotandev/preflight/internal/errors"
)

// EntryWithLiveUntil is a ledger entry as seen by an engine. LiveUntil is nil
// for entries without a TTL.
type EntryWithLiveUntil struct {
	Entry     xdr.LedgerEntry
	LiveUntil *uint32
}

// SnapshotSource serves ledger entries to an engine. A nil entry with a nil
// error means the key is absent.
type SnapshotSource interface {
	Get(key xdr.LedgerKey) (*EntryWithLiveUntil, error)
}

// LedgerInfo describes the ledger a simulation runs against.
type LedgerInfo struct {
	ProtocolVersion       uint32
	SequenceNumber        uint32
	Timestamp             uint64
	NetworkID             [32]byte
	BaseReserve           uint32
	MinTempEntryTTL       uint32
	MinPersistentEntryTTL uint32
	MaxEntryTTL           uint32
}

// NetworkConfig carries protocol cost and fee parameters loaded from the
// ledger. It fills the engine-specific fields of LedgerInfo.
type NetworkConfig interface {
	FillLedgerInfo(li *LedgerInfo)
}

// AdjustmentFactor pads a measured value: the result is the larger of
// value*Multiplicative and value+Additive.
type AdjustmentFactor struct {
	Multiplicative float64
	Additive       uint32
}

func (f AdjustmentFactor) Adjust(value uint64) uint64 {
	scaled := math.Floor(float64(value) * f.Multiplicative)
	added := value + uint64(f.Additive)
	if scaled >= math.MaxUint64 {
		return math.MaxUint64
	}
	if uint64(scaled) > added {
		return uint64(scaled)
	}
	return added
}

// AdjustmentConfig controls how simulated usage becomes a charged amount.
type AdjustmentConfig struct {
	Instructions  AdjustmentFactor
	ReadBytes     AdjustmentFactor
	WriteBytes    AdjustmentFactor
	TxSize        AdjustmentFactor
	RefundableFee AdjustmentFactor
}

func DefaultAdjustmentConfig() AdjustmentConfig {
	return AdjustmentConfig{
		Instructions:  AdjustmentFactor{Multiplicative: 1.04, Additive: 50_000},
		ReadBytes:     AdjustmentFactor{Multiplicative: 1.0},
		WriteBytes:    AdjustmentFactor{Multiplicative: 1.0},
		TxSize:        AdjustmentFactor{Multiplicative: 1.1, Additive: 500},
		RefundableFee: AdjustmentFactor{Multiplicative: 1.15},
	}
}

// WithInstructionLeeway raises the instruction additive factor to leeway
// when leeway is larger. It never lowers it.
func (c AdjustmentConfig) WithInstructionLeeway(leeway uint64) (AdjustmentConfig, error) {
	if leeway > math.MaxUint32 {
		return c, errors.WrapInvalidResourceConfig("instruction leeway does not fit in 32 bits")
	}
	if uint32(leeway) > c.Instructions.Additive {
		c.Instructions.Additive = uint32(leeway)
	}
	return c, nil
}

// LedgerEntryDiff is the change an execution made to one entry. Both sides
// nil is a no-op, only StateBefore a deletion, only StateAfter a creation.
type LedgerEntryDiff struct {
	StateBefore *xdr.LedgerEntry
	StateAfter  *xdr.LedgerEntry
}

// InvokeArgs are the operation specific inputs of an invocation.
type InvokeArgs struct {
	HostFunction xdr.HostFunction
	Auth         AuthPolicy
	Source       xdr.AccountId
	// Seed feeds the engine's internal tie-breaking only.
	Seed        [32]byte
	EnableDebug bool
}

// InvokeHostFunctionSimulation is what an engine reports for an invocation.
// InvokeErr is a recoverable, operation level failure; InvokeResult is nil
// whenever it is set.
type InvokeHostFunctionSimulation struct {
	Auth                  []xdr.SorobanAuthorizationEntry
	InvokeResult          *xdr.ScVal
	InvokeErr             error
	TransactionData       *xdr.SorobanTransactionData
	DiagnosticEvents      []xdr.DiagnosticEvent
	SimulatedInstructions uint64
	SimulatedMemory       uint64
	ModifiedEntries       []LedgerEntryDiff
}

type ExtendTTLSimulation struct {
	TransactionData xdr.SorobanTransactionData
}

type RestoreSimulation struct {
	TransactionData xdr.SorobanTransactionData
}

// Engine simulates operations for one range of protocol versions. A
// returned error aborts the call; engines must return (or propagate)
// errors.ErrStorageInternal unchanged when a snapshot read fails.
type Engine interface {
	LoadNetworkConfig(src SnapshotSource, bucketListSize uint64) (NetworkConfig, error)
	SimulateInvokeHostFunction(ctx context.Context, src SnapshotSource, nc NetworkConfig, adj AdjustmentConfig, li LedgerInfo, args InvokeArgs) (*InvokeHostFunctionSimulation, error)
	SimulateExtendTTL(ctx context.Context, src SnapshotSource, nc NetworkConfig, adj AdjustmentConfig, li LedgerInfo, keys []xdr.LedgerKey, extendTo uint32) (*ExtendTTLSimulation, error)
	SimulateRestore(ctx context.Context, src SnapshotSource, nc NetworkConfig, adj AdjustmentConfig, li LedgerInfo, keys []xdr.LedgerKey) (*RestoreSimulation, error)
}
