// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package simulator

import (
	"context"

	"github.com/stellar/go/xdr"

	"github.com/dotandev/preflight/internal/preflight"
)

// MockEngine is a preflight.Engine whose behaviour is set per function.
// Unset functions succeed with an empty result.
type MockEngine struct {
	LoadNetworkConfigFunc func(src preflight.SnapshotSource, bucketListSize uint64) (preflight.NetworkConfig, error)
	InvokeFunc            func(src preflight.SnapshotSource, li preflight.LedgerInfo, args preflight.InvokeArgs) (*preflight.InvokeHostFunctionSimulation, error)
	ExtendTTLFunc         func(src preflight.SnapshotSource, keys []xdr.LedgerKey, extendTo uint32) (*preflight.ExtendTTLSimulation, error)
	RestoreFunc           func(src preflight.SnapshotSource, keys []xdr.LedgerKey) (*preflight.RestoreSimulation, error)
}

var _ preflight.Engine = (*MockEngine)(nil)

func (m *MockEngine) LoadNetworkConfig(src preflight.SnapshotSource, bucketListSize uint64) (preflight.NetworkConfig, error) {
	if m.LoadNetworkConfigFunc != nil {
		return m.LoadNetworkConfigFunc(src, bucketListSize)
	}
	return DefaultNetworkConfig(bucketListSize), nil
}

func (m *MockEngine) SimulateInvokeHostFunction(_ context.Context, src preflight.SnapshotSource, _ preflight.NetworkConfig, _ preflight.AdjustmentConfig, li preflight.LedgerInfo, args preflight.InvokeArgs) (*preflight.InvokeHostFunctionSimulation, error) {
	if m.InvokeFunc != nil {
		return m.InvokeFunc(src, li, args)
	}
	void := xdr.ScVal{Type: xdr.ScValTypeScvVoid}
	return &preflight.InvokeHostFunctionSimulation{
		InvokeResult:    &void,
		TransactionData: &xdr.SorobanTransactionData{},
	}, nil
}

func (m *MockEngine) SimulateExtendTTL(_ context.Context, src preflight.SnapshotSource, _ preflight.NetworkConfig, _ preflight.AdjustmentConfig, _ preflight.LedgerInfo, keys []xdr.LedgerKey, extendTo uint32) (*preflight.ExtendTTLSimulation, error) {
	if m.ExtendTTLFunc != nil {
		return m.ExtendTTLFunc(src, keys, extendTo)
	}
	return &preflight.ExtendTTLSimulation{}, nil
}

func (m *MockEngine) SimulateRestore(_ context.Context, src preflight.SnapshotSource, _ preflight.NetworkConfig, _ preflight.AdjustmentConfig, _ preflight.LedgerInfo, keys []xdr.LedgerKey) (*preflight.RestoreSimulation, error) {
	if m.RestoreFunc != nil {
		return m.RestoreFunc(src, keys)
	}
	return &preflight.RestoreSimulation{}, nil
}
