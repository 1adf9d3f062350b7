// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package preflight

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/require"

	"github.com/dotandev/preflight/internal/ledger"
)

const testSequence = 1000

type fakeNetworkConfig struct {
	maxEntryTTL uint32
}

func (c fakeNetworkConfig) FillLedgerInfo(li *LedgerInfo) {
	li.MaxEntryTTL = c.maxEntryTTL
	li.MinPersistentEntryTTL = 4096
	li.MinTempEntryTTL = 16
}

// fakeEngine charges a fee that grows with adjusted instructions and the
// number of keys it touches.
type fakeEngine struct {
	mu sync.Mutex

	footprint    []xdr.LedgerKey
	configErr    error
	invokeErr    error
	operationErr error
	extendErr    error
	restoreErr   error
	panicMsg     string
	// swallowStorageErrors makes the engine ignore read failures.
	swallowStorageErrors bool

	seeds        [][32]byte
	auth         []AuthPolicy
	restoreCalls [][]xdr.LedgerKey
	extendCalls  int
	ledgerInfos  []LedgerInfo
}

func (e *fakeEngine) LoadNetworkConfig(src SnapshotSource, bucketListSize uint64) (NetworkConfig, error) {
	if e.configErr != nil {
		return nil, e.configErr
	}
	return fakeNetworkConfig{maxEntryTTL: 3_110_400}, nil
}

func (e *fakeEngine) read(src SnapshotSource, keys []xdr.LedgerKey) ([]xdr.LedgerEntry, error) {
	var found []xdr.LedgerEntry
	for _, k := range keys {
		entry, err := src.Get(k)
		if err != nil {
			if e.swallowStorageErrors {
				continue
			}
			return nil, err
		}
		if entry != nil {
			found = append(found, entry.Entry)
		}
	}
	return found, nil
}

func txData(keys []xdr.LedgerKey, instructions uint64, fee int64) xdr.SorobanTransactionData {
	return xdr.SorobanTransactionData{
		Resources: xdr.SorobanResources{
			Footprint:    xdr.LedgerFootprint{ReadOnly: keys},
			Instructions: xdr.Uint32(instructions),
		},
		ResourceFee: xdr.Int64(fee),
	}
}

func (e *fakeEngine) SimulateInvokeHostFunction(ctx context.Context, src SnapshotSource, nc NetworkConfig, adj AdjustmentConfig, li LedgerInfo, args InvokeArgs) (*InvokeHostFunctionSimulation, error) {
	e.mu.Lock()
	e.seeds = append(e.seeds, args.Seed)
	e.auth = append(e.auth, args.Auth)
	e.ledgerInfos = append(e.ledgerInfos, li)
	e.mu.Unlock()

	if e.panicMsg != "" {
		panic(e.panicMsg)
	}
	if e.invokeErr != nil {
		return nil, e.invokeErr
	}

	found, err := e.read(src, e.footprint)
	if err != nil {
		return nil, err
	}

	instructions := adj.Instructions.Adjust(1_000_000 + 1_000*uint64(len(found)))
	data := txData(e.footprint, instructions, int64(instructions/100)+100)
	sim := &InvokeHostFunctionSimulation{
		TransactionData:       &data,
		SimulatedInstructions: 1_000_000,
		SimulatedMemory:       2_048,
	}
	if args.Auth.Enforce {
		sim.Auth = args.Auth.Entries
	}
	if args.EnableDebug {
		sim.DiagnosticEvents = []xdr.DiagnosticEvent{diagnosticEvent()}
	}
	for i := range found {
		before := found[i]
		after := found[i]
		after.LastModifiedLedgerSeq = xdr.Uint32(li.SequenceNumber)
		sim.ModifiedEntries = append(sim.ModifiedEntries, LedgerEntryDiff{StateBefore: &before, StateAfter: &after})
	}

	if e.operationErr != nil {
		sim.InvokeErr = e.operationErr
		return sim, nil
	}
	void := xdr.ScVal{Type: xdr.ScValTypeScvVoid}
	sim.InvokeResult = &void
	return sim, nil
}

func (e *fakeEngine) SimulateExtendTTL(ctx context.Context, src SnapshotSource, nc NetworkConfig, adj AdjustmentConfig, li LedgerInfo, keys []xdr.LedgerKey, extendTo uint32) (*ExtendTTLSimulation, error) {
	e.mu.Lock()
	e.extendCalls++
	e.mu.Unlock()

	if e.extendErr != nil {
		return nil, e.extendErr
	}
	if _, err := e.read(src, keys); err != nil {
		return nil, err
	}
	return &ExtendTTLSimulation{TransactionData: txData(keys, 0, int64(len(keys))*1_000)}, nil
}

func (e *fakeEngine) SimulateRestore(ctx context.Context, src SnapshotSource, nc NetworkConfig, adj AdjustmentConfig, li LedgerInfo, keys []xdr.LedgerKey) (*RestoreSimulation, error) {
	e.mu.Lock()
	e.restoreCalls = append(e.restoreCalls, keys)
	e.mu.Unlock()

	if e.restoreErr != nil {
		return nil, e.restoreErr
	}
	if _, err := e.read(src, keys); err != nil {
		return nil, err
	}
	return &RestoreSimulation{TransactionData: txData(keys, 0, 5_000*int64(len(keys))+1_000)}, nil
}

func diagnosticEvent() xdr.DiagnosticEvent {
	return xdr.DiagnosticEvent{
		InSuccessfulContractCall: true,
		Event: xdr.ContractEvent{
			Type: xdr.ContractEventTypeDiagnostic,
			Body: xdr.ContractEventBody{
				V:  0,
				V0: &xdr.ContractEventV0{Data: xdr.ScVal{Type: xdr.ScValTypeScvVoid}},
			},
		},
	}
}

func accountEntry(balance int64) xdr.LedgerEntry {
	acc := xdr.AccountEntry{
		AccountId: xdr.MustAddress(keypair.MustRandom().Address()),
		Balance:   xdr.Int64(balance),
	}
	return xdr.LedgerEntry{
		LastModifiedLedgerSeq: 10,
		Data:                  xdr.LedgerEntryData{Type: xdr.LedgerEntryTypeAccount, Account: &acc},
	}
}

func codeEntry(seed byte) xdr.LedgerEntry {
	code := xdr.ContractCodeEntry{
		Hash: xdr.Hash{seed},
		Code: []byte{0x00, 0x61, 0x73, 0x6d, seed},
	}
	return xdr.LedgerEntry{
		LastModifiedLedgerSeq: 10,
		Data:                  xdr.LedgerEntryData{Type: xdr.LedgerEntryTypeContractCode, ContractCode: &code},
	}
}

func keyOf(t *testing.T, entry xdr.LedgerEntry) xdr.LedgerKey {
	t.Helper()
	key, err := ledger.LedgerKeyFromEntry(entry)
	require.NoError(t, err)
	return key
}

func mustXDR(t *testing.T, v interface{ MarshalBinary() ([]byte, error) }) []byte {
	t.Helper()
	b, err := v.MarshalBinary()
	require.NoError(t, err)
	return b
}

type harness struct {
	t        *testing.T
	store    *ledger.Store
	registry *ledger.Registry
	handle   ledger.Handle
	engine   *fakeEngine
	bridge   *Bridge
	recorder *countingRecorder
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		store:    ledger.NewStore(ledger.NewMemoryKV()),
		registry: ledger.NewRegistry(),
		engine:   &fakeEngine{},
		recorder: &countingRecorder{},
	}
	h.handle = h.registry.Register(h.store)
	opts = append([]Option{
		WithRandomness(bytes.NewReader(bytes.Repeat([]byte{7}, 1<<12))),
		WithRecorder(h.recorder),
	}, opts...)
	h.bridge = NewBridge(h.registry, opts...)
	require.NoError(t, h.bridge.Register(">= 20", h.engine))
	return h
}

// put stores entry and, when liveUntil is set, its TTL. It returns the key.
func (h *harness) put(entry xdr.LedgerEntry, liveUntil ...uint32) xdr.LedgerKey {
	h.t.Helper()
	require.NoError(h.t, h.store.Put(entry))
	key := keyOf(h.t, entry)
	if len(liveUntil) > 0 {
		require.NoError(h.t, h.store.PutTTL(key, liveUntil[0]))
	}
	return key
}

func ledgerParams() LedgerInfoParams {
	return LedgerInfoParams{
		ProtocolVersion:   22,
		SequenceNumber:    testSequence,
		Timestamp:         uint64(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Unix()),
		BaseReserve:       100,
		BucketListSize:    1 << 30,
		NetworkPassphrase: network.TestNetworkPassphrase,
	}
}

func (h *harness) invokeParams() InvokeHostFunctionParams {
	h.t.Helper()
	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	op := xdr.InvokeHostFunctionOp{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeUploadContractWasm,
			Wasm: &wasm,
		},
	}
	source := xdr.MustAddress(keypair.MustRandom().Address())
	return InvokeHostFunctionParams{
		Handle:               h.handle,
		InvokeHostFunctionOp: mustXDR(h.t, op),
		SourceAccount:        mustXDR(h.t, source),
		LedgerInfo:           ledgerParams(),
		AuthMode:             AuthModeEnforce,
	}
}

func (h *harness) footprintParams(body xdr.OperationBody, readOnly, readWrite []xdr.LedgerKey) FootprintTTLParams {
	h.t.Helper()
	return FootprintTTLParams{
		Handle:        h.handle,
		OperationBody: mustXDR(h.t, body),
		Footprint:     mustXDR(h.t, xdr.LedgerFootprint{ReadOnly: readOnly, ReadWrite: readWrite}),
		LedgerInfo:    ledgerParams(),
	}
}

func extendBody(extendTo uint32) xdr.OperationBody {
	return xdr.OperationBody{
		Type:                 xdr.OperationTypeExtendFootprintTtl,
		ExtendFootprintTtlOp: &xdr.ExtendFootprintTtlOp{ExtendTo: xdr.Uint32(extendTo)},
	}
}

func restoreBody() xdr.OperationBody {
	return xdr.OperationBody{
		Type:               xdr.OperationTypeRestoreFootprint,
		RestoreFootprintOp: &xdr.RestoreFootprintOp{},
	}
}

type countingRecorder struct {
	mu         sync.Mutex
	requests   map[string]int
	corruption int
}

func (r *countingRecorder) ObserveRequest(operation, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.requests == nil {
		r.requests = make(map[string]int)
	}
	r.requests[operation+"/"+status]++
}

func (r *countingRecorder) IncStorageCorruption() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.corruption++
}

func decodeTxData(t *testing.T, raw []byte) xdr.SorobanTransactionData {
	t.Helper()
	var data xdr.SorobanTransactionData
	require.NoError(t, xdr.SafeUnmarshal(raw, &data))
	return data
}
