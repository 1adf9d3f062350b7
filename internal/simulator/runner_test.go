// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package simulator

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotandev/preflight/internal/errors"
	"github.com/dotandev/preflight/internal/ledger"
	"github.com/dotandev/preflight/internal/preflight"
)

// TestHelperProcess is not a real test. It stands in for the simulator
// binary when re-executed by helperRunner.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("PREFLIGHT_SIM_HELPER") != "1" {
		return
	}
	os.Exit(runHelper(os.Getenv("HELPER_MODE"), os.Getenv("HELPER_KEY"), os.Stdin, os.Stdout, os.Stderr))
}

func runHelper(mode, invokeKey string, stdin io.Reader, stdout, stderr io.Writer) int {
	dec := json.NewDecoder(stdin)
	enc := json.NewEncoder(stdout)

	var req Request
	if err := dec.Decode(&req); err != nil {
		fmt.Fprintf(stderr, "bad request: %v\n", err)
		return 2
	}

	switch mode {
	case "crash":
		fmt.Fprintln(stderr, "simulator panicked: boom")
		return 3
	case "hang":
		time.Sleep(time.Minute)
		return 0
	case "garbage":
		fmt.Fprintln(stdout, "not json")
		return 0
	case "failure":
		_ = enc.Encode(Message{Type: MessageResult, Failure: "host budget exceeded"})
		return 0
	}

	keys := req.Keys
	if req.Type == MessageInvokeHostFunction {
		keys = []string{invokeKey}
	}

	var found []string
	for _, k := range keys {
		_ = enc.Encode(Message{Type: MessageGet, Key: k})
		var reply EntryReply
		if err := dec.Decode(&reply); err != nil {
			fmt.Fprintf(stderr, "bad reply: %v\n", err)
			return 2
		}
		if reply.Error != "" {
			_ = enc.Encode(Message{Type: MessageResult, Failure: reply.Error})
			return 0
		}
		if reply.Entry != "" {
			found = append(found, reply.Entry)
		}
	}

	fee := int64(100 * len(found))
	if req.Type == MessageInvokeHostFunction {
		fee = 1_000 + int64(len(found))
	}
	data, _ := xdr.MarshalBase64(xdr.SorobanTransactionData{ResourceFee: xdr.Int64(fee)})
	result := Message{
		Type:            MessageResult,
		TransactionData: data,
		CPUInstructions: 123,
		MemoryBytes:     456,
	}
	if req.Type == MessageInvokeHostFunction {
		result.Result, _ = xdr.MarshalBase64(xdr.ScVal{Type: xdr.ScValTypeScvVoid})
		for _, e := range found {
			result.ModifiedEntries = append(result.ModifiedEntries, DiffMessage{Before: e, After: e})
		}
		if mode == "recoverable" {
			result.Error = "HostError: trapped"
			result.Result = ""
		}
	}
	_ = enc.Encode(result)
	return 0
}

func helperRunner(mode string, env ...string) *Runner {
	return &Runner{
		BinaryPath:   os.Args[0],
		Args:         []string{"-test.run=TestHelperProcess", "--"},
		Env:          append([]string{"PREFLIGHT_SIM_HELPER=1", "HELPER_MODE=" + mode}, env...),
		GraceTimeout: 200 * time.Millisecond,
	}
}

func codeEntry(seed byte) xdr.LedgerEntry {
	code := xdr.ContractCodeEntry{
		Hash: xdr.Hash{seed},
		Code: []byte{0x00, 0x61, 0x73, 0x6d, seed},
	}
	return xdr.LedgerEntry{
		LastModifiedLedgerSeq: 3,
		Data:                  xdr.LedgerEntryData{Type: xdr.LedgerEntryTypeContractCode, ContractCode: &code},
	}
}

type fixture struct {
	store *ledger.Store
	snap  *preflight.LedgerSnapshot
	nc    preflight.NetworkConfig
	li    preflight.LedgerInfo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := ledger.NewStore(ledger.NewMemoryKV())
	require.NoError(t, store.Put(StateArchivalEntry(DefaultNetworkConfig(0))))

	snap := preflight.NewLedgerSnapshot(store)
	nc, err := (&Runner{}).LoadNetworkConfig(snap, 1<<20)
	require.NoError(t, err)

	li := preflight.LedgerInfo{
		ProtocolVersion: 22,
		SequenceNumber:  500,
		NetworkID:       network.ID(network.TestNetworkPassphrase),
	}
	nc.FillLedgerInfo(&li)
	return &fixture{store: store, snap: snap, nc: nc, li: li}
}

func (f *fixture) put(t *testing.T, entry xdr.LedgerEntry) xdr.LedgerKey {
	t.Helper()
	require.NoError(t, f.store.Put(entry))
	key, err := ledger.LedgerKeyFromEntry(entry)
	require.NoError(t, err)
	return key
}

func invokeArgs() preflight.InvokeArgs {
	wasm := []byte{0x00, 0x61, 0x73, 0x6d}
	return preflight.InvokeArgs{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeUploadContractWasm,
			Wasm: &wasm,
		},
		Auth:   preflight.AuthModeEnforce.Policy(nil),
		Source: xdr.MustAddress(keypair.MustRandom().Address()),
	}
}

func keyEnv(t *testing.T, key xdr.LedgerKey) string {
	t.Helper()
	b64, err := xdr.MarshalBase64(key)
	require.NoError(t, err)
	return "HELPER_KEY=" + b64
}

func TestRunnerInvoke(t *testing.T) {
	f := newFixture(t)
	key := f.put(t, codeEntry(1))

	sim, err := helperRunner("ok", keyEnv(t, key)).SimulateInvokeHostFunction(
		context.Background(), f.snap, f.nc, preflight.DefaultAdjustmentConfig(), f.li, invokeArgs())
	require.NoError(t, err)

	require.NoError(t, sim.InvokeErr)
	require.NotNil(t, sim.InvokeResult)
	assert.Equal(t, xdr.ScValTypeScvVoid, sim.InvokeResult.Type)
	require.NotNil(t, sim.TransactionData)
	assert.Equal(t, xdr.Int64(1_001), sim.TransactionData.ResourceFee)
	assert.Equal(t, uint64(123), sim.SimulatedInstructions)
	assert.Equal(t, uint64(456), sim.SimulatedMemory)
	require.Len(t, sim.ModifiedEntries, 1)
	assert.Equal(t, codeEntry(1).Data.ContractCode.Hash, sim.ModifiedEntries[0].StateAfter.Data.ContractCode.Hash)
}

func TestRunnerInvokeRecoverableError(t *testing.T) {
	f := newFixture(t)
	key := f.put(t, codeEntry(2))

	sim, err := helperRunner("recoverable", keyEnv(t, key)).SimulateInvokeHostFunction(
		context.Background(), f.snap, f.nc, preflight.DefaultAdjustmentConfig(), f.li, invokeArgs())
	require.NoError(t, err)

	require.Error(t, sim.InvokeErr)
	assert.Equal(t, "HostError: trapped", sim.InvokeErr.Error())
	assert.Nil(t, sim.InvokeResult)
	assert.NotNil(t, sim.TransactionData)
}

func TestRunnerRestoreServesEntries(t *testing.T) {
	f := newFixture(t)
	present := f.put(t, codeEntry(3))
	absent, err := ledger.LedgerKeyFromEntry(codeEntry(4))
	require.NoError(t, err)

	sim, err := helperRunner("ok").SimulateRestore(
		context.Background(), f.snap, f.nc, preflight.DefaultAdjustmentConfig(), f.li, []xdr.LedgerKey{present, absent})
	require.NoError(t, err)
	assert.Equal(t, xdr.Int64(100), sim.TransactionData.ResourceFee)
}

func TestRunnerExtendTTL(t *testing.T) {
	f := newFixture(t)
	a := f.put(t, codeEntry(5))
	b := f.put(t, codeEntry(6))

	sim, err := helperRunner("ok").SimulateExtendTTL(
		context.Background(), f.snap, f.nc, preflight.DefaultAdjustmentConfig(), f.li, []xdr.LedgerKey{a, b}, 10_000)
	require.NoError(t, err)
	assert.Equal(t, xdr.Int64(200), sim.TransactionData.ResourceFee)
}

func TestRunnerFailure(t *testing.T) {
	f := newFixture(t)

	_, err := helperRunner("failure").SimulateRestore(
		context.Background(), f.snap, f.nc, preflight.DefaultAdjustmentConfig(), f.li, nil)
	require.Error(t, err)
	assert.Equal(t, "host budget exceeded", err.Error())
}

func TestRunnerCrash(t *testing.T) {
	f := newFixture(t)

	_, err := helperRunner("crash").SimulateRestore(
		context.Background(), f.snap, f.nc, preflight.DefaultAdjustmentConfig(), f.li, nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrSimulationFailed))
	assert.Contains(t, err.Error(), "boom")
}

func TestRunnerMalformedOutput(t *testing.T) {
	f := newFixture(t)

	_, err := helperRunner("garbage").SimulateRestore(
		context.Background(), f.snap, f.nc, preflight.DefaultAdjustmentConfig(), f.li, nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrEngineFailure))
}

func TestRunnerStorageCorruption(t *testing.T) {
	f := newFixture(t)
	key, err := ledger.LedgerKeyFromEntry(codeEntry(7))
	require.NoError(t, err)
	keyXDR, err := key.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, f.store.PutRaw(keyXDR, []byte{0x01, 0x02}))

	_, err = helperRunner("ok").SimulateRestore(
		context.Background(), f.snap, f.nc, preflight.DefaultAdjustmentConfig(), f.li, []xdr.LedgerKey{key})
	assert.Equal(t, errors.ErrStorageInternal, err)
	assert.True(t, f.snap.Poisoned())
}

func TestRunnerContextCancelStopsProcess(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := helperRunner("hang").SimulateRestore(ctx, f.snap, f.nc, preflight.DefaultAdjustmentConfig(), f.li, nil)
		done <- err
	}()

	select {
	case err := <-done:
		assert.True(t, stderrors.Is(err, context.DeadlineExceeded), "got %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("runner did not stop after context deadline")
	}
}

func TestRunnerRejectsForeignNetworkConfig(t *testing.T) {
	f := newFixture(t)
	_, err := helperRunner("ok").SimulateRestore(
		context.Background(), f.snap, foreignConfig{}, preflight.DefaultAdjustmentConfig(), f.li, nil)
	assert.True(t, stderrors.Is(err, errors.ErrEngineFailure))
}

type foreignConfig struct{}

func (foreignConfig) FillLedgerInfo(*preflight.LedgerInfo) {}

func TestNewRunner(t *testing.T) {
	r, err := NewRunner("/opt/sim/preflight-sim")
	require.NoError(t, err)
	assert.Equal(t, "/opt/sim/preflight-sim", r.BinaryPath)

	t.Setenv("PREFLIGHT_SIMULATOR_PATH", "/usr/local/bin/custom-sim")
	r, err = NewRunner("")
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/custom-sim", r.BinaryPath)

	t.Setenv("PREFLIGHT_SIMULATOR_PATH", "")
	t.Setenv("PATH", t.TempDir())
	t.Chdir(t.TempDir())
	_, err = NewRunner("")
	assert.True(t, stderrors.Is(err, errors.ErrSimulatorNotFound))
}
