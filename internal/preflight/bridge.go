// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package preflight

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/stellar/go/network"
	"github.com/stellar/go/xdr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dotandev/preflight/internal/errors"
	"github.com/dotandev/preflight/internal/ledger"
	"github.com/dotandev/preflight/internal/logger"
	"github.com/dotandev/preflight/internal/metrics"
	"github.com/dotandev/preflight/internal/telemetry"
)

// Operation names used for spans and metrics.
const (
	OperationInvokeHostFunction = "invoke_host_function"
	OperationFootprintTTL       = "footprint_ttl"
)

// LedgerInfoParams are the caller supplied ledger fields of a request.
type LedgerInfoParams struct {
	ProtocolVersion   uint32
	SequenceNumber    uint32
	Timestamp         uint64
	BaseReserve       uint32
	BucketListSize    uint64
	NetworkPassphrase string
}

type ResourceConfig struct {
	InstructionLeeway uint64
}

// InvokeHostFunctionParams holds an XDR InvokeHostFunctionOp and the XDR
// AccountId of its source.
type InvokeHostFunctionParams struct {
	Handle               ledger.Handle
	InvokeHostFunctionOp []byte
	SourceAccount        []byte
	LedgerInfo           LedgerInfoParams
	ResourceConfig       ResourceConfig
	EnableDebug          bool
	AuthMode             AuthMode
}

// FootprintTTLParams holds an XDR OperationBody (ExtendFootprintTtl or
// RestoreFootprint) and the XDR LedgerFootprint it applies to.
type FootprintTTLParams struct {
	Handle        ledger.Handle
	OperationBody []byte
	Footprint     []byte
	LedgerInfo    LedgerInfoParams
}

type engineBinding struct {
	constraint version.Constraints
	raw        string
	engine     Engine
}

// Bridge dispatches preflight calls to the engine registered for the
// requested protocol version. It is safe for concurrent use; no state is
// carried from one call to the next.
type Bridge struct {
	registry *ledger.Registry
	random   io.Reader
	recorder metrics.Recorder

	mu      sync.RWMutex
	engines []engineBinding
}

type Option func(*Bridge)

// WithRandomness sets the source of per-call engine seeds.
func WithRandomness(r io.Reader) Option {
	return func(b *Bridge) {
		b.random = r
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(b *Bridge) {
		b.recorder = r
	}
}

func NewBridge(registry *ledger.Registry, opts ...Option) *Bridge {
	b := &Bridge{
		registry: registry,
		random:   rand.Reader,
		recorder: metrics.Noop{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register binds engine to the protocol versions matching constraint, for
// example ">= 23" or "~> 22.0". Earlier registrations take precedence.
func (b *Bridge) Register(constraint string, engine Engine) error {
	c, err := version.NewConstraint(constraint)
	if err != nil {
		return errors.WrapValidationError(fmt.Sprintf("invalid protocol constraint %q: %v", constraint, err))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.engines = append(b.engines, engineBinding{constraint: c, raw: constraint, engine: engine})
	return nil
}

func (b *Bridge) engineFor(protocol uint32) (Engine, error) {
	v, err := version.NewVersion(strconv.FormatUint(uint64(protocol), 10))
	if err != nil {
		return nil, errors.WrapUnsupportedProtocol(protocol)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, binding := range b.engines {
		if binding.constraint.Check(v) {
			logger.Logger.Debug("Engine selected", "protocol", protocol, "constraint", binding.raw)
			return binding.engine, nil
		}
	}
	return nil, errors.WrapUnsupportedProtocol(protocol)
}

// PreflightInvokeHostFunction simulates an InvokeHostFunctionOp and, when
// it succeeds, the restoration of any expired entry it read.
func (b *Bridge) PreflightInvokeHostFunction(ctx context.Context, params InvokeHostFunctionParams) Result {
	ctx, span := telemetry.GetTracer().Start(ctx, "preflight_invoke_host_function")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("ledger.protocol_version", int64(params.LedgerInfo.ProtocolVersion)),
		attribute.Int64("ledger.sequence", int64(params.LedgerInfo.SequenceNumber)),
		attribute.String("auth_mode", params.AuthMode.String()),
	)

	return b.run(ctx, span, OperationInvokeHostFunction, func(c *call) Result {
		return b.invokeHostFunction(ctx, c, params)
	})
}

// PreflightFootprintTTL simulates an ExtendFootprintTtl or RestoreFootprint
// operation over the given footprint.
func (b *Bridge) PreflightFootprintTTL(ctx context.Context, params FootprintTTLParams) Result {
	ctx, span := telemetry.GetTracer().Start(ctx, "preflight_footprint_ttl")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("ledger.protocol_version", int64(params.LedgerInfo.ProtocolVersion)),
		attribute.Int64("ledger.sequence", int64(params.LedgerInfo.SequenceNumber)),
	)

	return b.run(ctx, span, OperationFootprintTTL, func(c *call) Result {
		return b.footprintTTL(ctx, c, params)
	})
}

// call holds the per-call snapshot so a recovered panic can still report a
// poisoned storage.
type call struct {
	snap *LedgerSnapshot
}

func (c *call) fail(err error) Result {
	msg, class := extractError(c.snap, err)
	return Result{Error: msg, ErrorClass: class}
}

func (b *Bridge) run(ctx context.Context, span trace.Span, operation string, fn func(*call) Result) (res Result) {
	start := time.Now()
	c := &call{}

	defer func() {
		if r := recover(); r != nil {
			logger.Logger.Error("Engine panicked", "operation", operation, "panic", r)
			res = c.fail(errors.WrapEngineFailure(fmt.Errorf("panic: %v", r)))
		}

		status := metrics.StatusOK
		if res.Error != "" {
			status = metrics.StatusError
			span.SetAttributes(attribute.String("error.class", res.ErrorClass.String()))
			logger.Logger.Warn("Preflight failed", "operation", operation, "class", res.ErrorClass.String(), "error", res.Error)
		}
		if res.ErrorClass == ErrorClassStorage {
			b.recorder.IncStorageCorruption()
		}
		b.recorder.ObserveRequest(operation, status, time.Since(start))
	}()

	logger.Logger.Debug("Preflight started", "operation", operation)
	return fn(c)
}

func (b *Bridge) loadLedger(ctx context.Context, c *call, engine Engine, storage ledger.Storage, p LedgerInfoParams) (NetworkConfig, LedgerInfo, error) {
	_, span := telemetry.GetTracer().Start(ctx, "load_network_config")
	defer span.End()

	c.snap = NewLedgerSnapshot(storage)
	nc, err := engine.LoadNetworkConfig(c.snap, p.BucketListSize)
	if err != nil {
		span.RecordError(err)
		return nil, LedgerInfo{}, err
	}

	li := LedgerInfo{
		ProtocolVersion: p.ProtocolVersion,
		SequenceNumber:  p.SequenceNumber,
		Timestamp:       p.Timestamp,
		NetworkID:       network.ID(p.NetworkPassphrase),
		BaseReserve:     p.BaseReserve,
	}
	nc.FillLedgerInfo(&li)
	return nc, li, nil
}

func (b *Bridge) seed() ([32]byte, error) {
	var seed [32]byte
	if _, err := io.ReadFull(b.random, seed[:]); err != nil {
		return seed, errors.WrapEngineFailure(fmt.Errorf("failed to draw seed: %w", err))
	}
	return seed, nil
}

func (b *Bridge) invokeHostFunction(ctx context.Context, c *call, p InvokeHostFunctionParams) Result {
	storage, err := b.registry.Resolve(p.Handle)
	if err != nil {
		return c.fail(err)
	}

	var op xdr.InvokeHostFunctionOp
	if err := xdr.SafeUnmarshal(p.InvokeHostFunctionOp, &op); err != nil {
		return c.fail(errors.WrapDecodeFailed("invoke host function op", err))
	}
	var source xdr.AccountId
	if err := xdr.SafeUnmarshal(p.SourceAccount, &source); err != nil {
		return c.fail(errors.WrapDecodeFailed("source account", err))
	}

	engine, err := b.engineFor(p.LedgerInfo.ProtocolVersion)
	if err != nil {
		return c.fail(err)
	}
	adjustment, err := DefaultAdjustmentConfig().WithInstructionLeeway(p.ResourceConfig.InstructionLeeway)
	if err != nil {
		return c.fail(err)
	}
	mode, err := ParseAuthMode(uint32(p.AuthMode))
	if err != nil {
		return c.fail(err)
	}

	nc, li, err := b.loadLedger(ctx, c, engine, storage, p.LedgerInfo)
	if err != nil {
		return c.fail(err)
	}
	auto := NewAutoRestoringSnapshot(c.snap, li)

	seed, err := b.seed()
	if err != nil {
		return c.fail(err)
	}

	simCtx, span := telemetry.GetTracer().Start(ctx, "simulate")
	sim, err := engine.SimulateInvokeHostFunction(simCtx, auto, nc, adjustment, li, InvokeArgs{
		HostFunction: op.HostFunction,
		Auth:         mode.Policy(op.Auth),
		Source:       source,
		Seed:         seed,
		EnableDebug:  p.EnableDebug,
	})
	span.End()
	if err != nil {
		return c.fail(err)
	}
	if sim == nil {
		return c.fail(errors.WrapEngineFailure(fmt.Errorf("engine returned no invocation result")))
	}

	var (
		restore *RestoreSimulation
		outcome error
	)
	if sim.InvokeErr != nil {
		outcome = sim.InvokeErr
	} else if !c.snap.Poisoned() {
		restore, outcome = b.restorePass(ctx, auto, engine, nc)
	}

	msg, class := extractError(c.snap, outcome)
	res, err := newInvokeResult(sim, restore)
	if err != nil {
		return c.fail(err)
	}
	res.Error, res.ErrorClass = msg, class
	return res
}

func (b *Bridge) restorePass(ctx context.Context, auto *AutoRestoringSnapshot, engine Engine, nc NetworkConfig) (*RestoreSimulation, error) {
	ctx, span := telemetry.GetTracer().Start(ctx, "auto_restore")
	defer span.End()

	keys := auto.PendingRestore()
	span.SetAttributes(attribute.Int("restore.keys", len(keys)))
	if len(keys) > 0 {
		logger.Logger.Debug("Simulating restore of expired entries", "keys", len(keys))
	}

	restore, err := auto.SimulateRestoreKeys(ctx, engine, nc)
	if err != nil {
		span.RecordError(err)
	}
	return restore, err
}

func (b *Bridge) footprintTTL(ctx context.Context, c *call, p FootprintTTLParams) Result {
	storage, err := b.registry.Resolve(p.Handle)
	if err != nil {
		return c.fail(err)
	}

	var body xdr.OperationBody
	if err := xdr.SafeUnmarshal(p.OperationBody, &body); err != nil {
		return c.fail(errors.WrapDecodeFailed("operation body", err))
	}
	var footprint xdr.LedgerFootprint
	if err := xdr.SafeUnmarshal(p.Footprint, &footprint); err != nil {
		return c.fail(errors.WrapDecodeFailed("ledger footprint", err))
	}

	switch body.Type {
	case xdr.OperationTypeExtendFootprintTtl, xdr.OperationTypeRestoreFootprint:
	default:
		return c.fail(&UnsupportedOperationError{Type: body.Type})
	}

	engine, err := b.engineFor(p.LedgerInfo.ProtocolVersion)
	if err != nil {
		return c.fail(err)
	}
	nc, li, err := b.loadLedger(ctx, c, engine, storage, p.LedgerInfo)
	if err != nil {
		return c.fail(err)
	}

	if body.Type == xdr.OperationTypeExtendFootprintTtl {
		if body.ExtendFootprintTtlOp == nil {
			return c.fail(errors.WrapDecodeFailed("operation body", fmt.Errorf("missing ExtendFootprintTtl arm")))
		}
		return b.extendTTL(ctx, c, engine, nc, li, footprint.ReadOnly, uint32(body.ExtendFootprintTtlOp.ExtendTo))
	}
	return b.restoreFootprint(ctx, c, engine, nc, li, footprint.ReadWrite)
}

func (b *Bridge) extendTTL(ctx context.Context, c *call, engine Engine, nc NetworkConfig, li LedgerInfo, keys []xdr.LedgerKey, extendTo uint32) Result {
	auto := NewAutoRestoringSnapshot(c.snap, li)

	simCtx, span := telemetry.GetTracer().Start(ctx, "simulate")
	sim, err := engine.SimulateExtendTTL(simCtx, auto, nc, DefaultAdjustmentConfig(), li, keys, extendTo)
	span.End()

	var (
		txData  *xdr.SorobanTransactionData
		restore *RestoreSimulation
		outcome = err
	)
	if err == nil && sim != nil {
		txData = &sim.TransactionData
		if !c.snap.Poisoned() {
			restore, outcome = b.restorePass(ctx, auto, engine, nc)
		}
	} else if err == nil {
		outcome = errors.WrapEngineFailure(fmt.Errorf("engine returned no extension result"))
	}

	if outcome != nil {
		restore = nil
	}
	msg, class := extractError(c.snap, outcome)
	res, err := newTransactionDataResult(txData, restore)
	if err != nil {
		return c.fail(err)
	}
	res.Error, res.ErrorClass = msg, class
	return res
}

func (b *Bridge) restoreFootprint(ctx context.Context, c *call, engine Engine, nc NetworkConfig, li LedgerInfo, keys []xdr.LedgerKey) Result {
	simCtx, span := telemetry.GetTracer().Start(ctx, "simulate")
	sim, err := engine.SimulateRestore(simCtx, c.snap, nc, DefaultAdjustmentConfig(), li, keys)
	span.End()

	var txData *xdr.SorobanTransactionData
	if err == nil && sim != nil {
		txData = &sim.TransactionData
	} else if err == nil {
		err = errors.WrapEngineFailure(fmt.Errorf("engine returned no restore result"))
	}

	msg, class := extractError(c.snap, err)
	res, encErr := newTransactionDataResult(txData, nil)
	if encErr != nil {
		return c.fail(encErr)
	}
	res.Error, res.ErrorClass = msg, class
	return res
}
