// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package simulator

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/stellar/go/xdr"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dotandev/preflight/internal/errors"
	"github.com/dotandev/preflight/internal/logger"
	"github.com/dotandev/preflight/internal/preflight"
	"github.com/dotandev/preflight/internal/telemetry"
)

const (
	binaryName          = "preflight-sim"
	maxLineSize         = 16 << 20
	defaultGraceTimeout = 2 * time.Second
)

// Runner is an engine backed by an external simulator binary. Each call
// starts a fresh process; ledger entries are served to it on demand.
type Runner struct {
	BinaryPath string
	Args       []string
	// Env is appended to the environment of the child.
	Env          []string
	GraceTimeout time.Duration
}

var _ preflight.Engine = (*Runner)(nil)

// NewRunner uses path when set, otherwise it checks for the binary in
// common locations.
func NewRunner(path string) (*Runner, error) {
	if path != "" {
		return &Runner{BinaryPath: path}, nil
	}

	// 1. Check environment variable
	if envPath := os.Getenv("PREFLIGHT_SIMULATOR_PATH"); envPath != "" {
		return &Runner{BinaryPath: envPath}, nil
	}

	// 2. Check current directory (for Docker/Production)
	if cwd, err := os.Getwd(); err == nil {
		localPath := filepath.Join(cwd, binaryName)
		if _, err := os.Stat(localPath); err == nil {
			return &Runner{BinaryPath: localPath}, nil
		}
	}

	// 3. Check global PATH
	if path, err := exec.LookPath(binaryName); err == nil {
		return &Runner{BinaryPath: path}, nil
	}

	return nil, errors.WrapSimulatorNotFound("Please build it or set PREFLIGHT_SIMULATOR_PATH")
}

func (r *Runner) LoadNetworkConfig(src preflight.SnapshotSource, bucketListSize uint64) (preflight.NetworkConfig, error) {
	nc, err := LoadNetworkConfig(src, bucketListSize)
	if err != nil {
		return nil, err
	}
	return nc, nil
}

func (r *Runner) newRequest(kind string, nc preflight.NetworkConfig, adj preflight.AdjustmentConfig, li preflight.LedgerInfo) (*Request, error) {
	cfg, ok := nc.(*NetworkConfig)
	if !ok {
		return nil, errors.WrapEngineFailure(fmt.Errorf("unexpected network config %T", nc))
	}
	return &Request{
		Type:          kind,
		LedgerInfo:    ledgerInfoMessage(li),
		NetworkConfig: *cfg,
		Adjustment:    adjustmentMessage(adj),
	}, nil
}

func (r *Runner) SimulateInvokeHostFunction(ctx context.Context, src preflight.SnapshotSource, nc preflight.NetworkConfig, adj preflight.AdjustmentConfig, li preflight.LedgerInfo, args preflight.InvokeArgs) (*preflight.InvokeHostFunctionSimulation, error) {
	req, err := r.newRequest(MessageInvokeHostFunction, nc, adj, li)
	if err != nil {
		return nil, err
	}
	if req.HostFunction, err = xdr.MarshalBase64(args.HostFunction); err != nil {
		return nil, errors.WrapEncodeFailed("host function", err)
	}
	if req.Source, err = xdr.MarshalBase64(args.Source); err != nil {
		return nil, errors.WrapEncodeFailed("source account", err)
	}
	req.Seed = hex.EncodeToString(args.Seed[:])
	req.EnableDebug = args.EnableDebug
	req.Auth = &AuthMessage{
		Enforce:         args.Auth.Enforce,
		RequireRootAuth: args.Auth.RequireRootAuth,
		Entries:         []string{},
	}
	for _, e := range args.Auth.Entries {
		s, err := xdr.MarshalBase64(e)
		if err != nil {
			return nil, errors.WrapEncodeFailed("authorization entry", err)
		}
		req.Auth.Entries = append(req.Auth.Entries, s)
	}

	msg, err := r.exchange(ctx, src, req)
	if err != nil {
		return nil, err
	}
	return msg.invokeSimulation()
}

func (r *Runner) SimulateExtendTTL(ctx context.Context, src preflight.SnapshotSource, nc preflight.NetworkConfig, adj preflight.AdjustmentConfig, li preflight.LedgerInfo, keys []xdr.LedgerKey, extendTo uint32) (*preflight.ExtendTTLSimulation, error) {
	req, err := r.newRequest(MessageExtendTTL, nc, adj, li)
	if err != nil {
		return nil, err
	}
	if req.Keys, err = encodeKeys(keys); err != nil {
		return nil, err
	}
	req.ExtendTo = extendTo

	data, err := r.transactionData(ctx, src, req)
	if err != nil {
		return nil, err
	}
	return &preflight.ExtendTTLSimulation{TransactionData: *data}, nil
}

func (r *Runner) SimulateRestore(ctx context.Context, src preflight.SnapshotSource, nc preflight.NetworkConfig, adj preflight.AdjustmentConfig, li preflight.LedgerInfo, keys []xdr.LedgerKey) (*preflight.RestoreSimulation, error) {
	req, err := r.newRequest(MessageRestore, nc, adj, li)
	if err != nil {
		return nil, err
	}
	if req.Keys, err = encodeKeys(keys); err != nil {
		return nil, err
	}

	data, err := r.transactionData(ctx, src, req)
	if err != nil {
		return nil, err
	}
	return &preflight.RestoreSimulation{TransactionData: *data}, nil
}

func (r *Runner) transactionData(ctx context.Context, src preflight.SnapshotSource, req *Request) (*xdr.SorobanTransactionData, error) {
	msg, err := r.exchange(ctx, src, req)
	if err != nil {
		return nil, err
	}
	if msg.Error != "" {
		return nil, stderrors.New(msg.Error)
	}
	data, err := msg.transactionData()
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.WrapEngineFailure(fmt.Errorf("simulator returned no transaction data for %s", req.Type))
	}
	return data, nil
}

func (r *Runner) graceTimeout() time.Duration {
	if r.GraceTimeout > 0 {
		return r.GraceTimeout
	}
	return defaultGraceTimeout
}

// exchange runs one simulator process for req. A snapshot read failure
// wins over whatever the child reports afterwards.
func (r *Runner) exchange(ctx context.Context, src preflight.SnapshotSource, req *Request) (*Message, error) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.Start(ctx, "simulator_exchange")
	defer span.End()
	span.SetAttributes(
		attribute.String("simulator.binary_path", r.BinaryPath),
		attribute.String("simulator.request", req.Type),
	)

	cmd := exec.CommandContext(ctx, r.BinaryPath, r.Args...)
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	prepareCommand(cmd)
	cmd.Cancel = func() error {
		return terminateCommand(cmd, r.graceTimeout())
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.WrapSimulationFailed(err, "")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.WrapSimulationFailed(err, "")
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Logger.Debug("Starting simulator", "binary", r.BinaryPath, "request", req.Type)
	if err := cmd.Start(); err != nil {
		span.RecordError(err)
		return nil, errors.WrapSimulationFailed(err, "")
	}

	conv := &conversation{src: src}
	msg, convErr := conv.run(req, stdin, stdout)
	storageErr := conv.storageErr
	_ = stdin.Close()
	if convErr != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	waitErr := cmd.Wait()

	span.SetAttributes(attribute.Int("response.stderr_size", stderr.Len()))
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case storageErr != nil:
		span.RecordError(storageErr)
		return nil, storageErr
	case convErr != nil:
		span.RecordError(convErr)
		logger.Logger.Error("Simulator protocol error", "error", convErr, "stderr", stderr.String())
		return nil, convErr
	case waitErr != nil:
		span.RecordError(waitErr)
		logger.Logger.Error("Simulator execution failed", "error", waitErr, "stderr", stderr.String())
		return nil, errors.WrapSimulationFailed(waitErr, stderr.String())
	case msg == nil:
		return nil, errors.WrapEngineFailure(fmt.Errorf("simulator exited without a result"))
	case msg.Failure != "":
		span.SetAttributes(attribute.String("simulation.error", msg.Failure))
		return nil, stderrors.New(msg.Failure)
	}

	logger.Logger.Debug("Simulator finished", "request", req.Type)
	return msg, nil
}

// conversation serves the "get" lines of one simulator process and keeps
// the first snapshot read failure.
type conversation struct {
	src        preflight.SnapshotSource
	storageErr error
}

// run writes req and serves "get" lines until the result arrives.
func (c *conversation) run(req *Request, stdin io.Writer, stdout io.Reader) (*Message, error) {
	enc := json.NewEncoder(stdin)
	if err := enc.Encode(req); err != nil {
		return nil, errors.WrapEngineFailure(fmt.Errorf("failed to write simulator request: %w", err))
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, errors.WrapEngineFailure(fmt.Errorf("malformed simulator output %q: %v", line, err))
		}

		switch msg.Type {
		case MessageGet:
			reply, err := answer(c.src, msg.Key)
			if err != nil && c.storageErr == nil {
				c.storageErr = err
			}
			if err := enc.Encode(reply); err != nil {
				return nil, errors.WrapEngineFailure(fmt.Errorf("failed to answer simulator: %w", err))
			}
		case MessageResult:
			return &msg, nil
		default:
			return nil, errors.WrapEngineFailure(fmt.Errorf("unexpected simulator message %q", msg.Type))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WrapEngineFailure(fmt.Errorf("failed to read simulator output: %w", err))
	}
	return nil, nil
}

// answer looks up a base64 key for the child. The returned error is a
// snapshot failure and must reach the caller unchanged.
func answer(src preflight.SnapshotSource, keyB64 string) (EntryReply, error) {
	reply := EntryReply{Type: MessageEntry}

	var key xdr.LedgerKey
	if err := xdr.SafeUnmarshalBase64(keyB64, &key); err != nil {
		reply.Error = fmt.Sprintf("bad ledger key: %v", err)
		return reply, nil
	}

	entry, err := src.Get(key)
	if err != nil {
		reply.Error = err.Error()
		return reply, err
	}
	if entry == nil {
		return reply, nil
	}

	if reply.Entry, err = xdr.MarshalBase64(entry.Entry); err != nil {
		reply.Error = fmt.Sprintf("bad ledger entry: %v", err)
		return reply, nil
	}
	reply.LiveUntil = entry.LiveUntil
	return reply, nil
}
