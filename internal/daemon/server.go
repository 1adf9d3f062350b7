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

package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dotandev/preflight/internal/ledger"
	"github.com/dotandev/preflight/internal/logger"
	"github.com/dotandev/preflight/internal/metrics"
	"github.com/dotandev/preflight/internal/preflight"
	"github.com/dotandev/preflight/internal/telemetry"
)

// ServiceName prefixes the JSON-RPC methods, e.g. "Preflight.InvokeHostFunction".
const ServiceName = "Preflight"

// Server represents the JSON-RPC daemon server
type Server struct {
	bridge    *preflight.Bridge
	handle    ledger.Handle
	authToken string
	metrics   *metrics.Prometheus
	defaults  Defaults
	limiter   *workerLimiter
}

// Defaults fill request fields the caller left out.
type Defaults struct {
	NetworkPassphrase string
	EnableDebug       bool
	InstructionLeeway uint64
	AuthMode          preflight.AuthMode
}

// Config holds daemon configuration
type Config struct {
	AuthToken string
	Defaults  Defaults
	// Metrics is served on /metrics when set.
	Metrics *metrics.Prometheus
	// Workers bounds concurrent preflights and QueueSize the requests
	// waiting for one. Zero means runtime.NumCPU().
	Workers   int
	QueueSize int
}

// LedgerInfoArgs is the ledger section of a request. An empty passphrase
// selects the daemon's network.
type LedgerInfoArgs struct {
	ProtocolVersion   uint32 `json:"protocol_version"`
	SequenceNumber    uint32 `json:"sequence_number"`
	Timestamp         uint64 `json:"timestamp"`
	BaseReserve       uint32 `json:"base_reserve"`
	BucketListSize    uint64 `json:"bucket_list_size"`
	NetworkPassphrase string `json:"network_passphrase,omitempty"`
}

// InvokeHostFunctionRequest carries base64 XDR. SourceAccount may also be a
// G... address.
type InvokeHostFunctionRequest struct {
	InvokeHostFunctionOp string         `json:"invoke_host_function_op"`
	SourceAccount        string         `json:"source_account"`
	LedgerInfo           LedgerInfoArgs `json:"ledger_info"`
	InstructionLeeway    *uint64        `json:"instruction_leeway,omitempty"`
	EnableDebug          *bool          `json:"enable_debug,omitempty"`
	AuthMode             string         `json:"auth_mode,omitempty"`
}

type FootprintTTLRequest struct {
	OperationBody string         `json:"operation_body"`
	Footprint     string         `json:"footprint"`
	LedgerInfo    LedgerInfoArgs `json:"ledger_info"`
}

// PreflightResponse is preflight.Result with its error class spelled out.
type PreflightResponse struct {
	preflight.Result
	ErrorClass string `json:"error_class,omitempty"`
}

// NewServer creates a JSON-RPC server answering from the ledger storage
// registered under handle.
func NewServer(bridge *preflight.Bridge, handle ledger.Handle, config Config) *Server {
	return &Server{
		bridge:    bridge,
		handle:    handle,
		authToken: config.AuthToken,
		metrics:   config.Metrics,
		defaults:  config.Defaults,
		limiter:   newWorkerLimiter(config.Workers, config.QueueSize),
	}
}

// authenticate validates the authorization token
func (s *Server) authenticate(r *http.Request) bool {
	if s.authToken == "" {
		return true // No auth required
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		return false
	}

	// Support "Bearer <token>" format
	if strings.HasPrefix(auth, "Bearer ") {
		token := strings.TrimPrefix(auth, "Bearer ")
		return token == s.authToken
	}

	return auth == s.authToken
}

func unauthorized() error {
	return &json2.Error{Code: json2.E_SERVER, Message: "unauthorized"}
}

func badParams(err error) error {
	return &json2.Error{Code: json2.E_BAD_PARAMS, Message: err.Error()}
}

func (s *Server) ledgerInfo(args LedgerInfoArgs) preflight.LedgerInfoParams {
	passphrase := args.NetworkPassphrase
	if passphrase == "" {
		passphrase = s.defaults.NetworkPassphrase
	}
	return preflight.LedgerInfoParams{
		ProtocolVersion:   args.ProtocolVersion,
		SequenceNumber:    args.SequenceNumber,
		Timestamp:         args.Timestamp,
		BaseReserve:       args.BaseReserve,
		BucketListSize:    args.BucketListSize,
		NetworkPassphrase: passphrase,
	}
}

// NewResponse wraps res, naming its error class when it failed.
func NewResponse(res preflight.Result) PreflightResponse {
	resp := PreflightResponse{Result: res}
	if res.Error != "" {
		resp.ErrorClass = res.ErrorClass.String()
	}
	return resp
}

// InvokeHostFunction handles Preflight.InvokeHostFunction calls
func (s *Server) InvokeHostFunction(r *http.Request, req *InvokeHostFunctionRequest, resp *PreflightResponse) error {
	if !s.authenticate(r) {
		return unauthorized()
	}

	ctx := r.Context()
	tracer := telemetry.GetTracer()
	ctx, span := tracer.Start(ctx, "rpc_invoke_host_function")
	defer span.End()

	params := preflight.InvokeHostFunctionParams{
		Handle:      s.handle,
		LedgerInfo:  s.ledgerInfo(req.LedgerInfo),
		EnableDebug: s.defaults.EnableDebug,
		AuthMode:    s.defaults.AuthMode,
		ResourceConfig: preflight.ResourceConfig{
			InstructionLeeway: s.defaults.InstructionLeeway,
		},
	}

	var err error
	if params.InvokeHostFunctionOp, err = preflight.DecodeXDRArg("invoke host function op", req.InvokeHostFunctionOp); err != nil {
		return badParams(err)
	}
	if params.SourceAccount, err = preflight.DecodeSourceAccount(req.SourceAccount); err != nil {
		return badParams(err)
	}
	if req.AuthMode != "" {
		if params.AuthMode, err = preflight.ParseAuthModeString(req.AuthMode); err != nil {
			return badParams(err)
		}
	}
	if req.InstructionLeeway != nil {
		params.ResourceConfig.InstructionLeeway = *req.InstructionLeeway
	}
	if req.EnableDebug != nil {
		params.EnableDebug = *req.EnableDebug
	}

	span.SetAttributes(attribute.String("source_account", preflight.SourceAddress(params.SourceAccount)))
	logger.Logger.Info("Processing InvokeHostFunction RPC", "protocol", req.LedgerInfo.ProtocolVersion, "sequence", req.LedgerInfo.SequenceNumber)

	release, err := s.limiter.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	*resp = NewResponse(s.bridge.PreflightInvokeHostFunction(ctx, params))
	return nil
}

// FootprintTTL handles Preflight.FootprintTTL calls
func (s *Server) FootprintTTL(r *http.Request, req *FootprintTTLRequest, resp *PreflightResponse) error {
	if !s.authenticate(r) {
		return unauthorized()
	}

	ctx := r.Context()
	tracer := telemetry.GetTracer()
	ctx, span := tracer.Start(ctx, "rpc_footprint_ttl")
	defer span.End()

	params := preflight.FootprintTTLParams{
		Handle:     s.handle,
		LedgerInfo: s.ledgerInfo(req.LedgerInfo),
	}
	var err error
	if params.OperationBody, err = preflight.DecodeXDRArg("operation body", req.OperationBody); err != nil {
		return badParams(err)
	}
	if params.Footprint, err = preflight.DecodeXDRArg("ledger footprint", req.Footprint); err != nil {
		return badParams(err)
	}

	logger.Logger.Info("Processing FootprintTTL RPC", "protocol", req.LedgerInfo.ProtocolVersion, "sequence", req.LedgerInfo.SequenceNumber)

	release, err := s.limiter.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	*resp = NewResponse(s.bridge.PreflightFootprintTTL(ctx, params))
	return nil
}

// Handler returns the HTTP handler serving /rpc, /health and, when enabled,
// /metrics.
func (s *Server) Handler() (http.Handler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	server.RegisterCodec(json2.NewCodec(), "application/json;charset=UTF-8")

	if err := server.RegisterService(s, ServiceName); err != nil {
		return nil, fmt.Errorf("failed to register service: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/rpc", server)

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	if s.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return mux, nil
}

// Start serves on port until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port string) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", port, err)
	}
	logger.Logger.Info("Starting JSON-RPC server", "addr", ln.Addr().String())

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for context cancellation
	<-ctx.Done()
	logger.Logger.Info("Shutting down JSON-RPC server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
