// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package logger holds the process wide slog logger. The level starts from
// PREFLIGHT_LOG_LEVEL and can be changed at runtime.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	Logger *slog.Logger
	level  = new(slog.LevelVar)
	mu     sync.Mutex
)

// redacted attribute keys are never written out.
var redacted = map[string]bool{
	"auth_token":    true,
	"authorization": true,
}

func init() {
	level.Set(ParseLevel(os.Getenv("PREFLIGHT_LOG_LEVEL")))
	Logger = newLogger(os.Stderr, false)
}

// ParseLevel maps a level name to a slog level. Unknown names fall back to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG", "TRACE":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(w io.Writer, useJSON bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level.Level() <= slog.LevelDebug,
		ReplaceAttr: redact,
	}
	if useJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(NewTextHandler(w, opts))
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redacted[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}

func SetLevel(lvl slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level.Set(lvl)
}

// SetOutput rebuilds the logger on w. Source locations are only attached
// when the current level is debug.
func SetOutput(w io.Writer, useJSON bool) {
	mu.Lock()
	defer mu.Unlock()
	Logger = newLogger(w, useJSON)
}

// TextHandler is the human readable handler. When source locations are
// requested only debug records carry them; the rest stay short.
type TextHandler struct {
	debug slog.Handler
	plain slog.Handler
}

func NewTextHandler(w io.Writer, opts *slog.HandlerOptions) *TextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	plainOpts := *opts
	plainOpts.AddSource = false
	return &TextHandler{
		debug: slog.NewTextHandler(w, opts),
		plain: slog.NewTextHandler(w, &plainOpts),
	}
}

func (h *TextHandler) pick(lvl slog.Level) slog.Handler {
	if lvl <= slog.LevelDebug {
		return h.debug
	}
	return h.plain
}

func (h *TextHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.pick(lvl).Enabled(ctx, lvl)
}

func (h *TextHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.pick(record.Level).Handle(ctx, record)
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TextHandler{debug: h.debug.WithAttrs(attrs), plain: h.plain.WithAttrs(attrs)}
}

func (h *TextHandler) WithGroup(name string) slog.Handler {
	return &TextHandler{debug: h.debug.WithGroup(name), plain: h.plain.WithGroup(name)}
}
