// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"TRACE", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "input %q", tt.in)
	}
}

func TestSetOutputJSON(t *testing.T) {
	defer SetOutput(os.Stderr, false)

	var buf bytes.Buffer
	SetLevel(slog.LevelInfo)
	SetOutput(&buf, true)

	Logger.Info("preflight finished", "operation", "invoke_host_function")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "preflight finished", record["msg"])
	assert.Equal(t, "invoke_host_function", record["operation"])
}

func TestSetLevelFiltersDebug(t *testing.T) {
	defer SetOutput(os.Stderr, false)
	defer SetLevel(slog.LevelInfo)

	var buf bytes.Buffer
	SetOutput(&buf, false)
	SetLevel(slog.LevelWarn)

	Logger.Debug("hidden")
	Logger.Info("hidden too")
	Logger.Warn("visible")

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.True(t, strings.Contains(out, "visible"))
}

func TestRedactsSecrets(t *testing.T) {
	defer SetOutput(os.Stderr, false)

	var buf bytes.Buffer
	SetLevel(slog.LevelInfo)
	SetOutput(&buf, true)

	Logger.Info("daemon configured", "auth_token", "secret123", "port", 8080)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "[redacted]", record["auth_token"])
	assert.Equal(t, float64(8080), record["port"])
}

func TestTextHandlerDropsSourceAboveDebug(t *testing.T) {
	defer SetOutput(os.Stderr, false)
	defer SetLevel(slog.LevelInfo)

	var buf bytes.Buffer
	SetLevel(slog.LevelDebug)
	SetOutput(&buf, false)

	Logger.Debug("with source")
	Logger.Info("without source")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "source=")
	assert.NotContains(t, lines[1], "source=")
}
