// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dotandev/preflight/internal/cmd"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		want      int
		wantPrint string
	}{
		{name: "success", err: nil, want: 0},
		{name: "interrupt", err: cmd.ErrInterrupted, want: cmd.InterruptExitCode},
		{name: "failed result", err: fmt.Errorf("%w (simulation)", cmd.ErrPreflightFailed), want: 1},
		{name: "other error", err: stderrors.New("config file not found"), want: 1, wantPrint: "Error: config file not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Equal(t, tt.want, exitCode(tt.err, &buf))
			if tt.wantPrint == "" {
				assert.Empty(t, buf.String())
			} else {
				assert.Contains(t, buf.String(), tt.wantPrint)
			}
		})
	}
}
