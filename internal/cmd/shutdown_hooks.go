// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"sync"
	"time"

	"github.com/dotandev/preflight/internal/logger"
	"github.com/dotandev/preflight/internal/shutdown"
)

const shutdownTimeout = 3 * time.Second

var shutdownState struct {
	mu          sync.RWMutex
	coordinator *shutdown.Coordinator
}

func setShutdownCoordinator(c *shutdown.Coordinator) {
	shutdownState.mu.Lock()
	defer shutdownState.mu.Unlock()
	shutdownState.coordinator = c
}

func clearShutdownCoordinator() {
	shutdownState.mu.Lock()
	defer shutdownState.mu.Unlock()
	shutdownState.coordinator = nil
}

// registerShutdownHook is a no-op outside Execute, e.g. in tests.
func registerShutdownHook(name string, fn shutdown.HookFunc) {
	shutdownState.mu.RLock()
	c := shutdownState.coordinator
	shutdownState.mu.RUnlock()
	if c == nil {
		return
	}
	c.Register(name, fn)
}

func runShutdownHooksWithTimeout(c *shutdown.Coordinator, timeout time.Duration) {
	if c == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		logger.Logger.Warn("Shutdown hooks completed with errors", "error", err)
	}
}

// registerSessionCloseHook makes sure the ledger store is closed even when
// a command is interrupted before its own deferred close runs.
func registerSessionCloseHook(s *session) {
	registerShutdownHook("ledger-store-close", func(ctx context.Context) error {
		_ = ctx
		return s.Close()
	})
}
