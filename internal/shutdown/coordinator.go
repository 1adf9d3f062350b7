// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

// Package shutdown releases process resources, such as open ledger stores
// and trace exporters, when a command finishes or is interrupted.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dotandev/preflight/internal/logger"
)

type HookFunc func(context.Context) error

type hook struct {
	name string
	fn   HookFunc
}

// Coordinator runs registered hooks exactly once, newest first. Hooks
// registered after Run are dropped.
type Coordinator struct {
	mu    sync.Mutex
	hooks []hook
	ran   bool
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

func (c *Coordinator) Register(name string, fn HookFunc) {
	if fn == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ran {
		logger.Logger.Debug("Shutdown hook registered after run, ignoring", "hook", name)
		return
	}
	c.hooks = append(c.hooks, hook{name: name, fn: fn})
}

// Len reports the hooks still waiting to run.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ran {
		return 0
	}
	return len(c.hooks)
}

// Run calls every hook and joins their errors. The deadline of ctx, if
// any, is split evenly across the hooks that have not run yet.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.ran {
		c.mu.Unlock()
		return nil
	}
	c.ran = true
	hooks := c.hooks
	c.hooks = nil
	c.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]

		start := time.Now()
		hookCtx, cancel := hookContext(ctx, i+1)
		err := h.fn(hookCtx)
		cancel()
		if err != nil {
			logger.Logger.Warn("Shutdown hook failed", "hook", h.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		logger.Logger.Debug("Shutdown hook done", "hook", h.name, "duration", time.Since(start))
	}

	return errors.Join(errs...)
}

func hookContext(ctx context.Context, remainingHooks int) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok || remainingHooks <= 0 {
		return ctx, func() {}
	}

	left := time.Until(deadline)
	if left <= 0 {
		return context.WithTimeout(ctx, time.Millisecond)
	}
	return context.WithTimeout(ctx, left/time.Duration(remainingHooks))
}
