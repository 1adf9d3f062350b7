// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package simulator

import (
	"os/exec"
	"time"

	"github.com/dotandev/preflight/internal/logger"
)

func prepareCommand(*exec.Cmd) {}

// terminateCommand kills the simulator right away; there is no graceful
// signal to send on windows.
func terminateCommand(cmd *exec.Cmd, _ time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	logger.Logger.Debug("Killing simulator", "pid", cmd.Process.Pid)
	return cmd.Process.Kill()
}
