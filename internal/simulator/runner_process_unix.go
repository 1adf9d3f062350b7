// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

//go:build !windows

package simulator

import (
	"errors"
	"os/exec"
	"syscall"
	"time"

	"github.com/dotandev/preflight/internal/logger"
)

const exitPollInterval = 25 * time.Millisecond

// prepareCommand puts the simulator in its own process group so helper
// processes it spawns are stopped with it.
func prepareCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateCommand asks the simulator group to stop and kills it when it is
// still running after grace.
func terminateCommand(cmd *exec.Cmd, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	group := -cmd.Process.Pid
	if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
		group = -pgid
	}

	if err := signalGroup(group, syscall.SIGTERM); err != nil {
		return err
	}

	ticker := time.NewTicker(exitPollInterval)
	defer ticker.Stop()
	timeout := time.After(grace)
	for {
		select {
		case <-ticker.C:
			if !alive(cmd.Process.Pid) {
				return nil
			}
		case <-timeout:
			logger.Logger.Warn("Simulator ignored SIGTERM, killing it", "pid", cmd.Process.Pid, "grace", grace)
			return signalGroup(group, syscall.SIGKILL)
		}
	}
}

func signalGroup(group int, sig syscall.Signal) error {
	if err := syscall.Kill(group, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

func alive(pid int) bool {
	return !errors.Is(syscall.Kill(pid, 0), syscall.ESRCH)
}
