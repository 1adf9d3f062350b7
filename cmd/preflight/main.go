// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/dotandev/preflight/internal/cmd"
)

var Version = "dev"

func main() {
	cmd.Version = Version
	os.Exit(exitCode(cmd.Execute(), os.Stderr))
}

// exitCode reports err on w when the command has not shown it already.
func exitCode(err error, w io.Writer) int {
	switch {
	case err == nil:
		return 0
	case cmd.IsInterrupted(err):
		return cmd.InterruptExitCode
	case errors.Is(err, cmd.ErrPreflightFailed):
		// the result, error included, has already been printed
		return 1
	default:
		color.New(color.FgRed).Fprintf(w, "Error: %v\n", err)
		return 1
	}
}
