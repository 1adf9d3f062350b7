// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/dotandev/preflight/internal/daemon"
	"github.com/dotandev/preflight/internal/preflight"
)

var (
	labelColor = color.New(color.Bold)
	okColor    = color.New(color.FgGreen, color.Bold)
	errColor   = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)
)

// printResult writes res and returns ErrPreflightFailed when it carries an
// error, so the process exits non-zero after the result is shown.
func printResult(w io.Writer, res preflight.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(daemon.NewResponse(res)); err != nil {
			return err
		}
	} else {
		printHuman(w, res)
	}

	if res.Error != "" {
		return fmt.Errorf("%w (%s)", ErrPreflightFailed, res.ErrorClass)
	}
	return nil
}

func field(w io.Writer, label string, format string, args ...interface{}) {
	labelColor.Fprintf(w, "%-22s", label+":")
	fmt.Fprintf(w, format+"\n", args...)
}

func b64(b []byte) string {
	if len(b) == 0 {
		return "-"
	}
	return base64.StdEncoding.EncodeToString(b)
}

func printHuman(w io.Writer, res preflight.Result) {
	if res.Error != "" {
		labelColor.Fprintf(w, "%-22s", "Status:")
		errColor.Fprintf(w, "failed (%s)\n", res.ErrorClass)
		field(w, "Error", "%s", res.Error)
		if len(res.TransactionData) == 0 {
			return
		}
	} else {
		labelColor.Fprintf(w, "%-22s", "Status:")
		okColor.Fprintln(w, "ok")
	}

	field(w, "Min resource fee", "%d stroops", res.MinFee)
	field(w, "CPU instructions", "%d", res.CPUInstructions)
	field(w, "Memory bytes", "%d", res.MemoryBytes)
	if len(res.Result) > 0 {
		field(w, "Result", "%s", b64(res.Result))
	}
	field(w, "Transaction data", "%s", b64(res.TransactionData))
	field(w, "Auth entries", "%d", len(res.Auth))
	for i, a := range res.Auth {
		fmt.Fprintf(w, "  [%d] %s\n", i, b64(a))
	}
	field(w, "Diagnostic events", "%d", len(res.Events))
	field(w, "Ledger changes", "%d", len(res.LedgerEntryDiff))

	if len(res.PreRestoreTransactionData) > 0 {
		warnColor.Fprintln(w, "Archived entries must be restored first:")
		field(w, "  Restore fee", "%d stroops", res.PreRestoreMinFee)
		field(w, "  Restore tx data", "%s", b64(res.PreRestoreTransactionData))
	}
}
