// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/afero"
	flag "github.com/spf13/pflag"

	"github.com/voterprotocol/shadowatlas/pkg/batch"
	"github.com/voterprotocol/shadowatlas/pkg/dlq"
	"github.com/voterprotocol/shadowatlas/pkg/storage"
)

// runIngestCmd dispatches `atlas ingest <subcommand>`: batch, resume,
// retry-dlq (spec.md §6). Every subcommand shares one FileAdapter
// rooted at cfg.StateFile so a checkpoint saved by `batch` can be
// picked up by `resume` in a later invocation.
func runIngestCmd(args []string, cfg *Config, globals GlobalFlags) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: atlas ingest batch|resume|retry-dlq")
		return 2
	}

	fs := afero.NewOsFs()
	adapter, err := storage.NewFileAdapter(fs, cfg.StateFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	queue := dlq.New(adapter)
	fetcher := newProviderFetcher(fs, cfg.CacheDir)
	orch := batch.New(fetcher, adapter, queue)
	orch.Progress = cliProgress(globals)

	sub, subArgs := args[0], args[1:]
	switch sub {
	case "batch":
		return ingestBatch(orch, subArgs, globals)
	case "resume":
		return ingestResume(orch, subArgs, globals)
	case "retry-dlq":
		return ingestRetryDLQ(orch, subArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown ingest subcommand: %s\n", sub)
		return 2
	}
}

// cliProgress renders a batch.ProgressFunc as a terminal progress bar,
// suppressed under --quiet/--json exactly as cmd/cie suppresses its own
// progress output in those modes.
func cliProgress(globals GlobalFlags) batch.ProgressFunc {
	if globals.Quiet {
		return nil
	}
	var bar *progressbar.ProgressBar
	return func(current, total int64, phase string) {
		if bar == nil {
			bar = progressbar.Default(total, phase)
		}
		_ = bar.Set64(current)
	}
}

func ingestBatch(orch *batch.Orchestrator, args []string, globals GlobalFlags) int {
	fs := flag.NewFlagSet("ingest batch", flag.ContinueOnError)
	states := fs.String("states", "", "Comma-separated state FIPS codes (required)")
	layers := fs.String("layers", "", "Comma-separated layer codes (required)")
	year := fs.Int("year", 0, "Vintage year (required)")
	maxConcurrent := fs.Int("max-concurrent-states", 0, "Override MaxConcurrentStates")
	breakerThreshold := fs.Int("circuit-breaker-threshold", 0, "Override CircuitBreakerThreshold")
	forceRefresh := fs.Bool("force-refresh", false, "Bypass the local content cache")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *states == "" || *layers == "" || *year == 0 {
		fmt.Fprintln(os.Stderr, "Error: --states, --layers, and --year are required")
		return 2
	}

	opts := batch.Options{
		States:                  splitCSV(*states),
		Layers:                  splitCSV(*layers),
		Year:                    *year,
		MaxConcurrentStates:     *maxConcurrent,
		CircuitBreakerThreshold: *breakerThreshold,
		ForceRefresh:            *forceRefresh,
	}

	result, err := orch.Run(context.Background(), opts)
	return reportBatchResult(result, err, globals)
}

func ingestResume(orch *batch.Orchestrator, args []string, globals GlobalFlags) int {
	fs := flag.NewFlagSet("ingest resume", flag.ContinueOnError)
	checkpoint := fs.String("checkpoint", "", "Checkpoint ID to resume (required)")
	retryFailed := fs.Bool("retry-failed", false, "Also retry states that previously failed")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *checkpoint == "" {
		fmt.Fprintln(os.Stderr, "Error: --checkpoint is required")
		return 2
	}

	result, err := orch.ResumeFromCheckpoint(context.Background(), *checkpoint, *retryFailed)
	return reportBatchResult(result, err, globals)
}

func ingestRetryDLQ(orch *batch.Orchestrator, args []string, globals GlobalFlags) int {
	fs := flag.NewFlagSet("ingest retry-dlq", flag.ContinueOnError)
	limit := fs.Int("limit", 50, "Maximum DLQ rows to retry")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	result, err := orch.RetryFromDLQ(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if globals.JSON {
		return printJSON(result)
	}
	fmt.Printf("attempted=%d resolved=%d failed=%d\n", result.Attempted, result.Resolved, result.Failed)
	return 0
}

func reportBatchResult(result batch.Result, err error, globals GlobalFlags) int {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if globals.JSON {
		return printJSON(result)
	}
	fmt.Printf("checkpoint=%s completed=%d failed=%d circuit_breaker_tripped=%t boundaries=%d\n",
		result.CheckpointID, len(result.CompletedStates), len(result.FailedStates),
		result.CircuitBreakerTripped, result.BoundaryCount)
	if len(result.FailedStates) > 0 {
		return 2
	}
	return 0
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
