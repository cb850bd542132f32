// SPDX-License-Identifier: AGPL-3.0-or-later

// Package batch implements the Batch Ingestion Orchestrator (C7):
// bounded-concurrency multi-state ingestion with per-batch
// checkpointing, a consecutive-failure circuit breaker, and DLQ routing
// for every failed layer download.
//
// Grounded on pkg/ingestion/local_pipeline.go's LocalPipeline: a struct
// wiring together sub-components (here, a LayerFetcher standing in for
// C4's Boundary Provider) behind a single Run entry point, reporting
// progress via a callback and logging every step with structured,
// dotted slog event names exactly as LocalPipeline.Run does.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/voterprotocol/shadowatlas/internal/clock"
	"github.com/voterprotocol/shadowatlas/pkg/boundary"
	"github.com/voterprotocol/shadowatlas/pkg/dlq"
	"github.com/voterprotocol/shadowatlas/pkg/storage"
)

const (
	defaultMaxConcurrentStates     = 5
	defaultCircuitBreakerThreshold = 5
)

// FetchResult is one layer's successfully downloaded+transformed
// content, handed back by a LayerFetcher.
type FetchResult struct {
	Boundaries []boundary.NormalizedBoundary
}

// LayerFetcher is the Boundary Provider (C4) collaborator this
// orchestrator depends on. Concrete wiring (which pkg/provider.Family to
// use for a given state/layer) lives above this package, matching
// spec.md §1's framing of the provider as an assumed collaborator
// behind a narrow interface.
type LayerFetcher interface {
	FetchLayer(ctx context.Context, stateFIPS, layer string, year int, forceRefresh bool) (FetchResult, error)
}

// Options is the batch run contract (spec.md §4.7).
type Options struct {
	States                  []string
	Layers                  []string
	Year                    int
	MaxConcurrentStates     int
	CircuitBreakerThreshold int
	ForceRefresh            bool
}

func (o Options) snapshot() storage.BatchOptionsSnapshot {
	return storage.BatchOptionsSnapshot{
		States: o.States, Layers: o.Layers, Year: o.Year,
		MaxConcurrentStates: o.maxConcurrentStates(), CircuitBreakerThreshold: o.circuitBreakerThreshold(),
		ForceRefresh: o.ForceRefresh,
	}
}

func (o Options) maxConcurrentStates() int {
	if o.MaxConcurrentStates > 0 {
		return o.MaxConcurrentStates
	}
	return defaultMaxConcurrentStates
}

func (o Options) circuitBreakerThreshold() int {
	if o.CircuitBreakerThreshold > 0 {
		return o.CircuitBreakerThreshold
	}
	return defaultCircuitBreakerThreshold
}

// StateOutcome is one state's batch result.
type StateOutcome struct {
	State      string
	Boundaries []boundary.NormalizedBoundary
	Err        error
}

// ProgressFunc reports per-batch progress, mirroring LocalPipeline's
// ProgressCallback(current, total, phase) shape.
type ProgressFunc func(current, total int64, phase string)

// Result is the outcome of a batch run (spec.md §4.7).
type Result struct {
	CheckpointID          string
	CompletedStates       []string
	FailedStates          []string
	CircuitBreakerTripped bool
	BoundaryCount         int
}

// Orchestrator is the C7 Batch Ingestion Orchestrator.
type Orchestrator struct {
	Fetcher  LayerFetcher
	Adapter  storage.Adapter
	DLQ      *dlq.Queue
	Clock    clock.Clock
	Logger   *slog.Logger
	Progress ProgressFunc

	// idGen returns a checkpoint ID; overridable for deterministic
	// tests, defaulting to spec.md §3's "ckpt_" + timestamp + 6-char
	// random suffix.
	idGen func(now time.Time) string
}

// New constructs an Orchestrator with production defaults.
func New(fetcher LayerFetcher, adapter storage.Adapter, queue *dlq.Queue) *Orchestrator {
	return &Orchestrator{
		Fetcher: fetcher,
		Adapter: adapter,
		DLQ:     queue,
		Clock:   clock.Real(),
		Logger:  slog.Default(),
		idGen:   defaultIDGen,
	}
}

func defaultIDGen(now time.Time) string {
	return fmt.Sprintf("ckpt_%d_%s", now.Unix(), uuid.NewString()[:6])
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Orchestrator) reportProgress(current, total int64, phase string) {
	if o.Progress != nil {
		o.Progress(current, total, phase)
	}
}

// Run executes a fresh batch ingestion (spec.md §4.7).
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Result, error) {
	now := o.Clock.Now()
	checkpointID := o.idGen(now)
	o.logger().Info("batch.run.start", "checkpoint_id", checkpointID, "states", len(opts.States), "layers", opts.Layers)

	state := &runState{
		checkpointID: checkpointID,
		startedAt:    now,
		pending:      append([]string{}, opts.States...),
		options:      opts.snapshot(),
	}
	return o.execute(ctx, opts, state)
}

// runState tracks the mutable checkpoint fields across batches.
type runState struct {
	mu                  sync.Mutex
	checkpointID        string
	startedAt           time.Time
	pending             []string
	completed           []string
	failed              []string
	consecutiveFailures int
	circuitOpen         bool
	boundaryCount       int
	options             storage.BatchOptionsSnapshot
}

func (o *Orchestrator) execute(ctx context.Context, opts Options, state *runState) (Result, error) {
	batchSize := opts.maxConcurrentStates()
	threshold := opts.circuitBreakerThreshold()
	total := int64(len(state.pending))
	var processed int64

	for len(state.pending) > 0 {
		if state.circuitOpen {
			o.logger().Warn("batch.circuit.open.skip_remaining", "checkpoint_id", state.checkpointID, "remaining", len(state.pending))
			break
		}

		n := batchSize
		if n > len(state.pending) {
			n = len(state.pending)
		}
		batch := state.pending[:n]
		state.pending = state.pending[n:]

		outcomes := o.runBatchOfStates(ctx, opts, batch)

		for _, outcome := range outcomes {
			processed++
			o.reportProgress(processed, total, "ingest")
			if outcome.Err != nil {
				state.failed = append(state.failed, outcome.State)
				state.consecutiveFailures++
				o.logger().Error("batch.state.failed", "checkpoint_id", state.checkpointID, "state", outcome.State, "err", outcome.Err)
				if state.consecutiveFailures >= threshold {
					state.circuitOpen = true
				}
			} else {
				state.completed = append(state.completed, outcome.State)
				state.boundaryCount += len(outcome.Boundaries)
				state.consecutiveFailures = 0
			}
		}

		if err := o.saveCheckpoint(state); err != nil {
			// Checkpoint write failure is logged but does not abort the
			// batch (spec.md §4.7).
			o.logger().Warn("batch.checkpoint.save.error", "checkpoint_id", state.checkpointID, "err", err)
		}

		if ctx.Err() != nil {
			break
		}
	}

	result := Result{
		CheckpointID:          state.checkpointID,
		CompletedStates:       state.completed,
		FailedStates:          state.failed,
		CircuitBreakerTripped: state.circuitOpen,
		BoundaryCount:         state.boundaryCount,
	}
	o.logger().Info("batch.run.complete",
		"checkpoint_id", state.checkpointID,
		"completed", len(result.CompletedStates),
		"failed", len(result.FailedStates),
		"circuit_breaker_tripped", result.CircuitBreakerTripped,
	)
	return result, ctx.Err()
}

// runBatchOfStates fetches every requested layer for each state in
// batch, in parallel across states and sequentially across layers
// within a state (spec.md §4.7 "layers within a state are sequential to
// keep Census FTP pressure bounded").
func (o *Orchestrator) runBatchOfStates(ctx context.Context, opts Options, batch []string) []StateOutcome {
	outcomes := make([]StateOutcome, len(batch))
	g, gctx := errgroup.WithContext(ctx)

	for i, st := range batch {
		i, st := i, st
		g.Go(func() error {
			outcomes[i] = o.fetchState(gctx, opts, st)
			return nil
		})
	}
	_ = g.Wait() // per-state errors are captured in outcomes, not propagated
	return outcomes
}

func (o *Orchestrator) fetchState(ctx context.Context, opts Options, stateFIPS string) StateOutcome {
	var all []boundary.NormalizedBoundary
	for _, layer := range opts.Layers {
		result, err := o.Fetcher.FetchLayer(ctx, stateFIPS, layer, opts.Year, opts.ForceRefresh)
		if err != nil {
			o.routeToDLQ(stateFIPS, layer, opts.Year, err)
			return StateOutcome{State: stateFIPS, Err: err}
		}
		all = append(all, result.Boundaries...)
	}
	return StateOutcome{State: stateFIPS, Boundaries: all}
}

// routeToDLQ persists a layer failure to the DLQ, keyed by
// (stateFIPS/layer, layer, stateFIPS, year). The row is not tagged with
// the current checkpoint ID: its JobID stays empty. Retryable failures
// (network/5xx/429) are persisted too — they simply become retry
// candidates rather than exhausting immediately.
func (o *Orchestrator) routeToDLQ(stateFIPS, layer string, year int, err error) {
	if o.DLQ == nil {
		return
	}
	if _, dlqErr := o.DLQ.PersistFailure(dlq.FailureInput{
		URL: stateFIPS + "/" + layer, Layer: layer, StateFIPS: stateFIPS, Year: year, Error: err,
	}); dlqErr != nil {
		o.logger().Warn("batch.dlq.persist.error", "state", stateFIPS, "layer", layer, "err", dlqErr)
	}
}

func (o *Orchestrator) saveCheckpoint(state *runState) error {
	state.mu.Lock()
	defer state.mu.Unlock()
	c := storage.CheckpointState{
		ID:                  state.checkpointID,
		StartedAt:           state.startedAt,
		UpdatedAt:           o.Clock.Now(),
		CompletedStates:     append([]string{}, state.completed...),
		FailedStates:        append([]string{}, state.failed...),
		PendingStates:       append([]string{}, state.pending...),
		Options:             state.options,
		CircuitOpen:         state.circuitOpen,
		ConsecutiveFailures: state.consecutiveFailures,
		BoundaryCount:       state.boundaryCount,
	}
	return o.Adapter.SaveCheckpoint(c)
}
