// SPDX-License-Identifier: AGPL-3.0-or-later

// Package incremental implements the Incremental Orchestrator (C8):
// per-jurisdiction change detection, fetch, and persistence with a
// strict artifact → head → event → checksum-cache ordering so a crash
// mid-run leaves the system recoverable.
//
// Grounded on pkg/ingestion/local_pipeline.go's LocalPipeline.Run +
// generateRunID: a single run_id (here SHA-256-derived from the run's
// start time and a random UUID, truncated to 16 hex chars, exactly as
// generateRunID does) tags every structured log line and every
// persisted event for the run.
package incremental

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/voterprotocol/shadowatlas/internal/clock"
	"github.com/voterprotocol/shadowatlas/internal/errs"
	"github.com/voterprotocol/shadowatlas/pkg/boundary"
	"github.com/voterprotocol/shadowatlas/pkg/detector"
	"github.com/voterprotocol/shadowatlas/pkg/dlq"
	"github.com/voterprotocol/shadowatlas/pkg/source"
	"github.com/voterprotocol/shadowatlas/pkg/storage"
)

const (
	defaultMaxConcurrentDownloads = 10
	defaultMaxConcurrentWrites    = 5
)

// JurisdictionFetcher is the Boundary Provider (C4) collaborator this
// orchestrator depends on, mirroring pkg/batch.LayerFetcher's narrow-
// interface posture so C8 never wires pkg/provider's concrete family
// types directly.
type JurisdictionFetcher interface {
	Fetch(ctx context.Context, src source.Source, forceRefresh bool) ([]boundary.NormalizedBoundary, error)
}

// Outcome discriminates what happened to a single jurisdiction during a
// run, per spec.md §4.8's state machine.
type Outcome string

const (
	OutcomeUpdated  Outcome = "updated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeDLQueued Outcome = "dlqueued"
	OutcomeErrored  Outcome = "errored"
)

// JurisdictionResult is one jurisdiction's outcome within a run.
type JurisdictionResult struct {
	JurisdictionID string
	Outcome        Outcome
	ArtifactID     string
	Err            error
}

// Result is a full run's summary.
type Result struct {
	RunID        string
	Results      []JurisdictionResult
	SnapshotHash string // only set by RunFullSnapshot
}

// Orchestrator is the C8 Incremental Orchestrator.
type Orchestrator struct {
	Fetcher  JurisdictionFetcher
	Adapter  storage.Adapter
	DLQ      *dlq.Queue
	Detector *detector.Detector
	Clock    clock.Clock
	Logger   *slog.Logger

	MaxConcurrentDownloads int
	MaxConcurrentWrites    int
}

// New constructs an Orchestrator with production defaults.
func New(fetcher JurisdictionFetcher, adapter storage.Adapter, queue *dlq.Queue, det *detector.Detector) *Orchestrator {
	return &Orchestrator{
		Fetcher:                fetcher,
		Adapter:                adapter,
		DLQ:                    queue,
		Detector:               det,
		Clock:                  clock.Real(),
		Logger:                 slog.Default(),
		MaxConcurrentDownloads: defaultMaxConcurrentDownloads,
		MaxConcurrentWrites:    defaultMaxConcurrentWrites,
	}
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Orchestrator) maxDownloads() int {
	if o.MaxConcurrentDownloads > 0 {
		return o.MaxConcurrentDownloads
	}
	return defaultMaxConcurrentDownloads
}

func (o *Orchestrator) maxWrites() int {
	if o.MaxConcurrentWrites > 0 {
		return o.MaxConcurrentWrites
	}
	return defaultMaxConcurrentWrites
}

// generateRunID derives a log-correlatable run ID from the run's start
// instant plus a random UUID (so two runs never share an ID), per
// LocalPipeline.generateRunID's pattern.
func generateRunID(clk clock.Clock) string {
	t := clk.Now()
	base := fmt.Sprintf("run-incremental-%d-%s", t.UnixNano(), uuid.NewString())
	sum := sha256.Sum256([]byte(base))
	return hex.EncodeToString(sum[:8])
}

// RunIncrementalRefresh asks C2 (the Detector) which sources are due,
// then fetches and persists each (spec.md §4.8).
func (o *Orchestrator) RunIncrementalRefresh(ctx context.Context, sources []source.Source) (Result, error) {
	reports, failures := o.Detector.RunBatch(ctx, sources, false, nil)
	for sourceID, err := range failures {
		o.logger().Warn("incremental.detect.failed", "source_id", sourceID, "err", err)
	}

	byID := make(map[string]source.Source, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
	}

	var due []source.Source
	for _, r := range reports {
		if s, ok := byID[r.SourceID]; ok {
			due = append(due, s)
		}
	}

	return o.run(ctx, due, false, reports)
}

// RunFullSnapshot refetches every known jurisdiction's currently
// selected source regardless of change signal, and computes a snapshot
// hash over the sorted jurisdiction ID set (spec.md §4.8).
func (o *Orchestrator) RunFullSnapshot(ctx context.Context, sources []source.Source) (Result, error) {
	result, err := o.run(ctx, sources, true, nil)
	if err != nil {
		return result, err
	}
	result.SnapshotHash = snapshotHash(sources)
	return result, nil
}

// ForceCheckAll behaves like RunIncrementalRefresh but bypasses the
// schedule: every source is treated as due (spec.md §4.8).
func (o *Orchestrator) ForceCheckAll(ctx context.Context, sources []source.Source) (Result, error) {
	reports, failures := o.Detector.RunBatch(ctx, sources, true, nil)
	for sourceID, err := range failures {
		o.logger().Warn("incremental.detect.failed", "source_id", sourceID, "err", err)
	}

	byID := make(map[string]source.Source, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
	}

	var changed []source.Source
	for _, r := range reports {
		if s, ok := byID[r.SourceID]; ok {
			changed = append(changed, s)
		}
	}

	return o.run(ctx, changed, true, reports)
}

func snapshotHash(sources []source.Source) string {
	ids := make([]string, 0, len(sources))
	for _, s := range sources {
		ids = append(ids, s.JurisdictionID)
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, ",")))
	return hex.EncodeToString(sum[:])
}

// reportsBySource indexes ChangeReports for RecordSuccess lookups during
// RunIncrementalRefresh and ForceCheckAll; RunFullSnapshot passes nil
// since a full refetch isn't gated on a detected change.
func reportsBySource(reports []detector.ChangeReport) map[string]detector.ChangeReport {
	m := make(map[string]detector.ChangeReport, len(reports))
	for _, r := range reports {
		m[r.SourceID] = r
	}
	return m
}

// run fetches and persists every source in sources, bounded by
// MaxConcurrentDownloads for fetch and MaxConcurrentWrites for the
// persist step, tagging every event with a single run ID.
func (o *Orchestrator) run(ctx context.Context, sources []source.Source, forceRefresh bool, reports []detector.ChangeReport) (Result, error) {
	runID := generateRunID(o.Clock)
	o.logger().Info("incremental.run.start", "run_id", runID, "jurisdictions", len(sources))

	reportIdx := reportsBySource(reports)

	type fetchOutcome struct {
		src        source.Source
		boundaries []boundary.NormalizedBoundary
		err        error
	}

	fetched := make([]fetchOutcome, len(sources))
	{
		sem := make(chan struct{}, o.maxDownloads())
		g, gctx := errgroup.WithContext(ctx)
		for i, s := range sources {
			i, s := i, s
			g.Go(func() error {
				sem <- struct{}{}
				defer func() { <-sem }()
				boundaries, err := o.Fetcher.Fetch(gctx, s, forceRefresh)
				fetched[i] = fetchOutcome{src: s, boundaries: boundaries, err: err}
				return nil
			})
		}
		_ = g.Wait()
	}

	results := make([]JurisdictionResult, len(sources))
	{
		sem := make(chan struct{}, o.maxWrites())
		var wg sync.WaitGroup
		for i, fo := range fetched {
			i, fo := i, fo
			wg.Add(1)
			go func() {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				results[i] = o.persistOne(runID, fo.src, fo.boundaries, fo.err, reportIdx[fo.src.ID])
			}()
		}
		wg.Wait()
	}

	o.logger().Info("incremental.run.complete", "run_id", runID, "count", len(results))
	return Result{RunID: runID, Results: results}, nil
}

// persistOne applies the state machine for one jurisdiction, enforcing
// the strict artifact insert → head upsert → event log → checksum-cache
// update ordering (spec.md §5) when the fetch succeeded and the hash
// differs.
func (o *Orchestrator) persistOne(runID string, src source.Source, boundaries []boundary.NormalizedBoundary, fetchErr error, report detector.ChangeReport) JurisdictionResult {
	jid := src.JurisdictionID
	now := o.Clock.Now()

	if fetchErr != nil {
		if errs.Retryable(errs.KindOf(fetchErr)) {
			if o.DLQ != nil {
				if _, err := o.DLQ.PersistFailure(dlq.FailureInput{
					URL: src.URL, Layer: src.BoundaryLayer, StateFIPS: "", Year: 0, Error: fetchErr,
				}); err != nil {
					o.logger().Warn("incremental.dlq.persist.error", "jurisdiction_id", jid, "err", err)
				}
			}
			o.logger().Warn("incremental.fetch.retryable_failure", "run_id", runID, "jurisdiction_id", jid, "err", fetchErr)
			return JurisdictionResult{JurisdictionID: jid, Outcome: OutcomeDLQueued, Err: fetchErr}
		}

		_ = o.Adapter.AppendEvent(storage.Event{
			ID: uuid.NewString(), RunID: runID, JurisdictionID: jid,
			Kind: storage.EventError, Error: fetchErr.Error(), Ts: now,
		})
		o.logger().Error("incremental.fetch.failed", "run_id", runID, "jurisdiction_id", jid, "err", fetchErr)
		return JurisdictionResult{JurisdictionID: jid, Outcome: OutcomeErrored, Err: fetchErr}
	}

	newHash, err := boundary.ContentSHA256(boundaries)
	if err != nil {
		_ = o.Adapter.AppendEvent(storage.Event{
			ID: uuid.NewString(), RunID: runID, JurisdictionID: jid,
			Kind: storage.EventError, Error: err.Error(), Ts: now,
		})
		return JurisdictionResult{JurisdictionID: jid, Outcome: OutcomeErrored, Err: err}
	}

	headArtifactID, hasHead, err := o.Adapter.GetHead(jid)
	if err == nil && hasHead {
		if current, found, err := o.Adapter.GetArtifact(headArtifactID); err == nil && found && current.ContentSHA256 == newHash {
			_ = o.Adapter.AppendEvent(storage.Event{
				ID: uuid.NewString(), RunID: runID, JurisdictionID: jid,
				Kind: storage.EventSkip, Ts: now,
			})
			if o.Detector != nil && report.SourceID != "" {
				o.Detector.RecordSuccess(src, report)
			}
			return JurisdictionResult{JurisdictionID: jid, Outcome: OutcomeSkipped, ArtifactID: current.ID}
		}
	}

	artifact := storage.Artifact{
		ID:             uuid.NewString(),
		JurisdictionID: jid,
		ContentSHA256:  newHash,
		RecordCount:    len(boundaries),
		BBox:           boundary.ComputeBBox(boundaries),
		CreatedAt:      now,
	}
	if err := o.Adapter.InsertArtifact(artifact); err != nil {
		return JurisdictionResult{JurisdictionID: jid, Outcome: OutcomeErrored, Err: errs.Wrap(errs.StorageError, "insert artifact", err)}
	}
	if err := o.Adapter.SetHead(jid, artifact.ID); err != nil {
		return JurisdictionResult{JurisdictionID: jid, Outcome: OutcomeErrored, Err: errs.Wrap(errs.StorageError, "set head", err)}
	}
	if err := o.Adapter.AppendEvent(storage.Event{
		ID: uuid.NewString(), RunID: runID, JurisdictionID: jid,
		Kind: storage.EventUpdate, Payload: map[string]any{"artifact_id": artifact.ID, "record_count": artifact.RecordCount},
		Ts: now,
	}); err != nil {
		o.logger().Warn("incremental.event.append.error", "jurisdiction_id", jid, "err", err)
	}
	if o.Detector != nil && report.SourceID != "" {
		o.Detector.RecordSuccess(src, report)
	}

	return JurisdictionResult{JurisdictionID: jid, Outcome: OutcomeUpdated, ArtifactID: artifact.ID}
}
