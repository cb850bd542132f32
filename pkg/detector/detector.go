// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detector implements the Change Detector (C2): HTTP HEAD
// fingerprinting with retry, wall-clock schedule evaluation, and
// concurrent batch execution over a set of sources.
//
// Grounded on pkg/ingestion/delta.go's DeltaDetector shape (small struct
// holding a logger plus constructor-injected clock/HTTP client) from the
// teacher repo, extended with a retry policy since the teacher's own
// delta detector has none.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/voterprotocol/shadowatlas/internal/clock"
	"github.com/voterprotocol/shadowatlas/internal/errs"
	"github.com/voterprotocol/shadowatlas/pkg/source"
)

const (
	userAgent      = "VOTER-Protocol-ShadowAtlas/1.0 (Change Detection)"
	headTimeout    = 5 * time.Second
	defaultBatch   = 20
	retryMaxTries  = 3
	retryBaseDelay = 1 * time.Second
	retryMaxDelay  = 10 * time.Second
)

// TriggerReason discriminates why a ChangeReport was produced.
type TriggerReason string

const (
	TriggerScheduled TriggerReason = "scheduled"
	TriggerManual    TriggerReason = "manual"
	TriggerForced    TriggerReason = "forced"
)

// ChangeType discriminates the kind of change a ChangeReport describes.
type ChangeType string

const (
	ChangeNew      ChangeType = "new"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// ChangeReport is the detector's output (spec.md §4.2).
type ChangeReport struct {
	SourceID    string
	URL         string
	OldChecksum Fingerprint
	NewChecksum Fingerprint
	DetectedAt  time.Time
	Trigger     TriggerReason
	ChangeType  ChangeType
}

// HeadResult is the raw outcome of a single HEAD fingerprint attempt.
type HeadResult struct {
	ETag         string
	LastModified string
	Err          error
}

// HeadFunc performs the HTTP HEAD fingerprinting of a single URL. The
// default is httpHeadFunc; tests inject a fake.
type HeadFunc func(ctx context.Context, client *http.Client, url string) HeadResult

// Detector evaluates schedules and fingerprints sources for change.
type Detector struct {
	Client *http.Client
	Clock  clock.Clock
	Logger *slog.Logger
	Cache  *ChecksumCache
	Head   HeadFunc

	BatchSize      int
	InterBatchWait time.Duration
}

// New constructs a Detector with production defaults: real HTTP client,
// real clock, slog.Default() as the logger, httpHeadFunc as the fetch
// strategy.
func New(cache *ChecksumCache) *Detector {
	return &Detector{
		Client:         &http.Client{Timeout: headTimeout},
		Clock:          clock.Real(),
		Logger:         slog.Default(),
		Cache:          cache,
		Head:           httpHeadFunc,
		BatchSize:      defaultBatch,
		InterBatchWait: 0,
	}
}

// httpHeadFunc is the production HeadFunc: one HTTP HEAD request with the
// fixed component User-Agent (spec.md §6), reading ETag then
// Last-Modified.
func httpHeadFunc(ctx context.Context, client *http.Client, url string) HeadResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return HeadResult{Err: errs.Wrap(errs.NetworkError, "build HEAD request", err)}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return HeadResult{Err: errs.Wrap(errs.NetworkError, "HEAD "+url, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return HeadResult{Err: errs.New(errs.NotFound, "HEAD "+url+" returned 404")}
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return HeadResult{Err: errs.New(errs.NetworkError, fmt.Sprintf("HEAD %s returned %d", url, resp.StatusCode))}
	}
	if resp.StatusCode >= 400 {
		return HeadResult{Err: errs.New(errs.NotFound, fmt.Sprintf("HEAD %s returned %d", url, resp.StatusCode))}
	}

	return HeadResult{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
}

// fingerprintWithRetry runs Head under the exact spec.md §4.2 backoff
// policy: 3 attempts, 1s initial delay, x2 multiplier, 10s cap, each
// attempt bounded by its own headTimeout. Only NetworkError-kind
// failures are retried; NotFound and other kinds fail fast.
func (d *Detector) fingerprintWithRetry(ctx context.Context, url string) HeadResult {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryBaseDelay
	bo.Multiplier = 2
	bo.MaxInterval = retryMaxDelay
	bo.MaxElapsedTime = 0
	policy := backoff.WithMaxRetries(bo, retryMaxTries-1)

	var last HeadResult
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, headTimeout)
		defer cancel()
		last = d.Head(attemptCtx, d.Client, url)
		if last.Err != nil && errs.Retryable(errs.KindOf(last.Err)) {
			return last.Err
		}
		return nil
	}
	// backoff.Retry itself only returns the final operation error (or
	// nil); `last` carries the actual HeadResult regardless of outcome.
	_ = backoff.Retry(operation, backoff.WithContext(policy, ctx))
	return last
}

// IsDue reports whether src should be checked now, per spec.md §4.2's
// schedule evaluation: any trigger matches the current wall-clock, or
// next_check_at has passed.
func IsDue(src source.Source, fp Fingerprint, now time.Time) bool {
	if !fp.NextCheckAt.IsZero() && !fp.NextCheckAt.After(now) {
		return true
	}
	for _, trig := range src.UpdateTriggers {
		switch trig.Kind {
		case source.TriggerAnnual:
			if int(now.Month()) == trig.Month {
				return true
			}
		case source.TriggerRedistricting:
			for _, y := range trig.Years {
				if now.Year() == y {
					return true
				}
			}
		case source.TriggerCensus:
			if now.Year() == trig.Year {
				return true
			}
		case source.TriggerManual:
			// never auto-due
		}
	}
	return false
}

// NextCheckAt computes the next scheduled check time for src given now:
// the nearest future trigger date, capped at now+24h. Every source,
// including one with no usable trigger, therefore gets a next check at
// most a day away.
func NextCheckAt(src source.Source, now time.Time) time.Time {
	best := now.AddDate(0, 0, 1)
	for _, trig := range src.UpdateTriggers {
		switch trig.Kind {
		case source.TriggerAnnual:
			next := nextMonthOccurrence(now, trig.Month)
			if next.Before(best) {
				best = next
			}
		case source.TriggerCensus:
			if trig.Year > now.Year() {
				candidate := time.Date(trig.Year, 1, 1, 0, 0, 0, 0, time.UTC)
				if candidate.Before(best) {
					best = candidate
				}
			}
		case source.TriggerRedistricting:
			for _, y := range trig.Years {
				if y > now.Year() {
					candidate := time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
					if candidate.Before(best) {
						best = candidate
					}
				}
			}
		}
	}
	return best
}

func nextMonthOccurrence(now time.Time, month int) time.Time {
	year := now.Year()
	if int(now.Month()) >= month {
		year++
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

// CheckOne fingerprints a single source, compares against the cache, and
// returns a ChangeReport plus whether a change was detected. A HEAD
// failure that survives the retries is logged and returned as
// (zero-report, false, err). The absence of both ETag and Last-Modified
// yields (zero-report, false, nil) per spec.md §4.2 ("treat as
// unchanged, do not create a change report").
func (d *Detector) CheckOne(ctx context.Context, src source.Source, trigger TriggerReason) (ChangeReport, bool, error) {
	result := d.fingerprintWithRetry(ctx, src.URL)
	if result.Err != nil {
		d.Logger.Error("HEAD fingerprint failed", "source_id", src.ID, "url", src.URL, "error", result.Err)
		return ChangeReport{}, false, result.Err
	}

	now := d.Clock.Now()
	newFP := Fingerprint{ETag: result.ETag, LastModified: result.LastModified, CheckedAt: now}
	if !newFP.HasChecksum() {
		return ChangeReport{}, false, nil
	}

	oldFP := d.Cache.Get(src.ID)
	if oldFP.Equal(newFP) {
		return ChangeReport{}, false, nil
	}

	changeType := ChangeModified
	if !oldFP.HasChecksum() {
		changeType = ChangeNew
	}

	return ChangeReport{
		SourceID:    src.ID,
		URL:         src.URL,
		OldChecksum: oldFP,
		NewChecksum: newFP,
		DetectedAt:  now,
		Trigger:     trigger,
		ChangeType:  changeType,
	}, true, nil
}

// ProgressFunc is invoked after each batch completes during RunBatch.
type ProgressFunc func(completed, total int)

// RunBatch evaluates due sources in concurrent batches of d.BatchSize,
// recording per-source failures without aborting the run (spec.md
// §4.2's "Per-source failures are recorded and do not abort the
// batch").
func (d *Detector) RunBatch(ctx context.Context, sources []source.Source, force bool, progress ProgressFunc) ([]ChangeReport, map[string]error) {
	batchSize := d.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatch
	}

	now := d.Clock.Now()
	var due []source.Source
	for _, s := range sources {
		if force || IsDue(s, d.Cache.Get(s.ID), now) {
			due = append(due, s)
		}
	}

	var reports []ChangeReport
	failures := make(map[string]error)
	completed := 0

	for start := 0; start < len(due); start += batchSize {
		end := start + batchSize
		if end > len(due) {
			end = len(due)
		}
		batch := due[start:end]

		var mu sync.Mutex
		var wg sync.WaitGroup
		for _, s := range batch {
			wg.Add(1)
			go func(s source.Source) {
				defer wg.Done()
				trigger := TriggerScheduled
				if force {
					trigger = TriggerForced
				}
				report, changed, err := d.CheckOne(ctx, s, trigger)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures[s.ID] = err
					return
				}
				if changed {
					reports = append(reports, report)
				}
			}(s)
		}
		wg.Wait()

		completed += len(batch)
		if progress != nil {
			progress(completed, len(due))
		}
		if d.InterBatchWait > 0 && end < len(due) {
			select {
			case <-ctx.Done():
				return reports, failures
			case <-time.After(d.InterBatchWait):
			}
		}
	}

	return reports, failures
}

// RecordSuccess updates the cache after a downstream consumer has
// successfully stored the artifact for a reported change, recomputing
// next_check_at from the source's triggers (spec.md §4.2's
// "Post-download update").
func (d *Detector) RecordSuccess(src source.Source, report ChangeReport) {
	now := d.Clock.Now()
	fp := report.NewChecksum
	fp.NextCheckAt = NextCheckAt(src, now)
	d.Cache.Set(src.ID, fp)
}
