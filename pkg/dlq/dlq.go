// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dlq implements the Download DLQ (C3): an idempotent,
// persistent record of failed downloads with retry scheduling, backed
// by pkg/storage.Adapter.
//
// Grounded on pkg/ingestion/manifest.go's persistence shape (struct +
// deterministic SHA-256-derived ID) from the teacher repo; the mutex
// there is replaced by delegating all storage to the Adapter, which
// already owns its own per-table lock.
package dlq

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/voterprotocol/shadowatlas/internal/clock"
	"github.com/voterprotocol/shadowatlas/internal/errs"
	"github.com/voterprotocol/shadowatlas/pkg/storage"
)

const (
	defaultBaseDelay   = 1000 * time.Millisecond
	defaultMultiplier  = 2.0
	defaultMaxAttempts = 5
)

// FailureInput is the caller-supplied description of a single download
// failure (spec.md §4.3's persist_failure opts).
type FailureInput struct {
	URL         string
	Layer       string
	StateFIPS   string // empty means national
	Year        int
	Error       error
	MaxAttempts int // 0 means defaultMaxAttempts
}

// Key computes the deterministic DLQ row ID for (url, layer,
// state_fips|"national", year), per spec.md §4.3's "upsert keyed by the
// deterministic ID".
func Key(url, layer, stateFIPS string, year int) string {
	fips := stateFIPS
	if fips == "" {
		fips = "national"
	}
	sum := sha256.Sum256([]byte(url + "|" + layer + "|" + fips + "|" + strconv.Itoa(year)))
	return hex.EncodeToString(sum[:])
}

// Queue is the C3 Download DLQ, operating over a storage.Adapter.
type Queue struct {
	Adapter     storage.Adapter
	Clock       clock.Clock
	BaseDelay   time.Duration
	Multiplier  float64
	MaxAttempts int
}

// New constructs a Queue with the spec.md §4.3 default backoff
// parameters (base=1000ms, multiplier=2) bound to adapter.
func New(adapter storage.Adapter) *Queue {
	return &Queue{
		Adapter:     adapter,
		Clock:       clock.Real(),
		BaseDelay:   defaultBaseDelay,
		Multiplier:  defaultMultiplier,
		MaxAttempts: defaultMaxAttempts,
	}
}

// nextRetryDelay computes delay = base_delay_ms * multiplier^(attempt-1)
// per spec.md §4.3.
func (q *Queue) nextRetryDelay(attempt int) time.Duration {
	base := q.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	mult := q.Multiplier
	if mult <= 0 {
		mult = defaultMultiplier
	}
	scale := 1.0
	for i := 1; i < attempt; i++ {
		scale *= mult
	}
	return time.Duration(float64(base) * scale)
}

// PersistFailure upserts a DLQ row keyed by Key(url, layer, state, year)
// per spec.md §4.3: first failure starts at status=pending,
// attempt_count=1; a subsequent failure on the same key increments
// attempts and reschedules, flipping to exhausted once
// attempt_count >= max_attempts.
func (q *Queue) PersistFailure(in FailureInput) (storage.DLQEntry, error) {
	id := Key(in.URL, in.Layer, in.StateFIPS, in.Year)
	now := q.Clock.Now()

	maxAttempts := in.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = defaultMaxAttempts
		}
	}

	errMsg := ""
	if in.Error != nil {
		errMsg = in.Error.Error()
	}

	existing, found, err := q.Adapter.GetDLQ(id)
	if err != nil {
		return storage.DLQEntry{}, errs.Wrap(errs.StorageError, "get DLQ row", err)
	}

	entry := existing
	if !found {
		entry = storage.DLQEntry{
			ID:          id,
			URL:         in.URL,
			Layer:       in.Layer,
			StateFIPS:   in.StateFIPS,
			Year:        in.Year,
			MaxAttempts: maxAttempts,
			CreatedAt:   now,
		}
	}

	entry.AttemptCount++
	entry.LastError = errMsg
	entry.LastAttemptAt = now
	if entry.MaxAttempts <= 0 {
		entry.MaxAttempts = maxAttempts
	}

	if entry.AttemptCount >= entry.MaxAttempts {
		entry.Status = storage.DLQExhausted
		entry.NextRetryAt = nil
	} else {
		entry.Status = storage.DLQPending
		next := now.Add(q.nextRetryDelay(entry.AttemptCount))
		entry.NextRetryAt = &next
	}

	if err := q.Adapter.UpsertDLQ(entry); err != nil {
		return storage.DLQEntry{}, errs.Wrap(errs.StorageError, "upsert DLQ row", err)
	}
	return entry, nil
}

// GetRetryable returns rows eligible for retry now (spec.md §4.3's
// get_retryable), delegating to the adapter's own filtering/ordering.
func (q *Queue) GetRetryable(limit int) ([]storage.DLQEntry, error) {
	rows, err := q.Adapter.ListRetryableDLQ(limit, q.Clock.Now())
	if err != nil {
		return nil, errs.Wrap(errs.StorageError, "list retryable DLQ", err)
	}
	return rows, nil
}

// MarkRetrying transitions a row to retrying, preserving its key.
func (q *Queue) MarkRetrying(id string) error {
	return q.transition(id, storage.DLQRetrying, false)
}

// MarkResolved transitions a row to resolved. Per spec.md §4.3,
// resolving requires a successful retry through the Boundary Provider —
// callers must only invoke this after that retry has actually
// succeeded, never as a raw state write in isolation.
func (q *Queue) MarkResolved(id string) error {
	return q.transition(id, storage.DLQResolved, true)
}

// MarkExhausted forcibly exhausts a row (e.g. an operator giving up on
// it early), independent of attempt_count.
func (q *Queue) MarkExhausted(id string) error {
	return q.transition(id, storage.DLQExhausted, false)
}

// IncrementAttempt bumps attempt_count on an existing row without going
// through PersistFailure's upsert-by-key path — used when a retry
// attempt itself fails partway before a new failure description is
// available.
func (q *Queue) IncrementAttempt(id string) error {
	entry, found, err := q.Adapter.GetDLQ(id)
	if err != nil {
		return errs.Wrap(errs.StorageError, "get DLQ row", err)
	}
	if !found {
		return errs.New(errs.NotFound, fmt.Sprintf("DLQ row %s not found", id))
	}
	entry.AttemptCount++
	entry.LastAttemptAt = q.Clock.Now()
	if entry.AttemptCount >= entry.MaxAttempts {
		entry.Status = storage.DLQExhausted
		entry.NextRetryAt = nil
	}
	return q.Adapter.UpsertDLQ(entry)
}

func (q *Queue) transition(id string, status storage.DLQStatus, resolved bool) error {
	entry, found, err := q.Adapter.GetDLQ(id)
	if err != nil {
		return errs.Wrap(errs.StorageError, "get DLQ row", err)
	}
	if !found {
		return errs.New(errs.NotFound, fmt.Sprintf("DLQ row %s not found", id))
	}
	entry.Status = status
	if resolved {
		now := q.Clock.Now()
		entry.ResolvedAt = &now
		entry.NextRetryAt = nil
	}
	if err := q.Adapter.UpsertDLQ(entry); err != nil {
		return errs.Wrap(errs.StorageError, "upsert DLQ row", err)
	}
	return nil
}
