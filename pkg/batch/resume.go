// SPDX-License-Identifier: AGPL-3.0-or-later

package batch

import (
	"context"

	"github.com/voterprotocol/shadowatlas/internal/errs"
)

// ResumeFromCheckpoint restarts a batch run from a previously saved
// checkpoint (spec.md §4.7): the new run's pending set is
// pending ∪ (retryFailed ? failed : ∅), preserving the checkpoint's
// original options. An empty resulting pending set is a no-op that
// returns the stored checkpoint unchanged.
func (o *Orchestrator) ResumeFromCheckpoint(ctx context.Context, checkpointID string, retryFailed bool) (Result, error) {
	cp, ok, err := o.Adapter.GetCheckpoint(checkpointID)
	if err != nil {
		return Result{}, errs.Wrap(errs.StorageError, "load checkpoint", err)
	}
	if !ok {
		return Result{}, errs.New(errs.NotFound, "checkpoint "+checkpointID+" not found")
	}

	pending := append([]string{}, cp.PendingStates...)
	if retryFailed {
		pending = append(pending, cp.FailedStates...)
	}

	if len(pending) == 0 {
		return Result{
			CheckpointID:          cp.ID,
			CompletedStates:       cp.CompletedStates,
			FailedStates:          cp.FailedStates,
			CircuitBreakerTripped: cp.CircuitOpen,
			BoundaryCount:         cp.BoundaryCount,
		}, nil
	}

	opts := Options{
		States:                  pending,
		Layers:                  cp.Options.Layers,
		Year:                    cp.Options.Year,
		MaxConcurrentStates:     cp.Options.MaxConcurrentStates,
		CircuitBreakerThreshold: cp.Options.CircuitBreakerThreshold,
		ForceRefresh:            cp.Options.ForceRefresh,
	}

	// retryFailed moves cp.FailedStates into pending above and starts this
	// run's failed list empty; otherwise those states stay failed and only
	// the untouched pending set is retried.
	carriedFailed := []string(nil)
	if !retryFailed {
		carriedFailed = append([]string{}, cp.FailedStates...)
	}
	state := &runState{
		checkpointID:        cp.ID,
		startedAt:           cp.StartedAt,
		pending:             pending,
		completed:           append([]string{}, cp.CompletedStates...),
		failed:              carriedFailed,
		consecutiveFailures: 0,
		circuitOpen:         false,
		boundaryCount:       cp.BoundaryCount,
		options:             cp.Options,
	}

	o.logger().Info("batch.resume.start", "checkpoint_id", cp.ID, "pending", len(pending), "retry_failed", retryFailed)
	return o.execute(ctx, opts, state)
}

// ResetCircuitBreaker clears a checkpoint's tripped circuit breaker so a
// subsequent resume can proceed past it (spec.md §4.7: "reset is
// explicit").
func (o *Orchestrator) ResetCircuitBreaker(checkpointID string) error {
	cp, ok, err := o.Adapter.GetCheckpoint(checkpointID)
	if err != nil {
		return errs.Wrap(errs.StorageError, "load checkpoint", err)
	}
	if !ok {
		return errs.New(errs.NotFound, "checkpoint "+checkpointID+" not found")
	}
	cp.CircuitOpen = false
	cp.ConsecutiveFailures = 0
	cp.UpdatedAt = o.Clock.Now()
	if err := o.Adapter.SaveCheckpoint(cp); err != nil {
		return errs.Wrap(errs.StorageError, "save checkpoint", err)
	}
	o.logger().Info("batch.circuit.reset", "checkpoint_id", checkpointID)
	return nil
}

// RetryFromDLQResult summarizes one retry_from_dlq pass.
type RetryFromDLQResult struct {
	Attempted int
	Resolved  int
	Failed    int
}

// RetryFromDLQ pulls up to limit retryable DLQ rows and reinvokes the
// Boundary Provider with force_refresh=true for each, transitioning DLQ
// state on success or failure (spec.md §4.7).
func (o *Orchestrator) RetryFromDLQ(ctx context.Context, limit int) (RetryFromDLQResult, error) {
	if o.DLQ == nil {
		return RetryFromDLQResult{}, errs.New(errs.ConfigError, "batch orchestrator has no DLQ configured")
	}
	rows, err := o.DLQ.GetRetryable(limit)
	if err != nil {
		return RetryFromDLQResult{}, err
	}

	result := RetryFromDLQResult{Attempted: len(rows)}
	for _, row := range rows {
		if err := o.DLQ.MarkRetrying(row.ID); err != nil {
			o.logger().Warn("batch.dlq.retry.mark_retrying.error", "id", row.ID, "err", err)
		}

		_, fetchErr := o.Fetcher.FetchLayer(ctx, row.StateFIPS, row.Layer, row.Year, true)
		if fetchErr != nil {
			result.Failed++
			if incErr := o.DLQ.IncrementAttempt(row.ID); incErr != nil {
				o.logger().Warn("batch.dlq.retry.increment.error", "id", row.ID, "err", incErr)
			}
			o.logger().Warn("batch.dlq.retry.failed", "id", row.ID, "url", row.URL, "err", fetchErr)
			continue
		}

		result.Resolved++
		if err := o.DLQ.MarkResolved(row.ID); err != nil {
			o.logger().Warn("batch.dlq.retry.mark_resolved.error", "id", row.ID, "err", err)
		}
	}
	return result, nil
}
