// SPDX-License-Identifier: AGPL-3.0-or-later

package batch_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voterprotocol/shadowatlas/internal/errs"
	"github.com/voterprotocol/shadowatlas/pkg/batch"
	"github.com/voterprotocol/shadowatlas/pkg/boundary"
	"github.com/voterprotocol/shadowatlas/pkg/dlq"
	"github.com/voterprotocol/shadowatlas/pkg/storage"
)

// stubFetcher answers FetchLayer per-state according to a caller-supplied
// outcome map, counting calls for assertions on sequencing.
type stubFetcher struct {
	mu      sync.Mutex
	fail    map[string]error // stateFIPS -> error to return
	calls   int32
	onFetch func(state string)
}

func (f *stubFetcher) FetchLayer(_ context.Context, stateFIPS, layer string, year int, forceRefresh bool) (batch.FetchResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.onFetch != nil {
		f.onFetch(stateFIPS)
	}
	f.mu.Lock()
	err, shouldFail := f.fail[stateFIPS]
	f.mu.Unlock()
	if shouldFail {
		return batch.FetchResult{}, err
	}
	return batch.FetchResult{Boundaries: []boundary.NormalizedBoundary{{GEOID: stateFIPS + "001", Layer: layer}}}, nil
}

func TestRunCompletesAllStatesOnSuccess(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	fetcher := &stubFetcher{}
	o := batch.New(fetcher, adapter, dlq.New(adapter))

	result, err := o.Run(context.Background(), batch.Options{
		States: []string{"01", "02", "03"}, Layers: []string{"county"},
	})
	require.NoError(t, err)
	assert.Len(t, result.CompletedStates, 3)
	assert.Empty(t, result.FailedStates)
	assert.False(t, result.CircuitBreakerTripped)
	assert.Equal(t, 3, result.BoundaryCount)
}

func TestRunRoutesFailuresToDLQ(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	fetcher := &stubFetcher{fail: map[string]error{
		"02": errs.New(errs.NetworkError, "connection reset"),
	}}
	queue := dlq.New(adapter)
	o := batch.New(fetcher, adapter, queue)

	result, err := o.Run(context.Background(), batch.Options{
		States: []string{"01", "02", "03"}, Layers: []string{"county"},
	})
	require.NoError(t, err)
	assert.Contains(t, result.FailedStates, "02")

	row, found, err := adapter.GetDLQ(dlq.Key("02/county", "county", "02", 0))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, storage.DLQPending, row.Status)
}

func TestRunTripsCircuitBreakerAfterConsecutiveFailures(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	failAll := map[string]error{}
	states := []string{"01", "02", "03", "04", "05", "06", "07"}
	for _, s := range states {
		failAll[s] = errs.New(errs.NetworkError, "boom")
	}
	fetcher := &stubFetcher{fail: failAll}
	o := batch.New(fetcher, adapter, dlq.New(adapter))

	result, err := o.Run(context.Background(), batch.Options{
		States: states, Layers: []string{"county"},
		MaxConcurrentStates: 1, CircuitBreakerThreshold: 3,
	})
	require.NoError(t, err)
	assert.True(t, result.CircuitBreakerTripped)
	assert.Len(t, result.FailedStates, 3)
	assert.Less(t, len(result.FailedStates)+len(result.CompletedStates), len(states))
}

func TestRunPersistsCheckpointAfterEveryBatch(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	fetcher := &stubFetcher{}
	o := batch.New(fetcher, adapter, dlq.New(adapter))

	result, err := o.Run(context.Background(), batch.Options{
		States: []string{"01", "02", "03", "04", "05"}, Layers: []string{"county"},
		MaxConcurrentStates: 2,
	})
	require.NoError(t, err)

	cp, found, err := adapter.GetCheckpoint(result.CheckpointID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, cp.PendingStates)
	assert.Len(t, cp.CompletedStates, 5)
}

func TestResumeFromCheckpointRetriesFailedStates(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	fetcher := &stubFetcher{fail: map[string]error{"02": errs.New(errs.NetworkError, "boom")}}
	o := batch.New(fetcher, adapter, dlq.New(adapter))

	first, err := o.Run(context.Background(), batch.Options{States: []string{"01", "02"}, Layers: []string{"county"}})
	require.NoError(t, err)
	require.Contains(t, first.FailedStates, "02")

	fetcher.mu.Lock()
	delete(fetcher.fail, "02")
	fetcher.mu.Unlock()

	second, err := o.ResumeFromCheckpoint(context.Background(), first.CheckpointID, true)
	require.NoError(t, err)
	assert.Contains(t, second.CompletedStates, "02")
	assert.NotContains(t, second.FailedStates, "02")
}

func TestResumeFromCheckpointNoOpWhenNothingPending(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	fetcher := &stubFetcher{}
	o := batch.New(fetcher, adapter, dlq.New(adapter))

	first, err := o.Run(context.Background(), batch.Options{States: []string{"01"}, Layers: []string{"county"}})
	require.NoError(t, err)

	second, err := o.ResumeFromCheckpoint(context.Background(), first.CheckpointID, false)
	require.NoError(t, err)
	assert.Equal(t, first.CompletedStates, second.CompletedStates)
}

func TestResetCircuitBreakerClearsTrippedState(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	failAll := map[string]error{"01": errs.New(errs.NetworkError, "boom"), "02": errs.New(errs.NetworkError, "boom")}
	fetcher := &stubFetcher{fail: failAll}
	o := batch.New(fetcher, adapter, dlq.New(adapter))

	result, err := o.Run(context.Background(), batch.Options{
		States: []string{"01", "02"}, Layers: []string{"county"},
		CircuitBreakerThreshold: 2, MaxConcurrentStates: 1,
	})
	require.NoError(t, err)
	require.True(t, result.CircuitBreakerTripped)

	require.NoError(t, o.ResetCircuitBreaker(result.CheckpointID))
	cp, found, err := adapter.GetCheckpoint(result.CheckpointID)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, cp.CircuitOpen)
	assert.Equal(t, 0, cp.ConsecutiveFailures)
}

// advancingClock lets a test move time forward past a DLQ entry's
// NextRetryAt without sleeping.
type advancingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *advancingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *advancingClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRetryFromDLQResolvesOnSuccessfulFetch(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	fetcher := &stubFetcher{fail: map[string]error{"02": errs.New(errs.NetworkError, "boom")}}
	clk := &advancingClock{now: time.Now()}
	queue := dlq.New(adapter)
	queue.Clock = clk
	o := batch.New(fetcher, adapter, queue)
	o.Clock = clk

	_, err := o.Run(context.Background(), batch.Options{States: []string{"01", "02"}, Layers: []string{"county"}})
	require.NoError(t, err)
	clk.Advance(time.Hour)

	fetcher.mu.Lock()
	delete(fetcher.fail, "02")
	fetcher.mu.Unlock()

	result, err := o.RetryFromDLQ(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, 1, result.Resolved)

	row, found, err := adapter.GetDLQ(dlq.Key("02/county", "county", "02", 0))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, storage.DLQResolved, row.Status)
}
