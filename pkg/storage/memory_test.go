// SPDX-License-Identifier: AGPL-3.0-or-later

package storage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voterprotocol/shadowatlas/pkg/source"
	"github.com/voterprotocol/shadowatlas/pkg/storage"
)

func TestArtifactsAreImmutable(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	a := storage.Artifact{ID: "art1", JurisdictionID: "06", ContentSHA256: "abc"}
	require.NoError(t, adapter.InsertArtifact(a))

	// Re-insert with a different hash under the same ID must not mutate it.
	require.NoError(t, adapter.InsertArtifact(storage.Artifact{ID: "art1", ContentSHA256: "different"}))

	got, ok, err := adapter.GetArtifact("art1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", got.ContentSHA256)
}

func TestHeadNeverPointsAtMissingArtifact(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	require.NoError(t, adapter.InsertArtifact(storage.Artifact{ID: "art1"}))
	require.NoError(t, adapter.SetHead("06", "art1"))

	id, ok, err := adapter.GetHead("06")
	require.NoError(t, err)
	require.True(t, ok)

	_, exists, err := adapter.GetArtifact(id)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestListRetryableDLQOrdersByLastAttempt(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	now := time.Now()

	require.NoError(t, adapter.UpsertDLQ(storage.DLQEntry{
		ID: "b", Status: storage.DLQPending, LastAttemptAt: now.Add(-1 * time.Minute),
	}))
	require.NoError(t, adapter.UpsertDLQ(storage.DLQEntry{
		ID: "a", Status: storage.DLQPending, LastAttemptAt: now.Add(-10 * time.Minute),
	}))
	require.NoError(t, adapter.UpsertDLQ(storage.DLQEntry{
		ID: "c", Status: storage.DLQExhausted, LastAttemptAt: now.Add(-20 * time.Minute),
	}))

	rows, err := adapter.ListRetryableDLQ(10, now)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, "b", rows[1].ID)
}

func TestListRetryableDLQRespectsNextRetryAt(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	now := time.Now()
	future := now.Add(time.Hour)

	require.NoError(t, adapter.UpsertDLQ(storage.DLQEntry{
		ID: "future", Status: storage.DLQPending, NextRetryAt: &future,
	}))

	rows, err := adapter.ListRetryableDLQ(10, now)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSourcesListSorted(t *testing.T) {
	adapter := storage.NewMemoryAdapter()
	require.NoError(t, adapter.UpsertSource(source.Source{ID: "z"}))
	require.NoError(t, adapter.UpsertSource(source.Source{ID: "a"}))

	rows, err := adapter.ListSources()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, "z", rows[1].ID)
}
