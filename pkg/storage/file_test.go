// SPDX-License-Identifier: AGPL-3.0-or-later

package storage_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voterprotocol/shadowatlas/pkg/storage"
)

func TestFileAdapterPersistsAcrossReload(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/state/atlas.json"

	a, err := storage.NewFileAdapter(fs, path)
	require.NoError(t, err)
	require.NoError(t, a.InsertArtifact(storage.Artifact{ID: "art1", JurisdictionID: "06", ContentSHA256: "abc"}))
	require.NoError(t, a.SetHead("06", "art1"))
	require.NoError(t, a.SaveCheckpoint(storage.CheckpointState{ID: "ckpt1", PendingStates: []string{"06", "08"}}))

	reloaded, err := storage.NewFileAdapter(fs, path)
	require.NoError(t, err)

	headID, ok, err := reloaded.GetHead("06")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "art1", headID)

	cp, ok, err := reloaded.GetCheckpoint("ckpt1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"06", "08"}, cp.PendingStates)
}

func TestFileAdapterMissingFileIsEmptyState(t *testing.T) {
	fs := afero.NewMemMapFs()
	a, err := storage.NewFileAdapter(fs, "/state/missing.json")
	require.NoError(t, err)

	_, ok, err := a.GetCheckpoint("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}
