// SPDX-License-Identifier: AGPL-3.0-or-later

package provider_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voterprotocol/shadowatlas/internal/errs"
	"github.com/voterprotocol/shadowatlas/pkg/provider"
)

func TestContentCacheStoreAndLoadRoundTrip(t *testing.T) {
	cache := provider.NewContentCache(afero.NewMemMapFs(), "/cache")
	hash, err := cache.Store([]byte("boundary data"))
	require.NoError(t, err)

	data, found, err := cache.Load(hash)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "boundary data", string(data))
}

func TestContentCacheLoadMissingIsNotFoundNotError(t *testing.T) {
	cache := provider.NewContentCache(afero.NewMemMapFs(), "/cache")
	_, found, err := cache.Load("deadbeef")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestContentCacheLoadDetectsCorruption(t *testing.T) {
	fs := afero.NewMemMapFs()
	cache := provider.NewContentCache(fs, "/cache")
	hash, err := cache.Store([]byte("original"))
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, cache.Path(hash), []byte("tampered"), 0o644))

	_, _, err = cache.Load(hash)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.IntegrityError))
}

func TestVerifyIntegrityDetectsMismatch(t *testing.T) {
	err := provider.VerifyIntegrity([]byte("data"), "wronghash")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.IntegrityError))
}

func TestVerifyIntegrityEmptyExpectedIsNoop(t *testing.T) {
	assert.NoError(t, provider.VerifyIntegrity([]byte("data"), ""))
}
