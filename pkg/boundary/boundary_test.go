// SPDX-License-Identifier: AGPL-3.0-or-later

package boundary_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voterprotocol/shadowatlas/internal/geom"
	"github.com/voterprotocol/shadowatlas/pkg/boundary"
)

func square() geom.Polygon {
	return geom.Polygon{Rings: []geom.Ring{{
		{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0},
	}}}
}

func TestContentSHA256Deterministic(t *testing.T) {
	boundaries := []boundary.NormalizedBoundary{
		{GEOID: "0601", Name: "District 1", Layer: "CD", Geometry: square(), JurisdictionID: "06"},
	}
	h1, err := boundary.ContentSHA256(boundaries)
	require.NoError(t, err)
	h2, err := boundary.ContentSHA256(boundaries)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestContentSHA256OrderIndependent(t *testing.T) {
	a := boundary.NormalizedBoundary{GEOID: "0601", Layer: "CD", Geometry: square()}
	b := boundary.NormalizedBoundary{GEOID: "0602", Layer: "CD", Geometry: square()}

	h1, err := boundary.ContentSHA256([]boundary.NormalizedBoundary{a, b})
	require.NoError(t, err)
	h2, err := boundary.ContentSHA256([]boundary.NormalizedBoundary{b, a})
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "canonical serialization must sort by GEOID")
}

func TestContentSHA256DiffersOnChange(t *testing.T) {
	a := boundary.NormalizedBoundary{GEOID: "0601", Layer: "CD", Geometry: square()}
	b := boundary.NormalizedBoundary{GEOID: "0602", Layer: "CD", Geometry: square()}

	h1, err := boundary.ContentSHA256([]boundary.NormalizedBoundary{a})
	require.NoError(t, err)
	h2, err := boundary.ContentSHA256([]boundary.NormalizedBoundary{a, b})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestComputeBBox(t *testing.T) {
	boundaries := []boundary.NormalizedBoundary{
		{GEOID: "a", Geometry: square()},
	}
	bbox := boundary.ComputeBBox(boundaries)
	require.NotNil(t, bbox)
	assert.Equal(t, boundary.BBox{0, 0, 1, 1}, *bbox)
}

func TestComputeBBoxEmpty(t *testing.T) {
	assert.Nil(t, boundary.ComputeBBox(nil))
}
