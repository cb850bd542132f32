// SPDX-License-Identifier: AGPL-3.0-or-later

package curated_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voterprotocol/shadowatlas/pkg/provider"
	"github.com/voterprotocol/shadowatlas/pkg/provider/curated"
)

const sampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"GEOID": "0601", "NAME": "District 1"},
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
    }
  ]
}`

func TestCuratedDownloadAndTransform(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/curated/ca-cd.geojson", []byte(sampleGeoJSON), 0o644))

	p := curated.New(fs)
	opts := provider.Options{Layer: "CD", StateFIPS: "06", SourceURL: "/curated/ca-cd.geojson"}

	raw, err := p.DownloadLayer(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, raw, 1)

	boundaries, err := p.Transform(raw, opts)
	require.NoError(t, err)
	require.Len(t, boundaries, 1)
	assert.Equal(t, "0601", boundaries[0].GEOID)
	assert.Equal(t, "District 1", boundaries[0].Name)
	assert.Equal(t, "CD", boundaries[0].Layer)
}

func TestCuratedDownloadMissingFileIsNotFound(t *testing.T) {
	p := curated.New(afero.NewMemMapFs())
	_, err := p.DownloadLayer(context.Background(), provider.Options{SourceURL: "/nope.geojson"})
	require.Error(t, err)
}

func TestCuratedRequiresSourceURL(t *testing.T) {
	p := curated.New(afero.NewMemMapFs())
	_, err := p.DownloadLayer(context.Background(), provider.Options{})
	require.Error(t, err)
}
