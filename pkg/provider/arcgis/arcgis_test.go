// SPDX-License-Identifier: AGPL-3.0-or-later

package arcgis_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voterprotocol/shadowatlas/pkg/provider"
	"github.com/voterprotocol/shadowatlas/pkg/provider/arcgis"
)

const sampleFeatureCollection = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"GEOID": "0601", "NAME": "District 1"},
      "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
    }
  ]
}`

func TestArcGISDownloadAppendsQueryPath(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(sampleFeatureCollection))
	}))
	defer server.Close()

	p := arcgis.New(provider.NewContentCache(afero.NewMemMapFs(), "/cache"))
	opts := provider.Options{Layer: "CD", StateFIPS: "06", SourceURL: server.URL + "/FeatureServer/0"}

	raw, err := p.DownloadLayer(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, raw, 1)

	assert.Equal(t, "/FeatureServer/0/query", gotPath)
	assert.Contains(t, gotQuery, "f=geojson")

	boundaries, err := p.Transform(raw, opts)
	require.NoError(t, err)
	require.Len(t, boundaries, 1)
	assert.Equal(t, "0601", boundaries[0].GEOID)
}

func TestArcGISDownload404IsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p := arcgis.New(nil)
	_, err := p.DownloadLayer(context.Background(), provider.Options{SourceURL: server.URL})
	require.Error(t, err)
}

func TestArcGISRequiresSourceURL(t *testing.T) {
	p := arcgis.New(nil)
	_, err := p.DownloadLayer(context.Background(), provider.Options{})
	require.Error(t, err)
}
