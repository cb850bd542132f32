// SPDX-License-Identifier: AGPL-3.0-or-later

package scanner_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voterprotocol/shadowatlas/pkg/scanner"
)

func TestRESTEnumeratorPrunesSkipListAndFiltersLayers(t *testing.T) {
	mux := http.NewServeMux()

	mux.HandleFunc("/rest/services", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"folders":  []string{"utilities", "Boundaries"},
			"services": []map[string]string{{"name": "RootLayer", "type": "FeatureServer"}},
		})
	})
	mux.HandleFunc("/rest/services/RootLayer/FeatureServer", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"layers": []map[string]any{
				{"id": 0, "name": "Storm Drains", "geometryType": "esriGeometryPoint"},
			},
		})
	})
	mux.HandleFunc("/rest/services/Boundaries", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"folders":  []string{},
			"services": []map[string]string{{"name": "WardDistricts", "type": "FeatureServer"}},
		})
	})
	mux.HandleFunc("/rest/services/Boundaries/WardDistricts/FeatureServer", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"layers": []map[string]any{
				{"id": 0, "name": "Ward Council Districts", "geometryType": "esriGeometryPolygon"},
			},
		})
	})
	mux.HandleFunc("/rest/services/utilities", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("enumerator must not descend into a skip-listed folder")
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	enumerator := scanner.NewRESTEnumerator(server.Client(), server.URL+"/rest/services")
	candidates, err := enumerator.Strategy()(context.Background(), scanner.Query{})
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, "Ward Council Districts", candidates[0].Title)
}
