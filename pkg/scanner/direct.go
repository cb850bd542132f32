// SPDX-License-Identifier: AGPL-3.0-or-later

package scanner

import "context"

// DirectLayerEntry is a fixed, pre-registered layer ID for a known
// state GIS portal (spec.md §4.5 strategy 1, e.g. Hawaii Statewide
// GIS).
type DirectLayerEntry struct {
	StateFIPS    string
	Title        string
	URL          string
	DownloadURL  string
	GeometryType string
}

// DirectLayerRegistry is the static table of known-good state portal
// layers this strategy verifies are still polygonal before surfacing.
var DirectLayerRegistry = []DirectLayerEntry{
	{StateFIPS: "15", Title: "Hawaii Statewide GIS Program - Legislative Districts",
		URL: "https://geoportal.hawaii.gov/datasets/legislative-districts", GeometryType: "esriGeometryPolygon"},
}

// DirectLayerStrategy returns a StrategyFunc that checks the static
// registry for the query's state and verifies the registered geometry
// type is polygonal (spec.md §4.5 strategy 1).
func DirectLayerStrategy() StrategyFunc {
	return func(ctx context.Context, query Query) ([]PortalCandidate, error) {
		var out []PortalCandidate
		for _, entry := range DirectLayerRegistry {
			if entry.StateFIPS != query.StateFIPS {
				continue
			}
			if !isPolygonal(entry.GeometryType) {
				continue
			}
			out = append(out, PortalCandidate{
				ID:          entry.URL,
				Title:       entry.Title,
				URL:         entry.URL,
				DownloadURL: entry.DownloadURL,
				PortalType:  PortalDirect,
			})
		}
		return out, nil
	}
}
