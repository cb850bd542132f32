// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/voterprotocol/shadowatlas/internal/errs"
	"github.com/voterprotocol/shadowatlas/internal/geoid"
	"github.com/voterprotocol/shadowatlas/internal/geom"
	"github.com/voterprotocol/shadowatlas/pkg/boundary"
)

type geoJSONFeatureCollection struct {
	Type     string            `json:"type"`
	Features []geoJSONFeatureIn `json:"features"`
}

type geoJSONFeatureIn struct {
	Type       string          `json:"type"`
	Geometry   geoJSONGeometryIn `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

type geoJSONGeometryIn struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// GEOIDProperties lists the candidate property keys for the GEOID and
// display name, in priority order, across the ArcGIS/CKAN/Socrata/Hub
// portal families this module consumes (each family names these fields
// slightly differently).
var GEOIDProperties = []string{"GEOID", "geoid", "GEOID20", "GEOID10", "ID"}
var NameProperties = []string{"NAMELSAD", "NAME", "name", "basename"}

// ParseFeatureCollection decodes raw GeoJSON bytes into normalized
// boundaries, validating GEOID format and geometry validity per
// spec.md §4.4's Transform invariants. layer/stateFIPS are supplied by
// the caller (the portal scan context), since arbitrary third-party
// GeoJSON rarely carries either explicitly.
func ParseFeatureCollection(data []byte, layer, stateFIPS string) ([]boundary.NormalizedBoundary, error) {
	var fc geoJSONFeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, errs.Wrap(errs.SchemaError, "decode GeoJSON feature collection", err)
	}
	if len(fc.Features) == 0 {
		return nil, errs.New(errs.NotFound, "GeoJSON feature collection has no features")
	}

	out := make([]boundary.NormalizedBoundary, 0, len(fc.Features))
	for i, feat := range fc.Features {
		g, err := decodeGeometry(feat.Geometry)
		if err != nil {
			return nil, errs.Wrap(errs.SchemaError, fmt.Sprintf("feature %d geometry", i), err)
		}
		if !geom.Valid(g) {
			return nil, errs.New(errs.SchemaError, fmt.Sprintf("feature %d has invalid geometry", i))
		}

		id := firstNonEmpty(feat.Properties, GEOIDProperties)
		if id == "" {
			return nil, errs.New(errs.SchemaError, fmt.Sprintf("feature %d missing a GEOID property", i))
		}
		if err := geoid.Validate(id, stateFIPS, strings.ToUpper(layer)); err != nil {
			return nil, errs.Wrap(errs.SchemaError, "invalid GEOID in feature properties", err)
		}

		out = append(out, boundary.NormalizedBoundary{
			GEOID:          id,
			Name:           firstNonEmpty(feat.Properties, NameProperties),
			Layer:          strings.ToUpper(layer),
			Geometry:       g,
			JurisdictionID: stateFIPS,
			Properties:     feat.Properties,
		})
	}
	return out, nil
}

func firstNonEmpty(props map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := props[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func decodeGeometry(g geoJSONGeometryIn) (geom.Geometry, error) {
	switch g.Type {
	case "Polygon":
		var rings [][][2]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, err
		}
		return geom.Polygon{Rings: toRings(rings)}, nil
	case "MultiPolygon":
		var polys [][][][2]float64
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return nil, err
		}
		out := make([]geom.Polygon, len(polys))
		for i, p := range polys {
			out[i] = geom.Polygon{Rings: toRings(p)}
		}
		return geom.MultiPolygon{Polygons: out}, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

func toRings(rings [][][2]float64) []geom.Ring {
	out := make([]geom.Ring, len(rings))
	for i, r := range rings {
		ring := make(geom.Ring, len(r))
		for j, pt := range r {
			ring[j] = geom.Point{pt[0], pt[1]}
		}
		out[i] = ring
	}
	return out
}
