// SPDX-License-Identifier: AGPL-3.0-or-later

// Package boundary defines the layer-agnostic NormalizedBoundary record
// (spec.md §3) that every pkg/provider family's Transform step emits,
// and the canonical GeoJSON Feature encoding used to serialize it for
// content hashing (spec.md §9 Open Question (a): this is the one
// canonical schema every portal family's transform targets).
package boundary

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/voterprotocol/shadowatlas/internal/geom"
)

// NormalizedBoundary is the layer-agnostic in-memory boundary record
// every portal family's Transform step produces (spec.md §3).
type NormalizedBoundary struct {
	GEOID          string
	Name           string
	Layer          string
	Geometry       geom.Geometry
	JurisdictionID string
	Properties     map[string]any
}

// geoJSONFeature is the canonical wire schema (spec.md §9 Open
// Question (a)): GEOID/name/layer travel in Properties, Geometry is
// Polygon/MultiPolygon only.
type geoJSONFeature struct {
	Type       string         `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geoJSONGeometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// ringToCoords converts a geom.Ring to GeoJSON's [][2]float64 shape.
func ringToCoords(r geom.Ring) [][2]float64 {
	out := make([][2]float64, len(r))
	for i, p := range r {
		out[i] = [2]float64{p[0], p[1]}
	}
	return out
}

func encodeGeometry(g geom.Geometry) (json.RawMessage, error) {
	switch v := g.(type) {
	case geom.Polygon:
		coords := make([][][2]float64, len(v.Rings))
		for i, r := range v.Rings {
			coords[i] = ringToCoords(r)
		}
		return json.Marshal(geoJSONGeometry{Type: "Polygon", Coordinates: coords})
	case geom.MultiPolygon:
		coords := make([][][][2]float64, len(v.Polygons))
		for i, p := range v.Polygons {
			rings := make([][][2]float64, len(p.Rings))
			for j, r := range p.Rings {
				rings[j] = ringToCoords(r)
			}
			coords[i] = rings
		}
		return json.Marshal(geoJSONGeometry{Type: "MultiPolygon", Coordinates: coords})
	default:
		return nil, fmt.Errorf("boundary: unsupported geometry type %T", g)
	}
}

// FeatureCollection wraps a set of boundaries for canonical
// serialization (spec.md §3: "canonical minified JSON serialization of
// the feature collection").
type FeatureCollection struct {
	Type     string           `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// CanonicalJSON serializes boundaries into the minified, deterministically
// ordered (by GEOID) GeoJSON FeatureCollection bytes that
// ContentSHA256 hashes over (spec.md §3's Artifact invariant).
func CanonicalJSON(boundaries []NormalizedBoundary) ([]byte, error) {
	sorted := make([]NormalizedBoundary, len(boundaries))
	copy(sorted, boundaries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].GEOID < sorted[j].GEOID })

	features := make([]json.RawMessage, 0, len(sorted))
	for _, b := range sorted {
		geomJSON, err := encodeGeometry(b.Geometry)
		if err != nil {
			return nil, err
		}
		props := make(map[string]any, len(b.Properties)+3)
		for k, v := range b.Properties {
			props[k] = v
		}
		props["geoid"] = b.GEOID
		props["name"] = b.Name
		props["layer"] = b.Layer

		feature := geoJSONFeature{Type: "Feature", Geometry: geomJSON, Properties: props}
		raw, err := json.Marshal(feature)
		if err != nil {
			return nil, err
		}
		features = append(features, raw)
	}

	fc := FeatureCollection{Type: "FeatureCollection", Features: features}
	return json.Marshal(fc)
}

// ContentSHA256 computes the Artifact content hash (spec.md §3): SHA-256
// over the canonical minified JSON serialization of the feature
// collection. Two artifacts with the same hash are semantically
// identical.
func ContentSHA256(boundaries []NormalizedBoundary) (string, error) {
	data, err := CanonicalJSON(boundaries)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// BBox is a [minX, minY, maxX, maxY] bounding box.
type BBox [4]float64

// ComputeBBox returns the union bounding box across all boundaries'
// rings (outer rings and holes), or nil if boundaries is empty.
func ComputeBBox(boundaries []NormalizedBoundary) *BBox {
	if len(boundaries) == 0 {
		return nil
	}
	minX, minY := float64(1<<62), float64(1<<62)
	maxX, maxY := -float64(1<<62), -float64(1<<62)
	found := false
	for _, b := range boundaries {
		for _, ring := range ringsOf(b.Geometry) {
			for _, pt := range ring {
				found = true
				if pt[0] < minX {
					minX = pt[0]
				}
				if pt[1] < minY {
					minY = pt[1]
				}
				if pt[0] > maxX {
					maxX = pt[0]
				}
				if pt[1] > maxY {
					maxY = pt[1]
				}
			}
		}
	}
	if !found {
		return nil
	}
	return &BBox{minX, minY, maxX, maxY}
}

func ringsOf(g geom.Geometry) []geom.Ring {
	switch v := g.(type) {
	case geom.Polygon:
		return v.Rings
	case geom.MultiPolygon:
		var out []geom.Ring
		for _, p := range v.Polygons {
			out = append(out, p.Rings...)
		}
		return out
	default:
		return nil
	}
}
