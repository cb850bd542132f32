// SPDX-License-Identifier: AGPL-3.0-or-later

// Package curated implements the Boundary Provider (C4) for hand-
// maintained, out-of-band boundary files — the family used when no
// portal scan can locate a live source and an operator supplies a
// GeoJSON file directly (spec.md §4.5's scan-exhaustion fallback).
//
// Curated files are read from disk (or any afero.Fs) rather than
// fetched over HTTP, but must still conform to the canonical
// normalized-boundary schema every other family's Transform step
// produces: a GeoJSON FeatureCollection whose Feature.Properties
// carries geoid/name and whose Feature.Geometry is Polygon or
// MultiPolygon only. This is this implementation's resolution of
// spec.md §9 Open Question (a) — there is exactly one curated-family
// transform schema, and it is the same schema pkg/boundary's
// CanonicalJSON itself emits, so a curated file re-exported by this
// module round-trips byte-for-byte.
package curated
