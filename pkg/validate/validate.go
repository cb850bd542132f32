// SPDX-License-Identifier: AGPL-3.0-or-later

// Package validate implements the Count & Topology Validators (C6):
// feature-count checks against pkg/catalog's expectations, topology
// checks (self-intersection, pairwise overlap, coverage/gap) against
// internal/geom, and GEOID format checks against internal/geoid.
//
// Grounded on the teacher's aggregate-result style (pkg/tools/trace.go,
// search.go build a structured result carrying issues/severities rather
// than returning a bare error) generalized here to a {valid, issues[]}
// shape shared by both validators.
package validate

import (
	"fmt"

	"github.com/voterprotocol/shadowatlas/internal/geoid"
	"github.com/voterprotocol/shadowatlas/internal/geom"
	"github.com/voterprotocol/shadowatlas/pkg/boundary"
	"github.com/voterprotocol/shadowatlas/pkg/catalog"
)

// Severity classifies an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one finding from either validator.
type Issue struct {
	Severity Severity
	Kind     string
	Message  string
}

// CountResult is the count validator's output (spec.md §4.6).
type CountResult struct {
	Matches bool
	Issues  []Issue
}

// ValidateCount compares an observed feature count against
// catalog.ExpectedCount(layer, stateFIPS). A layer/state pair the
// catalog has no expectation for is reported as an informational issue,
// not an error — the catalog only seeds CD/COUNTY/SLDU/SLDL.
func ValidateCount(cat *catalog.Catalog, layer, stateFIPS string, observed int) CountResult {
	expected, ok := cat.ExpectedCount(layer, stateFIPS)
	if !ok {
		return CountResult{Matches: true, Issues: []Issue{{
			Severity: SeverityInfo, Kind: "no_expectation",
			Message: fmt.Sprintf("catalog has no expected count for layer %s in state %s", layer, stateFIPS),
		}}}
	}
	if observed == expected {
		return CountResult{Matches: true}
	}
	return CountResult{
		Matches: false,
		Issues: []Issue{{
			Severity: SeverityError, Kind: "count_mismatch",
			Message: fmt.Sprintf("layer %s state %s: observed %d, expected %d", layer, stateFIPS, observed, expected),
		}},
	}
}

// SelfIntersection reports a boundary whose geometry kinked.
type SelfIntersection struct {
	GEOID string
	Kinks int
}

// Overlap reports a pair of boundaries whose intersection exceeds (or is
// permitted despite exceeding) the layer's max_overlap_pct.
type Overlap struct {
	AGEOID, BGEOID string
	OverlapPct     float64
	Allowed        bool
	Note           string
}

// GapAnalysis reports a tiling layer's coverage shortfall.
type GapAnalysis struct {
	CoveragePct float64
	GapPct      float64
	GapArea     float64
}

// TopologyResult is the topology validator's output (spec.md §4.6).
type TopologyResult struct {
	Valid             bool
	Layer             string
	BoundaryCount     int
	Overlaps          []Overlap
	GapAnalysis       *GapAnalysis
	SelfIntersections []SelfIntersection
	Errors            []Issue
	Warnings          []Issue
	Summary           string
}

// Validator runs the topology checks of spec.md §4.6 against an
// injectable geom.Engine, so tests can swap in a different kernel than
// the stdlib-only geom.Planar default.
type Validator struct {
	Catalog *catalog.Catalog
	Engine  geom.Engine
}

// New constructs a Validator using the stdlib-only planar engine.
func New(cat *catalog.Catalog) *Validator {
	return &Validator{Catalog: cat, Engine: geom.NewPlanar()}
}

// ValidateTopology checks children (all members of one layer) against
// rules, optionally comparing their union to parentGeom when the layer
// requires complete coverage. stateFIPS selects the dual-system
// school-district exception.
func (v *Validator) ValidateTopology(layer, stateFIPS string, children []boundary.NormalizedBoundary, parentGeom geom.Geometry) TopologyResult {
	rules, ok := v.Catalog.TopologyRules(layer)
	if !ok {
		return TopologyResult{
			Valid: false, Layer: layer, BoundaryCount: len(children),
			Errors:  []Issue{{Severity: SeverityError, Kind: "unknown_layer", Message: "no topology rules for layer " + layer}},
			Summary: "unknown layer",
		}
	}

	result := TopologyResult{Layer: layer, BoundaryCount: len(children), Valid: true}

	for _, b := range children {
		if kinks := v.Engine.Kinks(b.Geometry); kinks > 0 {
			result.SelfIntersections = append(result.SelfIntersections, SelfIntersection{GEOID: b.GEOID, Kinks: kinks})
			result.Errors = append(result.Errors, Issue{
				Severity: SeverityError, Kind: "self_intersection",
				Message: fmt.Sprintf("%s: %d kink(s)", b.GEOID, kinks),
			})
			result.Valid = false
		}
	}

	for i := 0; i < len(children); i++ {
		for j := i + 1; j < len(children); j++ {
			a, b := children[i], children[j]
			areaA := v.Engine.Area(a.Geometry)
			areaB := v.Engine.Area(b.Geometry)
			minArea := areaA
			if areaB < minArea {
				minArea = areaB
			}
			if minArea <= 0 {
				continue
			}
			inter := v.Engine.Area(v.Engine.Intersect(a.Geometry, b.Geometry))
			if inter <= rules.ToleranceM*rules.ToleranceM {
				continue
			}
			overlapPct := inter / minArea * 100

			allowed, note := v.overlapAllowed(layer, stateFIPS, rules, overlapPct)
			if overlapPct > rules.MaxOverlapPct && !allowed {
				result.Overlaps = append(result.Overlaps, Overlap{AGEOID: a.GEOID, BGEOID: b.GEOID, OverlapPct: overlapPct})
				result.Errors = append(result.Errors, Issue{
					Severity: SeverityError, Kind: "overlap",
					Message: fmt.Sprintf("%s/%s overlap %.2f%% exceeds max %.2f%%", a.GEOID, b.GEOID, overlapPct, rules.MaxOverlapPct),
				})
				result.Valid = false
			} else if allowed && overlapPct > rules.MaxOverlapPct {
				result.Overlaps = append(result.Overlaps, Overlap{AGEOID: a.GEOID, BGEOID: b.GEOID, OverlapPct: overlapPct, Allowed: true, Note: note})
				result.Warnings = append(result.Warnings, Issue{Severity: SeverityInfo, Kind: "dual_system_overlap", Message: note})
			}
		}
	}

	if rules.CompleteCoverageRequired && parentGeom != nil && len(children) > 0 {
		childGeoms := make([]geom.Geometry, len(children))
		for i, c := range children {
			childGeoms[i] = c.Geometry
		}
		union := v.Engine.Union(childGeoms)
		parentArea := v.Engine.Area(parentGeom)
		if parentArea > 0 {
			unionArea := v.Engine.Area(v.Engine.Intersect(union, parentGeom))
			coveragePct := unionArea / parentArea * 100
			gapPct := 100 - coveragePct
			gapArea := v.Engine.Area(v.Engine.Difference(parentGeom, union))
			result.GapAnalysis = &GapAnalysis{CoveragePct: coveragePct, GapPct: gapPct, GapArea: gapArea}
			if coveragePct < 95 || gapPct > rules.MaxGapPct {
				result.Errors = append(result.Errors, Issue{
					Severity: SeverityError, Kind: "coverage_gap",
					Message: fmt.Sprintf("layer %s coverage %.2f%% (gap %.2f%%) fails minimum", layer, coveragePct, gapPct),
				})
				result.Valid = false
			}
		}
	}

	if result.Valid {
		result.Summary = fmt.Sprintf("%s: %d boundaries, no topology errors", layer, len(children))
	} else {
		result.Summary = fmt.Sprintf("%s: %d boundaries, %d error(s)", layer, len(children), len(result.Errors))
	}
	return result
}

// overlapAllowed implements the school-district tie-break table's
// same-layer rows (spec.md §4.6): every same-layer pair never overlaps.
// The ELSD-SCSD cross-layer exception is cross-layer by definition and
// so is handled separately by ValidateDualSystemOverlap, not here.
func (v *Validator) overlapAllowed(layer, stateFIPS string, rules catalog.TopologyRules, overlapPct float64) (bool, string) {
	if rules.OverlapsPermitted {
		return true, "overlap permitted for layer " + layer
	}
	return false, ""
}

// ValidateDualSystemOverlap checks one elementary boundary against one
// secondary boundary for the ELSD-SCSD cross-layer exception (spec.md
// §4.6): overlap is allowed, and reported as informational, iff the
// state is a dual-system state; otherwise it is an error.
func (v *Validator) ValidateDualSystemOverlap(stateFIPS string, elsd, scsd boundary.NormalizedBoundary) Overlap {
	areaE := v.Engine.Area(elsd.Geometry)
	areaS := v.Engine.Area(scsd.Geometry)
	minArea := areaE
	if areaS < minArea {
		minArea = areaS
	}
	if minArea <= 0 {
		return Overlap{AGEOID: elsd.GEOID, BGEOID: scsd.GEOID}
	}
	inter := v.Engine.Area(v.Engine.Intersect(elsd.Geometry, scsd.Geometry))
	overlapPct := inter / minArea * 100

	if v.Catalog.DualSystemState(stateFIPS) {
		return Overlap{
			AGEOID: elsd.GEOID, BGEOID: scsd.GEOID, OverlapPct: overlapPct, Allowed: true,
			Note: fmt.Sprintf("%s is a dual elementary/secondary school district system; ELSD/SCSD overlap expected", stateFIPS),
		}
	}
	return Overlap{AGEOID: elsd.GEOID, BGEOID: scsd.GEOID, OverlapPct: overlapPct, Allowed: false,
		Note: fmt.Sprintf("%s is not a dual-system state; ELSD/SCSD must not overlap", stateFIPS)}
}

// ValidateGEOID enforces digit-only, layer-expected-length, state-FIPS
// prefixed GEOIDs (spec.md §4.6 "GEOID format validator").
func ValidateGEOID(geoidStr, stateFIPS, layer string) error {
	return geoid.Validate(geoidStr, stateFIPS, layer)
}
