// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog implements the Reference Catalog (C1): static,
// process-wide, read-only tables of expected feature counts and
// topology rules, validated at Load() time against the cross-sum
// invariants spec.md §4.1/§8 require (congressional districts sum to
// 435, counties sum to 3,143, Nebraska's legislature is unicameral).
//
// Grounded on cmd/cie/config.go's validate-then-use posture: nothing in
// this package is consulted until Load() has run and returned a clean
// Catalog; any cross-sum violation calls errs.Fatal, matching the
// teacher's own fail-at-startup discipline.
package catalog

import (
	"fmt"
	"sort"

	"github.com/voterprotocol/shadowatlas/internal/errs"
)

// TopologyRules describes the tiling/overlap/coverage contract a single
// boundary layer must satisfy (spec.md §4.1).
type TopologyRules struct {
	MustTileWithinParent     bool
	ParentLayer              string
	MaxOverlapPct            float64
	MaxGapPct                float64
	ToleranceM               float64
	OverlapsPermitted        bool
	CompleteCoverageRequired bool
}

var topologyByLayer = map[string]TopologyRules{
	"CD": {
		MustTileWithinParent: true, ParentLayer: "STATE",
		MaxOverlapPct: 0.5, MaxGapPct: 2.0, ToleranceM: 1.0,
		OverlapsPermitted: false, CompleteCoverageRequired: true,
	},
	"COUNTY": {
		MustTileWithinParent: true, ParentLayer: "STATE",
		MaxOverlapPct: 0.5, MaxGapPct: 2.0, ToleranceM: 1.0,
		OverlapsPermitted: false, CompleteCoverageRequired: true,
	},
	"VTD": {
		MustTileWithinParent: true, ParentLayer: "COUNTY",
		MaxOverlapPct: 1.0, MaxGapPct: 5.0, ToleranceM: 1.0,
		OverlapsPermitted: false, CompleteCoverageRequired: true,
	},
	"COUSUB": {
		MustTileWithinParent: true, ParentLayer: "COUNTY",
		MaxOverlapPct: 1.0, MaxGapPct: 5.0, ToleranceM: 1.0,
		OverlapsPermitted: false, CompleteCoverageRequired: true,
	},
	"SLDU": {
		MustTileWithinParent: true, ParentLayer: "STATE",
		MaxOverlapPct: 1.0, MaxGapPct: 5.0, ToleranceM: 1.0,
		OverlapsPermitted: false, CompleteCoverageRequired: false,
	},
	"SLDL": {
		MustTileWithinParent: true, ParentLayer: "STATE",
		MaxOverlapPct: 1.0, MaxGapPct: 5.0, ToleranceM: 1.0,
		OverlapsPermitted: false, CompleteCoverageRequired: false,
	},
	"UNSD": {
		MustTileWithinParent: true, ParentLayer: "STATE",
		MaxOverlapPct: 0.5, MaxGapPct: 10.0, ToleranceM: 1.0,
		OverlapsPermitted: false, CompleteCoverageRequired: false,
	},
	"ELSD": {
		MustTileWithinParent: true, ParentLayer: "STATE",
		MaxOverlapPct: 0.5, MaxGapPct: 10.0, ToleranceM: 1.0,
		OverlapsPermitted: false, CompleteCoverageRequired: false,
	},
	"SCSD": {
		MustTileWithinParent: true, ParentLayer: "STATE",
		MaxOverlapPct: 0.5, MaxGapPct: 10.0, ToleranceM: 1.0,
		OverlapsPermitted: false, CompleteCoverageRequired: false,
	},
	"PLACE": {
		MustTileWithinParent: false, ParentLayer: "STATE",
		MaxOverlapPct: 0.1, MaxGapPct: 100.0, ToleranceM: 1.0,
		OverlapsPermitted: false, CompleteCoverageRequired: false,
	},
}

// ExpectedDistrictEntry is the Cincinnati-style guard: the expected
// number of governance districts for a place, distinct from whatever
// neighborhood/community-council layer a portal might expose instead.
type ExpectedDistrictEntry struct {
	Expected *int // nil means at-large (single citywide seat set)
	CityName string
	Notes    string
}

// expectedDistrictsByPlaceFIPS seeds the Cincinnati defense (spec.md
// §4.5, §8 scenario 1) plus a few other well-known cases.
var expectedDistrictsByPlaceFIPS = map[string]ExpectedDistrictEntry{
	"3915000": {Expected: intPtr(9), CityName: "Cincinnati, OH",
		Notes: "9 at-large council seats; do not confuse with the city's 74 community council neighborhoods"},
	"3651000": {Expected: intPtr(51), CityName: "New York, NY",
		Notes: "51 city council districts"},
	"0644000": {Expected: intPtr(15), CityName: "Los Angeles, CA",
		Notes: "15 city council districts"},
	"1714000": {Expected: intPtr(50), CityName: "Chicago, IL",
		Notes: "50 wards"},
	"0627000": {Expected: nil, CityName: "Colfax, CA",
		Notes: "at-large council; single feature_count==1 candidate expected"},
}

func intPtr(v int) *int { return &v }

// SourceJurisdictionMap resolves a source_id to the jurisdiction_id it
// feeds, an explicit table per spec.md §9 Open Question (b) rather than
// string-parsing source_id at call sites. Seeded with the TIGER bulk
// sources this implementation ships provider support for; additional
// entries are added as new sources are registered.
var SourceJurisdictionMap = map[string]string{
	"tiger-cd-us":    "US",
	"tiger-county-us": "US",
}

// Catalog is the validated, process-wide reference data handle returned
// by Load(). All lookups are read-only and safe for concurrent use.
type Catalog struct {
	byFIPS map[string]State
	byAbbr map[string]State
}

// Load builds and validates the Catalog. It calls errs.Fatal (process
// exit) if any cross-sum invariant fails — this is the one place in the
// module where a startup failure is intentionally unrecoverable, per
// spec.md §4.1's "fails loudly at startup".
func Load() *Catalog {
	c, err := build()
	if err != nil {
		errs.Fatal(errs.ReferenceDataInvalid, "reference catalog failed validation", err)
		return nil // unreachable in production; errs.Fatal exits, but keeps tests honest
	}
	return c
}

// build is Load's testable counterpart: it returns an error instead of
// exiting, so catalog_test.go can assert on broken invariants without
// killing the test binary.
func build() (*Catalog, error) {
	byFIPS, byAbbr := buildStateIndexes()

	if sum := sumValues(expectedCDByState); sum != 435 {
		return nil, fmt.Errorf("congressional district apportionment sums to %d, want 435", sum)
	}
	if sum := sumValues(expectedCountiesByState); sum != 3143 {
		return nil, fmt.Errorf("county count sums to %d, want 3143", sum)
	}
	if expectedSLDUByState["31"] != 49 {
		return nil, fmt.Errorf("Nebraska SLDU = %d, want 49", expectedSLDUByState["31"])
	}
	if expectedSLDLByState["31"] != 0 {
		return nil, fmt.Errorf("Nebraska SLDL = %d, want 0 (unicameral)", expectedSLDLByState["31"])
	}

	// Every state FIPS must have an entry in the per-state tables it
	// participates in (CD, counties, SLDU, SLDL) — DC is exempt from CD
	// and legislature tables since it has no congressional district or
	// state legislature.
	for _, s := range States {
		if _, ok := expectedCountiesByState[s.FIPS]; !ok {
			return nil, fmt.Errorf("state %s (%s) missing from county table", s.FIPS, s.Abbr)
		}
		if s.Abbr == "DC" {
			continue
		}
		if _, ok := expectedCDByState[s.FIPS]; !ok {
			return nil, fmt.Errorf("state %s (%s) missing from CD table", s.FIPS, s.Abbr)
		}
		if _, ok := expectedSLDUByState[s.FIPS]; !ok {
			return nil, fmt.Errorf("state %s (%s) missing from SLDU table", s.FIPS, s.Abbr)
		}
		if _, ok := expectedSLDLByState[s.FIPS]; !ok {
			return nil, fmt.Errorf("state %s (%s) missing from SLDL table", s.FIPS, s.Abbr)
		}
	}

	return &Catalog{byFIPS: byFIPS, byAbbr: byAbbr}, nil
}

func sumValues(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

// ExpectedCount returns the expected feature count for (layer, state),
// or (0, false) if the catalog has no expectation for that pair.
func (c *Catalog) ExpectedCount(layer, stateFIPS string) (int, bool) {
	switch layer {
	case "CD":
		v, ok := expectedCDByState[stateFIPS]
		return v, ok
	case "COUNTY":
		v, ok := expectedCountiesByState[stateFIPS]
		return v, ok
	case "SLDU":
		v, ok := expectedSLDUByState[stateFIPS]
		return v, ok
	case "SLDL":
		v, ok := expectedSLDLByState[stateFIPS]
		return v, ok
	default:
		return 0, false
	}
}

// TopologyRules returns the tiling/overlap/coverage rules for a layer.
func (c *Catalog) TopologyRules(layer string) (TopologyRules, bool) {
	r, ok := topologyByLayer[layer]
	return r, ok
}

// DualSystemState reports whether a state splits its school districts
// into overlapping elementary (ELSD) and secondary (SCSD) systems.
func (c *Catalog) DualSystemState(stateFIPS string) bool {
	return dualSystemStates[stateFIPS]
}

// AtLargeState reports whether a state's sole congressional district is
// at-large.
func (c *Catalog) AtLargeState(stateFIPS string) bool {
	return atLargeStates[stateFIPS]
}

// ExpectedDistrictCount returns the Cincinnati-gate entry for a place
// FIPS, or (ExpectedDistrictEntry{}, false) if the place is unknown to
// the catalog (scanner treats unknown as confidence=50, pass-through,
// per spec.md §4.5).
func (c *Catalog) ExpectedDistrictCount(placeFIPS string) (ExpectedDistrictEntry, bool) {
	e, ok := expectedDistrictsByPlaceFIPS[placeFIPS]
	return e, ok
}

// StateByFIPS looks up a state by its 2-digit FIPS code.
func (c *Catalog) StateByFIPS(fips string) (State, bool) {
	s, ok := c.byFIPS[fips]
	return s, ok
}

// StateByAbbr looks up a state by its postal abbreviation.
func (c *Catalog) StateByAbbr(abbr string) (State, bool) {
	s, ok := c.byAbbr[abbr]
	return s, ok
}

// AllStateFIPS returns every state FIPS code in ascending order,
// including DC.
func (c *Catalog) AllStateFIPS() []string {
	out := make([]string, 0, len(c.byFIPS))
	for fips := range c.byFIPS {
		out = append(out, fips)
	}
	sort.Strings(out)
	return out
}
