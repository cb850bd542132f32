// SPDX-License-Identifier: AGPL-3.0-or-later

package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voterprotocol/shadowatlas/internal/geom"
	"github.com/voterprotocol/shadowatlas/pkg/boundary"
	"github.com/voterprotocol/shadowatlas/pkg/catalog"
	"github.com/voterprotocol/shadowatlas/pkg/validate"
)

func square(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{Rings: []geom.Ring{{
		{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0},
	}}}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	return catalog.Load()
}

func TestValidateCountMatches(t *testing.T) {
	cat := testCatalog(t)
	expected, ok := cat.ExpectedCount("COUNTY", "06")
	require.True(t, ok)
	result := validate.ValidateCount(cat, "COUNTY", "06", expected)
	assert.True(t, result.Matches)
	assert.Empty(t, result.Issues)
}

func TestValidateCountMismatchIsError(t *testing.T) {
	cat := testCatalog(t)
	expected, ok := cat.ExpectedCount("COUNTY", "06")
	require.True(t, ok)
	result := validate.ValidateCount(cat, "COUNTY", "06", expected+1)
	assert.False(t, result.Matches)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, validate.SeverityError, result.Issues[0].Severity)
}

func TestValidateCountUnknownPairIsInfo(t *testing.T) {
	cat := testCatalog(t)
	result := validate.ValidateCount(cat, "VTD", "06", 900)
	assert.True(t, result.Matches)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, validate.SeverityInfo, result.Issues[0].Severity)
}

func TestValidateTopologyDetectsSelfIntersection(t *testing.T) {
	cat := testCatalog(t)
	v := validate.New(cat)

	bowtie := geom.Polygon{Rings: []geom.Ring{{
		{0, 0}, {10, 10}, {10, 0}, {0, 10}, {0, 0},
	}}}
	children := []boundary.NormalizedBoundary{{GEOID: "0601", Geometry: bowtie}}

	result := v.ValidateTopology("CD", "06", children, nil)
	assert.False(t, result.Valid)
	require.Len(t, result.SelfIntersections, 1)
	assert.Equal(t, "0601", result.SelfIntersections[0].GEOID)
}

func TestValidateTopologyDetectsOverlap(t *testing.T) {
	cat := testCatalog(t)
	v := validate.New(cat)

	children := []boundary.NormalizedBoundary{
		{GEOID: "0601", Geometry: square(0, 0, 10, 10)},
		{GEOID: "0602", Geometry: square(5, 0, 15, 10)},
	}
	result := v.ValidateTopology("CD", "06", children, nil)
	assert.False(t, result.Valid)
	require.Len(t, result.Overlaps, 1)
	assert.Greater(t, result.Overlaps[0].OverlapPct, 0.5)
}

func TestValidateTopologyNoOverlapIsValid(t *testing.T) {
	cat := testCatalog(t)
	v := validate.New(cat)

	children := []boundary.NormalizedBoundary{
		{GEOID: "0601", Geometry: square(0, 0, 10, 10)},
		{GEOID: "0602", Geometry: square(10, 0, 20, 10)},
	}
	result := v.ValidateTopology("CD", "06", children, nil)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Overlaps)
	assert.Empty(t, result.SelfIntersections)
}

func TestValidateTopologyCoverageGapFailsBelowThreshold(t *testing.T) {
	cat := testCatalog(t)
	v := validate.New(cat)

	parent := square(0, 0, 10, 10)
	children := []boundary.NormalizedBoundary{
		{GEOID: "0601", Geometry: square(0, 0, 5, 10)},
	}
	result := v.ValidateTopology("CD", "06", children, parent)
	assert.False(t, result.Valid)
	require.NotNil(t, result.GapAnalysis)
	assert.Less(t, result.GapAnalysis.CoveragePct, 95.0)
}

func TestValidateTopologyFullCoveragePasses(t *testing.T) {
	cat := testCatalog(t)
	v := validate.New(cat)

	parent := square(0, 0, 10, 10)
	children := []boundary.NormalizedBoundary{
		{GEOID: "0601", Geometry: square(0, 0, 5, 10)},
		{GEOID: "0602", Geometry: square(5, 0, 10, 10)},
	}
	result := v.ValidateTopology("CD", "06", children, parent)
	assert.True(t, result.Valid)
	require.NotNil(t, result.GapAnalysis)
	assert.GreaterOrEqual(t, result.GapAnalysis.CoveragePct, 95.0)
}

func TestValidateDualSystemOverlapAllowedForDualSystemState(t *testing.T) {
	cat := testCatalog(t)
	v := validate.New(cat)

	elsd := boundary.NormalizedBoundary{GEOID: "0900001", Geometry: square(0, 0, 10, 10)}
	scsd := boundary.NormalizedBoundary{GEOID: "0900002", Geometry: square(0, 0, 10, 10)}

	result := v.ValidateDualSystemOverlap("09", elsd, scsd)
	assert.True(t, result.Allowed)
	assert.NotEmpty(t, result.Note)
}

func TestValidateDualSystemOverlapRejectedForNonDualState(t *testing.T) {
	cat := testCatalog(t)
	v := validate.New(cat)

	elsd := boundary.NormalizedBoundary{GEOID: "0600001", Geometry: square(0, 0, 10, 10)}
	scsd := boundary.NormalizedBoundary{GEOID: "0600002", Geometry: square(0, 0, 10, 10)}

	result := v.ValidateDualSystemOverlap("06", elsd, scsd)
	assert.False(t, result.Allowed)
}

func TestValidateGEOIDRejectsWrongLength(t *testing.T) {
	assert.Error(t, validate.ValidateGEOID("06001", "06", "CD"))
}

func TestValidateGEOIDAcceptsValid(t *testing.T) {
	assert.NoError(t, validate.ValidateGEOID("0601", "06", "CD"))
}

func TestValidateTopologyUnknownLayerIsError(t *testing.T) {
	cat := testCatalog(t)
	v := validate.New(cat)
	result := v.ValidateTopology("NOPE", "06", nil, nil)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
}
