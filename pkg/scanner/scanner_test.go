// SPDX-License-Identifier: AGPL-3.0-or-later

package scanner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voterprotocol/shadowatlas/pkg/catalog"
	"github.com/voterprotocol/shadowatlas/pkg/scanner"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	return catalog.Load()
}

func intp(v int) *int { return &v }

func TestScoreTitleRewardsGovernanceKeywords(t *testing.T) {
	assert.Equal(t, 0, scanner.ScoreTitle("Parks and Recreation Trails"))
	assert.Greater(t, scanner.ScoreTitle("City Council Districts"), 0)
	assert.Greater(t, scanner.ScoreTitle("Voting Precinct Boundary Map"), scanner.ScoreTitle("Council Map"))
}

func TestMatchesGovernanceKeyword(t *testing.T) {
	assert.True(t, scanner.MatchesGovernanceKeyword("Ward_Boundaries"))
	assert.False(t, scanner.MatchesGovernanceKeyword("Storm_Drains"))
}

func TestDistrictCountGateExactMatch(t *testing.T) {
	cat := testCatalog(t)
	result := scanner.DistrictCountGate(cat, "3915000", intp(9))
	assert.True(t, result.Accepted)
	assert.Equal(t, 100, result.Confidence)
}

func TestDistrictCountGateWithinTolerance(t *testing.T) {
	cat := testCatalog(t)
	result := scanner.DistrictCountGate(cat, "3915000", intp(11))
	assert.True(t, result.Accepted)
	assert.Equal(t, 70, result.Confidence)
}

func TestDistrictCountGateRejectsCincinnatiCommunityCouncils(t *testing.T) {
	cat := testCatalog(t)
	result := scanner.DistrictCountGate(cat, "3915000", intp(74))
	assert.False(t, result.Accepted)
}

func TestDistrictCountGateAtLargeRequiresSingleFeature(t *testing.T) {
	cat := testCatalog(t)
	accepted := scanner.DistrictCountGate(cat, "0627000", intp(1))
	assert.True(t, accepted.Accepted)
	assert.Equal(t, 100, accepted.Confidence)

	rejected := scanner.DistrictCountGate(cat, "0627000", intp(5))
	assert.False(t, rejected.Accepted)
}

func TestDistrictCountGateUnknownJurisdictionPassesThrough(t *testing.T) {
	cat := testCatalog(t)
	result := scanner.DistrictCountGate(cat, "9999999", intp(3))
	assert.True(t, result.Accepted)
	assert.Equal(t, 50, result.Confidence)
}

func TestScannerDropsLowScoringCandidates(t *testing.T) {
	cat := testCatalog(t)
	strategy := func(ctx context.Context, q scanner.Query) ([]scanner.PortalCandidate, error) {
		return []scanner.PortalCandidate{
			{Title: "Storm Drain Inventory", URL: "https://x/1"},
			{Title: "City Council District Boundaries", URL: "https://x/2", FeatureCount: intp(9)},
		}, nil
	}
	s := scanner.New(cat, strategy)
	results, err := s.Scan(context.Background(), scanner.Query{PlaceFIPS: "3915000"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "City Council District Boundaries", results[0].Title)
}

func TestScannerDedupesAcrossStrategies(t *testing.T) {
	cat := testCatalog(t)
	cand := scanner.PortalCandidate{Title: "County Boundary Districts", URL: "https://x/dup", FeatureCount: nil}
	s1 := func(ctx context.Context, q scanner.Query) ([]scanner.PortalCandidate, error) {
		return []scanner.PortalCandidate{cand}, nil
	}
	s2 := func(ctx context.Context, q scanner.Query) ([]scanner.PortalCandidate, error) {
		return []scanner.PortalCandidate{cand}, nil
	}
	s := scanner.New(cat, s1, s2)
	results, err := s.Scan(context.Background(), scanner.Query{PlaceFIPS: "unknown-place"})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestScannerSurvivesFailingStrategy(t *testing.T) {
	cat := testCatalog(t)
	failing := func(ctx context.Context, q scanner.Query) ([]scanner.PortalCandidate, error) {
		return nil, assertErr{}
	}
	good := func(ctx context.Context, q scanner.Query) ([]scanner.PortalCandidate, error) {
		return []scanner.PortalCandidate{{Title: "Electoral District Boundary", URL: "https://x/3"}}, nil
	}
	s := scanner.New(cat, failing, good)
	results, err := s.Scan(context.Background(), scanner.Query{PlaceFIPS: "unknown"})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
