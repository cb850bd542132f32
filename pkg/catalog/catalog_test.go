// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSucceedsWithValidTables(t *testing.T) {
	c, err := build()
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestCDSumsTo435(t *testing.T) {
	assert.Equal(t, 435, sumValues(expectedCDByState))
}

func TestCountiesSumTo3143(t *testing.T) {
	assert.Equal(t, 3143, sumValues(expectedCountiesByState))
}

func TestNebraskaUnicameral(t *testing.T) {
	assert.Equal(t, 49, expectedSLDUByState["31"])
	assert.Equal(t, 0, expectedSLDLByState["31"])
}

func TestBuildCatchesBrokenCDInvariant(t *testing.T) {
	orig := expectedCDByState["06"]
	expectedCDByState["06"] = orig + 1
	defer func() { expectedCDByState["06"] = orig }()

	_, err := build()
	assert.Error(t, err)
}

func TestExpectedCount(t *testing.T) {
	c, err := build()
	require.NoError(t, err)

	v, ok := c.ExpectedCount("CD", "06")
	require.True(t, ok)
	assert.Equal(t, 52, v)

	_, ok = c.ExpectedCount("CD", "99")
	assert.False(t, ok)
}

func TestTopologyRulesCD(t *testing.T) {
	c, err := build()
	require.NoError(t, err)

	r, ok := c.TopologyRules("CD")
	require.True(t, ok)
	assert.True(t, r.MustTileWithinParent)
	assert.True(t, r.CompleteCoverageRequired)
	assert.False(t, r.OverlapsPermitted)
}

func TestDualSystemStates(t *testing.T) {
	c, err := build()
	require.NoError(t, err)

	assert.True(t, c.DualSystemState("09")) // CT
	assert.False(t, c.DualSystemState("06")) // CA
}

func TestCincinnatiGateEntry(t *testing.T) {
	c, err := build()
	require.NoError(t, err)

	e, ok := c.ExpectedDistrictCount("3915000")
	require.True(t, ok)
	require.NotNil(t, e.Expected)
	assert.Equal(t, 9, *e.Expected)
}

func TestStateByFIPSAndAbbr(t *testing.T) {
	c, err := build()
	require.NoError(t, err)

	s, ok := c.StateByFIPS("06")
	require.True(t, ok)
	assert.Equal(t, "CA", s.Abbr)

	s2, ok := c.StateByAbbr("CA")
	require.True(t, ok)
	assert.Equal(t, "06", s2.FIPS)
}

func TestEveryStateHasRequiredTableEntries(t *testing.T) {
	_, err := build()
	require.NoError(t, err)
	assert.Len(t, States, 51) // 50 states + DC
}
