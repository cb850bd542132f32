// SPDX-License-Identifier: AGPL-3.0-or-later

package source_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voterprotocol/shadowatlas/pkg/source"
)

func TestTIGERURLCaliforniaCD(t *testing.T) {
	got := source.TIGERURL(2024, "cd119", "06")
	want := "https://www2.census.gov/geo/tiger/TIGER2024/CD/tl_2024_06_cd119.zip"
	assert.Equal(t, want, got)
}

func TestTIGERURLNational(t *testing.T) {
	got := source.TIGERURL(2024, "county", "us")
	want := "https://www2.census.gov/geo/tiger/TIGER2024/COUNTY/tl_2024_us_county.zip"
	assert.Equal(t, want, got)
}

func TestTriggerConstructors(t *testing.T) {
	a := source.Annual(3)
	assert.Equal(t, source.TriggerAnnual, a.Kind)
	assert.Equal(t, 3, a.Month)

	r := source.Redistricting(2021, 2031)
	assert.Equal(t, source.TriggerRedistricting, r.Kind)
	assert.Equal(t, []int{2021, 2031}, r.Years)

	c := source.Census(2030)
	assert.Equal(t, source.TriggerCensus, c.Kind)
	assert.Equal(t, 2030, c.Year)

	m := source.Manual()
	assert.Equal(t, source.TriggerManual, m.Kind)
}
