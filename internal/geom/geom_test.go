// SPDX-License-Identifier: AGPL-3.0-or-later

package geom_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voterprotocol/shadowatlas/internal/geom"
)

func square(x0, y0, size float64) geom.Polygon {
	x1, y1 := x0+size, y0+size
	return geom.Polygon{Rings: []geom.Ring{{
		{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0},
	}}}
}

func TestAreaTenByTenSquare(t *testing.T) {
	e := geom.NewPlanar()
	assert.InDelta(t, 100.0, e.Area(square(0, 0, 10)), 1e-6)
}

func TestValidRejectsOpenRing(t *testing.T) {
	p := geom.Polygon{Rings: []geom.Ring{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}}
	assert.False(t, geom.Valid(p))
}

func TestValidRejectsNaN(t *testing.T) {
	nanVal := math.NaN()
	p := geom.Polygon{Rings: []geom.Ring{{
		{0, 0}, {1, 0}, {1, nanVal}, {0, 1}, {0, 0},
	}}}
	assert.False(t, geom.Valid(p))

	ok := geom.Polygon{Rings: []geom.Ring{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}}
	require.True(t, geom.Valid(ok))
}

func TestIntersectOverlappingSquares(t *testing.T) {
	e := geom.NewPlanar()
	a := square(0, 0, 10)
	b := square(5, 0, 10)
	inter := e.Intersect(a, b)
	// true overlap is a 5x10 rectangle = 50
	assert.InDelta(t, 50.0, e.Area(inter), 6.0)
}

func TestIntersectDisjointSquares(t *testing.T) {
	e := geom.NewPlanar()
	a := square(0, 0, 10)
	b := square(100, 100, 10)
	inter := e.Intersect(a, b)
	assert.Equal(t, 0.0, e.Area(inter))
}

func TestKinksSimpleSquareIsZero(t *testing.T) {
	e := geom.NewPlanar()
	assert.Equal(t, 0, e.Kinks(square(0, 0, 10)))
}

func TestKinksBowtieIsNonzero(t *testing.T) {
	e := geom.NewPlanar()
	bowtie := geom.Polygon{Rings: []geom.Ring{{
		{0, 0}, {10, 10}, {10, 0}, {0, 10}, {0, 0},
	}}}
	assert.Greater(t, e.Kinks(bowtie), 0)
}

func TestCentroidOfSquare(t *testing.T) {
	e := geom.NewPlanar()
	c := e.Centroid(square(0, 0, 10))
	assert.InDelta(t, 5.0, c[0], 1e-6)
	assert.InDelta(t, 5.0, c[1], 1e-6)
}

func TestSnapEqual(t *testing.T) {
	assert.True(t, geom.SnapEqual(geom.Point{0, 0}, geom.Point{0.5, 0}, 1.0))
	assert.False(t, geom.SnapEqual(geom.Point{0, 0}, geom.Point{2, 0}, 1.0))
}
