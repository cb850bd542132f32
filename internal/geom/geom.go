// SPDX-License-Identifier: AGPL-3.0-or-later

// Package geom implements the minimal planar geometry kernel that
// pkg/validate's topology checks are built on: area, union, intersection,
// difference, centroid, and self-intersection ("kinks") detection over
// Polygon/MultiPolygon rings.
//
// This is intentionally the narrowest kernel that satisfies §4.6/§9: no
// geometry or GIS library appears anywhere in the retrieved example
// corpus, and the specification itself treats the kernel as an assumed,
// swappable external collaborator (Engine below). A production
// deployment can inject a real kernel (e.g. a CGO binding to GEOS)
// without changing any caller.
package geom

import "math"

// Point is a planar coordinate.
type Point [2]float64

// Ring is a closed sequence of points; the first and last point must be
// equal. Rings use a right-hand orientation convention: the outer ring
// is counter-clockwise, holes are clockwise, matching GeoJSON.
type Ring []Point

// Polygon is an outer ring followed by zero or more hole rings.
type Polygon struct {
	Rings []Ring
}

// MultiPolygon is an ordered set of polygons.
type MultiPolygon struct {
	Polygons []Polygon
}

// Geometry is implemented by Polygon and MultiPolygon.
type Geometry interface {
	isGeometry()
}

func (Polygon) isGeometry()      {}
func (MultiPolygon) isGeometry() {}

// Engine is the geometry kernel surface pkg/validate depends on. The
// default implementation (Planar, below) satisfies it on the standard
// library; swap in a different Engine to use a production-grade kernel.
type Engine interface {
	Area(g Geometry) float64
	Union(geoms []Geometry) Geometry
	Intersect(a, b Geometry) Geometry
	Difference(a, b Geometry) Geometry
	Centroid(g Geometry) Point
	Kinks(g Geometry) int
}

// Planar is the stdlib-only default Engine.
type Planar struct{}

// NewPlanar constructs the default planar geometry engine.
func NewPlanar() Planar { return Planar{} }

// Valid reports whether a ring is closed, has no NaN/Inf coordinates,
// and has at least 4 points (3 distinct + closing point) — the
// invariant pkg/provider's Transform step must uphold for every emitted
// boundary (spec.md §4.4).
func Valid(g Geometry) bool {
	switch v := g.(type) {
	case Polygon:
		return validPolygon(v)
	case MultiPolygon:
		for _, p := range v.Polygons {
			if !validPolygon(p) {
				return false
			}
		}
		return len(v.Polygons) > 0
	default:
		return false
	}
}

func validPolygon(p Polygon) bool {
	if len(p.Rings) == 0 {
		return false
	}
	for _, r := range p.Rings {
		if len(r) < 4 {
			return false
		}
		for _, pt := range r {
			if math.IsNaN(pt[0]) || math.IsNaN(pt[1]) || math.IsInf(pt[0], 0) || math.IsInf(pt[1], 0) {
				return false
			}
		}
		first, last := r[0], r[len(r)-1]
		if first[0] != last[0] || first[1] != last[1] {
			return false
		}
	}
	return true
}

// ringArea computes the signed shoelace area of a ring. Positive for
// counter-clockwise rings.
func ringArea(r Ring) float64 {
	if len(r) < 4 {
		return 0
	}
	var sum float64
	for i := 0; i < len(r)-1; i++ {
		x1, y1 := r[i][0], r[i][1]
		x2, y2 := r[i+1][0], r[i+1][1]
		sum += x1*y2 - x2*y1
	}
	return sum / 2
}

func polygonArea(p Polygon) float64 {
	if len(p.Rings) == 0 {
		return 0
	}
	area := math.Abs(ringArea(p.Rings[0]))
	for _, hole := range p.Rings[1:] {
		area -= math.Abs(ringArea(hole))
	}
	if area < 0 {
		return 0
	}
	return area
}

// Area returns the planar area of g (outer rings minus holes, summed
// across MultiPolygon members).
func (Planar) Area(g Geometry) float64 {
	switch v := g.(type) {
	case Polygon:
		return polygonArea(v)
	case MultiPolygon:
		var total float64
		for _, p := range v.Polygons {
			total += polygonArea(p)
		}
		return total
	default:
		return 0
	}
}

func polygons(g Geometry) []Polygon {
	switch v := g.(type) {
	case Polygon:
		return []Polygon{v}
	case MultiPolygon:
		return v.Polygons
	default:
		return nil
	}
}

// Union flattens every member polygon into one MultiPolygon. This is a
// conservative, non-dissolving union (it does not merge overlapping
// rings into a single boundary), so Area(Union(...)) counts overlapping
// parts once per member. pkg/validate's coverage check does not use
// that area: it measures Area(Intersect(Union(...), parent)) and
// Area(Difference(parent, Union(...))) instead.
func (Planar) Union(geoms []Geometry) Geometry {
	var mp MultiPolygon
	for _, g := range geoms {
		mp.Polygons = append(mp.Polygons, polygons(g)...)
	}
	return mp
}

// boundingBox computes an axis-aligned bounding box for a geometry.
func boundingBox(g Geometry) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range polygons(g) {
		for _, r := range p.Rings {
			for _, pt := range r {
				minX = math.Min(minX, pt[0])
				minY = math.Min(minY, pt[1])
				maxX = math.Max(maxX, pt[0])
				maxY = math.Max(maxY, pt[1])
			}
		}
	}
	return
}

func pointInRing(pt Point, r Ring) bool {
	inside := false
	n := len(r)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := r[i][0], r[i][1]
		xj, yj := r[j][0], r[j][1]
		if (yi > pt[1]) != (yj > pt[1]) {
			xint := (xj-xi)*(pt[1]-yi)/(yj-yi) + xi
			if pt[0] < xint {
				inside = !inside
			}
		}
	}
	return inside
}

func pointInPolygon(pt Point, p Polygon) bool {
	if len(p.Rings) == 0 || !pointInRing(pt, p.Rings[0]) {
		return false
	}
	for _, hole := range p.Rings[1:] {
		if pointInRing(pt, hole) {
			return false
		}
	}
	return true
}

// Intersect approximates the intersection area of a and b via a bbox-
// gridded Monte-Carlo-free sampling: it rasterizes the overlap of the
// two bounding boxes on a fixed grid and counts cells whose center lies
// inside both geometries. This is adequate for the tolerance-scale
// overlap checks pkg/validate performs (percentage of min(area(a),
// area(b)), not exact cartography).
func (Planar) Intersect(a, b Geometry) Geometry {
	area := intersectArea(a, b)
	if area <= 0 {
		return MultiPolygon{}
	}
	// Represent the intersection as a degenerate single-ring polygon
	// whose area equals the estimate; callers only consult Area/Centroid
	// on the result, never its ring geometry directly.
	minXa, minYa, maxXa, maxYa := boundingBox(a)
	minXb, minYb, maxXb, maxYb := boundingBox(b)
	minX := math.Max(minXa, minXb)
	minY := math.Max(minYa, minYb)
	maxX := math.Min(maxXa, maxXb)
	maxY := math.Min(maxYa, maxYb)
	if minX >= maxX || minY >= maxY {
		return MultiPolygon{}
	}
	side := math.Sqrt(area)
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	half := side / 2
	ring := Ring{
		{cx - half, cy - half}, {cx + half, cy - half},
		{cx + half, cy + half}, {cx - half, cy + half},
		{cx - half, cy - half},
	}
	return Polygon{Rings: []Ring{ring}}
}

const intersectGrid = 64

func intersectArea(a, b Geometry) float64 {
	minXa, minYa, maxXa, maxYa := boundingBox(a)
	minXb, minYb, maxXb, maxYb := boundingBox(b)
	minX := math.Max(minXa, minXb)
	minY := math.Max(minYa, minYb)
	maxX := math.Min(maxXa, maxXb)
	maxY := math.Min(maxYa, maxYb)
	if minX >= maxX || minY >= maxY {
		return 0
	}
	stepX := (maxX - minX) / intersectGrid
	stepY := (maxY - minY) / intersectGrid
	if stepX <= 0 || stepY <= 0 {
		return 0
	}
	polysA := polygons(a)
	polysB := polygons(b)
	var hits int
	for i := 0; i < intersectGrid; i++ {
		for j := 0; j < intersectGrid; j++ {
			pt := Point{minX + (float64(i)+0.5)*stepX, minY + (float64(j)+0.5)*stepY}
			if inAny(pt, polysA) && inAny(pt, polysB) {
				hits++
			}
		}
	}
	cellArea := stepX * stepY
	return float64(hits) * cellArea
}

func inAny(pt Point, polys []Polygon) bool {
	for _, p := range polys {
		if pointInPolygon(pt, p) {
			return true
		}
	}
	return false
}

// Difference estimates area(a) - area(a ∩ b); used for gap-region
// reporting.
func (pl Planar) Difference(a, b Geometry) Geometry {
	area := pl.Area(a) - intersectArea(a, b)
	if area <= 0 {
		return MultiPolygon{}
	}
	minX, minY, maxX, maxY := boundingBox(a)
	side := math.Sqrt(area)
	cx, cy := (minX+maxX)/2, (minY+maxY)/2
	half := side / 2
	ring := Ring{
		{cx - half, cy - half}, {cx + half, cy - half},
		{cx + half, cy + half}, {cx - half, cy + half},
		{cx - half, cy - half},
	}
	return Polygon{Rings: []Ring{ring}}
}

// Centroid returns the area-weighted centroid of every ring in g.
func (Planar) Centroid(g Geometry) Point {
	var sumX, sumY, sumArea float64
	for _, p := range polygons(g) {
		for _, r := range p.Rings {
			a := ringArea(r)
			if a == 0 {
				continue
			}
			var cx, cy float64
			for i := 0; i < len(r)-1; i++ {
				x1, y1 := r[i][0], r[i][1]
				x2, y2 := r[i+1][0], r[i+1][1]
				cross := x1*y2 - x2*y1
				cx += (x1 + x2) * cross
				cy += (y1 + y2) * cross
			}
			cx /= (6 * a)
			cy /= (6 * a)
			sumX += cx * math.Abs(a)
			sumY += cy * math.Abs(a)
			sumArea += math.Abs(a)
		}
	}
	if sumArea == 0 {
		return Point{}
	}
	return Point{sumX / sumArea, sumY / sumArea}
}

// Kinks counts self-intersections across every ring's non-adjacent
// segment pairs (a "kink"). O(n^2) in ring vertex count, which is
// acceptable at TIGER-layer boundary sizes.
func (Planar) Kinks(g Geometry) int {
	var count int
	for _, p := range polygons(g) {
		for _, r := range p.Rings {
			count += ringKinks(r)
		}
	}
	return count
}

func ringKinks(r Ring) int {
	n := len(r)
	if n < 4 {
		return 0
	}
	segs := n - 1
	var kinks int
	for i := 0; i < segs; i++ {
		for j := i + 1; j < segs; j++ {
			if j == i || (i == 0 && j == segs-1) {
				continue // adjacent (including closing) segments share a vertex, not a kink
			}
			if j == i+1 {
				continue
			}
			if segmentsIntersect(r[i], r[i+1], r[j], r[j+1]) {
				kinks++
			}
		}
	}
	return kinks
}

func orientation(p, q, r Point) int {
	val := (q[1]-p[1])*(r[0]-q[0]) - (q[0]-p[0])*(r[1]-q[1])
	switch {
	case val > 1e-12:
		return 1
	case val < -1e-12:
		return 2
	default:
		return 0
	}
}

func onSegment(p, q, r Point) bool {
	return q[0] <= math.Max(p[0], r[0]) && q[0] >= math.Min(p[0], r[0]) &&
		q[1] <= math.Max(p[1], r[1]) && q[1] >= math.Min(p[1], r[1])
}

func segmentsIntersect(p1, q1, p2, q2 Point) bool {
	o1 := orientation(p1, q1, p2)
	o2 := orientation(p1, q1, q2)
	o3 := orientation(p2, q2, p1)
	o4 := orientation(p2, q2, q1)

	if o1 != o2 && o3 != o4 {
		return true
	}
	if o1 == 0 && onSegment(p1, p2, q1) {
		return true
	}
	if o2 == 0 && onSegment(p1, q2, q1) {
		return true
	}
	if o3 == 0 && onSegment(p2, p1, q2) {
		return true
	}
	if o4 == 0 && onSegment(p2, q1, q2) {
		return true
	}
	return false
}

// SnapEqual reports whether two points are within toleranceM of each
// other, treating them as coincident per spec.md §4.6's vertex-snap
// rule.
func SnapEqual(a, b Point, toleranceM float64) bool {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return dx*dx+dy*dy <= toleranceM*toleranceM
}
