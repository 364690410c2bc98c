// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package geometry contains the validity and repair primitives used when
// importing geometries from interchange records.
package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"annostore.io/annostore/pkg/annoterr"
)

// RepairAttempts is how often Repair buffers a geometry by zero before giving up.
const RepairAttempts = 2

// Repairer checks and repairs planar geometries.
type Repairer interface {
	// IsValid reports whether the geometry is topologically valid.
	IsValid(orb.Geometry) bool
	// Buffer returns the geometry grown by distance, approximating curves
	// with segments per quadrant.
	Buffer(geometry orb.Geometry, distance float64, segments int) (orb.Geometry, error)
}

// Repair returns geometry unchanged when it is valid, otherwise buffers it by
// zero up to RepairAttempts times and fails if it is still invalid.
func Repair(repairer Repairer, geometry orb.Geometry) (orb.Geometry, error) {
	if geometry == nil {
		return nil, annoterr.ErrType.New("nil geometry")
	}
	if repairer.IsValid(geometry) {
		return geometry, nil
	}
	for attempt := 0; attempt < RepairAttempts; attempt++ {
		repaired, err := repairer.Buffer(geometry, 0, 1)
		if err != nil {
			return nil, annoterr.ErrGeometry.Wrap(err)
		}
		geometry = repaired
		if repairer.IsValid(geometry) {
			return geometry, nil
		}
	}
	return nil, annoterr.ErrGeometry.New("invalid %s geometry", geometry.GeoJSONType())
}

// Planar is a pure Go Repairer for the geometry kinds the ROI model supports.
//
// Buffer only supports a zero distance: it removes repeated vertices,
// closes rings, splits self intersecting rings into simple ones and drops
// rings without area.
//
// Holes are kept only when their first vertex lies inside a repaired shell.
// A hole that encloses its shell, or lies outside it, is dropped and the bare
// shell is returned. Overlay based repairs such as a GEOS zero buffer resolve
// these rings differently, so results can differ from them for that input.
type Planar struct{}

var _ Repairer = Planar{}

// IsValid implements Repairer.
func (Planar) IsValid(geometry orb.Geometry) bool {
	switch g := geometry.(type) {
	case orb.Point:
		return finite(g)
	case orb.MultiPoint:
		for _, p := range g {
			if !finite(p) {
				return false
			}
		}
		return true
	case orb.LineString:
		if len(g) < 2 {
			return false
		}
		for _, p := range g {
			if !finite(p) {
				return false
			}
		}
		return planar.Length(g) > 0
	case orb.Ring:
		return validRing(g)
	case orb.Polygon:
		return validPolygon(g)
	case orb.MultiPolygon:
		if len(g) == 0 {
			return false
		}
		for _, polygon := range g {
			if !validPolygon(polygon) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Buffer implements Repairer.
func (Planar) Buffer(geometry orb.Geometry, distance float64, segments int) (orb.Geometry, error) {
	if distance != 0 {
		return nil, annoterr.ErrGeometry.New("planar buffer only supports a zero distance, got %v", distance)
	}

	switch g := geometry.(type) {
	case orb.Point, orb.MultiPoint:
		return g, nil
	case orb.LineString:
		return orb.LineString(dedupe(g)), nil
	case orb.Polygon:
		return collect(fixPolygon(g)), nil
	case orb.MultiPolygon:
		var polygons orb.MultiPolygon
		for _, polygon := range g {
			polygons = append(polygons, fixPolygon(polygon)...)
		}
		return collect(polygons), nil
	default:
		return nil, annoterr.ErrType.New("cannot buffer %s geometry", geometry.GeoJSONType())
	}
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}

func validPolygon(polygon orb.Polygon) bool {
	if len(polygon) == 0 {
		return false
	}
	for _, ring := range polygon {
		if !validRing(ring) {
			return false
		}
	}
	for _, hole := range polygon[1:] {
		for _, p := range hole {
			if !planar.RingContains(polygon[0], p) && !onBoundary(polygon[0], p) {
				return false
			}
		}
	}
	return true
}

func validRing(ring orb.Ring) bool {
	if len(ring) < 4 || !ring.Closed() {
		return false
	}
	for _, p := range ring {
		if !finite(p) {
			return false
		}
	}
	if math.Abs(planar.Area(ring)) == 0 {
		return false
	}
	return !selfIntersects(ring)
}

// selfIntersects checks every pair of non adjacent edges.
func selfIntersects(ring orb.Ring) bool {
	n := len(ring) - 1
	for i := 0; i < n; i++ {
		for k := i + 1; k < n; k++ {
			if k == i+1 || (i == 0 && k == n-1) {
				// adjacent edges share a vertex; they are only invalid when they overlap
				if collinearOverlap(ring[i], ring[i+1], ring[k], ring[k+1]) {
					return true
				}
				continue
			}
			if _, ok := intersection(ring[i], ring[i+1], ring[k], ring[k+1]); ok {
				return true
			}
		}
	}
	return false
}

func onBoundary(ring orb.Ring, p orb.Point) bool {
	for i := 0; i+1 < len(ring); i++ {
		if cross(ring[i], ring[i+1], p) == 0 && between(ring[i], ring[i+1], p) {
			return true
		}
	}
	return false
}

// fixPolygon repairs the shell and drops holes that can not be repaired.
func fixPolygon(polygon orb.Polygon) []orb.Polygon {
	if len(polygon) == 0 {
		return nil
	}
	shells := fixRing(polygon[0])
	if len(shells) == 0 {
		return nil
	}

	var holes []orb.Ring
	for _, hole := range polygon[1:] {
		holes = append(holes, fixRing(hole)...)
	}

	result := make([]orb.Polygon, 0, len(shells))
	for _, shell := range shells {
		p := orb.Polygon{shell}
		for _, hole := range holes {
			if planar.RingContains(shell, hole[0]) {
				p = append(p, hole)
			}
		}
		result = append(result, p)
	}
	return result
}

// fixRing closes the ring, removes repeated vertices and splits it at
// self intersections into simple rings with a non zero area.
func fixRing(ring orb.Ring) []orb.Ring {
	points := dedupe(ring)
	if len(points) > 0 && points[0] != points[len(points)-1] {
		points = append(points, points[0])
	}
	if len(points) < 4 {
		return nil
	}

	var result []orb.Ring
	pending := []orb.Ring{orb.Ring(points)}
	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		a, b, ok := splitOnce(current)
		if !ok {
			if len(current) >= 4 && math.Abs(planar.Area(current)) > 0 {
				result = append(result, current)
			}
			continue
		}
		pending = append(pending, a, b)
	}
	return result
}

// splitOnce splits a closed ring at its first proper self intersection.
func splitOnce(ring orb.Ring) (a, b orb.Ring, ok bool) {
	n := len(ring) - 1
	for i := 0; i < n; i++ {
		for k := i + 2; k < n; k++ {
			if i == 0 && k == n-1 {
				continue
			}
			x, hit := intersection(ring[i], ring[i+1], ring[k], ring[k+1])
			if !hit {
				continue
			}

			// a: x, ring[i+1..k], x
			a = append(orb.Ring{x}, ring[i+1:k+1]...)
			a = orb.Ring(dedupe(append(a, x)))
			// b: ring[0..i], x, ring[k+1..n]
			b = append(orb.Ring{}, ring[:i+1]...)
			b = append(b, x)
			b = append(b, ring[k+1:]...)
			b = orb.Ring(dedupe(b))
			return a, b, true
		}
	}
	return nil, nil, false
}

func dedupe(points []orb.Point) []orb.Point {
	out := make([]orb.Point, 0, len(points))
	for _, p := range points {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}

func collect(polygons []orb.Polygon) orb.Geometry {
	if len(polygons) == 1 {
		return polygons[0]
	}
	return orb.MultiPolygon(polygons)
}

func cross(a, b, p orb.Point) float64 {
	return (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
}

func between(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

func collinearOverlap(a, b, c, d orb.Point) bool {
	if cross(a, b, c) != 0 || cross(a, b, d) != 0 {
		return false
	}
	// the segments share exactly one endpoint; they overlap when the other
	// endpoint of either lies strictly inside the other segment
	inside := func(s0, s1, p orb.Point) bool {
		return p != s0 && p != s1 && between(s0, s1, p)
	}
	return inside(a, b, c) || inside(a, b, d) || inside(c, d, a) || inside(c, d, b)
}

// intersection returns the intersection point of segments ab and cd if they
// cross or touch.
func intersection(a, b, c, d orb.Point) (orb.Point, bool) {
	d1 := cross(c, d, a)
	d2 := cross(c, d, b)
	d3 := cross(a, b, c)
	d4 := cross(a, b, d)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		t := d1 / (d1 - d2)
		return orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}, true
	}

	switch {
	case d1 == 0 && between(c, d, a):
		return a, true
	case d2 == 0 && between(c, d, b):
		return b, true
	case d3 == 0 && between(a, b, c):
		return c, true
	case d4 == 0 && between(a, b, d):
		return d, true
	}
	return orb.Point{}, false
}
