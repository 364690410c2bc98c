// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package roi implements the region of interest model attached to objects
// and the conversion between it and planar geometries.
//
// Conversions always go through well known binary (WKB). The image plane is
// not part of WKB, so converting an ROI to a geometry loses it; it has to be
// supplied again when converting back.
package roi

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/planar"

	"annostore.io/annostore/pkg/annoterr"
)

// Type is the shape kind of an ROI.
type Type int

const (
	// TypePoints is a set of one or more points.
	TypePoints Type = iota
	// TypeLine is a straight line between two points.
	TypeLine
	// TypePolyline is an open path of more than two points.
	TypePolyline
	// TypePolygon is a single ring without holes.
	TypePolygon
	// TypeRectangle is an axis aligned rectangle.
	TypeRectangle
	// TypeGeometry is anything else with an area: polygons with holes and multi polygons.
	TypeGeometry
)

// String implements fmt.Stringer.
func (typ Type) String() string {
	switch typ {
	case TypePoints:
		return "Points"
	case TypeLine:
		return "Line"
	case TypePolyline:
		return "Polyline"
	case TypePolygon:
		return "Polygon"
	case TypeRectangle:
		return "Rectangle"
	case TypeGeometry:
		return "Geometry"
	default:
		return "Unknown"
	}
}

// ImagePlane locates an ROI in a multi dimensional image.
type ImagePlane struct {
	C int
	Z int
	T int
}

// DefaultPlane is the plane used when none is given: all channels, first
// z-slice, first time point.
var DefaultPlane = ImagePlane{C: -1}

// Point is a vertex in image pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// Rect is an axis aligned bounding box.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// ROI is an immutable region of interest.
type ROI struct {
	typ   Type
	plane ImagePlane

	// points holds the vertices of points, lines and single rings.
	points []Point
	// polygons holds rings of TypeGeometry.
	polygons [][][]Point
	// multi records whether the source was a multi geometry.
	multi bool
	rect  Rect
}

// Rectangle returns a rectangle ROI.
func Rectangle(x, y, width, height float64, plane ImagePlane) *ROI {
	return &ROI{
		typ:   TypeRectangle,
		plane: plane,
		rect:  Rect{X: x, Y: y, Width: width, Height: height},
	}
}

// FromGeometry converts a planar geometry to an ROI on the given plane.
func FromGeometry(geometry orb.Geometry, plane ImagePlane) (*ROI, error) {
	if geometry == nil {
		return nil, annoterr.ErrType.New("nil geometry")
	}
	data, err := wkb.Marshal(geometry)
	if err != nil {
		return nil, annoterr.ErrType.New("unsupported geometry %T: %v", geometry, err)
	}
	return Decode(data, plane)
}

// ToGeometry converts an ROI to a planar geometry. The plane is dropped.
func ToGeometry(r *ROI) (orb.Geometry, error) {
	data, err := Encode(r)
	if err != nil {
		return nil, err
	}
	geometry, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, annoterr.ErrParse.Wrap(err)
	}
	return geometry, nil
}

// Decode reads an ROI from WKB.
func Decode(data []byte, plane ImagePlane) (*ROI, error) {
	geometry, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, annoterr.ErrParse.Wrap(err)
	}

	r := &ROI{plane: plane}
	switch g := geometry.(type) {
	case orb.Point:
		r.typ = TypePoints
		r.points = []Point{fromOrb(g)}
	case orb.MultiPoint:
		r.typ = TypePoints
		r.points = fromOrbPoints(g)
		r.multi = true
	case orb.LineString:
		if len(g) < 2 {
			return nil, annoterr.ErrValidation.New("line needs at least two points, got %d", len(g))
		}
		r.typ = TypePolyline
		if len(g) == 2 {
			r.typ = TypeLine
		}
		r.points = fromOrbPoints(g)
	case orb.Polygon:
		if len(g) == 1 {
			r.typ = TypePolygon
			r.points = fromOrbPoints(g[0])
			break
		}
		r.typ = TypeGeometry
		r.polygons = [][][]Point{fromOrbPolygon(g)}
	case orb.MultiPolygon:
		r.typ = TypeGeometry
		r.multi = true
		for _, polygon := range g {
			r.polygons = append(r.polygons, fromOrbPolygon(polygon))
		}
	default:
		return nil, annoterr.ErrType.New("unsupported geometry type %q", geometry.GeoJSONType())
	}
	return r, nil
}

// Encode writes an ROI as WKB.
func Encode(r *ROI) ([]byte, error) {
	if r == nil {
		return nil, annoterr.ErrType.New("nil roi")
	}
	data, err := wkb.Marshal(r.geometry())
	if err != nil {
		return nil, annoterr.ErrType.Wrap(err)
	}
	return data, nil
}

// Type returns the shape kind.
func (r *ROI) Type() Type { return r.typ }

// Plane returns the image plane.
func (r *ROI) Plane() ImagePlane { return r.plane }

// WithPlane returns a copy of the ROI on another plane.
func (r *ROI) WithPlane(plane ImagePlane) *ROI {
	c := *r
	c.plane = plane
	return &c
}

// Points returns the vertices of all rings and paths.
func (r *ROI) Points() []Point {
	switch r.typ {
	case TypeRectangle:
		return ringPoints(r.rect)
	case TypeGeometry:
		var all []Point
		for _, polygon := range r.polygons {
			for _, ring := range polygon {
				all = append(all, ring...)
			}
		}
		return all
	default:
		return append([]Point(nil), r.points...)
	}
}

// Bounds returns the bounding box.
func (r *ROI) Bounds() Rect {
	if r.typ == TypeRectangle {
		return r.rect
	}
	b := r.geometry().Bound()
	return Rect{X: b.Min[0], Y: b.Min[1], Width: b.Max[0] - b.Min[0], Height: b.Max[1] - b.Min[1]}
}

// Area returns the enclosed area; zero for points and lines.
func (r *ROI) Area() float64 {
	switch r.typ {
	case TypePoints, TypeLine, TypePolyline:
		return 0
	}
	switch g := r.geometry().(type) {
	case orb.Polygon:
		return polygonArea(g)
	case orb.MultiPolygon:
		area := 0.0
		for _, polygon := range g {
			area += polygonArea(polygon)
		}
		return area
	}
	return 0
}

// polygonArea is the shell area minus the hole areas, independent of ring orientation.
func polygonArea(polygon orb.Polygon) float64 {
	area := 0.0
	for i, ring := range polygon {
		a := math.Abs(planar.Area(ring))
		if i == 0 {
			area += a
		} else {
			area -= a
		}
	}
	return area
}

func (r *ROI) geometry() orb.Geometry {
	switch r.typ {
	case TypePoints:
		if !r.multi && len(r.points) == 1 {
			return toOrb(r.points[0])
		}
		return orb.MultiPoint(toOrbPoints(r.points))
	case TypeLine, TypePolyline:
		return orb.LineString(toOrbPoints(r.points))
	case TypePolygon:
		return orb.Polygon{orb.Ring(toOrbPoints(r.points))}
	case TypeRectangle:
		return orb.Polygon{orb.Ring(toOrbPoints(ringPoints(r.rect)))}
	default:
		if !r.multi && len(r.polygons) == 1 {
			return toOrbPolygon(r.polygons[0])
		}
		multi := make(orb.MultiPolygon, 0, len(r.polygons))
		for _, polygon := range r.polygons {
			multi = append(multi, toOrbPolygon(polygon))
		}
		return multi
	}
}

func ringPoints(rect Rect) []Point {
	x0, y0 := rect.X, rect.Y
	x1, y1 := rect.X+rect.Width, rect.Y+rect.Height
	return []Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}
}

func fromOrb(p orb.Point) Point { return Point{X: p[0], Y: p[1]} }

func toOrb(p Point) orb.Point { return orb.Point{p.X, p.Y} }

func fromOrbPoints(points []orb.Point) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = fromOrb(p)
	}
	return out
}

func toOrbPoints(points []Point) []orb.Point {
	out := make([]orb.Point, len(points))
	for i, p := range points {
		out[i] = toOrb(p)
	}
	return out
}

func fromOrbPolygon(polygon orb.Polygon) [][]Point {
	rings := make([][]Point, len(polygon))
	for i, ring := range polygon {
		rings[i] = fromOrbPoints(ring)
	}
	return rings
}

func toOrbPolygon(rings [][]Point) orb.Polygon {
	polygon := make(orb.Polygon, len(rings))
	for i, ring := range rings {
		polygon[i] = orb.Ring(toOrbPoints(ring))
	}
	return polygon
}
