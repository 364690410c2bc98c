// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package roi_test

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annostore.io/annostore/pkg/annoterr"
	"annostore.io/annostore/pkg/roi"
)

func square(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

func TestRoundTrip(t *testing.T) {
	withHole := orb.Polygon{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{2, 2}, {2, 4}, {4, 4}, {4, 2}, {2, 2}},
	}

	for _, tt := range []struct {
		name     string
		geometry orb.Geometry
		typ      roi.Type
	}{
		{"Point", orb.Point{1, 2}, roi.TypePoints},
		{"MultiPoint", orb.MultiPoint{{1, 2}}, roi.TypePoints},
		{"Line", orb.LineString{{1, 1}, {2, 2}}, roi.TypeLine},
		{"Polyline", orb.LineString{{1, 1}, {2, 2}, {3, 1}}, roi.TypePolyline},
		{"Polygon", square(10, 20, 100, 200), roi.TypePolygon},
		{"PolygonWithHole", withHole, roi.TypeGeometry},
		{"MultiPolygon", orb.MultiPolygon{square(10, 20, 100, 200), square(110, 20, 200, 200)}, roi.TypeGeometry},
		{"SingleMultiPolygon", orb.MultiPolygon{square(0, 0, 1, 1)}, roi.TypeGeometry},
	} {
		t.Run(tt.name, func(t *testing.T) {
			r, err := roi.FromGeometry(tt.geometry, roi.DefaultPlane)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, r.Type())

			back, err := roi.ToGeometry(r)
			require.NoError(t, err)
			assert.True(t, orb.Equal(tt.geometry, back), "%v != %v", tt.geometry, back)
		})
	}
}

func TestPlaneIsNotPreserved(t *testing.T) {
	plane := roi.ImagePlane{C: -1, Z: 3, T: 1}
	r, err := roi.FromGeometry(orb.Point{1, 2}, plane)
	require.NoError(t, err)
	assert.Equal(t, plane, r.Plane())

	data, err := roi.Encode(r)
	require.NoError(t, err)

	decoded, err := roi.Decode(data, roi.DefaultPlane)
	require.NoError(t, err)
	assert.Equal(t, roi.DefaultPlane, decoded.Plane())
	assert.Equal(t, r.Points(), decoded.Points())

	assert.Equal(t, plane, decoded.WithPlane(plane).Plane())
}

func TestUnsupported(t *testing.T) {
	_, err := roi.FromGeometry(nil, roi.DefaultPlane)
	assert.True(t, annoterr.ErrType.Has(err))

	_, err = roi.FromGeometry(orb.MultiLineString{{{0, 0}, {1, 1}}}, roi.DefaultPlane)
	assert.True(t, annoterr.ErrType.Has(err))

	_, err = roi.Decode([]byte{1, 2, 3}, roi.DefaultPlane)
	assert.True(t, annoterr.ErrParse.Has(err))
}

func TestMeasures(t *testing.T) {
	r, err := roi.FromGeometry(square(10, 20, 100, 200), roi.DefaultPlane)
	require.NoError(t, err)
	assert.InDelta(t, 90*180, r.Area(), 1e-9)
	assert.Equal(t, roi.Rect{X: 10, Y: 20, Width: 90, Height: 180}, r.Bounds())

	rect := roi.Rectangle(0, 0, 4, 2, roi.DefaultPlane)
	assert.Equal(t, roi.TypeRectangle, rect.Type())
	assert.InDelta(t, 8, rect.Area(), 1e-9)
	geometry, err := roi.ToGeometry(rect)
	require.NoError(t, err)
	assert.True(t, orb.Equal(square(0, 0, 4, 2), geometry))

	line, err := roi.FromGeometry(orb.LineString{{0, 0}, {3, 4}}, roi.DefaultPlane)
	require.NoError(t, err)
	assert.Zero(t, line.Area())
	assert.Equal(t, "Line", line.Type().String())
}
