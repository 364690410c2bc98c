// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package geometry_test

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annostore.io/annostore/pkg/annoterr"
	"annostore.io/annostore/pkg/geometry"
)

var bowtie = orb.Polygon{{{0, 0}, {10, 10}, {10, 0}, {0, 10}, {0, 0}}}

func TestIsValid(t *testing.T) {
	var repairer geometry.Planar

	for _, tt := range []struct {
		name     string
		geometry orb.Geometry
		valid    bool
	}{
		{"point", orb.Point{1, 2}, true},
		{"nan point", orb.Point{math.NaN(), 2}, false},
		{"line", orb.LineString{{0, 0}, {1, 1}}, true},
		{"degenerate line", orb.LineString{{1, 1}, {1, 1}}, false},
		{"square", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}, true},
		{"open ring", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}, false},
		{"bowtie", bowtie, false},
		{"flat", orb.Polygon{{{0, 0}, {1, 0}, {2, 0}, {0, 0}}}, false},
		{"hole inside", orb.Polygon{
			{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
			{{2, 2}, {2, 4}, {4, 4}, {4, 2}, {2, 2}},
		}, true},
		{"hole outside", orb.Polygon{
			{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
			{{20, 20}, {20, 24}, {24, 24}, {24, 20}, {20, 20}},
		}, false},
		{"multilinestring", orb.MultiLineString{{{0, 0}, {1, 1}}}, false},
	} {
		assert.Equal(t, tt.valid, repairer.IsValid(tt.geometry), tt.name)
	}
}

func TestRepairBowtie(t *testing.T) {
	repaired, err := geometry.Repair(geometry.Planar{}, bowtie)
	require.NoError(t, err)

	multi, ok := repaired.(orb.MultiPolygon)
	require.True(t, ok, "%T", repaired)
	assert.Len(t, multi, 2)
	area := 0.0
	for _, polygon := range multi {
		area += math.Abs(planar.Area(polygon[0]))
	}
	assert.InDelta(t, 50, area, 1e-9)
}

func TestRepairUnclosedRing(t *testing.T) {
	open := orb.Polygon{{{0, 0}, {1, 0}, {1, 0}, {1, 1}, {0, 1}}}
	repaired, err := geometry.Repair(geometry.Planar{}, open)
	require.NoError(t, err)
	assert.True(t, orb.Equal(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}, repaired))
}

func TestRepairDropsEnclosingHole(t *testing.T) {
	shell := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	enclosing := orb.Ring{{-5, -5}, {-5, 15}, {15, 15}, {15, -5}, {-5, -5}}
	repaired, err := geometry.Repair(geometry.Planar{}, orb.Polygon{shell, enclosing})
	require.NoError(t, err)

	polygon, ok := repaired.(orb.Polygon)
	require.True(t, ok, "%T", repaired)
	require.Len(t, polygon, 1)
	assert.InDelta(t, 100, math.Abs(planar.Area(polygon[0])), 1e-9)
	assert.True(t, geometry.Planar{}.IsValid(repaired))
}

func TestRepairValidIsUnchanged(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	repaired, err := geometry.Repair(geometry.Planar{}, square)
	require.NoError(t, err)
	assert.True(t, orb.Equal(square, repaired))
}

func TestRepairFails(t *testing.T) {
	_, err := geometry.Repair(geometry.Planar{}, orb.Polygon{{{0, 0}, {1, 0}, {2, 0}, {0, 0}}})
	require.Error(t, err)
	assert.True(t, annoterr.ErrGeometry.Has(err))

	_, err = geometry.Planar{}.Buffer(orb.Point{0, 0}, 1, 8)
	assert.True(t, annoterr.ErrGeometry.Has(err))

	_, err = geometry.Repair(geometry.Planar{}, nil)
	assert.True(t, annoterr.ErrType.Has(err))
}

type countingRepairer struct {
	geometry.Planar
	buffers int
}

func (r *countingRepairer) Buffer(g orb.Geometry, distance float64, segments int) (orb.Geometry, error) {
	r.buffers++
	return g, nil
}

func TestRepairAttempts(t *testing.T) {
	repairer := &countingRepairer{}
	_, err := geometry.Repair(repairer, bowtie)
	assert.True(t, annoterr.ErrGeometry.Has(err))
	assert.Equal(t, geometry.RepairAttempts, repairer.buffers)
}
