// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package pathobject_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annostore.io/annostore/pkg/annoterr"
	"annostore.io/annostore/pkg/colors"
	"annostore.io/annostore/pkg/measurement"
	"annostore.io/annostore/pkg/pathclass"
	"annostore.io/annostore/pkg/pathobject"
	"annostore.io/annostore/pkg/roi"
)

func roundTrip(t *testing.T, feature *geojson.Feature) *geojson.Feature {
	t.Helper()
	data, err := json.Marshal(feature)
	require.NoError(t, err)
	decoded, err := geojson.UnmarshalFeature(data)
	require.NoError(t, err)
	return decoded
}

func TestFeatureRoundTrip(t *testing.T) {
	registry := pathclass.NewRegistry()
	tumor, err := registry.Create("Tumor", &colors.Color{Red: 200, Alpha: 255}, nil)
	require.NoError(t, err)
	positive, err := registry.Create("Positive", nil, tumor)
	require.NoError(t, err)

	r, err := roi.FromGeometry(square, roi.ImagePlane{C: -1, Z: 3, T: 1})
	require.NoError(t, err)
	object, err := pathobject.FromROI(pathobject.KindAnnotation, r, positive,
		[]measurement.Record{{Name: "a", Value: 1}, {Name: "unset", Value: math.NaN()}}, math.NaN())
	require.NoError(t, err)
	require.NoError(t, object.SetLocked(true))
	require.NoError(t, object.SetName("region"))
	require.NoError(t, object.SetDescription("notes"))

	feature, err := object.Feature(false)
	require.NoError(t, err)
	assert.Equal(t, object.ID().String(), feature.ID)
	assert.Equal(t, "annotation", feature.Properties[pathobject.PropObjectType])

	parsed, err := pathobject.FromFeature(roundTrip(t, feature), registry)
	require.NoError(t, err)

	assert.Equal(t, object.ID(), parsed.ID())
	assert.Equal(t, pathobject.KindAnnotation, parsed.Kind())
	assert.True(t, positive.Equal(parsed.PathClass()))
	assert.True(t, parsed.Locked())
	assert.Equal(t, "region", parsed.Name())
	assert.Equal(t, "notes", parsed.Description())
	assert.Equal(t, roi.ImagePlane{C: -1, Z: 3, T: 1}, parsed.ROI().Plane())
	assert.Equal(t, []string{"a", "unset"}, parsed.Measurements().Names())
	assert.True(t, math.IsNaN(parsed.Measurements().Get("unset")))

	geometry, err := parsed.Geometry()
	require.NoError(t, err)
	assert.True(t, orb.Equal(square, geometry))
}

func TestFeatureOmitsDefaults(t *testing.T) {
	object, err := pathobject.FromGeometry(pathobject.KindDetection, square, nil, nil, math.NaN())
	require.NoError(t, err)

	feature, err := object.Feature(false)
	require.NoError(t, err)
	assert.NotContains(t, feature.Properties, pathobject.PropIsLocked)
	assert.NotContains(t, feature.Properties, pathobject.PropMeasurements)
	assert.NotContains(t, feature.Properties, pathobject.PropClassification)
	assert.NotContains(t, feature.Properties, pathobject.PropPlane)

	legacy, err := object.Feature(true)
	require.NoError(t, err)
	assert.Equal(t, "PathDetectionObject", legacy.ID)
	assert.NotContains(t, legacy.Properties, pathobject.PropObjectType)
	assert.Equal(t, false, legacy.Properties[pathobject.PropIsLocked])
	assert.Equal(t, []measurement.Record{}, legacy.Properties[pathobject.PropMeasurements])
}

func TestFeatureParentID(t *testing.T) {
	parent, err := pathobject.FromGeometry(pathobject.KindAnnotation, square, nil, nil, math.NaN())
	require.NoError(t, err)
	child, err := pathobject.FromGeometry(pathobject.KindDetection, square, nil, nil, math.NaN())
	require.NoError(t, err)

	feature, err := child.Feature(false)
	require.NoError(t, err)
	assert.NotContains(t, feature.Properties, pathobject.PropParentID)

	child.Attach(nil, 0, parent)
	feature, err = child.Feature(false)
	require.NoError(t, err)
	assert.Equal(t, parent.ID().String(), feature.Properties[pathobject.PropParentID])
	id, ok := pathobject.ParentID(roundTrip(t, feature))
	assert.True(t, ok)
	assert.Equal(t, parent.ID(), id)

	legacy, err := child.Feature(true)
	require.NoError(t, err)
	assert.NotContains(t, legacy.Properties, pathobject.PropParentID)

	feature.Properties[pathobject.PropParentID] = "not-a-uuid"
	_, ok = pathobject.ParentID(feature)
	assert.False(t, ok)
}

func TestFeatureLegacyColor(t *testing.T) {
	registry := pathclass.NewRegistry()
	tumor, err := registry.Create("Tumor", &colors.Color{Red: 200, Alpha: 255}, nil)
	require.NoError(t, err)
	object, err := pathobject.FromGeometry(pathobject.KindAnnotation, square, tumor, nil, math.NaN())
	require.NoError(t, err)

	legacy, err := object.Feature(true)
	require.NoError(t, err)
	classification := legacy.Properties[pathobject.PropClassification].(map[string]interface{})
	assert.Equal(t, "Tumor", classification[pathobject.PropName])
	assert.Equal(t, int32(-3670016), classification[pathobject.PropColorRGB])

	current, err := object.Feature(false)
	require.NoError(t, err)
	classification = current.Properties[pathobject.PropClassification].(map[string]interface{})
	assert.Equal(t, [3]int{200, 0, 0}, classification[pathobject.PropColor])
}

func TestFromFeatureErrors(t *testing.T) {
	registry := pathclass.NewRegistry()

	_, err := pathobject.FromFeature(nil, registry)
	assert.True(t, annoterr.ErrType.Has(err))

	noGeometry := geojson.NewFeature(nil)
	noGeometry.Properties[pathobject.PropObjectType] = "annotation"
	_, err = pathobject.FromFeature(noGeometry, registry)
	assert.True(t, annoterr.ErrParse.Has(err))

	unknown := geojson.NewFeature(square)
	unknown.Properties[pathobject.PropObjectType] = "cell-ish"
	_, err = pathobject.FromFeature(unknown, registry)
	assert.True(t, annoterr.ErrParse.Has(err))

	lines := geojson.NewFeature(orb.MultiLineString{{{0, 0}, {1, 1}}})
	lines.Properties[pathobject.PropObjectType] = "annotation"
	_, err = pathobject.FromFeature(lines, registry)
	assert.True(t, annoterr.ErrParse.Has(err))

	badClass := geojson.NewFeature(square)
	badClass.Properties[pathobject.PropObjectType] = "annotation"
	badClass.Properties[pathobject.PropClassification] = map[string]interface{}{"name": "A::B"}
	_, err = pathobject.FromFeature(badClass, registry)
	assert.True(t, annoterr.ErrParse.Has(err))
	assert.Equal(t, "A::B", pathobject.ClassificationName(badClass))

	badMeasurement := geojson.NewFeature(square)
	badMeasurement.Properties[pathobject.PropObjectType] = "annotation"
	badMeasurement.Properties[pathobject.PropMeasurements] = []interface{}{map[string]interface{}{"value": 1.0}}
	_, err = pathobject.FromFeature(badMeasurement, registry)
	assert.True(t, annoterr.ErrParse.Has(err))
}

func TestFromFeatureClassColor(t *testing.T) {
	registry := pathclass.NewRegistry()

	feature := geojson.NewFeature(square)
	feature.Properties[pathobject.PropObjectType] = "annotation"
	feature.Properties[pathobject.PropClassification] = map[string]interface{}{
		"name":  "Immune cells",
		"color": []interface{}{160.0, 90.0, 160.0},
	}
	object, err := pathobject.FromFeature(feature, registry)
	require.NoError(t, err)
	assert.Equal(t, colors.RGB(160, 90, 160), object.PathClass().Color())

	// an explicit class color is not overwritten by later records
	feature.Properties[pathobject.PropClassification] = map[string]interface{}{
		"name":  "Immune cells",
		"color": []interface{}{1.0, 2.0, 3.0},
	}
	object, err = pathobject.FromFeature(feature, registry)
	require.NoError(t, err)
	assert.Equal(t, colors.RGB(160, 90, 160), object.PathClass().Color())
}
