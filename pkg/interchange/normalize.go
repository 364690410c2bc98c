// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package interchange normalizes GeoJSON records written by different
// generations of the annotation format into the current one.
package interchange

import (
	"sort"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"annostore.io/annostore/pkg/colors"
	"annostore.io/annostore/pkg/pathobject"
)

// Capabilities select which record generations are accepted.
type Capabilities struct {
	// HasObjectTypeField accepts the objectType spelling of object_type.
	HasObjectTypeField bool
	// RequiresLegacyIDInference infers the object type from a type name id.
	RequiresLegacyIDInference bool
	// MeasurementsAsMap accepts measurements written as {name: value}.
	MeasurementsAsMap bool
}

// AllCapabilities accepts every known generation.
var AllCapabilities = Capabilities{
	HasObjectTypeField:        true,
	RequiresLegacyIDInference: true,
	MeasurementsAsMap:         true,
}

// Pass is a single normalization step.
type Pass struct {
	Name    string
	Enabled func(Capabilities) bool
	Apply   func(log *zap.Logger, feature *geojson.Feature)
}

func always(Capabilities) bool { return true }

// Passes returns the normalization steps in the order they run.
func Passes() []Pass {
	return []Pass{
		{
			Name:    "object-type-spelling",
			Enabled: func(caps Capabilities) bool { return caps.HasObjectTypeField },
			Apply:   objectTypeSpelling,
		},
		{
			Name:    "legacy-id",
			Enabled: func(caps Capabilities) bool { return caps.RequiresLegacyIDInference },
			Apply:   legacyID,
		},
		{
			Name:    "object-type-fallback",
			Enabled: always,
			Apply:   objectTypeFallback,
		},
		{
			Name:    "color-encoding",
			Enabled: always,
			Apply:   colorEncoding,
		},
		{
			Name:    "measurements-map",
			Enabled: func(caps Capabilities) bool { return caps.MeasurementsAsMap },
			Apply:   measurementsMap,
		},
	}
}

// Normalizer runs the enabled passes over records.
type Normalizer struct {
	log    *zap.Logger
	passes []Pass
}

// NewNormalizer returns a normalizer for the given capabilities.
func NewNormalizer(log *zap.Logger, caps Capabilities) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	normalizer := &Normalizer{log: log}
	for _, pass := range Passes() {
		if pass.Enabled(caps) {
			normalizer.passes = append(normalizer.passes, pass)
		}
	}
	return normalizer
}

// Normalize rewrites the record in place.
func (normalizer *Normalizer) Normalize(feature *geojson.Feature) {
	if feature.Properties == nil {
		feature.Properties = geojson.Properties{}
	}
	for _, pass := range normalizer.passes {
		pass.Apply(normalizer.log, feature)
	}
}

func objectTypeSpelling(log *zap.Logger, feature *geojson.Feature) {
	const camel = "objectType"
	v, ok := feature.Properties[camel]
	if !ok {
		return
	}
	delete(feature.Properties, camel)
	if _, exists := feature.Properties[pathobject.PropObjectType]; !exists {
		feature.Properties[pathobject.PropObjectType] = v
	}
}

func legacyID(log *zap.Logger, feature *geojson.Feature) {
	if _, ok := feature.Properties[pathobject.PropObjectType]; ok {
		return
	}
	id, ok := feature.ID.(string)
	if !ok {
		return
	}
	if kind, ok := pathobject.ParseTypeName(id); ok {
		feature.Properties[pathobject.PropObjectType] = kind.ObjectType()
		feature.ID = nil
	}
}

func objectTypeFallback(log *zap.Logger, feature *geojson.Feature) {
	v := feature.Properties[pathobject.PropObjectType]
	if s, ok := v.(string); ok {
		if _, known := pathobject.ParseObjectType(s); known {
			return
		}
	}
	log.Warn("unknown object type, importing as annotation",
		zap.Any("object_type", v), zap.Any("id", feature.ID))
	feature.Properties[pathobject.PropObjectType] = pathobject.KindAnnotation.ObjectType()
}

func colorEncoding(log *zap.Logger, feature *geojson.Feature) {
	if classification, ok := feature.Properties[pathobject.PropClassification].(map[string]interface{}); ok {
		if packed, ok := classification[pathobject.PropColorRGB]; ok {
			delete(classification, pathobject.PropColorRGB)
			if _, exists := classification[pathobject.PropColor]; !exists {
				if color, ok := unpack(packed); ok {
					classification[pathobject.PropColor] = color
				}
			}
		}
		if color, ok := unpack(classification[pathobject.PropColor]); ok {
			classification[pathobject.PropColor] = color
		}
	}
	if color, ok := unpack(feature.Properties[pathobject.PropColor]); ok {
		feature.Properties[pathobject.PropColor] = color
	}
}

// unpack converts a packed RGB integer into a component list.
func unpack(v interface{}) ([]interface{}, bool) {
	var packed int32
	switch n := v.(type) {
	case float64:
		packed = int32(int64(n))
	case int:
		packed = int32(n)
	case int32:
		packed = n
	case int64:
		packed = int32(n)
	default:
		return nil, false
	}
	c := colors.FromPackedRGB(packed)
	return []interface{}{float64(c.Red), float64(c.Green), float64(c.Blue)}, true
}

func measurementsMap(log *zap.Logger, feature *geojson.Feature) {
	m, ok := feature.Properties[pathobject.PropMeasurements].(map[string]interface{})
	if !ok {
		return
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]interface{}, 0, len(m))
	for _, name := range names {
		records = append(records, map[string]interface{}{"name": name, "value": m[name]})
	}
	feature.Properties[pathobject.PropMeasurements] = records
}
