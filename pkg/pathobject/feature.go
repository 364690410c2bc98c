// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package pathobject

import (
	"encoding/json"
	"math"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"annostore.io/annostore/pkg/annoterr"
	"annostore.io/annostore/pkg/colors"
	"annostore.io/annostore/pkg/measurement"
	"annostore.io/annostore/pkg/pathclass"
	"annostore.io/annostore/pkg/roi"
)

// Property keys of interchange records.
const (
	PropObjectType     = "object_type"
	PropClassification = "classification"
	PropIsLocked       = "isLocked"
	PropMeasurements   = "measurements"
	PropName           = "name"
	PropDescription    = "description"
	PropColor          = "color"
	PropColorRGB       = "colorRGB"
	PropPlane          = "plane"
	PropParentID       = "parentId"
)

// Feature converts the object to an interchange record.
//
// The current generation carries the object id, an object_type property and
// the id of the parent when the object is not top level. It omits a false
// lock flag and empty measurements. The legacy generation carries the type
// name as id, always writes both and does not record nesting.
func (object *Object) Feature(legacy bool) (*geojson.Feature, error) {
	if object.kind == KindRoot {
		return nil, annoterr.ErrType.New("root object cannot be exported")
	}
	geometry, err := object.Geometry()
	if err != nil {
		return nil, err
	}

	feature := geojson.NewFeature(geometry)
	if legacy {
		feature.ID = object.kind.TypeName()
	} else {
		feature.ID = object.id.String()
		feature.Properties[PropObjectType] = object.kind.ObjectType()
		if parent := object.Parent(); parent != nil {
			feature.Properties[PropParentID] = parent.id.String()
		}
	}

	if object.class != nil {
		classification := map[string]interface{}{PropName: object.class.ID()}
		color := object.class.Color()
		if legacy {
			classification[PropColorRGB] = color.PackedRGB()
		} else {
			classification[PropColor] = color.ToRGB()
		}
		feature.Properties[PropClassification] = classification
	}

	if legacy || object.locked {
		feature.Properties[PropIsLocked] = object.locked
	}

	var records []measurement.Record
	if object.measurements != nil {
		records = object.measurements.Records()
	}
	if legacy && records == nil {
		records = []measurement.Record{}
	}
	if legacy || len(records) > 0 {
		feature.Properties[PropMeasurements] = records
	}

	if object.name != "" {
		feature.Properties[PropName] = object.name
	}
	if object.description != "" {
		feature.Properties[PropDescription] = object.description
	}
	if object.color != nil {
		feature.Properties[PropColor] = object.color.ToRGB()
	}
	if plane := object.roi.Plane(); plane != roi.DefaultPlane {
		feature.Properties[PropPlane] = map[string]int{"c": plane.C, "z": plane.Z, "t": plane.T}
	}
	return feature, nil
}

// FromFeature creates an object from a normalized interchange record.
// Classes are looked up in registry, or in pathclass.Default when nil.
func FromFeature(feature *geojson.Feature, registry *pathclass.Registry) (*Object, error) {
	if feature == nil {
		return nil, annoterr.ErrType.New("feature is required")
	}
	if registry == nil {
		registry = pathclass.Default
	}
	if feature.Geometry == nil {
		return nil, annoterr.ErrParse.New("feature has no geometry")
	}
	props := feature.Properties

	typ, _ := props[PropObjectType].(string)
	kind, ok := ParseObjectType(typ)
	if !ok {
		return nil, annoterr.ErrParse.New("unknown object type %q", typ)
	}

	plane, err := parsePlane(props[PropPlane])
	if err != nil {
		return nil, err
	}
	r, err := roi.FromGeometry(feature.Geometry, plane)
	if err != nil {
		return nil, annoterr.ErrParse.Wrap(err)
	}

	class, err := parseClassification(props[PropClassification], registry)
	if err != nil {
		return nil, err
	}
	records, err := parseMeasurements(props[PropMeasurements])
	if err != nil {
		return nil, err
	}

	object, err := FromROI(kind, r, class, records, math.NaN())
	if err != nil {
		return nil, annoterr.ErrParse.Wrap(err)
	}
	if s, ok := feature.ID.(string); ok {
		if id, err := uuid.Parse(s); err == nil {
			object.id = id
		}
	}

	if v, ok := props[PropIsLocked]; ok && v != nil {
		locked, ok := v.(bool)
		if !ok {
			return nil, annoterr.ErrParse.New("isLocked must be a boolean, got %T", v)
		}
		object.locked = locked
	}
	if v, ok := props[PropName].(string); ok {
		object.name = v
	}
	if v, ok := props[PropDescription].(string); ok && kind == KindAnnotation {
		object.description = v
	}
	if v, ok := props[PropColor]; ok && v != nil {
		color, err := parseColor(v)
		if err != nil {
			return nil, err
		}
		object.color = &color
	}
	return object, nil
}

// ParentID returns the parent id recorded in feature. It reports false when
// the record is top level or the id is not a valid UUID.
func ParentID(feature *geojson.Feature) (uuid.UUID, bool) {
	if feature == nil {
		return uuid.UUID{}, false
	}
	s, ok := feature.Properties[PropParentID].(string)
	if !ok {
		return uuid.UUID{}, false
	}
	id, err := uuid.Parse(s)
	return id, err == nil
}

// ClassificationName returns the classification name of a record or "" when
// it has none.
func ClassificationName(feature *geojson.Feature) string {
	if feature == nil {
		return ""
	}
	classification, ok := feature.Properties[PropClassification].(map[string]interface{})
	if !ok {
		return ""
	}
	name, _ := classification[PropName].(string)
	return name
}

func parseClassification(v interface{}, registry *pathclass.Registry) (*pathclass.PathClass, error) {
	if v == nil {
		return nil, nil
	}
	classification, ok := v.(map[string]interface{})
	if !ok {
		return nil, annoterr.ErrParse.New("classification must be an object, got %T", v)
	}
	name, _ := classification[PropName].(string)
	if name == "" {
		return nil, nil
	}
	class, err := registry.Parse(name)
	if err != nil {
		return nil, annoterr.ErrParse.Wrap(err)
	}
	if c, ok := classification[PropColor]; ok && c != nil && !class.HasExplicitColor() {
		color, err := parseColor(c)
		if err != nil {
			return nil, err
		}
		if err := class.SetColor(&color); err != nil {
			return nil, annoterr.ErrParse.Wrap(err)
		}
	}
	return class, nil
}

func parseColor(v interface{}) (colors.Color, error) {
	values, ok := numbers(v)
	if !ok || (len(values) != 3 && len(values) != 4) {
		return colors.Color{}, annoterr.ErrParse.New("color must be a list of three or four numbers, got %v", v)
	}
	color := colors.RGB(int(values[0]), int(values[1]), int(values[2]))
	if len(values) == 4 {
		color.Alpha = int(values[3])
	}
	if !color.IsValid() {
		return colors.Color{}, annoterr.ErrParse.New("invalid color %v", v)
	}
	return color, nil
}

func parsePlane(v interface{}) (roi.ImagePlane, error) {
	if v == nil {
		return roi.DefaultPlane, nil
	}
	var raw map[string]interface{}
	switch p := v.(type) {
	case map[string]interface{}:
		raw = p
	case map[string]int:
		return roi.ImagePlane{C: p["c"], Z: p["z"], T: p["t"]}, nil
	default:
		return roi.ImagePlane{}, annoterr.ErrParse.New("plane must be an object, got %T", v)
	}
	plane := roi.DefaultPlane
	for key, field := range map[string]*int{"c": &plane.C, "z": &plane.Z, "t": &plane.T} {
		value, ok := raw[key]
		if !ok {
			continue
		}
		n, ok := number(value)
		if !ok {
			return roi.ImagePlane{}, annoterr.ErrParse.New("plane %s must be a number, got %v", key, value)
		}
		*field = int(n)
	}
	return plane, nil
}

func parseMeasurements(v interface{}) ([]measurement.Record, error) {
	switch m := v.(type) {
	case nil:
		return nil, nil
	case []measurement.Record:
		return m, nil
	case []interface{}:
		records := make([]measurement.Record, 0, len(m))
		for _, item := range m {
			entry, ok := item.(map[string]interface{})
			if !ok {
				return nil, annoterr.ErrParse.New("measurement must be an object, got %T", item)
			}
			name, ok := entry["name"].(string)
			if !ok || name == "" {
				return nil, annoterr.ErrParse.New("measurement without a name")
			}
			value := math.NaN()
			if raw := entry["value"]; raw != nil {
				value, ok = number(raw)
				if !ok {
					return nil, annoterr.ErrParse.New("measurement %q must be a number, got %v", name, raw)
				}
			}
			records = append(records, measurement.Record{Name: name, Value: value})
		}
		return records, nil
	default:
		return nil, annoterr.ErrParse.New("measurements must be a list, got %T", v)
	}
}

func numbers(v interface{}) ([]float64, bool) {
	switch list := v.(type) {
	case [3]int:
		return []float64{float64(list[0]), float64(list[1]), float64(list[2])}, true
	case [4]int:
		return []float64{float64(list[0]), float64(list[1]), float64(list[2]), float64(list[3])}, true
	case []interface{}:
		values := make([]float64, 0, len(list))
		for _, item := range list {
			n, ok := number(item)
			if !ok {
				return nil, false
			}
			values = append(values, n)
		}
		return values, true
	default:
		return nil, false
	}
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
