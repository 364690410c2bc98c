// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package hierarchy

import (
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"annostore.io/annostore/pkg/annoterr"
	"annostore.io/annostore/pkg/geometry"
	"annostore.io/annostore/pkg/interchange"
	"annostore.io/annostore/pkg/pathobject"
)

// UndefinedClass is the skip accounting key of records without a classification.
const UndefinedClass = "UNDEFINED"

// ExportOptions configures ToGeoJSON.
type ExportOptions struct {
	// Legacy writes the older record generation.
	Legacy bool
	// Detections also exports detections and tiles after the annotations.
	Detections bool
}

// ImportOptions configures LoadGeoJSON.
type ImportOptions struct {
	// Strict fails the whole import when any record is skipped.
	Strict bool
	// FixInvalid repairs invalid geometries before constructing objects.
	FixInvalid bool
	// Capabilities selects the accepted record generations. Nil accepts all.
	Capabilities *interchange.Capabilities
	// Repairer is used when FixInvalid is set. Defaults to geometry.Planar.
	Repairer geometry.Repairer
}

// ImportResult describes a finished import.
type ImportResult struct {
	Added   int
	Skipped map[string]int
}

// Features converts the annotations, and optionally the detections, into
// interchange records in view order.
func (h *Hierarchy) Features(opts ExportOptions) ([]*geojson.Feature, error) {
	objects := h.annotations.Objects()
	if opts.Detections {
		objects = append(objects, h.detections.Objects()...)
	}
	features := make([]*geojson.Feature, 0, len(objects))
	for _, object := range objects {
		feature, err := object.Feature(opts.Legacy)
		if err != nil {
			return nil, err
		}
		features = append(features, feature)
	}
	return features, nil
}

// ToGeoJSON encodes Features as a GeoJSON list.
func (h *Hierarchy) ToGeoJSON(opts ExportOptions) ([]byte, error) {
	features, err := h.Features(opts)
	if err != nil {
		return nil, err
	}
	return interchange.Marshal(features)
}

// LoadGeoJSON adds the objects of a GeoJSON list or FeatureCollection.
//
// Records that can not be parsed, repaired or converted are skipped and
// counted by classification name. In strict mode any skip fails the import
// with an *annoterr.SkipError and nothing is added; otherwise the skips are
// logged and the remaining objects are added with a single change
// notification.
func (h *Hierarchy) LoadGeoJSON(data []byte, opts ImportOptions) (ImportResult, error) {
	if err := h.checkWritable(); err != nil {
		return ImportResult{}, err
	}
	raws, err := interchange.Split(data)
	if err != nil {
		return ImportResult{}, err
	}

	records := make([]record, 0, len(raws))
	for _, raw := range raws {
		feature, err := interchange.ParseFeature(raw)
		records = append(records, record{
			feature: feature,
			err:     err,
			class:   interchange.ClassificationName(raw),
		})
	}
	return h.load(records, opts)
}

// LoadFeatures adds the objects of already decoded records. The records are
// normalized in place.
func (h *Hierarchy) LoadFeatures(features []*geojson.Feature, opts ImportOptions) (ImportResult, error) {
	if err := h.checkWritable(); err != nil {
		return ImportResult{}, err
	}
	records := make([]record, 0, len(features))
	for _, feature := range features {
		r := record{feature: feature, class: pathobject.ClassificationName(feature)}
		if feature == nil {
			r.err = annoterr.ErrType.New("nil feature")
		}
		records = append(records, r)
	}
	return h.load(records, opts)
}

type record struct {
	feature *geojson.Feature
	err     error
	class   string
}

func (h *Hierarchy) load(records []record, opts ImportOptions) (ImportResult, error) {
	caps := interchange.AllCapabilities
	if opts.Capabilities != nil {
		caps = *opts.Capabilities
	}
	normalizer := interchange.NewNormalizer(h.log, caps)
	repairer := opts.Repairer
	if repairer == nil {
		repairer = geometry.Planar{}
	}

	result := ImportResult{Skipped: map[string]int{}}
	objects := make([]*pathobject.Object, 0, len(records))
	parentIDs := map[*pathobject.Object]uuid.UUID{}
	for _, r := range records {
		object, err := h.convert(r, normalizer, repairer, opts.FixInvalid)
		if err != nil {
			class := r.class
			if class == "" {
				class = UndefinedClass
			}
			h.log.Debug("record skipped", zap.String("class", class), zap.Error(err))
			result.Skipped[class]++
			continue
		}
		objects = append(objects, object)
		if id, ok := pathobject.ParentID(r.feature); ok {
			parentIDs[object] = id
		}
	}

	if len(result.Skipped) > 0 {
		skipErr := &annoterr.SkipError{Counts: result.Skipped}
		mon.IntVal("import_skipped").Observe(int64(skipErr.Total()))
		if opts.Strict {
			return ImportResult{Skipped: result.Skipped}, skipErr
		}
		h.log.Error("skipped records during import",
			zap.String("image", h.name),
			zap.Int("skipped", skipErr.Total()),
			zap.Any("by_class", result.Skipped))
	}

	err := h.NoAutoflush(func() error {
		added, err := h.attach(objects, parentIDs)
		result.Added = added
		return err
	})
	return result, err
}

// attach adds objects so that every parent is attached before its children.
// Parents are looked up among objects only. An object whose parent is
// missing, or part of a cycle, is attached at the top level.
func (h *Hierarchy) attach(objects []*pathobject.Object, parentIDs map[*pathobject.Object]uuid.UUID) (added int, err error) {
	byID := make(map[uuid.UUID]*pathobject.Object, len(objects))
	for _, object := range objects {
		byID[object.ID()] = object
	}
	parentOf := func(object *pathobject.Object) *pathobject.Object {
		id, ok := parentIDs[object]
		if !ok {
			return nil
		}
		if parent := byID[id]; parent != object {
			return parent
		}
		return nil
	}

	done := make(map[*pathobject.Object]bool, len(objects))
	for _, object := range objects {
		var chain []*pathobject.Object
		seen := map[*pathobject.Object]bool{}
		for current := object; current != nil && !done[current] && !seen[current]; current = parentOf(current) {
			chain = append(chain, current)
			seen[current] = true
		}

		for i := len(chain) - 1; i >= 0; i-- {
			current := chain[i]
			if parent := parentOf(current); parent != nil && done[parent] {
				err = h.AddChild(parent, current)
			} else if current.Kind().IsDetection() {
				err = h.detections.Add(current)
			} else {
				err = h.annotations.Add(current)
			}
			if err != nil {
				return added, err
			}
			done[current] = true
			added++
		}
	}
	return added, nil
}

func (h *Hierarchy) convert(r record, normalizer *interchange.Normalizer, repairer geometry.Repairer, fixInvalid bool) (*pathobject.Object, error) {
	if r.err != nil {
		return nil, r.err
	}
	normalizer.Normalize(r.feature)
	if fixInvalid {
		if r.feature.Geometry == nil {
			return nil, annoterr.ErrParse.New("feature has no geometry")
		}
		repaired, err := geometry.Repair(repairer, r.feature.Geometry)
		if err != nil {
			return nil, err
		}
		r.feature.Geometry = repaired
	}
	return pathobject.FromFeature(r.feature, h.registry)
}
