// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package pathobject implements annotations, detections and tiles: a region
// of interest with a classification, measurements and a few flags.
package pathobject

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"annostore.io/annostore/pkg/annoterr"
	"annostore.io/annostore/pkg/colors"
	"annostore.io/annostore/pkg/measurement"
	"annostore.io/annostore/pkg/pathclass"
	"annostore.io/annostore/pkg/roi"
)

// Owner is the container an object is attached to.
type Owner interface {
	// Readonly reports whether writes are currently rejected.
	Readonly() bool
	// ObjectChanged is called after every successful write to an attached object.
	ObjectChanged(object *Object)
}

// Object is a single annotation, detection, tile or hierarchy root.
//
// Objects are not safe for concurrent use.
type Object struct {
	kind Kind
	id   uuid.UUID

	roi         *roi.ROI
	class       *pathclass.PathClass
	probability float64

	measurements *measurement.List

	locked      bool
	name        string
	description string
	color       *colors.Color

	parent *Object
	owner  Owner
	slot   int
}

// NewRoot returns the root object of a hierarchy.
func NewRoot() *Object {
	return &Object{kind: KindRoot, id: uuid.New(), probability: math.NaN(), slot: -1}
}

// FromGeometry creates an object of the given kind on the default plane.
// The probability is only applied when it is not NaN.
func FromGeometry(kind Kind, geometry orb.Geometry, class *pathclass.PathClass, measurements []measurement.Record, probability float64) (*Object, error) {
	if geometry == nil {
		return nil, annoterr.ErrType.New("geometry is required")
	}
	r, err := roi.FromGeometry(geometry, roi.DefaultPlane)
	if err != nil {
		return nil, err
	}
	return FromROI(kind, r, class, measurements, probability)
}

// FromROI creates an object of the given kind from an ROI.
func FromROI(kind Kind, r *roi.ROI, class *pathclass.PathClass, measurements []measurement.Record, probability float64) (*Object, error) {
	switch kind {
	case KindAnnotation, KindDetection, KindTile:
	default:
		return nil, annoterr.ErrType.New("cannot create %s object from a geometry", kind)
	}
	if r == nil {
		return nil, annoterr.ErrType.New("roi is required")
	}

	object := &Object{
		kind:        kind,
		id:          uuid.New(),
		roi:         r,
		probability: math.NaN(),
		slot:        -1,
	}
	if err := object.UpdateClassification(class, probability); err != nil {
		return nil, err
	}
	if len(measurements) > 0 {
		if err := object.Measurements().Update(measurements...); err != nil {
			return nil, err
		}
	}
	return object, nil
}

// Kind returns the variant of the object.
func (object *Object) Kind() Kind { return object.kind }

// ID returns the unique id of the object.
func (object *Object) ID() uuid.UUID { return object.id }

// ROI returns the region of interest; nil for the root.
func (object *Object) ROI() *roi.ROI { return object.roi }

// Geometry decodes the region of interest into a planar geometry.
func (object *Object) Geometry() (orb.Geometry, error) {
	if object.roi == nil {
		return nil, annoterr.ErrValidation.New("%s object has no geometry", object.kind)
	}
	return roi.ToGeometry(object.roi)
}

// UpdateROI replaces the region of interest, keeping the current plane.
func (object *Object) UpdateROI(geometry orb.Geometry) error {
	if object.kind == KindRoot {
		return annoterr.ErrValidation.New("root object has no geometry")
	}
	if geometry == nil {
		return annoterr.ErrType.New("geometry is required")
	}
	r, err := roi.FromGeometry(geometry, object.roi.Plane())
	if err != nil {
		return err
	}
	return object.SetROI(r)
}

// SetROI replaces the region of interest.
func (object *Object) SetROI(r *roi.ROI) error {
	if object.kind == KindRoot {
		return annoterr.ErrValidation.New("root object has no geometry")
	}
	if r == nil {
		return annoterr.ErrType.New("roi is required")
	}
	if err := object.guard(); err != nil {
		return err
	}
	object.roi = r
	object.changed()
	return nil
}

// PathClass returns the classification or nil when unclassified.
func (object *Object) PathClass() *pathclass.PathClass { return object.class }

// ClassProbability returns the classification probability or NaN when unset.
func (object *Object) ClassProbability() float64 { return object.probability }

// UpdateClassification sets the classification and probability. A nil class
// only accepts a NaN probability.
func (object *Object) UpdateClassification(class *pathclass.PathClass, probability float64) error {
	if object.kind == KindRoot {
		return annoterr.ErrValidation.New("root object cannot be classified")
	}
	if class != nil && !class.IsValid() {
		class = nil
	}
	if class == nil && !math.IsNaN(probability) {
		return annoterr.ErrValidation.New("probability %v requires a classification", probability)
	}
	if err := object.guard(); err != nil {
		return err
	}
	object.class = class
	object.probability = probability
	object.changed()
	return nil
}

// SetPathClass sets the classification and clears the probability.
func (object *Object) SetPathClass(class *pathclass.PathClass) error {
	return object.UpdateClassification(class, math.NaN())
}

// Measurements returns the measurement list, creating it on first use.
func (object *Object) Measurements() *measurement.List {
	if object.measurements == nil {
		object.measurements = measurement.New(measurement.Hooks{
			Guard:   object.guard,
			Changed: object.changed,
		})
	}
	return object.measurements
}

// Locked reports whether the object is locked against interactive edits.
func (object *Object) Locked() bool { return object.locked }

// SetLocked sets the lock flag.
func (object *Object) SetLocked(locked bool) error {
	if err := object.guard(); err != nil {
		return err
	}
	object.locked = locked
	object.changed()
	return nil
}

// IsEditable reports whether the object is not locked.
func (object *Object) IsEditable() bool { return !object.locked }

// Name returns the name or "" when unset.
func (object *Object) Name() string { return object.name }

// SetName sets the name; "" unsets it.
func (object *Object) SetName(name string) error {
	if err := object.guard(); err != nil {
		return err
	}
	object.name = name
	object.changed()
	return nil
}

// Description returns the description of an annotation.
func (object *Object) Description() string { return object.description }

// SetDescription sets the description. Only annotations have one.
func (object *Object) SetDescription(description string) error {
	if object.kind != KindAnnotation {
		return annoterr.ErrType.New("%s objects have no description", object.kind)
	}
	if err := object.guard(); err != nil {
		return err
	}
	object.description = description
	object.changed()
	return nil
}

// Color returns the object color and whether it is set.
func (object *Object) Color() (colors.Color, bool) {
	if object.color == nil {
		return colors.Color{}, false
	}
	return *object.color, true
}

// SetColor sets the object color; nil unsets it.
func (object *Object) SetColor(color *colors.Color) error {
	if color != nil && !color.IsValid() {
		return annoterr.ErrValidation.New("invalid color %v", *color)
	}
	if err := object.guard(); err != nil {
		return err
	}
	if color == nil {
		object.color = nil
	} else {
		c := *color
		object.color = &c
	}
	object.changed()
	return nil
}

// Parent returns the enclosing object, or nil when the object is top level
// or detached.
func (object *Object) Parent() *Object {
	if object.parent == nil || object.parent.kind == KindRoot {
		return nil
	}
	return object.parent
}

// Origin follows parent links to the top-most object.
func (object *Object) Origin() *Object {
	current := object
	for current.parent != nil {
		current = current.parent
	}
	return current
}

// Level returns the number of parent links to the top-most object.
func (object *Object) Level() int {
	level := 0
	for current := object.parent; current != nil; current = current.parent {
		level++
	}
	return level
}

// Attach links the object to its owner, its slot in the owner and its
// direct parent.
func (object *Object) Attach(owner Owner, slot int, parent *Object) {
	object.owner = owner
	object.slot = slot
	object.parent = parent
}

// Detach removes all links set by Attach.
func (object *Object) Detach() {
	object.owner = nil
	object.slot = -1
	object.parent = nil
}

// Reparent changes the direct parent without detaching.
func (object *Object) Reparent(parent *Object) { object.parent = parent }

// Owner returns the owner or nil when detached.
func (object *Object) Owner() Owner { return object.owner }

// Slot returns the position in the owner or -1 when detached.
func (object *Object) Slot() int { return object.slot }

// String implements fmt.Stringer.
func (object *Object) String() string {
	if object.kind == KindRoot {
		return "<Root>"
	}
	class := "Unclassified"
	if object.class != nil {
		class = object.class.ID()
	}
	return fmt.Sprintf("<%s roi=%s class=%s>", object.kind, object.roi.Type(), class)
}

func (object *Object) guard() error {
	if object.owner != nil && object.owner.Readonly() {
		return annoterr.ErrPermission.New("%s object belongs to a read-only hierarchy", object.kind)
	}
	return nil
}

func (object *Object) changed() {
	if object.owner != nil {
		object.owner.ObjectChanged(object)
	}
}
