// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package pathobject

import "strings"

// Kind tags the variant of an object.
type Kind int

const (
	// KindRoot is the geometry-less object at the top of every hierarchy.
	KindRoot Kind = iota
	// KindAnnotation is a manually drawn region.
	KindAnnotation
	// KindDetection is a region produced by an analysis.
	KindDetection
	// KindTile is a detection produced by tiling an image.
	KindTile
)

// Kinds lists every kind that can be constructed from a geometry.
var Kinds = []Kind{KindAnnotation, KindDetection, KindTile}

// String implements fmt.Stringer.
func (kind Kind) String() string {
	switch kind {
	case KindRoot:
		return "Root"
	case KindAnnotation:
		return "Annotation"
	case KindDetection:
		return "Detection"
	case KindTile:
		return "Tile"
	default:
		return "Unknown"
	}
}

// ObjectType is the value of the object_type property in interchange records.
func (kind Kind) ObjectType() string {
	return strings.ToLower(kind.String())
}

// TypeName is the value older interchange records carry in their id.
func (kind Kind) TypeName() string {
	switch kind {
	case KindRoot:
		return "PathRootObject"
	case KindAnnotation:
		return "PathAnnotationObject"
	case KindDetection:
		return "PathDetectionObject"
	case KindTile:
		return "PathTileObject"
	default:
		return ""
	}
}

// IsDetection reports whether objects of this kind belong in the detections view.
func (kind Kind) IsDetection() bool {
	return kind == KindDetection || kind == KindTile
}

// ParseObjectType parses an object_type property value.
func ParseObjectType(s string) (Kind, bool) {
	for _, kind := range Kinds {
		if strings.EqualFold(s, kind.ObjectType()) {
			return kind, true
		}
	}
	return 0, false
}

// ParseTypeName parses the type name carried in the id of older records.
func ParseTypeName(s string) (Kind, bool) {
	for _, kind := range Kinds {
		if s == kind.TypeName() {
			return kind, true
		}
	}
	return 0, false
}
