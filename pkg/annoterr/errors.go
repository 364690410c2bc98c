// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package annoterr contains the error classes shared by the annotation packages.
package annoterr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/errs"
)

var (
	// ErrType is returned when an argument has the wrong kind, e.g. a nil
	// geometry, an unsupported geometry type or a detection added to the
	// annotations set.
	ErrType = errs.Class("type error")

	// ErrValidation is returned when a value is malformed: invalid class
	// names, invalid colors, classifications with a probability but no class.
	ErrValidation = errs.Class("validation error")

	// ErrPermission is returned when a mutation is attempted while the
	// owning image entry is read-only.
	ErrPermission = errs.Class("permission denied")

	// ErrBusy is returned when a mutation is attempted on a masked view.
	ErrBusy = errs.Class("resource busy")

	// ErrGeometry is returned when a geometry is invalid and could not be repaired.
	ErrGeometry = errs.Class("geometry error")

	// ErrParse is returned when an interchange record can not be parsed.
	ErrParse = errs.Class("parse error")

	// ErrKeyNotFound is returned when a measurement does not exist.
	ErrKeyNotFound = errs.Class("key not found")

	// ErrIndex is returned when a position is out of range.
	ErrIndex = errs.Class("index out of range")
)

// SkipError is returned by a strict import when at least one feature was skipped.
// It carries the number of skipped features per attempted classification name.
type SkipError struct {
	Counts map[string]int
}

// Total returns the number of skipped features.
func (err *SkipError) Total() int {
	total := 0
	for _, n := range err.Counts {
		total += n
	}
	return total
}

// MostCommon returns the classification names ordered by descending count.
func (err *SkipError) MostCommon() []string {
	names := make([]string, 0, len(err.Counts))
	for name := range err.Counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, k int) bool {
		if err.Counts[names[i]] != err.Counts[names[k]] {
			return err.Counts[names[i]] > err.Counts[names[k]]
		}
		return names[i] < names[k]
	})
	return names
}

// Error implements the error interface.
func (err *SkipError) Error() string {
	var parts []string
	for _, name := range err.MostCommon() {
		parts = append(parts, fmt.Sprintf("%s=%d", name, err.Counts[name]))
	}
	return fmt.Sprintf("import: could not convert %d features (%s)", err.Total(), strings.Join(parts, ", "))
}
