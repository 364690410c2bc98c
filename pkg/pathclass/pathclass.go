// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package pathclass implements hierarchical classification labels.
//
// A class is identified by its qualified name, the names of all its
// ancestors joined with ": ". A Registry keeps at most one instance per
// qualified name, so classes created with the same name and parent are
// the same value.
package pathclass

import (
	"strings"
	"sync"

	"github.com/zeebo/xxh3"

	"annostore.io/annostore/pkg/annoterr"
	"annostore.io/annostore/pkg/colors"
)

// Delimiter separates the names in a qualified class name.
const Delimiter = ':'

const separator = string(Delimiter) + " "

// Default is the process wide registry used by New and Parse.
var Default = NewRegistry()

// PathClass is an interned classification label.
type PathClass struct {
	registry *Registry
	name     string
	parent   *PathClass
	id       string

	// color is guarded by registry.mu.
	color *colors.Color
}

// Registry interns classes by their qualified name.
type Registry struct {
	mu      sync.Mutex
	classes map[string]*PathClass
	root    *PathClass
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	registry := &Registry{classes: map[string]*PathClass{}}
	registry.root = &PathClass{registry: registry}
	return registry
}

// New creates or looks up a class in the Default registry.
func New(name string, color *colors.Color, parent *PathClass) (*PathClass, error) {
	return Default.Create(name, color, parent)
}

// Parse creates or looks up a class by its qualified name in the Default registry.
func Parse(qualified string) (*PathClass, error) {
	return Default.Parse(qualified)
}

// Root returns the unnamed root of the taxonomy. It is not a valid
// classification and has no color.
func (registry *Registry) Root() *PathClass { return registry.root }

// Create returns the class with the given name and parent, creating it if
// needed. An empty name is only permitted without a parent and denotes the
// root. A non-nil color replaces the explicit color of the class.
func (registry *Registry) Create(name string, color *colors.Color, parent *PathClass) (*PathClass, error) {
	if parent != nil && parent.registry != registry {
		return nil, annoterr.ErrType.New("parent %q belongs to a different registry", parent.id)
	}
	if parent == registry.root {
		parent = nil
	}

	if name == "" {
		if parent != nil {
			return nil, annoterr.ErrValidation.New("cannot create derived class of %q with an empty name", parent.id)
		}
		return registry.root, nil
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	if color != nil && !color.IsValid() {
		return nil, annoterr.ErrValidation.New("invalid color %v", *color)
	}

	id := name
	if parent != nil {
		id = parent.id + separator + name
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	class, ok := registry.classes[id]
	if !ok {
		class = &PathClass{
			registry: registry,
			name:     name,
			parent:   parent,
			id:       id,
		}
		registry.classes[id] = class
	}
	if color != nil {
		c := *color
		class.color = &c
	}
	return class, nil
}

// Parse returns the class for a qualified name such as "Tumor: Positive".
func (registry *Registry) Parse(qualified string) (*PathClass, error) {
	var class *PathClass
	for _, part := range strings.Split(qualified, string(Delimiter)) {
		name := strings.TrimSpace(part)
		if name == "" {
			return nil, annoterr.ErrValidation.New("invalid qualified class name %q", qualified)
		}
		var err error
		class, err = registry.Create(name, nil, class)
		if err != nil {
			return nil, err
		}
	}
	return class, nil
}

// Exists reports whether a class with the qualified name has been created.
func (registry *Registry) Exists(qualified string) bool {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	_, ok := registry.classes[qualified]
	return ok
}

// Len returns the number of interned classes.
func (registry *Registry) Len() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return len(registry.classes)
}

func validateName(name string) error {
	if strings.ContainsRune(name, Delimiter) {
		return annoterr.ErrValidation.New("class name %q must not contain %q", name, Delimiter)
	}
	if strings.ContainsAny(name, "\r\n") {
		return annoterr.ErrValidation.New("class name %q must not contain newlines", name)
	}
	return nil
}

// Name returns the name of the class without its ancestors.
func (class *PathClass) Name() string { return class.name }

// ID returns the qualified name, which is the identity of the class.
func (class *PathClass) ID() string { return class.id }

// Parent returns the parent class or nil for top level classes.
func (class *PathClass) Parent() *PathClass { return class.parent }

// Origin returns the top most ancestor.
func (class *PathClass) Origin() *PathClass {
	origin := class
	for origin.parent != nil {
		origin = origin.parent
	}
	return origin
}

// IsDerivedFrom reports whether ancestor is this class or one of its ancestors.
func (class *PathClass) IsDerivedFrom(ancestor *PathClass) bool {
	if ancestor == nil {
		return false
	}
	for c := class; c != nil; c = c.parent {
		if c.Equal(ancestor) {
			return true
		}
	}
	return false
}

// IsAncestorOf reports whether this class is child or one of its ancestors.
func (class *PathClass) IsAncestorOf(child *PathClass) bool {
	if child == nil {
		return false
	}
	return child.IsDerivedFrom(class)
}

// IsDerivedClass reports whether the class has a parent.
func (class *PathClass) IsDerivedClass() bool { return class.parent != nil }

// IsValid reports whether the class can be used as a classification.
func (class *PathClass) IsValid() bool { return class.name != "" }

// Equal compares classes by their qualified names.
func (class *PathClass) Equal(other *PathClass) bool {
	if class == nil || other == nil {
		return class == other
	}
	return class.id == other.id
}

// Color returns the explicit color or, if none is set, a color derived from
// the qualified name.
func (class *PathClass) Color() colors.Color {
	class.registry.mu.Lock()
	defer class.registry.mu.Unlock()
	if class.color != nil {
		return *class.color
	}
	return derivedColor(class.id)
}

// HasExplicitColor reports whether a color has been set on the class.
func (class *PathClass) HasExplicitColor() bool {
	class.registry.mu.Lock()
	defer class.registry.mu.Unlock()
	return class.color != nil
}

// SetColor sets the explicit color. A nil color clears it.
func (class *PathClass) SetColor(color *colors.Color) error {
	if !class.IsValid() {
		return annoterr.ErrValidation.New("root class has no color")
	}
	if color != nil && !color.IsValid() {
		return annoterr.ErrValidation.New("invalid color %v", *color)
	}

	class.registry.mu.Lock()
	defer class.registry.mu.Unlock()
	if color == nil {
		class.color = nil
		return nil
	}
	c := *color
	class.color = &c
	return nil
}

// String implements fmt.Stringer.
func (class *PathClass) String() string { return class.id }

func derivedColor(id string) colors.Color {
	if id == "" {
		return colors.RGB(0, 0, 0)
	}
	h := xxh3.HashString(id)
	return colors.RGB(int(h>>16&0xff), int(h>>8&0xff), int(h&0xff))
}
