// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package hierarchy implements the container owning all objects of an image
// and the annotation and detection views over it.
package hierarchy

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"

	"annostore.io/annostore/pkg/annoterr"
	"annostore.io/annostore/pkg/measurement"
	"annostore.io/annostore/pkg/pathclass"
	"annostore.io/annostore/pkg/pathobject"
)

var mon = monkit.Package()

// Options configures a Hierarchy.
type Options struct {
	// Name identifies the image in log messages and String.
	Name string
	// Readonly is consulted before every write. It may change at any time.
	Readonly func() bool
	// Registry resolves classifications during import. Defaults to
	// pathclass.Default.
	Registry *pathclass.Registry
}

// Hierarchy owns a root object and every object attached below it.
//
// Objects live in an arena of slots. Removing an object frees its slot for
// reuse, so iteration order matches insertion order only until the first
// removal.
//
// A Hierarchy is not safe for concurrent use.
type Hierarchy struct {
	log      *zap.Logger
	name     string
	readonly func() bool
	registry *pathclass.Registry

	root  *pathobject.Object
	slots []*pathobject.Object
	free  []int
	count int
	// children indexes the direct children of every parent, the root
	// included, so removal only touches the removed object's children.
	children map[*pathobject.Object]map[*pathobject.Object]struct{}

	annotations *Proxy
	detections  *Proxy

	batch   int
	pending bool

	subscribers map[int]func()
	nextID      int
}

var _ pathobject.Owner = (*Hierarchy)(nil)

// New returns an empty hierarchy.
func New(log *zap.Logger, opts Options) *Hierarchy {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = pathclass.Default
	}
	h := &Hierarchy{
		log:         log,
		name:        opts.Name,
		readonly:    opts.Readonly,
		registry:    opts.Registry,
		root:        pathobject.NewRoot(),
		children:    map[*pathobject.Object]map[*pathobject.Object]struct{}{},
		subscribers: map[int]func(){},
	}
	h.annotations = newProxy(h, annotationView)
	h.detections = newProxy(h, detectionView)
	return h
}

// Root returns the geometry-less root object.
func (h *Hierarchy) Root() *pathobject.Object { return h.root }

// Annotations returns the view over all annotations.
func (h *Hierarchy) Annotations() *Proxy { return h.annotations }

// Detections returns the view over all detections and tiles.
func (h *Hierarchy) Detections() *Proxy { return h.detections }

// Len returns the number of attached objects, not counting the root.
func (h *Hierarchy) Len() int { return h.count }

// IsEmpty reports whether no objects are attached.
func (h *Hierarchy) IsEmpty() bool { return h.count == 0 }

// Readonly implements pathobject.Owner.
func (h *Hierarchy) Readonly() bool {
	return h.readonly != nil && h.readonly()
}

// ObjectChanged implements pathobject.Owner.
func (h *Hierarchy) ObjectChanged(object *pathobject.Object) {
	h.changed()
}

// Subscribe registers fn to be called after every change notification. The
// returned function removes the subscription.
func (h *Hierarchy) Subscribe(fn func()) (unsubscribe func()) {
	id := h.nextID
	h.nextID++
	h.subscribers[id] = fn
	return func() { delete(h.subscribers, id) }
}

// NoAutoflush runs fn with change notifications suspended. On exit of the
// outermost scope a single notification is sent if anything changed.
func (h *Hierarchy) NoAutoflush(fn func() error) error {
	h.batch++
	defer func() {
		h.batch--
		if h.batch == 0 && h.pending {
			h.pending = false
			h.flush()
		}
	}()
	return fn()
}

// AddAnnotation creates an annotation and adds it at the top level.
func (h *Hierarchy) AddAnnotation(geometry orb.Geometry, class *pathclass.PathClass, measurements []measurement.Record, probability float64) (*pathobject.Object, error) {
	return h.addNew(h.annotations, pathobject.KindAnnotation, geometry, class, measurements, probability)
}

// AddDetection creates a detection and adds it at the top level.
func (h *Hierarchy) AddDetection(geometry orb.Geometry, class *pathclass.PathClass, measurements []measurement.Record, probability float64) (*pathobject.Object, error) {
	return h.addNew(h.detections, pathobject.KindDetection, geometry, class, measurements, probability)
}

// AddTile creates a tile and adds it at the top level.
func (h *Hierarchy) AddTile(geometry orb.Geometry, class *pathclass.PathClass, measurements []measurement.Record, probability float64) (*pathobject.Object, error) {
	return h.addNew(h.detections, pathobject.KindTile, geometry, class, measurements, probability)
}

func (h *Hierarchy) addNew(proxy *Proxy, kind pathobject.Kind, geometry orb.Geometry, class *pathclass.PathClass, measurements []measurement.Record, probability float64) (*pathobject.Object, error) {
	if err := h.checkWritable(); err != nil {
		return nil, err
	}
	object, err := pathobject.FromGeometry(kind, geometry, class, measurements, probability)
	if err != nil {
		return nil, err
	}
	if err := proxy.Add(object); err != nil {
		return nil, err
	}
	return object, nil
}

// AddChild attaches child below parent, which must belong to this hierarchy.
func (h *Hierarchy) AddChild(parent, child *pathobject.Object) error {
	if parent == nil || child == nil {
		return annoterr.ErrType.New("parent and child are required")
	}
	if err := h.checkWritable(); err != nil {
		return err
	}
	if !h.owns(parent) {
		return annoterr.ErrValidation.New("parent %s is not part of this hierarchy", parent)
	}
	if child.Kind() == pathobject.KindRoot {
		return annoterr.ErrType.New("root object cannot be a child")
	}
	if child.Owner() != nil {
		return annoterr.ErrBusy.New("%s already belongs to a hierarchy", child)
	}
	h.insert(child, parent)
	return nil
}

// String implements fmt.Stringer.
func (h *Hierarchy) String() string {
	name := h.name
	if name == "" {
		name = "N/A"
	}
	return fmt.Sprintf("Hierarchy(image=%s, annotations=%d, detections=%d)",
		name, h.annotations.Len(), h.detections.Len())
}

// Objects returns every attached object in slot order.
func (h *Hierarchy) Objects() []*pathobject.Object {
	objects := make([]*pathobject.Object, 0, h.count)
	for _, object := range h.slots {
		if object != nil {
			objects = append(objects, object)
		}
	}
	return objects
}

func (h *Hierarchy) checkWritable() error {
	if h.Readonly() {
		return annoterr.ErrPermission.New("hierarchy of %q is read-only", h.name)
	}
	return nil
}

// owns reports whether object is the root or attached to this hierarchy.
func (h *Hierarchy) owns(object *pathobject.Object) bool {
	if object == h.root {
		return true
	}
	owner, ok := object.Owner().(*Hierarchy)
	return ok && owner == h && object.Origin() == h.root
}

func (h *Hierarchy) insert(object, parent *pathobject.Object) {
	slot := len(h.slots)
	if n := len(h.free); n > 0 {
		slot = h.free[n-1]
		h.free = h.free[:n-1]
		h.slots[slot] = object
	} else {
		h.slots = append(h.slots, object)
	}
	h.count++
	object.Attach(h, slot, parent)
	h.link(parent, object)
	h.changed()
}

// remove detaches object and moves its children to its parent.
func (h *Hierarchy) remove(object *pathobject.Object) {
	parent := object.Parent()
	if parent == nil {
		parent = h.root
	}
	for child := range h.children[object] {
		child.Reparent(parent)
		h.link(parent, child)
	}
	delete(h.children, object)
	h.unlink(parent, object)

	slot := object.Slot()
	h.slots[slot] = nil
	h.free = append(h.free, slot)
	h.count--
	object.Detach()
	h.changed()
}

func (h *Hierarchy) link(parent, child *pathobject.Object) {
	set, ok := h.children[parent]
	if !ok {
		set = map[*pathobject.Object]struct{}{}
		h.children[parent] = set
	}
	set[child] = struct{}{}
}

func (h *Hierarchy) unlink(parent, child *pathobject.Object) {
	set := h.children[parent]
	delete(set, child)
	if len(set) == 0 && parent != h.root {
		delete(h.children, parent)
	}
}

func (h *Hierarchy) changed() {
	h.annotations.invalidate()
	h.detections.invalidate()
	if h.batch > 0 {
		h.pending = true
		return
	}
	h.flush()
}

func (h *Hierarchy) flush() {
	h.annotations.invalidate()
	h.detections.invalidate()
	mon.Event("hierarchy_changed")
	for _, fn := range h.subscribers {
		fn()
	}
}
