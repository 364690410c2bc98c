// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package hierarchy

import (
	"fmt"

	"github.com/spacemonkeygo/monkit/v3"

	"annostore.io/annostore/pkg/annoterr"
	"annostore.io/annostore/pkg/pathobject"
)

type view struct {
	name    string
	repr    string
	accepts func(pathobject.Kind) bool
}

var (
	annotationView = view{
		name:    "annotations",
		repr:    "AnnotationSet",
		accepts: func(kind pathobject.Kind) bool { return kind == pathobject.KindAnnotation },
	}
	detectionView = view{
		name:    "detections",
		repr:    "DetectionSet",
		accepts: pathobject.Kind.IsDetection,
	}
)

// Proxy is a set and sequence view over the objects of one kind.
//
// The unmasked proxy of a hierarchy caches its listing until the next
// change. A masked proxy, created by Slice or Select, resolves its positions
// against the parent's listing once, when it is created, and keeps the
// resulting objects. Later changes to the hierarchy do not show through a
// masked proxy. Masked proxies reject every write with annoterr.ErrBusy.
type Proxy struct {
	h    *Hierarchy
	view view

	parent *Proxy

	// cache is the listing of an unmasked proxy, valid until stale is set,
	// or the fixed snapshot of a masked proxy.
	cache []*pathobject.Object
	stale bool
}

func newProxy(h *Hierarchy, v view) *Proxy {
	return &Proxy{h: h, view: v, stale: true}
}

// Masked reports whether the proxy is a slice of another proxy.
func (proxy *Proxy) Masked() bool { return proxy.parent != nil }

// Len returns the number of objects in the view.
func (proxy *Proxy) Len() int { return len(proxy.list()) }

// At returns the object at position i. Negative positions count from the end.
func (proxy *Proxy) At(i int) (*pathobject.Object, error) {
	objects := proxy.list()
	if i < 0 {
		i += len(objects)
	}
	if i < 0 || i >= len(objects) {
		return nil, annoterr.ErrIndex.New("%s index %d out of range [0, %d)", proxy.view.name, i, len(objects))
	}
	return objects[i], nil
}

// Slice returns a masked view of positions [start, stop). Bounds are
// clamped and negative values count from the end.
func (proxy *Proxy) Slice(start, stop int) *Proxy {
	n := len(proxy.list())
	start, stop = clamp(start, n), clamp(stop, n)
	positions := []int{}
	for i := start; i < stop; i++ {
		positions = append(positions, i)
	}
	return proxy.mask(positions)
}

// Select returns a masked view of the given positions.
func (proxy *Proxy) Select(positions ...int) (*Proxy, error) {
	n := len(proxy.list())
	resolved := make([]int, 0, len(positions))
	for _, i := range positions {
		if i < 0 {
			i += n
		}
		if i < 0 || i >= n {
			return nil, annoterr.ErrIndex.New("%s index %d out of range [0, %d)", proxy.view.name, i, n)
		}
		resolved = append(resolved, i)
	}
	return proxy.mask(resolved), nil
}

func (proxy *Proxy) mask(positions []int) *Proxy {
	source := proxy.list()
	snapshot := make([]*pathobject.Object, 0, len(positions))
	for _, i := range positions {
		snapshot = append(snapshot, source[i])
	}
	return &Proxy{h: proxy.h, view: proxy.view, parent: proxy, cache: snapshot}
}

// Objects returns a copy of the listing.
func (proxy *Proxy) Objects() []*pathobject.Object {
	return append([]*pathobject.Object(nil), proxy.list()...)
}

// Range calls fn for every object until it returns false.
func (proxy *Proxy) Range(fn func(*pathobject.Object) bool) {
	for _, object := range proxy.Objects() {
		if !fn(object) {
			return
		}
	}
}

// Contains reports whether object is in the view. For an unmasked proxy
// this follows parent links to the root, so it does not depend on the cache.
func (proxy *Proxy) Contains(object *pathobject.Object) bool {
	if object == nil || !proxy.view.accepts(object.Kind()) {
		return false
	}
	if proxy.parent == nil {
		return proxy.h.owns(object)
	}
	for _, o := range proxy.list() {
		if o == object {
			return true
		}
	}
	return false
}

// Add attaches object at the top level. Adding an object that is already
// part of the view does nothing.
func (proxy *Proxy) Add(object *pathobject.Object) error {
	if err := proxy.checkMutable(); err != nil {
		return err
	}
	if err := proxy.checkAddable(object); err != nil {
		return err
	}
	if proxy.h.owns(object) {
		return nil
	}
	proxy.h.insert(object, proxy.h.root)
	return nil
}

// Update adds all objects with a single change notification. Nothing is
// added if any object is rejected.
func (proxy *Proxy) Update(objects ...*pathobject.Object) error {
	if err := proxy.checkMutable(); err != nil {
		return err
	}
	for _, object := range objects {
		if err := proxy.checkAddable(object); err != nil {
			return err
		}
	}
	return proxy.h.NoAutoflush(func() error {
		for _, object := range objects {
			if !proxy.h.owns(object) {
				proxy.h.insert(object, proxy.h.root)
			}
		}
		return nil
	})
}

// Discard removes object from the hierarchy. Its children move to its
// parent. Discarding an object of the view's kind that is not attached does
// nothing; an object of another kind is rejected with annoterr.ErrType.
func (proxy *Proxy) Discard(object *pathobject.Object) error {
	if err := proxy.checkMutable(); err != nil {
		return err
	}
	if object == nil {
		return annoterr.ErrType.New("object is required")
	}
	if !proxy.view.accepts(object.Kind()) {
		return annoterr.ErrType.New("cannot discard %s object from %s", object.Kind(), proxy.view.name)
	}
	if !proxy.Contains(object) {
		return nil
	}
	proxy.h.remove(object)
	return nil
}

// Clear removes every object of the view with a single change notification.
func (proxy *Proxy) Clear() error {
	if err := proxy.checkMutable(); err != nil {
		return err
	}
	objects := proxy.Objects()
	return proxy.h.NoAutoflush(func() error {
		for _, object := range objects {
			proxy.h.remove(object)
		}
		return nil
	})
}

// String implements fmt.Stringer.
func (proxy *Proxy) String() string {
	return fmt.Sprintf("%s(n=%d)", proxy.view.repr, proxy.Len())
}

func (proxy *Proxy) checkMutable() error {
	if proxy.parent != nil {
		return annoterr.ErrBusy.New("cannot modify a masked view of %s", proxy.view.name)
	}
	return proxy.h.checkWritable()
}

func (proxy *Proxy) checkAddable(object *pathobject.Object) error {
	if object == nil {
		return annoterr.ErrType.New("object is required")
	}
	if !proxy.view.accepts(object.Kind()) {
		return annoterr.ErrType.New("cannot add %s object to %s", object.Kind(), proxy.view.name)
	}
	if object.Owner() != nil && !proxy.h.owns(object) {
		return annoterr.ErrBusy.New("%s already belongs to another hierarchy", object)
	}
	return nil
}

func (proxy *Proxy) list() []*pathobject.Object {
	if proxy.parent != nil {
		return proxy.cache
	}

	if !proxy.stale {
		proxy.monitorCache(true)
		return proxy.cache
	}
	proxy.monitorCache(false)

	objects := make([]*pathobject.Object, 0, len(proxy.cache))
	for _, object := range proxy.h.slots {
		if object != nil && proxy.view.accepts(object.Kind()) {
			objects = append(objects, object)
		}
	}
	proxy.cache = objects
	proxy.stale = false
	return objects
}

func (proxy *Proxy) invalidate() {
	proxy.stale = true
}

func (proxy *Proxy) monitorCache(fromCache bool) {
	nameTag := monkit.NewSeriesTag("name", proxy.view.name)
	if fromCache {
		mon.Event("proxy_cache_hit", nameTag)
	} else {
		mon.Event("proxy_cache_miss", nameTag)
	}
}

func clamp(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
