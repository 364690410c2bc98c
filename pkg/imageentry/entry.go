// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package imageentry implements the image entry owning a hierarchy and
// its save points in a kvstore.
package imageentry

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"annostore.io/annostore/pkg/hierarchy"
	"annostore.io/annostore/pkg/pathclass"
	"annostore.io/annostore/private/kvstore"
)

var (
	// Error is the image entry error class.
	Error = errs.Class("imageentry")

	mon = monkit.Package()
)

const prefix = "entries"

// zstdMagic starts every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Options configures an Entry.
type Options struct {
	// Readonly opens the entry without write access.
	Readonly bool
	// Compress stores save points zstd compressed.
	Compress bool
	// Legacy stores save points in the legacy record layout.
	Legacy bool
	// Registry resolves classifications. Defaults to pathclass.Default.
	Registry *pathclass.Registry
	// Import configures how the last save point is loaded.
	Import hierarchy.ImportOptions
}

// Entry is a named image with an object hierarchy.
//
// The readonly flag is held by the entry and consulted by the hierarchy on
// every write, so toggling it takes effect immediately.
type Entry struct {
	log   *zap.Logger
	store kvstore.Store
	name  string
	opts  Options

	hierarchy   *hierarchy.Hierarchy
	unsubscribe func()
	readonly    bool
	changed     bool
	// saved is the value written by the last Open or Save, used to
	// detect concurrent writers.
	saved kvstore.Value
}

// DataKey returns the key holding the save point of name.
func DataKey(name string) kvstore.Key {
	return kvstore.JoinKey(prefix, name, "data")
}

// Open loads the entry name from store. A missing entry opens empty.
func Open(ctx context.Context, log *zap.Logger, store kvstore.Store, name string, opts Options) (_ *Entry, err error) {
	defer mon.Task()(&ctx)(&err)
	if log == nil {
		log = zap.NewNop()
	}
	if name == "" || strings.ContainsRune(name, kvstore.Delimiter) {
		return nil, Error.New("invalid entry name %q", name)
	}

	entry := &Entry{
		log:   log.Named("entry").With(zap.String("image", name)),
		store: store,
		name:  name,
		opts:  opts,
	}
	entry.hierarchy = hierarchy.New(log.Named("hierarchy"), hierarchy.Options{
		Name:     name,
		Readonly: entry.Readonly,
		Registry: opts.Registry,
	})

	saved, err := store.Get(ctx, DataKey(name))
	switch {
	case kvstore.ErrKeyNotFound.Has(err):
		entry.log.Debug("new entry")
	case err != nil:
		return nil, Error.Wrap(err)
	default:
		data, err := decode(saved)
		if err != nil {
			return nil, err
		}
		result, err := entry.hierarchy.LoadGeoJSON(data, opts.Import)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		entry.saved = saved
		entry.log.Debug("loaded entry", zap.Int("objects", result.Added))
	}

	entry.readonly = opts.Readonly
	entry.unsubscribe = entry.hierarchy.Subscribe(func() { entry.changed = true })
	return entry, nil
}

// Name returns the entry name.
func (entry *Entry) Name() string { return entry.name }

// Hierarchy returns the object hierarchy of the image.
func (entry *Entry) Hierarchy() *hierarchy.Hierarchy { return entry.hierarchy }

// Readonly reports whether writes are rejected.
func (entry *Entry) Readonly() bool { return entry.readonly }

// SetReadonly toggles write access.
func (entry *Entry) SetReadonly(readonly bool) { entry.readonly = readonly }

// IsChanged reports whether the hierarchy changed since the last save point.
func (entry *Entry) IsChanged() bool { return entry.changed }

// Save writes the annotations and detections as a new save point.
// It fails with kvstore.ErrValueChanged when another writer saved the entry
// since it was opened.
func (entry *Entry) Save(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)
	if entry.readonly {
		return Error.New("entry %q is read-only", entry.name)
	}

	data, err := entry.hierarchy.ToGeoJSON(hierarchy.ExportOptions{
		Legacy:     entry.opts.Legacy,
		Detections: true,
	})
	if err != nil {
		return Error.Wrap(err)
	}
	if entry.opts.Compress {
		data, err = compress(data)
		if err != nil {
			return err
		}
	}

	if err := entry.store.CompareAndSwap(ctx, DataKey(entry.name), entry.saved, data); err != nil {
		return Error.Wrap(err)
	}
	mon.IntVal("saved_bytes").Observe(int64(len(data)))
	entry.log.Debug("saved entry", zap.Int("objects", entry.hierarchy.Len()), zap.Int("bytes", len(data)))

	entry.saved = data
	entry.changed = false
	return nil
}

// Close releases the change subscription. Unsaved changes are dropped.
func (entry *Entry) Close() error {
	if entry.unsubscribe != nil {
		entry.unsubscribe()
		entry.unsubscribe = nil
	}
	if entry.changed {
		entry.log.Warn("closing entry with unsaved changes")
	}
	return nil
}

// String implements fmt.Stringer.
func (entry *Entry) String() string {
	return fmt.Sprintf("ImageEntry(name=%s, readonly=%t)", entry.name, entry.readonly)
}

// List returns the names of all entries in store, sorted.
func List(ctx context.Context, store kvstore.Store) (_ []string, err error) {
	defer mon.Task()(&ctx)(&err)

	var names []string
	err = store.Range(ctx, func(ctx context.Context, key kvstore.Key, _ kvstore.Value) error {
		segments := key.Segments()
		if len(segments) == 3 && segments[0] == prefix && segments[2] == "data" {
			names = append(names, segments[1])
		}
		return nil
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the save point of name.
func Delete(ctx context.Context, store kvstore.Store, name string) (err error) {
	defer mon.Task()(&ctx)(&err)
	return Error.Wrap(store.Delete(ctx, DataKey(name)))
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { _ = enc.Close() }()
	return enc.EncodeAll(data, nil), nil
}

// decode returns the GeoJSON of a save point, decompressing it when needed.
func decode(value kvstore.Value) ([]byte, error) {
	if !bytes.HasPrefix(value, zstdMagic) {
		return value, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer dec.Close()
	data, err := dec.DecodeAll(value, nil)
	return data, Error.Wrap(err)
}
