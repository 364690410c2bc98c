// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package imageentry_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"annostore.io/annostore/internal/testcontext"
	"annostore.io/annostore/pkg/annoterr"
	"annostore.io/annostore/pkg/imageentry"
	"annostore.io/annostore/pkg/measurement"
	"annostore.io/annostore/pkg/pathclass"
	"annostore.io/annostore/pkg/pathobject"
	"annostore.io/annostore/private/kvstore"
	"annostore.io/annostore/private/kvstore/teststore"
)

func square(offset float64) orb.Polygon {
	return orb.Polygon{{
		{offset, offset}, {offset + 10, offset}, {offset + 10, offset + 10}, {offset, offset + 10}, {offset, offset},
	}}
}

func TestSaveAndReopen(t *testing.T) {
	for _, compress := range []bool{false, true} {
		ctx := testcontext.New(t)
		log := zaptest.NewLogger(t)
		store := teststore.New()
		registry := pathclass.NewRegistry()
		opts := imageentry.Options{Compress: compress, Registry: registry}

		entry, err := imageentry.Open(ctx, log, store, "slide.svs", opts)
		require.NoError(t, err)
		assert.False(t, entry.IsChanged())
		assert.True(t, entry.Hierarchy().IsEmpty())

		tumor, err := registry.Create("Tumor", nil, nil)
		require.NoError(t, err)

		annotation, err := entry.Hierarchy().AddAnnotation(square(0), tumor, []measurement.Record{{Name: "area", Value: 100}}, math.NaN())
		require.NoError(t, err)
		_, err = entry.Hierarchy().AddDetection(square(20), nil, nil, math.NaN())
		require.NoError(t, err)
		assert.True(t, entry.IsChanged())

		require.NoError(t, entry.Save(ctx))
		assert.False(t, entry.IsChanged())
		require.NoError(t, entry.Close())

		saved, err := store.Get(ctx, imageentry.DataKey("slide.svs"))
		require.NoError(t, err)
		assert.Equal(t, compress, bytes.HasPrefix(saved, []byte{0x28, 0xb5, 0x2f, 0xfd}))

		reopened, err := imageentry.Open(ctx, log, store, "slide.svs", opts)
		require.NoError(t, err)
		assert.False(t, reopened.IsChanged())
		assert.Equal(t, 1, reopened.Hierarchy().Annotations().Len())
		assert.Equal(t, 1, reopened.Hierarchy().Detections().Len())

		loaded, err := reopened.Hierarchy().Annotations().At(0)
		require.NoError(t, err)
		assert.Equal(t, annotation.ID(), loaded.ID())
		assert.Same(t, tumor, loaded.PathClass())
		assert.Equal(t, 100.0, loaded.Measurements().Get("area"))
		require.NoError(t, reopened.Close())

		ctx.Cleanup()
	}
}

func TestSaveKeepsNesting(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := teststore.New()
	entry, err := imageentry.Open(ctx, nil, store, "slide.svs", imageentry.Options{Compress: true})
	require.NoError(t, err)
	region, err := entry.Hierarchy().AddAnnotation(square(0), nil, nil, math.NaN())
	require.NoError(t, err)
	cell, err := pathobject.FromGeometry(pathobject.KindDetection, square(2), nil, nil, math.NaN())
	require.NoError(t, err)
	require.NoError(t, entry.Hierarchy().AddChild(region, cell))
	require.NoError(t, entry.Save(ctx))

	reopened, err := imageentry.Open(ctx, nil, store, "slide.svs", imageentry.Options{})
	require.NoError(t, err)
	loadedCell, err := reopened.Hierarchy().Detections().At(0)
	require.NoError(t, err)
	require.NotNil(t, loadedCell.Parent())
	assert.Equal(t, region.ID(), loadedCell.Parent().ID())
	assert.Equal(t, cell.ID(), loadedCell.ID())
}

func TestReadonly(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := teststore.New()
	entry, err := imageentry.Open(ctx, zaptest.NewLogger(t), store, "slide.svs", imageentry.Options{Readonly: true})
	require.NoError(t, err)
	defer ctx.Check(entry.Close)

	assert.True(t, entry.Readonly())
	_, err = entry.Hierarchy().AddAnnotation(square(0), nil, nil, math.NaN())
	assert.True(t, annoterr.ErrPermission.Has(err))
	assert.True(t, imageentry.Error.Has(entry.Save(ctx)))

	entry.SetReadonly(false)
	_, err = entry.Hierarchy().AddAnnotation(square(0), nil, nil, math.NaN())
	require.NoError(t, err)
	require.NoError(t, entry.Save(ctx))
	assert.Equal(t, "ImageEntry(name=slide.svs, readonly=false)", entry.String())
}

func TestReadonlyEntryStillLoads(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := teststore.New()
	writer, err := imageentry.Open(ctx, nil, store, "slide.svs", imageentry.Options{})
	require.NoError(t, err)
	_, err = writer.Hierarchy().AddAnnotation(square(0), nil, nil, math.NaN())
	require.NoError(t, err)
	require.NoError(t, writer.Save(ctx))

	reader, err := imageentry.Open(ctx, nil, store, "slide.svs", imageentry.Options{Readonly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, reader.Hierarchy().Len())
}

func TestConcurrentSave(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	server := miniredis.RunT(t)
	for _, address := range []string{"mem://", "redis://" + server.Addr()} {
		store, err := imageentry.OpenStore(ctx, zaptest.NewLogger(t), address, "")
		require.NoError(t, err, address)
		defer ctx.Check(store.Close)

		entries := make([]*imageentry.Entry, 2)
		for i := range entries {
			entries[i], err = imageentry.Open(ctx, nil, store, "slide.svs", imageentry.Options{})
			require.NoError(t, err, address)
			_, err = entries[i].Hierarchy().AddAnnotation(square(float64(i)), nil, nil, math.NaN())
			require.NoError(t, err, address)
		}

		// the writer losing the race must see ErrValueChanged and nothing else
		saved := make([]bool, len(entries))
		for i, entry := range entries {
			i, entry := i, entry
			ctx.Go(func() error {
				err := entry.Save(ctx)
				if kvstore.ErrValueChanged.Has(err) {
					return nil
				}
				saved[i] = err == nil
				return err
			})
		}
		ctx.Wait()

		require.NotEqual(t, saved[0], saved[1], address)
		winner, loser := entries[0], entries[1]
		if saved[1] {
			winner, loser = loser, winner
		}
		assert.False(t, winner.IsChanged(), address)
		assert.True(t, loser.IsChanged(), address)

		reopened, err := imageentry.Open(ctx, nil, store, "slide.svs", imageentry.Options{})
		require.NoError(t, err, address)
		assert.Equal(t, 1, reopened.Hierarchy().Len(), address)
		stored, err := reopened.Hierarchy().Annotations().At(0)
		require.NoError(t, err)
		want, err := winner.Hierarchy().Annotations().At(0)
		require.NoError(t, err)
		assert.Equal(t, want.ID(), stored.ID(), address)
	}
}

func TestListAndDelete(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	store := teststore.New()
	require.NoError(t, store.Put(ctx, kvstore.Key("unrelated"), kvstore.Value("x")))
	for _, name := range []string{"b.svs", "a.svs"} {
		entry, err := imageentry.Open(ctx, nil, store, name, imageentry.Options{})
		require.NoError(t, err)
		require.NoError(t, entry.Save(ctx))
	}

	names, err := imageentry.List(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.svs", "b.svs"}, names)

	require.NoError(t, imageentry.Delete(ctx, store, "a.svs"))
	names, err = imageentry.List(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.svs"}, names)

	assert.True(t, kvstore.ErrKeyNotFound.Has(imageentry.Delete(ctx, store, "a.svs")))
}

func TestInvalidName(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	for _, name := range []string{"", "a/b"} {
		_, err := imageentry.Open(ctx, nil, teststore.New(), name, imageentry.Options{})
		assert.True(t, imageentry.Error.Has(err), name)
	}
}

func TestOpenStore(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()
	log := zaptest.NewLogger(t)

	server := miniredis.RunT(t)

	for _, address := range []string{
		"mem://",
		"bolt://" + ctx.File("entries.db"),
		"redis://" + server.Addr() + "?db=1",
	} {
		store, err := imageentry.OpenStore(ctx, log, address, "")
		require.NoError(t, err, address)

		entry, err := imageentry.Open(ctx, log, store, "slide.svs", imageentry.Options{Compress: true})
		require.NoError(t, err, address)
		_, err = entry.Hierarchy().AddAnnotation(square(0), nil, nil, math.NaN())
		require.NoError(t, err)
		require.NoError(t, entry.Save(ctx), address)

		names, err := imageentry.List(ctx, store)
		require.NoError(t, err)
		assert.Equal(t, []string{"slide.svs"}, names, address)

		require.NoError(t, store.Close())
	}

	for _, address := range []string{"ftp://host", "bolt://", "redis://" + server.Addr() + "?db=x"} {
		_, err := imageentry.OpenStore(ctx, log, address, "")
		assert.True(t, imageentry.Error.Has(err), address)
	}
}
