// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package testsuite contains the behavior every kvstore.Store must have.
package testsuite

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annostore.io/annostore/internal/testcontext"
	"annostore.io/annostore/private/kvstore"
)

// RunTests runs the common store tests against store. The store must be empty.
func RunTests(t *testing.T, store kvstore.Store) {
	t.Run("CRUD", func(t *testing.T) { testCRUD(t, store) })
	t.Run("EmptyKey", func(t *testing.T) { testEmptyKey(t, store) })
	t.Run("Range", func(t *testing.T) { testRange(t, store) })
	t.Run("CompareAndSwap", func(t *testing.T) { testCompareAndSwap(t, store) })
}

func testCRUD(t *testing.T, store kvstore.Store) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	items := []kvstore.Item{
		newItem("entries/a/data", "alpha"),
		newItem("entries/b/data", "beta"),
		newItem("entries/c/data", ""),
	}
	defer cleanupItems(ctx, store, items)

	for _, item := range items {
		require.NoError(t, store.Put(ctx, item.Key, item.Value))
	}
	for _, item := range items {
		value, err := store.Get(ctx, item.Key)
		require.NoError(t, err)
		assert.Equal(t, string(item.Value), string(value))
	}

	require.NoError(t, store.Put(ctx, items[0].Key, kvstore.Value("gamma")))
	value, err := store.Get(ctx, items[0].Key)
	require.NoError(t, err)
	assert.Equal(t, "gamma", string(value))

	require.NoError(t, store.Delete(ctx, items[1].Key))
	_, err = store.Get(ctx, items[1].Key)
	assert.True(t, kvstore.ErrKeyNotFound.Has(err), "%v", err)

	_, err = store.Get(ctx, kvstore.Key("missing"))
	assert.True(t, kvstore.ErrKeyNotFound.Has(err), "%v", err)
}

func testEmptyKey(t *testing.T, store kvstore.Store) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	assert.True(t, kvstore.ErrEmptyKey.Has(store.Put(ctx, nil, kvstore.Value("x"))))
	_, err := store.Get(ctx, nil)
	assert.True(t, kvstore.ErrEmptyKey.Has(err))
	assert.True(t, kvstore.ErrEmptyKey.Has(store.Delete(ctx, nil)))
	assert.True(t, kvstore.ErrEmptyKey.Has(store.CompareAndSwap(ctx, nil, nil, kvstore.Value("x"))))
}

func testRange(t *testing.T, store kvstore.Store) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	items := []kvstore.Item{
		newItem("range/1", "one"),
		newItem("range/2", "two"),
		newItem("range/3", "three"),
	}
	defer cleanupItems(ctx, store, items)
	for _, item := range items {
		require.NoError(t, store.Put(ctx, item.Key, item.Value))
	}

	var got []kvstore.Item
	require.NoError(t, store.Range(ctx, func(_ context.Context, key kvstore.Key, value kvstore.Value) error {
		if key.HasPrefix(kvstore.Key("range/")) {
			got = append(got, kvstore.Item{Key: append(kvstore.Key{}, key...), Value: kvstore.CloneValue(value)})
		}
		return nil
	}))
	sort.Slice(got, func(i, k int) bool { return got[i].Key.Less(got[k].Key) })
	assert.Equal(t, items, got)
}

func testCompareAndSwap(t *testing.T, store kvstore.Store) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	key := kvstore.Key("cas/key")
	defer cleanupItems(ctx, store, []kvstore.Item{{Key: key}})

	// create when absent
	require.NoError(t, store.CompareAndSwap(ctx, key, nil, kvstore.Value("v1")))
	err := store.CompareAndSwap(ctx, key, nil, kvstore.Value("v2"))
	assert.True(t, kvstore.ErrValueChanged.Has(err), "%v", err)

	// swap when equal
	require.NoError(t, store.CompareAndSwap(ctx, key, kvstore.Value("v1"), kvstore.Value("v2")))
	err = store.CompareAndSwap(ctx, key, kvstore.Value("v1"), kvstore.Value("v3"))
	assert.True(t, kvstore.ErrValueChanged.Has(err), "%v", err)

	value, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(value))

	// delete when equal
	require.NoError(t, store.CompareAndSwap(ctx, key, kvstore.Value("v2"), nil))
	_, err = store.Get(ctx, key)
	assert.True(t, kvstore.ErrKeyNotFound.Has(err))

	err = store.CompareAndSwap(ctx, key, kvstore.Value("v2"), kvstore.Value("v3"))
	assert.True(t, kvstore.ErrKeyNotFound.Has(err), "%v", err)

	// nothing to do
	require.NoError(t, store.CompareAndSwap(ctx, key, nil, nil))
}
