// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package teststore implements an in-memory kvstore.Store.
package teststore

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/spacemonkeygo/monkit/v3"

	"annostore.io/annostore/private/kvstore"
)

var mon = monkit.Package()

// Client implements in-memory key value store.
type Client struct {
	mu     sync.Mutex
	items  map[string]kvstore.Value
	closed bool

	CallCount struct {
		Get            int
		Put            int
		Delete         int
		Range          int
		CompareAndSwap int
		Close          int
	}
}

var _ kvstore.Store = (*Client)(nil)

// New creates a new in-memory key-value store.
func New() *Client {
	return &Client{items: map[string]kvstore.Value{}}
}

// Put adds a value to store.
func (store *Client) Put(ctx context.Context, key kvstore.Key, value kvstore.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Put++
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}
	store.items[string(key)] = kvstore.CloneValue(value)
	return nil
}

// Get gets a value to store.
func (store *Client) Get(ctx context.Context, key kvstore.Key) (_ kvstore.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Get++
	if key.IsZero() {
		return nil, kvstore.ErrEmptyKey.New("")
	}
	value, ok := store.items[string(key)]
	if !ok {
		return nil, kvstore.ErrKeyNotFound.New("%q", key)
	}
	return kvstore.CloneValue(value), nil
}

// Delete deletes key and the value.
func (store *Client) Delete(ctx context.Context, key kvstore.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Delete++
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}
	if _, ok := store.items[string(key)]; !ok {
		return kvstore.ErrKeyNotFound.New("%q", key)
	}
	delete(store.items, string(key))
	return nil
}

// Range iterates over all items in key order.
func (store *Client) Range(ctx context.Context, fn func(context.Context, kvstore.Key, kvstore.Value) error) (err error) {
	defer mon.Task()(&ctx)(&err)
	store.mu.Lock()
	store.CallCount.Range++
	items := make([]kvstore.Item, 0, len(store.items))
	for key, value := range store.items {
		items = append(items, kvstore.Item{Key: kvstore.Key(key), Value: kvstore.CloneValue(value)})
	}
	store.mu.Unlock()

	sort.Slice(items, func(i, k int) bool { return items[i].Key.Less(items[k].Key) })
	for _, item := range items {
		if err := fn(ctx, item.Key, item.Value); err != nil {
			return err
		}
	}
	return nil
}

// CompareAndSwap atomically compares and swaps oldValue with newValue.
func (store *Client) CompareAndSwap(ctx context.Context, key kvstore.Key, oldValue, newValue kvstore.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.CompareAndSwap++
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}

	value, ok := store.items[string(key)]
	if !ok {
		if oldValue != nil {
			return kvstore.ErrKeyNotFound.New("%q", key)
		}
		if newValue != nil {
			store.items[string(key)] = kvstore.CloneValue(newValue)
		}
		return nil
	}

	if oldValue == nil || !bytes.Equal(value, oldValue) {
		return kvstore.ErrValueChanged.New("%q", key)
	}
	if newValue == nil {
		delete(store.items, string(key))
		return nil
	}
	store.items[string(key)] = kvstore.CloneValue(newValue)
	return nil
}

// Close closes the store.
func (store *Client) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.CallCount.Close++
	store.closed = true
	return nil
}
