// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

// Package kvstore defines the key/value store image entries keep their
// save points in, and the key layout shared by the backends.
package kvstore

import (
	"bytes"
	"context"
	"strings"

	"github.com/zeebo/errs"
)

// Delimiter separates the segments of a key, e.g. entries/slide.svs/data.
const Delimiter = '/'

var (
	// ErrKeyNotFound is returned when a key has no value.
	ErrKeyNotFound = errs.Class("key not found")

	// ErrEmptyKey is returned for a zero length key.
	ErrEmptyKey = errs.Class("empty key")

	// ErrValueChanged is returned by CompareAndSwap when the stored value
	// is not the expected one.
	ErrValueChanged = errs.Class("value changed")
)

type (
	// Key addresses a value.
	Key []byte
	// Value is an opaque blob.
	Value []byte
)

// Item pairs a key with its value.
type Item struct {
	Key   Key
	Value Value
}

// Store is a key/value store. Implementations are safe for concurrent use.
type Store interface {
	Put(ctx context.Context, key Key, value Value) error
	// Get fails with ErrKeyNotFound when key has no value.
	Get(ctx context.Context, key Key) (Value, error)
	// Delete fails with ErrKeyNotFound when key has no value.
	Delete(ctx context.Context, key Key) error
	// Range calls fn for every item. Key and value must not be retained
	// after fn returns.
	Range(ctx context.Context, fn func(context.Context, Key, Value) error) error
	// CompareAndSwap replaces oldValue with newValue atomically. A nil
	// oldValue means the key must not exist; a nil newValue deletes the key.
	CompareAndSwap(ctx context.Context, key Key, oldValue, newValue Value) error
	Close() error
}

// JoinKey joins segments with Delimiter.
func JoinKey(segments ...string) Key {
	return Key(strings.Join(segments, string(Delimiter)))
}

// Segments splits key at Delimiter.
func (key Key) Segments() []string {
	return strings.Split(string(key), string(Delimiter))
}

// IsZero reports whether key is empty.
func (key Key) IsZero() bool { return len(key) == 0 }

// HasPrefix reports whether key starts with prefix.
func (key Key) HasPrefix(prefix Key) bool { return bytes.HasPrefix(key, prefix) }

// Less orders keys bytewise.
func (key Key) Less(other Key) bool { return bytes.Compare(key, other) < 0 }

func (key Key) String() string { return string(key) }

// CloneValue copies value so it can outlive a Range callback.
func CloneValue(value Value) Value {
	if value == nil {
		return nil
	}
	return append(Value{}, value...)
}
