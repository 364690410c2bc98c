// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

// Package boltdb implements kvstore.Store on top of a bolt database file.
package boltdb

import (
	"bytes"
	"context"
	"time"

	"github.com/boltdb/bolt"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"annostore.io/annostore/private/kvstore"
)

var (
	// Error is a boltdb error.
	Error = errs.Class("boltdb")

	mon = monkit.Package()
)

var defaultTimeout = 1 * time.Second

const (
	// fileMode sets permissions so owner can read and write
	fileMode = 0600

	// DefaultBucket is the bucket used when none is given.
	DefaultBucket = "annostore"
)

// Client is a kvstore.Store backed by a single bolt bucket.
type Client struct {
	log    *zap.Logger
	db     *bolt.DB
	Path   string
	Bucket []byte
}

var _ kvstore.Store = (*Client)(nil)

// New opens or creates the database at path and the bucket inside it.
func New(log *zap.Logger, path, bucket string) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if bucket == "" {
		bucket = DefaultBucket
	}

	db, err := bolt.Open(path, fileMode, &bolt.Options{Timeout: defaultTimeout})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		return nil, errs.Combine(Error.Wrap(err), db.Close())
	}

	log.Debug("opened bolt store", zap.String("path", path), zap.String("bucket", bucket))
	return &Client{
		log:    log,
		db:     db,
		Path:   path,
		Bucket: []byte(bucket),
	}, nil
}

// Put adds a value to store.
func (client *Client) Put(ctx context.Context, key kvstore.Key, value kvstore.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}
	return client.update(func(bucket *bolt.Bucket) error {
		return bucket.Put(key, nonNil(value))
	})
}

// Get gets a value to store.
func (client *Client) Get(ctx context.Context, key kvstore.Key) (_ kvstore.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return nil, kvstore.ErrEmptyKey.New("")
	}

	var value kvstore.Value
	err = client.view(func(bucket *bolt.Bucket) error {
		data := bucket.Get(key)
		if data == nil {
			return kvstore.ErrKeyNotFound.New("%q", key)
		}
		value = kvstore.CloneValue(data)
		return nil
	})
	return value, err
}

// Delete deletes key and the value.
func (client *Client) Delete(ctx context.Context, key kvstore.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}
	return client.update(func(bucket *bolt.Bucket) error {
		if bucket.Get(key) == nil {
			return kvstore.ErrKeyNotFound.New("%q", key)
		}
		return bucket.Delete(key)
	})
}

// Range iterates over all items in key order.
func (client *Client) Range(ctx context.Context, fn func(context.Context, kvstore.Key, kvstore.Value) error) (err error) {
	defer mon.Task()(&ctx)(&err)
	return client.view(func(bucket *bolt.Bucket) error {
		return bucket.ForEach(func(key, value []byte) error {
			return fn(ctx, key, value)
		})
	})
}

// CompareAndSwap atomically compares and swaps oldValue with newValue.
func (client *Client) CompareAndSwap(ctx context.Context, key kvstore.Key, oldValue, newValue kvstore.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}

	return client.update(func(bucket *bolt.Bucket) error {
		value := bucket.Get(key)
		if value == nil {
			if oldValue != nil {
				return kvstore.ErrKeyNotFound.New("%q", key)
			}
			if newValue == nil {
				return nil
			}
			return bucket.Put(key, newValue)
		}

		if oldValue == nil || !bytes.Equal(value, oldValue) {
			return kvstore.ErrValueChanged.New("%q", key)
		}
		if newValue == nil {
			return bucket.Delete(key)
		}
		return bucket.Put(key, newValue)
	})
}

// Close closes a BoltDB client.
func (client *Client) Close() error {
	return Error.Wrap(client.db.Close())
}

func (client *Client) update(fn func(*bolt.Bucket) error) error {
	return client.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(client.Bucket))
	})
}

func (client *Client) view(fn func(*bolt.Bucket) error) error {
	return client.db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(client.Bucket))
	})
}

// nonNil keeps empty values distinguishable from missing keys, bolt
// returns nil for both otherwise.
func nonNil(value kvstore.Value) kvstore.Value {
	if value == nil {
		return kvstore.Value{}
	}
	return value
}
