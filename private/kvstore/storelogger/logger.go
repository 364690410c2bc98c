// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package storelogger wraps a kvstore.Store and logs every call.
package storelogger

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"annostore.io/annostore/private/kvstore"
)

var ids int64

// Logger is a kvstore.Store logging every call at debug level and every
// failure other than a missing key at warn level.
type Logger struct {
	log   *zap.Logger
	store kvstore.Store
}

var _ kvstore.Store = (*Logger)(nil)

// New wraps store. Each wrapper gets its own id so interleaved stores can
// be told apart in the log.
func New(log *zap.Logger, store kvstore.Store) *Logger {
	id := atomic.AddInt64(&ids, 1)
	return &Logger{
		log:   log.Named("kvstore").With(zap.Int64("store", id)),
		store: store,
	}
}

// Put implements kvstore.Store.
func (logger *Logger) Put(ctx context.Context, key kvstore.Key, value kvstore.Value) error {
	return logger.call("Put", key, func() error {
		return logger.store.Put(ctx, key, value)
	}, zap.Int("size", len(value)))
}

// Get implements kvstore.Store.
func (logger *Logger) Get(ctx context.Context, key kvstore.Key) (value kvstore.Value, err error) {
	err = logger.call("Get", key, func() error {
		value, err = logger.store.Get(ctx, key)
		return err
	})
	return value, err
}

// Delete implements kvstore.Store.
func (logger *Logger) Delete(ctx context.Context, key kvstore.Key) error {
	return logger.call("Delete", key, func() error {
		return logger.store.Delete(ctx, key)
	})
}

// Range implements kvstore.Store.
func (logger *Logger) Range(ctx context.Context, fn func(context.Context, kvstore.Key, kvstore.Value) error) error {
	visited := 0
	err := logger.store.Range(ctx, func(ctx context.Context, key kvstore.Key, value kvstore.Value) error {
		visited++
		return fn(ctx, key, value)
	})
	logger.log.Debug("Range", zap.Int("items", visited), zap.Error(err))
	return err
}

// CompareAndSwap implements kvstore.Store.
func (logger *Logger) CompareAndSwap(ctx context.Context, key kvstore.Key, oldValue, newValue kvstore.Value) error {
	return logger.call("CompareAndSwap", key, func() error {
		return logger.store.CompareAndSwap(ctx, key, oldValue, newValue)
	}, zap.Bool("create", oldValue == nil), zap.Bool("delete", newValue == nil), zap.Int("size", len(newValue)))
}

// Close implements kvstore.Store.
func (logger *Logger) Close() error {
	err := logger.store.Close()
	logger.log.Debug("Close", zap.Error(err))
	return err
}

func (logger *Logger) call(op string, key kvstore.Key, fn func() error, fields ...zap.Field) error {
	fields = append(fields, zap.Stringer("key", key))
	logger.log.Debug(op, fields...)

	err := fn()
	if err != nil && !kvstore.ErrKeyNotFound.Has(err) {
		logger.log.Warn(op+" failed", append(fields, zap.Error(err))...)
	}
	return err
}
