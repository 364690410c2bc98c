// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package redis implements kvstore.Store on top of a redis server.
package redis

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"annostore.io/annostore/private/kvstore"
)

var (
	// Error is a redis error.
	Error = errs.Class("redis")

	mon = monkit.Package()
)

// scanBatch is the SCAN count hint used by Range.
const scanBatch = 256

// Options configures a Client.
type Options struct {
	Address  string
	Password string
	DB       int
	// Namespace is prepended to every key so several stores can share a db.
	Namespace string
	// TTL expires saved values; zero keeps them forever.
	TTL time.Duration
}

// Client is a kvstore.Store backed by redis.
type Client struct {
	db        *redis.Client
	namespace string
	ttl       time.Duration
}

var _ kvstore.Store = (*Client)(nil)

// Open connects to redis and checks the connection with a ping.
func Open(ctx context.Context, opts Options) (*Client, error) {
	db := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := db.Ping(ctx).Err(); err != nil {
		return nil, errs.Combine(Error.New("ping %s: %v", opts.Address, err), db.Close())
	}
	return &Client{db: db, namespace: opts.Namespace, ttl: opts.TTL}, nil
}

// ParseURL parses redis://host:port?db=N&password=P&namespace=S&ttl=D.
func ParseURL(address string) (Options, error) {
	u, err := url.Parse(address)
	if err != nil {
		return Options{}, Error.Wrap(err)
	}
	if u.Scheme != "redis" {
		return Options{}, Error.New("%q is not a redis:// address", address)
	}

	query := u.Query()
	opts := Options{
		Address:   u.Host,
		Password:  query.Get("password"),
		Namespace: query.Get("namespace"),
	}
	if s := query.Get("db"); s != "" {
		if opts.DB, err = strconv.Atoi(s); err != nil {
			return Options{}, Error.New("invalid db %q", s)
		}
	}
	if s := query.Get("ttl"); s != "" {
		if opts.TTL, err = time.ParseDuration(s); err != nil {
			return Options{}, Error.New("invalid ttl %q", s)
		}
	}
	return opts, nil
}

// OpenURL parses address with ParseURL and opens the client.
func OpenURL(ctx context.Context, address string) (*Client, error) {
	opts, err := ParseURL(address)
	if err != nil {
		return nil, err
	}
	return Open(ctx, opts)
}

func (client *Client) key(key kvstore.Key) string {
	return client.namespace + string(key)
}

// Put stores value under key.
func (client *Client) Put(ctx context.Context, key kvstore.Key, value kvstore.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}
	return client.set(ctx, client.db, key, value)
}

// Get returns the value of key.
func (client *Client) Get(ctx context.Context, key kvstore.Key) (_ kvstore.Value, err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return nil, kvstore.ErrEmptyKey.New("")
	}
	return client.get(ctx, client.db, key)
}

// Delete removes key.
func (client *Client) Delete(ctx context.Context, key kvstore.Key) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}
	removed, err := client.db.Del(ctx, client.key(key)).Result()
	if err != nil {
		return Error.Wrap(err)
	}
	if removed == 0 {
		return kvstore.ErrKeyNotFound.New("%q", key)
	}
	return nil
}

// Range calls fn for every key of the namespace in key order. Keys removed
// while scanning are skipped.
func (client *Client) Range(ctx context.Context, fn func(context.Context, kvstore.Key, kvstore.Value) error) (err error) {
	defer mon.Task()(&ctx)(&err)

	seen := map[string]struct{}{}
	var keys []string
	it := client.db.Scan(ctx, 0, client.namespace+"*", scanBatch).Iterator()
	for it.Next(ctx) {
		// SCAN may return a key more than once.
		if _, ok := seen[it.Val()]; ok {
			continue
		}
		seen[it.Val()] = struct{}{}
		keys = append(keys, it.Val())
	}
	if err := it.Err(); err != nil {
		return Error.Wrap(err)
	}
	sort.Strings(keys)

	for _, full := range keys {
		key := kvstore.Key(full[len(client.namespace):])
		value, err := client.get(ctx, client.db, key)
		if kvstore.ErrKeyNotFound.Has(err) {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// CompareAndSwap replaces oldValue with newValue inside a WATCH transaction.
func (client *Client) CompareAndSwap(ctx context.Context, key kvstore.Key, oldValue, newValue kvstore.Value) (err error) {
	defer mon.Task()(&ctx)(&err)
	if key.IsZero() {
		return kvstore.ErrEmptyKey.New("")
	}

	swap := func(tx *redis.Tx) error {
		current, err := client.get(ctx, tx, key)
		switch {
		case kvstore.ErrKeyNotFound.Has(err):
			if oldValue != nil {
				return err
			}
		case err != nil:
			return err
		case oldValue == nil || !bytes.Equal(current, oldValue):
			return kvstore.ErrValueChanged.New("%q", key)
		}

		// the pipeline only runs when the watched key is unchanged
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if newValue == nil {
				return pipe.Del(ctx, client.key(key)).Err()
			}
			return client.set(ctx, pipe, key, newValue)
		})
		return err
	}

	err = client.db.Watch(ctx, swap, client.key(key))
	switch {
	case errors.Is(err, redis.TxFailedErr):
		return kvstore.ErrValueChanged.New("%q", key)
	case kvstore.ErrKeyNotFound.Has(err), kvstore.ErrValueChanged.Has(err):
		return err
	default:
		return Error.Wrap(err)
	}
}

// FlushDB deletes every key of the selected db, including other namespaces.
func (client *Client) FlushDB(ctx context.Context) error {
	return Error.Wrap(client.db.FlushDB(ctx).Err())
}

// Close closes the connection pool.
func (client *Client) Close() error {
	return Error.Wrap(client.db.Close())
}

func (client *Client) get(ctx context.Context, cmd redis.Cmdable, key kvstore.Key) (kvstore.Value, error) {
	value, err := cmd.Get(ctx, client.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kvstore.ErrKeyNotFound.New("%q", key)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return value, nil
}

func (client *Client) set(ctx context.Context, cmd redis.Cmdable, key kvstore.Key, value kvstore.Value) error {
	return Error.Wrap(cmd.Set(ctx, client.key(key), []byte(value), client.ttl).Err())
}
