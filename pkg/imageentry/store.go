// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package imageentry

import (
	"context"
	"net/url"
	"path/filepath"

	"go.uber.org/zap"

	"annostore.io/annostore/private/kvstore"
	"annostore.io/annostore/private/kvstore/boltdb"
	"annostore.io/annostore/private/kvstore/redis"
	"annostore.io/annostore/private/kvstore/storelogger"
	"annostore.io/annostore/private/kvstore/teststore"
)

// OpenStore opens the save point store at address:
//
//	mem://                     in-memory, lost on close
//	bolt://path/to/file.db     bolt database file, bucket selects the bucket
//	redis://host:port?db=N     redis server, see redis.ParseURL
//
// Every call on the returned store is logged at debug level.
func OpenStore(ctx context.Context, log *zap.Logger, address, bucket string) (_ kvstore.Store, err error) {
	defer mon.Task()(&ctx)(&err)
	if log == nil {
		log = zap.NewNop()
	}

	u, err := url.Parse(address)
	if err != nil {
		return nil, Error.New("invalid store address %q: %v", address, err)
	}

	var store kvstore.Store
	switch u.Scheme {
	case "mem":
		store = teststore.New()
	case "bolt":
		path := filepath.FromSlash(u.Host + u.Path)
		if path == "" {
			return nil, Error.New("bolt address %q is missing a path", address)
		}
		store, err = boltdb.New(log.Named("boltdb"), path, bucket)
	case "redis":
		store, err = redis.OpenURL(ctx, address)
	default:
		return nil, Error.New("unsupported store scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}

	log.Debug("opened store", zap.String("scheme", u.Scheme))
	return storelogger.New(log, store), nil
}
