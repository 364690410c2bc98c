// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package testsuite

import (
	"annostore.io/annostore/internal/testcontext"
	"annostore.io/annostore/private/kvstore"
)

func newItem(key, value string) kvstore.Item {
	return kvstore.Item{
		Key:   kvstore.Key(key),
		Value: kvstore.Value(value),
	}
}

func cleanupItems(ctx *testcontext.Context, store kvstore.Store, items []kvstore.Item) {
	for _, item := range items {
		_ = store.Delete(ctx, item.Key)
	}
}
