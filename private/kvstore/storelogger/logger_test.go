// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package storelogger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"annostore.io/annostore/internal/testcontext"
	"annostore.io/annostore/private/kvstore"
	"annostore.io/annostore/private/kvstore/testsuite"
	"annostore.io/annostore/private/kvstore/teststore"
)

func TestSuite(t *testing.T) {
	testsuite.RunTests(t, New(zaptest.NewLogger(t), teststore.New()))
}

func TestLogsFailures(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	core, logs := observer.New(zap.DebugLevel)
	store := New(zap.New(core), teststore.New())

	require.NoError(t, store.Put(ctx, kvstore.Key("a"), kvstore.Value("1")))
	_, err := store.Get(ctx, kvstore.Key("missing"))
	require.True(t, kvstore.ErrKeyNotFound.Has(err))
	err = store.CompareAndSwap(ctx, kvstore.Key("a"), kvstore.Value("2"), nil)
	require.True(t, kvstore.ErrValueChanged.Has(err))

	assert.Equal(t, 1, logs.FilterMessage("Put").Len())
	assert.Equal(t, 1, logs.FilterMessage("Get").Len())
	assert.Zero(t, logs.FilterMessage("Get failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("CompareAndSwap failed").Len())
}
