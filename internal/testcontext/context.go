// Copyright (C) 2018 Storj Labs, Inc.
// See LICENSE for copying information.

// Package testcontext implements a test context with a scratch directory
// and goroutine tracking.
package testcontext

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds every test context.
const DefaultTimeout = 3 * time.Minute

// Context is a context.Context bound to a test. Goroutines started with Go
// are waited for and checked in Cleanup.
type Context struct {
	context.Context

	test   testing.TB
	cancel context.CancelFunc
	group  *errgroup.Group

	dirOnce sync.Once
	dir     string
}

// New creates a context for test with DefaultTimeout.
func New(test testing.TB) *Context {
	return NewWithTimeout(test, DefaultTimeout)
}

// NewWithTimeout creates a context for test that is canceled after timeout.
func NewWithTimeout(test testing.TB, timeout time.Duration) *Context {
	parent, cancel := context.WithTimeout(context.Background(), timeout)
	group, ctx := errgroup.WithContext(parent)
	return &Context{
		Context: ctx,
		test:    test,
		cancel:  cancel,
		group:   group,
	}
}

// Go runs fn in a goroutine. Its error fails the test in Cleanup.
func (ctx *Context) Go(fn func() error) {
	ctx.test.Helper()
	ctx.group.Go(fn)
}

// Wait blocks until the goroutines started with Go return and fails the
// test when one of them returned an error.
func (ctx *Context) Wait() {
	ctx.test.Helper()
	if err := ctx.group.Wait(); err != nil {
		ctx.test.Fatal(err)
	}
}

// Check fails the test when fn returns an error. It is meant for deferred
// Close calls.
func (ctx *Context) Check(fn func() error) {
	ctx.test.Helper()
	if err := fn(); err != nil {
		ctx.test.Fatal(err)
	}
}

// Dir returns a directory below the scratch directory, creating it.
func (ctx *Context) Dir(elem ...string) string {
	ctx.test.Helper()

	ctx.dirOnce.Do(func() { ctx.dir = ctx.test.TempDir() })

	dir := filepath.Join(append([]string{ctx.dir}, elem...)...)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		ctx.test.Fatal(err)
	}
	return dir
}

// File returns the path of a file below the scratch directory. Parent
// directories are created, the file is not.
func (ctx *Context) File(elem ...string) string {
	ctx.test.Helper()
	if len(elem) == 0 {
		ctx.test.Fatal("File needs at least one path element")
	}
	return filepath.Join(ctx.Dir(elem[:len(elem)-1]...), elem[len(elem)-1])
}

// Cleanup waits for the goroutines started with Go and cancels the
// context. The scratch directory is removed by the testing package.
func (ctx *Context) Cleanup() {
	ctx.test.Helper()
	defer ctx.cancel()

	if err := ctx.group.Wait(); err != nil {
		ctx.test.Fatal(err)
	}
}
