// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annostore.io/annostore/internal/logging"
	"annostore.io/annostore/internal/testcontext"
)

func TestValidate(t *testing.T) {
	require.NoError(t, logging.Defaults().Validate())

	config := logging.Defaults()
	config.Level = "loud"
	assert.True(t, logging.Error.Has(config.Validate()))

	config = logging.Defaults()
	config.Encoding = "xml"
	assert.True(t, logging.Error.Has(config.Validate()))

	_, err := logging.New(config)
	assert.Error(t, err)
}

func TestNewWritesToFile(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	path := ctx.File("log", "annostore.log")
	config := logging.Defaults()
	config.Encoding = "json"
	config.Level = "debug"
	config.Output = path

	log, err := logging.New(config)
	require.NoError(t, err)
	log.Debug("hello")
	_ = log.Sync()

	data, err := os.ReadFile(filepath.Clean(path))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"M":"hello"`)
}
