// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annostore.io/annostore/internal/config"
	"annostore.io/annostore/internal/testcontext"
)

const fixture = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "id": "PathAnnotationObject",
      "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [10, 0], [10, 10], [0, 10], [0, 0]]]},
      "properties": {"classification": {"name": "Tumor", "colorRGB": -3670016}, "isLocked": false, "measurements": []}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Polygon", "coordinates": [[[20, 20], [30, 20], [30, 30], [20, 30], [20, 20]]]},
      "properties": {"object_type": "detection"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Polygon", "coordinates": "broken"},
      "properties": {"classification": {"name": "Stroma"}}
    }
  ]
}`

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestImportListExport(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	input := ctx.File("input.geojson")
	require.NoError(t, os.WriteFile(input, []byte(fixture), 0o644))

	common := []string{
		"--config", ctx.File(config.FileName),
		"--store.url", "bolt://" + ctx.File("entries.db"),
	}

	out, err := run(t, append([]string{"import", "slide.svs", input}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "added 2 objects to slide.svs")
	assert.Contains(t, out, "skipped 1 Stroma")

	out, err = run(t, append([]string{"list"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "ENTRY")
	assert.Regexp(t, `slide\.svs\s+1\s+1`, out)

	out, err = run(t, append([]string{"export", "slide.svs", "--export.legacy"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, `"id":"PathAnnotationObject"`)
	assert.Contains(t, out, `"colorRGB":-3670016`)
	assert.NotContains(t, out, "PathDetectionObject")

	output := ctx.File("output.geojson")
	_, err = run(t, append([]string{"export", "slide.svs", output, "--detections"}, common...)...)
	require.NoError(t, err)
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"object_type":"detection"`)

	_, err = run(t, append([]string{"export", "missing.svs"}, common...)...)
	assert.Error(t, err)

	out, err = run(t, append([]string{"delete", "slide.svs"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted slide.svs")
}

func TestStrictImport(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	input := ctx.File("input.geojson")
	require.NoError(t, os.WriteFile(input, []byte(fixture), 0o644))

	_, err := run(t, "import", "slide.svs", input,
		"--config", ctx.File(config.FileName),
		"--store.url", "bolt://"+ctx.File("entries.db"),
		"--import.strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Stroma=1")
}

func TestConfigInit(t *testing.T) {
	ctx := testcontext.New(t)
	defer ctx.Cleanup()

	path := ctx.File(config.FileName)

	_, err := run(t, "config", "init", "--config", path, "--store.url", "mem://")
	require.NoError(t, err)

	_, err = run(t, "config", "init", "--config", path)
	assert.Error(t, err)

	out, err := run(t, "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, `url = "mem://"`)

	t.Setenv("ANNOSTORE_LOG_LEVEL", "debug")
	out, err = run(t, "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, `level = "debug"`)
}
