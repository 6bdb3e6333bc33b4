package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/annel0/voxel-engine/internal/bcf"
	"github.com/annel0/voxel-engine/internal/compress"
	"github.com/annel0/voxel-engine/internal/cube"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSample(t *testing.T) string {
	t.Helper()
	g := cube.NewGrid().WithScale(2).
		SetCube(vec.NewVec3(0, 0, 0), 42).
		SetCube(vec.NewVec3(-2, 1, -1), 7)
	path := filepath.Join(t.TempDir(), "sample.bcf")
	require.NoError(t, os.WriteFile(path, bcf.Serialize(g.Root()), 0644))
	return path
}

func TestInfoAndStats(t *testing.T) {
	in := writeSample(t)

	var out bytes.Buffer
	require.NoError(t, run(options{Command: "info", In: in}, &out))
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, false, info["compressed"])
	assert.EqualValues(t, 2, info["max_depth"])

	out.Reset()
	require.NoError(t, run(options{Command: "stats", In: in}, &out))
	var stats cube.Stats
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	assert.ElementsMatch(t, []int{0, 7, 42}, stats.Materials)
}

func TestCompressRoundTrip(t *testing.T) {
	in := writeSample(t)
	dir := t.TempDir()
	packed := filepath.Join(dir, "sample.bcf.zst")
	unpacked := filepath.Join(dir, "sample.bcf")

	var out bytes.Buffer
	require.NoError(t, run(options{Command: "compress", In: in, Out: packed, Level: 3}, &out))
	data, err := os.ReadFile(packed)
	require.NoError(t, err)
	assert.True(t, compress.IsCompressed(data))

	assert.Error(t, run(options{Command: "compress", In: packed, Out: unpacked}, &out), "повторное сжатие")

	require.NoError(t, run(options{Command: "decompress", In: packed, Out: unpacked}, &out))
	orig, _ := os.ReadFile(in)
	back, _ := os.ReadFile(unpacked)
	assert.Equal(t, orig, back)

	// info читает сжатый файл напрямую
	out.Reset()
	require.NoError(t, run(options{Command: "info", In: packed}, &out))
	assert.Contains(t, out.String(), `"compressed": true`)
}

func TestDump(t *testing.T) {
	in := writeSample(t)

	var out bytes.Buffer
	require.NoError(t, run(options{Command: "dump", In: in, Depth: -1}, &out))
	assert.Contains(t, out.String(), "pos=(2,2,2)")
	assert.Contains(t, out.String(), "value=42")
	assert.Contains(t, out.String(), "pos=(0,3,1)")
	assert.NotContains(t, out.String(), "value=0")
}

func TestRunErrors(t *testing.T) {
	in := writeSample(t)
	var out bytes.Buffer

	assert.Error(t, run(options{Command: "explode", In: in}, &out))
	assert.Error(t, run(options{Command: "compress", In: in}, &out), "нет -out")
	assert.Error(t, run(options{Command: "info", In: filepath.Join(t.TempDir(), "none")}, &out))

	junk := filepath.Join(t.TempDir(), "junk.bcf")
	require.NoError(t, os.WriteFile(junk, []byte("junk"), 0644))
	assert.Error(t, run(options{Command: "stats", In: junk}, &out))
}
