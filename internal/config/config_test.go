package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("VOXEL_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, 4096, cfg.Engine.GetMaxRaySteps())
	assert.True(t, cfg.Engine.Compression)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxel.yaml")
	data := []byte(`
engine:
  border: [1, 1, 0, 0]
  max_ray_steps: 100
  compression: false
storage:
  driver: badger
  badger_dir: /tmp/grids
cache:
  ttl_seconds: 10
server:
  rest_port: 9000
`)
	require.NoError(t, os.WriteFile(path, data, 0644))

	t.Setenv("VOXEL_CONFIG", path)
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, [4]uint8{1, 1, 0, 0}, cfg.Engine.Border)
	assert.Equal(t, 100, cfg.Engine.GetMaxRaySteps())
	assert.False(t, cfg.Engine.Compression)
	assert.Equal(t, uint32(4), cfg.Engine.DefaultScale, "незаданные поля берутся из Default")
	assert.Equal(t, "badger", cfg.Storage.Driver)
	assert.Equal(t, 10*time.Second, cfg.Cache.TTL())
	assert.Equal(t, 9000, cfg.Server.GetRESTPort())
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("VOXEL_METRICS_PORT", "3111")
	t.Setenv("VOXEL_REDIS_ADDR", "redis:6379")

	var s ServerConfig
	assert.Equal(t, 3111, s.GetMetricsPort())
	assert.Equal(t, 8088, s.GetRESTPort())

	var c CacheConfig
	assert.Equal(t, "redis:6379", c.GetRedisAddr())
	assert.Equal(t, "", c.GetNATSURL())
	assert.Equal(t, 5*time.Minute, c.TTL())

	t.Setenv("VOXEL_METRICS_PORT", "abc")
	assert.Equal(t, 2112, s.GetMetricsPort())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
