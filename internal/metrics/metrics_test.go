package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/voxel-engine/internal/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngineMetrics(reg)

	start := time.Now()
	m.ObserveRaycast("hit", start)
	m.ObserveRaycast("hit", start)
	m.ObserveRaycast("miss", start)
	m.GridEdit("set")
	m.SetGrids(3)
	m.Snapshot("save")
	m.CodecError("truncated")
	m.ObserveCodec("encode", 128, start)
	m.ObserveMesh(12, start)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.raycasts.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.raycasts.WithLabelValues("miss")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.grids))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.codecErrors.WithLabelValues("truncated")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *EngineMetrics
	assert.NotPanics(t, func() {
		m.ObserveRaycast("hit", time.Now())
		m.GridEdit("set")
		m.SetGrids(1)
		m.Snapshot("save")
		m.ObserveCodec("decode", 1, time.Now())
		m.ObserveMesh(1, time.Now())
		m.CodecError("x")
	})
}

func TestCacheExporterDeltas(t *testing.T) {
	m := NewEngineMetrics(prometheus.NewRegistry())
	c := cache.NewMemoryBlobCache()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte{1}, 0))

	e := NewCacheExporter(c, m)
	_, _ = c.Get(ctx, "k")
	_, _ = c.Get(ctx, "missing")
	e.collect()
	_, _ = c.Get(ctx, "k")
	e.collect()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("miss")))

	e.Start(time.Hour)
	e.Stop()
}
