// Package metrics содержит Prometheus-метрики движка: кодек BCF, лучи,
// построение сетки граней и правки сеток.
package metrics

import (
	"net/http"
	"time"

	"github.com/annel0/voxel-engine/internal/cache"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voxel"

// EngineMetrics набор коллекторов движка.
// Nil-указатель допустим: все методы становятся пустыми.
type EngineMetrics struct {
	codecSeconds *prometheus.HistogramVec
	codecBytes   *prometheus.HistogramVec
	codecErrors  *prometheus.CounterVec

	raycasts      *prometheus.CounterVec
	raycastSecs   prometheus.Histogram
	meshFaces     prometheus.Histogram
	meshSeconds   prometheus.Histogram
	gridEdits     *prometheus.CounterVec
	grids         prometheus.Gauge
	snapshots     *prometheus.CounterVec
	cacheRequests *prometheus.CounterVec
}

// NewEngineMetrics создает коллекторы и регистрирует их в reg.
// Для глобального регистра передайте prometheus.DefaultRegisterer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		codecSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bcf_codec_duration_seconds",
			Help:      "Длительность кодирования и разбора BCF.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"op"}),
		codecBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bcf_payload_bytes",
			Help:      "Размер BCF-буферов.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10),
		}, []string{"op"}),
		codecErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bcf_errors_total",
			Help:      "Ошибки разбора BCF по типу.",
		}, []string{"kind"}),
		raycasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raycasts_total",
			Help:      "Число лучей по результату (hit, miss, error).",
		}, []string{"result"}),
		raycastSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "raycast_duration_seconds",
			Help:      "Длительность трассировки луча.",
			Buckets:   prometheus.ExponentialBuckets(0.000001, 4, 10),
		}),
		meshFaces: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mesh_faces",
			Help:      "Число граней в построенной сетке.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		meshSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mesh_duration_seconds",
			Help:      "Длительность построения сетки граней.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		gridEdits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_edits_total",
			Help:      "Правки сеток по операции.",
		}, []string{"op"}),
		grids: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "grids",
			Help:      "Количество загруженных сеток.",
		}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Операции со снимками (save, restore, head).",
		}, []string{"op"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Запросы к кэшу голов сеток по результату.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.codecSeconds, m.codecBytes, m.codecErrors,
		m.raycasts, m.raycastSecs,
		m.meshFaces, m.meshSeconds,
		m.gridEdits, m.grids, m.snapshots, m.cacheRequests,
	)
	return m
}

// ObserveCodec учитывает кодирование ("encode") или разбор ("decode")
func (m *EngineMetrics) ObserveCodec(op string, size int, start time.Time) {
	if m == nil {
		return
	}
	m.codecSeconds.WithLabelValues(op).Observe(time.Since(start).Seconds())
	m.codecBytes.WithLabelValues(op).Observe(float64(size))
}

// CodecError учитывает ошибку разбора вида kind
func (m *EngineMetrics) CodecError(kind string) {
	if m == nil {
		return
	}
	m.codecErrors.WithLabelValues(kind).Inc()
}

// ObserveRaycast учитывает результат луча: hit, miss или error
func (m *EngineMetrics) ObserveRaycast(result string, start time.Time) {
	if m == nil {
		return
	}
	m.raycasts.WithLabelValues(result).Inc()
	m.raycastSecs.Observe(time.Since(start).Seconds())
}

func (m *EngineMetrics) ObserveMesh(faces int, start time.Time) {
	if m == nil {
		return
	}
	m.meshFaces.Observe(float64(faces))
	m.meshSeconds.Observe(time.Since(start).Seconds())
}

func (m *EngineMetrics) GridEdit(op string) {
	if m == nil {
		return
	}
	m.gridEdits.WithLabelValues(op).Inc()
}

func (m *EngineMetrics) SetGrids(n int) {
	if m == nil {
		return
	}
	m.grids.Set(float64(n))
}

func (m *EngineMetrics) Snapshot(op string) {
	if m == nil {
		return
	}
	m.snapshots.WithLabelValues(op).Inc()
}

// CacheExporter периодически переносит счетчики BlobCache в Prometheus
type CacheExporter struct {
	cache   cache.BlobCache
	metrics *EngineMetrics
	quit    chan struct{}
	done    chan struct{}
	prev    cache.CacheMetrics
}

func NewCacheExporter(c cache.BlobCache, m *EngineMetrics) *CacheExporter {
	return &CacheExporter{
		cache:   c,
		metrics: m,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start запускает обновление с периодом interval
func (e *CacheExporter) Start(interval time.Duration) {
	go e.loop(interval)
}

// Stop останавливает обновление и ждет выхода горутины
func (e *CacheExporter) Stop() {
	close(e.quit)
	<-e.done
}

func (e *CacheExporter) loop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(e.done)

	for {
		select {
		case <-ticker.C:
			e.collect()
		case <-e.quit:
			e.collect()
			return
		}
	}
}

// collect прибавляет к счетчикам приращение с прошлого вызова
func (e *CacheExporter) collect() {
	if e.metrics == nil {
		return
	}
	stats := e.cache.GetMetrics()

	if d := stats.CacheHits - e.prev.CacheHits; d > 0 {
		e.metrics.cacheRequests.WithLabelValues("hit").Add(float64(d))
	}
	if d := stats.CacheMisses - e.prev.CacheMisses; d > 0 {
		e.metrics.cacheRequests.WithLabelValues("miss").Add(float64(d))
	}
	e.prev = stats
}

// StartHTTP запускает отдельный эндпоинт /metrics на addr (например, ":2112").
// Метод неблокирующий.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
	return srv
}
