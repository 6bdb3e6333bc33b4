package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/voxel-engine/internal/compress"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/middleware"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// MaxUploadBytes ограничивает размер загружаемого BCF; распакованный
// кадр zstd кодек ограничивает compress.MaxDecodedBytes
const MaxUploadBytes = compress.MaxDecodedBytes / 4

// RestServer представляет REST API сервер над менеджером сеток
type RestServer struct {
	router       *gin.Engine
	grids        *world.GridManager
	port         string
	border       [4]uint8
	maxRaySteps  int
	defaultScale uint32
	metrics      *ServerMetrics
	engine       *metrics.EngineMetrics
	logger       *logging.Logger
	httpServer   *http.Server
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port         string             // адрес для запуска сервера, например ":8088"
	Grids        *world.GridManager // менеджер сеток
	Border       [4]uint8           // материалы оболочки для построения сетки граней
	MaxRaySteps  int                // предел шагов луча; 0 - значение по умолчанию
	DefaultScale uint32             // масштаб новой сетки, если он не указан в запросе
	Metrics      *metrics.EngineMetrics
	Registerer   prometheus.Registerer // для HTTP-метрик; nil - prometheus.DefaultRegisterer
	Logger       *logging.Logger
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Grids == nil {
		config.Grids = world.NewGridManager(world.Options{})
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	loggerMw := middleware.NewRequestLogger(config.Logger)
	router.Use(loggerMw.Handler())

	router.Use(otelgin.Middleware("voxel_api"))

	promMw := middleware.NewPrometheusMiddleware("voxel_api", config.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	server := &RestServer{
		router:       router,
		grids:        config.Grids,
		port:         config.Port,
		border:       config.Border,
		maxRaySteps:  config.MaxRaySteps,
		defaultScale: config.DefaultScale,
		metrics:      NewServerMetrics(),
		engine:       config.Metrics,
		logger:       config.Logger,
	}

	server.setupRoutes()

	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Header("Access-Control-Expose-Headers", "X-Grid-Scale, X-Grid-Version, X-Trace-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	api := rs.router.Group("/api")
	api.GET("/stats", rs.handleStats)

	grids := api.Group("/grids")
	{
		grids.GET("", rs.handleListGrids)
		grids.POST("/:name", rs.handleCreateGrid)
		grids.GET("/:name", rs.handleGetGrid)
		grids.DELETE("/:name", rs.handleDeleteGrid)

		grids.GET("/:name/voxels", rs.handleGetVoxel)
		grids.PUT("/:name/voxels", rs.handleSetVoxels)

		grids.POST("/:name/raycast", rs.handleRaycast)
		grids.GET("/:name/mesh", rs.handleMesh)

		grids.GET("/:name/bcf", rs.handleDownloadBCF)
		grids.PUT("/:name/bcf", rs.handleUploadBCF)

		grids.GET("/:name/snapshots", rs.handleListSnapshots)
		grids.POST("/:name/snapshots", rs.handleCreateSnapshot)
		grids.POST("/:name/snapshots/:id/restore", rs.handleRestoreSnapshot)
	}

	rs.router.GET("/health", rs.handleHealth)
}

// Handler возвращает http.Handler роутера (для тестов и встраивания)
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает HTTP сервер в отдельной горутине
func (rs *RestServer) Start() error {
	rs.httpServer = &http.Server{
		Addr:              rs.port,
		Handler:           rs.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := rs.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rs.logf(logging.ERROR, "Ошибка REST API сервера: %v", err)
		}
	}()

	rs.logf(logging.INFO, "REST API сервер запущен на %s", rs.port)
	return nil
}

// Shutdown останавливает HTTP сервер, дожидаясь активных запросов
func (rs *RestServer) Shutdown(ctx context.Context) error {
	if rs.httpServer == nil {
		return nil
	}
	if err := rs.httpServer.Shutdown(ctx); err != nil {
		rs.logf(logging.ERROR, "Ошибка при остановке HTTP сервера: %v", err)
		return err
	}
	rs.logf(logging.INFO, "REST API сервер остановлен")
	return nil
}

func (rs *RestServer) logf(level logging.LogLevel, format string, args ...interface{}) {
	if rs.logger == nil {
		switch level {
		case logging.ERROR:
			logging.Error(format, args...)
		default:
			logging.Info(format, args...)
		}
		return
	}
	switch level {
	case logging.ERROR:
		rs.logger.Error(format, args...)
	default:
		rs.logger.Info(format, args...)
	}
}

// handleHealth проверка состояния
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"grids":  len(rs.grids.Names()),
		"time":   time.Now().Unix(),
	})
}
