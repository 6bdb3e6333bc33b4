package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/voxel-engine/internal/api"
	"github.com/annel0/voxel-engine/internal/cache"
	"github.com/annel0/voxel-engine/internal/compress"
	"github.com/annel0/voxel-engine/internal/config"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/observability"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или ENV VOXEL_CONFIG)")
	autosave := flag.Duration("autosave", 0, "интервал отложенного сохранения голов; 0 - сохранять каждую правку")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	logging.GetLoggerManager().SetDefaultLevels(level, logging.TRACE)
	logger, err := logging.GetLoggerManager().GetLogger("octreed")
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	logging.SetDefaultLogger(logger)
	defer func() {
		if err := logging.GetLoggerManager().CloseAll(); err != nil {
			log.Printf("Ошибка закрытия логов: %v", err)
		}
	}()

	logging.Info("🧊 Запуск octreed (хранилище=%s, сжатие=%v)", cfg.Storage.Driver, cfg.Engine.Compression)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === ТЕЛЕМЕТРИЯ ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, observability.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.OTLPEndpoint,
			Insecure:    true,
		})
		if err != nil {
			logging.Error("Ошибка инициализации OpenTelemetry: %v", err)
		} else {
			defer func() {
				sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer scancel()
				if err := shutdown(sctx); err != nil {
					logging.Error("Ошибка остановки OpenTelemetry: %v", err)
				}
			}()
		}
	}

	// === КОМПОНЕНТЫ ===
	codec, err := compress.NewCodec(cfg.Engine.Compression, cfg.Engine.ZstdLevel)
	if err != nil {
		log.Fatalf("❌ Ошибка создания zstd кодека: %v", err)
	}
	defer codec.Close()

	repo, err := openRepo(cfg.Storage)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия хранилища: %v", err)
	}
	defer repo.Close()

	engineMetrics := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)
	nodeID := uuid.NewString()

	opts := world.Options{
		Repo:             repo,
		Codec:            codec,
		Metrics:          engineMetrics,
		CacheTTL:         cfg.Cache.TTL(),
		AutoSaveInterval: *autosave,
	}

	if addr := cfg.Cache.GetRedisAddr(); addr != "" {
		blobs, err := cache.NewRedisBlobCache(cache.RedisConfig{
			Addr:   addr,
			DB:     cfg.Cache.RedisDB,
			MaxTTL: cfg.Cache.TTL(),
		})
		if err != nil {
			logging.Error("Redis недоступен, кэш отключен: %v", err)
		} else {
			defer blobs.Close()
			opts.Cache = blobs
			exporter := metrics.NewCacheExporter(blobs, engineMetrics)
			exporter.Start(15 * time.Second)
			defer exporter.Stop()
			logging.Info("Кэш голов сеток: Redis %s", addr)
		}
	}

	if url := cfg.Cache.GetNATSURL(); url != "" {
		inv, err := cache.NewNATSInvalidator(cache.InvalidatorConfig{NATSURL: url}, nodeID)
		if err != nil {
			logging.Error("NATS недоступен, инвалидация отключена: %v", err)
		} else {
			defer inv.Close()
			opts.Invalidator = inv
			logging.Info("Инвалидация кэша: NATS %s (узел %s)", url, nodeID)
		}
	}

	grids := world.NewGridManager(opts)
	loaded, err := grids.LoadAll(ctx)
	if err != nil {
		logging.Error("Ошибка загрузки сеток: %v", err)
	}
	logging.Info("Загружено сеток: %d", loaded)

	runDone := make(chan error, 1)
	go func() { runDone <- grids.Run(ctx) }()

	// === HTTP ===
	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	server := api.NewRestServer(api.Config{
		Port:         restPort,
		Grids:        grids,
		Border:       cfg.Engine.Border,
		MaxRaySteps:  cfg.Engine.GetMaxRaySteps(),
		DefaultScale: cfg.Engine.DefaultScale,
		Metrics:      engineMetrics,
		Logger:       logging.GetAPILogger(),
	})
	if err := server.Start(); err != nil {
		log.Fatalf("❌ Ошибка запуска REST API: %v", err)
	}
	metricsSrv := metrics.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()))

	logging.Info("✅ octreed готов: REST http://localhost%s", restPort)
	logging.Info("   curl -X POST http://localhost%s/api/grids/main", restPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Ошибка остановки /metrics: %v", err)
	}

	// Run сохраняет отложенные правки перед выходом
	cancel()
	if err := <-runDone; err != nil {
		logging.Error("Ошибка сохранения сеток: %v", err)
	}

	logging.Info("👋 octreed остановлен")
}

// openRepo выбирает хранилище снимков по конфигурации
func openRepo(cfg config.StorageConfig) (storage.SnapshotRepo, error) {
	switch cfg.Driver {
	case "", "memory":
		logging.Warn("⚠️  Используется хранилище в памяти, сетки не переживут перезапуск")
		return storage.NewMemorySnapshotRepo(), nil
	case "badger":
		return storage.NewBadgerSnapshotRepo(cfg.BadgerDir)
	case "maria":
		return storage.NewMariaSnapshotRepo(cfg.GetMariaDSN())
	default:
		return nil, fmt.Errorf("неизвестное хранилище %q", cfg.Driver)
	}
}
