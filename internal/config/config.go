package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации сервиса.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	LogLevel  string          `yaml:"log_level"`
}

// EngineConfig параметры движка
type EngineConfig struct {
	// Border материалы оболочки вокруг корня по слоям Y снизу вверх
	Border       [4]uint8 `yaml:"border"`
	MaxRaySteps  int      `yaml:"max_ray_steps"`
	DefaultScale uint32   `yaml:"default_scale"`
	Compression  bool     `yaml:"compression"`
	ZstdLevel    int      `yaml:"zstd_level"`
}

// StorageConfig выбирает хранилище снимков: badger, maria или memory
type StorageConfig struct {
	Driver    string `yaml:"driver"`
	BadgerDir string `yaml:"badger_dir"`
	MariaDSN  string `yaml:"maria_dsn"`
}

type CacheConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	NATSURL   string `yaml:"nats_url"`
	TTLSecs   int    `yaml:"ttl_seconds"`
}

type ServerConfig struct {
	RESTPort    int `yaml:"rest_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxRaySteps:  4096,
			DefaultScale: 4,
			Compression:  true,
			ZstdLevel:    3,
		},
		Storage: StorageConfig{Driver: "memory", BadgerDir: "data/grids"},
		Cache:   CacheConfig{TTLSecs: 300},
		Telemetry: TelemetryConfig{
			ServiceName:  "voxel-engine",
			OTLPEndpoint: "localhost:4318",
		},
		LogLevel: "INFO",
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "VOXEL_REST_PORT", 8088)
}

// GetMetricsPort возвращает порт Prometheus метрик с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "VOXEL_METRICS_PORT", 2112)
}

// GetRedisAddr возвращает адрес Redis; пустая строка отключает кэш
func (c *CacheConfig) GetRedisAddr() string {
	return getStringWithEnvFallback(c.RedisAddr, "VOXEL_REDIS_ADDR", "")
}

// GetNATSURL возвращает адрес NATS; пустая строка отключает инвалидацию
func (c *CacheConfig) GetNATSURL() string {
	return getStringWithEnvFallback(c.NATSURL, "VOXEL_NATS_URL", "")
}

// TTL время жизни записи кэша
func (c *CacheConfig) TTL() time.Duration {
	if c.TTLSecs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.TTLSecs) * time.Second
}

// GetMariaDSN возвращает DSN MariaDB
func (s *StorageConfig) GetMariaDSN() string {
	return getStringWithEnvFallback(s.MariaDSN, "VOXEL_MARIA_DSN", "voxel:voxel@tcp(localhost:3306)/voxel?parseTime=true")
}

// GetMaxRaySteps возвращает ограничение шагов луча
func (e *EngineConfig) GetMaxRaySteps() int {
	if e.MaxRaySteps > 0 {
		return e.MaxRaySteps
	}
	return 4096
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

func getStringWithEnvFallback(value, envVar, def string) string {
	if value != "" {
		return value
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return def
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV VOXEL_CONFIG; без файла
// возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("VOXEL_CONFIG")
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
