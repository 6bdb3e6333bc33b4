package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит конфигурацию Redis кэша.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Prefix добавляется ко всем ключам
	Prefix string
	MaxTTL time.Duration

	MaxConnections int
	PoolTimeout    time.Duration
}

// RedisBlobCache реализует BlobCache используя Redis как горячий кэш
// закодированных голов сеток.
type RedisBlobCache struct {
	client *redis.Client
	config RedisConfig
	stats  stats
}

// NewRedisBlobCache подключается к Redis и проверяет соединение
func NewRedisBlobCache(config RedisConfig) (*RedisBlobCache, error) {
	// Настройки по умолчанию
	if config.Prefix == "" {
		config.Prefix = "voxel:grid:"
	}
	if config.MaxTTL == 0 {
		config.MaxTTL = 1 * time.Hour
	}
	if config.MaxConnections == 0 {
		config.MaxConnections = 10
	}
	if config.PoolTimeout == 0 {
		config.PoolTimeout = 30 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.MaxConnections,
		PoolTimeout:  config.PoolTimeout,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	// Проверяем соединение
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	logging.Info("Redis кэш подключен: %s (префикс %s)", config.Addr, config.Prefix)
	return &RedisBlobCache{client: rdb, config: config}, nil
}

func (r *RedisBlobCache) key(k string) string {
	return r.config.Prefix + k
}

// Get получает значение по ключу из Redis
func (r *RedisBlobCache) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer r.stats.recordLatency(start)

	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == nil {
		r.stats.hit()
		return val, nil
	}

	r.stats.miss()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}

	logging.Error("Ошибка Redis Get для ключа %s: %v", key, err)
	return nil, fmt.Errorf("redis get error: %w", err)
}

// Set сохраняет значение; TTL ограничен MaxTTL
func (r *RedisBlobCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	start := time.Now()
	defer r.stats.recordLatency(start)

	if ttl > r.config.MaxTTL {
		ttl = r.config.MaxTTL
	}

	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		logging.Error("Ошибка Redis Set для ключа %s: %v", key, err)
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (r *RedisBlobCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete error: %w", err)
	}
	return nil
}

func (r *RedisBlobCache) Close() error {
	return r.client.Close()
}

func (r *RedisBlobCache) GetMetrics() CacheMetrics {
	return r.stats.snapshot()
}
