// Package cache хранит закодированные головы сеток в горячем кэше и
// рассылает инвалидацию между узлами.
package cache

import (
	"context"
	"errors"
	"time"
)

// BlobCache определяет интерфейс кэша BCF-буферов.
//
// Использование:
//
//	c := NewRedisBlobCache(config)
//	data, err := c.Get(ctx, "main")
//	err = c.Set(ctx, "main", data, 30*time.Second)
type BlobCache interface {
	// Get возвращает значение или ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set сохраняет значение с TTL; 0 означает отсутствие истечения
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete удаляет ключ; отсутствие ключа не ошибка
	Delete(ctx context.Context, key string) error

	Close() error

	// GetMetrics возвращает снимок метрик кэша
	GetMetrics() CacheMetrics
}

// Invalidator рассылает и принимает уведомления об изменении сеток.
type Invalidator interface {
	// PublishInvalidation сообщает другим узлам о новой версии ключа
	PublishInvalidation(ctx context.Context, key, version string) error

	// SubscribeInvalidations подписывается на уведомления других узлов
	SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error

	Close() error
}

// InvalidationHandler обрабатывает уведомление об инвалидации
type InvalidationHandler func(key, version string) error

// CacheMetrics содержит метрики производительности кэша.
type CacheMetrics struct {
	TotalRequests int64   `json:"total_requests"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	HitRatio      float64 `json:"hit_ratio"`

	AvgLatencyMs float64 `json:"avg_latency_ms"`
	MaxLatencyMs float64 `json:"max_latency_ms"`

	LastUpdate time.Time `json:"last_update"`
}

// Ошибки кэша
var (
	ErrCacheMiss   = NewCacheError("cache miss")
	ErrInvalidKey  = NewCacheError("invalid key")
	ErrCacheClosed = NewCacheError("cache closed")
)

// CacheError представляет ошибку кэша.
type CacheError struct {
	Message string
}

func (e *CacheError) Error() string {
	return e.Message
}

func NewCacheError(message string) *CacheError {
	return &CacheError{Message: message}
}

// IsCacheMiss проверяет, является ли ошибка промахом кэша.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
