package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/nats-io/nats.go"
)

// NATSInvalidator реализует Invalidator используя NATS Pub/Sub.
// Узлы, держащие одну сетку, узнают о новой версии ее головы.
//
// Дедупликация идет по паре (ключ, версия), поэтому новая версия
// того же ключа всегда доставляется.
type NATSInvalidator struct {
	conn   *nats.Conn
	config InvalidatorConfig
	nodeID string

	subMu        sync.Mutex
	subscription *nats.Subscription
	handler      InvalidationHandler

	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	keysMutex sync.Mutex
	recent    map[string]time.Time

	publishedCount int64
	receivedCount  int64
	errorsCount    int64
}

// InvalidatorConfig содержит конфигурацию для NATS invalidator.
type InvalidatorConfig struct {
	NATSURL string
	Subject string

	MaxReconnects int
	ReconnectWait time.Duration

	DedupeWindow time.Duration
}

// InvalidationMessage сообщение об изменении сетки
type InvalidationMessage struct {
	Key       string    `json:"key"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
}

// NewNATSInvalidator подключается к NATS
func NewNATSInvalidator(config InvalidatorConfig, nodeID string) (*NATSInvalidator, error) {
	// Настройки по умолчанию
	if config.Subject == "" {
		config.Subject = "voxel.grid.invalidation"
	}
	if config.MaxReconnects == 0 {
		config.MaxReconnects = 10
	}
	if config.ReconnectWait == 0 {
		config.ReconnectWait = 2 * time.Second
	}
	if config.DedupeWindow == 0 {
		config.DedupeWindow = 5 * time.Second
	}

	opts := []nats.Option{
		nats.Name("voxel-engine " + nodeID),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logging.Warn("NATS отключен: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info("NATS переподключен к %s", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(config.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к NATS: %w", err)
	}

	n := &NATSInvalidator{
		conn:   conn,
		config: config,
		nodeID: nodeID,
		stopCh: make(chan struct{}),
		recent: make(map[string]time.Time),
	}
	n.startDedupeCleanup()

	logging.Info("NATS invalidator подключен: %s (subject: %s)", config.NATSURL, config.Subject)
	return n, nil
}

// PublishInvalidation отправляет уведомление о новой версии ключа
func (n *NATSInvalidator) PublishInvalidation(ctx context.Context, key, version string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.seen(key, version) {
		return nil
	}

	data, err := json.Marshal(InvalidationMessage{
		Key:       key,
		Version:   version,
		Timestamp: time.Now(),
		NodeID:    n.nodeID,
	})
	if err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return fmt.Errorf("ошибка сериализации уведомления: %w", err)
	}

	if err := n.conn.Publish(n.config.Subject, data); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return fmt.Errorf("ошибка публикации инвалидации %s: %w", key, err)
	}

	atomic.AddInt64(&n.publishedCount, 1)
	logging.Debug("Опубликована инвалидация %s@%s", key, version)
	return nil
}

// SubscribeInvalidations подписывается на уведомления других узлов.
// Подписка снимается при отмене ctx или Close.
func (n *NATSInvalidator) SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error {
	n.subMu.Lock()
	defer n.subMu.Unlock()

	if n.subscription != nil {
		return fmt.Errorf("подписка на инвалидацию уже существует")
	}

	n.handler = handler
	sub, err := n.conn.Subscribe(n.config.Subject, n.handleMessage)
	if err != nil {
		return fmt.Errorf("ошибка подписки на инвалидацию: %w", err)
	}
	n.subscription = sub

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		select {
		case <-ctx.Done():
		case <-n.stopCh:
		}
		n.unsubscribe()
	}()

	logging.Info("Подписка на инвалидацию: %s", n.config.Subject)
	return nil
}

// Close закрывает соединение с NATS
func (n *NATSInvalidator) Close() error {
	n.stopOnce.Do(func() { close(n.stopCh) })
	n.wg.Wait()
	n.unsubscribe()
	n.conn.Close()
	return nil
}

// GetMetrics возвращает счетчики invalidator
func (n *NATSInvalidator) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"published_count": atomic.LoadInt64(&n.publishedCount),
		"received_count":  atomic.LoadInt64(&n.receivedCount),
		"errors_count":    atomic.LoadInt64(&n.errorsCount),
		"connected":       n.conn.IsConnected(),
	}
}

func (n *NATSInvalidator) handleMessage(msg *nats.Msg) {
	atomic.AddInt64(&n.receivedCount, 1)

	var m InvalidationMessage
	if err := json.Unmarshal(msg.Data, &m); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		logging.Error("Ошибка разбора уведомления инвалидации: %v", err)
		return
	}

	// Свои сообщения игнорируем
	if m.NodeID == n.nodeID || n.seen(m.Key, m.Version) {
		return
	}

	n.subMu.Lock()
	handler := n.handler
	n.subMu.Unlock()
	if handler == nil {
		return
	}
	if err := handler(m.Key, m.Version); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		logging.Error("Обработчик инвалидации %s завершился с ошибкой: %v", m.Key, err)
	}
}

func (n *NATSInvalidator) unsubscribe() {
	n.subMu.Lock()
	defer n.subMu.Unlock()

	if n.subscription == nil {
		return
	}
	if err := n.subscription.Unsubscribe(); err != nil && n.conn.IsConnected() {
		logging.Error("Ошибка отписки от инвалидации: %v", err)
	}
	n.subscription = nil
}

// seen отмечает пару (key, version) и сообщает, встречалась ли она в окне дедупликации
func (n *NATSInvalidator) seen(key, version string) bool {
	id := key + "@" + version

	n.keysMutex.Lock()
	defer n.keysMutex.Unlock()

	if last, ok := n.recent[id]; ok && time.Since(last) < n.config.DedupeWindow {
		return true
	}
	n.recent[id] = time.Now()
	return false
}

func (n *NATSInvalidator) startDedupeCleanup() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ticker := time.NewTicker(n.config.DedupeWindow)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				n.cleanupDedupe()
			case <-n.stopCh:
				return
			}
		}
	}()
}

func (n *NATSInvalidator) cleanupDedupe() {
	n.keysMutex.Lock()
	defer n.keysMutex.Unlock()

	now := time.Now()
	for id, ts := range n.recent {
		if now.Sub(ts) > n.config.DedupeWindow {
			delete(n.recent, id)
		}
	}
}
