// Package world управляет именованными сетками вокселей: хранит текущие
// корни, сериализует правки одной сетки и сохраняет головы в хранилище.
package world

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/voxel-engine/internal/bcf"
	"github.com/annel0/voxel-engine/internal/cache"
	"github.com/annel0/voxel-engine/internal/compress"
	"github.com/annel0/voxel-engine/internal/cube"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/google/uuid"
)

var (
	ErrGridNotFound = errors.New("сетка не найдена")
	ErrGridExists   = errors.New("сетка уже существует")
	// ErrSnapshotNotFound снимок отсутствует или принадлежит другой сетке
	ErrSnapshotNotFound = storage.ErrSnapshotNotFound
)

// Options зависимости GridManager. Нулевые поля заменяются значениями по умолчанию.
type Options struct {
	Repo        storage.SnapshotRepo
	Cache       cache.BlobCache
	Invalidator cache.Invalidator
	Codec       *compress.Codec
	Metrics     *metrics.EngineMetrics
	CacheTTL    time.Duration

	// AutoSaveInterval > 0 включает отложенное сохранение голов из Run;
	// при 0 каждая правка сохраняется сразу.
	AutoSaveInterval time.Duration
}

// gridEntry одна сетка. Читатели берут указатель без блокировок,
// писатели сериализуются через mu.
type gridEntry struct {
	mu      sync.Mutex
	grid    atomic.Pointer[cube.Grid]
	version atomic.Pointer[string]
	dirty   bool
}

func newEntry(g *cube.Grid, version string) *gridEntry {
	e := &gridEntry{}
	e.grid.Store(g)
	e.version.Store(&version)
	return e
}

func (e *gridEntry) currentVersion() string {
	if v := e.version.Load(); v != nil {
		return *v
	}
	return ""
}

// GridManager хранит именованные сетки
type GridManager struct {
	mu    sync.RWMutex
	grids map[string]*gridEntry
	opts  Options
}

// NewGridManager создает менеджер; без Repo используется хранилище в памяти
func NewGridManager(opts Options) *GridManager {
	if opts.Repo == nil {
		opts.Repo = storage.NewMemorySnapshotRepo()
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	return &GridManager{grids: make(map[string]*gridEntry), opts: opts}
}

func (m *GridManager) entry(name string) (*gridEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.grids[name]
	return e, ok
}

// Get возвращает текущую сетку из памяти
func (m *GridManager) Get(name string) (*cube.Grid, bool) {
	e, ok := m.entry(name)
	if !ok {
		return nil, false
	}
	return e.grid.Load(), true
}

// Version возвращает идентификатор текущей головы сетки
func (m *GridManager) Version(name string) (string, bool) {
	e, ok := m.entry(name)
	if !ok {
		return "", false
	}
	return e.currentVersion(), true
}

// Names возвращает отсортированные имена загруженных сеток
func (m *GridManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.grids))
	for name := range m.grids {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create создает пустую сетку масштаба scale и сохраняет ее голову
func (m *GridManager) Create(ctx context.Context, name string, scale uint32) (*cube.Grid, error) {
	if err := storage.ValidateGridName(name); err != nil {
		return nil, err
	}
	if scale > cube.MaxGridScale {
		return nil, fmt.Errorf("масштаб %d больше допустимого %d", scale, cube.MaxGridScale)
	}

	m.mu.Lock()
	if _, exists := m.grids[name]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrGridExists, name)
	}
	if _, found, err := m.opts.Repo.LoadHead(ctx, name); err != nil {
		m.mu.Unlock()
		return nil, err
	} else if found {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrGridExists, name)
	}
	g := cube.NewGrid().WithScale(scale)
	e := newEntry(g, "")
	e.mu.Lock()
	m.grids[name] = e
	m.opts.Metrics.SetGrids(len(m.grids))
	m.mu.Unlock()
	defer e.mu.Unlock()

	if err := m.saveHead(ctx, name, e, g); err != nil {
		m.mu.Lock()
		delete(m.grids, name)
		m.opts.Metrics.SetGrids(len(m.grids))
		m.mu.Unlock()
		return nil, err
	}

	logging.Info("Создана сетка %s, масштаб %d", name, scale)
	return g, nil
}

// Load возвращает сетку, подгружая ее из кэша или хранилища при необходимости
func (m *GridManager) Load(ctx context.Context, name string) (*cube.Grid, error) {
	if g, ok := m.Get(name); ok {
		return g, nil
	}

	snap, err := m.loadHead(ctx, name)
	if err != nil {
		return nil, err
	}
	g, err := m.decodeSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("голова сетки %s повреждена: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Сетку мог загрузить параллельный вызов
	if e, exists := m.grids[name]; exists {
		return e.grid.Load(), nil
	}
	m.grids[name] = newEntry(g, snap.ID)
	m.opts.Metrics.SetGrids(len(m.grids))
	logging.Debug("Загружена сетка %s (версия %s)", name, snap.ID)
	return g, nil
}

// LoadAll загружает все сетки с сохраненной головой. Поврежденные
// сетки пропускаются с записью в лог.
func (m *GridManager) LoadAll(ctx context.Context) (int, error) {
	names, err := m.opts.Repo.ListGrids(ctx)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, name := range names {
		if _, err := m.Load(ctx, name); err != nil {
			logging.Error("Не удалось загрузить сетку %s: %v", name, err)
			continue
		}
		loaded++
	}
	return loaded, nil
}

// GetVoxel читает воксель сетки; вне границ возвращает 0
func (m *GridManager) GetVoxel(name string, p vec.Vec3) (uint8, error) {
	g, ok := m.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrGridNotFound, name)
	}
	return g.GetCube(p), nil
}

// SetVoxel записывает воксель, расширяя сетку при необходимости.
// Правки одной сетки выполняются последовательно; читатели видят
// либо старый, либо новый корень. Координата вне диапазона MaxGridScale
// отклоняется с cube.ErrCoordOutOfRange.
func (m *GridManager) SetVoxel(ctx context.Context, name string, p vec.Vec3, value uint8) (*cube.Grid, error) {
	if !cube.InRange(p) {
		return nil, fmt.Errorf("%w: (%d,%d,%d)", cube.ErrCoordOutOfRange, p.X, p.Y, p.Z)
	}
	return m.update(ctx, name, "set", func(g *cube.Grid) (*cube.Grid, error) {
		return g.TrySetCube(p, value)
	})
}

// Update применяет fn к текущей сетке под блокировкой писателя
func (m *GridManager) Update(ctx context.Context, name string, fn func(*cube.Grid) (*cube.Grid, error)) (*cube.Grid, error) {
	return m.update(ctx, name, "update", fn)
}

func (m *GridManager) update(ctx context.Context, name, op string, fn func(*cube.Grid) (*cube.Grid, error)) (*cube.Grid, error) {
	if _, err := m.Load(ctx, name); err != nil {
		return nil, err
	}
	e, ok := m.entry(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGridNotFound, name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := fn(e.grid.Load())
	if err != nil {
		return nil, err
	}
	if err := m.commit(ctx, name, e, next); err != nil {
		return nil, err
	}
	m.opts.Metrics.GridEdit(op)
	return next, nil
}

// Replace подменяет сетку целиком, создавая ее при отсутствии
func (m *GridManager) Replace(ctx context.Context, name string, g *cube.Grid) error {
	if err := storage.ValidateGridName(name); err != nil {
		return err
	}

	m.mu.Lock()
	e, ok := m.grids[name]
	if !ok {
		e = newEntry(cube.NewGrid(), "")
		m.grids[name] = e
		m.opts.Metrics.SetGrids(len(m.grids))
	}
	m.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := m.commit(ctx, name, e, g); err != nil {
		return err
	}
	m.opts.Metrics.GridEdit("replace")
	return nil
}

// commit сохраняет (или помечает) голову и публикует новый корень.
// Вызывается под e.mu.
func (m *GridManager) commit(ctx context.Context, name string, e *gridEntry, g *cube.Grid) error {
	if m.opts.AutoSaveInterval > 0 {
		e.grid.Store(g)
		e.dirty = true
		return nil
	}
	return m.saveHead(ctx, name, e, g)
}

// Delete удаляет сетку из памяти, хранилища и кэша
func (m *GridManager) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	_, loaded := m.grids[name]
	delete(m.grids, name)
	m.opts.Metrics.SetGrids(len(m.grids))
	m.mu.Unlock()

	if !loaded {
		if _, found, err := m.opts.Repo.LoadHead(ctx, name); err != nil {
			return err
		} else if !found {
			return fmt.Errorf("%w: %s", ErrGridNotFound, name)
		}
	}

	if err := m.opts.Repo.DeleteGrid(ctx, name); err != nil {
		return err
	}
	m.dropCache(ctx, name)
	m.publish(ctx, name, "deleted")
	logging.Info("Удалена сетка %s", name)
	return nil
}

// Encode возвращает BCF-буфер текущего корня без сжатия
func (m *GridManager) Encode(name string) ([]byte, error) {
	g, ok := m.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGridNotFound, name)
	}
	start := time.Now()
	data := bcf.Serialize(g.Root())
	m.opts.Metrics.ObserveCodec("encode", len(data), start)
	return data, nil
}

// Decode разбирает BCF-буфер (возможно, в кадре zstd) в сетку масштаба scale
func (m *GridManager) Decode(data []byte, scale uint32) (*cube.Grid, error) {
	if scale > cube.MaxGridScale {
		return nil, fmt.Errorf("масштаб %d больше допустимого %d", scale, cube.MaxGridScale)
	}
	if m.opts.Codec != nil {
		var err error
		if data, err = m.opts.Codec.Decode(data); err != nil {
			m.opts.Metrics.CodecError("zstd")
			return nil, err
		}
	}

	start := time.Now()
	root, err := bcf.Parse(data)
	if err != nil {
		m.opts.Metrics.CodecError(decodeErrorKind(err))
		return nil, err
	}
	m.opts.Metrics.ObserveCodec("decode", len(data), start)
	return cube.GridFromCube(root, scale), nil
}

// Snapshot сохраняет текущую сетку как неизменяемый снимок и возвращает его ID
func (m *GridManager) Snapshot(ctx context.Context, name string) (string, error) {
	g, err := m.Load(ctx, name)
	if err != nil {
		return "", err
	}
	snap := m.encodeSnapshot(name, g)
	if err := m.opts.Repo.SaveSnapshot(ctx, snap); err != nil {
		return "", err
	}
	m.opts.Metrics.Snapshot("save")
	logging.Info("Снимок %s сетки %s сохранен (%d байт)", snap.ID, name, len(snap.Data))
	return snap.ID, nil
}

// Restore заменяет сетку содержимым снимка id
func (m *GridManager) Restore(ctx context.Context, name, id string) (*cube.Grid, error) {
	snap, err := m.opts.Repo.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap.Grid != name {
		return nil, fmt.Errorf("%w: %s в сетке %s", ErrSnapshotNotFound, id, name)
	}
	g, err := m.decodeSnapshot(snap)
	if err != nil {
		logging.LogDecodeError("снимка "+id, err, snap.Data)
		return nil, fmt.Errorf("снимок %s поврежден: %w", id, err)
	}
	if err := m.Replace(ctx, name, g); err != nil {
		return nil, err
	}
	m.opts.Metrics.Snapshot("restore")
	return g, nil
}

// ListSnapshots возвращает снимки сетки без данных
func (m *GridManager) ListSnapshots(ctx context.Context, name string) ([]storage.Snapshot, error) {
	return m.opts.Repo.ListSnapshots(ctx, name)
}

// Flush сохраняет головы всех измененных сеток
func (m *GridManager) Flush(ctx context.Context) error {
	m.mu.RLock()
	entries := make(map[string]*gridEntry, len(m.grids))
	for name, e := range m.grids {
		entries[name] = e
	}
	m.mu.RUnlock()

	var firstErr error
	for name, e := range entries {
		e.mu.Lock()
		if e.dirty {
			if err := m.saveHead(ctx, name, e, e.grid.Load()); err != nil {
				logging.Error("Ошибка сохранения сетки %s: %v", name, err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		e.mu.Unlock()
	}
	return firstErr
}

// Run подписывается на инвалидацию и, при AutoSaveInterval > 0, периодически
// сохраняет измененные сетки. Блокируется до отмены ctx и выполняет
// финальный Flush.
func (m *GridManager) Run(ctx context.Context) error {
	if m.opts.Invalidator != nil {
		if err := m.opts.Invalidator.SubscribeInvalidations(ctx, m.HandleInvalidation); err != nil {
			return err
		}
	}

	var tick <-chan time.Time
	if m.opts.AutoSaveInterval > 0 {
		ticker := time.NewTicker(m.opts.AutoSaveInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return m.Flush(flushCtx)
		case <-tick:
			_ = m.Flush(ctx)
		}
	}
}

// HandleInvalidation выгружает сетку, если другой узел сохранил новую версию.
// Следующий Load прочитает свежую голову.
func (m *GridManager) HandleInvalidation(name, version string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.grids[name]
	if !ok || e.currentVersion() == version {
		return nil
	}
	if !e.mu.TryLock() {
		// идет локальная правка, ее голова перекроет чужую
		return nil
	}
	defer e.mu.Unlock()
	if e.dirty {
		logging.Warn("Сетка %s изменена другим узлом при несохраненных правках", name)
	}
	delete(m.grids, name)
	m.opts.Metrics.SetGrids(len(m.grids))
	logging.Debug("Сетка %s выгружена: новая версия %s", name, version)
	return nil
}

// saveHead сохраняет голову в хранилище и кэш. Вызывается под e.mu.
func (m *GridManager) saveHead(ctx context.Context, name string, e *gridEntry, g *cube.Grid) error {
	snap := m.encodeSnapshot(name, g)
	if err := m.opts.Repo.SaveHead(ctx, snap); err != nil {
		return fmt.Errorf("ошибка сохранения головы сетки %s: %w", name, err)
	}
	e.grid.Store(g)
	e.version.Store(&snap.ID)
	e.dirty = false
	m.opts.Metrics.Snapshot("head")

	m.putCache(ctx, snap)
	m.publish(ctx, name, snap.ID)
	return nil
}

func (m *GridManager) encodeSnapshot(name string, g *cube.Grid) storage.Snapshot {
	start := time.Now()
	data := bcf.Serialize(g.Root())
	m.opts.Metrics.ObserveCodec("encode", len(data), start)
	if m.opts.Codec != nil {
		data = m.opts.Codec.Encode(data)
	}
	return storage.Snapshot{
		ID:        uuid.NewString(),
		Grid:      name,
		Scale:     g.Scale(),
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

func (m *GridManager) decodeSnapshot(snap storage.Snapshot) (*cube.Grid, error) {
	return m.Decode(snap.Data, snap.Scale)
}

// loadHead читает голову из кэша, затем из хранилища
func (m *GridManager) loadHead(ctx context.Context, name string) (storage.Snapshot, error) {
	if m.opts.Cache != nil {
		data, err := m.opts.Cache.Get(ctx, name)
		if err == nil {
			var snap storage.Snapshot
			if err := json.Unmarshal(data, &snap); err == nil && snap.Grid == name {
				return snap, nil
			}
			logging.Warn("Некорректная запись кэша для сетки %s", name)
		} else if !cache.IsCacheMiss(err) {
			logging.Warn("Кэш недоступен для сетки %s: %v", name, err)
		}
	}

	snap, found, err := m.opts.Repo.LoadHead(ctx, name)
	if err != nil {
		return storage.Snapshot{}, err
	}
	if !found {
		return storage.Snapshot{}, fmt.Errorf("%w: %s", ErrGridNotFound, name)
	}
	m.putCache(ctx, snap)
	return snap, nil
}

func (m *GridManager) putCache(ctx context.Context, snap storage.Snapshot) {
	if m.opts.Cache == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := m.opts.Cache.Set(ctx, snap.Grid, data, m.opts.CacheTTL); err != nil {
		logging.Warn("Не удалось обновить кэш сетки %s: %v", snap.Grid, err)
	}
}

func (m *GridManager) dropCache(ctx context.Context, name string) {
	if m.opts.Cache == nil {
		return
	}
	if err := m.opts.Cache.Delete(ctx, name); err != nil {
		logging.Warn("Не удалось удалить сетку %s из кэша: %v", name, err)
	}
}

func (m *GridManager) publish(ctx context.Context, name, version string) {
	if m.opts.Invalidator == nil {
		return
	}
	if err := m.opts.Invalidator.PublishInvalidation(ctx, name, version); err != nil {
		logging.Warn("Не удалось опубликовать инвалидацию %s: %v", name, err)
	}
}

// decodeErrorKind метка типа ошибки разбора для метрик
func decodeErrorKind(err error) string {
	var (
		magic     *bcf.InvalidMagicError
		version   *bcf.UnsupportedVersionError
		truncated *bcf.TruncatedDataError
		offset    *bcf.InvalidOffsetError
		typeID    *bcf.InvalidTypeIDError
		ptr       *bcf.InvalidPointerSizeError
		recursion *bcf.RecursionLimitError
		nodes     *bcf.NodeLimitError
	)
	switch {
	case errors.As(err, &magic):
		return "magic"
	case errors.As(err, &version):
		return "version"
	case errors.As(err, &truncated):
		return "truncated"
	case errors.As(err, &offset):
		return "offset"
	case errors.As(err, &typeID):
		return "type_id"
	case errors.As(err, &ptr):
		return "pointer_size"
	case errors.As(err, &recursion):
		return "recursion"
	case errors.As(err, &nodes):
		return "node_limit"
	default:
		return "other"
	}
}
