package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/dgraph-io/badger/v3"
)

// BadgerSnapshotRepo хранит снимки сеток в BadgerDB.
//
// Ключи:
//
//	grid:<name>:head        голова сетки (JSON Snapshot)
//	grid:<name>:snap:<id>   индекс снимков сетки (пустое значение)
//	snapshot:<id>           снимок (JSON Snapshot)
type BadgerSnapshotRepo struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerSnapshotRepo открывает хранилище в каталоге dbPath
func NewBadgerSnapshotRepo(dbPath string) (*BadgerSnapshotRepo, error) {
	opts := badger.DefaultOptions(dbPath).WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerSnapshotRepo{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

func headKey(grid string) []byte {
	return []byte("grid:" + grid + ":head")
}

func indexPrefix(grid string) []byte {
	return []byte("grid:" + grid + ":snap:")
}

func snapshotKey(id string) []byte {
	return []byte("snapshot:" + id)
}

// Close закрывает хранилище
func (r *BadgerSnapshotRepo) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.isReady {
		return nil
	}

	r.isReady = false
	return r.db.Close()
}

func (r *BadgerSnapshotRepo) ready() error {
	if !r.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	return nil
}

func (r *BadgerSnapshotRepo) SaveHead(ctx context.Context, snap Snapshot) error {
	if err := validateSnapshot(snap); err != nil {
		return err
	}
	if err := ctxDone(ctx); err != nil {
		return err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(); err != nil {
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("ошибка сериализации головы сетки %s: %w", snap.Grid, err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(headKey(snap.Grid), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

func (r *BadgerSnapshotRepo) LoadHead(ctx context.Context, grid string) (Snapshot, bool, error) {
	if err := ctxDone(ctx); err != nil {
		return Snapshot{}, false, err
	}

	snap, err := r.load(headKey(grid))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("ошибка чтения головы сетки %s: %w", grid, err)
	}
	return snap, true, nil
}

func (r *BadgerSnapshotRepo) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if err := validateSnapshot(snap); err != nil {
		return err
	}
	if err := ctxDone(ctx); err != nil {
		return err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(); err != nil {
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("ошибка сериализации снимка %s: %w", snap.ID, err)
	}

	// Снимок и запись индекса пишутся в одной транзакции
	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(snapshotKey(snap.ID), data); err != nil {
			return err
		}
		return txn.Set(append(indexPrefix(snap.Grid), snap.ID...), nil)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения снимка в BadgerDB: %w", err)
	}
	return nil
}

func (r *BadgerSnapshotRepo) LoadSnapshot(ctx context.Context, id string) (Snapshot, error) {
	if err := ctxDone(ctx); err != nil {
		return Snapshot{}, err
	}

	snap, err := r.load(snapshotKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("ошибка чтения снимка %s: %w", id, err)
	}
	return snap, nil
}

func (r *BadgerSnapshotRepo) ListSnapshots(ctx context.Context, grid string) ([]Snapshot, error) {
	if err := ctxDone(ctx); err != nil {
		return nil, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(); err != nil {
		return nil, err
	}

	var out []Snapshot
	prefix := indexPrefix(grid)
	err := r.db.View(func(txn *badger.Txn) error {
		ids := r.scanKeys(txn, prefix)
		for _, key := range ids {
			id := strings.TrimPrefix(key, string(prefix))
			snap, err := readJSON(txn, snapshotKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			snap.Data = nil
			out = append(out, snap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка снимков %s: %w", grid, err)
	}

	sortSnapshots(out)
	return out, nil
}

func (r *BadgerSnapshotRepo) ListGrids(ctx context.Context) ([]string, error) {
	if err := ctxDone(ctx); err != nil {
		return nil, err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(); err != nil {
		return nil, err
	}

	var names []string
	err := r.db.View(func(txn *badger.Txn) error {
		for _, key := range r.scanKeys(txn, []byte("grid:")) {
			if name, ok := strings.CutSuffix(strings.TrimPrefix(key, "grid:"), ":head"); ok && !strings.Contains(name, ":") {
				names = append(names, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка сеток: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

func (r *BadgerSnapshotRepo) DeleteGrid(ctx context.Context, grid string) error {
	if err := ctxDone(ctx); err != nil {
		return err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(); err != nil {
		return err
	}

	prefix := indexPrefix(grid)
	err := r.db.Update(func(txn *badger.Txn) error {
		for _, key := range r.scanKeys(txn, prefix) {
			id := strings.TrimPrefix(key, string(prefix))
			if err := txn.Delete(snapshotKey(id)); err != nil {
				return err
			}
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return txn.Delete(headKey(grid))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления сетки %s: %w", grid, err)
	}
	return nil
}

func (r *BadgerSnapshotRepo) load(key []byte) (Snapshot, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		snap, err = readJSON(txn, key)
		return err
	})
	return snap, err
}

// scanKeys возвращает копии ключей с префиксом prefix
func (r *BadgerSnapshotRepo) scanKeys(txn *badger.Txn, prefix []byte) []string {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, string(it.Item().KeyCopy(nil)))
	}
	return keys
}

func readJSON(txn *badger.Txn, key []byte) (Snapshot, error) {
	var snap Snapshot
	item, err := txn.Get(key)
	if err != nil {
		return snap, err
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &snap)
	})
	if err != nil {
		return snap, fmt.Errorf("ошибка десериализации %s: %w", key, err)
	}
	return snap, nil
}

// badgerLogger направляет сообщения BadgerDB в общий лог.
// Info у badger шумный, поэтому уходит в DEBUG.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error("[badger] "+strings.TrimSpace(format), args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn("[badger] "+strings.TrimSpace(format), args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug("[badger] "+strings.TrimSpace(format), args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Trace("[badger] "+strings.TrimSpace(format), args...)
}
