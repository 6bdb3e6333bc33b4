package storage

import (
	"context"
	"sort"
	"sync"
)

// MemorySnapshotRepo реализует SnapshotRepo в памяти.
// Используется для тестов и локального запуска без хранилища.
// ВНИМАНИЕ: данные теряются при перезапуске!
type MemorySnapshotRepo struct {
	mu        sync.RWMutex
	heads     map[string]Snapshot
	snapshots map[string]Snapshot
}

// NewMemorySnapshotRepo создает пустой репозиторий в памяти
func NewMemorySnapshotRepo() *MemorySnapshotRepo {
	return &MemorySnapshotRepo{
		heads:     make(map[string]Snapshot),
		snapshots: make(map[string]Snapshot),
	}
}

func cloneSnapshot(s Snapshot) Snapshot {
	s.Data = append([]byte(nil), s.Data...)
	return s
}

func (r *MemorySnapshotRepo) SaveHead(ctx context.Context, snap Snapshot) error {
	if err := validateSnapshot(snap); err != nil {
		return err
	}
	if err := ctxDone(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.heads[snap.Grid] = cloneSnapshot(snap)
	return nil
}

func (r *MemorySnapshotRepo) LoadHead(ctx context.Context, grid string) (Snapshot, bool, error) {
	if err := ctxDone(ctx); err != nil {
		return Snapshot{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.heads[grid]
	if !ok {
		return Snapshot{}, false, nil
	}
	return cloneSnapshot(snap), true, nil
}

func (r *MemorySnapshotRepo) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if err := validateSnapshot(snap); err != nil {
		return err
	}
	if err := ctxDone(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[snap.ID] = cloneSnapshot(snap)
	return nil
}

func (r *MemorySnapshotRepo) LoadSnapshot(ctx context.Context, id string) (Snapshot, error) {
	if err := ctxDone(ctx); err != nil {
		return Snapshot{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.snapshots[id]
	if !ok {
		return Snapshot{}, ErrSnapshotNotFound
	}
	return cloneSnapshot(snap), nil
}

func (r *MemorySnapshotRepo) ListSnapshots(ctx context.Context, grid string) ([]Snapshot, error) {
	if err := ctxDone(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Snapshot
	for _, snap := range r.snapshots {
		if snap.Grid == grid {
			snap.Data = nil
			out = append(out, snap)
		}
	}
	sortSnapshots(out)
	return out, nil
}

func (r *MemorySnapshotRepo) ListGrids(ctx context.Context) ([]string, error) {
	if err := ctxDone(ctx); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.heads))
	for name := range r.heads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *MemorySnapshotRepo) DeleteGrid(ctx context.Context, grid string) error {
	if err := ctxDone(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.heads, grid)
	for id, snap := range r.snapshots {
		if snap.Grid == grid {
			delete(r.snapshots, id)
		}
	}
	return nil
}

func (r *MemorySnapshotRepo) Close() error {
	return nil
}

// sortSnapshots упорядочивает по времени создания, затем по ID
func sortSnapshots(s []Snapshot) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].CreatedAt.Equal(s[j].CreatedAt) {
			return s[i].ID < s[j].ID
		}
		return s[i].CreatedAt.Before(s[j].CreatedAt)
	})
}
