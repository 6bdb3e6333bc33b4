package world

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/annel0/voxel-engine/internal/cache"
	"github.com/annel0/voxel-engine/internal/compress"
	"github.com/annel0/voxel-engine/internal/cube"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingInvalidator struct {
	mu        sync.Mutex
	published []string
}

func (r *recordingInvalidator) PublishInvalidation(_ context.Context, key, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, key+"@"+version)
	return nil
}

func (r *recordingInvalidator) SubscribeInvalidations(context.Context, cache.InvalidationHandler) error {
	return nil
}

func (r *recordingInvalidator) Close() error { return nil }

func newTestManager(t *testing.T, repo storage.SnapshotRepo) *GridManager {
	codec, err := compress.NewCodec(true, 0)
	require.NoError(t, err)
	t.Cleanup(codec.Close)
	return NewGridManager(Options{
		Repo:    repo,
		Codec:   codec,
		Metrics: metrics.NewEngineMetrics(prometheus.NewRegistry()),
	})
}

func TestCreateAndEdit(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, storage.NewMemorySnapshotRepo())

	g, err := m.Create(ctx, "main", 4)
	require.NoError(t, err)
	assert.Equal(t, 16, g.Size())

	_, err = m.Create(ctx, "main", 4)
	assert.ErrorIs(t, err, ErrGridExists)
	_, err = m.Create(ctx, "bad name", 1)
	assert.ErrorIs(t, err, storage.ErrInvalidGridName)

	_, err = m.SetVoxel(ctx, "main", vec.NewVec3(0, 0, 0), 42)
	require.NoError(t, err)
	_, err = m.SetVoxel(ctx, "main", vec.NewVec3(-5, 3, 2), 43)
	require.NoError(t, err)
	g, err = m.SetVoxel(ctx, "main", vec.NewVec3(100, 0, 0), 44)
	require.NoError(t, err)
	assert.Greater(t, g.Scale(), uint32(4), "сетка расширилась")

	for p, want := range map[vec.Vec3]uint8{
		vec.NewVec3(0, 0, 0):   42,
		vec.NewVec3(-5, 3, 2):  43,
		vec.NewVec3(100, 0, 0): 44,
		vec.NewVec3(1, 1, 1):   0,
	} {
		got, err := m.GetVoxel("main", p)
		require.NoError(t, err)
		assert.Equal(t, want, got, "воксель %v", p)
	}

	_, err = m.GetVoxel("missing", vec.Zero)
	assert.ErrorIs(t, err, ErrGridNotFound)
	_, err = m.SetVoxel(ctx, "missing", vec.Zero, 1)
	assert.ErrorIs(t, err, ErrGridNotFound)
	assert.Equal(t, []string{"main"}, m.Names())

	before, _ := m.Version("main")
	_, err = m.SetVoxel(ctx, "main", vec.NewVec3(1<<62, 0, 0), 1)
	assert.ErrorIs(t, err, cube.ErrCoordOutOfRange)
	after, _ := m.Version("main")
	assert.Equal(t, before, after, "отклоненная правка не меняет версию")
}

func TestOldRootsSurviveEdits(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, storage.NewMemorySnapshotRepo())
	_, err := m.Create(ctx, "main", 2)
	require.NoError(t, err)

	before, _ := m.Get("main")
	_, err = m.SetVoxel(ctx, "main", vec.NewVec3(1, 1, 1), 9)
	require.NoError(t, err)
	after, _ := m.Get("main")

	assert.Equal(t, uint8(0), before.GetCube(vec.NewVec3(1, 1, 1)))
	assert.Equal(t, uint8(9), after.GetCube(vec.NewVec3(1, 1, 1)))
}

func TestPersistenceAcrossManagers(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemorySnapshotRepo()

	m := newTestManager(t, repo)
	_, err := m.Create(ctx, "main", 3)
	require.NoError(t, err)
	_, err = m.SetVoxel(ctx, "main", vec.NewVec3(-4, 2, 3), 200)
	require.NoError(t, err)

	head, found, err := repo.LoadHead(ctx, "main")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, compress.IsCompressed(head.Data))
	version, _ := m.Version("main")
	assert.Equal(t, head.ID, version)

	fresh := newTestManager(t, repo)
	n, err := fresh.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	v, err := fresh.GetVoxel("main", vec.NewVec3(-4, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, uint8(200), v)
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, storage.NewMemorySnapshotRepo())
	_, err := m.Create(ctx, "main", 2)
	require.NoError(t, err)
	_, err = m.Create(ctx, "other", 2)
	require.NoError(t, err)

	_, err = m.SetVoxel(ctx, "main", vec.NewVec3(0, 0, 0), 1)
	require.NoError(t, err)
	id, err := m.Snapshot(ctx, "main")
	require.NoError(t, err)

	_, err = m.SetVoxel(ctx, "main", vec.NewVec3(0, 0, 0), 2)
	require.NoError(t, err)

	g, err := m.Restore(ctx, "main", id)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), g.GetCube(vec.Zero))
	v, _ := m.GetVoxel("main", vec.Zero)
	assert.Equal(t, uint8(1), v)

	_, err = m.Restore(ctx, "other", id)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
	_, err = m.Restore(ctx, "main", "missing")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	list, err := m.ListSnapshots(ctx, "main")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}

func TestConcurrentEditsSerialized(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, storage.NewMemorySnapshotRepo())
	_, err := m.Create(ctx, "main", 3)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.SetVoxel(ctx, "main", vec.NewVec3(i-4, 0, 0), uint8(i+1))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		v, err := m.GetVoxel("main", vec.NewVec3(i-4, 0, 0))
		require.NoError(t, err)
		assert.Equal(t, uint8(i+1), v, "правка %d не потеряна", i)
	}
}

func TestAutoSaveDefersWrites(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemorySnapshotRepo()
	m := NewGridManager(Options{Repo: repo, AutoSaveInterval: time.Hour})

	_, err := m.Create(ctx, "main", 2)
	require.NoError(t, err)
	_, err = m.SetVoxel(ctx, "main", vec.NewVec3(1, 1, 1), 5)
	require.NoError(t, err)

	head, _, err := repo.LoadHead(ctx, "main")
	require.NoError(t, err)
	g, err := m.Decode(head.Data, head.Scale)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), g.GetCube(vec.NewVec3(1, 1, 1)), "правка еще не сохранена")

	require.NoError(t, m.Flush(ctx))
	head, _, err = repo.LoadHead(ctx, "main")
	require.NoError(t, err)
	g, err = m.Decode(head.Data, head.Scale)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), g.GetCube(vec.NewVec3(1, 1, 1)))
}

func TestRunFlushesOnCancel(t *testing.T) {
	repo := storage.NewMemorySnapshotRepo()
	m := NewGridManager(Options{Repo: repo, AutoSaveInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	_, err := m.Create(ctx, "main", 1)
	require.NoError(t, err)
	_, err = m.SetVoxel(ctx, "main", vec.NewVec3(0, 0, 0), 3)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)

	fresh := NewGridManager(Options{Repo: repo})
	v, err := func() (uint8, error) {
		if _, err := fresh.Load(context.Background(), "main"); err != nil {
			return 0, err
		}
		return fresh.GetVoxel("main", vec.Zero)
	}()
	require.NoError(t, err)
	assert.Equal(t, uint8(3), v)
}

func TestCacheAndInvalidation(t *testing.T) {
	ctx := context.Background()
	blobs := cache.NewMemoryBlobCache()
	inv := &recordingInvalidator{}
	m := NewGridManager(Options{Cache: blobs, Invalidator: inv})

	_, err := m.Create(ctx, "main", 2)
	require.NoError(t, err)
	_, err = m.SetVoxel(ctx, "main", vec.NewVec3(1, 0, 0), 7)
	require.NoError(t, err)

	version, _ := m.Version("main")
	require.Len(t, inv.published, 2)
	assert.Equal(t, "main@"+version, inv.published[1])

	// Второй узел с пустым хранилищем читает голову из общего кэша
	peer := NewGridManager(Options{Cache: blobs})
	_, err = peer.Load(ctx, "main")
	require.NoError(t, err)
	v, _ := peer.GetVoxel("main", vec.NewVec3(1, 0, 0))
	assert.Equal(t, uint8(7), v)

	require.NoError(t, peer.HandleInvalidation("main", version))
	_, ok := peer.Get("main")
	assert.True(t, ok, "та же версия не выгружает сетку")

	require.NoError(t, peer.HandleInvalidation("main", "newer"))
	_, ok = peer.Get("main")
	assert.False(t, ok)
}

func TestDeleteAndCorruptHead(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemorySnapshotRepo()
	m := newTestManager(t, repo)

	_, err := m.Create(ctx, "main", 1)
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, "main"))
	assert.ErrorIs(t, m.Delete(ctx, "main"), ErrGridNotFound)
	_, err = m.Load(ctx, "main")
	assert.ErrorIs(t, err, ErrGridNotFound)

	require.NoError(t, repo.SaveHead(ctx, storage.Snapshot{ID: "x", Grid: "broken", Data: []byte{1, 2, 3}}))
	_, err = m.Load(ctx, "broken")
	assert.Error(t, err)

	n, err := m.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEncodeDecodeAndReplace(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, storage.NewMemorySnapshotRepo())

	src := cube.NewGrid().WithScale(2).SetCube(vec.NewVec3(-2, 1, 0), 150)
	require.NoError(t, m.Replace(ctx, "imported", src))

	data, err := m.Encode("imported")
	require.NoError(t, err)
	g, err := m.Decode(data, 2)
	require.NoError(t, err)
	assert.Equal(t, uint8(150), g.GetCube(vec.NewVec3(-2, 1, 0)))

	_, err = m.Encode("missing")
	assert.ErrorIs(t, err, ErrGridNotFound)
	_, err = m.Decode(data, cube.MaxGridScale+1)
	assert.Error(t, err)
}
