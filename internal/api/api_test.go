package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"

	"github.com/annel0/voxel-engine/internal/bcf"
	"github.com/annel0/voxel-engine/internal/compress"
	"github.com/annel0/voxel-engine/internal/cube"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/mesh"
	"github.com/annel0/voxel-engine/internal/metrics"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	rs    *RestServer
	grids *world.GridManager
	log   *bytes.Buffer
}

func newTestServer(t *testing.T) *testServer {
	reg := prometheus.NewRegistry()
	codec, err := compress.NewCodec(true, 0)
	require.NoError(t, err)
	t.Cleanup(codec.Close)

	engine := metrics.NewEngineMetrics(reg)
	grids := world.NewGridManager(world.Options{
		Repo:    storage.NewMemorySnapshotRepo(),
		Codec:   codec,
		Metrics: engine,
	})
	var buf bytes.Buffer
	logger := logging.NewWriterLogger("api", &buf, logging.TRACE)
	logging.SetDefaultLogger(logger)
	t.Cleanup(func() { logging.SetDefaultLogger(logging.NewWriterLogger("default", os.Stdout, logging.INFO)) })

	rs := NewRestServer(Config{
		Grids:        grids,
		Border:       [4]uint8{0, 0, 0, 0},
		DefaultScale: 2,
		Metrics:      engine,
		Registerer:   reg,
		Logger:       logger,
	})
	return &testServer{rs: rs, grids: grids, log: &buf}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if _, raw := body.([]byte); !raw && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.rs.Handler().ServeHTTP(w, req)

	var resp GenericResponse
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

// decodeData перекладывает поле data ответа в out
func decodeData(t *testing.T, resp GenericResponse, out interface{}) {
	t.Helper()
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestHealthAndStats(t *testing.T) {
	ts := newTestServer(t)

	w, _ := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w, resp := ts.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Contains(t, w.Body.String(), "uptime")
}

func TestGridLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w, resp := ts.do(t, http.MethodPost, "/api/grids/main", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var info GridInfo
	decodeData(t, resp, &info)
	assert.Equal(t, uint32(2), info.Scale, "масштаб по умолчанию")
	assert.Equal(t, -2, info.MinCoord)
	assert.NotEmpty(t, info.Version)

	w, _ = ts.do(t, http.MethodPost, "/api/grids/main", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/grids/big", map[string]int{"scale": 5})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/grids/bad%20name", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp = ts.do(t, http.MethodGet, "/api/grids", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"big"`)

	w, _ = ts.do(t, http.MethodGet, "/api/grids/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = ts.do(t, http.MethodDelete, "/api/grids/big", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = ts.do(t, http.MethodDelete, "/api/grids/big", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetAndGetVoxels(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/grids/main", nil)

	w, resp := ts.do(t, http.MethodPut, "/api/grids/main/voxels", SetVoxelsRequest{Voxels: []VoxelEdit{
		{X: 0, Y: 0, Z: 0, Value: 42},
		{X: -5, Y: 3, Z: 2, Value: 43},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var info GridInfo
	decodeData(t, resp, &info)
	assert.Greater(t, info.Scale, uint32(2), "сетка расширилась")
	assert.Contains(t, ts.log.String(), "Сетка main: (-5,3,2) = 43")

	for _, tc := range []struct {
		x, y, z int
		want    uint8
	}{{0, 0, 0, 42}, {-5, 3, 2, 43}, {1, 1, 1, 0}} {
		path := "/api/grids/main/voxels?x=" + strconv.Itoa(tc.x) + "&y=" + strconv.Itoa(tc.y) + "&z=" + strconv.Itoa(tc.z)
		w, resp := ts.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var got VoxelEdit
		decodeData(t, resp, &got)
		assert.Equal(t, tc.want, got.Value, "воксель (%d,%d,%d)", tc.x, tc.y, tc.z)
	}

	w, _ = ts.do(t, http.MethodGet, "/api/grids/main/voxels?x=1&y=a&z=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodPut, "/api/grids/main/voxels", SetVoxelsRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "пустой пакет правок")

	w, _ = ts.do(t, http.MethodPut, "/api/grids/main/voxels", SetVoxelsRequest{Voxels: []VoxelEdit{{X: 1 << 40}}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodPut, "/api/grids/missing/voxels", SetVoxelsRequest{Voxels: []VoxelEdit{{Value: 1}}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRaycastEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/grids/main", nil)
	ts.do(t, http.MethodPut, "/api/grids/main/voxels", SetVoxelsRequest{Voxels: []VoxelEdit{
		{X: 1, Y: 1, Z: 1, Value: 7},
		{X: 0, Y: 0, Z: 0, Value: 3},
	}})

	w, resp := ts.do(t, http.MethodPost, "/api/grids/main/raycast", RaycastRequest{
		Origin:    [3]float64{-10, 1.5, 1.5},
		Direction: [3]float64{1, 0, 0},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var hit RaycastResponse
	decodeData(t, resp, &hit)
	assert.True(t, hit.Hit)
	assert.Equal(t, uint8(7), hit.Value)
	assert.Equal(t, [3]int{1, 1, 1}, hit.CellMin)
	assert.Equal(t, 1, hit.CellSize)
	assert.Equal(t, "-X", hit.Normal)
	assert.InDelta(t, 1.0, hit.Point[0], 1e-6)

	w, resp = ts.do(t, http.MethodPost, "/api/grids/main/raycast", RaycastRequest{
		Origin:    [3]float64{-1.5, 1.5, -1.5},
		Direction: [3]float64{0, 1, 0},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var miss RaycastResponse
	decodeData(t, resp, &miss)
	assert.False(t, miss.Hit)

	w, _ = ts.do(t, http.MethodPost, "/api/grids/main/raycast", RaycastRequest{Origin: [3]float64{0, 0, 0}})
	assert.Equal(t, http.StatusBadRequest, w.Code, "нулевое направление")

	w, _ = ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Contains(t, w.Body.String(), `voxel_raycasts_total{result="hit"} 1`)
	assert.Contains(t, w.Body.String(), "voxel_api_http_request_duration_seconds")
}

func TestMeshEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/grids/main", nil)
	ts.do(t, http.MethodPut, "/api/grids/main/voxels", SetVoxelsRequest{Voxels: []VoxelEdit{{X: 0, Y: 0, Z: 0, Value: 5}}})

	w, resp := ts.do(t, http.MethodGet, "/api/grids/main/mesh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var m struct {
		Vertices []float32 `json:"vertices"`
		Indices  []uint32  `json:"indices"`
		Colors   []float32 `json:"colors"`
		Faces    int       `json:"faces"`
		GridSize int       `json:"grid_size"`
	}
	decodeData(t, resp, &m)
	assert.Equal(t, 6, m.Faces, "одиночный воксель в пустоте")
	assert.Len(t, m.Vertices, 6*4*3)
	assert.Len(t, m.Indices, 6*6)
	assert.Equal(t, 4, m.GridSize)
	require.Len(t, m.Colors, 6*4*3)
	assert.Equal(t, []float32{0, 1, 0}, m.Colors[:3], "материал 5 (slime) из реестра")

	w, resp = ts.do(t, http.MethodGet, "/api/grids/main/mesh?colors=hsv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, resp, &m)
	hsv := mesh.NewHSVColorMapper().Map(5)
	assert.Equal(t, hsv[:], m.Colors[:3])

	w, resp = ts.do(t, http.MethodGet, "/api/grids/main/mesh?textured=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var textured struct {
		UVs []float32 `json:"uvs"`
	}
	decodeData(t, resp, &textured)
	assert.Len(t, textured.UVs, 6*4*2)
}

func TestBCFDownloadUpload(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/grids/main", nil)
	ts.do(t, http.MethodPut, "/api/grids/main/voxels", SetVoxelsRequest{Voxels: []VoxelEdit{{X: -1, Y: 0, Z: 1, Value: 99}}})

	w, _ := ts.do(t, http.MethodGet, "/api/grids/main/bcf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "2", w.Header().Get("X-Grid-Scale"))
	data := w.Body.Bytes()
	_, err := bcf.Inspect(data)
	require.NoError(t, err)

	w, _ = ts.do(t, http.MethodPut, "/api/grids/copy/bcf?scale=2", data)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v, err := ts.grids.GetVoxel("copy", vec.NewVec3(-1, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, uint8(99), v)

	// Без масштаба берется глубина дерева
	src := cube.NewGrid().WithScale(3).SetCube(vec.NewVec3(3, 3, 3), 12)
	w, resp := ts.do(t, http.MethodPut, "/api/grids/deep/bcf", bcf.Serialize(src.Root()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var info GridInfo
	decodeData(t, resp, &info)
	assert.Equal(t, uint32(3), info.Scale)

	w, _ = ts.do(t, http.MethodPut, "/api/grids/broken/bcf", []byte("not a bcf"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, ts.log.String(), "Ошибка разбора BCF")

	w, _ = ts.do(t, http.MethodPut, "/api/grids/copy/bcf?scale=x", data)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodGet, "/api/grids/missing/bcf", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = ts.do(t, http.MethodPut, "/api/grids/copy/bcf?scale=31", data)
	assert.Equal(t, http.StatusBadRequest, w.Code, "масштаб больше MaxGridScale")
}

// sharedPointerChain - BCF, где каждый уровень восемь раз ссылается на предыдущий
func sharedPointerChain(levels int) []byte {
	data := []byte{0x31, 0x46, 0x43, 0x42, bcf.Version, 0, 0, 0, 0, 0, 0, 0}
	prev := len(data)
	data = append(data, 0x90, 1, 1, 1, 1, 1, 1, 1, 1)
	for i := 0; i < levels; i++ {
		off := len(data)
		data = append(data, 0xA1)
		for j := 0; j < 8; j++ {
			data = append(data, byte(prev), byte(prev>>8))
		}
		prev = off
	}
	data[8], data[9] = byte(prev), byte(prev>>8)
	return data
}

func TestBCFUploadRejectsExplodingTree(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/api/grids/bomb/bcf", "/api/grids/bomb/bcf?scale=4"} {
		w, resp := ts.do(t, http.MethodPut, path, sharedPointerChain(40))
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.False(t, resp.Success)
	}
	_, ok := ts.grids.Get("bomb")
	assert.False(t, ok, "сетка не создана")
}

func TestSnapshotEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/grids/main", nil)
	ts.do(t, http.MethodPut, "/api/grids/main/voxels", SetVoxelsRequest{Voxels: []VoxelEdit{{Value: 1}}})

	w, resp := ts.do(t, http.MethodPost, "/api/grids/main/snapshots", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created map[string]string
	decodeData(t, resp, &created)
	id := created["id"]
	require.NotEmpty(t, id)

	ts.do(t, http.MethodPut, "/api/grids/main/voxels", SetVoxelsRequest{Voxels: []VoxelEdit{{Value: 2}}})

	w, resp = ts.do(t, http.MethodGet, "/api/grids/main/snapshots", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Snapshots []storage.Snapshot `json:"snapshots"`
		Total     int                `json:"total"`
	}
	decodeData(t, resp, &list)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, id, list.Snapshots[0].ID)
	assert.Empty(t, list.Snapshots[0].Data, "список без содержимого")

	w, _ = ts.do(t, http.MethodPost, "/api/grids/main/snapshots/"+id+"/restore", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	v, err := ts.grids.GetVoxel("main", vec.Zero)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), v)

	w, _ = ts.do(t, http.MethodPost, "/api/grids/main/snapshots/missing/restore", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	w, _ := ts.do(t, http.MethodOptions, "/api/grids/main", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "5с", formatUptime(5e9))
	assert.Equal(t, "1ч 0м 1с", formatUptime(3601e9))
}
