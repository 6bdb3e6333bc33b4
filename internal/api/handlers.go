package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/voxel-engine/internal/bcf"
	"github.com/annel0/voxel-engine/internal/compress"
	"github.com/annel0/voxel-engine/internal/cube"
	"github.com/annel0/voxel-engine/internal/logging"
	"github.com/annel0/voxel-engine/internal/mesh"
	"github.com/annel0/voxel-engine/internal/observability"
	"github.com/annel0/voxel-engine/internal/raycast"
	"github.com/annel0/voxel-engine/internal/storage"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/annel0/voxel-engine/internal/world"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// CreateGridRequest тело POST /api/grids/:name
type CreateGridRequest struct {
	Scale *uint32 `json:"scale"`
}

// VoxelEdit одна правка вокселя в координатах сетки
type VoxelEdit struct {
	X     int   `json:"x"`
	Y     int   `json:"y"`
	Z     int   `json:"z"`
	Value uint8 `json:"value"`
}

// SetVoxelsRequest тело PUT /api/grids/:name/voxels.
// Все правки применяются одной версией сетки.
type SetVoxelsRequest struct {
	Voxels []VoxelEdit `json:"voxels" binding:"required,min=1"`
}

// RaycastRequest луч в координатах сетки: воксель p занимает [p, p+1)
type RaycastRequest struct {
	Origin    [3]float64 `json:"origin"`
	Direction [3]float64 `json:"direction"`
	MaxDepth  uint32     `json:"max_depth"`
}

// RaycastResponse итог броска в координатах сетки
type RaycastResponse struct {
	Hit      bool       `json:"hit"`
	Value    uint8      `json:"value"`
	Normal   string     `json:"normal,omitempty"`
	Point    [3]float64 `json:"point"`
	CellMin  [3]int     `json:"cell_min"`
	CellSize int        `json:"cell_size"`
	Depth    uint32     `json:"depth"`
}

// GridInfo описание сетки
type GridInfo struct {
	Name     string     `json:"name"`
	Version  string     `json:"version"`
	Scale    uint32     `json:"scale"`
	Size     int        `json:"size"`
	MinCoord int        `json:"min_coord"`
	MaxCoord int        `json:"max_coord"`
	Stats    cube.Stats `json:"stats"`
}

// MeshResponse буферы сетки граней в системе корня [0,1]^3.
// Точка сетки получается как v*grid_size + min_coord.
type MeshResponse struct {
	*mesh.DefaultMeshBuilder
	Faces    int `json:"faces"`
	GridSize int `json:"grid_size"`
	MinCoord int `json:"min_coord"`
}

// writeError переводит ошибку менеджера в HTTP-ответ
func (rs *RestServer) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, world.ErrGridNotFound), errors.Is(err, world.ErrSnapshotNotFound):
		status = http.StatusNotFound
	case errors.Is(err, world.ErrGridExists):
		status = http.StatusConflict
	case errors.Is(err, storage.ErrInvalidGridName), errors.Is(err, cube.ErrCoordOutOfRange), isBCFError(err):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		rs.logf(logging.ERROR, "%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, GenericResponse{Success: false, Message: err.Error()})
}

func badRequest(c *gin.Context, format string, args ...interface{}) {
	c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: fmt.Sprintf(format, args...)})
}

func isBCFError(err error) bool {
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
	return errors.As(err, &magic) || errors.As(err, &version) || errors.As(err, &truncated) ||
		errors.As(err, &offset) || errors.As(err, &typeID) || errors.As(err, &ptr) ||
		errors.As(err, &recursion) || errors.As(err, &nodes)
}

// handleStats возвращает статистику сервера
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	names := rs.grids.Names()
	stats["grids"] = map[string]interface{}{
		"loaded": len(names),
		"names":  names,
	}

	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, _ := rs.metrics.GetCPUUsage()

	stats["server"] = map[string]interface{}{
		"uptime":      rs.metrics.GetUptime(),
		"memory_mb":   fmt.Sprintf("%.2f", memoryMB),
		"cpu_percent": fmt.Sprintf("%.2f", cpuPercent),
		"server_time": time.Now().Unix(),
	}
	stats["memory"] = rs.metrics.GetDetailedMemoryStats()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

func (rs *RestServer) handleListGrids(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список сеток получен",
		Data:    map[string]interface{}{"grids": rs.grids.Names()},
	})
}

func (rs *RestServer) gridInfo(name string, g *cube.Grid) GridInfo {
	version, _ := rs.grids.Version(name)
	return GridInfo{
		Name:     name,
		Version:  version,
		Scale:    g.Scale(),
		Size:     g.Size(),
		MinCoord: g.MinCoord(),
		MaxCoord: g.MaxCoord(),
		Stats:    g.Root().Stats(),
	}
}

// handleCreateGrid создает пустую сетку; тело необязательно
func (rs *RestServer) handleCreateGrid(c *gin.Context) {
	var req CreateGridRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Неверный формат запроса: %v", err)
			return
		}
	}
	scale := rs.defaultScale
	if req.Scale != nil {
		scale = *req.Scale
	}

	name := c.Param("name")
	g, err := rs.grids.Create(c.Request.Context(), name, scale)
	if err != nil {
		rs.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Сетка создана",
		Data:    rs.gridInfo(name, g),
	})
}

func (rs *RestServer) handleGetGrid(c *gin.Context) {
	name := c.Param("name")
	g, err := rs.grids.Load(c.Request.Context(), name)
	if err != nil {
		rs.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Сетка получена",
		Data:    rs.gridInfo(name, g),
	})
}

func (rs *RestServer) handleDeleteGrid(c *gin.Context) {
	if err := rs.grids.Delete(c.Request.Context(), c.Param("name")); err != nil {
		rs.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Сетка удалена"})
}

// handleGetVoxel читает воксель по ?x=&y=&z=
func (rs *RestServer) handleGetVoxel(c *gin.Context) {
	var coords [3]int
	for i, key := range []string{"x", "y", "z"} {
		v, err := strconv.Atoi(c.Query(key))
		if err != nil {
			badRequest(c, "Некорректная координата %s", key)
			return
		}
		coords[i] = v
	}

	name := c.Param("name")
	if _, err := rs.grids.Load(c.Request.Context(), name); err != nil {
		rs.writeError(c, err)
		return
	}
	p := vec.NewVec3(coords[0], coords[1], coords[2])
	value, err := rs.grids.GetVoxel(name, p)
	if err != nil {
		rs.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Воксель получен",
		Data:    VoxelEdit{X: p.X, Y: p.Y, Z: p.Z, Value: value},
	})
}

// handleSetVoxels применяет пакет правок; сетка расширяется при выходе за границы
func (rs *RestServer) handleSetVoxels(c *gin.Context) {
	var req SetVoxelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса: %v", err)
		return
	}

	for _, v := range req.Voxels {
		if !cube.InRange(vec.NewVec3(v.X, v.Y, v.Z)) {
			badRequest(c, "Координата (%d,%d,%d) вне допустимого диапазона", v.X, v.Y, v.Z)
			return
		}
	}

	name := c.Param("name")
	g, err := rs.grids.Update(c.Request.Context(), name, func(g *cube.Grid) (*cube.Grid, error) {
		for _, v := range req.Voxels {
			next, err := g.TrySetCube(vec.NewVec3(v.X, v.Y, v.Z), v.Value)
			if err != nil {
				return nil, err
			}
			g = next
		}
		return g, nil
	})
	if err != nil {
		rs.writeError(c, err)
		return
	}
	for _, v := range req.Voxels {
		logging.LogGridEdit(name, v.X, v.Y, v.Z, v.Value, g.Scale())
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: fmt.Sprintf("Применено правок: %d", len(req.Voxels)),
		Data:    rs.gridInfo(name, g),
	})
}

// handleRaycast бросает луч через сетку
func (rs *RestServer) handleRaycast(c *gin.Context) {
	var req RaycastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса: %v", err)
		return
	}

	name := c.Param("name")
	g, err := rs.grids.Load(c.Request.Context(), name)
	if err != nil {
		rs.writeError(c, err)
		return
	}

	_, span := observability.StartSpan(c.Request.Context(), "raycast.Cast")
	defer span.End()
	span.SetAttributes(attribute.String("grid", name), attribute.Int("scale", int(g.Scale())))

	size := float64(g.Size())
	lo := float64(g.MinCoord())
	origin := vec.NewVec3Float(
		(req.Origin[0]-lo)/size,
		(req.Origin[1]-lo)/size,
		(req.Origin[2]-lo)/size,
	)
	dir := vec.NewVec3Float(req.Direction[0], req.Direction[1], req.Direction[2])

	maxDepth := g.Scale()
	if req.MaxDepth > 0 && req.MaxDepth < maxDepth {
		maxDepth = req.MaxDepth
	}

	start := time.Now()
	res, err := raycast.Cast(g.Root(), origin, dir, raycast.Options{MaxDepth: maxDepth, MaxSteps: rs.maxRaySteps})
	switch {
	case errors.Is(err, raycast.ErrInvalidDirection), errors.Is(err, raycast.ErrStartOutOfBounds):
		rs.engine.ObserveRaycast("invalid", start)
		badRequest(c, "%v", err)
		return
	case err != nil:
		rs.engine.ObserveRaycast("error", start)
		span.RecordError(err)
		rs.writeError(c, err)
		return
	}

	resp := RaycastResponse{
		Hit: res.Hit,
		Point: [3]float64{
			res.Point.X*size + lo,
			res.Point.Y*size + lo,
			res.Point.Z*size + lo,
		},
	}
	if res.Hit {
		rs.engine.ObserveRaycast("hit", start)
		cellSize := g.Size() >> res.Coord.Depth
		corner := res.Coord.Corner()
		resp.Value = res.Value
		resp.Normal = res.Normal.String()
		resp.Depth = res.Coord.Depth
		resp.CellSize = cellSize
		resp.CellMin = [3]int{
			corner.X*cellSize + g.MinCoord(),
			corner.Y*cellSize + g.MinCoord(),
			corner.Z*cellSize + g.MinCoord(),
		}
	} else {
		rs.engine.ObserveRaycast("miss", start)
	}
	span.SetAttributes(attribute.Bool("hit", res.Hit))

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Луч обработан", Data: resp})
}

// handleMesh строит сетку видимых граней; ?textured=true добавляет UV и материалы.
// Цвета берутся из реестра материалов, ?colors=hsv раскрашивает по кругу оттенков.
func (rs *RestServer) handleMesh(c *gin.Context) {
	name := c.Param("name")
	g, err := rs.grids.Load(c.Request.Context(), name)
	if err != nil {
		rs.writeError(c, err)
		return
	}

	_, span := observability.StartSpan(c.Request.Context(), "mesh.Generate")
	defer span.End()

	builder := mesh.NewDefaultMeshBuilder()
	var colors mesh.ColorMapper = mesh.RegistryColorMapper{}
	if c.Query("colors") == "hsv" {
		colors = mesh.NewHSVColorMapper()
	}
	start := time.Now()
	var faces int
	if c.Query("textured") == "true" {
		faces = mesh.GenerateTexturedMesh(g.Root(), builder, colors, rs.border)
	} else {
		faces = mesh.GenerateMesh(g.Root(), builder, colors, rs.border)
	}
	rs.engine.ObserveMesh(faces, start)
	span.SetAttributes(attribute.String("grid", name), attribute.Int("faces", faces))

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Сетка граней построена",
		Data: MeshResponse{
			DefaultMeshBuilder: builder,
			Faces:              faces,
			GridSize:           g.Size(),
			MinCoord:           g.MinCoord(),
		},
	})
}

// handleDownloadBCF отдает текущую сетку в BCF
func (rs *RestServer) handleDownloadBCF(c *gin.Context) {
	name := c.Param("name")
	g, err := rs.grids.Load(c.Request.Context(), name)
	if err != nil {
		rs.writeError(c, err)
		return
	}
	data, err := rs.grids.Encode(name)
	if err != nil {
		rs.writeError(c, err)
		return
	}
	version, _ := rs.grids.Version(name)
	c.Header("X-Grid-Scale", strconv.FormatUint(uint64(g.Scale()), 10))
	c.Header("X-Grid-Version", version)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".bcf"))
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// handleUploadBCF заменяет сетку содержимым BCF (допускается zstd-кадр).
// Масштаб берется из ?scale= или заголовка X-Grid-Scale; без них - глубина дерева.
func (rs *RestServer) handleUploadBCF(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, GenericResponse{Success: false, Message: err.Error()})
		return
	}

	raw := c.Query("scale")
	if raw == "" {
		raw = c.GetHeader("X-Grid-Scale")
	}

	name := c.Param("name")
	var scale uint32
	if raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			badRequest(c, "Некорректный масштаб %q", raw)
			return
		}
		scale = uint32(v)
	}

	g, err := rs.grids.Decode(data, scale)
	if errors.Is(err, compress.ErrTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, GenericResponse{Success: false, Message: err.Error()})
		return
	}
	if err != nil {
		logging.LogDecodeError("загрузки "+name, err, data)
		badRequest(c, "Некорректный BCF: %v", err)
		return
	}
	if raw == "" {
		depth := g.Root().MaxDepth()
		if depth > cube.MaxGridScale {
			badRequest(c, "Глубина дерева %d больше допустимой %d", depth, cube.MaxGridScale)
			return
		}
		g = g.WithScale(uint32(depth))
	}

	if err := rs.grids.Replace(c.Request.Context(), name, g); err != nil {
		rs.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Сетка загружена",
		Data:    rs.gridInfo(name, g),
	})
}

func (rs *RestServer) handleListSnapshots(c *gin.Context) {
	list, err := rs.grids.ListSnapshots(c.Request.Context(), c.Param("name"))
	if err != nil {
		rs.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список снимков получен",
		Data:    map[string]interface{}{"snapshots": list, "total": len(list)},
	})
}

func (rs *RestServer) handleCreateSnapshot(c *gin.Context) {
	id, err := rs.grids.Snapshot(c.Request.Context(), c.Param("name"))
	if err != nil {
		rs.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, GenericResponse{
		Success: true,
		Message: "Снимок сохранен",
		Data:    map[string]string{"id": id},
	})
}

func (rs *RestServer) handleRestoreSnapshot(c *gin.Context) {
	name := c.Param("name")
	g, err := rs.grids.Restore(c.Request.Context(), name, c.Param("id"))
	if err != nil {
		rs.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Снимок восстановлен",
		Data:    rs.gridInfo(name, g),
	})
}
