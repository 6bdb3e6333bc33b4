// Package traversal содержит обход дерева кубов с доступом к соседям.
//
// NeighborGrid - окно 4x4x4 вокруг узла: внутренние 2x2x2 ячейки хранят
// октанты узла, внешняя оболочка заполнена материалами границы по слоям Y.
// Соседи по граням доступны за O(1) без повторного спуска от корня.
package traversal

import (
	"github.com/annel0/voxel-engine/internal/cube"
	"github.com/annel0/voxel-engine/internal/vec"
)

const (
	// GridSize - ребро окна соседей
	GridSize = 4
	// GridCells - число ячеек окна
	GridCells = GridSize * GridSize * GridSize

	// Смещения линейного индекса для шести направлений
	OffsetLeft  = -1
	OffsetRight = 1
	OffsetDown  = -GridSize
	OffsetUp    = GridSize
	OffsetBack  = -GridSize * GridSize
	OffsetFront = GridSize * GridSize

	// CenterOffset - индекс ячейки (1,1,1), первого октанта узла
	CenterOffset = 1 + GridSize + GridSize*GridSize
)

// indexMul переводит позицию ячейки в линейный индекс скалярным произведением
var indexMul = vec.NewVec3(1, GridSize, GridSize*GridSize)

// XYZToIndex переводит позицию ячейки (0..3 по каждой оси) в линейный индекс
func XYZToIndex(x, y, z int) int {
	return x + y*GridSize + z*GridSize*GridSize
}

// IndexToPos переводит линейный индекс в позицию ячейки
func IndexToPos(index int) vec.Vec3 {
	return vec.NewVec3(index%GridSize, (index/GridSize)%GridSize, index/(GridSize*GridSize))
}

// OctantIndex возвращает индекс ячейки окна, в которой лежит октант узла
func OctantIndex(octant int) int {
	return CenterOffset + vec.FromOctantIndex(octant).Dot(indexMul)
}

// NeighborGrid - окно 4x4x4 ячеек вокруг узла
type NeighborGrid struct {
	cells [GridCells]*cube.Cube
}

// NewNeighborGrid строит окно для корня дерева. Оболочка заполняется
// материалами border по слоям Y: border[0] - нижний слой, border[3] - верхний.
func NewNeighborGrid(root *cube.Cube, border [4]uint8) *NeighborGrid {
	g := &NeighborGrid{}
	for i := range g.cells {
		g.cells[i] = cube.Solid(border[IndexToPos(i).Y])
	}
	for octant := 0; octant < 8; octant++ {
		g.cells[OctantIndex(octant)] = root.Octant(octant)
	}
	return g
}

// Get возвращает ячейку по линейному индексу
func (g *NeighborGrid) Get(index int) (*cube.Cube, bool) {
	if index < 0 || index >= GridCells {
		return nil, false
	}
	return g.cells[index], true
}

// View возвращает курсор на ячейку index
func (g *NeighborGrid) View(index int) NeighborView {
	return NeighborView{grid: g, index: index}
}

// NeighborView - курсор только для чтения на одну ячейку окна
type NeighborView struct {
	grid  *NeighborGrid
	index int
}

// Center возвращает ячейку под курсором
func (v NeighborView) Center() *cube.Cube {
	return v.grid.cells[v.index]
}

// Index возвращает линейный индекс ячейки под курсором
func (v NeighborView) Index() int {
	return v.index
}

// Pos возвращает позицию ячейки под курсором
func (v NeighborView) Pos() vec.Vec3 {
	return IndexToPos(v.index)
}

// Get возвращает соседа по линейному смещению или false, если он вне окна
func (v NeighborView) Get(offset int) (*cube.Cube, bool) {
	return v.grid.Get(v.index + offset)
}

// Neighbor возвращает соседа в направлении dir с проверкой границ по каждой оси
func (v NeighborView) Neighbor(dir vec.Vec3) (*cube.Cube, bool) {
	p := v.Pos().Add(dir)
	if p.X < 0 || p.Y < 0 || p.Z < 0 || p.X >= GridSize || p.Y >= GridSize || p.Z >= GridSize {
		return nil, false
	}
	return v.grid.cells[p.Dot(indexMul)], true
}

// CreateChildGrid строит окно на уровень глубже: внутренние ячейки
// нового окна - октанты ячейки под курсором, оболочка берется из октантов
// соседних ячеек. Курсор должен стоять во внутренней части окна.
func (v NeighborView) CreateChildGrid() *NeighborGrid {
	origin := v.Pos()
	child := &NeighborGrid{}
	for i := range child.cells {
		p := IndexToPos(i).Add(vec.One)
		parentOffset := p.Div(2).Sub(vec.One)
		octant := p.Mod(2).ToOctantIndex()
		parent := v.grid.cells[origin.Add(parentOffset).Dot(indexMul)]
		child.cells[i] = parent.Octant(octant)
	}
	return child
}
