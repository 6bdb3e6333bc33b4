package cube

import (
	"errors"
	"fmt"

	"github.com/annel0/voxel-engine/internal/vec"
)

// EmptyBorder - материалы границы для авторасширения сетки
var EmptyBorder = [4]uint8{}

// MaxGridScale - наибольший масштаб, при котором координаты помещаются в int32
const MaxGridScale = 30

// ErrCoordOutOfRange - координата не помещается в сетку масштаба MaxGridScale
var ErrCoordOutOfRange = errors.New("cube: координата вне допустимого диапазона")

// InRange проверяет, что p помещается в сетку масштаба MaxGridScale
func InRange(p vec.Vec3) bool {
	half := 1 << (MaxGridScale - 1)
	return p.X >= -half && p.X < half &&
		p.Y >= -half && p.Y < half &&
		p.Z >= -half && p.Z < half
}

// Grid - неограниченная сетка вокселей с центром в начале координат.
//
// Корень имеет глубину scale и покрывает координаты [-size/2, size/2) по каждой
// оси, где size = 1 << scale (при scale == 0 допустима только координата 0).
// Grid неизменяема: SetCube возвращает новую сетку, старая остается валидным
// снимком. Одновременные записи в одну логическую сетку вызывающий
// сериализует сам.
type Grid struct {
	root  *Cube
	scale uint32
}

// NewGrid создает пустую сетку (Solid(0), scale 0)
func NewGrid() *Grid {
	return &Grid{root: Empty()}
}

// SolidGrid создает сетку из одного вокселя с материалом material
func SolidGrid(material uint8) *Grid {
	return &Grid{root: Solid(material)}
}

// GridFromCube оборачивает готовое дерево глубины scale
func GridFromCube(root *Cube, scale uint32) *Grid {
	if root == nil {
		root = Empty()
	}
	return &Grid{root: root, scale: scale}
}

// WithScale возвращает сетку с тем же корнем и новым масштабом
func (g *Grid) WithScale(scale uint32) *Grid {
	return &Grid{root: g.root, scale: scale}
}

// Root возвращает корень дерева
func (g *Grid) Root() *Cube {
	return g.root
}

// Scale возвращает масштаб (глубину дерева)
func (g *Grid) Scale() uint32 {
	return g.scale
}

// Depth возвращает глубину дерева; совпадает с масштабом
func (g *Grid) Depth() uint32 {
	return g.scale
}

// Size возвращает ребро сетки в вокселях
func (g *Grid) Size() int {
	return 1 << g.scale
}

// MinCoord возвращает минимальную допустимую координату
func (g *Grid) MinCoord() int {
	return -g.Size() / 2
}

// MaxCoord возвращает верхнюю (исключенную) границу координат
func (g *Grid) MaxCoord() int {
	if g.scale == 0 {
		return 1
	}
	return g.Size() / 2
}

// InBounds проверяет, что координата лежит внутри сетки
func (g *Grid) InBounds(p vec.Vec3) bool {
	lo, hi := g.MinCoord(), g.MaxCoord()
	return p.X >= lo && p.X < hi &&
		p.Y >= lo && p.Y < hi &&
		p.Z >= lo && p.Z < hi
}

// toCorner переводит координату сетки в угловую позицию дерева
func (g *Grid) toCorner(p vec.Vec3) vec.Vec3 {
	return p.Sub(vec.Splat(g.MinCoord()))
}

// GetCube возвращает материал в точке p; вне границ сетки возвращает 0
func (g *Grid) GetCube(p vec.Vec3) uint8 {
	if !g.InBounds(p) {
		return 0
	}
	c := g.toCorner(p)
	return g.root.GetVoxel(c.X, c.Y, c.Z, g.scale)
}

// SetCube возвращает новую сетку с материалом value в точке p.
// Пока p вне границ, сетка расширяется пустой границей (scale + 1 за шаг).
// Координату, для которой понадобился бы масштаб больше MaxGridScale,
// SetCube пропускает и возвращает g без изменений; ошибку сообщает TrySetCube.
func (g *Grid) SetCube(p vec.Vec3, value uint8) *Grid {
	next, err := g.TrySetCube(p, value)
	if err != nil {
		return g
	}
	return next
}

// TrySetCube работает как SetCube, но для координаты вне диапазона
// MaxGridScale возвращает ErrCoordOutOfRange
func (g *Grid) TrySetCube(p vec.Vec3, value uint8) (*Grid, error) {
	cur := g
	if !cur.InBounds(p) && !InRange(p) {
		return nil, fmt.Errorf("%w: (%d,%d,%d)", ErrCoordOutOfRange, p.X, p.Y, p.Z)
	}
	for !cur.InBounds(p) {
		if cur.scale >= MaxGridScale {
			return nil, fmt.Errorf("%w: (%d,%d,%d)", ErrCoordOutOfRange, p.X, p.Y, p.Z)
		}
		cur = cur.ExpandWith(EmptyBorder)
	}
	c := cur.toCorner(p)
	return &Grid{root: cur.root.SetVoxel(c.X, c.Y, c.Z, cur.scale, value), scale: cur.scale}, nil
}

// ExpandWith удваивает ребро сетки, окружая текущий корень материалами border.
// Логические координаты существующих вокселей сохраняются.
func (g *Grid) ExpandWith(border [4]uint8) *Grid {
	if g.scale == 0 {
		return &Grid{root: ExpandVoxel(g.root, border), scale: 1}
	}
	return &Grid{root: ExpandOnce(g.root, border), scale: g.scale + 1}
}

// Simplified возвращает сетку с нормализованным деревом
func (g *Grid) Simplified() *Grid {
	return &Grid{root: g.root.Simplified(), scale: g.scale}
}

// String возвращает краткое описание сетки
func (g *Grid) String() string {
	return fmt.Sprintf("Grid{scale=%d, size=%d, root=%s}", g.scale, g.Size(), g.root.Kind())
}
