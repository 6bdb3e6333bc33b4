package cube

import (
	"fmt"

	"github.com/annel0/voxel-engine/internal/vec"
)

// Axis определяет ось координат
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// Bit возвращает бит оси в индексе октанта
func (a Axis) Bit() int {
	return 1 << uint(a)
}

// Perpendicular возвращает две оси, перпендикулярные данной, в порядке X, Y, Z
func (a Axis) Perpendicular() (Axis, Axis) {
	switch a {
	case AxisX:
		return AxisY, AxisZ
	case AxisY:
		return AxisX, AxisZ
	default:
		return AxisX, AxisY
	}
}

// String возвращает имя оси
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "?"
	}
}

// ParseAxis разбирает имя оси (x/y/z)
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X":
		return AxisX, nil
	case "y", "Y":
		return AxisY, nil
	case "z", "Z":
		return AxisZ, nil
	}
	return 0, fmt.Errorf("неизвестная ось: %q", s)
}

// Voxel - единичный воксель с позицией в угловых координатах [0, 2^depth)
type Voxel struct {
	Pos      vec.Vec3
	Material uint8
}

// CubeCoord - координата узла при обходе дерева.
//
// Используется центральная система координат: корень имеет позицию (0,0,0),
// позиция потомка равна pos*2 + {-1,+1} по каждой оси. На уровне depth
// позиции лежат в диапазоне [-(2^depth - 1), 2^depth - 1] с шагом 2.
type CubeCoord struct {
	Pos   vec.Vec3
	Depth uint32
}

// RootCoord возвращает координату корня
func RootCoord() CubeCoord {
	return CubeCoord{}
}

// NewCoord создает координату
func NewCoord(pos vec.Vec3, depth uint32) CubeCoord {
	return CubeCoord{Pos: pos, Depth: depth}
}

// CoordFromCorner переводит угловую позицию [0, 2^depth) в центральную координату
func CoordFromCorner(corner vec.Vec3, depth uint32) CubeCoord {
	return CubeCoord{
		Pos:   corner.Mul(2).Add(vec.Splat(1 - (1 << depth))),
		Depth: depth,
	}
}

// Child возвращает координату октанта
func (c CubeCoord) Child(octant int) CubeCoord {
	checkOctant(octant)
	return CubeCoord{Pos: c.Pos.Mul(2).Add(vec.OctantOffset(octant)), Depth: c.Depth + 1}
}

// Corner возвращает угловую позицию узла на его уровне
func (c CubeCoord) Corner() vec.Vec3 {
	return c.Pos.Add(vec.Splat((1 << c.Depth) - 1)).Div(2)
}

// Octant возвращает индекс октанта, которым узел является в своем родителе
func (c CubeCoord) Octant() int {
	if c.Depth == 0 {
		return 0
	}
	return c.Corner().And(1).ToOctantIndex()
}

// Parent возвращает координату родителя
func (c CubeCoord) Parent() CubeCoord {
	if c.Depth == 0 {
		return c
	}
	return CoordFromCorner(c.Corner().Shr(1), c.Depth-1)
}

// Neighbor возвращает координату соседа того же уровня в направлении dir (компоненты -1/0/+1)
func (c CubeCoord) Neighbor(dir vec.Vec3) CubeCoord {
	return CubeCoord{Pos: c.Pos.Add(dir.Mul(2)), Depth: c.Depth}
}

// InBounds проверяет, что координата лежит внутри корня
func (c CubeCoord) InBounds() bool {
	return c.Pos.MaxAbs() < 1<<c.Depth
}

// Size возвращает ребро узла в единицах корня [0,1]
func (c CubeCoord) Size() float64 {
	return 1.0 / float64(uint64(1)<<c.Depth)
}

// Bounds возвращает минимальный угол и ребро узла в системе корня [0,1]^3
func (c CubeCoord) Bounds() (vec.Vec3Float, float64) {
	size := c.Size()
	return c.Corner().ToFloat().Mul(size), size
}

// Center возвращает центр узла в системе корня [0,1]^3
func (c CubeCoord) Center() vec.Vec3Float {
	min, size := c.Bounds()
	return min.Add(vec.SplatFloat(size / 2))
}

// String возвращает строковое представление координаты
func (c CubeCoord) String() string {
	return fmt.Sprintf("(%d,%d,%d)@%d", c.Pos.X, c.Pos.Y, c.Pos.Z, c.Depth)
}

// OctantCharToIndex переводит букву октанта a-h в индекс 0-7
func OctantCharToIndex(ch rune) (int, bool) {
	if ch < 'a' || ch > 'h' {
		return 0, false
	}
	return int(ch - 'a'), true
}

// OctantIndexToChar переводит индекс 0-7 в букву октанта a-h
func OctantIndexToChar(index int) (rune, bool) {
	if index < 0 || index >= 8 {
		return 0, false
	}
	return rune('a' + index), true
}
