// Package mesh извлекает видимые грани дерева кубов.
//
// Грани порождаются пустыми листьями: для каждого непустого соседа пустой
// лист выдает одну грань на общей плоскости с нормалью от соседа внутрь
// пустой ячейки. Так каждая граница пустое/непустое выдается ровно один раз.
package mesh

import (
	"github.com/annel0/voxel-engine/internal/traversal"
	"github.com/annel0/voxel-engine/internal/vec"
)

// Face - грань куба
type Face uint8

const (
	Top    Face = iota // +Y
	Bottom             // -Y
	Left               // -X
	Right              // +X
	Front              // +Z
	Back               // -Z
)

// AllFaces перечисляет грани в каноническом порядке
var AllFaces = [6]Face{Top, Bottom, Left, Right, Front, Back}

var faceNames = [...]string{"top", "bottom", "left", "right", "front", "back"}

// String возвращает имя грани
func (f Face) String() string {
	if int(f) < len(faceNames) {
		return faceNames[f]
	}
	return "unknown"
}

// Dir возвращает направление нормали грани
func (f Face) Dir() vec.Vec3 {
	switch f {
	case Top:
		return vec.NewVec3(0, 1, 0)
	case Bottom:
		return vec.NewVec3(0, -1, 0)
	case Left:
		return vec.NewVec3(-1, 0, 0)
	case Right:
		return vec.NewVec3(1, 0, 0)
	case Front:
		return vec.NewVec3(0, 0, 1)
	default:
		return vec.NewVec3(0, 0, -1)
	}
}

// Normal возвращает нормаль грани
func (f Face) Normal() [3]float32 {
	d := f.Dir()
	return [3]float32{float32(d.X), float32(d.Y), float32(d.Z)}
}

// Offset возвращает смещение соседа за этой гранью в окне соседей
func (f Face) Offset() int {
	switch f {
	case Top:
		return traversal.OffsetUp
	case Bottom:
		return traversal.OffsetDown
	case Left:
		return traversal.OffsetLeft
	case Right:
		return traversal.OffsetRight
	case Front:
		return traversal.OffsetFront
	default:
		return traversal.OffsetBack
	}
}

// Opposite возвращает противоположную грань
func (f Face) Opposite() Face {
	switch f {
	case Top:
		return Bottom
	case Bottom:
		return Top
	case Left:
		return Right
	case Right:
		return Left
	case Front:
		return Back
	default:
		return Front
	}
}

// Vertices возвращает четыре вершины грани куба с минимальным углом (x,y,z)
// и ребром size, обход против часовой стрелки при взгляде снаружи
func (f Face) Vertices(x, y, z, size float32) [4][3]float32 {
	s := size
	switch f {
	case Top:
		return [4][3]float32{{x, y + s, z}, {x, y + s, z + s}, {x + s, y + s, z + s}, {x + s, y + s, z}}
	case Bottom:
		return [4][3]float32{{x, y, z}, {x + s, y, z}, {x + s, y, z + s}, {x, y, z + s}}
	case Left:
		return [4][3]float32{{x, y, z + s}, {x, y + s, z + s}, {x, y + s, z}, {x, y, z}}
	case Right:
		return [4][3]float32{{x + s, y, z}, {x + s, y + s, z}, {x + s, y + s, z + s}, {x + s, y, z + s}}
	case Front:
		return [4][3]float32{{x + s, y, z + s}, {x + s, y + s, z + s}, {x, y + s, z + s}, {x, y, z + s}}
	default:
		return [4][3]float32{{x, y, z}, {x, y + s, z}, {x + s, y + s, z}, {x + s, y, z}}
	}
}

// UVs возвращает текстурные координаты вершин в порядке Vertices
func (f Face) UVs() [4][2]float32 {
	if f == Bottom {
		return [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	}
	return [4][2]float32{{0, 0}, {0, 1}, {1, 1}, {1, 0}}
}
