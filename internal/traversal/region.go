package traversal

import (
	"math"

	"github.com/annel0/voxel-engine/internal/cube"
	"github.com/annel0/voxel-engine/internal/vec"
)

// RegionBounds - прямоугольная область октантов на уровне Depth в угловых
// координатах [0, 2^Depth)
type RegionBounds struct {
	Pos   vec.Vec3
	Depth uint32
	Size  vec.Vec3
}

// NewRegionBounds создает область
func NewRegionBounds(pos vec.Vec3, depth uint32, size vec.Vec3) RegionBounds {
	return RegionBounds{Pos: pos, Depth: depth, Size: size}
}

// FromLocalAABB переводит AABB в системе корня [0,1]^3 в область октантов
// уровня depth. Возвращает false, если AABB не пересекает корень.
func FromLocalAABB(localMin, localMax vec.Vec3Float, depth uint32) (RegionBounds, bool) {
	for axis := 0; axis < 3; axis++ {
		if localMax.Get(axis) < 0 || localMin.Get(axis) > 1 {
			return RegionBounds{}, false
		}
	}

	lo := localMin.Max(vec.SplatFloat(0))
	hi := localMax.Min(vec.SplatFloat(1))
	scale := float64(uint64(1) << depth)

	var pos, size vec.Vec3
	for axis := 0; axis < 3; axis++ {
		first := int(math.Floor(lo.Get(axis) * scale))
		last := int(math.Ceil(hi.Get(axis)*scale)) - 1
		if last < first {
			last = first
		}
		pos = pos.With(axis, first)
		size = size.With(axis, last-first+1)
	}
	return RegionBounds{Pos: pos, Depth: depth, Size: size}, true
}

// Contains проверяет, что узел coord лежит в области. Узел мельче области
// сравнивается с областью, масштабированной до его уровня; крупный узел
// считается попавшим, если его минимальный угол лежит в области.
func (r RegionBounds) Contains(coord cube.CubeCoord) bool {
	corner := coord.Corner()
	pos, size := r.Pos, r.Size

	switch {
	case coord.Depth > r.Depth:
		scale := 1 << (coord.Depth - r.Depth)
		pos, size = pos.Mul(scale), size.Mul(scale)
	case coord.Depth < r.Depth:
		corner = corner.Mul(1 << (r.Depth - coord.Depth))
	}
	return inside(corner, pos, size)
}

// MightContainDescendants проверяет, что поддерево узла coord может
// пересекаться с областью
func (r RegionBounds) MightContainDescendants(coord cube.CubeCoord) bool {
	if coord.Depth >= r.Depth {
		return r.Contains(coord)
	}
	shift := uint(r.Depth - coord.Depth)
	lo := r.Pos.Shr(shift)
	hi := r.Pos.Add(r.Size).Sub(vec.One).Shr(shift)
	corner := coord.Corner()
	for axis := 0; axis < 3; axis++ {
		c := corner.Get(axis)
		if c < lo.Get(axis) || c > hi.Get(axis) {
			return false
		}
	}
	return true
}

// OctantCount возвращает число октантов в области
func (r RegionBounds) OctantCount() int {
	return r.Size.X * r.Size.Y * r.Size.Z
}

func inside(p, pos, size vec.Vec3) bool {
	for axis := 0; axis < 3; axis++ {
		v := p.Get(axis)
		if v < pos.Get(axis) || v >= pos.Get(axis)+size.Get(axis) {
			return false
		}
	}
	return true
}
