package cube

import (
	"math/bits"

	"github.com/annel0/voxel-engine/internal/vec"
)

// FromVoxels строит дерево глубины depth из списка вокселей за один проход.
//
// Воксели раскладываются по октантам по биту (depth-1) координат, затем
// октанты строятся рекурсивно; восемь одинаковых Solid сворачиваются в один.
// Пустые области заполняются материалом def. Позиции вне [0, 2^depth)
// считаются ошибкой вызывающего.
func FromVoxels(voxels []Voxel, depth uint32, def uint8) *Cube {
	for _, v := range voxels {
		checkCorner(v.Pos.X, v.Pos.Y, v.Pos.Z, depth)
	}
	return fromVoxels(voxels, depth, def)
}

func fromVoxels(voxels []Voxel, depth uint32, def uint8) *Cube {
	if len(voxels) == 0 {
		return Solid(def)
	}
	if depth == 0 {
		// при повторе позиции побеждает последний воксель
		return Solid(voxels[len(voxels)-1].Material)
	}

	d := depth - 1
	var buckets [8][]Voxel
	for _, v := range voxels {
		i := octantAt(v.Pos, uint(d))
		buckets[i] = append(buckets[i], v)
	}

	var children [8]*Cube
	for i := range children {
		children[i] = fromVoxels(buckets[i], d, def)
	}
	if v, ok := uniformSolid(children); ok {
		return Solid(v)
	}
	return Cubes(children)
}

// FromVoxelsAutoDepth строит дерево минимальной глубины, вмещающей все воксели
func FromVoxelsAutoDepth(voxels []Voxel, def uint8) (*Cube, uint32) {
	if len(voxels) == 0 {
		return Solid(def), 0
	}
	maxCoord := 0
	for _, v := range voxels {
		if m := max(v.Pos.X, v.Pos.Y, v.Pos.Z); m > maxCoord {
			maxCoord = m
		}
	}
	depth := uint32(bits.Len(uint(maxCoord)))
	return FromVoxels(voxels, depth, def), depth
}

// VisitLeaves обходит все листья дерева не глубже maxDepth уровней.
// Узлы Cubes на уровне maxDepth передаются в fn как есть.
func (c *Cube) VisitLeaves(maxDepth uint32, fn func(node *Cube, coord CubeCoord)) {
	c.visitLeaves(RootCoord(), maxDepth, fn)
}

func (c *Cube) visitLeaves(coord CubeCoord, remaining uint32, fn func(*Cube, CubeCoord)) {
	if c.kind != KindCubes || remaining == 0 {
		fn(c, coord)
		return
	}
	for i, ch := range c.children {
		ch.visitLeaves(coord.Child(i), remaining-1, fn)
	}
}

// VisitDeep обходит все узлы ровно на уровне depth; однородные узлы
// разворачиваются в свои октанты.
func (c *Cube) VisitDeep(depth uint32, fn func(node *Cube, coord CubeCoord)) {
	c.visitDeep(RootCoord(), depth, fn)
}

func (c *Cube) visitDeep(coord CubeCoord, remaining uint32, fn func(*Cube, CubeCoord)) {
	if remaining == 0 {
		fn(c, coord)
		return
	}
	for i := 0; i < 8; i++ {
		c.Octant(i).visitDeep(coord.Child(i), remaining-1, fn)
	}
}

// CollectVoxels возвращает все непустые воксели дерева глубины depth в угловых координатах
func (c *Cube) CollectVoxels(depth uint32) []Voxel {
	var out []Voxel
	c.VisitLeaves(depth, func(node *Cube, coord CubeCoord) {
		id := node.ID()
		if id == 0 {
			return
		}
		span := 1 << (depth - coord.Depth)
		base := coord.Corner().Mul(span)
		for z := 0; z < span; z++ {
			for y := 0; y < span; y++ {
				for x := 0; x < span; x++ {
					out = append(out, Voxel{Pos: base.Add(vec.NewVec3(x, y, z)), Material: id})
				}
			}
		}
	})
	return out
}

// MaxDepth возвращает максимальную глубину узлов Cubes
func (c *Cube) MaxDepth() int {
	if c.kind != KindCubes {
		return 0
	}
	m := 0
	for _, ch := range c.children {
		if d := ch.MaxDepth(); d > m {
			m = d
		}
	}
	return m + 1
}

// CountNodesByDepth возвращает количество узлов на каждом уровне
func (c *Cube) CountNodesByDepth() []int {
	counts := make([]int, c.MaxDepth()+1)
	c.countNodes(0, counts)
	return counts
}

func (c *Cube) countNodes(level int, counts []int) {
	counts[level]++
	if c.kind == KindCubes {
		for _, ch := range c.children {
			ch.countNodes(level+1, counts)
		}
	}
}

// CollectMaterials возвращает отсортированный список материалов листьев Solid
func (c *Cube) CollectMaterials() []uint8 {
	var seen [256]bool
	c.collectMaterials(&seen)
	var out []uint8
	for i, ok := range seen {
		if ok {
			out = append(out, uint8(i))
		}
	}
	return out
}

func (c *Cube) collectMaterials(seen *[256]bool) {
	switch c.kind {
	case KindSolid:
		seen[c.value] = true
	case KindCubes:
		for _, ch := range c.children {
			ch.collectMaterials(seen)
		}
	}
}

// Stats содержит сводную статистику дерева
type Stats struct {
	MaxDepth     int    `json:"max_depth"`
	NodesByDepth []int  `json:"nodes_by_depth"`
	TotalNodes   int    `json:"total_nodes"`
	Materials    []int  `json:"materials"`
	RootKind     string `json:"root_kind"`
}

// Stats собирает статистику дерева
func (c *Cube) Stats() Stats {
	nodes := c.CountNodesByDepth()
	total := 0
	for _, n := range nodes {
		total += n
	}
	materials := make([]int, 0, 8)
	for _, m := range c.CollectMaterials() {
		materials = append(materials, int(m))
	}
	return Stats{
		MaxDepth:     c.MaxDepth(),
		NodesByDepth: nodes,
		TotalNodes:   total,
		Materials:    materials,
		RootKind:     c.kind.String(),
	}
}
