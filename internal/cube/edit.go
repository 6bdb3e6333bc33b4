package cube

import (
	"fmt"

	"github.com/annel0/voxel-engine/internal/vec"
)

// Tabulate создает узел Cubes, вычисляя каждый октант функцией init
func Tabulate(init func(octant int) *Cube) *Cube {
	var children [8]*Cube
	for i := range children {
		children[i] = init(i)
	}
	return Cubes(children)
}

// TabulateVector создает узел Cubes, передавая в init смещение октанта (-1/+1 по оси)
func TabulateVector(init func(pos vec.Vec3) *Cube) *Cube {
	return Tabulate(func(i int) *Cube {
		return init(vec.OctantOffset(i))
	})
}

// expandChildren возвращает 8 октантов узла; лист разворачивается в 8 копий
func (c *Cube) expandChildren() [8]*Cube {
	var children [8]*Cube
	for i := range children {
		children[i] = c.Octant(i)
	}
	return children
}

// UpdatedIndex возвращает новый узел Cubes, в котором октант index заменен на child.
// Остальные семь октантов разделяются с исходным узлом.
func (c *Cube) UpdatedIndex(index int, child *Cube) *Cube {
	checkOctant(index)
	children := c.expandChildren()
	children[index] = child
	return Cubes(children)
}

// Get возвращает узел по центральной координате, спускаясь на coord.Depth уровней.
// Однородные листья отвечают сами за все свои октанты.
func (c *Cube) Get(coord CubeCoord) *Cube {
	if !coord.InBounds() {
		panic(fmt.Sprintf("cube: координата %s вне корня", coord))
	}
	corner := coord.Corner()
	node := c
	for d := int(coord.Depth) - 1; d >= 0; d-- {
		if node.kind == KindSolid {
			return node
		}
		node = node.Octant(octantAt(corner, uint(d)))
	}
	return node
}

// GetID возвращает ID узла в угловой позиции pos на уровне depth
func (c *Cube) GetID(depth uint32, pos vec.Vec3) uint8 {
	return c.Get(CoordFromCorner(pos, depth)).ID()
}

// GetVoxel возвращает материал вокселя (x, y, z) дерева глубины depth
func (c *Cube) GetVoxel(x, y, z int, depth uint32) uint8 {
	checkCorner(x, y, z, depth)
	return c.GetID(depth, vec.NewVec3(x, y, z))
}

// Update возвращает новое дерево, в котором узел в угловой позиции pos на уровне depth
// заменен на sub. Узлы на пути копируются, остальные разделяются.
func (c *Cube) Update(pos vec.Vec3, depth uint32, sub *Cube) *Cube {
	if depth == 0 {
		return sub
	}
	d := depth - 1
	index := octantAt(pos, uint(d))
	return c.UpdatedIndex(index, c.Octant(index).Update(pos, d, sub))
}

// SetVoxel возвращает новое дерево с материалом value в вокселе (x, y, z).
// Исходное дерево не изменяется.
func (c *Cube) SetVoxel(x, y, z int, depth uint32, value uint8) *Cube {
	checkCorner(x, y, z, depth)
	return c.Update(vec.NewVec3(x, y, z), depth, Solid(value))
}

// UpdateDepthTree помещает дерево src, занимающее 2^scale вокселей по ребру,
// в позицию offset на уровне depth.
func (c *Cube) UpdateDepthTree(depth uint32, offset vec.Vec3, scale uint32, src *Cube) *Cube {
	if scale == 0 {
		return c.Update(offset, depth, src)
	}
	half := 1 << (scale - 1)
	result := c
	for i := 0; i < 8; i++ {
		target := offset.Add(vec.FromOctantIndex(i).Mul(half))
		result = result.UpdateDepthTree(depth, target, scale-1, src.Octant(i))
	}
	return result
}

// Simplified сворачивает узлы Cubes, у которых все 8 октантов - Solid с одинаковым
// материалом. Применяется рекурсивно снизу вверх.
func (c *Cube) Simplified() *Cube {
	if c.kind != KindCubes {
		return c
	}
	var children [8]*Cube
	changed := false
	for i, ch := range c.children {
		children[i] = ch.Simplified()
		if children[i] != ch {
			changed = true
		}
	}
	if v, ok := uniformSolid(children); ok {
		return Solid(v)
	}
	if !changed {
		return c
	}
	return Cubes(children)
}

// Add объединяет два дерева, предпочитая ненулевой материал other
func (c *Cube) Add(other *Cube) *Cube {
	if c.kind == KindSolid && other.kind == KindSolid {
		if other.value != 0 {
			return other
		}
		return c
	}
	return Tabulate(func(i int) *Cube {
		return asOctree(c, i).Add(asOctree(other, i))
	}).Simplified()
}

// asOctree возвращает октант для Cubes/Solid; варианты уплотнения считаются пустыми
func asOctree(c *Cube, i int) *Cube {
	switch c.kind {
	case KindCubes, KindSolid:
		return c.Octant(i)
	default:
		return Empty()
	}
}

// ApplySwap меняет местами половины узла вдоль указанных осей (без рекурсии)
func (c *Cube) ApplySwap(axes ...Axis) *Cube {
	if c.kind != KindCubes {
		return c
	}
	mask := axesMask(axes)
	return Tabulate(func(i int) *Cube {
		return c.children[i^mask]
	})
}

// ApplyMirror зеркально отражает дерево вдоль указанных осей на всех уровнях
func (c *Cube) ApplyMirror(axes ...Axis) *Cube {
	if c.kind != KindCubes {
		return c
	}
	mask := axesMask(axes)
	return Tabulate(func(i int) *Cube {
		return c.children[i^mask].ApplyMirror(axes...)
	})
}

func axesMask(axes []Axis) int {
	mask := 0
	for _, a := range axes {
		mask ^= a.Bit()
	}
	return mask
}

// ExpandOnce оборачивает дерево в куб вдвое большего размера.
//
// Якорь центральный: старое содержимое занимает центральную область 2x2x2
// сетки 4x4x4, поэтому центральные координаты старых вокселей не меняются.
// Остальные 56 ячеек заполняются border[y], где y - номер слоя сетки по Y (0..3).
// Глубина дерева увеличивается на единицу. Дерево глубины 0 (один воксель)
// центрировать нельзя - для него используйте ExpandVoxel.
func ExpandOnce(c *Cube, border [4]uint8) *Cube {
	return Tabulate(func(i1 int) *Cube {
		return Tabulate(func(i2 int) *Cube {
			if i1^i2^7 == 0 {
				return c.Octant(i1)
			}
			layer := ((i1>>1)&1)*2 + (i2>>1)&1
			return Solid(border[layer])
		})
	})
}

// ExpandVoxel оборачивает дерево глубины 0 в куб глубины 1.
// Воксель попадает в октант 7 (центральная координата 0 в диапазоне [-1, 1));
// нижняя половина заполняется border[1], верхняя - border[2].
func ExpandVoxel(c *Cube, border [4]uint8) *Cube {
	return Tabulate(func(i int) *Cube {
		if i == 7 {
			return c
		}
		return Solid(border[1+(i>>1)&1])
	})
}

// Expand применяет ExpandOnce n раз
func Expand(c *Cube, border [4]uint8, n int) *Cube {
	result := c
	for i := 0; i < n; i++ {
		result = ExpandOnce(result, border)
	}
	return result
}

// ToOctree переводит варианты Quad/Layers/Planes/Slices в эквивалентное дерево
// из Solid и Cubes.
func (c *Cube) ToOctree() *Cube {
	switch c.kind {
	case KindSolid:
		return c
	case KindCubes:
		var children [8]*Cube
		changed := false
		for i, ch := range c.children {
			children[i] = ch.ToOctree()
			if children[i] != ch {
				changed = true
			}
		}
		if !changed {
			return c
		}
		return Cubes(children)
	default:
		return Tabulate(func(i int) *Cube {
			return c.Octant(i).ToOctree()
		}).Simplified()
	}
}

func uniformSolid(children [8]*Cube) (uint8, bool) {
	first := children[0]
	if first.kind != KindSolid {
		return 0, false
	}
	for _, ch := range children[1:] {
		if ch.kind != KindSolid || ch.value != first.value {
			return 0, false
		}
	}
	return first.value, true
}

// octantAt извлекает индекс октанта из бита d угловой позиции
func octantAt(pos vec.Vec3, d uint) int {
	return pos.Shr(d).And(1).ToOctantIndex()
}

func checkCorner(x, y, z int, depth uint32) {
	size := 1 << depth
	if x < 0 || y < 0 || z < 0 || x >= size || y >= size || z >= size {
		panic(fmt.Sprintf("cube: воксель (%d,%d,%d) вне дерева глубины %d", x, y, z, depth))
	}
}
