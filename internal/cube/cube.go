package cube

import (
	"fmt"
	"math/bits"
)

// Kind определяет вариант узла дерева
type Kind uint8

const (
	KindSolid Kind = iota
	KindCubes
	KindQuad
	KindLayers
	KindPlanes
	KindSlices
)

// String возвращает строковое представление варианта
func (k Kind) String() string {
	switch k {
	case KindSolid:
		return "Solid"
	case KindCubes:
		return "Cubes"
	case KindQuad:
		return "Quad"
	case KindLayers:
		return "Layers"
	case KindPlanes:
		return "Planes"
	case KindSlices:
		return "Slices"
	default:
		return "Unknown"
	}
}

// Cube представляет кубическую область пространства произвольной глубины.
//
// Узлы неизменяемы после создания: любое редактирование строит новые узлы
// на пути от корня к точке изменения, а все нетронутые поддеревья разделяются
// между старым и новым корнем. Поэтому старый корень можно читать из других
// горутин без блокировок, пока новый корень строится.
//
// Варианты:
//   - Solid    - вся область заполнена одним материалом
//   - Cubes    - 8 октантов, индекс x | y<<1 | z<<2
//   - Quad     - деление 2x2 по двум осям, перпендикулярным axis
//   - Layers   - деление пополам вдоль axis
//   - Planes   - одно поперечное сечение, протянутое вдоль axis
//   - Slices   - N слоев (степень двойки) вдоль axis
type Cube struct {
	kind     Kind
	value    uint8
	axis     Axis
	children []*Cube
}

// Предсозданные листья: Solid-узлы неизменяемы, поэтому их можно разделять
var solids = func() (s [256]Cube) {
	for i := range s {
		s[i] = Cube{kind: KindSolid, value: uint8(i)}
	}
	return s
}()

// Solid возвращает однородный лист с материалом value
func Solid(value uint8) *Cube {
	return &solids[value]
}

// Empty возвращает пустой куб (материал 0)
func Empty() *Cube {
	return Solid(0)
}

// Cubes создает узел с восемью октантами
func Cubes(children [8]*Cube) *Cube {
	for i, ch := range children {
		if ch == nil {
			panic(fmt.Sprintf("cube: октант %d равен nil", i))
		}
	}
	return &Cube{kind: KindCubes, children: children[:]}
}

// CubesFromSlice создает узел Cubes из среза; длина обязана быть 8
func CubesFromSlice(children []*Cube) *Cube {
	if len(children) != 8 {
		panic(fmt.Sprintf("cube: узел Cubes требует 8 потомков, получено %d", len(children)))
	}
	var arr [8]*Cube
	copy(arr[:], children)
	return Cubes(arr)
}

// Quad создает узел, разделенный 2x2 по осям, перпендикулярным axis
func Quad(axis Axis, quads [4]*Cube) *Cube {
	return &Cube{kind: KindQuad, axis: axis, children: quads[:]}
}

// Layers создает узел, разделенный пополам вдоль axis
func Layers(axis Axis, layers [2]*Cube) *Cube {
	return &Cube{kind: KindLayers, axis: axis, children: layers[:]}
}

// Planes создает узел, у которого сечение quad протянуто вдоль axis
func Planes(axis Axis, quad *Cube) *Cube {
	return &Cube{kind: KindPlanes, axis: axis, children: []*Cube{quad}}
}

// Slices создает узел из N равных слоев вдоль axis (N - степень двойки, N >= 2)
func Slices(axis Axis, layers []*Cube) *Cube {
	n := len(layers)
	if n < 2 || bits.OnesCount(uint(n)) != 1 {
		panic(fmt.Sprintf("cube: число слоев Slices должно быть степенью двойки >= 2, получено %d", n))
	}
	cp := make([]*Cube, n)
	copy(cp, layers)
	return &Cube{kind: KindSlices, axis: axis, children: cp}
}

// Kind возвращает вариант узла
func (c *Cube) Kind() Kind {
	return c.kind
}

// Axis возвращает ось для вариантов Quad/Layers/Planes/Slices
func (c *Cube) Axis() Axis {
	return c.axis
}

// IsLeaf сообщает, что узел не разделен на октанты
func (c *Cube) IsLeaf() bool {
	return c.kind != KindCubes
}

// IsSolid сообщает, что узел - однородный лист
func (c *Cube) IsSolid() bool {
	return c.kind == KindSolid
}

// ID возвращает представительный материал узла.
// Solid - его материал, Cubes - ID первого октанта, остальные варианты - 0.
func (c *Cube) ID() uint8 {
	switch c.kind {
	case KindSolid:
		return c.value
	case KindCubes:
		return c.children[0].ID()
	default:
		return 0
	}
}

// Value возвращает материал для Solid; для остальных вариантов ok == false
func (c *Cube) Value() (uint8, bool) {
	if c.kind == KindSolid {
		return c.value, true
	}
	return 0, false
}

// Child возвращает октант узла Cubes
func (c *Cube) Child(index int) (*Cube, bool) {
	if c.kind != KindCubes || index < 0 || index >= 8 {
		return nil, false
	}
	return c.children[index], true
}

// Children возвращает копию списка потомков (для Cubes - 8 октантов)
func (c *Cube) Children() []*Cube {
	out := make([]*Cube, len(c.children))
	copy(out, c.children)
	return out
}

// ChildOrSelf возвращает октант Cubes, а для остальных вариантов - сам узел
func (c *Cube) ChildOrSelf(index int) *Cube {
	checkOctant(index)
	if c.kind == KindCubes {
		return c.children[index]
	}
	return c
}

// Octant возвращает содержимое октанта index для любого варианта.
// Solid отвечает сам за себя, Cubes - своим потомком, варианты уплотнения
// разворачиваются структурно.
func (c *Cube) Octant(index int) *Cube {
	checkOctant(index)
	switch c.kind {
	case KindSolid:
		return c
	case KindCubes:
		return c.children[index]
	case KindQuad:
		// потомки повторяются вдоль неразделенной оси
		a, b := c.axis.Perpendicular()
		q := octantBit(index, a) | octantBit(index, b)<<1
		return c.children[q]
	case KindLayers:
		return c.children[octantBit(index, c.axis)]
	case KindPlanes:
		section := c.children[0].Octant(index &^ c.axis.Bit())
		if section.kind == KindSolid {
			return section
		}
		return Planes(c.axis, section)
	case KindSlices:
		n := len(c.children)
		half := c.children[octantBit(index, c.axis)*n/2 : (octantBit(index, c.axis)+1)*n/2]
		cross := index &^ c.axis.Bit()
		if len(half) == 1 {
			section := half[0].Octant(cross)
			if section.kind == KindSolid {
				return section
			}
			return Planes(c.axis, section)
		}
		layers := make([]*Cube, len(half))
		uniform := true
		for i, l := range half {
			layers[i] = l.Octant(cross)
			if layers[i] != layers[0] {
				uniform = false
			}
		}
		if uniform && layers[0].kind == KindSolid {
			return layers[0]
		}
		return Slices(c.axis, layers)
	default:
		panic(fmt.Sprintf("cube: неизвестный вариант %d", c.kind))
	}
}

// String возвращает краткое описание узла
func (c *Cube) String() string {
	switch c.kind {
	case KindSolid:
		return fmt.Sprintf("Solid(%d)", c.value)
	case KindCubes:
		return fmt.Sprintf("Cubes%v", c.children)
	default:
		return fmt.Sprintf("%s{axis=%s, %v}", c.kind, c.axis, c.children)
	}
}

// Equal сравнивает деревья структурно
func Equal(a, b *Cube) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.kind != b.kind || a.value != b.value || a.axis != b.axis || len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		if !Equal(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}

func checkOctant(index int) {
	if index < 0 || index >= 8 {
		panic(fmt.Sprintf("cube: индекс октанта вне диапазона: %d", index))
	}
}

// octantBit возвращает бит октанта index для оси axis
func octantBit(index int, axis Axis) int {
	return (index >> uint(axis)) & 1
}
