package traversal

import (
	"github.com/annel0/voxel-engine/internal/cube"
)

// MaxTraversalDepth ограничивает глубину обхода, если вызывающий не задал свою
const MaxTraversalDepth = 32

// Visitor вызывается для листьев при обходе. coord - координата ячейки
// под курсором, subleaf - ячейка получена дроблением однородного листа.
// Возврат true для листа требует раздробить его на октанты и обойти их.
type Visitor func(view NeighborView, coord cube.CubeCoord, subleaf bool) bool

// TraverseOctree обходит октанты корня окна в глубину.
//
// Узлы, разделенные на октанты (Cubes и варианты уплотнения), обходятся
// без вызова visitor. Однородные листья передаются в visitor. На глубине
// maxDepth visitor вызывается для любого узла и спуск прекращается.
// Глубина отсчитывается от корня: октанты корня имеют глубину 1.
func TraverseOctree(grid *NeighborGrid, maxDepth uint32, visit Visitor) {
	if maxDepth == 0 {
		maxDepth = 1
	}
	root := cube.RootCoord()
	for octant := 0; octant < 8; octant++ {
		traverse(grid.View(OctantIndex(octant)), root.Child(octant), maxDepth, false, visit)
	}
}

func traverse(view NeighborView, coord cube.CubeCoord, maxDepth uint32, subleaf bool, visit Visitor) {
	if coord.Depth >= maxDepth {
		visit(view, coord, subleaf)
		return
	}

	if view.Center().IsSolid() {
		if !visit(view, coord, subleaf) {
			return
		}
		subleaf = true
	}

	child := view.CreateChildGrid()
	for octant := 0; octant < 8; octant++ {
		traverse(child.View(OctantIndex(octant)), coord.Child(octant), maxDepth, subleaf, visit)
	}
}

// TraverseFrom продолжает обход с ячейки view, лежащей в узле coord
func TraverseFrom(view NeighborView, coord cube.CubeCoord, maxDepth uint32, visit Visitor) {
	traverse(view, coord, maxDepth, false, visit)
}

// Descend спускается от окна корня к узлу target, строя окна по пути.
// Возвращает false для корня и координат вне корня.
func Descend(grid *NeighborGrid, target cube.CubeCoord) (NeighborView, bool) {
	if target.Depth == 0 || !target.InBounds() {
		return NeighborView{}, false
	}
	corner := target.Corner()
	view := grid.View(OctantIndex(corner.Shr(uint(target.Depth - 1)).And(1).ToOctantIndex()))
	for level := target.Depth - 1; level > 0; level-- {
		octant := corner.Shr(uint(level - 1)).And(1).ToOctantIndex()
		view = view.CreateChildGrid().View(OctantIndex(octant))
	}
	return view, true
}
