package mesh

import (
	"github.com/annel0/voxel-engine/internal/cube"
	"github.com/annel0/voxel-engine/internal/traversal"
	"github.com/annel0/voxel-engine/internal/vec"
)

// FaceInfo описывает одну видимую грань.
//
// Position и Size задают непустую ячейку, которой принадлежит грань
// (минимальный угол и ребро в системе корня [0,1]^3); Face - ее грань,
// обращенная к пустой ячейке ViewerCoord.
type FaceInfo struct {
	Face        Face
	Position    vec.Vec3Float
	Size        float64
	MaterialID  uint8
	ViewerCoord cube.CubeCoord
}

// Vertices возвращает вершины грани
func (f FaceInfo) Vertices() [4][3]float32 {
	return f.Face.Vertices(float32(f.Position.X), float32(f.Position.Y), float32(f.Position.Z), float32(f.Size))
}

// SolidCoord возвращает координату непустой ячейки грани
func (f FaceInfo) SolidCoord() cube.CubeCoord {
	return f.ViewerCoord.Neighbor(f.Face.Opposite().Dir())
}

// VoxelInfo описывает непустой лист
type VoxelInfo struct {
	Position   vec.Vec3Float
	Size       float64
	MaterialID uint8
	Coord      cube.CubeCoord
}

// faceVisitor строит посетителя обхода, выдающего грани пустых листьев.
// accept фильтрует грани по координате непустой ячейки.
func faceVisitor(emit func(FaceInfo), accept func(cube.CubeCoord) bool) traversal.Visitor {
	return func(view traversal.NeighborView, coord cube.CubeCoord, _ bool) bool {
		center := view.Center()
		if center.ID() != 0 {
			return false
		}
		atLimit := coord.Depth >= traversal.MaxTraversalDepth

		var pending [6]FaceInfo
		n := 0
		for _, dir := range AllFaces {
			neighbor, ok := view.Get(dir.Offset())
			if !ok {
				continue
			}
			if !neighbor.IsSolid() && !atLimit {
				// сосед мельче: грани выдадут дочерние ячейки
				return true
			}
			id := neighbor.ID()
			if id == 0 {
				continue
			}
			face := FaceInfo{
				Face:        dir.Opposite(),
				Size:        coord.Size(),
				MaterialID:  id,
				ViewerCoord: coord,
			}
			if accept != nil && !accept(face.SolidCoord()) {
				continue
			}
			base, size := coord.Bounds()
			face.Position = base.Add(dir.Dir().ToFloat().Mul(size))
			pending[n] = face
			n++
		}
		for i := 0; i < n; i++ {
			emit(pending[i])
		}
		return false
	}
}

// VisitFaces обходит все видимые грани дерева. Оболочка вокруг корня
// заполнена материалами border по слоям Y.
func VisitFaces(root *cube.Cube, border [4]uint8, visitor func(FaceInfo)) {
	grid := traversal.NewNeighborGrid(root, border)
	traversal.TraverseOctree(grid, traversal.MaxTraversalDepth, faceVisitor(visitor, nil))
}

// VisitFacesInRegion выдает только грани непустых ячеек, попадающих в bounds
func VisitFacesInRegion(root *cube.Cube, bounds traversal.RegionBounds, border [4]uint8, visitor func(FaceInfo)) {
	grid := traversal.NewNeighborGrid(root, border)
	faces := faceVisitor(visitor, bounds.Contains)
	traversal.TraverseOctree(grid, traversal.MaxTraversalDepth,
		func(view traversal.NeighborView, coord cube.CubeCoord, subleaf bool) bool {
			if !nearRegion(bounds, coord) {
				return false
			}
			return faces(view, coord, subleaf)
		})
}

// nearRegion проверяет, что ячейка или один из ее соседей по граням может
// пересекаться с областью
func nearRegion(bounds traversal.RegionBounds, coord cube.CubeCoord) bool {
	if bounds.MightContainDescendants(coord) {
		return true
	}
	for _, f := range AllFaces {
		n := coord.Neighbor(f.Dir())
		if n.InBounds() && bounds.MightContainDescendants(n) {
			return true
		}
	}
	return false
}

// VisitFacesAtCoord выдает грани, порождаемые пустыми ячейками внутри узла
// target. Для корня обходит все дерево.
func VisitFacesAtCoord(root *cube.Cube, target cube.CubeCoord, border [4]uint8, visitor func(FaceInfo)) {
	if target.Depth == 0 {
		VisitFaces(root, border, visitor)
		return
	}
	grid := traversal.NewNeighborGrid(root, border)
	view, ok := traversal.Descend(grid, target)
	if !ok {
		return
	}
	traversal.TraverseFrom(view, target, traversal.MaxTraversalDepth, faceVisitor(visitor, nil))
}

// VisitVoxelsInRegion выдает непустые листья, попадающие в bounds.
// Листья крупнее области дробятся до уровня области.
func VisitVoxelsInRegion(root *cube.Cube, bounds traversal.RegionBounds, visitor func(VoxelInfo)) {
	grid := traversal.NewNeighborGrid(root, [4]uint8{})
	traversal.TraverseOctree(grid, traversal.MaxTraversalDepth,
		func(view traversal.NeighborView, coord cube.CubeCoord, _ bool) bool {
			if !bounds.MightContainDescendants(coord) {
				return false
			}
			center := view.Center()
			id := center.ID()
			if id == 0 && center.IsSolid() {
				return false
			}
			if coord.Depth < bounds.Depth && center.IsSolid() {
				// дробим до уровня области, там Contains точен
				return true
			}
			if id != 0 && bounds.Contains(coord) {
				base, size := coord.Bounds()
				visitor(VoxelInfo{Position: base, Size: size, MaterialID: id, Coord: coord})
			}
			return false
		})
}

// GenerateMesh передает все видимые грани в builder и возвращает их число
func GenerateMesh(root *cube.Cube, builder MeshBuilder, colors ColorMapper, border [4]uint8) int {
	count := 0
	VisitFaces(root, border, func(f FaceInfo) {
		builder.AddFace(f.Vertices(), f.Face.Normal(), colors.Map(f.MaterialID))
		count++
	})
	return count
}

// GenerateTexturedMesh как GenerateMesh, но передает UV и материал грани
func GenerateTexturedMesh(root *cube.Cube, builder MeshBuilder, colors ColorMapper, border [4]uint8) int {
	count := 0
	VisitFaces(root, border, func(f FaceInfo) {
		builder.AddTexturedFace(f.Vertices(), f.Face.Normal(), colors.Map(f.MaterialID), f.Face.UVs(), f.MaterialID)
		count++
	})
	return count
}
