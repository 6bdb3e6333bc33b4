package raycast

import (
	"math"
	"testing"

	"github.com/annel0/voxel-engine/internal/cube"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delta = 1e-9

func assertVec(t *testing.T, expected, actual vec.Vec3Float) {
	t.Helper()
	assert.InDelta(t, expected.X, actual.X, delta, "X")
	assert.InDelta(t, expected.Y, actual.Y, delta, "Y")
	assert.InDelta(t, expected.Z, actual.Z, delta, "Z")
}

// только октант 0 заполнен материалом 1
func cornerTree() *cube.Cube {
	return cube.Tabulate(func(i int) *cube.Cube {
		if i == 0 {
			return cube.Solid(1)
		}
		return cube.Empty()
	})
}

func TestNormal(t *testing.T) {
	assert.Equal(t, PosX, NegX.Opposite())
	assert.Equal(t, NegZ, PosZ.Opposite())
	assert.Equal(t, vec.NewVec3(0, -1, 0), NegY.Vec())
	assert.Equal(t, vec.NewVec3(0, 0, 1), PosZ.Vec())
	assert.Equal(t, 2, PosZ.Axis())
	assert.Equal(t, "-X", NegX.String())

	assert.Equal(t, NegZ, EntryNormal(vec.NewVec3Float(0, 0, 1)))
	assert.Equal(t, PosY, EntryNormal(vec.NewVec3Float(0.1, -1, 0.2)))
	assert.Equal(t, NegX, EntryNormal(vec.NewVec3Float(2, 1, -1)))
}

func TestCastSolidFromInside(t *testing.T) {
	r, err := Cast(cube.Solid(42), vec.NewVec3Float(0.5, 0.5, 0.5), vec.NewVec3Float(0, 0, 1), Options{})
	require.NoError(t, err)
	require.True(t, r.Hit)
	assert.Equal(t, uint8(42), r.Value)
	assert.Equal(t, cube.RootCoord(), r.Coord)
	assertVec(t, vec.NewVec3Float(0.5, 0.5, 0.5), r.Position)
	assert.Equal(t, NegZ, r.Normal)
}

func TestCastEmptyMisses(t *testing.T) {
	r, err := Cast(cube.Solid(0), vec.NewVec3Float(0.5, 0.5, 0.5), vec.NewVec3Float(0, 0, 1), Options{})
	require.NoError(t, err)
	assert.False(t, r.Hit)
	assert.False(t, r.Coord.InBounds(), "промах выходит за пределы корня")
	assert.Equal(t, cube.NewCoord(vec.NewVec3(0, 0, 2), 0), r.Coord)
}

func TestStepEmptyReportsNeighbor(t *testing.T) {
	r := Step(cube.Empty(), 0, cube.RootCoord(), 0, NegZ,
		vec.NewVec3Float(0.5, 0.5, 0), vec.NewVec3Float(0, 0, 1))
	assert.False(t, r.Hit)
	assert.Equal(t, cube.NewCoord(vec.NewVec3(0, 0, 2), 0), r.Coord)
	assertVec(t, vec.NewVec3Float(0.5, 0.5, 0), r.Position)
	assertVec(t, vec.NewVec3Float(0.5, 0.5, 1), r.Point)
	assert.Equal(t, NegZ, r.Normal)
}

func TestStepIntoOctant(t *testing.T) {
	r := Step(cornerTree(), 0, cube.RootCoord(), 1, NegZ,
		vec.NewVec3Float(0.1, 0.1, 0), vec.NewVec3Float(0, 0, 1))
	require.True(t, r.Hit)
	assert.Equal(t, uint8(1), r.Value)
	assert.Equal(t, cube.RootCoord().Child(0), r.Coord)
	assertVec(t, vec.NewVec3Float(0.2, 0.2, 0), r.Position)
	assert.Equal(t, NegZ, r.Normal)
	assert.Equal(t, 1, r.CastState)
}

func TestStepWithoutDepthBudgetPassesThrough(t *testing.T) {
	r := Step(cornerTree(), 0, cube.RootCoord(), 0, NegZ,
		vec.NewVec3Float(0.1, 0.1, 0), vec.NewVec3Float(0, 0, 1))
	assert.False(t, r.Hit, "Cubes без запаса глубины считается пустым")
}

func TestCastPassesThroughEmptyOctants(t *testing.T) {
	r, err := Cast(cornerTree(), vec.NewVec3Float(0.75, 0.75, 0), vec.NewVec3Float(0, 0, 1), Options{})
	require.NoError(t, err)
	assert.False(t, r.Hit)
	assert.Equal(t, cube.NewCoord(vec.NewVec3(1, 1, 3), 1), r.Coord)
	assert.Equal(t, 2, r.CastState, "два спуска в октанты")
}

func TestCastMultiStepHit(t *testing.T) {
	root := cube.Tabulate(func(i int) *cube.Cube {
		if i == 4 {
			return cube.Solid(9)
		}
		return cube.Empty()
	})
	r, err := Cast(root, vec.NewVec3Float(0.25, 0.25, 0.1), vec.NewVec3Float(0, 0, 1), Options{})
	require.NoError(t, err)
	require.True(t, r.Hit)
	assert.Equal(t, uint8(9), r.Value)
	assert.Equal(t, cube.RootCoord().Child(4), r.Coord)
	assertVec(t, vec.NewVec3Float(0.5, 0.5, 0), r.Position)
	assertVec(t, vec.NewVec3Float(0.25, 0.25, 0.5), r.Point)
	assert.Equal(t, NegZ, r.Normal)
}

func TestCastDeepTree(t *testing.T) {
	root := cube.Empty().SetVoxel(3, 0, 0, 2, 7)
	r, err := Cast(root, vec.NewVec3Float(0.1, 0.1, 0.1), vec.NewVec3Float(1, 0, 0), Options{})
	require.NoError(t, err)
	require.True(t, r.Hit)
	assert.Equal(t, uint8(7), r.Value)
	assert.Equal(t, cube.CoordFromCorner(vec.NewVec3(3, 0, 0), 2), r.Coord)
	assert.Equal(t, vec.NewVec3(3, -3, -3), r.Coord.Pos)
	assertVec(t, vec.NewVec3Float(0, 0.4, 0.4), r.Position)
	assert.Equal(t, NegX, r.Normal)
}

func TestCastDiagonal(t *testing.T) {
	root := cube.Tabulate(func(i int) *cube.Cube {
		if i == 7 {
			return cube.Solid(3)
		}
		return cube.Empty()
	})
	r, err := Cast(root, vec.NewVec3Float(0.1, 0.1, 0.1), vec.NewVec3Float(1, 1, 1), Options{})
	require.NoError(t, err)
	require.True(t, r.Hit)
	assert.Equal(t, uint8(3), r.Value)
	assert.Equal(t, cube.RootCoord().Child(7), r.Coord)
}

func TestCastFromOutside(t *testing.T) {
	r, err := Cast(cube.Solid(5), vec.NewVec3Float(0.25, 0.25, -1), vec.NewVec3Float(0, 0, 1), Options{})
	require.NoError(t, err)
	require.True(t, r.Hit)
	assert.Equal(t, NegZ, r.Normal)
	assertVec(t, vec.NewVec3Float(0.25, 0.25, 0), r.Position)

	r, err = Cast(cube.Solid(5), vec.NewVec3Float(0.5, 2, 0.5), vec.NewVec3Float(0, -1, 0), Options{})
	require.NoError(t, err)
	require.True(t, r.Hit)
	assert.Equal(t, PosY, r.Normal)
	assertVec(t, vec.NewVec3Float(0.5, 1, 0.5), r.Position)
}

func TestCastErrors(t *testing.T) {
	_, err := Cast(cube.Solid(1), vec.NewVec3Float(2, 0.5, 0.5), vec.NewVec3Float(1, 0, 0), Options{})
	assert.ErrorIs(t, err, ErrStartOutOfBounds)

	_, err = Cast(cube.Solid(1), vec.NewVec3Float(0.5, 0.5, 0.5), vec.Vec3Float{}, Options{})
	assert.ErrorIs(t, err, ErrInvalidDirection)

	_, err = Cast(cube.Solid(1), vec.NewVec3Float(0.5, 0.5, 0.5), vec.NewVec3Float(math.NaN(), 0, 1), Options{})
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestCastStepLimit(t *testing.T) {
	var voxels []cube.Voxel
	voxels = append(voxels, cube.Voxel{Pos: vec.NewVec3(15, 15, 15), Material: 1})
	root := cube.FromVoxels(voxels, 4, 0)

	_, err := Cast(root, vec.NewVec3Float(0.01, 0.5, 0.5), vec.NewVec3Float(1, 0, 0), Options{MaxSteps: 1})
	assert.ErrorIs(t, err, ErrMaxStepsExceeded)

	r, err := Cast(root, vec.NewVec3Float(0.01, 0.5, 0.5), vec.NewVec3Float(1, 0, 0), Options{})
	require.NoError(t, err)
	assert.False(t, r.Hit)
}
