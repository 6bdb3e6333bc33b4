package raycast

import (
	"math"

	"github.com/annel0/voxel-engine/internal/cube"
	"github.com/annel0/voxel-engine/internal/vec"
)

// Options - параметры броска
type Options struct {
	// MaxDepth ограничивает спуск; 0 - глубина дерева
	MaxDepth uint32
	// MaxSteps ограничивает число шагов между листьями; 0 - DefaultMaxSteps
	MaxSteps int
}

// Cast бросает луч через дерево root в системе корня [0,1]^3.
//
// Если origin вне корня, луч начинается в точке входа в корень. Возвращает
// первое попадание, либо промах с координатой за пределами корня.
func Cast(root *cube.Cube, origin, dir vec.Vec3Float, opts Options) (Result, error) {
	if dir.IsZero() || !finite(dir) || !finite(origin) {
		return Result{}, ErrInvalidDirection
	}

	maxDepth := opts.MaxDepth
	if maxDepth == 0 {
		maxDepth = uint32(root.MaxDepth())
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	rootCoord := cube.RootCoord()
	rootMin, rootSize := rootCoord.Bounds()

	point, normal := origin, EntryNormal(dir)
	if !inside(origin, rootMin, rootSize) {
		tEnter, _, axis, ok := intersect(origin, dir, rootMin, rootSize)
		if !ok {
			return Result{}, ErrStartOutOfBounds
		}
		point = origin.Add(dir.Mul(tEnter))
		normal = normalFor(axis, dir.Get(axis) < 0)
	}

	state := 0
	for i := 0; i < maxSteps; i++ {
		r := Step(root, state, rootCoord, maxDepth, normal, point, dir)
		if r.Hit || !r.Coord.InBounds() {
			return r, nil
		}
		point, normal, state = r.Point, r.Normal, r.CastState
	}
	return Result{}, ErrMaxStepsExceeded
}

func finite(v vec.Vec3Float) bool {
	for axis := 0; axis < 3; axis++ {
		f := v.Get(axis)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
