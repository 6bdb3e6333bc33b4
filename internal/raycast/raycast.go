// Package raycast ищет первый непустой лист дерева кубов вдоль луча.
//
// Все расчеты ведутся в системе корня [0,1]^3. Step обрабатывает один спуск
// от заданного узла до листа: попадание, либо выход из пустого листа с
// координатой соседа для продолжения. Cast повторяет Step от корня, пока луч
// не попадет в лист или не покинет корень.
package raycast

import (
	"errors"
	"math"

	"github.com/annel0/voxel-engine/internal/cube"
	"github.com/annel0/voxel-engine/internal/vec"
)

// Epsilon - допуск сравнения с гранями в долях ребра узла
const Epsilon = 1e-9

// DefaultMaxSteps - предел шагов Cast по умолчанию
const DefaultMaxSteps = 4096

var (
	// ErrInvalidDirection - нулевое или нечисловое направление луча
	ErrInvalidDirection = errors.New("raycast: некорректное направление луча")
	// ErrStartOutOfBounds - начало луча вне корня, и луч его не пересекает
	ErrStartOutOfBounds = errors.New("raycast: луч не пересекает корневой куб")
	// ErrMaxStepsExceeded - луч не завершился за отведенное число шагов
	ErrMaxStepsExceeded = errors.New("raycast: превышено число шагов")
)

// Result - итог шага или всего броска.
//
// При попадании Coord - координата листа, Position - точка входа в его
// локальной системе [0,1]^3, Normal - грань входа. При промахе Coord -
// соседний узел за гранью выхода, Position - точка входа в соседа в его
// локальной системе, Normal - грань входа в соседа. Point - та же точка в
// системе корня.
type Result struct {
	Hit       bool
	Value     uint8
	Coord     cube.CubeCoord
	Position  vec.Vec3Float
	Point     vec.Vec3Float
	Normal    Normal
	CastState int
}

// Step выполняет один шаг автомата для узла c с координатой coord.
//
// maxDepth - сколько еще уровней можно спуститься от c. Точка входа - origin,
// если она внутри узла, иначе пересечение луча с гранью узла (если луч узел
// не пересекает, origin прижимается к границам). castState растет на
// единицу при каждом спуске в октант.
func Step(c *cube.Cube, castState int, coord cube.CubeCoord, maxDepth uint32,
	entry Normal, origin, dir vec.Vec3Float) Result {
	base, size := coord.Bounds()
	p, entry := entryPoint(origin, dir, base, size, entry)

	if v, ok := c.Value(); ok && v != 0 {
		return Result{
			Hit:       true,
			Value:     v,
			Coord:     coord,
			Position:  toLocal(p, base, size),
			Point:     p,
			Normal:    entry,
			CastState: castState,
		}
	}

	if c.Kind() == cube.KindCubes && maxDepth > 0 {
		octant := octantAt(p, dir, base, size)
		child, _ := c.Child(octant)
		return Step(child, castState+1, coord.Child(octant), maxDepth-1, entry, p, dir)
	}

	return exit(castState, coord, p, dir, base, size)
}

// octantAt выбирает октант по знаку (p - center); точка на разделяющей
// плоскости относится к половине, в которую направлен луч
func octantAt(p, dir, base vec.Vec3Float, size float64) int {
	half := size / 2
	octant := 0
	for axis := 0; axis < 3; axis++ {
		d := p.Get(axis) - (base.Get(axis) + half)
		if d > Epsilon*size || (math.Abs(d) <= Epsilon*size && dir.Get(axis) > 0) {
			octant |= 1 << axis
		}
	}
	return octant
}

// exit считает точку выхода из пустого узла и координату соседа за гранью выхода
func exit(castState int, coord cube.CubeCoord, p, dir, base vec.Vec3Float, size float64) Result {
	tExit := math.Inf(1)
	for axis := 0; axis < 3; axis++ {
		d := dir.Get(axis)
		if d == 0 {
			continue
		}
		if t := (farBound(axis, dir, base, size) - p.Get(axis)) / d; t < tExit {
			tExit = t
		}
	}
	if tExit < 0 {
		tExit = 0
	}
	q := p.Add(dir.Mul(tExit))

	exitAxis := -1
	for axis := 0; axis < 3 && exitAxis < 0; axis++ {
		if dir.Get(axis) == 0 {
			continue
		}
		bound := farBound(axis, dir, base, size)
		if math.Abs(q.Get(axis)-bound) <= Epsilon*size {
			exitAxis = axis
			q = q.With(axis, bound)
		}
	}
	if exitAxis < 0 {
		// до грани не дошли из-за погрешности: берем ось с наибольшей компонентой
		exitAxis = EntryNormal(dir).Axis()
		q = q.With(exitAxis, farBound(exitAxis, dir, base, size))
	}

	out := normalFor(exitAxis, dir.Get(exitAxis) > 0)
	next := coord.Neighbor(out.Vec())
	nextMin, _ := next.Bounds()
	return Result{
		Coord:     next,
		Position:  toLocal(q, nextMin, size),
		Point:     q,
		Normal:    out.Opposite(),
		CastState: castState,
	}
}

func farBound(axis int, dir, base vec.Vec3Float, size float64) float64 {
	if dir.Get(axis) > 0 {
		return base.Get(axis) + size
	}
	return base.Get(axis)
}

// entryPoint возвращает точку входа луча в узел и грань входа
func entryPoint(origin, dir, base vec.Vec3Float, size float64, entry Normal) (vec.Vec3Float, Normal) {
	if inside(origin, base, size) {
		return clampTo(origin, base, size), entry
	}
	tEnter, _, axis, ok := intersect(origin, dir, base, size)
	if !ok {
		return clampTo(origin, base, size), entry
	}
	lo := base.Get(axis)
	if dir.Get(axis) < 0 {
		lo += size
	}
	p := origin.Add(dir.Mul(tEnter)).With(axis, lo)
	return clampTo(p, base, size), normalFor(axis, dir.Get(axis) < 0)
}

// intersect - тест пластин: параметры входа и выхода луча и ось грани входа
func intersect(origin, dir, base vec.Vec3Float, size float64) (tEnter, tExit float64, axis int, ok bool) {
	tEnter, tExit, axis = math.Inf(-1), math.Inf(1), -1
	for a := 0; a < 3; a++ {
		o, d := origin.Get(a), dir.Get(a)
		lo, hi := base.Get(a), base.Get(a)+size
		if d == 0 {
			if o < lo || o > hi {
				return 0, 0, -1, false
			}
			continue
		}
		t1, t2 := (lo-o)/d, (hi-o)/d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tEnter {
			tEnter, axis = t1, a
		}
		if t2 < tExit {
			tExit = t2
		}
	}
	if axis < 0 || tEnter > tExit || tExit < 0 {
		return 0, 0, -1, false
	}
	return tEnter, tExit, axis, true
}

func inside(p, base vec.Vec3Float, size float64) bool {
	eps := Epsilon * size
	for axis := 0; axis < 3; axis++ {
		v := p.Get(axis)
		if v < base.Get(axis)-eps || v > base.Get(axis)+size+eps {
			return false
		}
	}
	return true
}

func clampTo(p, base vec.Vec3Float, size float64) vec.Vec3Float {
	return p.Max(base).Min(base.Add(vec.SplatFloat(size)))
}

func toLocal(p, base vec.Vec3Float, size float64) vec.Vec3Float {
	return p.Sub(base).Div(size).Clamp(0, 1)
}
