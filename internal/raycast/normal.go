package raycast

import (
	"math"

	"github.com/annel0/voxel-engine/internal/vec"
)

// Normal - грань куба, через которую луч входит или выходит
type Normal uint8

const (
	NegX Normal = iota
	PosX
	NegY
	PosY
	NegZ
	PosZ
)

var normalNames = [...]string{"-X", "+X", "-Y", "+Y", "-Z", "+Z"}

// String возвращает краткое имя грани
func (n Normal) String() string {
	if int(n) < len(normalNames) {
		return normalNames[n]
	}
	return "?"
}

// Axis возвращает номер оси грани (0 - X, 1 - Y, 2 - Z)
func (n Normal) Axis() int {
	return int(n) / 2
}

// Positive сообщает, что нормаль направлена в положительную сторону оси
func (n Normal) Positive() bool {
	return n%2 == 1
}

// Opposite возвращает противоположную грань
func (n Normal) Opposite() Normal {
	return n ^ 1
}

// Vec возвращает нормаль как целочисленный вектор
func (n Normal) Vec() vec.Vec3 {
	s := -1
	if n.Positive() {
		s = 1
	}
	return vec.Zero.With(n.Axis(), s)
}

// VecFloat возвращает нормаль как вектор с плавающей точкой
func (n Normal) VecFloat() vec.Vec3Float {
	return n.Vec().ToFloat()
}

func normalFor(axis int, positive bool) Normal {
	n := Normal(axis * 2)
	if positive {
		n++
	}
	return n
}

// EntryNormal возвращает грань, через которую входит луч с направлением dir:
// по доминирующей оси, навстречу лучу
func EntryNormal(dir vec.Vec3Float) Normal {
	axis := 0
	for a := 1; a < 3; a++ {
		if math.Abs(dir.Get(a)) > math.Abs(dir.Get(axis)) {
			axis = a
		}
	}
	return normalFor(axis, dir.Get(axis) < 0)
}
