package vec

import "math"

// Vec3Float представляет трехмерный вектор с плавающими координатами
type Vec3Float struct {
	X float64
	Y float64
	Z float64
}

// NewVec3Float создает вектор из трех координат
func NewVec3Float(x, y, z float64) Vec3Float {
	return Vec3Float{X: x, Y: y, Z: z}
}

// SplatFloat создает вектор с одинаковыми координатами
func SplatFloat(v float64) Vec3Float {
	return Vec3Float{X: v, Y: v, Z: v}
}

// Add складывает два вектора
func (v Vec3Float) Add(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec3Float) Sub(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Mul умножает вектор на скаляр
func (v Vec3Float) Mul(s float64) Vec3Float {
	return Vec3Float{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Div делит вектор на скаляр
func (v Vec3Float) Div(s float64) Vec3Float {
	return Vec3Float{X: v.X / s, Y: v.Y / s, Z: v.Z / s}
}

// Dot возвращает скалярное произведение
func (v Vec3Float) Dot(other Vec3Float) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Length возвращает длину вектора
func (v Vec3Float) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalize возвращает единичный вектор (нулевой вектор остается нулевым)
func (v Vec3Float) Normalize() Vec3Float {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Div(l)
}

// IsZero проверяет, что все координаты равны нулю
func (v Vec3Float) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Get возвращает координату по номеру оси
func (v Vec3Float) Get(axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// With возвращает копию вектора с замененной координатой
func (v Vec3Float) With(axis int, value float64) Vec3Float {
	switch axis {
	case 0:
		v.X = value
	case 1:
		v.Y = value
	default:
		v.Z = value
	}
	return v
}

// Clamp ограничивает каждую координату отрезком [lo, hi]
func (v Vec3Float) Clamp(lo, hi float64) Vec3Float {
	return Vec3Float{X: clamp(v.X, lo, hi), Y: clamp(v.Y, lo, hi), Z: clamp(v.Z, lo, hi)}
}

// Min возвращает поэлементный минимум
func (v Vec3Float) Min(other Vec3Float) Vec3Float {
	return Vec3Float{X: math.Min(v.X, other.X), Y: math.Min(v.Y, other.Y), Z: math.Min(v.Z, other.Z)}
}

// Max возвращает поэлементный максимум
func (v Vec3Float) Max(other Vec3Float) Vec3Float {
	return Vec3Float{X: math.Max(v.X, other.X), Y: math.Max(v.Y, other.Y), Z: math.Max(v.Z, other.Z)}
}

// Array32 возвращает координаты в виде массива float32 (для буферов меша)
func (v Vec3Float) Array32() [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
