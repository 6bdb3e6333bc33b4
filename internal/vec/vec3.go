package vec

// Vec3 представляет трехмерный вектор с целочисленными координатами
type Vec3 struct {
	X int
	Y int
	Z int
}

// Zero и One - часто используемые константы
var (
	Zero = Vec3{}
	One  = Vec3{X: 1, Y: 1, Z: 1}
)

// NewVec3 создает вектор из трех координат
func NewVec3(x, y, z int) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Splat создает вектор с одинаковыми координатами
func Splat(v int) Vec3 {
	return Vec3{X: v, Y: v, Z: v}
}

// Equals проверяет равенство векторов
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

// Sub вычитает вектор
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

// Mul умножает вектор на скаляр
func (v Vec3) Mul(s int) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Div делит вектор на скаляр (целочисленное деление с округлением к нулю)
func (v Vec3) Div(s int) Vec3 {
	return Vec3{X: v.X / s, Y: v.Y / s, Z: v.Z / s}
}

// Mod возвращает поэлементный остаток от деления
func (v Vec3) Mod(s int) Vec3 {
	return Vec3{X: v.X % s, Y: v.Y % s, Z: v.Z % s}
}

// Dot возвращает скалярное произведение
func (v Vec3) Dot(other Vec3) int {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Shr выполняет арифметический сдвиг вправо каждой координаты
func (v Vec3) Shr(n uint) Vec3 {
	return Vec3{X: v.X >> n, Y: v.Y >> n, Z: v.Z >> n}
}

// And применяет битовую маску к каждой координате
func (v Vec3) And(mask int) Vec3 {
	return Vec3{X: v.X & mask, Y: v.Y & mask, Z: v.Z & mask}
}

// Get возвращает координату по номеру оси (0 - X, 1 - Y, 2 - Z)
func (v Vec3) Get(axis int) int {
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
func (v Vec3) With(axis, value int) Vec3 {
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

// MaxAbs возвращает максимальный модуль координаты
func (v Vec3) MaxAbs() int {
	m := abs(v.X)
	if a := abs(v.Y); a > m {
		m = a
	}
	if a := abs(v.Z); a > m {
		m = a
	}
	return m
}

// ToFloat преобразует вектор в Vec3Float
func (v Vec3) ToFloat() Vec3Float {
	return Vec3Float{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

// ToOctantIndex кодирует вектор из 0/1 в индекс октанта x | y<<1 | z<<2
func (v Vec3) ToOctantIndex() int {
	return (v.X & 1) | (v.Y&1)<<1 | (v.Z&1)<<2
}

// FromOctantIndex декодирует индекс октанта в вектор из 0/1
func FromOctantIndex(i int) Vec3 {
	return Vec3{X: i & 1, Y: (i >> 1) & 1, Z: (i >> 2) & 1}
}

// OctantOffset возвращает смещение центра октанта в центральных координатах (-1 или +1 по оси)
func OctantOffset(i int) Vec3 {
	return FromOctantIndex(i).Mul(2).Sub(One)
}

// Step0 возвращает 1 для неотрицательных координат и 0 для отрицательных
func (v Vec3) Step0() Vec3 {
	return Vec3{X: step0(v.X), Y: step0(v.Y), Z: step0(v.Z)}
}

func step0(v int) int {
	if v >= 0 {
		return 1
	}
	return 0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
