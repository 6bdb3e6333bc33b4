package vec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOctantIndexRoundTrip(t *testing.T) {
	for i := 0; i < 8; i++ {
		assert.Equal(t, i, FromOctantIndex(i).ToOctantIndex())
	}
	assert.Equal(t, NewVec3(1, 0, 1), FromOctantIndex(5))
	assert.Equal(t, NewVec3(-1, -1, -1), OctantOffset(0))
	assert.Equal(t, NewVec3(1, -1, 1), OctantOffset(5))
}

func TestVec3Arithmetic(t *testing.T) {
	v := NewVec3(-3, 4, 7)
	assert.Equal(t, NewVec3(-2, 5, 8), v.Add(One))
	assert.Equal(t, 7, v.MaxAbs())
	assert.Equal(t, NewVec3(-2, 2, 3), v.Shr(1), "арифметический сдвиг")
	assert.Equal(t, NewVec3(0, 1, 1), v.Step0())
	assert.Equal(t, NewVec3(-3, 9, 7), v.With(1, 9))
	assert.Equal(t, 4, v.Get(1))
	assert.Equal(t, -9+16+49, v.Dot(v))
}

func TestVec3Float(t *testing.T) {
	v := NewVec3Float(3, 0, 4)
	assert.InDelta(t, 5.0, v.Length(), 1e-12)
	assert.InDelta(t, 1.0, v.Normalize().Length(), 1e-12)
	assert.True(t, Vec3Float{}.IsZero())
	assert.Equal(t, NewVec3Float(1, 0, 1), v.Clamp(0, 1))
	assert.Equal(t, [3]float32{3, 0, 4}, v.Array32())
	assert.Equal(t, NewVec3Float(1, 0, 1), v.Min(SplatFloat(1)))
	assert.False(t, math.IsNaN(Vec3Float{}.Normalize().X), "нулевой вектор не дает NaN")
}
