package bcf

import (
	"bytes"
	"errors"
	"testing"

	"github.com/annel0/voxel-engine/internal/cube"
	"github.com/annel0/voxel-engine/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func header(root uint32) []byte {
	return []byte{
		0x31, 0x46, 0x43, 0x42, // 'BCF1'
		Version, 0, 0, 0,
		byte(root), byte(root >> 8), byte(root >> 16), byte(root >> 24),
	}
}

func TestDecodeTypeByte(t *testing.T) {
	ext, typeID, size := DecodeTypeByte(0x2A)
	assert.False(t, ext)
	assert.Equal(t, uint8(2), typeID)
	assert.Equal(t, uint8(10), size)

	node, err := NewReader([]byte{0x2A}).ReadNodeAt(0)
	require.NoError(t, err)
	assert.Equal(t, NodeInlineLeaf, node.Kind)
	assert.Equal(t, uint8(42), node.Value)

	ext, typeID, size = DecodeTypeByte(0xA2)
	assert.True(t, ext)
	assert.Equal(t, uint8(2), typeID)
	assert.Equal(t, uint8(2), size, "SSSS=2 - указатели по 4 байта")
}

func TestReaderPrimitives(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})

	v16, err := r.ReadU16LE(0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0201), v16)

	v32, err := r.ReadU32LE(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x08070605), v32)

	v64, err := r.ReadU64LE(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x0807060504030201), v64)

	_, err = r.ReadU8(8)
	var offErr *InvalidOffsetError
	require.ErrorAs(t, err, &offErr)
	assert.Equal(t, 8, offErr.Offset)
	assert.Equal(t, 8, offErr.FileSize)

	_, err = r.ReadU32LE(6)
	var truncErr *TruncatedDataError
	require.ErrorAs(t, err, &truncErr)
	assert.Equal(t, 10, truncErr.ExpectedBytes)
	assert.Equal(t, 8, truncErr.AvailableBytes)

	p, err := r.ReadPointer(2, 1)
	require.NoError(t, err)
	assert.Equal(t, 0x0403, p)

	_, err = r.ReadPointer(0, 4)
	var sizeErr *InvalidPointerSizeError
	assert.ErrorAs(t, err, &sizeErr)
}

func TestReadHeaderErrors(t *testing.T) {
	_, err := NewReader([]byte{1, 2, 3}).ReadHeader()
	var truncErr *TruncatedDataError
	require.ErrorAs(t, err, &truncErr)
	assert.Equal(t, HeaderSize, truncErr.ExpectedBytes)

	bad := header(12)
	bad[0] = 0
	_, err = NewReader(append(bad, 0)).ReadHeader()
	var magicErr *InvalidMagicError
	require.ErrorAs(t, err, &magicErr)
	assert.Equal(t, Magic, magicErr.Expected)

	ver := header(12)
	ver[4] = 2
	_, err = NewReader(append(ver, 0)).ReadHeader()
	var verErr *UnsupportedVersionError
	require.ErrorAs(t, err, &verErr)
	assert.Equal(t, uint8(2), verErr.Found)

	_, err = NewReader(header(12)).ReadHeader()
	var offErr *InvalidOffsetError
	require.ErrorAs(t, err, &offErr, "корень за пределами буфера")
	assert.Equal(t, 12, offErr.Offset)
}

func TestReadNodeAtKinds(t *testing.T) {
	data := []byte{
		0x80, 200, // расширенный лист
		0x90, 1, 2, 3, 4, 5, 6, 7, 8, // восемь листьев
		0xA0, 0, 0, 0, 0, 0, 0, 0, 1, // восемь указателей по 1 байту
		0xB0, // зарезервированный тип
	}
	r := NewReader(data)

	node, err := r.ReadNodeAt(0)
	require.NoError(t, err)
	assert.Equal(t, NodeExtendedLeaf, node.Kind)
	assert.Equal(t, uint8(200), node.Value)

	node, err = r.ReadNodeAt(2)
	require.NoError(t, err)
	assert.Equal(t, NodeOctaLeaves, node.Kind)
	assert.Equal(t, [8]uint8{1, 2, 3, 4, 5, 6, 7, 8}, node.Values)

	node, err = r.ReadNodeAt(11)
	require.NoError(t, err)
	assert.Equal(t, NodeOctaPointers, node.Kind)
	assert.Equal(t, uint8(0), node.SSSS)
	assert.Equal(t, [8]int{0, 0, 0, 0, 0, 0, 0, 1}, node.Pointers)

	_, err = r.ReadNodeAt(20)
	var typeErr *InvalidTypeIDError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, uint8(3), typeErr.TypeID)

	_, err = NewReader([]byte{0x90, 1, 2}).ReadNodeAt(0)
	var truncErr *TruncatedDataError
	assert.ErrorAs(t, err, &truncErr)
}

func TestReadNodeIdempotent(t *testing.T) {
	data := Serialize(cube.Empty().SetVoxel(1, 0, 1, 2, 200).SetVoxel(0, 0, 0, 2, 3))
	r := NewReader(data)
	h, err := r.ReadHeader()
	require.NoError(t, err)

	a, err := r.ReadNodeAt(h.RootOffset)
	require.NoError(t, err)
	b, err := r.ReadNodeAt(h.RootOffset)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSerializeLeaf(t *testing.T) {
	data := Serialize(cube.Solid(42))
	assert.Equal(t, append(header(12), 42), data)

	data = Serialize(cube.Solid(200))
	assert.Equal(t, append(header(12), 0x80, 200), data)
}

func TestSerializeOctaLeaves(t *testing.T) {
	root := cube.Tabulate(func(i int) *cube.Cube { return cube.Solid(uint8(i * 30)) })
	data := Serialize(root)
	expected := append(header(12), 0x90, 0, 30, 60, 90, 120, 150, 180, 210)
	assert.Equal(t, expected, data)
}

func TestRoundTrip(t *testing.T) {
	var voxels []cube.Voxel
	for i := 0; i < 200; i++ {
		voxels = append(voxels, cube.Voxel{
			Pos:      vec.NewVec3((i*7)%16, (i*3)%16, (i*11)%16),
			Material: uint8(i%250 + 1),
		})
	}
	root := cube.FromVoxels(voxels, 4, 0)

	parsed, err := Parse(Serialize(root))
	require.NoError(t, err)
	for z := 0; z < 16; z++ {
		for y := 0; y < 16; y++ {
			for x := 0; x < 16; x++ {
				require.Equal(t, root.GetVoxel(x, y, z, 4), parsed.GetVoxel(x, y, z, 4))
			}
		}
	}
	assert.True(t, cube.Equal(root, parsed))
}

func TestRoundTripCompactionVariants(t *testing.T) {
	root := cube.Layers(cube.AxisY, [2]*cube.Cube{cube.Solid(1), cube.Solid(2)})
	parsed, err := Parse(Serialize(root))
	require.NoError(t, err)
	assert.Equal(t, uint8(1), parsed.GetVoxel(0, 0, 0, 1))
	assert.Equal(t, uint8(2), parsed.GetVoxel(1, 1, 1, 1))
}

func TestWidePointers(t *testing.T) {
	// достаточно большое дерево, чтобы смещения не влезали в 1 байт
	var voxels []cube.Voxel
	for i := 0; i < 4096; i += 3 {
		voxels = append(voxels, cube.Voxel{Pos: vec.NewVec3(i%16, (i/16)%16, i/256), Material: uint8(i%7 + 1)})
	}
	root := cube.FromVoxels(voxels, 4, 0)
	data := Serialize(root)
	require.Greater(t, len(data), 0xFF)

	info, err := Inspect(data)
	require.NoError(t, err)
	assert.Greater(t, info.PointerWidths[2], 0, "корневые узлы должны использовать 2-байтовые указатели")

	parsed, err := Parse(data)
	require.NoError(t, err)
	assert.True(t, cube.Equal(root, parsed))
}

func TestSharedSubtreesWrittenOnce(t *testing.T) {
	leaf := cube.Tabulate(func(i int) *cube.Cube { return cube.Solid(uint8(i)) })
	root := cube.Tabulate(func(int) *cube.Cube { return leaf })
	data := Serialize(root)
	// заголовок + один узел из 8 листьев + узел указателей
	assert.Equal(t, HeaderSize+9+9, len(data))

	parsed, err := Parse(data)
	require.NoError(t, err)
	a, _ := parsed.Child(0)
	b, _ := parsed.Child(7)
	assert.Same(t, a, b)
}

func TestParseRejectsCycles(t *testing.T) {
	// узел указателей, который ссылается сам на себя
	data := append(header(12), 0xA0, 12, 12, 12, 12, 12, 12, 12, 12)
	_, err := Parse(data)
	var recErr *RecursionLimitError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, MaxRecursionDepth, recErr.MaxDepth)
}

// sharedChain строит буфер, где все 8 указателей каждого уровня ссылаются
// на предыдущий уровень: levels узлов в файле, 8^levels после раскрытия
func sharedChain(levels int) []byte {
	data := header(0)
	prev := len(data)
	data = append(data, octaLeavesBase, 1, 2, 3, 4, 5, 6, 7, 8)
	for i := 0; i < levels; i++ {
		off := len(data)
		data = append(data, octaPointersBase|1)
		for j := 0; j < 8; j++ {
			data = append(data, byte(prev), byte(prev>>8))
		}
		prev = off
	}
	data[8], data[9] = byte(prev), byte(prev>>8)
	return data
}

func TestParseRejectsExplodingSharedTree(t *testing.T) {
	data := sharedChain(40)
	assert.Less(t, len(data), 1024)

	root, err := Parse(data)
	assert.Nil(t, root)
	var limitErr *NodeLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, MaxExpandedNodes, limitErr.Limit)

	// неглубокая цепочка укладывается в предел и читается целиком
	shallow, err := Parse(sharedChain(3))
	require.NoError(t, err)
	assert.Equal(t, 4, shallow.MaxDepth())
	assert.Equal(t, []int{1, 8, 64, 512, 4096}, shallow.CountNodesByDepth())
}

func TestParseBadPointer(t *testing.T) {
	data := append(header(12), 0xA0, 200, 0, 0, 0, 0, 0, 0, 0)
	_, err := Parse(data)
	var offErr *InvalidOffsetError
	assert.True(t, errors.As(err, &offErr))
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, cube.Solid(7)))
	assert.Equal(t, Serialize(cube.Solid(7)), buf.Bytes())
}
