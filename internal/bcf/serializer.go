package bcf

import (
	"encoding/binary"
	"io"

	"github.com/annel0/voxel-engine/internal/cube"
)

// Serialize кодирует дерево в BCF.
//
// Узлы пишутся в обратном порядке (потомки раньше родителя), поэтому к моменту
// записи узла смещения всех потомков известны и ширина указателей выбирается
// минимальной для каждого узла. Корень пишется последним. Поддеревья,
// разделяемые по указателю, записываются один раз. Варианты уплотнения
// (Quad, Layers, Planes, Slices) предварительно разворачиваются в октодерево.
func Serialize(c *cube.Cube) []byte {
	w := writer{
		buf:  make([]byte, HeaderSize, HeaderSize+64),
		memo: make(map[*cube.Cube]int),
	}
	root := w.writeNode(c.ToOctree())

	binary.LittleEndian.PutUint32(w.buf[0:4], Magic)
	w.buf[4] = Version
	w.buf[5], w.buf[6], w.buf[7] = 0, 0, 0
	binary.LittleEndian.PutUint32(w.buf[8:12], uint32(root))
	return w.buf
}

// Encode записывает BCF-представление дерева в w
func Encode(w io.Writer, c *cube.Cube) error {
	_, err := w.Write(Serialize(c))
	return err
}

type writer struct {
	buf  []byte
	memo map[*cube.Cube]int
}

func (w *writer) writeNode(c *cube.Cube) int {
	if off, ok := w.memo[c]; ok {
		return off
	}

	var off int
	if v, ok := c.Value(); ok {
		off = w.writeLeaf(v)
	} else {
		children := c.Children()
		if allSolid(children) {
			off = w.writeOctaLeaves(children)
		} else {
			off = w.writeOctaPointers(children)
		}
	}
	w.memo[c] = off
	return off
}

func (w *writer) writeLeaf(v uint8) int {
	off := len(w.buf)
	if v <= valueMask {
		w.buf = append(w.buf, v)
	} else {
		w.buf = append(w.buf, extendedLeafBase, v)
	}
	return off
}

func (w *writer) writeOctaLeaves(children []*cube.Cube) int {
	off := len(w.buf)
	w.buf = append(w.buf, octaLeavesBase)
	for _, ch := range children {
		w.buf = append(w.buf, ch.ID())
	}
	return off
}

func (w *writer) writeOctaPointers(children []*cube.Cube) int {
	var offsets [8]int
	maxOffset := 0
	for i, ch := range children {
		offsets[i] = w.writeNode(ch)
		if offsets[i] > maxOffset {
			maxOffset = offsets[i]
		}
	}

	ssss := pointerSizeBits(maxOffset)
	off := len(w.buf)
	w.buf = append(w.buf, octaPointersBase|ssss)
	for _, p := range offsets {
		switch ssss {
		case 0:
			w.buf = append(w.buf, uint8(p))
		case 1:
			w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(p))
		case 2:
			w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(p))
		default:
			w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(p))
		}
	}
	return off
}

// pointerSizeBits выбирает минимальное поле SSSS для смещения
func pointerSizeBits(maxOffset int) uint8 {
	switch {
	case maxOffset <= 0xFF:
		return 0
	case maxOffset <= 0xFFFF:
		return 1
	case uint64(maxOffset) <= 0xFFFFFFFF:
		return 2
	default:
		return 3
	}
}

func allSolid(children []*cube.Cube) bool {
	for _, ch := range children {
		if !ch.IsSolid() {
			return false
		}
	}
	return true
}
