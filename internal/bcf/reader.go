// Package bcf реализует бинарный формат BCF для сериализации дерева кубов.
//
// Формат рассчитан на прямой перенос в шейдерную арифметику: каждая операция
// чтения - это побайтовое чтение или разбор битовых полей без выделения памяти.
//
//	Заголовок (12 байт, little-endian):
//	  u32 magic  ('BCF1')
//	  u8  version
//	  u8[3] reserved
//	  u32 root_offset
//
//	Узел, первый байт - байт типа:
//	  0x00-0x7F  встроенный лист, значение = byte & 0x7F
//	  0x80-0x8F  расширенный лист: [type][u8 value]
//	  0x90-0x9F  восемь листьев: [type][u8 x8]
//	  0xA0-0xAF  восемь указателей: [type][ptr x8], ширина 2^(type & 0x0F) байт
package bcf

const (
	// Magic - 'BCF1' как u32 little-endian
	Magic uint32 = 0x42434631
	// Version - текущая версия формата
	Version uint8 = 0x01
	// HeaderSize - размер заголовка в байтах
	HeaderSize = 12
	// MaxRecursionDepth - предельная глубина разбора
	MaxRecursionDepth = 64
	// MaxExpandedNodes - предел числа узлов дерева, если каждое общее
	// поддерево считать столько раз, сколько на него ссылаются
	MaxExpandedNodes = 1 << 24

	msbMask   = 0x80
	sizeMask  = 0x0F
	valueMask = 0x7F

	typeExtendedLeaf = 0
	typeOctaLeaves   = 1
	typeOctaPointers = 2

	extendedLeafBase = 0x80
	octaLeavesBase   = 0x90
	octaPointersBase = 0xA0
)

// Header - разобранный заголовок BCF
type Header struct {
	Magic      uint32
	Version    uint8
	RootOffset int
}

// NodeKind определяет тип узла BCF
type NodeKind uint8

const (
	NodeInlineLeaf NodeKind = iota
	NodeExtendedLeaf
	NodeOctaLeaves
	NodeOctaPointers
)

// String возвращает имя типа узла
func (k NodeKind) String() string {
	switch k {
	case NodeInlineLeaf:
		return "InlineLeaf"
	case NodeExtendedLeaf:
		return "ExtendedLeaf"
	case NodeOctaLeaves:
		return "OctaLeaves"
	case NodeOctaPointers:
		return "OctaPointers"
	default:
		return "Unknown"
	}
}

// NodeType - декодированный узел. Возвращается по значению, без выделений памяти.
type NodeType struct {
	Kind NodeKind
	// Value - значение листа (InlineLeaf, ExtendedLeaf)
	Value uint8
	// Values - значения октантов (OctaLeaves)
	Values [8]uint8
	// SSSS и Pointers - ширина и абсолютные смещения потомков (OctaPointers)
	SSSS     uint8
	Pointers [8]int
}

// Reader читает BCF из среза байт с проверкой границ на каждом чтении
type Reader struct {
	data []byte
}

// NewReader создает читатель поверх data (данные не копируются)
func NewReader(data []byte) Reader {
	return Reader{data: data}
}

// Len возвращает размер буфера
func (r Reader) Len() int {
	return len(r.data)
}

// Data возвращает исходный буфер
func (r Reader) Data() []byte {
	return r.data
}

// ReadU8 читает байт по смещению
func (r Reader) ReadU8(offset int) (uint8, error) {
	if offset < 0 || offset >= len(r.data) {
		return 0, &InvalidOffsetError{Offset: offset, FileSize: len(r.data)}
	}
	return r.data[offset], nil
}

func (r Reader) need(offset, n int) error {
	if offset < 0 {
		return &InvalidOffsetError{Offset: offset, FileSize: len(r.data)}
	}
	if offset+n > len(r.data) {
		return &TruncatedDataError{ExpectedBytes: offset + n, AvailableBytes: len(r.data)}
	}
	return nil
}

// ReadU16LE читает u16 little-endian
func (r Reader) ReadU16LE(offset int) (uint16, error) {
	if err := r.need(offset, 2); err != nil {
		return 0, err
	}
	return uint16(r.data[offset]) | uint16(r.data[offset+1])<<8, nil
}

// ReadU32LE читает u32 little-endian
func (r Reader) ReadU32LE(offset int) (uint32, error) {
	if err := r.need(offset, 4); err != nil {
		return 0, err
	}
	b := r.data[offset : offset+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// ReadU64LE читает u64 little-endian
func (r Reader) ReadU64LE(offset int) (uint64, error) {
	if err := r.need(offset, 8); err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(r.data[offset+i])
	}
	return v, nil
}

// ReadPointer читает указатель шириной 2^ssss байт
func (r Reader) ReadPointer(offset int, ssss uint8) (int, error) {
	switch ssss {
	case 0:
		v, err := r.ReadU8(offset)
		return int(v), err
	case 1:
		v, err := r.ReadU16LE(offset)
		return int(v), err
	case 2:
		v, err := r.ReadU32LE(offset)
		return int(v), err
	case 3:
		v, err := r.ReadU64LE(offset)
		if err != nil {
			return 0, err
		}
		if v >= uint64(len(r.data)) {
			return 0, &InvalidOffsetError{Offset: int(v & 0x7FFFFFFFFFFFFFFF), FileSize: len(r.data)}
		}
		return int(v), nil
	default:
		return 0, &InvalidPointerSizeError{SSSS: ssss}
	}
}

// DecodeTypeByte раскладывает байт типа на (isExtended, typeID, sizeBits)
func DecodeTypeByte(b uint8) (isExtended bool, typeID uint8, sizeBits uint8) {
	return b&msbMask != 0, (b >> 4) & 0x07, b & sizeMask
}

// ReadHeader читает и проверяет заголовок
func (r Reader) ReadHeader() (Header, error) {
	if len(r.data) < HeaderSize {
		return Header{}, &TruncatedDataError{ExpectedBytes: HeaderSize, AvailableBytes: len(r.data)}
	}
	magic, err := r.ReadU32LE(0)
	if err != nil {
		return Header{}, err
	}
	if magic != Magic {
		return Header{}, &InvalidMagicError{Expected: Magic, Found: magic}
	}
	version, err := r.ReadU8(4)
	if err != nil {
		return Header{}, err
	}
	if version != Version {
		return Header{}, &UnsupportedVersionError{Found: version}
	}
	root, err := r.ReadU32LE(8)
	if err != nil {
		return Header{}, err
	}
	if int(root) >= len(r.data) {
		return Header{}, &InvalidOffsetError{Offset: int(root), FileSize: len(r.data)}
	}
	return Header{Magic: magic, Version: version, RootOffset: int(root)}, nil
}

// ReadNodeAt декодирует узел по смещению
func (r Reader) ReadNodeAt(offset int) (NodeType, error) {
	b, err := r.ReadU8(offset)
	if err != nil {
		return NodeType{}, err
	}
	isExtended, typeID, sizeBits := DecodeTypeByte(b)
	if !isExtended {
		return NodeType{Kind: NodeInlineLeaf, Value: b & valueMask}, nil
	}

	switch typeID {
	case typeExtendedLeaf:
		v, err := r.ReadU8(offset + 1)
		if err != nil {
			return NodeType{}, err
		}
		return NodeType{Kind: NodeExtendedLeaf, Value: v}, nil

	case typeOctaLeaves:
		if err := r.need(offset+1, 8); err != nil {
			return NodeType{}, err
		}
		node := NodeType{Kind: NodeOctaLeaves}
		copy(node.Values[:], r.data[offset+1:offset+9])
		return node, nil

	case typeOctaPointers:
		if sizeBits > 3 {
			return NodeType{}, &InvalidPointerSizeError{SSSS: sizeBits}
		}
		width := 1 << sizeBits
		node := NodeType{Kind: NodeOctaPointers, SSSS: sizeBits}
		for i := range node.Pointers {
			p, err := r.ReadPointer(offset+1+i*width, sizeBits)
			if err != nil {
				return NodeType{}, err
			}
			node.Pointers[i] = p
		}
		return node, nil

	default:
		return NodeType{}, &InvalidTypeIDError{TypeID: typeID}
	}
}
