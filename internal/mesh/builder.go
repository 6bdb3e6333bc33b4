package mesh

import "math"

// MeshBuilder принимает грани от обхода. Реализации могут копить буферы
// в памяти или сразу передавать данные дальше.
type MeshBuilder interface {
	AddFace(vertices [4][3]float32, normal [3]float32, color [3]float32)
	AddTexturedFace(vertices [4][3]float32, normal [3]float32, color [3]float32, uvs [4][2]float32, materialID uint8)
}

// DefaultMeshBuilder копит вершинные и индексные буферы
type DefaultMeshBuilder struct {
	Vertices    []float32 `json:"vertices"`
	Indices     []uint32  `json:"indices"`
	Normals     []float32 `json:"normals"`
	Colors      []float32 `json:"colors"`
	UVs         []float32 `json:"uvs"`
	MaterialIDs []uint8   `json:"material_ids"`

	vertexCount uint32
}

// NewDefaultMeshBuilder создает пустой построитель
func NewDefaultMeshBuilder() *DefaultMeshBuilder {
	return &DefaultMeshBuilder{}
}

// AddFace добавляет грань без текстуры (материал 0, UV нулевые)
func (b *DefaultMeshBuilder) AddFace(vertices [4][3]float32, normal [3]float32, color [3]float32) {
	b.AddTexturedFace(vertices, normal, color, [4][2]float32{}, 0)
}

// AddTexturedFace добавляет грань с текстурными координатами
func (b *DefaultMeshBuilder) AddTexturedFace(vertices [4][3]float32, normal [3]float32, color [3]float32, uvs [4][2]float32, materialID uint8) {
	base := b.vertexCount
	for i, v := range vertices {
		b.Vertices = append(b.Vertices, v[:]...)
		b.Normals = append(b.Normals, normal[:]...)
		b.Colors = append(b.Colors, color[:]...)
		b.UVs = append(b.UVs, uvs[i][:]...)
		b.MaterialIDs = append(b.MaterialIDs, materialID)
	}
	b.Indices = append(b.Indices, base, base+1, base+2, base, base+2, base+3)
	b.vertexCount += 4
}

// VertexCount возвращает число вершин
func (b *DefaultMeshBuilder) VertexCount() int {
	return int(b.vertexCount)
}

// FaceCount возвращает число граней
func (b *DefaultMeshBuilder) FaceCount() int {
	return len(b.Indices) / 6
}

// ColorMapper переводит индекс материала в цвет RGB
type ColorMapper interface {
	Map(index uint8) [3]float32
}

// MaterialColorMapper - функция как ColorMapper
type MaterialColorMapper func(index uint8) [3]float32

// Map вызывает функцию
func (f MaterialColorMapper) Map(index uint8) [3]float32 {
	return f(index)
}

// HSVColorMapper раскрашивает материалы по кругу оттенков
type HSVColorMapper struct {
	Saturation float32
	Value      float32
}

// NewHSVColorMapper создает раскраску с насыщенностью 0.8 и яркостью 0.9
func NewHSVColorMapper() HSVColorMapper {
	return HSVColorMapper{Saturation: 0.8, Value: 0.9}
}

// Map возвращает черный для 0, иначе оттенок index градусов
func (m HSVColorMapper) Map(index uint8) [3]float32 {
	if index == 0 {
		return [3]float32{}
	}
	return hsvToRGB(float64(int(index)%360), float64(m.Saturation), float64(m.Value))
}

// PaletteColorMapper берет цвета из палитры, материал 1 - первый цвет
type PaletteColorMapper struct {
	Colors [][3]float32
}

// NewPaletteColorMapper создает раскраску по палитре
func NewPaletteColorMapper(colors [][3]float32) PaletteColorMapper {
	return PaletteColorMapper{Colors: colors}
}

// Map возвращает пурпурный для пустой палитры и черный для материала 0
func (m PaletteColorMapper) Map(index uint8) [3]float32 {
	if len(m.Colors) == 0 {
		return [3]float32{1, 0, 1}
	}
	if index == 0 {
		return [3]float32{}
	}
	return m.Colors[int(index-1)%len(m.Colors)]
}

func hsvToRGB(h, s, v float64) [3]float32 {
	h = math.Mod(h, 360)
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return [3]float32{float32(r + m), float32(g + m), float32(b + m)}
}
