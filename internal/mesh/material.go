package mesh

// Material - именованный материал палитры: индекс, идентификатор и цвет
type Material struct {
	Index uint8
	ID    string
	Color [3]float32
}

// Индексы распространенных материалов
const (
	MaterialEmpty      uint8 = 0
	MaterialGlass      uint8 = 2
	MaterialHardGround uint8 = 16
	MaterialWater      uint8 = 17
	MaterialDirt       uint8 = 18
	MaterialGrass      uint8 = 19
	MaterialStone      uint8 = 20
	MaterialSand       uint8 = 22
	MaterialSnow       uint8 = 26
	MaterialCoal       uint8 = 48
	MaterialIron       uint8 = 49
)

// Materials - реестр материалов 0..127. Значения 128..255 кодируют цвет
// напрямую в формате R2G3B2.
var Materials = [128]Material{
	{0, "empty", [3]float32{0.000, 0.000, 0.000}},
	{1, "set_empty", [3]float32{0.000, 0.000, 0.000}},
	{2, "glass", [3]float32{1.000, 1.000, 1.000}},
	{3, "ice", [3]float32{0.816, 1.000, 1.000}},
	{4, "water_surface", [3]float32{0.000, 0.498, 1.000}},
	{5, "slime", [3]float32{0.000, 1.000, 0.000}},
	{6, "honey", [3]float32{1.000, 0.647, 0.000}},
	{7, "crystal", [3]float32{1.000, 0.000, 1.000}},
	{8, "force_field", [3]float32{0.000, 1.000, 1.000}},
	{9, "portal", [3]float32{0.667, 0.000, 1.000}},
	{10, "mist", [3]float32{0.800, 0.800, 0.800}},
	{11, "stained_glass_red", [3]float32{1.000, 0.000, 0.000}},
	{12, "stained_glass_green", [3]float32{0.000, 1.000, 0.000}},
	{13, "stained_glass_blue", [3]float32{0.000, 0.000, 1.000}},
	{14, "stained_glass_yellow", [3]float32{1.000, 1.000, 0.000}},
	{15, "transparent_15", [3]float32{0.502, 0.502, 0.502}},
	{16, "hard_ground", [3]float32{0.400, 0.267, 0.200}},
	{17, "water", [3]float32{0.000, 0.314, 0.624}},
	{18, "dirt", [3]float32{0.545, 0.271, 0.075}},
	{19, "grass", [3]float32{0.227, 0.490, 0.227}},
	{20, "stone", [3]float32{0.502, 0.502, 0.502}},
	{21, "cobblestone", [3]float32{0.431, 0.431, 0.431}},
	{22, "sand", [3]float32{0.929, 0.788, 0.686}},
	{23, "sandstone", [3]float32{0.788, 0.655, 0.439}},
	{24, "gravel", [3]float32{0.533, 0.533, 0.533}},
	{25, "clay", [3]float32{0.627, 0.627, 0.627}},
	{26, "snow", [3]float32{1.000, 1.000, 1.000}},
	{27, "ice_solid", [3]float32{0.690, 0.878, 1.000}},
	{28, "obsidian", [3]float32{0.102, 0.059, 0.180}},
	{29, "netherrack", [3]float32{0.545, 0.000, 0.000}},
	{30, "granite", [3]float32{0.612, 0.365, 0.239}},
	{31, "diorite", [3]float32{0.749, 0.749, 0.749}},
	{32, "andesite", [3]float32{0.427, 0.427, 0.427}},
	{33, "marble", [3]float32{0.910, 0.910, 0.910}},
	{34, "limestone", [3]float32{0.855, 0.816, 0.753}},
	{35, "basalt", [3]float32{0.169, 0.169, 0.169}},
	{36, "wood_oak", [3]float32{0.627, 0.510, 0.427}},
	{37, "wood_spruce", [3]float32{0.420, 0.333, 0.208}},
	{38, "wood_birch", [3]float32{0.843, 0.796, 0.553}},
	{39, "wood_jungle", [3]float32{0.545, 0.435, 0.278}},
	{40, "wood_acacia", [3]float32{0.722, 0.408, 0.243}},
	{41, "wood_dark_oak", [3]float32{0.290, 0.220, 0.161}},
	{42, "planks_oak", [3]float32{0.769, 0.651, 0.447}},
	{43, "planks_spruce", [3]float32{0.486, 0.365, 0.243}},
	{44, "planks_birch", [3]float32{0.890, 0.851, 0.659}},
	{45, "leaves", [3]float32{0.176, 0.314, 0.086}},
	{46, "leaves_birch", [3]float32{0.365, 0.561, 0.227}},
	{47, "leaves_spruce", [3]float32{0.239, 0.376, 0.188}},
	{48, "coal", [3]float32{0.102, 0.102, 0.102}},
	{49, "iron", [3]float32{0.847, 0.847, 0.847}},
	{50, "gold", [3]float32{1.000, 0.843, 0.000}},
	{51, "copper", [3]float32{0.722, 0.451, 0.200}},
	{52, "silver", [3]float32{0.753, 0.753, 0.753}},
	{53, "bronze", [3]float32{0.804, 0.498, 0.196}},
	{54, "steel", [3]float32{0.565, 0.565, 0.627}},
	{55, "titanium", [3]float32{0.529, 0.525, 0.506}},
	{56, "brick", [3]float32{0.545, 0.227, 0.227}},
	{57, "concrete", [3]float32{0.620, 0.620, 0.620}},
	{58, "concrete_white", [3]float32{0.933, 0.933, 0.933}},
	{59, "concrete_black", [3]float32{0.118, 0.118, 0.118}},
	{60, "asphalt", [3]float32{0.200, 0.200, 0.200}},
	{61, "rubber", [3]float32{0.169, 0.169, 0.169}},
	{62, "plastic", [3]float32{0.667, 0.667, 0.667}},
	{63, "ceramic", [3]float32{0.878, 0.816, 0.753}},
	{64, "skin_light", [3]float32{1.000, 0.835, 0.706}},
	{65, "skin_medium", [3]float32{0.875, 0.690, 0.549}},
	{66, "skin_tan", [3]float32{0.788, 0.510, 0.314}},
	{67, "skin_brown", [3]float32{0.545, 0.353, 0.235}},
	{68, "skin_dark", [3]float32{0.365, 0.227, 0.102}},
	{69, "leather_brown", [3]float32{0.435, 0.306, 0.216}},
	{70, "leather_black", [3]float32{0.180, 0.149, 0.125}},
	{71, "leather_tan", [3]float32{0.749, 0.627, 0.533}},
	{72, "fabric_white", [3]float32{0.941, 0.941, 0.941}},
	{73, "fabric_red", [3]float32{0.863, 0.078, 0.235}},
	{74, "fabric_blue", [3]float32{0.118, 0.565, 1.000}},
	{75, "fabric_green", [3]float32{0.133, 0.545, 0.133}},
	{76, "fabric_yellow", [3]float32{1.000, 0.843, 0.000}},
	{77, "fabric_purple", [3]float32{0.545, 0.000, 0.545}},
	{78, "fabric_orange", [3]float32{1.000, 0.549, 0.000}},
	{79, "fabric_pink", [3]float32{1.000, 0.412, 0.706}},
	{80, "fabric_black", [3]float32{0.110, 0.110, 0.110}},
	{81, "wool_white", [3]float32{0.878, 0.878, 0.878}},
	{82, "wool_gray", [3]float32{0.502, 0.502, 0.502}},
	{83, "wool_red", [3]float32{0.702, 0.192, 0.173}},
	{84, "wool_blue", [3]float32{0.235, 0.267, 0.667}},
	{85, "sponge", [3]float32{0.800, 0.800, 0.333}},
	{86, "moss", [3]float32{0.349, 0.490, 0.208}},
	{87, "mushroom_red", [3]float32{1.000, 0.000, 0.000}},
	{88, "mushroom_brown", [3]float32{0.608, 0.463, 0.325}},
	{89, "coral", [3]float32{1.000, 0.498, 0.314}},
	{90, "bamboo", [3]float32{0.561, 0.737, 0.561}},
	{91, "cactus", [3]float32{0.345, 0.490, 0.243}},
	{92, "vine", [3]float32{0.243, 0.424, 0.145}},
	{93, "pumpkin", [3]float32{1.000, 0.502, 0.000}},
	{94, "melon", [3]float32{0.439, 0.702, 0.255}},
	{95, "hay", [3]float32{0.831, 0.686, 0.216}},
	{96, "bone", [3]float32{0.929, 0.902, 0.839}},
	{97, "flesh", [3]float32{1.000, 0.502, 0.502}},
	{98, "slime_green", [3]float32{0.000, 1.000, 0.000}},
	{99, "magma", [3]float32{1.000, 0.271, 0.000}},
	{100, "lava_rock", [3]float32{0.545, 0.000, 0.000}},
	{101, "ash", [3]float32{0.376, 0.314, 0.314}},
	{102, "charcoal", [3]float32{0.184, 0.184, 0.184}},
	{103, "sulfur", [3]float32{1.000, 1.000, 0.000}},
	{104, "salt", [3]float32{0.941, 0.941, 0.941}},
	{105, "sugar", [3]float32{1.000, 1.000, 1.000}},
	{106, "paper", [3]float32{0.980, 0.941, 0.902}},
	{107, "cardboard", [3]float32{0.667, 0.533, 0.400}},
	{108, "wax", [3]float32{1.000, 0.953, 0.816}},
	{109, "tar", [3]float32{0.059, 0.059, 0.059}},
	{110, "oil", [3]float32{0.235, 0.188, 0.125}},
	{111, "paint_red", [3]float32{1.000, 0.000, 0.000}},
	{112, "paint_green", [3]float32{0.000, 1.000, 0.000}},
	{113, "paint_blue", [3]float32{0.000, 0.000, 1.000}},
	{114, "paint_white", [3]float32{1.000, 1.000, 1.000}},
	{115, "paint_black", [3]float32{0.000, 0.000, 0.000}},
	{116, "glowstone", [3]float32{1.000, 1.000, 0.627}},
	{117, "redstone", [3]float32{1.000, 0.000, 0.000}},
	{118, "emerald", [3]float32{0.314, 0.784, 0.471}},
	{119, "diamond", [3]float32{0.725, 0.949, 1.000}},
	{120, "ruby", [3]float32{0.878, 0.067, 0.373}},
	{121, "sapphire", [3]float32{0.059, 0.322, 0.729}},
	{122, "amethyst", [3]float32{0.600, 0.400, 0.800}},
	{123, "topaz", [3]float32{1.000, 0.784, 0.486}},
	{124, "pearl", [3]float32{1.000, 0.937, 0.835}},
	{125, "quartz", [3]float32{1.000, 1.000, 1.000}},
	{126, "amber", [3]float32{1.000, 0.749, 0.000}},
	{127, "reserved_127", [3]float32{0.533, 0.533, 0.533}},
}

// уровни каналов R2G3B2
var (
	levels2 = [4]float32{0, 0.286, 0.573, 0.859}
	levels3 = [8]float32{0, 0.141, 0.286, 0.427, 0.573, 0.714, 0.859, 1}
)

// LookupMaterial ищет материал реестра по идентификатору
func LookupMaterial(id string) (Material, bool) {
	for _, m := range Materials {
		if m.ID == id {
			return m, true
		}
	}
	return Material{}, false
}

// MaterialColor возвращает цвет значения вокселя: 0..127 из реестра,
// 128..255 - цвет R2G3B2, где bits = value-128 = r<<5 | g<<2 | b
func MaterialColor(value uint8) [3]float32 {
	if value < 128 {
		return Materials[value].Color
	}
	bits := value - 128
	return [3]float32{levels2[(bits>>5)&3], levels3[(bits>>2)&7], levels2[bits&3]}
}

// RegistryColorMapper раскрашивает грани по реестру материалов
type RegistryColorMapper struct{}

// Map возвращает MaterialColor(index)
func (RegistryColorMapper) Map(index uint8) [3]float32 {
	return MaterialColor(index)
}
