package bcf

import "fmt"

// InvalidMagicError - магическое число заголовка не совпадает с 'BCF1'
type InvalidMagicError struct {
	Expected uint32
	Found    uint32
}

func (e *InvalidMagicError) Error() string {
	return fmt.Sprintf("bcf: неверное магическое число: ожидалось 0x%08X, найдено 0x%08X", e.Expected, e.Found)
}

// UnsupportedVersionError - версия формата не поддерживается
type UnsupportedVersionError struct {
	Found uint8
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("bcf: неподдерживаемая версия: 0x%02X", e.Found)
}

// TruncatedDataError - данные обрываются раньше, чем требуется
type TruncatedDataError struct {
	ExpectedBytes  int
	AvailableBytes int
}

func (e *TruncatedDataError) Error() string {
	return fmt.Sprintf("bcf: данные обрезаны: требуется %d байт, доступно %d", e.ExpectedBytes, e.AvailableBytes)
}

// InvalidOffsetError - смещение указывает за пределы буфера
type InvalidOffsetError struct {
	Offset   int
	FileSize int
}

func (e *InvalidOffsetError) Error() string {
	return fmt.Sprintf("bcf: смещение %d вне буфера (размер %d)", e.Offset, e.FileSize)
}

// InvalidTypeIDError - зарезервированный тип узла (3-7)
type InvalidTypeIDError struct {
	TypeID uint8
}

func (e *InvalidTypeIDError) Error() string {
	return fmt.Sprintf("bcf: зарезервированный тип узла: %d", e.TypeID)
}

// InvalidPointerSizeError - поле SSSS больше 3
type InvalidPointerSizeError struct {
	SSSS uint8
}

func (e *InvalidPointerSizeError) Error() string {
	return fmt.Sprintf("bcf: недопустимый размер указателя: SSSS=%d (допустимо 0-3)", e.SSSS)
}

// RecursionLimitError - дерево глубже допустимого (защита от циклов и переполнения стека)
type RecursionLimitError struct {
	MaxDepth int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("bcf: превышена глубина рекурсии %d", e.MaxDepth)
}

// NodeLimitError - раскрытое дерево содержит больше узлов, чем допускает разбор
type NodeLimitError struct {
	Limit int
}

func (e *NodeLimitError) Error() string {
	return fmt.Sprintf("bcf: дерево раскрывается более чем в %d узлов", e.Limit)
}
