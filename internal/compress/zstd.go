// Package compress оборачивает BCF-буферы в кадры zstd перед записью
// в хранилище и кэш.
package compress

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic первые байты кадра zstd
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// MaxDecodedBytes - предел размера распакованного кадра по умолчанию
const MaxDecodedBytes = 256 << 20

// ErrTooLarge - кадр распаковывается в буфер больше предела кодека
var ErrTooLarge = errors.New("распакованные данные превышают допустимый размер")

// Codec сжимает и распаковывает буферы. Безопасен для параллельного
// использования: EncodeAll и DecodeAll у zstd допускают конкурентные вызовы.
type Codec struct {
	enabled      bool
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder
}

// NewCodec создает кодек с уровнем сжатия zstd (1..22, 0 - по умолчанию).
// При enabled == false Encode возвращает данные без изменений.
// Распакованный кадр ограничен MaxDecodedBytes.
func NewCodec(enabled bool, level int) (*Codec, error) {
	return NewCodecWithLimit(enabled, level, MaxDecodedBytes)
}

// NewCodecWithLimit создает кодек с пределом maxDecoded байт на распакованный кадр
func NewCodecWithLimit(enabled bool, level int, maxDecoded uint64) (*Codec, error) {
	encLevel := zstd.SpeedDefault
	if level > 0 {
		encLevel = zstd.EncoderLevelFromZstd(level)
	}

	compressor, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("не удалось создать компрессор: %w", err)
	}
	decompressor, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecoded))
	if err != nil {
		compressor.Close()
		return nil, fmt.Errorf("не удалось создать декомпрессор: %w", err)
	}

	return &Codec{enabled: enabled, compressor: compressor, decompressor: decompressor}, nil
}

// Enabled сообщает, сжимает ли кодек данные
func (c *Codec) Enabled() bool {
	return c.enabled
}

// Encode сжимает data, если сжатие включено
func (c *Codec) Encode(data []byte) []byte {
	if !c.enabled {
		return data
	}
	return c.compressor.EncodeAll(data, make([]byte, 0, len(data)/2))
}

// Decode распаковывает кадр zstd. Данные без заголовка zstd
// возвращаются как есть, так что читаются и старые несжатые снимки.
func (c *Codec) Decode(data []byte) ([]byte, error) {
	if !IsCompressed(data) {
		return data, nil
	}
	out, err := c.decompressor.DecodeAll(data, nil)
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) || errors.Is(err, zstd.ErrWindowSizeExceeded) {
		return nil, fmt.Errorf("%w: %v", ErrTooLarge, err)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки zstd: %w", err)
	}
	return out, nil
}

// Close освобождает ресурсы кодека
func (c *Codec) Close() {
	c.compressor.Close()
	c.decompressor.Close()
}

// IsCompressed проверяет наличие заголовка кадра zstd
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}
