package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Формат кадра: 4 байта длины тела (big-endian), 2 байта типа,
// 1 байт флагов, затем тело. Длина не включает заголовок.
const (
	headerSize = 7

	// MaxFrameSize ограничивает тело кадра; больший кадр — повреждённый
	// поток или злонамеренный клиент
	MaxFrameSize = 1 << 20

	// flagCompressed помечает тело, сжатое zstd
	flagCompressed = 1 << 0

	// compressThreshold — тела меньше этого размера не сжимаются:
	// накладные расходы zstd съедают выигрыш
	compressThreshold = 512
)

// Frame — один прочитанный кадр
type Frame struct {
	Type    MessageType
	Payload []byte
}

// Codec кодирует и декодирует кадры протокола. Снапшоты мира заметно
// больше остальных сообщений, поэтому крупные тела прозрачно сжимаются.
// Codec не потокобезопасен: по экземпляру на соединение.
type Codec struct {
	compressor   *zstd.Encoder
	decompressor *zstd.Decoder

	headerBuf [headerSize]byte
}

// NewCodec создаёт кодек с настроенным zstd
func NewCodec() (*Codec, error) {
	compressor, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания компрессора: %w", err)
	}
	decompressor, err := zstd.NewReader(nil)
	if err != nil {
		compressor.Close()
		return nil, fmt.Errorf("ошибка создания декомпрессора: %w", err)
	}
	return &Codec{compressor: compressor, decompressor: decompressor}, nil
}

// Close освобождает ресурсы zstd
func (c *Codec) Close() {
	c.compressor.Close()
	c.decompressor.Close()
}

// WriteMessage сериализует v в JSON и пишет кадр в w
func (c *Codec) WriteMessage(w io.Writer, msgType MessageType, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ошибка сериализации %s: %w", msgType, err)
	}
	return c.WriteFrame(w, msgType, payload)
}

// WriteFrame пишет готовое тело, сжимая его при необходимости
func (c *Codec) WriteFrame(w io.Writer, msgType MessageType, payload []byte) error {
	var flags byte
	if len(payload) >= compressThreshold {
		compressed := c.compressor.EncodeAll(payload, nil)
		// Несжимаемые данные оставляем как есть
		if len(compressed) < len(payload) {
			payload = compressed
			flags |= flagCompressed
		}
	}

	if len(payload) > MaxFrameSize {
		return fmt.Errorf("тело кадра %s слишком велико: %d байт", msgType, len(payload))
	}

	binary.BigEndian.PutUint32(c.headerBuf[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint16(c.headerBuf[4:6], uint16(msgType))
	c.headerBuf[6] = flags

	if _, err := w.Write(c.headerBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame читает один кадр из r, распаковывая сжатое тело
func (c *Codec) ReadFrame(r io.Reader) (Frame, error) {
	if _, err := io.ReadFull(r, c.headerBuf[:]); err != nil {
		return Frame{}, err
	}

	length := binary.BigEndian.Uint32(c.headerBuf[0:4])
	msgType := MessageType(binary.BigEndian.Uint16(c.headerBuf[4:6]))
	flags := c.headerBuf[6]

	if length > MaxFrameSize {
		return Frame{}, fmt.Errorf("тело кадра %s слишком велико: %d байт", msgType, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}

	if flags&flagCompressed != 0 {
		decoded, err := c.decompressor.DecodeAll(payload, nil)
		if err != nil {
			return Frame{}, fmt.Errorf("ошибка распаковки кадра %s: %w", msgType, err)
		}
		payload = decoded
	}

	return Frame{Type: msgType, Payload: payload}, nil
}

// Decode разбирает тело кадра в v
func (f Frame) Decode(v interface{}) error {
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("ошибка разбора %s: %w", f.Type, err)
	}
	return nil
}
