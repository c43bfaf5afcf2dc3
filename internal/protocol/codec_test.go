package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)
	defer codec.Close()

	var buf bytes.Buffer
	req := AuthRequest{Username: "alice", Password: "secret"}
	require.NoError(t, codec.WriteMessage(&buf, MsgAuth, req))

	frame, err := codec.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgAuth, frame.Type)

	var got AuthRequest
	require.NoError(t, frame.Decode(&got))
	assert.Equal(t, req, got)
}

func TestCodec_LargePayloadCompressed(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)
	defer codec.Close()

	// Хорошо сжимаемое тело заметно больше порога
	payload := []byte(strings.Repeat("arena-snapshot-", 1000))

	var buf bytes.Buffer
	require.NoError(t, codec.WriteFrame(&buf, MsgSnapshot, payload))

	assert.Less(t, buf.Len(), len(payload), "крупное тело должно уйти по сети сжатым")

	frame, err := codec.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, frame.Payload)
}

func TestCodec_SmallPayloadNotCompressed(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)
	defer codec.Close()

	payload := []byte(`{"dx":1,"dy":0}`)

	var buf bytes.Buffer
	require.NoError(t, codec.WriteFrame(&buf, MsgMove, payload))

	assert.Equal(t, headerSize+len(payload), buf.Len())

	frame, err := codec.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, frame.Payload)
}

func TestCodec_OversizedFrameRejected(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)
	defer codec.Close()

	// Заголовок объявляет тело больше лимита
	header := make([]byte, headerSize)
	header[0] = 0xFF
	header[1] = 0xFF
	header[2] = 0xFF
	header[3] = 0xFF

	_, err = codec.ReadFrame(bytes.NewReader(header))
	assert.Error(t, err)
}

func TestCodec_TruncatedFrame(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)
	defer codec.Close()

	var buf bytes.Buffer
	require.NoError(t, codec.WriteMessage(&buf, MsgPing, PingMessage{ClientTime: 123}))

	truncated := buf.Bytes()[:buf.Len()-2]
	_, err = codec.ReadFrame(bytes.NewReader(truncated))
	assert.Error(t, err)
}

func TestMessageType_String(t *testing.T) {
	assert.Equal(t, "auth", MsgAuth.String())
	assert.Equal(t, "snapshot", MsgSnapshot.String())
	assert.Equal(t, "unknown", MessageType(999).String())
}
