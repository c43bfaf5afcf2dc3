package network

import (
	"bytes"

	"github.com/annel0/arena-server/internal/arena"
	"github.com/annel0/arena-server/internal/protocol"
)

// SnapshotBroadcaster реализует arena.Broadcaster поверх сессий сервера.
// Снапшот кодируется и сжимается один раз, сессии получают готовые
// байты кадра. Вызывается из горутины тик-драйвера, поэтому обязан не
// блокироваться: переполненные очереди теряют кадр.
type SnapshotBroadcaster struct {
	server *GameServer
	codec  *protocol.Codec
}

// NewSnapshotBroadcaster создаёт рассыльщик с собственным кодеком
func NewSnapshotBroadcaster(server *GameServer) (*SnapshotBroadcaster, error) {
	codec, err := protocol.NewCodec()
	if err != nil {
		return nil, err
	}
	return &SnapshotBroadcaster{server: server, codec: codec}, nil
}

// BroadcastSnapshot рассылает снапшот всем авторизованным сессиям
func (b *SnapshotBroadcaster) BroadcastSnapshot(snap *arena.Snapshot) {
	var buf bytes.Buffer
	if err := b.codec.WriteMessage(&buf, protocol.MsgSnapshot, snap); err != nil {
		b.server.logger.Error("не удалось закодировать снапшот: %v", err)
		return
	}
	frame := buf.Bytes()

	b.server.mu.RLock()
	for _, s := range b.server.sessions {
		if s.authorized {
			s.enqueueFrame(frame)
		}
	}
	b.server.mu.RUnlock()
}

// Close освобождает кодек
func (b *SnapshotBroadcaster) Close() {
	b.codec.Close()
}
