package network

import (
	"bytes"
	"context"
	"net"
	"sync"
	"time"

	"github.com/annel0/arena-server/internal/logging"
	"github.com/annel0/arena-server/internal/protocol"
)

// Размер исходящей очереди кадров на соединение. Когда очередь полна,
// новые кадры отбрасываются: медленный клиент теряет снапшоты, но не
// тормозит ни симуляцию, ни остальных клиентов.
const sessionSendQueue = 64

// clientSession — одно клиентское соединение поверх TCP или KCP.
// Чтение и кодирование ответов происходят в горутине readLoop, запись —
// в writePump; между ними только канал готовых кадров.
type clientSession struct {
	id        uint64
	conn      net.Conn
	transport string
	codec     *protocol.Codec
	logger    *logging.Logger

	playerID   uint64
	authorized bool
	lastPing   time.Time

	send chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

func newClientSession(id uint64, conn net.Conn, transport string, codec *protocol.Codec, logger *logging.Logger) *clientSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &clientSession{
		id:        id,
		conn:      conn,
		transport: transport,
		codec:     codec,
		logger:    logger,
		lastPing:  time.Now(),
		send:      make(chan []byte, sessionSendQueue),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// sendMessage кодирует сообщение и ставит кадр в исходящую очередь.
// Вызывается только из readLoop сессии: кодек не потокобезопасен.
func (s *clientSession) sendMessage(msgType protocol.MessageType, v interface{}) error {
	var buf bytes.Buffer
	if err := s.codec.WriteMessage(&buf, msgType, v); err != nil {
		return err
	}
	s.enqueueFrame(buf.Bytes())
	return nil
}

// enqueueFrame ставит готовый кадр в очередь, отбрасывая его при
// переполнении
func (s *clientSession) enqueueFrame(frame []byte) {
	select {
	case s.send <- frame:
	default:
		metricFramesDropped.Inc()
	}
}

// writePump пишет кадры из очереди в соединение
func (s *clientSession) writePump() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if _, err := s.conn.Write(frame); err != nil {
				s.logger.Debug("сессия %d: ошибка записи: %v", s.id, err)
				s.close()
				return
			}
			metricFramesSent.Inc()
		}
	}
}

func (s *clientSession) close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.conn.Close()
		s.codec.Close()
	})
}
