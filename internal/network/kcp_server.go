package network

import (
	"errors"
	"net"

	"github.com/xtaci/kcp-go/v5"
)

// KCPServer принимает KCP (надёжный UDP) соединения. KCP даёт меньшую
// задержку на потерях пакетов, чем TCP, поэтому это основной транспорт
// игровых клиентов; TCP остаётся как fallback за строгими NAT.
type KCPServer struct {
	listener *kcp.Listener
	game     *GameServer
}

// NewKCPServer создаёт KCP сервер на указанном адресе
func NewKCPServer(address string, game *GameServer) (*KCPServer, error) {
	listener, err := kcp.ListenWithOptions(address, nil, 0, 0)
	if err != nil {
		return nil, err
	}

	return &KCPServer{listener: listener, game: game}, nil
}

// Start запускает цикл приёма соединений
func (s *KCPServer) Start() {
	go s.acceptLoop()
	s.game.logger.Info("🌐 KCP сервер слушает %s", s.listener.Addr())
}

// Stop останавливает приём новых соединений
func (s *KCPServer) Stop() {
	s.listener.Close()
}

// Addr возвращает фактический адрес слушателя
func (s *KCPServer) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *KCPServer) acceptLoop() {
	for {
		conn, err := s.listener.AcceptKCP()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.game.logger.Warn("ошибка принятия KCP соединения: %v", err)
			continue
		}

		// Режим с минимальной задержкой: быстрый ресенд, без отложенного ACK
		conn.SetNoDelay(1, 10, 2, 1)
		conn.SetStreamMode(true)
		conn.SetWindowSize(256, 256)

		go s.game.handleConn(conn, "kcp")
	}
}
