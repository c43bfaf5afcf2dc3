package network

import (
	"errors"
	"net"
)

// TCPServer принимает TCP соединения и передаёт их GameServer'у
type TCPServer struct {
	listener net.Listener
	game     *GameServer
}

// NewTCPServer создаёт TCP сервер на указанном адресе
func NewTCPServer(address string, game *GameServer) (*TCPServer, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	return &TCPServer{listener: listener, game: game}, nil
}

// Start запускает цикл приёма соединений
func (s *TCPServer) Start() {
	go s.acceptLoop()
	s.game.logger.Info("🌐 TCP сервер слушает %s", s.listener.Addr())
}

// Stop останавливает приём новых соединений
func (s *TCPServer) Stop() {
	s.listener.Close()
}

// Addr возвращает фактический адрес слушателя
func (s *TCPServer) Addr() net.Addr {
	return s.listener.Addr()
}

// acceptLoop принимает новые соединения
func (s *TCPServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.game.logger.Warn("ошибка принятия TCP соединения: %v", err)
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			tcpConn.SetNoDelay(true)
		}

		go s.game.handleConn(conn, "tcp")
	}
}
