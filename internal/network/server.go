package network

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/annel0/arena-server/internal/arena"
	"github.com/annel0/arena-server/internal/auth"
	"github.com/annel0/arena-server/internal/logging"
	"github.com/annel0/arena-server/internal/protocol"
)

// Таймаут рукопожатия: клиент обязан прислать MsgAuth первым кадром
const handshakeTimeout = 10 * time.Second

// GameServer принимает клиентов поверх TCP и KCP, проводит рукопожатие
// и транслирует сообщения клиента в intent'ы мира. Симуляцию сервер не
// трогает: всё, что он делает с миром — ставит intent'ы в очередь.
type GameServer struct {
	world    *arena.World
	gameAuth *auth.GameAuthenticator
	logger   *logging.Logger

	mu            sync.RWMutex
	sessions      map[uint64]*clientSession
	byPlayer      map[uint64]*clientSession
	nextSessionID uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGameServer создаёт сервер поверх готового мира и аутентификатора
func NewGameServer(world *arena.World, gameAuth *auth.GameAuthenticator) *GameServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &GameServer{
		world:         world,
		gameAuth:      gameAuth,
		logger:        logging.GetNetworkLogger(),
		sessions:      make(map[uint64]*clientSession),
		byPlayer:      make(map[uint64]*clientSession),
		nextSessionID: 1,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Stop закрывает все сессии и ждёт завершения обработчиков
func (gs *GameServer) Stop() {
	gs.cancel()

	gs.mu.Lock()
	for _, s := range gs.sessions {
		s.close()
	}
	gs.mu.Unlock()

	gs.wg.Wait()
}

// handleConn обслуживает одно соединение: рукопожатие, цикл чтения,
// уборка при отключении. Вызывается из accept-циклов транспортов.
func (gs *GameServer) handleConn(conn net.Conn, transport string) {
	codec, err := protocol.NewCodec()
	if err != nil {
		gs.logger.Error("не удалось создать кодек: %v", err)
		conn.Close()
		return
	}

	gs.mu.Lock()
	id := gs.nextSessionID
	gs.nextSessionID++
	gs.mu.Unlock()

	session := newClientSession(id, conn, transport, codec, gs.logger)
	metricActiveConnections.WithLabelValues(transport).Inc()
	defer metricActiveConnections.WithLabelValues(transport).Dec()

	gs.wg.Add(1)
	go func() {
		defer gs.wg.Done()
		session.writePump()
	}()

	defer gs.teardown(session)

	if !gs.handshake(session) {
		return
	}

	gs.readLoop(session)
}

// handshake читает MsgAuth и авторизует сессию. До успешного ответа
// никакие другие сообщения не принимаются.
func (gs *GameServer) handshake(s *clientSession) bool {
	s.conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	frame, err := s.codec.ReadFrame(s.conn)
	if err != nil {
		gs.logger.Debug("сессия %d (%s): рукопожатие прервано: %v", s.id, s.transport, err)
		return false
	}

	if frame.Type != protocol.MsgAuth {
		s.sendMessage(protocol.MsgError, protocol.ErrorMessage{
			Code:    "auth_required",
			Message: "первым сообщением должна быть авторизация",
		})
		metricAuthFailures.Inc()
		return false
	}

	var req protocol.AuthRequest
	if err := frame.Decode(&req); err != nil {
		metricAuthFailures.Inc()
		return false
	}

	resp, err := gs.gameAuth.Authenticate(&req)
	if err != nil {
		gs.logger.Error("сессия %d: ошибка аутентификации: %v", s.id, err)
		metricAuthFailures.Inc()
		return false
	}

	s.sendMessage(protocol.MsgAuthResponse, resp)
	if !resp.Success {
		metricAuthFailures.Inc()
		return false
	}

	name := req.Username
	if name == "" {
		name = fmt.Sprintf("player-%d", resp.PlayerID)
	}

	s.playerID = resp.PlayerID
	s.authorized = true
	gs.register(s)

	if err := gs.world.Join(arena.PlayerID(resp.PlayerID), name); err != nil {
		gs.logger.Warn("сессия %d: мир перегружен, вход отклонён: %v", s.id, err)
		s.sendMessage(protocol.MsgError, protocol.ErrorMessage{Code: "busy", Message: "сервер перегружен"})
		return false
	}

	gs.logger.Info("🔗 игрок %d подключился по %s (сессия %d)", resp.PlayerID, s.transport, s.id)
	return true
}

// register добавляет сессию, вытесняя предыдущее соединение того же игрока
func (gs *GameServer) register(s *clientSession) {
	gs.mu.Lock()
	if old, ok := gs.byPlayer[s.playerID]; ok && old != s {
		gs.logger.Info("игрок %d переподключился, старая сессия %d закрыта", s.playerID, old.id)
		old.authorized = false
		old.close()
		delete(gs.sessions, old.id)
	}
	gs.sessions[s.id] = s
	gs.byPlayer[s.playerID] = s
	gs.mu.Unlock()
}

// teardown убирает сессию и выводит игрока из мира
func (gs *GameServer) teardown(s *clientSession) {
	s.close()

	gs.mu.Lock()
	delete(gs.sessions, s.id)
	if cur, ok := gs.byPlayer[s.playerID]; ok && cur == s {
		delete(gs.byPlayer, s.playerID)
	}
	gs.mu.Unlock()

	if s.authorized {
		if err := gs.world.Leave(arena.PlayerID(s.playerID)); err != nil {
			gs.logger.Warn("не удалось поставить выход игрока %d: %v", s.playerID, err)
		}
		gs.logger.Info("игрок %d отключился (сессия %d)", s.playerID, s.id)
	}
}

// readLoop обрабатывает кадры авторизованной сессии до разрыва
func (gs *GameServer) readLoop(s *clientSession) {
	for {
		select {
		case <-gs.ctx.Done():
			return
		case <-s.ctx.Done():
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		frame, err := s.codec.ReadFrame(s.conn)
		if err != nil {
			if err != io.EOF {
				gs.logger.Debug("сессия %d: чтение прервано: %v", s.id, err)
			}
			return
		}

		metricFramesReceived.WithLabelValues(frame.Type.String()).Inc()
		gs.dispatch(s, frame)
	}
}

// dispatch применяет один кадр клиента
func (gs *GameServer) dispatch(s *clientSession, frame protocol.Frame) {
	switch frame.Type {
	case protocol.MsgPing:
		var ping protocol.PingMessage
		if frame.Decode(&ping) == nil {
			s.lastPing = time.Now()
			s.sendMessage(protocol.MsgPong, ping)
		}

	case protocol.MsgMove:
		var input protocol.MoveInput
		if err := frame.Decode(&input); err != nil || !finite(input.DX) || !finite(input.DY) {
			gs.rejectInput(s, "некорректное направление движения")
			return
		}
		// Компоненты за пределами [-1, 1] обрезаются, а не отклоняются:
		// клиент с плавающей точкой легко даёт 1.0000001
		gs.forward(s, gs.world.Move(arena.PlayerID(s.playerID), clamp(input.DX), clamp(input.DY)))

	case protocol.MsgFire:
		var input protocol.FireInput
		if err := frame.Decode(&input); err != nil || !finite(input.Direction) {
			gs.rejectInput(s, "некорректное направление выстрела")
			return
		}
		gs.forward(s, gs.world.Fire(arena.PlayerID(s.playerID), input.Direction))

	case protocol.MsgBuild:
		var input protocol.BuildInput
		if err := frame.Decode(&input); err != nil || !finite(input.X) || !finite(input.Y) {
			gs.rejectInput(s, "некорректный запрос постройки")
			return
		}
		ctype, ok := parseConstructType(input.Type)
		if !ok {
			gs.rejectInput(s, "неизвестный тип постройки: "+input.Type)
			return
		}
		gs.forward(s, gs.world.Build(arena.PlayerID(s.playerID), ctype, input.X, input.Y))

	default:
		s.sendMessage(protocol.MsgError, protocol.ErrorMessage{
			Code:    "unknown_type",
			Message: "неизвестный тип сообщения: " + frame.Type.String(),
		})
	}
}

// rejectInput отвечает на некорректный intent, не разрывая соединение
func (gs *GameServer) rejectInput(s *clientSession, reason string) {
	metricInvalidInputs.Inc()
	s.sendMessage(protocol.MsgError, protocol.ErrorMessage{Code: "invalid_input", Message: reason})
}

// forward сообщает клиенту о переполнении очереди intent'ов
func (gs *GameServer) forward(s *clientSession, err error) {
	if err != nil {
		s.sendMessage(protocol.MsgError, protocol.ErrorMessage{Code: "busy", Message: "сервер перегружен"})
	}
}

// finite отсекает NaN и Inf: такие значения отравили бы координаты
// всех сущностей через арифметику тика
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func parseConstructType(s string) (arena.ConstructType, bool) {
	switch s {
	case "turret":
		return arena.ConstructTurret, true
	case "wall":
		return arena.ConstructWall, true
	default:
		return 0, false
	}
}
