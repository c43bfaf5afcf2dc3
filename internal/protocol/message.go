// Package protocol определяет проводной формат арены: кадры с префиксом
// длины и JSON-телами. Один и тот же кодек используется поверх TCP и KCP.
package protocol

// MessageType определяет тип сообщения
type MessageType uint16

const (
	MsgAuth         MessageType = iota // 0: Авторизация
	MsgAuthResponse                    // 1: Ответ на авторизацию
	MsgPing                            // 2: Пинг для поддержания соединения
	MsgPong                            // 3: Ответ на пинг
	MsgMove                            // 4: Направление движения
	MsgFire                            // 5: Выстрел
	MsgBuild                           // 6: Постройка
	MsgSnapshot                        // 7: Снапшот мира (сервер -> клиент)
	MsgError                           // 8: Ошибка уровня протокола
)

// String возвращает читаемое имя типа сообщения
func (t MessageType) String() string {
	switch t {
	case MsgAuth:
		return "auth"
	case MsgAuthResponse:
		return "auth_response"
	case MsgPing:
		return "ping"
	case MsgPong:
		return "pong"
	case MsgMove:
		return "move"
	case MsgFire:
		return "fire"
	case MsgBuild:
		return "build"
	case MsgSnapshot:
		return "snapshot"
	case MsgError:
		return "error"
	default:
		return "unknown"
	}
}

// === Тела сообщений ===

// AuthRequest — первое сообщение клиента. Либо username/password,
// либо готовый JWT от прошлой сессии.
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	JwtToken string `json:"jwt_token,omitempty"`
}

// ServerInfo — информация о сервере в ответе на авторизацию
type ServerInfo struct {
	Version         string `json:"version"`
	Environment     string `json:"environment"`
	RestAPIEndpoint string `json:"rest_api_endpoint,omitempty"`
	TickRate        int    `json:"tick_rate"`
}

// AuthResponse — ответ сервера на авторизацию
type AuthResponse struct {
	Success      bool        `json:"success"`
	Message      string      `json:"message"`
	PlayerID     uint64      `json:"player_id,omitempty"`
	JwtToken     string      `json:"jwt_token,omitempty"`
	JwtExpiresAt int64       `json:"jwt_expires_at,omitempty"`
	ServerInfo   *ServerInfo `json:"server_info,omitempty"`
}

// MoveInput — желаемое направление движения, компоненты в [-1, 1].
// Нулевой вектор останавливает игрока.
type MoveInput struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// FireInput — выстрел в направлении (радианы)
type FireInput struct {
	Direction float64 `json:"direction"`
}

// BuildInput — запрос на постройку
type BuildInput struct {
	Type string  `json:"type"` // "turret" | "wall"
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// PingMessage несёт время отправителя для оценки RTT
type PingMessage struct {
	ClientTime int64 `json:"client_time"`
}

// ErrorMessage — ошибка уровня протокола
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
