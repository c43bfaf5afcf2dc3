package auth

import (
	"crypto/rand"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/annel0/arena-server/internal/protocol"
)

// GameAuthenticator управляет аутентификацией игроков с поддержкой JWT.
// Используется сетевым слоем при рукопожатии: первое сообщение клиента
// обязано быть MsgAuth, и до успешного ответа intent'ы не принимаются.
type GameAuthenticator struct {
	userRepo    UserRepository
	jwtSecret   []byte
	tokenExpiry time.Duration
	serverInfo  *protocol.ServerInfo
}

// JWTClaims содержит данные JWT токена
type JWTClaims struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewGameAuthenticator создает новый аутентификатор
func NewGameAuthenticator(repo UserRepository, jwtSecret []byte, info *protocol.ServerInfo) *GameAuthenticator {
	if len(jwtSecret) == 0 {
		// Генерируем случайный секрет, если не предоставлен
		jwtSecret = make([]byte, 32)
		if _, err := rand.Read(jwtSecret); err != nil {
			log.Printf("КРИТИЧЕСКАЯ ОШИБКА: не удалось сгенерировать JWT секрет: %v", err)
		}
	}

	return &GameAuthenticator{
		userRepo:    repo,
		jwtSecret:   jwtSecret,
		tokenExpiry: 24 * time.Hour, // 24 часа
		serverInfo:  info,
	}
}

// Authenticate выполняет аутентификацию игрока
func (ga *GameAuthenticator) Authenticate(req *protocol.AuthRequest) (*protocol.AuthResponse, error) {
	// Логируем попытку аутентификации
	log.Printf("🔐 Аутентификация: user=%s, has_password=%v, has_jwt=%v",
		req.Username, req.Password != "", req.JwtToken != "")

	// 1. Аутентификация по JWT токену
	if req.JwtToken != "" {
		return ga.authenticateByJWT(req.JwtToken)
	}

	// 2. Аутентификация по username/password
	if req.Password != "" {
		return ga.authenticateByCredentials(req.Username, req.Password)
	}

	return &protocol.AuthResponse{
		Success: false,
		Message: "Требуется username/password или JWT токен",
	}, nil
}

// authenticateByCredentials аутентификация по логину/паролю
func (ga *GameAuthenticator) authenticateByCredentials(username, password string) (*protocol.AuthResponse, error) {
	// Проверяем учетные данные
	user, err := ga.userRepo.ValidateCredentials(username, password)
	if err != nil {
		log.Printf("❌ Неудачная аутентификация для пользователя %s: %v", username, err)
		return &protocol.AuthResponse{
			Success: false,
			Message: "Неверные учетные данные",
		}, nil
	}

	log.Printf("✅ Успешная аутентификация пользователя %s (ID: %d)", user.Username, user.ID)

	response := &protocol.AuthResponse{
		Success:    true,
		Message:    "Аутентификация успешна",
		PlayerID:   user.ID,
		ServerInfo: ga.serverInfo,
	}

	// Выдаём JWT на следующие сессии
	jwtToken, expiresAt, err := ga.generateJWT(user)
	if err != nil {
		log.Printf("⚠️ Ошибка генерации JWT для %s: %v", username, err)
	} else {
		response.JwtToken = jwtToken
		response.JwtExpiresAt = expiresAt
	}

	return response, nil
}

// authenticateByJWT аутентификация по JWT токену
func (ga *GameAuthenticator) authenticateByJWT(jwtToken string) (*protocol.AuthResponse, error) {
	// Парсим и валидируем JWT
	token, err := jwt.ParseWithClaims(jwtToken, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Проверяем алгоритм подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный алгоритм подписи: %v", token.Header["alg"])
		}
		return ga.jwtSecret, nil
	})

	if err != nil || !token.Valid {
		log.Printf("❌ Ошибка валидации JWT: %v", err)
		return &protocol.AuthResponse{
			Success: false,
			Message: "Недействительный JWT токен",
		}, nil
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return &protocol.AuthResponse{
			Success: false,
			Message: "Некорректный формат JWT токена",
		}, nil
	}

	// Получаем пользователя
	user, err := ga.userRepo.GetUserByID(claims.UserID)
	if err != nil {
		log.Printf("❌ Пользователь с ID %d не найден: %v", claims.UserID, err)
		return &protocol.AuthResponse{
			Success: false,
			Message: "Пользователь не найден",
		}, nil
	}

	log.Printf("✅ JWT аутентификация успешна для %s (ID: %d)", user.Username, user.ID)

	return &protocol.AuthResponse{
		Success:      true,
		Message:      "JWT аутентификация успешна",
		PlayerID:     user.ID,
		ServerInfo:   ga.serverInfo,
		JwtToken:     jwtToken, // Возвращаем тот же токен
		JwtExpiresAt: claims.ExpiresAt.Unix(),
	}, nil
}

// generateJWT создает новый JWT токен
func (ga *GameAuthenticator) generateJWT(user *User) (string, int64, error) {
	expiresAt := time.Now().Add(ga.tokenExpiry)

	claims := &JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.GetRole(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   user.Username,
			Issuer:    "arena-server",
			ID:        fmt.Sprintf("user_%d_%d", user.ID, time.Now().Unix()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(ga.jwtSecret)
	if err != nil {
		return "", 0, fmt.Errorf("ошибка подписи JWT токена: %w", err)
	}

	return tokenString, expiresAt.Unix(), nil
}

// SetJWTSecret устанавливает новый JWT секрет
func (ga *GameAuthenticator) SetJWTSecret(secret []byte) {
	ga.jwtSecret = secret
}

// GetServerInfo возвращает информацию о сервере
func (ga *GameAuthenticator) GetServerInfo() *protocol.ServerInfo {
	return ga.serverInfo
}
