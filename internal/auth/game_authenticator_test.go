package auth

import (
	"testing"

	"github.com/annel0/arena-server/internal/protocol"
)

func newTestAuthenticator(t *testing.T) (*GameAuthenticator, *MemoryUserRepo) {
	t.Helper()

	repo, err := NewMemoryUserRepo()
	if err != nil {
		t.Fatalf("Ошибка создания репозитория: %v", err)
	}

	info := &protocol.ServerInfo{Version: "test", Environment: "test", TickRate: 60}
	return NewGameAuthenticator(repo, []byte("0123456789abcdef0123456789abcdef"), info), repo
}

// TestAuthenticate_Credentials проверяет вход по логину/паролю
func TestAuthenticate_Credentials(t *testing.T) {
	ga, _ := newTestAuthenticator(t)

	resp, err := ga.Authenticate(&protocol.AuthRequest{Username: "test", Password: "test"})
	if err != nil {
		t.Fatalf("Ошибка аутентификации: %v", err)
	}

	if !resp.Success {
		t.Fatalf("Аутентификация отклонена: %s", resp.Message)
	}
	if resp.PlayerID == 0 {
		t.Error("PlayerID не заполнен")
	}
	if resp.JwtToken == "" {
		t.Error("JWT токен не выдан")
	}
	if resp.ServerInfo == nil || resp.ServerInfo.TickRate != 60 {
		t.Error("ServerInfo не заполнен")
	}
}

// TestAuthenticate_WrongPassword проверяет отказ при неверном пароле
func TestAuthenticate_WrongPassword(t *testing.T) {
	ga, _ := newTestAuthenticator(t)

	resp, err := ga.Authenticate(&protocol.AuthRequest{Username: "test", Password: "wrong"})
	if err != nil {
		t.Fatalf("Неожиданная ошибка: %v", err)
	}

	if resp.Success {
		t.Error("Неверный пароль прошел аутентификацию")
	}
}

// TestAuthenticate_JWTRoundTrip проверяет повторный вход по выданному JWT
func TestAuthenticate_JWTRoundTrip(t *testing.T) {
	ga, _ := newTestAuthenticator(t)

	first, err := ga.Authenticate(&protocol.AuthRequest{Username: "test", Password: "test"})
	if err != nil || !first.Success {
		t.Fatalf("Первичная аутентификация не удалась: %v", err)
	}

	second, err := ga.Authenticate(&protocol.AuthRequest{JwtToken: first.JwtToken})
	if err != nil {
		t.Fatalf("Ошибка JWT аутентификации: %v", err)
	}

	if !second.Success {
		t.Fatalf("JWT аутентификация отклонена: %s", second.Message)
	}
	if second.PlayerID != first.PlayerID {
		t.Errorf("PlayerID не совпадает: %d != %d", second.PlayerID, first.PlayerID)
	}
}

// TestAuthenticate_InvalidJWT проверяет отказ на повреждённом токене
func TestAuthenticate_InvalidJWT(t *testing.T) {
	ga, _ := newTestAuthenticator(t)

	resp, err := ga.Authenticate(&protocol.AuthRequest{JwtToken: "not.a.token"})
	if err != nil {
		t.Fatalf("Неожиданная ошибка: %v", err)
	}
	if resp.Success {
		t.Error("Повреждённый JWT прошел аутентификацию")
	}
}

// TestAuthenticate_EmptyRequest проверяет отказ без учетных данных
func TestAuthenticate_EmptyRequest(t *testing.T) {
	ga, _ := newTestAuthenticator(t)

	resp, err := ga.Authenticate(&protocol.AuthRequest{Username: "test"})
	if err != nil {
		t.Fatalf("Неожиданная ошибка: %v", err)
	}
	if resp.Success {
		t.Error("Запрос без пароля и токена прошел аутентификацию")
	}
}
