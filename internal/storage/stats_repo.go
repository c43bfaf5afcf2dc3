package storage

import (
	"context"
)

// StatsDelta — приращение боевой статистики игрока за период.
// Дельты аддитивны: репозиторий прибавляет их к накопленным значениям.
type StatsDelta struct {
	Kills  uint64
	Deaths uint64
	Shots  uint64
}

// IsZero сообщает, пустая ли дельта
func (d StatsDelta) IsZero() bool {
	return d.Kills == 0 && d.Deaths == 0 && d.Shots == 0
}

// PlayerStats — накопленная боевая статистика игрока.
type PlayerStats struct {
	UserID uint64 `json:"user_id"`
	Kills  uint64 `json:"kills"`
	Deaths uint64 `json:"deaths"`
	Shots  uint64 `json:"shots"`
}

// StatsRepo определяет интерфейс для накопления боевой статистики.
// Статистика привязана к UserID (постоянный идентификатор аккаунта),
// а не к игровой сессии — счётчики переживают переподключения.
type StatsRepo interface {
	// Apply прибавляет дельту к статистике игрока.
	// Параметры:
	//   ctx - контекст для отмены операции
	//   userID - уникальный идентификатор пользователя
	//   delta - приращение счётчиков
	// Возвращает:
	//   error - ошибка при записи
	Apply(ctx context.Context, userID uint64, delta StatsDelta) error

	// Load загружает накопленную статистику игрока.
	// Возвращает:
	//   PlayerStats - счётчики игрока
	//   bool - true если запись найдена, false если игрок ещё не играл
	//   error - ошибка при чтении
	Load(ctx context.Context, userID uint64) (PlayerStats, bool, error)

	// Delete удаляет статистику игрока (для тестов или сброса).
	Delete(ctx context.Context, userID uint64) error

	// BatchApply прибавляет дельты нескольких игроков одновременно.
	// Используется буферизующим sink'ом тик-драйвера: одна запись
	// в хранилище на интервал сброса вместо записи на каждый фраг.
	// Параметры:
	//   ctx - контекст для отмены операции
	//   deltas - карта userID -> приращение
	// Возвращает:
	//   error - ошибка при записи
	BatchApply(ctx context.Context, deltas map[uint64]StatsDelta) error

	// Top возвращает лучших игроков по фрагам (для таблицы лидеров).
	Top(ctx context.Context, limit int) ([]PlayerStats, error)
}
