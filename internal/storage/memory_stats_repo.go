package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStatsRepo реализует StatsRepo в памяти.
// Используется как fallback, когда Redis/MariaDB недоступны,
// или для CI/локальной разработки без внешних хранилищ.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryStatsRepo struct {
	mu   sync.RWMutex
	data map[uint64]PlayerStats // userID -> накопленные счётчики
}

// NewMemoryStatsRepo создает новый репозиторий статистики в памяти.
func NewMemoryStatsRepo() *MemoryStatsRepo {
	return &MemoryStatsRepo{
		data: make(map[uint64]PlayerStats),
	}
}

// Apply прибавляет дельту к статистике игрока в памяти.
func (r *MemoryStatsRepo) Apply(ctx context.Context, userID uint64, delta StatsDelta) error {
	// Валидация входных данных
	if userID == 0 {
		return fmt.Errorf("недействительный userID: %d", userID)
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.apply(userID, delta)
	return nil
}

// apply прибавляет дельту без блокировки; вызывающий держит mu.
func (r *MemoryStatsRepo) apply(userID uint64, delta StatsDelta) {
	s := r.data[userID]
	s.UserID = userID
	s.Kills += delta.Kills
	s.Deaths += delta.Deaths
	s.Shots += delta.Shots
	r.data[userID] = s
}

// Load загружает статистику игрока из памяти.
func (r *MemoryStatsRepo) Load(ctx context.Context, userID uint64) (PlayerStats, bool, error) {
	// Валидация входных данных
	if userID == 0 {
		return PlayerStats{}, false, fmt.Errorf("недействительный userID: %d", userID)
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return PlayerStats{}, false, ctx.Err()
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	s, exists := r.data[userID]
	return s, exists, nil
}

// Delete удаляет статистику игрока из памяти.
func (r *MemoryStatsRepo) Delete(ctx context.Context, userID uint64) error {
	// Валидация входных данных
	if userID == 0 {
		return fmt.Errorf("недействительный userID: %d", userID)
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.data[userID]; !exists {
		return fmt.Errorf("статистика для пользователя %d не найдена", userID)
	}

	delete(r.data, userID)
	return nil
}

// BatchApply прибавляет дельты нескольких игроков в памяти.
func (r *MemoryStatsRepo) BatchApply(ctx context.Context, deltas map[uint64]StatsDelta) error {
	if len(deltas) == 0 {
		return nil // Нечего сохранять
	}

	// Проверяем контекст на отмену
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Валидация всех записей перед применением
	for userID := range deltas {
		if userID == 0 {
			return fmt.Errorf("недействительный userID в batch: %d", userID)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, delta := range deltas {
		r.apply(userID, delta)
	}

	return nil
}

// Top возвращает лучших игроков по фрагам.
func (r *MemoryStatsRepo) Top(ctx context.Context, limit int) ([]PlayerStats, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.mu.RLock()
	result := make([]PlayerStats, 0, len(r.data))
	for _, s := range r.data {
		result = append(result, s)
	}
	r.mu.RUnlock()

	// При равных фрагах меньше смертей — выше в таблице
	sort.Slice(result, func(i, j int) bool {
		if result[i].Kills != result[j].Kills {
			return result[i].Kills > result[j].Kills
		}
		if result[i].Deaths != result[j].Deaths {
			return result[i].Deaths < result[j].Deaths
		}
		return result[i].UserID < result[j].UserID
	})

	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

// Count возвращает количество игроков со статистикой (для отладки).
func (r *MemoryStatsRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Clear очищает всю статистику (для тестов).
func (r *MemoryStatsRepo) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = make(map[uint64]PlayerStats)
}
