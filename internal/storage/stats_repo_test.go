package storage

import (
	"context"
	"testing"
	"time"
)

// TestMemoryStatsRepo тестирует in-memory репозиторий статистики
func TestMemoryStatsRepo(t *testing.T) {
	repo := NewMemoryStatsRepo()
	ctx := context.Background()

	t.Run("Apply and Load", func(t *testing.T) {
		userID := uint64(123)

		// Применяем две дельты подряд
		err := repo.Apply(ctx, userID, StatsDelta{Kills: 2, Shots: 5})
		if err != nil {
			t.Fatalf("Ошибка записи статистики: %v", err)
		}
		err = repo.Apply(ctx, userID, StatsDelta{Kills: 1, Deaths: 1, Shots: 3})
		if err != nil {
			t.Fatalf("Ошибка записи статистики: %v", err)
		}

		// Дельты должны сложиться
		stats, found, err := repo.Load(ctx, userID)
		if err != nil {
			t.Fatalf("Ошибка загрузки статистики: %v", err)
		}
		if !found {
			t.Fatal("Статистика не найдена")
		}

		expected := PlayerStats{UserID: userID, Kills: 3, Deaths: 1, Shots: 8}
		if stats != expected {
			t.Errorf("Неверная статистика: ожидалась %+v, получена %+v", expected, stats)
		}
	})

	t.Run("Load Non-Existent User", func(t *testing.T) {
		stats, found, err := repo.Load(ctx, 999)
		if err != nil {
			t.Fatalf("Ошибка при загрузке несуществующего пользователя: %v", err)
		}
		if found {
			t.Error("Статистика найдена для несуществующего пользователя")
		}
		if stats != (PlayerStats{}) {
			t.Errorf("Ожидалась пустая статистика, получена: %+v", stats)
		}
	})

	t.Run("Invalid UserID", func(t *testing.T) {
		if err := repo.Apply(ctx, 0, StatsDelta{Kills: 1}); err == nil {
			t.Error("Ожидалась ошибка для userID = 0")
		}
		if _, _, err := repo.Load(ctx, 0); err == nil {
			t.Error("Ожидалась ошибка для userID = 0")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		userID := uint64(456)
		if err := repo.Apply(ctx, userID, StatsDelta{Deaths: 1}); err != nil {
			t.Fatalf("Ошибка записи статистики: %v", err)
		}

		if err := repo.Delete(ctx, userID); err != nil {
			t.Fatalf("Ошибка удаления статистики: %v", err)
		}

		if _, found, _ := repo.Load(ctx, userID); found {
			t.Error("Статистика найдена после удаления")
		}

		// Повторное удаление - ошибка
		if err := repo.Delete(ctx, userID); err == nil {
			t.Error("Ожидалась ошибка при удалении несуществующей записи")
		}
	})

	t.Run("BatchApply", func(t *testing.T) {
		repo.Clear()

		deltas := map[uint64]StatsDelta{
			10: {Kills: 5, Shots: 10},
			20: {Kills: 2, Deaths: 3, Shots: 7},
		}
		if err := repo.BatchApply(ctx, deltas); err != nil {
			t.Fatalf("Ошибка batch-записи: %v", err)
		}

		if repo.Count() != 2 {
			t.Errorf("Ожидалось 2 записи, получено %d", repo.Count())
		}

		stats, found, _ := repo.Load(ctx, 20)
		if !found || stats.Kills != 2 || stats.Deaths != 3 || stats.Shots != 7 {
			t.Errorf("Неверная статистика после batch: %+v", stats)
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		if err := repo.Apply(cancelled, 1, StatsDelta{Kills: 1}); err == nil {
			t.Error("Ожидалась ошибка отменённого контекста")
		}
	})
}

// TestMemoryStatsRepo_Top проверяет порядок таблицы лидеров
func TestMemoryStatsRepo_Top(t *testing.T) {
	repo := NewMemoryStatsRepo()
	ctx := context.Background()

	repo.BatchApply(ctx, map[uint64]StatsDelta{
		1: {Kills: 5, Deaths: 2},
		2: {Kills: 9},
		3: {Kills: 5, Deaths: 1}, // столько же фрагов, но меньше смертей, чем у 1
		4: {Deaths: 10},
	})

	top, err := repo.Top(ctx, 3)
	if err != nil {
		t.Fatalf("Ошибка запроса таблицы лидеров: %v", err)
	}

	if len(top) != 3 {
		t.Fatalf("Ожидалось 3 записи, получено %d", len(top))
	}

	expectedOrder := []uint64{2, 3, 1}
	for i, userID := range expectedOrder {
		if top[i].UserID != userID {
			t.Errorf("Позиция %d: ожидался игрок %d, получен %d", i, userID, top[i].UserID)
		}
	}
}

// TestBufferedStatsSink проверяет буферизацию дельт тик-драйвера
func TestBufferedStatsSink(t *testing.T) {
	repo := NewMemoryStatsRepo()
	sink := NewBufferedStatsSink(repo, time.Hour) // сбрасываем вручную
	defer sink.Close()

	ctx := context.Background()

	sink.OnShot(7)
	sink.OnShot(7)
	sink.OnKill(7)
	sink.OnDeath(8)
	sink.OnKill(0) // нейтральный владелец игнорируется

	// До сброса репозиторий пуст
	if repo.Count() != 0 {
		t.Fatal("Дельты попали в репозиторий до сброса")
	}

	if err := sink.Flush(ctx); err != nil {
		t.Fatalf("Ошибка сброса: %v", err)
	}

	stats, found, _ := repo.Load(ctx, 7)
	if !found {
		t.Fatal("Статистика стрелка не найдена после сброса")
	}
	if stats.Shots != 2 || stats.Kills != 1 {
		t.Errorf("Неверная статистика стрелка: %+v", stats)
	}

	stats, found, _ = repo.Load(ctx, 8)
	if !found || stats.Deaths != 1 {
		t.Errorf("Неверная статистика жертвы: %+v", stats)
	}

	if _, found, _ := repo.Load(ctx, 0); found {
		t.Error("Нейтральный владелец не должен копить статистику")
	}

	// Повторный сброс пустого буфера - no-op
	if err := sink.Flush(ctx); err != nil {
		t.Fatalf("Ошибка пустого сброса: %v", err)
	}
}
