package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/annel0/arena-server/internal/cache"
)

// fakeCache — локальная реализация cache.CacheRepo для тестов обёртки
type fakeCache struct {
	mu     sync.Mutex
	values map[string][]byte
	gets   int
	sets   int
	closed bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return nil, cache.ErrCacheMiss
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.values[key] = value
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

func (f *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.values[key]
	return ok, nil
}

func (f *fakeCache) Invalidate(ctx context.Context, key string) error {
	return f.Delete(ctx, key)
}

func (f *fakeCache) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	for _, key := range keys {
		if v, err := f.Get(ctx, key); err == nil {
			result[key] = v
		}
	}
	return result, nil
}

func (f *fakeCache) BatchSet(ctx context.Context, items map[string][]byte, ttl time.Duration) error {
	for k, v := range items {
		f.Set(ctx, k, v, ttl)
	}
	return nil
}

func (f *fakeCache) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeCache) GetMetrics() *cache.CacheMetrics {
	return &cache.CacheMetrics{}
}

// TestCachedStatsRepo_TopCaching проверяет, что повторный Top идёт из кеша
func TestCachedStatsRepo_TopCaching(t *testing.T) {
	inner := NewMemoryStatsRepo()
	fc := newFakeCache()
	repo := NewCachedStatsRepo(inner, fc)
	ctx := context.Background()

	if err := inner.BatchApply(ctx, map[uint64]StatsDelta{
		1: {Kills: 5},
		2: {Kills: 9},
	}); err != nil {
		t.Fatalf("Ошибка наполнения репозитория: %v", err)
	}

	top, err := repo.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Ошибка первого запроса: %v", err)
	}
	if len(top) != 2 || top[0].UserID != 2 {
		t.Errorf("Неверная таблица лидеров: %+v", top)
	}
	if fc.sets != 1 {
		t.Errorf("Ожидалась одна запись в кеш, получено %d", fc.sets)
	}

	// Меняем репозиторий за спиной кеша: повторный запрос обязан
	// вернуть закешированную таблицу без изменений
	if err := inner.Apply(ctx, 3, StatsDelta{Kills: 100}); err != nil {
		t.Fatalf("Ошибка записи: %v", err)
	}

	cached, err := repo.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Ошибка повторного запроса: %v", err)
	}
	if len(cached) != 2 {
		t.Errorf("Ожидалась закешированная таблица из 2 записей, получено %d", len(cached))
	}
	if fc.sets != 1 {
		t.Errorf("Повторный запрос не должен писать в кеш, записей: %d", fc.sets)
	}
}

// TestCachedStatsRepo_WriteInvalidates проверяет сквозную запись со сбросом кеша
func TestCachedStatsRepo_WriteInvalidates(t *testing.T) {
	inner := NewMemoryStatsRepo()
	fc := newFakeCache()
	repo := NewCachedStatsRepo(inner, fc)
	ctx := context.Background()

	if err := repo.Apply(ctx, 1, StatsDelta{Kills: 1}); err != nil {
		t.Fatalf("Ошибка записи: %v", err)
	}

	if _, err := repo.Top(ctx, 10); err != nil {
		t.Fatalf("Ошибка запроса таблицы: %v", err)
	}
	if ok, _ := fc.Exists(ctx, "leaderboard:10"); !ok {
		t.Fatal("Таблица лидеров не закеширована")
	}

	// Новый фраг сбрасывает кеш
	if err := repo.Apply(ctx, 2, StatsDelta{Kills: 3}); err != nil {
		t.Fatalf("Ошибка записи: %v", err)
	}
	if ok, _ := fc.Exists(ctx, "leaderboard:10"); ok {
		t.Error("Кеш не инвалидирован после записи")
	}

	top, err := repo.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Ошибка запроса после инвалидации: %v", err)
	}
	if len(top) != 2 || top[0].UserID != 2 {
		t.Errorf("Неверная таблица после инвалидации: %+v", top)
	}

	// Запись проходит насквозь во вложенный репозиторий
	stats, found, err := repo.Load(ctx, 2)
	if err != nil || !found {
		t.Fatalf("Статистика не найдена: found=%v err=%v", found, err)
	}
	if stats.Kills != 3 {
		t.Errorf("Неверная статистика: %+v", stats)
	}
}

// TestCachedStatsRepo_CorruptCacheEntry проверяет перечитывание при битом кеше
func TestCachedStatsRepo_CorruptCacheEntry(t *testing.T) {
	inner := NewMemoryStatsRepo()
	fc := newFakeCache()
	repo := NewCachedStatsRepo(inner, fc)
	ctx := context.Background()

	if err := inner.Apply(ctx, 1, StatsDelta{Kills: 2}); err != nil {
		t.Fatalf("Ошибка записи: %v", err)
	}
	fc.Set(ctx, "leaderboard:10", []byte("не json"), time.Minute)

	top, err := repo.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Ошибка запроса при битом кеше: %v", err)
	}
	if len(top) != 1 || top[0].UserID != 1 {
		t.Errorf("Неверная таблица: %+v", top)
	}
}

// TestCachedStatsRepo_Close проверяет закрытие кеша
func TestCachedStatsRepo_Close(t *testing.T) {
	fc := newFakeCache()
	repo := NewCachedStatsRepo(NewMemoryStatsRepo(), fc)

	if err := repo.Close(); err != nil {
		t.Fatalf("Ошибка закрытия: %v", err)
	}
	if !fc.closed {
		t.Error("Кеш не закрыт")
	}
}