package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/annel0/arena-server/internal/cache"
	"github.com/annel0/arena-server/internal/logging"
)

// leaderboardTTL — время жизни закешированной таблицы лидеров.
// Таблица меняется каждым фрагом, поэтому TTL короткий: свежесть
// важнее, чем экономия запросов.
const leaderboardTTL = 5 * time.Second

// CachedStatsRepo оборачивает StatsRepo и кеширует Top() — самый
// дорогой и самый частый запрос (его дергает публичный REST без
// авторизации). Записи проходят насквозь и инвалидируют кеш; при
// нескольких инстансах инвалидация разносится через CacheInvalidator
// внутри cache.CacheRepo.
type CachedStatsRepo struct {
	inner  StatsRepo
	cache  cache.CacheRepo
	logger *logging.Logger
}

// NewCachedStatsRepo создаёт кеширующую обёртку над репозиторием статистики
func NewCachedStatsRepo(inner StatsRepo, c cache.CacheRepo) *CachedStatsRepo {
	return &CachedStatsRepo{
		inner:  inner,
		cache:  c,
		logger: logging.GetStorageLogger(),
	}
}

func leaderboardKey(limit int) string {
	return "leaderboard:" + strconv.Itoa(limit)
}

// Apply пишет насквозь и инвалидирует таблицу лидеров
func (r *CachedStatsRepo) Apply(ctx context.Context, userID uint64, delta StatsDelta) error {
	if err := r.inner.Apply(ctx, userID, delta); err != nil {
		return err
	}
	r.invalidateLeaderboard(ctx)
	return nil
}

// BatchApply пишет насквозь и инвалидирует таблицу лидеров
func (r *CachedStatsRepo) BatchApply(ctx context.Context, deltas map[uint64]StatsDelta) error {
	if err := r.inner.BatchApply(ctx, deltas); err != nil {
		return err
	}
	if len(deltas) > 0 {
		r.invalidateLeaderboard(ctx)
	}
	return nil
}

// Load читает напрямую: статистика одного игрока дешёвая и запрашивается редко
func (r *CachedStatsRepo) Load(ctx context.Context, userID uint64) (PlayerStats, bool, error) {
	return r.inner.Load(ctx, userID)
}

// Delete удаляет насквозь и инвалидирует таблицу лидеров
func (r *CachedStatsRepo) Delete(ctx context.Context, userID uint64) error {
	if err := r.inner.Delete(ctx, userID); err != nil {
		return err
	}
	r.invalidateLeaderboard(ctx)
	return nil
}

// Top читает таблицу лидеров через кеш
func (r *CachedStatsRepo) Top(ctx context.Context, limit int) ([]PlayerStats, error) {
	key := leaderboardKey(limit)

	if data, err := r.cache.Get(ctx, key); err == nil {
		var top []PlayerStats
		if err := json.Unmarshal(data, &top); err == nil {
			return top, nil
		}
		r.logger.Warn("повреждённая запись кеша %s, перечитываем", key)
	} else if !cache.IsCacheMiss(err) {
		r.logger.Warn("кеш недоступен (%v), читаем из репозитория", err)
	}

	top, err := r.inner.Top(ctx, limit)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(top)
	if err != nil {
		return top, fmt.Errorf("ошибка сериализации таблицы лидеров: %w", err)
	}
	if err := r.cache.Set(ctx, key, data, leaderboardTTL); err != nil {
		r.logger.Warn("таблица лидеров не закеширована: %v", err)
	}

	return top, nil
}

// invalidateLeaderboard сбрасывает закешированные таблицы ходовых размеров.
// Произвольные limit'ы дожидаются истечения TTL.
func (r *CachedStatsRepo) invalidateLeaderboard(ctx context.Context) {
	for _, limit := range []int{10, 25, 50, 100} {
		if err := r.cache.Invalidate(ctx, leaderboardKey(limit)); err != nil {
			r.logger.Debug("инвалидация %s: %v", leaderboardKey(limit), err)
		}
	}
}

// Close закрывает кеш и вложенный репозиторий
func (r *CachedStatsRepo) Close() error {
	cacheErr := r.cache.Close()
	if closer, ok := r.inner.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return err
		}
	}
	return cacheErr
}
