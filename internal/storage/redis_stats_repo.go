package storage

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStatsRepo хранит боевую статистику в Redis. Счётчики лежат в
// хэшах (по одному на игрока), таблица лидеров — в sorted set по фрагам.
// Дельты буферизуются и сбрасываются пайплайном, чтобы тик-драйвер не
// упирался в сеть на каждом фраге.
type RedisStatsRepo struct {
	client      *redis.Client
	keyPrefix   string
	batchSize   int
	batchMu     sync.Mutex
	batchBuffer map[uint64]StatsDelta
	batchTicker *time.Ticker
	shutdown    chan struct{}
	wg          sync.WaitGroup
}

// RedisStatsConfig содержит настройки подключения к Redis
type RedisStatsConfig struct {
	Addr         string // Адрес Redis сервера
	Password     string // Пароль (пустой если не требуется)
	DB           int    // Номер базы данных
	KeyPrefix    string // Префикс для ключей
	BatchSize    int    // Размер батча для записи
	BatchFlushMs int    // Интервал сброса батча в миллисекундах
}

// DefaultRedisStatsConfig возвращает конфигурацию по умолчанию
func DefaultRedisStatsConfig() *RedisStatsConfig {
	return &RedisStatsConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		KeyPrefix:    "arena:stats:",
		BatchSize:    100,
		BatchFlushMs: 100,
	}
}

// NewRedisStatsRepo создаёт новый Redis репозиторий статистики
func NewRedisStatsRepo(config *RedisStatsConfig) (*RedisStatsRepo, error) {
	if config == nil {
		config = DefaultRedisStatsConfig()
	}
	defaults := DefaultRedisStatsConfig()
	if config.Addr == "" {
		config.Addr = defaults.Addr
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaults.KeyPrefix
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.BatchFlushMs <= 0 {
		config.BatchFlushMs = defaults.BatchFlushMs
	}

	// Создаём клиент Redis
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	// Проверяем подключение
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	repo := &RedisStatsRepo{
		client:      client,
		keyPrefix:   config.KeyPrefix,
		batchSize:   config.BatchSize,
		batchBuffer: make(map[uint64]StatsDelta),
		batchTicker: time.NewTicker(time.Duration(config.BatchFlushMs) * time.Millisecond),
		shutdown:    make(chan struct{}),
	}

	// Запускаем фоновую горутину для сброса батчей
	repo.wg.Add(1)
	go repo.batchFlusher()

	log.Printf("🔴 Connected to Redis at %s", config.Addr)
	return repo, nil
}

func (r *RedisStatsRepo) statsKey(userID uint64) string {
	return r.keyPrefix + strconv.FormatUint(userID, 10)
}

func (r *RedisStatsRepo) leaderboardKey() string {
	return r.keyPrefix + "leaderboard"
}

// Apply прибавляет дельту к статистике игрока.
// Дельта попадает в батч-буфер; при заполнении буфер сбрасывается сразу.
func (r *RedisStatsRepo) Apply(ctx context.Context, userID uint64, delta StatsDelta) error {
	if userID == 0 {
		return fmt.Errorf("недействительный userID: %d", userID)
	}
	if delta.IsZero() {
		return nil
	}

	r.batchMu.Lock()
	buffered := r.batchBuffer[userID]
	buffered.Kills += delta.Kills
	buffered.Deaths += delta.Deaths
	buffered.Shots += delta.Shots
	r.batchBuffer[userID] = buffered

	// Если буфер заполнен, сбрасываем немедленно
	if len(r.batchBuffer) >= r.batchSize {
		batch := r.batchBuffer
		r.batchBuffer = make(map[uint64]StatsDelta)
		r.batchMu.Unlock()

		return r.flushBatch(ctx, batch)
	}

	r.batchMu.Unlock()
	return nil
}

// BatchApply прибавляет дельты нескольких игроков одним пайплайном
func (r *RedisStatsRepo) BatchApply(ctx context.Context, deltas map[uint64]StatsDelta) error {
	for userID := range deltas {
		if userID == 0 {
			return fmt.Errorf("недействительный userID в batch: %d", userID)
		}
	}
	return r.flushBatch(ctx, deltas)
}

// Load загружает статистику игрока
func (r *RedisStatsRepo) Load(ctx context.Context, userID uint64) (PlayerStats, bool, error) {
	if userID == 0 {
		return PlayerStats{}, false, fmt.Errorf("недействительный userID: %d", userID)
	}

	fields, err := r.client.HGetAll(ctx, r.statsKey(userID)).Result()
	if err != nil {
		return PlayerStats{}, false, fmt.Errorf("failed to get stats: %w", err)
	}
	if len(fields) == 0 {
		return PlayerStats{}, false, nil // Записи нет
	}

	return parseStatsHash(userID, fields), true, nil
}

// Delete удаляет статистику игрока
func (r *RedisStatsRepo) Delete(ctx context.Context, userID uint64) error {
	if userID == 0 {
		return fmt.Errorf("недействительный userID: %d", userID)
	}

	// Удаляем из батч-буфера если есть
	r.batchMu.Lock()
	delete(r.batchBuffer, userID)
	r.batchMu.Unlock()

	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.statsKey(userID))
	pipe.ZRem(ctx, r.leaderboardKey(), strconv.FormatUint(userID, 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete stats: %w", err)
	}

	return nil
}

// Top возвращает лучших игроков по фрагам из sorted set
func (r *RedisStatsRepo) Top(ctx context.Context, limit int) ([]PlayerStats, error) {
	if limit <= 0 {
		limit = 10
	}

	members, err := r.client.ZRevRange(ctx, r.leaderboardKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	if len(members) == 0 {
		return []PlayerStats{}, nil
	}

	// Подтягиваем полные счётчики пайплайном
	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(members))
	for i, member := range members {
		cmds[i] = pipe.HGetAll(ctx, r.keyPrefix+member)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read leaderboard stats: %w", err)
	}

	result := make([]PlayerStats, 0, len(members))
	for i, cmd := range cmds {
		userID, err := strconv.ParseUint(members[i], 10, 64)
		if err != nil {
			log.Printf("⚠️ Повреждённая запись таблицы лидеров: %q", members[i])
			continue
		}

		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		result = append(result, parseStatsHash(userID, fields))
	}

	return result, nil
}

// Close останавливает флашер, сбрасывает остаток буфера и закрывает клиент
func (r *RedisStatsRepo) Close() error {
	close(r.shutdown)
	r.wg.Wait()

	r.batchMu.Lock()
	if len(r.batchBuffer) > 0 {
		if err := r.flushBatch(context.Background(), r.batchBuffer); err != nil {
			log.Printf("❌ Failed to flush final batch: %v", err)
		}
		r.batchBuffer = make(map[uint64]StatsDelta)
	}
	r.batchMu.Unlock()

	return r.client.Close()
}

// Внутренние методы

// batchFlusher периодически сбрасывает батч-буфер
func (r *RedisStatsRepo) batchFlusher() {
	defer r.wg.Done()

	for {
		select {
		case <-r.shutdown:
			return
		case <-r.batchTicker.C:
			r.batchMu.Lock()
			if len(r.batchBuffer) > 0 {
				batch := r.batchBuffer
				r.batchBuffer = make(map[uint64]StatsDelta)
				r.batchMu.Unlock()

				if err := r.flushBatch(context.Background(), batch); err != nil {
					log.Printf("❌ Failed to flush batch: %v", err)
				}
			} else {
				r.batchMu.Unlock()
			}
		}
	}
}

// flushBatch записывает батч дельт в Redis одним пайплайном
func (r *RedisStatsRepo) flushBatch(ctx context.Context, batch map[uint64]StatsDelta) error {
	if len(batch) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()

	for userID, delta := range batch {
		key := r.statsKey(userID)
		if delta.Kills > 0 {
			pipe.HIncrBy(ctx, key, "kills", int64(delta.Kills))
			pipe.ZIncrBy(ctx, r.leaderboardKey(), float64(delta.Kills), strconv.FormatUint(userID, 10))
		}
		if delta.Deaths > 0 {
			pipe.HIncrBy(ctx, key, "deaths", int64(delta.Deaths))
		}
		if delta.Shots > 0 {
			pipe.HIncrBy(ctx, key, "shots", int64(delta.Shots))
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	return nil
}

func parseStatsHash(userID uint64, fields map[string]string) PlayerStats {
	s := PlayerStats{UserID: userID}
	s.Kills, _ = strconv.ParseUint(fields["kills"], 10, 64)
	s.Deaths, _ = strconv.ParseUint(fields["deaths"], 10, 64)
	s.Shots, _ = strconv.ParseUint(fields["shots"], 10, 64)
	return s
}
