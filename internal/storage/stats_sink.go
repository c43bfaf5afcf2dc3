package storage

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/arena-server/internal/arena"
	"github.com/annel0/arena-server/internal/logging"
)

// BufferedStatsSink связывает тик-драйвер с StatsRepo: вызовы из
// горутины симуляции только инкрементируют счётчики в памяти, а
// периодический флашер пишет накопленные дельты батчем. Симуляция
// никогда не ждёт хранилище.
type BufferedStatsSink struct {
	repo   StatsRepo
	logger *logging.Logger

	mu     sync.Mutex
	deltas map[uint64]StatsDelta

	ticker   *time.Ticker
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewBufferedStatsSink создаёт sink с периодическим сбросом в repo
func NewBufferedStatsSink(repo StatsRepo, flushInterval time.Duration) *BufferedStatsSink {
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}

	s := &BufferedStatsSink{
		repo:     repo,
		logger:   logging.GetStorageLogger(),
		deltas:   make(map[uint64]StatsDelta),
		ticker:   time.NewTicker(flushInterval),
		shutdown: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.flusher()

	return s
}

// OnShot реализует arena.StatsSink
func (s *BufferedStatsSink) OnShot(shooter arena.PlayerID) {
	s.add(uint64(shooter), StatsDelta{Shots: 1})
}

// OnKill реализует arena.StatsSink
func (s *BufferedStatsSink) OnKill(killer arena.PlayerID) {
	s.add(uint64(killer), StatsDelta{Kills: 1})
}

// OnDeath реализует arena.StatsSink
func (s *BufferedStatsSink) OnDeath(victim arena.PlayerID) {
	s.add(uint64(victim), StatsDelta{Deaths: 1})
}

func (s *BufferedStatsSink) add(userID uint64, delta StatsDelta) {
	if userID == 0 {
		return // нейтральный владелец статистику не копит
	}

	s.mu.Lock()
	buffered := s.deltas[userID]
	buffered.Kills += delta.Kills
	buffered.Deaths += delta.Deaths
	buffered.Shots += delta.Shots
	s.deltas[userID] = buffered
	s.mu.Unlock()
}

// Flush немедленно сбрасывает накопленные дельты в репозиторий
func (s *BufferedStatsSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.deltas) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.deltas
	s.deltas = make(map[uint64]StatsDelta)
	s.mu.Unlock()

	if err := s.repo.BatchApply(ctx, batch); err != nil {
		// Дельты возвращаются в буфер, чтобы сбой записи не терял фраги
		s.mu.Lock()
		for userID, delta := range batch {
			buffered := s.deltas[userID]
			buffered.Kills += delta.Kills
			buffered.Deaths += delta.Deaths
			buffered.Shots += delta.Shots
			s.deltas[userID] = buffered
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// Close останавливает флашер и дописывает остаток буфера
func (s *BufferedStatsSink) Close() error {
	close(s.shutdown)
	s.wg.Wait()
	s.ticker.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Flush(ctx)
}

func (s *BufferedStatsSink) flusher() {
	defer s.wg.Done()

	for {
		select {
		case <-s.shutdown:
			return
		case <-s.ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Flush(ctx); err != nil {
				s.logger.Warn("сброс статистики не удался: %v", err)
			}
			cancel()
		}
	}
}
