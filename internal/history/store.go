// Package history хранит ленту фрагов в BadgerDB. REST API отдаёт из
// неё последние события, переживающие перезапуск сервера.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/annel0/arena-server/internal/logging"
)

// Префикс ключей ленты фрагов. После префикса идут 8 байт
// big-endian наносекундного времени — порядок ключей совпадает с
// хронологией, и обратная итерация даёт свежие записи первыми.
var killPrefix = []byte("kill:")

// KillRecord — одна запись ленты фрагов
type KillRecord struct {
	ID        string    `json:"id"`
	Killer    uint64    `json:"killer,omitempty"` // 0 — фраг не зачтён
	Victim    uint64    `json:"victim"`
	BulletID  uint64    `json:"bullet_id"`
	Tick      uint64    `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
}

// Store — хранилище ленты фрагов
type Store struct {
	db      *badger.DB
	logger  *logging.Logger
	mu      sync.Mutex // сериализует присвоение seq при равных временах
	lastKey uint64

	gcStop chan struct{}
	gcDone chan struct{}
}

// NewStore открывает хранилище в каталоге dataPath
func NewStore(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "history")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logging.GetStorageLogger(),
		gcStop: make(chan struct{}),
		gcDone: make(chan struct{}),
	}
	go s.gcLoop()

	return s, nil
}

// Append добавляет запись в ленту
func (s *Store) Append(rec KillRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи: %w", err)
	}

	key := s.makeKey(rec.Timestamp)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// makeKey строит монотонно растущий ключ. Два фрага в одну наносекунду
// получают разные ключи за счёт инкремента.
func (s *Store) makeKey(ts time.Time) []byte {
	stamp := uint64(ts.UnixNano())

	s.mu.Lock()
	if stamp <= s.lastKey {
		stamp = s.lastKey + 1
	}
	s.lastKey = stamp
	s.mu.Unlock()

	key := make([]byte, len(killPrefix)+8)
	copy(key, killPrefix)
	binary.BigEndian.PutUint64(key[len(killPrefix):], stamp)
	return key
}

// Recent возвращает до limit последних записей, свежие первыми
func (s *Store) Recent(limit int) ([]KillRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	var result []KillRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = killPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		// При обратной итерации старт — сразу за последним ключом префикса
		seek := append(append([]byte{}, killPrefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
		for it.Seek(seek); it.Valid() && len(result) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec KillRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					s.logger.Warn("повреждённая запись ленты фрагов: %v", err)
					return nil // пропускаем, не прерывая выборку
				}
				result = append(result, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ленты фрагов: %w", err)
	}

	return result, nil
}

// Query — фильтр выборки по ленте фрагов. Нулевые поля не ограничивают
// выборку, Limit по умолчанию 50.
type Query struct {
	Killer uint64
	Victim uint64
	Since  time.Time
	Until  time.Time
	Limit  int
}

// Find возвращает записи, удовлетворяющие фильтру, свежие первыми.
// Диапазон времени отображается прямо в диапазон ключей, фильтры по
// участникам применяются к значениям.
func (s *Store) Find(q Query) ([]KillRecord, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}

	seek := append(append([]byte{}, killPrefix...), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	if !q.Until.IsZero() {
		binary.BigEndian.PutUint64(seek[len(killPrefix):], uint64(q.Until.UnixNano()))
	}
	var floor uint64
	if !q.Since.IsZero() {
		floor = uint64(q.Since.UnixNano())
	}

	var result []KillRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = killPrefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.Valid() && len(result) < q.Limit; it.Next() {
			key := it.Item().Key()
			if binary.BigEndian.Uint64(key[len(killPrefix):]) < floor {
				break // ключи упорядочены, дальше только старее
			}
			err := it.Item().Value(func(val []byte) error {
				var rec KillRecord
				if err := json.Unmarshal(val, &rec); err != nil {
					s.logger.Warn("повреждённая запись ленты фрагов: %v", err)
					return nil
				}
				if q.Killer != 0 && rec.Killer != q.Killer {
					return nil
				}
				if q.Victim != 0 && rec.Victim != q.Victim {
					return nil
				}
				result = append(result, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки по ленте фрагов: %w", err)
	}

	return result, nil
}

// Count возвращает число записей в ленте
func (s *Store) Count() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = killPrefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(killPrefix); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close останавливает обслуживание и закрывает базу
func (s *Store) Close() error {
	close(s.gcStop)
	<-s.gcDone
	return s.db.Close()
}

// gcLoop периодически запускает сборку value log
func (s *Store) gcLoop() {
	defer close(s.gcDone)

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.gcStop:
			return
		case <-ticker.C:
			// ErrNoRewrite означает, что собирать нечего
			if err := s.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
				s.logger.Warn("badger GC: %v", err)
			}
		}
	}
}
