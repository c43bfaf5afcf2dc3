package history

import (
	"context"
	"encoding/json"

	"github.com/annel0/arena-server/internal/eventbus"
)

// killPayload повторяет полезную нагрузку события player_kill арены.
// Дублируем структуру, чтобы не тянуть пакет arena в хранилище.
type killPayload struct {
	Killer   uint64 `json:"killer"`
	Victim   uint64 `json:"victim"`
	BulletID uint64 `json:"bullet_id"`
	Tick     uint64 `json:"tick"`
}

// AttachToBus подписывает хранилище на события фрагов. Отписка — через
// возвращённую подписку или отмену контекста.
func (s *Store) AttachToBus(ctx context.Context) (eventbus.Subscription, error) {
	filter := eventbus.Filter{
		Types:   []string{"player_kill"},
		Sources: []string{"arena"},
	}

	return eventbus.Subscribe(ctx, filter, func(ctx context.Context, ev *eventbus.Envelope) {
		var payload killPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			s.logger.Warn("событие player_kill с нечитаемой нагрузкой: %v", err)
			return
		}

		rec := KillRecord{
			ID:        ev.ID,
			Killer:    payload.Killer,
			Victim:    payload.Victim,
			BulletID:  payload.BulletID,
			Tick:      payload.Tick,
			Timestamp: ev.Timestamp,
		}
		if err := s.Append(rec); err != nil {
			s.logger.Error("не удалось сохранить фраг в ленту: %v", err)
		}
	})
}
