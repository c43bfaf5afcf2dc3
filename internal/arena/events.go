package arena

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/arena-server/internal/eventbus"
)

// Типы событий арены, публикуемых в шину
const (
	EventPlayerJoin         = "player_join"
	EventPlayerLeave        = "player_leave"
	EventPlayerKill         = "player_kill"
	EventPlayerRespawn      = "player_respawn"
	EventConstructBuilt     = "construct_built"
	EventConstructDestroyed = "construct_destroyed"
)

// KillEvent — полезная нагрузка события фрага.
// Killer равен нулю, если стрелявший отключился до попадания
// и фраг не был зачтён.
type KillEvent struct {
	Killer   PlayerID `json:"killer,omitempty"`
	Victim   PlayerID `json:"victim"`
	BulletID uint64   `json:"bullet_id"`
	Tick     uint64   `json:"tick"`
}

// PlayerEvent — полезная нагрузка событий входа/выхода/возрождения
type PlayerEvent struct {
	Player PlayerID `json:"player"`
	Name   string   `json:"name,omitempty"`
	Tick   uint64   `json:"tick"`
}

// ConstructEvent — полезная нагрузка событий построек
type ConstructEvent struct {
	Construct uint64   `json:"construct"`
	Owner     PlayerID `json:"owner"`
	Type      string   `json:"type"`
	Tick      uint64   `json:"tick"`
}

// publishEvent отправляет событие в глобальную шину. Ошибки публикации
// логируются и не прерывают тик: шина — best-effort потребитель.
func (w *World) publishEvent(eventType string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error("ошибка сериализации события %s: %v", eventType, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ev := &eventbus.Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    "arena",
		EventType: eventType,
		Version:   1,
		Payload:   data,
	}
	if err := eventbus.Publish(ctx, ev); err != nil {
		w.logger.Warn("событие %s не опубликовано: %v", eventType, err)
	}
}
