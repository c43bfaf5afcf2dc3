package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/annel0/arena-server/internal/eventbus"
	"github.com/annel0/arena-server/internal/history"
)

const timeFormat = "2006-01-02T15:04:05Z"

func main() {
	var (
		command    = flag.String("cmd", "tail", "Command: tail, kills, send")
		natsURL    = flag.String("nats", "nats://localhost:4222", "NATS server URL")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		sources    = flag.String("sources", "", "Sources filter (comma-separated)")
		dataPath   = flag.String("data", "data", "History data directory (kills command)")
		killer     = flag.Uint64("killer", 0, "Filter kills by killer ID")
		victim     = flag.Uint64("victim", 0, "Filter kills by victim ID")
		since      = flag.String("since", "1h", "Time duration since now (e.g., 1h, 30m)")
		until      = flag.String("until", "", "End time (RFC3339 format)")
		limit      = flag.Int("limit", 50, "Maximum number of records")
		sendType   = flag.String("type", "system_alert", "Event type for send command")
		payload    = flag.String("payload", "{}", "JSON payload for send command")
	)
	flag.Parse()

	switch *command {
	case "tail":
		if err := tailEvents(*natsURL, parseStringList(*eventTypes), parseStringList(*sources)); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}

	case "kills":
		if err := showKills(*dataPath, history.Query{
			Killer: *killer,
			Victim: *victim,
			Limit:  *limit,
		}, *since, *until); err != nil {
			log.Fatalf("❌ Kills failed: %v", err)
		}

	case "send":
		if err := sendEvent(*natsURL, *sendType, *payload); err != nil {
			log.Fatalf("❌ Send failed: %v", err)
		}

	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, kills, send")
		os.Exit(1)
	}
}

// tailEvents подписывается на шину и печатает события до Ctrl+C
func tailEvents(natsURL string, types, sources []string) error {
	bus, err := eventbus.NewJetStreamBus(natsURL, "ARENA_EVENTS", 24*time.Hour)
	if err != nil {
		return fmt.Errorf("не удалось подключиться к NATS: %w", err)
	}
	defer bus.Close()

	fmt.Printf("🎬 Tailing events (types: %v, sources: %v)\n", types, sources)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	count := 0
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: types, Sources: sources},
		func(ctx context.Context, ev *eventbus.Envelope) {
			printEvent(ev)
			count++
		})
	if err != nil {
		return fmt.Errorf("не удалось подписаться: %w", err)
	}
	defer sub.Unsubscribe()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Printf("\n📊 Total events: %d\n", count)
	return nil
}

// showKills читает ленту фрагов напрямую из BadgerDB.
// Сервер должен быть остановлен: база открывается эксклюзивно.
func showKills(dataPath string, q history.Query, since, until string) error {
	endTime := time.Now()
	if until != "" {
		var err error
		endTime, err = time.Parse(timeFormat, until)
		if err != nil {
			return fmt.Errorf("invalid until time: %w", err)
		}
		q.Until = endTime
	}

	startTime, err := parseSinceTime(since, endTime)
	if err != nil {
		return fmt.Errorf("invalid since time: %w", err)
	}
	q.Since = startTime

	store, err := history.NewStore(dataPath)
	if err != nil {
		return fmt.Errorf("не удалось открыть хранилище: %w", err)
	}
	defer store.Close()

	records, err := store.Find(q)
	if err != nil {
		return fmt.Errorf("ошибка запроса: %w", err)
	}

	fmt.Printf("💀 Kill feed (%s — %s)\n", startTime.Format(timeFormat), endTime.Format(timeFormat))
	for _, rec := range records {
		killer := "среда"
		if rec.Killer != 0 {
			killer = fmt.Sprintf("player %d", rec.Killer)
		}
		fmt.Printf("[%s] tick=%d %s ➡️ player %d (bullet %d)\n",
			rec.Timestamp.Format("15:04:05"), rec.Tick, killer, rec.Victim, rec.BulletID)
	}
	fmt.Printf("\n📊 Total kills: %d\n", len(records))
	return nil
}

// sendEvent публикует одно событие в шину (для отладки подписчиков)
func sendEvent(natsURL, eventType, payload string) error {
	if !json.Valid([]byte(payload)) {
		return fmt.Errorf("payload не является корректным JSON")
	}

	bus, err := eventbus.NewJetStreamBus(natsURL, "ARENA_EVENTS", 24*time.Hour)
	if err != nil {
		return fmt.Errorf("не удалось подключиться к NATS: %w", err)
	}
	defer bus.Close()

	ev := &eventbus.Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    "event-cli",
		EventType: eventType,
		Version:   1,
		Priority:  5,
		Payload:   []byte(payload),
	}

	if err := bus.Publish(context.Background(), ev); err != nil {
		return fmt.Errorf("ошибка публикации: %w", err)
	}

	fmt.Printf("✅ Событие %s опубликовано (id=%s)\n", eventType, ev.ID)
	return nil
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	timestamp := ev.Timestamp.Format("15:04:05")
	fmt.Printf("[%s] %s [%s] %s\n", timestamp, ev.Source, ev.EventType, ev.ID)

	if len(ev.Payload) > 0 {
		var pretty map[string]any
		if json.Unmarshal(ev.Payload, &pretty) == nil {
			for k, v := range pretty {
				fmt.Printf("  %s: %v\n", k, v)
			}
		}
	}
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m"
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return from, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		// Пробуем парсить как абсолютное время
		return time.Parse(timeFormat, since)
	}

	return from.Add(-duration), nil
}
