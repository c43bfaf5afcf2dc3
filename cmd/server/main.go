package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/arena-server/internal/api"
	"github.com/annel0/arena-server/internal/arena"
	"github.com/annel0/arena-server/internal/auth"
	"github.com/annel0/arena-server/internal/cache"
	"github.com/annel0/arena-server/internal/config"
	"github.com/annel0/arena-server/internal/eventbus"
	"github.com/annel0/arena-server/internal/history"
	"github.com/annel0/arena-server/internal/logging"
	"github.com/annel0/arena-server/internal/network"
	"github.com/annel0/arena-server/internal/observability"
	"github.com/annel0/arena-server/internal/protocol"
	"github.com/annel0/arena-server/internal/storage"
)

func main() {
	// Инициализируем систему логирования (используем новый API)
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🎮 Запуск Arena Server: авторитарная симуляция, JWT аутентификация, REST API...")

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load("")
	if err != nil {
		logging.Error("❌ Ошибка чтения конфигурации: %v", err)
		log.Fatalf("❌ Ошибка чтения конфигурации: %v", err)
	}
	if cfg == nil {
		cfg = &config.Config{}
		logging.Info("⚠️  Конфиг не задан (ARENA_CONFIG), используются значения по умолчанию")
	}
	cfg.Arena.Normalize()

	tcpAddr := fmt.Sprintf(":%d", cfg.Server.GetTCPPort())
	kcpAddr := fmt.Sprintf(":%d", cfg.Server.GetKCPPort())
	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	metricsAddr := fmt.Sprintf(":%d", cfg.Server.GetMetricsPort())

	logging.Info("📡 Конфигурация сервера: TCP=%s, KCP=%s, REST API=%s, метрики=%s",
		tcpAddr, kcpAddr, restPort, metricsAddr)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// === OPENTELEMETRY ===
	if os.Getenv("ARENA_OTEL") == "1" {
		shutdownTelemetry, err := observability.InitTelemetry(rootCtx, "arena-server")
		if err != nil {
			logging.Error("⚠️  OpenTelemetry не инициализирован: %v", err)
		} else {
			defer func() {
				if err := shutdownTelemetry(context.Background()); err != nil {
					logging.Error("Ошибка остановки OpenTelemetry: %v", err)
				}
			}()
		}
	}

	// === ШИНА СОБЫТИЙ ===
	var bus eventbus.EventBus
	var jetBus *eventbus.JetStreamBus
	if cfg.EventBus.URL != "" {
		jetBus, err = eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream,
			time.Duration(cfg.EventBus.Retention)*time.Hour)
		if err != nil {
			logging.Error("⚠️  NATS JetStream недоступен (%v), используется шина в памяти", err)
			bus = eventbus.NewMemoryBus(1024)
		} else {
			logging.Info("✅ Шина событий: NATS JetStream %s", cfg.EventBus.URL)
			bus = jetBus
		}
	} else {
		bus = eventbus.NewMemoryBus(1024)
		logging.Info("⚠️  Шина событий работает в памяти процесса")
	}
	eventbus.Init(bus)

	busMetrics := eventbus.NewMetricsExporter(bus)
	busMetrics.StartHTTP(metricsAddr)

	// === СТАТИСТИКА ИГРОКОВ ===
	var statsRepo storage.StatsRepo
	switch {
	case cfg.Redis.Addr != "":
		redisRepo, err := storage.NewRedisStatsRepo(&storage.RedisStatsConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logging.Error("⚠️  Redis недоступен (%v), статистика в памяти", err)
			statsRepo = storage.NewMemoryStatsRepo()
			break
		}
		logging.Info("✅ Статистика игроков: Redis %s", cfg.Redis.Addr)
		statsRepo = redisRepo

		// Таблица лидеров горячая, кешируем её рядом со статистикой.
		// Инвалидация между инстансами идёт через NATS, если он настроен.
		var invalidator cache.CacheInvalidator
		if cfg.EventBus.URL != "" {
			invalidator, err = cache.NewNATSInvalidator(&cache.InvalidatorConfig{NATSURL: cfg.EventBus.URL},
				fmt.Sprintf("arena-%d", os.Getpid()))
			if err != nil {
				logging.Error("⚠️  NATS инвалидатор кеша недоступен: %v", err)
				invalidator = nil
			}
		}
		leaderCache, err := cache.NewRedisCache(&cache.CacheConfig{
			RedisURL:      cfg.Redis.Addr,
			RedisPassword: cfg.Redis.Password,
			RedisDB:       cfg.Redis.DB,
		}, nil, invalidator)
		if err != nil {
			logging.Error("⚠️  Кеш таблицы лидеров не создан: %v", err)
		} else {
			statsRepo = storage.NewCachedStatsRepo(redisRepo, leaderCache)
		}
	case cfg.Maria.DSN != "":
		mariaRepo, err := storage.NewMariaStatsRepo(cfg.Maria.DSN)
		if err != nil {
			logging.Error("⚠️  MariaDB недоступна (%v), статистика в памяти", err)
			statsRepo = storage.NewMemoryStatsRepo()
		} else {
			logging.Info("✅ Статистика игроков: MariaDB")
			statsRepo = mariaRepo
		}
	default:
		statsRepo = storage.NewMemoryStatsRepo()
		logging.Info("⚠️  Статистика игроков хранится в памяти процесса")
	}

	statsSink := storage.NewBufferedStatsSink(statsRepo, 2*time.Second)

	// === ЛЕНТА ФРАГОВ ===
	historyPath := cfg.History.Path
	if historyPath == "" {
		historyPath = "data"
	}
	killHistory, err := history.NewStore(historyPath)
	if err != nil {
		logging.Error("❌ Не удалось открыть ленту фрагов: %v", err)
		log.Fatalf("❌ Не удалось открыть ленту фрагов: %v", err)
	}
	historySub, err := killHistory.AttachToBus(rootCtx)
	if err != nil {
		logging.Error("⚠️  Лента фрагов не подписана на шину: %v", err)
	} else {
		defer historySub.Unsubscribe()
	}

	// === МИР АРЕНЫ ===
	world := arena.NewWorld(arena.Options{
		TickInterval: time.Second / time.Duration(cfg.Arena.TickRate),
		Bounds:       arena.Bounds{Width: cfg.Arena.WorldWidth, Height: cfg.Arena.WorldHeight},
		Seed:         cfg.Arena.Seed,
		WallCount:    cfg.Arena.WallCount,
		Stats:        statsSink,
	})

	// === REST API ===
	apiConfig := api.IntegrationConfig{
		RestPort:    restPort,
		UserBackend: cfg.Auth.GetBackend(),
		MariaConfig: auth.MariaConfig{
			Host:     "localhost",
			Port:     3306,
			Database: "arena",
		},
		MongoConfig: auth.MongoConfig{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
		},
		StatsRepo: statsRepo,
		History:   killHistory,
		World:     world,
	}

	apiIntegration, err := api.NewServerIntegration(apiConfig)
	if err != nil {
		logging.Error("❌ Ошибка создания REST API интеграции: %v", err)
		log.Fatalf("❌ Ошибка создания REST API интеграции: %v", err)
	}
	if err := apiIntegration.Start(); err != nil {
		logging.Error("❌ Ошибка запуска REST API: %v", err)
		log.Fatalf("❌ Ошибка запуска REST API: %v", err)
	}

	// Исходящие webhook'и получают события арены из шины
	webhookSub, err := apiIntegration.GetOutboundWebhooks().AttachToBus(rootCtx)
	if err != nil {
		logging.Error("⚠️  Webhook'и не подписаны на шину: %v", err)
	} else {
		defer webhookSub.Unsubscribe()
	}

	// === ИГРОВОЙ СЕРВЕР ===
	// Репозиторий пользователей общий для игры и REST API
	serverInfo := &protocol.ServerInfo{
		Version:         "v0.1.0",
		Environment:     "development",
		RestAPIEndpoint: "http://localhost" + restPort,
		TickRate:        cfg.Arena.TickRate,
	}
	gameAuth := auth.NewGameAuthenticator(apiIntegration.GetUserRepository(),
		[]byte(os.Getenv("ARENA_JWT_SECRET")), serverInfo)

	gameServer := network.NewGameServer(world, gameAuth)

	broadcaster, err := network.NewSnapshotBroadcaster(gameServer)
	if err != nil {
		logging.Error("❌ Ошибка создания рассыльщика снапшотов: %v", err)
		log.Fatalf("❌ Ошибка создания рассыльщика снапшотов: %v", err)
	}
	world.SetBroadcaster(broadcaster)

	tcpServer, err := network.NewTCPServer(tcpAddr, gameServer)
	if err != nil {
		logging.Error("❌ Ошибка создания TCP сервера: %v", err)
		log.Fatalf("❌ Ошибка создания TCP сервера: %v", err)
	}
	kcpServer, err := network.NewKCPServer(kcpAddr, gameServer)
	if err != nil {
		logging.Error("❌ Ошибка создания KCP сервера: %v", err)
		log.Fatalf("❌ Ошибка создания KCP сервера: %v", err)
	}

	// Запускаем симуляцию и приём соединений
	worldCtx, worldCancel := context.WithCancel(rootCtx)
	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		world.Run(worldCtx)
	}()

	tcpServer.Start()
	kcpServer.Start()

	logging.Info("✅ Все сервисы запущены и готовы принимать соединения")
	logging.Info("   🎮 Игровой трафик: TCP %s, KCP %s", tcpAddr, kcpAddr)
	logging.Info("   🌐 REST API: http://localhost%s", restPort)
	logging.Info("   📈 Метрики: http://localhost%s/metrics", metricsAddr)
	logging.Info("   🔐 JWT аутентификация активирована")
	logging.Info("   ❤️  Health check: http://localhost%s/health", restPort)

	// Примеры использования REST API
	logging.Info("💡 Примеры использования REST API:")
	logging.Info("   curl http://localhost%s/health", restPort)
	logging.Info("   curl http://localhost%s/api/leaderboard", restPort)
	logging.Info("   curl -X POST http://localhost%s/api/auth/login -H 'Content-Type: application/json' -d '{\"username\":\"admin\",\"password\":\"admin\"}'", restPort)

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Ждем сигнала для завершения
	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===

	// Сначала перестаём принимать новые соединения и кадры
	tcpServer.Stop()
	kcpServer.Stop()
	gameServer.Stop()

	// Останавливаем симуляцию и ждём завершения тика
	worldCancel()
	<-worldDone
	broadcaster.Close()

	// Досбрасываем статистику и закрываем хранилища
	if err := statsSink.Close(); err != nil {
		logging.Error("❌ Ошибка сброса статистики: %v", err)
	}
	if closer, ok := statsRepo.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logging.Error("❌ Ошибка закрытия хранилища статистики: %v", err)
		}
	}
	if err := killHistory.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия ленты фрагов: %v", err)
	}

	// Останавливаем REST API
	if err := apiIntegration.Stop(); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}

	busMetrics.Stop()
	if jetBus != nil {
		jetBus.Close()
	}

	logging.Info("👋 Сервер успешно остановлен")
}
