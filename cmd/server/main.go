package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Foghrye4/CubicChunks/internal/api"
	"github.com/Foghrye4/CubicChunks/internal/config"
	"github.com/Foghrye4/CubicChunks/internal/eventbus"
	"github.com/Foghrye4/CubicChunks/internal/logging"
	"github.com/Foghrye4/CubicChunks/internal/network"
	"github.com/Foghrye4/CubicChunks/internal/observability"
	"github.com/Foghrye4/CubicChunks/internal/storage"
	"github.com/Foghrye4/CubicChunks/internal/vec"
	"github.com/Foghrye4/CubicChunks/internal/world"
)

// worldRules адаптирует конфигурацию к правилам мира
type worldRules struct {
	cfg config.WorldConfig
}

func (r worldRules) CanRespawnHere() bool           { return r.cfg.CanRespawnHere }
func (r worldRules) SpectatorsGenerateChunks() bool { return r.cfg.SpectatorsGenerateChunks }

// playerEvent — подключение или отключение игрока, перенесённое в поток симуляции
type playerEvent struct {
	playerID uint64
	joined   bool
}

// Точка появления новых игроков в блочных координатах
var defaultSpawn = vec.Vec3Float{X: 8, Y: 72, Z: 8}

// drainPlayerEvents применяет накопленные сессионные события к планировщику
// и публикует их в шину для соседних узлов
func drainPlayerEvents(ctx context.Context, events <-chan playerEvent, online map[uint64]*world.Player,
	pcm *world.PlayerCubeMap, positions storage.PositionRepository,
	bus eventbus.EventBus, nodeName string, logger *logging.Logger) {
	for {
		select {
		case ev := <-events:
			if ev.joined {
				spawnPos := defaultSpawn
				if saved, err := positions.LoadPosition(ev.playerID); err != nil {
					logger.Warn("Позиция игрока %d не загружена: %v", ev.playerID, err)
				} else if saved != nil {
					spawnPos = saved.Position
				}
				p := &world.Player{ID: ev.playerID, UUID: uuid.New(), Pos: spawnPos}
				online[ev.playerID] = p
				pcm.AddPlayer(p)
				publishPlayerEvent(ctx, bus, nodeName, eventbus.EventPlayerJoined, ev.playerID, logger)
			} else {
				if p, ok := online[ev.playerID]; ok {
					savePlayerPosition(positions, p, logger)
					delete(online, ev.playerID)
				}
				pcm.RemovePlayer(ev.playerID)
				publishPlayerEvent(ctx, bus, nodeName, eventbus.EventPlayerLeft, ev.playerID, logger)
			}
		default:
			return
		}
	}
}

func publishPlayerEvent(ctx context.Context, bus eventbus.EventBus, nodeName, eventType string,
	playerID uint64, logger *logging.Logger) {
	payload, _ := json.Marshal(map[string]uint64{"player_id": playerID})
	if err := bus.Publish(ctx, eventbus.NewEnvelope(nodeName, eventType, payload)); err != nil {
		logger.Warn("Событие %s для игрока %d не опубликовано: %v", eventType, playerID, err)
	}
}

func savePlayerPosition(positions storage.PositionRepository, p *world.Player, logger *logging.Logger) {
	err := positions.SavePosition(&storage.PlayerPosition{
		PlayerID:  p.ID,
		Position:  p.Pos,
		Dimension: "overworld",
	})
	if err != nil {
		logger.Warn("Позиция игрока %d не сохранена: %v", p.ID, err)
	}
}

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации")
	flag.Parse()

	logger := logging.GetComponentLogger("server")
	defer logging.GetLoggerManager().CloseAll()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger.Info("Запуск сервера кубического мира (seed=%d)", cfg.World.Seed)

	// === Телеметрия ===
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := observability.InitTelemetry(ctx, "cubicchunks-server")
	if err != nil {
		logger.Warn("Телеметрия не инициализирована: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// === Хранилище ===
	store, err := openStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Ошибка открытия хранилища: %v", err)
	}
	defer store.Close()

	// === Позиции игроков ===
	positions, err := openPositionRepo(cfg.Redis, logger)
	if err != nil {
		log.Fatalf("Ошибка подключения репозитория позиций: %v", err)
	}
	defer positions.Close()

	// === Мир ===
	heights := world.NewHeightTracker()
	generator := world.NewPerlinGenerator(cfg.World.Seed)
	cache := world.NewCubeCache(store, generator, heights)

	serializer, err := network.NewZstdSerializer()
	if err != nil {
		log.Fatalf("Ошибка создания сериализатора: %v", err)
	}

	transport, err := network.NewKCPTransport()
	if err != nil {
		log.Fatalf("Ошибка создания транспорта: %v", err)
	}
	defer transport.Close()

	metrics := world.NewMetrics(nil)

	pcm := world.NewPlayerCubeMap(world.Config{
		HorizontalViewDistance:   cfg.World.HorizontalViewDistance,
		VerticalViewDistance:     cfg.World.VerticalViewDistance,
		MaxGeneratedCubesPerTick: cfg.World.MaxGeneratedCubesPerTick,
		GenerationDeadline:       cfg.World.GetGenerationDeadline(),
		MaxSentCubesPerTick:      cfg.World.MaxSentCubesPerTick,
		BlockDeltaLimit:          cfg.World.BlockDeltaLimit,
		IterationSeed:            cfg.World.Seed,
		Debug:                    cfg.World.Debug,
	}, world.Deps{
		Source:     cache,
		Serializer: serializer,
		Transport:  transport,
		Lighting:   heights,
		Rules:      worldRules{cfg: cfg.World},
		Metrics:    metrics,
	})

	// === Шина событий ===
	bus, err := openEventBus(cfg.NATS, logger)
	if err != nil {
		log.Fatalf("Ошибка подключения шины событий: %v", err)
	}
	defer bus.Close()

	nodeName, _ := os.Hostname()
	listener, err := eventbus.NewWorldListener(ctx, bus, nodeName)
	if err != nil {
		log.Fatalf("Ошибка подписки на события мира: %v", err)
	}
	defer listener.Close()

	// === Сетевой сервер ===
	// Сессионные колбэки приходят из сетевых горутин; планировщик принадлежит
	// потоку симуляции, поэтому события проходят через канал
	playerEvents := make(chan playerEvent, 256)
	gameAddr := fmt.Sprintf(":%d", cfg.Server.GetGamePort())
	kcpServer := network.NewKCPServer(gameAddr, transport, network.SessionHandlers{
		OnConnect:    func(id uint64) { playerEvents <- playerEvent{joined: true, playerID: id} },
		OnDisconnect: func(id uint64) { playerEvents <- playerEvent{playerID: id} },
	})
	if err := kcpServer.Start(); err != nil {
		log.Fatalf("Ошибка запуска игрового сервера: %v", err)
	}
	defer kcpServer.Stop()

	// === REST API ===
	restServer := api.NewRestServer(api.Config{
		Port:  fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
		World: pcm,
		Cache: cache,
	})
	restServer.Start()

	logger.Info("Все сервисы запущены: игра %s, REST :%d", gameAddr, cfg.Server.GetRESTPort())

	// === Цикл симуляции ===
	tickInterval := time.Second / time.Duration(cfg.World.GetTickRate())
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	onlinePlayers := make(map[uint64]*world.Player)

loop:
	for {
		select {
		case <-ticker.C:
			drainPlayerEvents(ctx, playerEvents, onlinePlayers, pcm, positions, bus, nodeName, logger)
			listener.Drain(pcm)
			pcm.Tick()
		case sig := <-sigCh:
			logger.Info("Получен сигнал %v, завершение работы...", sig)
			break loop
		}
	}

	for _, p := range onlinePlayers {
		savePlayerPosition(positions, p, logger)
	}

	// === Graceful shutdown ===
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := cache.SaveAll(); err != nil {
		logger.Error("Ошибка сохранения мира при остановке: %v", err)
	}
	if err := restServer.Stop(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки REST API: %v", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки телеметрии: %v", err)
	}

	logger.Info("Сервер остановлен")
}

// openStore открывает постоянное или in-memory хранилище по конфигурации
func openStore(cfg config.StorageConfig) (world.CubeStore, error) {
	if cfg.InMemory {
		return storage.NewInMemoryCubeStore()
	}
	return storage.NewBadgerCubeStore(cfg.GetDataPath())
}

// openPositionRepo подключает Redis или in-memory репозиторий позиций
func openPositionRepo(cfg config.RedisConfig, logger *logging.Logger) (storage.PositionRepository, error) {
	if !cfg.Enabled {
		logger.Info("Redis выключен, позиции игроков хранятся в памяти")
		return storage.NewMemoryPositionRepository(), nil
	}
	return storage.NewRedisPositionRepository(&storage.RedisConfig{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		KeyPrefix: "cc:pos:",
		TTL:       24 * time.Hour,
	})
}

// openEventBus подключает JetStream или локальную шину
func openEventBus(cfg config.NATSConfig, logger *logging.Logger) (eventbus.EventBus, error) {
	if !cfg.Enabled {
		logger.Info("NATS выключен, используется шина в памяти")
		return eventbus.NewMemoryBus(1024), nil
	}
	return eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, 24*time.Hour)
}
