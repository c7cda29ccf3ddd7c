package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Foghrye4/CubicChunks/internal/vec"
)

// MockStore реализует CubeStore в памяти.
type MockStore struct {
	cubes   map[vec.Vec3]*Cube
	columns map[vec.Vec2]*Column
}

func NewMockStore() *MockStore {
	return &MockStore{
		cubes:   make(map[vec.Vec3]*Cube),
		columns: make(map[vec.Vec2]*Column),
	}
}

func (m *MockStore) TryLoadCube(pos vec.Vec3) (*Cube, error)       { return m.cubes[pos], nil }
func (m *MockStore) TryLoadColumn(pos vec.Vec2) (*Column, error)   { return m.columns[pos], nil }
func (m *MockStore) SaveCube(cube *Cube) error                     { m.cubes[cube.Coords] = cube; return nil }
func (m *MockStore) SaveColumn(column *Column) error               { m.columns[column.Coords] = column; return nil }
func (m *MockStore) Close() error                                  { return nil }

// MockGenerator мгновенно выдаёт полностью готовое содержимое.
type MockGenerator struct {
	cubesGenerated   int
	columnsGenerated int
}

func (m *MockGenerator) GenerateCube(pos vec.Vec3) (*Cube, error) {
	m.cubesGenerated++
	cube := NewCube(pos)
	cube.FullyPopulated = true
	cube.InitialLightDone = true
	return cube, nil
}

func (m *MockGenerator) GenerateColumn(pos vec.Vec2) (*Column, error) {
	m.columnsGenerated++
	return NewColumn(pos), nil
}

// MockTransport записывает все переданные батчи.
type MockTransport struct {
	batches map[uint64][][]CubeMessage
	sendErr error
}

func NewMockTransport() *MockTransport {
	return &MockTransport{batches: make(map[uint64][][]CubeMessage)}
}

func (m *MockTransport) SendBatch(playerID uint64, batch []CubeMessage) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	copied := make([]CubeMessage, len(batch))
	copy(copied, batch)
	m.batches[playerID] = append(m.batches[playerID], copied)
	return nil
}

// messagesOfKind возвращает все сообщения указанного типа, полученные игроком
func (m *MockTransport) messagesOfKind(playerID uint64, kind MessageKind) []CubeMessage {
	var result []CubeMessage
	for _, batch := range m.batches[playerID] {
		for _, msg := range batch {
			if msg.Kind == kind {
				result = append(result, msg)
			}
		}
	}
	return result
}

// MockRules — управляемые правила мира.
type MockRules struct {
	respawn            bool
	spectatorsGenerate bool
}

func (m *MockRules) CanRespawnHere() bool           { return m.respawn }
func (m *MockRules) SpectatorsGenerateChunks() bool { return m.spectatorsGenerate }

// MockSerializer кодирует содержимое в односложные маркеры.
type MockSerializer struct{}

func (MockSerializer) EncodeCube(cube *Cube) ([]byte, error)     { return []byte{0xC}, nil }
func (MockSerializer) EncodeColumn(column *Column) ([]byte, error) { return []byte{0xA}, nil }
func (MockSerializer) EncodeBlockDeltas(cube *Cube, addresses []uint16) ([]byte, error) {
	return make([]byte, len(addresses)), nil
}

type testWorld struct {
	pcm       *PlayerCubeMap
	cache     *CubeCache
	store     *MockStore
	generator *MockGenerator
	transport *MockTransport
	rules     *MockRules
}

func newTestWorld(cfg Config) *testWorld {
	cfg.Debug = true
	store := NewMockStore()
	generator := &MockGenerator{}
	heights := NewHeightTracker()
	cache := NewCubeCache(store, generator, heights)
	transport := NewMockTransport()
	rules := &MockRules{respawn: true}

	pcm := NewPlayerCubeMap(cfg, Deps{
		Source:     cache,
		Serializer: MockSerializer{},
		Transport:  transport,
		Lighting:   heights,
		Rules:      rules,
	})
	return &testWorld{
		pcm:       pcm,
		cache:     cache,
		store:     store,
		generator: generator,
		transport: transport,
		rules:     rules,
	}
}

func newTestPlayer(id uint64, blockX, blockY, blockZ float64) *Player {
	return &Player{
		ID:  id,
		Pos: vec.Vec3Float{X: blockX, Y: blockY, Z: blockZ},
	}
}

func TestAddPlayerCreatesVisibility(t *testing.T) {
	w := newTestWorld(Config{HorizontalViewDistance: 3, VerticalViewDistance: 3})
	p := newTestPlayer(1, 8, 8, 8)

	w.pcm.AddPlayer(p)

	stats := w.pcm.Stats()
	assert.Equal(t, 1, stats.Players)
	assert.Equal(t, 7*7*7, stats.CubeWatchers, "Кубоид видимости 7x7x7")
	assert.Equal(t, 7*7, stats.ColumnWatchers, "Квадрат видимости 7x7")
	assert.Equal(t, 7*7*7, stats.CubesToGenerate, "Пустой мир: все кубы ждут генерации")
	assert.Equal(t, 7*7*7, stats.CubesToSend, "Кубы всегда встают в очередь отправки")
	assert.Equal(t, 7*7, stats.ColumnsToGenerate)

	assert.False(t, w.pcm.IsPlayerWatchingCube(1, vec.Vec3{}),
		"Куб ещё не отправлен игроку")
}

func TestAddPlayerTwiceIsIgnored(t *testing.T) {
	w := newTestWorld(Config{HorizontalViewDistance: 3, VerticalViewDistance: 3})
	p := newTestPlayer(1, 8, 8, 8)
	w.pcm.AddPlayer(p)
	w.pcm.AddPlayer(p)

	stats := w.pcm.Stats()
	assert.Equal(t, 1, stats.Players)
	assert.Equal(t, 7*7*7, stats.CubeWatchers)
}

func TestTickGeneratesAndSendsAll(t *testing.T) {
	w := newTestWorld(Config{
		HorizontalViewDistance:   3,
		VerticalViewDistance:     3,
		MaxGeneratedCubesPerTick: 1000,
		MaxSentCubesPerTick:      1000,
	})
	p := newTestPlayer(1, 8, 8, 8)
	w.pcm.AddPlayer(p)

	w.pcm.Tick()

	stats := w.pcm.Stats()
	assert.Zero(t, stats.CubesToGenerate, "Бюджет покрывает всю очередь генерации")
	assert.Zero(t, stats.CubesToSend)
	assert.Zero(t, stats.ColumnsToGenerate, "Очередь колонок выгребается полностью")
	assert.Zero(t, stats.ColumnsToSend)

	fullCubes := w.transport.messagesOfKind(1, MessageCubeFull)
	columns := w.transport.messagesOfKind(1, MessageColumn)
	assert.Len(t, fullCubes, 7*7*7, "Игрок должен получить каждый куб один раз")
	assert.Len(t, columns, 7*7, "Игрок должен получить каждую колонку один раз")

	assert.True(t, w.pcm.IsPlayerWatchingCube(1, vec.Vec3{}))
	assert.True(t, w.pcm.IsPlayerWatchingColumn(1, vec.Vec2{}))

	// Повторный тик ничего не шлёт: состояние игрока актуально
	w.pcm.Tick()
	assert.Len(t, w.transport.messagesOfKind(1, MessageCubeFull), 7*7*7)
}

func TestGenerationBudgetPreservesOrder(t *testing.T) {
	w := newTestWorld(Config{
		HorizontalViewDistance:   3,
		VerticalViewDistance:     3,
		MaxGeneratedCubesPerTick: 2,
	})
	w.pcm.AddPlayer(newTestPlayer(1, 8, 8, 8))

	before := w.pcm.Stats().CubesToGenerate
	expectedRemaining := append([]*CubeWatcher{}, w.pcm.cubesToGenerate[2:]...)

	w.pcm.Tick()

	stats := w.pcm.Stats()
	assert.Equal(t, before-2, stats.CubesToGenerate, "За тик генерируется ровно бюджет")
	assert.Equal(t, 2, w.generator.cubesGenerated)
	assert.Equal(t, expectedRemaining, w.pcm.cubesToGenerate,
		"Относительный порядок оставшихся должен сохраняться")
}

func TestMovePlayerAcrossCubeBoundary(t *testing.T) {
	w := newTestWorld(Config{
		HorizontalViewDistance:   3,
		VerticalViewDistance:     3,
		MaxGeneratedCubesPerTick: 1000,
	})
	p := newTestPlayer(1, 8, 8, 8)
	w.pcm.AddPlayer(p)
	w.pcm.Tick()

	// Шаг через границу куба по x
	p.Pos.X += 16
	w.pcm.UpdateMovingPlayer(1)

	stats := w.pcm.Stats()
	assert.Equal(t, 7*7*7, stats.CubeWatchers, "Число наблюдателей не меняется при сдвиге")
	assert.Equal(t, 7*7, stats.ColumnWatchers)

	assert.Nil(t, w.pcm.GetCubeWatcher(vec.Vec3{X: -3, Y: 0, Z: 0}),
		"Покинутая грань должна быть утилизирована")
	require.NotNil(t, w.pcm.GetCubeWatcher(vec.Vec3{X: 4, Y: 0, Z: 0}),
		"Новая грань должна появиться")

	// Повторный вызов без перемещения — no-op
	cubesToSend := stats.CubesToSend
	w.pcm.UpdateMovingPlayer(1)
	assert.Equal(t, cubesToSend, w.pcm.Stats().CubesToSend)
}

func TestMoveWithinCubeIsNoop(t *testing.T) {
	w := newTestWorld(Config{
		HorizontalViewDistance:   3,
		VerticalViewDistance:     3,
		MaxGeneratedCubesPerTick: 1000,
	})
	p := newTestPlayer(1, 8, 8, 8)
	w.pcm.AddPlayer(p)
	w.pcm.Tick()

	p.Pos.X += 5
	p.Pos.Z -= 7
	w.pcm.UpdateMovingPlayer(1)

	stats := w.pcm.Stats()
	assert.Zero(t, stats.CubesToGenerate, "Движение внутри куба не трогает видимость")
	assert.Zero(t, stats.CubesToSend)
}

func TestUpdateMovingUnknownPlayerIsSafe(t *testing.T) {
	w := newTestWorld(Config{HorizontalViewDistance: 3, VerticalViewDistance: 3})
	assert.NotPanics(t, func() { w.pcm.UpdateMovingPlayer(99) })
}

func TestSetViewDistanceGrowAndShrink(t *testing.T) {
	w := newTestWorld(Config{HorizontalViewDistance: 5, VerticalViewDistance: 5})
	w.pcm.AddPlayer(newTestPlayer(1, 8, 8, 8))
	require.Equal(t, 11*11*11, w.pcm.Stats().CubeWatchers)

	w.pcm.SetViewDistance(3, 3)

	stats := w.pcm.Stats()
	assert.Equal(t, 7*7*7, stats.CubeWatchers, "Сжатие обзора выгружает разность")
	assert.Equal(t, 7*7, stats.ColumnWatchers)
	assert.Equal(t, 7*7*7, stats.CubesToGenerate,
		"Утилизированные наблюдатели должны покинуть очередь генерации")

	w.pcm.SetViewDistance(4, 4)
	assert.Equal(t, 9*9*9, w.pcm.Stats().CubeWatchers, "Рост обзора только добавляет")
}

func TestSetViewDistanceClamp(t *testing.T) {
	w := newTestWorld(Config{HorizontalViewDistance: 5, VerticalViewDistance: 5})
	w.pcm.SetViewDistance(1, 100)
	h, v := w.pcm.ViewDistances()
	assert.Equal(t, MinViewDistance, h)
	assert.Equal(t, MaxViewDistance, v)
}

func TestSetViewDistanceOppositeDirections(t *testing.T) {
	w := newTestWorld(Config{HorizontalViewDistance: 4, VerticalViewDistance: 4})
	w.pcm.AddPlayer(newTestPlayer(1, 8, 8, 8))

	// Горизонталь растёт, вертикаль сжимается: применяется по одной оси
	w.pcm.SetViewDistance(6, 3)

	stats := w.pcm.Stats()
	assert.Equal(t, 13*13*7, stats.CubeWatchers)
	assert.Equal(t, 13*13, stats.ColumnWatchers)
}

func TestRemovePlayerDisposesEverything(t *testing.T) {
	w := newTestWorld(Config{
		HorizontalViewDistance:   3,
		VerticalViewDistance:     3,
		MaxGeneratedCubesPerTick: 1000,
	})
	w.pcm.AddPlayer(newTestPlayer(1, 8, 8, 8))
	w.pcm.Tick()

	w.pcm.RemovePlayer(1)

	stats := w.pcm.Stats()
	assert.Zero(t, stats.Players)
	assert.Zero(t, stats.CubeWatchers, "Пустые наблюдатели утилизируются немедленно")
	assert.Zero(t, stats.ColumnWatchers)
	assert.Zero(t, stats.CubesToGenerate)
	assert.Zero(t, stats.CubesToSend)
	assert.Zero(t, stats.ColumnsToGenerate)
	assert.Zero(t, stats.ColumnsToSend)
	assert.Empty(t, w.pcm.PendingWorkWatchers())
}

func TestRemoveUnknownPlayerIsSafe(t *testing.T) {
	w := newTestWorld(Config{HorizontalViewDistance: 3, VerticalViewDistance: 3})
	assert.NotPanics(t, func() { w.pcm.RemovePlayer(42) })
}

func TestEmptyWorldUnloadsContent(t *testing.T) {
	w := newTestWorld(Config{
		HorizontalViewDistance:   3,
		VerticalViewDistance:     3,
		MaxGeneratedCubesPerTick: 1000,
	})
	w.rules.respawn = false
	w.pcm.AddPlayer(newTestPlayer(1, 8, 8, 8))
	w.pcm.Tick()
	require.Positive(t, w.cache.LoadedCubes())

	w.pcm.RemovePlayer(1)
	w.pcm.Tick()

	assert.Zero(t, w.cache.LoadedCubes(), "Без игроков и точки возрождения мир выгружается")
	assert.Zero(t, w.cache.LoadedColumns())
	assert.NotEmpty(t, w.store.cubes, "Выгрузка обязана сначала сохранить содержимое")
}

func TestSpectatorDoesNotTriggerGeneration(t *testing.T) {
	w := newTestWorld(Config{
		HorizontalViewDistance:   3,
		VerticalViewDistance:     3,
		MaxGeneratedCubesPerTick: 1000,
	})
	spectator := newTestPlayer(1, 8, 8, 8)
	spectator.Spectator = true
	w.pcm.AddPlayer(spectator)

	w.pcm.Tick()
	stats := w.pcm.Stats()
	assert.Equal(t, 7*7*7, stats.CubesToGenerate,
		"Спектатор не инициирует генерацию при выключенном правиле")
	assert.Equal(t, 7*7, stats.ColumnsToGenerate)
	assert.Zero(t, w.generator.cubesGenerated)

	// Правило мира включает генерацию для спектаторов
	w.rules.spectatorsGenerate = true
	w.pcm.Tick()
	assert.Zero(t, w.pcm.Stats().CubesToGenerate)
}

func TestBlockChangeSendsDeltas(t *testing.T) {
	w := newTestWorld(Config{
		HorizontalViewDistance:   3,
		VerticalViewDistance:     3,
		MaxGeneratedCubesPerTick: 1000,
	})
	w.pcm.AddPlayer(newTestPlayer(1, 8, 8, 8))
	w.pcm.Tick()

	w.pcm.MarkBlockForUpdate(3, 4, 5)
	w.pcm.MarkBlockForUpdate(3, 4, 5) // Повтор того же блока не дублируется
	w.pcm.MarkBlockForUpdate(7, 0, 1)
	w.pcm.Tick()

	deltas := w.transport.messagesOfKind(1, MessageCubeDeltas)
	require.Len(t, deltas, 1, "Все изменения одного куба идут одним сообщением")
	assert.Len(t, deltas[0].Payload, 2, "Дубликат адреса должен схлопнуться")
	assert.Equal(t, 0, deltas[0].X)
	assert.Equal(t, 0, deltas[0].Y)
	assert.Equal(t, 0, deltas[0].Z)
}

func TestBlockChangeOutsideVisibilityIgnored(t *testing.T) {
	w := newTestWorld(Config{HorizontalViewDistance: 3, VerticalViewDistance: 3})
	w.pcm.AddPlayer(newTestPlayer(1, 8, 8, 8))

	assert.NotPanics(t, func() { w.pcm.MarkBlockForUpdate(10000, 0, 0) })
	assert.Zero(t, len(w.pcm.cubeWatchersToUpdate))
}

func TestBlockChangeOverflowResendsFullCube(t *testing.T) {
	w := newTestWorld(Config{
		HorizontalViewDistance:   3,
		VerticalViewDistance:     3,
		MaxGeneratedCubesPerTick: 1000,
		BlockDeltaLimit:          4,
	})
	w.pcm.AddPlayer(newTestPlayer(1, 8, 8, 8))
	w.pcm.Tick()
	fullBefore := len(w.transport.messagesOfKind(1, MessageCubeFull))

	for i := 0; i < 5; i++ {
		w.pcm.MarkBlockForUpdate(i, 0, 0)
	}
	w.pcm.Tick()

	assert.Empty(t, w.transport.messagesOfKind(1, MessageCubeDeltas),
		"Переполнение накопителя отменяет дельты")
	fullAfter := len(w.transport.messagesOfKind(1, MessageCubeFull))
	assert.Equal(t, fullBefore+1, fullAfter, "Куб пересылается целиком заново")
}

func TestHeightChangeResendsColumn(t *testing.T) {
	w := newTestWorld(Config{
		HorizontalViewDistance:   3,
		VerticalViewDistance:     3,
		MaxGeneratedCubesPerTick: 1000,
	})
	w.pcm.AddPlayer(newTestPlayer(1, 8, 8, 8))
	w.pcm.Tick()
	columnsBefore := len(w.transport.messagesOfKind(1, MessageColumn))

	w.pcm.HeightUpdated(3, 5)
	w.pcm.Tick()

	columnsAfter := len(w.transport.messagesOfKind(1, MessageColumn))
	assert.Equal(t, columnsBefore+1, columnsAfter,
		"Изменение высоты пересылает колонку целиком")
}

func TestInhabitedTimeAccumulates(t *testing.T) {
	w := newTestWorld(Config{
		HorizontalViewDistance:   3,
		VerticalViewDistance:     3,
		MaxGeneratedCubesPerTick: 1000,
		FullRefreshInterval:      2,
	})
	w.pcm.AddPlayer(newTestPlayer(1, 8, 8, 8))
	for i := 0; i < 6; i++ {
		w.pcm.Tick()
	}

	watcher := w.pcm.GetCubeWatcher(vec.Vec3{})
	require.NotNil(t, watcher)
	require.NotNil(t, watcher.Cube())
	assert.Positive(t, watcher.Cube().InhabitedTime,
		"Обитаемое время наблюдаемого куба должно расти")
}

func TestTwoPlayersShareWatchers(t *testing.T) {
	w := newTestWorld(Config{
		HorizontalViewDistance:   3,
		VerticalViewDistance:     3,
		MaxGeneratedCubesPerTick: 1000,
	})
	w.pcm.AddPlayer(newTestPlayer(1, 8, 8, 8))
	w.pcm.AddPlayer(newTestPlayer(2, 8, 8, 8))
	require.Equal(t, 7*7*7, w.pcm.Stats().CubeWatchers,
		"Совпадающие зоны видимости делят наблюдателей")

	w.pcm.Tick()
	assert.Len(t, w.transport.messagesOfKind(1, MessageCubeFull), 7*7*7)
	assert.Len(t, w.transport.messagesOfKind(2, MessageCubeFull), 7*7*7)

	// Уход одного игрока не трогает видимость второго
	w.pcm.RemovePlayer(1)
	stats := w.pcm.Stats()
	assert.Equal(t, 7*7*7, stats.CubeWatchers)
	assert.True(t, w.pcm.IsPlayerWatchingCube(2, vec.Vec3{}))
}
