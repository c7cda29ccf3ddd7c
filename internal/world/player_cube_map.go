package world

import (
	"fmt"
	"sort"
	"time"

	"github.com/Foghrye4/CubicChunks/internal/logging"
	"github.com/Foghrye4/CubicChunks/internal/vec"
)

// Пределы радиуса обзора в кубах. Значения вне диапазона молча приводятся
// к границе — это конфигурационная неточность, а не ошибка.
const (
	MinViewDistance = 3
	MaxViewDistance = 32
)

// Config — конфигурация планировщика одного мира. Создаётся один раз и
// передаётся планировщику при конструировании; глобального состояния нет.
type Config struct {
	HorizontalViewDistance int // Радиус обзора по x/z, в кубах
	VerticalViewDistance   int // Радиус обзора по y, в кубах

	MaxGeneratedCubesPerTick int           // Бюджет генерации кубов за тик
	GenerationDeadline       time.Duration // Дедлайн генерации внутри тика
	MaxSentCubesPerTick      int           // Бюджет отправки кубов за тик

	SortInterval        uint64 // Период отложенных сортировок очередей, в тиках
	FullRefreshInterval uint64 // Период принудительного полного обхода, в тиках
	BlockDeltaLimit     int    // Порог дельт, после которого куб пересылается целиком

	IterationSeed int64 // Сид обхода «по кругу» для периодических проходов движка
	Debug         bool  // Нарушения инвариантов вызывают panic вместо логирования
}

// withDefaults возвращает конфигурацию с заполненными нулевыми полями
// и радиусами обзора, приведёнными к допустимому диапазону
func (c Config) withDefaults() Config {
	if c.HorizontalViewDistance == 0 {
		c.HorizontalViewDistance = 8
	}
	if c.VerticalViewDistance == 0 {
		c.VerticalViewDistance = 8
	}
	c.HorizontalViewDistance = clampViewDistance(c.HorizontalViewDistance)
	c.VerticalViewDistance = clampViewDistance(c.VerticalViewDistance)
	if c.MaxGeneratedCubesPerTick == 0 {
		c.MaxGeneratedCubesPerTick = 49
	}
	if c.GenerationDeadline == 0 {
		c.GenerationDeadline = 50 * time.Millisecond
	}
	if c.MaxSentCubesPerTick == 0 {
		// Кубов в разы больше, чем колонок, поэтому и бюджет кратно больше
		c.MaxSentCubesPerTick = 81 * 8
	}
	if c.SortInterval == 0 {
		c.SortInterval = 4
	}
	if c.FullRefreshInterval == 0 {
		c.FullRefreshInterval = 8000
	}
	if c.BlockDeltaLimit == 0 {
		c.BlockDeltaLimit = 64
	}
	return c
}

func clampViewDistance(v int) int {
	if v < MinViewDistance {
		return MinViewDistance
	}
	if v > MaxViewDistance {
		return MaxViewDistance
	}
	return v
}

// Deps — внешние коллабораторы планировщика. Ядро зависит только от этих
// абстракций; конкретные реализации подключаются при сборке мира.
type Deps struct {
	Source     CubeSource
	Serializer Serializer
	Transport  Transport
	Lighting   LightingHeightSource
	Rules      WorldRules
	Metrics    *Metrics // Опционально; nil отключает метрики
}

// playerWrapper хранит игрока вместе с позицией последнего пересчёта
// видимости. Пересчёт ленивый: выполняется только при пересечении границы
// куба, поэтому живая и обработанная позиции различаются.
type playerWrapper struct {
	player     *Player
	managedPos vec.Vec3
}

// updateManagedPos фиксирует текущую позицию игрока как обработанную
func (w *playerWrapper) updateManagedPos() {
	w.managedPos = w.player.CubePos()
}

// cubePosChanged сообщает, пересёк ли игрок границу куба с последней обработки
func (w *playerWrapper) cubePosChanged() bool {
	return !w.player.CubePos().Equals(w.managedPos)
}

// PlayerCubeMap — планировщик стриминга кубов: отслеживает зоны видимости
// игроков, управляет очередями генерации и отправки и исполняет один
// проход состояния за мировой тик. Все структуры принадлежат потоку
// симуляции мира; внутренних блокировок нет.
type PlayerCubeMap struct {
	cfg      Config
	deps     Deps
	selector CuboidalSelector
	log      *logging.Logger

	players        map[uint64]*playerWrapper
	cubeWatchers   *CubeMap
	columnWatchers *ColumnMap

	// Наблюдатели с накопленными изменениями, обрабатываются раз в тик
	cubeWatchersToUpdate   map[*CubeWatcher]struct{}
	columnWatchersToUpdate map[*ColumnWatcher]struct{}

	// Очереди, упорядоченные по удалённости от ближайшего игрока.
	// Сортировка отложенная: помечается флагом и выполняется по фазе тика.
	cubesToGenerate   []*CubeWatcher
	cubesToSend       []*CubeWatcher
	columnsToGenerate []*ColumnWatcher
	columnsToSend     []*ColumnWatcher

	toGenerateNeedSort bool
	toSendNeedSort     bool

	// Пакеты, накопленные для каждого игрока в текущем тике
	outgoing map[uint64][]CubeMessage

	tick            uint64
	lastFullRefresh uint64
}

// NewPlayerCubeMap создаёт планировщик и подписывается на изменения высот
func NewPlayerCubeMap(cfg Config, deps Deps) *PlayerCubeMap {
	pcm := &PlayerCubeMap{
		cfg:                    cfg.withDefaults(),
		deps:                   deps,
		log:                    logging.GetWorldLogger(),
		players:                make(map[uint64]*playerWrapper),
		cubeWatchers:           NewCubeMap(),
		columnWatchers:         NewColumnMap(),
		cubeWatchersToUpdate:   make(map[*CubeWatcher]struct{}),
		columnWatchersToUpdate: make(map[*ColumnWatcher]struct{}),
		outgoing:               make(map[uint64][]CubeMessage),
	}
	deps.Lighting.RegisterHeightChangeListener(pcm.HeightUpdated)
	return pcm
}

// canGenerateCubes — предикат «игрок может инициировать генерацию».
// Спектаторы генерируют кубы только при соответствующем правиле мира.
func (pcm *PlayerCubeMap) canGenerateCubes(p *Player) bool {
	return !p.Spectator || pcm.deps.Rules.SpectatorsGenerateChunks()
}

// Tick исполняет один проход планировщика. Порядок фаз фиксирован:
// полный обход, обновления, сортировки, генерация, отправка, выгрузка, сброс.
func (pcm *PlayerCubeMap) Tick() {
	started := time.Now()
	pcm.tick++
	currentTime := pcm.tick

	// Принудительный полный обход, страховка от пропущенных инкрементальных
	// обновлений. Стартовое смещение обхода определяется сидом и номером тика.
	if currentTime-pcm.lastFullRefresh > pcm.cfg.FullRefreshInterval {
		pcm.lastFullRefresh = currentTime
		pcm.cubeWatchers.ForEachWrapped(pcm.cfg.IterationSeed+int64(currentTime), func(w *CubeWatcher) bool {
			w.Update()
			w.updateInhabitedTime()
			return true
		})
	}

	// Обновления, накопленные с прошлого тика
	for w := range pcm.cubeWatchersToUpdate {
		delete(pcm.cubeWatchersToUpdate, w)
		w.inUpdateSet = false
		w.Update()
	}
	for w := range pcm.columnWatchersToUpdate {
		delete(pcm.columnWatchersToUpdate, w)
		w.inUpdateSet = false
		w.Update()
	}

	// Отложенные сортировки. Фазы очередей генерации и отправки
	// разнесены по разным тикам.
	if pcm.toGenerateNeedSort && currentTime%pcm.cfg.SortInterval == 0 {
		pcm.toGenerateNeedSort = false
		sortCubeWatchers(pcm.cubesToGenerate)
		sortColumnWatchers(pcm.columnsToGenerate)
	}
	if pcm.toSendNeedSort && currentTime%pcm.cfg.SortInterval == pcm.cfg.SortInterval/2 {
		pcm.toSendNeedSort = false
		sortCubeWatchers(pcm.cubesToSend)
		sortColumnWatchers(pcm.columnsToSend)
	}

	generated := pcm.generatePass()
	pcm.sendPass()

	// В пустом мире без точки возрождения держать содержимое незачем
	if len(pcm.players) == 0 && !pcm.deps.Rules.CanRespawnHere() {
		pcm.deps.Source.UnloadAllRequest()
	}

	sent := pcm.flushOutgoing()

	if m := pcm.deps.Metrics; m != nil {
		m.CubesGenerated.Add(float64(generated))
		m.MessagesSent.Add(float64(sent))
		m.CubeGenerateQueue.Set(float64(len(pcm.cubesToGenerate)))
		m.CubeSendQueue.Set(float64(len(pcm.cubesToSend)))
		m.ColumnGenerateQueue.Set(float64(len(pcm.columnsToGenerate)))
		m.ColumnSendQueue.Set(float64(len(pcm.columnsToSend)))
		m.CubeWatchers.Set(float64(pcm.cubeWatchers.Len()))
		m.ColumnWatchers.Set(float64(pcm.columnWatchers.Len()))
		m.TickDuration.Observe(time.Since(started).Seconds())
	}
}

// generatePass исполняет фазу генерации: колонки выгребаются полностью
// (дёшевы и являются предпосылкой кубов), кубы — под двойным бюджетом:
// лимит количества и дедлайн по настенным часам, что раньше наступит.
func (pcm *PlayerCubeMap) generatePass() int {
	generated := 0

	if len(pcm.columnsToGenerate) > 0 {
		remaining := pcm.columnsToGenerate[:0]
		for _, w := range pcm.columnsToGenerate {
			success := w.column != nil
			if !success {
				success = w.ProvideColumn(w.hasPlayerMatching(pcm.canGenerateCubes))
			}
			if success {
				w.inGenerateQueue = false
				if w.SendToPlayers() {
					pcm.removeColumnFromSendQueue(w)
				}
			} else {
				remaining = append(remaining, w)
			}
		}
		pcm.columnsToGenerate = remaining
	}

	if len(pcm.cubesToGenerate) > 0 {
		deadline := time.Now().Add(pcm.cfg.GenerationDeadline)
		budget := pcm.cfg.MaxGeneratedCubesPerTick

		// skipped сохраняет относительный порядок пропущенных и
		// необработанных записей для следующего тика
		skipped := make([]*CubeWatcher, 0, len(pcm.cubesToGenerate))
		i := 0
		for ; i < len(pcm.cubesToGenerate); i++ {
			if budget <= 0 || time.Now().After(deadline) {
				break
			}
			w := pcm.cubesToGenerate[i]

			success := w.cube.IsFullyReady()
			if !success {
				canGenerate := w.hasPlayerMatching(pcm.canGenerateCubes)
				if !canGenerate {
					// Никто из заинтересованных не вправе инициировать
					// генерацию — пропускаем, но оставляем в очереди
					skipped = append(skipped, w)
					continue
				}
				success = w.ProvideCube(true)
			}

			if success {
				w.inGenerateQueue = false
				generated++
				budget--
				if w.SendToPlayers() {
					pcm.removeCubeFromSendQueue(w)
				}
			} else {
				// Сбой генерации: наблюдатель остаётся в очереди на повтор
				skipped = append(skipped, w)
			}
		}
		pcm.cubesToGenerate = append(skipped, pcm.cubesToGenerate[i:]...)
	}

	return generated
}

// sendPass исполняет фазу отправки: очередь колонок выгребается полностью,
// очередь кубов — до фиксированного бюджета успешных отправок
func (pcm *PlayerCubeMap) sendPass() {
	if len(pcm.columnsToSend) > 0 {
		remaining := pcm.columnsToSend[:0]
		for _, w := range pcm.columnsToSend {
			if w.SendToPlayers() {
				w.inSendQueue = false
			} else {
				remaining = append(remaining, w)
			}
		}
		pcm.columnsToSend = remaining
	}

	if len(pcm.cubesToSend) > 0 {
		toSend := pcm.cfg.MaxSentCubesPerTick
		kept := pcm.cubesToSend[:0]
		i := 0
		for ; i < len(pcm.cubesToSend); i++ {
			if toSend <= 0 {
				break
			}
			w := pcm.cubesToSend[i]
			if w.SendToPlayers() {
				w.inSendQueue = false
				toSend--
			} else {
				kept = append(kept, w)
			}
		}
		pcm.cubesToSend = append(kept, pcm.cubesToSend[i:]...)
	}
}

// flushOutgoing передаёт транспорту по одному батчу на игрока и очищает
// накопители. Возвращает число отправленных сообщений.
func (pcm *PlayerCubeMap) flushOutgoing() int {
	sent := 0
	for playerID, batch := range pcm.outgoing {
		delete(pcm.outgoing, playerID)
		if len(batch) == 0 {
			continue
		}
		if err := pcm.deps.Transport.SendBatch(playerID, batch); err != nil {
			pcm.log.Warn("Отправка батча игроку %d не удалась: %v", playerID, err)
			continue
		}
		sent += len(batch)
	}
	return sent
}

// AddPlayer вводит игрока в мир: создаёт наблюдателей для всех кубов и
// колонок его зоны видимости. Колонка всегда создаётся раньше своего куба.
func (pcm *PlayerCubeMap) AddPlayer(p *Player) {
	if _, ok := pcm.players[p.ID]; ok {
		pcm.log.Warn("AddPlayer: игрок %d уже зарегистрирован", p.ID)
		return
	}
	wrapper := &playerWrapper{player: p}
	wrapper.updateManagedPos()

	pcm.selector.ForAllVisibleFrom(wrapper.managedPos,
		pcm.cfg.HorizontalViewDistance, pcm.cfg.VerticalViewDistance,
		func(pos vec.Vec3) {
			// Порядок важен: колонка прежде куба
			columnWatcher := pcm.getOrCreateColumnWatcher(pos.ToVec2())
			columnWatcher.AddPlayer(p)
			cubeWatcher := pcm.getOrCreateCubeWatcher(pos)
			cubeWatcher.AddPlayer(p)
		})

	pcm.players[p.ID] = wrapper
	pcm.setNeedSort()
}

// RemovePlayer выводит игрока из мира. Используется последняя обработанная
// позиция: движок может вызвать удаление уже после перемещения игрока.
func (pcm *PlayerCubeMap) RemovePlayer(playerID uint64) {
	wrapper, ok := pcm.players[playerID]
	if !ok {
		pcm.log.Warn("RemovePlayer: игрок %d не зарегистрирован в этом мире", playerID)
		return
	}

	pcm.selector.ForAllVisibleFrom(wrapper.managedPos,
		pcm.cfg.HorizontalViewDistance, pcm.cfg.VerticalViewDistance,
		func(pos vec.Vec3) {
			if w := pcm.cubeWatchers.Get(pos); w != nil {
				w.RemovePlayer(wrapper.player)
			}
			columnPos := pos.ToVec2()
			if w := pcm.columnWatchers.Get(columnPos); w != nil && w.ContainsPlayer(playerID) {
				w.RemovePlayer(wrapper.player)
			}
		})

	delete(pcm.players, playerID)
	pcm.setNeedSort()
}

// UpdateMovingPlayer пересчитывает видимость игрока, если он пересёк
// границу куба. Движения внутри куба — дешёвый no-op.
func (pcm *PlayerCubeMap) UpdateMovingPlayer(playerID uint64) {
	wrapper, ok := pcm.players[playerID]
	if !ok {
		// Движок иногда вызывает обновление до регистрации, это нормально
		return
	}
	if !wrapper.cubePosChanged() {
		return
	}

	pcm.updatePlayer(wrapper, wrapper.managedPos, wrapper.player.CubePos())
	wrapper.updateManagedPos()
	pcm.setNeedSort()
}

// updatePlayer применяет разность видимости между двумя позициями.
// Добавления строго раньше удалений: при смежных множествах это исключает
// транзитное уничтожение и пересоздание наблюдателей.
func (pcm *PlayerCubeMap) updatePlayer(wrapper *playerWrapper, oldPos, newPos vec.Vec3) {
	hr := pcm.cfg.HorizontalViewDistance
	vr := pcm.cfg.VerticalViewDistance

	cubesToRemove, cubesToLoad, columnsToRemove, columnsToLoad :=
		pcm.selector.FindChanged(oldPos, newPos, hr, vr)

	// Порядок важен: сначала колонки
	for _, pos := range columnsToLoad {
		w := pcm.getOrCreateColumnWatcher(pos)
		w.AddPlayer(wrapper.player)
	}
	for _, pos := range cubesToLoad {
		w := pcm.getOrCreateCubeWatcher(pos)
		w.AddPlayer(wrapper.player)
	}
	for _, pos := range cubesToRemove {
		if w := pcm.cubeWatchers.Get(pos); w != nil {
			w.RemovePlayer(wrapper.player)
		} else {
			pcm.invariant(false, "куб %v отсутствует в индексе при выходе из зоны видимости", pos)
		}
	}
	for _, pos := range columnsToRemove {
		if w := pcm.columnWatchers.Get(pos); w != nil {
			w.RemovePlayer(wrapper.player)
		} else {
			pcm.invariant(false, "колонка %v отсутствует в индексе при выходе из зоны видимости", pos)
		}
	}
}

// SetViewDistance меняет радиусы обзора мира. Увеличение только добавляет
// видимость, уменьшение вычисляет выделенную shrink-разность и только
// удаляет. Разнонаправленное изменение применяется по одной оси за проход.
func (pcm *PlayerCubeMap) SetViewDistance(newHorizontal, newVertical int) {
	newHorizontal = clampViewDistance(newHorizontal)
	newVertical = clampViewDistance(newVertical)

	oldHorizontal := pcm.cfg.HorizontalViewDistance
	oldVertical := pcm.cfg.VerticalViewDistance
	if newHorizontal == oldHorizontal && newVertical == oldVertical {
		return
	}

	// Радиусы разошлись в противоположные стороны — меняем по очереди
	if (newHorizontal < oldHorizontal && newVertical > oldVertical) ||
		(newHorizontal > oldHorizontal && newVertical < oldVertical) {
		pcm.SetViewDistance(newHorizontal, oldVertical)
		pcm.SetViewDistance(newHorizontal, newVertical)
		return
	}

	for _, wrapper := range pcm.players {
		player := wrapper.player
		center := wrapper.managedPos

		if newHorizontal > oldHorizontal || newVertical > oldVertical {
			// Рост радиуса: достаточно добавить новые позиции
			pcm.selector.ForAllVisibleFrom(center, newHorizontal, newVertical, func(pos vec.Vec3) {
				columnWatcher := pcm.getOrCreateColumnWatcher(pos.ToVec2())
				columnWatcher.AddPlayer(player)
				cubeWatcher := pcm.getOrCreateCubeWatcher(pos)
				cubeWatcher.AddPlayer(player)
			})
			continue
		}

		cubesToUnload, columnsToUnload := pcm.selector.FindShrink(center,
			oldHorizontal, newHorizontal, oldVertical, newVertical)

		for _, pos := range cubesToUnload {
			if w := pcm.cubeWatchers.Get(pos); w != nil && w.ContainsPlayer(player.ID) {
				w.RemovePlayer(player)
			} else {
				pcm.log.Warn("наблюдатель куба %v пуст или не содержит игрока при сжатии обзора", pos)
			}
		}
		for _, pos := range columnsToUnload {
			if w := pcm.columnWatchers.Get(pos); w != nil && w.ContainsPlayer(player.ID) {
				w.RemovePlayer(player)
			} else {
				pcm.log.Warn("наблюдатель колонки %v пуст или не содержит игрока при сжатии обзора", pos)
			}
		}
	}

	pcm.cfg.HorizontalViewDistance = newHorizontal
	pcm.cfg.VerticalViewDistance = newVertical
	pcm.setNeedSort()
}

// MarkBlockForUpdate отмечает блок изменённым (блочные координаты).
// Куб вне зоны чьей-либо видимости молча игнорируется.
func (pcm *PlayerCubeMap) MarkBlockForUpdate(blockX, blockY, blockZ int) {
	cubePos := vec.Vec3{
		X: vec.BlockToCube(blockX),
		Y: vec.BlockToCube(blockY),
		Z: vec.BlockToCube(blockZ),
	}
	if w := pcm.cubeWatchers.Get(cubePos); w != nil {
		w.BlockChanged(vec.BlockToLocal(blockX), vec.BlockToLocal(blockY), vec.BlockToLocal(blockZ))
	}
}

// HeightUpdated — колбэк подсистемы освещения об изменении высоты
// (блочные координаты)
func (pcm *PlayerCubeMap) HeightUpdated(blockX, blockZ int) {
	columnPos := vec.Vec2{X: vec.BlockToCube(blockX), Z: vec.BlockToCube(blockZ)}
	if w := pcm.columnWatchers.Get(columnPos); w != nil {
		w.HeightChanged(vec.BlockToLocal(blockX), vec.BlockToLocal(blockZ))
	}
}

// IsPlayerWatchingCube сообщает, наблюдает ли игрок куб и получил ли его
func (pcm *PlayerCubeMap) IsPlayerWatchingCube(playerID uint64, pos vec.Vec3) bool {
	w := pcm.cubeWatchers.Get(pos)
	return w != nil && w.ContainsPlayer(playerID) && w.IsSentToPlayer(playerID)
}

// IsPlayerWatchingColumn сообщает, наблюдает ли игрок колонку и получил ли её
func (pcm *PlayerCubeMap) IsPlayerWatchingColumn(playerID uint64, pos vec.Vec2) bool {
	w := pcm.columnWatchers.Get(pos)
	return w != nil && w.ContainsPlayer(playerID) && w.IsSentToPlayer(playerID)
}

// GetCubeWatcher возвращает наблюдателя куба или nil
func (pcm *PlayerCubeMap) GetCubeWatcher(pos vec.Vec3) *CubeWatcher {
	return pcm.cubeWatchers.Get(pos)
}

// GetColumnWatcher возвращает наблюдателя колонки или nil
func (pcm *PlayerCubeMap) GetColumnWatcher(pos vec.Vec2) *ColumnWatcher {
	return pcm.columnWatchers.Get(pos)
}

// ForEachCubeWatcherWrapped обходит наблюдателей кубов, начиная со смещения,
// определяемого сидом. Используется движком для периодических обходов.
func (pcm *PlayerCubeMap) ForEachCubeWatcherWrapped(seed int64, fn func(*CubeWatcher) bool) {
	pcm.cubeWatchers.ForEachWrapped(seed, fn)
}

// PendingWorkWatchers возвращает наблюдателей кубов, которым нужна работа в
// ближайший тик: очереди генерации/отправки или накопленные изменения.
// Предикат — чистая функция состояния наблюдателя.
func (pcm *PlayerCubeMap) PendingWorkWatchers() []*CubeWatcher {
	var result []*CubeWatcher
	pcm.cubeWatchers.ForEach(func(w *CubeWatcher) bool {
		if w.inGenerateQueue || w.inSendQueue || w.inUpdateSet {
			result = append(result, w)
		}
		return true
	})
	return result
}

// Stats — моментальный снимок состояния планировщика
type Stats struct {
	Tick              uint64 `json:"tick"`
	Players           int    `json:"players"`
	CubeWatchers      int    `json:"cube_watchers"`
	ColumnWatchers    int    `json:"column_watchers"`
	CubesToGenerate   int    `json:"cubes_to_generate"`
	CubesToSend       int    `json:"cubes_to_send"`
	ColumnsToGenerate int    `json:"columns_to_generate"`
	ColumnsToSend     int    `json:"columns_to_send"`
}

// Stats возвращает снимок счётчиков для диагностики
func (pcm *PlayerCubeMap) Stats() Stats {
	return Stats{
		Tick:              pcm.tick,
		Players:           len(pcm.players),
		CubeWatchers:      pcm.cubeWatchers.Len(),
		ColumnWatchers:    pcm.columnWatchers.Len(),
		CubesToGenerate:   len(pcm.cubesToGenerate),
		CubesToSend:       len(pcm.cubesToSend),
		ColumnsToGenerate: len(pcm.columnsToGenerate),
		ColumnsToSend:     len(pcm.columnsToSend),
	}
}

// ViewDistances возвращает текущие радиусы обзора
func (pcm *PlayerCubeMap) ViewDistances() (horizontal, vertical int) {
	return pcm.cfg.HorizontalViewDistance, pcm.cfg.VerticalViewDistance
}

//================ Внутренние помощники =================//

// getOrCreateCubeWatcher возвращает существующего наблюдателя или создаёт
// нового: пробует неинициирующую загрузку, при неготовности ставит в очередь
// генерации и всегда — в очередь отправки
func (pcm *PlayerCubeMap) getOrCreateCubeWatcher(pos vec.Vec3) *CubeWatcher {
	w := pcm.cubeWatchers.Get(pos)
	if w != nil {
		return w
	}
	w = newCubeWatcher(pcm, pos)
	pcm.cubeWatchers.Put(w)

	if !w.cube.IsFullyReady() {
		pcm.enqueueCubeGenerate(w)
	}
	// Кубы всегда проходят через очередь отправки: немедленная отправка до
	// стабилизации позиции клиента ломает позиционирование рендера
	pcm.enqueueCubeSend(w)
	return w
}

// getOrCreateColumnWatcher возвращает существующего наблюдателя колонки или
// создаёт нового. Колонка, в отличие от куба, отправляется немедленно когда
// возможно и попадает в очередь только при неудаче. Политики двух видов
// наблюдателей намеренно различаются.
func (pcm *PlayerCubeMap) getOrCreateColumnWatcher(pos vec.Vec2) *ColumnWatcher {
	w := pcm.columnWatchers.Get(pos)
	if w != nil {
		return w
	}
	w = newColumnWatcher(pcm, pos)
	pcm.columnWatchers.Put(w)

	if w.column == nil {
		pcm.enqueueColumnGenerate(w)
	}
	if !w.SendToPlayers() {
		pcm.enqueueColumnSend(w)
	}
	return w
}

// removeCubeWatcher утилизирует пустого наблюдателя: атомарно убирает его из
// индекса, очередей и множества обновлений, затем снимает интерес с куба.
// Само содержимое не удаляется — выгрузкой управляет внешний коллаборатор.
func (pcm *PlayerCubeMap) removeCubeWatcher(w *CubeWatcher) {
	w.updateInhabitedTime()

	removed := pcm.cubeWatchers.Remove(w.pos)
	pcm.invariant(removed == w, "наблюдатель куба %v отсутствует в индексе при утилизации", w.pos)

	if w.inUpdateSet {
		delete(pcm.cubeWatchersToUpdate, w)
		w.inUpdateSet = false
	}
	if w.inGenerateQueue {
		pcm.invariant(removeCubeWatcherFrom(&pcm.cubesToGenerate, w),
			"наблюдатель куба %v помечен в очереди генерации, но не найден", w.pos)
		w.inGenerateQueue = false
	}
	if w.inSendQueue {
		pcm.invariant(removeCubeWatcherFrom(&pcm.cubesToSend, w),
			"наблюдатель куба %v помечен в очереди отправки, но не найден", w.pos)
		w.inSendQueue = false
	}

	if w.cube != nil {
		pcm.deps.Source.ReleaseCube(w.pos)
	}
}

// removeColumnWatcher утилизирует пустого наблюдателя колонки
func (pcm *PlayerCubeMap) removeColumnWatcher(w *ColumnWatcher) {
	w.updateInhabitedTime()

	removed := pcm.columnWatchers.Remove(w.pos)
	pcm.invariant(removed == w, "наблюдатель колонки %v отсутствует в индексе при утилизации", w.pos)

	if w.inUpdateSet {
		delete(pcm.columnWatchersToUpdate, w)
		w.inUpdateSet = false
	}
	if w.inGenerateQueue {
		pcm.invariant(removeColumnWatcherFrom(&pcm.columnsToGenerate, w),
			"наблюдатель колонки %v помечен в очереди генерации, но не найден", w.pos)
		w.inGenerateQueue = false
	}
	if w.inSendQueue {
		pcm.invariant(removeColumnWatcherFrom(&pcm.columnsToSend, w),
			"наблюдатель колонки %v помечен в очереди отправки, но не найден", w.pos)
		w.inSendQueue = false
	}

	if w.column != nil {
		pcm.deps.Source.ReleaseColumn(w.pos)
	}
}

func (pcm *PlayerCubeMap) enqueueCubeGenerate(w *CubeWatcher) {
	if w.inGenerateQueue {
		return
	}
	w.inGenerateQueue = true
	pcm.cubesToGenerate = append(pcm.cubesToGenerate, w)
	pcm.toGenerateNeedSort = true
}

func (pcm *PlayerCubeMap) enqueueCubeSend(w *CubeWatcher) {
	if w.inSendQueue {
		return
	}
	w.inSendQueue = true
	pcm.cubesToSend = append(pcm.cubesToSend, w)
	pcm.toSendNeedSort = true
}

func (pcm *PlayerCubeMap) enqueueColumnGenerate(w *ColumnWatcher) {
	if w.inGenerateQueue {
		return
	}
	w.inGenerateQueue = true
	pcm.columnsToGenerate = append(pcm.columnsToGenerate, w)
	pcm.toGenerateNeedSort = true
}

func (pcm *PlayerCubeMap) enqueueColumnSend(w *ColumnWatcher) {
	if w.inSendQueue {
		return
	}
	w.inSendQueue = true
	pcm.columnsToSend = append(pcm.columnsToSend, w)
	pcm.toSendNeedSort = true
}

// removeCubeFromSendQueue убирает наблюдателя из очереди отправки, если он
// там состоит (успешная отправка при генерации делает очередь ненужной)
func (pcm *PlayerCubeMap) removeCubeFromSendQueue(w *CubeWatcher) {
	if !w.inSendQueue {
		return
	}
	pcm.invariant(removeCubeWatcherFrom(&pcm.cubesToSend, w),
		"наблюдатель куба %v помечен в очереди отправки, но не найден", w.pos)
	w.inSendQueue = false
}

// removeColumnFromSendQueue — аналог для колонок
func (pcm *PlayerCubeMap) removeColumnFromSendQueue(w *ColumnWatcher) {
	if !w.inSendQueue {
		return
	}
	pcm.invariant(removeColumnWatcherFrom(&pcm.columnsToSend, w),
		"наблюдатель колонки %v помечен в очереди отправки, но не найден", w.pos)
	w.inSendQueue = false
}

// addCubeToUpdate помещает наблюдателя во множество обновлений текущего тика
func (pcm *PlayerCubeMap) addCubeToUpdate(w *CubeWatcher) {
	w.inUpdateSet = true
	pcm.cubeWatchersToUpdate[w] = struct{}{}
}

// addColumnToUpdate — аналог для колонок
func (pcm *PlayerCubeMap) addColumnToUpdate(w *ColumnWatcher) {
	w.inUpdateSet = true
	pcm.columnWatchersToUpdate[w] = struct{}{}
}

// scheduleSend добавляет сообщение в батч игрока на текущий тик
func (pcm *PlayerCubeMap) scheduleSend(playerID uint64, msg CubeMessage) {
	pcm.outgoing[playerID] = append(pcm.outgoing[playerID], msg)
}

func (pcm *PlayerCubeMap) setNeedSort() {
	pcm.toGenerateNeedSort = true
	pcm.toSendNeedSort = true
}

// invariant проверяет программный инвариант: в отладочной конфигурации
// нарушение фатально, в боевой — логируется и игнорируется
func (pcm *PlayerCubeMap) invariant(cond bool, format string, args ...interface{}) {
	if cond {
		return
	}
	if pcm.cfg.Debug {
		panic(fmt.Sprintf(format, args...))
	}
	pcm.log.Error(format, args...)
}

// sortCubeWatchers упорядочивает очередь по удалённости от ближайшего
// игрока. Стабильная сортировка сохраняет относительный порядок равных.
func sortCubeWatchers(q []*CubeWatcher) {
	sort.SliceStable(q, func(i, j int) bool {
		return q[i].closestPlayerDistance() < q[j].closestPlayerDistance()
	})
}

func sortColumnWatchers(q []*ColumnWatcher) {
	sort.SliceStable(q, func(i, j int) bool {
		return q[i].closestPlayerDistance() < q[j].closestPlayerDistance()
	})
}

func removeCubeWatcherFrom(q *[]*CubeWatcher, w *CubeWatcher) bool {
	for i, cur := range *q {
		if cur == w {
			*q = append((*q)[:i], (*q)[i+1:]...)
			return true
		}
	}
	return false
}

func removeColumnWatcherFrom(q *[]*ColumnWatcher, w *ColumnWatcher) bool {
	for i, cur := range *q {
		if cur == w {
			*q = append((*q)[:i], (*q)[i+1:]...)
			return true
		}
	}
	return false
}
