package world

import (
	"github.com/Foghrye4/CubicChunks/internal/vec"
)

// ColumnWatcher отслеживает одну видимую колонку: высоты и биомы имеют
// собственный жизненный цикл, независимый от кубов этой колонки.
// Колонка создаётся раньше первого куба своей проекции и живёт, пока ею
// интересуется хотя бы один игрок.
type ColumnWatcher struct {
	pcm    *PlayerCubeMap
	pos    vec.Vec2
	column *Column

	players map[uint64]*Player
	sentTo  map[uint64]struct{}

	heightsDirty bool // есть недоставленные изменения высот

	inGenerateQueue bool
	inSendQueue     bool
	inUpdateSet     bool

	previousWorldTime uint64
}

// newColumnWatcher создаёт наблюдателя и пытается загрузить колонку без генерации
func newColumnWatcher(pcm *PlayerCubeMap, pos vec.Vec2) *ColumnWatcher {
	return &ColumnWatcher{
		pcm:               pcm,
		pos:               pos,
		column:            pcm.deps.Source.TryColumn(pos),
		players:           make(map[uint64]*Player),
		sentTo:            make(map[uint64]struct{}),
		previousWorldTime: pcm.tick,
	}
}

// Pos возвращает позицию наблюдаемой колонки
func (w *ColumnWatcher) Pos() vec.Vec2 {
	return w.pos
}

// Column возвращает содержимое колонки (может быть nil до загрузки/генерации)
func (w *ColumnWatcher) Column() *Column {
	return w.column
}

// ContainsPlayer сообщает, интересуется ли игрок этой колонкой
func (w *ColumnWatcher) ContainsPlayer(playerID uint64) bool {
	_, ok := w.players[playerID]
	return ok
}

// IsSentToPlayer сообщает, получил ли игрок текущее состояние колонки
func (w *ColumnWatcher) IsSentToPlayer(playerID uint64) bool {
	_, ok := w.sentTo[playerID]
	return ok
}

// isReady сообщает о готовности колонки к отправке: содержимое загружено
// и подсистема освещения рассчитала данные высот
func (w *ColumnWatcher) isReady() bool {
	return w.column != nil && w.pcm.deps.Lighting.IsHeightDataReady(w.pos)
}

// AddPlayer добавляет игрока к наблюдателю. Повторное добавление — no-op.
func (w *ColumnWatcher) AddPlayer(p *Player) {
	if _, ok := w.players[p.ID]; ok {
		return
	}
	w.players[p.ID] = p

	if w.isReady() && !w.inSendQueue {
		w.pcm.enqueueColumnSend(w)
	}
}

// RemovePlayer убирает игрока; пустой наблюдатель утилизируется планировщиком
func (w *ColumnWatcher) RemovePlayer(p *Player) {
	if _, ok := w.players[p.ID]; !ok {
		w.pcm.log.Warn("RemovePlayer: игрок %d не наблюдает колонку %v", p.ID, w.pos)
		return
	}
	delete(w.players, p.ID)
	delete(w.sentTo, p.ID)

	if len(w.players) == 0 {
		w.pcm.removeColumnWatcher(w)
	}
}

// hasPlayerMatching сообщает, есть ли среди игроков удовлетворяющий предикату
func (w *ColumnWatcher) hasPlayerMatching(pred func(*Player) bool) bool {
	for _, p := range w.players {
		if pred(p) {
			return true
		}
	}
	return false
}

// ProvideColumn — шаг генерации колонки, аналог CubeWatcher.ProvideCube
func (w *ColumnWatcher) ProvideColumn(allowGenerate bool) bool {
	if w.column != nil {
		return true
	}
	if !allowGenerate {
		return false
	}

	column, err := w.pcm.deps.Source.ProvideColumn(w.pos)
	if err != nil {
		w.pcm.log.Warn("Генерация колонки %v не удалась, повтор позже: %v", w.pos, err)
		return false
	}
	w.column = column
	return w.column != nil
}

// SendToPlayers рассылает колонку игрокам, ещё не получившим текущее
// состояние. Возвращает true, когда все игроки в актуальном состоянии.
func (w *ColumnWatcher) SendToPlayers() bool {
	if !w.isReady() {
		return false
	}

	var payload []byte
	for id := range w.players {
		if _, ok := w.sentTo[id]; ok {
			continue
		}
		if payload == nil {
			var err error
			payload, err = w.pcm.deps.Serializer.EncodeColumn(w.column)
			if err != nil {
				w.pcm.log.Warn("Сериализация колонки %v не удалась: %v", w.pos, err)
				return false
			}
		}
		w.pcm.scheduleSend(id, CubeMessage{
			Kind: MessageColumn,
			X:    w.pos.X, Z: w.pos.Z,
			Payload: payload,
		})
		w.sentTo[id] = struct{}{}
	}

	w.heightsDirty = false
	return true
}

// HeightChanged отмечает изменение высоты в колонке. Данные высот компактны,
// поэтому дельты не накапливаются поадресно: колонка пересылается целиком.
func (w *ColumnWatcher) HeightChanged(localX, localZ int) {
	_ = localX
	_ = localZ
	if !w.inUpdateSet {
		w.pcm.addColumnToUpdate(w)
	}
	w.heightsDirty = true
}

// Update пересылает колонку игрокам, уже имеющим её, если высоты изменились
func (w *ColumnWatcher) Update() {
	if !w.heightsDirty || !w.isReady() {
		return
	}

	payload, err := w.pcm.deps.Serializer.EncodeColumn(w.column)
	if err != nil {
		w.pcm.log.Warn("Сериализация колонки %v не удалась: %v", w.pos, err)
		return
	}
	for id := range w.sentTo {
		w.pcm.scheduleSend(id, CubeMessage{
			Kind: MessageColumn,
			X:    w.pos.X, Z: w.pos.Z,
			Payload: payload,
		})
	}
	w.heightsDirty = false
}

// updateInhabitedTime доначисляет колонке время пребывания под наблюдением
func (w *ColumnWatcher) updateInhabitedTime() {
	now := w.pcm.tick
	if w.column != nil {
		w.column.InhabitedTime += now - w.previousWorldTime
	}
	w.previousWorldTime = now
}

// closestPlayerDistance возвращает расстояние Чебышёва до ближайшего игрока
func (w *ColumnWatcher) closestPlayerDistance() int {
	best := -1
	for _, p := range w.players {
		d := w.pos.ChebyshevDistanceTo(p.CubePos().ToVec2())
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}
