package world

import (
	"sort"

	"github.com/Foghrye4/CubicChunks/internal/vec"
)

// CubeWatcher отслеживает один видимый куб: множество заинтересованных
// игроков, готовность содержимого и накопленные изменения блоков.
// Существует ровно до тех пор, пока кубом интересуется хотя бы один игрок.
type CubeWatcher struct {
	pcm  *PlayerCubeMap
	pos  vec.Vec3
	cube *Cube

	players map[uint64]*Player
	sentTo  map[uint64]struct{} // игроки, получившие текущее полное состояние

	changed        map[uint16]struct{} // упакованные адреса изменённых блоков
	changeOverflow bool                // лимит дельт превышен — куб уйдёт целиком

	inGenerateQueue bool
	inSendQueue     bool
	inUpdateSet     bool

	previousWorldTime uint64 // тик последнего пересчёта InhabitedTime
}

// newCubeWatcher создаёт наблюдателя и пытается загрузить куб без генерации
func newCubeWatcher(pcm *PlayerCubeMap, pos vec.Vec3) *CubeWatcher {
	return &CubeWatcher{
		pcm:               pcm,
		pos:               pos,
		cube:              pcm.deps.Source.TryCube(pos),
		players:           make(map[uint64]*Player),
		sentTo:            make(map[uint64]struct{}),
		changed:           make(map[uint16]struct{}),
		previousWorldTime: pcm.tick,
	}
}

// Pos возвращает позицию наблюдаемого куба
func (w *CubeWatcher) Pos() vec.Vec3 {
	return w.pos
}

// Cube возвращает содержимое куба (может быть nil до загрузки/генерации)
func (w *CubeWatcher) Cube() *Cube {
	return w.cube
}

// ContainsPlayer сообщает, интересуется ли игрок этим кубом
func (w *CubeWatcher) ContainsPlayer(playerID uint64) bool {
	_, ok := w.players[playerID]
	return ok
}

// IsSentToPlayer сообщает, получил ли игрок текущее состояние куба
func (w *CubeWatcher) IsSentToPlayer(playerID uint64) bool {
	_, ok := w.sentTo[playerID]
	return ok
}

// AddPlayer добавляет игрока к наблюдателю. Повторное добавление — no-op.
func (w *CubeWatcher) AddPlayer(p *Player) {
	if _, ok := w.players[p.ID]; ok {
		return
	}
	w.players[p.ID] = p

	// Куб уже готов и разослан — новому игроку нужна отдельная отправка
	if w.cube.IsFullyReady() && !w.inSendQueue {
		w.pcm.enqueueCubeSend(w)
	}
}

// RemovePlayer убирает игрока. Когда не остаётся ни одного игрока,
// наблюдатель сигнализирует планировщику об утилизации.
func (w *CubeWatcher) RemovePlayer(p *Player) {
	if _, ok := w.players[p.ID]; !ok {
		// Возможно при гонке демонтажа с движком, не ошибка
		w.pcm.log.Warn("RemovePlayer: игрок %d не наблюдает куб %v", p.ID, w.pos)
		return
	}
	delete(w.players, p.ID)
	delete(w.sentTo, p.ID)

	if len(w.players) == 0 {
		w.pcm.removeCubeWatcher(w)
	}
}

// hasPlayerMatching сообщает, есть ли среди игроков удовлетворяющий предикату
func (w *CubeWatcher) hasPlayerMatching(pred func(*Player) bool) bool {
	for _, p := range w.players {
		if pred(p) {
			return true
		}
	}
	return false
}

// ProvideCube — шаг генерации. При allowGenerate загружает или генерирует куб;
// иначе возвращает текущую готовность без побочных эффектов. Ошибка
// коллаборатора логируется, наблюдатель остаётся в очереди на повтор.
func (w *CubeWatcher) ProvideCube(allowGenerate bool) bool {
	if w.cube.IsFullyReady() {
		return true
	}
	if !allowGenerate {
		return false
	}

	cube, err := w.pcm.deps.Source.ProvideCube(w.pos)
	if err != nil {
		w.pcm.log.Warn("Генерация куба %v не удалась, повтор позже: %v", w.pos, err)
		return false
	}
	w.cube = cube
	return w.cube.IsFullyReady()
}

// SendToPlayers — шаг отправки. До готовности куба — no-op (false).
// Кодирует куб один раз и рассылает всем игрокам, ещё не получившим
// текущее состояние. Возвращает true, когда все игроки в актуальном состоянии.
func (w *CubeWatcher) SendToPlayers() bool {
	if !w.cube.IsFullyReady() {
		return false
	}

	var payload []byte
	for id := range w.players {
		if _, ok := w.sentTo[id]; ok {
			continue
		}
		if payload == nil {
			var err error
			payload, err = w.pcm.deps.Serializer.EncodeCube(w.cube)
			if err != nil {
				w.pcm.log.Warn("Сериализация куба %v не удалась: %v", w.pos, err)
				return false
			}
		}
		w.pcm.scheduleSend(id, CubeMessage{
			Kind: MessageCubeFull,
			X:    w.pos.X, Y: w.pos.Y, Z: w.pos.Z,
			Payload: payload,
		})
		w.sentTo[id] = struct{}{}
	}

	// Полная отправка уже учитывает накопленные изменения
	w.clearChanges()
	return true
}

// BlockChanged отмечает локальный блок изменённым. Наблюдатель попадает во
// множество обновлений текущего тика ровно один раз.
func (w *CubeWatcher) BlockChanged(localX, localY, localZ int) {
	if !w.inUpdateSet {
		w.pcm.addCubeToUpdate(w)
	}
	if w.changeOverflow {
		return
	}
	w.changed[PackLocalAddress(localX, localY, localZ)] = struct{}{}
	if len(w.changed) >= w.pcm.cfg.BlockDeltaLimit {
		// Порог дельт превышен: куб пересылается целиком
		w.changeOverflow = true
	}
}

// Update рассылает накопленные изменения игрокам, уже имеющим куб.
// Остальные получат их в составе полной отправки.
func (w *CubeWatcher) Update() {
	if !w.cube.IsFullyReady() {
		return
	}

	if w.changeOverflow {
		for id := range w.sentTo {
			delete(w.sentTo, id)
		}
		if !w.inSendQueue {
			w.pcm.enqueueCubeSend(w)
		}
		w.clearChanges()
		return
	}

	if len(w.changed) == 0 {
		return
	}

	addrs := make([]uint16, 0, len(w.changed))
	for addr := range w.changed {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	payload, err := w.pcm.deps.Serializer.EncodeBlockDeltas(w.cube, addrs)
	if err != nil {
		w.pcm.log.Warn("Сериализация дельт куба %v не удалась: %v", w.pos, err)
		return
	}
	for id := range w.sentTo {
		w.pcm.scheduleSend(id, CubeMessage{
			Kind: MessageCubeDeltas,
			X:    w.pos.X, Y: w.pos.Y, Z: w.pos.Z,
			Payload: payload,
		})
	}
	w.clearChanges()
}

// updateInhabitedTime доначисляет кубу время пребывания под наблюдением
func (w *CubeWatcher) updateInhabitedTime() {
	now := w.pcm.tick
	if w.cube != nil {
		w.cube.InhabitedTime += now - w.previousWorldTime
	}
	w.previousWorldTime = now
}

// closestPlayerDistance возвращает расстояние Чебышёва до ближайшего игрока.
// Используется для упорядочивания очередей генерации и отправки.
func (w *CubeWatcher) closestPlayerDistance() int {
	best := -1
	for _, p := range w.players {
		d := w.pos.ChebyshevDistanceTo(p.CubePos())
		if best < 0 || d < best {
			best = d
		}
	}
	return best
}

func (w *CubeWatcher) clearChanges() {
	for addr := range w.changed {
		delete(w.changed, addr)
	}
	w.changeOverflow = false
}
