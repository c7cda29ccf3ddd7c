package world

import (
	"github.com/Foghrye4/CubicChunks/internal/vec"
)

// HeightTracker отслеживает готовность карт высот по колонкам и рассылает
// уведомления об их изменениях. Реализует LightingHeightSource и HeightSink.
// Принадлежит потоку симуляции мира, как и планировщик.
type HeightTracker struct {
	ready     map[vec.Vec2]struct{}
	listeners []func(blockX, blockZ int)
}

// NewHeightTracker создаёт пустой трекер
func NewHeightTracker() *HeightTracker {
	return &HeightTracker{
		ready: make(map[vec.Vec2]struct{}),
	}
}

// MarkReady помечает карту высот колонки готовой
func (t *HeightTracker) MarkReady(pos vec.Vec2) {
	t.ready[pos] = struct{}{}
}

// IsHeightDataReady сообщает, готова ли карта высот колонки
func (t *HeightTracker) IsHeightDataReady(pos vec.Vec2) bool {
	_, ok := t.ready[pos]
	return ok
}

// RegisterHeightChangeListener подписывает слушателя на изменения высот.
// Слушатели вызываются синхронно из NotifyHeightChange.
func (t *HeightTracker) RegisterHeightChangeListener(fn func(blockX, blockZ int)) {
	t.listeners = append(t.listeners, fn)
}

// NotifyHeightChange рассылает изменение высоты в блочных координатах
func (t *HeightTracker) NotifyHeightChange(blockX, blockZ int) {
	for _, fn := range t.listeners {
		fn(blockX, blockZ)
	}
}
