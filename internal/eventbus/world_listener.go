package eventbus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Foghrye4/CubicChunks/internal/logging"
)

// BlockChangedEvent — полезная нагрузка события изменения блока
// (в блочных координатах)
type BlockChangedEvent struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
	Block uint16 `json:"block"`
}

// HeightChangedEvent — полезная нагрузка события изменения высоты
type HeightChangedEvent struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// BlockUpdateSink — приёмник изменений мира. Планировщик реализует его
// методами MarkBlockForUpdate и HeightUpdated.
type BlockUpdateSink interface {
	MarkBlockForUpdate(blockX, blockY, blockZ int)
	HeightUpdated(blockX, blockZ int)
}

// WorldListener буферизует события шины и применяет их к планировщику
// из потока симуляции. Обработчики шины вызываются из чужих горутин,
// поэтому напрямую трогать планировщик нельзя.
type WorldListener struct {
	source string
	logger *logging.Logger

	mu      sync.Mutex
	pending []*Envelope
	sub     Subscription
}

// NewWorldListener подписывает слушателя на события изменений мира.
// source исключает собственные события узла из обработки.
func NewWorldListener(ctx context.Context, bus EventBus, source string) (*WorldListener, error) {
	l := &WorldListener{
		source: source,
		logger: logging.GetWorldLogger(),
	}

	sub, err := bus.Subscribe(ctx, Filter{
		Types: []string{EventBlockChanged, EventHeightChanged},
	}, l.enqueue)
	if err != nil {
		return nil, err
	}
	l.sub = sub
	return l, nil
}

// enqueue буферизует событие до ближайшего тика
func (l *WorldListener) enqueue(_ context.Context, ev *Envelope) {
	if ev.Source == l.source {
		return // собственное эхо
	}
	l.mu.Lock()
	l.pending = append(l.pending, ev)
	l.mu.Unlock()
}

// Drain применяет накопленные события к планировщику.
// Вызывается из потока симуляции перед тиком.
func (l *WorldListener) Drain(sink BlockUpdateSink) {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, ev := range batch {
		switch ev.EventType {
		case EventBlockChanged:
			var e BlockChangedEvent
			if err := json.Unmarshal(ev.Payload, &e); err != nil {
				l.logger.Warn("Неразборчивое событие %s (%s): %v", ev.EventType, ev.ID, err)
				continue
			}
			sink.MarkBlockForUpdate(e.X, e.Y, e.Z)
		case EventHeightChanged:
			var e HeightChangedEvent
			if err := json.Unmarshal(ev.Payload, &e); err != nil {
				l.logger.Warn("Неразборчивое событие %s (%s): %v", ev.EventType, ev.ID, err)
				continue
			}
			sink.HeightUpdated(e.X, e.Z)
		}
	}
}

// Close отписывает слушателя от шины
func (l *WorldListener) Close() {
	if l.sub != nil {
		l.sub.Unsubscribe()
	}
}

// PublishBlockChanged публикует изменение блока от имени source
func PublishBlockChanged(ctx context.Context, bus EventBus, source string, e BlockChangedEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return bus.Publish(ctx, NewEnvelope(source, EventBlockChanged, payload))
}

// PublishHeightChanged публикует изменение высоты от имени source
func PublishHeightChanged(ctx context.Context, bus EventBus, source string, e HeightChangedEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return bus.Publish(ctx, NewEnvelope(source, EventHeightChanged, payload))
}
