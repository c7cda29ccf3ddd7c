package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("условие не выполнилось за отведённое время")
}

func TestMemoryBusPublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	var mu sync.Mutex
	var received []*Envelope
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{EventBlockChanged}},
		func(_ context.Context, ev *Envelope) {
			mu.Lock()
			received = append(received, ev)
			mu.Unlock()
		})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(),
		NewEnvelope("node-1", EventBlockChanged, []byte(`{}`))))
	require.NoError(t, bus.Publish(context.Background(),
		NewEnvelope("node-1", EventHeightChanged, []byte(`{}`))))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1, "Фильтр должен пропустить только подписанный тип")
	assert.Equal(t, EventBlockChanged, received[0].EventType)
	assert.NotEmpty(t, received[0].ID)
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	var count int
	var mu sync.Mutex
	sub, err := bus.Subscribe(context.Background(), Filter{},
		func(_ context.Context, ev *Envelope) {
			mu.Lock()
			count++
			mu.Unlock()
		})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(),
		NewEnvelope("node-1", EventPlayerJoined, nil)))
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	})

	sub.Unsubscribe()
	require.NoError(t, bus.Publish(context.Background(),
		NewEnvelope("node-1", EventPlayerJoined, nil)))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count, "После отписки события не должны доставляться")
}

func TestMemoryBusDropsLowPriorityWhenFull(t *testing.T) {
	bus := NewMemoryBus(1)
	// Без подписчиков dispatch вычитывает буфер; заполняем быстрее
	for i := 0; i < 50; i++ {
		_ = bus.Publish(context.Background(), NewEnvelope("node-1", EventBlockChanged, nil))
	}
	stats := bus.Metrics()
	assert.Equal(t, uint64(50), stats.Published+stats.Dropped,
		"Каждое событие либо принято, либо учтено как отброшенное")
	bus.Close()
}

type sinkRecorder struct {
	mu      sync.Mutex
	blocks  [][3]int
	heights [][2]int
}

func (s *sinkRecorder) MarkBlockForUpdate(x, y, z int) {
	s.mu.Lock()
	s.blocks = append(s.blocks, [3]int{x, y, z})
	s.mu.Unlock()
}

func (s *sinkRecorder) HeightUpdated(x, z int) {
	s.mu.Lock()
	s.heights = append(s.heights, [2]int{x, z})
	s.mu.Unlock()
}

func TestWorldListenerDrainsRemoteEvents(t *testing.T) {
	bus := NewMemoryBus(16)
	defer bus.Close()

	listener, err := NewWorldListener(context.Background(), bus, "node-1")
	require.NoError(t, err)
	defer listener.Close()

	require.NoError(t, PublishBlockChanged(context.Background(), bus, "node-2",
		BlockChangedEvent{X: 10, Y: 20, Z: 30, Block: 5}))
	require.NoError(t, PublishHeightChanged(context.Background(), bus, "node-2",
		HeightChangedEvent{X: 10, Z: 30}))
	// Собственные события узла игнорируются
	require.NoError(t, PublishBlockChanged(context.Background(), bus, "node-1",
		BlockChangedEvent{X: 1, Y: 2, Z: 3}))

	sink := &sinkRecorder{}
	waitFor(t, func() bool {
		listener.Drain(sink)
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.blocks) >= 1 && len(sink.heights) >= 1
	})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, [][3]int{{10, 20, 30}}, sink.blocks)
	assert.Equal(t, [][2]int{{10, 30}}, sink.heights)
}
