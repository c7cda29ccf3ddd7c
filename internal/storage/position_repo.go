package storage

import (
	"sync"
	"time"

	"github.com/Foghrye4/CubicChunks/internal/vec"
)

// PlayerPosition — последняя известная позиция игрока
type PlayerPosition struct {
	PlayerID  uint64        `json:"player_id"`
	Position  vec.Vec3Float `json:"position"`
	Dimension string        `json:"dimension"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// PositionRepository хранит позиции игроков между сессиями
type PositionRepository interface {
	SavePosition(pos *PlayerPosition) error
	LoadPosition(playerID uint64) (*PlayerPosition, error)
	RemovePosition(playerID uint64) error
	Close() error
}

// MemoryPositionRepository — реализация в памяти для тестов и
// одиночных серверов без Redis
type MemoryPositionRepository struct {
	mu        sync.RWMutex
	positions map[uint64]*PlayerPosition
}

// NewMemoryPositionRepository создаёт пустой репозиторий
func NewMemoryPositionRepository() *MemoryPositionRepository {
	return &MemoryPositionRepository{
		positions: make(map[uint64]*PlayerPosition),
	}
}

// SavePosition сохраняет позицию игрока
func (r *MemoryPositionRepository) SavePosition(pos *PlayerPosition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *pos
	copied.UpdatedAt = time.Now()
	r.positions[pos.PlayerID] = &copied
	return nil
}

// LoadPosition возвращает позицию игрока или nil, если она неизвестна
func (r *MemoryPositionRepository) LoadPosition(playerID uint64) (*PlayerPosition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.positions[playerID]
	if !ok {
		return nil, nil
	}
	copied := *pos
	return &copied, nil
}

// RemovePosition удаляет позицию игрока
func (r *MemoryPositionRepository) RemovePosition(playerID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.positions, playerID)
	return nil
}

// Close освобождает ресурсы (для реализации в памяти — no-op)
func (r *MemoryPositionRepository) Close() error {
	return nil
}
