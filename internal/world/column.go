package world

import (
	"sync"

	"github.com/Foghrye4/CubicChunks/internal/vec"
)

// Column представляет вертикальный столб кубов с общими координатами (x,z).
// Хранит только двумерные производные данные: карту высот и биомы.
// Кубы внутри колонки живут независимо от неё.
type Column struct {
	Coords vec.Vec2 // Координаты колонки в мире

	// Heights[x][z] — высота верхнего непрозрачного блока в блочных координатах
	Heights [vec.CubeSize][vec.CubeSize]int32

	// Biomes[x][z] — идентификатор биома
	Biomes [vec.CubeSize][vec.CubeSize]uint8

	// InhabitedTime — суммарное число тиков под наблюдением игроков
	InhabitedTime uint64

	ChangeCounter int          // Счетчик изменений с момента загрузки
	Mu            sync.RWMutex // Мьютекс для безопасного доступа
}

// NewColumn создаёт пустую колонку с указанными координатами
func NewColumn(coords vec.Vec2) *Column {
	return &Column{Coords: coords}
}

// GetHeight возвращает высоту по локальным координатам
func (c *Column) GetHeight(localX, localZ int) int32 {
	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.Heights[localX][localZ]
}

// SetHeight устанавливает высоту по локальным координатам
func (c *Column) SetHeight(localX, localZ int, height int32) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.Heights[localX][localZ] = height
	c.ChangeCounter++
}
