package world

import (
	"sync"

	"github.com/Foghrye4/CubicChunks/internal/vec"
)

// BlockID идентифицирует тип блока
type BlockID uint16

// AirBlockID — пустой блок
const AirBlockID BlockID = 0

// Cube представляет кубический участок мира размером 16x16x16 блоков.
// Куб — минимальная единица генерации, хранения и отправки клиентам.
type Cube struct {
	Coords vec.Vec3 // Координаты куба в мире

	// Blocks[x][y][z] — локальные блочные координаты внутри куба
	Blocks [vec.CubeSize][vec.CubeSize][vec.CubeSize]BlockID

	// FullyPopulated выставляется генератором после прохождения всех стадий
	FullyPopulated bool

	// InitialLightDone выставляется после первичного расчёта освещения
	InitialLightDone bool

	// InhabitedTime — суммарное число тиков, в течение которых куб был
	// в зоне видимости хотя бы одного игрока
	InhabitedTime uint64

	ChangeCounter int          // Счетчик изменений с момента загрузки
	Mu            sync.RWMutex // Мьютекс для безопасного доступа
}

// NewCube создаёт пустой куб с указанными координатами
func NewCube(coords vec.Vec3) *Cube {
	return &Cube{Coords: coords}
}

// IsFullyReady сообщает, готов ли куб к отправке клиентам:
// содержимое сгенерировано полностью и первичное освещение рассчитано
func (c *Cube) IsFullyReady() bool {
	return c != nil && c.FullyPopulated && c.InitialLightDone
}

// GetBlock возвращает блок по локальным координатам
func (c *Cube) GetBlock(localX, localY, localZ int) BlockID {
	c.Mu.RLock()
	defer c.Mu.RUnlock()
	return c.Blocks[localX][localY][localZ]
}

// SetBlock устанавливает блок по локальным координатам
func (c *Cube) SetBlock(localX, localY, localZ int, id BlockID) {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	c.Blocks[localX][localY][localZ] = id
	c.ChangeCounter++
}

// PackLocalAddress упаковывает локальные координаты блока в 12 бит (x<<8|y<<4|z).
// Формат адреса используется в дельтах изменений наблюдателей.
func PackLocalAddress(localX, localY, localZ int) uint16 {
	return uint16(localX<<8 | localY<<4 | localZ)
}

// UnpackLocalAddress распаковывает адрес блока в локальные координаты
func UnpackLocalAddress(addr uint16) (localX, localY, localZ int) {
	return int(addr >> 8 & 0xF), int(addr >> 4 & 0xF), int(addr & 0xF)
}
