package world

import (
	"github.com/google/uuid"

	"github.com/Foghrye4/CubicChunks/internal/vec"
)

// CubeStore — постоянное хранилище кубов и колонок.
// TryLoad* никогда не инициируют генерацию: отсутствующая запись — это (nil, nil).
type CubeStore interface {
	TryLoadCube(pos vec.Vec3) (*Cube, error)
	TryLoadColumn(pos vec.Vec2) (*Column, error)
	SaveCube(cube *Cube) error
	SaveColumn(column *Column) error
	Close() error
}

// Generator — генератор ландшафта. Вызовы могут быть дорогими, поэтому
// планировщик ограничивает их бюджетом на тик.
type Generator interface {
	GenerateCube(pos vec.Vec3) (*Cube, error)
	GenerateColumn(pos vec.Vec2) (*Column, error)
}

// CubeSource объединяет доступ наблюдателей к содержимому: неинициирующая
// загрузка, генерация по требованию и освобождение интереса.
// Наблюдатели никогда не удаляют содержимое сами — только снимают интерес.
type CubeSource interface {
	// TryCube возвращает куб из кеша или хранилища, не генерируя его
	TryCube(pos vec.Vec3) *Cube
	// ProvideCube загружает или генерирует куб
	ProvideCube(pos vec.Vec3) (*Cube, error)
	// TryColumn возвращает колонку из кеша или хранилища, не генерируя её
	TryColumn(pos vec.Vec2) *Column
	// ProvideColumn загружает или генерирует колонку
	ProvideColumn(pos vec.Vec2) (*Column, error)
	// ReleaseCube снимает интерес наблюдателя: куб становится кандидатом на выгрузку
	ReleaseCube(pos vec.Vec3)
	// ReleaseColumn снимает интерес наблюдателя с колонки
	ReleaseColumn(pos vec.Vec2)
	// UnloadAllRequest запрашивает массовую выгрузку. Вызывается планировщиком,
	// когда в мире не осталось ни одного игрока.
	UnloadAllRequest()
}

// LightingHeightSource — подсистема освещения. Сообщает о готовности данных
// высот и уведомляет об их изменениях (в блочных координатах).
type LightingHeightSource interface {
	IsHeightDataReady(pos vec.Vec2) bool
	RegisterHeightChangeListener(listener func(blockX, blockZ int))
}

// MessageKind определяет тип сообщения для клиента
type MessageKind uint8

const (
	MessageCubeFull MessageKind = iota // Полное содержимое куба
	MessageCubeDeltas                  // Накопленные изменения блоков куба
	MessageColumn                      // Данные колонки (высоты, биомы)
)

// CubeMessage — единица передачи, уже сериализованная на потоке планировщика.
// Транспорт может отправлять её асинхронно: структура неизменяема после создания.
type CubeMessage struct {
	Kind    MessageKind `json:"kind"`
	X       int         `json:"x"`
	Y       int         `json:"y,omitempty"`
	Z       int         `json:"z"`
	Payload []byte      `json:"payload"`
}

// Transport доставляет пакеты клиентам. Планировщик собирает по одному батчу
// на игрока за тик и передаёт его целиком.
type Transport interface {
	SendBatch(playerID uint64, batch []CubeMessage) error
}

// Serializer кодирует содержимое в полезную нагрузку сообщений
type Serializer interface {
	EncodeCube(cube *Cube) ([]byte, error)
	EncodeColumn(column *Column) ([]byte, error)
	// EncodeBlockDeltas кодирует изменения по упакованным локальным адресам
	EncodeBlockDeltas(cube *Cube, addresses []uint16) ([]byte, error)
}

// WorldRules — правила мира, влияющие на планирование
type WorldRules interface {
	// CanRespawnHere сообщает, допускает ли измерение точку возрождения.
	// Если нет и игроков не осталось — планировщик запрашивает выгрузку мира.
	CanRespawnHere() bool
	// SpectatorsGenerateChunks разрешает наблюдателям-спектаторам инициировать генерацию
	SpectatorsGenerateChunks() bool
}

// Player — наблюдатель, позицией которого управляет внешний движок.
// Планировщик хранит только обратные ссылки для адресации отправки.
type Player struct {
	ID        uint64
	UUID      uuid.UUID
	Pos       vec.Vec3Float // Живая позиция в блочных координатах
	Spectator bool
}

// CubePos возвращает координаты куба, в котором находится игрок
func (p *Player) CubePos() vec.Vec3 {
	return p.Pos.ToCube()
}
