package network

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/Foghrye4/CubicChunks/internal/vec"
	"github.com/Foghrye4/CubicChunks/internal/world"
)

// cubePayload — формат полного куба на проводе
type cubePayload struct {
	Coords        vec.Vec3                  `json:"coords"`
	Blocks        [16][16][16]world.BlockID `json:"blocks"`
	InhabitedTime uint64                    `json:"inhabited_time"`
}

// columnPayload — формат колонки на проводе
type columnPayload struct {
	Coords  vec.Vec2      `json:"coords"`
	Heights [16][16]int32 `json:"heights"`
	Biomes  [16][16]uint8 `json:"biomes"`
}

// blockDelta — одно изменение блока по упакованному локальному адресу
type blockDelta struct {
	Addr  uint16        `json:"addr"`
	Block world.BlockID `json:"block"`
}

// deltasPayload — формат пакета изменений на проводе
type deltasPayload struct {
	Coords vec.Vec3     `json:"coords"`
	Deltas []blockDelta `json:"deltas"`
}

// ZstdSerializer кодирует содержимое мира в JSON со сжатием zstd.
// Реализует world.Serializer. Потокобезопасен: EncodeAll/DecodeAll
// не используют внутреннее состояние записи.
type ZstdSerializer struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdSerializer создаёт сериализатор
func NewZstdSerializer() (*ZstdSerializer, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("не удалось создать компрессор: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать декомпрессор: %w", err)
	}
	return &ZstdSerializer{encoder: encoder, decoder: decoder}, nil
}

// EncodeCube кодирует полное содержимое куба
func (s *ZstdSerializer) EncodeCube(cube *world.Cube) ([]byte, error) {
	cube.Mu.RLock()
	payload := cubePayload{
		Coords:        cube.Coords,
		Blocks:        cube.Blocks,
		InhabitedTime: cube.InhabitedTime,
	}
	cube.Mu.RUnlock()
	return s.compress(payload)
}

// EncodeColumn кодирует высоты и биомы колонки
func (s *ZstdSerializer) EncodeColumn(column *world.Column) ([]byte, error) {
	column.Mu.RLock()
	payload := columnPayload{
		Coords:  column.Coords,
		Heights: column.Heights,
		Biomes:  column.Biomes,
	}
	column.Mu.RUnlock()
	return s.compress(payload)
}

// EncodeBlockDeltas кодирует изменения блоков по упакованным адресам
func (s *ZstdSerializer) EncodeBlockDeltas(cube *world.Cube, addresses []uint16) ([]byte, error) {
	payload := deltasPayload{
		Coords: cube.Coords,
		Deltas: make([]blockDelta, 0, len(addresses)),
	}
	cube.Mu.RLock()
	for _, addr := range addresses {
		x, y, z := world.UnpackLocalAddress(addr)
		payload.Deltas = append(payload.Deltas, blockDelta{
			Addr:  addr,
			Block: cube.Blocks[x][y][z],
		})
	}
	cube.Mu.RUnlock()
	return s.compress(payload)
}

// DecodeCube восстанавливает куб из полезной нагрузки
func (s *ZstdSerializer) DecodeCube(data []byte) (*world.Cube, error) {
	var payload cubePayload
	if err := s.decompress(data, &payload); err != nil {
		return nil, err
	}
	cube := world.NewCube(payload.Coords)
	cube.Blocks = payload.Blocks
	cube.InhabitedTime = payload.InhabitedTime
	cube.FullyPopulated = true
	cube.InitialLightDone = true
	return cube, nil
}

// DecodeColumn восстанавливает колонку из полезной нагрузки
func (s *ZstdSerializer) DecodeColumn(data []byte) (*world.Column, error) {
	var payload columnPayload
	if err := s.decompress(data, &payload); err != nil {
		return nil, err
	}
	column := world.NewColumn(payload.Coords)
	column.Heights = payload.Heights
	column.Biomes = payload.Biomes
	return column, nil
}

// ApplyBlockDeltas применяет пакет изменений к кубу
func (s *ZstdSerializer) ApplyBlockDeltas(cube *world.Cube, data []byte) error {
	var payload deltasPayload
	if err := s.decompress(data, &payload); err != nil {
		return err
	}
	cube.Mu.Lock()
	for _, delta := range payload.Deltas {
		x, y, z := world.UnpackLocalAddress(delta.Addr)
		cube.Blocks[x][y][z] = delta.Block
	}
	cube.Mu.Unlock()
	return nil
}

func (s *ZstdSerializer) compress(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации: %w", err)
	}
	return s.encoder.EncodeAll(data, nil), nil
}

func (s *ZstdSerializer) decompress(data []byte, v interface{}) error {
	raw, err := s.decoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("ошибка распаковки: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("ошибка десериализации: %w", err)
	}
	return nil
}
