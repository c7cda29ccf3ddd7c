package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/Foghrye4/CubicChunks/internal/vec"
	"github.com/Foghrye4/CubicChunks/internal/world"
)

// BadgerCubeStore — постоянное хранилище кубов и колонок поверх BadgerDB.
// Реализует world.CubeStore. Значения сериализуются в JSON.
type BadgerCubeStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// cubeRecord — формат куба на диске
type cubeRecord struct {
	Coords           vec.Vec3                    `json:"coords"`
	Blocks           [16][16][16]world.BlockID   `json:"blocks"`
	FullyPopulated   bool                        `json:"fully_populated"`
	InitialLightDone bool                        `json:"initial_light_done"`
	InhabitedTime    uint64                      `json:"inhabited_time"`
}

// columnRecord — формат колонки на диске
type columnRecord struct {
	Coords        vec.Vec2      `json:"coords"`
	Heights       [16][16]int32 `json:"heights"`
	Biomes        [16][16]uint8 `json:"biomes"`
	InhabitedTime uint64        `json:"inhabited_time"`
}

// NewBadgerCubeStore открывает хранилище в каталоге dataPath
func NewBadgerCubeStore(dataPath string) (*BadgerCubeStore, error) {
	dbPath := filepath.Join(dataPath, "world")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerCubeStore{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// NewInMemoryCubeStore открывает хранилище без записи на диск.
// Используется в тестах и одноразовых мирах.
func NewInMemoryCubeStore() (*BadgerCubeStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB в памяти: %w", err)
	}
	return &BadgerCubeStore{db: db, isReady: true}, nil
}

// Close закрывает хранилище
func (s *BadgerCubeStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	return s.db.Close()
}

// TryLoadCube загружает куб; отсутствующая запись — (nil, nil)
func (s *BadgerCubeStore) TryLoadCube(pos vec.Vec3) (*world.Cube, error) {
	data, err := s.read(cubeKey(pos))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var record cubeRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("ошибка десериализации куба %v: %w", pos, err)
	}

	cube := world.NewCube(record.Coords)
	cube.Blocks = record.Blocks
	cube.FullyPopulated = record.FullyPopulated
	cube.InitialLightDone = record.InitialLightDone
	cube.InhabitedTime = record.InhabitedTime
	return cube, nil
}

// TryLoadColumn загружает колонку; отсутствующая запись — (nil, nil)
func (s *BadgerCubeStore) TryLoadColumn(pos vec.Vec2) (*world.Column, error) {
	data, err := s.read(columnKey(pos))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var record columnRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("ошибка десериализации колонки %v: %w", pos, err)
	}

	column := world.NewColumn(record.Coords)
	column.Heights = record.Heights
	column.Biomes = record.Biomes
	column.InhabitedTime = record.InhabitedTime
	return column, nil
}

// SaveCube сохраняет куб
func (s *BadgerCubeStore) SaveCube(cube *world.Cube) error {
	cube.Mu.RLock()
	record := cubeRecord{
		Coords:           cube.Coords,
		Blocks:           cube.Blocks,
		FullyPopulated:   cube.FullyPopulated,
		InitialLightDone: cube.InitialLightDone,
		InhabitedTime:    cube.InhabitedTime,
	}
	cube.Mu.RUnlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("ошибка сериализации куба %v: %w", cube.Coords, err)
	}
	return s.write(cubeKey(cube.Coords), data)
}

// SaveColumn сохраняет колонку
func (s *BadgerCubeStore) SaveColumn(column *world.Column) error {
	column.Mu.RLock()
	record := columnRecord{
		Coords:        column.Coords,
		Heights:       column.Heights,
		Biomes:        column.Biomes,
		InhabitedTime: column.InhabitedTime,
	}
	column.Mu.RUnlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("ошибка сериализации колонки %v: %w", column.Coords, err)
	}
	return s.write(columnKey(column.Coords), data)
}

func (s *BadgerCubeStore) read(key string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return data, nil
}

func (s *BadgerCubeStore) write(key string, data []byte) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return fmt.Errorf("хранилище не готово")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка записи в BadgerDB: %w", err)
	}
	return nil
}

func cubeKey(pos vec.Vec3) string {
	return fmt.Sprintf("cube:%d:%d:%d", pos.X, pos.Y, pos.Z)
}

func columnKey(pos vec.Vec2) string {
	return fmt.Sprintf("column:%d:%d", pos.X, pos.Z)
}
