package world

import (
	"fmt"

	"github.com/Foghrye4/CubicChunks/internal/logging"
	"github.com/Foghrye4/CubicChunks/internal/vec"
)

// HeightSink получает уведомления о колонках с готовой картой высот
type HeightSink interface {
	MarkReady(pos vec.Vec2)
}

// CubeCache — кеш загруженных кубов и колонок поверх хранилища и генератора.
// Реализует CubeSource. Интерес отслеживается по позиции: на каждую позицию
// существует не более одного наблюдателя, поэтому достаточно множества.
// Содержимое без интереса выживает до явного запроса на выгрузку.
type CubeCache struct {
	store     CubeStore
	generator Generator
	heights   HeightSink
	log       *logging.Logger

	cubes   map[vec.Vec3]*Cube
	columns map[vec.Vec2]*Column

	cubeInterest   map[vec.Vec3]struct{}
	columnInterest map[vec.Vec2]struct{}
}

// NewCubeCache создаёт кеш. heights может быть nil.
func NewCubeCache(store CubeStore, generator Generator, heights HeightSink) *CubeCache {
	return &CubeCache{
		store:          store,
		generator:      generator,
		heights:        heights,
		log:            logging.GetWorldLogger(),
		cubes:          make(map[vec.Vec3]*Cube),
		columns:        make(map[vec.Vec2]*Column),
		cubeInterest:   make(map[vec.Vec3]struct{}),
		columnInterest: make(map[vec.Vec2]struct{}),
	}
}

// TryCube возвращает куб из кеша или хранилища, не инициируя генерацию.
// Успех регистрирует интерес к позиции.
func (c *CubeCache) TryCube(pos vec.Vec3) *Cube {
	if cube, ok := c.cubes[pos]; ok {
		c.cubeInterest[pos] = struct{}{}
		return cube
	}
	cube, err := c.store.TryLoadCube(pos)
	if err != nil {
		c.log.Warn("Загрузка куба %v из хранилища не удалась: %v", pos, err)
		return nil
	}
	if cube == nil {
		return nil
	}
	c.cubes[pos] = cube
	c.cubeInterest[pos] = struct{}{}
	return cube
}

// ProvideCube возвращает куб, при необходимости загружая или генерируя его.
// Колонка куба обеспечивается первой: карта высот нужна подсистеме освещения.
func (c *CubeCache) ProvideCube(pos vec.Vec3) (*Cube, error) {
	if cube, ok := c.cubes[pos]; ok && cube.IsFullyReady() {
		c.cubeInterest[pos] = struct{}{}
		return cube, nil
	}

	if _, err := c.ProvideColumn(pos.ToVec2()); err != nil {
		return nil, fmt.Errorf("колонка для куба %v: %w", pos, err)
	}

	cube, err := c.store.TryLoadCube(pos)
	if err != nil {
		return nil, fmt.Errorf("загрузка куба %v: %w", pos, err)
	}
	if cube == nil || !cube.IsFullyReady() {
		cube, err = c.generator.GenerateCube(pos)
		if err != nil {
			return nil, fmt.Errorf("генерация куба %v: %w", pos, err)
		}
	}

	c.cubes[pos] = cube
	c.cubeInterest[pos] = struct{}{}
	return cube, nil
}

// TryColumn возвращает колонку из кеша или хранилища без генерации
func (c *CubeCache) TryColumn(pos vec.Vec2) *Column {
	if column, ok := c.columns[pos]; ok {
		c.columnInterest[pos] = struct{}{}
		return column
	}
	column, err := c.store.TryLoadColumn(pos)
	if err != nil {
		c.log.Warn("Загрузка колонки %v из хранилища не удалась: %v", pos, err)
		return nil
	}
	if column == nil {
		return nil
	}
	c.columns[pos] = column
	c.columnInterest[pos] = struct{}{}
	c.notifyHeightsReady(pos)
	return column
}

// ProvideColumn возвращает колонку, при необходимости генерируя её
func (c *CubeCache) ProvideColumn(pos vec.Vec2) (*Column, error) {
	if column, ok := c.columns[pos]; ok {
		c.columnInterest[pos] = struct{}{}
		return column, nil
	}

	column, err := c.store.TryLoadColumn(pos)
	if err != nil {
		return nil, fmt.Errorf("загрузка колонки %v: %w", pos, err)
	}
	if column == nil {
		column, err = c.generator.GenerateColumn(pos)
		if err != nil {
			return nil, fmt.Errorf("генерация колонки %v: %w", pos, err)
		}
	}

	c.columns[pos] = column
	c.columnInterest[pos] = struct{}{}
	c.notifyHeightsReady(pos)
	return column, nil
}

// ReleaseCube снимает интерес с позиции. Сам куб остаётся в кеше до
// запроса на выгрузку.
func (c *CubeCache) ReleaseCube(pos vec.Vec3) {
	delete(c.cubeInterest, pos)
}

// ReleaseColumn снимает интерес с позиции колонки
func (c *CubeCache) ReleaseColumn(pos vec.Vec2) {
	delete(c.columnInterest, pos)
}

// UnloadAllRequest сохраняет и выгружает всё содержимое без интереса
func (c *CubeCache) UnloadAllRequest() {
	for pos, cube := range c.cubes {
		if _, interested := c.cubeInterest[pos]; interested {
			continue
		}
		if err := c.store.SaveCube(cube); err != nil {
			c.log.Error("Сохранение куба %v при выгрузке не удалось: %v", pos, err)
			continue
		}
		delete(c.cubes, pos)
	}
	for pos, column := range c.columns {
		if _, interested := c.columnInterest[pos]; interested {
			continue
		}
		if err := c.store.SaveColumn(column); err != nil {
			c.log.Error("Сохранение колонки %v при выгрузке не удалось: %v", pos, err)
			continue
		}
		delete(c.columns, pos)
	}
}

// SaveAll сохраняет всё содержимое кеша. Вызывается при остановке мира.
func (c *CubeCache) SaveAll() error {
	var firstErr error
	for pos, cube := range c.cubes {
		if err := c.store.SaveCube(cube); err != nil {
			c.log.Error("Сохранение куба %v не удалось: %v", pos, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	for pos, column := range c.columns {
		if err := c.store.SaveColumn(column); err != nil {
			c.log.Error("Сохранение колонки %v не удалось: %v", pos, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// LoadedCubes возвращает число кубов в кеше
func (c *CubeCache) LoadedCubes() int {
	return len(c.cubes)
}

// LoadedColumns возвращает число колонок в кеше
func (c *CubeCache) LoadedColumns() int {
	return len(c.columns)
}

func (c *CubeCache) notifyHeightsReady(pos vec.Vec2) {
	if c.heights != nil {
		c.heights.MarkReady(pos)
	}
}
