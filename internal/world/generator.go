package world

import (
	"github.com/Foghrye4/CubicChunks/internal/util"
	"github.com/Foghrye4/CubicChunks/internal/vec"
)

// Базовые блоки процедурного генератора
const (
	StoneBlockID BlockID = 1
	DirtBlockID  BlockID = 2
	GrassBlockID BlockID = 3
	WaterBlockID BlockID = 4
)

// SeaLevel — уровень воды в блоках
const SeaLevel = 63

// PerlinGenerator — процедурный генератор рельефа на шуме Перлина.
// Детерминирован: один сид даёт одинаковый мир на каждом запуске.
type PerlinGenerator struct {
	noise *util.NoiseGenerator
	seed  int64
}

// NewPerlinGenerator создаёт генератор с заданным сидом
func NewPerlinGenerator(seed int64) *PerlinGenerator {
	return &PerlinGenerator{
		noise: util.NewNoiseGenerator(seed),
		seed:  seed,
	}
}

// GenerateColumn строит карту высот и биомы колонки
func (g *PerlinGenerator) GenerateColumn(pos vec.Vec2) (*Column, error) {
	column := NewColumn(pos)
	baseX := vec.CubeToMinBlock(pos.X)
	baseZ := vec.CubeToMinBlock(pos.Z)

	for lx := 0; lx < vec.CubeSize; lx++ {
		for lz := 0; lz < vec.CubeSize; lz++ {
			height := g.terrainHeight(baseX+lx, baseZ+lz)
			column.Heights[lx][lz] = int32(height)
			column.Biomes[lx][lz] = g.biomeAt(baseX+lx, baseZ+lz, height)
		}
	}
	return column, nil
}

// GenerateCube строит куб по карте высот: камень в глубине, почва у
// поверхности, вода до уровня моря. Куб сразу полностью заселён и освещён.
func (g *PerlinGenerator) GenerateCube(pos vec.Vec3) (*Cube, error) {
	cube := NewCube(pos)
	baseX := vec.CubeToMinBlock(pos.X)
	baseY := vec.CubeToMinBlock(pos.Y)
	baseZ := vec.CubeToMinBlock(pos.Z)

	for lx := 0; lx < vec.CubeSize; lx++ {
		for lz := 0; lz < vec.CubeSize; lz++ {
			height := g.terrainHeight(baseX+lx, baseZ+lz)
			for ly := 0; ly < vec.CubeSize; ly++ {
				blockY := baseY + ly
				cube.Blocks[lx][ly][lz] = blockFor(blockY, height)
			}
		}
	}

	cube.FullyPopulated = true
	cube.InitialLightDone = true
	return cube, nil
}

// terrainHeight возвращает высоту поверхности в блочных координатах.
// Два слоя шума: крупный рельеф и мелкая детализация.
func (g *PerlinGenerator) terrainHeight(blockX, blockZ int) int {
	base := g.noise.Noise2D(float64(blockX)/256.0, float64(blockZ)/256.0)
	detail := g.noise.Noise2D(float64(blockX)/32.0, float64(blockZ)/32.0)
	return int(base*96.0 + detail*12.0)
}

// biomeAt грубо классифицирует поверхность по высоте и влажности
func (g *PerlinGenerator) biomeAt(blockX, blockZ, height int) uint8 {
	if height < SeaLevel {
		return 0 // океан
	}
	humidity := g.noise.Noise2D(float64(blockX)/512.0+1000.0, float64(blockZ)/512.0)
	if humidity < 0.3 {
		return 1 // пустыня
	}
	if height > 90 {
		return 3 // горы
	}
	return 2 // равнины
}

func blockFor(blockY, height int) BlockID {
	switch {
	case blockY < height-3:
		return StoneBlockID
	case blockY < height:
		return DirtBlockID
	case blockY == height:
		if blockY < SeaLevel {
			return DirtBlockID
		}
		return GrassBlockID
	case blockY <= SeaLevel:
		return WaterBlockID
	default:
		return AirBlockID
	}
}
