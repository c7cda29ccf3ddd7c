package util

import (
	"github.com/aquilax/go-perlin"
)

// NoiseGenerator оборачивает шум Перлина с фиксированным сидом.
// Каждый мир создаёт собственный экземпляр, глобального состояния нет.
type NoiseGenerator struct {
	perlin *perlin.Perlin
	seed   int64
}

// NewNoiseGenerator создаёт генератор шума Перлина с указанным сидом
func NewNoiseGenerator(seed int64) *NoiseGenerator {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав

	return &NoiseGenerator{
		perlin: perlin.NewPerlin(alpha, beta, n, seed),
		seed:   seed,
	}
}

// Seed возвращает сид генератора
func (ng *NoiseGenerator) Seed() int64 {
	return ng.seed
}

// Noise2D возвращает значение шума для указанных координат (от 0 до 1)
func (ng *NoiseGenerator) Noise2D(x, y float64) float64 {
	// Noise2D возвращает значение от -1 до 1, приводим к диапазону 0..1
	return (ng.perlin.Noise2D(x, y) + 1.0) / 2.0
}

// Noise3D возвращает значение трёхмерного шума (от 0 до 1)
func (ng *NoiseGenerator) Noise3D(x, y, z float64) float64 {
	return (ng.perlin.Noise3D(x, y, z) + 1.0) / 2.0
}
