package util

import (
	"github.com/aquilax/go-perlin"
)

// NoiseGenerator оборачивает шум Перлина для генерации карты арены.
// Один и тот же сид всегда даёт одну и ту же раскладку стен.
type NoiseGenerator struct {
	perlin *perlin.Perlin
}

// NewNoiseGenerator создаёт генератор шума с указанным сидом
func NewNoiseGenerator(seed int64) *NoiseGenerator {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &NoiseGenerator{perlin: perlin.NewPerlin(alpha, beta, n, seed)}
}

// Noise2D возвращает значение шума для координат, приведённое к диапазону [0, 1]
func (g *NoiseGenerator) Noise2D(x, y float64) float64 {
	// Noise2D возвращает значение от -1 до 1
	noise := g.perlin.Noise2D(x, y)
	return (noise + 1.0) / 2.0
}
