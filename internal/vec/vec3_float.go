package vec

import "math"

// Vec3Float представляет позицию сущности в блочных координатах с плавающей точкой
type Vec3Float struct {
	X float64
	Y float64
	Z float64
}

// ToCube возвращает координаты куба, содержащего эту позицию
func (v Vec3Float) ToCube() Vec3 {
	return Vec3{
		X: BlockToCube(int(math.Floor(v.X))),
		Y: BlockToCube(int(math.Floor(v.Y))),
		Z: BlockToCube(int(math.Floor(v.Z))),
	}
}

// Add складывает два вектора
func (v Vec3Float) Add(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// DistanceTo вычисляет евклидово расстояние до другой точки
func (v Vec3Float) DistanceTo(other Vec3Float) float64 {
	dx := v.X - other.X
	dy := v.Y - other.Y
	dz := v.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
