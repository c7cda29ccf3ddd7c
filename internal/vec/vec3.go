package vec

// Размер ребра куба в блоках. Куб — минимальная единица генерации и отправки.
const CubeSize = 16

// Vec3 представляет координаты куба в мире (целочисленная тройка)
type Vec3 struct {
	X int
	Y int
	Z int
}

// ToVec2 проецирует координаты куба на координаты его колонки (отбрасывает Y)
func (v Vec3) ToVec2() Vec2 {
	return Vec2{X: v.X, Z: v.Z}
}

// Equals проверяет равенство координат
func (v Vec3) Equals(other Vec3) bool {
	return v.X == other.X && v.Y == other.Y && v.Z == other.Z
}

// Add складывает два вектора
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// ChebyshevDistanceTo возвращает расстояние Чебышёва до другого куба
func (v Vec3) ChebyshevDistanceTo(other Vec3) int {
	d := abs(v.X - other.X)
	if dy := abs(v.Y - other.Y); dy > d {
		d = dy
	}
	if dz := abs(v.Z - other.Z); dz > d {
		d = dz
	}
	return d
}

// BlockToCube преобразует блочную координату в координату куба.
// Арифметический сдвиг корректно обрабатывает отрицательные значения.
func BlockToCube(blockCoord int) int {
	return blockCoord >> 4
}

// BlockToLocal возвращает локальную координату блока внутри куба (0..15)
func BlockToLocal(blockCoord int) int {
	return blockCoord & 0xF
}

// CubeToMinBlock возвращает минимальную блочную координату куба
func CubeToMinBlock(cubeCoord int) int {
	return cubeCoord << 4
}
