package vec

// Vec2 представляет координаты колонки (вертикального столба кубов) в мире
type Vec2 struct {
	X int
	Z int
}

// ChebyshevDistanceTo возвращает расстояние Чебышёва до другой колонки.
// Используется для сортировки очередей генерации/отправки по удалённости.
func (v Vec2) ChebyshevDistanceTo(other Vec2) int {
	dx := abs(v.X - other.X)
	dz := abs(v.Z - other.Z)
	if dx > dz {
		return dx
	}
	return dz
}

// Equals проверяет равенство координат
func (v Vec2) Equals(other Vec2) bool {
	return v.X == other.X && v.Z == other.Z
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
