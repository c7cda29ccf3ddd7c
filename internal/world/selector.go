package world

import (
	"github.com/Foghrye4/CubicChunks/internal/vec"
)

// CuboidalSelector перечисляет кубы, видимые наблюдателю, и вычисляет
// разность видимости при перемещении. Форма видимости — кубоид: все кубы
// в пределах hr по x/z и vr по y от центра включительно (покоординатный
// критерий Чебышёва).
//
// Разности вычисляются разложением "кубоид минус кубоид" на осевые слои,
// поэтому стоимость пропорциональна числу вошедших и вышедших кубов,
// а не полному объёму зоны видимости.
type CuboidalSelector struct{}

// ForAllVisibleFrom вызывает fn для каждого куба, видимого из center
func (CuboidalSelector) ForAllVisibleFrom(center vec.Vec3, hr, vr int, fn func(vec.Vec3)) {
	cuboidAround(center, hr, vr).forEach(fn)
}

// FindChanged вычисляет кубы и колонки, вышедшие из зоны видимости и
// вошедшие в неё при перемещении наблюдателя из oldPos в newPos.
// Колонки вычисляются отдельным двумерным проходом: для кубоидной формы
// принадлежность колонки зависит только от (x,z).
func (s CuboidalSelector) FindChanged(oldPos, newPos vec.Vec3, hr, vr int) (
	cubesToRemove, cubesToLoad []vec.Vec3,
	columnsToRemove, columnsToLoad []vec.Vec2,
) {
	oldBox := cuboidAround(oldPos, hr, vr)
	newBox := cuboidAround(newPos, hr, vr)

	newBox.forEachNotIn(oldBox, func(pos vec.Vec3) {
		cubesToLoad = append(cubesToLoad, pos)
	})
	oldBox.forEachNotIn(newBox, func(pos vec.Vec3) {
		cubesToRemove = append(cubesToRemove, pos)
	})

	oldSq := squareAround(oldPos.ToVec2(), hr)
	newSq := squareAround(newPos.ToVec2(), hr)

	newSq.forEachNotIn(oldSq, func(pos vec.Vec2) {
		columnsToLoad = append(columnsToLoad, pos)
	})
	oldSq.forEachNotIn(newSq, func(pos vec.Vec2) {
		columnsToRemove = append(columnsToRemove, pos)
	})
	return
}

// FindShrink вычисляет кубы и колонки, теряющие видимость при уменьшении
// радиусов обзора. Увеличение радиусов сюда не попадает: в этом случае
// достаточно обычного перечисления ForAllVisibleFrom.
func (s CuboidalSelector) FindShrink(center vec.Vec3, oldHr, newHr, oldVr, newVr int) (
	cubesToUnload []vec.Vec3,
	columnsToUnload []vec.Vec2,
) {
	oldBox := cuboidAround(center, oldHr, oldVr)
	newBox := cuboidAround(center, newHr, newVr)
	oldBox.forEachNotIn(newBox, func(pos vec.Vec3) {
		cubesToUnload = append(cubesToUnload, pos)
	})

	oldSq := squareAround(center.ToVec2(), oldHr)
	newSq := squareAround(center.ToVec2(), newHr)
	oldSq.forEachNotIn(newSq, func(pos vec.Vec2) {
		columnsToUnload = append(columnsToUnload, pos)
	})
	return
}

// cuboid — осевой целочисленный параллелепипед, границы включительно
type cuboid struct {
	minX, maxX int
	minY, maxY int
	minZ, maxZ int
}

func cuboidAround(center vec.Vec3, hr, vr int) cuboid {
	return cuboid{
		minX: center.X - hr, maxX: center.X + hr,
		minY: center.Y - vr, maxY: center.Y + vr,
		minZ: center.Z - hr, maxZ: center.Z + hr,
	}
}

func (c cuboid) forEach(fn func(vec.Vec3)) {
	for x := c.minX; x <= c.maxX; x++ {
		for z := c.minZ; z <= c.maxZ; z++ {
			for y := c.minY; y <= c.maxY; y++ {
				fn(vec.Vec3{X: x, Y: y, Z: z})
			}
		}
	}
}

// forEachNotIn перечисляет клетки c, не входящие в other. Разность
// раскладывается на слои: сначала по x вне пересечения, затем для общего
// диапазона x по z, затем по y. Клетки пересечения не посещаются.
func (c cuboid) forEachNotIn(other cuboid, fn func(vec.Vec3)) {
	if other.maxX < c.minX || other.minX > c.maxX ||
		other.maxY < c.minY || other.minY > c.maxY ||
		other.maxZ < c.minZ || other.minZ > c.maxZ {
		c.forEach(fn)
		return
	}

	ix0, ix1 := max(c.minX, other.minX), min(c.maxX, other.maxX)
	iy0, iy1 := max(c.minY, other.minY), min(c.maxY, other.maxY)
	iz0, iz1 := max(c.minZ, other.minZ), min(c.maxZ, other.maxZ)

	slab := c
	slab.maxX = ix0 - 1
	slab.forEach(fn)
	slab = c
	slab.minX = ix1 + 1
	slab.forEach(fn)

	for x := ix0; x <= ix1; x++ {
		for z := c.minZ; z < iz0; z++ {
			for y := c.minY; y <= c.maxY; y++ {
				fn(vec.Vec3{X: x, Y: y, Z: z})
			}
		}
		for z := iz1 + 1; z <= c.maxZ; z++ {
			for y := c.minY; y <= c.maxY; y++ {
				fn(vec.Vec3{X: x, Y: y, Z: z})
			}
		}
		for z := iz0; z <= iz1; z++ {
			for y := c.minY; y < iy0; y++ {
				fn(vec.Vec3{X: x, Y: y, Z: z})
			}
			for y := iy1 + 1; y <= c.maxY; y++ {
				fn(vec.Vec3{X: x, Y: y, Z: z})
			}
		}
	}
}

// square — осевой целочисленный квадрат в плоскости колонок, границы включительно
type square struct {
	minX, maxX int
	minZ, maxZ int
}

func squareAround(center vec.Vec2, hr int) square {
	return square{
		minX: center.X - hr, maxX: center.X + hr,
		minZ: center.Z - hr, maxZ: center.Z + hr,
	}
}

func (s square) forEach(fn func(vec.Vec2)) {
	for x := s.minX; x <= s.maxX; x++ {
		for z := s.minZ; z <= s.maxZ; z++ {
			fn(vec.Vec2{X: x, Z: z})
		}
	}
}

func (s square) forEachNotIn(other square, fn func(vec.Vec2)) {
	if other.maxX < s.minX || other.minX > s.maxX ||
		other.maxZ < s.minZ || other.minZ > s.maxZ {
		s.forEach(fn)
		return
	}

	ix0, ix1 := max(s.minX, other.minX), min(s.maxX, other.maxX)
	iz0, iz1 := max(s.minZ, other.minZ), min(s.maxZ, other.maxZ)

	strip := s
	strip.maxX = ix0 - 1
	strip.forEach(fn)
	strip = s
	strip.minX = ix1 + 1
	strip.forEach(fn)

	for x := ix0; x <= ix1; x++ {
		for z := s.minZ; z < iz0; z++ {
			fn(vec.Vec2{X: x, Z: z})
		}
		for z := iz1 + 1; z <= s.maxZ; z++ {
			fn(vec.Vec2{X: x, Z: z})
		}
	}
}

// inCuboid проверяет принадлежность куба кубоиду видимости вокруг center
func inCuboid(center, pos vec.Vec3, hr, vr int) bool {
	dx := pos.X - center.X
	dy := pos.Y - center.Y
	dz := pos.Z - center.Z
	return dx >= -hr && dx <= hr &&
		dz >= -hr && dz <= hr &&
		dy >= -vr && dy <= vr
}
