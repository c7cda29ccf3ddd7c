package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Foghrye4/CubicChunks/internal/vec"
)

func collectVisible(center vec.Vec3, hr, vr int) map[vec.Vec3]struct{} {
	var s CuboidalSelector
	result := make(map[vec.Vec3]struct{})
	s.ForAllVisibleFrom(center, hr, vr, func(pos vec.Vec3) {
		result[pos] = struct{}{}
	})
	return result
}

func TestSelectorVisibleCuboid(t *testing.T) {
	center := vec.Vec3{X: 10, Y: -3, Z: 7}
	visible := collectVisible(center, 2, 1)

	// Кубоид 5x3x5 вокруг центра
	assert.Len(t, visible, 5*3*5, "Размер кубоида должен быть (2hr+1)^2 * (2vr+1)")

	_, hasCenter := visible[center]
	assert.True(t, hasCenter, "Центр должен входить в зону видимости")
	_, hasCorner := visible[vec.Vec3{X: 12, Y: -2, Z: 9}]
	assert.True(t, hasCorner, "Угол кубоида должен входить в зону видимости")
	_, hasOutside := visible[vec.Vec3{X: 13, Y: -3, Z: 7}]
	assert.False(t, hasOutside, "Куб за горизонтальным радиусом не должен быть видим")
	_, hasAbove := visible[vec.Vec3{X: 10, Y: -1, Z: 7}]
	assert.False(t, hasAbove, "Куб за вертикальным радиусом не должен быть видим")
}

func TestSelectorVisibleNoDuplicates(t *testing.T) {
	var s CuboidalSelector
	count := 0
	seen := make(map[vec.Vec3]struct{})
	s.ForAllVisibleFrom(vec.Vec3{}, 3, 2, func(pos vec.Vec3) {
		count++
		seen[pos] = struct{}{}
	})
	assert.Equal(t, len(seen), count, "Каждая позиция должна посещаться ровно один раз")
}

func TestSelectorFindChangedSingleStep(t *testing.T) {
	var s CuboidalSelector
	oldPos := vec.Vec3{X: 0, Y: 0, Z: 0}
	newPos := vec.Vec3{X: 1, Y: 0, Z: 0}
	hr, vr := 2, 1

	cubesToRemove, cubesToLoad, columnsToRemove, columnsToLoad :=
		s.FindChanged(oldPos, newPos, hr, vr)

	// Сдвиг на один куб по x открывает и закрывает по одному слою
	wantSlab := (2*hr + 1) * (2*vr + 1)
	assert.Len(t, cubesToLoad, wantSlab, "Должен загрузиться один слой кубов")
	assert.Len(t, cubesToRemove, wantSlab, "Должен выгрузиться один слой кубов")
	assert.Len(t, columnsToLoad, 2*hr+1, "Должна загрузиться одна полоса колонок")
	assert.Len(t, columnsToRemove, 2*hr+1, "Должна выгрузиться одна полоса колонок")

	for _, pos := range cubesToLoad {
		assert.Equal(t, newPos.X+hr, pos.X, "Новые кубы лежат на дальней грани по x")
	}
	for _, pos := range cubesToRemove {
		assert.Equal(t, oldPos.X-hr, pos.X, "Старые кубы лежат на покинутой грани по x")
	}
}

func TestSelectorFindChangedSymmetry(t *testing.T) {
	var s CuboidalSelector
	a := vec.Vec3{X: 4, Y: 1, Z: -2}
	b := vec.Vec3{X: 6, Y: 2, Z: -2}

	removedAB, loadedAB, _, _ := s.FindChanged(a, b, 3, 2)
	removedBA, loadedBA, _, _ := s.FindChanged(b, a, 3, 2)

	toSet := func(list []vec.Vec3) map[vec.Vec3]struct{} {
		m := make(map[vec.Vec3]struct{}, len(list))
		for _, pos := range list {
			m[pos] = struct{}{}
		}
		return m
	}

	assert.Equal(t, toSet(loadedAB), toSet(removedBA),
		"Загрузка при движении вперёд равна выгрузке при движении назад")
	assert.Equal(t, toSet(removedAB), toSet(loadedBA),
		"Выгрузка при движении вперёд равна загрузке при движении назад")
}

func TestSelectorFindChangedDisjoint(t *testing.T) {
	var s CuboidalSelector
	oldPos := vec.Vec3{}
	// Скачок дальше диаметра обзора: множества не пересекаются
	newPos := vec.Vec3{X: 100, Y: 0, Z: 0}
	hr, vr := 3, 3

	cubesToRemove, cubesToLoad, _, _ := s.FindChanged(oldPos, newPos, hr, vr)

	full := (2*hr + 1) * (2*hr + 1) * (2*vr + 1)
	require.Len(t, cubesToLoad, full)
	require.Len(t, cubesToRemove, full)
}

func TestSelectorFindShrink(t *testing.T) {
	var s CuboidalSelector
	center := vec.Vec3{X: 0, Y: 0, Z: 0}

	cubesToUnload, columnsToUnload := s.FindShrink(center, 5, 3, 5, 3)

	oldCubes := 11 * 11 * 11
	newCubes := 7 * 7 * 7
	assert.Len(t, cubesToUnload, oldCubes-newCubes,
		"Сжатие обзора должно выгрузить разность кубоидов")
	assert.Len(t, columnsToUnload, 11*11-7*7,
		"Сжатие обзора должно выгрузить разность квадратов колонок")

	for _, pos := range cubesToUnload {
		inside := inCuboid(center, pos, 3, 3)
		assert.False(t, inside, "Выгружаемый куб %v не должен оставаться в новой зоне", pos)
	}
}

func TestSelectorFindShrinkHorizontalOnly(t *testing.T) {
	var s CuboidalSelector
	center := vec.Vec3{X: -8, Y: 2, Z: 16}

	cubesToUnload, columnsToUnload := s.FindShrink(center, 4, 3, 3, 3)

	assert.Len(t, cubesToUnload, (9*9-7*7)*7)
	assert.Len(t, columnsToUnload, 9*9-7*7)
}
