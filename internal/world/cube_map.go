package world

import (
	"github.com/Foghrye4/CubicChunks/internal/vec"
)

// CubeMap — пространственный индекс наблюдателей кубов: хеш-карта по
// целочисленным координатам плюс стабильная таблица слотов. Таблица слотов
// позволяет детерминированно итерироваться с произвольного смещения
// (для периодических обходов «по кругу») без зависимости от порядка хеша.
type CubeMap struct {
	byPos map[vec.Vec3]int
	slots []*CubeWatcher
}

// NewCubeMap создаёт пустой индекс
func NewCubeMap() *CubeMap {
	return &CubeMap{
		byPos: make(map[vec.Vec3]int),
	}
}

// Get возвращает наблюдателя по позиции или nil
func (m *CubeMap) Get(pos vec.Vec3) *CubeWatcher {
	if i, ok := m.byPos[pos]; ok {
		return m.slots[i]
	}
	return nil
}

// Put добавляет наблюдателя в индекс. Позиция должна быть свободна.
func (m *CubeMap) Put(w *CubeWatcher) {
	m.byPos[w.pos] = len(m.slots)
	m.slots = append(m.slots, w)
}

// Remove удаляет наблюдателя по позиции. Последний слот переносится на
// освободившееся место, чтобы таблица оставалась плотной.
func (m *CubeMap) Remove(pos vec.Vec3) *CubeWatcher {
	i, ok := m.byPos[pos]
	if !ok {
		return nil
	}
	w := m.slots[i]
	last := len(m.slots) - 1
	if i != last {
		moved := m.slots[last]
		m.slots[i] = moved
		m.byPos[moved.pos] = i
	}
	m.slots = m.slots[:last]
	delete(m.byPos, pos)
	return w
}

// Len возвращает число наблюдателей в индексе
func (m *CubeMap) Len() int {
	return len(m.slots)
}

// ForEach обходит всех наблюдателей. fn возвращает false для остановки обхода.
func (m *CubeMap) ForEach(fn func(*CubeWatcher) bool) {
	for _, w := range m.slots {
		if !fn(w) {
			return
		}
	}
}

// ForEachWrapped обходит всех наблюдателей, начиная со смещения seed mod len.
// При фиксированном сиде и неизменном содержимом порядок воспроизводим.
func (m *CubeMap) ForEachWrapped(seed int64, fn func(*CubeWatcher) bool) {
	n := len(m.slots)
	if n == 0 {
		return
	}
	start := int(seed % int64(n))
	if start < 0 {
		start += n
	}
	for k := 0; k < n; k++ {
		if !fn(m.slots[(start+k)%n]) {
			return
		}
	}
}

// ColumnMap — двумерный аналог CubeMap для наблюдателей колонок
type ColumnMap struct {
	byPos map[vec.Vec2]int
	slots []*ColumnWatcher
}

// NewColumnMap создаёт пустой индекс колонок
func NewColumnMap() *ColumnMap {
	return &ColumnMap{
		byPos: make(map[vec.Vec2]int),
	}
}

// Get возвращает наблюдателя колонки по позиции или nil
func (m *ColumnMap) Get(pos vec.Vec2) *ColumnWatcher {
	if i, ok := m.byPos[pos]; ok {
		return m.slots[i]
	}
	return nil
}

// Put добавляет наблюдателя колонки в индекс
func (m *ColumnMap) Put(w *ColumnWatcher) {
	m.byPos[w.pos] = len(m.slots)
	m.slots = append(m.slots, w)
}

// Remove удаляет наблюдателя колонки по позиции
func (m *ColumnMap) Remove(pos vec.Vec2) *ColumnWatcher {
	i, ok := m.byPos[pos]
	if !ok {
		return nil
	}
	w := m.slots[i]
	last := len(m.slots) - 1
	if i != last {
		moved := m.slots[last]
		m.slots[i] = moved
		m.byPos[moved.pos] = i
	}
	m.slots = m.slots[:last]
	delete(m.byPos, pos)
	return w
}

// Len возвращает число наблюдателей колонок
func (m *ColumnMap) Len() int {
	return len(m.slots)
}

// ForEach обходит всех наблюдателей колонок
func (m *ColumnMap) ForEach(fn func(*ColumnWatcher) bool) {
	for _, w := range m.slots {
		if !fn(w) {
			return
		}
	}
}
