package arena

import (
	"time"

	"github.com/annel0/arena-server/internal/vec"
)

// Entity — общая база всех симулируемых объектов арены.
// Конкретные типы встраивают Entity и обязаны вызывать Tick(now)
// до собственной логики: так все сущности внутри одного тика
// продвигаются на одно и то же прошедшее время, и движение не
// зависит от фактической частоты тиков сервера.
type Entity struct {
	Pos      vec.Vec2Float // Позиция в мировых координатах
	lastTick time.Time     // Момент предыдущего тика
	elapsed  float64       // Прошедшее время с предыдущего тика, мс
}

// newEntity создаёт базу сущности в указанной позиции.
// Момент создания фиксируется как точка отсчёта первого тика.
func newEntity(pos vec.Vec2Float, now time.Time) Entity {
	return Entity{Pos: pos, lastTick: now}
}

// Tick обновляет учёт прошедшего времени. Побочных эффектов,
// кроме внутреннего состояния, нет.
func (e *Entity) Tick(now time.Time) {
	if e.lastTick.IsZero() {
		e.elapsed = 0
	} else {
		e.elapsed = float64(now.Sub(e.lastTick)) / float64(time.Millisecond)
	}
	e.lastTick = now
}

// Elapsed возвращает время в миллисекундах, зафиксированное последним Tick
func (e *Entity) Elapsed() float64 {
	return e.elapsed
}

// Damageable — контракт цели, по которой может попасть снаряд.
// Его реализуют и игроки, и постройки, поэтому логика столкновений
// не ветвится по конкретному типу.
type Damageable interface {
	// CollidesWith проверяет пересечение круглого хитбокса цели
	// с кругом (pos, radius)
	CollidesWith(pos vec.Vec2Float, radius float64) bool

	// ApplyDamage снимает указанное количество здоровья.
	// Применяется атомарно относительно цели: частично
	// применённый урон не наблюдаем.
	ApplyDamage(amount int)
}
