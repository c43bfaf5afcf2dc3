package arena

import (
	"time"

	"github.com/annel0/arena-server/internal/vec"
)

// Константы снаряда. Скорость задана в мировых единицах на миллисекунду
// и фиксируется в момент выстрела: ускорения и трения нет.
const (
	BulletSpeed        = 0.85  // единиц/мс
	BulletMaxDistance  = 800.0 // дальность полёта, единиц
	BulletHitboxRadius = 4.0
	BulletDamage       = 25
)

// Bullet представляет снаряд на арене.
type Bullet struct {
	Entity
	ID           uint64
	Velocity     vec.Vec2Float // единиц/мс, фиксируется при создании
	Orientation  float64       // радианы, только подсказка для рендера
	HitboxRadius float64
	Source       PlayerID // стрелявший игрок (для своих/чужих и зачёта фрагов)
	Damage       int

	// DistanceTraveled монотонно растёт; по достижении BulletMaxDistance
	// снаряд помечается мёртвым.
	DistanceTraveled float64

	alive bool // переход только alive -> dead, обратно не бывает
}

// HitReport описывает результат попадания снаряда за один тик.
// За тик снаряд поражает не более одной цели.
type HitReport struct {
	BulletID  uint64
	Source    PlayerID // стрелявший
	Victim    PlayerID // ненулевой, если попали в игрока
	Construct uint64   // ненулевой, если попали в постройку
	Killed    bool     // цель уничтожена этим попаданием
	Credited  bool     // фраг зачтён стрелявшему
}

// NewBullet — единственный путь создания снаряда; вызывается при обработке
// intent'а выстрела. Направление задаётся в радианах, где 0 — «вверх»,
// поэтому компоненты скорости смещены на -π/2 относительно стандартной
// тригонометрической системы. Направление валидируется на сетевой границе.
func NewBullet(id uint64, x, y, direction float64, source PlayerID, now time.Time) *Bullet {
	return &Bullet{
		Entity:       newEntity(vec.Vec2Float{X: x, Y: y}, now),
		ID:           id,
		Velocity:     vec.FromAngle(direction).Mul(BulletSpeed),
		Orientation:  direction,
		HitboxRadius: BulletHitboxRadius,
		Source:       source,
		Damage:       BulletDamage,
		alive:        true,
	}
}

// Alive сообщает, жив ли ещё снаряд
func (b *Bullet) Alive() bool {
	return b.alive
}

// kill помечает снаряд мёртвым. Флаг односторонний: обратно не взводится.
func (b *Bullet) kill() {
	b.alive = false
}

// Update продвигает снаряд на один тик и разрешает столкновения.
//
// Порядок строго фиксирован и определяет tie-break при одновременном
// пересечении нескольких целей:
//  1. истечение дальности или выход за границы мира — снаряд умирает,
//     столкновения в этом тике не проверяются;
//  2. игроки в порядке реестра (первый совпавший выигрывает);
//  3. постройки в порядке списка.
//
// За один тик поражается не более одной цели; после первого попадания
// метод немедленно возвращается.
func (b *Bullet) Update(now time.Time, players *Registry, constructs []*Construct, bounds Bounds) *HitReport {
	if !b.alive {
		return nil
	}

	b.Tick(now)
	dt := b.Elapsed()

	b.Pos = b.Pos.Add(b.Velocity.Mul(dt))
	b.DistanceTraveled += BulletSpeed * dt

	// Нормальное завершение: дальность исчерпана или вылетел за мир.
	// Ровно BulletMaxDistance тоже считается истечением.
	if b.DistanceTraveled >= BulletMaxDistance || !bounds.Contains(b.Pos) {
		b.kill()
		return nil
	}

	// Сначала игроки: порядок реестра стабилен в пределах тика
	for _, p := range players.Values() {
		if p.ID == b.Source {
			continue
		}
		if !p.CollidesWith(b.Pos, b.HitboxRadius) {
			continue
		}

		p.ApplyDamage(b.Damage)
		report := &HitReport{BulletID: b.ID, Source: b.Source, Victim: p.ID, Killed: p.IsDead()}
		if p.IsDead() {
			// Стрелявший мог отключиться, пока снаряд летел — тогда
			// фраг просто не зачитывается, попадание остаётся в силе
			if shooter, ok := players.Get(b.Source); ok {
				shooter.Kills++
				report.Credited = true
			}
		}
		b.kill()
		return report
	}

	// Затем постройки. Своя постройка неуязвима для владельца,
	// кроме стен: стены пробиваются всеми, включая владельца.
	for _, c := range constructs {
		if c.Owner == b.Source && c.Type != ConstructWall {
			continue
		}
		if !c.CollidesWith(b.Pos, b.HitboxRadius) {
			continue
		}

		c.ApplyDamage(b.Damage)
		b.kill()
		return &HitReport{BulletID: b.ID, Source: b.Source, Construct: c.ID, Killed: c.IsDestroyed()}
	}

	return nil
}
