package arena

import (
	"time"

	"github.com/annel0/arena-server/internal/physics"
	"github.com/annel0/arena-server/internal/vec"
)

// PlayerID — постоянный идентификатор аккаунта игрока (совпадает с auth.User.ID).
// Ноль зарезервирован под нейтрального владельца построек карты.
type PlayerID uint64

// Параметры игрока
const (
	PlayerMaxHP         = 100
	PlayerHitboxRadius  = 16.0
	PlayerMoveSpeed     = 0.25   // единиц/мс
	PlayerRespawnTimeMs = 3000.0 // мс до возрождения
	FireCooldownMs      = 250.0  // мс между выстрелами
)

// Player представляет игрока на арене. Мутируется только тик-драйвером;
// сетевой слой лишь ставит intent'ы в очередь.
type Player struct {
	Entity
	ID       PlayerID
	Name     string
	Velocity vec.Vec2Float // единиц/мс, из intent'ов движения
	Facing   float64       // радианы, подсказка для рендера
	HP       int
	Kills    uint64
	Deaths   uint64

	HitboxRadius float64

	respawnTimer float64 // мс до возрождения; > 0 только у мёртвых
	fireCooldown float64 // мс до следующего разрешённого выстрела
}

// NewPlayer создаёт игрока в указанной позиции
func NewPlayer(id PlayerID, name string, pos vec.Vec2Float, now time.Time) *Player {
	return &Player{
		Entity:       newEntity(pos, now),
		ID:           id,
		Name:         name,
		HP:           PlayerMaxHP,
		HitboxRadius: PlayerHitboxRadius,
	}
}

// IsDead возвращает true, если здоровье исчерпано
func (p *Player) IsDead() bool {
	return p.HP <= 0
}

// CollidesWith реализует Damageable. Мёртвый игрок не является целью.
func (p *Player) CollidesWith(pos vec.Vec2Float, radius float64) bool {
	if p.IsDead() {
		return false
	}
	return physics.CheckCircleCollision(p.Pos, p.HitboxRadius, pos, radius)
}

// ApplyDamage реализует Damageable. Урон применяется целиком;
// здоровье не уходит ниже нуля.
func (p *Player) ApplyDamage(amount int) {
	if p.IsDead() {
		return
	}
	p.HP -= amount
	if p.HP < 0 {
		p.HP = 0
	}
}

// CanFire сообщает, разрешён ли выстрел в этом тике
func (p *Player) CanFire() bool {
	return !p.IsDead() && p.fireCooldown <= 0
}

// markFired взводит кулдаун после выстрела
func (p *Player) markFired() {
	p.fireCooldown = FireCooldownMs
}

// markDead запускает таймер возрождения; счётчик смертей инкрементирует тик-драйвер
func (p *Player) markDead() {
	p.respawnTimer = PlayerRespawnTimeMs
}

// advance продвигает игрока на один тик: движение в границах мира,
// кулдауны и таймер возрождения. Возвращает true, если игрок в этом
// тике возродился.
func (p *Player) advance(now time.Time, bounds Bounds, spawn vec.Vec2Float) bool {
	p.Tick(now)
	dt := p.Elapsed()

	if p.fireCooldown > 0 {
		p.fireCooldown -= dt
	}

	if p.IsDead() {
		p.respawnTimer -= dt
		if p.respawnTimer <= 0 {
			p.HP = PlayerMaxHP
			p.Pos = spawn
			p.Velocity = vec.Vec2Float{}
			return true
		}
		return false
	}

	if p.Velocity.X != 0 || p.Velocity.Y != 0 {
		p.Pos = physics.ClampToBounds(p.Pos.Add(p.Velocity.Mul(dt)), bounds.Width, bounds.Height)
	}
	return false
}
