package arena

import (
	"math"
	"time"

	"github.com/annel0/arena-server/internal/physics"
	"github.com/annel0/arena-server/internal/vec"
)

// ConstructType представляет тип постройки
type ConstructType uint8

const (
	ConstructTurret ConstructType = iota
	ConstructWall
)

// String возвращает строковое представление типа постройки
func (t ConstructType) String() string {
	switch t {
	case ConstructTurret:
		return "turret"
	case ConstructWall:
		return "wall"
	default:
		return "unknown"
	}
}

// Параметры построек
const (
	TurretMaxHP        = 150
	TurretHitboxRadius = 14.0
	TurretRange        = 300.0
	TurretCooldownMs   = 1000.0

	WallMaxHP        = 400
	WallHitboxRadius = 24.0
)

// Construct представляет постройку игрока: турель или стену.
// Турели стреляют по ближайшему живому противнику владельца;
// стены статичны. Владелец 0 — нейтральные стены карты.
type Construct struct {
	Entity
	ID           uint64
	Owner        PlayerID
	Type         ConstructType
	HP           int
	HitboxRadius float64

	fireCooldown float64 // мс; только для турелей
}

// NewConstruct создаёт постройку указанного типа
func NewConstruct(id uint64, owner PlayerID, ctype ConstructType, pos vec.Vec2Float, now time.Time) *Construct {
	c := &Construct{
		Entity: newEntity(pos, now),
		ID:     id,
		Owner:  owner,
		Type:   ctype,
	}
	switch ctype {
	case ConstructTurret:
		c.HP = TurretMaxHP
		c.HitboxRadius = TurretHitboxRadius
	default:
		c.HP = WallMaxHP
		c.HitboxRadius = WallHitboxRadius
	}
	return c
}

// IsDestroyed возвращает true, если постройка уничтожена
func (c *Construct) IsDestroyed() bool {
	return c.HP <= 0
}

// CollidesWith реализует Damageable
func (c *Construct) CollidesWith(pos vec.Vec2Float, radius float64) bool {
	if c.IsDestroyed() {
		return false
	}
	return physics.CheckCircleCollision(c.Pos, c.HitboxRadius, pos, radius)
}

// ApplyDamage реализует Damageable
func (c *Construct) ApplyDamage(amount int) {
	if c.IsDestroyed() {
		return
	}
	c.HP -= amount
	if c.HP < 0 {
		c.HP = 0
	}
}

// advance продвигает постройку на один тик. Турель с готовым кулдауном
// выбирает ближайшего живого противника владельца в радиусе TurretRange
// и возвращает направление выстрела; снаряд создаёт тик-драйвер,
// атрибутируя его владельцу турели.
func (c *Construct) advance(now time.Time, players *Registry) (direction float64, fire bool) {
	c.Tick(now)

	if c.Type != ConstructTurret || c.IsDestroyed() {
		return 0, false
	}

	if c.fireCooldown > 0 {
		c.fireCooldown -= c.Elapsed()
		return 0, false
	}

	target := c.nearestEnemy(players)
	if target == nil {
		return 0, false
	}

	c.fireCooldown = TurretCooldownMs
	return orientationTo(c.Pos, target.Pos), true
}

// nearestEnemy возвращает ближайшего живого противника в радиусе действия
func (c *Construct) nearestEnemy(players *Registry) *Player {
	var best *Player
	bestDist := TurretRange
	for _, p := range players.Values() {
		if p.ID == c.Owner || p.IsDead() {
			continue
		}
		if d := c.Pos.DistanceTo(p.Pos); d <= bestDist {
			best = p
			bestDist = d
		}
	}
	return best
}

// orientationTo возвращает ориентацию выстрела из from в to.
// Обратное преобразование к vec.FromAngle: 0 — «вверх».
func orientationTo(from, to vec.Vec2Float) float64 {
	return math.Atan2(to.Y-from.Y, to.X-from.X) + math.Pi/2
}
