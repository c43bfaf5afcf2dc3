package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/arena-server/internal/vec"
)

func TestConstruct_TurretTargetsNearestEnemy(t *testing.T) {
	now := testTime()
	turret := NewConstruct(1, 5, ConstructTurret, vec.Vec2Float{X: 1000, Y: 1000}, now)

	reg := NewRegistry()
	owner := NewPlayer(5, "owner", vec.Vec2Float{X: 1000, Y: 1010}, now) // ближе всех, но владелец
	far := NewPlayer(6, "far", vec.Vec2Float{X: 1000, Y: 1200}, now)
	near := NewPlayer(7, "near", vec.Vec2Float{X: 1000, Y: 1100}, now)
	dead := NewPlayer(8, "dead", vec.Vec2Float{X: 1000, Y: 1050}, now)
	dead.HP = 0
	reg.Add(owner)
	reg.Add(far)
	reg.Add(near)
	reg.Add(dead)

	direction, fire := turret.advance(tickMs(now, 16), reg)

	require.True(t, fire)
	// Цель «ниже» турели: выстрел из FromAngle должен вести к ней
	v := vec.FromAngle(direction)
	assert.InDelta(t, 0, v.X, 1e-9)
	assert.InDelta(t, 1, v.Y, 1e-9, "направление должно указывать на ближайшего живого врага")
}

func TestConstruct_TurretCooldown(t *testing.T) {
	now := testTime()
	turret := NewConstruct(1, 5, ConstructTurret, vec.Vec2Float{X: 1000, Y: 1000}, now)

	reg := NewRegistry()
	reg.Add(NewPlayer(7, "enemy", vec.Vec2Float{X: 1000, Y: 1100}, now))

	_, fire := turret.advance(tickMs(now, 16), reg)
	require.True(t, fire)

	_, fire = turret.advance(tickMs(now, 32), reg)
	assert.False(t, fire, "турель на перезарядке не стреляет")

	// Тик, в котором кулдаун дотикивает до нуля, ещё без выстрела
	_, fire = turret.advance(tickMs(now, 32+int(TurretCooldownMs)+16), reg)
	require.False(t, fire)

	_, fire = turret.advance(tickMs(now, 48+int(TurretCooldownMs)+16), reg)
	assert.True(t, fire, "после перезарядки турель стреляет снова")
}

func TestConstruct_TurretIgnoresTargetsOutOfRange(t *testing.T) {
	now := testTime()
	turret := NewConstruct(1, 5, ConstructTurret, vec.Vec2Float{X: 1000, Y: 1000}, now)

	reg := NewRegistry()
	reg.Add(NewPlayer(7, "too-far", vec.Vec2Float{X: 1000, Y: 1000 + TurretRange + 1}, now))

	_, fire := turret.advance(tickMs(now, 16), reg)
	assert.False(t, fire)
}

func TestConstruct_WallNeverFires(t *testing.T) {
	now := testTime()
	wall := NewConstruct(1, 5, ConstructWall, vec.Vec2Float{X: 1000, Y: 1000}, now)

	reg := NewRegistry()
	reg.Add(NewPlayer(7, "enemy", vec.Vec2Float{X: 1000, Y: 1020}, now))

	_, fire := wall.advance(tickMs(now, 16), reg)
	assert.False(t, fire)
}

func TestConstruct_DestroyedTurretDoesNotFire(t *testing.T) {
	now := testTime()
	turret := NewConstruct(1, 5, ConstructTurret, vec.Vec2Float{X: 1000, Y: 1000}, now)
	turret.HP = 0

	reg := NewRegistry()
	reg.Add(NewPlayer(7, "enemy", vec.Vec2Float{X: 1000, Y: 1100}, now))

	_, fire := turret.advance(tickMs(now, 16), reg)
	assert.False(t, fire)
}

func TestConstruct_ApplyDamageFloor(t *testing.T) {
	now := testTime()
	wall := NewConstruct(1, NeutralOwner, ConstructWall, vec.Vec2Float{X: 100, Y: 100}, now)

	wall.ApplyDamage(WallMaxHP + 500)

	assert.Equal(t, 0, wall.HP, "здоровье не уходит ниже нуля")
	assert.True(t, wall.IsDestroyed())
}
