package arena

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/arena-server/internal/vec"
)

var testBounds = Bounds{Width: 2000, Height: 2000}

func testTime() time.Time {
	return time.Unix(1700000000, 0)
}

func tickMs(t time.Time, ms int) time.Time {
	return t.Add(time.Duration(ms) * time.Millisecond)
}

func TestNewBullet_VelocityComponents(t *testing.T) {
	// Компоненты скорости смещены на -π/2: ориентация 0 — «вверх»
	directions := []float64{0, math.Pi / 2, math.Pi, 3 * math.Pi / 2}

	for _, d := range directions {
		b := NewBullet(1, 100, 100, d, 1, testTime())

		assert.InDelta(t, BulletSpeed*math.Cos(d-math.Pi/2), b.Velocity.X, 1e-12,
			"неверная компонента vx для направления %.2f", d)
		assert.InDelta(t, BulletSpeed*math.Sin(d-math.Pi/2), b.Velocity.Y, 1e-12,
			"неверная компонента vy для направления %.2f", d)
		assert.InDelta(t, BulletSpeed, b.Velocity.Length(), 1e-12,
			"модуль скорости должен равняться BulletSpeed")
	}
}

func TestBullet_DistanceMonotonic(t *testing.T) {
	now := testTime()
	b := NewBullet(1, 1000, 1000, 0, 1, now)
	reg := NewRegistry()

	prev := 0.0
	for i := 1; i <= 20 && b.Alive(); i++ {
		now = tickMs(now, 16)
		b.Update(now, reg, nil, testBounds)

		if b.DistanceTraveled < prev {
			t.Fatalf("distanceTraveled уменьшился: было %.3f, стало %.3f", prev, b.DistanceTraveled)
		}
		prev = b.DistanceTraveled
	}
}

func TestBullet_NoTargetsEndToEnd(t *testing.T) {
	// 10 тиков по 16мс без целей: пройдено speed × 160 мс, снаряд жив
	now := testTime()
	b := NewBullet(1, 1000, 1000, 0, 1, now)
	reg := NewRegistry()

	for i := 0; i < 10; i++ {
		now = tickMs(now, 16)
		b.Update(now, reg, nil, testBounds)
	}

	assert.InDelta(t, BulletSpeed*160, b.DistanceTraveled, 1e-9)
	assert.True(t, b.Alive(), "снаряд не должен умереть без целей и в границах мира")
}

func TestBullet_OutOfBoundsRemovedSameTick(t *testing.T) {
	now := testTime()
	// Направление 0 — «вверх» (y убывает); до границы меньше одного тика пути
	b := NewBullet(1, 1000, 5, 0, 1, now)

	// Игрок стоит прямо за границей: пересечение было бы, но снаряд
	// обязан умереть до проверки столкновений
	reg := NewRegistry()
	victim := NewPlayer(2, "victim", vec.Vec2Float{X: 1000, Y: 0}, now)
	reg.Add(victim)

	now = tickMs(now, 16)
	report := b.Update(now, reg, nil, testBounds)

	assert.False(t, b.Alive(), "снаряд за границей мира должен умереть в том же тике")
	assert.Nil(t, report, "выход за границы не должен давать попадание")
	assert.Equal(t, PlayerMaxHP, victim.HP, "никаких побочных эффектов в тике выхода за границы")
}

func TestBullet_MaxTravelDistanceBoundary(t *testing.T) {
	t.Run("ровно на границе — удаляется", func(t *testing.T) {
		now := testTime()
		b := NewBullet(1, 1000, 1000, 0, 1, now)
		b.DistanceTraveled = BulletMaxDistance - BulletSpeed*16

		b.Update(tickMs(now, 16), NewRegistry(), nil, testBounds)

		assert.InDelta(t, BulletMaxDistance, b.DistanceTraveled, 1e-9)
		assert.False(t, b.Alive(), "ровно BulletMaxDistance считается истечением")
	})

	t.Run("на единицу меньше — живёт", func(t *testing.T) {
		now := testTime()
		b := NewBullet(1, 1000, 1000, 0, 1, now)
		b.DistanceTraveled = BulletMaxDistance - BulletSpeed*16 - 1

		b.Update(tickMs(now, 16), NewRegistry(), nil, testBounds)

		assert.True(t, b.Alive())
	})
}

func TestBullet_PlayerBeforeConstruct(t *testing.T) {
	// Снаряд одновременно пересекает игрока и постройку:
	// урон получает игрок, постройка не тронута
	now := testTime()
	b := NewBullet(1, 1000, 1000, 0, 7, now)

	reg := NewRegistry()
	victim := NewPlayer(2, "victim", vec.Vec2Float{X: 1000, Y: 990}, now)
	reg.Add(victim)

	wall := NewConstruct(10, NeutralOwner, ConstructWall, vec.Vec2Float{X: 1000, Y: 990}, now)

	report := b.Update(tickMs(now, 16), reg, []*Construct{wall}, testBounds)

	require.NotNil(t, report)
	assert.Equal(t, PlayerID(2), report.Victim)
	assert.Equal(t, uint64(0), report.Construct)
	assert.Equal(t, PlayerMaxHP-BulletDamage, victim.HP)
	assert.Equal(t, WallMaxHP, wall.HP, "постройка не должна пострадать при tie-break в пользу игрока")
	assert.False(t, b.Alive(), "за тик поражается не более одной цели")
}

func TestBullet_FirstPlayerInRegistryOrderWins(t *testing.T) {
	now := testTime()
	b := NewBullet(1, 1000, 1000, 0, 7, now)

	reg := NewRegistry()
	first := NewPlayer(2, "first", vec.Vec2Float{X: 1000, Y: 990}, now)
	second := NewPlayer(3, "second", vec.Vec2Float{X: 1000, Y: 990}, now)
	reg.Add(first)
	reg.Add(second)

	report := b.Update(tickMs(now, 16), reg, nil, testBounds)

	require.NotNil(t, report)
	assert.Equal(t, PlayerID(2), report.Victim, "выигрывает первый по порядку реестра")
	assert.Equal(t, PlayerMaxHP-BulletDamage, first.HP)
	assert.Equal(t, PlayerMaxHP, second.HP, "вторая цель в том же тике не поражается")
}

func TestBullet_SourceIsNeverHit(t *testing.T) {
	now := testTime()
	b := NewBullet(1, 1000, 1000, 0, 2, now)

	reg := NewRegistry()
	shooter := NewPlayer(2, "shooter", vec.Vec2Float{X: 1000, Y: 990}, now)
	reg.Add(shooter)

	report := b.Update(tickMs(now, 16), reg, nil, testBounds)

	assert.Nil(t, report)
	assert.True(t, b.Alive())
	assert.Equal(t, PlayerMaxHP, shooter.HP, "свой снаряд не поражает стрелявшего")
}

func TestBullet_OwnWallTakesDamage(t *testing.T) {
	// Исключение для стен: стена пробивается даже владельцем
	now := testTime()
	b := NewBullet(1, 1000, 1000, 0, 5, now)
	wall := NewConstruct(10, 5, ConstructWall, vec.Vec2Float{X: 1000, Y: 990}, now)

	report := b.Update(tickMs(now, 16), NewRegistry(), []*Construct{wall}, testBounds)

	require.NotNil(t, report)
	assert.Equal(t, uint64(10), report.Construct)
	assert.Equal(t, WallMaxHP-BulletDamage, wall.HP)
	assert.False(t, b.Alive())
}

func TestBullet_OwnTurretIsImmune(t *testing.T) {
	now := testTime()
	b := NewBullet(1, 1000, 1000, 0, 5, now)
	turret := NewConstruct(10, 5, ConstructTurret, vec.Vec2Float{X: 1000, Y: 990}, now)

	report := b.Update(tickMs(now, 16), NewRegistry(), []*Construct{turret}, testBounds)

	assert.Nil(t, report)
	assert.True(t, b.Alive(), "своя не-стена неуязвима: снаряд пролетает сквозь")
	assert.Equal(t, TurretMaxHP, turret.HP)
}

func TestBullet_EnemyTurretTakesDamage(t *testing.T) {
	now := testTime()
	b := NewBullet(1, 1000, 1000, 0, 5, now)
	turret := NewConstruct(10, 6, ConstructTurret, vec.Vec2Float{X: 1000, Y: 990}, now)

	report := b.Update(tickMs(now, 16), NewRegistry(), []*Construct{turret}, testBounds)

	require.NotNil(t, report)
	assert.Equal(t, TurretMaxHP-BulletDamage, turret.HP)
}

func TestBullet_KillCredit(t *testing.T) {
	t.Run("урон ровно до нуля даёт фраг", func(t *testing.T) {
		now := testTime()
		b := NewBullet(1, 1000, 1000, 0, 2, now)

		reg := NewRegistry()
		shooter := NewPlayer(2, "shooter", vec.Vec2Float{X: 500, Y: 500}, now)
		victim := NewPlayer(3, "victim", vec.Vec2Float{X: 1000, Y: 990}, now)
		victim.HP = BulletDamage // ровно до нуля
		reg.Add(shooter)
		reg.Add(victim)

		report := b.Update(tickMs(now, 16), reg, nil, testBounds)

		require.NotNil(t, report)
		assert.True(t, victim.IsDead())
		assert.True(t, report.Killed)
		assert.True(t, report.Credited)
		assert.Equal(t, uint64(1), shooter.Kills, "фраг зачитывается ровно один раз")
	})

	t.Run("урон до единицы здоровья фраг не даёт", func(t *testing.T) {
		now := testTime()
		b := NewBullet(1, 1000, 1000, 0, 2, now)

		reg := NewRegistry()
		shooter := NewPlayer(2, "shooter", vec.Vec2Float{X: 500, Y: 500}, now)
		victim := NewPlayer(3, "victim", vec.Vec2Float{X: 1000, Y: 990}, now)
		victim.HP = BulletDamage + 1
		reg.Add(shooter)
		reg.Add(victim)

		report := b.Update(tickMs(now, 16), reg, nil, testBounds)

		require.NotNil(t, report)
		assert.Equal(t, 1, victim.HP)
		assert.False(t, victim.IsDead())
		assert.False(t, report.Killed)
		assert.Equal(t, uint64(0), shooter.Kills)
	})
}

func TestBullet_ShooterAbsentAtResolution(t *testing.T) {
	// Стрелявший отключился, пока снаряд летел: жертва получает урон,
	// фраг никому не зачитывается, ошибки нет
	now := testTime()
	b := NewBullet(1, 1000, 1000, 0, 42, now) // источника 42 в реестре нет

	reg := NewRegistry()
	victim := NewPlayer(3, "victim", vec.Vec2Float{X: 1000, Y: 990}, now)
	victim.HP = BulletDamage
	reg.Add(victim)

	report := b.Update(tickMs(now, 16), reg, nil, testBounds)

	require.NotNil(t, report)
	assert.True(t, victim.IsDead(), "попадание остаётся в силе")
	assert.True(t, report.Killed)
	assert.False(t, report.Credited, "фраг не зачитывается отсутствующему стрелявшему")
	assert.False(t, b.Alive())
	for _, p := range reg.Values() {
		assert.Equal(t, uint64(0), p.Kills, "ни один счётчик фрагов не должен измениться")
	}
}

func TestBullet_DeadPlayerIsNotTarget(t *testing.T) {
	now := testTime()
	b := NewBullet(1, 1000, 1000, 0, 2, now)

	reg := NewRegistry()
	dead := NewPlayer(3, "dead", vec.Vec2Float{X: 1000, Y: 990}, now)
	dead.HP = 0
	reg.Add(dead)

	report := b.Update(tickMs(now, 16), reg, nil, testBounds)

	assert.Nil(t, report)
	assert.True(t, b.Alive())
}

func TestBullet_DeadBulletSkipsUpdate(t *testing.T) {
	now := testTime()
	b := NewBullet(1, 1000, 1000, 0, 2, now)
	b.kill()

	pos := b.Pos
	b.Update(tickMs(now, 16), NewRegistry(), nil, testBounds)

	assert.Equal(t, pos, b.Pos, "мёртвый снаряд не двигается")
	assert.Zero(t, b.DistanceTraveled)
}
