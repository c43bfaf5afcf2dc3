package arena

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/arena-server/internal/vec"
)

func newTestWorld() *World {
	return NewWorld(Options{
		TickInterval: 16 * time.Millisecond,
		Bounds:       testBounds,
		WallCount:    0, // пустое поле, стены добавляются в тестах явно
	})
}

func TestWorld_JoinLeaveThroughIntents(t *testing.T) {
	w := newTestWorld()
	now := testTime()

	require.NoError(t, w.Join(1, "alice"))
	require.NoError(t, w.Join(2, "bob"))
	w.Step(now)

	assert.Equal(t, 2, w.Registry().Len())
	p, ok := w.Registry().Get(1)
	require.True(t, ok)
	assert.Equal(t, "alice", p.Name)
	assert.Equal(t, w.spawnPoint(), p.Pos, "игрок появляется в точке возрождения")

	require.NoError(t, w.Leave(1))
	w.Step(tickMs(now, 16))

	assert.Equal(t, 1, w.Registry().Len())
	_, ok = w.Registry().Get(1)
	assert.False(t, ok)
}

func TestWorld_MoveIsClampedToBounds(t *testing.T) {
	w := newTestWorld()
	now := testTime()

	require.NoError(t, w.Join(1, "runner"))
	w.Step(now)

	p, _ := w.Registry().Get(1)
	p.Pos = vec.Vec2Float{X: 3, Y: 1000}

	require.NoError(t, w.Move(1, -1, 0))
	for i := 1; i <= 10; i++ {
		w.Step(tickMs(now, i*16))
	}

	assert.GreaterOrEqual(t, p.Pos.X, 0.0, "движение не выводит игрока за границы мира")
	assert.Equal(t, 1000.0, p.Pos.Y)
}

func TestWorld_FireKillRespawnFlow(t *testing.T) {
	w := newTestWorld()
	now := testTime()

	require.NoError(t, w.Join(1, "shooter"))
	require.NoError(t, w.Join(2, "victim"))
	w.Step(now)

	shooter, _ := w.Registry().Get(1)
	victim, _ := w.Registry().Get(2)
	victim.Pos = vec.Vec2Float{X: 1000, Y: 900} // в 100 единицах «выше» стрелка
	victim.HP = BulletDamage                    // одно попадание смертельно

	require.NoError(t, w.Fire(1, 0))
	for i := 1; i <= 10 && !victim.IsDead(); i++ {
		w.Step(tickMs(now, i*16))
	}

	assert.True(t, victim.IsDead(), "снаряд должен долететь и убить")
	assert.Equal(t, uint64(1), shooter.Kills)
	assert.Equal(t, uint64(1), victim.Deaths)
	assert.Empty(t, w.bullets, "снаряд удаляется в тике попадания")

	// Спустя таймер возрождения жертва возвращается в центр с полным здоровьем
	w.Step(tickMs(now, 160+int(PlayerRespawnTimeMs)+100))

	assert.False(t, victim.IsDead())
	assert.Equal(t, PlayerMaxHP, victim.HP)
	assert.Equal(t, w.spawnPoint(), victim.Pos)
}

func TestWorld_FireCooldown(t *testing.T) {
	w := newTestWorld()
	now := testTime()

	require.NoError(t, w.Join(1, "spammer"))
	w.Step(now)

	// Два выстрела в одном тике: второй отклоняется перезарядкой
	require.NoError(t, w.Fire(1, 0))
	require.NoError(t, w.Fire(1, 0))
	w.Step(tickMs(now, 16))

	assert.Len(t, w.bullets, 1)

	// Перезарядка тикает в фазе advance, поэтому даём ей пройти
	// отдельным тиком и только потом стреляем снова
	w.Step(tickMs(now, 16+int(FireCooldownMs)+32))
	require.NoError(t, w.Fire(1, 0))
	w.Step(tickMs(now, 16+int(FireCooldownMs)+48))

	assert.Len(t, w.bullets, 2)
}

func TestWorld_BuildConstruct(t *testing.T) {
	w := newTestWorld()
	now := testTime()

	require.NoError(t, w.Join(1, "builder"))
	w.Step(now)

	require.NoError(t, w.Build(1, ConstructTurret, 500, 500))
	require.NoError(t, w.Build(1, ConstructWall, -10, 500)) // вне границ, отклоняется
	w.Step(tickMs(now, 16))

	require.Len(t, w.constructs, 1)
	c := w.constructs[0]
	assert.Equal(t, ConstructTurret, c.Type)
	assert.Equal(t, PlayerID(1), c.Owner)
	assert.Equal(t, vec.Vec2Float{X: 500, Y: 500}, c.Pos)
}

func TestWorld_TurretFiresAtEnemy(t *testing.T) {
	w := newTestWorld()
	now := testTime()

	require.NoError(t, w.Join(1, "owner"))
	require.NoError(t, w.Join(2, "intruder"))
	w.Step(now)

	owner, _ := w.Registry().Get(1)
	owner.Pos = vec.Vec2Float{X: 100, Y: 100} // далеко от турели
	intruder, _ := w.Registry().Get(2)
	intruder.Pos = vec.Vec2Float{X: 1500, Y: 1400}

	turret := NewConstruct(100, 1, ConstructTurret, vec.Vec2Float{X: 1500, Y: 1500}, now)
	w.constructs = append(w.constructs, turret)

	w.Step(tickMs(now, 16))

	require.Len(t, w.bullets, 1, "турель стреляет по врагу в радиусе")
	assert.Equal(t, PlayerID(1), w.bullets[0].Source, "снаряд турели атрибутируется владельцу")

	// Сразу после выстрела турель на перезарядке
	w.Step(tickMs(now, 32))
	assert.Len(t, w.bullets, 1)
}

func TestWorld_UpdateThenReap(t *testing.T) {
	w := newTestWorld()
	now := testTime()

	// Снаряд на пороге истечения: в этом тике он ещё обновляется
	// (двигается, проверяет дистанцию) и только затем удаляется
	expiring := NewBullet(1, 1000, 1000, 0, 1, now)
	expiring.DistanceTraveled = BulletMaxDistance - 1
	survivor := NewBullet(2, 1000, 1000, 0, 1, now)
	w.bullets = append(w.bullets, expiring, survivor)

	w.Step(tickMs(now, 16))

	assert.False(t, expiring.Alive())
	assert.GreaterOrEqual(t, expiring.DistanceTraveled, BulletMaxDistance,
		"истекающий снаряд обновляется до удаления")
	require.Len(t, w.bullets, 1, "мёртвые снаряды удалены после фазы update")
	assert.Same(t, survivor, w.bullets[0])
}

func TestWorld_DestroyedConstructReaped(t *testing.T) {
	w := newTestWorld()
	now := testTime()

	wall := NewConstruct(100, NeutralOwner, ConstructWall, vec.Vec2Float{X: 1000, Y: 990}, now)
	wall.HP = BulletDamage
	w.constructs = append(w.constructs, wall)
	w.bullets = append(w.bullets, NewBullet(1, 1000, 1000, 0, 1, now))

	w.Step(tickMs(now, 16))

	assert.True(t, wall.IsDestroyed())
	assert.Empty(t, w.constructs, "уничтоженная постройка удаляется в конце тика")
}

func TestWorld_EntityFaultIsolated(t *testing.T) {
	w := newTestWorld()
	now := testTime()

	// Повреждённая запись реестра вызывает панику внутри update снаряда;
	// guard должен поймать её и аварийно удалить снаряд
	w.registry.order = append(w.registry.order, nil)

	faulty := NewBullet(1, 1000, 1000, 0, 1, now)
	w.bullets = append(w.bullets, faulty)
	report := w.safeUpdateBullet(faulty, tickMs(now, 16))

	assert.Nil(t, report)
	assert.False(t, faulty.Alive(), "сбойная сущность аварийно помечается мёртвой")

	w.reap()
	assert.Empty(t, w.bullets)
}

func TestWorld_IntentQueueOverflow(t *testing.T) {
	w := newTestWorld()

	var err error
	for i := 0; i < cap(w.intents)+1; i++ {
		err = w.Move(1, 1, 0)
		if err != nil {
			break
		}
	}

	assert.ErrorIs(t, err, ErrWorldBusy, "переполненная очередь intent'ов отвечает ошибкой, а не блокировкой")
}

func TestWorld_DeadPlayerIgnoresMoveAndFire(t *testing.T) {
	w := newTestWorld()
	now := testTime()

	require.NoError(t, w.Join(1, "ghost"))
	w.Step(now)

	p, _ := w.Registry().Get(1)
	p.HP = 0
	p.markDead()

	require.NoError(t, w.Move(1, 1, 0))
	require.NoError(t, w.Fire(1, 0))
	w.Step(tickMs(now, 16))

	assert.Equal(t, vec.Vec2Float{}, p.Velocity)
	assert.Empty(t, w.bullets, "мёртвый игрок не стреляет")
}

type recordingStats struct {
	shots, kills, deaths map[PlayerID]int
}

func newRecordingStats() *recordingStats {
	return &recordingStats{
		shots:  map[PlayerID]int{},
		kills:  map[PlayerID]int{},
		deaths: map[PlayerID]int{},
	}
}

func (s *recordingStats) OnShot(id PlayerID)  { s.shots[id]++ }
func (s *recordingStats) OnKill(id PlayerID)  { s.kills[id]++ }
func (s *recordingStats) OnDeath(id PlayerID) { s.deaths[id]++ }

func TestWorld_StatsSinkReceivesEvents(t *testing.T) {
	stats := newRecordingStats()
	w := NewWorld(Options{
		TickInterval: 16 * time.Millisecond,
		Bounds:       testBounds,
		Stats:        stats,
	})
	now := testTime()

	require.NoError(t, w.Join(1, "shooter"))
	require.NoError(t, w.Join(2, "victim"))
	w.Step(now)

	victim, _ := w.Registry().Get(2)
	victim.Pos = vec.Vec2Float{X: 1000, Y: 900}
	victim.HP = BulletDamage

	require.NoError(t, w.Fire(1, 0))
	for i := 1; i <= 10 && !victim.IsDead(); i++ {
		w.Step(tickMs(now, i*16))
	}

	assert.Equal(t, 1, stats.shots[1])
	assert.Equal(t, 1, stats.kills[1])
	assert.Equal(t, 1, stats.deaths[2])
}
