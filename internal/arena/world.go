package arena

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/annel0/arena-server/internal/logging"
	"github.com/annel0/arena-server/internal/vec"
)

// NeutralOwner — владелец нейтральных построек карты; ни один игрок
// этот ID не получает.
const NeutralOwner PlayerID = 0

// ErrWorldBusy возвращается, когда очередь intent'ов заполнена
var ErrWorldBusy = errors.New("очередь intent'ов арены заполнена")

// Bounds — прямоугольные границы мира [0, Width] x [0, Height]
type Bounds struct {
	Width, Height float64
}

// Contains проверяет, находится ли точка внутри границ мира
func (b Bounds) Contains(p vec.Vec2Float) bool {
	return p.X >= 0 && p.X <= b.Width && p.Y >= 0 && p.Y <= b.Height
}

// Broadcaster получает снапшот мира после фазы удаления, раз в тик.
// Реализация не должна блокировать: медленные потребители обязаны
// терять кадры, а не тормозить симуляцию.
type Broadcaster interface {
	BroadcastSnapshot(snap *Snapshot)
}

// StatsSink получает дельты статистики на границе тика. Вызовы приходят
// из горутины тик-драйвера; реализация буферизует и не блокирует.
type StatsSink interface {
	OnShot(shooter PlayerID)
	OnKill(killer PlayerID)
	OnDeath(victim PlayerID)
}

// Options — параметры создания мира
type Options struct {
	TickInterval time.Duration
	Bounds       Bounds
	Seed         int64 // сид раскладки стен
	WallCount    int
	Broadcaster  Broadcaster // может быть nil
	Stats        StatsSink   // может быть nil
}

type intentKind uint8

const (
	intentJoin intentKind = iota
	intentLeave
	intentMove
	intentFire
	intentBuild
)

// intent — отложенная команда клиента. Сетевой слой только ставит
// intent'ы в очередь; применяются они строго на границе тика, чтобы
// проверка столкновений всегда видела неизменный срез мира.
type intent struct {
	kind      intentKind
	player    PlayerID
	name      string
	dx, dy    float64 // направление движения, [-1, 1]
	direction float64 // радианы
	ctype     ConstructType
	x, y      float64
}

// World — тик-драйвер: владеет реестром игроков, списком снарядов и
// построек и продвигает мир с фиксированным шагом в одной горутине.
// Никакой update сущности не выполняется параллельно с другим.
type World struct {
	opts     Options
	registry *Registry

	bullets    []*Bullet
	constructs []*Construct

	intents chan intent

	tick            uint64
	nextBulletID    uint64
	nextConstructID uint64

	// Агрегаты для чтения извне горутины тика (REST, мониторинг)
	statTick       atomic.Uint64
	statPlayers    atomic.Int64
	statBullets    atomic.Int64
	statConstructs atomic.Int64

	logger *logging.Logger
}

// Status — агрегированное состояние мира на конец последнего тика
type Status struct {
	Tick       uint64 `json:"tick"`
	Players    int    `json:"players"`
	Bullets    int    `json:"bullets"`
	Constructs int    `json:"constructs"`
}

// NewWorld создаёт мир с раскладкой стен по сиду
func NewWorld(opts Options) *World {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second / 60
	}
	if opts.Bounds.Width <= 0 || opts.Bounds.Height <= 0 {
		opts.Bounds = Bounds{Width: 2000, Height: 2000}
	}

	w := &World{
		opts:            opts,
		registry:        NewRegistry(),
		intents:         make(chan intent, 4096),
		nextBulletID:    1,
		nextConstructID: 1,
		logger:          logging.GetArenaLogger(),
	}

	walls := generateWalls(opts.Seed, opts.Bounds, opts.WallCount, w.nextConstructID, time.Now())
	w.constructs = append(w.constructs, walls...)
	w.nextConstructID += uint64(len(walls))

	return w
}

// Registry возвращает реестр игроков. Только для чтения вне тик-драйвера.
func (w *World) Registry() *Registry {
	return w.registry
}

// Tick возвращает номер последнего обработанного тика
func (w *World) Tick() uint64 {
	return w.tick
}

// Status безопасен для вызова из любой горутины
func (w *World) Status() Status {
	return Status{
		Tick:       w.statTick.Load(),
		Players:    int(w.statPlayers.Load()),
		Bullets:    int(w.statBullets.Load()),
		Constructs: int(w.statConstructs.Load()),
	}
}

// Bounds возвращает границы мира
func (w *World) Bounds() Bounds {
	return w.opts.Bounds
}

// SetBroadcaster задаёт получателя снапшотов. Вызывается до Run:
// после старта симуляции менять его небезопасно.
func (w *World) SetBroadcaster(b Broadcaster) {
	w.opts.Broadcaster = b
}

// Run запускает цикл симуляции и блокируется до отмены контекста
func (w *World) Run(ctx context.Context) {
	ticker := time.NewTicker(w.opts.TickInterval)
	defer ticker.Stop()

	w.logger.Info("симуляция запущена: интервал=%v, мир=%.0fx%.0f, стен=%d",
		w.opts.TickInterval, w.opts.Bounds.Width, w.opts.Bounds.Height, len(w.constructs))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("симуляция остановлена на тике %d", w.tick)
			return
		case now := <-ticker.C:
			w.Step(now)
		}
	}
}

// === Постановка intent'ов (вызывается из сетевых горутин) ===

// Join ставит в очередь вход игрока
func (w *World) Join(id PlayerID, name string) error {
	return w.enqueue(intent{kind: intentJoin, player: id, name: name})
}

// Leave ставит в очередь выход игрока
func (w *World) Leave(id PlayerID) error {
	return w.enqueue(intent{kind: intentLeave, player: id})
}

// Move ставит в очередь изменение направления движения
func (w *World) Move(id PlayerID, dx, dy float64) error {
	return w.enqueue(intent{kind: intentMove, player: id, dx: dx, dy: dy})
}

// Fire ставит в очередь выстрел. Направление должно быть конечным —
// это гарантирует сетевая граница.
func (w *World) Fire(id PlayerID, direction float64) error {
	return w.enqueue(intent{kind: intentFire, player: id, direction: direction})
}

// Build ставит в очередь постройку
func (w *World) Build(id PlayerID, ctype ConstructType, x, y float64) error {
	return w.enqueue(intent{kind: intentBuild, player: id, ctype: ctype, x: x, y: y})
}

func (w *World) enqueue(it intent) error {
	select {
	case w.intents <- it:
		return nil
	default:
		return ErrWorldBusy
	}
}

// Step продвигает мир на один тик. Вызывается только из горутины
// симуляции (или напрямую из тестов).
//
// Фазы: intent'ы -> игроки -> турели -> снаряды -> удаление -> снапшот.
// Удаление мёртвых снарядов выполняется строго после того, как все
// update'ы завершились: компактация коллекции во время обхода
// повредила бы итерацию.
func (w *World) Step(now time.Time) {
	started := time.Now()
	w.tick++

	w.drainIntents(now)
	w.advancePlayers(now)
	w.advanceConstructs(now)
	w.updateBullets(now)
	w.reap()

	if w.opts.Broadcaster != nil {
		w.opts.Broadcaster.BroadcastSnapshot(w.buildSnapshot(now.UnixMilli()))
	}

	metricTicksTotal.Inc()
	metricTickDuration.Observe(time.Since(started).Seconds())
	metricPlayersOnline.Set(float64(w.registry.Len()))
	metricBulletsLive.Set(float64(len(w.bullets)))

	w.statTick.Store(w.tick)
	w.statPlayers.Store(int64(w.registry.Len()))
	w.statBullets.Store(int64(len(w.bullets)))
	w.statConstructs.Store(int64(len(w.constructs)))
}

// drainIntents применяет все накопленные intent'ы
func (w *World) drainIntents(now time.Time) {
	for {
		select {
		case it := <-w.intents:
			w.applyIntent(it, now)
		default:
			return
		}
	}
}

func (w *World) applyIntent(it intent, now time.Time) {
	switch it.kind {
	case intentJoin:
		p := NewPlayer(it.player, it.name, w.spawnPoint(), now)
		w.registry.Add(p)
		w.logger.Info("игрок %d (%s) вошёл на арену", it.player, it.name)
		w.publishEvent(EventPlayerJoin, PlayerEvent{Player: it.player, Name: it.name, Tick: w.tick})

	case intentLeave:
		w.registry.Remove(it.player)
		w.logger.Info("игрок %d покинул арену", it.player)
		w.publishEvent(EventPlayerLeave, PlayerEvent{Player: it.player, Tick: w.tick})

	case intentMove:
		p, ok := w.registry.Get(it.player)
		if !ok || p.IsDead() {
			return
		}
		dir := vec.Vec2Float{X: it.dx, Y: it.dy}
		if dir.X == 0 && dir.Y == 0 {
			p.Velocity = vec.Vec2Float{}
			return
		}
		p.Velocity = dir.Normalized().Mul(PlayerMoveSpeed)
		p.Facing = orientationTo(p.Pos, p.Pos.Add(dir))

	case intentFire:
		p, ok := w.registry.Get(it.player)
		if !ok || !p.CanFire() {
			return
		}
		p.markFired()
		w.spawnBullet(p.Pos, it.direction, p.ID, now)
		if w.opts.Stats != nil {
			w.opts.Stats.OnShot(p.ID)
		}

	case intentBuild:
		p, ok := w.registry.Get(it.player)
		if !ok || p.IsDead() {
			return
		}
		pos := vec.Vec2Float{X: it.x, Y: it.y}
		if !w.opts.Bounds.Contains(pos) {
			return
		}
		c := NewConstruct(w.nextConstructID, p.ID, it.ctype, pos, now)
		w.nextConstructID++
		w.constructs = append(w.constructs, c)
		w.logger.Debug("игрок %d построил %s #%d в (%.1f, %.1f)", p.ID, c.Type, c.ID, pos.X, pos.Y)
		w.publishEvent(EventConstructBuilt, ConstructEvent{Construct: c.ID, Owner: p.ID, Type: c.Type.String(), Tick: w.tick})
	}
}

// spawnBullet создаёт снаряд через фабрику и добавляет его в коллекцию.
// Снаряд, созданный в этом тике, получит нулевое прошедшее время и
// начнёт движение со следующего тика.
func (w *World) spawnBullet(pos vec.Vec2Float, direction float64, source PlayerID, now time.Time) {
	b := NewBullet(w.nextBulletID, pos.X, pos.Y, direction, source, now)
	w.nextBulletID++
	w.bullets = append(w.bullets, b)
}

func (w *World) advancePlayers(now time.Time) {
	for _, p := range w.registry.Values() {
		if p.advance(now, w.opts.Bounds, w.spawnPoint()) {
			w.publishEvent(EventPlayerRespawn, PlayerEvent{Player: p.ID, Tick: w.tick})
		}
	}
}

func (w *World) advanceConstructs(now time.Time) {
	for _, c := range w.constructs {
		if direction, fire := c.advance(now, w.registry); fire {
			// Снаряд турели атрибутируется её владельцу
			w.spawnBullet(c.Pos, direction, c.Owner, now)
		}
	}
}

// updateBullets обновляет каждый снаряд ровно один раз. Паника внутри
// update одной сущности не должна сорвать остальной тик: такая сущность
// логируется и аварийно помечается мёртвой.
func (w *World) updateBullets(now time.Time) {
	for _, b := range w.bullets {
		report := w.safeUpdateBullet(b, now)
		if report == nil {
			continue
		}
		w.resolveHit(report)
	}
}

func (w *World) safeUpdateBullet(b *Bullet, now time.Time) (report *HitReport) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic в update снаряда %d: %v — сущность аварийно удалена", b.ID, r)
			metricEntityFaults.Inc()
			b.kill()
			report = nil
		}
	}()
	return b.Update(now, w.registry, w.constructs, w.opts.Bounds)
}

// resolveHit применяет побочные эффекты попадания: смерть жертвы,
// зачёт фрага, события и статистику. Кросс-сущностные записи
// происходят только здесь и в Bullet.Update — всегда в горутине тика.
func (w *World) resolveHit(report *HitReport) {
	if report.Victim != 0 && report.Killed {
		victim, ok := w.registry.Get(report.Victim)
		if ok {
			victim.Deaths++
			victim.markDead()
		}

		var killer PlayerID
		if report.Credited {
			// Credited взводится только после успешного поиска
			// стрелявшего в реестре
			killer = report.Source
			metricKillsTotal.Inc()
			if w.opts.Stats != nil {
				w.opts.Stats.OnKill(killer)
			}
		}
		if w.opts.Stats != nil {
			w.opts.Stats.OnDeath(report.Victim)
		}
		w.logger.Info("игрок %d убит (снаряд %d, фраг=%v)", report.Victim, report.BulletID, report.Credited)
		w.publishEvent(EventPlayerKill, KillEvent{Killer: killer, Victim: report.Victim, BulletID: report.BulletID, Tick: w.tick})
	}

	if report.Construct != 0 && report.Killed {
		if c, ok := w.findConstruct(report.Construct); ok {
			w.logger.Debug("постройка %s #%d уничтожена", c.Type, c.ID)
			w.publishEvent(EventConstructDestroyed, ConstructEvent{Construct: c.ID, Owner: c.Owner, Type: c.Type.String(), Tick: w.tick})
		}
	}
}

func (w *World) findConstruct(id uint64) (*Construct, bool) {
	for _, c := range w.constructs {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// reap удаляет мёртвые снаряды и уничтоженные постройки. Выполняется
// один раз за тик, строго после всех update'ов.
func (w *World) reap() {
	liveBullets := w.bullets[:0]
	for _, b := range w.bullets {
		if b.Alive() {
			liveBullets = append(liveBullets, b)
		}
	}
	w.bullets = liveBullets

	liveConstructs := w.constructs[:0]
	for _, c := range w.constructs {
		if !c.IsDestroyed() {
			liveConstructs = append(liveConstructs, c)
		}
	}
	w.constructs = liveConstructs
}

// spawnPoint возвращает точку возрождения (центр карты)
func (w *World) spawnPoint() vec.Vec2Float {
	return vec.Vec2Float{X: w.opts.Bounds.Width / 2, Y: w.opts.Bounds.Height / 2}
}
