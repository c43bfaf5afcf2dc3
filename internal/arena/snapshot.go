package arena

// Snapshot — сериализуемый срез состояния мира, создаваемый после фазы
// удаления мёртвых сущностей и передаваемый broadcast-слою раз в тик.
// Формат полезной нагрузки определяет сетевой слой; ядро фиксирует
// только состав данных.
type Snapshot struct {
	Tick       uint64           `json:"tick"`
	TimeMs     int64            `json:"time_ms"`
	Players    []PlayerState    `json:"players"`
	Bullets    []BulletState    `json:"bullets"`
	Constructs []ConstructState `json:"constructs"`
}

// PlayerState описывает игрока в снапшоте
type PlayerState struct {
	ID     PlayerID `json:"id"`
	Name   string   `json:"name"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Facing float64  `json:"facing"`
	HP     int      `json:"hp"`
	Kills  uint64   `json:"kills"`
	Deaths uint64   `json:"deaths"`
	Dead   bool     `json:"dead,omitempty"`
}

// BulletState описывает снаряд в снапшоте
type BulletState struct {
	ID          uint64   `json:"id"`
	X           float64  `json:"x"`
	Y           float64  `json:"y"`
	Orientation float64  `json:"orientation"`
	Source      PlayerID `json:"source"`
}

// ConstructState описывает постройку в снапшоте
type ConstructState struct {
	ID    uint64   `json:"id"`
	Owner PlayerID `json:"owner"`
	Type  string   `json:"type"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	HP    int      `json:"hp"`
}

// buildSnapshot собирает снапшот текущего состояния мира
func (w *World) buildSnapshot(timeMs int64) *Snapshot {
	snap := &Snapshot{
		Tick:       w.tick,
		TimeMs:     timeMs,
		Players:    make([]PlayerState, 0, w.registry.Len()),
		Bullets:    make([]BulletState, 0, len(w.bullets)),
		Constructs: make([]ConstructState, 0, len(w.constructs)),
	}

	for _, p := range w.registry.Values() {
		snap.Players = append(snap.Players, PlayerState{
			ID:     p.ID,
			Name:   p.Name,
			X:      p.Pos.X,
			Y:      p.Pos.Y,
			Facing: p.Facing,
			HP:     p.HP,
			Kills:  p.Kills,
			Deaths: p.Deaths,
			Dead:   p.IsDead(),
		})
	}
	for _, b := range w.bullets {
		snap.Bullets = append(snap.Bullets, BulletState{
			ID:          b.ID,
			X:           b.Pos.X,
			Y:           b.Pos.Y,
			Orientation: b.Orientation,
			Source:      b.Source,
		})
	}
	for _, c := range w.constructs {
		snap.Constructs = append(snap.Constructs, ConstructState{
			ID:    c.ID,
			Owner: c.Owner,
			Type:  c.Type.String(),
			X:     c.Pos.X,
			Y:     c.Pos.Y,
			HP:    c.HP,
		})
	}
	return snap
}
