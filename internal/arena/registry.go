package arena

// Registry — реестр подключённых игроков с фиксированным порядком обхода.
// Порядок вставки сохраняется, поэтому правило «первое совпадение по
// порядку реестра» при разрешении столкновений детерминировано и
// воспроизводимо в тестах (map такой гарантии не даёт).
//
// Реестр принадлежит тик-драйверу: все мутации происходят на границе
// тика, и срез Values() стабилен на протяжении обновления одной сущности.
type Registry struct {
	order []*Player
	byID  map[PlayerID]*Player
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{byID: make(map[PlayerID]*Player)}
}

// Add регистрирует игрока. Повторная регистрация того же ID заменяет
// игрока на месте, сохраняя его позицию в порядке обхода.
func (r *Registry) Add(p *Player) {
	if _, exists := r.byID[p.ID]; exists {
		for i, old := range r.order {
			if old.ID == p.ID {
				r.order[i] = p
				break
			}
		}
	} else {
		r.order = append(r.order, p)
	}
	r.byID[p.ID] = p
}

// Remove удаляет игрока из реестра
func (r *Registry) Remove(id PlayerID) {
	if _, exists := r.byID[id]; !exists {
		return
	}
	delete(r.byID, id)
	for i, p := range r.order {
		if p.ID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get возвращает игрока по ID
func (r *Registry) Get(id PlayerID) (*Player, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Values возвращает игроков в порядке регистрации. Срез только для
// чтения и действителен до следующей мутации реестра.
func (r *Registry) Values() []*Player {
	return r.order
}

// Len возвращает количество игроков в реестре
func (r *Registry) Len() int {
	return len(r.order)
}
