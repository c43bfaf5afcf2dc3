package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/arena-server/internal/vec"
)

func TestRegistry_InsertionOrderPreserved(t *testing.T) {
	r := NewRegistry()
	now := testTime()

	for _, id := range []PlayerID{5, 2, 9, 1} {
		r.Add(NewPlayer(id, "p", vec.Vec2Float{}, now))
	}

	var got []PlayerID
	for _, p := range r.Values() {
		got = append(got, p.ID)
	}
	assert.Equal(t, []PlayerID{5, 2, 9, 1}, got)
}

func TestRegistry_ReaddKeepsPosition(t *testing.T) {
	r := NewRegistry()
	now := testTime()

	r.Add(NewPlayer(1, "a", vec.Vec2Float{}, now))
	r.Add(NewPlayer(2, "b", vec.Vec2Float{}, now))
	r.Add(NewPlayer(3, "c", vec.Vec2Float{}, now))

	replacement := NewPlayer(2, "b2", vec.Vec2Float{}, now)
	r.Add(replacement)

	require.Equal(t, 3, r.Len())
	assert.Same(t, replacement, r.Values()[1], "повторная регистрация сохраняет позицию обхода")

	got, ok := r.Get(2)
	require.True(t, ok)
	assert.Equal(t, "b2", got.Name)
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	now := testTime()

	r.Add(NewPlayer(1, "a", vec.Vec2Float{}, now))
	r.Add(NewPlayer(2, "b", vec.Vec2Float{}, now))

	r.Remove(1)
	r.Remove(99) // отсутствующий ID — no-op

	assert.Equal(t, 1, r.Len())
	_, ok := r.Get(1)
	assert.False(t, ok)
	assert.Equal(t, PlayerID(2), r.Values()[0].ID)
}
