package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_AppendAndRecent(t *testing.T) {
	s := newTestStore(t)
	base := time.Unix(1700000000, 0)

	for i := 0; i < 5; i++ {
		err := s.Append(KillRecord{
			ID:        string(rune('a' + i)),
			Killer:    1,
			Victim:    2,
			BulletID:  uint64(i + 1),
			Tick:      uint64(i * 10),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	recent, err := s.Recent(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)

	// Свежие записи первыми
	assert.Equal(t, uint64(5), recent[0].BulletID)
	assert.Equal(t, uint64(4), recent[1].BulletID)
	assert.Equal(t, uint64(3), recent[2].BulletID)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestStore_RecentOnEmptyStore(t *testing.T) {
	s := newTestStore(t)

	recent, err := s.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestStore_SameTimestampKeysUnique(t *testing.T) {
	s := newTestStore(t)
	ts := time.Unix(1700000000, 0)

	// Два фрага в одну и ту же наносекунду не должны затирать друг друга
	require.NoError(t, s.Append(KillRecord{ID: "first", Victim: 1, Timestamp: ts}))
	require.NoError(t, s.Append(KillRecord{ID: "second", Victim: 2, Timestamp: ts}))

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	recent, err := s.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].ID)
	assert.Equal(t, "first", recent[1].ID)
}

func TestStore_DefaultLimit(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Append(KillRecord{ID: "x", Victim: 1}))

	recent, err := s.Recent(0)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestStore_FindTimeRange(t *testing.T) {
	s := newTestStore(t)
	base := time.Unix(1700000000, 0)

	for i := 0; i < 10; i++ {
		require.NoError(t, s.Append(KillRecord{
			ID:        string(rune('a' + i)),
			Killer:    1,
			Victim:    2,
			Tick:      uint64(i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	// Границы диапазона включительны
	found, err := s.Find(Query{
		Since: base.Add(3 * time.Second),
		Until: base.Add(6 * time.Second),
	})
	require.NoError(t, err)
	require.Len(t, found, 4)

	// Свежие записи первыми
	assert.Equal(t, uint64(6), found[0].Tick)
	assert.Equal(t, uint64(3), found[3].Tick)
}

func TestStore_FindByParticipants(t *testing.T) {
	s := newTestStore(t)
	base := time.Unix(1700000000, 0)

	require.NoError(t, s.Append(KillRecord{ID: "a", Killer: 1, Victim: 2, Timestamp: base}))
	require.NoError(t, s.Append(KillRecord{ID: "b", Killer: 3, Victim: 2, Timestamp: base.Add(time.Second)}))
	require.NoError(t, s.Append(KillRecord{ID: "c", Killer: 1, Victim: 4, Timestamp: base.Add(2 * time.Second)}))
	// Незачтённый фраг: киллера нет
	require.NoError(t, s.Append(KillRecord{ID: "d", Victim: 1, Timestamp: base.Add(3 * time.Second)}))

	byKiller, err := s.Find(Query{Killer: 1})
	require.NoError(t, err)
	require.Len(t, byKiller, 2)
	assert.Equal(t, "c", byKiller[0].ID)
	assert.Equal(t, "a", byKiller[1].ID)

	byVictim, err := s.Find(Query{Victim: 2})
	require.NoError(t, err)
	require.Len(t, byVictim, 2)
	assert.Equal(t, "b", byVictim[0].ID)

	both, err := s.Find(Query{Killer: 3, Victim: 2})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, "b", both[0].ID)
}

func TestStore_FindLimit(t *testing.T) {
	s := newTestStore(t)
	base := time.Unix(1700000000, 0)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(KillRecord{
			ID:        string(rune('a' + i)),
			Victim:    2,
			Tick:      uint64(i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	// Лимит считает только подошедшие записи
	found, err := s.Find(Query{Victim: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, uint64(4), found[0].Tick)
	assert.Equal(t, uint64(3), found[1].Tick)

	// Пустой фильтр ведёт себя как Recent
	all, err := s.Find(Query{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
