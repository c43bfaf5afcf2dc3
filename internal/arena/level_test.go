package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/arena-server/internal/vec"
)

func TestGenerateWalls_Deterministic(t *testing.T) {
	now := testTime()

	a := generateWalls(1234, testBounds, 20, 1, now)
	b := generateWalls(1234, testBounds, 20, 1, now)

	require.Len(t, a, 20)
	require.Len(t, b, 20)
	for i := range a {
		assert.Equal(t, a[i].Pos, b[i].Pos, "один сид — одна раскладка")
	}
}

func TestGenerateWalls_DifferentSeeds(t *testing.T) {
	now := testTime()

	a := generateWalls(1, testBounds, 20, 1, now)
	b := generateWalls(2, testBounds, 20, 1, now)

	same := true
	for i := range a {
		if a[i].Pos != b[i].Pos {
			same = false
			break
		}
	}
	assert.False(t, same, "разные сиды должны давать разные раскладки")
}

func TestGenerateWalls_Placement(t *testing.T) {
	now := testTime()
	center := vec.Vec2Float{X: testBounds.Width / 2, Y: testBounds.Height / 2}

	walls := generateWalls(1234, testBounds, 30, 10, now)

	require.Len(t, walls, 30)
	for i, w := range walls {
		assert.Equal(t, ConstructWall, w.Type)
		assert.Equal(t, NeutralOwner, w.Owner)
		assert.Equal(t, uint64(10+i), w.ID)
		assert.True(t, testBounds.Contains(w.Pos), "стена %d вне границ мира", i)
		assert.GreaterOrEqual(t, w.Pos.DistanceTo(center), wallGridStep*2.0,
			"центр карты должен оставаться свободным под точку возрождения")
	}
}

func TestGenerateWalls_CountClamped(t *testing.T) {
	walls := generateWalls(1, Bounds{Width: 400, Height: 400}, 1000, 1, testTime())
	assert.LessOrEqual(t, len(walls), 9, "стен не больше, чем клеток сетки")

	assert.Nil(t, generateWalls(1, testBounds, 0, 1, testTime()))
}
