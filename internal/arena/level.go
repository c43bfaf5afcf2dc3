package arena

import (
	"time"

	"github.com/annel0/arena-server/internal/util"
	"github.com/annel0/arena-server/internal/vec"
)

// Шаг сетки, по которой раскидываются стены карты
const wallGridStep = 100.0

// generateWalls расставляет нейтральные стены по шуму Перлина:
// мир разбивается на сетку, и клетки с наибольшим значением шума
// получают стену. Один сид — одна и та же карта.
func generateWalls(seed int64, bounds Bounds, count int, firstID uint64, now time.Time) []*Construct {
	if count <= 0 {
		return nil
	}

	noise := util.NewNoiseGenerator(seed)

	type cell struct {
		pos   vec.Vec2Float
		value float64
	}
	var cells []cell

	for x := wallGridStep; x < bounds.Width-wallGridStep/2; x += wallGridStep {
		for y := wallGridStep; y < bounds.Height-wallGridStep/2; y += wallGridStep {
			// Центр карты оставляем свободным под точку возрождения
			center := vec.Vec2Float{X: bounds.Width / 2, Y: bounds.Height / 2}
			pos := vec.Vec2Float{X: x, Y: y}
			if pos.DistanceTo(center) < wallGridStep*2 {
				continue
			}
			cells = append(cells, cell{
				pos:   pos,
				value: noise.Noise2D(x/bounds.Width*4, y/bounds.Height*4),
			})
		}
	}

	// Частичная сортировка не нужна: карт немного, полная сортировка дешёвая
	for i := 0; i < len(cells); i++ {
		for j := i + 1; j < len(cells); j++ {
			if cells[j].value > cells[i].value {
				cells[i], cells[j] = cells[j], cells[i]
			}
		}
	}

	if count > len(cells) {
		count = len(cells)
	}

	walls := make([]*Construct, 0, count)
	for i := 0; i < count; i++ {
		walls = append(walls, NewConstruct(firstID+uint64(i), NeutralOwner, ConstructWall, cells[i].pos, now))
	}
	return walls
}
