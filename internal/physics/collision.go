package physics

import (
	"github.com/annel0/arena-server/internal/vec"
)

// CircleCollider представляет круглый коллайдер с радиусом в мировых единицах
type CircleCollider struct {
	Radius float64
}

// NewCircleCollider создаёт новый коллайдер с указанным радиусом
func NewCircleCollider(radius float64) *CircleCollider {
	return &CircleCollider{Radius: radius}
}

// IsPointInside проверяет, находится ли точка внутри коллайдера
func (cc *CircleCollider) IsPointInside(colliderPos, point vec.Vec2Float) bool {
	return colliderPos.DistanceTo(point) <= cc.Radius
}

// CheckCircleCollision проверяет пересечение двух кругов.
// Касание (расстояние равно сумме радиусов) считается столкновением.
func CheckCircleCollision(pos1 vec.Vec2Float, r1 float64, pos2 vec.Vec2Float, r2 float64) bool {
	dx := pos1.X - pos2.X
	dy := pos1.Y - pos2.Y
	sum := r1 + r2
	return dx*dx+dy*dy <= sum*sum
}

// ClampToBounds ограничивает позицию прямоугольной областью [0,w]x[0,h]
func ClampToBounds(pos vec.Vec2Float, w, h float64) vec.Vec2Float {
	if pos.X < 0 {
		pos.X = 0
	}
	if pos.X > w {
		pos.X = w
	}
	if pos.Y < 0 {
		pos.Y = 0
	}
	if pos.Y > h {
		pos.Y = h
	}
	return pos
}
