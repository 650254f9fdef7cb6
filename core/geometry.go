package core

import (
	"math"

	"github.com/crowdsignals/stadium-simulator/model"
)

// Vec2 is a 2D displacement in layout distance units.
type Vec2 struct {
	X, Y float64
}

// Norm returns the Euclidean norm of the vector.
func (v Vec2) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Add returns v + other.
func (v Vec2) Add(other Vec2) Vec2 {
	return Vec2{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub returns v - other.
func (v Vec2) Sub(other Vec2) Vec2 {
	return Vec2{X: v.X - other.X, Y: v.Y - other.Y}
}

// Scale returns v scaled by s.
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Normalize returns a unit vector in the direction of v, or the zero
// vector when v has no length.
func (v Vec2) Normalize() Vec2 {
	n := v.Norm()
	if n == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / n, Y: v.Y / n}
}

// Cross returns the z-component of the 3D cross product of two planar
// vectors. Its sign picks the rotation sense in the orbital fallback.
func (v Vec2) Cross(other Vec2) float64 {
	return v.X*other.Y - v.Y*other.X
}

// Perp returns v rotated 90 degrees counter-clockwise.
func (v Vec2) Perp() Vec2 {
	return Vec2{X: -v.Y, Y: v.X}
}

// Distance returns the straight-line distance between two positions.
func Distance(a, b model.Position) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// VecBetween returns the displacement from a to b.
func VecBetween(a, b model.Position) Vec2 {
	return Vec2{X: b.X - a.X, Y: b.Y - a.Y}
}

// Translate returns p displaced by v.
func Translate(p model.Position, v Vec2) model.Position {
	return model.Position{X: p.X + v.X, Y: p.Y + v.Y}
}

// PointOnRing returns the point at the given angle (degrees) and radius
// from the centre.
func PointOnRing(centre model.Position, angleDeg, radius float64) model.Position {
	rad := angleDeg * math.Pi / 180.0
	return model.Position{
		X: centre.X + radius*math.Cos(rad),
		Y: centre.Y + radius*math.Sin(rad),
	}
}

// AngleFrom returns the angle of p as seen from the centre, in [0, 360).
func AngleFrom(centre, p model.Position) float64 {
	deg := math.Atan2(p.Y-centre.Y, p.X-centre.X) * 180.0 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}
