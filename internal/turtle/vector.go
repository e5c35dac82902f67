package turtle

import "math"

// Vector is an immutable 2-D point or direction in logical (y-up) space.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vector) Add(o Vector) Vector {
	return Vector{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale returns v multiplied by s.
func (v Vector) Scale(s float64) Vector {
	return Vector{X: v.X * s, Y: v.Y * s}
}

// Rotate returns v rotated by angle radians.
func (v Vector) Rotate(angle float64) Vector {
	sin, cos := math.Sincos(angle)
	return Vector{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
	}
}

// Clamp limits each coordinate independently to [0, bounds.X] and [0, bounds.Y].
func (v Vector) Clamp(bounds Vector) Vector {
	return Vector{
		X: math.Max(0, math.Min(v.X, bounds.X)),
		Y: math.Max(0, math.Min(v.Y, bounds.Y)),
	}
}

// Length returns the Euclidean norm of v.
func (v Vector) Length() float64 {
	return math.Hypot(v.X, v.Y)
}

// Distance returns the Euclidean distance between v and o.
func (v Vector) Distance(o Vector) float64 {
	return o.Sub(v).Length()
}

// Within reports whether v lies in the closed rectangle [0, bounds.X] x [0, bounds.Y].
func (v Vector) Within(bounds Vector) bool {
	return 0 <= v.X && 0 <= v.Y && v.X <= bounds.X && v.Y <= bounds.Y
}
