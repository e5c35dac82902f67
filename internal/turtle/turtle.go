// Package turtle holds the turtle-graphics data model: the action log a
// script produces and the state machine that replays it inside a bounded
// rectangle.
package turtle

import "math"

// Waypoint is a point reached during a move. Traveled is the distance covered
// from the start of the move up to and including this point.
type Waypoint struct {
	Traveled float64
	Position Vector
}

// Turtle is the pose of the turtle inside the rectangle [0,width] x [0,height].
// It is owned by a single replay and is not safe for concurrent use.
type Turtle struct {
	Position Vector
	Heading  Vector
	bounds   Vector
}

// New places a turtle at the bottom-center of a width x height rectangle,
// heading up.
func New(width, height float64) *Turtle {
	return &Turtle{
		Position: Vector{X: width / 2, Y: 0},
		Heading:  Vector{X: 0, Y: 1},
		bounds:   Vector{X: width, Y: height},
	}
}

// Bounds returns the upper corner of the drawing rectangle.
func (t *Turtle) Bounds() Vector {
	return t.bounds
}

// Rotate turns the heading by angle radians.
func (t *Turtle) Rotate(angle float64) {
	t.Heading = t.Heading.Rotate(Finite(angle))
}

// Angle is the heading's angle from the +y axis, as used to orient the avatar.
func (t *Turtle) Angle() float64 {
	return math.Atan2(t.Heading.X, t.Heading.Y)
}

// Move advances the turtle up to distance units along its heading (backward
// for negative distances) and returns the waypoints it passed. The first
// waypoint is always the starting position with zero progress.
//
// When the path reaches the rectangle's edge the turtle first moves to the
// crossing point, then the rest of the distance is applied and each
// coordinate is clamped into the rectangle. The clamp does not slide along
// the wall, so a heading with a component parallel to the wall can leave the
// turtle stuck at a corner. The remaining distance still counts as traveled.
func (t *Turtle) Move(distance float64) []Waypoint {
	distance = Finite(distance)
	direction := t.Heading
	if distance < 0 {
		direction = direction.Scale(-1)
		distance = -distance
	}

	waypoints := []Waypoint{{Traveled: 0, Position: t.Position}}

	c, ok := boundsIntersection(t.bounds, t.Position, direction)
	if !ok || c.d > distance {
		// The clamp only matters for a position already outside the rectangle.
		t.Position = t.Position.Add(direction.Scale(distance)).Clamp(t.bounds)
		return append(waypoints, Waypoint{Traveled: distance, Position: t.Position})
	}

	var traveled float64
	if c.d > 0 {
		t.Position = c.p
		traveled = c.d
		waypoints = append(waypoints, Waypoint{Traveled: traveled, Position: t.Position})
	}

	t.Position = t.Position.Add(direction.Scale(distance - traveled)).Clamp(t.bounds)
	return append(waypoints, Waypoint{Traveled: distance, Position: t.Position})
}

type crossing struct {
	d float64
	p Vector
}

// boundsIntersection finds the nearest edge the ray (pos, dir) meets at a
// non-negative distance. Every edge not parallel to dir is tested, so a
// position on an edge meets that edge at distance zero. A position outside
// the rectangle has no crossing.
func boundsIntersection(bounds, pos, dir Vector) (crossing, bool) {
	if !pos.Within(bounds) {
		return crossing{}, false
	}

	eps := 1e-9 * (1 + bounds.X + bounds.Y)
	inRange := func(v, hi float64) bool {
		return v >= -eps && v <= hi+eps
	}

	best := crossing{d: math.Inf(1)}
	found := false
	consider := func(d float64, p Vector) {
		if d >= 0 && d < best.d {
			best = crossing{d: d, p: p.Clamp(bounds)}
			found = true
		}
	}

	if dir.X != 0 {
		for _, edge := range []float64{0, bounds.X} {
			d := (edge - pos.X) / dir.X
			if y := pos.Y + d*dir.Y; inRange(y, bounds.Y) {
				consider(d, Vector{X: edge, Y: y})
			}
		}
	}
	if dir.Y != 0 {
		for _, edge := range []float64{0, bounds.Y} {
			d := (edge - pos.Y) / dir.Y
			if x := pos.X + d*dir.X; inRange(x, bounds.X) {
				consider(d, Vector{X: x, Y: edge})
			}
		}
	}

	return best, found
}
