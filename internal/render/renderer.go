// Package render replays a turtle action log onto a Canvas, either fully or
// up to a traveled-distance budget for animation.
package render

import (
	"math"

	"github.com/michaelbrown/turtle/internal/turtle"
)

// Unbounded is the budget that replays a log in full.
var Unbounded = math.Inf(1)

// Config describes the drawing area.
type Config struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Scale      float64 `json:"scale,omitempty"`
	DrawTurtle bool    `json:"drawTurtle,omitempty"`
}

// PixelSize is the canvas size in device pixels.
func (c Config) PixelSize() (int, int) {
	s := c.scale()
	return int(math.Ceil(c.Width * s)), int(math.Ceil(c.Height * s))
}

func (c Config) scale() float64 {
	if c.Scale <= 0 || math.IsNaN(c.Scale) || math.IsInf(c.Scale, 0) {
		return 1
	}
	return c.Scale
}

// Frame is the turtle's state at the end of a render.
type Frame struct {
	Position turtle.Vector `json:"position"`
	Heading  turtle.Vector `json:"heading"`
	Traveled float64       `json:"traveled"`
	Color    string        `json:"color"`
	// Complete is false when the budget ran out before the log ended.
	Complete bool `json:"complete"`
}

// Render clears c and draws log onto it, consuming at most budget units of
// forward motion. The result depends only on cfg, log and budget.
func Render(cfg Config, c Canvas, log turtle.Log, budget float64) Frame {
	if math.IsNaN(budget) || budget < 0 {
		budget = 0
	}

	c.Reset()
	p := &painter{
		canvas: c,
		height: cfg.Height,
		scale:  cfg.scale(),
		turtle: turtle.New(cfg.Width, cfg.Height),
		color:  turtle.TransparentColor,
	}
	complete := p.replay(log, budget)
	c.Stroke()

	if cfg.DrawTurtle {
		x, y := p.screen(p.turtle.Position)
		drawAvatar(c, p.scale, x, y, p.turtle.Angle(), p.traveled, p.color)
	}

	return Frame{
		Position: p.turtle.Position,
		Heading:  p.turtle.Heading,
		Traveled: p.traveled,
		Color:    p.color,
		Complete: complete,
	}
}

type painter struct {
	canvas   Canvas
	height   float64
	scale    float64
	turtle   *turtle.Turtle
	penDown  bool
	color    string
	traveled float64
}

func (p *painter) screen(v turtle.Vector) (float64, float64) {
	return v.X * p.scale, p.height*p.scale - v.Y*p.scale
}

// newStroke starts a fresh path at the turtle's position.
func (p *painter) newStroke() {
	p.canvas.BeginPath()
	p.canvas.MoveTo(p.screen(p.turtle.Position))
}

func (p *painter) replay(log turtle.Log, budget float64) bool {
	c := p.canvas
	c.SetStrokeColor(p.color)
	c.SetLineWidth(10 * p.scale)
	c.SetLineCap(CapRound)
	c.SetLineJoin(JoinRound)
	p.newStroke()

	remaining := budget
	for _, a := range log {
		switch a.Kind {
		case turtle.KindPenDown:
			if p.penDown {
				c.Stroke()
			}
			p.color = a.Color
			if p.color == "" {
				p.color = turtle.DefaultColor
			}
			c.SetStrokeColor(p.color)
			p.newStroke()
			p.penDown = true

		case turtle.KindPenUp:
			c.Stroke()
			p.color = turtle.TransparentColor
			c.SetStrokeColor(p.color)
			p.newStroke()
			p.penDown = false

		case turtle.KindForward:
			d := turtle.Finite(a.Distance)
			want := math.Abs(d)
			if want > 0 && remaining <= 0 {
				return false
			}
			step := math.Min(want, remaining)
			waypoints := p.turtle.Move(math.Copysign(step, d))
			for _, wp := range waypoints[1:] {
				c.LineTo(p.screen(wp.Position))
			}
			remaining -= step
			p.traveled += step
			if step < want {
				return false
			}

		case turtle.KindRotate:
			p.turtle.Rotate(a.Angle)
		}
	}
	return true
}
