package render

import "math"

const (
	shellFill = "#bada55"
	shellEdge = "#388e3c"
	eyeColor  = "#222222"
)

// leg is one ellipse of the avatar. Its rotation is sign*(pi/10 + wiggle/20),
// where wiggle comes from the leg's side.
type leg struct {
	x, y, sign float64
	left       bool
}

var legs = []leg{
	{x: -11, y: -11, sign: 1, left: true},
	{x: 11, y: -11, sign: -1},
	{x: -11, y: 13, sign: -1, left: true},
	{x: 11, y: 13, sign: 1},
}

// drawAvatar draws the turtle at screen position (x, y), turned by angle. The
// legs wiggle with the distance traveled and the shell hexagon is filled with
// the pen color.
func drawAvatar(c Canvas, s float64, x, y, angle, traveled float64, color string) {
	c.Save()
	c.Translate(x, y)
	c.Rotate(angle)
	c.SetLineWidth(4 * s)
	c.SetStrokeColor(shellEdge)
	c.SetFillColor(shellFill)

	// Body parts are clipped so the hexagon stays a hole for the pen color.
	c.Save()
	c.BeginPath()
	c.Rect(-10000*s, -10000*s, 20000*s, 20000*s)
	hexagon(c, s)
	c.ClipEvenOdd()

	wiggleLeft := math.Sin(traveled/10) * 8
	wiggleRight := math.Cos(traveled/10) * 8
	for _, l := range legs {
		wiggle := wiggleRight
		if l.left {
			wiggle = wiggleLeft
		}
		c.BeginPath()
		c.Ellipse(l.x*s, l.y*s, 4*s, 8*s, l.sign*(math.Pi*0.1+wiggle*0.05), 0, 2*math.Pi)
		c.Fill()
		c.Stroke()
	}

	c.BeginPath()
	c.Ellipse(0, 0, 14*s, 20*s, 0, 0, 2*math.Pi)
	c.Fill()
	c.Stroke()

	c.BeginPath()
	c.Ellipse(0, -22*s, 8*s, 10*s, 0, 0, 2*math.Pi)
	c.Fill()
	c.Stroke()

	c.SetFillColor(eyeColor)
	c.BeginPath()
	c.Arc(-3*s, -26*s, 1.5*s, 0, 2*math.Pi)
	c.Fill()
	c.BeginPath()
	c.Arc(3*s, -26*s, 1.5*s, 0, 2*math.Pi)
	c.Fill()
	c.Restore()

	c.Save()
	c.BeginPath()
	hexagon(c, s)
	c.SetFillColor(color)
	c.Fill()
	c.SetLineWidth(2 * s)
	c.Stroke()
	c.Restore()

	c.Restore()
}

func hexagon(c Canvas, s float64) {
	for i := 0; i < 6; i++ {
		a := math.Pi/3*float64(i) - math.Pi/6
		x, y := math.Cos(a)*8*s, math.Sin(a)*8*s+2*s
		if i == 0 {
			c.MoveTo(x, y)
		} else {
			c.LineTo(x, y)
		}
	}
	c.ClosePath()
}
