package render

import (
	"image"
	"image/color"
	"io"

	"github.com/fogleman/gg"
	"github.com/mazznoer/csscolorparser"
)

// Raster is a Canvas backed by an RGBA image.
type Raster struct {
	width, height int
	dc            *gg.Context
	// clipped marks the Save levels that installed a clip. gg restores the
	// transform and styles on Pop but keeps the mask, so Restore drops it.
	clipped []bool
}

// NewRaster returns a transparent width x height raster.
func NewRaster(width, height int) *Raster {
	r := &Raster{width: width, height: height}
	r.Reset()
	return r
}

// Image returns the current pixels.
func (r *Raster) Image() image.Image {
	return r.dc.Image()
}

// EncodePNG writes the current pixels as PNG.
func (r *Raster) EncodePNG(w io.Writer) error {
	return r.dc.EncodePNG(w)
}

func (r *Raster) Reset() {
	r.dc = gg.NewContext(r.width, r.height)
	r.dc.SetColor(color.Black)
	r.dc.SetLineWidth(1)
	r.clipped = r.clipped[:0]
}

func (r *Raster) BeginPath()          { r.dc.ClearPath() }
func (r *Raster) MoveTo(x, y float64) { r.dc.MoveTo(x, y) }
func (r *Raster) LineTo(x, y float64) { r.dc.LineTo(x, y) }
func (r *Raster) ClosePath()          { r.dc.ClosePath() }

func (r *Raster) Rect(x, y, w, h float64) {
	r.dc.DrawRectangle(x, y, w, h)
}

func (r *Raster) Arc(x, y, radius, start, end float64) {
	r.dc.DrawArc(x, y, radius, start, end)
}

func (r *Raster) Ellipse(x, y, rx, ry, rotation, start, end float64) {
	r.dc.Push()
	r.dc.Translate(x, y)
	r.dc.Rotate(rotation)
	r.dc.DrawEllipticalArc(0, 0, rx, ry, start, end)
	r.dc.Pop()
}

func (r *Raster) Stroke() { r.dc.StrokePreserve() }
func (r *Raster) Fill()   { r.dc.FillPreserve() }

func (r *Raster) ClipEvenOdd() {
	r.dc.SetFillRuleEvenOdd()
	r.dc.ClipPreserve()
	r.dc.SetFillRuleWinding()
	if n := len(r.clipped); n > 0 {
		r.clipped[n-1] = true
	}
}

func (r *Raster) SetStrokeColor(css string) {
	if c, ok := parseColor(css); ok {
		r.dc.SetStrokeStyle(gg.NewSolidPattern(c))
	}
}

func (r *Raster) SetFillColor(css string) {
	if c, ok := parseColor(css); ok {
		r.dc.SetFillStyle(gg.NewSolidPattern(c))
	}
}

func (r *Raster) SetLineWidth(w float64) { r.dc.SetLineWidth(w) }

func (r *Raster) SetLineCap(c LineCap) {
	switch c {
	case CapRound:
		r.dc.SetLineCap(gg.LineCapRound)
	case CapSquare:
		r.dc.SetLineCap(gg.LineCapSquare)
	default:
		r.dc.SetLineCap(gg.LineCapButt)
	}
}

// SetLineJoin maps miter joins to bevel, the closest join gg draws.
func (r *Raster) SetLineJoin(j LineJoin) {
	if j == JoinRound {
		r.dc.SetLineJoin(gg.LineJoinRound)
		return
	}
	r.dc.SetLineJoin(gg.LineJoinBevel)
}

func (r *Raster) Save() {
	r.dc.Push()
	r.clipped = append(r.clipped, false)
}

func (r *Raster) Restore() {
	n := len(r.clipped)
	if n == 0 {
		return
	}
	clipped := r.clipped[n-1]
	r.clipped = r.clipped[:n-1]
	r.dc.Pop()
	if clipped {
		r.dc.ResetClip()
	}
}

func (r *Raster) Translate(x, y float64) { r.dc.Translate(x, y) }
func (r *Raster) Rotate(angle float64)   { r.dc.Rotate(angle) }

func parseColor(css string) (color.Color, bool) {
	c, err := csscolorparser.Parse(css)
	if err != nil {
		return nil, false
	}
	r, g, b, a := c.RGBA255()
	return color.NRGBA{R: r, G: g, B: b, A: a}, true
}
