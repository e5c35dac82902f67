package render

import (
	"fmt"
	"math"

	"github.com/mazznoer/csscolorparser"
)

// Op is one recorded canvas call.
type Op struct {
	Name string
	Args []float64
	Text string
}

func (o Op) String() string {
	if o.Text != "" {
		return fmt.Sprintf("%s(%q)", o.Name, o.Text)
	}
	return fmt.Sprintf("%s%v", o.Name, o.Args)
}

// Point is a device-space coordinate.
type Point struct {
	X, Y float64
}

// Stroke is a visible stroke: the subpaths of the current path at the time
// Stroke was called, transformed to device space.
type Stroke struct {
	Color    string
	Width    float64
	Subpaths [][]Point
}

// Length is the summed length of every subpath.
func (s Stroke) Length() float64 {
	var total float64
	for _, sp := range s.Subpaths {
		for i := 1; i < len(sp); i++ {
			total += math.Hypot(sp[i].X-sp[i-1].X, sp[i].Y-sp[i-1].Y)
		}
	}
	return total
}

// affine is a canvas transform: x' = a*x + c*y + e, y' = b*x + d*y + f.
type affine struct {
	a, b, c, d, e, f float64
}

var identity = affine{a: 1, d: 1}

func (m affine) apply(x, y float64) Point {
	return Point{X: m.a*x + m.c*y + m.e, Y: m.b*x + m.d*y + m.f}
}

type recorderState struct {
	transform   affine
	strokeColor string
	fillColor   string
	lineWidth   float64
}

// Recorder is a Canvas that keeps a display list instead of pixels. Paths are
// tracked so the visible strokes can be inspected.
type Recorder struct {
	ops      []Op
	state    recorderState
	stack    []recorderState
	subpaths [][]Point
	strokes  []Stroke
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	r := &Recorder{}
	r.Reset()
	return r
}

// Ops returns the recorded calls since the last Reset.
func (r *Recorder) Ops() []Op {
	return r.ops
}

// Strokes returns the strokes with a non-transparent color and a non-empty
// path, in the order they were drawn.
func (r *Recorder) Strokes() []Stroke {
	return r.strokes
}

func (r *Recorder) record(name string, args ...float64) {
	r.ops = append(r.ops, Op{Name: name, Args: args})
}

func (r *Recorder) Reset() {
	r.ops = nil
	r.stack = nil
	r.subpaths = nil
	r.strokes = nil
	r.state = recorderState{
		transform:   identity,
		strokeColor: "#000000",
		fillColor:   "#000000",
		lineWidth:   1,
	}
	r.record("reset")
}

func (r *Recorder) BeginPath() {
	r.subpaths = nil
	r.record("beginPath")
}

func (r *Recorder) MoveTo(x, y float64) {
	r.subpaths = append(r.subpaths, []Point{r.state.transform.apply(x, y)})
	r.record("moveTo", x, y)
}

func (r *Recorder) lineTo(p Point) {
	if len(r.subpaths) == 0 {
		r.subpaths = append(r.subpaths, []Point{p})
		return
	}
	last := len(r.subpaths) - 1
	r.subpaths[last] = append(r.subpaths[last], p)
}

func (r *Recorder) LineTo(x, y float64) {
	r.lineTo(r.state.transform.apply(x, y))
	r.record("lineTo", x, y)
}

func (r *Recorder) ClosePath() {
	if n := len(r.subpaths); n > 0 && len(r.subpaths[n-1]) > 0 {
		start := r.subpaths[n-1][0]
		r.subpaths[n-1] = append(r.subpaths[n-1], start)
		r.subpaths = append(r.subpaths, []Point{start})
	}
	r.record("closePath")
}

func (r *Recorder) Rect(x, y, w, h float64) {
	m := r.state.transform
	r.subpaths = append(r.subpaths,
		[]Point{m.apply(x, y), m.apply(x+w, y), m.apply(x+w, y+h), m.apply(x, y+h), m.apply(x, y)},
		[]Point{m.apply(x, y)},
	)
	r.record("rect", x, y, w, h)
}

// arcSegments is the number of line segments an arc is flattened into.
const arcSegments = 32

func (r *Recorder) ellipse(x, y, rx, ry, rotation, start, end float64) {
	m := r.state.transform
	sinR, cosR := math.Sincos(rotation)
	for i := 0; i <= arcSegments; i++ {
		t := start + (end-start)*float64(i)/arcSegments
		ex, ey := rx*math.Cos(t), ry*math.Sin(t)
		r.lineTo(m.apply(x+ex*cosR-ey*sinR, y+ex*sinR+ey*cosR))
	}
}

func (r *Recorder) Arc(x, y, radius, start, end float64) {
	r.ellipse(x, y, radius, radius, 0, start, end)
	r.record("arc", x, y, radius, start, end)
}

func (r *Recorder) Ellipse(x, y, rx, ry, rotation, start, end float64) {
	r.ellipse(x, y, rx, ry, rotation, start, end)
	r.record("ellipse", x, y, rx, ry, rotation, start, end)
}

func (r *Recorder) Stroke() {
	r.record("stroke")
	if !visible(r.state.strokeColor) {
		return
	}
	var subpaths [][]Point
	for _, sp := range r.subpaths {
		if len(sp) > 1 {
			subpaths = append(subpaths, append([]Point(nil), sp...))
		}
	}
	if len(subpaths) == 0 {
		return
	}
	r.strokes = append(r.strokes, Stroke{
		Color:    r.state.strokeColor,
		Width:    r.state.lineWidth,
		Subpaths: subpaths,
	})
}

func (r *Recorder) Fill()        { r.record("fill") }
func (r *Recorder) ClipEvenOdd() { r.record("clip") }

// SetStrokeColor records css. An invalid color leaves the current style in
// place, as on an HTML canvas.
func (r *Recorder) SetStrokeColor(css string) {
	if _, err := csscolorparser.Parse(css); err == nil {
		r.state.strokeColor = css
	}
	r.ops = append(r.ops, Op{Name: "strokeStyle", Text: css})
}

func (r *Recorder) SetFillColor(css string) {
	if _, err := csscolorparser.Parse(css); err == nil {
		r.state.fillColor = css
	}
	r.ops = append(r.ops, Op{Name: "fillStyle", Text: css})
}

func (r *Recorder) SetLineWidth(w float64) {
	r.state.lineWidth = w
	r.record("lineWidth", w)
}

func (r *Recorder) SetLineCap(c LineCap)   { r.record("lineCap", float64(c)) }
func (r *Recorder) SetLineJoin(j LineJoin) { r.record("lineJoin", float64(j)) }

func (r *Recorder) Save() {
	r.stack = append(r.stack, r.state)
	r.record("save")
}

func (r *Recorder) Restore() {
	if n := len(r.stack); n > 0 {
		r.state = r.stack[n-1]
		r.stack = r.stack[:n-1]
	}
	r.record("restore")
}

func (r *Recorder) Translate(x, y float64) {
	m := &r.state.transform
	m.e += m.a*x + m.c*y
	m.f += m.b*x + m.d*y
	r.record("translate", x, y)
}

func (r *Recorder) Rotate(angle float64) {
	sin, cos := math.Sincos(angle)
	m := r.state.transform
	r.state.transform = affine{
		a: m.a*cos + m.c*sin,
		b: m.b*cos + m.d*sin,
		c: -m.a*sin + m.c*cos,
		d: -m.b*sin + m.d*cos,
		e: m.e,
		f: m.f,
	}
	r.record("rotate", angle)
}

// visible reports whether a CSS color paints anything.
func visible(css string) bool {
	c, err := csscolorparser.Parse(css)
	if err != nil {
		return true
	}
	return c.A > 0
}
