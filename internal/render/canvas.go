package render

// LineCap is the shape drawn at the ends of stroked lines.
type LineCap int

const (
	CapButt LineCap = iota
	CapRound
	CapSquare
)

// LineJoin is the shape drawn where stroked segments meet.
type LineJoin int

const (
	JoinMiter LineJoin = iota
	JoinRound
	JoinBevel
)

// Canvas is a 2-D drawing context with HTML-canvas path semantics: Stroke and
// Fill do not consume the current path, BeginPath does. Coordinates are
// y-down canvas pixels after the current transform.
//
// A Canvas is written by one render at a time.
type Canvas interface {
	// Reset clears the surface and restores every state to its default.
	Reset()

	BeginPath()
	MoveTo(x, y float64)
	LineTo(x, y float64)
	ClosePath()
	Rect(x, y, w, h float64)
	Arc(x, y, r, startAngle, endAngle float64)
	Ellipse(x, y, rx, ry, rotation, startAngle, endAngle float64)

	Stroke()
	Fill()
	// ClipEvenOdd intersects the clip region with the current path using the
	// even-odd fill rule.
	ClipEvenOdd()

	SetStrokeColor(css string)
	SetFillColor(css string)
	SetLineWidth(w float64)
	SetLineCap(c LineCap)
	SetLineJoin(j LineJoin)

	Save()
	Restore()
	Translate(x, y float64)
	Rotate(angle float64)
}
