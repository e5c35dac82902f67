package turtle

import (
	"encoding/json"
	"fmt"
	"math"
)

// Kind tags the four cases of Action. The string values are the wire format
// exchanged with sandbox workers and HTTP clients.
type Kind string

const (
	KindPenDown Kind = "pen-down"
	KindPenUp   Kind = "pen-up"
	KindForward Kind = "forward"
	KindRotate  Kind = "rotate"
)

// DefaultColor is the stroke color used when a pen-down carries no color.
const DefaultColor = "#000000"

// TransparentColor is the stroke color used while the pen is up.
const TransparentColor = "#00000000"

// Action is a single drawing intent recorded by a script. Only the field
// matching Kind is meaningful; construct values with PenDown, PenUp, Forward
// or Rotate.
type Action struct {
	Kind     Kind
	Color    string
	Distance float64
	Angle    float64
}

// PenDown starts a visible stroke in color.
func PenDown(color string) Action {
	return Action{Kind: KindPenDown, Color: color}
}

// PenUp ends the visible stroke.
func PenUp() Action {
	return Action{Kind: KindPenUp}
}

// Forward advances the turtle by distance units; negative values move backward.
func Forward(distance float64) Action {
	return Action{Kind: KindForward, Distance: distance}
}

// Rotate turns the heading by angle radians.
func Rotate(angle float64) Action {
	return Action{Kind: KindRotate, Angle: angle}
}

func (a Action) String() string {
	switch a.Kind {
	case KindPenDown:
		return fmt.Sprintf("penDown(%q)", a.Color)
	case KindPenUp:
		return "penUp()"
	case KindForward:
		return fmt.Sprintf("forward(%g)", a.Distance)
	case KindRotate:
		return fmt.Sprintf("rotate(%g)", a.Angle)
	default:
		return fmt.Sprintf("unknown(%s)", a.Kind)
	}
}

type wireAction struct {
	Action   Kind     `json:"action"`
	Color    *string  `json:"color,omitempty"`
	Distance *float64 `json:"distance,omitempty"`
	Angle    *float64 `json:"angle,omitempty"`
}

// MarshalJSON writes only the field that belongs to the action's kind.
func (a Action) MarshalJSON() ([]byte, error) {
	w := wireAction{Action: a.Kind}
	switch a.Kind {
	case KindPenDown:
		c := a.Color
		w.Color = &c
	case KindForward:
		d := Finite(a.Distance)
		w.Distance = &d
	case KindRotate:
		r := Finite(a.Angle)
		w.Angle = &r
	case KindPenUp:
	default:
		return nil, fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes leniently: a missing or non-numeric distance or angle
// becomes 0 and a missing or non-string color becomes "". Only the action tag
// itself is validated.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	tag, _ := raw["action"].(string)
	switch k := Kind(tag); k {
	case KindPenDown:
		color, _ := raw["color"].(string)
		*a = PenDown(color)
	case KindPenUp:
		*a = PenUp()
	case KindForward:
		*a = Forward(number(raw["distance"]))
	case KindRotate:
		*a = Rotate(number(raw["angle"]))
	default:
		return fmt.Errorf("unknown action %q", tag)
	}
	return nil
}

func number(v any) float64 {
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return f
}

// Finite maps NaN to 0 and infinities to the largest finite float of the same
// sign, so every recorded number survives JSON encoding and vector arithmetic.
func Finite(f float64) float64 {
	switch {
	case math.IsNaN(f):
		return 0
	case math.IsInf(f, 1):
		return math.MaxFloat64
	case math.IsInf(f, -1):
		return -math.MaxFloat64
	default:
		return f
	}
}

// Log is the ordered record of capability calls made by one script execution.
type Log []Action

// PathLength is the total distance covered by the log's forward actions,
// counting backward motion by its magnitude.
func (l Log) PathLength() float64 {
	var total float64
	for _, a := range l {
		if a.Kind == KindForward {
			total += math.Abs(Finite(a.Distance))
		}
	}
	return total
}
