package turtle

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionWireFormat(t *testing.T) {
	log := Log{PenDown("#bada55"), Forward(50), Rotate(1.5), PenUp()}

	data, err := json.Marshal(log)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"action":"pen-down","color":"#bada55"},
		{"action":"forward","distance":50},
		{"action":"rotate","angle":1.5},
		{"action":"pen-up"}
	]`, string(data))

	var back Log
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, log, back)
}

func TestActionDecodeIsLenient(t *testing.T) {
	var log Log
	err := json.Unmarshal([]byte(`[
		{"action":"pen-down"},
		{"action":"pen-down","color":7},
		{"action":"forward"},
		{"action":"forward","distance":"far"},
		{"action":"rotate","angle":null}
	]`), &log)
	require.NoError(t, err)

	assert.Equal(t, Log{PenDown(""), PenDown(""), Forward(0), Forward(0), Rotate(0)}, log)
}

func TestActionDecodeRejectsUnknownTag(t *testing.T) {
	var a Action
	assert.Error(t, json.Unmarshal([]byte(`{"action":"teleport"}`), &a))
	assert.Error(t, json.Unmarshal([]byte(`{"distance":3}`), &a))
}

func TestActionMarshalNonFinite(t *testing.T) {
	data, err := json.Marshal(Forward(math.Inf(-1)))
	require.NoError(t, err)

	var a Action
	require.NoError(t, json.Unmarshal(data, &a))
	assert.Equal(t, -math.MaxFloat64, a.Distance)
}

func TestPathLength(t *testing.T) {
	log := Log{Forward(10), Rotate(3), Forward(-5), PenUp(), Forward(math.NaN())}
	assert.InDelta(t, 15, log.PathLength(), 1e-12)
	assert.Zero(t, Log(nil).PathLength())
}

func TestActionString(t *testing.T) {
	assert.Equal(t, `penDown("red")`, PenDown("red").String())
	assert.Equal(t, "penUp()", PenUp().String())
	assert.Equal(t, "forward(2.5)", Forward(2.5).String())
	assert.Equal(t, "rotate(-1)", Rotate(-1).String())
}
