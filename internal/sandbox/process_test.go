package sandbox

import (
	"bytes"
	"context"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHelperWorkerProcess is not a real test: the process worker tests re-run
// the test binary with TURTLE_HELPER_WORKER=1 to get a child that serves the
// worker protocol.
func TestHelperWorkerProcess(t *testing.T) {
	if os.Getenv("TURTLE_HELPER_WORKER") != "1" {
		return
	}
	if err := ServeWorker(os.Stdin, os.Stdout); err != nil {
		os.Exit(2)
	}
	os.Exit(0)
}

func helperFactory(t *testing.T) WorkerFactory {
	t.Helper()
	t.Setenv("TURTLE_HELPER_WORKER", "1")
	return NewProcessWorkerFactory(os.Args[0], "-test.run=^TestHelperWorkerProcess$")
}

func TestProcessWorkerRunsScript(t *testing.T) {
	e := New(scenario, WithTimeout(10*time.Second), WithWorkerFactory(helperFactory(t)))
	log, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, log, 4)
}

func TestProcessWorkerScriptError(t *testing.T) {
	e := New(`throw new Error("x")`, WithTimeout(10*time.Second), WithWorkerFactory(helperFactory(t)))
	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrRuntime)
}

func TestProcessWorkerKilledOnTimeout(t *testing.T) {
	e := New(`while (true) {}`, WithTimeout(2*time.Second), WithWorkerFactory(helperFactory(t)))
	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	e.Dispose()
}

func TestProcessWorkerMissingBinary(t *testing.T) {
	e := New("", WithWorkerFactory(NewProcessWorkerFactory("/nonexistent/turtle-worker")))
	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrRuntime)
}

func TestServeWorkerMessageForms(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"empty log", "", `{"result":[]}`},
		{"actions", "forward(5)", `{"result":[{"action":"forward","distance":5}]}`},
		{"script error", `throw new Error("secret")`, `{"error":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := strings.NewReader(`{"source":` + strconv.Quote(tt.source) + "}\n{}\n")
			var out bytes.Buffer
			require.NoError(t, ServeWorker(in, &out))
			assert.JSONEq(t, tt.want, out.String())
		})
	}
}
