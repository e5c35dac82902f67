package sandbox

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/turtle/internal/turtle"
)

const scenario = `
penDown("#bada55");
forward(50);
rotate(Math.PI / 2);
forward(25);
`

func TestExecuteRecordsCapabilityCalls(t *testing.T) {
	log, err := Execute(goja.New(), scenario+"penUp();")
	require.NoError(t, err)
	assert.Equal(t, turtle.Log{
		turtle.PenDown("#bada55"),
		turtle.Forward(50),
		turtle.Rotate(math.Pi / 2),
		turtle.Forward(25),
		turtle.PenUp(),
	}, log)
}

func TestExecuteArgumentDefaults(t *testing.T) {
	log, err := Execute(goja.New(), `penDown(); forward(); rotate("left"); forward(null); forward(2.5);`)
	require.NoError(t, err)
	assert.Equal(t, turtle.Log{
		turtle.PenDown(turtle.DefaultColor),
		turtle.Forward(0),
		turtle.Rotate(0),
		turtle.Forward(0),
		turtle.Forward(2.5),
	}, log)
}

func TestExecuteEmptyScript(t *testing.T) {
	log, err := Execute(goja.New(), "")
	require.NoError(t, err)
	assert.NotNil(t, log)
	assert.Empty(t, log)
}

func TestExecuteAwaitsEntryPoint(t *testing.T) {
	log, err := Execute(goja.New(), `
		await null;
		forward(1);
		await Promise.resolve();
		forward(2);
	`)
	require.NoError(t, err)
	assert.Equal(t, turtle.Log{turtle.Forward(1), turtle.Forward(2)}, log)
}

func TestExecuteErrors(t *testing.T) {
	for name, src := range map[string]string{
		"sync throw":      `forward(1); throw new Error("nope");`,
		"async rejection": `await null; throw new Error("later");`,
		"syntax error":    `forward(;`,
		"undefined call":  `teleport(3);`,
	} {
		t.Run(name, func(t *testing.T) {
			log, err := Execute(goja.New(), src)
			assert.Error(t, err)
			assert.Nil(t, log)
		})
	}
}

func TestExecutePendingPromise(t *testing.T) {
	_, err := Execute(goja.New(), `await new Promise(() => {});`)
	assert.ErrorIs(t, err, errPending)
}

func TestExecuteHasNoHostGlobals(t *testing.T) {
	_, err := Execute(goja.New(), `
		for (const name of ["require", "console", "process", "setTimeout", "fetch"]) {
			if (typeof globalThis[name] !== "undefined") throw new Error(name);
		}
	`)
	assert.NoError(t, err)
}

func TestExecutorSuccess(t *testing.T) {
	e := New(scenario)
	assert.Equal(t, NotStarted, e.State())

	log, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, log, 4)
	assert.Equal(t, Settled, e.State())
}

func TestExecutorTimesOutOnInfiniteLoop(t *testing.T) {
	e := New(`while (true) {}`)
	defer e.Dispose()

	began := time.Now()
	log, err := e.Run(context.Background())
	elapsed := time.Since(began)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, ReasonTimeout, ReasonOf(err))
	assert.Nil(t, log)
	assert.GreaterOrEqual(t, elapsed, 450*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestExecutorThrowFailsFast(t *testing.T) {
	e := New(`throw new Error("boom")`)

	began := time.Now()
	_, err := e.Run(context.Background())

	assert.ErrorIs(t, err, ErrRuntime)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(began), 400*time.Millisecond)
}

func TestExecutorPendingPromiseTimesOut(t *testing.T) {
	e := New(`await new Promise(() => {})`, WithTimeout(50*time.Millisecond))
	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

type fakeWorker struct {
	messages   chan Message
	errors     chan error
	onStart    func(*fakeWorker)
	starts     atomic.Int32
	terminated atomic.Bool
}

func newFakeWorker(onStart func(*fakeWorker)) *fakeWorker {
	return &fakeWorker{
		messages: make(chan Message, 1),
		errors:   make(chan error, 1),
		onStart:  onStart,
	}
}

func (w *fakeWorker) Start() error {
	w.starts.Add(1)
	if w.onStart != nil {
		w.onStart(w)
	}
	return nil
}

func (w *fakeWorker) Messages() <-chan Message { return w.messages }
func (w *fakeWorker) Errors() <-chan error     { return w.errors }
func (w *fakeWorker) Terminate()               { w.terminated.Store(true) }

func TestExecutorRunsScriptOnce(t *testing.T) {
	var created atomic.Int32
	w := newFakeWorker(func(w *fakeWorker) {
		w.messages <- Message{Result: turtle.Log{turtle.Forward(7)}}
	})
	e := New("forward(7)", WithWorkerFactory(func(string) (Worker, error) {
		created.Add(1)
		return w, nil
	}))

	var wg sync.WaitGroup
	results := make([]turtle.Log, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			log, err := e.Run(context.Background())
			assert.NoError(t, err)
			results[i] = log
		}(i)
	}
	wg.Wait()

	log, err := e.Run(context.Background())
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, log, r)
	}
	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(1), w.starts.Load())
}

func TestExecutorFailureIsCachedToo(t *testing.T) {
	var created atomic.Int32
	e := New("", WithWorkerFactory(func(string) (Worker, error) {
		created.Add(1)
		return newFakeWorker(func(w *fakeWorker) { w.messages <- Message{Error: true} }), nil
	}))

	_, err1 := e.Run(context.Background())
	_, err2 := e.Run(context.Background())
	assert.ErrorIs(t, err1, ErrRuntime)
	assert.Same(t, err1, err2)
	assert.Equal(t, int32(1), created.Load())
}

func TestExecutorIgnoresLateMessage(t *testing.T) {
	w := newFakeWorker(nil)
	e := New("", WithTimeout(30*time.Millisecond), WithWorkerFactory(func(string) (Worker, error) { return w, nil }))

	_, err := e.Run(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
	assert.Eventually(t, w.terminated.Load, time.Second, 5*time.Millisecond)

	w.messages <- Message{Result: turtle.Log{turtle.PenUp()}}
	log, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Nil(t, log)
}

func TestExecutorWorkerFailureSignal(t *testing.T) {
	e := New("", WithWorkerFactory(func(string) (Worker, error) {
		return newFakeWorker(func(w *fakeWorker) { w.errors <- errors.New("crashed") }), nil
	}))
	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrRuntime)
	assert.ErrorContains(t, err, "crashed")
}

func TestExecutorWorkerClosedChannel(t *testing.T) {
	e := New("", WithWorkerFactory(func(string) (Worker, error) {
		return newFakeWorker(func(w *fakeWorker) { close(w.messages) }), nil
	}))
	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrRuntime)
}

func TestExecutorFactoryError(t *testing.T) {
	e := New("", WithWorkerFactory(func(string) (Worker, error) {
		return nil, errors.New("no workers")
	}))
	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrRuntime)
	assert.Equal(t, Settled, e.State())
}

func TestExecutorDisposeWhilePending(t *testing.T) {
	w := newFakeWorker(nil)
	e := New("", WithTimeout(100*time.Millisecond), WithWorkerFactory(func(string) (Worker, error) { return w, nil }))

	result := make(chan error, 1)
	go func() {
		_, err := e.Run(context.Background())
		result <- err
	}()
	require.Eventually(t, func() bool { return e.State() == Pending }, time.Second, time.Millisecond)

	e.Dispose()
	e.Dispose()
	assert.True(t, w.terminated.Load())

	// A result posted after disposal never reaches the caller.
	w.messages <- Message{Result: turtle.Log{}}
	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("disposed run did not settle")
	}
}

func TestExecutorDisposeStopsRealScript(t *testing.T) {
	e := New(`while (true) {}`, WithTimeout(100*time.Millisecond))
	result := make(chan error, 1)
	go func() {
		_, err := e.Run(context.Background())
		result <- err
	}()
	require.Eventually(t, func() bool { return e.State() == Pending }, time.Second, time.Millisecond)
	e.Dispose()

	assert.ErrorIs(t, <-result, ErrTimeout)
}

func TestExecutorDisposeBeforeRun(t *testing.T) {
	var created atomic.Int32
	e := New("forward(1)", WithTimeout(20*time.Millisecond), WithWorkerFactory(func(string) (Worker, error) {
		created.Add(1)
		return newFakeWorker(nil), nil
	}))
	e.Dispose()

	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Zero(t, created.Load())
}

func TestExecutorContextOnlyBoundsWait(t *testing.T) {
	w := newFakeWorker(nil)
	e := New("", WithTimeout(time.Second), WithWorkerFactory(func(string) (Worker, error) { return w, nil }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Pending, e.State())

	w.messages <- Message{Result: turtle.Log{turtle.Rotate(1)}}
	log, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, turtle.Log{turtle.Rotate(1)}, log)
	assert.Equal(t, int32(1), w.starts.Load())
}

func TestExecutorObserver(t *testing.T) {
	var outcomes []string
	var mu sync.Mutex
	observe := func(outcome string, _ time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, outcome)
	}

	_, _ = New("forward(1)", WithObserver(observe)).Run(context.Background())
	_, _ = New("throw 1", WithObserver(observe)).Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"success", "runtime"}, outcomes)
}

func pipeWorker(source string) (Worker, error) {
	toWorkerR, toWorkerW := io.Pipe()
	fromWorkerR, fromWorkerW := io.Pipe()
	go func() {
		_ = ServeWorker(toWorkerR, fromWorkerW)
		_ = fromWorkerW.Close()
	}()
	w, err := newStreamWorker(source, toWorkerW, fromWorkerR, func() {
		_ = toWorkerW.Close()
		_ = fromWorkerR.Close()
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func TestStreamWorkerProtocol(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		e := New(scenario, WithWorkerFactory(pipeWorker))
		log, err := e.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, log, 4)
		assert.Equal(t, turtle.PenDown("#bada55"), log[0])
	})

	t.Run("empty log", func(t *testing.T) {
		log, err := New("", WithWorkerFactory(pipeWorker)).Run(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, log)
		assert.Empty(t, log)
	})

	t.Run("script error", func(t *testing.T) {
		_, err := New(`throw new Error("x")`, WithWorkerFactory(pipeWorker)).Run(context.Background())
		assert.ErrorIs(t, err, ErrRuntime)
	})

	t.Run("pending promise", func(t *testing.T) {
		e := New(`await new Promise(() => {})`, WithTimeout(50*time.Millisecond), WithWorkerFactory(pipeWorker))
		_, err := e.Run(context.Background())
		assert.ErrorIs(t, err, ErrTimeout)
	})
}

func TestStreamWorkerGarbageIsFailureSignal(t *testing.T) {
	e := New("", WithWorkerFactory(func(source string) (Worker, error) {
		toWorkerR, toWorkerW := io.Pipe()
		fromWorkerR, fromWorkerW := io.Pipe()
		go func() {
			_, _ = io.Copy(io.Discard, toWorkerR)
		}()
		go func() {
			_, _ = fromWorkerW.Write([]byte("not json\n"))
		}()
		w, err := newStreamWorker(source, toWorkerW, fromWorkerR, func() {
			_ = toWorkerW.Close()
			_ = fromWorkerR.Close()
		})
		if err != nil {
			return nil, err
		}
		return w, nil
	}))
	_, err := e.Run(context.Background())
	assert.ErrorIs(t, err, ErrRuntime)
	assert.ErrorContains(t, err, "decoding worker message")
}
