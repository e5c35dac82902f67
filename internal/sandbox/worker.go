package sandbox

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/michaelbrown/turtle/internal/turtle"
)

// errPending is returned by Execute when the entry point's promise is still
// pending after the realm has run out of jobs. Nothing can settle it.
var errPending = errors.New("script never settled")

var errTerminated = errors.New("worker terminated")

// Execute runs source as the body of an async entry point in vm and returns
// the actions it recorded. vm must be fresh: the four capabilities are the
// only host functions installed in it.
func Execute(vm *goja.Runtime, source string) (turtle.Log, error) {
	log := turtle.Log{}
	if err := installCapabilities(vm, &log); err != nil {
		return nil, err
	}

	// RunString drains the job queue before returning, so every promise that
	// can settle has settled by then.
	v, err := vm.RunString("(async function render() {\n" + source + "\n})()")
	if err != nil {
		return nil, err
	}

	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return nil, fmt.Errorf("entry point returned %s, not a promise", v.String())
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return log, nil
	case goja.PromiseStateRejected:
		return nil, fmt.Errorf("uncaught: %s", p.Result().String())
	default:
		return nil, errPending
	}
}

func installCapabilities(vm *goja.Runtime, log *turtle.Log) error {
	capabilities := map[string]func(goja.FunctionCall) goja.Value{
		"penUp": func(goja.FunctionCall) goja.Value {
			*log = append(*log, turtle.PenUp())
			return goja.Undefined()
		},
		"penDown": func(call goja.FunctionCall) goja.Value {
			*log = append(*log, turtle.PenDown(colorArg(call.Argument(0))))
			return goja.Undefined()
		},
		"forward": func(call goja.FunctionCall) goja.Value {
			*log = append(*log, turtle.Forward(numberArg(call.Argument(0))))
			return goja.Undefined()
		},
		"rotate": func(call goja.FunctionCall) goja.Value {
			*log = append(*log, turtle.Rotate(numberArg(call.Argument(0))))
			return goja.Undefined()
		},
	}
	for name, fn := range capabilities {
		if err := vm.Set(name, fn); err != nil {
			return fmt.Errorf("installing %s: %w", name, err)
		}
	}
	return nil
}

func colorArg(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return turtle.DefaultColor
	}
	return v.String()
}

func numberArg(v goja.Value) float64 {
	if v == nil {
		return 0
	}
	switch n := v.Export().(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

// goroutineWorker runs the script in its own realm on a dedicated goroutine.
type goroutineWorker struct {
	source   string
	messages chan Message
	errors   chan error

	mu         sync.Mutex
	vm         *goja.Runtime
	started    bool
	terminated bool
}

// NewGoroutineWorker is the default WorkerFactory.
func NewGoroutineWorker(source string) (Worker, error) {
	return &goroutineWorker{
		source:   source,
		messages: make(chan Message, 1),
		errors:   make(chan error, 1),
	}, nil
}

func (w *goroutineWorker) Messages() <-chan Message { return w.messages }
func (w *goroutineWorker) Errors() <-chan error     { return w.errors }

func (w *goroutineWorker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return errors.New("worker already started")
	}
	w.started = true
	if w.terminated {
		return nil
	}
	w.vm = goja.New()
	go w.run(w.vm)
	return nil
}

func (w *goroutineWorker) run(vm *goja.Runtime) {
	defer func() {
		if r := recover(); r != nil {
			w.fail(fmt.Errorf("worker panic: %v", r))
		}
	}()

	log, err := Execute(vm, w.source)
	switch {
	case errors.Is(err, errPending):
		return
	case err != nil:
		w.post(Message{Error: true})
	default:
		w.post(Message{Result: log})
	}
}

func (w *goroutineWorker) isTerminated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.terminated
}

// post and fail drop the message once the worker is torn down.
func (w *goroutineWorker) post(msg Message) {
	if w.isTerminated() {
		return
	}
	select {
	case w.messages <- msg:
	default:
	}
}

func (w *goroutineWorker) fail(err error) {
	if w.isTerminated() {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

func (w *goroutineWorker) Terminate() {
	w.mu.Lock()
	if w.terminated {
		w.mu.Unlock()
		return
	}
	w.terminated = true
	vm := w.vm
	w.mu.Unlock()

	if vm != nil {
		vm.Interrupt(errTerminated)
	}
}
