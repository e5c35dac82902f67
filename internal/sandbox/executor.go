package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/michaelbrown/turtle/internal/logging"
	"github.com/michaelbrown/turtle/internal/turtle"
)

var (
	ErrTimeout = errors.New("script timed out")
	ErrRuntime = errors.New("script failed")
)

// Reason classifies a failed run.
type Reason string

const (
	ReasonTimeout Reason = "timeout"
	ReasonRuntime Reason = "runtime"
)

// Failure is the error a failed run settles with. It matches ErrTimeout or
// ErrRuntime under errors.Is.
type Failure struct {
	Reason Reason
	Err    error
}

func (f *Failure) Error() string {
	msg := ErrRuntime.Error()
	if f.Reason == ReasonTimeout {
		msg = ErrTimeout.Error()
	}
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", msg, f.Err)
	}
	return msg
}

func (f *Failure) Is(target error) bool {
	switch f.Reason {
	case ReasonTimeout:
		return target == ErrTimeout
	case ReasonRuntime:
		return target == ErrRuntime
	}
	return false
}

func (f *Failure) Unwrap() error { return f.Err }

// ReasonOf returns the failure reason carried by err, or "" if err is not a
// run failure.
func ReasonOf(err error) Reason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ""
}

// State is the lifecycle of an executor's single run.
type State int

const (
	NotStarted State = iota
	Pending
	Settled
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Pending:
		return "pending"
	case Settled:
		return "settled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Observer is told how every run settled.
type Observer func(outcome string, elapsed time.Duration)

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout overrides the default timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithWorkerFactory sets how the worker is created.
func WithWorkerFactory(f WorkerFactory) Option {
	return func(e *Executor) { e.newWorker = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observe = o }
}

// Executor runs one script at most once. Every call to Run observes the
// same outcome.
type Executor struct {
	source    string
	timeout   time.Duration
	newWorker WorkerFactory
	logger    *slog.Logger
	observe   Observer

	mu       sync.Mutex
	state    State
	worker   Worker
	disposed bool
	stop     chan struct{} // closed by Dispose
	done     chan struct{} // closed on settlement
	log      turtle.Log
	err      error
}

// New binds source to a new executor. Nothing runs until the first Run.
func New(source string, opts ...Option) *Executor {
	e := &Executor{
		source:    source,
		timeout:   DefaultPolicy().Timeout,
		newWorker: NewGoroutineWorker,
		logger:    logging.NewNop(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State reports where the executor is in its lifecycle.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Run starts the script on first call and waits for its outcome. ctx bounds
// only this caller's wait: cancelling it neither stops nor restarts the run.
func (e *Executor) Run(ctx context.Context) (turtle.Log, error) {
	e.start()
	select {
	case <-e.done:
		return e.log, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the run has settled.
func (e *Executor) Done() <-chan struct{} {
	return e.done
}

func (e *Executor) start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != NotStarted {
		return
	}
	e.state = Pending
	began := time.Now()

	if e.disposed {
		// A disposed executor has no worker to hear from.
		go e.watch(nil, began)
		return
	}

	w, err := e.newWorker(e.source)
	if err != nil {
		e.settleLocked(nil, &Failure{Reason: ReasonRuntime, Err: fmt.Errorf("creating worker: %w", err)}, began)
		return
	}
	e.worker = w
	if err := w.Start(); err != nil {
		w.Terminate()
		e.settleLocked(nil, &Failure{Reason: ReasonRuntime, Err: fmt.Errorf("starting worker: %w", err)}, began)
		return
	}
	go e.watch(w, began)
}

// watch waits for the first of a completion message, a worker failure
// signal or the timeout. After Dispose only the timeout can settle the run.
func (e *Executor) watch(w Worker, began time.Time) {
	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	var (
		messages <-chan Message
		failures <-chan error
	)
	if w != nil {
		messages, failures = w.Messages(), w.Errors()
	}
	stop := e.stop

	for {
		select {
		case <-stop:
			messages, failures, stop = nil, nil, nil

		case msg, ok := <-messages:
			if e.isDisposed() {
				messages, failures, stop = nil, nil, nil
				continue
			}
			if !ok {
				e.settle(nil, &Failure{Reason: ReasonRuntime, Err: errors.New("worker closed without a result")}, began)
				return
			}
			if msg.Error {
				e.settle(nil, &Failure{Reason: ReasonRuntime}, began)
				return
			}
			log := msg.Result
			if log == nil {
				log = turtle.Log{}
			}
			e.settle(log, nil, began)
			return

		case err := <-failures:
			if e.isDisposed() {
				messages, failures, stop = nil, nil, nil
				continue
			}
			e.settle(nil, &Failure{Reason: ReasonRuntime, Err: err}, began)
			return

		case <-timer.C:
			e.settle(nil, &Failure{Reason: ReasonTimeout}, began)
			return
		}
	}
}

func (e *Executor) isDisposed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disposed
}

func (e *Executor) settle(log turtle.Log, err error, began time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settleLocked(log, err, began)
}

func (e *Executor) settleLocked(log turtle.Log, err error, began time.Time) {
	if e.state == Settled {
		return
	}
	e.state = Settled
	e.log, e.err = log, err

	if e.worker != nil {
		go e.worker.Terminate()
	}

	outcome := "success"
	if err != nil {
		outcome = string(ReasonOf(err))
	}
	elapsed := time.Since(began)
	e.logger.Debug("script settled", "outcome", outcome, "actions", len(log), "elapsed", elapsed, "error", err)
	if e.observe != nil {
		e.observe(outcome, elapsed)
	}
	close(e.done)
}

// Dispose terminates the worker. It is idempotent and safe in any state. A
// run still pending afterwards can only settle as a timeout.
func (e *Executor) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	close(e.stop)
	w := e.worker
	e.mu.Unlock()

	if w != nil {
		w.Terminate()
	}
}
