package sandbox

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrSourceTooLarge is returned for scripts over the policy's size limit.
var ErrSourceTooLarge = errors.New("script too large")

// Isolation selects where scripts run.
type Isolation string

const (
	// IsolationGoroutine runs each script in its own realm on a dedicated
	// goroutine.
	IsolationGoroutine Isolation = "goroutine"
	// IsolationProcess runs each script in a child `turtle worker` process.
	IsolationProcess Isolation = "process"
)

// Policy defines limits for script execution.
type Policy struct {
	Timeout        time.Duration // Wall-clock bound from the start message to completion
	Isolation      Isolation
	WorkerBinary   string // Executable for process isolation; defaults to the running binary
	MaxSourceBytes int    // Larger scripts are rejected before a worker is created
}

// DefaultPolicy returns the defaults used by the playground.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:        500 * time.Millisecond,
		Isolation:      IsolationGoroutine,
		MaxSourceBytes: 64 << 10,
	}
}

// CheckSource rejects scripts the policy does not accept.
func (p Policy) CheckSource(source string) error {
	if p.MaxSourceBytes > 0 && len(source) > p.MaxSourceBytes {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrSourceTooLarge, len(source), p.MaxSourceBytes)
	}
	return nil
}

// WorkerFactory returns the factory for the policy's isolation mode.
func (p Policy) WorkerFactory() (WorkerFactory, error) {
	switch p.Isolation {
	case "", IsolationGoroutine:
		return NewGoroutineWorker, nil
	case IsolationProcess:
		binary := p.WorkerBinary
		if binary == "" {
			exe, err := os.Executable()
			if err != nil {
				return nil, fmt.Errorf("locating worker binary: %w", err)
			}
			binary = exe
		}
		return NewProcessWorkerFactory(binary, "worker"), nil
	default:
		return nil, fmt.Errorf("unknown isolation %q", p.Isolation)
	}
}
