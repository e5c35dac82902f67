package sandbox

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/dop251/goja"
)

// initFrame binds the script to a worker process. The start frame that
// follows it is an empty object.
type initFrame struct {
	Source string `json:"source"`
}

// maxMessageBytes bounds a single completion message read from a worker.
const maxMessageBytes = 16 << 20

// streamWorker speaks the worker protocol over a pair of byte streams:
// newline-delimited JSON frames to the worker, one Message back.
type streamWorker struct {
	enc       *json.Encoder
	messages  chan Message
	errors    chan error
	terminate func()
	once      sync.Once
}

func newStreamWorker(source string, in io.Writer, out io.Reader, terminate func()) (*streamWorker, error) {
	w := &streamWorker{
		enc:       json.NewEncoder(in),
		messages:  make(chan Message, 1),
		errors:    make(chan error, 1),
		terminate: terminate,
	}
	if err := w.enc.Encode(initFrame{Source: source}); err != nil {
		return nil, fmt.Errorf("sending init frame: %w", err)
	}
	go w.read(out)
	return w, nil
}

func (w *streamWorker) Messages() <-chan Message { return w.messages }
func (w *streamWorker) Errors() <-chan error     { return w.errors }

func (w *streamWorker) Start() error {
	if err := w.enc.Encode(struct{}{}); err != nil {
		return fmt.Errorf("sending start frame: %w", err)
	}
	return nil
}

func (w *streamWorker) read(out io.Reader) {
	sc := bufio.NewScanner(out)
	sc.Buffer(make([]byte, 0, 64<<10), maxMessageBytes)
	if sc.Scan() {
		var msg Message
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			w.errors <- fmt.Errorf("decoding worker message: %w", err)
			return
		}
		w.messages <- msg
		return
	}
	err := sc.Err()
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	w.errors <- fmt.Errorf("worker exited without a result: %w", err)
}

func (w *streamWorker) Terminate() {
	w.once.Do(w.terminate)
}

// NewProcessWorkerFactory returns a factory that runs every script in a
// fresh child process started as `binary args...`. The child must call
// ServeWorker on its stdin and stdout.
func NewProcessWorkerFactory(binary string, args ...string) WorkerFactory {
	return func(source string) (Worker, error) {
		cmd := exec.Command(binary, args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("creating stdin pipe: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("creating stdout pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("starting worker process: %w", err)
		}

		terminate := func() {
			_ = stdin.Close()
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
		}
		w, err := newStreamWorker(source, stdin, stdout, terminate)
		if err != nil {
			terminate()
			return nil, err
		}
		return w, nil
	}
}

// ServeWorker is the child side of process isolation. It reads the init and
// start frames from in, runs the script in a fresh realm and writes one
// Message to out. If the script never settles it waits for in to close.
func ServeWorker(in io.Reader, out io.Writer) error {
	dec := json.NewDecoder(in)
	var frame initFrame
	if err := dec.Decode(&frame); err != nil {
		return fmt.Errorf("reading init frame: %w", err)
	}
	var start struct{}
	if err := dec.Decode(&start); err != nil {
		return fmt.Errorf("reading start frame: %w", err)
	}

	log, err := Execute(goja.New(), frame.Source)
	if errors.Is(err, errPending) {
		_, _ = io.Copy(io.Discard, in)
		return nil
	}

	msg := Message{Result: log}
	if err != nil {
		msg = Message{Error: true}
	}
	if err := json.NewEncoder(out).Encode(msg); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}
