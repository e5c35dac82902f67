// Package sandbox runs untrusted turtle scripts in an isolated JavaScript
// realm and returns the action log they produce.
//
// An Executor owns one script and at most one run of it. The script runs on
// a Worker, which only exchanges messages with the executor: a start message
// with no payload, then a single completion Message or a failure signal.
package sandbox

import (
	"encoding/json"

	"github.com/michaelbrown/turtle/internal/turtle"
)

// Message is the completion message a worker posts when the script's entry
// point settles: either {"result": [...]} or {"error": true}.
type Message struct {
	Result turtle.Log `json:"result"`
	Error  bool       `json:"error,omitempty"`
}

// MarshalJSON writes exactly one of the two message forms. An empty result
// is still sent as a list.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Error {
		return []byte(`{"error":true}`), nil
	}
	result := m.Result
	if result == nil {
		result = turtle.Log{}
	}
	return json.Marshal(struct {
		Result turtle.Log `json:"result"`
	}{result})
}

// Worker is an isolated execution context bound to one script.
type Worker interface {
	// Start posts the start message.
	Start() error
	// Messages delivers at most one completion message.
	Messages() <-chan Message
	// Errors delivers the worker's own failure signal, distinct from a
	// script-level error message.
	Errors() <-chan error
	// Terminate tears the worker down. It is idempotent and never blocks on
	// the script.
	Terminate()
}

// WorkerFactory creates a worker with source bound to it.
type WorkerFactory func(source string) (Worker, error)
