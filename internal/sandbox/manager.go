package sandbox

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Manager tracks live executors by run ID so a run can be disposed from
// outside the request that started it.
type Manager struct {
	policy  Policy
	factory WorkerFactory
	opts    []Option

	mu   sync.RWMutex
	runs map[string]*Executor
}

// NewManager creates a manager whose executors follow policy. opts are
// applied to every executor after the policy.
func NewManager(policy Policy, opts ...Option) (*Manager, error) {
	factory, err := policy.WorkerFactory()
	if err != nil {
		return nil, err
	}
	return &Manager{
		policy:  policy,
		factory: factory,
		opts:    opts,
		runs:    make(map[string]*Executor),
	}, nil
}

// Policy returns the policy executors are created with.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Get returns a live executor if it exists.
func (m *Manager) Get(id string) (*Executor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.runs[id]
	return e, ok
}

// GetOrCreate returns the executor registered under id or binds source to a
// new one. An empty id gets a fresh UUID. The returned id is the key to
// Remove.
func (m *Manager) GetOrCreate(id, source string) (string, *Executor, error) {
	if err := m.policy.CheckSource(source); err != nil {
		return "", nil, err
	}
	if id == "" {
		id = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.runs[id]; ok {
		if e.source != source {
			return "", nil, fmt.Errorf("run %s is bound to a different script", id)
		}
		return id, e, nil
	}

	opts := append([]Option{WithTimeout(m.policy.Timeout), WithWorkerFactory(m.factory)}, m.opts...)
	e := New(source, opts...)
	m.runs[id] = e
	return id, e, nil
}

// Remove disposes an executor and forgets it.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	e, ok := m.runs[id]
	delete(m.runs, id)
	m.mu.Unlock()
	if ok {
		e.Dispose()
	}
}

// Len is the number of live executors.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}

// CloseAll disposes every executor.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	runs := m.runs
	m.runs = make(map[string]*Executor)
	m.mu.Unlock()
	for _, e := range runs {
		e.Dispose()
	}
}
