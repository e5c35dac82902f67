package cache

import (
	"container/list"
	"context"
	"sync"
)

// DefaultMemoryEntries bounds the in-memory cache.
const DefaultMemoryEntries = 256

type memoryEntry struct {
	key   string
	value []byte
}

// Memory is a least-recently-used Cache held in process memory.
type Memory struct {
	mu      sync.Mutex
	max     int
	order   *list.List
	entries map[string]*list.Element
}

// NewMemory creates a cache holding at most max entries.
func NewMemory(max int) *Memory {
	if max <= 0 {
		max = DefaultMemoryEntries
	}
	return &Memory{
		max:     max,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	m.order.MoveToFront(el)
	return el.Value.(*memoryEntry).value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.entries[key]; ok {
		el.Value.(*memoryEntry).value = value
		m.order.MoveToFront(el)
		return nil
	}
	m.entries[key] = m.order.PushFront(&memoryEntry{key: key, value: value})
	for m.order.Len() > m.max {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoryEntry).key)
	}
	return nil
}

// Len is the number of cached entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
