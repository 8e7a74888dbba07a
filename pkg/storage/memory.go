package storage

import (
	"context"
	"sync"
)

// Memory is an in-memory storage. Watchers are notified of every Save and
// Delete.
type Memory struct {
	mu       sync.RWMutex
	values   map[string][]byte
	watchers map[int]func(string)
	nextID   int
	closed   bool
}

// NewMemory creates an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{
		values:   make(map[string][]byte),
		watchers: make(map[int]func(string)),
	}
}

// Load returns a copy of the value stored under key.
func (m *Memory) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Save stores a copy of data.
func (m *Memory) Save(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	v := make([]byte, len(data))
	copy(v, data)
	m.values[key] = v
	fns := m.snapshot()
	m.mu.Unlock()

	m.notify(fns, key)
	return nil
}

// Delete removes key.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	_, existed := m.values[key]
	delete(m.values, key)
	fns := m.snapshot()
	m.mu.Unlock()

	if existed {
		m.notify(fns, key)
	}
	return nil
}

// Watch registers fn until ctx is done.
func (m *Memory) Watch(ctx context.Context, fn func(key string)) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}()
	return nil
}

func (m *Memory) snapshot() []func(string) {
	fns := make([]func(string), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	return fns
}

// notify runs outside the lock so watchers may call back into the storage.
func (m *Memory) notify(fns []func(string), key string) {
	for _, fn := range fns {
		go fn(key)
	}
}

// Keys returns every stored key.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}

// Close drops all values and watchers.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.values = nil
	m.watchers = nil
	return nil
}
