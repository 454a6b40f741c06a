package objstore

import (
	"context"
	"strings"
	"sync"
)

// Mem is an in-process Store. Safe for concurrent use.
type Mem struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMem creates an empty in-memory store.
func NewMem() *Mem {
	return &Mem{objects: make(map[string][]byte)}
}

func (m *Mem) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *Mem) Read(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[key]
	if !ok {
		return nil, ErrNotExist
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Mem) Write(ctx context.Context, key string, data []byte) error {
	stored := make([]byte, len(data))
	copy(stored, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = stored
	return nil
}

func (m *Mem) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.objects[key]
	return ok, nil
}

// Len returns the number of stored objects.
func (m *Mem) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
