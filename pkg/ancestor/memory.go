package ancestor

import (
	"context"
	"sync"

	"github.com/vango-dev/blueprint/pkg/repository"
)

// Memory keeps manifests in process memory.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// Load implements Store.
func (s *Memory) Load(_ context.Context, key string) (repository.Snapshot, error) {
	s.mu.RLock()
	data, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return repository.Snapshot{}, nil
	}
	return decodeManifest(key, data)
}

// Save implements Store.
func (s *Memory) Save(_ context.Context, key string, snap repository.Snapshot) error {
	data, err := encodeManifest(key, snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return nil
}

// Driver implements Store.
func (s *Memory) Driver() Driver { return DriverMemory }
