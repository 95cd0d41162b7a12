package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

// Ensure ConnectionStore implements the interface.
var _ driven.ConnectionStore = (*ConnectionStore)(nil)

// ConnectionStore is an in-memory implementation of driven.ConnectionStore.
type ConnectionStore struct {
	mu          sync.RWMutex
	connections map[string]domain.Connection
}

// NewConnectionStore creates a store seeded with connections.
func NewConnectionStore(connections ...domain.Connection) *ConnectionStore {
	s := &ConnectionStore{connections: make(map[string]domain.Connection)}
	for _, c := range connections {
		s.connections[c.ID] = c
	}
	return s
}

// Get retrieves a connection by ID.
func (s *ConnectionStore) Get(_ context.Context, id string) (*domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.connections[id]
	if !ok {
		return nil, fmt.Errorf("connection %q: %w", id, domain.ErrNotFound)
	}
	return &c, nil
}

// List returns all connections ordered by ID.
func (s *ConnectionStore) List(_ context.Context) ([]domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Connection, 0, len(s.connections))
	for _, c := range s.connections {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Replace swaps the whole connection set, as on a config reload.
func (s *ConnectionStore) Replace(connections []domain.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections = make(map[string]domain.Connection, len(connections))
	for _, c := range connections {
		s.connections[c.ID] = c
	}
}
