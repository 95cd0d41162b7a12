package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ConnectionStore = (*Store)(nil)

// Store is a file-based configuration store using TOML. It also serves the
// configured connections to the engine.
type Store struct {
	mu       sync.RWMutex
	filePath string
	config   Config
}

// NewStore opens the config file at path. If path is empty it defaults
// to ~/.syncd/config.toml. A missing file yields an empty config.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".syncd", "config.toml")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}

	s := &Store{filePath: path}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Config returns a copy of the current configuration.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := s.config
	cfg.Connections = append([]domain.Connection(nil), s.config.Connections...)
	return cfg
}

// Path returns the configuration file path.
func (s *Store) Path() string {
	return s.filePath
}

// Load reads configuration from the TOML file. An invalid file leaves the
// previous configuration in place.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file yet - that's fine, start empty
			s.mu.Lock()
			s.config = Config{}
			s.mu.Unlock()
			return nil
		}
		return err
	}

	var loaded Config
	if err := toml.Unmarshal(data, &loaded); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return fmt.Errorf("%w: %s:%d:%d: %v", domain.ErrInvalidInput, s.filePath, row, col, derr)
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, s.filePath, err)
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.config = loaded
	s.mu.Unlock()
	return nil
}

// Save persists the current configuration to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// save writes configuration to the TOML file (caller must hold lock).
func (s *Store) save() error {
	data, err := toml.Marshal(s.config)
	if err != nil {
		return err
	}

	// Write with restricted permissions; connections carry tokens.
	return os.WriteFile(s.filePath, data, 0600)
}

// Update applies fn to the configuration and persists the result.
func (s *Store) Update(fn func(*Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.config
	next.Connections = append([]domain.Connection(nil), s.config.Connections...)
	if err := fn(&next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	s.config = next
	return s.save()
}

// Get returns the connection with id.
func (s *Store) Get(_ context.Context, id string) (*domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.config.Connections {
		if c.ID == id {
			conn := c
			return &conn, nil
		}
	}
	return nil, fmt.Errorf("connection %q: %w", id, domain.ErrNotFound)
}

// List returns all connections ordered by ID.
func (s *Store) List(_ context.Context) ([]domain.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := append([]domain.Connection(nil), s.config.Connections...)
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// PutConnection adds conn or replaces the connection with the same ID.
func (s *Store) PutConnection(conn domain.Connection) error {
	return s.Update(func(cfg *Config) error {
		for i := range cfg.Connections {
			if cfg.Connections[i].ID == conn.ID {
				cfg.Connections[i] = conn
				return nil
			}
		}
		cfg.Connections = append(cfg.Connections, conn)
		return nil
	})
}

// RemoveConnection deletes the connection with id.
func (s *Store) RemoveConnection(id string) error {
	return s.Update(func(cfg *Config) error {
		for i := range cfg.Connections {
			if cfg.Connections[i].ID == id {
				cfg.Connections = append(cfg.Connections[:i], cfg.Connections[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("connection %q: %w", id, domain.ErrNotFound)
	})
}
