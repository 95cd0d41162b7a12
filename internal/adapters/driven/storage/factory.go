// Package storage selects a persistence backend from configuration.
package storage

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/custodia-labs/syncd/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/syncd/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

// StateStoreFromDSN returns the state backend named by dsn. An empty dsn
// or the "sqlite" scheme selects fallback, normally the SQLite store that
// also holds activities and tasks.
func StateStoreFromDSN(dsn string, fallback driven.StateStore) (driven.StateStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return fallback, nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: state dsn: %v", domain.ErrInvalidInput, err)
	}
	switch scheme := strings.ToLower(parsed.Scheme); scheme {
	case "sqlite":
		return fallback, nil
	case "memory", "mem", "inmem":
		return memory.NewStateStore(), nil
	case "postgres", "postgresql":
		return postgres.NewStateStore(dsn)
	default:
		return nil, fmt.Errorf("%w: state backend scheme %q", domain.ErrUnsupportedType, scheme)
	}
}
