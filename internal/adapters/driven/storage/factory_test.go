package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncd/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/syncd/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/syncd/internal/core/domain"
)

func TestStateStoreFromDSN(t *testing.T) {
	fallback := memory.NewStateStore()

	tests := []struct {
		name    string
		dsn     string
		check   func(t *testing.T, got any)
		wantErr error
	}{
		{
			name:  "empty uses fallback",
			dsn:   "",
			check: func(t *testing.T, got any) { assert.Same(t, fallback, got) },
		},
		{
			name:  "sqlite uses fallback",
			dsn:   "sqlite://",
			check: func(t *testing.T, got any) { assert.Same(t, fallback, got) },
		},
		{
			name: "memory",
			dsn:  "memory://",
			check: func(t *testing.T, got any) {
				assert.IsType(t, &memory.StateStore{}, got)
				assert.NotSame(t, fallback, got)
			},
		},
		{
			name:  "postgres",
			dsn:   "postgres://user:pw@localhost:5432/syncd?sslmode=disable",
			check: func(t *testing.T, got any) { assert.IsType(t, &postgres.StateStore{}, got) },
		},
		{
			name:    "unknown scheme",
			dsn:     "mysql://localhost/syncd",
			wantErr: domain.ErrUnsupportedType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StateStoreFromDSN(tt.dsn, fallback)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}
