package connectors

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/syncd/internal/adapters/driven/auth"
	"github.com/custodia-labs/syncd/internal/connectors/github"
	"github.com/custodia-labs/syncd/internal/connectors/google"
	"github.com/custodia-labs/syncd/internal/connectors/google/calendar"
	"github.com/custodia-labs/syncd/internal/connectors/google/drive"
	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.ConnectorFactory = (*Factory)(nil)

// TokenResolver returns the token provider for a connection's credentials.
type TokenResolver func(conn domain.Connection) (driven.TokenProvider, error)

type registration struct {
	descriptor domain.ConnectorType
	builder    driven.ConnectorBuilder
}

// Factory builds connectors by connection type. Token providers are
// cached per connection so refreshed OAuth tokens survive between batches;
// the default builders likewise share rate limiters per connection.
type Factory struct {
	resolve TokenResolver

	mu       sync.RWMutex
	builders map[string]registration
	tokens   map[string]cachedToken
}

type cachedToken struct {
	fingerprint string
	provider    driven.TokenProvider
}

// NewFactory creates an empty factory. A nil resolver uses
// auth.ForConnection.
func NewFactory(resolve TokenResolver) *Factory {
	if resolve == nil {
		resolve = auth.ForConnection
	}
	return &Factory{
		resolve:  resolve,
		builders: make(map[string]registration),
		tokens:   make(map[string]cachedToken),
	}
}

// NewDefaultFactory creates a factory with the built-in connectors.
func NewDefaultFactory() *Factory {
	f := NewFactory(nil)
	googleLimiters := google.NewLimiters()
	f.Register(github.Descriptor(), github.NewBuilder(github.NewLimiters()))
	f.Register(calendar.Descriptor(), calendar.NewBuilder(googleLimiters))
	f.Register(drive.Descriptor(), drive.NewBuilder(googleLimiters))
	return f
}

// Register adds a connector builder for the given type, replacing any
// earlier registration.
func (f *Factory) Register(connectorType domain.ConnectorType, builder driven.ConnectorBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[connectorType.ID] = registration{descriptor: connectorType, builder: builder}
}

// Create returns a Connector for the given connection.
func (f *Factory) Create(_ context.Context, conn domain.Connection) (driven.Connector, error) {
	f.mu.RLock()
	reg, ok := f.builders[conn.Type]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, conn.Type)
	}

	tp, err := f.tokenProvider(conn)
	if err != nil {
		return nil, fmt.Errorf("credentials for %s: %w", conn.ID, err)
	}
	c, err := reg.builder(conn, tp)
	if err != nil {
		return nil, fmt.Errorf("build %s connector: %w", conn.Type, err)
	}
	return c, nil
}

// SupportedTypes returns all registered connector types sorted by ID.
func (f *Factory) SupportedTypes() []domain.ConnectorType {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]domain.ConnectorType, 0, len(f.builders))
	for _, reg := range f.builders {
		types = append(types, reg.descriptor)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].ID < types[j].ID })
	return types
}

// tokenProvider returns the cached provider unless the connection's
// credentials changed since it was built.
func (f *Factory) tokenProvider(conn domain.Connection) (driven.TokenProvider, error) {
	fingerprint := conn.Token + "\x00" + conn.Setting(auth.SettingRefreshToken, "") +
		"\x00" + conn.Setting(auth.SettingClientID, "")

	f.mu.RLock()
	cached, ok := f.tokens[conn.ID]
	f.mu.RUnlock()
	if ok && cached.fingerprint == fingerprint {
		return cached.provider, nil
	}

	tp, err := f.resolve(conn)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.tokens[conn.ID] = cachedToken{fingerprint: fingerprint, provider: tp}
	f.mu.Unlock()
	return tp, nil
}
