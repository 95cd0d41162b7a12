package github

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

// Type is the connector type identifier.
const Type = "github"

// Ensure Connector implements the interfaces.
var (
	_ driven.Connector        = (*Connector)(nil)
	_ driven.WebhookConnector = (*Connector)(nil)
	_ driven.Commenter        = (*Connector)(nil)
)

// Connector syncs issues from GitHub repositories.
type Connector struct {
	connectionID string
	config       *Config
	client       *Client

	mu     sync.Mutex
	repos  map[string]*gh.Repository
	closed bool
}

// New creates a new GitHub connector.
func New(connectionID string, cfg *Config, client *Client) *Connector {
	return &Connector{
		connectionID: connectionID,
		config:       cfg,
		client:       client,
		repos:        make(map[string]*gh.Repository),
	}
}

// NewBuilder returns the driven.ConnectorBuilder for GitHub connections.
// Connectors built for the same connection share a limiter.
func NewBuilder(limiters *Limiters) driven.ConnectorBuilder {
	return func(conn domain.Connection, tokenProvider driven.TokenProvider) (driven.Connector, error) {
		cfg, err := ParseConfig(conn)
		if err != nil {
			return nil, err
		}
		opts := []ClientOption{WithRateLimiter(limiters.For(conn.ID))}
		if cfg.BaseURL != "" {
			opts = append(opts, WithBaseURL(cfg.BaseURL))
		}
		return New(conn.ID, cfg, NewClient(tokenProvider, opts...)), nil
	}
}

// Descriptor describes the connector for the registry.
func Descriptor() domain.ConnectorType {
	return domain.ConnectorType{
		ID:           Type,
		Name:         "GitHub",
		Description:  "Issues and pull requests from GitHub repositories",
		Capabilities: (&Connector{}).Capabilities(),
		ConfigKeys:   ConfigKeys(),
	}
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return Type
}

// Capabilities returns the connector's capabilities.
func (c *Connector) Capabilities() domain.Capabilities {
	return domain.Capabilities{
		Webhooks:  true,
		DeltaSync: true,
		Comments:  true,
	}
}

// ListResources returns the repositories visible to the account.
func (c *Connector) ListResources(ctx context.Context) ([]domain.Resource, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	repos, err := c.client.ListAllAccessibleRepos(ctx)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}

	resources := make([]domain.Resource, 0, len(repos))
	for _, repo := range FilterRepos(repos, c.config.IncludeArchived, c.config.IncludeForks) {
		if !c.config.Allows(repo.GetFullName()) {
			continue
		}
		id := strconv.FormatInt(repo.GetID(), 10)
		c.remember(id, repo)
		resources = append(resources, domain.Resource{
			ID:   id,
			Name: repo.GetFullName(),
			Kind: "repository",
		})
	}
	return resources, nil
}

// FilterRepos filters repositories based on criteria.
func FilterRepos(repos []*gh.Repository, includeArchived, includeForks bool) []*gh.Repository {
	filtered := make([]*gh.Repository, 0, len(repos))
	for _, r := range repos {
		if r.GetArchived() && !includeArchived {
			continue
		}
		if r.GetFork() && !includeForks {
			continue
		}
		if r.GetDisabled() {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

// repository resolves a resource ID (the numeric repository ID) to the
// repository, whose owner and name may have changed since enabling.
func (c *Connector) repository(ctx context.Context, resourceID string) (*gh.Repository, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	repo, ok := c.repos[resourceID]
	c.mu.Unlock()
	if ok {
		return repo, nil
	}

	id, err := strconv.ParseInt(resourceID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: github resource id %q is not a repository id", domain.ErrInvalidInput, resourceID)
	}
	repo, err = c.client.GetRepositoryByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrRepoNotFound, resourceID, err)
		}
		return nil, err
	}
	c.remember(resourceID, repo)
	return repo, nil
}

func (c *Connector) remember(id string, repo *gh.Repository) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repos[id] = repo
}

// AddComment posts body on the issue with the given number and returns
// the comment as a note.
func (c *Connector) AddComment(ctx context.Context, resourceID, itemID, body string) (*domain.Note, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: empty comment", domain.ErrInvalidInput)
	}
	number, err := strconv.Atoi(strings.TrimPrefix(itemID, "#"))
	if err != nil {
		return nil, fmt.Errorf("%w: github item %q is not an issue number", domain.ErrInvalidInput, itemID)
	}

	repo, err := c.repository(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	comment, err := c.client.CreateComment(ctx, repo.GetOwner().GetLogin(), repo.GetName(), number, body)
	if err != nil {
		return nil, err
	}
	note := commentNote(comment)
	return &note, nil
}

func (c *Connector) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrConnectorClosed
	}
	return nil
}

// Close releases resources.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
