package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// Client wraps the go-github client with rate limiting and error mapping.
type Client struct {
	mu            sync.Mutex
	gh            *gh.Client
	tokenProvider driven.TokenProvider
	rateLimiter   *RateLimiter
	baseURL       string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithRateLimiter replaces the default rate limiter.
func WithRateLimiter(r *RateLimiter) ClientOption {
	return func(c *Client) { c.rateLimiter = r }
}

// NewClient creates a GitHub API client with a token provider.
func NewClient(tokenProvider driven.TokenProvider, opts ...ClientOption) *Client {
	c := &Client{
		tokenProvider: tokenProvider,
		rateLimiter:   NewRateLimiter(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ensureClient initializes the go-github client on first use so the
// token is only requested when needed.
func (c *Client) ensureClient(ctx context.Context) (*gh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gh != nil {
		return c.gh, nil
	}
	if c.tokenProvider == nil {
		return nil, domain.ErrAuthRequired
	}

	token, err := c.tokenProvider.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}
	if token == "" {
		return nil, domain.ErrAuthRequired
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultTimeout
	client := gh.NewClient(tc)

	if c.baseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(c.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("%w: github base url: %w", domain.ErrInvalidInput, err)
		}
		client.BaseURL = base
	}
	c.gh = client
	return client, nil
}

// prepare returns the client once the rate limiter allows a request.
func (c *Client) prepare(ctx context.Context) (*gh.Client, error) {
	client, err := c.ensureClient(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return client, nil
}

// ListAllAccessibleRepos returns every repository the authenticated user can access:
// owned, collaborator and organization member repositories.
func (c *Client) ListAllAccessibleRepos(ctx context.Context) ([]*gh.Repository, error) {
	var allRepos []*gh.Repository

	opts := &gh.RepositoryListByAuthenticatedUserOptions{
		Visibility:  "all",
		Affiliation: "owner,collaborator,organization_member",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	for {
		client, err := c.prepare(ctx)
		if err != nil {
			return nil, err
		}

		repos, resp, err := client.Repositories.ListByAuthenticatedUser(ctx, opts)
		c.observe(resp)
		if err != nil {
			return nil, c.wrapError(err, resp, "list repos")
		}
		allRepos = append(allRepos, repos...)

		if resp.NextPage == 0 {
			return allRepos, nil
		}
		opts.Page = resp.NextPage
	}
}

// GetRepositoryByID fetches a repository by its immutable ID.
func (c *Client) GetRepositoryByID(ctx context.Context, id int64) (*gh.Repository, error) {
	client, err := c.prepare(ctx)
	if err != nil {
		return nil, err
	}

	repo, resp, err := client.Repositories.GetByID(ctx, id)
	c.observe(resp)
	if err != nil {
		return nil, c.wrapError(err, resp, "get repo")
	}
	return repo, nil
}

// ListIssuesPage fetches one page of issues and returns the next page
// number, zero when this was the last page.
func (c *Client) ListIssuesPage(
	ctx context.Context, owner, repo string, opts *gh.IssueListByRepoOptions,
) ([]*gh.Issue, int, error) {
	client, err := c.prepare(ctx)
	if err != nil {
		return nil, 0, err
	}

	issues, resp, err := client.Issues.ListByRepo(ctx, owner, repo, opts)
	c.observe(resp)
	if err != nil {
		return nil, 0, c.wrapError(err, resp, "list issues")
	}
	return issues, resp.NextPage, nil
}

// ListComments retrieves all comments for an issue.
func (c *Client) ListComments(ctx context.Context, owner, repo string, number int) ([]*gh.IssueComment, error) {
	var allComments []*gh.IssueComment

	opts := &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	for {
		client, err := c.prepare(ctx)
		if err != nil {
			return nil, err
		}

		comments, resp, err := client.Issues.ListComments(ctx, owner, repo, number, opts)
		c.observe(resp)
		if err != nil {
			return nil, c.wrapError(err, resp, "list comments")
		}
		allComments = append(allComments, comments...)

		if resp.NextPage == 0 {
			return allComments, nil
		}
		opts.Page = resp.NextPage
	}
}

// CreateComment posts a comment on an issue or pull request.
func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int, body string) (*gh.IssueComment, error) {
	client, err := c.prepare(ctx)
	if err != nil {
		return nil, err
	}

	comment, resp, err := client.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{Body: gh.Ptr(body)})
	c.observe(resp)
	if err != nil {
		return nil, c.wrapError(err, resp, "create comment")
	}
	return comment, nil
}

// CreateHook installs a repository webhook.
func (c *Client) CreateHook(ctx context.Context, owner, repo string, hook *gh.Hook) (*gh.Hook, error) {
	client, err := c.prepare(ctx)
	if err != nil {
		return nil, err
	}

	created, resp, err := client.Repositories.CreateHook(ctx, owner, repo, hook)
	c.observe(resp)
	if err != nil {
		return nil, c.wrapError(err, resp, "create hook")
	}
	return created, nil
}

// DeleteHook removes a repository webhook.
func (c *Client) DeleteHook(ctx context.Context, owner, repo string, id int64) error {
	client, err := c.prepare(ctx)
	if err != nil {
		return err
	}

	resp, err := client.Repositories.DeleteHook(ctx, owner, repo, id)
	c.observe(resp)
	if err != nil {
		return c.wrapError(err, resp, "delete hook")
	}
	return nil
}

// RateLimiter returns the rate limiter for external access.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// observe updates the rate limiter from GitHub response headers.
func (c *Client) observe(resp *gh.Response) {
	if resp == nil || resp.Response == nil {
		return
	}
	c.rateLimiter.UpdateFromResponse(resp.Response)
}

// wrapError converts go-github errors to our error types.
func (c *Client) wrapError(err error, resp *gh.Response, operation string) error {
	if err == nil {
		return nil
	}

	var httpResp *http.Response
	if resp != nil {
		httpResp = resp.Response
	}

	var rateLimitErr *gh.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return fmt.Errorf("%s: %w", operation, c.rateLimiter.errorFor(httpResp))
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%s: %w", operation, c.rateLimiter.errorFor(httpResp))
	}

	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		if ghErr.Response.StatusCode == http.StatusForbidden && c.rateLimiter.Remaining() == 0 {
			return fmt.Errorf("%s: %w", operation, c.rateLimiter.errorFor(ghErr.Response))
		}
		apiErr := &APIError{
			StatusCode: ghErr.Response.StatusCode,
			Message:    ghErr.Message,
		}
		if ghErr.Response.Request != nil {
			apiErr.URL = ghErr.Response.Request.URL.String()
		}
		return fmt.Errorf("%s: %w", operation, apiErr)
	}

	return fmt.Errorf("%s: %w: %w", operation, domain.ErrTransient, err)
}
