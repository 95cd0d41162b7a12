package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/logger"
)

// Ensure Gateway implements the interface.
var _ driven.WebhookGateway = (*Gateway)(nil)

// RoutePrefix is the path under which webhook routes are served.
const RoutePrefix = "/webhooks/"

// DefaultMaxBodySize caps inbound notification bodies.
const DefaultMaxBodySize = 1 << 20

// shutdownTimeout bounds graceful shutdown in Serve.
const shutdownTimeout = 10 * time.Second

// Gateway serves provider notifications and maps each route to the
// callback token it was created for. Routes live in the state store, so
// URLs handed to providers survive restarts.
type Gateway struct {
	store     driven.StateStore
	callbacks driven.CallbackRegistry
	baseURL   string

	allowedOrigins []string
	maxBodySize    int64
	router         *gin.Engine
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithAllowedOrigins enables CORS for the given origins.
func WithAllowedOrigins(origins []string) Option {
	return func(g *Gateway) { g.allowedOrigins = origins }
}

// WithMaxBodySize overrides DefaultMaxBodySize.
func WithMaxBodySize(n int64) Option {
	return func(g *Gateway) { g.maxBodySize = n }
}

// NewGateway creates a gateway whose URLs start with baseURL.
func NewGateway(store driven.StateStore, callbacks driven.CallbackRegistry, baseURL string, opts ...Option) *Gateway {
	g := &Gateway{
		store:       store,
		callbacks:   callbacks,
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.router = g.newRouter()
	return g
}

func (g *Gateway) newRouter() *gin.Engine {
	if !logger.IsVerbose() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	if len(g.allowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: g.allowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{"Content-Type"},
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST(RoutePrefix+":id", g.handle)
	r.GET(RoutePrefix+":id", g.handle)
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("webhook gateway: %s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Serve listens on addr until ctx is cancelled, then shuts down
// gracefully.
func (g *Gateway) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("webhook gateway listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown webhook gateway: %w", err)
	}
	return nil
}

// CreateWebhook allocates a route for handler and returns its public URL.
func (g *Gateway) CreateWebhook(ctx context.Context, handler domain.CallbackToken) (string, error) {
	if handler == "" {
		return "", fmt.Errorf("%w: empty callback token", domain.ErrInvalidInput)
	}
	id := uuid.NewString()
	if err := g.store.Set(ctx, routeKey(id), []byte(handler)); err != nil {
		return "", fmt.Errorf("store webhook route: %w", err)
	}
	return g.baseURL + RoutePrefix + id, nil
}

// DeleteWebhook releases the route behind rawURL.
func (g *Gateway) DeleteWebhook(ctx context.Context, rawURL string) error {
	id, err := routeID(rawURL)
	if err != nil {
		return err
	}
	if err := g.store.Clear(ctx, routeKey(id)); err != nil {
		return fmt.Errorf("clear webhook route: %w", err)
	}
	return nil
}

// handle runs the route's callback with the request and writes back the
// callback's response.
func (g *Gateway) handle(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	token, err := g.store.Get(ctx, routeKey(id))
	if errors.Is(err, domain.ErrNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("webhook gateway: load route %s: %v", id, err)
		c.Status(http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, g.maxBodySize))
	if err != nil {
		c.Status(http.StatusRequestEntityTooLarge)
		return
	}
	req := domain.WebhookRequest{
		Method:  c.Request.Method,
		Headers: c.Request.Header.Clone(),
		Query:   c.Request.URL.Query(),
		Body:    body,
	}

	raw, err := g.callbacks.Run(ctx, domain.CallbackToken(token), req)
	if errors.Is(err, domain.ErrCallbackNotFound) {
		// The resource was disabled; the route is stale.
		_ = g.store.Clear(ctx, routeKey(id))
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("webhook gateway: route %s: %v", id, err)
		c.Status(http.StatusInternalServerError)
		return
	}

	writeResponse(c, raw)
}

func writeResponse(c *gin.Context, raw json.RawMessage) {
	var resp domain.WebhookResponse
	if len(raw) == 0 || string(raw) == "null" {
		resp = *domain.WebhookAccepted()
	} else if err := json.Unmarshal(raw, &resp); err != nil || resp.Status == 0 {
		resp = *domain.WebhookAccepted()
	}

	if resp.Body == "" {
		c.Status(resp.Status)
		return
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	c.Data(resp.Status, contentType, []byte(resp.Body))
}

func routeKey(id string) string {
	return domain.KeyWebhookRoute + id
}

// routeID extracts the route ID from a URL created by CreateWebhook.
func routeID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: webhook url %q", domain.ErrInvalidInput, rawURL)
	}
	idx := strings.LastIndex(u.Path, RoutePrefix)
	if idx < 0 {
		return "", fmt.Errorf("%w: %q is not a webhook url", domain.ErrInvalidInput, rawURL)
	}
	id := u.Path[idx+len(RoutePrefix):]
	if id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("%w: %q is not a webhook url", domain.ErrInvalidInput, rawURL)
	}
	return id, nil
}
