package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

// --- Mock implementations for engine testing ---

// mockStateStore implements driven.StateStore in memory.
type mockStateStore struct {
	mu     sync.RWMutex
	values map[string][]byte
	setErr error
}

func newMockStateStore() *mockStateStore {
	return &mockStateStore{values: make(map[string][]byte)}
}

func (m *mockStateStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (m *mockStateStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = value
	return nil
}

func (m *mockStateStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *mockStateStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// mockSchedulerStore implements driven.SchedulerStore for testing.
type mockSchedulerStore struct {
	mu      sync.RWMutex
	tasks   map[string]*domain.ScheduledTask
	results map[string][]domain.TaskResult
	saveErr error
	listErr error
}

func newMockSchedulerStore() *mockSchedulerStore {
	return &mockSchedulerStore{
		tasks:   make(map[string]*domain.ScheduledTask),
		results: make(map[string][]domain.TaskResult),
	}
}

func (m *mockSchedulerStore) GetTask(_ context.Context, taskID string) (*domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, exists := m.tasks[taskID]
	if !exists {
		return nil, nil
	}
	taskCopy := *task
	return &taskCopy, nil
}

func (m *mockSchedulerStore) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	tasks := make([]domain.ScheduledTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		tasks = append(tasks, *t)
	}
	return tasks, nil
}

func (m *mockSchedulerStore) SaveTask(_ context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	taskCopy := *task
	m.tasks[task.ID] = &taskCopy
	return nil
}

func (m *mockSchedulerStore) DeleteTask(_ context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, taskID)
	return nil
}

func (m *mockSchedulerStore) RecordResult(_ context.Context, result *domain.TaskResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.TaskID] = append(m.results[result.TaskID], *result)
	return nil
}

func (m *mockSchedulerStore) GetTaskHistory(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := m.results[taskID]
	if len(results) > limit {
		results = results[len(results)-limit:]
	}
	return results, nil
}

func (m *mockSchedulerStore) PruneHistory(_ context.Context, _ int) error {
	return nil
}

func (m *mockSchedulerStore) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tasks)
}

// mockActivityStore implements driven.ActivityStore in memory.
type mockActivityStore struct {
	mu         sync.Mutex
	activities map[string]domain.Activity
}

func newMockActivityStore() *mockActivityStore {
	return &mockActivityStore{activities: make(map[string]domain.Activity)}
}

func (m *mockActivityStore) Upsert(_ context.Context, activity domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var existing *domain.Activity
	if a, ok := m.activities[activity.SourceKey]; ok {
		existing = &a
	}
	m.activities[activity.SourceKey] = domain.MergeActivity(existing, activity)
	return nil
}

func (m *mockActivityStore) Get(_ context.Context, sourceKey string) (*domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.activities[sourceKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (m *mockActivityStore) List(_ context.Context, _ driven.ActivityFilter) ([]domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Activity, 0, len(m.activities))
	for _, a := range m.activities {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockActivityStore) ArchiveResource(_ context.Context, connectionID, resourceID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, a := range m.activities {
		if a.ConnectionID == connectionID && a.ResourceID == resourceID {
			a.Archived = domain.Ptr(true)
			m.activities[k] = a
			n++
		}
	}
	return n, nil
}

func (m *mockActivityStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activities)
}

// mockConnectionStore implements driven.ConnectionStore.
type mockConnectionStore struct {
	connections map[string]domain.Connection
}

func (m *mockConnectionStore) Get(_ context.Context, id string) (*domain.Connection, error) {
	c, ok := m.connections[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (m *mockConnectionStore) List(_ context.Context) ([]domain.Connection, error) {
	out := make([]domain.Connection, 0, len(m.connections))
	for _, c := range m.connections {
		out = append(out, c)
	}
	return out, nil
}

// mockConnector serves a fixed list of items in cursor-addressed pages.
type mockConnector struct {
	mu            sync.Mutex
	items         []driven.RawItem
	states        []domain.SyncState
	expireCursor  string
	expired       bool
	failTransform map[string]bool
	fetchErr      error
	checkpoint    string
	resources     []domain.Resource
}

func newMockConnector(n int) *mockConnector {
	items := make([]driven.RawItem, n)
	for i := range items {
		id := strconv.Itoa(i + 1)
		items[i] = driven.RawItem{ID: id, Payload: "Item " + id}
	}
	return &mockConnector{
		items:      items,
		checkpoint: "delta-1",
		resources:  []domain.Resource{{ID: "res-1", Name: "Resource 1"}},
	}
}

func (m *mockConnector) Type() string                      { return "mock" }
func (m *mockConnector) Capabilities() domain.Capabilities { return domain.Capabilities{DeltaSync: true} }
func (m *mockConnector) Close() error                      { return nil }

func (m *mockConnector) ListResources(_ context.Context) ([]domain.Resource, error) {
	return m.resources, nil
}

func (m *mockConnector) FetchPage(_ context.Context, _ string, state domain.SyncState, pageSize int) (*driven.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)

	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	if m.expireCursor != "" && state.Cursor == m.expireCursor && !m.expired {
		m.expired = true
		return nil, fmt.Errorf("listing: %w", domain.ErrCursorExpired)
	}

	start := 0
	if state.Cursor != "" && !strings.HasPrefix(state.Cursor, "delta") {
		var err error
		start, err = strconv.Atoi(state.Cursor)
		if err != nil {
			return nil, domain.ErrInvalidCursor
		}
	}
	end := start + pageSize
	if end > len(m.items) {
		end = len(m.items)
	}
	page := &driven.Page{Items: m.items[start:end]}
	if end < len(m.items) {
		page.More = true
		page.NextCursor = strconv.Itoa(end)
	} else {
		page.Checkpoint = m.checkpoint
	}
	return page, nil
}

func (m *mockConnector) Transform(_ context.Context, _ string, item driven.RawItem) (*domain.Activity, error) {
	if m.failTransform[item.ID] {
		return nil, errors.New("malformed item")
	}
	title, _ := item.Payload.(string)
	return &domain.Activity{
		SourceKey: "mock:item:" + item.ID,
		Type:      domain.ActivityTypeAction,
		Title:     domain.Ptr(title),
		Notes:     []domain.Note{{Key: domain.NoteKeyDescription, Content: "body of " + item.ID}},
	}, nil
}

func (m *mockConnector) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

func (m *mockConnector) seen() []domain.SyncState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SyncState(nil), m.states...)
}

// mockWebhookConnector adds HMAC-signed webhooks and expiring watches.
type mockWebhookConnector struct {
	*mockConnector

	expiry       *time.Time
	registered   []string
	unregistered []string
	renewErr     error
}

func (m *mockWebhookConnector) RegisterWebhook(_ context.Context, _, url, _ string) (*domain.WebhookRegistration, error) {
	m.registered = append(m.registered, url)
	return &domain.WebhookRegistration{ID: fmt.Sprintf("hook-%d", len(m.registered)), Expiry: m.expiry}, nil
}

func (m *mockWebhookConnector) UnregisterWebhook(_ context.Context, _ string, reg domain.WebhookRegistration) error {
	m.unregistered = append(m.unregistered, reg.ID)
	return nil
}

func (m *mockWebhookConnector) VerifyWebhook(req *domain.WebhookRequest, secret string) error {
	want := sign(secret, req.Body)
	got := req.Header("X-Signature")
	if !hmac.Equal([]byte(want), []byte(got)) {
		return domain.ErrSignatureInvalid
	}
	return nil
}

type mockWebhookBody struct {
	Kind  string `json:"kind"`
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (m *mockWebhookConnector) ParseWebhook(_ context.Context, _ string, req *domain.WebhookRequest) (*driven.WebhookEvent, error) {
	var body mockWebhookBody
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return nil, err
	}
	switch body.Kind {
	case "signal":
		return &driven.WebhookEvent{Kind: domain.EventSignal}, nil
	case "handshake":
		return &driven.WebhookEvent{
			Kind:  domain.EventHandshake,
			Reply: &domain.WebhookResponse{Status: 200, Body: "pong"},
		}, nil
	default:
		return &driven.WebhookEvent{
			Kind: domain.EventChange,
			Activity: &domain.Activity{
				SourceKey: "mock:item:" + body.ID,
				Title:     domain.Ptr(body.Title),
			},
		}, nil
	}
}

func (m *mockWebhookConnector) RenewWatch(_ context.Context, _, _ string, reg domain.WebhookRegistration) (*domain.WebhookRegistration, error) {
	if m.renewErr != nil {
		return nil, m.renewErr
	}
	next := reg.Expiry.Add(7 * 24 * time.Hour)
	return &domain.WebhookRegistration{ID: reg.ID + "-renewed", Expiry: &next}, nil
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// mockFactory always returns the same connector.
type mockFactory struct {
	connector driven.Connector
}

func (f *mockFactory) Create(_ context.Context, _ domain.Connection) (driven.Connector, error) {
	return f.connector, nil
}

func (f *mockFactory) Register(_ domain.ConnectorType, _ driven.ConnectorBuilder) {}

func (f *mockFactory) SupportedTypes() []domain.ConnectorType { return nil }

// mockGateway implements driven.WebhookGateway.
type mockGateway struct {
	baseURL string
	routes  map[string]domain.CallbackToken
	deleted []string
}

func newMockGateway(baseURL string) *mockGateway {
	return &mockGateway{baseURL: baseURL, routes: make(map[string]domain.CallbackToken)}
}

func (g *mockGateway) CreateWebhook(_ context.Context, handler domain.CallbackToken) (string, error) {
	url := fmt.Sprintf("%s/webhooks/%d", g.baseURL, len(g.routes)+len(g.deleted)+1)
	g.routes[url] = handler
	return url, nil
}

func (g *mockGateway) DeleteWebhook(_ context.Context, url string) error {
	delete(g.routes, url)
	g.deleted = append(g.deleted, url)
	return nil
}

// --- Harness ---

const (
	testConn     = "conn-1"
	testResource = "res-1"
)

type engineHarness struct {
	state      *mockStateStore
	tasks      *mockSchedulerStore
	activities *mockActivityStore
	callbacks  *CallbackRegistry
	scheduler  *Scheduler
	gateway    *mockGateway
	engine     *SyncEngine
	clock      *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newEngineHarness(t *testing.T, connector driven.Connector, gateway *mockGateway, cfg domain.SyncConfig) *engineHarness {
	t.Helper()

	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	h := &engineHarness{
		state:      newMockStateStore(),
		tasks:      newMockSchedulerStore(),
		activities: newMockActivityStore(),
		gateway:    gateway,
		clock:      clock,
	}
	h.callbacks = NewCallbackRegistry(h.state)
	h.scheduler = NewScheduler(domain.SchedulerConfig{MaxAttempts: 3, BaseBackoff: time.Minute},
		h.tasks, h.callbacks, WithSchedulerClock(clock.Now))

	connections := &mockConnectionStore{connections: map[string]domain.Connection{
		testConn: {ID: testConn, Type: "mock"},
	}}

	var gw driven.WebhookGateway
	if gateway != nil {
		gw = gateway
	}
	h.engine = NewSyncEngine(connections, &mockFactory{connector: connector}, h.state,
		h.callbacks, h.scheduler, gw, cfg, WithEngineClock(clock.Now))
	NewActivitySink(h.activities, h.callbacks)
	return h
}

// drain runs due tasks until the queue has nothing due.
func (h *engineHarness) drain(t *testing.T) int {
	t.Helper()
	total := 0
	for i := 0; i < 100; i++ {
		n, err := h.scheduler.RunPending(context.Background())
		require.NoError(t, err)
		if n == 0 {
			return total
		}
		total += n
	}
	t.Fatal("task queue did not drain")
	return total
}

func (h *engineHarness) scoped() driven.StateStore {
	return ScopedStore(h.state, testConn)
}

func (h *engineHarness) has(t *testing.T, prefix string) bool {
	t.Helper()
	_, err := h.scoped().Get(context.Background(), domain.ResourceKey(prefix, testResource))
	if errors.Is(err, domain.ErrNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

func noPolling() domain.SyncConfig {
	cfg := domain.DefaultSyncConfig()
	cfg.PollInterval = 0
	return cfg
}

// hookConnector runs beforeFetch ahead of the wrapped connector's fetch.
type hookConnector struct {
	*mockConnector
	beforeFetch func()
}

func (h *hookConnector) FetchPage(ctx context.Context, resourceID string, state domain.SyncState, pageSize int) (*driven.Page, error) {
	if h.beforeFetch != nil {
		h.beforeFetch()
	}
	return h.mockConnector.FetchPage(ctx, resourceID, state, pageSize)
}
