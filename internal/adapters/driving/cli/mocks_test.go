package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/custodia-labs/syncd/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/core/ports/driving"
)

// mockEngine implements driving.SyncEngine for testing.
type mockEngine struct {
	channels map[string][]domain.Resource
	statuses map[string]*domain.ResourceStatus
	err      error
	syncErr  error

	enabled     []string
	disabled    []string
	started     []driving.SyncOptions
	incremental []string
	comments    []string
}

func (m *mockEngine) GetChannels(_ context.Context, connID string) ([]domain.Resource, error) {
	return m.channels[connID], m.err
}

func (m *mockEngine) OnChannelEnabled(_ context.Context, connID string, ch domain.Resource) error {
	m.enabled = append(m.enabled, connID+"/"+ch.ID)
	return m.err
}

func (m *mockEngine) OnChannelDisabled(_ context.Context, connID string, ch domain.Resource) error {
	m.disabled = append(m.disabled, connID+"/"+ch.ID)
	return m.err
}

func (m *mockEngine) StartSync(_ context.Context, opts driving.SyncOptions, _ domain.CallbackRef, _ *domain.CallbackRef) error {
	m.started = append(m.started, opts)
	return m.err
}

func (m *mockEngine) StopSync(context.Context, string, string) error { return m.err }

func (m *mockEngine) SyncBatch(context.Context, string, string) (*driving.BatchResult, error) {
	return &driving.BatchResult{}, m.err
}

func (m *mockEngine) StartIncrementalSync(_ context.Context, connID, resourceID string) error {
	m.incremental = append(m.incremental, connID+"/"+resourceID)
	return m.syncErr
}

func (m *mockEngine) OnWebhook(context.Context, string, string, *domain.WebhookRequest) (*domain.WebhookResponse, error) {
	return domain.WebhookAccepted(), m.err
}

func (m *mockEngine) RenewWatch(context.Context, string, string) error { return m.err }

func (m *mockEngine) AddComment(_ context.Context, _, _, itemID, body string) (*domain.Note, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.comments = append(m.comments, itemID+":"+body)
	return &domain.Note{Key: domain.CommentNoteKey("501"), Content: body}, nil
}

func (m *mockEngine) Status(_ context.Context, connID, resourceID string) (*domain.ResourceStatus, error) {
	if st, ok := m.statuses[connID+"/"+resourceID]; ok {
		return st, nil
	}
	return &domain.ResourceStatus{
		Ref:   domain.ResourceRef{ConnectionID: connID, ResourceID: resourceID},
		State: domain.ResourceStateDisabled,
	}, nil
}

// mockScheduler implements driving.Scheduler for testing. RunPending
// returns the queued round sizes in order, then zero.
type mockScheduler struct {
	rounds  []int
	pending []domain.ScheduledTask
	calls   int
	started bool
	stopped bool
}

func (m *mockScheduler) Start(ctx context.Context) error {
	m.started = true
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockScheduler) Stop() error {
	m.stopped = true
	return nil
}

func (m *mockScheduler) RunPending(context.Context) (int, error) {
	m.calls++
	if len(m.rounds) == 0 {
		return 0, nil
	}
	n := m.rounds[0]
	m.rounds = m.rounds[1:]
	return n, nil
}

func (m *mockScheduler) Pending(context.Context) ([]domain.ScheduledTask, error) {
	return m.pending, nil
}

// mockEditor records connection edits.
type mockEditor struct {
	put     []domain.Connection
	removed []string
	err     error
}

func (m *mockEditor) PutConnection(conn domain.Connection) error {
	m.put = append(m.put, conn)
	return m.err
}

func (m *mockEditor) RemoveConnection(id string) error {
	m.removed = append(m.removed, id)
	return m.err
}

// mockFactory implements driven.ConnectorFactory for testing.
type mockFactory struct {
	types []domain.ConnectorType
}

func (m *mockFactory) Create(context.Context, domain.Connection) (driven.Connector, error) {
	return nil, domain.ErrNotImplemented
}

func (m *mockFactory) Register(domain.ConnectorType, driven.ConnectorBuilder) {}

func (m *mockFactory) SupportedTypes() []domain.ConnectorType { return m.types }

// setupServices installs svc for the duration of the test and resets
// command flags.
func setupServices(t *testing.T, svc *Services) {
	t.Helper()
	old, oldInput := services, promptInput
	services = svc
	promptInput = strings.NewReader("")
	t.Cleanup(func() {
		services, promptInput = old, oldInput
		runEphemeral = false
		channelsEnableSince, channelsEnableUntil = "", ""
		activitiesConnection, activitiesResource, activitiesLimit = "", "", 50
		connAddType, connAddID, connAddName, connAddToken = "", "", "", ""
		connAddSettings = map[string]string{}
	})
}

func newTestServices() *Services {
	return &Services{
		Engine:      &mockEngine{},
		Scheduler:   &mockScheduler{},
		Connections: memory.NewConnectionStore(),
		Activities:  memory.NewActivityStore(),
		Connectors:  &mockFactory{},
	}
}

// execute runs rootCmd with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
	}()
	err := rootCmd.Execute()
	return buf.String(), err
}
