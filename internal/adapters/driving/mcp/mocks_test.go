package mcp

import (
	"context"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driving"
)

// mockEngine is a mock implementation of driving.SyncEngine.
type mockEngine struct {
	channels []domain.Resource
	statuses map[string]*domain.ResourceStatus
	note     *domain.Note
	err      error

	enabled     []string
	disabled    []string
	started     []driving.SyncOptions
	startedItem []domain.CallbackRef
	incremental []string
	comments    []string
}

func (m *mockEngine) GetChannels(context.Context, string) ([]domain.Resource, error) {
	return m.channels, m.err
}

func (m *mockEngine) OnChannelEnabled(_ context.Context, connID string, ch domain.Resource) error {
	m.enabled = append(m.enabled, connID+"/"+ch.ID)
	return m.err
}

func (m *mockEngine) OnChannelDisabled(_ context.Context, connID string, ch domain.Resource) error {
	m.disabled = append(m.disabled, connID+"/"+ch.ID)
	return m.err
}

func (m *mockEngine) StartSync(
	_ context.Context,
	opts driving.SyncOptions,
	onItem domain.CallbackRef,
	_ *domain.CallbackRef,
) error {
	m.started = append(m.started, opts)
	m.startedItem = append(m.startedItem, onItem)
	return m.err
}

func (m *mockEngine) StopSync(context.Context, string, string) error {
	return m.err
}

func (m *mockEngine) SyncBatch(context.Context, string, string) (*driving.BatchResult, error) {
	return &driving.BatchResult{}, m.err
}

func (m *mockEngine) StartIncrementalSync(_ context.Context, connID, resourceID string) error {
	m.incremental = append(m.incremental, connID+"/"+resourceID)
	return m.err
}

func (m *mockEngine) OnWebhook(
	context.Context, string, string, *domain.WebhookRequest,
) (*domain.WebhookResponse, error) {
	return domain.WebhookAccepted(), m.err
}

func (m *mockEngine) RenewWatch(context.Context, string, string) error {
	return m.err
}

func (m *mockEngine) AddComment(_ context.Context, _, _, itemID, body string) (*domain.Note, error) {
	m.comments = append(m.comments, itemID+":"+body)
	return m.note, m.err
}

func (m *mockEngine) Status(_ context.Context, connID, resourceID string) (*domain.ResourceStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	if st, ok := m.statuses[resourceID]; ok {
		return st, nil
	}
	return &domain.ResourceStatus{
		Ref:   domain.ResourceRef{ConnectionID: connID, ResourceID: resourceID},
		State: domain.ResourceStateDisabled,
	}, nil
}
