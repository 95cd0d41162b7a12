package github

import (
	"context"
	"fmt"
	"strconv"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/logger"
)

// Webhook delivery headers.
const (
	HeaderEvent     = "X-GitHub-Event"
	HeaderSignature = "X-Hub-Signature-256"
)

// hookEvents are the repository events the connector subscribes to.
var hookEvents = []string{"issues", "issue_comment"}

// RegisterWebhook installs a repository hook delivering to url, signed
// with secret.
func (c *Connector) RegisterWebhook(
	ctx context.Context, resourceID, url, secret string,
) (*domain.WebhookRegistration, error) {
	repo, err := c.repository(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	hook, err := c.client.CreateHook(ctx, repo.GetOwner().GetLogin(), repo.GetName(), &gh.Hook{
		Name:   gh.Ptr("web"),
		Active: gh.Ptr(true),
		Events: hookEvents,
		Config: &gh.HookConfig{
			URL:         gh.Ptr(url),
			ContentType: gh.Ptr("json"),
			Secret:      gh.Ptr(secret),
			InsecureSSL: gh.Ptr("0"),
		},
	})
	if err != nil {
		return nil, err
	}
	return &domain.WebhookRegistration{
		ID:  strconv.FormatInt(hook.GetID(), 10),
		URL: url,
	}, nil
}

// UnregisterWebhook deletes the repository hook. A hook that is already
// gone counts as removed.
func (c *Connector) UnregisterWebhook(ctx context.Context, resourceID string, reg domain.WebhookRegistration) error {
	id, err := strconv.ParseInt(reg.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: github hook id %q", domain.ErrInvalidInput, reg.ID)
	}
	repo, err := c.repository(ctx, resourceID)
	if err != nil {
		return err
	}
	if err := c.client.DeleteHook(ctx, repo.GetOwner().GetLogin(), repo.GetName(), id); err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

// VerifyWebhook checks the X-Hub-Signature-256 HMAC of the body.
func (c *Connector) VerifyWebhook(req *domain.WebhookRequest, secret string) error {
	signature := req.Header(HeaderSignature)
	if signature == "" || secret == "" {
		return fmt.Errorf("%w: missing signature", domain.ErrSignatureInvalid)
	}
	if err := gh.ValidateSignature(signature, req.Body, []byte(secret)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrSignatureInvalid, err)
	}
	return nil
}

// ParseWebhook classifies a verified delivery.
func (c *Connector) ParseWebhook(
	_ context.Context, resourceID string, req *domain.WebhookRequest,
) (*driven.WebhookEvent, error) {
	eventType := req.Header(HeaderEvent)
	if eventType == "ping" {
		return &driven.WebhookEvent{Kind: domain.EventHandshake}, nil
	}

	payload, err := gh.ParseWebHook(eventType, req.Body)
	if err != nil {
		// Unknown event types are not ours to handle.
		logger.Debug("github: ignoring %q delivery: %v", eventType, err)
		return &driven.WebhookEvent{Kind: domain.EventIgnored}, nil
	}

	switch event := payload.(type) {
	case *gh.IssuesEvent:
		if !sameRepo(event.GetRepo(), resourceID) {
			return ignored(), nil
		}
		return issueEvent(event)
	case *gh.IssueCommentEvent:
		if !sameRepo(event.GetRepo(), resourceID) {
			return ignored(), nil
		}
		return commentEvent(event)
	default:
		return ignored(), nil
	}
}

func issueEvent(event *gh.IssuesEvent) (*driven.WebhookEvent, error) {
	repoID := event.GetRepo().GetID()
	switch event.GetAction() {
	case "deleted", "transferred":
		key, err := issueSourceKey(repoID, event.GetIssue().GetID())
		if err != nil {
			return nil, err
		}
		return &driven.WebhookEvent{
			Kind:     domain.EventDelete,
			Activity: &domain.Activity{SourceKey: key},
		}, nil
	default:
		if event.Issue == nil {
			return ignored(), nil
		}
		issue := event.Issue
		if issue.Repository == nil {
			issue.Repository = event.Repo
		}
		activity, err := issueActivity(repoID, issue, nil)
		if err != nil {
			return nil, err
		}
		return &driven.WebhookEvent{Kind: domain.EventChange, Activity: activity}, nil
	}
}

// commentEvent upserts the single comment note. Deleted comments are
// ignored: notes are only ever added or replaced.
func commentEvent(event *gh.IssueCommentEvent) (*driven.WebhookEvent, error) {
	if event.GetAction() == "deleted" || event.Comment == nil {
		return ignored(), nil
	}
	key, err := issueSourceKey(event.GetRepo().GetID(), event.GetIssue().GetID())
	if err != nil {
		return nil, err
	}
	return &driven.WebhookEvent{
		Kind: domain.EventChange,
		Activity: &domain.Activity{
			SourceKey: key,
			Notes:     []domain.Note{commentNote(event.Comment)},
		},
	}, nil
}

func sameRepo(repo *gh.Repository, resourceID string) bool {
	return repo != nil && strconv.FormatInt(repo.GetID(), 10) == resourceID
}

func ignored() *driven.WebhookEvent {
	return &driven.WebhookEvent{Kind: domain.EventIgnored}
}
