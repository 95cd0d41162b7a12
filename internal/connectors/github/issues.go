package github

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
	"github.com/custodia-labs/syncd/internal/logger"
)

const (
	providerName = "github"
	kindIssue    = "issue"

	// maxPageSize is the largest per_page GitHub accepts.
	maxPageSize = 100
)

// Meta keys set on GitHub activities.
const (
	MetaNumber = "number"
	MetaState  = "state"
	MetaRepo   = "repo"
	MetaLabels = "labels"
	MetaKind   = "kind"
)

// IssueItem is the typed payload of a GitHub raw item.
type IssueItem struct {
	RepoID int64
	Issue  *gh.Issue

	// Comments is nil when they were not fetched. Missing comments leave
	// stored comment notes untouched.
	Comments []*gh.IssueComment
}

// FetchPage lists the next page of issues after the cursor's keyset
// position. Issues already delivered on the boundary timestamp are
// skipped, so the inclusive since filter never repeats an item.
func (c *Connector) FetchPage(
	ctx context.Context, resourceID string, state domain.SyncState, pageSize int,
) (*driven.Page, error) {
	repo, err := c.repository(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	cursor, err := DecodeCursor(state.Cursor)
	if err != nil {
		return nil, err
	}
	if state.Cursor == "" && state.Min != nil {
		cursor.Since = *state.Min
	}
	pageNum := cursor.Page
	if pageNum == 0 {
		pageNum = 1
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	owner, name := repo.GetOwner().GetLogin(), repo.GetName()
	opts := &gh.IssueListByRepoOptions{
		State:     "all",
		Sort:      "updated",
		Direction: "asc",
		Since:     cursor.Since,
		ListOptions: gh.ListOptions{
			Page:    pageNum,
			PerPage: pageSize,
		},
	}

	issues, nextPage, err := c.client.ListIssuesPage(ctx, owner, name, opts)
	if err != nil {
		return nil, err
	}

	next := *cursor
	next.Boundary = append([]int64(nil), cursor.Boundary...)
	page := &driven.Page{Items: make([]driven.RawItem, 0, len(issues))}
	for _, issue := range issues {
		updated := issue.GetUpdatedAt().Time
		if cursor.delivered(issue.GetID(), updated) {
			continue
		}
		next.observe(issue.GetID(), updated)

		if issue.IsPullRequest() && !c.config.IncludePulls {
			continue
		}
		if state.Max != nil && issue.GetCreatedAt().After(*state.Max) {
			continue
		}

		item := &IssueItem{RepoID: repo.GetID(), Issue: issue}
		if issue.GetComments() > 0 {
			comments, err := c.client.ListComments(ctx, owner, name, issue.GetNumber())
			if err != nil {
				logger.Warn("github: comments for %s#%d unavailable: %v", repo.GetFullName(), issue.GetNumber(), err)
			} else {
				item.Comments = comments
			}
		}
		page.Items = append(page.Items, driven.RawItem{
			ID:      strconv.FormatInt(issue.GetID(), 10),
			Payload: item,
		})
	}

	if nextPage != 0 {
		page.More = true
		page.NextCursor = next.advance(cursor, pageNum).Encode()
		return page, nil
	}
	page.Checkpoint = next.checkpoint().Encode()
	return page, nil
}

// Transform maps an issue to an action activity.
func (c *Connector) Transform(_ context.Context, _ string, item driven.RawItem) (*domain.Activity, error) {
	payload, ok := item.Payload.(*IssueItem)
	if !ok || payload.Issue == nil {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedPayload, item.Payload)
	}
	return issueActivity(payload.RepoID, payload.Issue, payload.Comments)
}

// issueSourceKey builds the upsert key from immutable IDs only.
func issueSourceKey(repoID, issueID int64) (string, error) {
	return domain.SourceKey(providerName, kindIssue,
		strconv.FormatInt(repoID, 10), strconv.FormatInt(issueID, 10))
}

func issueActivity(repoID int64, issue *gh.Issue, comments []*gh.IssueComment) (*domain.Activity, error) {
	key, err := issueSourceKey(repoID, issue.GetID())
	if err != nil {
		return nil, err
	}

	activity := &domain.Activity{
		SourceKey: key,
		Type:      domain.ActivityTypeAction,
		Title:     domain.Ptr(issue.GetTitle()),
		URL:       domain.Ptr(issue.GetHTMLURL()),
		Created:   domain.Ptr(issue.GetCreatedAt().Time),
		Author:    actor(issue.GetUser()),
		Done:      domain.Ptr(issue.GetState() == "closed"),
		Meta: map[string]string{
			MetaNumber: strconv.Itoa(issue.GetNumber()),
			MetaState:  issue.GetState(),
			MetaKind:   kindIssue,
		},
	}
	if issue.IsPullRequest() {
		activity.Meta[MetaKind] = "pull_request"
	}
	if repo := repoFromIssue(issue); repo != "" {
		activity.Meta[MetaRepo] = repo
	}
	if labels := labelNames(issue.Labels); labels != "" {
		activity.Meta[MetaLabels] = labels
	}

	if len(issue.Assignees) > 0 {
		activity.Assignee = actor(issue.Assignees[0])
		activity.Participants = make([]domain.Actor, 0, len(issue.Assignees))
		for _, a := range issue.Assignees {
			activity.Participants = append(activity.Participants, *actor(a))
		}
	} else if issue.Assignee != nil {
		activity.Assignee = actor(issue.Assignee)
	}

	activity.Notes = append(activity.Notes, domain.Note{
		Key:         domain.NoteKeyDescription,
		Content:     issue.GetBody(),
		ContentType: "text/markdown",
	})
	for _, comment := range comments {
		activity.Notes = append(activity.Notes, commentNote(comment))
	}
	return activity, nil
}

func commentNote(comment *gh.IssueComment) domain.Note {
	note := domain.Note{
		Key:         domain.CommentNoteKey(strconv.FormatInt(comment.GetID(), 10)),
		Content:     comment.GetBody(),
		ContentType: "text/markdown",
		Author:      actor(comment.GetUser()),
	}
	if created := comment.GetCreatedAt(); !created.IsZero() {
		note.Created = domain.Ptr(created.Time)
	}
	return note
}

func actor(u *gh.User) *domain.Actor {
	if u == nil {
		return nil
	}
	return &domain.Actor{
		ID:    strconv.FormatInt(u.GetID(), 10),
		Name:  u.GetLogin(),
		Email: u.GetEmail(),
	}
}

func labelNames(labels []*gh.Label) string {
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.GetName())
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// repoFromIssue extracts owner/name from the issue's repository fields.
func repoFromIssue(issue *gh.Issue) string {
	if issue.Repository != nil && issue.Repository.GetFullName() != "" {
		return issue.Repository.GetFullName()
	}
	const marker = "/repos/"
	u := issue.GetRepositoryURL()
	if i := strings.Index(u, marker); i >= 0 {
		return u[i+len(marker):]
	}
	return ""
}
