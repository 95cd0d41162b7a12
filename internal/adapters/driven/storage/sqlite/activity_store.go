package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/syncd/internal/core/domain"
	"github.com/custodia-labs/syncd/internal/core/ports/driven"
)

// activityStore implements driven.ActivityStore.
type activityStore struct {
	store *Store
}

var _ driven.ActivityStore = (*activityStore)(nil)

// Upsert merges activity into the stored row inside one transaction.
func (s *activityStore) Upsert(ctx context.Context, activity domain.Activity) error {
	if activity.SourceKey == "" {
		return domain.ErrInvalidInput
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	existing, err := getActivity(ctx, tx, activity.SourceKey)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	merged := domain.MergeActivity(existing, activity)
	if err := putActivity(ctx, tx, merged); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing activity: %w", err)
	}
	return nil
}

// Get retrieves an activity by source key.
func (s *activityStore) Get(ctx context.Context, sourceKey string) (*domain.Activity, error) {
	return getActivity(ctx, s.store.db, sourceKey)
}

// List returns activities matching filter ordered by source key.
func (s *activityStore) List(ctx context.Context, filter driven.ActivityFilter) ([]domain.Activity, error) {
	var (
		where []string
		args  []any
	)
	if filter.ConnectionID != "" {
		where = append(where, "connection_id = ?")
		args = append(args, filter.ConnectionID)
	}
	if filter.ResourceID != "" {
		where = append(where, "resource_id = ?")
		args = append(args, filter.ResourceID)
	}

	query := "SELECT data FROM activities"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY source_key"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying activities: %w", err)
	}
	defer rows.Close()

	activities := []domain.Activity{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning activity: %w", err)
		}
		var a domain.Activity
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("decoding activity: %w", err)
		}
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activities: %w", err)
	}
	return activities, nil
}

// ArchiveResource marks every activity of a resource archived.
func (s *activityStore) ArchiveResource(ctx context.Context, connectionID, resourceID string) (int, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx,
		"SELECT data FROM activities WHERE connection_id = ? AND resource_id = ?", connectionID, resourceID)
	if err != nil {
		return 0, fmt.Errorf("querying activities: %w", err)
	}
	var pending []domain.Activity
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning activity: %w", err)
		}
		var a domain.Activity
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			rows.Close()
			return 0, fmt.Errorf("decoding activity: %w", err)
		}
		pending = append(pending, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating activities: %w", err)
	}

	changed := 0
	for _, a := range pending {
		if a.Archived != nil && *a.Archived {
			continue
		}
		a.Archived = domain.Ptr(true)
		if err := putActivity(ctx, tx, a); err != nil {
			return 0, err
		}
		changed++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing archive: %w", err)
	}
	return changed, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getActivity(ctx context.Context, q queryer, sourceKey string) (*domain.Activity, error) {
	var data string
	err := q.QueryRowContext(ctx, "SELECT data FROM activities WHERE source_key = ?", sourceKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading activity: %w", err)
	}
	var a domain.Activity
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return nil, fmt.Errorf("decoding activity: %w", err)
	}
	return &a, nil
}

func putActivity(ctx context.Context, e execer, a domain.Activity) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding activity: %w", err)
	}
	_, err = e.ExecContext(ctx, `
		INSERT INTO activities (source_key, connection_id, resource_id, data, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(source_key) DO UPDATE SET
			connection_id = excluded.connection_id,
			resource_id = excluded.resource_id,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, a.SourceKey, a.ConnectionID, a.ResourceID, string(data))
	if err != nil {
		return fmt.Errorf("saving activity: %w", err)
	}
	return nil
}
