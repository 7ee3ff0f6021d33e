package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arenazl/munify-sub001/models"
)

// HistoryRepository handles database operations for lifecycle history entries
type HistoryRepository struct {
	db *sql.DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append inserts one immutable lifecycle history entry.
func (r *HistoryRepository) Append(ctx context.Context, entry *models.LifecycleHistoryEntry) error {
	entry.CreatedAt = time.Now().UTC()
	query := `
		INSERT INTO lifecycle_history (
			work_item_id, actor_type, actor_id,
			state_before, state_after, action, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(
		ctx,
		query,
		entry.WorkItemID,
		entry.ActorType,
		entry.ActorID,
		entry.StateBefore,
		entry.StateAfter,
		entry.Action,
		entry.Comment,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}

	historyID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get history entry ID: %w", err)
	}
	entry.HistoryID = historyID
	return nil
}

// ListByWorkItem retrieves history entries for a work item since the given
// time, oldest first (timeline order).
func (r *HistoryRepository) ListByWorkItem(ctx context.Context, workItemID int64, since time.Time, limit int) ([]models.LifecycleHistoryEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `
		SELECT history_id, work_item_id, actor_type, actor_id,
			state_before, state_after, action, comment, created_at
		FROM lifecycle_history
		WHERE work_item_id = ? AND created_at >= ?
		ORDER BY created_at ASC, history_id ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, workItemID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LifecycleHistoryEntry
	for rows.Next() {
		var entry models.LifecycleHistoryEntry
		err := rows.Scan(
			&entry.HistoryID,
			&entry.WorkItemID,
			&entry.ActorType,
			&entry.ActorID,
			&entry.StateBefore,
			&entry.StateAfter,
			&entry.Action,
			&entry.Comment,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history entries: %w", err)
	}
	return entries, nil
}
