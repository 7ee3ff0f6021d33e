package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arenazl/munify-sub001/models"
)

// LedgerRepository handles database operations for the escalation ledger.
// The ledger is append-only: entries are inserted and read, never updated.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// RecordIfAbsent appends a ledger entry unless one already exists for the same
// work item and trigger type within the dedup window. The check and insert are
// a single conditional INSERT so two concurrent evaluator workers cannot both
// escalate the same item. Returns false when a recent entry suppressed the
// insert. The window is half-open: an entry exactly one window old no longer
// suppresses, so an item escalated at T is eligible again at T+window.
func (r *LedgerRepository) RecordIfAbsent(ctx context.Context, entry *models.EscalationLedgerEntry, window time.Duration) (bool, error) {
	now := time.Now().UTC()
	windowStart := now.Add(-window)
	entry.CreatedAt = now

	query := `
		INSERT INTO escalation_ledger (
			tenant_id, work_item_id, rule_id, trigger_type,
			action_taken, priority_before, priority_after, reason, created_at
		)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?
		FROM DUAL
		WHERE NOT EXISTS (
			SELECT 1 FROM escalation_ledger
			WHERE work_item_id = ? AND trigger_type = ? AND created_at > ?
		)
	`
	result, err := r.db.ExecContext(
		ctx,
		query,
		entry.TenantID,
		entry.WorkItemID,
		entry.RuleID,
		entry.TriggerType,
		entry.ActionTaken,
		entry.PriorityBefore,
		entry.PriorityAfter,
		entry.Reason,
		entry.CreatedAt,
		entry.WorkItemID,
		entry.TriggerType,
		windowStart,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record ledger entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read ledger insert result: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	entryID, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to get ledger entry ID: %w", err)
	}
	entry.EntryID = entryID
	return true, nil
}

// RecentExists reports whether the work item already has a ledger entry for
// the trigger type within the window. Read-only companion of RecordIfAbsent,
// used by the pending inspector; the evaluator itself never check-then-inserts.
func (r *LedgerRepository) RecentExists(ctx context.Context, workItemID int64, trigger models.TriggerType, window time.Duration) (bool, error) {
	windowStart := time.Now().UTC().Add(-window)
	var count int
	err := r.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM escalation_ledger WHERE work_item_id = ? AND trigger_type = ? AND created_at > ?`,
		workItemID, trigger, windowStart,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recent ledger entries: %w", err)
	}
	return count > 0, nil
}

// ListByWorkItem retrieves ledger entries for a work item since the given
// time, newest first.
func (r *LedgerRepository) ListByWorkItem(ctx context.Context, workItemID int64, since time.Time, limit int) ([]models.EscalationLedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT entry_id, tenant_id, work_item_id, rule_id, trigger_type,
			action_taken, priority_before, priority_after, reason, created_at
		FROM escalation_ledger
		WHERE work_item_id = ? AND created_at >= ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, workItemID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []models.EscalationLedgerEntry
	for rows.Next() {
		var entry models.EscalationLedgerEntry
		err := rows.Scan(
			&entry.EntryID,
			&entry.TenantID,
			&entry.WorkItemID,
			&entry.RuleID,
			&entry.TriggerType,
			&entry.ActionTaken,
			&entry.PriorityBefore,
			&entry.PriorityAfter,
			&entry.Reason,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

// CountSince returns the number of ledger entries written after the given
// time, optionally scoped to one tenant. Used by operational checks.
func (r *LedgerRepository) CountSince(ctx context.Context, tenantID *int64, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM escalation_ledger WHERE created_at >= ?`
	args := []interface{}{since}
	if tenantID != nil {
		query += " AND tenant_id = ?"
		args = append(args, *tenantID)
	}
	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}
	return count, nil
}
