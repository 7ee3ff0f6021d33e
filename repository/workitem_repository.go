package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arenazl/munify-sub001/models"
	"github.com/google/uuid"
)

// WorkItemRepository handles database operations for work items
type WorkItemRepository struct {
	db *sql.DB
}

// NewWorkItemRepository creates a new work item repository
func NewWorkItemRepository(db *sql.DB) *WorkItemRepository {
	return &WorkItemRepository{db: db}
}

// GenerateItemNumber generates a unique work item number.
// Format: WI-YYYYMMDD-{uuid8}
func (r *WorkItemRepository) GenerateItemNumber() string {
	datePrefix := time.Now().UTC().Format("20060102")
	uniqueID := uuid.New().String()[:8]
	return fmt.Sprintf("WI-%s-%s", datePrefix, uniqueID)
}

// Create inserts a new work item and fills in its generated ID.
func (r *WorkItemRepository) Create(ctx context.Context, item *models.WorkItem) error {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	query := `
		INSERT INTO work_items (
			item_number, tenant_id, title, description,
			state, priority, category_id, assignee_id,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(
		ctx,
		query,
		item.ItemNumber,
		item.TenantID,
		item.Title,
		item.Description,
		item.State,
		item.Priority,
		item.CategoryID,
		item.AssigneeID,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create work item: %w", err)
	}

	itemID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get work item ID: %w", err)
	}
	item.WorkItemID = itemID
	return nil
}

// GetByID retrieves a work item by ID. Returns nil when not found.
func (r *WorkItemRepository) GetByID(ctx context.Context, workItemID int64) (*models.WorkItem, error) {
	query := `
		SELECT work_item_id, item_number, tenant_id, title, description,
			state, priority, category_id, assignee_id, created_at, updated_at
		FROM work_items
		WHERE work_item_id = ?
	`
	item := &models.WorkItem{}
	err := r.db.QueryRowContext(ctx, query, workItemID).Scan(
		&item.WorkItemID,
		&item.ItemNumber,
		&item.TenantID,
		&item.Title,
		&item.Description,
		&item.State,
		&item.Priority,
		&item.CategoryID,
		&item.AssigneeID,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get work item: %w", err)
	}
	return item, nil
}

// ListByTenant retrieves work items for a tenant, newest first.
func (r *WorkItemRepository) ListByTenant(ctx context.Context, tenantID int64, limit int) ([]models.WorkItem, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT work_item_id, item_number, tenant_id, title, description,
			state, priority, category_id, assignee_id, created_at, updated_at
		FROM work_items
		WHERE tenant_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query work items: %w", err)
	}
	defer rows.Close()

	var items []models.WorkItem
	for rows.Next() {
		var item models.WorkItem
		err := rows.Scan(
			&item.WorkItemID,
			&item.ItemNumber,
			&item.TenantID,
			&item.Title,
			&item.Description,
			&item.State,
			&item.Priority,
			&item.CategoryID,
			&item.AssigneeID,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating work items: %w", err)
	}
	return items, nil
}

// CandidateFilter describes one trigger scan of the candidate query.
type CandidateFilter struct {
	TenantID    int64
	State       models.WorkItemState
	Cutoff      time.Time
	ByCreatedAt bool // compare created_at instead of updated_at
	CategoryID  *int64
	MinUrgency  *int // match items with priority <= MinUrgency
}

// FindCandidates returns work items matching one trigger scan: tenant, state,
// age cutoff and the rule's optional category/urgency filters. Every returned
// candidate already carries the fields the evaluator needs.
func (r *WorkItemRepository) FindCandidates(ctx context.Context, filter CandidateFilter) ([]models.EscalationCandidate, error) {
	timeColumn := "updated_at"
	if filter.ByCreatedAt {
		timeColumn = "created_at"
	}

	query := fmt.Sprintf(`
		SELECT work_item_id, item_number, tenant_id, state, priority,
			category_id, assignee_id, created_at, updated_at
		FROM work_items
		WHERE tenant_id = ?
			AND state = ?
			AND %s <= ?
	`, timeColumn)
	args := []interface{}{filter.TenantID, filter.State, filter.Cutoff}

	if filter.CategoryID != nil {
		query += " AND category_id = ?"
		args = append(args, *filter.CategoryID)
	}
	if filter.MinUrgency != nil {
		query += " AND priority <= ?"
		args = append(args, *filter.MinUrgency)
	}
	query += " ORDER BY work_item_id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalation candidates: %w", err)
	}
	defer rows.Close()

	var candidates []models.EscalationCandidate
	for rows.Next() {
		var candidate models.EscalationCandidate
		err := rows.Scan(
			&candidate.WorkItemID,
			&candidate.ItemNumber,
			&candidate.TenantID,
			&candidate.State,
			&candidate.Priority,
			&candidate.CategoryID,
			&candidate.AssigneeID,
			&candidate.CreatedAt,
			&candidate.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escalation candidate: %w", err)
		}
		candidates = append(candidates, candidate)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escalation candidates: %w", err)
	}
	return candidates, nil
}

// UpdatePriority sets a work item's priority without touching its state.
// Single-row update; updated_at is left alone so escalation never resets the
// unstarted/unresolved timers.
func (r *WorkItemRepository) UpdatePriority(ctx context.Context, workItemID int64, priority int) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE work_items SET priority = ? WHERE work_item_id = ?`,
		priority, workItemID,
	)
	if err != nil {
		return fmt.Errorf("failed to update work item priority: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read priority update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("work item %d not found", workItemID)
	}
	return nil
}

// UpdateState moves a work item to a new state, refreshing updated_at and
// optionally setting the assignee. Transition validity is the caller's job.
func (r *WorkItemRepository) UpdateState(ctx context.Context, workItemID int64, state models.WorkItemState, assigneeID *int64) error {
	now := time.Now().UTC()

	var err error
	if assigneeID != nil {
		_, err = r.db.ExecContext(
			ctx,
			`UPDATE work_items SET state = ?, assignee_id = ?, updated_at = ? WHERE work_item_id = ?`,
			state, *assigneeID, now, workItemID,
		)
	} else {
		_, err = r.db.ExecContext(
			ctx,
			`UPDATE work_items SET state = ?, updated_at = ? WHERE work_item_id = ?`,
			state, now, workItemID,
		)
	}
	if err != nil {
		return fmt.Errorf("failed to update work item state: %w", err)
	}
	return nil
}
