package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arenazl/munify-sub001/models"
)

// Lifecycle transition errors callers branch on.
var (
	ErrWorkItemNotFound  = errors.New("work item not found")
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	ErrAssigneeRequired  = errors.New("assignee required for this transition")
	ErrInvalidPriority   = errors.New("priority out of range")
)

// WorkItemLifecycleStore is the store surface for lifecycle mutations.
type WorkItemLifecycleStore interface {
	Create(ctx context.Context, item *models.WorkItem) error
	GetByID(ctx context.Context, workItemID int64) (*models.WorkItem, error)
	UpdateState(ctx context.Context, workItemID int64, state models.WorkItemState, assigneeID *int64) error
	GenerateItemNumber() string
}

// LifecycleService owns work item intake and state transitions. The
// escalation evaluator only reads what this service maintains: state,
// created_at and a refreshed updated_at on every transition.
type LifecycleService struct {
	workItems WorkItemLifecycleStore
	history   HistorySink
}

// NewLifecycleService creates a lifecycle service.
func NewLifecycleService(workItems WorkItemLifecycleStore, history HistorySink) *LifecycleService {
	return &LifecycleService{workItems: workItems, history: history}
}

// IntakeRequest describes a new complaint submission.
type IntakeRequest struct {
	TenantID    int64
	Title       string
	Description string
	Priority    int
	CategoryID  *int64
}

// Intake creates a new work item in state new and records its first history
// entry. Priority defaults to the middle of the range when unset.
func (s *LifecycleService) Intake(ctx context.Context, req IntakeRequest) (*models.WorkItem, error) {
	if req.TenantID <= 0 {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if req.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	priority := req.Priority
	if priority == 0 {
		priority = models.DefaultPriority
	}
	if !models.ValidPriority(priority) {
		return nil, ErrInvalidPriority
	}

	item := &models.WorkItem{
		ItemNumber:  s.workItems.GenerateItemNumber(),
		TenantID:    req.TenantID,
		Title:       req.Title,
		Description: req.Description,
		State:       models.StateNew,
		Priority:    priority,
	}
	if req.CategoryID != nil {
		item.CategoryID = sql.NullInt64{Int64: *req.CategoryID, Valid: true}
	}

	if err := s.workItems.Create(ctx, item); err != nil {
		return nil, err
	}

	entry := &models.LifecycleHistoryEntry{
		WorkItemID:  item.WorkItemID,
		ActorType:   models.ActorCitizen,
		StateBefore: sql.NullString{},
		StateAfter:  models.StateNew,
		Action:      "intake",
		Comment:     sql.NullString{String: "Work item submitted", Valid: true},
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record intake history: %w", err)
	}
	return item, nil
}

// Acknowledge moves a work item from new to received.
func (s *LifecycleService) Acknowledge(ctx context.Context, workItemID, actorID int64) (*models.WorkItem, error) {
	return s.transition(ctx, workItemID, models.StateReceived, actorID, nil, "acknowledge", "")
}

// Assign assigns a work item to an employee. Valid from new (legacy direct
// path) and received. An assignee is mandatory: non-new states never carry a
// NULL assignee.
func (s *LifecycleService) Assign(ctx context.Context, workItemID, actorID, assigneeID int64) (*models.WorkItem, error) {
	if assigneeID <= 0 {
		return nil, ErrAssigneeRequired
	}
	comment := fmt.Sprintf("Assigned to employee %d", assigneeID)
	return s.transition(ctx, workItemID, models.StateAssigned, actorID, &assigneeID, "assign", comment)
}

// StartWork moves an assigned work item into in_progress.
func (s *LifecycleService) StartWork(ctx context.Context, workItemID, actorID int64) (*models.WorkItem, error) {
	return s.transition(ctx, workItemID, models.StateInProgress, actorID, nil, "start_work", "")
}

// Complete moves an in_progress work item to pending_confirmation.
func (s *LifecycleService) Complete(ctx context.Context, workItemID, actorID int64, comment string) (*models.WorkItem, error) {
	return s.transition(ctx, workItemID, models.StatePendingConfirmation, actorID, nil, "complete", comment)
}

// Resolve closes a work item as resolved. Valid from in_progress (deployments
// skipping the confirmation step) and pending_confirmation.
func (s *LifecycleService) Resolve(ctx context.Context, workItemID, actorID int64, comment string) (*models.WorkItem, error) {
	return s.transition(ctx, workItemID, models.StateResolved, actorID, nil, "resolve", comment)
}

// Reject closes a work item as rejected. Valid from any pre-resolution state.
func (s *LifecycleService) Reject(ctx context.Context, workItemID, actorID int64, comment string) (*models.WorkItem, error) {
	return s.transition(ctx, workItemID, models.StateRejected, actorID, nil, "reject", comment)
}

// transition performs one validated state change, refreshes updated_at via
// the store and appends the history entry.
func (s *LifecycleService) transition(
	ctx context.Context,
	workItemID int64,
	to models.WorkItemState,
	actorID int64,
	assigneeID *int64,
	action string,
	comment string,
) (*models.WorkItem, error) {
	item, err := s.workItems.GetByID(ctx, workItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrWorkItemNotFound
	}
	if !models.CanTransition(item.State, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, item.State, to)
	}
	// Work items are never unassigned without reassigning: past the new
	// state the assignee travels with the item.
	if to == models.StateAssigned && assigneeID == nil {
		return nil, ErrAssigneeRequired
	}

	if err := s.workItems.UpdateState(ctx, workItemID, to, assigneeID); err != nil {
		return nil, err
	}

	entry := &models.LifecycleHistoryEntry{
		WorkItemID:  workItemID,
		ActorType:   models.ActorStaff,
		ActorID:     sql.NullInt64{Int64: actorID, Valid: actorID > 0},
		StateBefore: sql.NullString{String: string(item.State), Valid: true},
		StateAfter:  to,
		Action:      action,
	}
	if comment != "" {
		entry.Comment = sql.NullString{String: comment, Valid: true}
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record transition history: %w", err)
	}

	item.State = to
	if assigneeID != nil {
		item.AssigneeID = sql.NullInt64{Int64: *assigneeID, Valid: true}
	}
	return item, nil
}
