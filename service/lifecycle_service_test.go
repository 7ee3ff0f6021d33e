package service

import (
	"context"
	"testing"

	"github.com/arenazl/munify-sub001/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLifecycle() (*LifecycleService, *fakeLifecycleStore, *fakeHistorySink) {
	store := newFakeLifecycleStore()
	history := &fakeHistorySink{}
	return NewLifecycleService(store, history), store, history
}

func intakeItem(t *testing.T, svc *LifecycleService, tenantID int64) *models.WorkItem {
	t.Helper()
	item, err := svc.Intake(context.Background(), IntakeRequest{
		TenantID:    tenantID,
		Title:       "Broken streetlight on Elm",
		Description: "Dark corner at night",
	})
	require.NoError(t, err)
	return item
}

func TestIntakeDefaults(t *testing.T) {
	svc, _, history := newTestLifecycle()
	item := intakeItem(t, svc, 7)

	assert.Equal(t, models.StateNew, item.State)
	assert.Equal(t, models.DefaultPriority, item.Priority)
	assert.NotEmpty(t, item.ItemNumber)
	require.Len(t, history.entries, 1)
	assert.Equal(t, "intake", history.entries[0].Action)
	assert.Equal(t, models.ActorCitizen, history.entries[0].ActorType)
	assert.False(t, history.entries[0].StateBefore.Valid)
}

func TestIntakeValidation(t *testing.T) {
	svc, _, _ := newTestLifecycle()

	_, err := svc.Intake(context.Background(), IntakeRequest{Title: "no tenant"})
	require.Error(t, err)

	_, err = svc.Intake(context.Background(), IntakeRequest{TenantID: 7})
	require.Error(t, err)

	_, err = svc.Intake(context.Background(), IntakeRequest{TenantID: 7, Title: "x", Priority: 6})
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestFullLifecyclePath(t *testing.T) {
	svc, store, history := newTestLifecycle()
	item := intakeItem(t, svc, 7)
	ctx := context.Background()

	item, err := svc.Acknowledge(ctx, item.WorkItemID, 10)
	require.NoError(t, err)
	assert.Equal(t, models.StateReceived, item.State)

	item, err = svc.Assign(ctx, item.WorkItemID, 10, 42)
	require.NoError(t, err)
	assert.Equal(t, models.StateAssigned, item.State)
	assert.Equal(t, int64(42), item.AssigneeID.Int64)

	item, err = svc.StartWork(ctx, item.WorkItemID, 42)
	require.NoError(t, err)
	assert.Equal(t, models.StateInProgress, item.State)

	item, err = svc.Complete(ctx, item.WorkItemID, 42, "fixed the lamp")
	require.NoError(t, err)
	assert.Equal(t, models.StatePendingConfirmation, item.State)

	item, err = svc.Resolve(ctx, item.WorkItemID, 10, "citizen confirmed")
	require.NoError(t, err)
	assert.Equal(t, models.StateResolved, item.State)

	stored, err := store.GetByID(ctx, item.WorkItemID)
	require.NoError(t, err)
	assert.Equal(t, models.StateResolved, stored.State)

	// intake + five transitions
	assert.Len(t, history.entries, 6)
	last := history.entries[5]
	assert.Equal(t, models.ActorStaff, last.ActorType)
	assert.Equal(t, int64(10), last.ActorID.Int64)
	assert.Equal(t, "citizen confirmed", last.Comment.String)
}

func TestLegacyDirectAssignFromNew(t *testing.T) {
	svc, _, _ := newTestLifecycle()
	item := intakeItem(t, svc, 7)

	item, err := svc.Assign(context.Background(), item.WorkItemID, 10, 42)
	require.NoError(t, err)
	assert.Equal(t, models.StateAssigned, item.State)
}

func TestResolveDirectlyFromInProgress(t *testing.T) {
	svc, _, _ := newTestLifecycle()
	item := intakeItem(t, svc, 7)
	ctx := context.Background()

	_, err := svc.Assign(ctx, item.WorkItemID, 10, 42)
	require.NoError(t, err)
	_, err = svc.StartWork(ctx, item.WorkItemID, 42)
	require.NoError(t, err)

	resolved, err := svc.Resolve(ctx, item.WorkItemID, 10, "")
	require.NoError(t, err)
	assert.Equal(t, models.StateResolved, resolved.State)
}

func TestInvalidTransitions(t *testing.T) {
	svc, _, _ := newTestLifecycle()
	item := intakeItem(t, svc, 7)
	ctx := context.Background()

	// new cannot start work or resolve directly.
	_, err := svc.StartWork(ctx, item.WorkItemID, 10)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Resolve(ctx, item.WorkItemID, 10, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Terminal states accept nothing.
	_, err = svc.Reject(ctx, item.WorkItemID, 10, "duplicate report")
	require.NoError(t, err)
	_, err = svc.Assign(ctx, item.WorkItemID, 10, 42)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAssignRequiresAssignee(t *testing.T) {
	svc, _, _ := newTestLifecycle()
	item := intakeItem(t, svc, 7)

	_, err := svc.Assign(context.Background(), item.WorkItemID, 10, 0)
	assert.ErrorIs(t, err, ErrAssigneeRequired)
}

func TestTransitionOnMissingItem(t *testing.T) {
	svc, _, _ := newTestLifecycle()
	_, err := svc.Acknowledge(context.Background(), 999, 10)
	assert.ErrorIs(t, err, ErrWorkItemNotFound)
}
