package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct {
		from, to WorkItemState
	}{
		{StateNew, StateReceived},
		{StateNew, StateAssigned}, // legacy direct path
		{StateNew, StateRejected},
		{StateReceived, StateAssigned},
		{StateAssigned, StateInProgress},
		{StateInProgress, StatePendingConfirmation},
		{StateInProgress, StateResolved},
		{StatePendingConfirmation, StateResolved},
		{StatePendingConfirmation, StateRejected},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct {
		from, to WorkItemState
	}{
		{StateNew, StateInProgress},
		{StateNew, StateResolved},
		{StateReceived, StateInProgress},
		{StateAssigned, StateResolved},
		{StateResolved, StateInProgress},
		{StateResolved, StateRejected},
		{StateRejected, StateNew},
		{StateInProgress, StateNew},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StateResolved.IsTerminal())
	assert.True(t, StateRejected.IsTerminal())
	assert.False(t, StateNew.IsTerminal())
	assert.False(t, StatePendingConfirmation.IsTerminal())
}

func TestStateValidity(t *testing.T) {
	assert.True(t, StateInProgress.IsValid())
	assert.False(t, WorkItemState("vanished").IsValid())
}

func TestValidPriority(t *testing.T) {
	assert.True(t, ValidPriority(1))
	assert.True(t, ValidPriority(5))
	assert.False(t, ValidPriority(0))
	assert.False(t, ValidPriority(6))
	assert.False(t, ValidPriority(-1))
}
