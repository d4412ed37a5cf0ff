package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/towing-settlement/internal/event"
	"github.com/nurpe/towing-settlement/internal/model"
)

func TestCanTransitionService(t *testing.T) {
	tests := []struct {
		from, to model.ServiceStatus
		want     bool
	}{
		{model.ServiceStatusPending, model.ServiceStatusDispatched, true},
		{model.ServiceStatusPending, model.ServiceStatusOnSite, true},
		{model.ServiceStatusInTransit, model.ServiceStatusCompleted, true},
		{model.ServiceStatusInProgress, model.ServiceStatusCompleted, true},
		{model.ServiceStatusPending, model.ServiceStatusCancelled, true},
		{model.ServiceStatusInProgress, model.ServiceStatusCancelled, true},
		{model.ServiceStatusPending, model.ServiceStatusPending, false},
		{model.ServiceStatusOnSite, model.ServiceStatusDispatched, false},
		{model.ServiceStatusPending, model.ServiceStatusInvoiced, false},
		{model.ServiceStatusCompleted, model.ServiceStatusInvoiced, false},
		{model.ServiceStatusCompleted, model.ServiceStatusCancelled, false},
		{model.ServiceStatusCompleted, model.ServiceStatusInProgress, false},
		{model.ServiceStatusInvoiced, model.ServiceStatusCancelled, false},
		{model.ServiceStatusCancelled, model.ServiceStatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransitionService(tt.from, tt.to))
		})
	}
}

func TestWorkflow_CreateService(t *testing.T) {
	f := newFixture(t)

	first := f.pendingService(t, 100000)
	second := f.pendingService(t, 50000)

	assert.Equal(t, model.ServiceStatusPending, first.Status)
	assert.Equal(t, model.ServicePriorityNormal, first.Priority)
	assert.Equal(t, "SRV-2026-00001", first.Folio)
	assert.Equal(t, "SRV-2026-00002", second.Folio)
}

func TestWorkflow_CreateService_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.workflow.CreateService(f.ctx, CreateServiceInput{ClientID: f.client.ID, ScheduledDate: f.day, Principal: operator})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.workflow.CreateService(f.ctx, CreateServiceInput{ClientID: f.client.ID, ScheduledDate: f.day, Subtotal: money(-1), Principal: dispatcher})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.workflow.CreateService(f.ctx, CreateServiceInput{ClientID: uuid.New(), ScheduledDate: f.day, Principal: dispatcher})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorkflow_Transition(t *testing.T) {
	f := newFixture(t)
	service := f.pendingService(t, 100000)

	moved, err := f.workflow.Transition(f.ctx, dispatcher, service.ID, model.ServiceStatusDispatched)
	require.NoError(t, err)
	assert.Equal(t, model.ServiceStatusDispatched, moved.Status)
	assert.Nil(t, moved.CompletedAt)

	moved, err = f.workflow.Transition(f.ctx, dispatcher, service.ID, model.ServiceStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.ServiceStatusCompleted, moved.Status)
	require.NotNil(t, moved.CompletedAt)

	stored, err := f.workflow.GetService(f.ctx, service.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ServiceStatusCompleted, stored.Status)

	assert.Equal(t, 2, f.events.count(event.TypeServiceStatusChanged))
	assert.Equal(t, 1, f.events.count(event.TypeServiceCompleted))
}

func TestWorkflow_Transition_Rejected(t *testing.T) {
	f := newFixture(t)
	service := f.completedService(t, 100000)

	_, err := f.workflow.Transition(f.ctx, dispatcher, service.ID, model.ServiceStatusInProgress)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var transitionErr *TransitionError
	require.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, string(model.ServiceStatusCompleted), transitionErr.From)
	assert.Equal(t, string(model.ServiceStatusInProgress), transitionErr.To)

	stored, err := f.workflow.GetService(f.ctx, service.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ServiceStatusCompleted, stored.Status)
}

func TestWorkflow_Transition_Cancel(t *testing.T) {
	f := newFixture(t)
	service := f.pendingService(t, 100000)

	cancelled, err := f.workflow.Transition(f.ctx, dispatcher, service.ID, model.ServiceStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.ServiceStatusCancelled, cancelled.Status)

	_, err = f.workflow.Transition(f.ctx, dispatcher, service.ID, model.ServiceStatusDispatched)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWorkflow_Transition_Errors(t *testing.T) {
	f := newFixture(t)
	service := f.pendingService(t, 100000)

	_, err := f.workflow.Transition(f.ctx, finance, service.ID, model.ServiceStatusDispatched)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.workflow.Transition(f.ctx, dispatcher, service.ID, model.ServiceStatus("parked"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.workflow.Transition(f.ctx, dispatcher, uuid.New(), model.ServiceStatusDispatched)
	assert.ErrorIs(t, err, ErrNotFound)
}
