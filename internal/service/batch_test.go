package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/towing-settlement/internal/model"
)

func quote(v string) *string { return &v }

func collect(events *[]BatchEvent) ProgressFunc {
	return func(evt BatchEvent) { *events = append(*events, evt) }
}

func TestBatchEngine_Apply(t *testing.T) {
	f := newFixture(t)
	a := f.pendingService(t, 100000)
	b := f.pendingService(t, 50000)

	var progress []BatchEvent
	result, err := f.batch.Apply(f.ctx, dispatcher, []BatchItem{
		{ServiceID: a.ID, Patch: ReferencePatch{QuoteNumber: quote("COT-77")}},
		{ServiceID: b.ID, Patch: StatusPatch{Status: model.ServiceStatusDispatched}},
		{ServiceID: a.ID, Patch: PriorityPatch{Priority: model.ServicePriorityUrgent}},
	}, collect(&progress))
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Applied)
	assert.Nil(t, result.Failed)

	require.Len(t, progress, 5)
	assert.Equal(t, BatchPhaseStart, progress[0].Phase)
	assert.Equal(t, 3, progress[0].Total)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, BatchPhaseProgress, progress[i].Phase)
		assert.Equal(t, i, progress[i].Current)
	}
	assert.Equal(t, b.ID, *progress[2].ItemID)
	assert.Equal(t, BatchPhaseComplete, progress[4].Phase)

	storedA, err := f.workflow.GetService(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "COT-77", *storedA.QuoteNumber)
	assert.Equal(t, model.ServicePriorityUrgent, storedA.Priority)

	storedB, err := f.workflow.GetService(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ServiceStatusDispatched, storedB.Status)
}

func TestBatchEngine_Apply_StopsAtFailingItem(t *testing.T) {
	f := newFixture(t)
	first := f.pendingService(t, 1000)
	second := f.pendingService(t, 2000)
	done := f.completedService(t, 3000)
	last := f.pendingService(t, 4000)

	var progress []BatchEvent
	result, err := f.batch.Apply(f.ctx, dispatcher, []BatchItem{
		{ServiceID: first.ID, Patch: StatusPatch{Status: model.ServiceStatusDispatched}},
		{ServiceID: second.ID, Patch: StatusPatch{Status: model.ServiceStatusDispatched}},
		{ServiceID: done.ID, Patch: StatusPatch{Status: model.ServiceStatusPending}},
		{ServiceID: last.ID, Patch: StatusPatch{Status: model.ServiceStatusDispatched}},
	}, collect(&progress))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 3, batchErr.Index)
	assert.Equal(t, done.ID, batchErr.ItemID)
	assert.Equal(t, 2, batchErr.Applied)
	assert.Equal(t, 2, result.Applied)
	assert.Same(t, batchErr, result.Failed)

	phases := make([]BatchPhase, 0, len(progress))
	for _, evt := range progress {
		phases = append(phases, evt.Phase)
	}
	assert.Equal(t, []BatchPhase{BatchPhaseStart, BatchPhaseProgress, BatchPhaseProgress, BatchPhaseError}, phases)
	assert.Equal(t, done.ID, *progress[3].ItemID)

	for _, id := range []uuid.UUID{first.ID, second.ID} {
		stored, err := f.workflow.GetService(f.ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.ServiceStatusDispatched, stored.Status)
	}
	untouched, err := f.workflow.GetService(f.ctx, last.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ServiceStatusPending, untouched.Status)
}

func TestBatchEngine_Apply_Atomic(t *testing.T) {
	settings := testSettings()
	settings.BatchAtomic = true
	f := newFixtureWith(t, settings)
	first := f.pendingService(t, 1000)
	missing := uuid.New()

	result, err := f.batch.Apply(f.ctx, dispatcher, []BatchItem{
		{ServiceID: first.ID, Patch: StatusPatch{Status: model.ServiceStatusDispatched}},
		{ServiceID: missing, Patch: StatusPatch{Status: model.ServiceStatusDispatched}},
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, result.Atomic)
	assert.Equal(t, 0, result.Applied)
	assert.Equal(t, 2, result.Failed.Index)

	stored, err := f.workflow.GetService(f.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ServiceStatusPending, stored.Status)
}

func TestBatchEngine_Apply_ValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t)
	service := f.pendingService(t, 1000)

	var progress []BatchEvent
	_, err := f.batch.Apply(f.ctx, dispatcher, []BatchItem{
		{ServiceID: service.ID, Patch: StatusPatch{Status: model.ServiceStatusDispatched}},
		{ServiceID: service.ID, Patch: PriorityPatch{Priority: "whenever"}},
	}, collect(&progress))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, progress)

	stored, err := f.workflow.GetService(f.ctx, service.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ServiceStatusPending, stored.Status)
}

func TestBatchEngine_Apply_RejectsClosedServices(t *testing.T) {
	f := newFixture(t)
	f.approvedClosure(t, 1000)
	services, err := f.workflow.ListServices(f.ctx, model.ServiceFilter{})
	require.NoError(t, err)
	require.Len(t, services, 1)

	_, err = f.batch.Apply(f.ctx, dispatcher, []BatchItem{
		{ServiceID: services[0].ID, Patch: ReferencePatch{PurchaseOrderNumber: quote("OC-9")}},
	}, nil)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestBatchEngine_Apply_CancelledContext(t *testing.T) {
	f := newFixture(t)
	service := f.pendingService(t, 1000)
	ctx, cancel := context.WithCancel(f.ctx)
	cancel()

	result, err := f.batch.Apply(ctx, dispatcher, []BatchItem{
		{ServiceID: service.ID, Patch: StatusPatch{Status: model.ServiceStatusDispatched}},
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Applied)
}
