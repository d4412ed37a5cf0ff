package eventbus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/towing-settlement/internal/event"
	"github.com/nurpe/towing-settlement/internal/model"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHandler) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, evt.EventType)
	return nil
}

func TestBusDispatchesInOrder(t *testing.T) {
	bus := New(8, zerolog.Nop())
	rec := &recordingHandler{}
	bus.Subscribe("rec", rec)
	bus.Subscribe("failing", HandlerFunc(func(context.Context, event.DomainEvent) error {
		return errors.New("boom")
	}))
	bus.Start(context.Background())

	id := uuid.New()
	bus.Publish(context.Background(), event.NewServiceStatusChanged(event.ServiceStatusPayload{ServiceID: id, Folio: "SRV-1"}))
	bus.Publish(context.Background(), event.NewServiceCompleted(event.ServiceStatusPayload{ServiceID: id, Folio: "SRV-1"}))
	bus.Stop()

	assert.Equal(t, []string{event.TypeServiceStatusChanged, event.TypeServiceCompleted}, rec.events)
}

func TestBusDeliversEveryEventUnderBackpressure(t *testing.T) {
	bus := New(1, zerolog.Nop())
	rec := &recordingHandler{}
	bus.Subscribe("slow", HandlerFunc(func(context.Context, event.DomainEvent) error {
		time.Sleep(2 * time.Millisecond)
		return nil
	}))
	bus.Subscribe("rec", rec)
	bus.Start(context.Background())

	for i := 0; i < 20; i++ {
		bus.Publish(context.Background(), event.NewServiceCompleted(event.ServiceStatusPayload{ServiceID: uuid.New()}))
	}
	bus.Stop()

	assert.Len(t, rec.events, 20)
}

func TestBusPublishGivesUp(t *testing.T) {
	bus := New(1, zerolog.Nop())
	rec := &recordingHandler{}
	bus.Subscribe("rec", rec)

	bus.Publish(context.Background(), event.NewServiceCompleted(event.ServiceStatusPayload{ServiceID: uuid.New()}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, event.NewServiceCompleted(event.ServiceStatusPayload{ServiceID: uuid.New()}))

	bus.Start(context.Background())
	bus.Stop()
	assert.Len(t, rec.events, 1)

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), event.NewServiceCompleted(event.ServiceStatusPayload{ServiceID: uuid.New()}))
	})
	assert.Len(t, rec.events, 1)
}

type fakeLedger struct {
	calls []uuid.UUID
}

func (f *fakeLedger) ComputeForService(_ context.Context, serviceID uuid.UUID) ([]model.CommissionEntry, error) {
	f.calls = append(f.calls, serviceID)
	return nil, nil
}

func TestCommissionConsumerReactsToCompletionAndCrewChanges(t *testing.T) {
	ledger := &fakeLedger{}
	consumer := NewCommissionConsumer(ledger)
	id := uuid.New()

	require.NoError(t, consumer.HandleEvent(context.Background(),
		event.NewServiceStatusChanged(event.ServiceStatusPayload{ServiceID: id})))
	require.NoError(t, consumer.HandleEvent(context.Background(),
		event.NewServiceCompleted(event.ServiceStatusPayload{ServiceID: id})))
	require.NoError(t, consumer.HandleEvent(context.Background(),
		event.NewServiceCrewChanged(event.ServiceCrewPayload{ServiceID: id})))

	assert.Equal(t, []uuid.UUID{id, id}, ledger.calls)
}
