package eventbus

import (
	"context"

	"github.com/google/uuid"

	"github.com/nurpe/towing-settlement/internal/event"
	"github.com/nurpe/towing-settlement/internal/model"
)

type CommissionComputer interface {
	ComputeForService(ctx context.Context, serviceID uuid.UUID) ([]model.CommissionEntry, error)
}

// CommissionConsumer recomputes commission entries when a service completes
// or its crew changes afterwards.
type CommissionConsumer struct {
	ledger CommissionComputer
}

func NewCommissionConsumer(ledger CommissionComputer) *CommissionConsumer {
	return &CommissionConsumer{ledger: ledger}
}

func (c *CommissionConsumer) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	switch evt.EventType {
	case event.TypeServiceCompleted, event.TypeServiceCrewChanged:
	default:
		return nil
	}
	serviceID, ok := evt.Subject("service")
	if !ok {
		return nil
	}
	_, err := c.ledger.ComputeForService(ctx, serviceID)
	return err
}
