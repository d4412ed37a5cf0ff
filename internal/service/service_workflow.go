package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/towing-settlement/internal/config"
	"github.com/nurpe/towing-settlement/internal/event"
	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/repository"
)

// CanTransitionService reports whether a user may move a service from one
// status to another. Moves run forward along model.ServiceStatusOrder and
// may skip columns; cancelled is reachable from any status before
// completed. Nothing leaves completed, invoiced or cancelled: completed
// services only advance to invoiced through the settlement pipeline.
func CanTransitionService(from, to model.ServiceStatus) bool {
	if from == to {
		return false
	}
	switch from {
	case model.ServiceStatusCompleted, model.ServiceStatusInvoiced, model.ServiceStatusCancelled:
		return false
	}
	fromRank := from.Rank()
	if fromRank < 0 {
		return false
	}
	if to == model.ServiceStatusCancelled {
		return true
	}
	return to.Rank() > fromRank
}

// Workflow guards every status change on a service.
type Workflow struct {
	base
}

func NewWorkflow(store repository.Store, events EventPublisher, settings config.SettlementConfig) *Workflow {
	return &Workflow{base: newBase(store, events, settings)}
}

type CreateServiceInput struct {
	ClientID            uuid.UUID
	ScheduledDate       time.Time
	Priority            model.ServicePriority
	CraneID             *uuid.UUID
	OperatorID          *uuid.UUID
	AssistantOperatorID *uuid.UUID
	Subtotal            decimal.Decimal
	Total               decimal.Decimal
	QuoteNumber         *string
	PurchaseOrderNumber *string
	Principal           model.Principal
}

func (w *Workflow) CreateService(ctx context.Context, input CreateServiceInput) (*model.Service, error) {
	if !input.Principal.CanDispatch() {
		return nil, ErrPermissionDenied
	}
	if input.ClientID == uuid.Nil {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	if input.ScheduledDate.IsZero() {
		return nil, fmt.Errorf("%w: scheduled_date is required", ErrInvalidInput)
	}
	if input.Subtotal.IsNegative() || input.Total.IsNegative() {
		return nil, fmt.Errorf("%w: amounts must not be negative", ErrInvalidInput)
	}
	if input.Priority == "" {
		input.Priority = model.ServicePriorityNormal
	}
	if !input.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, input.Priority)
	}
	if input.AssistantOperatorID != nil && input.OperatorID != nil && *input.AssistantOperatorID == *input.OperatorID {
		return nil, fmt.Errorf("%w: assistant operator must differ from operator", ErrInvalidInput)
	}

	if _, err := w.store.GetClient(ctx, input.ClientID); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: client %s", ErrNotFound, input.ClientID)
		}
		return nil, dependency(err, "client lookup")
	}

	var created *model.Service
	err := w.store.Transaction(ctx, func(repo repository.Repository) error {
		now := w.now()
		folio, err := w.nextFolio(ctx, repo, w.settings.ServicePrefix, now)
		if err != nil {
			return err
		}
		created, err = repo.CreateService(ctx, model.Service{
			Folio:               folio,
			Status:              model.ServiceStatusPending,
			Priority:            input.Priority,
			ScheduledDate:       input.ScheduledDate.UTC(),
			ClientID:            input.ClientID,
			CraneID:             input.CraneID,
			OperatorID:          input.OperatorID,
			AssistantOperatorID: input.AssistantOperatorID,
			Subtotal:            input.Subtotal,
			Total:               input.Total,
			QuoteNumber:         trimmed(input.QuoteNumber),
			PurchaseOrderNumber: trimmed(input.PurchaseOrderNumber),
			StatusChangedAt:     now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Transition moves a service to target, persisting the change under a row
// lock. Rejected moves return a *TransitionError.
func (w *Workflow) Transition(ctx context.Context, principal model.Principal, serviceID uuid.UUID, target model.ServiceStatus) (*model.Service, error) {
	if !principal.CanDispatch() {
		return nil, ErrPermissionDenied
	}
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, target)
	}

	var (
		updated *model.Service
		events  []event.DomainEvent
	)
	err := w.store.Transaction(ctx, func(repo repository.Repository) error {
		service, err := repo.LockService(ctx, serviceID)
		if err != nil {
			return notFound(err, "service")
		}
		events, err = w.applyStatus(ctx, repo, service, target)
		if err != nil {
			return err
		}
		updated = service
		return nil
	})
	if err != nil {
		return nil, err
	}
	w.publish(ctx, events...)
	return updated, nil
}

// applyStatus validates and writes a status change on a locked service and
// returns the events to publish once the enclosing transaction commits.
func (w *Workflow) applyStatus(ctx context.Context, repo repository.ServiceRepository, service *model.Service, target model.ServiceStatus) ([]event.DomainEvent, error) {
	from := service.Status
	if !CanTransitionService(from, target) {
		return nil, &TransitionError{Entity: "service " + service.Folio, From: string(from), To: string(target)}
	}

	now := w.now()
	service.Status = target
	service.StatusChangedAt = now
	if target == model.ServiceStatusCompleted {
		service.CompletedAt = timePtr(now)
	}
	if err := repo.UpdateService(ctx, *service); err != nil {
		return nil, err
	}

	payload := event.ServiceStatusPayload{
		ServiceID: service.ID,
		Folio:     service.Folio,
		From:      string(from),
		To:        string(target),
	}
	events := []event.DomainEvent{event.NewServiceStatusChanged(payload)}
	if target == model.ServiceStatusCompleted {
		events = append(events, event.NewServiceCompleted(payload))
	}
	return events, nil
}

func (w *Workflow) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	service, err := w.store.GetService(ctx, id)
	if err != nil {
		return nil, notFound(err, "service")
	}
	return service, nil
}

func (w *Workflow) ListServices(ctx context.Context, filter model.ServiceFilter) ([]model.Service, error) {
	return w.store.ListServices(ctx, filter)
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
