package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/towing-settlement/internal/config"
	"github.com/nurpe/towing-settlement/internal/event"
	"github.com/nurpe/towing-settlement/internal/repository"
)

// EventPublisher receives domain events after the originating write commits.
type EventPublisher interface {
	Publish(ctx context.Context, evt event.DomainEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, event.DomainEvent) {}

// base carries the collaborators shared by every component of the pipeline.
type base struct {
	store    repository.Store
	events   EventPublisher
	settings config.SettlementConfig
	now      func() time.Time
}

func newBase(store repository.Store, events EventPublisher, settings config.SettlementConfig) base {
	if events == nil {
		events = nopPublisher{}
	}
	return base{
		store:    store,
		events:   events,
		settings: settings,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// publish hands committed events to the bus. The write already happened, so
// a caller that goes away must not cancel delivery.
func (b base) publish(ctx context.Context, events ...event.DomainEvent) {
	ctx = context.WithoutCancel(ctx)
	for _, evt := range events {
		b.events.Publish(ctx, evt)
	}
}

func (b base) round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(b.settings.MoneyPlaces)
}

func (b base) nextFolio(ctx context.Context, repo repository.FolioRepository, prefix string, at time.Time) (string, error) {
	seq, err := repo.NextFolio(ctx, prefix, at.Year())
	if err != nil {
		return "", fmt.Errorf("allocate %s folio: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%d-%05d", prefix, at.Year(), seq), nil
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// period normalises an inclusive [start, end] date range into the half-open
// interval used by the stores.
func period(start, end time.Time) (time.Time, time.Time, time.Time, error) {
	if start.IsZero() || end.IsZero() {
		return time.Time{}, time.Time{}, time.Time{}, fmt.Errorf("%w: period dates are required", ErrInvalidInput)
	}
	periodStart := dateOnly(start)
	periodEnd := dateOnly(end)
	if periodStart.After(periodEnd) {
		return time.Time{}, time.Time{}, time.Time{}, fmt.Errorf("%w: period_start must be before or equal to period_end", ErrInvalidInput)
	}
	return periodStart, periodEnd, periodEnd.Add(24 * time.Hour), nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func uuidPtr(id uuid.UUID) *uuid.UUID {
	return &id
}
