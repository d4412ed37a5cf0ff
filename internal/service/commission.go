package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/towing-settlement/internal/config"
	"github.com/nurpe/towing-settlement/internal/event"
	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/repository"
)

// CommissionLedger computes operator commissions and groups them into
// liquidations.
type CommissionLedger struct {
	base
}

func NewCommissionLedger(store repository.Store, events EventPublisher, settings config.SettlementConfig) *CommissionLedger {
	return &CommissionLedger{base: newBase(store, events, settings)}
}

// CommissionAmount applies a scheme to a service value.
func CommissionAmount(scheme model.CommissionScheme, value decimal.Decimal, places int32) decimal.Decimal {
	var amount decimal.Decimal
	switch scheme.Type {
	case model.CommissionSchemeFlat:
		amount = scheme.FlatAmount
	case model.CommissionSchemePercentage:
		amount = value.Mul(scheme.Rate).Div(hundred)
	case model.CommissionSchemeTiered:
		tiers := append([]model.CommissionTier(nil), scheme.Tiers...)
		sort.SliceStable(tiers, func(i, j int) bool {
			return tiers[i].MinValue.GreaterThan(tiers[j].MinValue)
		})
		for _, tier := range tiers {
			if tier.MinValue.LessThanOrEqual(value) {
				amount = value.Mul(tier.Rate).Div(hundred)
				break
			}
		}
	}
	return amount.Round(places)
}

// ComputeForService replaces the commission entries of a finished service
// with freshly computed ones, one per operator and role. Calling it again
// yields the same set.
func (l *CommissionLedger) ComputeForService(ctx context.Context, serviceID uuid.UUID) ([]model.CommissionEntry, error) {
	var result []model.CommissionEntry
	err := l.store.Transaction(ctx, func(repo repository.Repository) error {
		service, err := repo.LockService(ctx, serviceID)
		if err != nil {
			return notFound(err, "service")
		}
		if !service.Status.Billable() {
			return fmt.Errorf("%w: service %s is %s, commissions need a completed service", ErrInvalidState, service.Folio, service.Status)
		}
		if err := ensureUnliquidated(ctx, repo, service); err != nil {
			return err
		}
		entries, err := l.buildEntries(ctx, repo, service)
		if err != nil {
			return err
		}
		if err := repo.ReplaceCommissionEntries(ctx, service.ID, entries); err != nil {
			return err
		}
		result, err = repo.ListCommissionEntries(ctx, service.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// buildEntries prices one entry per crew member of a locked service.
func (l *CommissionLedger) buildEntries(ctx context.Context, repo repository.LookupRepository, service *model.Service) ([]model.CommissionEntry, error) {
	type crew struct {
		operatorID uuid.UUID
		role       model.CommissionRole
	}
	var members []crew
	if service.OperatorID != nil {
		members = append(members, crew{*service.OperatorID, model.CommissionRolePrimary})
	}
	if service.AssistantOperatorID != nil {
		members = append(members, crew{*service.AssistantOperatorID, model.CommissionRoleAssistant})
	}

	entries := make([]model.CommissionEntry, 0, len(members))
	for _, member := range members {
		scheme, err := repo.GetCommissionScheme(ctx, member.operatorID)
		if err != nil {
			return nil, dependency(err, "commission scheme for operator "+member.operatorID.String())
		}
		entries = append(entries, model.CommissionEntry{
			ServiceID:        service.ID,
			OperatorID:       member.operatorID,
			Role:             member.role,
			SchemeType:       scheme.Type,
			ServiceValue:     service.Total,
			CommissionAmount: CommissionAmount(*scheme, service.Total, l.settings.MoneyPlaces),
			ServiceDate:      dateOnly(service.ScheduledDate),
		})
	}
	return entries, nil
}

// ensureUnliquidated rejects changes to a service whose commissions are
// already part of a liquidation.
func ensureUnliquidated(ctx context.Context, repo repository.CommissionRepository, service *model.Service) error {
	existing, err := repo.ListCommissionEntries(ctx, service.ID)
	if err != nil {
		return err
	}
	for _, entry := range existing {
		if entry.LiquidationID != nil {
			return fmt.Errorf("%w: commissions of service %s are already liquidated", ErrInvalidState, service.Folio)
		}
	}
	return nil
}

// RecomputeForService is the user-triggered variant of ComputeForService.
func (l *CommissionLedger) RecomputeForService(ctx context.Context, principal model.Principal, serviceID uuid.UUID) ([]model.CommissionEntry, error) {
	if !principal.CanSettle() {
		return nil, ErrPermissionDenied
	}
	return l.ComputeForService(ctx, serviceID)
}

type GenerateLiquidationInput struct {
	OperatorID  uuid.UUID
	PeriodStart time.Time
	PeriodEnd   time.Time
	Principal   model.Principal
}

func (l *CommissionLedger) GenerateLiquidation(ctx context.Context, input GenerateLiquidationInput) (*model.CommissionLiquidation, error) {
	if !input.Principal.CanSettle() {
		return nil, ErrPermissionDenied
	}
	if input.OperatorID == uuid.Nil {
		return nil, fmt.Errorf("%w: operator_id is required", ErrInvalidInput)
	}
	periodStart, periodEnd, periodUntil, err := period(input.PeriodStart, input.PeriodEnd)
	if err != nil {
		return nil, err
	}
	if _, err := l.store.GetOperator(ctx, input.OperatorID); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: operator %s", ErrNotFound, input.OperatorID)
		}
		return nil, dependency(err, "operator lookup")
	}

	var liquidation *model.CommissionLiquidation
	err = l.store.Transaction(ctx, func(repo repository.Repository) error {
		entries, err := repo.LockUnliquidatedEntries(ctx, input.OperatorID, periodStart, periodUntil)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return ErrNoEntriesInPeriod
		}

		services := make(map[uuid.UUID]struct{}, len(entries))
		ids := make([]uuid.UUID, 0, len(entries))
		value, amount := decimal.Zero, decimal.Zero
		for _, entry := range entries {
			if _, seen := services[entry.ServiceID]; !seen {
				services[entry.ServiceID] = struct{}{}
				value = value.Add(entry.ServiceValue)
			}
			amount = amount.Add(entry.CommissionAmount)
			ids = append(ids, entry.ID)
		}

		liquidation, err = repo.CreateLiquidation(ctx, model.CommissionLiquidation{
			OperatorID:         input.OperatorID,
			PeriodStart:        periodStart,
			PeriodEnd:          periodEnd,
			ServicesCount:      len(services),
			TotalServicesValue: value,
			TotalAmount:        amount,
			Status:             model.LiquidationStatusPending,
		})
		if err != nil {
			return err
		}
		return repo.BindEntries(ctx, liquidation.ID, ids)
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, event.NewLiquidationGenerated(liquidationPayload(liquidation)))
	return liquidation, nil
}

func (l *CommissionLedger) ApproveLiquidation(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.CommissionLiquidation, error) {
	return l.advanceLiquidation(ctx, principal, id, model.LiquidationStatusPending, model.LiquidationStatusApproved)
}

func (l *CommissionLedger) MarkLiquidationPaid(ctx context.Context, principal model.Principal, id uuid.UUID) (*model.CommissionLiquidation, error) {
	return l.advanceLiquidation(ctx, principal, id, model.LiquidationStatusApproved, model.LiquidationStatusPaid)
}

func (l *CommissionLedger) advanceLiquidation(ctx context.Context, principal model.Principal, id uuid.UUID, from, to model.LiquidationStatus) (*model.CommissionLiquidation, error) {
	if !principal.CanSettle() {
		return nil, ErrPermissionDenied
	}

	var liquidation *model.CommissionLiquidation
	err := l.store.Transaction(ctx, func(repo repository.Repository) error {
		var err error
		liquidation, err = repo.LockLiquidation(ctx, id)
		if err != nil {
			return notFound(err, "commission liquidation")
		}
		if liquidation.Status != from {
			return &TransitionError{Entity: "liquidation", From: string(liquidation.Status), To: string(to)}
		}
		now := l.now()
		liquidation.Status = to
		switch to {
		case model.LiquidationStatusApproved:
			liquidation.ApprovedBy = uuidPtr(principal.UserID)
			liquidation.ApprovedAt = timePtr(now)
		case model.LiquidationStatusPaid:
			liquidation.PaidAt = timePtr(now)
		}
		return repo.UpdateLiquidation(ctx, *liquidation)
	})
	if err != nil {
		return nil, err
	}

	l.publish(ctx, event.NewLiquidationStatusChanged(liquidationPayload(liquidation)))
	return liquidation, nil
}

func (l *CommissionLedger) ListServiceEntries(ctx context.Context, serviceID uuid.UUID) ([]model.CommissionEntry, error) {
	return l.store.ListCommissionEntries(ctx, serviceID)
}

func (l *CommissionLedger) ListOperatorEntries(ctx context.Context, operatorID uuid.UUID, liquidationID *uuid.UUID) ([]model.CommissionEntry, error) {
	return l.store.ListOperatorEntries(ctx, operatorID, liquidationID)
}

func (l *CommissionLedger) GetLiquidation(ctx context.Context, id uuid.UUID) (*model.CommissionLiquidation, error) {
	liquidation, err := l.store.GetLiquidation(ctx, id)
	if err != nil {
		return nil, notFound(err, "commission liquidation")
	}
	return liquidation, nil
}

func (l *CommissionLedger) ListLiquidations(ctx context.Context, filter model.LiquidationFilter) ([]model.CommissionLiquidation, error) {
	return l.store.ListLiquidations(ctx, filter)
}

func liquidationPayload(liquidation *model.CommissionLiquidation) event.LiquidationPayload {
	return event.LiquidationPayload{
		LiquidationID: liquidation.ID,
		OperatorID:    liquidation.OperatorID,
		Status:        string(liquidation.Status),
		TotalAmount:   liquidation.TotalAmount,
	}
}
