package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/repository"
)

func sortEntries(entries []model.CommissionEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].ServiceDate.Equal(entries[j].ServiceDate) {
			return entries[i].ServiceDate.Before(entries[j].ServiceDate)
		}
		if entries[i].Role != entries[j].Role {
			return entries[i].Role < entries[j].Role
		}
		return entries[i].OperatorID.String() < entries[j].OperatorID.String()
	})
}

func (r *txRepo) ListCommissionEntries(_ context.Context, serviceID uuid.UUID) ([]model.CommissionEntry, error) {
	var result []model.CommissionEntry
	for _, entry := range r.state.entries {
		if entry.ServiceID == serviceID {
			result = append(result, entry)
		}
	}
	sortEntries(result)
	return result, nil
}

func (r *txRepo) ListOperatorEntries(_ context.Context, operatorID uuid.UUID, liquidationID *uuid.UUID) ([]model.CommissionEntry, error) {
	var result []model.CommissionEntry
	for _, entry := range r.state.entries {
		if entry.OperatorID != operatorID {
			continue
		}
		if liquidationID != nil && (entry.LiquidationID == nil || *entry.LiquidationID != *liquidationID) {
			continue
		}
		result = append(result, entry)
	}
	sortEntries(result)
	return result, nil
}

func (r *txRepo) ReplaceCommissionEntries(_ context.Context, serviceID uuid.UUID, entries []model.CommissionEntry) error {
	for id, entry := range r.state.entries {
		if entry.ServiceID == serviceID {
			delete(r.state.entries, id)
		}
	}
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		key := fmt.Sprintf("%s/%s", entry.OperatorID, entry.Role)
		if _, dup := seen[key]; dup {
			return repository.ErrConflict
		}
		seen[key] = struct{}{}

		entry.ID = uuid.New()
		entry.ServiceID = serviceID
		entry.LiquidationID = nil
		entry.CreatedAt = r.now()
		r.state.entries[entry.ID] = entry
	}
	return nil
}

func (r *txRepo) LockUnliquidatedEntries(_ context.Context, operatorID uuid.UUID, from, to time.Time) ([]model.CommissionEntry, error) {
	var result []model.CommissionEntry
	for _, entry := range r.state.entries {
		if entry.OperatorID != operatorID || entry.LiquidationID != nil {
			continue
		}
		if inRange(entry.ServiceDate, from, to) {
			result = append(result, entry)
		}
	}
	sortEntries(result)
	return result, nil
}

func (r *txRepo) BindEntries(_ context.Context, liquidationID uuid.UUID, entryIDs []uuid.UUID) error {
	for _, id := range entryIDs {
		entry, ok := r.state.entries[id]
		if !ok {
			return notFound("commission entry", id)
		}
		liquidation := liquidationID
		entry.LiquidationID = &liquidation
		r.state.entries[id] = entry
	}
	return nil
}

func (r *txRepo) CreateLiquidation(_ context.Context, liquidation model.CommissionLiquidation) (*model.CommissionLiquidation, error) {
	liquidation.ID = uuid.New()
	liquidation.CreatedAt = r.now()
	r.state.liquidations[liquidation.ID] = liquidation
	return &liquidation, nil
}

func (r *txRepo) GetLiquidation(_ context.Context, id uuid.UUID) (*model.CommissionLiquidation, error) {
	liquidation, ok := r.state.liquidations[id]
	if !ok {
		return nil, notFound("commission liquidation", id)
	}
	return &liquidation, nil
}

func (r *txRepo) LockLiquidation(ctx context.Context, id uuid.UUID) (*model.CommissionLiquidation, error) {
	return r.GetLiquidation(ctx, id)
}

func (r *txRepo) UpdateLiquidation(_ context.Context, liquidation model.CommissionLiquidation) error {
	existing, ok := r.state.liquidations[liquidation.ID]
	if !ok {
		return notFound("commission liquidation", liquidation.ID)
	}
	existing.Status = liquidation.Status
	existing.ApprovedBy = liquidation.ApprovedBy
	existing.ApprovedAt = liquidation.ApprovedAt
	existing.PaidAt = liquidation.PaidAt
	r.state.liquidations[liquidation.ID] = existing
	return nil
}

func (r *txRepo) ListLiquidations(_ context.Context, filter model.LiquidationFilter) ([]model.CommissionLiquidation, error) {
	var result []model.CommissionLiquidation
	for _, liquidation := range r.state.liquidations {
		if filter.OperatorID != nil && liquidation.OperatorID != *filter.OperatorID {
			continue
		}
		if filter.Status != nil && liquidation.Status != *filter.Status {
			continue
		}
		result = append(result, liquidation)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PeriodStart.After(result[j].PeriodStart)
	})
	return result, nil
}

func (r *txRepo) GetClient(_ context.Context, id uuid.UUID) (*model.Client, error) {
	client, ok := r.state.clients[id]
	if !ok {
		return nil, notFound("client", id)
	}
	return &client, nil
}

func (r *txRepo) GetOperator(_ context.Context, id uuid.UUID) (*model.Operator, error) {
	operator, ok := r.state.operators[id]
	if !ok {
		return nil, notFound("operator", id)
	}
	return &operator, nil
}

func (r *txRepo) GetCommissionScheme(_ context.Context, operatorID uuid.UUID) (*model.CommissionScheme, error) {
	scheme, ok := r.state.schemes[operatorID]
	if !ok {
		return nil, notFound("commission scheme", operatorID)
	}
	return &scheme, nil
}

func (r *txRepo) GetPaymentTerms(_ context.Context, id uuid.UUID) (*model.PaymentTerms, error) {
	terms, ok := r.state.terms[id]
	if !ok {
		return nil, notFound("payment terms", id)
	}
	return &terms, nil
}

func (r *txRepo) NextFolio(_ context.Context, prefix string, year int) (int64, error) {
	key := fmt.Sprintf("%s/%d", prefix, year)
	r.state.folios[key]++
	return r.state.folios[key], nil
}
