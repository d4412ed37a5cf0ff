package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/towing-settlement/internal/model"
)

func TestCommissionAmount(t *testing.T) {
	tiered := model.CommissionScheme{
		Type: model.CommissionSchemeTiered,
		Tiers: []model.CommissionTier{
			{MinValue: money(0), Rate: money(5)},
			{MinValue: money(500000), Rate: money(10)},
			{MinValue: money(100000), Rate: money(7)},
		},
	}
	tests := []struct {
		name   string
		scheme model.CommissionScheme
		value  int64
		want   int64
	}{
		{"flat", model.CommissionScheme{Type: model.CommissionSchemeFlat, FlatAmount: money(15000)}, 178500, 15000},
		{"percentage", model.CommissionScheme{Type: model.CommissionSchemePercentage, Rate: money(12)}, 150000, 18000},
		{"percentage rounds", model.CommissionScheme{Type: model.CommissionSchemePercentage, Rate: decimal.RequireFromString("2.5")}, 10001, 250},
		{"tiered lowest", tiered, 50000, 2500},
		{"tiered boundary", tiered, 100000, 7000},
		{"tiered highest", tiered, 600000, 60000},
		{"tiered below every tier", model.CommissionScheme{Type: model.CommissionSchemeTiered, Tiers: []model.CommissionTier{{MinValue: money(1000), Rate: money(5)}}}, 500, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CommissionAmount(tt.scheme, money(tt.value), 0)
			assert.True(t, money(tt.want).Equal(got), "got %s", got)
		})
	}
}

type crewFixture struct {
	*fixture
	primary   uuid.UUID
	assistant uuid.UUID
}

func newCrewFixture(t *testing.T) *crewFixture {
	f := &crewFixture{fixture: newFixture(t), primary: uuid.New(), assistant: uuid.New()}
	f.store.PutOperator(model.Operator{ID: f.primary, FullName: "Juan Pérez", Active: true})
	f.store.PutOperator(model.Operator{ID: f.assistant, FullName: "Ana Soto", Active: true})
	f.store.PutCommissionScheme(model.CommissionScheme{OperatorID: f.primary, Type: model.CommissionSchemePercentage, Rate: money(10)})
	f.store.PutCommissionScheme(model.CommissionScheme{OperatorID: f.assistant, Type: model.CommissionSchemeFlat, FlatAmount: money(5000)})
	return f
}

func (f *crewFixture) crewed(in *CreateServiceInput) {
	in.OperatorID = &f.primary
	in.AssistantOperatorID = &f.assistant
}

func TestCommissionLedger_ComputeForService(t *testing.T) {
	f := newCrewFixture(t)
	service := f.completedService(t, 100000, f.crewed)

	entries, err := f.ledger.ComputeForService(f.ctx, service.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byRole := map[model.CommissionRole]model.CommissionEntry{}
	for _, entry := range entries {
		byRole[entry.Role] = entry
	}
	assert.Equal(t, f.primary, byRole[model.CommissionRolePrimary].OperatorID)
	assert.True(t, money(10000).Equal(byRole[model.CommissionRolePrimary].CommissionAmount))
	assert.Equal(t, f.assistant, byRole[model.CommissionRoleAssistant].OperatorID)
	assert.True(t, money(5000).Equal(byRole[model.CommissionRoleAssistant].CommissionAmount))
}

func TestCommissionLedger_ComputeForService_Idempotent(t *testing.T) {
	f := newCrewFixture(t)
	service := f.completedService(t, 100000, f.crewed)

	first, err := f.ledger.ComputeForService(f.ctx, service.ID)
	require.NoError(t, err)
	second, err := f.ledger.ComputeForService(f.ctx, service.ID)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	key := func(entries []model.CommissionEntry) map[string]string {
		out := map[string]string{}
		for _, entry := range entries {
			out[entry.OperatorID.String()+"/"+string(entry.Role)] = entry.CommissionAmount.String()
		}
		return out
	}
	assert.Equal(t, key(first), key(second))

	stored, err := f.ledger.ListServiceEntries(f.ctx, service.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestCommissionLedger_ComputeForService_Errors(t *testing.T) {
	f := newCrewFixture(t)
	pending := f.pendingService(t, 1000, f.crewed)

	_, err := f.ledger.ComputeForService(f.ctx, pending.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	stranger := uuid.New()
	done := f.completedService(t, 1000, func(in *CreateServiceInput) { in.OperatorID = &stranger })
	_, err = f.ledger.ComputeForService(f.ctx, done.ID)
	assert.ErrorIs(t, err, ErrDependencyUnavailable)

	_, err = f.ledger.RecomputeForService(f.ctx, operator, done.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestCommissionLedger_Liquidation(t *testing.T) {
	f := newCrewFixture(t)
	a := f.completedService(t, 100000, f.crewed)
	b := f.completedService(t, 50000, f.crewed)
	outside := f.completedService(t, 70000, func(in *CreateServiceInput) {
		f.crewed(in)
		in.ScheduledDate = f.day.AddDate(0, 1, 0)
	})
	for _, service := range []*model.Service{a, b, outside} {
		_, err := f.ledger.ComputeForService(f.ctx, service.ID)
		require.NoError(t, err)
	}

	input := GenerateLiquidationInput{
		OperatorID:  f.primary,
		PeriodStart: f.day.AddDate(0, 0, -9),
		PeriodEnd:   f.day.AddDate(0, 0, 20),
		Principal:   finance,
	}
	liquidation, err := f.ledger.GenerateLiquidation(f.ctx, input)
	require.NoError(t, err)
	assert.Equal(t, model.LiquidationStatusPending, liquidation.Status)
	assert.Equal(t, 2, liquidation.ServicesCount)
	assert.True(t, money(150000).Equal(liquidation.TotalServicesValue))
	assert.True(t, money(15000).Equal(liquidation.TotalAmount))

	bound, err := f.ledger.ListOperatorEntries(f.ctx, f.primary, &liquidation.ID)
	require.NoError(t, err)
	assert.Len(t, bound, 2)

	_, err = f.ledger.GenerateLiquidation(f.ctx, input)
	assert.ErrorIs(t, err, ErrNoEntriesInPeriod, "entries are liquidated once")

	_, err = f.ledger.ComputeForService(f.ctx, a.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "liquidated entries are frozen")

	_, err = f.ledger.MarkLiquidationPaid(f.ctx, finance, liquidation.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	approved, err := f.ledger.ApproveLiquidation(f.ctx, finance, liquidation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LiquidationStatusApproved, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)

	paid, err := f.ledger.MarkLiquidationPaid(f.ctx, finance, liquidation.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LiquidationStatusPaid, paid.Status)
	assert.NotNil(t, paid.PaidAt)

	_, err = f.ledger.ApproveLiquidation(f.ctx, finance, liquidation.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCommissionLedger_GenerateLiquidation_Errors(t *testing.T) {
	f := newCrewFixture(t)

	input := GenerateLiquidationInput{OperatorID: f.primary, PeriodStart: f.day, PeriodEnd: f.day, Principal: finance}
	_, err := f.ledger.GenerateLiquidation(f.ctx, input)
	assert.ErrorIs(t, err, ErrNoEntriesInPeriod)

	input.OperatorID = uuid.New()
	_, err = f.ledger.GenerateLiquidation(f.ctx, input)
	assert.ErrorIs(t, err, ErrNotFound)

	input.Principal = dispatcher
	_, err = f.ledger.GenerateLiquidation(f.ctx, input)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
