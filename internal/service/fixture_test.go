package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/towing-settlement/internal/config"
	"github.com/nurpe/towing-settlement/internal/event"
	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/repository/memory"
)

var (
	admin      = model.Principal{UserID: uuid.New(), OrgID: uuid.New(), Role: model.UserRoleAdmin}
	finance    = model.Principal{UserID: uuid.New(), OrgID: admin.OrgID, Role: model.UserRoleFinance}
	dispatcher = model.Principal{UserID: uuid.New(), OrgID: admin.OrgID, Role: model.UserRoleDispatcher}
	operator   = model.Principal{UserID: uuid.New(), OrgID: admin.OrgID, Role: model.UserRoleOperator}
)

type recorder struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (r *recorder) Publish(_ context.Context, evt event.DomainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, evt := range r.events {
		if evt.EventType == eventType {
			n++
		}
	}
	return n
}

func testSettings() config.SettlementConfig {
	return config.SettlementConfig{
		DefaultTaxRate:  decimal.NewFromInt(19),
		MoneyPlaces:     0,
		Currency:        "CLP",
		ServicePrefix:   "SRV",
		ClosurePrefix:   "CB",
		InvoicePrefix:   "FAC",
		BulkParallelism: 4,
	}
}

type fixture struct {
	ctx        context.Context
	store      *memory.Store
	events     *recorder
	workflow   *Workflow
	batch      *BatchEngine
	settlement *Settlement
	reconciler *Reconciler
	ledger     *CommissionLedger

	client model.Client
	terms  model.PaymentTerms
	day    time.Time
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, testSettings())
}

func newFixtureWith(t *testing.T, settings config.SettlementConfig) *fixture {
	t.Helper()

	store := memory.New()
	events := &recorder{}
	f := &fixture{
		ctx:        context.Background(),
		store:      store,
		events:     events,
		workflow:   NewWorkflow(store, events, settings),
		settlement: NewSettlement(store, events, settings),
		reconciler: NewReconciler(store, events, settings, nil),
		ledger:     NewCommissionLedger(store, events, settings),
		client:     model.Client{ID: uuid.New(), Name: "Constructora Andes", TaxID: "76.123.456-7"},
		terms:      model.PaymentTerms{ID: uuid.New(), Name: "30 days", Days: 30},
		day:        time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
	}
	f.setClock(f.day.AddDate(0, 0, 22).Add(10 * time.Hour))
	f.batch = NewBatchEngine(f.workflow)
	store.PutClient(f.client)
	store.PutPaymentTerms(f.terms)
	return f
}

// setClock pins every component to the given instant.
func (f *fixture) setClock(at time.Time) {
	clock := func() time.Time { return at }
	f.workflow.now = clock
	f.settlement.now = clock
	f.reconciler.now = clock
	f.ledger.now = clock
}

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// pendingService creates a service for the fixture client.
func (f *fixture) pendingService(t *testing.T, subtotal int64, mods ...func(*CreateServiceInput)) *model.Service {
	t.Helper()
	input := CreateServiceInput{
		ClientID:      f.client.ID,
		ScheduledDate: f.day,
		Subtotal:      money(subtotal),
		Total:         money(subtotal),
		Principal:     dispatcher,
	}
	for _, mod := range mods {
		mod(&input)
	}
	service, err := f.workflow.CreateService(f.ctx, input)
	require.NoError(t, err)
	return service
}

func (f *fixture) completedService(t *testing.T, subtotal int64, mods ...func(*CreateServiceInput)) *model.Service {
	t.Helper()
	service := f.pendingService(t, subtotal, mods...)
	service, err := f.workflow.Transition(f.ctx, dispatcher, service.ID, model.ServiceStatusCompleted)
	require.NoError(t, err)
	return service
}

// approvedClosure closes and approves the given subtotals for the period
// around the fixture day.
func (f *fixture) approvedClosure(t *testing.T, subtotals ...int64) *model.BillingClosure {
	t.Helper()
	for _, subtotal := range subtotals {
		f.completedService(t, subtotal)
	}
	closure, err := f.settlement.CreateClosure(f.ctx, CreateClosureInput{
		ClientID:    f.client.ID,
		PeriodStart: f.day.AddDate(0, 0, -9),
		PeriodEnd:   f.day.AddDate(0, 0, 20),
		Principal:   finance,
	})
	require.NoError(t, err)
	closure, err = f.settlement.ApproveClosure(f.ctx, finance, closure.ID)
	require.NoError(t, err)
	return closure
}

func (f *fixture) invoice(t *testing.T, subtotals ...int64) *model.Invoice {
	t.Helper()
	closure := f.approvedClosure(t, subtotals...)
	invoice, err := f.settlement.CreateInvoice(f.ctx, CreateInvoiceInput{
		ClosureID:      closure.ID,
		FiscalFolio:    "DTE-1001",
		PaymentTermsID: f.terms.ID,
		IssueDate:      f.day.AddDate(0, 0, 21),
		Principal:      finance,
	})
	require.NoError(t, err)
	return invoice
}

func (f *fixture) confirmedPayment(t *testing.T, invoiceID *uuid.UUID, amount int64) *model.Payment {
	t.Helper()
	payment, err := f.settlement.RegisterPayment(f.ctx, RegisterPaymentInput{
		ClientID:   f.client.ID,
		InvoiceID:  invoiceID,
		Amount:     money(amount),
		Method:     model.PaymentMethodTransfer,
		ConfirmNow: true,
		Principal:  finance,
	})
	require.NoError(t, err)
	return payment
}
