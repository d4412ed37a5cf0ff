// Package memory is an in-process repository.Store. Transactions are
// serialised and run against a copy of the state that replaces the live
// state only when the callback succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/repository"
)

type state struct {
	services     map[uuid.UUID]model.Service
	closures     map[uuid.UUID]model.BillingClosure
	invoices     map[uuid.UUID]model.Invoice
	payments     map[uuid.UUID]model.Payment
	bankTxs      map[uuid.UUID]model.BankTransaction
	entries      map[uuid.UUID]model.CommissionEntry
	liquidations map[uuid.UUID]model.CommissionLiquidation
	clients      map[uuid.UUID]model.Client
	operators    map[uuid.UUID]model.Operator
	schemes      map[uuid.UUID]model.CommissionScheme
	terms        map[uuid.UUID]model.PaymentTerms
	folios       map[string]int64
}

func newState() *state {
	return &state{
		services:     map[uuid.UUID]model.Service{},
		closures:     map[uuid.UUID]model.BillingClosure{},
		invoices:     map[uuid.UUID]model.Invoice{},
		payments:     map[uuid.UUID]model.Payment{},
		bankTxs:      map[uuid.UUID]model.BankTransaction{},
		entries:      map[uuid.UUID]model.CommissionEntry{},
		liquidations: map[uuid.UUID]model.CommissionLiquidation{},
		clients:      map[uuid.UUID]model.Client{},
		operators:    map[uuid.UUID]model.Operator{},
		schemes:      map[uuid.UUID]model.CommissionScheme{},
		terms:        map[uuid.UUID]model.PaymentTerms{},
		folios:       map[string]int64{},
	}
}

func (s *state) clone() *state {
	return &state{
		services:     cloneMap(s.services),
		closures:     cloneMap(s.closures),
		invoices:     cloneMap(s.invoices),
		payments:     cloneMap(s.payments),
		bankTxs:      cloneMap(s.bankTxs),
		entries:      cloneMap(s.entries),
		liquidations: cloneMap(s.liquidations),
		clients:      cloneMap(s.clients),
		operators:    cloneMap(s.operators),
		schemes:      cloneMap(s.schemes),
		terms:        cloneMap(s.terms),
		folios:       cloneMap(s.folios),
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Store implements repository.Store in memory.
type Store struct {
	mu    sync.RWMutex
	state *state
	now   func() time.Time
}

func New() *Store {
	return &Store{state: newState(), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Transaction(ctx context.Context, fn func(repo repository.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&txRepo{state: working, now: s.now}); err != nil {
		return err
	}
	s.state = working
	return nil
}

// read runs fn against the live state under a read lock.
func (s *Store) read(fn func(r *txRepo) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&txRepo{state: s.state, now: s.now})
}

// write runs a single autocommitted statement.
func (s *Store) write(ctx context.Context, fn func(r *txRepo) error) error {
	return s.Transaction(ctx, func(repo repository.Repository) error {
		return fn(repo.(*txRepo))
	})
}

// Seeding helpers for catalog data owned by other screens.

func (s *Store) PutClient(client model.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.clients[client.ID] = client
}

func (s *Store) PutOperator(operator model.Operator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.operators[operator.ID] = operator
}

func (s *Store) PutCommissionScheme(scheme model.CommissionScheme) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.schemes[scheme.OperatorID] = scheme
}

func (s *Store) PutPaymentTerms(terms model.PaymentTerms) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.terms[terms.ID] = terms
}

// txRepo is the repository view over one state snapshot.
type txRepo struct {
	state *state
	now   func() time.Time
}

var _ repository.Store = (*Store)(nil)
var _ repository.Repository = (*txRepo)(nil)

func notFound(kind string, id uuid.UUID) error {
	return fmt.Errorf("%s %s: %w", kind, id, repository.ErrNotFound)
}

func sortServices(services []model.Service) {
	sort.SliceStable(services, func(i, j int) bool {
		if !services[i].ScheduledDate.Equal(services[j].ScheduledDate) {
			return services[i].ScheduledDate.Before(services[j].ScheduledDate)
		}
		return services[i].Folio < services[j].Folio
	})
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func sumDecimal(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
