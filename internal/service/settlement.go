package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/towing-settlement/internal/config"
	"github.com/nurpe/towing-settlement/internal/event"
	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/repository"
)

var hundred = decimal.NewFromInt(100)

// Settlement turns completed services into closures, invoices and payments.
type Settlement struct {
	base
}

func NewSettlement(store repository.Store, events EventPublisher, settings config.SettlementConfig) *Settlement {
	return &Settlement{base: newBase(store, events, settings)}
}

type CreateClosureInput struct {
	ClientID    uuid.UUID
	PeriodStart time.Time
	PeriodEnd   time.Time
	// TaxRate overrides the configured default, in percent.
	TaxRate   *decimal.Decimal
	Principal model.Principal
}

func (s *Settlement) CreateClosure(ctx context.Context, input CreateClosureInput) (*model.BillingClosure, error) {
	if !input.Principal.CanSettle() {
		return nil, ErrPermissionDenied
	}
	if input.ClientID == uuid.Nil {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	periodStart, periodEnd, periodUntil, err := period(input.PeriodStart, input.PeriodEnd)
	if err != nil {
		return nil, err
	}
	rate := s.settings.DefaultTaxRate
	if input.TaxRate != nil {
		rate = *input.TaxRate
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return nil, fmt.Errorf("%w: tax_rate must be between 0 and 100", ErrInvalidInput)
	}

	if _, err := s.store.GetClient(ctx, input.ClientID); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: client %s", ErrNotFound, input.ClientID)
		}
		return nil, dependency(err, "client lookup")
	}

	var created *model.BillingClosure
	err = s.store.Transaction(ctx, func(repo repository.Repository) error {
		services, err := repo.LockClosableServices(ctx, input.ClientID, periodStart, periodUntil)
		if err != nil {
			return err
		}
		if len(services) == 0 {
			return ErrNoEligibleServices
		}

		subtotal := decimal.Zero
		ids := make([]uuid.UUID, 0, len(services))
		for _, service := range services {
			subtotal = subtotal.Add(service.Subtotal)
			ids = append(ids, service.ID)
		}
		tax := s.round(subtotal.Mul(rate).Div(hundred))

		folio, err := s.nextFolio(ctx, repo, s.settings.ClosurePrefix, s.now())
		if err != nil {
			return err
		}
		created, err = repo.CreateClosure(ctx, model.BillingClosure{
			Folio:         folio,
			ClientID:      input.ClientID,
			PeriodStart:   periodStart,
			PeriodEnd:     periodEnd,
			ServicesCount: len(services),
			Subtotal:      subtotal,
			TaxRate:       rate,
			TaxAmount:     tax,
			Total:         subtotal.Add(tax),
			Status:        model.ClosureStatusDraft,
			CreatedBy:     input.Principal.UserID,
		})
		if err != nil {
			return err
		}
		return repo.AttachServices(ctx, created.ID, ids)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event.NewClosureCreated(closurePayload(created)))
	return created, nil
}

func (s *Settlement) ApproveClosure(ctx context.Context, principal model.Principal, closureID uuid.UUID) (*model.BillingClosure, error) {
	if !principal.CanSettle() {
		return nil, ErrPermissionDenied
	}

	var closure *model.BillingClosure
	err := s.store.Transaction(ctx, func(repo repository.Repository) error {
		var err error
		closure, err = repo.LockClosure(ctx, closureID)
		if err != nil {
			return notFound(err, "billing closure")
		}
		if closure.Status != model.ClosureStatusDraft {
			return fmt.Errorf("%w: closure %s is %s, only draft closures can be approved", ErrInvalidState, closure.Folio, closure.Status)
		}
		closure.Status = model.ClosureStatusApproved
		closure.ApprovedBy = uuidPtr(principal.UserID)
		closure.ApprovedAt = timePtr(s.now())
		return repo.UpdateClosure(ctx, *closure)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event.NewClosureApproved(closurePayload(closure)))
	return closure, nil
}

// DiscardClosure deletes a draft closure and releases its services so they
// can be closed again. Approved closures are kept for audit.
func (s *Settlement) DiscardClosure(ctx context.Context, principal model.Principal, closureID uuid.UUID) error {
	if !principal.CanSettle() {
		return ErrPermissionDenied
	}
	return s.store.Transaction(ctx, func(repo repository.Repository) error {
		closure, err := repo.LockClosure(ctx, closureID)
		if err != nil {
			return notFound(err, "billing closure")
		}
		if closure.Status != model.ClosureStatusDraft {
			return fmt.Errorf("%w: closure %s is %s, only draft closures can be discarded", ErrInvalidState, closure.Folio, closure.Status)
		}
		if err := repo.ReleaseServices(ctx, closure.ID); err != nil {
			return err
		}
		return repo.DeleteClosure(ctx, closure.ID)
	})
}

func (s *Settlement) GetClosure(ctx context.Context, id uuid.UUID) (*model.BillingClosure, error) {
	closure, err := s.store.GetClosure(ctx, id)
	if err != nil {
		return nil, notFound(err, "billing closure")
	}
	return closure, nil
}

func (s *Settlement) ListClosures(ctx context.Context, filter model.ClosureFilter) ([]model.BillingClosure, error) {
	return s.store.ListClosures(ctx, filter)
}

// ClosureDocument gathers everything the closure export renders.
func (s *Settlement) ClosureDocument(ctx context.Context, closureID uuid.UUID) (*model.ClosureDocument, error) {
	closure, err := s.GetClosure(ctx, closureID)
	if err != nil {
		return nil, err
	}
	client, err := s.store.GetClient(ctx, closure.ClientID)
	if err != nil {
		return nil, dependency(err, "client lookup")
	}
	services, err := s.store.ListClosureServices(ctx, closure.ID)
	if err != nil {
		return nil, err
	}
	return &model.ClosureDocument{
		Closure:  *closure,
		Client:   *client,
		Services: services,
		Currency: s.settings.Currency,
	}, nil
}

func closurePayload(closure *model.BillingClosure) event.ClosurePayload {
	return event.ClosurePayload{
		ClosureID: closure.ID,
		ClientID:  closure.ClientID,
		Folio:     closure.Folio,
		Status:    string(closure.Status),
		Total:     closure.Total,
		InvoiceID: closure.InvoiceID,
	}
}

func invoicePayload(invoice *model.Invoice) event.InvoicePayload {
	return event.InvoicePayload{
		InvoiceID:  invoice.ID,
		ClientID:   invoice.ClientID,
		Folio:      invoice.Folio,
		Status:     string(invoice.Status),
		Total:      invoice.Total,
		BalanceDue: invoice.BalanceDue,
	}
}

func paymentPayload(payment *model.Payment) event.PaymentPayload {
	return event.PaymentPayload{
		PaymentID: payment.ID,
		ClientID:  payment.ClientID,
		InvoiceID: payment.InvoiceID,
		Amount:    payment.Amount,
		Status:    string(payment.Status),
	}
}

// concurrent maps a lost optimistic update on an invoice.
func concurrent(err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: invoice was modified concurrently", ErrConcurrentUpdate)
	}
	return err
}
