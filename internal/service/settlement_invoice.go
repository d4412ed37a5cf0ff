package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nurpe/towing-settlement/internal/event"
	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/repository"
)

// DeriveInvoiceStatus computes the status implied by the invoice balance
// and due date. Draft invoices only leave draft when sent or settled: an
// invoice the client has never received cannot be overdue, so the overdue
// rule (due_date < today with a positive balance) applies from sent
// onwards and a past-due draft stays draft until SendInvoice re-derives it.
func DeriveInvoiceStatus(invoice model.Invoice, now time.Time) model.InvoiceStatus {
	switch {
	case invoice.Status == model.InvoiceStatusCancelled:
		return model.InvoiceStatusCancelled
	case !invoice.BalanceDue.IsPositive():
		return model.InvoiceStatusPaid
	case invoice.Status == model.InvoiceStatusDraft:
		if invoice.BalanceDue.LessThan(invoice.Total) {
			return model.InvoiceStatusPartial
		}
		return model.InvoiceStatusDraft
	case invoice.DueDate.Before(dateOnly(now)):
		return model.InvoiceStatusOverdue
	case invoice.BalanceDue.LessThan(invoice.Total):
		return model.InvoiceStatusPartial
	case invoice.Status == model.InvoiceStatusSent:
		return model.InvoiceStatusSent
	default:
		return model.InvoiceStatusPending
	}
}

type CreateInvoiceInput struct {
	ClosureID      uuid.UUID
	FiscalFolio    string
	PaymentTermsID uuid.UUID
	IssueDate      time.Time
	// DueDate defaults to IssueDate plus the payment-terms days.
	DueDate   *time.Time
	Principal model.Principal
}

func (s *Settlement) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*model.Invoice, error) {
	if !input.Principal.CanSettle() {
		return nil, ErrPermissionDenied
	}
	fiscalFolio := strings.TrimSpace(input.FiscalFolio)
	if fiscalFolio == "" {
		return nil, fmt.Errorf("%w: fiscal_folio is required", ErrInvalidInput)
	}
	if input.PaymentTermsID == uuid.Nil {
		return nil, fmt.Errorf("%w: payment_terms_id is required", ErrInvalidInput)
	}
	issueDate := dateOnly(input.IssueDate)
	if issueDate.IsZero() {
		issueDate = dateOnly(s.now())
	}

	terms, err := s.store.GetPaymentTerms(ctx, input.PaymentTermsID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: payment terms %s", ErrNotFound, input.PaymentTermsID)
		}
		return nil, dependency(err, "payment terms lookup")
	}
	dueDate := issueDate.AddDate(0, 0, terms.Days)
	if input.DueDate != nil {
		dueDate = dateOnly(*input.DueDate)
	}
	if dueDate.Before(issueDate) {
		return nil, fmt.Errorf("%w: due_date must not be before issue_date", ErrInvalidInput)
	}

	var (
		invoice *model.Invoice
		closure *model.BillingClosure
	)
	err = s.store.Transaction(ctx, func(repo repository.Repository) error {
		var err error
		closure, err = repo.LockClosure(ctx, input.ClosureID)
		if err != nil {
			return notFound(err, "billing closure")
		}
		if closure.InvoiceID != nil {
			return fmt.Errorf("%w: closure %s", ErrClosureAlreadyInvoiced, closure.Folio)
		}
		if closure.Status != model.ClosureStatusApproved {
			return fmt.Errorf("%w: closure %s is %s", ErrClosureNotApproved, closure.Folio, closure.Status)
		}

		folio, err := s.nextFolio(ctx, repo, s.settings.InvoicePrefix, s.now())
		if err != nil {
			return err
		}
		invoice, err = repo.CreateInvoice(ctx, model.Invoice{
			Folio:            folio,
			BillingClosureID: closure.ID,
			ClientID:         closure.ClientID,
			FiscalFolio:      fiscalFolio,
			PaymentTermsID:   terms.ID,
			Subtotal:         closure.Subtotal,
			TaxRate:          closure.TaxRate,
			TaxAmount:        closure.TaxAmount,
			Total:            closure.Total,
			BalanceDue:       closure.Total,
			IssueDate:        issueDate,
			DueDate:          dueDate,
			Status:           model.InvoiceStatusDraft,
		})
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: closure %s", ErrClosureAlreadyInvoiced, closure.Folio)
		}
		if err != nil {
			return err
		}

		closure.Status = model.ClosureStatusInvoicing
		closure.InvoiceID = uuidPtr(invoice.ID)
		return repo.UpdateClosure(ctx, *closure)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx,
		event.NewClosureInvoiced(closurePayload(closure)),
		event.NewInvoiceUpdated(invoicePayload(invoice)),
	)
	return invoice, nil
}

// SendInvoice marks the invoice as delivered to the client. The closure
// becomes invoiced and its services leave the board as invoiced.
func (s *Settlement) SendInvoice(ctx context.Context, principal model.Principal, invoiceID uuid.UUID) (*model.Invoice, error) {
	if !principal.CanSettle() {
		return nil, ErrPermissionDenied
	}

	var (
		invoice *model.Invoice
		closure *model.BillingClosure
		events  []event.DomainEvent
	)
	err := s.store.Transaction(ctx, func(repo repository.Repository) error {
		var err error
		invoice, err = repo.LockInvoice(ctx, invoiceID)
		if err != nil {
			return notFound(err, "invoice")
		}
		if invoice.SentAt != nil || invoice.Status == model.InvoiceStatusCancelled {
			return fmt.Errorf("%w: invoice %s is %s and cannot be sent", ErrInvalidState, invoice.Folio, invoice.Status)
		}

		now := s.now()
		invoice.SentAt = timePtr(now)
		if invoice.Status == model.InvoiceStatusDraft {
			invoice.Status = model.InvoiceStatusSent
		}
		invoice.Status = DeriveInvoiceStatus(*invoice, now)
		if err := repo.UpdateInvoice(ctx, *invoice); err != nil {
			return concurrent(err)
		}
		invoice.Version++

		closure, err = repo.LockClosure(ctx, invoice.BillingClosureID)
		if err != nil {
			return notFound(err, "billing closure")
		}
		if closure.Status == model.ClosureStatusInvoicing {
			closure.Status = model.ClosureStatusInvoiced
			if err := repo.UpdateClosure(ctx, *closure); err != nil {
				return err
			}
		}

		services, err := repo.ListClosureServices(ctx, closure.ID)
		if err != nil {
			return err
		}
		for _, service := range services {
			if service.Status != model.ServiceStatusCompleted {
				continue
			}
			events = append(events, event.NewServiceStatusChanged(event.ServiceStatusPayload{
				ServiceID: service.ID,
				Folio:     service.Folio,
				From:      string(model.ServiceStatusCompleted),
				To:        string(model.ServiceStatusInvoiced),
			}))
		}
		return repo.MarkClosureServicesInvoiced(ctx, closure.ID, now)
	})
	if err != nil {
		return nil, err
	}

	events = append([]event.DomainEvent{
		event.NewInvoiceUpdated(invoicePayload(invoice)),
		event.NewClosureInvoiced(closurePayload(closure)),
	}, events...)
	s.publish(ctx, events...)
	return invoice, nil
}

// CancelInvoice voids an invoice nobody has paid against yet. The closure
// keeps its invoice_id and stays invoicing with its services attached, so
// those services cannot be billed again; there is no reopen path.
func (s *Settlement) CancelInvoice(ctx context.Context, principal model.Principal, invoiceID uuid.UUID) (*model.Invoice, error) {
	if !principal.CanSettle() {
		return nil, ErrPermissionDenied
	}

	var invoice *model.Invoice
	err := s.store.Transaction(ctx, func(repo repository.Repository) error {
		var err error
		invoice, err = repo.LockInvoice(ctx, invoiceID)
		if err != nil {
			return notFound(err, "invoice")
		}
		switch invoice.Status {
		case model.InvoiceStatusDraft, model.InvoiceStatusSent, model.InvoiceStatusPending, model.InvoiceStatusOverdue:
		default:
			return fmt.Errorf("%w: invoice %s is %s and cannot be cancelled", ErrInvalidState, invoice.Folio, invoice.Status)
		}
		paid, err := repo.SumConfirmedPayments(ctx, invoice.ID)
		if err != nil {
			return err
		}
		if !paid.IsZero() || !invoice.BalanceDue.Equal(invoice.Total) {
			return fmt.Errorf("%w: invoice %s has confirmed payments", ErrInvalidState, invoice.Folio)
		}

		invoice.Status = model.InvoiceStatusCancelled
		invoice.CancelledAt = timePtr(s.now())
		if err := repo.UpdateInvoice(ctx, *invoice); err != nil {
			return concurrent(err)
		}
		invoice.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, event.NewInvoiceUpdated(invoicePayload(invoice)))
	return invoice, nil
}

// BulkPaidOutcome reports the result for one invoice of a bulk mark-paid.
type BulkPaidOutcome struct {
	InvoiceID uuid.UUID      `json:"invoice_id"`
	Invoice   *model.Invoice `json:"invoice,omitempty"`
	Payment   *model.Payment `json:"payment,omitempty"`
	Err       error          `json:"-"`
}

// MarkInvoicesPaidBulk settles every listed invoice independently. The
// outstanding balance of each is recorded as a confirmed reconciliation
// payment. Per-invoice failures are reported in the outcomes and do not stop
// the others.
func (s *Settlement) MarkInvoicesPaidBulk(ctx context.Context, principal model.Principal, invoiceIDs []uuid.UUID) ([]BulkPaidOutcome, error) {
	if !principal.CanSettle() {
		return nil, ErrPermissionDenied
	}
	if len(invoiceIDs) == 0 {
		return nil, fmt.Errorf("%w: invoice_ids is required", ErrInvalidInput)
	}

	outcomes := make([]BulkPaidOutcome, len(invoiceIDs))
	limit := s.settings.BulkParallelism
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range invoiceIDs {
		i, id := i, id
		g.Go(func() error {
			outcomes[i] = s.markPaid(ctx, principal, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (s *Settlement) markPaid(ctx context.Context, principal model.Principal, invoiceID uuid.UUID) BulkPaidOutcome {
	outcome := BulkPaidOutcome{InvoiceID: invoiceID}
	if err := ctx.Err(); err != nil {
		outcome.Err = err
		return outcome
	}

	var (
		invoice *model.Invoice
		payment *model.Payment
	)
	err := s.store.Transaction(ctx, func(repo repository.Repository) error {
		var err error
		invoice, err = repo.LockInvoice(ctx, invoiceID)
		if err != nil {
			return notFound(err, "invoice")
		}
		if invoice.Status == model.InvoiceStatusCancelled {
			return fmt.Errorf("%w: invoice %s is cancelled", ErrInvalidState, invoice.Folio)
		}
		if !invoice.BalanceDue.IsPositive() {
			return nil
		}

		now := s.now()
		payment, err = repo.CreatePayment(ctx, model.Payment{
			ClientID:      invoice.ClientID,
			InvoiceID:     uuidPtr(invoice.ID),
			Amount:        invoice.BalanceDue,
			PaymentDate:   dateOnly(now),
			PaymentMethod: model.PaymentMethodReconciliation,
			Status:        model.PaymentStatusConfirmed,
			ConfirmedAt:   timePtr(now),
			ConfirmedBy:   uuidPtr(principal.UserID),
		})
		if err != nil {
			return err
		}
		return s.recomputeBalance(ctx, repo, invoice, now)
	})
	if err != nil {
		outcome.Err = err
		return outcome
	}

	outcome.Invoice = invoice
	outcome.Payment = payment
	if payment != nil {
		s.publish(ctx,
			event.NewPaymentConfirmed(paymentPayload(payment)),
			event.NewInvoiceUpdated(invoicePayload(invoice)),
		)
	}
	return outcome
}

// recomputeBalance rewrites balance_due from the confirmed payments of a
// locked invoice and derives its status.
func (s *Settlement) recomputeBalance(ctx context.Context, repo repository.Repository, invoice *model.Invoice, now time.Time) error {
	paid, err := repo.SumConfirmedPayments(ctx, invoice.ID)
	if err != nil {
		return err
	}
	invoice.BalanceDue = invoice.Total.Sub(paid)
	invoice.Status = DeriveInvoiceStatus(*invoice, now)
	if invoice.Status == model.InvoiceStatusPaid && invoice.PaidAt == nil {
		invoice.PaidAt = timePtr(now)
	}
	if err := repo.UpdateInvoice(ctx, *invoice); err != nil {
		return concurrent(err)
	}
	invoice.Version++
	return nil
}

// RefreshOverdue flags unpaid invoices past their due date and returns how
// many changed.
func (s *Settlement) RefreshOverdue(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.store.ListOverdueCandidates(ctx, dateOnly(now))
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, candidate := range candidates {
		var invoice *model.Invoice
		err := s.store.Transaction(ctx, func(repo repository.Repository) error {
			var err error
			invoice, err = repo.LockInvoice(ctx, candidate.ID)
			if err != nil {
				return err
			}
			status := DeriveInvoiceStatus(*invoice, now)
			if status == invoice.Status {
				invoice = nil
				return nil
			}
			invoice.Status = status
			if err := repo.UpdateInvoice(ctx, *invoice); err != nil {
				return concurrent(err)
			}
			invoice.Version++
			return nil
		})
		if err != nil {
			return changed, fmt.Errorf("refresh invoice %s: %w", candidate.Folio, err)
		}
		if invoice != nil {
			changed++
			s.publish(ctx, event.NewInvoiceUpdated(invoicePayload(invoice)))
		}
	}
	return changed, nil
}

func (s *Settlement) GetInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	invoice, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return nil, notFound(err, "invoice")
	}
	return invoice, nil
}

func (s *Settlement) ListInvoices(ctx context.Context, filter model.InvoiceFilter) ([]model.Invoice, error) {
	return s.store.ListInvoices(ctx, filter)
}

// InvoiceDocument gathers everything the invoice PDF renders.
func (s *Settlement) InvoiceDocument(ctx context.Context, invoiceID uuid.UUID) (*model.InvoiceDocument, error) {
	invoice, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	closure, err := s.GetClosure(ctx, invoice.BillingClosureID)
	if err != nil {
		return nil, err
	}
	client, err := s.store.GetClient(ctx, invoice.ClientID)
	if err != nil {
		return nil, dependency(err, "client lookup")
	}
	services, err := s.store.ListClosureServices(ctx, closure.ID)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.ListPayments(ctx, model.PaymentFilter{InvoiceID: &invoice.ID})
	if err != nil {
		return nil, err
	}
	return &model.InvoiceDocument{
		Invoice:  *invoice,
		Closure:  *closure,
		Client:   *client,
		Services: services,
		Payments: payments,
		Currency: s.settings.Currency,
	}, nil
}
