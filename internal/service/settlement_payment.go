package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/towing-settlement/internal/event"
	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/repository"
)

type RegisterPaymentInput struct {
	ClientID        uuid.UUID
	InvoiceID       *uuid.UUID
	Amount          decimal.Decimal
	PaymentDate     time.Time
	Method          model.PaymentMethod
	ReferenceNumber *string
	// ConfirmNow registers and confirms in a single step.
	ConfirmNow bool
	Principal  model.Principal
}

func (s *Settlement) RegisterPayment(ctx context.Context, input RegisterPaymentInput) (*model.Payment, error) {
	if !input.Principal.CanSettle() {
		return nil, ErrPermissionDenied
	}
	if input.ClientID == uuid.Nil {
		return nil, fmt.Errorf("%w: client_id is required", ErrInvalidInput)
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if input.Method == "" {
		input.Method = model.PaymentMethodTransfer
	}
	if !input.Method.Valid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, input.Method)
	}
	paymentDate := dateOnly(input.PaymentDate)
	if paymentDate.IsZero() {
		paymentDate = dateOnly(s.now())
	}

	var (
		payment *model.Payment
		invoice *model.Invoice
	)
	err := s.store.Transaction(ctx, func(repo repository.Repository) error {
		if input.InvoiceID != nil {
			var err error
			invoice, err = repo.LockInvoice(ctx, *input.InvoiceID)
			if err != nil {
				return notFound(err, "invoice")
			}
			if invoice.ClientID != input.ClientID {
				return fmt.Errorf("%w: invoice %s belongs to another client", ErrInvalidInput, invoice.Folio)
			}
			if invoice.Status.Settled() {
				return fmt.Errorf("%w: invoice %s is %s", ErrInvalidState, invoice.Folio, invoice.Status)
			}
			if input.Amount.GreaterThan(invoice.BalanceDue) {
				return fmt.Errorf("%w: amount %s exceeds balance due %s", ErrInvalidInput, input.Amount, invoice.BalanceDue)
			}
		}

		now := s.now()
		record := model.Payment{
			ClientID:        input.ClientID,
			InvoiceID:       input.InvoiceID,
			Amount:          input.Amount,
			PaymentDate:     paymentDate,
			PaymentMethod:   input.Method,
			ReferenceNumber: trimmed(input.ReferenceNumber),
			Status:          model.PaymentStatusPending,
		}
		if input.ConfirmNow {
			record.Status = model.PaymentStatusConfirmed
			record.ConfirmedAt = timePtr(now)
			record.ConfirmedBy = uuidPtr(input.Principal.UserID)
		}

		var err error
		payment, err = repo.CreatePayment(ctx, record)
		if err != nil {
			return err
		}
		if input.ConfirmNow && invoice != nil {
			return s.recomputeBalance(ctx, repo, invoice, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events := []event.DomainEvent{event.NewPaymentRegistered(paymentPayload(payment))}
	if input.ConfirmNow {
		events = append(events, event.NewPaymentConfirmed(paymentPayload(payment)))
		if invoice != nil {
			events = append(events, event.NewInvoiceUpdated(invoicePayload(invoice)))
		}
	}
	s.publish(ctx, events...)
	return payment, nil
}

// ConfirmPayment confirms a pending payment and, under the invoice row lock,
// recomputes the balance from every confirmed payment.
func (s *Settlement) ConfirmPayment(ctx context.Context, principal model.Principal, paymentID uuid.UUID) (*model.Payment, *model.Invoice, error) {
	if !principal.CanSettle() {
		return nil, nil, ErrPermissionDenied
	}

	var (
		payment *model.Payment
		invoice *model.Invoice
	)
	err := s.store.Transaction(ctx, func(repo repository.Repository) error {
		var err error
		payment, err = repo.LockPayment(ctx, paymentID)
		if err != nil {
			return notFound(err, "payment")
		}
		if payment.Status != model.PaymentStatusPending {
			return fmt.Errorf("%w: payment is already %s", ErrInvalidState, payment.Status)
		}

		if payment.InvoiceID != nil {
			invoice, err = repo.LockInvoice(ctx, *payment.InvoiceID)
			if err != nil {
				return notFound(err, "invoice")
			}
			if invoice.Status.Settled() {
				return fmt.Errorf("%w: invoice %s is %s", ErrInvalidState, invoice.Folio, invoice.Status)
			}
			if payment.Amount.GreaterThan(invoice.BalanceDue) {
				return fmt.Errorf("%w: amount %s exceeds balance due %s", ErrInvalidState, payment.Amount, invoice.BalanceDue)
			}
		}

		now := s.now()
		payment.Status = model.PaymentStatusConfirmed
		payment.ConfirmedAt = timePtr(now)
		payment.ConfirmedBy = uuidPtr(principal.UserID)
		if err := repo.UpdatePayment(ctx, *payment); err != nil {
			return err
		}
		if invoice == nil {
			return nil
		}
		return s.recomputeBalance(ctx, repo, invoice, now)
	})
	if err != nil {
		return nil, nil, err
	}

	events := []event.DomainEvent{event.NewPaymentConfirmed(paymentPayload(payment))}
	if invoice != nil {
		events = append(events, event.NewInvoiceUpdated(invoicePayload(invoice)))
	}
	s.publish(ctx, events...)
	return payment, invoice, nil
}

func (s *Settlement) GetPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	payment, err := s.store.GetPayment(ctx, id)
	if err != nil {
		return nil, notFound(err, "payment")
	}
	return payment, nil
}

func (s *Settlement) ListPayments(ctx context.Context, filter model.PaymentFilter) ([]model.Payment, error) {
	return s.store.ListPayments(ctx, filter)
}
