package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/repository"
)

func (r *txRepo) CreateClosure(_ context.Context, closure model.BillingClosure) (*model.BillingClosure, error) {
	closure.ID = uuid.New()
	closure.CreatedAt = r.now()
	r.state.closures[closure.ID] = closure
	return &closure, nil
}

func (r *txRepo) GetClosure(_ context.Context, id uuid.UUID) (*model.BillingClosure, error) {
	closure, ok := r.state.closures[id]
	if !ok {
		return nil, notFound("billing closure", id)
	}
	return &closure, nil
}

func (r *txRepo) LockClosure(ctx context.Context, id uuid.UUID) (*model.BillingClosure, error) {
	return r.GetClosure(ctx, id)
}

func (r *txRepo) UpdateClosure(_ context.Context, closure model.BillingClosure) error {
	existing, ok := r.state.closures[closure.ID]
	if !ok {
		return notFound("billing closure", closure.ID)
	}
	existing.Status = closure.Status
	existing.InvoiceID = closure.InvoiceID
	existing.ApprovedBy = closure.ApprovedBy
	existing.ApprovedAt = closure.ApprovedAt
	r.state.closures[closure.ID] = existing
	return nil
}

func (r *txRepo) DeleteClosure(_ context.Context, id uuid.UUID) error {
	closure, ok := r.state.closures[id]
	if !ok || closure.Status != model.ClosureStatusDraft {
		return notFound("billing closure", id)
	}
	delete(r.state.closures, id)
	return nil
}

func (r *txRepo) ListClosures(_ context.Context, filter model.ClosureFilter) ([]model.BillingClosure, error) {
	var result []model.BillingClosure
	for _, closure := range r.state.closures {
		if filter.ClientID != nil && closure.ClientID != *filter.ClientID {
			continue
		}
		if filter.Status != nil && closure.Status != *filter.Status {
			continue
		}
		result = append(result, closure)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *txRepo) CreateInvoice(_ context.Context, invoice model.Invoice) (*model.Invoice, error) {
	for _, existing := range r.state.invoices {
		if existing.BillingClosureID == invoice.BillingClosureID {
			return nil, repository.ErrConflict
		}
	}
	now := r.now()
	invoice.ID = uuid.New()
	invoice.Version = 1
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	r.state.invoices[invoice.ID] = invoice
	return &invoice, nil
}

func (r *txRepo) GetInvoice(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	invoice, ok := r.state.invoices[id]
	if !ok {
		return nil, notFound("invoice", id)
	}
	return &invoice, nil
}

func (r *txRepo) LockInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	return r.GetInvoice(ctx, id)
}

func (r *txRepo) UpdateInvoice(_ context.Context, invoice model.Invoice) error {
	existing, ok := r.state.invoices[invoice.ID]
	if !ok {
		return notFound("invoice", invoice.ID)
	}
	if existing.Version != invoice.Version {
		return repository.ErrConflict
	}
	existing.BalanceDue = invoice.BalanceDue
	existing.Status = invoice.Status
	existing.SentAt = invoice.SentAt
	existing.PaidAt = invoice.PaidAt
	existing.CancelledAt = invoice.CancelledAt
	existing.Version++
	existing.UpdatedAt = r.now()
	r.state.invoices[invoice.ID] = existing
	return nil
}

func (r *txRepo) ListInvoices(_ context.Context, filter model.InvoiceFilter) ([]model.Invoice, error) {
	var result []model.Invoice
	for _, invoice := range r.state.invoices {
		if filter.ClientID != nil && invoice.ClientID != *filter.ClientID {
			continue
		}
		if filter.Status != nil && invoice.Status != *filter.Status {
			continue
		}
		result = append(result, invoice)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].IssueDate.Equal(result[j].IssueDate) {
			return result[i].IssueDate.After(result[j].IssueDate)
		}
		return result[i].Folio > result[j].Folio
	})
	return result, nil
}

func (r *txRepo) ListOverdueCandidates(_ context.Context, now time.Time) ([]model.Invoice, error) {
	var result []model.Invoice
	for _, invoice := range r.state.invoices {
		switch invoice.Status {
		case model.InvoiceStatusDraft, model.InvoiceStatusOverdue, model.InvoiceStatusPaid, model.InvoiceStatusCancelled:
			continue
		}
		if invoice.DueDate.Before(now) && invoice.BalanceDue.IsPositive() {
			result = append(result, invoice)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DueDate.Before(result[j].DueDate)
	})
	return result, nil
}

func (r *txRepo) CreatePayment(_ context.Context, payment model.Payment) (*model.Payment, error) {
	payment.ID = uuid.New()
	payment.CreatedAt = r.now()
	r.state.payments[payment.ID] = payment
	return &payment, nil
}

func (r *txRepo) GetPayment(_ context.Context, id uuid.UUID) (*model.Payment, error) {
	payment, ok := r.state.payments[id]
	if !ok {
		return nil, notFound("payment", id)
	}
	return &payment, nil
}

func (r *txRepo) LockPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	return r.GetPayment(ctx, id)
}

func (r *txRepo) UpdatePayment(_ context.Context, payment model.Payment) error {
	existing, ok := r.state.payments[payment.ID]
	if !ok {
		return notFound("payment", payment.ID)
	}
	if payment.BankTransactionID != nil {
		for id, other := range r.state.payments {
			if id != payment.ID && other.BankTransactionID != nil && *other.BankTransactionID == *payment.BankTransactionID {
				return repository.ErrConflict
			}
		}
	}
	existing.Status = payment.Status
	existing.ConfirmedAt = payment.ConfirmedAt
	existing.ConfirmedBy = payment.ConfirmedBy
	existing.BankTransactionID = payment.BankTransactionID
	r.state.payments[payment.ID] = existing
	return nil
}

func (r *txRepo) ListPayments(_ context.Context, filter model.PaymentFilter) ([]model.Payment, error) {
	var result []model.Payment
	for _, payment := range r.state.payments {
		if filter.ClientID != nil && payment.ClientID != *filter.ClientID {
			continue
		}
		if filter.InvoiceID != nil && (payment.InvoiceID == nil || *payment.InvoiceID != *filter.InvoiceID) {
			continue
		}
		if filter.Status != nil && payment.Status != *filter.Status {
			continue
		}
		result = append(result, payment)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].PaymentDate.Equal(result[j].PaymentDate) {
			return result[i].PaymentDate.Before(result[j].PaymentDate)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *txRepo) SumConfirmedPayments(_ context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	for _, payment := range r.state.payments {
		if payment.InvoiceID != nil && *payment.InvoiceID == invoiceID && payment.Status == model.PaymentStatusConfirmed {
			amounts = append(amounts, payment.Amount)
		}
	}
	return sumDecimal(amounts...), nil
}

func (r *txRepo) CreateBankTransaction(_ context.Context, tx model.BankTransaction) (*model.BankTransaction, error) {
	tx.ID = uuid.New()
	tx.CreatedAt = r.now()
	r.state.bankTxs[tx.ID] = tx
	return &tx, nil
}

func (r *txRepo) GetBankTransaction(_ context.Context, id uuid.UUID) (*model.BankTransaction, error) {
	tx, ok := r.state.bankTxs[id]
	if !ok {
		return nil, notFound("bank transaction", id)
	}
	return &tx, nil
}

func (r *txRepo) LockBankTransaction(ctx context.Context, id uuid.UUID) (*model.BankTransaction, error) {
	return r.GetBankTransaction(ctx, id)
}

func (r *txRepo) UpdateBankTransaction(_ context.Context, tx model.BankTransaction) error {
	existing, ok := r.state.bankTxs[tx.ID]
	if !ok {
		return notFound("bank transaction", tx.ID)
	}
	if tx.MatchedPaymentID != nil {
		for id, other := range r.state.bankTxs {
			if id != tx.ID && other.MatchedPaymentID != nil && *other.MatchedPaymentID == *tx.MatchedPaymentID {
				return repository.ErrConflict
			}
		}
	}
	existing.Status = tx.Status
	existing.MatchedPaymentID = tx.MatchedPaymentID
	existing.MatchedAt = tx.MatchedAt
	r.state.bankTxs[tx.ID] = existing
	return nil
}

func (r *txRepo) ListBankTransactions(_ context.Context, status *model.BankTransactionStatus) ([]model.BankTransaction, error) {
	var result []model.BankTransaction
	for _, tx := range r.state.bankTxs {
		if status != nil && tx.Status != *status {
			continue
		}
		result = append(result, tx)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].TransactionDate.Equal(result[j].TransactionDate) {
			return result[i].TransactionDate.Before(result[j].TransactionDate)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
