package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/towing-settlement/internal/model"
)

const invoiceColumns = `
	id,
	folio,
	billing_closure_id,
	client_id,
	fiscal_folio,
	payment_terms_id,
	subtotal,
	tax_rate,
	tax_amount,
	total,
	balance_due,
	issue_date,
	due_date,
	status,
	sent_at,
	paid_at,
	cancelled_at,
	version,
	created_at,
	updated_at
`

func (r *GormStore) CreateInvoice(ctx context.Context, invoice model.Invoice) (*model.Invoice, error) {
	var saved model.Invoice
	err := r.conn(ctx).Raw(`
		INSERT INTO invoices (
			folio,
			billing_closure_id,
			client_id,
			fiscal_folio,
			payment_terms_id,
			subtotal,
			tax_rate,
			tax_amount,
			total,
			balance_due,
			issue_date,
			due_date,
			status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+invoiceColumns,
		invoice.Folio,
		invoice.BillingClosureID,
		invoice.ClientID,
		invoice.FiscalFolio,
		invoice.PaymentTermsID,
		invoice.Subtotal,
		invoice.TaxRate,
		invoice.TaxAmount,
		invoice.Total,
		invoice.BalanceDue,
		invoice.IssueDate,
		invoice.DueDate,
		invoice.Status,
	).Scan(&saved).Error
	if err != nil {
		return nil, translate(err)
	}
	return &saved, nil
}

func (r *GormStore) GetInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	return r.findInvoice(ctx, id, "")
}

func (r *GormStore) LockInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	return r.findInvoice(ctx, id, " FOR UPDATE")
}

func (r *GormStore) findInvoice(ctx context.Context, id uuid.UUID, suffix string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.conn(ctx).Raw(`SELECT `+invoiceColumns+` FROM invoices WHERE id = ? LIMIT 1`+suffix, id).
		Scan(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &invoice, nil
}

func (r *GormStore) UpdateInvoice(ctx context.Context, invoice model.Invoice) error {
	result := r.conn(ctx).Exec(`
		UPDATE invoices
		SET
			balance_due = ?,
			status = ?,
			sent_at = ?,
			paid_at = ?,
			cancelled_at = ?,
			version = version + 1,
			updated_at = NOW()
		WHERE id = ? AND version = ?
	`,
		invoice.BalanceDue,
		invoice.Status,
		invoice.SentAt,
		invoice.PaidAt,
		invoice.CancelledAt,
		invoice.ID,
		invoice.Version,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *GormStore) ListInvoices(ctx context.Context, filter model.InvoiceFilter) ([]model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1 = 1`
	var args []interface{}
	if filter.ClientID != nil {
		query += " AND client_id = ?"
		args = append(args, *filter.ClientID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	query += " ORDER BY issue_date DESC, folio DESC"

	var invoices []model.Invoice
	if err := r.conn(ctx).Raw(query, args...).Scan(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *GormStore) ListOverdueCandidates(ctx context.Context, now time.Time) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := r.conn(ctx).Raw(`
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE due_date < ?
			AND balance_due > 0
			AND status NOT IN (?, ?, ?, ?)
		ORDER BY due_date ASC
	`, now,
		model.InvoiceStatusDraft,
		model.InvoiceStatusOverdue,
		model.InvoiceStatusPaid,
		model.InvoiceStatusCancelled,
	).Scan(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}
