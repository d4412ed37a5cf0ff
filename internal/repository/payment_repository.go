package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/towing-settlement/internal/model"
)

const paymentColumns = `
	id,
	client_id,
	invoice_id,
	amount,
	payment_date,
	payment_method,
	reference_number,
	status,
	confirmed_at,
	confirmed_by,
	bank_transaction_id,
	created_at
`

func (r *GormStore) CreatePayment(ctx context.Context, payment model.Payment) (*model.Payment, error) {
	var saved model.Payment
	err := r.conn(ctx).Raw(`
		INSERT INTO payments (
			client_id,
			invoice_id,
			amount,
			payment_date,
			payment_method,
			reference_number,
			status,
			confirmed_at,
			confirmed_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+paymentColumns,
		payment.ClientID,
		payment.InvoiceID,
		payment.Amount,
		payment.PaymentDate,
		payment.PaymentMethod,
		payment.ReferenceNumber,
		payment.Status,
		payment.ConfirmedAt,
		payment.ConfirmedBy,
	).Scan(&saved).Error
	if err != nil {
		return nil, translate(err)
	}
	return &saved, nil
}

func (r *GormStore) GetPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	return r.findPayment(ctx, id, "")
}

func (r *GormStore) LockPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	return r.findPayment(ctx, id, " FOR UPDATE")
}

func (r *GormStore) findPayment(ctx context.Context, id uuid.UUID, suffix string) (*model.Payment, error) {
	var payment model.Payment
	err := r.conn(ctx).Raw(`SELECT `+paymentColumns+` FROM payments WHERE id = ? LIMIT 1`+suffix, id).
		Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &payment, nil
}

func (r *GormStore) UpdatePayment(ctx context.Context, payment model.Payment) error {
	return execOne(r.conn(ctx).Exec(`
		UPDATE payments
		SET
			status = ?,
			confirmed_at = ?,
			confirmed_by = ?,
			bank_transaction_id = ?
		WHERE id = ?
	`, payment.Status, payment.ConfirmedAt, payment.ConfirmedBy, payment.BankTransactionID, payment.ID))
}

func (r *GormStore) ListPayments(ctx context.Context, filter model.PaymentFilter) ([]model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE 1 = 1`
	var args []interface{}
	if filter.ClientID != nil {
		query += " AND client_id = ?"
		args = append(args, *filter.ClientID)
	}
	if filter.InvoiceID != nil {
		query += " AND invoice_id = ?"
		args = append(args, *filter.InvoiceID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	query += " ORDER BY payment_date ASC, created_at ASC"

	var payments []model.Payment
	if err := r.conn(ctx).Raw(query, args...).Scan(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *GormStore) SumConfirmedPayments(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := r.conn(ctx).Raw(`
		SELECT COALESCE(SUM(amount), 0) AS total
		FROM payments
		WHERE invoice_id = ? AND status = ?
	`, invoiceID, model.PaymentStatusConfirmed).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}
