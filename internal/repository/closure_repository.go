package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/towing-settlement/internal/model"
)

const closureColumns = `
	id,
	folio,
	client_id,
	period_start,
	period_end,
	services_count,
	subtotal,
	tax_rate,
	tax_amount,
	total,
	status,
	invoice_id,
	approved_by,
	approved_at,
	created_by,
	created_at
`

func (r *GormStore) CreateClosure(ctx context.Context, closure model.BillingClosure) (*model.BillingClosure, error) {
	var saved model.BillingClosure
	err := r.conn(ctx).Raw(`
		INSERT INTO billing_closures (
			folio,
			client_id,
			period_start,
			period_end,
			services_count,
			subtotal,
			tax_rate,
			tax_amount,
			total,
			status,
			created_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+closureColumns,
		closure.Folio,
		closure.ClientID,
		closure.PeriodStart,
		closure.PeriodEnd,
		closure.ServicesCount,
		closure.Subtotal,
		closure.TaxRate,
		closure.TaxAmount,
		closure.Total,
		closure.Status,
		closure.CreatedBy,
	).Scan(&saved).Error
	if err != nil {
		return nil, translate(err)
	}
	return &saved, nil
}

func (r *GormStore) GetClosure(ctx context.Context, id uuid.UUID) (*model.BillingClosure, error) {
	return r.findClosure(ctx, id, "")
}

func (r *GormStore) LockClosure(ctx context.Context, id uuid.UUID) (*model.BillingClosure, error) {
	return r.findClosure(ctx, id, " FOR UPDATE")
}

func (r *GormStore) findClosure(ctx context.Context, id uuid.UUID, suffix string) (*model.BillingClosure, error) {
	var closure model.BillingClosure
	err := r.conn(ctx).Raw(`SELECT `+closureColumns+` FROM billing_closures WHERE id = ? LIMIT 1`+suffix, id).
		Scan(&closure).Error
	if err != nil {
		return nil, err
	}
	if closure.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &closure, nil
}

// UpdateClosure persists status and approval fields. Totals are frozen at
// creation and never rewritten.
func (r *GormStore) UpdateClosure(ctx context.Context, closure model.BillingClosure) error {
	return execOne(r.conn(ctx).Exec(`
		UPDATE billing_closures
		SET
			status = ?,
			invoice_id = ?,
			approved_by = ?,
			approved_at = ?
		WHERE id = ?
	`, closure.Status, closure.InvoiceID, closure.ApprovedBy, closure.ApprovedAt, closure.ID))
}

func (r *GormStore) DeleteClosure(ctx context.Context, id uuid.UUID) error {
	return execOne(r.conn(ctx).Exec(`DELETE FROM billing_closures WHERE id = ? AND status = ?`, id, model.ClosureStatusDraft))
}

func (r *GormStore) ListClosures(ctx context.Context, filter model.ClosureFilter) ([]model.BillingClosure, error) {
	query := `SELECT ` + closureColumns + ` FROM billing_closures WHERE 1 = 1`
	var args []interface{}
	if filter.ClientID != nil {
		query += " AND client_id = ?"
		args = append(args, *filter.ClientID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	query += " ORDER BY created_at DESC"

	var closures []model.BillingClosure
	if err := r.conn(ctx).Raw(query, args...).Scan(&closures).Error; err != nil {
		return nil, err
	}
	return closures, nil
}
