package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/towing-settlement/internal/model"
)

const serviceColumns = `
	id,
	folio,
	status,
	priority,
	scheduled_date,
	client_id,
	crane_id,
	operator_id,
	assistant_operator_id,
	subtotal,
	total,
	quote_number,
	purchase_order_number,
	billing_closure_id,
	status_changed_at,
	completed_at,
	created_at,
	updated_at
`

func (r *GormStore) CreateService(ctx context.Context, service model.Service) (*model.Service, error) {
	var saved model.Service
	err := r.conn(ctx).Raw(`
		INSERT INTO services (
			folio,
			status,
			priority,
			scheduled_date,
			client_id,
			crane_id,
			operator_id,
			assistant_operator_id,
			subtotal,
			total,
			quote_number,
			purchase_order_number,
			status_changed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+serviceColumns,
		service.Folio,
		service.Status,
		service.Priority,
		service.ScheduledDate,
		service.ClientID,
		service.CraneID,
		service.OperatorID,
		service.AssistantOperatorID,
		service.Subtotal,
		service.Total,
		service.QuoteNumber,
		service.PurchaseOrderNumber,
		service.StatusChangedAt,
	).Scan(&saved).Error
	if err != nil {
		return nil, translate(err)
	}
	return &saved, nil
}

func (r *GormStore) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	return r.findService(ctx, id, "")
}

func (r *GormStore) LockService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	return r.findService(ctx, id, " FOR UPDATE")
}

func (r *GormStore) findService(ctx context.Context, id uuid.UUID, suffix string) (*model.Service, error) {
	var service model.Service
	err := r.conn(ctx).Raw(`SELECT `+serviceColumns+` FROM services WHERE id = ? LIMIT 1`+suffix, id).
		Scan(&service).Error
	if err != nil {
		return nil, err
	}
	if service.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &service, nil
}

func (r *GormStore) UpdateService(ctx context.Context, service model.Service) error {
	return execOne(r.conn(ctx).Exec(`
		UPDATE services
		SET
			status = ?,
			priority = ?,
			scheduled_date = ?,
			crane_id = ?,
			operator_id = ?,
			assistant_operator_id = ?,
			subtotal = ?,
			total = ?,
			quote_number = ?,
			purchase_order_number = ?,
			billing_closure_id = ?,
			status_changed_at = ?,
			completed_at = ?,
			updated_at = NOW()
		WHERE id = ?
	`,
		service.Status,
		service.Priority,
		service.ScheduledDate,
		service.CraneID,
		service.OperatorID,
		service.AssistantOperatorID,
		service.Subtotal,
		service.Total,
		service.QuoteNumber,
		service.PurchaseOrderNumber,
		service.BillingClosureID,
		service.StatusChangedAt,
		service.CompletedAt,
		service.ID,
	))
}

func (r *GormStore) ListServices(ctx context.Context, filter model.ServiceFilter) ([]model.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE 1 = 1`
	var args []interface{}
	if filter.ClientID != nil {
		query += " AND client_id = ?"
		args = append(args, *filter.ClientID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	if filter.From != nil {
		query += " AND scheduled_date >= ?"
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		query += " AND scheduled_date < ?"
		args = append(args, *filter.To)
	}
	query += " ORDER BY scheduled_date ASC, folio ASC"

	var services []model.Service
	if err := r.conn(ctx).Raw(query, args...).Scan(&services).Error; err != nil {
		return nil, err
	}
	return services, nil
}

func (r *GormStore) LockClosableServices(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]model.Service, error) {
	var services []model.Service
	err := r.conn(ctx).Raw(`
		SELECT `+serviceColumns+`
		FROM services
		WHERE client_id = ?
			AND status = ?
			AND billing_closure_id IS NULL
			AND scheduled_date >= ?
			AND scheduled_date < ?
		ORDER BY scheduled_date ASC, folio ASC
		FOR UPDATE
	`, clientID, model.ServiceStatusCompleted, from, to).Scan(&services).Error
	if err != nil {
		return nil, err
	}
	return services, nil
}

func (r *GormStore) ListClosureServices(ctx context.Context, closureID uuid.UUID) ([]model.Service, error) {
	var services []model.Service
	err := r.conn(ctx).Raw(`
		SELECT `+serviceColumns+`
		FROM services
		WHERE billing_closure_id = ?
		ORDER BY scheduled_date ASC, folio ASC
	`, closureID).Scan(&services).Error
	if err != nil {
		return nil, err
	}
	return services, nil
}

func (r *GormStore) AttachServices(ctx context.Context, closureID uuid.UUID, serviceIDs []uuid.UUID) error {
	if len(serviceIDs) == 0 {
		return nil
	}
	result := r.conn(ctx).Exec(`
		UPDATE services
		SET billing_closure_id = ?, updated_at = NOW()
		WHERE id IN ? AND billing_closure_id IS NULL
	`, closureID, serviceIDs)
	if result.Error != nil {
		return result.Error
	}
	if int(result.RowsAffected) != len(serviceIDs) {
		return ErrConflict
	}
	return nil
}

func (r *GormStore) ReleaseServices(ctx context.Context, closureID uuid.UUID) error {
	return r.conn(ctx).Exec(`
		UPDATE services
		SET billing_closure_id = NULL, updated_at = NOW()
		WHERE billing_closure_id = ?
	`, closureID).Error
}

func (r *GormStore) MarkClosureServicesInvoiced(ctx context.Context, closureID uuid.UUID, at time.Time) error {
	return r.conn(ctx).Exec(`
		UPDATE services
		SET status = ?, status_changed_at = ?, updated_at = NOW()
		WHERE billing_closure_id = ? AND status = ?
	`, model.ServiceStatusInvoiced, at, closureID, model.ServiceStatusCompleted).Error
}
