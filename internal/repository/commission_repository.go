package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/towing-settlement/internal/model"
)

const commissionEntryColumns = `
	id,
	service_id,
	operator_id,
	role,
	scheme_type,
	service_value,
	commission_amount,
	service_date,
	liquidation_id,
	created_at
`

const liquidationColumns = `
	id,
	operator_id,
	period_start,
	period_end,
	services_count,
	total_services_value,
	total_amount,
	status,
	approved_by,
	approved_at,
	paid_at,
	created_at
`

func (r *GormStore) ListCommissionEntries(ctx context.Context, serviceID uuid.UUID) ([]model.CommissionEntry, error) {
	var entries []model.CommissionEntry
	err := r.conn(ctx).Raw(`
		SELECT `+commissionEntryColumns+`
		FROM commission_entries
		WHERE service_id = ?
		ORDER BY role ASC, operator_id ASC
	`, serviceID).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *GormStore) ListOperatorEntries(ctx context.Context, operatorID uuid.UUID, liquidationID *uuid.UUID) ([]model.CommissionEntry, error) {
	query := `SELECT ` + commissionEntryColumns + ` FROM commission_entries WHERE operator_id = ?`
	args := []interface{}{operatorID}
	if liquidationID != nil {
		query += " AND liquidation_id = ?"
		args = append(args, *liquidationID)
	}
	query += " ORDER BY service_date ASC"

	var entries []model.CommissionEntry
	if err := r.conn(ctx).Raw(query, args...).Scan(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *GormStore) ReplaceCommissionEntries(ctx context.Context, serviceID uuid.UUID, entries []model.CommissionEntry) error {
	db := r.conn(ctx)
	if err := db.Exec(`DELETE FROM commission_entries WHERE service_id = ?`, serviceID).Error; err != nil {
		return err
	}
	for _, entry := range entries {
		if err := db.Exec(`
			INSERT INTO commission_entries (
				service_id,
				operator_id,
				role,
				scheme_type,
				service_value,
				commission_amount,
				service_date
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			serviceID,
			entry.OperatorID,
			entry.Role,
			entry.SchemeType,
			entry.ServiceValue,
			entry.CommissionAmount,
			entry.ServiceDate,
		).Error; err != nil {
			return translate(err)
		}
	}
	return nil
}

func (r *GormStore) LockUnliquidatedEntries(ctx context.Context, operatorID uuid.UUID, from, to time.Time) ([]model.CommissionEntry, error) {
	var entries []model.CommissionEntry
	err := r.conn(ctx).Raw(`
		SELECT `+commissionEntryColumns+`
		FROM commission_entries
		WHERE operator_id = ?
			AND liquidation_id IS NULL
			AND service_date >= ?
			AND service_date < ?
		ORDER BY service_date ASC
		FOR UPDATE
	`, operatorID, from, to).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *GormStore) BindEntries(ctx context.Context, liquidationID uuid.UUID, entryIDs []uuid.UUID) error {
	if len(entryIDs) == 0 {
		return nil
	}
	return r.conn(ctx).Exec(`
		UPDATE commission_entries SET liquidation_id = ? WHERE id IN ?
	`, liquidationID, entryIDs).Error
}

func (r *GormStore) CreateLiquidation(ctx context.Context, liquidation model.CommissionLiquidation) (*model.CommissionLiquidation, error) {
	var saved model.CommissionLiquidation
	err := r.conn(ctx).Raw(`
		INSERT INTO commission_liquidations (
			operator_id,
			period_start,
			period_end,
			services_count,
			total_services_value,
			total_amount,
			status
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING `+liquidationColumns,
		liquidation.OperatorID,
		liquidation.PeriodStart,
		liquidation.PeriodEnd,
		liquidation.ServicesCount,
		liquidation.TotalServicesValue,
		liquidation.TotalAmount,
		liquidation.Status,
	).Scan(&saved).Error
	if err != nil {
		return nil, translate(err)
	}
	return &saved, nil
}

func (r *GormStore) GetLiquidation(ctx context.Context, id uuid.UUID) (*model.CommissionLiquidation, error) {
	return r.findLiquidation(ctx, id, "")
}

func (r *GormStore) LockLiquidation(ctx context.Context, id uuid.UUID) (*model.CommissionLiquidation, error) {
	return r.findLiquidation(ctx, id, " FOR UPDATE")
}

func (r *GormStore) findLiquidation(ctx context.Context, id uuid.UUID, suffix string) (*model.CommissionLiquidation, error) {
	var liquidation model.CommissionLiquidation
	err := r.conn(ctx).Raw(`SELECT `+liquidationColumns+` FROM commission_liquidations WHERE id = ? LIMIT 1`+suffix, id).
		Scan(&liquidation).Error
	if err != nil {
		return nil, err
	}
	if liquidation.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &liquidation, nil
}

func (r *GormStore) UpdateLiquidation(ctx context.Context, liquidation model.CommissionLiquidation) error {
	return execOne(r.conn(ctx).Exec(`
		UPDATE commission_liquidations
		SET status = ?, approved_by = ?, approved_at = ?, paid_at = ?
		WHERE id = ?
	`, liquidation.Status, liquidation.ApprovedBy, liquidation.ApprovedAt, liquidation.PaidAt, liquidation.ID))
}

func (r *GormStore) ListLiquidations(ctx context.Context, filter model.LiquidationFilter) ([]model.CommissionLiquidation, error) {
	query := `SELECT ` + liquidationColumns + ` FROM commission_liquidations WHERE 1 = 1`
	var args []interface{}
	if filter.OperatorID != nil {
		query += " AND operator_id = ?"
		args = append(args, *filter.OperatorID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, *filter.Status)
	}
	query += " ORDER BY period_start DESC"

	var liquidations []model.CommissionLiquidation
	if err := r.conn(ctx).Raw(query, args...).Scan(&liquidations).Error; err != nil {
		return nil, err
	}
	return liquidations, nil
}
