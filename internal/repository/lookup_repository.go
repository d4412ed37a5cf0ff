package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/towing-settlement/internal/model"
)

func (r *GormStore) GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var client model.Client
	if err := r.conn(ctx).Raw(`
		SELECT id, name, tax_id, address, phone, email
		FROM clients
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&client).Error; err != nil {
		return nil, err
	}
	if client.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &client, nil
}

func (r *GormStore) GetOperator(ctx context.Context, id uuid.UUID) (*model.Operator, error) {
	var operator model.Operator
	if err := r.conn(ctx).Raw(`
		SELECT id, full_name, active
		FROM operators
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&operator).Error; err != nil {
		return nil, err
	}
	if operator.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &operator, nil
}

func (r *GormStore) GetCommissionScheme(ctx context.Context, operatorID uuid.UUID) (*model.CommissionScheme, error) {
	var row struct {
		OperatorID uuid.UUID
		Type       string
		Rate       decimal.Decimal
		FlatAmount decimal.Decimal
		Tiers      []byte
	}
	if err := r.conn(ctx).Raw(`
		SELECT operator_id, type, COALESCE(rate, 0) AS rate, COALESCE(flat_amount, 0) AS flat_amount, tiers
		FROM commission_schemes
		WHERE operator_id = ?
		LIMIT 1
	`, operatorID).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.OperatorID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}

	scheme := &model.CommissionScheme{
		OperatorID: row.OperatorID,
		Type:       model.CommissionSchemeType(row.Type),
		Rate:       row.Rate,
		FlatAmount: row.FlatAmount,
	}
	if len(row.Tiers) > 0 {
		if err := json.Unmarshal(row.Tiers, &scheme.Tiers); err != nil {
			return nil, fmt.Errorf("decode tiers for operator %s: %w", operatorID, err)
		}
	}
	return scheme, nil
}

func (r *GormStore) GetPaymentTerms(ctx context.Context, id uuid.UUID) (*model.PaymentTerms, error) {
	var terms model.PaymentTerms
	if err := r.conn(ctx).Raw(`
		SELECT id, name, days
		FROM payment_terms
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&terms).Error; err != nil {
		return nil, err
	}
	if terms.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &terms, nil
}

func (r *GormStore) NextFolio(ctx context.Context, prefix string, year int) (int64, error) {
	var next int64
	err := r.conn(ctx).Raw(`
		INSERT INTO folio_sequences (prefix, year, last_value)
		VALUES (?, ?, 1)
		ON CONFLICT (prefix, year) DO UPDATE SET last_value = folio_sequences.last_value + 1
		RETURNING last_value
	`, prefix, year).Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}
