package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/towing-settlement/internal/model"
)

const bankTransactionColumns = `
	id,
	description,
	amount,
	transaction_date,
	reference,
	status,
	matched_payment_id,
	matched_at,
	created_at
`

func (r *GormStore) CreateBankTransaction(ctx context.Context, tx model.BankTransaction) (*model.BankTransaction, error) {
	var saved model.BankTransaction
	err := r.conn(ctx).Raw(`
		INSERT INTO bank_transactions (description, amount, transaction_date, reference, status)
		VALUES (?, ?, ?, ?, ?)
		RETURNING `+bankTransactionColumns,
		tx.Description, tx.Amount, tx.TransactionDate, tx.Reference, tx.Status,
	).Scan(&saved).Error
	if err != nil {
		return nil, translate(err)
	}
	return &saved, nil
}

func (r *GormStore) GetBankTransaction(ctx context.Context, id uuid.UUID) (*model.BankTransaction, error) {
	return r.findBankTransaction(ctx, id, "")
}

func (r *GormStore) LockBankTransaction(ctx context.Context, id uuid.UUID) (*model.BankTransaction, error) {
	return r.findBankTransaction(ctx, id, " FOR UPDATE")
}

func (r *GormStore) findBankTransaction(ctx context.Context, id uuid.UUID, suffix string) (*model.BankTransaction, error) {
	var tx model.BankTransaction
	err := r.conn(ctx).Raw(`SELECT `+bankTransactionColumns+` FROM bank_transactions WHERE id = ? LIMIT 1`+suffix, id).
		Scan(&tx).Error
	if err != nil {
		return nil, err
	}
	if tx.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &tx, nil
}

func (r *GormStore) UpdateBankTransaction(ctx context.Context, tx model.BankTransaction) error {
	return execOne(r.conn(ctx).Exec(`
		UPDATE bank_transactions
		SET status = ?, matched_payment_id = ?, matched_at = ?
		WHERE id = ?
	`, tx.Status, tx.MatchedPaymentID, tx.MatchedAt, tx.ID))
}

func (r *GormStore) ListBankTransactions(ctx context.Context, status *model.BankTransactionStatus) ([]model.BankTransaction, error) {
	query := `SELECT ` + bankTransactionColumns + ` FROM bank_transactions`
	var args []interface{}
	if status != nil {
		query += " WHERE status = ?"
		args = append(args, *status)
	}
	query += " ORDER BY transaction_date ASC, created_at ASC"

	var txs []model.BankTransaction
	if err := r.conn(ctx).Raw(query, args...).Scan(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}
