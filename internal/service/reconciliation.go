package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/nurpe/towing-settlement/internal/config"
	"github.com/nurpe/towing-settlement/internal/event"
	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/repository"
)

// StatementParser reads bank lines out of an exported bank statement.
type StatementParser interface {
	ParseBankStatement(r io.Reader) ([]model.BankTransaction, error)
}

// Reconciler keeps the 1:1 link between bank lines and payments.
type Reconciler struct {
	base
	parser StatementParser
}

func NewReconciler(store repository.Store, events EventPublisher, settings config.SettlementConfig, parser StatementParser) *Reconciler {
	return &Reconciler{base: newBase(store, events, settings), parser: parser}
}

// ImportTransactions stores bank lines as unmatched, all or nothing.
func (r *Reconciler) ImportTransactions(ctx context.Context, principal model.Principal, lines []model.BankTransaction) ([]model.BankTransaction, error) {
	if !principal.CanSettle() {
		return nil, ErrPermissionDenied
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no bank transactions to import", ErrInvalidInput)
	}
	for i, line := range lines {
		if !line.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: line %d: amount must be positive", ErrInvalidInput, i+1)
		}
		if line.TransactionDate.IsZero() {
			return nil, fmt.Errorf("%w: line %d: transaction_date is required", ErrInvalidInput, i+1)
		}
	}

	created := make([]model.BankTransaction, 0, len(lines))
	err := r.store.Transaction(ctx, func(repo repository.Repository) error {
		for _, line := range lines {
			tx, err := repo.CreateBankTransaction(ctx, model.BankTransaction{
				Description:     strings.TrimSpace(line.Description),
				Amount:          line.Amount,
				TransactionDate: dateOnly(line.TransactionDate),
				Reference:       trimmed(line.Reference),
				Status:          model.BankTransactionUnmatched,
			})
			if err != nil {
				return err
			}
			created = append(created, *tx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ImportStatement parses a statement file and imports its lines.
func (r *Reconciler) ImportStatement(ctx context.Context, principal model.Principal, statement io.Reader) ([]model.BankTransaction, error) {
	if !principal.CanSettle() {
		return nil, ErrPermissionDenied
	}
	if r.parser == nil {
		return nil, fmt.Errorf("%w: statement import is not configured", ErrDependencyUnavailable)
	}
	lines, err := r.parser.ParseBankStatement(statement)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return r.ImportTransactions(ctx, principal, lines)
}

// Match links a bank line to a confirmed payment of the same amount.
func (r *Reconciler) Match(ctx context.Context, principal model.Principal, transactionID, paymentID uuid.UUID) (*model.BankTransaction, *model.Payment, error) {
	if !principal.CanSettle() {
		return nil, nil, ErrPermissionDenied
	}

	var (
		tx      *model.BankTransaction
		payment *model.Payment
	)
	err := r.store.Transaction(ctx, func(repo repository.Repository) error {
		var err error
		tx, err = repo.LockBankTransaction(ctx, transactionID)
		if err != nil {
			return notFound(err, "bank transaction")
		}
		payment, err = repo.LockPayment(ctx, paymentID)
		if err != nil {
			return notFound(err, "payment")
		}

		if tx.Status == model.BankTransactionMatched || tx.MatchedPaymentID != nil {
			return fmt.Errorf("%w: bank transaction %s is already matched", ErrAlreadyMatched, tx.ID)
		}
		if payment.BankTransactionID != nil {
			return fmt.Errorf("%w: payment %s is already matched", ErrAlreadyMatched, payment.ID)
		}
		if payment.Status != model.PaymentStatusConfirmed {
			return fmt.Errorf("%w: payment %s is %s", ErrInvalidState, payment.ID, payment.Status)
		}
		if !tx.Amount.Equal(payment.Amount) {
			return fmt.Errorf("%w: bank line %s, payment %s", ErrAmountMismatch, tx.Amount, payment.Amount)
		}

		now := r.now()
		tx.Status = model.BankTransactionMatched
		tx.MatchedPaymentID = uuidPtr(payment.ID)
		tx.MatchedAt = timePtr(now)
		payment.BankTransactionID = uuidPtr(tx.ID)
		if err := repo.UpdateBankTransaction(ctx, *tx); err != nil {
			return alreadyMatched(err)
		}
		return alreadyMatched(repo.UpdatePayment(ctx, *payment))
	})
	if err != nil {
		return nil, nil, err
	}

	r.publish(ctx, event.NewBankTransactionMatched(event.ReconciliationPayload{
		TransactionID: tx.ID,
		PaymentID:     payment.ID,
		Amount:        tx.Amount,
	}))
	return tx, payment, nil
}

// Unmatch clears both sides of a link. The payment stays confirmed.
func (r *Reconciler) Unmatch(ctx context.Context, principal model.Principal, transactionID uuid.UUID) (*model.BankTransaction, error) {
	if !principal.CanSettle() {
		return nil, ErrPermissionDenied
	}

	var (
		tx        *model.BankTransaction
		paymentID uuid.UUID
	)
	err := r.store.Transaction(ctx, func(repo repository.Repository) error {
		var err error
		tx, err = repo.LockBankTransaction(ctx, transactionID)
		if err != nil {
			return notFound(err, "bank transaction")
		}
		if tx.Status != model.BankTransactionMatched || tx.MatchedPaymentID == nil {
			return fmt.Errorf("%w: bank transaction %s is not matched", ErrInvalidState, tx.ID)
		}
		paymentID = *tx.MatchedPaymentID

		payment, err := repo.LockPayment(ctx, paymentID)
		if err != nil && !isNotFound(err) {
			return err
		}
		if payment != nil && payment.BankTransactionID != nil && *payment.BankTransactionID == tx.ID {
			payment.BankTransactionID = nil
			if err := repo.UpdatePayment(ctx, *payment); err != nil {
				return err
			}
		}

		tx.Status = model.BankTransactionUnmatched
		tx.MatchedPaymentID = nil
		tx.MatchedAt = nil
		return repo.UpdateBankTransaction(ctx, *tx)
	})
	if err != nil {
		return nil, err
	}

	r.publish(ctx, event.NewBankTransactionUnmatched(event.ReconciliationPayload{
		TransactionID: tx.ID,
		PaymentID:     paymentID,
		Amount:        tx.Amount,
	}))
	return tx, nil
}

func (r *Reconciler) GetBankTransaction(ctx context.Context, id uuid.UUID) (*model.BankTransaction, error) {
	tx, err := r.store.GetBankTransaction(ctx, id)
	if err != nil {
		return nil, notFound(err, "bank transaction")
	}
	return tx, nil
}

func (r *Reconciler) ListBankTransactions(ctx context.Context, status *model.BankTransactionStatus) ([]model.BankTransaction, error) {
	return r.store.ListBankTransactions(ctx, status)
}

func alreadyMatched(err error) error {
	if errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("%w: link taken concurrently", ErrAlreadyMatched)
	}
	return err
}
