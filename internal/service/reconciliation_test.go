package service

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/towing-settlement/internal/model"
)

type stubParser struct {
	lines []model.BankTransaction
	err   error
}

func (p stubParser) ParseBankStatement(io.Reader) ([]model.BankTransaction, error) {
	return p.lines, p.err
}

func (f *fixture) bankLine(t *testing.T, amount int64) *model.BankTransaction {
	t.Helper()
	created, err := f.reconciler.ImportTransactions(f.ctx, finance, []model.BankTransaction{
		{Description: "TRANSF CONSTRUCTORA ANDES", Amount: money(amount), TransactionDate: f.day},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	return &created[0]
}

func TestReconciler_MatchAndUnmatch(t *testing.T) {
	f := newFixture(t)
	payment := f.confirmedPayment(t, nil, 50000)
	line := f.bankLine(t, 50000)
	assert.Equal(t, model.BankTransactionUnmatched, line.Status)

	tx, matched, err := f.reconciler.Match(f.ctx, finance, line.ID, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BankTransactionMatched, tx.Status)
	assert.Equal(t, payment.ID, *tx.MatchedPaymentID)
	assert.NotNil(t, tx.MatchedAt)
	assert.Equal(t, line.ID, *matched.BankTransactionID)
	assertLinkSymmetry(t, f)

	tx, err = f.reconciler.Unmatch(f.ctx, finance, line.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BankTransactionUnmatched, tx.Status)
	assert.Nil(t, tx.MatchedPaymentID)
	assert.Nil(t, tx.MatchedAt)

	stored, err := f.settlement.GetPayment(f.ctx, payment.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.BankTransactionID)
	assert.Equal(t, model.PaymentStatusConfirmed, stored.Status)
	assertLinkSymmetry(t, f)

	_, err = f.reconciler.Unmatch(f.ctx, finance, line.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestReconciler_Match_AmountMismatch(t *testing.T) {
	f := newFixture(t)
	payment := f.confirmedPayment(t, nil, 60000)
	line := f.bankLine(t, 50000)

	_, _, err := f.reconciler.Match(f.ctx, finance, line.ID, payment.ID)
	assert.ErrorIs(t, err, ErrAmountMismatch)

	storedLine, err := f.reconciler.GetBankTransaction(f.ctx, line.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BankTransactionUnmatched, storedLine.Status)
	assert.Nil(t, storedLine.MatchedPaymentID)

	storedPayment, err := f.settlement.GetPayment(f.ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusConfirmed, storedPayment.Status)
	assert.Nil(t, storedPayment.BankTransactionID)
}

func TestReconciler_Match_AlreadyMatched(t *testing.T) {
	f := newFixture(t)
	payment := f.confirmedPayment(t, nil, 50000)
	other := f.confirmedPayment(t, nil, 50000)
	line := f.bankLine(t, 50000)
	second := f.bankLine(t, 50000)

	_, _, err := f.reconciler.Match(f.ctx, finance, line.ID, payment.ID)
	require.NoError(t, err)

	_, _, err = f.reconciler.Match(f.ctx, finance, line.ID, other.ID)
	assert.ErrorIs(t, err, ErrAlreadyMatched)

	_, _, err = f.reconciler.Match(f.ctx, finance, second.ID, payment.ID)
	assert.ErrorIs(t, err, ErrAlreadyMatched)

	stored, err := f.reconciler.GetBankTransaction(f.ctx, line.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, *stored.MatchedPaymentID, "existing link must not be overwritten")
	assertLinkSymmetry(t, f)
}

func TestReconciler_Match_RequiresConfirmedPayment(t *testing.T) {
	f := newFixture(t)
	payment, err := f.settlement.RegisterPayment(f.ctx, RegisterPaymentInput{
		ClientID:  f.client.ID,
		Amount:    money(50000),
		Principal: finance,
	})
	require.NoError(t, err)
	line := f.bankLine(t, 50000)

	_, _, err = f.reconciler.Match(f.ctx, finance, line.ID, payment.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, _, err = f.reconciler.Match(f.ctx, finance, line.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = f.reconciler.Match(f.ctx, dispatcher, line.ID, payment.ID)
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestReconciler_ImportTransactions(t *testing.T) {
	f := newFixture(t)

	_, err := f.reconciler.ImportTransactions(f.ctx, finance, []model.BankTransaction{
		{Amount: money(100), TransactionDate: f.day},
		{Amount: money(-5), TransactionDate: f.day},
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	all, err := f.reconciler.ListBankTransactions(f.ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all, "invalid imports store nothing")
}

func TestReconciler_ImportStatement(t *testing.T) {
	f := newFixture(t)
	f.reconciler.parser = stubParser{lines: []model.BankTransaction{
		{Description: " ABONO ", Amount: money(1000), TransactionDate: f.day},
		{Description: "ABONO", Amount: money(2000), TransactionDate: f.day},
	}}

	created, err := f.reconciler.ImportStatement(f.ctx, finance, strings.NewReader("xlsx"))
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "ABONO", created[0].Description)

	unmatched := model.BankTransactionUnmatched
	listed, err := f.reconciler.ListBankTransactions(f.ctx, &unmatched)
	require.NoError(t, err)
	assert.Len(t, listed, 2)

	f.reconciler.parser = stubParser{err: errors.New("missing header row")}
	_, err = f.reconciler.ImportStatement(f.ctx, finance, strings.NewReader("xlsx"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// assertLinkSymmetry checks matched <=> matched_payment_id set, and that the
// payment points back.
func assertLinkSymmetry(t *testing.T, f *fixture) {
	t.Helper()
	lines, err := f.reconciler.ListBankTransactions(f.ctx, nil)
	require.NoError(t, err)
	for _, line := range lines {
		assert.Equal(t, line.Status == model.BankTransactionMatched, line.MatchedPaymentID != nil)
		if line.MatchedPaymentID == nil {
			continue
		}
		payment, err := f.settlement.GetPayment(f.ctx, *line.MatchedPaymentID)
		require.NoError(t, err)
		require.NotNil(t, payment.BankTransactionID)
		assert.Equal(t, line.ID, *payment.BankTransactionID)
	}
}
