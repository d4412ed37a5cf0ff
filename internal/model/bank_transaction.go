package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BankTransactionStatus string

const (
	BankTransactionUnmatched BankTransactionStatus = "unmatched"
	BankTransactionMatched   BankTransactionStatus = "matched"
)

type BankTransaction struct {
	ID               uuid.UUID             `json:"id"`
	Description      string                `json:"description"`
	Amount           decimal.Decimal       `json:"amount"`
	TransactionDate  time.Time             `json:"transaction_date"`
	Reference        *string               `json:"reference,omitempty"`
	Status           BankTransactionStatus `json:"status"`
	MatchedPaymentID *uuid.UUID            `json:"matched_payment_id,omitempty"`
	MatchedAt        *time.Time            `json:"matched_at,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}
