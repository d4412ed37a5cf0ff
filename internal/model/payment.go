package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
)

type PaymentMethod string

const (
	PaymentMethodTransfer       PaymentMethod = "transfer"
	PaymentMethodCash           PaymentMethod = "cash"
	PaymentMethodCheck          PaymentMethod = "check"
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodReconciliation PaymentMethod = "reconciliation"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodTransfer, PaymentMethodCash, PaymentMethodCheck, PaymentMethodCard, PaymentMethodReconciliation:
		return true
	}
	return false
}

type Payment struct {
	ID                uuid.UUID       `json:"id"`
	ClientID          uuid.UUID       `json:"client_id"`
	InvoiceID         *uuid.UUID      `json:"invoice_id,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	PaymentDate       time.Time       `json:"payment_date"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	ReferenceNumber   *string         `json:"reference_number,omitempty"`
	Status            PaymentStatus   `json:"status"`
	ConfirmedAt       *time.Time      `json:"confirmed_at,omitempty"`
	ConfirmedBy       *uuid.UUID      `json:"confirmed_by,omitempty"`
	BankTransactionID *uuid.UUID      `json:"bank_transaction_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

type PaymentFilter struct {
	ClientID  *uuid.UUID
	InvoiceID *uuid.UUID
	Status    *PaymentStatus
}
