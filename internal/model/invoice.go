package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusPartial   InvoiceStatus = "partial"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Settled reports whether no further payments can change the invoice.
func (s InvoiceStatus) Settled() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

type Invoice struct {
	ID               uuid.UUID       `json:"id"`
	Folio            string          `json:"folio"`
	BillingClosureID uuid.UUID       `json:"billing_closure_id"`
	ClientID         uuid.UUID       `json:"client_id"`
	FiscalFolio      string          `json:"fiscal_folio"`
	PaymentTermsID   uuid.UUID       `json:"payment_terms_id"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	Total            decimal.Decimal `json:"total"`
	BalanceDue       decimal.Decimal `json:"balance_due"`
	IssueDate        time.Time       `json:"issue_date"`
	DueDate          time.Time       `json:"due_date"`
	Status           InvoiceStatus   `json:"status"`
	SentAt           *time.Time      `json:"sent_at,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	CancelledAt      *time.Time      `json:"cancelled_at,omitempty"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type InvoiceFilter struct {
	ClientID *uuid.UUID
	Status   *InvoiceStatus
}

// InvoiceDocument is the printable view of an invoice.
type InvoiceDocument struct {
	Invoice  Invoice
	Closure  BillingClosure
	Client   Client
	Services []Service
	Payments []Payment
	Currency string
}
