package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ClosureStatus string

const (
	ClosureStatusDraft     ClosureStatus = "draft"
	ClosureStatusApproved  ClosureStatus = "approved"
	ClosureStatusInvoicing ClosureStatus = "invoicing"
	ClosureStatusInvoiced  ClosureStatus = "invoiced"
)

// BillingClosure aggregates a client's completed services for one period.
type BillingClosure struct {
	ID            uuid.UUID       `json:"id"`
	Folio         string          `json:"folio"`
	ClientID      uuid.UUID       `json:"client_id"`
	PeriodStart   time.Time       `json:"period_start"`
	PeriodEnd     time.Time       `json:"period_end"`
	ServicesCount int             `json:"services_count"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	Total         decimal.Decimal `json:"total"`
	Status        ClosureStatus   `json:"status"`
	InvoiceID     *uuid.UUID      `json:"invoice_id,omitempty"`
	ApprovedBy    *uuid.UUID      `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time      `json:"approved_at,omitempty"`
	CreatedBy     uuid.UUID       `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ClosureFilter struct {
	ClientID *uuid.UUID
	Status   *ClosureStatus
}

// ClosureDocument is the export view of a closure with its member services.
type ClosureDocument struct {
	Closure  BillingClosure
	Client   Client
	Services []Service
	Currency string
}
