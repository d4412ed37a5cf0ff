package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types published by the settlement pipeline.
const (
	TypeServiceStatusChanged     = "service_status_changed"
	TypeServiceCompleted         = "service_completed"
	TypeServiceCrewChanged       = "service_crew_changed"
	TypeClosureCreated           = "closure_created"
	TypeClosureApproved          = "closure_approved"
	TypeClosureInvoiced          = "closure_invoiced"
	TypeInvoiceUpdated           = "invoice_updated"
	TypePaymentRegistered        = "payment_registered"
	TypePaymentConfirmed         = "payment_confirmed"
	TypeBankTransactionMatched   = "bank_transaction_matched"
	TypeBankTransactionUnmatched = "bank_transaction_unmatched"
	TypeLiquidationGenerated     = "liquidation_generated"
	TypeLiquidationStatusChanged = "liquidation_status_changed"
)

// EntityRef points at an entity touched by an event.
type EntityRef struct {
	EntityType string    `json:"entity_type"`
	EntityID   uuid.UUID `json:"entity_id"`
}

// DomainEvent is the envelope read models subscribe to.
type DomainEvent struct {
	ID         uuid.UUID       `json:"id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Entities   []EntityRef     `json:"entities"`
	Summary    string          `json:"summary"`
	Payload    json.RawMessage `json:"payload"`
}

// Subject returns the first referenced entity of the given type.
func (e DomainEvent) Subject(entityType string) (uuid.UUID, bool) {
	for _, ref := range e.Entities {
		if ref.EntityType == entityType {
			return ref.EntityID, true
		}
	}
	return uuid.Nil, false
}

func newEvent(eventType, summary string, payload any, refs ...EntityRef) DomainEvent {
	raw, _ := json.Marshal(payload)
	return DomainEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Entities:   refs,
		Summary:    summary,
		Payload:    raw,
	}
}

func ref(entityType string, id uuid.UUID) EntityRef {
	return EntityRef{EntityType: entityType, EntityID: id}
}

type ServiceStatusPayload struct {
	ServiceID uuid.UUID `json:"service_id"`
	Folio     string    `json:"folio"`
	From      string    `json:"from"`
	To        string    `json:"to"`
}

func NewServiceStatusChanged(p ServiceStatusPayload) DomainEvent {
	return newEvent(TypeServiceStatusChanged,
		fmt.Sprintf("Service %s moved %s -> %s", p.Folio, p.From, p.To),
		p, ref("service", p.ServiceID))
}

func NewServiceCompleted(p ServiceStatusPayload) DomainEvent {
	return newEvent(TypeServiceCompleted,
		fmt.Sprintf("Service %s completed", p.Folio),
		p, ref("service", p.ServiceID))
}

type ServiceCrewPayload struct {
	ServiceID           uuid.UUID  `json:"service_id"`
	Folio               string     `json:"folio"`
	OperatorID          *uuid.UUID `json:"operator_id,omitempty"`
	AssistantOperatorID *uuid.UUID `json:"assistant_operator_id,omitempty"`
}

// NewServiceCrewChanged reports a crew change on a finished service, which
// invalidates its commission entries.
func NewServiceCrewChanged(p ServiceCrewPayload) DomainEvent {
	return newEvent(TypeServiceCrewChanged,
		fmt.Sprintf("Service %s crew changed", p.Folio),
		p, ref("service", p.ServiceID))
}

type ClosurePayload struct {
	ClosureID uuid.UUID       `json:"closure_id"`
	ClientID  uuid.UUID       `json:"client_id"`
	Folio     string          `json:"folio"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	InvoiceID *uuid.UUID      `json:"invoice_id,omitempty"`
}

func NewClosureCreated(p ClosurePayload) DomainEvent {
	return newEvent(TypeClosureCreated,
		fmt.Sprintf("Closure %s created for %s", p.Folio, p.Total.String()),
		p, ref("billing_closure", p.ClosureID), ref("client", p.ClientID))
}

func NewClosureApproved(p ClosurePayload) DomainEvent {
	return newEvent(TypeClosureApproved,
		fmt.Sprintf("Closure %s approved", p.Folio),
		p, ref("billing_closure", p.ClosureID), ref("client", p.ClientID))
}

func NewClosureInvoiced(p ClosurePayload) DomainEvent {
	refs := []EntityRef{ref("billing_closure", p.ClosureID), ref("client", p.ClientID)}
	if p.InvoiceID != nil {
		refs = append(refs, ref("invoice", *p.InvoiceID))
	}
	return newEvent(TypeClosureInvoiced,
		fmt.Sprintf("Closure %s is %s", p.Folio, p.Status),
		p, refs...)
}

type InvoicePayload struct {
	InvoiceID  uuid.UUID       `json:"invoice_id"`
	ClientID   uuid.UUID       `json:"client_id"`
	Folio      string          `json:"folio"`
	Status     string          `json:"status"`
	Total      decimal.Decimal `json:"total"`
	BalanceDue decimal.Decimal `json:"balance_due"`
}

func NewInvoiceUpdated(p InvoicePayload) DomainEvent {
	return newEvent(TypeInvoiceUpdated,
		fmt.Sprintf("Invoice %s is %s, balance %s", p.Folio, p.Status, p.BalanceDue.String()),
		p, ref("invoice", p.InvoiceID), ref("client", p.ClientID))
}

type PaymentPayload struct {
	PaymentID uuid.UUID       `json:"payment_id"`
	ClientID  uuid.UUID       `json:"client_id"`
	InvoiceID *uuid.UUID      `json:"invoice_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
}

func (p PaymentPayload) refs() []EntityRef {
	refs := []EntityRef{ref("payment", p.PaymentID), ref("client", p.ClientID)}
	if p.InvoiceID != nil {
		refs = append(refs, ref("invoice", *p.InvoiceID))
	}
	return refs
}

func NewPaymentRegistered(p PaymentPayload) DomainEvent {
	return newEvent(TypePaymentRegistered,
		fmt.Sprintf("Payment of %s registered", p.Amount.String()),
		p, p.refs()...)
}

func NewPaymentConfirmed(p PaymentPayload) DomainEvent {
	return newEvent(TypePaymentConfirmed,
		fmt.Sprintf("Payment of %s confirmed", p.Amount.String()),
		p, p.refs()...)
}

type ReconciliationPayload struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	PaymentID     uuid.UUID       `json:"payment_id"`
	Amount        decimal.Decimal `json:"amount"`
}

func NewBankTransactionMatched(p ReconciliationPayload) DomainEvent {
	return newEvent(TypeBankTransactionMatched,
		fmt.Sprintf("Bank line matched for %s", p.Amount.String()),
		p, ref("bank_transaction", p.TransactionID), ref("payment", p.PaymentID))
}

func NewBankTransactionUnmatched(p ReconciliationPayload) DomainEvent {
	return newEvent(TypeBankTransactionUnmatched,
		fmt.Sprintf("Bank line unmatched for %s", p.Amount.String()),
		p, ref("bank_transaction", p.TransactionID), ref("payment", p.PaymentID))
}

type LiquidationPayload struct {
	LiquidationID uuid.UUID       `json:"liquidation_id"`
	OperatorID    uuid.UUID       `json:"operator_id"`
	Status        string          `json:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

func NewLiquidationGenerated(p LiquidationPayload) DomainEvent {
	return newEvent(TypeLiquidationGenerated,
		fmt.Sprintf("Liquidation of %s generated", p.TotalAmount.String()),
		p, ref("commission_liquidation", p.LiquidationID), ref("operator", p.OperatorID))
}

func NewLiquidationStatusChanged(p LiquidationPayload) DomainEvent {
	return newEvent(TypeLiquidationStatusChanged,
		fmt.Sprintf("Liquidation is %s", p.Status),
		p, ref("commission_liquidation", p.LiquidationID), ref("operator", p.OperatorID))
}
