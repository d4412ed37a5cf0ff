package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ServiceStatus string

const (
	ServiceStatusPending    ServiceStatus = "pending"
	ServiceStatusDispatched ServiceStatus = "dispatched"
	ServiceStatusInTransit  ServiceStatus = "in_transit"
	ServiceStatusOnSite     ServiceStatus = "on_site"
	ServiceStatusInProgress ServiceStatus = "in_progress"
	ServiceStatusCompleted  ServiceStatus = "completed"
	ServiceStatusInvoiced   ServiceStatus = "invoiced"
	ServiceStatusCancelled  ServiceStatus = "cancelled"
)

// ServiceStatusOrder is the forward order of the field workflow.
var ServiceStatusOrder = []ServiceStatus{
	ServiceStatusPending,
	ServiceStatusDispatched,
	ServiceStatusInTransit,
	ServiceStatusOnSite,
	ServiceStatusInProgress,
	ServiceStatusCompleted,
}

// Rank returns the position of s in the forward order, or -1 for
// statuses outside of it (invoiced, cancelled, unknown).
func (s ServiceStatus) Rank() int {
	for i, status := range ServiceStatusOrder {
		if status == s {
			return i
		}
	}
	return -1
}

func (s ServiceStatus) Valid() bool {
	return s.Rank() >= 0 || s == ServiceStatusInvoiced || s == ServiceStatusCancelled
}

// Billable reports whether a service in this status may be aggregated
// into a billing closure.
func (s ServiceStatus) Billable() bool {
	return s == ServiceStatusCompleted || s == ServiceStatusInvoiced
}

type ServicePriority string

const (
	ServicePriorityLow    ServicePriority = "low"
	ServicePriorityNormal ServicePriority = "normal"
	ServicePriorityHigh   ServicePriority = "high"
	ServicePriorityUrgent ServicePriority = "urgent"
)

func (p ServicePriority) Valid() bool {
	switch p {
	case ServicePriorityLow, ServicePriorityNormal, ServicePriorityHigh, ServicePriorityUrgent:
		return true
	}
	return false
}

type Service struct {
	ID                  uuid.UUID       `json:"id"`
	Folio               string          `json:"folio"`
	Status              ServiceStatus   `json:"status"`
	Priority            ServicePriority `json:"priority"`
	ScheduledDate       time.Time       `json:"scheduled_date"`
	ClientID            uuid.UUID       `json:"client_id"`
	CraneID             *uuid.UUID      `json:"crane_id,omitempty"`
	OperatorID          *uuid.UUID      `json:"operator_id,omitempty"`
	AssistantOperatorID *uuid.UUID      `json:"assistant_operator_id,omitempty"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	Total               decimal.Decimal `json:"total"`
	QuoteNumber         *string         `json:"quote_number,omitempty"`
	PurchaseOrderNumber *string         `json:"purchase_order_number,omitempty"`
	BillingClosureID    *uuid.UUID      `json:"billing_closure_id,omitempty"`
	StatusChangedAt     time.Time       `json:"status_changed_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Closed reports whether the service already belongs to a billing closure.
func (s Service) Closed() bool {
	return s.BillingClosureID != nil
}

type ServiceFilter struct {
	ClientID *uuid.UUID
	Status   *ServiceStatus
	From     *time.Time
	To       *time.Time
}
