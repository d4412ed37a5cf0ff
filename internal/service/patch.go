package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nurpe/towing-settlement/internal/model"
)

// ServicePatch is one typed update applied by the batch engine. The set is
// closed: only the patches in this file implement it.
type ServicePatch interface {
	Validate() error
	Kind() string
	servicePatch()
}

// StatusPatch routes the service through the state machine.
type StatusPatch struct {
	Status model.ServiceStatus `json:"status"`
}

func (StatusPatch) Kind() string  { return "status" }
func (StatusPatch) servicePatch() {}

func (p StatusPatch) Validate() error {
	if !p.Status.Valid() {
		return fmt.Errorf("unknown status %q", p.Status)
	}
	return nil
}

// ReferencePatch sets the commercial references of a service. A nil field
// is left untouched; an empty string clears it.
type ReferencePatch struct {
	QuoteNumber         *string `json:"quote_number,omitempty"`
	PurchaseOrderNumber *string `json:"purchase_order_number,omitempty"`
}

func (ReferencePatch) Kind() string  { return "reference" }
func (ReferencePatch) servicePatch() {}

func (p ReferencePatch) Validate() error {
	if p.QuoteNumber == nil && p.PurchaseOrderNumber == nil {
		return fmt.Errorf("reference patch has no fields")
	}
	for _, value := range []*string{p.QuoteNumber, p.PurchaseOrderNumber} {
		if value != nil && len(strings.TrimSpace(*value)) > 64 {
			return fmt.Errorf("reference longer than 64 characters")
		}
	}
	return nil
}

func (p ReferencePatch) apply(service *model.Service) {
	if p.QuoteNumber != nil {
		service.QuoteNumber = trimmed(p.QuoteNumber)
	}
	if p.PurchaseOrderNumber != nil {
		service.PurchaseOrderNumber = trimmed(p.PurchaseOrderNumber)
	}
}

// AssignmentPatch reassigns crane and crew. uuid.Nil clears a field.
type AssignmentPatch struct {
	CraneID             *uuid.UUID `json:"crane_id,omitempty"`
	OperatorID          *uuid.UUID `json:"operator_id,omitempty"`
	AssistantOperatorID *uuid.UUID `json:"assistant_operator_id,omitempty"`
}

func (AssignmentPatch) Kind() string  { return "assignment" }
func (AssignmentPatch) servicePatch() {}

func (p AssignmentPatch) Validate() error {
	if p.CraneID == nil && p.OperatorID == nil && p.AssistantOperatorID == nil {
		return fmt.Errorf("assignment patch has no fields")
	}
	if p.OperatorID != nil && p.AssistantOperatorID != nil &&
		*p.OperatorID != uuid.Nil && *p.OperatorID == *p.AssistantOperatorID {
		return fmt.Errorf("assistant operator must differ from operator")
	}
	return nil
}

func (p AssignmentPatch) apply(service *model.Service) error {
	assign := func(dst **uuid.UUID, value *uuid.UUID) {
		if value == nil {
			return
		}
		if *value == uuid.Nil {
			*dst = nil
			return
		}
		*dst = uuidPtr(*value)
	}
	assign(&service.CraneID, p.CraneID)
	assign(&service.OperatorID, p.OperatorID)
	assign(&service.AssistantOperatorID, p.AssistantOperatorID)
	if service.OperatorID != nil && service.AssistantOperatorID != nil && *service.OperatorID == *service.AssistantOperatorID {
		return fmt.Errorf("%w: assistant operator must differ from operator", ErrInvalidInput)
	}
	return nil
}

type PriorityPatch struct {
	Priority model.ServicePriority `json:"priority"`
}

func (PriorityPatch) Kind() string  { return "priority" }
func (PriorityPatch) servicePatch() {}

func (p PriorityPatch) Validate() error {
	if !p.Priority.Valid() {
		return fmt.Errorf("unknown priority %q", p.Priority)
	}
	return nil
}
