package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CommissionRole string

const (
	CommissionRolePrimary   CommissionRole = "primary"
	CommissionRoleAssistant CommissionRole = "assistant"
)

type CommissionSchemeType string

const (
	CommissionSchemeFlat       CommissionSchemeType = "flat"
	CommissionSchemePercentage CommissionSchemeType = "percentage"
	CommissionSchemeTiered     CommissionSchemeType = "tiered"
)

// CommissionTier applies Rate (percent) to services valued at MinValue or more.
type CommissionTier struct {
	MinValue decimal.Decimal `json:"min_value"`
	Rate     decimal.Decimal `json:"rate"`
}

type CommissionScheme struct {
	OperatorID uuid.UUID            `json:"operator_id"`
	Type       CommissionSchemeType `json:"type"`
	Rate       decimal.Decimal      `json:"rate"`
	FlatAmount decimal.Decimal      `json:"flat_amount"`
	Tiers      []CommissionTier     `json:"tiers,omitempty"`
}

type CommissionEntry struct {
	ID               uuid.UUID            `json:"id"`
	ServiceID        uuid.UUID            `json:"service_id"`
	OperatorID       uuid.UUID            `json:"operator_id"`
	Role             CommissionRole       `json:"role"`
	SchemeType       CommissionSchemeType `json:"scheme_type"`
	ServiceValue     decimal.Decimal      `json:"service_value"`
	CommissionAmount decimal.Decimal      `json:"commission_amount"`
	ServiceDate      time.Time            `json:"service_date"`
	LiquidationID    *uuid.UUID           `json:"liquidation_id,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
}

type LiquidationStatus string

const (
	LiquidationStatusPending  LiquidationStatus = "pending"
	LiquidationStatusApproved LiquidationStatus = "approved"
	LiquidationStatusPaid     LiquidationStatus = "paid"
)

type CommissionLiquidation struct {
	ID                 uuid.UUID         `json:"id"`
	OperatorID         uuid.UUID         `json:"operator_id"`
	PeriodStart        time.Time         `json:"period_start"`
	PeriodEnd          time.Time         `json:"period_end"`
	ServicesCount      int               `json:"services_count"`
	TotalServicesValue decimal.Decimal   `json:"total_services_value"`
	TotalAmount        decimal.Decimal   `json:"total_amount"`
	Status             LiquidationStatus `json:"status"`
	ApprovedBy         *uuid.UUID        `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time        `json:"approved_at,omitempty"`
	PaidAt             *time.Time        `json:"paid_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

type LiquidationFilter struct {
	OperatorID *uuid.UUID
	Status     *LiquidationStatus
}
