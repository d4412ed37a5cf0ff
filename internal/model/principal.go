package model

import "github.com/google/uuid"

type UserRole string

const (
	UserRoleAdmin      UserRole = "ADMIN"
	UserRoleFinance    UserRole = "FINANCE"
	UserRoleDispatcher UserRole = "DISPATCHER"
	UserRoleOperator   UserRole = "OPERATOR"
)

type Principal struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Role   UserRole
}

func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin
}

func (p Principal) IsFinance() bool {
	return p.Role == UserRoleFinance
}

func (p Principal) IsDispatcher() bool {
	return p.Role == UserRoleDispatcher
}

func (p Principal) IsOperator() bool {
	return p.Role == UserRoleOperator
}

// CanDispatch covers service creation, status moves and batch edits.
func (p Principal) CanDispatch() bool {
	return p.IsAdmin() || p.IsDispatcher()
}

// CanSettle covers closures, invoices, payments, reconciliation and
// commission liquidations.
func (p Principal) CanSettle() bool {
	return p.IsAdmin() || p.IsFinance()
}
