package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/towing-settlement/internal/model"
)

// ErrNotFound is returned by stores that do not speak gorm.
var ErrNotFound = errors.New("record not found")

// ErrConflict signals a unique constraint violation.
var ErrConflict = errors.New("conflict")

type ServiceRepository interface {
	CreateService(ctx context.Context, service model.Service) (*model.Service, error)
	GetService(ctx context.Context, id uuid.UUID) (*model.Service, error)
	// LockService reads the service row for update.
	LockService(ctx context.Context, id uuid.UUID) (*model.Service, error)
	UpdateService(ctx context.Context, service model.Service) error
	ListServices(ctx context.Context, filter model.ServiceFilter) ([]model.Service, error)
	// LockClosableServices returns completed, unclosed services of a client
	// scheduled in [from, to), locked for update.
	LockClosableServices(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]model.Service, error)
	ListClosureServices(ctx context.Context, closureID uuid.UUID) ([]model.Service, error)
	AttachServices(ctx context.Context, closureID uuid.UUID, serviceIDs []uuid.UUID) error
	ReleaseServices(ctx context.Context, closureID uuid.UUID) error
	MarkClosureServicesInvoiced(ctx context.Context, closureID uuid.UUID, at time.Time) error
}

type ClosureRepository interface {
	CreateClosure(ctx context.Context, closure model.BillingClosure) (*model.BillingClosure, error)
	GetClosure(ctx context.Context, id uuid.UUID) (*model.BillingClosure, error)
	LockClosure(ctx context.Context, id uuid.UUID) (*model.BillingClosure, error)
	UpdateClosure(ctx context.Context, closure model.BillingClosure) error
	DeleteClosure(ctx context.Context, id uuid.UUID) error
	ListClosures(ctx context.Context, filter model.ClosureFilter) ([]model.BillingClosure, error)
}

type InvoiceRepository interface {
	CreateInvoice(ctx context.Context, invoice model.Invoice) (*model.Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	LockInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	// UpdateInvoice writes the invoice if its version still matches and
	// bumps the version.
	UpdateInvoice(ctx context.Context, invoice model.Invoice) error
	ListInvoices(ctx context.Context, filter model.InvoiceFilter) ([]model.Invoice, error)
	// ListOverdueCandidates returns unsettled invoices due before now with a
	// positive balance that are not yet flagged overdue.
	ListOverdueCandidates(ctx context.Context, now time.Time) ([]model.Invoice, error)
}

type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment model.Payment) (*model.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	LockPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	UpdatePayment(ctx context.Context, payment model.Payment) error
	ListPayments(ctx context.Context, filter model.PaymentFilter) ([]model.Payment, error)
	SumConfirmedPayments(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
}

type BankTransactionRepository interface {
	CreateBankTransaction(ctx context.Context, tx model.BankTransaction) (*model.BankTransaction, error)
	GetBankTransaction(ctx context.Context, id uuid.UUID) (*model.BankTransaction, error)
	LockBankTransaction(ctx context.Context, id uuid.UUID) (*model.BankTransaction, error)
	UpdateBankTransaction(ctx context.Context, tx model.BankTransaction) error
	ListBankTransactions(ctx context.Context, status *model.BankTransactionStatus) ([]model.BankTransaction, error)
}

type CommissionRepository interface {
	ListCommissionEntries(ctx context.Context, serviceID uuid.UUID) ([]model.CommissionEntry, error)
	ListOperatorEntries(ctx context.Context, operatorID uuid.UUID, liquidationID *uuid.UUID) ([]model.CommissionEntry, error)
	// ReplaceCommissionEntries deletes the service's entries and inserts the
	// given ones.
	ReplaceCommissionEntries(ctx context.Context, serviceID uuid.UUID, entries []model.CommissionEntry) error
	// LockUnliquidatedEntries returns entries of the operator not bound to a
	// liquidation whose service date is in [from, to), locked for update.
	LockUnliquidatedEntries(ctx context.Context, operatorID uuid.UUID, from, to time.Time) ([]model.CommissionEntry, error)
	BindEntries(ctx context.Context, liquidationID uuid.UUID, entryIDs []uuid.UUID) error
	CreateLiquidation(ctx context.Context, liquidation model.CommissionLiquidation) (*model.CommissionLiquidation, error)
	GetLiquidation(ctx context.Context, id uuid.UUID) (*model.CommissionLiquidation, error)
	LockLiquidation(ctx context.Context, id uuid.UUID) (*model.CommissionLiquidation, error)
	UpdateLiquidation(ctx context.Context, liquidation model.CommissionLiquidation) error
	ListLiquidations(ctx context.Context, filter model.LiquidationFilter) ([]model.CommissionLiquidation, error)
}

// LookupRepository reads catalog data owned by other screens.
type LookupRepository interface {
	GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error)
	GetOperator(ctx context.Context, id uuid.UUID) (*model.Operator, error)
	GetCommissionScheme(ctx context.Context, operatorID uuid.UUID) (*model.CommissionScheme, error)
	GetPaymentTerms(ctx context.Context, id uuid.UUID) (*model.PaymentTerms, error)
}

type FolioRepository interface {
	// NextFolio reserves the next sequence number for prefix and year.
	NextFolio(ctx context.Context, prefix string, year int) (int64, error)
}

// Repository is the full set of entity operations available inside and
// outside a transaction.
type Repository interface {
	ServiceRepository
	ClosureRepository
	InvoiceRepository
	PaymentRepository
	BankTransactionRepository
	CommissionRepository
	LookupRepository
	FolioRepository
}

// Store runs fn inside a single database transaction. A non-nil error from
// fn rolls every write back.
type Store interface {
	Repository
	Transaction(ctx context.Context, fn func(repo Repository) error) error
}
