package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/towing-settlement/internal/model"
)

func (s *Store) CreateService(ctx context.Context, service model.Service) (*model.Service, error) {
	var result *model.Service
	err := s.write(ctx, func(r *txRepo) error {
		var err error
		result, err = r.CreateService(ctx, service)
		return err
	})
	return result, err
}

func (s *Store) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	var result *model.Service
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.GetService(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) LockService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	var result *model.Service
	err := s.write(ctx, func(r *txRepo) error {
		var err error
		result, err = r.LockService(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) UpdateService(ctx context.Context, service model.Service) error {
	return s.write(ctx, func(r *txRepo) error {
		return r.UpdateService(ctx, service)
	})
}

func (s *Store) ListServices(ctx context.Context, filter model.ServiceFilter) ([]model.Service, error) {
	var result []model.Service
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.ListServices(ctx, filter)
		return err
	})
	return result, err
}

func (s *Store) LockClosableServices(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]model.Service, error) {
	var result []model.Service
	err := s.write(ctx, func(r *txRepo) error {
		var err error
		result, err = r.LockClosableServices(ctx, clientID, from, to)
		return err
	})
	return result, err
}

func (s *Store) ListClosureServices(ctx context.Context, closureID uuid.UUID) ([]model.Service, error) {
	var result []model.Service
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.ListClosureServices(ctx, closureID)
		return err
	})
	return result, err
}

func (s *Store) AttachServices(ctx context.Context, closureID uuid.UUID, serviceIDs []uuid.UUID) error {
	return s.write(ctx, func(r *txRepo) error {
		return r.AttachServices(ctx, closureID, serviceIDs)
	})
}

func (s *Store) ReleaseServices(ctx context.Context, closureID uuid.UUID) error {
	return s.write(ctx, func(r *txRepo) error {
		return r.ReleaseServices(ctx, closureID)
	})
}

func (s *Store) MarkClosureServicesInvoiced(ctx context.Context, closureID uuid.UUID, at time.Time) error {
	return s.write(ctx, func(r *txRepo) error {
		return r.MarkClosureServicesInvoiced(ctx, closureID, at)
	})
}

func (s *Store) CreateClosure(ctx context.Context, closure model.BillingClosure) (*model.BillingClosure, error) {
	var result *model.BillingClosure
	err := s.write(ctx, func(r *txRepo) error {
		var err error
		result, err = r.CreateClosure(ctx, closure)
		return err
	})
	return result, err
}

func (s *Store) GetClosure(ctx context.Context, id uuid.UUID) (*model.BillingClosure, error) {
	var result *model.BillingClosure
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.GetClosure(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) LockClosure(ctx context.Context, id uuid.UUID) (*model.BillingClosure, error) {
	var result *model.BillingClosure
	err := s.write(ctx, func(r *txRepo) error {
		var err error
		result, err = r.LockClosure(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) UpdateClosure(ctx context.Context, closure model.BillingClosure) error {
	return s.write(ctx, func(r *txRepo) error {
		return r.UpdateClosure(ctx, closure)
	})
}

func (s *Store) DeleteClosure(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, func(r *txRepo) error {
		return r.DeleteClosure(ctx, id)
	})
}

func (s *Store) ListClosures(ctx context.Context, filter model.ClosureFilter) ([]model.BillingClosure, error) {
	var result []model.BillingClosure
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.ListClosures(ctx, filter)
		return err
	})
	return result, err
}

func (s *Store) CreateInvoice(ctx context.Context, invoice model.Invoice) (*model.Invoice, error) {
	var result *model.Invoice
	err := s.write(ctx, func(r *txRepo) error {
		var err error
		result, err = r.CreateInvoice(ctx, invoice)
		return err
	})
	return result, err
}

func (s *Store) GetInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var result *model.Invoice
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.GetInvoice(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) LockInvoice(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var result *model.Invoice
	err := s.write(ctx, func(r *txRepo) error {
		var err error
		result, err = r.LockInvoice(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) UpdateInvoice(ctx context.Context, invoice model.Invoice) error {
	return s.write(ctx, func(r *txRepo) error {
		return r.UpdateInvoice(ctx, invoice)
	})
}

func (s *Store) ListInvoices(ctx context.Context, filter model.InvoiceFilter) ([]model.Invoice, error) {
	var result []model.Invoice
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.ListInvoices(ctx, filter)
		return err
	})
	return result, err
}

func (s *Store) ListOverdueCandidates(ctx context.Context, now time.Time) ([]model.Invoice, error) {
	var result []model.Invoice
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.ListOverdueCandidates(ctx, now)
		return err
	})
	return result, err
}

func (s *Store) CreatePayment(ctx context.Context, payment model.Payment) (*model.Payment, error) {
	var result *model.Payment
	err := s.write(ctx, func(r *txRepo) error {
		var err error
		result, err = r.CreatePayment(ctx, payment)
		return err
	})
	return result, err
}

func (s *Store) GetPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var result *model.Payment
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.GetPayment(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) LockPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var result *model.Payment
	err := s.write(ctx, func(r *txRepo) error {
		var err error
		result, err = r.LockPayment(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) UpdatePayment(ctx context.Context, payment model.Payment) error {
	return s.write(ctx, func(r *txRepo) error {
		return r.UpdatePayment(ctx, payment)
	})
}

func (s *Store) ListPayments(ctx context.Context, filter model.PaymentFilter) ([]model.Payment, error) {
	var result []model.Payment
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.ListPayments(ctx, filter)
		return err
	})
	return result, err
}

func (s *Store) SumConfirmedPayments(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var result decimal.Decimal
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.SumConfirmedPayments(ctx, invoiceID)
		return err
	})
	return result, err
}

func (s *Store) CreateBankTransaction(ctx context.Context, tx model.BankTransaction) (*model.BankTransaction, error) {
	var result *model.BankTransaction
	err := s.write(ctx, func(r *txRepo) error {
		var err error
		result, err = r.CreateBankTransaction(ctx, tx)
		return err
	})
	return result, err
}

func (s *Store) GetBankTransaction(ctx context.Context, id uuid.UUID) (*model.BankTransaction, error) {
	var result *model.BankTransaction
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.GetBankTransaction(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) LockBankTransaction(ctx context.Context, id uuid.UUID) (*model.BankTransaction, error) {
	var result *model.BankTransaction
	err := s.write(ctx, func(r *txRepo) error {
		var err error
		result, err = r.LockBankTransaction(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) UpdateBankTransaction(ctx context.Context, tx model.BankTransaction) error {
	return s.write(ctx, func(r *txRepo) error {
		return r.UpdateBankTransaction(ctx, tx)
	})
}

func (s *Store) ListBankTransactions(ctx context.Context, status *model.BankTransactionStatus) ([]model.BankTransaction, error) {
	var result []model.BankTransaction
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.ListBankTransactions(ctx, status)
		return err
	})
	return result, err
}

func (s *Store) ListCommissionEntries(ctx context.Context, serviceID uuid.UUID) ([]model.CommissionEntry, error) {
	var result []model.CommissionEntry
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.ListCommissionEntries(ctx, serviceID)
		return err
	})
	return result, err
}

func (s *Store) ListOperatorEntries(ctx context.Context, operatorID uuid.UUID, liquidationID *uuid.UUID) ([]model.CommissionEntry, error) {
	var result []model.CommissionEntry
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.ListOperatorEntries(ctx, operatorID, liquidationID)
		return err
	})
	return result, err
}

func (s *Store) ReplaceCommissionEntries(ctx context.Context, serviceID uuid.UUID, entries []model.CommissionEntry) error {
	return s.write(ctx, func(r *txRepo) error {
		return r.ReplaceCommissionEntries(ctx, serviceID, entries)
	})
}

func (s *Store) LockUnliquidatedEntries(ctx context.Context, operatorID uuid.UUID, from, to time.Time) ([]model.CommissionEntry, error) {
	var result []model.CommissionEntry
	err := s.write(ctx, func(r *txRepo) error {
		var err error
		result, err = r.LockUnliquidatedEntries(ctx, operatorID, from, to)
		return err
	})
	return result, err
}

func (s *Store) BindEntries(ctx context.Context, liquidationID uuid.UUID, entryIDs []uuid.UUID) error {
	return s.write(ctx, func(r *txRepo) error {
		return r.BindEntries(ctx, liquidationID, entryIDs)
	})
}

func (s *Store) CreateLiquidation(ctx context.Context, liquidation model.CommissionLiquidation) (*model.CommissionLiquidation, error) {
	var result *model.CommissionLiquidation
	err := s.write(ctx, func(r *txRepo) error {
		var err error
		result, err = r.CreateLiquidation(ctx, liquidation)
		return err
	})
	return result, err
}

func (s *Store) GetLiquidation(ctx context.Context, id uuid.UUID) (*model.CommissionLiquidation, error) {
	var result *model.CommissionLiquidation
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.GetLiquidation(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) LockLiquidation(ctx context.Context, id uuid.UUID) (*model.CommissionLiquidation, error) {
	var result *model.CommissionLiquidation
	err := s.write(ctx, func(r *txRepo) error {
		var err error
		result, err = r.LockLiquidation(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) UpdateLiquidation(ctx context.Context, liquidation model.CommissionLiquidation) error {
	return s.write(ctx, func(r *txRepo) error {
		return r.UpdateLiquidation(ctx, liquidation)
	})
}

func (s *Store) ListLiquidations(ctx context.Context, filter model.LiquidationFilter) ([]model.CommissionLiquidation, error) {
	var result []model.CommissionLiquidation
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.ListLiquidations(ctx, filter)
		return err
	})
	return result, err
}

func (s *Store) GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	var result *model.Client
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.GetClient(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) GetOperator(ctx context.Context, id uuid.UUID) (*model.Operator, error) {
	var result *model.Operator
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.GetOperator(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) GetCommissionScheme(ctx context.Context, operatorID uuid.UUID) (*model.CommissionScheme, error) {
	var result *model.CommissionScheme
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.GetCommissionScheme(ctx, operatorID)
		return err
	})
	return result, err
}

func (s *Store) GetPaymentTerms(ctx context.Context, id uuid.UUID) (*model.PaymentTerms, error) {
	var result *model.PaymentTerms
	err := s.read(func(r *txRepo) error {
		var err error
		result, err = r.GetPaymentTerms(ctx, id)
		return err
	})
	return result, err
}

func (s *Store) NextFolio(ctx context.Context, prefix string, year int) (int64, error) {
	var result int64
	err := s.write(ctx, func(r *txRepo) error {
		var err error
		result, err = r.NextFolio(ctx, prefix, year)
		return err
	})
	return result, err
}

