package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'service_status') THEN
			CREATE TYPE service_status AS ENUM (
				'pending', 'dispatched', 'in_transit', 'on_site', 'in_progress', 'completed', 'invoiced', 'cancelled'
			);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'closure_status') THEN
			CREATE TYPE closure_status AS ENUM ('draft', 'approved', 'invoicing', 'invoiced');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'invoice_status') THEN
			CREATE TYPE invoice_status AS ENUM ('draft', 'sent', 'pending', 'overdue', 'partial', 'paid', 'cancelled');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'payment_status') THEN
			CREATE TYPE payment_status AS ENUM ('pending', 'confirmed');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'bank_transaction_status') THEN
			CREATE TYPE bank_transaction_status AS ENUM ('unmatched', 'matched');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'liquidation_status') THEN
			CREATE TYPE liquidation_status AS ENUM ('pending', 'approved', 'paid');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS folio_sequences (
		prefix VARCHAR(16) NOT NULL,
		year INTEGER NOT NULL,
		last_value BIGINT NOT NULL,
		PRIMARY KEY (prefix, year)
	);`,
	`CREATE TABLE IF NOT EXISTS clients (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(255) NOT NULL,
		tax_id VARCHAR(32),
		address TEXT,
		phone VARCHAR(32),
		email VARCHAR(255)
	);`,
	`CREATE TABLE IF NOT EXISTS operators (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		full_name VARCHAR(255) NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	);`,
	`CREATE TABLE IF NOT EXISTS payment_terms (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(64) NOT NULL,
		days INTEGER NOT NULL CHECK (days >= 0)
	);`,
	`CREATE TABLE IF NOT EXISTS commission_schemes (
		operator_id UUID PRIMARY KEY REFERENCES operators(id),
		type VARCHAR(16) NOT NULL CHECK (type IN ('flat', 'percentage', 'tiered')),
		rate NUMERIC(7,4),
		flat_amount NUMERIC(18,2),
		tiers JSONB
	);`,
	`CREATE TABLE IF NOT EXISTS billing_closures (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		folio VARCHAR(32) NOT NULL,
		client_id UUID NOT NULL REFERENCES clients(id),
		period_start DATE NOT NULL,
		period_end DATE NOT NULL,
		services_count INTEGER NOT NULL,
		subtotal NUMERIC(18,2) NOT NULL,
		tax_rate NUMERIC(5,2) NOT NULL,
		tax_amount NUMERIC(18,2) NOT NULL,
		total NUMERIC(18,2) NOT NULL,
		status closure_status NOT NULL DEFAULT 'draft',
		invoice_id UUID,
		approved_by UUID,
		approved_at TIMESTAMPTZ,
		created_by UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS services (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		folio VARCHAR(32) NOT NULL,
		status service_status NOT NULL DEFAULT 'pending',
		priority VARCHAR(16) NOT NULL DEFAULT 'normal',
		scheduled_date TIMESTAMPTZ NOT NULL,
		client_id UUID NOT NULL REFERENCES clients(id),
		crane_id UUID,
		operator_id UUID REFERENCES operators(id),
		assistant_operator_id UUID REFERENCES operators(id),
		subtotal NUMERIC(18,2) NOT NULL CHECK (subtotal >= 0),
		total NUMERIC(18,2) NOT NULL CHECK (total >= 0),
		quote_number VARCHAR(64),
		purchase_order_number VARCHAR(64),
		billing_closure_id UUID REFERENCES billing_closures(id),
		status_changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		folio VARCHAR(32) NOT NULL,
		billing_closure_id UUID NOT NULL REFERENCES billing_closures(id),
		client_id UUID NOT NULL REFERENCES clients(id),
		fiscal_folio VARCHAR(64) NOT NULL,
		payment_terms_id UUID NOT NULL REFERENCES payment_terms(id),
		subtotal NUMERIC(18,2) NOT NULL,
		tax_rate NUMERIC(5,2) NOT NULL,
		tax_amount NUMERIC(18,2) NOT NULL,
		total NUMERIC(18,2) NOT NULL,
		balance_due NUMERIC(18,2) NOT NULL,
		issue_date DATE NOT NULL,
		due_date DATE NOT NULL,
		status invoice_status NOT NULL DEFAULT 'draft',
		sent_at TIMESTAMPTZ,
		paid_at TIMESTAMPTZ,
		cancelled_at TIMESTAMPTZ,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		client_id UUID NOT NULL REFERENCES clients(id),
		invoice_id UUID REFERENCES invoices(id),
		amount NUMERIC(18,2) NOT NULL CHECK (amount > 0),
		payment_date DATE NOT NULL,
		payment_method VARCHAR(32) NOT NULL,
		reference_number VARCHAR(64),
		status payment_status NOT NULL DEFAULT 'pending',
		confirmed_at TIMESTAMPTZ,
		confirmed_by UUID,
		bank_transaction_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS bank_transactions (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		description TEXT NOT NULL,
		amount NUMERIC(18,2) NOT NULL,
		transaction_date DATE NOT NULL,
		reference VARCHAR(128),
		status bank_transaction_status NOT NULL DEFAULT 'unmatched',
		matched_payment_id UUID REFERENCES payments(id),
		matched_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK ((status = 'matched') = (matched_payment_id IS NOT NULL))
	);`,
	`CREATE TABLE IF NOT EXISTS commission_liquidations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		operator_id UUID NOT NULL REFERENCES operators(id),
		period_start DATE NOT NULL,
		period_end DATE NOT NULL,
		services_count INTEGER NOT NULL,
		total_services_value NUMERIC(18,2) NOT NULL,
		total_amount NUMERIC(18,2) NOT NULL,
		status liquidation_status NOT NULL DEFAULT 'pending',
		approved_by UUID,
		approved_at TIMESTAMPTZ,
		paid_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS commission_entries (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		service_id UUID NOT NULL REFERENCES services(id),
		operator_id UUID NOT NULL REFERENCES operators(id),
		role VARCHAR(16) NOT NULL,
		scheme_type VARCHAR(16) NOT NULL,
		service_value NUMERIC(18,2) NOT NULL,
		commission_amount NUMERIC(18,2) NOT NULL,
		service_date TIMESTAMPTZ NOT NULL,
		liquidation_id UUID REFERENCES commission_liquidations(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_closure_invoice') THEN
			ALTER TABLE billing_closures ADD CONSTRAINT fk_closure_invoice FOREIGN KEY (invoice_id) REFERENCES invoices(id);
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_payment_bank_transaction') THEN
			ALTER TABLE payments ADD CONSTRAINT fk_payment_bank_transaction FOREIGN KEY (bank_transaction_id) REFERENCES bank_transactions(id);
		END IF;
	END
	$$;`,
	// Single tenant per database: folios are unique globally.
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_services_folio ON services (folio);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_billing_closures_folio ON billing_closures (folio);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_invoices_folio ON invoices (folio);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_invoices_closure ON invoices (billing_closure_id);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_bank_transactions_payment ON bank_transactions (matched_payment_id) WHERE matched_payment_id IS NOT NULL;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_bank_transaction ON payments (bank_transaction_id) WHERE bank_transaction_id IS NOT NULL;`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_commission_entries_role ON commission_entries (service_id, operator_id, role);`,
	`CREATE INDEX IF NOT EXISTS idx_services_closable ON services (client_id, scheduled_date) WHERE status = 'completed' AND billing_closure_id IS NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_services_closure ON services (billing_closure_id) WHERE billing_closure_id IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_payments_invoice ON payments (invoice_id) WHERE invoice_id IS NOT NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_due ON invoices (due_date) WHERE status NOT IN ('paid', 'cancelled');`,
	`CREATE INDEX IF NOT EXISTS idx_commission_entries_operator ON commission_entries (operator_id, service_date) WHERE liquidation_id IS NULL;`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
