package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/towing-settlement/internal/model"
)

func TestGenerator_Generate(t *testing.T) {
	day := time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)
	quote := "COT-12"
	doc := model.InvoiceDocument{
		Invoice: model.Invoice{
			Folio:       "FAC-2026-00001",
			FiscalFolio: "DTE-1001",
			Subtotal:    decimal.NewFromInt(150000),
			TaxRate:     decimal.NewFromInt(19),
			TaxAmount:   decimal.NewFromInt(28500),
			Total:       decimal.NewFromInt(178500),
			BalanceDue:  decimal.NewFromInt(100000),
			IssueDate:   day,
			DueDate:     day.AddDate(0, 0, 30),
			Status:      model.InvoiceStatusPartial,
		},
		Closure: model.BillingClosure{Folio: "CB-2026-00001", PeriodStart: day.AddDate(0, -1, 0), PeriodEnd: day},
		Client:  model.Client{Name: "Grúas del Maipo", TaxID: "76.123.456-7"},
		Services: []model.Service{
			{Folio: "SRV-2026-00001", ScheduledDate: day, QuoteNumber: &quote, Subtotal: decimal.NewFromInt(150000)},
		},
		Payments: []model.Payment{
			{Amount: decimal.NewFromInt(78500), PaymentDate: day, PaymentMethod: model.PaymentMethodTransfer, Status: model.PaymentStatusConfirmed},
		},
		Currency: "CLP",
	}

	data, err := NewGenerator().Generate(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "CLP 178500", formatAmount(decimal.RequireFromString("178500.4"), "CLP"))
	assert.Equal(t, "-", formatDate(time.Time{}))
	assert.Equal(t, "31-03-2026", formatDate(time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "-", safeValue(nil))
}
