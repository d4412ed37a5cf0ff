package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/nurpe/towing-settlement/internal/model"
)

type Generator struct {
	fontName string
}

// NewGenerator uses a core font; text is translated to cp1252, which covers
// Spanish.
func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

func (g *Generator) Generate(doc model.InvoiceDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	invoice := doc.Invoice

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Factura %s", invoice.Folio)), "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Folio tributario %s, emitida el %s", invoice.FiscalFolio, formatDate(invoice.IssueDate))), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Vencimiento %s, estado %s", formatDate(invoice.DueDate), invoice.Status)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	addClientBlock(pdf, g.fontName, tr, doc.Client)
	pdf.Ln(2)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("Cierre %s", doc.Closure.Folio)), "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Periodo del %s al %s", formatDate(doc.Closure.PeriodStart), formatDate(doc.Closure.PeriodEnd))), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	headers := []string{"Servicio", "Fecha", "Cotización", "Orden de compra", "Subtotal"}
	colWidths := []float64{40, 25, 40, 40, 35}
	drawTableRow(pdf, g.fontName, tr, headers, colWidths, true)
	for _, service := range doc.Services {
		drawTableRow(pdf, g.fontName, tr, []string{
			service.Folio,
			formatDate(service.ScheduledDate),
			safeValue(service.QuoteNumber),
			safeValue(service.PurchaseOrderNumber),
			formatAmount(service.Subtotal, doc.Currency),
		}, colWidths, false)
	}

	pdf.Ln(2)
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Neto: %s", formatAmount(invoice.Subtotal, doc.Currency))), "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("IVA (%s%%): %s", invoice.TaxRate.String(), formatAmount(invoice.TaxAmount, doc.Currency))), "", 1, "R", false, 0, "")
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Total: %s", formatAmount(invoice.Total, doc.Currency))), "", 1, "R", false, 0, "")

	if len(doc.Payments) > 0 {
		pdf.Ln(4)
		pdf.SetFont(g.fontName, "B", 12)
		pdf.CellFormat(0, 8, "Pagos", "", 1, "L", false, 0, "")
		for _, payment := range doc.Payments {
			pdf.SetFont(g.fontName, "", 10)
			pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s  %s  %s  %s",
				formatDate(payment.PaymentDate),
				payment.PaymentMethod,
				payment.Status,
				formatAmount(payment.Amount, doc.Currency),
			)), "", 1, "L", false, 0, "")
		}
	}

	pdf.Ln(2)
	pdf.SetFont(g.fontName, "B", 11)
	if invoice.BalanceDue.IsPositive() {
		pdf.SetTextColor(200, 0, 0)
	}
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Saldo pendiente: %s", formatAmount(invoice.BalanceDue, doc.Currency))), "", 1, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addClientBlock(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, client model.Client) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, "Cliente", "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	lines := []string{
		client.Name,
		fmt.Sprintf("RUT: %s", safeText(client.TaxID)),
		fmt.Sprintf("Dirección: %s", safeText(client.Address)),
		fmt.Sprintf("Teléfono: %s", safeText(client.Phone)),
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i == len(cols)-1 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, tr(col), "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func safeValue(value *string) string {
	if value == nil {
		return "-"
	}
	return safeText(*value)
}

func safeText(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatAmount(value decimal.Decimal, currency string) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", currency, value.StringFixed(0)))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02-01-2006")
}
