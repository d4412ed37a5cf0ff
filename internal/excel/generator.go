package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/towing-settlement/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders a billing closure as a workbook with a summary sheet and
// one row per service.
func (g *Generator) Generate(doc model.ClosureDocument) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	summarySheet := "Resumen"
	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if err := g.writeSummary(file, summarySheet, doc); err != nil {
		return nil, err
	}

	detailSheet := sheetName("Servicios " + doc.Closure.Folio)
	if _, err := file.NewSheet(detailSheet); err != nil {
		return nil, err
	}
	if err := g.writeDetail(file, detailSheet, doc); err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, doc model.ClosureDocument) error {
	closure := doc.Closure
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Cierre de facturación")
	set("B1", closure.Folio)
	set("A2", "Cliente")
	set("B2", doc.Client.Name)
	set("A3", "RUT")
	set("B3", doc.Client.TaxID)
	set("A4", "Inicio del periodo")
	set("B4", formatDate(closure.PeriodStart))
	set("A5", "Fin del periodo")
	set("B5", formatDate(closure.PeriodEnd))
	set("A6", "Estado")
	set("B6", string(closure.Status))
	set("A7", "Cantidad de servicios")
	set("B7", closure.ServicesCount)
	set("A8", "Subtotal")
	set("B8", formatMoney(closure.Subtotal, doc.Currency))
	set("A9", fmt.Sprintf("Impuesto (%s%%)", closure.TaxRate.String()))
	set("B9", formatMoney(closure.TaxAmount, doc.Currency))
	set("A10", "Total")
	set("B10", formatMoney(closure.Total, doc.Currency))

	_ = file.SetColWidth(sheet, "A", "A", 28)
	_ = file.SetColWidth(sheet, "B", "B", 32)
	return nil
}

func (g *Generator) writeDetail(file *excelize.File, sheet string, doc model.ClosureDocument) error {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	headers := []string{
		"Folio",
		"Fecha",
		"Prioridad",
		"Cotización",
		"Orden de compra",
		"Subtotal",
		"Total",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		set(cell, header)
	}

	for i, service := range doc.Services {
		row := 2 + i
		set(fmt.Sprintf("A%d", row), service.Folio)
		set(fmt.Sprintf("B%d", row), formatDate(service.ScheduledDate))
		set(fmt.Sprintf("C%d", row), string(service.Priority))
		set(fmt.Sprintf("D%d", row), formatString(service.QuoteNumber))
		set(fmt.Sprintf("E%d", row), formatString(service.PurchaseOrderNumber))
		set(fmt.Sprintf("F%d", row), service.Subtotal.InexactFloat64())
		set(fmt.Sprintf("G%d", row), service.Total.InexactFloat64())
	}

	totalRow := 2 + len(doc.Services)
	set(fmt.Sprintf("E%d", totalRow), "Total")
	set(fmt.Sprintf("F%d", totalRow), doc.Closure.Subtotal.InexactFloat64())

	_ = file.SetColWidth(sheet, "A", "A", 18)
	_ = file.SetColWidth(sheet, "B", "C", 12)
	_ = file.SetColWidth(sheet, "D", "E", 20)
	_ = file.SetColWidth(sheet, "F", "G", 14)
	return nil
}

// sheetName trims a name to the 31 characters a sheet may carry and removes
// the characters excel rejects.
func sheetName(value string) string {
	value = strings.TrimSpace(value)
	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "" {
		return "Hoja"
	}
	if runes := []rune(value); len(runes) > 31 {
		value = string(runes[:31])
	}
	return value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatMoney(value decimal.Decimal, currency string) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s", currency, value.StringFixed(0)))
}
