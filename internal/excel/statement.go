package excel

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/towing-settlement/internal/model"
)

var ErrMissingColumns = errors.New("statement is missing the date, description or amount column")

var dateLayouts = []string{"2006-01-02", "02-01-2006", "02/01/2006", "2/1/2006", "01-02-06"}

var thousands = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+$`)

type columns struct {
	date, description, amount, reference int
}

// ParseBankStatement reads credit lines from the first sheet of a bank
// statement workbook. The header row is located by name; debits and blank
// rows are skipped.
func (g *Generator) ParseBankStatement(r io.Reader) ([]model.BankTransaction, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open statement: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("statement has no sheets")
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read statement rows: %w", err)
	}

	headerRow, cols, ok := findHeader(rows)
	if !ok {
		return nil, ErrMissingColumns
	}

	var lines []model.BankTransaction
	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]
		rawAmount := cell(row, cols.amount)
		rawDate := cell(row, cols.date)
		if rawAmount == "" && rawDate == "" {
			continue
		}

		amount, err := parseAmount(rawAmount)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if !amount.IsPositive() {
			continue
		}
		date, err := parseDate(rawDate)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}

		line := model.BankTransaction{
			Description:     cell(row, cols.description),
			Amount:          amount,
			TransactionDate: date,
		}
		if ref := cell(row, cols.reference); ref != "" {
			line.Reference = &ref
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func findHeader(rows [][]string) (int, columns, bool) {
	for i, row := range rows {
		cols := columns{date: -1, description: -1, amount: -1, reference: -1}
		for j, value := range row {
			switch normalize(value) {
			case "fecha", "date":
				cols.date = j
			case "descripcion", "glosa", "detalle", "description":
				cols.description = j
			case "monto", "abono", "abonos", "amount":
				cols.amount = j
			case "referencia", "documento", "n documento", "reference":
				cols.reference = j
			}
		}
		if cols.date >= 0 && cols.description >= 0 && cols.amount >= 0 {
			return i, cols, true
		}
	}
	return 0, columns{}, false
}

func normalize(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "°", "", "º", "").Replace(value)
	return strings.Join(strings.Fields(value), " ")
}

func cell(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

// parseAmount accepts plain numbers as well as local formatting such as
// "$ 150.000" or "1.234,50".
func parseAmount(raw string) (decimal.Decimal, error) {
	value := strings.NewReplacer("$", "", " ", "", "\u00a0", "").Replace(raw)
	if value == "" {
		return decimal.Zero, nil
	}
	switch {
	case strings.Contains(value, ","):
		value = strings.ReplaceAll(value, ".", "")
		value = strings.ReplaceAll(value, ",", ".")
	case thousands.MatchString(value):
		value = strings.ReplaceAll(value, ".", "")
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}
