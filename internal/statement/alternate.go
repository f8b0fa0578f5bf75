package statement

import (
	"fmt"
	"strings"

	"github.com/harborview/backoffice/internal/normalize"
)

// parseAlternate handles exports carrying a "Transaction Details"
// block instead of a conventional header. It looks for a row holding a
// literal "date" cell to locate columns, then falls back to scanning
// every row independently. Neither layout carries a reference column,
// so rows get synthetic "amex-{i}" references.
func (p *Parser) parseAlternate(rows []Row) []Transaction {
	if !hasTransactionDetailsMarker(rows) {
		return nil
	}

	headerIdx, cols, ok := locateAlternateHeader(rows)
	if ok {
		return p.parseAlternateRows(rows, headerIdx, cols)
	}
	return p.parseLooseRows(rows)
}

type alternateColumns struct {
	date        string
	description string
	amount      string
}

func hasTransactionDetailsMarker(rows []Row) bool {
	for _, row := range rows {
		for _, col := range row.Columns {
			if strings.Contains(strings.ToLower(col), "transaction details") {
				return true
			}
			if strings.Contains(strings.ToLower(cellString(row.Cell(col))), "transaction details") {
				return true
			}
		}
	}
	return false
}

// locateAlternateHeader finds a row with a cell whose value is exactly
// "date"; that column carries dates, and the same row's other columns
// are scanned for "description" and "amount".
func locateAlternateHeader(rows []Row) (int, alternateColumns, bool) {
	for i, row := range rows {
		var cols alternateColumns
		for _, col := range row.Columns {
			val := strings.ToLower(strings.TrimSpace(cellString(row.Cell(col))))
			switch {
			case val == "date" && cols.date == "":
				cols.date = col
			case strings.Contains(val, "description") && cols.description == "":
				cols.description = col
			case strings.Contains(val, "amount") && cols.amount == "":
				cols.amount = col
			}
		}
		if cols.date != "" {
			return i, cols, true
		}
	}
	return 0, alternateColumns{}, false
}

func (p *Parser) parseAlternateRows(rows []Row, headerIdx int, cols alternateColumns) []Transaction {
	var out []Transaction
	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]

		dateStr := strings.TrimSpace(cellString(row.Cell(cols.date)))
		if !datePattern.MatchString(dateStr) {
			dateStr = findDateCell(row)
		}

		amountRaw := row.Cell(cols.amount)
		amount, numeric := strictAmount(amountRaw)
		if !numeric {
			amount, numeric = findAmountCell(row)
		}

		desc := ""
		if cols.description != "" {
			desc = strings.TrimSpace(cellString(row.Cell(cols.description)))
		}
		if desc == "" || datePattern.MatchString(desc) {
			desc = findTextCell(row)
		}

		if dateStr == "" || desc == "" || !numeric {
			continue
		}
		out = append(out, Transaction{
			Date:        normalize.FormatDate(dateStr),
			Description: desc,
			Amount:      amount,
			Reference:   fmt.Sprintf("amex-%d", i),
		})
	}
	return out
}

// parseLooseRows scans every row for a date-looking cell plus a
// textual cell, for sheets with no locatable header at all.
func (p *Parser) parseLooseRows(rows []Row) []Transaction {
	var out []Transaction
	for i, row := range rows {
		dateStr := findDateCell(row)
		if dateStr == "" {
			continue
		}
		desc := findTextCell(row)
		if desc == "" {
			continue
		}
		amount, _ := findAmountCell(row)
		out = append(out, Transaction{
			Date:        normalize.FormatDate(dateStr),
			Description: desc,
			Amount:      amount,
			Reference:   fmt.Sprintf("amex-%d", i),
		})
	}
	return out
}

func findDateCell(row Row) string {
	for _, col := range row.Columns {
		val := strings.TrimSpace(cellString(row.Cell(col)))
		if datePattern.MatchString(val) {
			return val
		}
	}
	return ""
}

// findAmountCell returns the first numeric-or-currency-looking cell.
func findAmountCell(row Row) (float64, bool) {
	for _, col := range row.Columns {
		val := row.Cell(col)
		str := strings.TrimSpace(cellString(val))
		if str == "" || datePattern.MatchString(str) {
			continue
		}
		if amount, ok := strictAmount(val); ok {
			return amount, true
		}
	}
	return 0, false
}

// findTextCell returns the first cell that is neither a date nor an
// amount.
func findTextCell(row Row) string {
	for _, col := range row.Columns {
		str := strings.TrimSpace(cellString(row.Cell(col)))
		if str == "" || datePattern.MatchString(str) {
			continue
		}
		if _, numeric := strictAmount(str); numeric {
			continue
		}
		return str
	}
	return ""
}
