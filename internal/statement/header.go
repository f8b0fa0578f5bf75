package statement

import (
	"fmt"
	"regexp"
	"strings"
)

var datePattern = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`)

// headerStrategy locates the header row. Strategies run in order and
// the first hit wins, which keeps the fallback priority explicit and
// testable.
type headerStrategy struct {
	name   string
	locate func(rows []Row) (int, bool)
}

var headerStrategies = []headerStrategy{
	{name: "literal-date-token", locate: findHeaderByDateToken},
	{name: "serialized-keywords", locate: findHeaderBySerializedText},
	{name: "first-data-row-predecessor", locate: findHeaderByFirstDateCell},
}

// findHeader runs the strategy chain. Returns -1 when nothing matched.
func findHeader(rows []Row) (int, string) {
	for _, s := range headerStrategies {
		if idx, ok := s.locate(rows); ok {
			return idx, s.name
		}
	}
	return -1, ""
}

// findHeaderByDateToken matches a row whose cell values include the
// literal token "date", or both a value containing "date" and one
// containing "amount".
func findHeaderByDateToken(rows []Row) (int, bool) {
	for i, row := range rows {
		var hasLiteralDate, hasDateLike, hasAmountLike bool
		for _, col := range row.Columns {
			val := strings.ToLower(strings.TrimSpace(cellString(row.Cell(col))))
			if val == "" {
				continue
			}
			if val == "date" {
				hasLiteralDate = true
			}
			if strings.Contains(val, "date") {
				hasDateLike = true
			}
			if strings.Contains(val, "amount") {
				hasAmountLike = true
			}
		}
		if hasLiteralDate || (hasDateLike && hasAmountLike) {
			return i, true
		}
	}
	return 0, false
}

// findHeaderBySerializedText matches a row whose full serialized text
// contains ("date" or a year-like "/20" token) and ("reference" or
// "description").
func findHeaderBySerializedText(rows []Row) (int, bool) {
	for i, row := range rows {
		parts := make([]string, 0, len(row.Columns))
		for _, col := range row.Columns {
			parts = append(parts, cellString(row.Cell(col)))
		}
		text := strings.ToLower(strings.Join(parts, " "))
		dateHint := strings.Contains(text, "date") || strings.Contains(text, "/20")
		fieldHint := strings.Contains(text, "reference") || strings.Contains(text, "description")
		if dateHint && fieldHint {
			return i, true
		}
	}
	return 0, false
}

// findHeaderByFirstDateCell treats the row immediately preceding the
// first date-looking cell as the header, clamped to row 0.
func findHeaderByFirstDateCell(rows []Row) (int, bool) {
	for i, row := range rows {
		for _, col := range row.Columns {
			if datePattern.MatchString(cellString(row.Cell(col))) {
				if i == 0 {
					return 0, true
				}
				return i - 1, true
			}
		}
	}
	return 0, false
}

func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
