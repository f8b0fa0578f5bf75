package statement

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/harborview/backoffice/internal/normalize"
)

var maskedCardPattern = regexp.MustCompile(`(?i)X+[-\s]?X+[-\s]?(\d{5})`)

// Config carries deployment-specific parsing overrides.
type Config struct {
	// CardHolderOverrides maps a known card-member name (lowercased)
	// to the last-5 digits of their card, for exports that never show
	// the masked number.
	CardHolderOverrides map[string]string
}

// Parser converts worksheet rows into normalized transactions.
type Parser struct {
	cfg Config
}

// NewParser constructs a Parser.
func NewParser(cfg Config) *Parser {
	return &Parser{cfg: cfg}
}

// Parse extracts transactions from a full worksheet. An unrecognizable
// layout yields an empty slice, never an error: header-not-found is an
// expected outcome for some real-world files.
func (p *Parser) Parse(rows []Row) []Transaction {
	if len(rows) == 0 {
		return nil
	}
	headerIdx, _ := findHeader(rows)
	if headerIdx < 0 {
		return nil
	}
	header := rows[headerIdx]
	mapped := mapColumns(header)
	if mapped[FieldDate] == "" || mapped[FieldDescription] == "" {
		return p.parseAlternate(rows)
	}

	var out []Transaction
	for _, row := range rows[headerIdx+1:] {
		tx, ok := p.rowToTransaction(row, mapped)
		if !ok {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func (p *Parser) rowToTransaction(row Row, mapped map[Field]string) (Transaction, bool) {
	dateRaw := row.Cell(mapped[FieldDate])
	descRaw := row.Cell(mapped[FieldDescription])
	dateStr := strings.TrimSpace(cellString(dateRaw))
	descStr := strings.TrimSpace(cellString(descRaw))
	if dateStr == "" && descStr == "" {
		return Transaction{}, false
	}

	amountRaw := row.Cell(mapped[FieldAmount])
	amount, numeric := strictAmount(amountRaw)
	date := normalize.FormatDate(dateRaw)
	if date == "" || descStr == "" || !numeric {
		return Transaction{}, false
	}

	tx := Transaction{
		Date:            date,
		Description:     descStr,
		Amount:          amount,
		Category:        fieldString(row, mapped, FieldCategory),
		Reference:       fieldString(row, mapped, FieldReference),
		ExtendedDetails: fieldString(row, mapped, FieldExtendedDetails),
		Address:         fieldString(row, mapped, FieldAddress),
		ZipCode:         fieldString(row, mapped, FieldZip),
		Country:         fieldString(row, mapped, FieldCountry),
	}

	city := fieldString(row, mapped, FieldCity)
	state := fieldString(row, mapped, FieldState)
	switch {
	case city != "" && state != "":
		tx.CityState = city + ", " + state
	case city != "":
		tx.CityState = city
	case state != "":
		tx.CityState = state
	}

	tx.CardNumber = p.extractCardNumber(row, mapped)
	return tx, true
}

// extractCardNumber takes the last 5 digits of the card-member column
// when it carries any, then falls back to scanning all cells for a
// masked-card pattern or a configured holder-name override.
func (p *Parser) extractCardNumber(row Row, mapped map[Field]string) string {
	member := fieldString(row, mapped, FieldCardMember)
	if member != "" {
		if digits := trailingDigits(member, 5); digits != "" {
			return digits
		}
	}
	for _, col := range row.Columns {
		val := cellString(row.Cell(col))
		if m := maskedCardPattern.FindStringSubmatch(val); m != nil {
			return m[1]
		}
	}
	if member != "" {
		if last5, ok := p.cfg.CardHolderOverrides[strings.ToLower(strings.TrimSpace(member))]; ok {
			return last5
		}
	}
	return ""
}

func fieldString(row Row, mapped map[Field]string, field Field) string {
	col := mapped[field]
	if col == "" {
		return ""
	}
	return strings.TrimSpace(cellString(row.Cell(col)))
}

// strictAmount reports whether the raw cell is genuinely numeric.
// normalize.ParseAmount degrades junk to 0, which is the wrong call
// here: a row with a non-numeric amount must be skipped, not recorded
// as zero.
func strictAmount(v any) (float64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		cleaned := strings.TrimSpace(val)
		cleaned = strings.ReplaceAll(cleaned, "$", "")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		if cleaned == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return strictAmount(cellString(v))
	}
}

func trailingDigits(s string, n int) string {
	digits := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < n {
		return ""
	}
	return string(digits[len(digits)-n:])
}
