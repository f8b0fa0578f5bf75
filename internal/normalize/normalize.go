// Package normalize converts untrusted spreadsheet and email cell
// content into canonical numeric and date forms. Both functions are
// total: every input produces a defined output and nothing panics.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var dateShortPattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)

// ParseAmount converts a raw cell value into a float amount. Numeric
// values pass through, strings are stripped of "$" and "," before
// parsing, and anything unparseable (including nil) yields 0.
func ParseAmount(value any) float64 {
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	case float32:
		return ParseAmount(float64(v))
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		cleaned := strings.TrimSpace(v)
		cleaned = strings.ReplaceAll(cleaned, "$", "")
		cleaned = strings.ReplaceAll(cleaned, ",", "")
		if cleaned == "" {
			return 0
		}
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return 0
		}
		return parsed
	default:
		return ParseAmount(fmt.Sprintf("%v", value))
	}
}

// FormatDate rewrites M/D/YYYY dates to YYYY-MM-DD with zero padding.
// Other non-empty input is returned unchanged; nil or empty input
// yields "".
func FormatDate(value any) string {
	var raw string
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		raw = strings.TrimSpace(v)
	default:
		raw = strings.TrimSpace(fmt.Sprintf("%v", value))
	}
	if raw == "" {
		return ""
	}
	m := dateShortPattern.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("%s-%02d-%02d", m[3], month, day)
}
