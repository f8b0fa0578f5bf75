package statement

import "strings"

// fieldAliases lists acceptable header substrings per semantic field.
// Matching is case-insensitive against both the header row's cell
// values and its column keys; the first alias hit wins per field.
var fieldAliases = []struct {
	field   Field
	aliases []string
}{
	{FieldDate, []string{"date"}},
	{FieldExtendedDetails, []string{"extended details", "extended detail"}},
	{FieldDescription, []string{"description", "merchant"}},
	{FieldAmount, []string{"amount"}},
	{FieldReference, []string{"reference"}},
	{FieldCategory, []string{"category"}},
	{FieldCardMember, []string{"card member", "cardmember", "card holder"}},
	{FieldAddress, []string{"address"}},
	{FieldCity, []string{"city"}},
	{FieldState, []string{"state"}},
	{FieldZip, []string{"zip"}},
	{FieldCountry, []string{"country"}},
}

// mapColumns resolves each semantic field to the column key carrying
// it, using the header row's values first and the raw column keys as a
// second chance.
func mapColumns(header Row) map[Field]string {
	mapped := make(map[Field]string)
	for _, entry := range fieldAliases {
		for _, col := range header.Columns {
			val := strings.ToLower(strings.TrimSpace(cellString(header.Cell(col))))
			key := strings.ToLower(strings.TrimSpace(col))
			if matchesAlias(val, entry.aliases) || matchesAlias(key, entry.aliases) {
				if !columnTaken(mapped, col) {
					mapped[entry.field] = col
					break
				}
			}
		}
	}
	return mapped
}

func matchesAlias(text string, aliases []string) bool {
	if text == "" {
		return false
	}
	for _, alias := range aliases {
		if strings.Contains(text, alias) {
			return true
		}
	}
	return false
}

func columnTaken(mapped map[Field]string, col string) bool {
	for _, used := range mapped {
		if used == col {
			return true
		}
	}
	return false
}
