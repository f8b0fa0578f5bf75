// Package statement parses card-issuer spreadsheet exports into
// normalized transactions. Issuer exports vary in header phrasing and
// sometimes omit a structured reference column, so detection runs an
// ordered list of named strategies rather than assuming one layout.
package statement

// Row is one worksheet row in record form. Columns preserves the
// sheet's column order because several fallback strategies depend on
// scanning cells left to right.
type Row struct {
	Columns []string
	Cells   map[string]any
}

// Cell returns the value stored under the given column key.
func (r Row) Cell(key string) any {
	if r.Cells == nil {
		return nil
	}
	return r.Cells[key]
}

// Transaction is a normalized statement line. Amounts are negative for
// credits. Reference is unique-ish and used for de-duplication.
type Transaction struct {
	Date            string  `json:"date"`
	Description     string  `json:"description"`
	Amount          float64 `json:"amount"`
	Category        string  `json:"category,omitempty"`
	CardNumber      string  `json:"cardNumber,omitempty"`
	Reference       string  `json:"reference,omitempty"`
	ExtendedDetails string  `json:"extendedDetails,omitempty"`
	Address         string  `json:"address,omitempty"`
	CityState       string  `json:"cityState,omitempty"`
	ZipCode         string  `json:"zipCode,omitempty"`
	Country         string  `json:"country,omitempty"`
}

// Field identifies a semantic transaction column.
type Field string

const (
	FieldDate            Field = "date"
	FieldDescription     Field = "description"
	FieldAmount          Field = "amount"
	FieldReference       Field = "reference"
	FieldCategory        Field = "category"
	FieldCardMember      Field = "cardMember"
	FieldExtendedDetails Field = "extendedDetails"
	FieldAddress         Field = "address"
	FieldCity            Field = "city"
	FieldState           Field = "state"
	FieldZip             Field = "zip"
	FieldCountry         Field = "country"
)
