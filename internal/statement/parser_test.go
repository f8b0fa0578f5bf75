package statement

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// sheetRows mimics ReadSheet output: keys from the first line, every
// line kept as a record.
func sheetRows(lines [][]string) []Row {
	return cellsToRows(lines)
}

func TestParseStandardLayout(t *testing.T) {
	rows := sheetRows([][]string{
		{"Date", "Description", "Amount", "Reference"},
		{"1/2/2024", "Coffee Shop", "12.34", "REF1"},
	})
	p := NewParser(Config{})
	txs := p.Parse(rows)
	require.Len(t, txs, 1)
	require.Equal(t, Transaction{
		Date:        "2024-01-02",
		Description: "Coffee Shop",
		Amount:      12.34,
		Reference:   "REF1",
	}, txs[0])
}

func TestParseIsPureFunctionOfInput(t *testing.T) {
	rows := sheetRows([][]string{
		{"Date", "Description", "Amount", "Reference"},
		{"1/2/2024", "Coffee Shop", "12.34", "REF1"},
		{"1/3/2024", "Grocer", "-8.00", "REF2"},
	})
	p := NewParser(Config{})
	first := p.Parse(rows)
	second := p.Parse(rows)
	require.Equal(t, first, second)
}

func TestParseSkipsEmptyAndNonNumericRows(t *testing.T) {
	rows := sheetRows([][]string{
		{"Date", "Description", "Amount", "Reference"},
		{"", "", "12.34", "REF1"},
		{"1/3/2024", "Grocer", "not-a-number", "REF2"},
		{"1/4/2024", "Bakery", "3.50", "REF3"},
	})
	p := NewParser(Config{})
	txs := p.Parse(rows)
	require.Len(t, txs, 1)
	require.Equal(t, "Bakery", txs[0].Description)
}

func TestParseWithPreambleRows(t *testing.T) {
	rows := sheetRows([][]string{
		{"Prepared For", "", "", ""},
		{"JANE EXAMPLE", "", "", ""},
		{"Date", "Description", "Amount", "Reference"},
		{"2/10/2024", "Hardware Store", "55.00", "REF9"},
	})
	p := NewParser(Config{})
	txs := p.Parse(rows)
	require.Len(t, txs, 1)
	require.Equal(t, "2024-02-10", txs[0].Date)
	require.Equal(t, "Hardware Store", txs[0].Description)
}

func TestParseNoHeaderReturnsEmpty(t *testing.T) {
	rows := sheetRows([][]string{
		{"alpha", "beta"},
		{"gamma", "delta"},
	})
	p := NewParser(Config{})
	require.Empty(t, p.Parse(rows))
}

func TestParseCityStateAndCardNumber(t *testing.T) {
	rows := sheetRows([][]string{
		{"Date", "Description", "Amount", "Card Member", "City", "State"},
		{"3/4/2024", "Diner", "20.00", "JANE EXAMPLE XXXX-XXXXXX-21005", "Austin", "TX"},
	})
	p := NewParser(Config{})
	txs := p.Parse(rows)
	require.Len(t, txs, 1)
	require.Equal(t, "Austin, TX", txs[0].CityState)
	require.Equal(t, "21005", txs[0].CardNumber)
}

func TestParseMaskedCardScanAcrossCells(t *testing.T) {
	rows := sheetRows([][]string{
		{"Date", "Description", "Amount", "Account"},
		{"3/4/2024", "Diner", "20.00", "XXXX-XXXXXX-34008"},
	})
	p := NewParser(Config{})
	txs := p.Parse(rows)
	require.Len(t, txs, 1)
	require.Equal(t, "34008", txs[0].CardNumber)
}

func TestParseCardHolderOverride(t *testing.T) {
	rows := sheetRows([][]string{
		{"Date", "Description", "Amount", "Card Member"},
		{"3/4/2024", "Diner", "20.00", "Jane Example"},
	})
	p := NewParser(Config{CardHolderOverrides: map[string]string{"jane example": "77001"}})
	txs := p.Parse(rows)
	require.Len(t, txs, 1)
	require.Equal(t, "77001", txs[0].CardNumber)
}

func TestParseAlternateTransactionDetailsLayout(t *testing.T) {
	// The detected header maps a date and amount column but no
	// description, which routes parsing through the alternate layout.
	rows := sheetRows([][]string{
		{"Transaction Details", "", ""},
		{"Date", "", "Amount"},
		{"5/6/2024", "Supply Run", "99.95"},
		{"5/7/2024", "Feed Order", "12.00"},
	})
	p := NewParser(Config{})
	txs := p.Parse(rows)
	require.Len(t, txs, 2)
	require.Equal(t, "2024-05-06", txs[0].Date)
	require.Equal(t, "Supply Run", txs[0].Description)
	require.InDelta(t, 99.95, txs[0].Amount, 0.0001)
	require.Equal(t, "amex-2", txs[0].Reference)
	require.Equal(t, "amex-3", txs[1].Reference)
}

func TestParseLooseScanFallback(t *testing.T) {
	rows := sheetRows([][]string{
		{"Transaction Details", "", ""},
		{"7/8/2024", "Mystery Vendor", "41.20"},
		{"ignored", "no date here", "1.00"},
	})
	p := NewParser(Config{})
	txs := p.Parse(rows)
	require.Len(t, txs, 1)
	require.Equal(t, "2024-07-08", txs[0].Date)
	require.Equal(t, "Mystery Vendor", txs[0].Description)
	require.InDelta(t, 41.20, txs[0].Amount, 0.0001)
	require.Equal(t, "amex-1", txs[0].Reference)
}

func TestHeaderStrategyOrder(t *testing.T) {
	rows := sheetRows([][]string{
		{"column_a", "column_b"},
		{"Transaction Date", "Amount"},
		{"1/2/2024", "5.00"},
	})
	idx, name := findHeader(rows)
	require.Equal(t, 1, idx)
	require.Equal(t, "literal-date-token", name)
}

func TestWriteCSV(t *testing.T) {
	txs := []Transaction{
		{
			Date:        "2024-01-02",
			Description: `Joe's "Best" Coffee`,
			Amount:      -12.3,
			Category:    "Dining",
			Reference:   "REF1",
			CityState:   "Austin, TX",
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, txs))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Date,Description,Amount,Category,Card Number,Reference,Extended Details,Address,City/State,Zip Code,Country", lines[0])
	require.Equal(t, `"2024-01-02","Joe's ""Best"" Coffee",-12.3,"Dining","","REF1","","","Austin, TX","",""`, lines[1])
}

func TestReadSheetCSV(t *testing.T) {
	data := []byte("Date,Description,Amount,Reference\n1/2/2024,Coffee Shop,12.34,REF1\n")
	rows, err := ReadSheet(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, []string{"Date", "Description", "Amount", "Reference"}, rows[0].Columns)
	require.Equal(t, "Coffee Shop", rows[1].Cell("Description"))

	p := NewParser(Config{})
	txs := p.Parse(rows)
	require.Len(t, txs, 1)
	require.Equal(t, "2024-01-02", txs[0].Date)
}

func TestColumnKeysDeduplicated(t *testing.T) {
	keys := columnKeys([]string{"Amount", "", "Amount"})
	require.Equal(t, []string{"Amount", "column_1", "Amount_1"}, keys)
}
