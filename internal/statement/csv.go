package statement

import (
	"bufio"
	"io"
	"strings"

	"github.com/shopspring/decimal"
)

// csvHeader is fixed; the downstream consumer matches it bit-exact.
const csvHeader = `Date,Description,Amount,Category,Card Number,Reference,Extended Details,Address,City/State,Zip Code,Country`

// WriteCSV renders transactions in the export format consumed
// downstream: every text field double-quoted with internal quotes
// doubled, the numeric Amount left unquoted with its sign preserved.
// encoding/csv quotes only when forced, so the row is built by hand.
func WriteCSV(w io.Writer, txs []Transaction) error {
	buf := bufio.NewWriter(w)
	if _, err := buf.WriteString(csvHeader + "\n"); err != nil {
		return err
	}
	for _, tx := range txs {
		fields := []string{
			quoteCSV(tx.Date),
			quoteCSV(tx.Description),
			decimal.NewFromFloat(tx.Amount).String(),
			quoteCSV(tx.Category),
			quoteCSV(tx.CardNumber),
			quoteCSV(tx.Reference),
			quoteCSV(tx.ExtendedDetails),
			quoteCSV(tx.Address),
			quoteCSV(tx.CityState),
			quoteCSV(tx.ZipCode),
			quoteCSV(tx.Country),
		}
		if _, err := buf.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
			return err
		}
	}
	return buf.Flush()
}

func quoteCSV(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
