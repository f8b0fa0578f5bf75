package statement

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnreadableWorkbook indicates the uploaded bytes are not a
// workbook this reader understands.
var ErrUnreadableWorkbook = errors.New("statement: unreadable workbook")

// ReadSheet converts the first sheet of an uploaded workbook into
// record rows, inferring column keys from the first row's labels.
// Falls back to CSV when the bytes are not an xlsx archive.
func ReadSheet(data []byte) ([]Row, error) {
	if looksLikeZip(data) {
		return readXLSX(data)
	}
	return readCSV(data)
}

func looksLikeZip(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:2], []byte("PK"))
}

func readXLSX(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrUnreadableWorkbook
	}
	cells, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
	}
	return cellsToRows(cells), nil
}

func readCSV(data []byte) ([]Row, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	var cells [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableWorkbook, err)
		}
		cells = append(cells, record)
	}
	return cellsToRows(cells), nil
}

// cellsToRows builds record rows keyed by first-row labels. Empty or
// duplicated labels get positional keys so every column stays
// addressable. The label row itself stays in the sequence: issuer
// exports often put preamble above the real header, so header
// detection needs to see every row.
func cellsToRows(cells [][]string) []Row {
	if len(cells) == 0 {
		return nil
	}
	keys := columnKeys(cells[0])

	rows := make([]Row, 0, len(cells))
	for _, record := range cells {
		row := Row{Columns: keys, Cells: make(map[string]any, len(keys))}
		for i, key := range keys {
			if i < len(record) {
				row.Cells[key] = record[i]
			} else {
				row.Cells[key] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func columnKeys(labels []string) []string {
	keys := make([]string, len(labels))
	seen := make(map[string]int, len(labels))
	for i, label := range labels {
		key := strings.TrimSpace(label)
		if key == "" {
			key = fmt.Sprintf("column_%d", i)
		}
		if n, dup := seen[key]; dup {
			seen[key] = n + 1
			key = fmt.Sprintf("%s_%d", key, n+1)
		} else {
			seen[key] = 0
		}
		keys[i] = key
	}
	return keys
}
