package qif

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/drufino/personal-finance-app/internal/core"
)

// ParseCSV reads statement rows of the form date, payee, amount. When the
// first row is a header it is used to locate the amount column by name;
// headerless files are accepted with the amount in column 2. Thousands
// separators inside amounts are stripped.
func ParseCSV(r io.Reader) ([]core.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	amountIdx := -1
	for i, column := range rows[0] {
		if strings.EqualFold(strings.TrimSpace(column), "amount") {
			amountIdx = i
			break
		}
	}
	start := 1
	if amountIdx == -1 {
		amountIdx = 2
		start = 0
	}

	var records []core.RawRecord
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if len(row) <= amountIdx || len(row) < 2 {
			return nil, fmt.Errorf("line %d: expected at least %d columns, got %d", i+1, amountIdx+1, len(row))
		}
		amount, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(row[amountIdx]), ",", ""), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad amount %q", i+1, row[amountIdx])
		}
		records = append(records, core.RawRecord{
			Date:    row[0],
			Amount:  amount,
			Payee:   row[1],
			Address: []string{""},
		})
	}

	return records, nil
}
