// Package qif parses uploaded bank statements into raw records.
//
// Two formats are supported: QIF (the Quicken interchange format, one field
// per line) and CSV statements with a date/payee/amount column layout. The
// parsers only read text into core.RawRecord values; date interpretation is
// left to the ledger, keyed by the batch's DateFormat tag.
package qif

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/drufino/personal-finance-app/internal/core"
)

// Parse reads QIF text. Records are built from D (date), T (amount),
// P (payee), A (address, repeatable) and N (reference) lines and closed by
// '^'. The first line must be a '!' header. Errors carry the line number.
func Parse(r io.Reader) ([]core.RawRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("empty input")
	}
	header := strings.TrimRight(scanner.Text(), "\r")
	if !strings.HasPrefix(header, "!") {
		return nil, fmt.Errorf("line 1: missing QIF header")
	}

	var (
		records []core.RawRecord
		current partialRecord
		line    = 1
	)

	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			continue
		}

		switch text[0] {
		case 'D':
			current.date = text[1:]
			current.hasDate = true
		case 'T':
			amount, err := parseAmount(text[1:])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			current.amount = amount
			current.hasAmount = true
		case 'P':
			current.payee = text[1:]
			current.hasPayee = true
		case 'A':
			current.address = append(current.address, text[1:])
		case 'N':
			current.reference = text[1:]
		case '^':
			record, err := current.finish()
			if err != nil {
				return nil, fmt.Errorf("line %d: transaction %d: %w", line, len(records)+1, err)
			}
			records = append(records, record)
			current = partialRecord{}
		default:
			return nil, fmt.Errorf("line %d: unrecognised initial character %q", line, text[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	if !current.empty() {
		return nil, fmt.Errorf("partial information for transaction %d, check file is complete", len(records)+1)
	}

	return records, nil
}

type partialRecord struct {
	date      string
	amount    float64
	payee     string
	address   []string
	reference string

	hasDate   bool
	hasAmount bool
	hasPayee  bool
}

func (p partialRecord) empty() bool {
	return !p.hasDate && !p.hasAmount && !p.hasPayee && len(p.address) == 0 && p.reference == ""
}

func (p partialRecord) finish() (core.RawRecord, error) {
	if !p.hasDate || !p.hasAmount || !p.hasPayee {
		return core.RawRecord{}, fmt.Errorf("information missing")
	}
	address := p.address
	if len(address) == 0 {
		address = []string{""}
	}
	return core.RawRecord{
		Date:      p.date,
		Amount:    p.amount,
		Payee:     p.payee,
		Address:   address,
		Reference: p.reference,
	}, nil
}

// parseAmount strips an optional currency sign and thousands separators.
func parseAmount(s string) (float64, error) {
	runes := []rune(s)
	if len(runes) > 1 && runes[0] == '-' && isCurrencySign(runes[1]) {
		runes = append(runes[:1], runes[2:]...)
	} else if len(runes) > 0 && isCurrencySign(runes[0]) {
		runes = runes[1:]
	}
	cleaned := strings.ReplaceAll(string(runes), ",", "")
	amount, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
	if err != nil {
		return 0, fmt.Errorf("bad amount %q", s)
	}
	return amount, nil
}

func isCurrencySign(r rune) bool {
	switch r {
	case '£', '$', '€':
		return true
	}
	return false
}
