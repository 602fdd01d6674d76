package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	FormatUnknown DateFormat = "Unknown"
	FormatMDY2    DateFormat = "MM-DD-YY"
	FormatDMY2    DateFormat = "DD-MM-YY"
	FormatDMY4    DateFormat = "DD/MM/YYYY"
	FormatMDY4    DateFormat = "MM/DD/YYYY"
)

// DateFormat tags the textual layout of dates in an upload batch.
type DateFormat string

// DateFormats lists the supported tags in presentation order.
var DateFormats = []DateFormat{FormatUnknown, FormatMDY2, FormatDMY2, FormatMDY4, FormatDMY4}

// Valid reports whether f is one of the supported tags.
func (f DateFormat) Valid() bool {
	switch f {
	case FormatUnknown, FormatMDY2, FormatDMY2, FormatDMY4, FormatMDY4:
		return true
	}
	return false
}

// NormalizeDate converts a raw textual date under the declared format into a
// UTC calendar date. FormatUnknown always fails: the user has to pick a
// concrete format before records become usable.
//
// Validation is deliberately permissive: day is only bounded to 1..31, so
// "31/04/2024" normalizes and overflows into May via time.Date arithmetic.
func NormalizeDate(raw string, format DateFormat) (time.Time, bool) {
	var sep string
	switch format {
	case FormatMDY2, FormatDMY2:
		sep = "-"
	case FormatDMY4, FormatMDY4:
		sep = "/"
	default:
		return time.Time{}, false
	}

	parts := strings.Split(raw, sep)
	if len(parts) != 3 {
		return time.Time{}, false
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}

	var day, month, year int
	switch format {
	case FormatMDY2:
		month, day, year = nums[0], nums[1], nums[2]+2000
	case FormatDMY2:
		day, month, year = nums[0], nums[1], nums[2]+2000
	case FormatDMY4:
		day, month, year = nums[0], nums[1], nums[2]
	case FormatMDY4:
		month, day, year = nums[0], nums[1], nums[2]
	}

	if month < 1 || month > 12 {
		return time.Time{}, false
	}
	if day < 1 || day > 31 {
		return time.Time{}, false
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// FormatDate renders a calendar date back into the textual layout of the
// given format, zero-padded. It is the inverse of NormalizeDate and is used
// to re-derive a record's identity key when matching overrides.
func FormatDate(t time.Time, format DateFormat) string {
	day := t.Day()
	month := int(t.Month())
	year := t.Year()

	switch format {
	case FormatMDY2:
		return fmt.Sprintf("%02d-%02d-%02d", month, day, year%100)
	case FormatDMY2:
		return fmt.Sprintf("%02d-%02d-%02d", day, month, year%100)
	case FormatDMY4:
		return fmt.Sprintf("%02d/%02d/%04d", day, month, year)
	case FormatMDY4:
		return fmt.Sprintf("%02d/%02d/%04d", month, day, year)
	}
	return t.Format("2006-01-02")
}
