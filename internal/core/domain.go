package core

import (
	"time"
)

const (
	Cash   AccountKind = "Cash"
	Credit AccountKind = "Credit"
)

type (
	// AccountKind classifies an account for cash-only cashflow views.
	AccountKind string

	// RawRecord is one unprocessed statement line exactly as uploaded.
	// Field names in JSON match the persisted snapshot format.
	RawRecord struct {
		Date      string   `json:"date"`
		Amount    float64  `json:"amount"`
		Payee     string   `json:"who"`
		Address   []string `json:"address"`
		Reference string   `json:"number,omitempty"`
	}

	// UploadBatch is one import event: the records plus the date format in
	// effect for that import. Records are immutable once appended; Format may
	// be corrected in place by the user.
	UploadBatch struct {
		UploadedAt time.Time
		Format     DateFormat
		Records    []RawRecord
	}

	// Rule maps a payee search pattern to a category. Rules are kept in a
	// slice because resolution order matters: first match wins.
	Rule struct {
		Pattern  string
		Category string
	}

	// OverrideKey identifies a raw record bit-for-bit: raw date string and
	// payee exactly as uploaded, not normalized.
	OverrideKey struct {
		Date   string  `json:"date"`
		Amount float64 `json:"amount"`
		Payee  string  `json:"who"`
	}

	// Override is a record-specific category assignment that dominates rules.
	Override struct {
		Key      OverrideKey
		Category string
	}

	// Transaction is derived from a RawRecord; never stored, always
	// recomputed. Payee is whitespace-collapsed, Category empty when
	// uncategorized.
	Transaction struct {
		Date     time.Time `json:"date"`
		Payee    string    `json:"who"`
		Amount   float64   `json:"amount"`
		Category string    `json:"category"`
	}

	// SummaryView is the process-wide, user-editable report configuration.
	SummaryView struct {
		ExcludedCategories []string `json:"excluded_categories"`
		IncomeCategories   []string `json:"income_categories"`
		CashOnly           bool     `json:"cash_only"`
	}
)

// Matches reports whether the key identifies the given raw record. The
// comparison is exact on all three fields.
func (k OverrideKey) Matches(r RawRecord) bool {
	return k.Date == r.Date && k.Amount == r.Amount && k.Payee == r.Payee
}
