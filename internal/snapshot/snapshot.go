// Package snapshot converts ledger state to and from its persistable form.
//
// The JSON shape matches the state the original web client kept in browser
// storage, so an exported file from either side restores cleanly in the
// other. Override keys travel verbatim: any rewriting of their raw date or
// payee text would silently break categorize after a reload.
package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/drufino/personal-finance-app/internal/core"
	"github.com/drufino/personal-finance-app/internal/ledger"
)

// uploadedAtLayout matches the fixed textual date the original client wrote
// for a batch's upload time.
const uploadedAtLayout = "Mon Jan 02 2006"

// bootstrapIncomeCategory seeds the income set on installs whose snapshot
// predates the summary view.
const bootstrapIncomeCategory = "Salary"

type Upload struct {
	Uploaded     string           `json:"uploaded"`
	Transactions []core.RawRecord `json:"transactions"`
	DateFormat   core.DateFormat  `json:"date_format"`
}

// OverridePair serializes as a two-element JSON array [key, category],
// mirroring the original tuple encoding.
type OverridePair struct {
	Key      core.OverrideKey
	Category string
}

func (p OverridePair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Key, p.Category})
}

func (p *OverridePair) UnmarshalJSON(data []byte) error {
	var parts [2]json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("override pair: %w", err)
	}
	if err := json.Unmarshal(parts[0], &p.Key); err != nil {
		return fmt.Errorf("override key: %w", err)
	}
	if err := json.Unmarshal(parts[1], &p.Category); err != nil {
		return fmt.Errorf("override category: %w", err)
	}
	return nil
}

type Account struct {
	RawData          []Upload          `json:"raw_data"`
	InitialBalance   float64           `json:"initial_balance"`
	CategoryFilter   map[string]string `json:"category_filter"`
	CategoryOverride []OverridePair    `json:"category_override"`
	AccountType      core.AccountKind  `json:"account_type,omitempty"`
}

type Snapshot struct {
	AccountInfo map[string]Account `json:"account_info"`
	SummaryView *core.SummaryView  `json:"summary_view,omitempty"`
}

// Capture renders the full store state into a Snapshot.
func Capture(store *ledger.Store) Snapshot {
	seeds, view := store.Dump()

	info := make(map[string]Account, len(seeds))
	for _, seed := range seeds {
		acct := Account{
			RawData:          make([]Upload, 0, len(seed.Uploads)),
			InitialBalance:   seed.InitialBalance,
			CategoryFilter:   make(map[string]string, len(seed.Rules)),
			CategoryOverride: make([]OverridePair, 0, len(seed.Overrides)),
			AccountType:      seed.Kind,
		}
		for _, upload := range seed.Uploads {
			acct.RawData = append(acct.RawData, Upload{
				Uploaded:     upload.UploadedAt.Format(uploadedAtLayout),
				Transactions: upload.Records,
				DateFormat:   upload.Format,
			})
		}
		for _, rule := range seed.Rules {
			acct.CategoryFilter[rule.Pattern] = rule.Category
		}
		for _, o := range seed.Overrides {
			acct.CategoryOverride = append(acct.CategoryOverride, OverridePair{Key: o.Key, Category: o.Category})
		}
		info[seed.Name] = acct
	}

	return Snapshot{AccountInfo: info, SummaryView: &view}
}

// Restore replaces the store's state with the snapshot's. Uploads are
// re-sorted by earliest transaction date inside the store; rule/override
// sets are rebuilt faithfully. The category_filter object carries no order,
// so rules come back in lexicographic pattern order.
func Restore(snap Snapshot, store *ledger.Store) {
	names := make([]string, 0, len(snap.AccountInfo))
	for name := range snap.AccountInfo {
		names = append(names, name)
	}
	sort.Strings(names)

	seeds := make([]ledger.AccountSeed, 0, len(names))
	for _, name := range names {
		acct := snap.AccountInfo[name]
		seed := ledger.AccountSeed{
			Name:           name,
			InitialBalance: acct.InitialBalance,
			Kind:           acct.AccountType,
		}
		for _, upload := range acct.RawData {
			uploadedAt, err := time.Parse(uploadedAtLayout, upload.Uploaded)
			if err != nil {
				uploadedAt = time.Time{}
			}
			seed.Uploads = append(seed.Uploads, core.UploadBatch{
				UploadedAt: uploadedAt,
				Format:     upload.DateFormat,
				Records:    upload.Transactions,
			})
		}
		patterns := make([]string, 0, len(acct.CategoryFilter))
		for pattern := range acct.CategoryFilter {
			patterns = append(patterns, pattern)
		}
		sort.Strings(patterns)
		for _, pattern := range patterns {
			seed.Rules = append(seed.Rules, core.Rule{Pattern: pattern, Category: acct.CategoryFilter[pattern]})
		}
		for _, pair := range acct.CategoryOverride {
			seed.Overrides = append(seed.Overrides, core.Override{Key: pair.Key, Category: pair.Category})
		}
		seeds = append(seeds, seed)
	}

	view := core.SummaryView{}
	if snap.SummaryView != nil {
		view = *snap.SummaryView
	}
	if view.IncomeCategories == nil {
		view.IncomeCategories = []string{bootstrapIncomeCategory}
	}

	store.Reset(seeds, view)
}

// Encode serializes the store state to JSON.
func Encode(store *ledger.Store) ([]byte, error) {
	data, err := json.Marshal(Capture(store))
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// Decode parses snapshot JSON and loads it into the store.
func Decode(data []byte, store *ledger.Store) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	Restore(snap, store)
	return nil
}
