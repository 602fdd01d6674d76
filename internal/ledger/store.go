// Package ledger owns all account state and every derived view over it.
//
// The store is a single-writer, in-memory model: mutations are immediate and
// observable by the next read, and are not synchronized internally. Callers
// that expose it to concurrent writers (the HTTP layer does) must serialize
// mutations against all other access themselves. Derived transaction feeds
// are cached per account against a revision counter that every mutation
// bumps, so reads are always consistent with the latest state without a
// reactive framework; the cache itself is locked internally, so any number
// of concurrent readers may share it.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/drufino/personal-finance-app/internal/core"
)

// AccountInfo is the read-only face of an account.
type AccountInfo struct {
	Name           string           `json:"name"`
	InitialBalance float64          `json:"initial_balance"`
	Kind           core.AccountKind `json:"account_type"`
}

// AccountSeed carries the full state of one account for snapshot restore.
type AccountSeed struct {
	Name           string
	Uploads        []core.UploadBatch
	Rules          []core.Rule
	Overrides      []core.Override
	InitialBalance float64
	Kind           core.AccountKind
}

type derivedFeed struct {
	rev          uint64
	transactions []core.Transaction
	excluded     int
}

type accountState struct {
	uploads        []core.UploadBatch
	rules          []core.Rule
	overrides      []core.Override
	initialBalance float64
	kind           core.AccountKind

	rev   uint64
	cache *derivedFeed
}

func (a *accountState) bump() {
	a.rev++
}

// Store is the in-memory ledger: per-account raw uploads, category rules and
// overrides, plus the process-wide summary view.
type Store struct {
	accounts map[string]*accountState
	names    []string // account insertion order
	summary  core.SummaryView

	// Guards the derived-feed caches. Reads recompute lazily, so several
	// callers serialized only by a read lock can still race on the cache.
	deriveMu sync.Mutex

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*accountState),
		now:      time.Now,
	}
}

// AddAccount creates an empty Cash account with zero balance. Existing names
// are left untouched.
func (s *Store) AddAccount(name string) {
	if _, ok := s.accounts[name]; ok {
		return
	}
	s.accounts[name] = &accountState{kind: core.Cash}
	s.names = append(s.names, name)
}

// RemoveAccount deletes the account and everything it owns. Idempotent.
func (s *Store) RemoveAccount(name string) {
	if _, ok := s.accounts[name]; !ok {
		return
	}
	delete(s.accounts, name)
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i], s.names[i+1:]...)
			break
		}
	}
}

// AccountNames returns account names in creation order.
func (s *Store) AccountNames() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Accounts returns the read-only info of every account in creation order.
func (s *Store) Accounts() []AccountInfo {
	out := make([]AccountInfo, 0, len(s.names))
	for _, name := range s.names {
		a := s.accounts[name]
		out = append(out, AccountInfo{Name: name, InitialBalance: a.initialBalance, Kind: a.kind})
	}
	return out
}

// FindAccount looks an account up by name.
func (s *Store) FindAccount(name string) (AccountInfo, bool) {
	a, ok := s.accounts[name]
	if !ok {
		return AccountInfo{}, false
	}
	return AccountInfo{Name: name, InitialBalance: a.initialBalance, Kind: a.kind}, true
}

// SetAccountKind mutates the account kind in place. No-op when absent.
func (s *Store) SetAccountKind(name string, kind core.AccountKind) {
	if a, ok := s.accounts[name]; ok {
		a.kind = kind
		a.bump()
	}
}

// SetInitialBalance sets the opening balance. No-op when absent.
func (s *Store) SetInitialBalance(name string, balance float64) {
	if a, ok := s.accounts[name]; ok {
		a.initialBalance = balance
		a.bump()
	}
}

// Rules returns the account's category rules in resolution order.
func (s *Store) Rules(name string) []core.Rule {
	a, ok := s.accounts[name]
	if !ok {
		return nil
	}
	out := make([]core.Rule, len(a.rules))
	copy(out, a.rules)
	return out
}

// SetRule upserts a pattern→category rule. New patterns append, so rule
// order within a session is insertion order; resolution uses that order.
func (s *Store) SetRule(name, pattern, category string) {
	a, ok := s.accounts[name]
	if !ok {
		return
	}
	for i := range a.rules {
		if a.rules[i].Pattern == pattern {
			a.rules[i].Category = category
			a.bump()
			return
		}
	}
	a.rules = append(a.rules, core.Rule{Pattern: pattern, Category: category})
	a.bump()
}

// RemoveRule drops the rule with the given pattern. No-op when absent.
func (s *Store) RemoveRule(name, pattern string) {
	a, ok := s.accounts[name]
	if !ok {
		return
	}
	for i := range a.rules {
		if a.rules[i].Pattern == pattern {
			a.rules = append(a.rules[:i], a.rules[i+1:]...)
			a.bump()
			return
		}
	}
}

// Overrides returns the account's category overrides.
func (s *Store) Overrides(name string) []core.Override {
	a, ok := s.accounts[name]
	if !ok {
		return nil
	}
	out := make([]core.Override, len(a.overrides))
	copy(out, a.overrides)
	return out
}

// AppendUpload appends a new batch with the current timestamp. It does not
// deduplicate; callers are expected to run IsDuplicate first. No-op when the
// account is absent.
func (s *Store) AppendUpload(name string, format core.DateFormat, records []core.RawRecord) {
	a, ok := s.accounts[name]
	if !ok {
		return
	}
	batch := core.UploadBatch{
		UploadedAt: s.now(),
		Format:     format,
		Records:    append([]core.RawRecord(nil), records...),
	}
	a.uploads = append(a.uploads, batch)
	sortUploads(a.uploads)
	a.bump()
}

// RemoveUpload removes the batch at the given position in the sorted upload
// order. Out-of-range indexes are a no-op.
func (s *Store) RemoveUpload(name string, index int) {
	a, ok := s.accounts[name]
	if !ok {
		return
	}
	if index < 0 || index >= len(a.uploads) {
		return
	}
	a.uploads = append(a.uploads[:index], a.uploads[index+1:]...)
	a.bump()
}

// SetUploadFormat corrects the date format tag of the batch at the given
// position. The records themselves never change.
func (s *Store) SetUploadFormat(name string, index int, format core.DateFormat) {
	a, ok := s.accounts[name]
	if !ok {
		return
	}
	if index < 0 || index >= len(a.uploads) {
		return
	}
	a.uploads[index].Format = format
	sortUploads(a.uploads)
	a.bump()
}

// Uploads returns the account's batches in ascending first-transaction-date
// order.
func (s *Store) Uploads(name string) []core.UploadBatch {
	a, ok := s.accounts[name]
	if !ok {
		return nil
	}
	out := make([]core.UploadBatch, len(a.uploads))
	copy(out, a.uploads)
	return out
}

// IsDuplicate reports whether any record already uploaded to the account has
// the same amount, the same raw date string, and the same payee modulo
// whitespace collapsing.
func (s *Store) IsDuplicate(name string, candidate core.RawRecord) bool {
	a, ok := s.accounts[name]
	if !ok {
		return false
	}
	payee := core.CollapseWhitespace(candidate.Payee)
	for _, upload := range a.uploads {
		for _, r := range upload.Records {
			if r.Date != candidate.Date || r.Amount != candidate.Amount {
				continue
			}
			if core.CollapseWhitespace(r.Payee) == payee {
				return true
			}
		}
	}
	return false
}

// Categorize resolves a derived transaction back to its raw record and
// upserts the matching override. An empty category removes the override. If
// the transaction already carries the requested category this is a no-op.
//
// The reverse lookup matches on formatted date, amount and collapsed payee.
// Two textually identical records are indistinguishable; the first match
// wins and that is an accepted limitation, not an error.
func (s *Store) Categorize(name string, txn core.Transaction, category string) {
	if txn.Category == category {
		return
	}
	a, ok := s.accounts[name]
	if !ok {
		return
	}

	raw, found := findRawRecord(a.uploads, txn)
	if !found {
		return
	}

	rawPayee := core.CollapseWhitespace(raw.Payee)
	for i := range a.overrides {
		k := a.overrides[i].Key
		if k.Date == raw.Date && k.Amount == raw.Amount && core.CollapseWhitespace(k.Payee) == rawPayee {
			if category == "" {
				a.overrides = append(a.overrides[:i], a.overrides[i+1:]...)
			} else {
				a.overrides[i].Category = category
			}
			a.bump()
			return
		}
	}

	if category == "" {
		return
	}
	a.overrides = append(a.overrides, core.Override{
		Key:      core.OverrideKey{Date: raw.Date, Amount: raw.Amount, Payee: raw.Payee},
		Category: category,
	})
	a.bump()
}

// TransactionsFor derives the account's categorized feed, newest first.
// Records whose date fails to normalize are excluded; ExcludedCount reports
// how many.
func (s *Store) TransactionsFor(name string) []core.Transaction {
	feed, ok := s.derive(name)
	if !ok {
		return nil
	}
	out := make([]core.Transaction, len(feed.transactions))
	copy(out, feed.transactions)
	return out
}

// ExcludedCount reports how many of the account's records were dropped from
// the derived feed because their date failed to normalize.
func (s *Store) ExcludedCount(name string) int {
	feed, ok := s.derive(name)
	if !ok {
		return 0
	}
	return feed.excluded
}

// AllTransactions unions every account's feed, oldest first. With cashOnly
// set, Credit accounts are left out.
func (s *Store) AllTransactions(cashOnly bool) []core.Transaction {
	var total []core.Transaction
	for _, name := range s.names {
		if cashOnly && s.accounts[name].kind == core.Credit {
			continue
		}
		feed, _ := s.derive(name)
		total = append(total, feed.transactions...)
	}
	sort.SliceStable(total, func(i, j int) bool {
		return total[i].Date.Before(total[j].Date)
	})
	return total
}

// CategoriesFor returns the distinct category labels of an account's rules
// and overrides, alphabetically.
func (s *Store) CategoriesFor(name string) []string {
	a, ok := s.accounts[name]
	if !ok {
		return nil
	}
	return collectCategories(a)
}

// AllCategories returns the distinct category labels across every account,
// alphabetically.
func (s *Store) AllCategories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range s.names {
		for _, c := range collectCategories(s.accounts[name]) {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	sort.Strings(out)
	return out
}

// IncomeCategories infers income categories from the whole ledger.
// Candidates are the categories ever seen on a positive-amount transaction;
// inferred are the categories never seen on a negative-amount one, i.e.
// exclusively inflows.
func (s *Store) IncomeCategories() (inferred, candidates []string) {
	var all []string
	seenAll := make(map[string]bool)
	seenExpense := make(map[string]bool)
	seenCandidate := make(map[string]bool)

	for _, txn := range s.AllTransactions(false) {
		if txn.Category == "" {
			continue
		}
		if txn.Amount > 0 && !seenCandidate[txn.Category] {
			seenCandidate[txn.Category] = true
			candidates = append(candidates, txn.Category)
		}
		if txn.Amount < 0 {
			seenExpense[txn.Category] = true
		}
		if !seenAll[txn.Category] {
			seenAll[txn.Category] = true
			all = append(all, txn.Category)
		}
	}

	for _, c := range all {
		if !seenExpense[c] {
			inferred = append(inferred, c)
		}
	}
	return inferred, candidates
}

// SummaryView returns the stored view verbatim, without income inference.
func (s *Store) SummaryView() core.SummaryView {
	return core.SummaryView{
		ExcludedCategories: append([]string(nil), s.summary.ExcludedCategories...),
		IncomeCategories:   append([]string(nil), s.summary.IncomeCategories...),
		CashOnly:           s.summary.CashOnly,
	}
}

// EffectiveSummaryView merges the inferred income categories with the user's
// explicit ones (explicit entries appended when not already present).
// Excluded categories and the cash-only flag pass through verbatim.
func (s *Store) EffectiveSummaryView() core.SummaryView {
	inferred, _ := s.IncomeCategories()
	income := append([]string(nil), inferred...)
	for _, c := range s.summary.IncomeCategories {
		if !contains(income, c) {
			income = append(income, c)
		}
	}
	return core.SummaryView{
		ExcludedCategories: append([]string(nil), s.summary.ExcludedCategories...),
		IncomeCategories:   income,
		CashOnly:           s.summary.CashOnly,
	}
}

// SetExcludedCategories replaces the summary view's excluded set.
func (s *Store) SetExcludedCategories(categories []string) {
	s.summary.ExcludedCategories = append([]string(nil), categories...)
}

// SetIncomeCategories replaces the user's explicit income categories.
func (s *Store) SetIncomeCategories(categories []string) {
	s.summary.IncomeCategories = append([]string(nil), categories...)
}

// SetCashOnly sets the summary view's cash-only flag.
func (s *Store) SetCashOnly(cashOnly bool) {
	s.summary.CashOnly = cashOnly
}

// CurrentBalance is the opening balance plus the sum of the derived feed.
func (s *Store) CurrentBalance(name string) float64 {
	a, ok := s.accounts[name]
	if !ok {
		return 0
	}
	return a.initialBalance + Balance(s.TransactionsFor(name))
}

// Balance sums transaction amounts.
func Balance(transactions []core.Transaction) float64 {
	total := 0.0
	for _, txn := range transactions {
		total += txn.Amount
	}
	return total
}

// Revision returns the account's mutation counter, or zero when absent.
// Change events carry it so consumers can order notifications.
func (s *Store) Revision(name string) uint64 {
	if a, ok := s.accounts[name]; ok {
		return a.rev
	}
	return 0
}

// Dump exports the full store state for serialization.
func (s *Store) Dump() ([]AccountSeed, core.SummaryView) {
	seeds := make([]AccountSeed, 0, len(s.names))
	for _, name := range s.names {
		a := s.accounts[name]
		seeds = append(seeds, AccountSeed{
			Name:           name,
			Uploads:        append([]core.UploadBatch(nil), a.uploads...),
			Rules:          append([]core.Rule(nil), a.rules...),
			Overrides:      append([]core.Override(nil), a.overrides...),
			InitialBalance: a.initialBalance,
			Kind:           a.kind,
		})
	}
	return seeds, s.SummaryView()
}

// Reset replaces the whole store state from deserialized seeds. Uploads are
// re-sorted by earliest transaction date; override keys are taken verbatim
// so categorize keeps matching after a reload.
func (s *Store) Reset(seeds []AccountSeed, view core.SummaryView) {
	s.accounts = make(map[string]*accountState)
	s.names = nil
	for _, seed := range seeds {
		if _, ok := s.accounts[seed.Name]; ok {
			continue
		}
		kind := seed.Kind
		if kind == "" {
			kind = core.Cash
		}
		uploads := append([]core.UploadBatch(nil), seed.Uploads...)
		sortUploads(uploads)
		s.accounts[seed.Name] = &accountState{
			uploads:        uploads,
			rules:          append([]core.Rule(nil), seed.Rules...),
			overrides:      append([]core.Override(nil), seed.Overrides...),
			initialBalance: seed.InitialBalance,
			kind:           kind,
		}
		s.names = append(s.names, seed.Name)
	}
	s.summary = core.SummaryView{
		ExcludedCategories: append([]string(nil), view.ExcludedCategories...),
		IncomeCategories:   append([]string(nil), view.IncomeCategories...),
		CashOnly:           view.CashOnly,
	}
}

// derive recomputes the account's feed unless the cache matches the current
// revision. A feed is immutable once published, so callers may read it after
// the cache lock is released.
func (s *Store) derive(name string) (*derivedFeed, bool) {
	a, ok := s.accounts[name]
	if !ok {
		return &derivedFeed{}, false
	}

	s.deriveMu.Lock()
	defer s.deriveMu.Unlock()

	if a.cache != nil && a.cache.rev == a.rev {
		return a.cache, true
	}

	feed := &derivedFeed{rev: a.rev}
	for _, upload := range a.uploads {
		for _, r := range upload.Records {
			date, ok := core.NormalizeDate(r.Date, upload.Format)
			if !ok {
				feed.excluded++
				continue
			}
			feed.transactions = append(feed.transactions, core.Transaction{
				Date:     date,
				Payee:    core.CollapseWhitespace(r.Payee),
				Amount:   r.Amount,
				Category: core.ResolveCategory(r, a.rules, a.overrides),
			})
		}
	}
	sort.SliceStable(feed.transactions, func(i, j int) bool {
		return feed.transactions[j].Date.Before(feed.transactions[i].Date)
	})
	a.cache = feed
	return feed, true
}

// findRawRecord walks every upload of the account comparing the formatted
// transaction date, the amount, and the collapsed payee. First match wins.
func findRawRecord(uploads []core.UploadBatch, txn core.Transaction) (core.RawRecord, bool) {
	payee := core.CollapseWhitespace(txn.Payee)
	for _, upload := range uploads {
		date := core.FormatDate(txn.Date, upload.Format)
		for _, r := range upload.Records {
			if r.Date == date && r.Amount == txn.Amount && core.CollapseWhitespace(r.Payee) == payee {
				return r, true
			}
		}
	}
	return core.RawRecord{}, false
}

// sortUploads orders batches ascending by their earliest normalizable
// transaction date. Batches with no normalizable date sort after all dated
// ones; the sort is stable so equal batches keep their relative order.
func sortUploads(uploads []core.UploadBatch) {
	sort.SliceStable(uploads, func(i, j int) bool {
		di, iok := firstDate(uploads[i])
		dj, jok := firstDate(uploads[j])
		if iok && jok {
			return di.Before(dj)
		}
		return iok && !jok
	})
}

func firstDate(batch core.UploadBatch) (time.Time, bool) {
	var best time.Time
	found := false
	for _, r := range batch.Records {
		d, ok := core.NormalizeDate(r.Date, batch.Format)
		if !ok {
			continue
		}
		if !found || d.Before(best) {
			best = d
			found = true
		}
	}
	return best, found
}

func collectCategories(a *accountState) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, rule := range a.rules {
		add(rule.Category)
	}
	for _, o := range a.overrides {
		add(o.Category)
	}
	sort.Strings(out)
	return out
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
