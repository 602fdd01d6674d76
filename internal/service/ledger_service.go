// Package service orchestrates the ledger store, snapshot persistence and
// change events behind one synchronized facade.
//
// The store itself is single-writer with no locking, so every mutating
// operation here takes the write lock, applies the change, persists a fresh
// snapshot, and publishes a change event. Reads take the read lock and
// delegate straight to the store.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/drufino/personal-finance-app/internal/core"
	"github.com/drufino/personal-finance-app/internal/ledger"
	"github.com/drufino/personal-finance-app/internal/log"
	"github.com/drufino/personal-finance-app/internal/snapshot"
	"github.com/drufino/personal-finance-app/internal/storage"
)

// Publisher is the change-event sink. *events.Client implements it; nil
// disables publishing.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, account string, revision uint64) error
}

// SummaryPatch is a partial summary-view update; nil fields are unchanged.
type SummaryPatch struct {
	ExcludedCategories []string `json:"excluded_categories"`
	IncomeCategories   []string `json:"income_categories"`
	CashOnly           *bool    `json:"cash_only"`
}

type LedgerService struct {
	mu        sync.RWMutex
	store     *ledger.Store
	snapshots *storage.SnapshotStore
	publisher Publisher
	logger    *log.Logger
}

func NewLedgerService(snapshots *storage.SnapshotStore, publisher Publisher, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New("ledger-service", 0)
	}
	return &LedgerService{
		store:     ledger.NewStore(),
		snapshots: snapshots,
		publisher: publisher,
		logger:    logger,
	}
}

// Load restores the store from the newest persisted snapshot. A missing
// snapshot means a fresh install and an empty store.
func (s *LedgerService) Load(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	body, ok, err := s.snapshots.LoadLatest(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		s.logger.Info("No snapshot found, starting with an empty ledger")
		return nil
	}
	if err := snapshot.Decode(body, s.store); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	s.logger.Info("Ledger restored from snapshot", "accounts", len(s.store.AccountNames()))
	return nil
}

// Save persists the current state explicitly. Mutating operations call this
// automatically; hosts may also call it on shutdown.
func (s *LedgerService) Save(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persist(ctx)
}

func (s *LedgerService) persist(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	body, err := snapshot.Encode(s.store)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := s.snapshots.Save(ctx, body); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// afterMutation persists the snapshot and publishes a change event. Neither
// failure rolls the mutation back: the in-memory state is the source of
// truth and the next successful save catches it up.
func (s *LedgerService) afterMutation(ctx context.Context, account string) {
	if err := s.persist(ctx); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist snapshot", "account", account, "error", err)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerChanged(ctx, account, s.store.Revision(account)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish change event", "account", account, "error", err)
	}
}

func (s *LedgerService) AddAccount(ctx context.Context, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.AddAccount(name)
	s.afterMutation(ctx, name)
}

func (s *LedgerService) RemoveAccount(ctx context.Context, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.RemoveAccount(name)
	s.afterMutation(ctx, name)
}

func (s *LedgerService) SetAccountKind(ctx context.Context, name string, kind core.AccountKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetAccountKind(name, kind)
	s.afterMutation(ctx, name)
}

func (s *LedgerService) SetInitialBalance(ctx context.Context, name string, balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetInitialBalance(name, balance)
	s.afterMutation(ctx, name)
}

func (s *LedgerService) SetRule(ctx context.Context, name, pattern, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetRule(name, pattern, category)
	s.afterMutation(ctx, name)
}

func (s *LedgerService) RemoveRule(ctx context.Context, name, pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.RemoveRule(name, pattern)
	s.afterMutation(ctx, name)
}

// AppendUpload appends a batch and reports how many of its records were
// already present. The batch is appended regardless; skipping duplicates is
// the caller's decision, made before calling this.
func (s *LedgerService) AppendUpload(ctx context.Context, name string, format core.DateFormat, records []core.RawRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	duplicates := 0
	for _, r := range records {
		if s.store.IsDuplicate(name, r) {
			duplicates++
		}
	}
	s.store.AppendUpload(name, format, records)
	s.afterMutation(ctx, name)
	return duplicates
}

// CountDuplicates reports how many of the candidate records are already in
// the account, without mutating anything.
func (s *LedgerService) CountDuplicates(name string, records []core.RawRecord) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	duplicates := 0
	for _, r := range records {
		if s.store.IsDuplicate(name, r) {
			duplicates++
		}
	}
	return duplicates
}

func (s *LedgerService) RemoveUpload(ctx context.Context, name string, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.RemoveUpload(name, index)
	s.afterMutation(ctx, name)
}

func (s *LedgerService) SetUploadFormat(ctx context.Context, name string, index int, format core.DateFormat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.SetUploadFormat(name, index, format)
	s.afterMutation(ctx, name)
}

func (s *LedgerService) Categorize(ctx context.Context, name string, txn core.Transaction, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store.Categorize(name, txn, category)
	s.afterMutation(ctx, name)
}

func (s *LedgerService) UpdateSummaryView(ctx context.Context, patch SummaryPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if patch.ExcludedCategories != nil {
		s.store.SetExcludedCategories(patch.ExcludedCategories)
	}
	if patch.IncomeCategories != nil {
		s.store.SetIncomeCategories(patch.IncomeCategories)
	}
	if patch.CashOnly != nil {
		s.store.SetCashOnly(*patch.CashOnly)
	}
	s.afterMutation(ctx, "")
}

func (s *LedgerService) Accounts() []ledger.AccountInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Accounts()
}

func (s *LedgerService) FindAccount(name string) (ledger.AccountInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.FindAccount(name)
}

func (s *LedgerService) Rules(name string) []core.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Rules(name)
}

func (s *LedgerService) Uploads(name string) []core.UploadBatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Uploads(name)
}

func (s *LedgerService) TransactionsFor(name string) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.TransactionsFor(name)
}

func (s *LedgerService) ExcludedCount(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ExcludedCount(name)
}

func (s *LedgerService) AllTransactions(cashOnly bool) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.AllTransactions(cashOnly)
}

func (s *LedgerService) CategoriesFor(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.CategoriesFor(name)
}

func (s *LedgerService) AllCategories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.AllCategories()
}

func (s *LedgerService) IncomeCategories() (inferred, candidates []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.IncomeCategories()
}

func (s *LedgerService) EffectiveSummaryView() core.SummaryView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.EffectiveSummaryView()
}

func (s *LedgerService) Transfers() []ledger.TransferPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Transfers()
}

func (s *LedgerService) CurrentBalance(name string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.CurrentBalance(name)
}

// Close releases the snapshot store. The publisher is owned by the host and
// closed there.
func (s *LedgerService) Close() error {
	if s.snapshots != nil {
		if err := s.snapshots.Close(); err != nil {
			return fmt.Errorf("close snapshot store: %w", err)
		}
	}
	return nil
}
