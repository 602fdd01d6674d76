package ledger

import (
	"sort"

	"github.com/drufino/personal-finance-app/internal/core"
)

// Categories whose transactions participate in transfer matching.
const (
	TransferCategory          = "Transfer"
	CreditCardPaymentCategory = "Credit Card Payment"
)

// TransferPair is a matched pair of transactions interpreted as money moving
// between two of the user's own accounts.
type TransferPair struct {
	FromAccount string           `json:"from_account"`
	From        core.Transaction `json:"from"`
	ToAccount   string           `json:"to_account"`
	To          core.Transaction `json:"to"`
}

type taggedTransaction struct {
	account string
	txn     core.Transaction
}

// Transfers pairs up transfer-like transactions across the whole ledger.
//
// Every transaction categorized Transfer or Credit Card Payment is collected
// with its owning account and sorted ascending by date. A forward quadratic
// scan then reports every pair (i, j), j >= i, with the same category, a
// date gap of at most 4 days, and amounts summing to exactly zero. Matched
// transactions are not consumed, so one transaction can appear in several
// pairs.
func (s *Store) Transfers() []TransferPair {
	var transfers []taggedTransaction
	for _, name := range s.names {
		feed, _ := s.derive(name)
		for _, txn := range feed.transactions {
			if txn.Category == TransferCategory || txn.Category == CreditCardPaymentCategory {
				transfers = append(transfers, taggedTransaction{account: name, txn: txn})
			}
		}
	}

	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].txn.Date.Before(transfers[j].txn.Date)
	})

	var matched []TransferPair
	for i := 0; i < len(transfers); i++ {
		x := transfers[i]
		for j := i; j < len(transfers); j++ {
			y := transfers[j]
			if y.txn.Category != x.txn.Category {
				continue
			}
			if y.txn.Date.Sub(x.txn.Date).Hours()/24 > 4.0 {
				continue
			}
			if x.txn.Amount+y.txn.Amount == 0.0 {
				matched = append(matched, TransferPair{
					FromAccount: x.account,
					From:        x.txn,
					ToAccount:   y.account,
					To:          y.txn,
				})
			}
		}
	}
	return matched
}
