// Package export pushes derived transaction feeds to external destinations.
package export

import (
	"context"

	"github.com/drufino/personal-finance-app/internal/core"
)

// TransactionWriter writes a full transaction feed to a destination,
// returning the number of rows written.
type TransactionWriter interface {
	WriteTransactions(ctx context.Context, txns []core.Transaction) (int, error)
}
