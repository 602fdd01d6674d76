package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drufino/personal-finance-app/internal/core"
)

func transferStore(t *testing.T, amountA, amountB float64, dayA, dayB int) *Store {
	t.Helper()
	s := NewStore()
	s.AddAccount("A")
	s.AddAccount("B")
	s.SetRule("A", "TRANSFER OUT", TransferCategory)
	s.SetRule("B", "TRANSFER IN", TransferCategory)
	s.AppendUpload("A", core.FormatDMY4, []core.RawRecord{record(day(dayA), amountA, "TRANSFER OUT")})
	s.AppendUpload("B", core.FormatDMY4, []core.RawRecord{record(day(dayB), amountB, "TRANSFER IN")})
	return s
}

func TestTransfersMatchWithinWindow(t *testing.T) {
	s := transferStore(t, -50, 50, 10, 12)

	pairs := s.Transfers()
	require.Len(t, pairs, 1)
	assert.Equal(t, "A", pairs[0].FromAccount)
	assert.Equal(t, -50.0, pairs[0].From.Amount)
	assert.Equal(t, "B", pairs[0].ToAccount)
	assert.Equal(t, 50.0, pairs[0].To.Amount)
}

func TestTransfersAmountsMustCancelExactly(t *testing.T) {
	s := transferStore(t, -50, 50.01, 10, 12)
	assert.Empty(t, s.Transfers())
}

func TestTransfersDateGapBeyondFourDays(t *testing.T) {
	s := transferStore(t, -50, 50, 10, 15)
	assert.Empty(t, s.Transfers())
}

func TestTransfersExactlyFourDaysApart(t *testing.T) {
	s := transferStore(t, -50, 50, 10, 14)
	assert.Len(t, s.Transfers(), 1)
}

func TestTransfersCategoriesMustAgree(t *testing.T) {
	s := NewStore()
	s.AddAccount("A")
	s.AddAccount("B")
	s.SetRule("A", "TRANSFER OUT", TransferCategory)
	s.SetRule("B", "CARD PAYMENT", CreditCardPaymentCategory)
	s.AppendUpload("A", core.FormatDMY4, []core.RawRecord{record(day(10), -50, "TRANSFER OUT")})
	s.AppendUpload("B", core.FormatDMY4, []core.RawRecord{record(day(11), 50, "CARD PAYMENT")})

	assert.Empty(t, s.Transfers())
}

func TestTransfersScanOnlyLooksForward(t *testing.T) {
	// The inflow precedes the outflow, so the forward scan pairs them in
	// date order: the earlier transaction is reported first.
	s := transferStore(t, -50, 50, 12, 10)

	pairs := s.Transfers()
	require.Len(t, pairs, 1)
	assert.Equal(t, "B", pairs[0].FromAccount)
	assert.Equal(t, "A", pairs[0].ToAccount)
}

func TestTransfersPermitMultipleMatches(t *testing.T) {
	// One outflow, two candidate inflows in the window: both pairs are
	// reported. Matches are never consumed.
	s := NewStore()
	s.AddAccount("A")
	s.AddAccount("B")
	s.SetRule("A", "TRANSFER", TransferCategory)
	s.SetRule("B", "TRANSFER", TransferCategory)
	s.AppendUpload("A", core.FormatDMY4, []core.RawRecord{record(day(10), -50, "TRANSFER")})
	s.AppendUpload("B", core.FormatDMY4, []core.RawRecord{
		record(day(11), 50, "TRANSFER"),
		record(day(12), 50, "TRANSFER"),
	})

	assert.Len(t, s.Transfers(), 2)
}

func TestTransfersIgnoreOtherCategories(t *testing.T) {
	s := NewStore()
	s.AddAccount("A")
	s.AddAccount("B")
	s.SetRule("A", "TESCO", "Groceries")
	s.SetRule("B", "REFUND", "Groceries")
	s.AppendUpload("A", core.FormatDMY4, []core.RawRecord{record(day(10), -50, "TESCO")})
	s.AppendUpload("B", core.FormatDMY4, []core.RawRecord{record(day(11), 50, "REFUND")})

	assert.Empty(t, s.Transfers())
}
