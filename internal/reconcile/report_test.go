package reconcile

import (
	"math/rand"
	"testing"
	"time"

	"pos_ledger/internal/calendar"
	"pos_ledger/internal/catalog"
	"pos_ledger/internal/expenses"
	"pos_ledger/internal/sales"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type rate struct{ v decimal.Decimal }

func (r *rate) Rate() decimal.Decimal { return r.v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(price string, qty int) []sales.CartItem {
	return []sales.CartItem{{Product: catalog.Product{ID: "p", Name: "p", Price: dec(price)}, Quantity: qty}}
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "want %s got %s", want, got)
}

const today = calendar.Day("2025-03-10")

func TestScenarios(t *testing.T) {
	r := &rate{v: dec("45.00")}
	at := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	ledger := sales.NewLedger(sales.NewLocalStorage(), r, zaptest.NewLogger(t),
		sales.WithClock(func() time.Time { return at }), sales.WithLocation(time.UTC))

	cash, err := ledger.CreateSale(sales.Checkout{Items: line("6.50", 2), PaymentMethod: sales.PaymentCash})
	require.NoError(t, err)
	assertDec(t, "13.00", cash.Total)
	assert.Equal(t, 1, cash.OrderNumber)

	mobile, err := ledger.CreateSale(sales.Checkout{Items: line("5.00", 1), PaymentMethod: sales.PaymentMobile})
	require.NoError(t, err)
	assert.Equal(t, 2, mobile.OrderNumber)

	report, err := Build(ledger.All(), nil, today, today, time.UTC)
	require.NoError(t, err)
	assertDec(t, "18", report.TotalRevenue)
	assertDec(t, "13", report.Bucket(sales.PaymentCash).Amount)
	assertDec(t, "225", report.Bucket(sales.PaymentMobile).Amount)
	assert.True(t, report.Bucket(sales.PaymentMobile).Local)

	r.v = dec("50.00")

	again, err := Build(ledger.All(), nil, today, today, time.UTC)
	require.NoError(t, err)
	// the frozen rate applies, not the current one
	assertDec(t, "225", again.Bucket(sales.PaymentMobile).Amount)
	assert.Equal(t, report, again)
}

func TestBuildTotals(t *testing.T) {
	day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	saleList := []sales.Sale{
		{ID: "1", Date: day, Total: dec("10"), PaymentMethod: sales.PaymentCash, ExchangeRateAtSale: dec("40")},
		{ID: "2", Date: day, Total: dec("4"), PaymentMethod: sales.PaymentZelle, ExchangeRateAtSale: dec("40")},
		{ID: "3", Date: day, Total: dec("2"), PaymentMethod: sales.PaymentCard, ExchangeRateAtSale: dec("40")},
		{ID: "4", Date: day, Total: dec("3"), PaymentMethod: sales.PaymentCard, ExchangeRateAtSale: dec("41")},
		{ID: "out", Date: day.AddDate(0, 0, 1), Total: dec("100"), PaymentMethod: sales.PaymentCash, ExchangeRateAtSale: dec("40")},
	}
	expenseList := []expenses.Expense{
		{ID: "e1", Date: day, Amount: dec("3.50"), Category: expenses.CategoryExpense},
		{ID: "e2", Date: day, Amount: dec("1"), Category: expenses.CategoryLoss},
		{ID: "e3", Date: day.AddDate(0, 0, -1), Amount: dec("50"), Category: expenses.CategoryExpense},
	}

	r, err := Build(saleList, expenseList, today, today, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, 4, r.SaleCount)
	assert.Equal(t, 2, r.ExpenseCount)
	assertDec(t, "19", r.TotalRevenue)
	assertDec(t, "4.50", r.TotalExpenses)
	assertDec(t, "1", r.TotalLosses)
	assertDec(t, "14.50", r.NetProfit)

	assertDec(t, "10", r.Bucket(sales.PaymentCash).Amount)
	assertDec(t, "4", r.Bucket(sales.PaymentZelle).Amount)
	assertDec(t, "203", r.Bucket(sales.PaymentCard).Amount) // 2*40 + 3*41
	assertDec(t, "5", r.Bucket(sales.PaymentCard).USD)
	assert.Equal(t, 2, r.Bucket(sales.PaymentCard).Count)
	assertDec(t, "0", r.Bucket(sales.PaymentMobile).Amount)
}

func TestBuildRangeIsInclusive(t *testing.T) {
	saleList := []sales.Sale{
		{ID: "a", Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Total: dec("1"), PaymentMethod: sales.PaymentCash, ExchangeRateAtSale: dec("1")},
		{ID: "b", Date: time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC), Total: dec("2"), PaymentMethod: sales.PaymentCash, ExchangeRateAtSale: dec("1")},
		{ID: "c", Date: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), Total: dec("4"), PaymentMethod: sales.PaymentCash, ExchangeRateAtSale: dec("1")},
	}
	r, err := Build(saleList, nil, "2025-03-01", "2025-03-31", time.UTC)
	require.NoError(t, err)
	assertDec(t, "3", r.TotalRevenue)
}

func TestBuildUsesCalendarDayOfLocation(t *testing.T) {
	caracas := time.FixedZone("VET", -4*3600)
	// 01:00 UTC on the 11th is 21:00 on the 10th in Caracas.
	saleList := []sales.Sale{
		{ID: "late", Date: time.Date(2025, 3, 11, 1, 0, 0, 0, time.UTC), Total: dec("7"), PaymentMethod: sales.PaymentCash, ExchangeRateAtSale: dec("1")},
	}
	r, err := Build(saleList, nil, today, today, caracas)
	require.NoError(t, err)
	assertDec(t, "7", r.TotalRevenue)
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(nil, nil, "2025-03-02", "2025-03-01", time.UTC)
	assert.ErrorIs(t, err, ErrInvalidRange)

	day := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	_, err = Build([]sales.Sale{{ID: "x", Date: day, Total: dec("1"), PaymentMethod: "barter"}}, nil, today, today, time.UTC)
	assert.ErrorIs(t, err, ErrUnknownPaymentMethod)
}

func TestBucketsAddUpToRevenue(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	day := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	for round := 0; round < 50; round++ {
		n := rng.Intn(40) + 1
		saleList := make([]sales.Sale, n)
		for i := range saleList {
			saleList[i] = sales.Sale{
				ID:                 "s",
				Date:               day.Add(time.Duration(rng.Intn(12*60)) * time.Minute),
				Total:              decimal.New(rng.Int63n(100_000)+1, -2),
				PaymentMethod:      sales.PaymentMethods[rng.Intn(len(sales.PaymentMethods))],
				ExchangeRateAtSale: decimal.New(rng.Int63n(9_000)+100, -2),
			}
		}

		r, err := Build(saleList, nil, today, today, time.UTC)
		require.NoError(t, err)

		sum := decimal.Zero
		for _, b := range r.CashCut {
			sum = sum.Add(b.USD)
		}
		assert.True(t, sum.Equal(r.TotalRevenue), "round %d: buckets %s revenue %s", round, sum, r.TotalRevenue)
	}
}

func TestDeletedExpenseLeavesReport(t *testing.T) {
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	l := expenses.NewLedger(zaptest.NewLogger(t), func() time.Time { return at })
	keep, err := l.Add(dec("2"), "napkins", expenses.CategoryExpense)
	require.NoError(t, err)
	drop, err := l.Add(dec("8"), "spoiled milk", expenses.CategoryLoss)
	require.NoError(t, err)

	before, err := Build(nil, l.All(), today, today, time.UTC)
	require.NoError(t, err)
	assertDec(t, "10", before.TotalExpenses)

	_, err = l.Delete(drop.ID)
	require.NoError(t, err)

	after, err := Build(nil, l.All(), today, today, time.UTC)
	require.NoError(t, err)
	assertDec(t, "2", after.TotalExpenses)
	assertDec(t, "0", after.TotalLosses)
	assertDec(t, "-2", after.NetProfit)
	assert.Equal(t, 1, after.ExpenseCount)
	_, err = l.Get(keep.ID)
	assert.NoError(t, err)
}
