// Package reconcile derives revenue, expense and profit totals and the
// per-payment-method cash cut from the sales and expense ledgers.
//
// Reports are computed summaries. Local-currency buckets use each sale's own
// exchangeRateAtSale, so a report for a past period never moves when the
// current rate changes.
package reconcile

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"pos_ledger/internal/calendar"
	"pos_ledger/internal/currency"
	"pos_ledger/internal/expenses"
	"pos_ledger/internal/sales"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidRange is returned when the start day is after the end day.
	ErrInvalidRange = errors.New("start day is after end day")
	// ErrUnknownPaymentMethod is returned for a sale no bucket accepts.
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
)

// Bucket is the cash-cut line of one payment method.
type Bucket struct {
	Method sales.PaymentMethod `json:"method"`
	// Local is true when Amount is in local currency (card, mobile).
	Local bool `json:"local"`
	// Amount is in USD, or in local currency when Local is set.
	Amount decimal.Decimal `json:"amount"`
	// USD converts Amount back with each sale's stored rate.
	USD   decimal.Decimal `json:"usd"`
	Count int             `json:"count"`
}

// Report is the reconciliation of a day range.
type Report struct {
	StartDay      calendar.Day    `json:"start_day"`
	EndDay        calendar.Day    `json:"end_day"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	// TotalLosses is the part of TotalExpenses filed as losses.
	TotalLosses  decimal.Decimal `json:"total_losses"`
	NetProfit    decimal.Decimal `json:"net_profit"`
	SaleCount    int             `json:"sale_count"`
	ExpenseCount int             `json:"expense_count"`
	CashCut      []Bucket        `json:"cash_cut"`
}

// Bucket returns the cash-cut line of m.
func (r Report) Bucket(m sales.PaymentMethod) Bucket {
	i := slices.IndexFunc(r.CashCut, func(b Bucket) bool { return b.Method == m })
	if i < 0 {
		return Bucket{Method: m, Local: m.SettlesInLocal()}
	}
	return r.CashCut[i]
}

// Build reconciles the entries dated within [start, end]. Dates are reduced to
// calendar days in loc (time.Local when nil) before comparing.
func Build(saleList []sales.Sale, expenseList []expenses.Expense, start, end calendar.Day, loc *time.Location) (Report, error) {
	if start > end {
		return Report{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start, end)
	}

	r := Report{
		StartDay:      start,
		EndDay:        end,
		TotalRevenue:  decimal.Zero,
		TotalExpenses: decimal.Zero,
		TotalLosses:   decimal.Zero,
		CashCut:       make([]Bucket, len(sales.PaymentMethods)),
	}
	for i, m := range sales.PaymentMethods {
		r.CashCut[i] = Bucket{Method: m, Local: m.SettlesInLocal(), Amount: decimal.Zero, USD: decimal.Zero}
	}

	for _, s := range saleList {
		if !calendar.DayOf(s.Date, loc).Within(start, end) {
			continue
		}
		i := slices.Index(sales.PaymentMethods, s.PaymentMethod)
		if i < 0 {
			return Report{}, fmt.Errorf("%w %q on sale %s", ErrUnknownPaymentMethod, s.PaymentMethod, s.ID)
		}

		b := &r.CashCut[i]
		if b.Local {
			local, err := currency.ToLocal(s.Total, s.ExchangeRateAtSale)
			if err != nil {
				return Report{}, fmt.Errorf("sale %s: %w", s.ID, err)
			}
			back, err := currency.ToUSD(local, s.ExchangeRateAtSale)
			if err != nil {
				return Report{}, fmt.Errorf("sale %s: %w", s.ID, err)
			}
			b.Amount = b.Amount.Add(local)
			b.USD = b.USD.Add(back)
		} else {
			b.Amount = b.Amount.Add(s.Total)
			b.USD = b.USD.Add(s.Total)
		}
		b.Count++

		r.TotalRevenue = r.TotalRevenue.Add(s.Total)
		r.SaleCount++
	}

	for _, e := range expenseList {
		if !calendar.DayOf(e.Date, loc).Within(start, end) {
			continue
		}
		r.TotalExpenses = r.TotalExpenses.Add(e.Amount)
		if e.Category == expenses.CategoryLoss {
			r.TotalLosses = r.TotalLosses.Add(e.Amount)
		}
		r.ExpenseCount++
	}

	r.NetProfit = r.TotalRevenue.Sub(r.TotalExpenses)
	return r, nil
}
