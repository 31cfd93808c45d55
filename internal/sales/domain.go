package sales

import (
	"fmt"
	"slices"
	"time"

	"pos_ledger/internal/catalog"
	"pos_ledger/internal/currency"

	"github.com/shopspring/decimal"
)

// DefaultCustomerName labels sales recorded without a customer name.
const DefaultCustomerName = "Walk-in customer"

// Status is the fulfillment status of a sale.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// transitions lists, for every non-terminal status, where it may go next.
var transitions = map[Status][]Status{
	StatusPending: {StatusReady, StatusCancelled},
	StatusReady:   {StatusCompleted, StatusCancelled},
}

// ParseStatus returns ErrInvalidStatus for unknown values.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusReady, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo reports whether s -> next is allowed.
func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(transitions[s], next)
}

// PaymentMethod is how a sale was paid.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentMobile PaymentMethod = "mobile"
	PaymentZelle  PaymentMethod = "zelle"
)

// PaymentMethods lists every accepted payment method.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentMobile, PaymentZelle}

// ParsePaymentMethod returns ErrInvalidPaymentMethod for unknown values.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	if !slices.Contains(PaymentMethods, m) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s)
	}
	return m, nil
}

// SettlesInLocal reports whether payments of this method are collected in
// local currency (card and mobile) rather than in USD (cash and zelle).
func (m PaymentMethod) SettlesInLocal() bool {
	return m == PaymentCard || m == PaymentMobile
}

// CartItem is a product snapshot with a quantity.
type CartItem struct {
	catalog.Product
	Quantity int `json:"quantity"`
}

// Subtotal returns price * quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Total sums the subtotals of items.
func Total(items []CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Sale is a ledger entry. Only Status changes after creation.
type Sale struct {
	ID                 string          `json:"id"`
	OrderNumber        int             `json:"orderNumber"`
	Date               time.Time       `json:"date"`
	Items              []CartItem      `json:"items"`
	Total              decimal.Decimal `json:"total"`
	PaymentMethod      PaymentMethod   `json:"paymentMethod"`
	ExchangeRateAtSale decimal.Decimal `json:"exchangeRateAtSale"`
	Status             Status          `json:"status"`
	CustomerName       string          `json:"customerName"`
}

// Validate checks a sale that comes from outside the ledger (a backup, the
// local state file or the remote store) before it is stored.
func (s Sale) Validate() error {
	if s.ID == "" {
		return ErrEmptyID
	}
	if _, err := ParsePaymentMethod(string(s.PaymentMethod)); err != nil {
		return err
	}
	if _, err := ParseStatus(string(s.Status)); err != nil {
		return err
	}
	return currency.ValidRate(s.ExchangeRateAtSale)
}

func (s *Sale) clone() Sale {
	c := *s
	c.Items = slices.Clone(s.Items)
	return c
}

// Checkout describes a sale about to be recorded.
type Checkout struct {
	Items         []CartItem
	PaymentMethod PaymentMethod
	CustomerName  string
	// RouteToKitchen sends the order through preparation (pending) instead
	// of delivering it on the spot (completed).
	RouteToKitchen bool
}
