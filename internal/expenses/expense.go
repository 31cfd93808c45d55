// Package expenses keeps the expense ledger: money that left the business,
// either as a regular expense or as a loss.
package expenses

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when an expense with the given ID is not found.
	ErrNotFound = errors.New("expense not found")
	// ErrEmptyID is returned for an expense without ID.
	ErrEmptyID = errors.New("empty expense ID")
	// ErrInvalidAmount is returned for a zero or negative amount.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrEmptyDescription is returned for a blank description.
	ErrEmptyDescription = errors.New("description must not be empty")
	// ErrInvalidCategory is returned for a category other than expense or loss.
	ErrInvalidCategory = errors.New("invalid expense category")
)

// Category classifies an expense.
type Category string

const (
	CategoryExpense Category = "expense"
	CategoryLoss    Category = "loss"
)

// ParseCategory returns ErrInvalidCategory for unknown values.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryExpense, CategoryLoss:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
}

// Expense is an outgoing amount in USD.
type Expense struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    Category        `json:"category"`
}

// Validate checks an expense that comes from outside the ledger.
func (e Expense) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	_, err := ParseCategory(string(e.Category))
	return err
}

// Ledger stores expenses in insertion order.
type Ledger struct {
	mu       sync.RWMutex
	expenses []Expense
	logger   *zap.Logger
	now      func() time.Time
}

// NewLedger creates an empty expense ledger. now may be nil.
func NewLedger(logger *zap.Logger, now func() time.Time) *Ledger {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{logger: logger, now: now}
}

// Add records a new expense stamped with the current time.
func (l *Ledger) Add(amount decimal.Decimal, description string, category Category) (Expense, error) {
	if !amount.IsPositive() {
		return Expense{}, ErrInvalidAmount
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return Expense{}, ErrEmptyDescription
	}
	if _, err := ParseCategory(string(category)); err != nil {
		return Expense{}, err
	}

	e := Expense{
		ID:          uuid.NewString(),
		Date:        l.now(),
		Amount:      amount,
		Description: description,
		Category:    category,
	}

	l.mu.Lock()
	l.expenses = append(l.expenses, e)
	l.mu.Unlock()

	l.logger.Info("expense added",
		zap.String("expense_id", e.ID),
		zap.Stringer("amount", e.Amount),
		zap.String("category", string(e.Category)),
	)
	return e, nil
}

// Delete removes an expense permanently and returns it.
func (l *Ledger) Delete(id string) (Expense, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.index(id)
	if i < 0 {
		return Expense{}, ErrNotFound
	}
	e := l.expenses[i]
	l.expenses = slices.Delete(l.expenses, i, i+1)
	l.logger.Info("expense deleted", zap.String("expense_id", id))
	return e, nil
}

// Get returns an expense by ID.
func (l *Ledger) Get(id string) (Expense, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := l.index(id)
	if i < 0 {
		return Expense{}, ErrNotFound
	}
	return l.expenses[i], nil
}

// All returns a copy of every expense.
func (l *Ledger) All() []Expense {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.expenses)
}

// Put inserts or replaces e as given.
func (l *Ledger) Put(e Expense) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i := l.index(e.ID); i >= 0 {
		l.expenses[i] = e
		return
	}
	l.expenses = append(l.expenses, e)
}

// Replace swaps the whole expense list.
func (l *Ledger) Replace(expenses []Expense) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expenses = slices.Clone(expenses)
}

func (l *Ledger) index(id string) int {
	return slices.IndexFunc(l.expenses, func(e Expense) bool { return e.ID == id })
}
