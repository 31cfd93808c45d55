// Package sales records sales: it numbers orders per calendar day, freezes the
// exchange rate on every sale and drives the fulfillment state machine.
package sales

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"pos_ledger/internal/calendar"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// ErrInvalidTransition is returned for a status change outside the transition table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidStatus is returned for an unknown status value.
	ErrInvalidStatus = errors.New("invalid status value")
	// ErrInvalidPaymentMethod is returned for an unknown payment method.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

// RateSource provides the exchange rate in effect right now.
type RateSource interface {
	Rate() decimal.Decimal
}

// Ledger is the order ledger. Every method returns copies; callers never hold
// references into the ledger.
type Ledger struct {
	mu      sync.RWMutex
	storage Storage
	rates   RateSource
	logger  *zap.Logger
	now     func() time.Time
	loc     *time.Location
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLocation sets the timezone calendar days are computed in.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) { l.loc = loc }
}

// NewLedger creates a new Ledger.
func NewLedger(storage Storage, rates RateSource, logger *zap.Logger, opts ...Option) *Ledger {
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	l := &Ledger{
		storage: storage,
		rates:   rates,
		logger:  logger,
		now:     time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Location returns the timezone used for calendar days.
func (l *Ledger) Location() *time.Location { return l.loc }

// CreateSale records a checkout. The order number continues today's sequence
// and the current exchange rate is frozen on the sale.
//
// Empty carts and unknown payment methods are caller errors; they are not
// checked here.
func (l *Ledger) CreateSale(c Checkout) (Sale, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	number, err := l.nextOrderNumber(calendar.DayOf(now, l.loc))
	if err != nil {
		return Sale{}, err
	}

	status := StatusCompleted
	if c.RouteToKitchen {
		status = StatusPending
	}
	customer := strings.TrimSpace(c.CustomerName)
	if customer == "" {
		customer = DefaultCustomerName
	}

	sale := &Sale{
		ID:                 uuid.NewString(),
		OrderNumber:        number,
		Date:               now,
		Items:              slices.Clone(c.Items),
		Total:              Total(c.Items),
		PaymentMethod:      c.PaymentMethod,
		ExchangeRateAtSale: l.rates.Rate(),
		Status:             status,
		CustomerName:       customer,
	}

	if err := l.storage.Set(sale); err != nil {
		l.logger.Error("failed to save sale", zap.String("sale_id", sale.ID), zap.Error(err))
		return Sale{}, fmt.Errorf("failed to save sale: %w", err)
	}

	l.logger.Info("sale created",
		zap.String("sale_id", sale.ID),
		zap.Int("order_number", sale.OrderNumber),
		zap.Stringer("total", sale.Total),
		zap.String("payment_method", string(sale.PaymentMethod)),
		zap.String("status", string(sale.Status)),
	)
	return sale.clone(), nil
}

// nextOrderNumber is the highest number recorded on day plus one, which is
// the day's sale count plus one while there are no gaps. Numbers held by
// stored sales are never handed out again, but if the highest one is
// discarded the next sale reuses it.
func (l *Ledger) nextOrderNumber(day calendar.Day) (int, error) {
	all, err := l.storage.GetAll()
	if err != nil {
		return 0, fmt.Errorf("failed to retrieve sales: %w", err)
	}
	last := 0
	for _, s := range all {
		if calendar.DayOf(s.Date, l.loc) == day && s.OrderNumber > last {
			last = s.OrderNumber
		}
	}
	return last + 1, nil
}

// UpdateStatus moves a sale along the transition table. It returns
// ErrNotFound for an unknown ID and ErrInvalidTransition for a move the table
// does not allow; in both cases nothing changes.
func (l *Ledger) UpdateStatus(id string, next Status) (Sale, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	sale, err := l.storage.Read(id)
	if err != nil {
		return Sale{}, ErrNotFound
	}
	if !sale.Status.CanTransitionTo(next) {
		return sale.clone(), fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sale.Status, next)
	}

	updated := sale.clone()
	updated.Status = next
	if err := l.storage.Set(&updated); err != nil {
		l.logger.Error("failed to update sale", zap.String("sale_id", id), zap.Error(err))
		return sale.clone(), err
	}

	l.logger.Info("sale status updated",
		zap.String("sale_id", id),
		zap.String("from", string(sale.Status)),
		zap.String("to", string(next)),
	)
	return updated.clone(), nil
}

// Get returns a sale by ID.
func (l *Ledger) Get(id string) (Sale, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, err := l.storage.Read(id)
	if err != nil {
		return Sale{}, ErrNotFound
	}
	return s.clone(), nil
}

// All returns every sale in creation order.
func (l *Ledger) All() []Sale {
	return l.filter(func(*Sale) bool { return true })
}

// ByDay returns the sales recorded on day in creation order.
func (l *Ledger) ByDay(day calendar.Day) []Sale {
	return l.filter(func(s *Sale) bool { return calendar.DayOf(s.Date, l.loc) == day })
}

// Queue returns the sales still being prepared (pending or ready).
func (l *Ledger) Queue() []Sale {
	return l.filter(func(s *Sale) bool { return !s.Status.Terminal() })
}

func (l *Ledger) filter(keep func(*Sale) bool) []Sale {
	l.mu.RLock()
	defer l.mu.RUnlock()
	all, err := l.storage.GetAll()
	if err != nil {
		l.logger.Error("failed to get all sales from storage", zap.Error(err))
		return nil
	}
	out := make([]Sale, 0, len(all))
	for _, s := range all {
		if keep(s) {
			out = append(out, s.clone())
		}
	}
	return out
}

// Discard removes a sale that was never confirmed by the remote store. It is
// the only way a sale leaves the ledger.
func (l *Ledger) Discard(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.storage.Delete(id); err != nil {
		return err
	}
	l.logger.Warn("unconfirmed sale discarded", zap.String("sale_id", id))
	return nil
}

// Restore puts sale back exactly as given, bypassing the transition table.
// Used to converge on a remote snapshot.
func (l *Ledger) Restore(sale Sale) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := sale.clone()
	return l.storage.Set(&c)
}

// Replace drops every sale and loads sales instead.
func (l *Ledger) Replace(sales []Sale) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.storage.GetAll()
	if err != nil {
		return err
	}
	for _, s := range all {
		if err := l.storage.Delete(s.ID); err != nil {
			return err
		}
	}
	for i := range sales {
		c := sales[i].clone()
		if err := l.storage.Set(&c); err != nil {
			return err
		}
	}
	return nil
}
