// Package pos is the terminal's store: the single owner of the catalog, the
// order and expense ledgers and the exchange rate.
//
// Front ends drive it with command methods and read point-in-time snapshots;
// state changes are also published as events. Every command applies to local
// state first and is then mirrored to the remote store, if any, by a
// remotesync.Coordinator.
package pos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"pos_ledger/internal/backup"
	"pos_ledger/internal/calendar"
	"pos_ledger/internal/catalog"
	"pos_ledger/internal/currency"
	"pos_ledger/internal/expenses"
	"pos_ledger/internal/localstore"
	"pos_ledger/internal/reconcile"
	"pos_ledger/internal/remotesync"
	"pos_ledger/internal/sales"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrInvalidCheckout is returned for an empty cart or a malformed line.
var ErrInvalidCheckout = errors.New("invalid checkout")

// eventBuffer is the channel size handed to subscribers.
const eventBuffer = 64

// Options configures a Store.
type Options struct {
	Logger *zap.Logger
	Rates  *currency.Provider
	// Remote may be nil: the store then runs on local storage only.
	Remote remotesync.Remote
	Policy remotesync.Policy
	// Files may be nil for a memory-only store.
	Files    *localstore.FileStore
	Location *time.Location
	Now      func() time.Time
}

// State is a point-in-time snapshot of the store.
type State struct {
	Products []catalog.Product  `json:"products"`
	Sales    []sales.Sale       `json:"sales"`
	Expenses []expenses.Expense `json:"expenses"`
	Rate     currency.Quote     `json:"rate"`
	Sync     remotesync.Status  `json:"sync"`
}

// Store owns all terminal state.
type Store struct {
	logger   *zap.Logger
	catalog  *catalog.Catalog
	sales    *sales.Ledger
	expenses *expenses.Ledger
	rates    *currency.Provider
	files    *localstore.FileStore
	loc      *time.Location
	now      func() time.Time
	coord    *remotesync.Coordinator
	events   *broker

	persistMu sync.Mutex
}

// Open builds a store, loading the local state file when there is one.
func Open(opts Options) (*Store, error) {
	if opts.Rates == nil {
		return nil, errors.New("an exchange rate provider is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Store{
		logger:   logger,
		catalog:  catalog.New(),
		sales:    sales.NewLedger(sales.NewLocalStorage(), opts.Rates, logger, sales.WithClock(now), sales.WithLocation(loc)),
		expenses: expenses.NewLedger(logger, now),
		rates:    opts.Rates,
		files:    opts.Files,
		loc:      loc,
		now:      now,
		events:   newBroker(),
	}

	if s.files != nil {
		doc, found, err := s.files.Load()
		if err != nil {
			return nil, err
		}
		if found {
			if err := s.apply(doc); err != nil {
				return nil, err
			}
			logger.Info("local state loaded",
				zap.String("file", s.files.Path()),
				zap.Int("products", len(doc.Products)),
				zap.Int("sales", len(doc.Sales)),
				zap.Int("expenses", len(doc.Expenses)),
			)
		}
	}

	s.coord = remotesync.New(opts.Remote, localSide{s}, opts.Policy, remotesync.Hooks{
		OnStatus: func(st remotesync.Status) { s.publish(SyncStateChanged{Status: st}) },
		OnResolved: func(e remotesync.Entry) {
			if e.Resolution == remotesync.ResolutionRolledBack {
				s.publish(MutationRolledBack{Entry: e})
			}
		},
	}, logger)
	return s, nil
}

// Start connects to the remote store and merges its content into local
// state. Failures leave the store working offline and are returned for
// display only.
func (s *Store) Start(ctx context.Context) error {
	if !s.coord.HasRemote() {
		s.logger.Info("no remote store configured, working on local storage")
		return nil
	}
	if err := s.coord.Connect(ctx); err != nil {
		return err
	}
	return s.Pull(ctx)
}

// Close waits for in-flight remote writes and closes every subscription.
func (s *Store) Close() {
	s.coord.Close()
	s.events.close()
}

// Subscribe returns a channel of events and a function to stop receiving.
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.events.subscribe(eventBuffer)
}

func (s *Store) publish(e Event) {
	if dropped := s.events.publish(e); dropped > 0 {
		s.logger.Debug("event dropped for slow subscribers", zap.String("event", e.Type()), zap.Int("subscribers", dropped))
	}
}

// Location returns the timezone calendar days are computed in.
func (s *Store) Location() *time.Location { return s.loc }

// Today returns the current calendar day.
func (s *Store) Today() calendar.Day { return calendar.DayOf(s.now(), s.loc) }

// Snapshot returns the whole state.
func (s *Store) Snapshot() State {
	return State{
		Products: s.catalog.All(),
		Sales:    s.sales.All(),
		Expenses: s.expenses.All(),
		Rate:     s.rates.Quote(),
		Sync:     s.coord.Status(),
	}
}

// Checkout validates c and records it as a sale. The caller discards its cart
// afterwards.
func (s *Store) Checkout(c sales.Checkout) (sales.Sale, error) {
	if err := validateCheckout(c); err != nil {
		return sales.Sale{}, err
	}
	sale, err := s.sales.CreateSale(c)
	if err != nil {
		return sales.Sale{}, err
	}
	s.coord.Submit(remotesync.InsertSale(sale))
	s.publish(SaleCreated{Sale: sale})
	return sale, nil
}

func validateCheckout(c sales.Checkout) error {
	if len(c.Items) == 0 {
		return fmt.Errorf("%w: empty cart", ErrInvalidCheckout)
	}
	if _, err := sales.ParsePaymentMethod(string(c.PaymentMethod)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCheckout, err)
	}
	for _, it := range c.Items {
		if it.Quantity < 1 {
			return fmt.Errorf("%w: quantity %d for %q", ErrInvalidCheckout, it.Quantity, it.Name)
		}
		if it.Price.IsNegative() {
			return fmt.Errorf("%w: negative price for %q", ErrInvalidCheckout, it.Name)
		}
	}
	if !sales.Total(c.Items).IsPositive() {
		return fmt.Errorf("%w: total must be greater than zero", ErrInvalidCheckout)
	}
	return nil
}

// UpdateSaleStatus moves a sale to status. Unknown IDs and transitions the
// table does not allow are no-ops: applied is false and the sale, when it
// exists, is returned unchanged.
func (s *Store) UpdateSaleStatus(id string, status sales.Status) (sale sales.Sale, applied bool) {
	before, err := s.sales.Get(id)
	if err != nil {
		s.logger.Debug("status update for unknown sale ignored", zap.String("sale_id", id))
		return sales.Sale{}, false
	}
	sale, err = s.sales.UpdateStatus(id, status)
	if err != nil {
		s.logger.Warn("status update rejected", zap.String("sale_id", id), zap.Error(err))
		return sale, false
	}
	s.coord.Submit(remotesync.UpdateSaleStatus(id, status))
	s.publish(SaleStatusChanged{SaleID: id, From: before.Status, To: status})
	return sale, true
}

// Sale returns a sale by ID.
func (s *Store) Sale(id string) (sales.Sale, error) { return s.sales.Get(id) }

// SalesOn returns the sales recorded on day in creation order.
func (s *Store) SalesOn(day calendar.Day) []sales.Sale { return s.sales.ByDay(day) }

// KitchenQueue returns the orders still pending or ready.
func (s *Store) KitchenQueue() []sales.Sale { return s.sales.Queue() }

// AddExpense records an expense.
func (s *Store) AddExpense(amount decimal.Decimal, description string, category expenses.Category) (expenses.Expense, error) {
	e, err := s.expenses.Add(amount, description, category)
	if err != nil {
		return expenses.Expense{}, err
	}
	s.coord.Submit(remotesync.InsertExpense(e))
	s.publish(ExpenseAdded{Expense: e})
	return e, nil
}

// DeleteExpense removes an expense. Unknown IDs are a no-op.
func (s *Store) DeleteExpense(id string) bool {
	if _, err := s.expenses.Delete(id); err != nil {
		s.logger.Debug("delete of unknown expense ignored", zap.String("expense_id", id))
		return false
	}
	s.coord.Submit(remotesync.DeleteExpense(id))
	s.publish(ExpenseDeleted{ExpenseID: id})
	return true
}

// Expenses returns every expense, newest first.
func (s *Store) Expenses() []expenses.Expense {
	all := s.expenses.All()
	slices.Reverse(all)
	return all
}

// Products returns the catalog.
func (s *Store) Products() []catalog.Product { return s.catalog.All() }

// Product returns a product by ID.
func (s *Store) Product(id string) (catalog.Product, error) { return s.catalog.Get(id) }

// AddProduct inserts a product.
func (s *Store) AddProduct(p catalog.Product) (catalog.Product, error) {
	p, err := s.catalog.Add(p)
	if err != nil {
		return catalog.Product{}, err
	}
	s.coord.Submit(remotesync.InsertProduct(p))
	s.publish(ProductSaved{Product: p})
	return p, nil
}

// UpdateProduct replaces a product. Sales keep the copy they were made with.
func (s *Store) UpdateProduct(p catalog.Product) (catalog.Product, error) {
	if _, err := s.catalog.Update(p); err != nil {
		return catalog.Product{}, err
	}
	s.coord.Submit(remotesync.UpdateProduct(p))
	s.publish(ProductSaved{Product: p})
	return p, nil
}

// DeleteProduct removes a product. Unknown IDs are a no-op.
func (s *Store) DeleteProduct(id string) bool {
	if _, err := s.catalog.Delete(id); err != nil {
		return false
	}
	s.coord.Submit(remotesync.DeleteProduct(id))
	s.publish(ProductDeleted{ProductID: id})
	return true
}

// Rate returns the current exchange rate.
func (s *Store) Rate() currency.Quote { return s.rates.Quote() }

// SetRate overrides the exchange rate. Sales already recorded keep theirs.
func (s *Store) SetRate(rate decimal.Decimal) error {
	if err := s.rates.SetManual(rate); err != nil {
		return err
	}
	s.rateChanged(rate)
	return nil
}

// RefreshRate fetches the rate from the quote source. On failure the
// previous rate stays in effect.
func (s *Store) RefreshRate(ctx context.Context) (decimal.Decimal, error) {
	rate, err := s.rates.Refresh(ctx)
	if err != nil {
		return s.rates.Rate(), err
	}
	s.rateChanged(rate)
	return rate, nil
}

func (s *Store) rateChanged(rate decimal.Decimal) {
	if err := s.persist(); err != nil {
		s.logger.Error("failed to persist local state", zap.Error(err))
	}
	s.publish(RateChanged{Rate: rate})
}

// Report reconciles the ledgers over [start, end].
func (s *Store) Report(start, end calendar.Day) (reconcile.Report, error) {
	return reconcile.Build(s.sales.All(), s.expenses.All(), start, end, s.loc)
}

// SyncStatus returns the connectivity signal.
func (s *Store) SyncStatus() remotesync.Status { return s.coord.Status() }

// SyncLog returns the transaction log.
func (s *Store) SyncLog() []remotesync.Entry { return s.coord.Log() }

// Flush waits until every remote write started so far is resolved.
func (s *Store) Flush() { s.coord.Flush() }

// Export writes the whole state as a backup document.
func (s *Store) Export(w io.Writer) error {
	return backup.Encode(w, s.document())
}

// Import replaces the whole state with a backup document. A document that
// fails validation leaves the state untouched.
func (s *Store) Import(r io.Reader) error {
	doc, err := backup.Decode(r)
	if err != nil {
		s.logger.Warn("backup rejected", zap.Error(err))
		return err
	}
	if err := s.apply(doc); err != nil {
		return err
	}
	if err := s.persist(); err != nil {
		s.logger.Error("failed to persist local state", zap.Error(err))
	}
	s.logger.Info("backup imported",
		zap.Int("products", len(doc.Products)),
		zap.Int("sales", len(doc.Sales)),
		zap.Int("expenses", len(doc.Expenses)),
	)
	s.publish(StateImported{Products: len(doc.Products), Sales: len(doc.Sales), Expenses: len(doc.Expenses)})
	return nil
}

// Pull merges the remote snapshot into local state: remote records replace
// local ones with the same ID, local-only records are kept.
func (s *Store) Pull(ctx context.Context) error {
	snap, err := s.coord.Fetch(ctx)
	if err != nil {
		s.logger.Warn("cannot pull remote state", zap.Error(err))
		return err
	}
	skipped := 0
	for _, p := range snap.Products {
		if err := validProduct(p); err != nil {
			s.logger.Warn("skipping invalid remote product", zap.String("product_id", p.ID), zap.Error(err))
			skipped++
			continue
		}
		s.catalog.Put(p)
	}
	// oldest first so local creation order follows the remote dates
	for _, sale := range slices.Backward(snap.Sales) {
		if err := sale.Validate(); err != nil {
			s.logger.Warn("skipping invalid remote sale", zap.String("sale_id", sale.ID), zap.Error(err))
			skipped++
			continue
		}
		if err := s.sales.Restore(sale); err != nil {
			return err
		}
	}
	for _, e := range slices.Backward(snap.Expenses) {
		if err := e.Validate(); err != nil {
			s.logger.Warn("skipping invalid remote expense", zap.String("expense_id", e.ID), zap.Error(err))
			skipped++
			continue
		}
		s.expenses.Put(e)
	}
	if err := s.persist(); err != nil {
		s.logger.Error("failed to persist local state", zap.Error(err))
	}
	s.logger.Info("remote state pulled",
		zap.Int("products", len(snap.Products)),
		zap.Int("sales", len(snap.Sales)),
		zap.Int("expenses", len(snap.Expenses)),
		zap.Int("skipped", skipped),
	)
	return nil
}

func validProduct(p catalog.Product) error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id", catalog.ErrInvalidProduct)
	}
	return p.Validate()
}

func (s *Store) document() backup.Document {
	return backup.Document{
		Version:      backup.Version,
		Timestamp:    s.now(),
		Products:     s.catalog.All(),
		Sales:        s.sales.All(),
		Expenses:     s.expenses.All(),
		ExchangeRate: s.rates.Rate(),
	}
}

// apply replaces every ledger with doc. doc is already validated.
func (s *Store) apply(doc backup.Document) error {
	if err := s.sales.Replace(doc.Sales); err != nil {
		return err
	}
	s.catalog.Replace(doc.Products)
	s.expenses.Replace(doc.Expenses)
	s.rates.Restore(doc.ExchangeRate)
	return nil
}

func (s *Store) persist() error {
	if s.files == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return s.files.Save(s.document())
}
