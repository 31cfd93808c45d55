package pos

import (
	"sync"

	"pos_ledger/internal/catalog"
	"pos_ledger/internal/expenses"
	"pos_ledger/internal/remotesync"
	"pos_ledger/internal/sales"

	"github.com/shopspring/decimal"
)

// Event is published after a state change.
type Event interface {
	Type() string
}

type SaleCreated struct {
	Sale sales.Sale
}

func (e SaleCreated) Type() string { return "SaleCreated" }

type SaleStatusChanged struct {
	SaleID string
	From   sales.Status
	To     sales.Status
}

func (e SaleStatusChanged) Type() string { return "SaleStatusChanged" }

type ExpenseAdded struct {
	Expense expenses.Expense
}

func (e ExpenseAdded) Type() string { return "ExpenseAdded" }

type ExpenseDeleted struct {
	ExpenseID string
}

func (e ExpenseDeleted) Type() string { return "ExpenseDeleted" }

type ProductSaved struct {
	Product catalog.Product
}

func (e ProductSaved) Type() string { return "ProductSaved" }

type ProductDeleted struct {
	ProductID string
}

func (e ProductDeleted) Type() string { return "ProductDeleted" }

type RateChanged struct {
	Rate decimal.Decimal
}

func (e RateChanged) Type() string { return "RateChanged" }

type SyncStateChanged struct {
	Status remotesync.Status
}

func (e SyncStateChanged) Type() string { return "SyncStateChanged" }

type MutationRolledBack struct {
	Entry remotesync.Entry
}

func (e MutationRolledBack) Type() string { return "MutationRolledBack" }

type StateImported struct {
	Products, Sales, Expenses int
}

func (e StateImported) Type() string { return "StateImported" }

// broker fans events out to subscribers. A full subscriber buffer drops the
// event for that subscriber only.
type broker struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan Event)}
}

func (b *broker) subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
}

func (b *broker) publish(e Event) (dropped int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			dropped++
		}
	}
	return dropped
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
