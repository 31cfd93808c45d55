package pos

import (
	"fmt"

	"pos_ledger/internal/remotesync"

	"go.uber.org/zap"
)

// localSide lets the sync coordinator persist and repair the store.
type localSide struct {
	s *Store
}

func (l localSide) Persist() error { return l.s.persist() }

func (l localSide) RollbackInsert(c remotesync.Collection, id string) error {
	var err error
	switch c {
	case remotesync.Sales:
		err = l.s.sales.Discard(id)
	case remotesync.Products:
		_, err = l.s.catalog.Delete(id)
	case remotesync.Expenses:
		_, err = l.s.expenses.Delete(id)
	default:
		return fmt.Errorf("unknown collection %q", c)
	}
	return err
}

// Converge makes the local record match snap: restored when present there,
// removed when the remote store does not know it.
func (l localSide) Converge(c remotesync.Collection, id string, snap remotesync.Snapshot) error {
	switch c {
	case remotesync.Sales:
		for _, sale := range snap.Sales {
			if sale.ID == id {
				if err := sale.Validate(); err != nil {
					return err
				}
				return l.s.sales.Restore(sale)
			}
		}
		// sales never leave the ledger on a refetch
		l.s.logger.Warn("sale missing from remote snapshot, kept locally", zap.String("sale_id", id))
		return nil
	case remotesync.Products:
		for _, p := range snap.Products {
			if p.ID == id {
				if err := validProduct(p); err != nil {
					return err
				}
				l.s.catalog.Put(p)
				l.s.publish(ProductSaved{Product: p})
				return nil
			}
		}
		if _, err := l.s.catalog.Delete(id); err == nil {
			l.s.publish(ProductDeleted{ProductID: id})
		}
		return nil
	case remotesync.Expenses:
		for _, e := range snap.Expenses {
			if e.ID == id {
				if err := e.Validate(); err != nil {
					return err
				}
				l.s.expenses.Put(e)
				l.s.publish(ExpenseAdded{Expense: e})
				return nil
			}
		}
		if _, err := l.s.expenses.Delete(id); err == nil {
			l.s.publish(ExpenseDeleted{ExpenseID: id})
		}
		return nil
	}
	return fmt.Errorf("unknown collection %q", c)
}
