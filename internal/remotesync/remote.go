package remotesync

import (
	"context"
	"slices"

	"pos_ledger/internal/catalog"
	"pos_ledger/internal/expenses"
	"pos_ledger/internal/sales"
)

// Snapshot is the full content of the remote store.
type Snapshot struct {
	Products []catalog.Product  `json:"products"`
	Sales    []sales.Sale       `json:"sales"`
	Expenses []expenses.Expense `json:"expenses"`
}

// Has reports whether the snapshot holds record id of collection c.
func (s Snapshot) Has(c Collection, id string) bool {
	switch c {
	case Products:
		return slices.ContainsFunc(s.Products, func(p catalog.Product) bool { return p.ID == id })
	case Sales:
		return slices.ContainsFunc(s.Sales, func(sale sales.Sale) bool { return sale.ID == id })
	case Expenses:
		return slices.ContainsFunc(s.Expenses, func(e expenses.Expense) bool { return e.ID == id })
	}
	return false
}

// Remote is a remote persistence backend.
type Remote interface {
	// Init prepares the backend (schema, sheets) and checks connectivity.
	Init(ctx context.Context) error
	// Fetch returns every record, sales and expenses newest first.
	Fetch(ctx context.Context) (Snapshot, error)

	SaveSale(ctx context.Context, s sales.Sale) error
	UpdateSaleStatus(ctx context.Context, id string, status sales.Status) error

	SaveProduct(ctx context.Context, p catalog.Product) error
	UpdateProduct(ctx context.Context, p catalog.Product) error
	DeleteProduct(ctx context.Context, id string) error

	SaveExpense(ctx context.Context, e expenses.Expense) error
	DeleteExpense(ctx context.Context, id string) error
}

// Collection names a group of records.
type Collection string

const (
	Products Collection = "products"
	Sales    Collection = "sales"
	Expenses Collection = "expenses"
)

// Kind is the kind of a mutation.
type Kind string

const (
	Insert Kind = "insert"
	Update Kind = "update"
	Delete Kind = "delete"
)

// Mutation is a local change that still has to reach the remote store.
type Mutation struct {
	Kind       Kind
	Collection Collection
	RecordID   string
	Write      func(ctx context.Context, r Remote) error
}

func InsertSale(s sales.Sale) Mutation {
	return Mutation{Kind: Insert, Collection: Sales, RecordID: s.ID, Write: func(ctx context.Context, r Remote) error {
		return r.SaveSale(ctx, s)
	}}
}

func UpdateSaleStatus(id string, status sales.Status) Mutation {
	return Mutation{Kind: Update, Collection: Sales, RecordID: id, Write: func(ctx context.Context, r Remote) error {
		return r.UpdateSaleStatus(ctx, id, status)
	}}
}

func InsertProduct(p catalog.Product) Mutation {
	return Mutation{Kind: Insert, Collection: Products, RecordID: p.ID, Write: func(ctx context.Context, r Remote) error {
		return r.SaveProduct(ctx, p)
	}}
}

func UpdateProduct(p catalog.Product) Mutation {
	return Mutation{Kind: Update, Collection: Products, RecordID: p.ID, Write: func(ctx context.Context, r Remote) error {
		return r.UpdateProduct(ctx, p)
	}}
}

func DeleteProduct(id string) Mutation {
	return Mutation{Kind: Delete, Collection: Products, RecordID: id, Write: func(ctx context.Context, r Remote) error {
		return r.DeleteProduct(ctx, id)
	}}
}

func InsertExpense(e expenses.Expense) Mutation {
	return Mutation{Kind: Insert, Collection: Expenses, RecordID: e.ID, Write: func(ctx context.Context, r Remote) error {
		return r.SaveExpense(ctx, e)
	}}
}

func DeleteExpense(id string) Mutation {
	return Mutation{Kind: Delete, Collection: Expenses, RecordID: id, Write: func(ctx context.Context, r Remote) error {
		return r.DeleteExpense(ctx, id)
	}}
}
