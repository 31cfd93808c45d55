// Package backup reads and writes the backup file: a JSON document holding
// the catalog, both ledgers and the exchange rate.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"pos_ledger/internal/catalog"
	"pos_ledger/internal/expenses"
	"pos_ledger/internal/sales"

	"github.com/shopspring/decimal"
)

// Version is written into every exported document.
const Version = 1

// ErrInvalidBackup is returned by Decode for a document that cannot be imported.
var ErrInvalidBackup = errors.New("invalid backup file")

// Document is the backup file. exchangeRate is always written as a JSON
// number. Nested amounts follow decimal.MarshalJSONWithoutQuotes, which main
// sets for the whole process; Decode accepts numbers and quoted strings.
type Document struct {
	Version      int                `json:"version"`
	Timestamp    time.Time          `json:"timestamp"`
	Products     []catalog.Product  `json:"products"`
	Sales        []sales.Sale       `json:"sales"`
	Expenses     []expenses.Expense `json:"expenses"`
	ExchangeRate decimal.Decimal    `json:"exchangeRate"`
}

// wire tells a missing or null array apart from an empty one.
type wire struct {
	Version      int                 `json:"version"`
	Timestamp    time.Time           `json:"timestamp"`
	Products     *[]catalog.Product  `json:"products"`
	Sales        *[]sales.Sale       `json:"sales"`
	Expenses     *[]expenses.Expense `json:"expenses"`
	ExchangeRate decimal.Decimal     `json:"exchangeRate"`
}

// Encode writes d as indented JSON. Nil slices are written as empty arrays so
// the output always passes Decode.
func Encode(w io.Writer, d Document) error {
	if d.Version == 0 {
		d.Version = Version
	}
	if d.Products == nil {
		d.Products = []catalog.Product{}
	}
	if d.Sales == nil {
		d.Sales = []sales.Sale{}
	}
	if d.Expenses == nil {
		d.Expenses = []expenses.Expense{}
	}
	out := struct {
		Document
		ExchangeRate json.Number `json:"exchangeRate"`
	}{Document: d, ExchangeRate: json.Number(d.ExchangeRate.String())}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// Decode reads and validates a document. Any error wraps ErrInvalidBackup and
// the caller must leave its state untouched.
func Decode(r io.Reader) (Document, error) {
	var in wire
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if in.Products == nil {
		return Document{}, fmt.Errorf("%w: missing products", ErrInvalidBackup)
	}
	if in.Sales == nil {
		return Document{}, fmt.Errorf("%w: missing sales", ErrInvalidBackup)
	}

	d := Document{
		Version:      in.Version,
		Timestamp:    in.Timestamp,
		Products:     *in.Products,
		Sales:        *in.Sales,
		ExchangeRate: in.ExchangeRate,
	}
	if in.Expenses != nil {
		d.Expenses = *in.Expenses
	}
	if err := d.validate(); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	return d, nil
}

func (d Document) validate() error {
	products := make(map[string]bool, len(d.Products))
	for _, p := range d.Products {
		if p.ID == "" || products[p.ID] {
			return fmt.Errorf("product with empty or duplicate id %q", p.ID)
		}
		products[p.ID] = true
	}

	ids := make(map[string]bool, len(d.Sales))
	for _, s := range d.Sales {
		if s.ID == "" || ids[s.ID] {
			return fmt.Errorf("sale with empty or duplicate id %q", s.ID)
		}
		ids[s.ID] = true
		if err := s.Validate(); err != nil {
			return fmt.Errorf("sale %s: %w", s.ID, err)
		}
	}

	clear(ids)
	for _, e := range d.Expenses {
		if e.ID == "" || ids[e.ID] {
			return fmt.Errorf("expense with empty or duplicate id %q", e.ID)
		}
		ids[e.ID] = true
		if err := e.Validate(); err != nil {
			return fmt.Errorf("expense %s: %w", e.ID, err)
		}
	}
	return nil
}
