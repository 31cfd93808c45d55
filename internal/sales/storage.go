package sales

import (
	"errors"
	"slices"
)

// ErrNotFound is returned when a sale with the given ID is not found.
var ErrNotFound = errors.New("sale not found")

// ErrEmptyID is returned when trying to store a sale with an empty ID.
var ErrEmptyID = errors.New("empty sale ID")

// Storage is the main interface for our sales storage layer.
type Storage interface {
	Set(sale *Sale) error
	Read(id string) (*Sale, error)
	// GetAll returns sales in insertion order.
	GetAll() ([]*Sale, error)
	Delete(id string) error
}

// LocalStorage provides an in-memory implementation for storing sales.
type LocalStorage struct {
	m     map[string]*Sale
	order []string
}

// NewLocalStorage instantiates a new LocalStorage for sales with an empty map.
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{
		m: map[string]*Sale{},
	}
}

// Set inserts or replaces a sale.
// Returns ErrEmptyID if the sale has an empty ID.
func (l *LocalStorage) Set(sale *Sale) error {
	if sale.ID == "" {
		return ErrEmptyID
	}
	if _, ok := l.m[sale.ID]; !ok {
		l.order = append(l.order, sale.ID)
	}
	l.m[sale.ID] = sale
	return nil
}

// Read retrieves a sale from the local storage by ID.
// Returns ErrNotFound if the sale is not found.
func (l *LocalStorage) Read(id string) (*Sale, error) {
	s, ok := l.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// GetAll retrieves all sales from the local storage.
func (l *LocalStorage) GetAll() ([]*Sale, error) {
	sales := make([]*Sale, 0, len(l.order))
	for _, id := range l.order {
		sales = append(sales, l.m[id])
	}
	return sales, nil
}

// Delete removes a sale. Returns ErrNotFound if the sale is not found.
func (l *LocalStorage) Delete(id string) error {
	if _, ok := l.m[id]; !ok {
		return ErrNotFound
	}
	delete(l.m, id)
	l.order = slices.DeleteFunc(l.order, func(s string) bool { return s == id })
	return nil
}
