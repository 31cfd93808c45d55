// Package catalog holds the products a terminal can sell.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a product with the given ID is not found.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateID is returned when adding a product whose ID is taken.
	ErrDuplicateID = errors.New("duplicate product ID")
	// ErrInvalidProduct is returned for a product without name or with a negative price.
	ErrInvalidProduct = errors.New("invalid product")
)

// Product is an item for sale. Price is in USD.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

// Validate checks the product fields.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: negative price %s", ErrInvalidProduct, p.Price)
	}
	return nil
}

// Catalog is an in-memory product list kept in insertion order.
type Catalog struct {
	mu       sync.RWMutex
	products []Product
}

// New returns a catalog holding products.
func New(products ...Product) *Catalog {
	return &Catalog{products: slices.Clone(products)}
}

// Add inserts p, assigning an ID when it has none.
func (c *Catalog) Add(p Product) (Product, error) {
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index(p.ID) >= 0 {
		return Product{}, fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
	}
	c.products = append(c.products, p)
	return p, nil
}

// Update replaces the product with the same ID and returns the previous value.
func (c *Catalog) Update(p Product) (Product, error) {
	if err := p.Validate(); err != nil {
		return Product{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(p.ID)
	if i < 0 {
		return Product{}, ErrNotFound
	}
	prev := c.products[i]
	c.products[i] = p
	return prev, nil
}

// Delete removes the product and returns it.
func (c *Catalog) Delete(id string) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return Product{}, ErrNotFound
	}
	p := c.products[i]
	c.products = slices.Delete(c.products, i, i+1)
	return p, nil
}

// Get returns the product with the given ID.
func (c *Catalog) Get(id string) (Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := c.index(id)
	if i < 0 {
		return Product{}, ErrNotFound
	}
	return c.products[i], nil
}

// All returns a copy of every product.
func (c *Catalog) All() []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.products)
}

// Put inserts or replaces p without validation. Used when merging state that
// was already validated elsewhere.
func (c *Catalog) Put(p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(p.ID); i >= 0 {
		c.products[i] = p
		return
	}
	c.products = append(c.products, p)
}

// Replace swaps the whole product list.
func (c *Catalog) Replace(products []Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = slices.Clone(products)
}

func (c *Catalog) index(id string) int {
	return slices.IndexFunc(c.products, func(p Product) bool { return p.ID == id })
}
