package sales

import (
	"slices"

	"pos_ledger/internal/catalog"

	"github.com/shopspring/decimal"
)

// Cart is an in-progress order. It is not safe for concurrent use.
type Cart struct {
	items []CartItem
}

// Add puts one more unit of p in the cart. The product is copied, so later
// catalog edits do not reach the cart.
func (c *Cart) Add(p catalog.Product) {
	if i := c.index(p.ID); i >= 0 {
		c.items[i].Quantity++
		return
	}
	c.items = append(c.items, CartItem{Product: p, Quantity: 1})
}

// SetQuantity changes the quantity of a line. A quantity below 1 removes it.
func (c *Cart) SetQuantity(productID string, qty int) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	if qty < 1 {
		c.items = slices.Delete(c.items, i, i+1)
		return
	}
	c.items[i].Quantity = qty
}

// Remove drops a line.
func (c *Cart) Remove(productID string) { c.SetQuantity(productID, 0) }

// Items returns a copy of the cart lines.
func (c *Cart) Items() []CartItem { return slices.Clone(c.items) }

// Total returns the cart total in USD.
func (c *Cart) Total() decimal.Decimal { return Total(c.items) }

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool { return len(c.items) == 0 }

// Clear discards every line.
func (c *Cart) Clear() { c.items = nil }

func (c *Cart) index(productID string) int {
	return slices.IndexFunc(c.items, func(it CartItem) bool { return it.ID == productID })
}
