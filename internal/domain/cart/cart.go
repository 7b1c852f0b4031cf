// Package cart is the shopper's cart: product lines keyed by product and
// size, priced with the same engine as checkout.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/eubiosis/checkout/internal/domain/pricing"
)

// ErrNotFound is returned by a Repository for an unknown session.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidItem is returned for items that cannot be priced.
var ErrInvalidItem = errors.New("invalid cart item")

// DefaultProductID is the single product sold.
const DefaultProductID = "eubiosis-s"

// Item is one cart line.
type Item struct {
	ProductID             string       `json:"id"`
	Name                  string       `json:"name"`
	Size                  pricing.Size `json:"size"`
	Quantity              int          `json:"quantity"`
	Bundle                bool         `json:"bundle,omitempty"`
	BundleDiscountPercent int          `json:"upsellDiscount,omitempty"`
	EmailDiscount         bool         `json:"emailDiscount,omitempty"`
}

func (i Item) same(productID string, size pricing.Size) bool {
	return i.ProductID == productID && i.Size == size
}

// Totals prices the line.
func (i Item) Totals() pricing.Totals {
	return pricing.Compute(i.Size, i.Quantity, pricing.Flags{
		Bundle:                i.Bundle,
		BundleDiscountPercent: i.BundleDiscountPercent,
	})
}

// Cart is the cart of one browser session.
type Cart struct {
	SessionID string    `json:"sessionId"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ItemCount is the number of bottles in the cart.
func (c *Cart) ItemCount() int {
	n := 0
	for _, i := range c.Items {
		n += i.Quantity
	}
	return n
}

// Total is the sum of the line subtotals, before delivery.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, i := range c.Items {
		total = total.Add(i.Totals().Subtotal)
	}
	return total
}

// Repository stores carts.
type Repository interface {
	// Get returns ErrNotFound when the session has no cart.
	Get(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, sessionID string) error
}
