// Package cart holds the server-side cart kept for authenticated buyers.
// Guest carts live entirely on the client and never reach this package.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a cart item does not exist for the buyer.
var ErrNotFound = errors.New("cart item not found")

// Item is one product entry in a buyer's cart. Items are unique per
// (user, product, size, color) tuple; adding the same tuple twice updates
// the quantity instead of creating a second row.
type Item struct {
	ID        string
	UserID    string
	ProductID string
	Quantity  int
	Size      string
	Color     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines persistence operations for cart items.
type Repository interface {
	ListByUser(ctx context.Context, userID string) ([]Item, error)
	Upsert(ctx context.Context, item *Item) error
	UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) error
	Delete(ctx context.Context, userID, itemID string) error
	// DeleteByUser removes every cart row for the buyer. Called after an
	// order has been created from the cart.
	DeleteByUser(ctx context.Context, userID string) error
}
