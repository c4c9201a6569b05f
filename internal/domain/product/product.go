package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	Images      []string
	Stock       int
	InStock     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Normalize recomputes derived fields before persistence. InStock is always
// derived from Stock and never set independently.
func (p *Product) Normalize() {
	if p.Stock < 0 {
		p.Stock = 0
	}
	p.InStock = p.Stock > 0
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error

	// MissingIDs returns the subset of ids with no matching product row.
	// Used to validate coupon and banner references at write time.
	MissingIDs(ctx context.Context, ids []string) ([]string, error)
	// MissingCategories returns the subset of categories no product belongs to.
	MissingCategories(ctx context.Context, categories []string) ([]string, error)
}
