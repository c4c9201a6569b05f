package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status tracks an order through fulfilment. Transitions are admin-driven;
// the enum is the only constraint.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// ParseStatus validates an admin-supplied status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", errors.Errorf("unknown order status %q", s)
	}
}

// PlaceholderAddressLine marks an address the payment provider did not
// return. Reconciliation substitutes it rather than losing the order.
const PlaceholderAddressLine = "Not provided at checkout"

// Address is a structured shipping address.
type Address struct {
	Name       string `json:"name"`
	Line       string `json:"line"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Item is an order line with product details snapshotted at order-creation
// time. Later product edits never rewrite history.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image,omitempty"`
}

// Order is a persisted customer order.
type Order struct {
	ID                string
	UserID            string
	Items             []Item
	Subtotal          decimal.Decimal
	Discount          decimal.Decimal
	CouponCode        string
	Total             decimal.Decimal
	Status            Status
	Address           Address
	ProviderSessionID string
	TrackingURL       string
	CustomerEmail     string
	CustomerPhone     string
	Instructions      string
	// NeedsReview flags orders whose stock decrement was clamped at zero:
	// a concurrent buyer won the last units and fulfilment must check.
	NeedsReview bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Sentinel errors for order validation and reconciliation.
var (
	ErrEmptyItems = errors.New("items required")
	ErrNotFound   = errors.New("order not found")
	// ErrAlreadyProcessed means the provider event was reconciled before.
	// Redelivery is expected; callers treat it as success.
	ErrAlreadyProcessed = errors.New("payment event already processed")
)

// InvalidQuantityError indicates a line item with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError indicates a product cannot cover the requested
// quantity. Nothing is persisted when it is returned.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// CouponRejectedError indicates the supplied coupon code did not apply.
type CouponRejectedError struct {
	Reason string
}

func (e *CouponRejectedError) Error() string {
	return fmt.Sprintf("coupon rejected: %s", e.Reason)
}

// Repository defines read and status-update operations for orders.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status, trackingURL string) error
	// PriorOrders counts a buyer's existing orders. Also serves the coupon
	// engine's first-time-buyer check.
	PriorOrders(ctx context.Context, userID string) (int, error)
}

// FinalizeOptions selects the side effects that run with order creation.
type FinalizeOptions struct {
	// CouponCode, when set, increments the coupon's usage count and the
	// buyer's per-user ledger row inside the same transaction.
	CouponCode string
	// ClearCartUserID, when set, deletes that buyer's cart rows.
	ClearCartUserID string
	// EventID, when set, records the provider event in the idempotency
	// ledger first; a duplicate aborts with ErrAlreadyProcessed.
	EventID string
}

// Finalizer persists an order and its side effects (stock decrement, coupon
// usage, cart clearing, idempotency ledger) in a single transaction.
type Finalizer interface {
	Finalize(ctx context.Context, o *Order, opts FinalizeOptions) error
}
