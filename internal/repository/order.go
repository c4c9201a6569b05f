package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velvetlane/storefront/internal/domain/order"
)

const (
	orderColumns = `id, user_id, items, subtotal, discount, coupon_code, total, status, address,
		provider_session_id, tracking_url, customer_email, customer_phone, instructions,
		needs_review, created_at, updated_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	listOrdersSQL       = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	updateOrderStatusSQL = `UPDATE orders SET status = $2,
		tracking_url = CASE WHEN $3 <> '' THEN $3 ELSE tracking_url END,
		updated_at = NOW()
		WHERE id = $1`

	countOrdersByUserSQL = `SELECT COUNT(*) FROM orders WHERE user_id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Order
// creation goes through CheckoutFinalizer, never through this type.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetByID returns a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListByUser returns the buyer's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus sets an order's status and, when provided, its tracking URL.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, trackingURL string) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status), trackingURL)
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// PriorOrders counts the buyer's existing orders.
func (r *OrderRepository) PriorOrders(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countOrdersByUserSQL, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders for user %q: %w", userID, err)
	}
	return n, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		status    string
		items     []byte
		address   []byte
		sessionID *string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &items, &o.Subtotal, &o.Discount, &o.CouponCode, &o.Total,
		&status, &address, &sessionID, &o.TrackingURL, &o.CustomerEmail, &o.CustomerPhone,
		&o.Instructions, &o.NeedsReview, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.Status = order.Status(status)
	if sessionID != nil {
		o.ProviderSessionID = *sessionID
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(address, &o.Address); err != nil {
		return o, fmt.Errorf("unmarshaling order address: %w", err)
	}
	return o, nil
}
