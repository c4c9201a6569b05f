package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velvetlane/storefront/internal/domain/cart"
)

const (
	listCartSQL = `SELECT id, user_id, product_id, quantity, size, color, created_at, updated_at
		FROM cart_items WHERE user_id = $1 ORDER BY created_at`

	// An insert for an existing (user, product, size, color) tuple bumps the
	// quantity instead of creating a second row.
	upsertCartSQL = `INSERT INTO cart_items (id, user_id, product_id, quantity, size, color)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, product_id, size, color)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()`

	updateCartQtySQL = `UPDATE cart_items SET quantity = $3, updated_at = NOW()
		WHERE user_id = $1 AND id = $2`

	deleteCartItemSQL   = `DELETE FROM cart_items WHERE user_id = $1 AND id = $2`
	deleteCartByUserSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// ListByUser returns the buyer's cart rows in insertion order.
func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx, listCartSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanCartItem)
}

// Upsert adds an item, merging quantity into an existing row for the same
// (product, size, color).
func (r *CartRepository) Upsert(ctx context.Context, item *cart.Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	_, err := r.pool.Exec(ctx, upsertCartSQL,
		item.ID, item.UserID, item.ProductID, item.Quantity, item.Size, item.Color,
	)
	if err != nil {
		return fmt.Errorf("upserting cart item: %w", err)
	}
	return nil
}

// UpdateQuantity sets the quantity of one cart row.
func (r *CartRepository) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) error {
	tag, err := r.pool.Exec(ctx, updateCartQtySQL, userID, itemID, quantity)
	if err != nil {
		return fmt.Errorf("updating cart item %q: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

// Delete removes one cart row.
func (r *CartRepository) Delete(ctx context.Context, userID, itemID string) error {
	tag, err := r.pool.Exec(ctx, deleteCartItemSQL, userID, itemID)
	if err != nil {
		return fmt.Errorf("deleting cart item %q: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

// DeleteByUser removes every cart row for the buyer.
func (r *CartRepository) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, deleteCartByUserSQL, userID); err != nil {
		return fmt.Errorf("clearing cart for user %q: %w", userID, err)
	}
	return nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var it cart.Item
	err := row.Scan(
		&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.Size, &it.Color,
		&it.CreatedAt, &it.UpdatedAt,
	)
	return it, err
}
