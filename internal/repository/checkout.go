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
	insertProcessedEventSQL = `INSERT INTO processed_events (event_id) VALUES ($1)`

	insertOrderSQL = `INSERT INTO orders (id, user_id, items, subtotal, discount, coupon_code,
		total, status, address, provider_session_id, customer_email, customer_phone,
		instructions, needs_review, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	// Clamped at zero: a concurrent buyer may have taken the last units
	// between the stock check and this statement. Returns the pre-decrement
	// stock so the caller can tell whether the decrement came up short.
	decrementStockSQL = `UPDATE products p
		SET stock = GREATEST(p.stock - $2, 0), in_stock = p.stock - $2 > 0, updated_at = NOW()
		FROM (SELECT stock FROM products WHERE id = $1) prev
		WHERE p.id = $1
		RETURNING prev.stock`

	flagOrderReviewSQL = `UPDATE orders SET needs_review = TRUE WHERE id = $1`

	incrementCouponUsesSQL = `UPDATE coupons SET usage_count = usage_count + 1 WHERE code = $1`

	upsertCouponUserUseSQL = `INSERT INTO coupon_usage (coupon_code, user_id, uses)
		VALUES ($1, $2, 1)
		ON CONFLICT (coupon_code, user_id)
		DO UPDATE SET uses = coupon_usage.uses + 1, last_used = NOW()`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ order.Finalizer = (*CheckoutFinalizer)(nil)

// CheckoutFinalizer persists an order together with every side effect the
// reconciliation flow requires, in one transaction: idempotency ledger
// insert, order insert, stock decrement, coupon usage increments, cart
// clearing. Either all of it lands or none of it does.
type CheckoutFinalizer struct {
	pool *pgxpool.Pool
}

// NewCheckoutFinalizer returns a CheckoutFinalizer that uses the given pool.
func NewCheckoutFinalizer(pool *pgxpool.Pool) *CheckoutFinalizer {
	return &CheckoutFinalizer{pool: pool}
}

// Finalize runs the checkout transaction. A duplicate event ID or provider
// session returns order.ErrAlreadyProcessed without side effects; everything
// else rolls back on failure so the caller can retry.
func (f *CheckoutFinalizer) Finalize(ctx context.Context, o *order.Order, opts order.FinalizeOptions) error {
	tx, err := f.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning checkout transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if opts.EventID != "" {
		// Ledger insert first: the PK is the serialization point for
		// redelivered webhook events.
		if _, err := tx.Exec(ctx, insertProcessedEventSQL, opts.EventID); err != nil {
			if isUniqueViolation(err) {
				return order.ErrAlreadyProcessed
			}
			return fmt.Errorf("recording event %q: %w", opts.EventID, err)
		}
	}

	if err := insertOrder(ctx, tx, o); err != nil {
		if isUniqueViolation(err) {
			// A concurrent reconciliation for the same provider session won.
			return order.ErrAlreadyProcessed
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, item := range o.Items {
		var prevStock int
		err := tx.QueryRow(ctx, decrementStockSQL, item.ProductID, item.Quantity).Scan(&prevStock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// Webhook items can reference products removed since the
				// session was created; the order still stands.
				o.NeedsReview = true
				continue
			}
			return fmt.Errorf("decrementing stock for %q: %w", item.ProductID, err)
		}
		if prevStock < item.Quantity {
			// Clamped. Flag rather than fail: boutique volume, manual
			// review beats a lost sale.
			o.NeedsReview = true
		}
	}
	if o.NeedsReview {
		if _, err := tx.Exec(ctx, flagOrderReviewSQL, o.ID); err != nil {
			return fmt.Errorf("flagging order %q for review: %w", o.ID, err)
		}
	}

	if opts.CouponCode != "" {
		if _, err := tx.Exec(ctx, incrementCouponUsesSQL, opts.CouponCode); err != nil {
			return fmt.Errorf("incrementing uses for coupon %q: %w", opts.CouponCode, err)
		}
		if o.UserID != "" {
			if _, err := tx.Exec(ctx, upsertCouponUserUseSQL, opts.CouponCode, o.UserID); err != nil {
				return fmt.Errorf("recording coupon use for %q: %w", opts.CouponCode, err)
			}
		}
	}

	if opts.ClearCartUserID != "" {
		if _, err := tx.Exec(ctx, clearCartSQL, opts.ClearCartUserID); err != nil {
			return fmt.Errorf("clearing cart for user %q: %w", opts.ClearCartUserID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing checkout transaction: %w", err)
	}
	return nil
}

func insertOrder(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	address, err := json.Marshal(o.Address)
	if err != nil {
		return fmt.Errorf("marshaling order address: %w", err)
	}

	var sessionID *string
	if o.ProviderSessionID != "" {
		sessionID = &o.ProviderSessionID
	}

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, items, o.Subtotal, o.Discount, o.CouponCode, o.Total,
		string(o.Status), address, sessionID, o.CustomerEmail, o.CustomerPhone,
		o.Instructions, o.NeedsReview, o.CreatedAt,
	)
	return err
}
