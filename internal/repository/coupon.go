package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velvetlane/storefront/internal/domain/coupon"
)

const (
	couponColumns = `code, discount_type, value, min_amount, max_discount,
		usage_limit, usage_count, user_limit, valid_from, valid_until, active,
		applicable_products, excluded_products, applicable_categories, excluded_categories,
		first_time_buyer_only, min_quantity, max_quantity, description, created_at, updated_at`

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = UPPER($1)`
	listCouponsSQL     = `SELECT ` + couponColumns + ` FROM coupons ORDER BY code`

	insertCouponSQL = `INSERT INTO coupons (code, discount_type, value, min_amount, max_discount,
		usage_limit, user_limit, valid_from, valid_until, active,
		applicable_products, excluded_products, applicable_categories, excluded_categories,
		first_time_buyer_only, min_quantity, max_quantity, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	upsertCouponSQL = insertCouponSQL + `
		ON CONFLICT (code) DO UPDATE SET discount_type = EXCLUDED.discount_type,
		value = EXCLUDED.value, min_amount = EXCLUDED.min_amount,
		max_discount = EXCLUDED.max_discount, usage_limit = EXCLUDED.usage_limit,
		user_limit = EXCLUDED.user_limit, valid_from = EXCLUDED.valid_from,
		valid_until = EXCLUDED.valid_until, active = EXCLUDED.active,
		applicable_products = EXCLUDED.applicable_products,
		excluded_products = EXCLUDED.excluded_products,
		applicable_categories = EXCLUDED.applicable_categories,
		excluded_categories = EXCLUDED.excluded_categories,
		first_time_buyer_only = EXCLUDED.first_time_buyer_only,
		min_quantity = EXCLUDED.min_quantity, max_quantity = EXCLUDED.max_quantity,
		description = EXCLUDED.description, updated_at = NOW()`

	updateCouponSQL = `UPDATE coupons SET discount_type = $2, value = $3, min_amount = $4,
		max_discount = $5, usage_limit = $6, user_limit = $7, valid_from = $8, valid_until = $9,
		active = $10, applicable_products = $11, excluded_products = $12,
		applicable_categories = $13, excluded_categories = $14, first_time_buyer_only = $15,
		min_quantity = $16, max_quantity = $17, description = $18, updated_at = NOW()
		WHERE code = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE code = $1`

	userUsesSQL = `SELECT uses FROM coupon_usage WHERE coupon_code = $1 AND user_id = $2`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive). Inactive
// coupons are returned as stored; the engine reports them as not found so
// the storefront cannot distinguish disabled codes from absent ones.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &c, nil
}

// List returns all coupons ordered by code.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Create inserts a new coupon.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	args, err := couponArgs(c)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, insertCouponSQL, args...); err != nil {
		if isUniqueViolation(err) {
			return errors.Errorf("coupon %q already exists", c.Code)
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Upsert inserts a coupon or rewrites its rule if the code already exists.
// Used by bulk imports, which must be re-runnable.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	args, err := couponArgs(c)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, upsertCouponSQL, args...); err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// Update rewrites an existing coupon. The usage_count column is deliberately
// untouched: it moves only inside checkout finalization.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	args, err := couponArgs(c)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, updateCouponSQL, args...)
	if err != nil {
		return fmt.Errorf("updating coupon %q: %w", c.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Delete removes a coupon and cascades its usage ledger.
func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, code)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// UserUses reads the per-user usage ledger. A missing row means zero uses.
func (r *CouponRepository) UserUses(ctx context.Context, code, userID string) (int, error) {
	var uses int
	err := r.pool.QueryRow(ctx, userUsesSQL, code, userID).Scan(&uses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading coupon usage for %q: %w", code, err)
	}
	return uses, nil
}

func couponArgs(c *coupon.Coupon) ([]any, error) {
	lists := make([][]byte, 0, 4)
	for _, l := range [][]string{
		c.ApplicableProducts, c.ExcludedProducts, c.ApplicableCategories, c.ExcludedCategories,
	} {
		if l == nil {
			l = []string{}
		}
		b, err := json.Marshal(l)
		if err != nil {
			return nil, fmt.Errorf("marshaling coupon list: %w", err)
		}
		lists = append(lists, b)
	}
	return []any{
		c.Code, string(c.Type), c.Value, c.MinAmount, c.MaxDiscount,
		c.UsageLimit, c.UserLimit, c.ValidFrom, c.ValidUntil, c.Active,
		lists[0], lists[1], lists[2], lists[3],
		c.FirstTimeBuyerOnly, c.MinQuantity, c.MaxQuantity, c.Description,
	}, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		validFrom    *time.Time
		validUntil   *time.Time
		lists        [4][]byte
	)
	err := row.Scan(
		&c.Code, &discountType, &c.Value, &c.MinAmount, &c.MaxDiscount,
		&c.UsageLimit, &c.UsageCount, &c.UserLimit, &validFrom, &validUntil, &c.Active,
		&lists[0], &lists[1], &lists[2], &lists[3],
		&c.FirstTimeBuyerOnly, &c.MinQuantity, &c.MaxQuantity, &c.Description,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}
	c.Type = coupon.DiscountType(discountType)
	c.ValidFrom = validFrom
	c.ValidUntil = validUntil
	for i, dst := range []*[]string{
		&c.ApplicableProducts, &c.ExcludedProducts, &c.ApplicableCategories, &c.ExcludedCategories,
	} {
		if err := json.Unmarshal(lists[i], dst); err != nil {
			return c, fmt.Errorf("unmarshaling coupon list: %w", err)
		}
	}
	return c, nil
}
