package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velvetlane/storefront/internal/domain/banner"
)

const (
	bannerColumns = `id, title, subtitle, description, surface, position, priority, active,
		starts_at, ends_at, audience, rules, content,
		impressions, clicks, conversions, unique_views, created_at, updated_at`

	listBannersSQL       = `SELECT ` + bannerColumns + ` FROM banners ORDER BY created_at DESC`
	listActiveBannersSQL = `SELECT ` + bannerColumns + ` FROM banners
		WHERE active AND starts_at <= $1 AND ends_at >= $1`
	getBannerByIDSQL = `SELECT ` + bannerColumns + ` FROM banners WHERE id = $1`

	insertBannerSQL = `INSERT INTO banners (id, title, subtitle, description, surface, position,
		priority, active, starts_at, ends_at, audience, rules, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	upsertBannerSQL = insertBannerSQL + `
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, subtitle = EXCLUDED.subtitle,
		description = EXCLUDED.description, surface = EXCLUDED.surface,
		position = EXCLUDED.position, priority = EXCLUDED.priority, active = EXCLUDED.active,
		starts_at = EXCLUDED.starts_at, ends_at = EXCLUDED.ends_at,
		audience = EXCLUDED.audience, rules = EXCLUDED.rules, content = EXCLUDED.content,
		updated_at = NOW()`

	updateBannerSQL = `UPDATE banners SET title = $2, subtitle = $3, description = $4,
		surface = $5, position = $6, priority = $7, active = $8, starts_at = $9, ends_at = $10,
		audience = $11, rules = $12, content = $13, updated_at = NOW()
		WHERE id = $1`

	deleteBannerSQL = `DELETE FROM banners WHERE id = $1`
)

// counterColumn maps event kinds to counter columns. Increment statements are
// built from this map only, never from request input.
var counterColumn = map[banner.EventKind]string{
	banner.EventImpression: "impressions",
	banner.EventClick:      "clicks",
	banner.EventConversion: "conversions",
	banner.EventUniqueView: "unique_views",
}

var _ banner.Repository = (*BannerRepository)(nil)

// BannerRepository implements banner.Repository backed by PostgreSQL.
type BannerRepository struct {
	pool *pgxpool.Pool
}

// NewBannerRepository returns a BannerRepository that uses the given pool.
func NewBannerRepository(pool *pgxpool.Pool) *BannerRepository {
	return &BannerRepository{pool: pool}
}

// ListActive returns banners whose active window contains now. The targeting
// engine applies the remaining filters.
func (r *BannerRepository) ListActive(ctx context.Context, now time.Time) ([]banner.Banner, error) {
	rows, err := r.pool.Query(ctx, listActiveBannersSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing active banners: %w", err)
	}
	return pgx.CollectRows(rows, scanBanner)
}

// List returns all banners, newest first.
func (r *BannerRepository) List(ctx context.Context) ([]banner.Banner, error) {
	rows, err := r.pool.Query(ctx, listBannersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing banners: %w", err)
	}
	return pgx.CollectRows(rows, scanBanner)
}

// GetByID returns one banner.
func (r *BannerRepository) GetByID(ctx context.Context, id string) (*banner.Banner, error) {
	rows, err := r.pool.Query(ctx, getBannerByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting banner %q: %w", id, err)
	}
	b, err := pgx.CollectExactlyOneRow(rows, scanBanner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, banner.ErrNotFound
		}
		return nil, fmt.Errorf("getting banner %q: %w", id, err)
	}
	return &b, nil
}

// Create inserts a new banner.
func (r *BannerRepository) Create(ctx context.Context, b *banner.Banner) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	args, err := bannerArgs(b)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, insertBannerSQL, args...); err != nil {
		return fmt.Errorf("creating banner %q: %w", b.ID, err)
	}
	return nil
}

// Upsert inserts a banner or rewrites it if the ID already exists. Counters
// are preserved. Used by seeding, which must be re-runnable.
func (r *BannerRepository) Upsert(ctx context.Context, b *banner.Banner) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	args, err := bannerArgs(b)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, upsertBannerSQL, args...); err != nil {
		return fmt.Errorf("upserting banner %q: %w", b.ID, err)
	}
	return nil
}

// Update rewrites a banner. Tracking counters are deliberately untouched;
// they move only through IncrementCounter.
func (r *BannerRepository) Update(ctx context.Context, b *banner.Banner) error {
	args, err := bannerArgs(b)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, updateBannerSQL, args...)
	if err != nil {
		return fmt.Errorf("updating banner %q: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return banner.ErrNotFound
	}
	return nil
}

// Delete removes a banner.
func (r *BannerRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteBannerSQL, id)
	if err != nil {
		return fmt.Errorf("deleting banner %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return banner.ErrNotFound
	}
	return nil
}

// IncrementCounter bumps one tracking counter with a store-level atomic
// update, safe under concurrent reports from many visitors.
func (r *BannerRepository) IncrementCounter(ctx context.Context, id string, kind banner.EventKind) error {
	col, ok := counterColumn[kind]
	if !ok {
		return errors.Errorf("unknown banner event kind %q", kind)
	}
	sql := fmt.Sprintf(`UPDATE banners SET %s = %s + 1 WHERE id = $1`, col, col)
	tag, err := r.pool.Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("incrementing %s for banner %q: %w", col, id, err)
	}
	if tag.RowsAffected() == 0 {
		return banner.ErrNotFound
	}
	return nil
}

func bannerArgs(b *banner.Banner) ([]any, error) {
	audience, err := json.Marshal(b.Audience)
	if err != nil {
		return nil, fmt.Errorf("marshaling banner audience: %w", err)
	}
	rules, err := json.Marshal(b.Rules)
	if err != nil {
		return nil, fmt.Errorf("marshaling banner rules: %w", err)
	}
	content, err := json.Marshal(b.Content)
	if err != nil {
		return nil, fmt.Errorf("marshaling banner content: %w", err)
	}
	return []any{
		b.ID, b.Title, b.Subtitle, b.Description, string(b.Surface), b.Position,
		b.Priority, b.Active, b.StartsAt, b.EndsAt, audience, rules, content,
	}, nil
}

func scanBanner(row pgx.CollectableRow) (banner.Banner, error) {
	var (
		b        banner.Banner
		surface  string
		audience []byte
		rules    []byte
		content  []byte
	)
	err := row.Scan(
		&b.ID, &b.Title, &b.Subtitle, &b.Description, &surface, &b.Position,
		&b.Priority, &b.Active, &b.StartsAt, &b.EndsAt, &audience, &rules, &content,
		&b.Impressions, &b.Clicks, &b.Conversions, &b.UniqueViews,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return b, err
	}
	b.Surface = banner.Surface(surface)
	if err := json.Unmarshal(audience, &b.Audience); err != nil {
		return b, fmt.Errorf("unmarshaling banner audience: %w", err)
	}
	if err := json.Unmarshal(rules, &b.Rules); err != nil {
		return b, fmt.Errorf("unmarshaling banner rules: %w", err)
	}
	if err := json.Unmarshal(content, &b.Content); err != nil {
		return b, fmt.Errorf("unmarshaling banner content: %w", err)
	}
	return b, nil
}
