package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velvetlane/storefront/internal/domain/content"
)

const (
	pageColumns = `slug, title, body, published, created_at, updated_at`

	getPageSQL          = `SELECT ` + pageColumns + ` FROM pages WHERE slug = $1`
	getPublishedPageSQL = `SELECT ` + pageColumns + ` FROM pages WHERE slug = $1 AND published`
	listPagesSQL        = `SELECT ` + pageColumns + ` FROM pages ORDER BY slug`

	upsertPageSQL = `INSERT INTO pages (slug, title, body, published)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug)
		DO UPDATE SET title = EXCLUDED.title, body = EXCLUDED.body,
		              published = EXCLUDED.published, updated_at = NOW()`

	deletePageSQL = `DELETE FROM pages WHERE slug = $1`
)

var _ content.Repository = (*PageRepository)(nil)

// PageRepository implements content.Repository backed by PostgreSQL.
type PageRepository struct {
	pool *pgxpool.Pool
}

// NewPageRepository returns a PageRepository that uses the given pool.
func NewPageRepository(pool *pgxpool.Pool) *PageRepository {
	return &PageRepository{pool: pool}
}

// GetPublished returns a page only when it is published.
func (r *PageRepository) GetPublished(ctx context.Context, slug string) (*content.Page, error) {
	return r.get(ctx, getPublishedPageSQL, slug)
}

// GetBySlug returns a page regardless of publication state.
func (r *PageRepository) GetBySlug(ctx context.Context, slug string) (*content.Page, error) {
	return r.get(ctx, getPageSQL, slug)
}

func (r *PageRepository) get(ctx context.Context, sql, slug string) (*content.Page, error) {
	rows, err := r.pool.Query(ctx, sql, slug)
	if err != nil {
		return nil, fmt.Errorf("getting page %q: %w", slug, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, content.ErrNotFound
		}
		return nil, fmt.Errorf("getting page %q: %w", slug, err)
	}
	return &p, nil
}

// List returns all pages ordered by slug.
func (r *PageRepository) List(ctx context.Context) ([]content.Page, error) {
	rows, err := r.pool.Query(ctx, listPagesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}
	return pgx.CollectRows(rows, scanPage)
}

// Upsert creates or rewrites a page by slug.
func (r *PageRepository) Upsert(ctx context.Context, p *content.Page) error {
	if _, err := r.pool.Exec(ctx, upsertPageSQL, p.Slug, p.Title, p.Body, p.Published); err != nil {
		return fmt.Errorf("upserting page %q: %w", p.Slug, err)
	}
	return nil
}

// Delete removes a page.
func (r *PageRepository) Delete(ctx context.Context, slug string) error {
	tag, err := r.pool.Exec(ctx, deletePageSQL, slug)
	if err != nil {
		return fmt.Errorf("deleting page %q: %w", slug, err)
	}
	if tag.RowsAffected() == 0 {
		return content.ErrNotFound
	}
	return nil
}

func scanPage(row pgx.CollectableRow) (content.Page, error) {
	var p content.Page
	err := row.Scan(&p.Slug, &p.Title, &p.Body, &p.Published, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
