package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velvetlane/storefront/internal/domain/product"
)

const (
	productColumns = `id, name, description, price, category, images, stock, in_stock, created_at, updated_at`

	listProductsSQL     = `SELECT ` + productColumns + ` FROM products ORDER BY id`
	getProductByIDSQL   = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	insertProductSQL = `INSERT INTO products (id, name, description, price, category, images, stock, in_stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	upsertProductSQL = insertProductSQL + `
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
		price = EXCLUDED.price, category = EXCLUDED.category, images = EXCLUDED.images,
		stock = EXCLUDED.stock, in_stock = EXCLUDED.in_stock, updated_at = NOW()`

	updateProductSQL = `UPDATE products
		SET name = $2, description = $3, price = $4, category = $5, images = $6,
		    stock = $7, in_stock = $8, updated_at = NOW()
		WHERE id = $1`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	existingProductIDsSQL    = `SELECT id FROM products WHERE id = ANY($1)`
	existingCategoriesSQL    = `SELECT DISTINCT category FROM products WHERE category = ANY($1)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts a new product. Derived fields are recomputed first.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	p.Normalize()
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("marshaling product images: %w", err)
	}
	_, err = r.pool.Exec(ctx, insertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Category, images, p.Stock, p.InStock,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Upsert inserts a product or rewrites it if the ID already exists. Used by
// seeding, which must be re-runnable.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	p.Normalize()
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("marshaling product images: %w", err)
	}
	_, err = r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Category, images, p.Stock, p.InStock,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// Update rewrites an existing product. Derived fields are recomputed first.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	p.Normalize()
	images, err := json.Marshal(p.Images)
	if err != nil {
		return fmt.Errorf("marshaling product images: %w", err)
	}
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Category, images, p.Stock, p.InStock,
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes a product. Admin-only; core flows never delete.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// MissingIDs returns the ids in the input with no matching product row.
func (r *ProductRepository) MissingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, existingProductIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("checking product ids: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("checking product ids: %w", err)
	}
	return subtract(ids, found), nil
}

// MissingCategories returns the categories no product belongs to.
func (r *ProductRepository) MissingCategories(ctx context.Context, categories []string) ([]string, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, existingCategoriesSQL, categories)
	if err != nil {
		return nil, fmt.Errorf("checking categories: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("checking categories: %w", err)
	}
	return subtract(categories, found), nil
}

func subtract(all, found []string) []string {
	have := make(map[string]struct{}, len(found))
	for _, f := range found {
		have[f] = struct{}{}
	}
	var missing []string
	for _, v := range all {
		if _, ok := have[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p      product.Product
		images []byte
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &images,
		&p.Stock, &p.InStock, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(images, &p.Images); err != nil {
		return p, fmt.Errorf("unmarshaling product images: %w", err)
	}
	return p, nil
}
