package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/kabilaymen/caching-demo/product"
	"github.com/kabilaymen/caching-demo/store"
)

// ProductRepository persists products inside PostgreSQL.
type ProductRepository struct {
	db *sql.DB
}

var (
	_ store.ProductStore = (*ProductRepository)(nil)
	_ store.Resetter     = (*ProductRepository)(nil)
)

// NewProductRepository wraps an existing *sql.DB connection.
func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Get(ctx context.Context, id int64) (product.Product, error) {
	const query = `SELECT id, name, price, COALESCE(description, '') FROM products WHERE id = $1`
	var p product.Product
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Price, &p.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return product.Product{}, store.ErrNotFound
		}
		return product.Product{}, translateError(err)
	}
	return p, nil
}

// Upsert inserts or updates a product in one statement so concurrent
// writers to the same id cannot race between an existence check and the
// write.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) (product.Product, error) {
	const query = `INSERT INTO products (id, name, price, description)
                   VALUES ($1, $2, $3, NULLIF($4, ''))
                   ON CONFLICT (id) DO UPDATE
                   SET name = EXCLUDED.name, price = EXCLUDED.price, description = EXCLUDED.description`
	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Price, p.Description); err != nil {
		return product.Product{}, translateError(err)
	}
	return p, nil
}

// Reset drops every product; used by the comparison runner between
// strategy runs.
func (r *ProductRepository) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `TRUNCATE TABLE products`); err != nil {
		return translateError(err)
	}
	return nil
}

func translateError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "22P02" {
		return store.ErrNotFound
	}
	return err
}
