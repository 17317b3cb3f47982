// Package store defines the durable tier consumed by the strategy
// engine: the source of truth for products.
package store

import (
	"context"
	"errors"

	"github.com/kabilaymen/caching-demo/product"
)

// ErrNotFound reports a product id with no durable record.
var ErrNotFound = errors.New("store: product not found")

// ProductStore is the contract for the durable backend. Upsert is an
// atomic insert-or-update keyed by id; its failures must surface to the
// caller.
type ProductStore interface {
	Get(ctx context.Context, id int64) (product.Product, error)
	Upsert(ctx context.Context, p product.Product) (product.Product, error)
}

// Resetter is implemented by stores that can drop every product. The
// comparison runner uses it between strategy runs.
type Resetter interface {
	Reset(ctx context.Context) error
}
