// Package product defines the record type moved between the cache and
// the durable store, and its write-side validation.
package product

import (
	"errors"
	"fmt"
)

// ErrInvalid marks a product that fails validation. Callers can match it
// with errors.Is to map the failure to a client error.
var ErrInvalid = errors.New("product: invalid product")

// Product is a single catalog record. ID is the identity; everything
// else is mutable through writes.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
}

// Validate checks the fields required before any cache or store
// interaction. Description is optional.
func (p Product) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("%w: id must be a positive integer", ErrInvalid)
	}
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalid)
	}
	return nil
}
