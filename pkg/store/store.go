package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a referenced product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInvalidPrice is returned when an observation's price fails validation.
	// Nothing is written in that case.
	ErrInvalidPrice = errors.New("invalid price")
)

type Product struct {
	ID             int64     `db:"id"`
	Name           string    `db:"name"`
	URLs           []string  `db:"-"`
	TargetPrice    *float64  `db:"target_price"`
	AlertThreshold float64   `db:"alert_threshold"`
	CreatedAt      time.Time `db:"created_at"`
}

// Observation is a single recorded (price, store, time) data point for a
// product. Observations are append-only and never mutated.
type Observation struct {
	ID         int64     `db:"id"`
	ProductID  int64     `db:"product_id"`
	Store      string    `db:"store"`
	Price      float64   `db:"price"`
	Available  bool      `db:"available"`
	Title      string    `db:"title"`
	URL        string    `db:"url"`
	ObservedAt time.Time `db:"observed_at"`
}

// Store is the durable price history. Writes are append-only; an observation
// is durable before RecordObservation returns.
type Store interface {
	// GetOrCreateProduct looks a product up by name, creating it if absent.
	// When the product already exists, new URLs are merged in (order
	// preserving union) and the target price is only adopted if none was
	// set before. Idempotent.
	GetOrCreateProduct(ctx context.Context, name string, urls []string, targetPrice *float64, alertThreshold *float64) (*Product, error)

	// RecordObservation appends a new observation. Prices below zero (or
	// non-finite) fail with ErrInvalidPrice; unknown products with
	// ErrNotFound.
	RecordObservation(ctx context.Context, productID int64, storeName string, price float64, url string, available bool, title string) (*Observation, error)

	// LatestObservations returns the most recent observation per distinct
	// store, ties broken by insertion order.
	LatestObservations(ctx context.Context, productID int64) ([]Observation, error)

	// History returns all observations with ObservedAt >= since in
	// chronological order (insertion order on equal timestamps).
	History(ctx context.Context, productID int64, since time.Time) ([]Observation, error)

	// Products returns all products in creation order.
	Products(ctx context.Context) ([]Product, error)
}

// DefaultAlertThreshold is the fractional price drop that triggers an alert
// when a product does not configure its own.
const DefaultAlertThreshold = 0.10

// mergeURLs unions b into a, preserving order and skipping duplicates.
func mergeURLs(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, u := range a {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	for _, u := range b {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
