package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Postgres struct {
	db *sqlx.DB
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects, verifies the connection and bootstraps the schema.
// Any failure here is unrecoverable for the caller.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	p := &Postgres{db: db}
	if err := p.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) createTables(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			urls TEXT[] NOT NULL DEFAULT '{}',
			target_price DOUBLE PRECISION,
			alert_threshold DOUBLE PRECISION NOT NULL DEFAULT 0.10,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("creating products table: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS observations (
			id BIGSERIAL PRIMARY KEY,
			product_id BIGINT NOT NULL REFERENCES products(id),
			store TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL CHECK (price >= 0),
			available BOOLEAN NOT NULL DEFAULT TRUE,
			title TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("creating observations table: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_observations_product_store
		ON observations (product_id, store, observed_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("creating observations index: %w", err)
	}
	return nil
}

type productRow struct {
	ID             int64          `db:"id"`
	Name           string         `db:"name"`
	URLs           pq.StringArray `db:"urls"`
	TargetPrice    *float64       `db:"target_price"`
	AlertThreshold float64        `db:"alert_threshold"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r productRow) product() Product {
	return Product{
		ID:             r.ID,
		Name:           r.Name,
		URLs:           []string(r.URLs),
		TargetPrice:    r.TargetPrice,
		AlertThreshold: r.AlertThreshold,
		CreatedAt:      r.CreatedAt,
	}
}

func (p *Postgres) GetOrCreateProduct(ctx context.Context, name string, urls []string, targetPrice *float64, alertThreshold *float64) (*Product, error) {
	threshold := DefaultAlertThreshold
	if alertThreshold != nil {
		threshold = *alertThreshold
	}

	// Insert-if-absent first; ON CONFLICT makes concurrent callers safe.
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO products (name, urls, target_price, alert_threshold)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO NOTHING
	`, name, pq.StringArray(urls), targetPrice, threshold)
	if err != nil {
		return nil, fmt.Errorf("inserting product %q: %w", name, err)
	}

	var row productRow
	err = p.db.GetContext(ctx, &row, `
		SELECT id, name, urls, target_price, alert_threshold, created_at
		FROM products WHERE name = $1
	`, name)
	if err != nil {
		return nil, fmt.Errorf("fetching product %q: %w", name, err)
	}

	merged := mergeURLs(row.URLs, urls)
	adoptTarget := row.TargetPrice == nil && targetPrice != nil
	if len(merged) != len(row.URLs) || adoptTarget {
		target := row.TargetPrice
		if adoptTarget {
			target = targetPrice
		}
		_, err = p.db.ExecContext(ctx, `
			UPDATE products SET urls = $2, target_price = $3 WHERE id = $1
		`, row.ID, pq.StringArray(merged), target)
		if err != nil {
			return nil, fmt.Errorf("updating product %q: %w", name, err)
		}
		row.URLs = merged
		row.TargetPrice = target
	}

	prod := row.product()
	return &prod, nil
}

func (p *Postgres) RecordObservation(ctx context.Context, productID int64, storeName string, price float64, url string, available bool, title string) (*Observation, error) {
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}

	obs := Observation{
		ProductID: productID,
		Store:     storeName,
		Price:     price,
		Available: available,
		Title:     title,
		URL:       url,
	}
	err := p.db.QueryRowxContext(ctx, `
		INSERT INTO observations (product_id, store, price, available, title, url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, observed_at
	`, productID, storeName, price, available, title, url).Scan(&obs.ID, &obs.ObservedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" { // foreign key violation
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, productID)
		}
		return nil, fmt.Errorf("recording observation: %w", err)
	}
	return &obs, nil
}

func (p *Postgres) LatestObservations(ctx context.Context, productID int64) ([]Observation, error) {
	var obs []Observation
	err := p.db.SelectContext(ctx, &obs, `
		SELECT DISTINCT ON (store)
			id, product_id, store, price, available, title, url, observed_at
		FROM observations
		WHERE product_id = $1
		ORDER BY store, observed_at DESC, id DESC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("fetching latest observations: %w", err)
	}
	return obs, nil
}

func (p *Postgres) History(ctx context.Context, productID int64, since time.Time) ([]Observation, error) {
	var obs []Observation
	err := p.db.SelectContext(ctx, &obs, `
		SELECT id, product_id, store, price, available, title, url, observed_at
		FROM observations
		WHERE product_id = $1 AND observed_at >= $2
		ORDER BY observed_at, id
	`, productID, since)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	return obs, nil
}

func (p *Postgres) Products(ctx context.Context) ([]Product, error) {
	var rows []productRow
	err := p.db.SelectContext(ctx, &rows, `
		SELECT id, name, urls, target_price, alert_threshold, created_at
		FROM products ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("fetching products: %w", err)
	}
	products := make([]Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, r.product())
	}
	return products, nil
}
