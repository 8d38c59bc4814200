package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Memory keeps the whole history in process memory. Same semantics as the
// Postgres store; used for dry runs and in tests.
type Memory struct {
	mu           sync.Mutex
	products     []Product
	byName       map[string]int
	observations []Observation
	nextProdID   int64
	nextObsID    int64

	// Now is the write clock; swapped out in tests to control timestamps.
	Now func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		byName:     make(map[string]int),
		nextProdID: 1,
		nextObsID:  1,
		Now:        time.Now,
	}
}

func (m *Memory) GetOrCreateProduct(_ context.Context, name string, urls []string, targetPrice *float64, alertThreshold *float64) (*Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.byName[name]; ok {
		p := &m.products[i]
		p.URLs = mergeURLs(p.URLs, urls)
		if p.TargetPrice == nil && targetPrice != nil {
			tp := *targetPrice
			p.TargetPrice = &tp
		}
		cp := copyProduct(*p)
		return &cp, nil
	}

	threshold := DefaultAlertThreshold
	if alertThreshold != nil {
		threshold = *alertThreshold
	}
	p := Product{
		ID:             m.nextProdID,
		Name:           name,
		URLs:           mergeURLs(nil, urls),
		AlertThreshold: threshold,
		CreatedAt:      m.Now(),
	}
	if targetPrice != nil {
		tp := *targetPrice
		p.TargetPrice = &tp
	}
	m.nextProdID++
	m.products = append(m.products, p)
	m.byName[name] = len(m.products) - 1

	cp := copyProduct(p)
	return &cp, nil
}

func (m *Memory) RecordObservation(_ context.Context, productID int64, storeName string, price float64, url string, available bool, title string) (*Observation, error) {
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasProduct(productID) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, productID)
	}

	obs := Observation{
		ID:         m.nextObsID,
		ProductID:  productID,
		Store:      storeName,
		Price:      price,
		Available:  available,
		Title:      title,
		URL:        url,
		ObservedAt: m.Now(),
	}
	m.nextObsID++
	m.observations = append(m.observations, obs)
	return &obs, nil
}

func (m *Memory) LatestObservations(_ context.Context, productID int64) ([]Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	latest := make(map[string]Observation)
	for _, o := range m.observations {
		if o.ProductID != productID {
			continue
		}
		prev, ok := latest[o.Store]
		if !ok || o.ObservedAt.After(prev.ObservedAt) || (o.ObservedAt.Equal(prev.ObservedAt) && o.ID > prev.ID) {
			latest[o.Store] = o
		}
	}

	out := make([]Observation, 0, len(latest))
	for _, o := range latest {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Store < out[j].Store })
	return out, nil
}

func (m *Memory) History(_ context.Context, productID int64, since time.Time) ([]Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Observation
	for _, o := range m.observations {
		if o.ProductID == productID && !o.ObservedAt.Before(since) {
			out = append(out, o)
		}
	}
	// append order is insertion order; stable sort keeps it for equal timestamps
	sort.SliceStable(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out, nil
}

func (m *Memory) Products(_ context.Context) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, copyProduct(p))
	}
	return out, nil
}

// ObservationCount reports how many observations exist for a product.
func (m *Memory) ObservationCount(productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, o := range m.observations {
		if o.ProductID == productID {
			n++
		}
	}
	return n
}

func (m *Memory) hasProduct(id int64) bool {
	for _, p := range m.products {
		if p.ID == id {
			return true
		}
	}
	return false
}

func copyProduct(p Product) Product {
	p.URLs = append([]string(nil), p.URLs...)
	if p.TargetPrice != nil {
		tp := *p.TargetPrice
		p.TargetPrice = &tp
	}
	return p
}
