package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateProductIsIdempotent(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	target := 50.0
	first, err := mem.GetOrCreateProduct(ctx, "keyboard", []string{"https://a.example/kb", "https://b.example/kb"}, &target, nil)
	require.NoError(t, err)

	second, err := mem.GetOrCreateProduct(ctx, "keyboard", []string{"https://b.example/kb", "https://c.example/kb"}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	products, err := mem.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)

	// union, order preserving, no duplicates
	assert.Equal(t, []string{"https://a.example/kb", "https://b.example/kb", "https://c.example/kb"}, second.URLs)
	// target price set on creation stays put
	require.NotNil(t, second.TargetPrice)
	assert.Equal(t, 50.0, *second.TargetPrice)
}

func TestGetOrCreateProductAdoptsTargetWhenUnset(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	first, err := mem.GetOrCreateProduct(ctx, "mouse", []string{"https://a.example/m"}, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, first.TargetPrice)
	assert.Equal(t, DefaultAlertThreshold, first.AlertThreshold)

	target := 20.0
	second, err := mem.GetOrCreateProduct(ctx, "mouse", nil, &target, nil)
	require.NoError(t, err)
	require.NotNil(t, second.TargetPrice)
	assert.Equal(t, 20.0, *second.TargetPrice)
}

func TestRecordObservationRejectsNegativePrice(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	p, err := mem.GetOrCreateProduct(ctx, "keyboard", []string{"https://a.example/kb"}, nil, nil)
	require.NoError(t, err)

	_, err = mem.RecordObservation(ctx, p.ID, "shop-a", -1, "https://a.example/kb", true, "")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	// history untouched
	assert.Equal(t, 0, mem.ObservationCount(p.ID))
}

func TestRecordObservationUnknownProduct(t *testing.T) {
	mem := NewMemory()

	_, err := mem.RecordObservation(context.Background(), 42, "shop-a", 10, "https://a.example", true, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLatestObservationsOnePerStore(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	clock := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mem.Now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	p, err := mem.GetOrCreateProduct(ctx, "keyboard", []string{"https://a.example/kb"}, nil, nil)
	require.NoError(t, err)

	// interleaved stores
	for _, rec := range []struct {
		store string
		price float64
	}{
		{"shop-a", 100},
		{"shop-b", 90},
		{"shop-a", 95},
		{"shop-c", 80},
		{"shop-b", 85},
	} {
		_, err := mem.RecordObservation(ctx, p.ID, rec.store, rec.price, "https://"+rec.store+"/kb", true, "")
		require.NoError(t, err)
	}

	latest, err := mem.LatestObservations(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, latest, 3)

	byStore := map[string]float64{}
	for _, o := range latest {
		byStore[o.Store] = o.Price
	}
	assert.Equal(t, map[string]float64{"shop-a": 95, "shop-b": 85, "shop-c": 80}, byStore)
}

func TestLatestObservationsTieBrokenByInsertionOrder(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	fixed := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mem.Now = func() time.Time { return fixed }

	p, err := mem.GetOrCreateProduct(ctx, "keyboard", []string{"https://a.example/kb"}, nil, nil)
	require.NoError(t, err)

	_, err = mem.RecordObservation(ctx, p.ID, "shop-a", 100, "https://a.example/kb", true, "")
	require.NoError(t, err)
	_, err = mem.RecordObservation(ctx, p.ID, "shop-a", 90, "https://a.example/kb", true, "")
	require.NoError(t, err)

	latest, err := mem.LatestObservations(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, 90.0, latest[0].Price)
}

func TestHistoryWindow(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	clock := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mem.Now = func() time.Time { return clock }

	p, err := mem.GetOrCreateProduct(ctx, "keyboard", []string{"https://a.example/kb"}, nil, nil)
	require.NoError(t, err)

	_, err = mem.RecordObservation(ctx, p.ID, "shop-a", 100, "https://a.example/kb", true, "")
	require.NoError(t, err)

	clock = clock.AddDate(0, 0, 10)
	_, err = mem.RecordObservation(ctx, p.ID, "shop-a", 90, "https://a.example/kb", true, "")
	require.NoError(t, err)

	since := clock.AddDate(0, 0, -7)
	history, err := mem.History(ctx, p.ID, since)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 90.0, history[0].Price)

	full, err := mem.History(ctx, p.ID, time.Time{})
	require.NoError(t, err)
	assert.Len(t, full, 2)

	// chronological order
	assert.Equal(t, 100.0, full[0].Price)
	assert.Equal(t, 90.0, full[1].Price)
}

func TestProductsCreationOrder(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	for _, name := range []string{"keyboard", "mouse", "monitor"} {
		_, err := mem.GetOrCreateProduct(ctx, name, []string{"https://a.example/" + name}, nil, nil)
		require.NoError(t, err)
	}

	products, err := mem.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "keyboard", products[0].Name)
	assert.Equal(t, "mouse", products[1].Name)
	assert.Equal(t, "monitor", products[2].Name)
}
