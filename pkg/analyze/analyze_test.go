package analyze

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/pkg/store"
)

// fakeClock hands out strictly increasing timestamps so tests control the
// observed-at ordering and window boundaries.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newFixture(t *testing.T) (*store.Memory, *Analyzer, *fakeClock, int64) {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	mem := store.NewMemory()
	mem.Now = clock.now

	a := New(mem)
	a.now = func() time.Time { return clock.t }

	p, err := mem.GetOrCreateProduct(context.Background(), "keyboard", []string{"https://a.example/kb"}, nil, nil)
	require.NoError(t, err)

	return mem, a, clock, p.ID
}

func record(t *testing.T, mem *store.Memory, productID int64, storeName string, price float64) {
	t.Helper()
	_, err := mem.RecordObservation(context.Background(), productID, storeName, price, "https://"+storeName+"/kb", true, "")
	require.NoError(t, err)
}

func TestDetectPriceDropReportsDrop(t *testing.T) {
	mem, a, _, id := newFixture(t)
	record(t, mem, id, "shop-a", 100)
	record(t, mem, id, "shop-a", 85)

	drop, err := a.DetectPriceDrop(context.Background(), id, 0.10)
	require.NoError(t, err)
	require.NotNil(t, drop)
	assert.Equal(t, "shop-a", drop.Store)
	assert.Equal(t, 100.0, drop.PreviousPrice)
	assert.Equal(t, 85.0, drop.CurrentPrice)
	assert.InDelta(t, 15.0, drop.DropPercentage, 1e-9)
}

func TestDetectPriceDropBelowThreshold(t *testing.T) {
	mem, a, _, id := newFixture(t)
	record(t, mem, id, "shop-a", 100)
	record(t, mem, id, "shop-a", 95)

	drop, err := a.DetectPriceDrop(context.Background(), id, 0.10)
	require.NoError(t, err)
	assert.Nil(t, drop)
}

func TestDetectPriceDropNeedsTwoObservations(t *testing.T) {
	mem, a, _, id := newFixture(t)

	drop, err := a.DetectPriceDrop(context.Background(), id, 0.10)
	require.NoError(t, err)
	assert.Nil(t, drop)

	record(t, mem, id, "shop-a", 100)
	drop, err = a.DetectPriceDrop(context.Background(), id, 0.10)
	require.NoError(t, err)
	assert.Nil(t, drop)
}

func TestDetectPriceDropComparesSameStore(t *testing.T) {
	mem, a, _, id := newFixture(t)
	record(t, mem, id, "shop-a", 100)
	record(t, mem, id, "shop-b", 90)
	record(t, mem, id, "shop-a", 80)

	drop, err := a.DetectPriceDrop(context.Background(), id, 0.10)
	require.NoError(t, err)
	require.NotNil(t, drop)
	// shop-b's 90 sits between the two shop-a points and must not be used
	assert.Equal(t, "shop-a", drop.Store)
	assert.Equal(t, 100.0, drop.PreviousPrice)
	assert.InDelta(t, 20.0, drop.DropPercentage, 1e-9)
}

func TestDetectPriceDropIgnoresOtherStoreOnlyHistory(t *testing.T) {
	mem, a, _, id := newFixture(t)
	record(t, mem, id, "shop-a", 100)
	record(t, mem, id, "shop-b", 45)

	// shop-b has a single observation, so no drop even though 100 -> 45
	drop, err := a.DetectPriceDrop(context.Background(), id, 0.10)
	require.NoError(t, err)
	assert.Nil(t, drop)
}

func TestPriceTrend(t *testing.T) {
	mem, a, _, id := newFixture(t)

	trend, err := a.PriceTrend(context.Background(), id, 7, 0)
	require.NoError(t, err)
	assert.Equal(t, TrendInsufficientData, trend)

	record(t, mem, id, "shop-a", 100)
	record(t, mem, id, "shop-a", 101)

	trend, err = a.PriceTrend(context.Background(), id, 7, 0.02)
	require.NoError(t, err)
	assert.Equal(t, TrendStable, trend)

	record(t, mem, id, "shop-a", 120)
	trend, err = a.PriceTrend(context.Background(), id, 7, 0.02)
	require.NoError(t, err)
	assert.Equal(t, TrendRising, trend)
}

func TestPriceTrendFalling(t *testing.T) {
	mem, a, _, id := newFixture(t)
	record(t, mem, id, "shop-a", 120)
	record(t, mem, id, "shop-a", 100)

	trend, err := a.PriceTrend(context.Background(), id, 7, 0.02)
	require.NoError(t, err)
	assert.Equal(t, TrendFalling, trend)
}

func TestPriceTrendWindowExcludesOldObservations(t *testing.T) {
	mem, a, clock, id := newFixture(t)

	record(t, mem, id, "shop-a", 500) // will fall outside the window
	clock.t = clock.t.AddDate(0, 0, 10)
	record(t, mem, id, "shop-a", 100)
	record(t, mem, id, "shop-a", 101)

	// with only the two recent points the trend is stable, not falling
	trend, err := a.PriceTrend(context.Background(), id, 7, 0.02)
	require.NoError(t, err)
	assert.Equal(t, TrendStable, trend)
}

func TestBuildReport(t *testing.T) {
	mem, a, _, id := newFixture(t)

	target := 90.0
	_, err := mem.GetOrCreateProduct(context.Background(), "keyboard", nil, &target, nil)
	require.NoError(t, err)

	record(t, mem, id, "shop-a", 100)
	record(t, mem, id, "shop-b", 95)
	record(t, mem, id, "shop-a", 80)

	report, err := a.BuildReport(context.Background(), 7, 0.02)
	require.NoError(t, err)
	require.Len(t, report.Products, 1)

	pr := report.Products[0]
	assert.Equal(t, "keyboard", pr.Name)
	assert.Equal(t, 80.0, pr.CurrentPrice)
	assert.Equal(t, 80.0, pr.MinPrice)
	assert.Equal(t, 100.0, pr.MaxPrice)
	assert.InDelta(t, 91.666, pr.AvgPrice, 0.001)
	assert.Equal(t, 3, pr.DataPoints)
	assert.Equal(t, []string{"shop-a", "shop-b"}, pr.Stores)
	assert.True(t, pr.TargetMet)
	assert.Equal(t, TrendFalling, pr.Trend)

	assert.Equal(t, 1, report.Statistics.TotalProducts)
	assert.Equal(t, 1, report.Statistics.TargetsMet)
	assert.Equal(t, 3, report.Statistics.TotalDataPoints)
	assert.InDelta(t, 20.0, report.Statistics.AvgSpread, 1e-9)
}

func TestBuildReportSkipsProductsWithoutObservations(t *testing.T) {
	mem, a, _, _ := newFixture(t)
	_, err := mem.GetOrCreateProduct(context.Background(), "mouse", []string{"https://a.example/mouse"}, nil, nil)
	require.NoError(t, err)

	report, err := a.BuildReport(context.Background(), 7, 0)
	require.NoError(t, err)
	assert.Empty(t, report.Products)
	assert.Equal(t, 0, report.Statistics.TotalProducts)
}
