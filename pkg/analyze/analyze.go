package analyze

import (
	"context"
	"fmt"
	"time"

	"pricewatch/pkg/store"
)

// Trend is the coarse direction of a product's price over a window.
type Trend string

const (
	TrendRising           Trend = "rising"
	TrendFalling          Trend = "falling"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
)

// DefaultNoiseBand is the relative change below which a first-to-last price
// move counts as stable.
const DefaultNoiseBand = 0.02

// Drop describes a detected price drop at one store.
type Drop struct {
	Store          string
	URL            string
	PreviousPrice  float64
	CurrentPrice   float64
	DropPercentage float64
}

// Analyzer runs read-only computations over stored price history. Given the
// same history its methods always return the same answers.
type Analyzer struct {
	store store.Store

	// now bounds history windows; swapped out in tests.
	now func() time.Time
}

func New(s store.Store) *Analyzer {
	return &Analyzer{store: s, now: time.Now}
}

// DetectPriceDrop compares the most recent observation against the previous
// observation recorded for the same store. It reports a drop only when
// (previous - current) / previous >= threshold and previous > 0; nil when no
// drop, or when that store has fewer than two observations.
func (a *Analyzer) DetectPriceDrop(ctx context.Context, productID int64, threshold float64) (*Drop, error) {
	history, err := a.store.History(ctx, productID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	if len(history) < 2 {
		return nil, nil
	}

	current := history[len(history)-1]
	var previous *store.Observation
	for i := len(history) - 2; i >= 0; i-- {
		if history[i].Store == current.Store {
			previous = &history[i]
			break
		}
	}
	if previous == nil || previous.Price <= 0 {
		return nil, nil
	}

	drop := (previous.Price - current.Price) / previous.Price
	if drop < threshold {
		return nil, nil
	}
	return &Drop{
		Store:          current.Store,
		URL:            current.URL,
		PreviousPrice:  previous.Price,
		CurrentPrice:   current.Price,
		DropPercentage: drop * 100,
	}, nil
}

// PriceTrend classifies the price direction over the last `days` days using
// the window's first-to-last comparison. noiseBand is the relative change
// treated as noise; pass <= 0 for the default.
func (a *Analyzer) PriceTrend(ctx context.Context, productID int64, days int, noiseBand float64) (Trend, error) {
	if noiseBand <= 0 {
		noiseBand = DefaultNoiseBand
	}

	since := a.now().AddDate(0, 0, -days)
	history, err := a.store.History(ctx, productID, since)
	if err != nil {
		return "", fmt.Errorf("loading history: %w", err)
	}
	if len(history) < 2 {
		return TrendInsufficientData, nil
	}

	first := history[0].Price
	last := history[len(history)-1].Price
	if first <= 0 {
		return TrendStable, nil
	}

	change := (last - first) / first
	switch {
	case change > noiseBand:
		return TrendRising, nil
	case change < -noiseBand:
		return TrendFalling, nil
	default:
		return TrendStable, nil
	}
}
