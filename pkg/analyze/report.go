package analyze

import (
	"context"
	"fmt"
	"time"
)

// Report summarises price history over a window for every product that has
// observations in it.
type Report struct {
	Period      string
	GeneratedAt time.Time
	Products    []ProductReport
	Statistics  Statistics
}

type ProductReport struct {
	Name         string
	CurrentPrice float64
	MinPrice     float64
	MaxPrice     float64
	AvgPrice     float64
	PriceChange  float64
	Trend        Trend
	DataPoints   int
	Stores       []string
	TargetPrice  *float64
	TargetMet    bool
}

type Statistics struct {
	TotalProducts   int
	TargetsMet      int
	TotalDataPoints int
	AvgSpread       float64
}

// BuildReport computes per-product statistics over the last `days` days.
// Products with no observations in the window are skipped.
func (a *Analyzer) BuildReport(ctx context.Context, days int, noiseBand float64) (*Report, error) {
	report := &Report{
		Period:      fmt.Sprintf("last %d days", days),
		GeneratedAt: a.now(),
	}

	products, err := a.store.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading products: %w", err)
	}

	since := a.now().AddDate(0, 0, -days)
	totalSpread := 0.0

	for _, p := range products {
		history, err := a.store.History(ctx, p.ID, since)
		if err != nil {
			return nil, fmt.Errorf("loading history for %q: %w", p.Name, err)
		}
		if len(history) == 0 {
			continue
		}

		minPrice := history[0].Price
		maxPrice := history[0].Price
		sum := 0.0
		storeSeen := make(map[string]bool)
		var stores []string
		for _, o := range history {
			if o.Price < minPrice {
				minPrice = o.Price
			}
			if o.Price > maxPrice {
				maxPrice = o.Price
			}
			sum += o.Price
			if !storeSeen[o.Store] {
				storeSeen[o.Store] = true
				stores = append(stores, o.Store)
			}
		}

		trend, err := a.PriceTrend(ctx, p.ID, days, noiseBand)
		if err != nil {
			return nil, err
		}

		current := history[len(history)-1].Price
		pr := ProductReport{
			Name:         p.Name,
			CurrentPrice: current,
			MinPrice:     minPrice,
			MaxPrice:     maxPrice,
			AvgPrice:     sum / float64(len(history)),
			PriceChange:  maxPrice - minPrice,
			Trend:        trend,
			DataPoints:   len(history),
			Stores:       stores,
			TargetPrice:  p.TargetPrice,
			TargetMet:    p.TargetPrice != nil && current <= *p.TargetPrice,
		}
		report.Products = append(report.Products, pr)
		totalSpread += pr.PriceChange
	}

	report.Statistics.TotalProducts = len(report.Products)
	for _, pr := range report.Products {
		if pr.TargetMet {
			report.Statistics.TargetsMet++
		}
		report.Statistics.TotalDataPoints += pr.DataPoints
	}
	if len(report.Products) > 0 {
		report.Statistics.AvgSpread = totalSpread / float64(len(report.Products))
	}

	return report, nil
}
