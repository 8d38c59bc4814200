package web

import (
	"strings"
	"testing"
	"time"

	"pricewatch/pkg/analyze"
)

func TestRenderReport(t *testing.T) {
	report := &analyze.Report{
		Period:      "last 7 days",
		GeneratedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		Products: []analyze.ProductReport{
			{
				Name:         "Mechanical Keyboard",
				CurrentPrice: 80,
				MinPrice:     80,
				MaxPrice:     100,
				AvgPrice:     90,
				Trend:        analyze.TrendFalling,
				DataPoints:   3,
				Stores:       []string{"shop-a", "shop-b"},
				TargetMet:    true,
			},
		},
		Statistics: analyze.Statistics{TotalProducts: 1, TargetsMet: 1, TotalDataPoints: 3, AvgSpread: 20},
	}

	var sb strings.Builder
	if err := RenderReport(&sb, ReportContext{Title: "Price Report", Report: report}); err != nil {
		t.Fatal(err)
	}

	out := sb.String()
	for _, want := range []string{"Mechanical Keyboard", "falling", "shop-a, shop-b", "Targets met: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered report missing %q", want)
		}
	}
}

func TestRenderReportEmpty(t *testing.T) {
	report := &analyze.Report{Period: "last 7 days", GeneratedAt: time.Now()}

	var sb strings.Builder
	if err := RenderReport(&sb, ReportContext{Title: "Price Report", Report: report}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sb.String(), "No price history") {
		t.Error("expected empty-state message")
	}
}
