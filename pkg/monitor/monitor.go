package monitor

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"pricewatch/pkg/alert"
	"pricewatch/pkg/analyze"
	"pricewatch/pkg/config"
	"pricewatch/pkg/scrape"
	"pricewatch/pkg/store"
)

// PriceFetcher is the extraction capability the monitor consumes. The real
// implementation is *scrape.Extractor.
type PriceFetcher interface {
	Fetch(url string) (*scrape.Result, error)
}

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// URLResult is the outcome of one URL attempt within a pass.
type URLResult struct {
	Product string
	Store   string
	URL     string
	Status  string
	Price   float64
}

// PassResult aggregates one full pass. Success + Errors always equals Total:
// every URL attempt lands in Results, one way or the other.
type PassResult struct {
	ID        uuid.UUID
	Success   int
	Errors    int
	Total     int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Results   []URLResult
}

func (p *PassResult) add(r URLResult) {
	p.Results = append(p.Results, r)
	p.Total++
	if r.Status == StatusSuccess {
		p.Success++
	} else {
		p.Errors++
	}
}

// Monitor drives scraping passes over the configured products: extraction,
// history writes, then alert evaluation.
type Monitor struct {
	cfg      *config.Config
	store    store.Store
	fetcher  PriceFetcher
	analyzer *analyze.Analyzer
	sinks    []alert.Sink

	state State
}

func New(cfg *config.Config, st store.Store, fetcher PriceFetcher, sinks ...alert.Sink) *Monitor {
	return &Monitor{
		cfg:      cfg,
		store:    st,
		fetcher:  fetcher,
		analyzer: analyze.New(st),
		sinks:    sinks,
		state:    StateIdle,
	}
}

func (m *Monitor) State() State { return m.state }

// RunOnce executes one pass: every URL of every configured product is
// attempted exactly once. A failing URL or product never aborts the pass;
// partial completion is the normal case.
func (m *Monitor) RunOnce(ctx context.Context) (*PassResult, error) {
	m.state = StateRunning

	res := &PassResult{ID: uuid.New(), StartTime: time.Now()}
	log.Printf("monitor: pass %s starting, %d products", res.ID, len(m.cfg.Products))

	for _, pc := range m.cfg.Products {
		m.scrapeProduct(ctx, pc, res)
	}

	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(res.StartTime)
	log.Printf("monitor: pass %s scraped: %d ok, %d errors in %s", res.ID, res.Success, res.Errors, res.Duration)

	if err := m.evaluateAlerts(ctx); err != nil {
		m.state = StateFailed
		return res, err
	}

	m.state = StateCompleted
	return res, nil
}

func (m *Monitor) scrapeProduct(ctx context.Context, pc config.ProductConfig, res *PassResult) {
	prod, err := m.store.GetOrCreateProduct(ctx, pc.Name, pc.URLs, pc.TargetPrice, pc.AlertThreshold)
	if err != nil {
		log.Printf("monitor: product %q unusable: %v", pc.Name, err)
		for _, u := range pc.URLs {
			res.add(URLResult{Product: pc.Name, URL: u, Status: StatusError})
		}
		return
	}

	for i, u := range pc.URLs {
		r, err := m.fetcher.Fetch(u)
		if err != nil {
			log.Printf("monitor: %q: %v", pc.Name, err)
			res.add(URLResult{Product: prod.Name, URL: u, Status: StatusError})
			continue
		}
		if r.Price <= 0 {
			log.Printf("monitor: %q: no usable price at %s", pc.Name, u)
			res.add(URLResult{Product: prod.Name, Store: r.Store, URL: u, Status: StatusError})
			continue
		}

		title := r.Title
		if title == "" {
			title = prod.Name
		}
		obs, err := m.store.RecordObservation(ctx, prod.ID, r.Store, r.Price, u, r.Available, title)
		if err != nil {
			log.Printf("monitor: %q: recording %s failed: %v", pc.Name, u, err)
			res.add(URLResult{Product: prod.Name, Store: r.Store, URL: u, Status: StatusError})
			if errors.Is(err, store.ErrNotFound) {
				// nothing else for this product can be written either
				for _, rest := range pc.URLs[i+1:] {
					res.add(URLResult{Product: prod.Name, URL: rest, Status: StatusError})
				}
				return
			}
			continue
		}

		log.Printf("monitor: %q at %s: %.2f", prod.Name, obs.Store, obs.Price)
		res.add(URLResult{Product: prod.Name, Store: obs.Store, URL: u, Status: StatusSuccess, Price: obs.Price})
	}
}

// evaluateAlerts runs the target-met and price-drop checks for every product
// with history. The two checks are independent; both can fire in the same
// pass. Each event goes to every sink once; delivery failures are logged and
// never retried within the pass.
func (m *Monitor) evaluateAlerts(ctx context.Context) error {
	products, err := m.store.Products(ctx)
	if err != nil {
		return err
	}

	for _, p := range products {
		latest, err := m.store.LatestObservations(ctx, p.ID)
		if err != nil {
			log.Printf("monitor: alerts for %q skipped: %v", p.Name, err)
			continue
		}
		if len(latest) == 0 {
			continue
		}

		var events []alert.Event

		if p.TargetPrice != nil {
			best := latest[0]
			for _, o := range latest[1:] {
				if o.Price < best.Price {
					best = o
				}
			}
			if best.Price <= *p.TargetPrice {
				events = append(events, alert.Event{
					Kind:           alert.KindTargetMet,
					Product:        p.Name,
					Store:          best.Store,
					URL:            best.URL,
					CurrentPrice:   best.Price,
					ReferencePrice: *p.TargetPrice,
					Magnitude:      *p.TargetPrice - best.Price,
					At:             time.Now(),
				})
			}
		}

		drop, err := m.analyzer.DetectPriceDrop(ctx, p.ID, p.AlertThreshold)
		if err != nil {
			log.Printf("monitor: drop detection for %q failed: %v", p.Name, err)
		} else if drop != nil {
			events = append(events, alert.Event{
				Kind:           alert.KindPriceDrop,
				Product:        p.Name,
				Store:          drop.Store,
				URL:            drop.URL,
				CurrentPrice:   drop.CurrentPrice,
				ReferencePrice: drop.PreviousPrice,
				Magnitude:      drop.DropPercentage,
				At:             time.Now(),
			})
		}

		for _, e := range events {
			for _, s := range m.sinks {
				if err := s.Deliver(ctx, e); err != nil {
					log.Printf("monitor: alert delivery failed for %q: %v", p.Name, err)
				}
			}
		}
	}
	return nil
}
