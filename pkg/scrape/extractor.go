package scrape

import (
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

var errNoPrice = errors.New("no usable price on page")

type Config struct {
	// Delay is the politeness pause between requests to the same domain.
	Delay     time.Duration
	Timeout   time.Duration
	UserAgent string
}

// Extractor fetches product pages and extracts price observations. Fetch is
// synchronous; one collector is shared across calls so the domain delay
// applies across a whole pass.
type Extractor struct {
	colly *colly.Collector

	mu      sync.Mutex
	current fetchState
}

type fetchState struct {
	rule   Rule
	found  bool
	result Result
	err    error
}

func NewExtractor(cfg Config) (*Extractor, error) {
	opts := []colly.CollectorOption{
		// the same URL is fetched again on every pass
		colly.AllowURLRevisit(),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}

	c := colly.NewCollector(opts...)
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}
	if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: cfg.Delay}); err != nil {
		return nil, err
	}

	x := &Extractor{colly: c}

	c.OnHTML("html", func(e *colly.HTMLElement) {
		x.extract(e)
	})
	c.OnError(func(r *colly.Response, err error) {
		x.current.err = err
	})

	return x, nil
}

// Fetch retrieves one product page. Any failure, including a page without a
// readable price, comes back as *ExtractionError.
func (x *Extractor) Fetch(pageURL string) (*Result, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, &ExtractionError{URL: pageURL, Err: err}
	}
	if u.Host == "" {
		return nil, &ExtractionError{URL: pageURL, Err: errors.New("missing host")}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.current = fetchState{rule: RuleFor(u.Host)}

	// Visit blocks until the response was handled; callbacks above fill in
	// x.current.
	if err := x.colly.Visit(pageURL); err != nil {
		return nil, &ExtractionError{URL: pageURL, Err: err}
	}
	if x.current.err != nil {
		return nil, &ExtractionError{URL: pageURL, Err: x.current.err}
	}
	if !x.current.found {
		return nil, &ExtractionError{URL: pageURL, Err: errNoPrice}
	}

	res := x.current.result
	if res.Store == "" {
		res.Store = hostKey(u.Host)
	}
	return &res, nil
}

func (x *Extractor) extract(e *colly.HTMLElement) {
	rule := x.current.rule

	var price float64
	found := false
	for _, t := range rule.Price {
		text := lookup(e, t)
		if text == "" {
			continue
		}
		p, err := ParsePrice(text)
		// zero means "no price available", keep trying other selectors
		if err != nil || p == 0 {
			continue
		}
		price = p
		found = true
		break
	}
	if !found {
		return
	}

	title := ""
	for _, t := range rule.Title {
		if text := lookup(e, t); text != "" {
			title = text
			break
		}
	}

	available := true
	pageText := strings.ToLower(e.ChildText(".availability, #availability, .stock"))
	for _, phrase := range rule.Unavailable {
		if strings.Contains(pageText, phrase) {
			available = false
			break
		}
	}

	x.current.found = true
	x.current.result = Result{
		Store:     rule.Store,
		Title:     title,
		Price:     price,
		Available: available,
	}
}

func lookup(e *colly.HTMLElement, t target) string {
	if t.attr != "" {
		return strings.TrimSpace(e.ChildAttr(t.query, t.attr))
	}
	return strings.TrimSpace(e.ChildText(t.query))
}
