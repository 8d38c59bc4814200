package alert

import (
	"context"
	"log"
	"time"
)

type Kind string

const (
	KindTargetMet Kind = "target_met"
	KindPriceDrop Kind = "price_drop"
)

// Event is one alert decision made during a pass. Events are not persisted;
// each one is handed to every sink exactly once per pass.
type Event struct {
	Kind           Kind      `json:"kind"`
	Product        string    `json:"product"`
	Store          string    `json:"store"`
	URL            string    `json:"url"`
	CurrentPrice   float64   `json:"current_price"`
	ReferencePrice float64   `json:"reference_price"`
	// Magnitude is the saved amount for target_met and the drop percentage
	// for price_drop.
	Magnitude float64   `json:"magnitude"`
	At        time.Time `json:"at"`
}

// Sink delivers alert events somewhere. Delivery failures are the caller's
// problem to log; they are never retried within a pass.
type Sink interface {
	Deliver(ctx context.Context, e Event) error
}

// LogSink writes alerts to the process log.
type LogSink struct{}

func (LogSink) Deliver(_ context.Context, e Event) error {
	switch e.Kind {
	case KindPriceDrop:
		log.Printf("ALERT %s: %s at %s dropped %.1f%% (%.2f -> %.2f) %s",
			e.Kind, e.Product, e.Store, e.Magnitude, e.ReferencePrice, e.CurrentPrice, e.URL)
	default:
		log.Printf("ALERT %s: %s at %s is %.2f (target %.2f, saving %.2f) %s",
			e.Kind, e.Product, e.Store, e.CurrentPrice, e.ReferencePrice, e.Magnitude, e.URL)
	}
	return nil
}
