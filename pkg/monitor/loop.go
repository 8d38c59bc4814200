package monitor

import (
	"context"
	"log"
	"time"
)

// RunLoop repeats passes at the given interval until ctx is cancelled.
// Passes never overlap: everything runs on this goroutine, and a tick that
// fires mid-pass is simply dropped, not queued. Anything escaping a single
// pass is logged and the loop carries on.
func (m *Monitor) RunLoop(ctx context.Context, interval time.Duration) {
	log.Printf("monitor: scheduler started, interval %s", interval)

	m.runGuarded(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("monitor: scheduler stopping")
			return
		case <-ticker.C:
			m.runGuarded(ctx)
		}
	}
}

func (m *Monitor) runGuarded(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.state = StateFailed
			log.Printf("monitor: pass panicked: %v", r)
		}
	}()

	if _, err := m.RunOnce(ctx); err != nil {
		log.Printf("monitor: pass finished with error: %v", err)
	}
}
