// Package scheduler runs the publication worker: a fixed ticker that
// promotes due scheduled articles to published.
package scheduler

import (
	"context"
	"log"
	"time"
)

// Publisher performs one publication sweep. Satisfied by app.Service.
type Publisher interface {
	PublishDue(ctx context.Context, now time.Time) ([]string, error)
}

type Worker struct {
	publisher Publisher
	interval  time.Duration
}

func New(publisher Publisher, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{publisher: publisher, interval: interval}
}

// Run ticks until ctx is cancelled. Each tick is one idempotent sweep: an
// article due at any point before the tick publishes on that tick, so a
// missed tick only delays publication, never skips it. Errors are logged
// and the next tick tries again; there is no intra-tick retry.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Printf("scheduler: publication worker started, interval %s", w.interval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler: publication worker stopped")
			return
		case now := <-ticker.C:
			w.tick(ctx, now)
		}
	}
}

func (w *Worker) tick(ctx context.Context, now time.Time) {
	tickCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	ids, err := w.publisher.PublishDue(tickCtx, now)
	if err != nil {
		log.Printf("scheduler: publish sweep failed: %v", err)
		return
	}
	if len(ids) > 0 {
		log.Printf("scheduler: published %d article(s): %v", len(ids), ids)
	}
}
