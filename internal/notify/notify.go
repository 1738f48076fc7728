// Package notify delivers notifications through the outbox table.
package notify

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// Defaults used by New.
const (
	DefaultBatchSize   = 100
	DefaultMaxAttempts = 5
	DefaultInterval    = 30 * time.Second
)

// Dispatcher enqueues notification intents and drains them into the
// notifications table.
type Dispatcher struct {
	DB          *sql.DB
	BatchSize   int
	MaxAttempts int
	Interval    time.Duration
}

// New returns a dispatcher with default limits. A zero interval uses
// DefaultInterval.
func New(db *sql.DB, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Dispatcher{
		DB:          db,
		BatchSize:   DefaultBatchSize,
		MaxAttempts: DefaultMaxAttempts,
		Interval:    interval,
	}
}

// Notify records a notification intent. Failures are logged and dropped;
// a lost notification never fails the operation that caused it.
func (d *Dispatcher) Notify(ctx context.Context, n model.Notification) {
	if err := store.EnqueueNotification(ctx, d.DB, n); err != nil {
		slog.Warn("dropping notification", "username", n.Username, "type", n.Type, "error", err)
	}
}

// Drain delivers pending outbox entries and returns how many were delivered.
func (d *Dispatcher) Drain(ctx context.Context) int {
	total := 0
	for {
		entries, err := store.PendingOutbox(ctx, d.DB, d.BatchSize, d.MaxAttempts)
		if err != nil {
			slog.Error("reading notification outbox", "error", err)
			return total
		}

		delivered := 0
		for _, e := range entries {
			ok, err := store.DeliverOutbox(ctx, d.DB, e)
			if err != nil {
				slog.Warn("delivering notification", "outbox_id", e.ID, "username", e.Username, "attempt", e.Attempts+1, "error", err)
				if ferr := store.FailOutbox(ctx, d.DB, e.ID, err); ferr != nil {
					slog.Error("recording notification failure", "outbox_id", e.ID, "error", ferr)
				}
				continue
			}
			if ok {
				delivered++
			}
		}
		total += delivered

		if len(entries) < d.BatchSize || delivered == 0 || ctx.Err() != nil {
			return total
		}
	}
}

// Run drains the outbox every Interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.Drain(ctx); n > 0 {
				slog.Info("delivered notifications", "count", n)
			}
		}
	}
}
