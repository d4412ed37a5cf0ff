package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// OverdueRefresher flags invoices whose due date has passed.
type OverdueRefresher interface {
	RefreshOverdue(ctx context.Context, now time.Time) (int, error)
}

// OverdueSweeper periodically derives the overdue status of unpaid invoices.
type OverdueSweeper struct {
	refresher OverdueRefresher
	interval  time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

func NewOverdueSweeper(refresher OverdueRefresher, interval time.Duration, log zerolog.Logger) *OverdueSweeper {
	return &OverdueSweeper{
		refresher: refresher,
		interval:  interval,
		log:       log.With().Str("component", "overdue_sweeper").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// A non-positive interval disables the sweeper.
func (w *OverdueSweeper) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Info().Msg("overdue sweeper disabled")
		return
	}

	w.sweep(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *OverdueSweeper) sweep(ctx context.Context) {
	changed, err := w.refresher.RefreshOverdue(ctx, w.now())
	if err != nil {
		if ctx.Err() == nil {
			w.log.Error().Err(err).Int("changed", changed).Msg("overdue sweep failed")
		}
		return
	}
	if changed > 0 {
		w.log.Info().Int("changed", changed).Msg("invoices flagged overdue")
	}
}
