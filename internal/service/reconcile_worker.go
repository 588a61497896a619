package service

import (
	"context"
	"time"

	"chainpay-reconciler/internal/core/ports"

	"github.com/rs/zerolog"
)

// ReconcileWorker periodically reconciles every owner with pending records.
type ReconcileWorker struct {
	svc      ports.ReconcileService
	interval time.Duration
	log      zerolog.Logger
}

// NewReconcileWorker creates a worker. An interval of zero disables it.
func NewReconcileWorker(svc ports.ReconcileService, interval time.Duration, log zerolog.Logger) *ReconcileWorker {
	return &ReconcileWorker{svc: svc, interval: interval, log: log}
}

// Run blocks until ctx is cancelled.
func (w *ReconcileWorker) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Info().Msg("reconcile worker disabled")
		return
	}

	w.log.Info().Dur("interval", w.interval).Msg("reconcile worker started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("reconcile worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *ReconcileWorker) tick(ctx context.Context) {
	reports := w.svc.ReconcileAll(ctx)

	updated, degraded := 0, 0
	for i := range reports {
		updated += reports[i].Updated()
		if reports[i].Degraded() {
			degraded++
		}
	}
	w.log.Debug().
		Int("owners", len(reports)).
		Int("updated", updated).
		Int("degraded", degraded).
		Msg("scheduled reconcile finished")
}
