package service

import (
	"context"
	"errors"
	"time"

	"chainpay-reconciler/internal/core/domain"
	"chainpay-reconciler/internal/core/ports"
	"chainpay-reconciler/pkg/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ReconcileOptions tunes a reconciliation pass.
type ReconcileOptions struct {
	Concurrency   int           // max in-flight ledger lookups per pass
	LookupTimeout time.Duration // per lookup; 0 = caller's context only
	LockTTL       time.Duration
	StaleAfter    time.Duration // 0 disables stale reporting
}

const defaultReconcileConcurrency = 8

// ReconcileServiceImpl implements ports.ReconcileService.
type ReconcileServiceImpl struct {
	store   ports.TransactionStore
	ledger  ports.LedgerClient
	lock    ports.ReconcileLock
	events  ports.EventPublisher
	metrics metrics.Collector
	opts    ReconcileOptions
	log     zerolog.Logger
	now     func() time.Time
}

// NewReconcileService creates a new ReconcileServiceImpl. lock, events and
// collector are optional.
func NewReconcileService(
	store ports.TransactionStore,
	ledger ports.LedgerClient,
	lock ports.ReconcileLock,
	events ports.EventPublisher,
	collector metrics.Collector,
	opts ReconcileOptions,
	log zerolog.Logger,
) *ReconcileServiceImpl {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultReconcileConcurrency
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &ReconcileServiceImpl{
		store:   store,
		ledger:  ledger,
		lock:    lock,
		events:  events,
		metrics: collector,
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

type lookupResult struct {
	result *domain.TxResult
	err    error
}

// Reconcile advances the owner's pending records toward a terminal status.
// All ledger lookups finish before the first write. The pass never fails as
// a whole: per-record problems are collected in the report.
func (s *ReconcileServiceImpl) Reconcile(ctx context.Context, owner string) (report domain.ReconcileReport) {
	start := s.now()
	report = domain.NewReconcileReport(owner)
	log := s.log.With().Str("owner", owner).Logger()

	defer func() {
		report.Duration = s.now().Sub(start)
		s.metrics.RecordReconcilePass(report.Skipped, report.Duration)
	}()

	if s.lock != nil {
		token, ok, err := s.lock.Acquire(ctx, owner, s.opts.LockTTL)
		switch {
		case err != nil:
			// UpdateStatus only moves pending records, so running unlocked is safe.
			log.Warn().Err(err).Msg("reconcile lock unavailable, continuing unlocked")
		case !ok:
			log.Debug().Msg("reconcile already running for owner, skipping")
			report.Skipped = true
			return report
		default:
			defer func() {
				if err := s.lock.Release(context.WithoutCancel(ctx), owner, token); err != nil {
					log.Warn().Err(err).Msg("failed to release reconcile lock")
				}
			}()
		}
	}

	pending, err := s.store.ListPending(ctx, owner)
	if err != nil {
		log.Error().Err(err).Msg("failed to list pending transactions")
		report.ListErr = err
		return report
	}
	report.Scanned = len(pending)
	if len(pending) == 0 {
		return report
	}

	results := s.lookupAll(ctx, pending)

	now := s.now()
	for i := range pending {
		s.apply(ctx, &report, &pending[i], results[i], now, log)
	}

	s.metrics.RecordReconcileOutcome(metrics.OutcomeConfirmed, report.Confirmed)
	s.metrics.RecordReconcileOutcome(metrics.OutcomeFailed, report.Failed)
	s.metrics.RecordReconcileOutcome(metrics.OutcomePending, report.StillPending)
	s.metrics.RecordReconcileOutcome(metrics.OutcomeUnchanged, report.Unchanged)
	s.metrics.RecordReconcileOutcome(metrics.OutcomeLookupError, len(report.LookupErrors))
	s.metrics.RecordReconcileOutcome(metrics.OutcomeWriteError, len(report.WriteErrors))

	log.Info().
		Int("scanned", report.Scanned).
		Int("confirmed", report.Confirmed).
		Int("failed", report.Failed).
		Int("still_pending", report.StillPending).
		Int("lookup_errors", len(report.LookupErrors)).
		Int("write_errors", len(report.WriteErrors)).
		Int("stale", len(report.Stale)).
		Msg("reconcile pass finished")

	return report
}

// lookupAll queries the ledger for every record with bounded concurrency.
// Results are indexed like pending.
func (s *ReconcileServiceImpl) lookupAll(ctx context.Context, pending []domain.Transaction) []lookupResult {
	results := make([]lookupResult, len(pending))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i := range pending {
		g.Go(func() error {
			lctx := ctx
			if s.opts.LookupTimeout > 0 {
				var cancel context.CancelFunc
				lctx, cancel = context.WithTimeout(ctx, s.opts.LookupTimeout)
				defer cancel()
			}
			res, err := s.ledger.GetTransaction(lctx, pending[i].Hash)
			results[i] = lookupResult{result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *ReconcileServiceImpl) apply(ctx context.Context, report *domain.ReconcileReport, tx *domain.Transaction, lr lookupResult, now time.Time, log zerolog.Logger) {
	if lr.err != nil {
		report.LookupErrors[tx.Hash] = lr.err
		log.Debug().Err(lr.err).Str("hash", tx.Hash).Msg("ledger lookup failed, record stays pending")
		s.flagStale(report, tx, now, log)
		return
	}

	next, decided := lr.result.Outcome()
	if !decided {
		report.StillPending++
		s.flagStale(report, tx, now, log)
		return
	}
	if next == tx.Status {
		report.Unchanged++
		return
	}

	applied, err := s.store.UpdateStatus(ctx, tx.Hash, next)
	if err != nil {
		var swe *domain.StorageWriteError
		if !errors.As(err, &swe) {
			swe = &domain.StorageWriteError{Hash: tx.Hash, Op: "update_status", Err: err}
		}
		report.WriteErrors = append(report.WriteErrors, swe)
		s.metrics.RecordStorageWriteError(swe.Op)
		log.Error().Err(err).Str("hash", tx.Hash).Msg("failed to write reconciled status")
		s.flagStale(report, tx, now, log)
		return
	}
	if !applied {
		// Another pass finalised it first.
		report.Unchanged++
		return
	}

	switch next {
	case domain.TransactionStatusConfirmed:
		report.Confirmed++
	case domain.TransactionStatusFailed:
		report.Failed++
	}

	if s.events == nil {
		return
	}
	change := domain.StatusChange{
		Hash:      tx.Hash,
		Owner:     tx.Owner,
		From:      tx.Status,
		To:        next,
		Height:    lr.result.Height,
		ChangedAt: now,
	}
	if err := s.events.PublishStatusChange(ctx, change); err != nil {
		log.Warn().Err(err).Str("hash", tx.Hash).Msg("failed to publish status change")
	}
}

// flagStale records tx when it leaves the pass still pending and has waited
// past the stale threshold.
func (s *ReconcileServiceImpl) flagStale(report *domain.ReconcileReport, tx *domain.Transaction, now time.Time, log zerolog.Logger) {
	if !tx.IsStale(now, s.opts.StaleAfter) {
		return
	}
	report.Stale = append(report.Stale, tx.Hash)
	log.Warn().
		Str("hash", tx.Hash).
		Time("created_at", tx.CreatedAt).
		Msg("transaction pending beyond stale threshold")
}

// ReconcileAll runs a pass for every owner that has pending records. The
// stale gauge is set once per complete sweep from the sum over all owners.
func (s *ReconcileServiceImpl) ReconcileAll(ctx context.Context) []domain.ReconcileReport {
	owners, err := s.store.ListPendingOwners(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list owners with pending transactions")
		report := domain.NewReconcileReport("")
		report.ListErr = err
		return []domain.ReconcileReport{report}
	}

	reports := make([]domain.ReconcileReport, 0, len(owners))
	stale := 0
	for _, owner := range owners {
		if ctx.Err() != nil {
			break
		}
		report := s.Reconcile(ctx, owner)
		stale += len(report.Stale)
		reports = append(reports, report)
	}
	if ctx.Err() == nil {
		s.metrics.RecordStalePending(stale)
	}
	return reports
}
