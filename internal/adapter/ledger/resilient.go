package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chainpay-reconciler/config"
	"chainpay-reconciler/internal/core/domain"
	"chainpay-reconciler/internal/core/ports"
	"chainpay-reconciler/pkg/metrics"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"
)

const breakerName = "ledger"

// ResilientClient wraps a ports.LedgerClient with a per-call timeout, a
// circuit breaker and latency metrics. Concurrent lookups of the same hash
// share one upstream request.
type ResilientClient struct {
	next    ports.LedgerClient
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	group   singleflight.Group
	metrics metrics.Collector
	log     zerolog.Logger
}

// NewResilientClient creates the decorator. A nil collector disables metrics.
func NewResilientClient(next ports.LedgerClient, cfg config.LedgerConfig, collector metrics.Collector, log zerolog.Logger) *ResilientClient {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	rc := &ResilientClient{
		next:    next,
		timeout: cfg.Timeout,
		metrics: collector,
		log:     log,
	}

	trip := cfg.Breaker.ConsecutiveFailures
	if trip == 0 {
		trip = 5
	}

	rc.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.Breaker.MaxRequests,
		Interval:    cfg.Breaker.Interval,
		Timeout:     cfg.Breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trip
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")

			var state metrics.CircuitState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.CircuitClosed
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			}
			rc.metrics.RecordCircuitState(name, state)
		},
	})

	log.Info().
		Dur("timeout", cfg.Timeout).
		Uint32("consecutive_failures", trip).
		Dur("open_timeout", cfg.Breaker.Timeout).
		Msg("resilient ledger client initialized")

	return rc
}

// breakerSuccess keeps answers that prove the ledger is reachable from
// counting against it: a 404 for an unknown hash, or a caller cancelling.
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var ne *domain.NetworkError
	return errors.As(err, &ne) && ne.NotFound()
}

// State exposes the breaker state for health reporting.
func (r *ResilientClient) State() gobreaker.State {
	return r.cb.State()
}

// Ping reports the ledger unhealthy while the breaker is open. It never
// calls the ledger itself.
func (r *ResilientClient) Ping(_ context.Context) error {
	if st := r.cb.State(); st == gobreaker.StateOpen {
		return fmt.Errorf("circuit breaker %s", st)
	}
	return nil
}

// Name returns the dependency name.
func (r *ResilientClient) Name() string {
	return breakerName
}

// GetBalances queries balances through the breaker and timeout.
func (r *ResilientClient) GetBalances(ctx context.Context, address string) ([]domain.Balance, error) {
	return guarded(r, ctx, "get_balances", func(ctx context.Context) ([]domain.Balance, error) {
		return r.next.GetBalances(ctx, address)
	})
}

// GetTransaction looks up a hash through the breaker. Concurrent lookups of
// the same hash share one ledger call.
func (r *ResilientClient) GetTransaction(ctx context.Context, hash string) (*domain.TxResult, error) {
	v, err, _ := r.group.Do(hash, func() (any, error) {
		return guarded(r, ctx, "get_transaction", func(ctx context.Context) (*domain.TxResult, error) {
			return r.next.GetTransaction(ctx, hash)
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.TxResult), nil
}

// GetBlockHeight returns the latest height through the breaker.
func (r *ResilientClient) GetBlockHeight(ctx context.Context) (int64, error) {
	return guarded(r, ctx, "get_block_height", r.next.GetBlockHeight)
}

// ListTransfers lists outgoing sends through the breaker and timeout.
func (r *ResilientClient) ListTransfers(ctx context.Context, address string, limit int) ([]domain.TransferRecord, error) {
	return guarded(r, ctx, "list_transfers", func(ctx context.Context) ([]domain.TransferRecord, error) {
		return r.next.ListTransfers(ctx, address, limit)
	})
}

func guarded[T any](r *ResilientClient, ctx context.Context, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var zero T
	result, err := r.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})

	duration := time.Since(start)
	r.metrics.RecordLedgerCall(op, err == nil, duration)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			r.log.Warn().Str("op", op).Msg("circuit breaker open - request rejected")
			return zero, &domain.NetworkError{Op: op, URL: breakerName, Err: err}
		}
		if ctx.Err() == context.DeadlineExceeded && !domain.IsNetworkError(err) {
			return zero, &domain.NetworkError{Op: op, URL: breakerName, Err: err}
		}
		return zero, err
	}
	return result.(T), nil
}
