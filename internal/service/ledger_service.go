package service

import (
	"context"
	"strings"
	"time"

	"chainpay-reconciler/internal/core/domain"
	"chainpay-reconciler/internal/core/ports"
	"chainpay-reconciler/pkg/apperror"

	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	ledger   ports.LedgerClient
	cache    ports.BalanceCache
	cacheTTL time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewLedgerService creates a new LedgerServiceImpl. A nil cache or zero TTL
// disables balance caching.
func NewLedgerService(ledger ports.LedgerClient, cache ports.BalanceCache, cacheTTL time.Duration, log zerolog.Logger) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		ledger:   ledger,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
		now:      time.Now,
	}
}

// Balances returns the address's balances, served from cache when fresh.
func (s *LedgerServiceImpl) Balances(ctx context.Context, address string) (*domain.BalanceSnapshot, error) {
	caching := s.cache != nil && s.cacheTTL > 0

	if caching {
		snap, err := s.cache.Get(ctx, address)
		if err != nil {
			s.log.Warn().Err(err).Str("address", address).Msg("balance cache read failed, querying ledger")
		}
		if snap != nil {
			return snap, nil
		}
	}

	balances, err := s.ledger.GetBalances(ctx, address)
	if err != nil {
		return nil, mapLedgerError(err)
	}
	snap := &domain.BalanceSnapshot{
		Address:   address,
		Balances:  balances,
		FetchedAt: s.now().UTC(),
	}

	if caching {
		if err := s.cache.Set(ctx, snap, s.cacheTTL); err != nil {
			s.log.Warn().Err(err).Str("address", address).Msg("balance cache write failed")
		}
	}
	return snap, nil
}

// BlockHeight returns the latest ledger height.
func (s *LedgerServiceImpl) BlockHeight(ctx context.Context) (int64, error) {
	h, err := s.ledger.GetBlockHeight(ctx)
	if err != nil {
		return 0, mapLedgerError(err)
	}
	return h, nil
}

// Transaction looks up a transaction on the ledger by hash.
func (s *LedgerServiceImpl) Transaction(ctx context.Context, hash string) (*domain.TxResult, error) {
	normalized, err := domain.NormalizeHash(hash)
	if err != nil {
		return nil, apperror.Validation("invalid transaction hash")
	}
	res, err := s.ledger.GetTransaction(ctx, normalized)
	if err != nil {
		return nil, mapTxLookupError(err)
	}
	return res, nil
}

// History returns the address's recent outgoing bank sends.
func (s *LedgerServiceImpl) History(ctx context.Context, address string, limit int) ([]domain.TransferRecord, error) {
	if strings.TrimSpace(address) == "" {
		return nil, apperror.Validation("address is required")
	}
	records, err := s.ledger.ListTransfers(ctx, address, limit)
	if err != nil {
		return nil, mapLedgerError(err)
	}
	return records, nil
}
