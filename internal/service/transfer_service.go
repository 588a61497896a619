package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chainpay-reconciler/internal/core/domain"
	"chainpay-reconciler/internal/core/ports"
	"chainpay-reconciler/pkg/apperror"
	"chainpay-reconciler/pkg/denom"
	"chainpay-reconciler/pkg/metrics"

	"github.com/rs/zerolog"
)

// TransferServiceImpl implements ports.TransferService.
type TransferServiceImpl struct {
	ledger   ports.LedgerClient
	delegate ports.SigningDelegate
	store    ports.TransactionStore
	cache    ports.BalanceCache
	metrics  metrics.Collector
	log      zerolog.Logger
	now      func() time.Time
}

// NewTransferService creates a new TransferServiceImpl. cache and collector are optional.
func NewTransferService(
	ledger ports.LedgerClient,
	delegate ports.SigningDelegate,
	store ports.TransactionStore,
	cache ports.BalanceCache,
	collector metrics.Collector,
	log zerolog.Logger,
) *TransferServiceImpl {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &TransferServiceImpl{
		ledger:   ledger,
		delegate: delegate,
		store:    store,
		cache:    cache,
		metrics:  collector,
		log:      log,
		now:      time.Now,
	}
}

// Submit checks the sender's balance, hands the transfer to the signing
// delegate and records the broadcast transaction as pending. Nothing is
// recorded unless the delegate reports success.
func (s *TransferServiceImpl) Submit(ctx context.Context, req ports.SubmitTransferRequest) (tx *domain.Transaction, err error) {
	defer func() { s.metrics.RecordTransfer(err == nil) }()

	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}
	if strings.TrimSpace(req.Sender) == "" || strings.TrimSpace(req.Recipient) == "" {
		return nil, apperror.Validation("sender and recipient are required")
	}
	if req.Sender == req.Recipient {
		return nil, apperror.Validation("sender and recipient must differ")
	}

	baseAmount, baseDenom, err := denom.ToBase(req.Amount, req.Currency)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	currency, _ := denom.Lookup(req.Currency)

	balances, err := s.ledger.GetBalances(ctx, req.Sender)
	if err != nil {
		return nil, mapLedgerError(err)
	}
	snap := domain.BalanceSnapshot{Address: req.Sender, Balances: balances}
	if available := snap.AmountOf(baseDenom); available.LessThan(baseAmount) {
		s.log.Info().
			Str("sender", req.Sender).
			Str("required", baseAmount.String()).
			Str("available", available.String()).
			Str("denom", baseDenom).
			Msg("transfer rejected: insufficient balance")
		return nil, apperror.ErrInsufficientBalance()
	}

	result, err := s.delegate.Transfer(ctx, ports.TransferRequest{
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Amount:    baseAmount.String(),
		Denom:     baseDenom,
		Memo:      req.Note,
	})
	if err != nil {
		return nil, mapSignerError(err)
	}
	if !result.Success {
		reason := result.Error
		if reason == "" {
			reason = "delegate reported failure"
		}
		return nil, apperror.ErrTransferRejected(reason)
	}

	hash, err := domain.NormalizeHash(result.TransactionHash)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("signer returned hash %q: %w", result.TransactionHash, err))
	}

	now := s.now().UTC()
	tx = &domain.Transaction{
		Hash:      hash,
		Owner:     req.Sender,
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Currency:  currency.Display,
		Status:    domain.TransactionStatusPending,
		Height:    result.Height,
		Note:      req.Note,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Append(ctx, tx); err != nil {
		// The transfer is on chain; only the local record is missing.
		s.log.Error().Err(err).Str("hash", hash).Str("sender", req.Sender).Msg("broadcast transfer could not be recorded")
		return nil, mapStoreWriteError(err)
	}

	s.invalidate(ctx, req.Sender)
	s.invalidate(ctx, req.Recipient)

	s.log.Info().
		Str("hash", hash).
		Str("sender", req.Sender).
		Str("amount", req.Amount.String()).
		Str("currency", tx.Currency).
		Msg("transfer submitted")

	return tx, nil
}

func (s *TransferServiceImpl) invalidate(ctx context.Context, address string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, address); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn().Err(err).Str("address", address).Msg("failed to invalidate balance cache")
	}
}
