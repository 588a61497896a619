package service

import (
	"context"
	"fmt"

	"chainpay-reconciler/internal/core/domain"
	"chainpay-reconciler/internal/core/ports"
	"chainpay-reconciler/pkg/apperror"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TransactionQueryServiceImpl implements ports.TransactionQueryService.
type TransactionQueryServiceImpl struct {
	store ports.TransactionStore
}

// NewTransactionQueryService creates a new TransactionQueryServiceImpl.
func NewTransactionQueryService(store ports.TransactionStore) *TransactionQueryServiceImpl {
	return &TransactionQueryServiceImpl{store: store}
}

// Get returns one of the owner's records. Records of other owners are
// reported as not found.
func (s *TransactionQueryServiceImpl) Get(ctx context.Context, owner string, hash string) (*domain.Transaction, error) {
	normalized, err := domain.NormalizeHash(hash)
	if err != nil {
		return nil, apperror.Validation("invalid transaction hash")
	}

	tx, err := s.store.GetByHash(ctx, normalized)
	if err != nil {
		return nil, apperror.ErrStorageUnavailable(fmt.Errorf("get transaction: %w", err))
	}
	if tx == nil || tx.Owner != owner {
		return nil, apperror.ErrNotFound("transaction")
	}
	return tx, nil
}

// List pages through records, clamping the page size.
func (s *TransactionQueryServiceImpl) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	params.PageSize = min(params.PageSize, maxPageSize)
	if params.Status != nil && !params.Status.Valid() {
		return nil, 0, apperror.Validation(fmt.Sprintf("unknown status %q", *params.Status))
	}

	txns, total, err := s.store.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrStorageUnavailable(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}
