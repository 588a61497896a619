package ports

import (
	"context"
	"time"

	"chainpay-reconciler/internal/core/domain"
)

// TransactionStore persists locally known transfers.
// Write failures are returned as *domain.StorageWriteError.
type TransactionStore interface {
	// Append inserts a new pending record. The hash acts as the natural key.
	Append(ctx context.Context, tx *domain.Transaction) error
	// ListPending returns the owner's records whose status is pending.
	ListPending(ctx context.Context, owner string) ([]domain.Transaction, error)
	// UpdateStatus writes only the status, and only while the record is pending.
	// applied is false when the record was already terminal or missing.
	UpdateStatus(ctx context.Context, hash string, status domain.TransactionStatus) (applied bool, err error)
	// GetByHash returns nil, nil when no record exists.
	GetByHash(ctx context.Context, hash string) (*domain.Transaction, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
	// ListPendingOwners returns every owner that has at least one pending record.
	ListPendingOwners(ctx context.Context) ([]string, error)
}

// TransactionListParams holds filter + pagination for listing records.
type TransactionListParams struct {
	Owner    string
	Status   *domain.TransactionStatus
	Page     int
	PageSize int
}

// Offset returns the row offset for the requested page.
func (p TransactionListParams) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

// BalanceCache holds short-lived balance snapshots.
type BalanceCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, address string) (*domain.BalanceSnapshot, error)
	Set(ctx context.Context, snapshot *domain.BalanceSnapshot, ttl time.Duration) error
	Invalidate(ctx context.Context, address string) error
}

// ReconcileLock serialises reconciliation passes per owner.
type ReconcileLock interface {
	// Acquire returns ok=false when another pass holds the lock.
	Acquire(ctx context.Context, owner string, ttl time.Duration) (token string, ok bool, err error)
	// Release frees the lock only if token still owns it.
	Release(ctx context.Context, owner string, token string) error
}

// EventPublisher announces status changes to other services.
type EventPublisher interface {
	PublishStatusChange(ctx context.Context, change domain.StatusChange) error
}
