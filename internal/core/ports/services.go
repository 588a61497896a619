package ports

import (
	"context"
	"time"

	"chainpay-reconciler/internal/core/domain"

	"github.com/shopspring/decimal"
)

// TokenService handles owner-scoped JWT bearer tokens.
type TokenService interface {
	Generate(owner string, ttl time.Duration) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Owner string
}

// --- Service Ports (Business Logic) ---

// ReconcileService advances pending records toward a terminal status.
// Neither method fails as a whole; failures are reported per record.
type ReconcileService interface {
	Reconcile(ctx context.Context, owner string) domain.ReconcileReport
	ReconcileAll(ctx context.Context) []domain.ReconcileReport
}

// TransferService submits a transfer through the signing delegate and records it.
type TransferService interface {
	Submit(ctx context.Context, req SubmitTransferRequest) (*domain.Transaction, error)
}

// SubmitTransferRequest holds validated input for a transfer. Amount is in display units.
type SubmitTransferRequest struct {
	Sender    string
	Recipient string
	Amount    decimal.Decimal
	Currency  string
	Note      string
}

// LedgerService exposes chain queries to the API.
type LedgerService interface {
	Balances(ctx context.Context, address string) (*domain.BalanceSnapshot, error)
	BlockHeight(ctx context.Context) (int64, error)
	Transaction(ctx context.Context, hash string) (*domain.TxResult, error)
	History(ctx context.Context, address string, limit int) ([]domain.TransferRecord, error)
}

// TransactionQueryService reads locally recorded transfers.
type TransactionQueryService interface {
	Get(ctx context.Context, owner string, hash string) (*domain.Transaction, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}
