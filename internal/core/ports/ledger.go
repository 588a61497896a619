package ports

import (
	"context"

	"chainpay-reconciler/internal/core/domain"
)

// LedgerClient is the read-only view of the remote chain REST API.
// Every failed call returns an error wrapping *domain.NetworkError.
type LedgerClient interface {
	// GetBalances returns all coins held by address; empty (not nil) when none.
	GetBalances(ctx context.Context, address string) ([]domain.Balance, error)
	// GetTransaction looks up a broadcast transaction by hash. Not found is a NetworkError.
	GetTransaction(ctx context.Context, hash string) (*domain.TxResult, error)
	// GetBlockHeight returns the latest block height. Informational only.
	GetBlockHeight(ctx context.Context) (int64, error)
	// ListTransfers returns bank sends made by address, newest first.
	ListTransfers(ctx context.Context, address string, limit int) ([]domain.TransferRecord, error)
}

// SigningDelegate is the external wallet that signs and broadcasts transfers.
type SigningDelegate interface {
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// TransferRequest is sent to the signing delegate. Amount is in base units.
type TransferRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Denom     string `json:"denom"`
	Memo      string `json:"memo,omitempty"`
}

// TransferResult is what the signing delegate reports after broadcast.
type TransferResult struct {
	TransactionHash string `json:"transactionHash"`
	Height          int64  `json:"height"`
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
}
