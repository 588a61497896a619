package service

import (
	"errors"

	"chainpay-reconciler/internal/core/domain"
	"chainpay-reconciler/pkg/apperror"
)

// mapLedgerError translates ledger client failures for the HTTP boundary.
// A 404 here means the endpoint itself is missing, so it is an outage too.
func mapLedgerError(err error) error {
	if domain.IsNetworkError(err) {
		return apperror.ErrLedgerUnavailable(err)
	}
	return apperror.InternalError(err)
}

// mapTxLookupError is mapLedgerError for transaction-by-hash lookups, where
// a 404 means the ledger has no such transaction.
func mapTxLookupError(err error) error {
	var ne *domain.NetworkError
	if errors.As(err, &ne) && ne.NotFound() {
		return apperror.ErrLedgerTxNotFound()
	}
	return mapLedgerError(err)
}

// mapSignerError translates signing delegate failures.
func mapSignerError(err error) error {
	switch {
	case errors.Is(err, domain.ErrWalletNotConnected):
		return apperror.ErrWalletNotConnected()
	case domain.IsNetworkError(err):
		return apperror.ErrSignerUnavailable(err)
	}
	return apperror.InternalError(err)
}

// mapStoreWriteError translates transaction store write failures.
func mapStoreWriteError(err error) error {
	if errors.Is(err, domain.ErrDuplicateTransaction) {
		return apperror.ErrDuplicateTransaction()
	}
	return apperror.ErrStorageWrite(err)
}
