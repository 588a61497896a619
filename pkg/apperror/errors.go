package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Ledger (LEDGER) ----

func ErrLedgerUnavailable(err error) *AppError {
	return Wrap("LEDGER_001", "Ledger request failed", http.StatusBadGateway, err)
}

func ErrLedgerTxNotFound() *AppError {
	return New("LEDGER_002", "Transaction not found on ledger", http.StatusNotFound)
}

// ---- Wallet / signing delegate (WALLET) ----

func ErrWalletNotConnected() *AppError {
	return New("WALLET_001", "Wallet is not connected", http.StatusConflict)
}

func ErrTransferRejected(reason string) *AppError {
	return New("WALLET_002", fmt.Sprintf("Transfer rejected: %s", reason), http.StatusUnprocessableEntity)
}

func ErrSignerUnavailable(err error) *AppError {
	return Wrap("WALLET_003", "Signing delegate unavailable", http.StatusBadGateway, err)
}

// ---- Payment Business Logic (PAY) ----

func ErrInsufficientBalance() *AppError {
	return New("PAY_001", "Insufficient balance", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest)
}

func ErrDuplicateTransaction() *AppError {
	return New("PAY_003", "Duplicate transaction", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("PAY_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Storage (STORE) ----

func ErrStorageWrite(err error) *AppError {
	return Wrap("STORE_001", "Transaction store write failed", http.StatusInternalServerError, err)
}

func ErrStorageUnavailable(err error) *AppError {
	return Wrap("STORE_002", "Transaction store unavailable", http.StatusServiceUnavailable, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbiddenOwner() *AppError {
	return New("AUTH_005", "Token subject does not own this account", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a PAY_002-style validation error.
func Validation(message string) *AppError {
	return New("PAY_002", message, http.StatusBadRequest)
}
