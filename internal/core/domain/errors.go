package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrWalletNotConnected is returned by a signing delegate with no active session.
	ErrWalletNotConnected = errors.New("wallet not connected")
	// ErrInvalidHash is returned for a transaction hash that is not hex.
	ErrInvalidHash = errors.New("invalid transaction hash")
	// ErrDuplicateTransaction is returned when a record with the same hash exists.
	ErrDuplicateTransaction = errors.New("transaction already recorded")
)

// NetworkError is any failed ledger or delegate HTTP call: transport failure,
// non-2xx status, or an unreadable body.
type NetworkError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the remote answered 404.
func (e *NetworkError) NotFound() bool {
	return e.StatusCode == 404
}

// IsNetworkError reports whether err wraps a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// StorageWriteError is a failed write to the transaction store.
type StorageWriteError struct {
	Hash string
	Op   string
	Err  error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Hash, e.Err)
}

func (e *StorageWriteError) Unwrap() error {
	return e.Err
}

// IsStorageWriteError reports whether err wraps a *StorageWriteError.
func IsStorageWriteError(err error) bool {
	var se *StorageWriteError
	return errors.As(err, &se)
}
