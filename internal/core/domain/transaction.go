package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus represents the lifecycle state of a locally recorded transfer.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusConfirmed, TransactionStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true for confirmed and failed.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusConfirmed || s == TransactionStatusFailed
}

// CanTransitionTo enforces pending -> confirmed|failed. Terminal states never move.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return s == TransactionStatusPending && next.IsTerminal()
}

// Transaction is a locally known transfer. Hash is the record key.
type Transaction struct {
	Hash      string            `json:"hash"`
	Owner     string            `json:"owner"`
	Sender    string            `json:"sender"`
	Recipient string            `json:"recipient"`
	Amount    decimal.Decimal   `json:"amount"` // display units, e.g. 1.5 XION
	Currency  string            `json:"currency"`
	Status    TransactionStatus `json:"status"`
	Height    int64             `json:"height,omitempty"`
	Note      string            `json:"note,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// IsTerminal returns true if the transaction reached a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// InitPending prepares a record for insertion: it always starts pending and
// missing timestamps default to now.
func (t *Transaction) InitPending(now time.Time) {
	t.Status = TransactionStatusPending
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
}

// IsStale reports whether a pending record has waited longer than maxAge.
// A zero maxAge disables staleness.
func (t *Transaction) IsStale(now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 || t.Status != TransactionStatusPending {
		return false
	}
	return now.Sub(t.CreatedAt) > maxAge
}

// StatusChange is emitted when reconciliation moves a record to a terminal state.
type StatusChange struct {
	Hash      string            `json:"hash"`
	Owner     string            `json:"owner"`
	From      TransactionStatus `json:"from"`
	To        TransactionStatus `json:"to"`
	Height    int64             `json:"height,omitempty"`
	ChangedAt time.Time         `json:"changed_at"`
}
