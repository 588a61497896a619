package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is one coin of an account balance, in base units (e.g. uxion).
type Balance struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

// BalanceSnapshot reflects the last successful balance query for an address.
type BalanceSnapshot struct {
	Address   string    `json:"address"`
	Balances  []Balance `json:"balances"`
	FetchedAt time.Time `json:"fetched_at"`
}

// AmountOf returns the base-unit amount held in denom, or zero.
func (s *BalanceSnapshot) AmountOf(denom string) decimal.Decimal {
	for _, b := range s.Balances {
		if b.Denom != denom {
			continue
		}
		v, err := decimal.NewFromString(b.Amount)
		if err != nil {
			return decimal.Zero
		}
		return v
	}
	return decimal.Zero
}

// TxResult is the ledger's view of a broadcast transaction.
// Code is nil when the ledger response carried no result code.
type TxResult struct {
	Hash      string    `json:"hash"`
	Height    int64     `json:"height"`
	Code      *uint32   `json:"code,omitempty"`
	Codespace string    `json:"codespace,omitempty"`
	RawLog    string    `json:"raw_log,omitempty"`
	GasWanted int64     `json:"gas_wanted"`
	GasUsed   int64     `json:"gas_used"`
	Timestamp time.Time `json:"timestamp"`
}

// Outcome maps the result code onto a record status.
// decided is false when no code is present and the record must stay pending.
func (r *TxResult) Outcome() (status TransactionStatus, decided bool) {
	if r == nil || r.Code == nil {
		return TransactionStatusPending, false
	}
	if *r.Code == 0 {
		return TransactionStatusConfirmed, true
	}
	return TransactionStatusFailed, true
}

// TransferRecord is a bank send found in an address's on-chain history.
type TransferRecord struct {
	Height    int64           `json:"height"`
	Hash      string          `json:"hash"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Denom     string          `json:"denom"`
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
}
