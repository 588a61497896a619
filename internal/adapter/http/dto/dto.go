package dto

// TransferRequest is the request body for POST /api/v1/transfers.
// The sender is the authenticated owner.
type TransferRequest struct {
	Recipient string `json:"recipient" binding:"required,bech32_addr"`
	Amount    string `json:"amount" binding:"required,decimal_amount"`
	Currency  string `json:"currency" binding:"required,oneof=XION USDC xion usdc"`
	Note      string `json:"note,omitempty" binding:"max=256"`
}

// TransactionResponse is a stored transaction record.
type TransactionResponse struct {
	Hash      string `json:"hash"`
	Owner     string `json:"owner"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Height    int64  `json:"height,omitempty"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ReconcileResponse summarises a reconcile pass.
type ReconcileResponse struct {
	Owner        string            `json:"owner"`
	Scanned      int               `json:"scanned"`
	Updated      int               `json:"updated"`
	Confirmed    int               `json:"confirmed"`
	Failed       int               `json:"failed"`
	StillPending int               `json:"still_pending"`
	Unchanged    int               `json:"unchanged"`
	Stale        []string          `json:"stale,omitempty"`
	LookupErrors map[string]string `json:"lookup_errors,omitempty"`
	WriteErrors  map[string]string `json:"write_errors,omitempty"`
	Skipped      bool              `json:"skipped"`
	DurationMs   int64             `json:"duration_ms"`
}

// BalanceItem is one coin of an account balance.
type BalanceItem struct {
	Denom    string `json:"denom"`
	Currency string `json:"currency"`
	Amount   string `json:"amount"` // display units
	Raw      string `json:"raw"`    // base units as reported by the ledger
}

// BalancesResponse is the response for GET /api/v1/accounts/:address/balances.
type BalancesResponse struct {
	Address   string        `json:"address"`
	Balances  []BalanceItem `json:"balances"`
	FetchedAt string        `json:"fetched_at"`
}

// TransferRecordResponse is one entry of an account's ledger history.
type TransferRecordResponse struct {
	Hash      string `json:"hash"`
	Height    int64  `json:"height"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
}

// BlockHeightResponse is the response for GET /api/v1/chain/height.
type BlockHeightResponse struct {
	Height int64 `json:"height"`
}

// TxResultResponse is the ledger's view of a transaction.
type TxResultResponse struct {
	Hash      string  `json:"hash"`
	Height    int64   `json:"height"`
	Code      *uint32 `json:"code"`
	Codespace string  `json:"codespace,omitempty"`
	RawLog    string  `json:"raw_log,omitempty"`
	GasWanted int64   `json:"gas_wanted"`
	GasUsed   int64   `json:"gas_used"`
	Timestamp string  `json:"timestamp,omitempty"`
	Status    string  `json:"status"`
}
