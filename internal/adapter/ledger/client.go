// Package ledger talks to the Cosmos SDK REST gateway of the settlement chain.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"chainpay-reconciler/internal/core/domain"

	"github.com/rs/zerolog"
)

const maxBodyBytes = 4 << 20

// HTTPClient is the subset of *http.Client the ledger client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.LedgerClient over the REST gateway. Each method
// issues exactly one request (ListTransfers: one per page) and never retries.
type Client struct {
	baseURL string
	http    HTTPClient
	log     zerolog.Logger
}

// NewClient creates a ledger client rooted at baseURL.
func NewClient(baseURL string, httpClient HTTPClient, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
	}
}

type coin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

type balancesResponse struct {
	Balances []coin `json:"balances"`
}

// GetBalances returns every coin held by address.
func (c *Client) GetBalances(ctx context.Context, address string) ([]domain.Balance, error) {
	var body balancesResponse
	q := url.Values{"pagination.limit": {"100"}}
	if err := c.getJSON(ctx, "get_balances", "/cosmos/bank/v1beta1/balances/"+url.PathEscape(address), q, &body); err != nil {
		return nil, err
	}

	out := make([]domain.Balance, 0, len(body.Balances))
	for _, b := range body.Balances {
		out = append(out, domain.Balance{Denom: b.Denom, Amount: b.Amount})
	}
	return out, nil
}

type txResponse struct {
	Height    string          `json:"height"`
	TxHash    string          `json:"txhash"`
	Code      *uint32         `json:"code"`
	Codespace string          `json:"codespace"`
	RawLog    string          `json:"raw_log"`
	GasWanted string          `json:"gas_wanted"`
	GasUsed   string          `json:"gas_used"`
	Timestamp string          `json:"timestamp"`
	Tx        json.RawMessage `json:"tx"`
}

type getTxResponse struct {
	TxResponse *txResponse `json:"tx_response"`
}

// GetTransaction looks up a transaction by hash. A 404 surfaces as a
// NetworkError whose NotFound() is true.
func (c *Client) GetTransaction(ctx context.Context, hash string) (*domain.TxResult, error) {
	const op = "get_transaction"
	path := "/cosmos/tx/v1beta1/txs/" + url.PathEscape(hash)

	var body getTxResponse
	if err := c.getJSON(ctx, op, path, nil, &body); err != nil {
		return nil, err
	}
	if body.TxResponse == nil {
		return nil, &domain.NetworkError{Op: op, URL: c.baseURL + path, Err: errors.New("response has no tx_response")}
	}

	tr := body.TxResponse
	res := &domain.TxResult{
		Hash:      tr.TxHash,
		Height:    parseInt(tr.Height),
		Code:      tr.Code,
		Codespace: tr.Codespace,
		RawLog:    tr.RawLog,
		GasWanted: parseInt(tr.GasWanted),
		GasUsed:   parseInt(tr.GasUsed),
		Timestamp: parseTime(tr.Timestamp),
	}
	if res.Hash == "" {
		res.Hash = hash
	}
	return res, nil
}

type blockHeader struct {
	Header struct {
		Height string `json:"height"`
	} `json:"header"`
}

type latestBlockResponse struct {
	Block    *blockHeader `json:"block"`
	SDKBlock *blockHeader `json:"sdk_block"`
}

// GetBlockHeight returns the latest committed height.
func (c *Client) GetBlockHeight(ctx context.Context) (int64, error) {
	const op = "get_block_height"
	path := "/cosmos/base/tendermint/v1beta1/blocks/latest"

	var body latestBlockResponse
	if err := c.getJSON(ctx, op, path, nil, &body); err != nil {
		return 0, err
	}

	raw := ""
	if body.Block != nil {
		raw = body.Block.Header.Height
	}
	if raw == "" && body.SDKBlock != nil {
		raw = body.SDKBlock.Header.Height
	}
	h, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &domain.NetworkError{Op: op, URL: c.baseURL + path, Err: fmt.Errorf("bad block height %q", raw)}
	}
	return h, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &domain.NetworkError{Op: op, URL: u, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.NetworkError{Op: op, URL: u, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &domain.NetworkError{Op: op, URL: u, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debug().
			Str("op", op).
			Int("status", resp.StatusCode).
			Msg("ledger request rejected")
		return &domain.NetworkError{Op: op, URL: u, StatusCode: resp.StatusCode, Err: errors.New(snippet(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &domain.NetworkError{Op: op, URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256]
	}
	if s == "" {
		s = "empty body"
	}
	return s
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
