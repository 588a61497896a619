// Package signer holds the signing delegates that sign and broadcast
// transfers on behalf of a wallet owner.
package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"chainpay-reconciler/internal/core/domain"
	"chainpay-reconciler/internal/core/ports"

	"github.com/rs/zerolog"
)

const codeWalletNotConnected = "WALLET_NOT_CONNECTED"

// HTTPClient is the subset of *http.Client the delegate needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPDelegate forwards transfers to a wallet bridge that holds the user's
// signing session.
type HTTPDelegate struct {
	baseURL string
	apiKey  string
	http    HTTPClient
	log     zerolog.Logger
}

// NewHTTPDelegate creates a delegate for the bridge at baseURL.
func NewHTTPDelegate(baseURL, apiKey string, httpClient HTTPClient, log zerolog.Logger) *HTTPDelegate {
	return &HTTPDelegate{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
		log:     log,
	}
}

type bridgeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Transfer submits req. A bridge with no session for the sender yields
// domain.ErrWalletNotConnected; any other failure is a *domain.NetworkError.
func (d *HTTPDelegate) Transfer(ctx context.Context, req ports.TransferRequest) (*ports.TransferResult, error) {
	const op = "signer_transfer"
	u := d.baseURL + "/v1/transfers"

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode transfer request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.NetworkError{Op: op, URL: u, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	}

	resp, err := d.http.Do(httpReq)
	if err != nil {
		return nil, &domain.NetworkError{Op: op, URL: u, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &domain.NetworkError{Op: op, URL: u, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var be bridgeError
		_ = json.Unmarshal(body, &be)
		if be.Code == codeWalletNotConnected &&
			(resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnauthorized) {
			return nil, domain.ErrWalletNotConnected
		}
		msg := be.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &domain.NetworkError{Op: op, URL: u, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	var result ports.TransferResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &domain.NetworkError{Op: op, URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}

	d.log.Debug().
		Str("sender", req.Sender).
		Str("tx_hash", result.TransactionHash).
		Bool("success", result.Success).
		Msg("transfer broadcast by signer")

	return &result, nil
}

// Disconnected is the delegate used when no wallet bridge is configured.
type Disconnected struct{}

// Transfer always reports that no wallet session exists.
func (Disconnected) Transfer(context.Context, ports.TransferRequest) (*ports.TransferResult, error) {
	return nil, domain.ErrWalletNotConnected
}
