package handler

import (
	"time"

	"chainpay-reconciler/internal/adapter/http/dto"
	"chainpay-reconciler/internal/core/domain"
	"chainpay-reconciler/pkg/denom"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toTransactionResponse(tx *domain.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		Hash:      tx.Hash,
		Owner:     tx.Owner,
		Sender:    tx.Sender,
		Recipient: tx.Recipient,
		Amount:    tx.Amount.String(),
		Currency:  tx.Currency,
		Status:    string(tx.Status),
		Height:    tx.Height,
		Note:      tx.Note,
		CreatedAt: formatTime(tx.CreatedAt),
		UpdatedAt: formatTime(tx.UpdatedAt),
	}
}

func toReconcileResponse(r *domain.ReconcileReport) dto.ReconcileResponse {
	resp := dto.ReconcileResponse{
		Owner:        r.Owner,
		Scanned:      r.Scanned,
		Updated:      r.Updated(),
		Confirmed:    r.Confirmed,
		Failed:       r.Failed,
		StillPending: r.StillPending,
		Unchanged:    r.Unchanged,
		Stale:        r.Stale,
		Skipped:      r.Skipped,
		DurationMs:   r.Duration.Milliseconds(),
	}
	if len(r.LookupErrors) > 0 {
		resp.LookupErrors = make(map[string]string, len(r.LookupErrors))
		for hash, err := range r.LookupErrors {
			resp.LookupErrors[hash] = err.Error()
		}
	}
	if len(r.WriteErrors) > 0 {
		resp.WriteErrors = make(map[string]string, len(r.WriteErrors))
		for _, err := range r.WriteErrors {
			resp.WriteErrors[err.Hash] = err.Error()
		}
	}
	return resp
}

func toBalancesResponse(s *domain.BalanceSnapshot) dto.BalancesResponse {
	items := make([]dto.BalanceItem, 0, len(s.Balances))
	for _, b := range s.Balances {
		item := dto.BalanceItem{
			Denom:    b.Denom,
			Currency: denom.DisplayName(b.Denom),
			Amount:   b.Amount,
			Raw:      b.Amount,
		}
		if amount, name, err := denom.ToDisplay(b.Amount, b.Denom); err == nil {
			item.Amount = amount.String()
			item.Currency = name
		}
		items = append(items, item)
	}
	return dto.BalancesResponse{
		Address:   s.Address,
		Balances:  items,
		FetchedAt: formatTime(s.FetchedAt),
	}
}

func toTransferRecordResponse(r *domain.TransferRecord) dto.TransferRecordResponse {
	return dto.TransferRecordResponse{
		Hash:      r.Hash,
		Height:    r.Height,
		Timestamp: r.Timestamp,
		Type:      r.Type,
		Amount:    r.Amount.String(),
		Currency:  r.Denom,
		Sender:    r.Sender,
		Recipient: r.Recipient,
	}
}

func toTxResultResponse(r *domain.TxResult) dto.TxResultResponse {
	status, _ := r.Outcome()
	return dto.TxResultResponse{
		Hash:      r.Hash,
		Height:    r.Height,
		Code:      r.Code,
		Codespace: r.Codespace,
		RawLog:    r.RawLog,
		GasWanted: r.GasWanted,
		GasUsed:   r.GasUsed,
		Timestamp: formatTime(r.Timestamp),
		Status:    string(status),
	}
}
