package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"chainpay-reconciler/internal/core/domain"
	"chainpay-reconciler/pkg/denom"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	maxHistoryPages     = 10

	typeMsgSend = "cosmos.bank.v1beta1.MsgSend"
	typeMsgExec = "cosmos.authz.v1beta1.MsgExec"
)

type txSearchResponse struct {
	TxResponses []txResponse `json:"tx_responses"`
	Pagination  *struct {
		NextKey string `json:"next_key"`
	} `json:"pagination"`
}

// ListTransfers returns bank sends signed by address, newest first. Sends
// wrapped in an authz MsgExec are unwrapped.
func (c *Client) ListTransfers(ctx context.Context, address string, limit int) ([]domain.TransferRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	var responses []txResponse
	key := ""
	for page := 0; page < maxHistoryPages && len(responses) < limit; page++ {
		q := url.Values{
			"query":    {fmt.Sprintf("message.sender='%s'", address)},
			"order_by": {"ORDER_BY_DESC"},
		}
		if key != "" {
			q.Set("pagination.key", key)
		}

		var body txSearchResponse
		if err := c.getJSON(ctx, "list_transfers", "/cosmos/tx/v1beta1/txs", q, &body); err != nil {
			return nil, err
		}
		responses = append(responses, body.TxResponses...)

		if body.Pagination == nil || body.Pagination.NextKey == "" {
			break
		}
		key = body.Pagination.NextKey
	}
	if len(responses) > limit {
		responses = responses[:limit]
	}

	out := make([]domain.TransferRecord, 0, len(responses))
	for _, tr := range responses {
		out = append(out, normalize(tr)...)
	}
	return out, nil
}

type txEnvelope struct {
	Body struct {
		Messages []json.RawMessage `json:"messages"`
	} `json:"body"`
}

type msgHeader struct {
	Type string `json:"@type"`
}

type msgSend struct {
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	Amount      []coin `json:"amount"`
}

type msgExec struct {
	Msgs []json.RawMessage `json:"msgs"`
}

// normalize extracts bank sends from one tx response. Messages that do not
// decode are skipped rather than failing the whole page.
func normalize(tr txResponse) []domain.TransferRecord {
	var env txEnvelope
	if len(tr.Tx) == 0 || json.Unmarshal(tr.Tx, &env) != nil {
		return nil
	}

	var out []domain.TransferRecord
	for _, raw := range env.Body.Messages {
		var h msgHeader
		if json.Unmarshal(raw, &h) != nil {
			continue
		}
		switch {
		case strings.Contains(h.Type, typeMsgSend):
			if rec, ok := sendRecord(tr, h.Type, raw); ok {
				out = append(out, rec)
			}
		case strings.Contains(h.Type, typeMsgExec):
			var exec msgExec
			if json.Unmarshal(raw, &exec) != nil {
				continue
			}
			for _, inner := range exec.Msgs {
				var ih msgHeader
				if json.Unmarshal(inner, &ih) != nil || !strings.Contains(ih.Type, typeMsgSend) {
					continue
				}
				if rec, ok := sendRecord(tr, ih.Type, inner); ok {
					out = append(out, rec)
				}
			}
		}
	}
	return out
}

func sendRecord(tr txResponse, msgType string, raw json.RawMessage) (domain.TransferRecord, bool) {
	var m msgSend
	if json.Unmarshal(raw, &m) != nil {
		return domain.TransferRecord{}, false
	}

	rec := domain.TransferRecord{
		Height:    parseInt(tr.Height),
		Hash:      tr.TxHash,
		Timestamp: tr.Timestamp,
		Type:      msgType,
		Denom:     denom.XION.Display,
		Sender:    m.FromAddress,
		Recipient: m.ToAddress,
	}
	if len(m.Amount) > 0 {
		amount, name, err := denom.ToDisplay(m.Amount[0].Amount, m.Amount[0].Denom)
		if err != nil {
			return domain.TransferRecord{}, false
		}
		rec.Amount, rec.Denom = amount, name
	}
	return rec, true
}
