package handler

import (
	"strconv"

	"chainpay-reconciler/internal/adapter/http/dto"
	"chainpay-reconciler/internal/adapter/http/middleware"
	"chainpay-reconciler/internal/core/ports"
	"chainpay-reconciler/pkg/apperror"
	"chainpay-reconciler/pkg/response"

	"github.com/gin-gonic/gin"
)

const defaultHistoryLimit = 20

// AccountHandler serves ledger data for the authenticated account.
type AccountHandler struct {
	ledgerSvc ports.LedgerService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(ledgerSvc ports.LedgerService) *AccountHandler {
	return &AccountHandler{ledgerSvc: ledgerSvc}
}

// ownAddress resolves :address and checks it belongs to the caller.
func ownAddress(c *gin.Context) (string, bool) {
	owner, ok := middleware.Owner(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return "", false
	}
	address := c.Param("address")
	if !dto.IsAddress(address) {
		response.Error(c, apperror.Validation("invalid account address"))
		return "", false
	}
	if address != owner {
		response.Error(c, apperror.ErrForbiddenOwner())
		return "", false
	}
	return address, true
}

// Balances handles GET /api/v1/accounts/:address/balances.
func (h *AccountHandler) Balances(c *gin.Context) {
	address, ok := ownAddress(c)
	if !ok {
		return
	}

	snap, err := h.ledgerSvc.Balances(c.Request.Context(), address)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toBalancesResponse(snap))
}

// History handles GET /api/v1/accounts/:address/history.
func (h *AccountHandler) History(c *gin.Context) {
	address, ok := ownAddress(c)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			response.Error(c, apperror.Validation("limit must be a positive integer"))
			return
		}
		limit = v
	}

	records, err := h.ledgerSvc.History(c.Request.Context(), address, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransferRecordResponse, 0, len(records))
	for i := range records {
		items = append(items, toTransferRecordResponse(&records[i]))
	}
	response.OK(c, items)
}
