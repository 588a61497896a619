package handler

import (
	"chainpay-reconciler/internal/adapter/http/dto"
	"chainpay-reconciler/internal/core/ports"
	"chainpay-reconciler/pkg/response"

	"github.com/gin-gonic/gin"
)

// ChainHandler exposes read-only ledger lookups.
type ChainHandler struct {
	ledgerSvc ports.LedgerService
}

// NewChainHandler creates a new ChainHandler.
func NewChainHandler(ledgerSvc ports.LedgerService) *ChainHandler {
	return &ChainHandler{ledgerSvc: ledgerSvc}
}

// Height handles GET /api/v1/chain/height.
func (h *ChainHandler) Height(c *gin.Context) {
	height, err := h.ledgerSvc.BlockHeight(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.BlockHeightResponse{Height: height})
}

// Transaction handles GET /api/v1/chain/txs/:hash.
func (h *ChainHandler) Transaction(c *gin.Context) {
	res, err := h.ledgerSvc.Transaction(c.Request.Context(), c.Param("hash"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toTxResultResponse(res))
}
