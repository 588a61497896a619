package handler

import (
	"chainpay-reconciler/internal/adapter/http/dto"
	"chainpay-reconciler/internal/adapter/http/middleware"
	"chainpay-reconciler/internal/core/ports"
	"chainpay-reconciler/pkg/apperror"
	"chainpay-reconciler/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TransferHandler handles transfer submission.
type TransferHandler struct {
	transferSvc ports.TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferSvc ports.TransferService) *TransferHandler {
	return &TransferHandler{transferSvc: transferSvc}
}

// Submit handles POST /api/v1/transfers. The sender is the token's owner.
func (h *TransferHandler) Submit(c *gin.Context) {
	owner, ok := middleware.Owner(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	tx, err := h.transferSvc.Submit(c.Request.Context(), ports.SubmitTransferRequest{
		Sender:    owner,
		Recipient: req.Recipient,
		Amount:    amount,
		Currency:  req.Currency,
		Note:      req.Note,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTransactionResponse(tx))
}
