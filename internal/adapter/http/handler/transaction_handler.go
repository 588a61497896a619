package handler

import (
	"context"
	"strconv"

	"chainpay-reconciler/internal/adapter/http/dto"
	"chainpay-reconciler/internal/adapter/http/middleware"
	"chainpay-reconciler/internal/core/domain"
	"chainpay-reconciler/internal/core/ports"
	"chainpay-reconciler/pkg/apperror"
	"chainpay-reconciler/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransactionHandler serves the owner's recorded transactions.
type TransactionHandler struct {
	querySvc     ports.TransactionQueryService
	reconcileSvc ports.ReconcileService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(querySvc ports.TransactionQueryService, reconcileSvc ports.ReconcileService) *TransactionHandler {
	return &TransactionHandler{
		querySvc:     querySvc,
		reconcileSvc: reconcileSvc,
	}
}

// List handles GET /api/v1/transactions.
func (h *TransactionHandler) List(c *gin.Context) {
	owner, ok := middleware.Owner(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	params := ports.TransactionListParams{
		Owner:    owner,
		Page:     page,
		PageSize: pageSize,
	}
	if s := c.Query("status"); s != "" {
		status := domain.TransactionStatus(s)
		params.Status = &status
	}

	txns, total, err := h.querySvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}

	// The service clamps paging; echo what it would have used.
	page = max(page, 1)
	if pageSize < 1 {
		pageSize = 20
	}
	response.Paginated(c, items, total, page, min(pageSize, 100))
}

// Get handles GET /api/v1/transactions/:hash.
func (h *TransactionHandler) Get(c *gin.Context) {
	owner, ok := middleware.Owner(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	tx, err := h.querySvc.Get(c.Request.Context(), owner, c.Param("hash"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toTransactionResponse(tx))
}

// Reconcile handles POST /api/v1/transactions/reconcile: a manual refresh of
// the owner's pending records.
func (h *TransactionHandler) Reconcile(c *gin.Context) {
	owner, ok := middleware.Owner(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	// A started pass finishes its writes even if the client goes away.
	report := h.reconcileSvc.Reconcile(context.WithoutCancel(c.Request.Context()), owner)
	if report.ListErr != nil {
		response.Error(c, apperror.ErrStorageUnavailable(report.ListErr))
		return
	}
	response.OK(c, toReconcileResponse(&report))
}
