package handler

import (
	settlementapp "github.com/erp/settlement/internal/application/settlement"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReceivableHandler serves receivable administration
type ReceivableHandler struct {
	BaseHandler
	receivableService *settlementapp.ReceivableService
}

// NewReceivableHandler creates a new ReceivableHandler
func NewReceivableHandler(receivableService *settlementapp.ReceivableService, log *zap.Logger) *ReceivableHandler {
	return &ReceivableHandler{
		BaseHandler:       newBaseHandler(log),
		receivableService: receivableService,
	}
}

// CreateReceivableRequest is the body of POST /receivables
type CreateReceivableRequest struct {
	CustomerID     string          `json:"customer_id" binding:"required,uuid"`
	ApplicationID  string          `json:"application_id" binding:"omitempty,uuid"`
	Description    string          `json:"description" binding:"notblank,max=500"`
	TotalAmountDue decimal.Decimal `json:"total_amount_due"`
}

// ReasonRequest carries the reason for a cancellation or refund
type ReasonRequest struct {
	Reason string `json:"reason" binding:"notblank,max=500"`
}

// Create registers an unpaid receivable
func (h *ReceivableHandler) Create(c *gin.Context) {
	var req CreateReceivableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	cmd := settlementapp.CreateReceivableCommand{
		CustomerID:     uuid.MustParse(req.CustomerID),
		Description:    req.Description,
		TotalAmountDue: req.TotalAmountDue,
	}
	if req.ApplicationID != "" {
		cmd.ApplicationID = uuid.MustParse(req.ApplicationID)
	}

	receivable, err := h.receivableService.CreateReceivable(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, receivable)
}

// Get returns one receivable
func (h *ReceivableHandler) Get(c *gin.Context) {
	id, ok := h.pathUUID(c, "id", "receivable")
	if !ok {
		return
	}
	receivable, err := h.receivableService.GetReceivable(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receivable)
}

// Cancel voids a receivable nothing has been paid on
func (h *ReceivableHandler) Cancel(c *gin.Context) {
	id, req, ok := h.reason(c)
	if !ok {
		return
	}
	receivable, err := h.receivableService.CancelReceivable(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receivable)
}

// Refund closes a receivable and credits the paid amount back to the customer
func (h *ReceivableHandler) Refund(c *gin.Context) {
	id, req, ok := h.reason(c)
	if !ok {
		return
	}
	result, err := h.receivableService.RefundReceivable(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

func (h *ReceivableHandler) reason(c *gin.Context) (uuid.UUID, ReasonRequest, bool) {
	var req ReasonRequest
	id, ok := h.pathUUID(c, "id", "receivable")
	if !ok {
		return uuid.Nil, req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return uuid.Nil, req, false
	}
	return id, req, true
}
