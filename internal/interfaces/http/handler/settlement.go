package handler

import (
	"strings"
	"time"

	settlementapp "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettlementHandler serves settlements and the customer-facing ledgers
type SettlementHandler struct {
	BaseHandler
	settlementService *settlementapp.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler
func NewSettlementHandler(settlementService *settlementapp.SettlementService, log *zap.Logger) *SettlementHandler {
	return &SettlementHandler{
		BaseHandler:       newBaseHandler(log),
		settlementService: settlementService,
	}
}

// PaymentMethodRequest is one declared part of a payment
type PaymentMethodRequest struct {
	Type                  string          `json:"type" binding:"required"`
	Amount                decimal.Decimal `json:"amount"`
	Bank                  string          `json:"bank" binding:"max=100"`
	CheckNumber           string          `json:"check_number" binding:"max=50"`
	CheckIssueDate        string          `json:"check_issue_date" binding:"omitempty,datetime=2006-01-02"`
	CheckExpirationDate   string          `json:"check_expiration_date" binding:"omitempty,datetime=2006-01-02"`
	BankTransactionNumber string          `json:"bank_transaction_number" binding:"max=100"`
}

func (r PaymentMethodRequest) toDomain() settlement.PaymentMethod {
	return settlement.PaymentMethod{
		Type:                  settlement.PaymentMethodType(strings.ToUpper(strings.TrimSpace(r.Type))),
		Amount:                r.Amount,
		Bank:                  r.Bank,
		CheckNumber:           r.CheckNumber,
		CheckIssueDate:        parseDate(r.CheckIssueDate),
		CheckExpirationDate:   parseDate(r.CheckExpirationDate),
		BankTransactionNumber: r.BankTransactionNumber,
	}
}

// SettleRequest is the body of POST /settlements. An empty
// selected_receivable_ids settles every outstanding receivable of the customer.
type SettleRequest struct {
	CustomerID            string                 `json:"customer_id" binding:"required,uuid"`
	ApplicationID         string                 `json:"application_id" binding:"required,uuid"`
	SelectedReceivableIDs []string               `json:"selected_receivable_ids" binding:"omitempty,dive,uuid"`
	UseCreditBalance      bool                   `json:"use_credit_balance"`
	PaymentMethods        []PaymentMethodRequest `json:"payment_methods" binding:"dive"`
	Remark                string                 `json:"remark" binding:"max=500"`
	IdempotencyKey        string                 `json:"idempotency_key" binding:"max=100"`
	ManualDocumentNumber  string                 `json:"manual_document_number" binding:"max=50"`
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

// Settle records a payment against the customer's receivables. The
// Idempotency-Key header is used when the body carries no key. A replayed
// request answers 200 with the original transaction instead of 201.
func (h *SettlementHandler) Settle(c *gin.Context) {
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = c.GetHeader(middleware.IdempotencyKeyHeader)
	}

	result, err := h.settlementService.Settle(c.Request.Context(), settlementapp.SettleCommand{
		CustomerID:    uuid.MustParse(req.CustomerID),
		ApplicationID: uuid.MustParse(req.ApplicationID),
		SelectedReceivableIDs: lo.Map(req.SelectedReceivableIDs, func(id string, _ int) uuid.UUID {
			return uuid.MustParse(id)
		}),
		UseCreditBalance: req.UseCreditBalance,
		PaymentMethods: lo.Map(req.PaymentMethods, func(m PaymentMethodRequest, _ int) settlement.PaymentMethod {
			return m.toDomain()
		}),
		Remark:               req.Remark,
		IdempotencyKey:       key,
		ManualDocumentNumber: req.ManualDocumentNumber,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if result.Replayed {
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

// GetTransaction returns one settlement transaction with its allocations
func (h *SettlementHandler) GetTransaction(c *gin.Context) {
	id, ok := h.pathUUID(c, "id", "settlement")
	if !ok {
		return
	}
	txn, err := h.settlementService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, txn)
}

// ListCustomerTransactions returns a page of the customer's settlements
func (h *SettlementHandler) ListCustomerTransactions(c *gin.Context) {
	customerID, ok := h.pathUUID(c, "id", "customer")
	if !ok {
		return
	}
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	items, total, err := h.settlementService.ListTransactionsByCustomer(c.Request.Context(), customerID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}

// GetCreditBalance returns the customer's stored credit
func (h *SettlementHandler) GetCreditBalance(c *gin.Context) {
	customerID, ok := h.pathUUID(c, "id", "customer")
	if !ok {
		return
	}
	balance, err := h.settlementService.GetCreditBalance(c.Request.Context(), customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// ListCreditEntries returns a page of the customer's credit ledger
func (h *SettlementHandler) ListCreditEntries(c *gin.Context) {
	customerID, ok := h.pathUUID(c, "id", "customer")
	if !ok {
		return
	}
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	entries, total, err := h.settlementService.ListCreditEntries(c.Request.Context(), customerID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, entries, total, filter.Page, filter.PageSize)
}

// ListReceivables returns a page of the customer's receivables, optionally by status
func (h *SettlementHandler) ListReceivables(c *gin.Context) {
	customerID, ok := h.pathUUID(c, "id", "customer")
	if !ok {
		return
	}
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	rf := settlement.ReceivableFilter{Filter: filter}
	if s := c.Query("status"); s != "" {
		status := settlement.ReceivableStatus(strings.ToUpper(s))
		rf.Status = &status
	}

	items, total, err := h.settlementService.ListReceivables(c.Request.Context(), customerID, rf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, items, total, filter.Page, filter.PageSize)
}
