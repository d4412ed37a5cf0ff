package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/towing-settlement/internal/model"
)

type bankLineRequest struct {
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate string          `json:"transaction_date" binding:"required"`
	Reference       *string         `json:"reference"`
}

type importTransactionsRequest struct {
	Transactions []bankLineRequest `json:"transactions" binding:"required,dive"`
}

func (h *Handler) importTransactions(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req importTransactionsRequest
	if !h.bind(c, &req) {
		return
	}
	lines := make([]model.BankTransaction, 0, len(req.Transactions))
	for _, line := range req.Transactions {
		date, err := parseDate(line.TransactionDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction_date"})
			return
		}
		lines = append(lines, model.BankTransaction{
			Description:     line.Description,
			Amount:          line.Amount,
			TransactionDate: date,
			Reference:       line.Reference,
		})
	}

	created, err := h.services.Reconciler.ImportTransactions(c.Request.Context(), principal, lines)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transactions": created})
}

func (h *Handler) importStatement(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer file.Close()

	created, err := h.services.Reconciler.ImportStatement(c.Request.Context(), principal, file)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transactions": created})
}

func (h *Handler) listBankTransactions(c *gin.Context) {
	var status *model.BankTransactionStatus
	if raw := queryString(c, "status"); raw != nil {
		value := model.BankTransactionStatus(*raw)
		status = &value
	}
	transactions, err := h.services.Reconciler.ListBankTransactions(c.Request.Context(), status)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

func (h *Handler) getBankTransaction(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	tx, err := h.services.Reconciler.GetBankTransaction(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

type matchRequest struct {
	PaymentID uuid.UUID `json:"payment_id"`
}

func (h *Handler) matchTransaction(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req matchRequest
	if !h.bind(c, &req) {
		return
	}
	tx, payment, err := h.services.Reconciler.Match(c.Request.Context(), principal, id, req.PaymentID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx, "payment": payment})
}

func (h *Handler) unmatchTransaction(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	tx, err := h.services.Reconciler.Unmatch(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}
