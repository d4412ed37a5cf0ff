package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/service"
)

type createClosureRequest struct {
	ClientID    uuid.UUID        `json:"client_id"`
	PeriodStart string           `json:"period_start" binding:"required"`
	PeriodEnd   string           `json:"period_end" binding:"required"`
	TaxRate     *decimal.Decimal `json:"tax_rate"`
}

func (h *Handler) createClosure(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req createClosureRequest
	if !h.bind(c, &req) {
		return
	}
	start, err := parseDate(req.PeriodStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period_start"})
		return
	}
	end, err := parseDate(req.PeriodEnd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid period_end"})
		return
	}

	closure, err := h.services.Settlement.CreateClosure(c.Request.Context(), service.CreateClosureInput{
		ClientID:    req.ClientID,
		PeriodStart: start,
		PeriodEnd:   end,
		TaxRate:     req.TaxRate,
		Principal:   principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, closure)
}

func (h *Handler) listClosures(c *gin.Context) {
	clientID, ok := queryUUID(c, "client_id")
	if !ok {
		return
	}
	filter := model.ClosureFilter{ClientID: clientID}
	if raw := queryString(c, "status"); raw != nil {
		status := model.ClosureStatus(*raw)
		filter.Status = &status
	}
	closures, err := h.services.Settlement.ListClosures(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closures": closures})
}

func (h *Handler) getClosure(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	doc, err := h.services.Settlement.ClosureDocument(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closure": doc.Closure, "client": doc.Client, "services": doc.Services})
}

func (h *Handler) approveClosure(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	closure, err := h.services.Settlement.ApproveClosure(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, closure)
}

func (h *Handler) discardClosure(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.services.Settlement.DiscardClosure(c.Request.Context(), principal, id); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) exportClosure(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	doc, err := h.services.Settlement.ClosureDocument(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	content, err := h.services.Excel.Generate(*doc)
	if err != nil {
		h.handleError(c, err)
		return
	}

	const contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	c.Header("Content-Disposition", "attachment; filename=\""+doc.Closure.Folio+".xlsx\"")
	c.Data(http.StatusOK, contentType, content)
}

type createInvoiceRequest struct {
	FiscalFolio    string    `json:"fiscal_folio" binding:"required"`
	PaymentTermsID uuid.UUID `json:"payment_terms_id"`
	IssueDate      string    `json:"issue_date"`
	DueDate        string    `json:"due_date"`
}

func (h *Handler) createInvoice(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req createInvoiceRequest
	if !h.bind(c, &req) {
		return
	}
	issue, err := optionalDate(req.IssueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid issue_date"})
		return
	}
	due, err := optionalDate(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid due_date"})
		return
	}

	input := service.CreateInvoiceInput{
		ClosureID:      id,
		FiscalFolio:    req.FiscalFolio,
		PaymentTermsID: req.PaymentTermsID,
		DueDate:        due,
		Principal:      principal,
	}
	if issue != nil {
		input.IssueDate = *issue
	}
	invoice, err := h.services.Settlement.CreateInvoice(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (h *Handler) listInvoices(c *gin.Context) {
	clientID, ok := queryUUID(c, "client_id")
	if !ok {
		return
	}
	filter := model.InvoiceFilter{ClientID: clientID}
	if raw := queryString(c, "status"); raw != nil {
		status := model.InvoiceStatus(*raw)
		filter.Status = &status
	}
	invoices, err := h.services.Settlement.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

func (h *Handler) getInvoice(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	invoice, err := h.services.Settlement.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *Handler) invoicePDF(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	doc, err := h.services.Settlement.InvoiceDocument(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	content, err := h.services.PDF.Generate(*doc)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+doc.Invoice.Folio+".pdf\"")
	c.Data(http.StatusOK, "application/pdf", content)
}

func (h *Handler) sendInvoice(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	invoice, err := h.services.Settlement.SendInvoice(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *Handler) cancelInvoice(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	invoice, err := h.services.Settlement.CancelInvoice(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

type markPaidRequest struct {
	InvoiceIDs []uuid.UUID `json:"invoice_ids" binding:"required"`
}

type markPaidOutcome struct {
	InvoiceID uuid.UUID      `json:"invoice_id"`
	Invoice   *model.Invoice `json:"invoice,omitempty"`
	Payment   *model.Payment `json:"payment,omitempty"`
	Error     string         `json:"error,omitempty"`
	Code      string         `json:"code,omitempty"`
}

func (h *Handler) markInvoicesPaid(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req markPaidRequest
	if !h.bind(c, &req) {
		return
	}

	outcomes, err := h.services.Settlement.MarkInvoicesPaidBulk(c.Request.Context(), principal, req.InvoiceIDs)
	if err != nil {
		h.handleError(c, err)
		return
	}
	resp := make([]markPaidOutcome, len(outcomes))
	failed := 0
	for i, outcome := range outcomes {
		resp[i] = markPaidOutcome{InvoiceID: outcome.InvoiceID, Invoice: outcome.Invoice, Payment: outcome.Payment}
		if outcome.Err != nil {
			_, resp[i].Code = classify(outcome.Err)
			resp[i].Error = outcome.Err.Error()
			failed++
		}
	}
	c.JSON(http.StatusOK, gin.H{"outcomes": resp, "failed": failed})
}

type registerPaymentRequest struct {
	ClientID        uuid.UUID       `json:"client_id"`
	InvoiceID       *uuid.UUID      `json:"invoice_id"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     string          `json:"payment_date"`
	PaymentMethod   string          `json:"payment_method"`
	ReferenceNumber *string         `json:"reference_number"`
	Confirm         bool            `json:"confirm"`
}

func (h *Handler) registerPayment(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req registerPaymentRequest
	if !h.bind(c, &req) {
		return
	}
	date, err := optionalDate(req.PaymentDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment_date"})
		return
	}

	input := service.RegisterPaymentInput{
		ClientID:        req.ClientID,
		InvoiceID:       req.InvoiceID,
		Amount:          req.Amount,
		Method:          model.PaymentMethod(req.PaymentMethod),
		ReferenceNumber: req.ReferenceNumber,
		ConfirmNow:      req.Confirm,
		Principal:       principal,
	}
	if date != nil {
		input.PaymentDate = *date
	}
	payment, err := h.services.Settlement.RegisterPayment(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (h *Handler) listPayments(c *gin.Context) {
	clientID, ok := queryUUID(c, "client_id")
	if !ok {
		return
	}
	invoiceID, ok := queryUUID(c, "invoice_id")
	if !ok {
		return
	}
	filter := model.PaymentFilter{ClientID: clientID, InvoiceID: invoiceID}
	if raw := queryString(c, "status"); raw != nil {
		status := model.PaymentStatus(*raw)
		filter.Status = &status
	}
	payments, err := h.services.Settlement.ListPayments(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

func (h *Handler) getPayment(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	payment, err := h.services.Settlement.GetPayment(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *Handler) confirmPayment(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	payment, invoice, err := h.services.Settlement.ConfirmPayment(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": payment, "invoice": invoice})
}
