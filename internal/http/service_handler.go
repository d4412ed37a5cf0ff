package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/service"
)

type createServiceRequest struct {
	ClientID            uuid.UUID       `json:"client_id"`
	ScheduledDate       string          `json:"scheduled_date" binding:"required"`
	Priority            string          `json:"priority"`
	CraneID             *uuid.UUID      `json:"crane_id"`
	OperatorID          *uuid.UUID      `json:"operator_id"`
	AssistantOperatorID *uuid.UUID      `json:"assistant_operator_id"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	Total               decimal.Decimal `json:"total"`
	QuoteNumber         *string         `json:"quote_number"`
	PurchaseOrderNumber *string         `json:"purchase_order_number"`
}

func (h *Handler) createService(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req createServiceRequest
	if !h.bind(c, &req) {
		return
	}
	scheduled, err := parseDate(req.ScheduledDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_date"})
		return
	}

	created, err := h.services.Workflow.CreateService(c.Request.Context(), service.CreateServiceInput{
		ClientID:            req.ClientID,
		ScheduledDate:       scheduled,
		Priority:            model.ServicePriority(strings.ToLower(strings.TrimSpace(req.Priority))),
		CraneID:             req.CraneID,
		OperatorID:          req.OperatorID,
		AssistantOperatorID: req.AssistantOperatorID,
		Subtotal:            req.Subtotal,
		Total:               req.Total,
		QuoteNumber:         req.QuoteNumber,
		PurchaseOrderNumber: req.PurchaseOrderNumber,
		Principal:           principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) listServices(c *gin.Context) {
	clientID, ok := queryUUID(c, "client_id")
	if !ok {
		return
	}
	from, err := optionalDate(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return
	}
	to, err := optionalDate(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
		return
	}
	filter := model.ServiceFilter{ClientID: clientID, From: from, To: to}
	if raw := queryString(c, "status"); raw != nil {
		status := model.ServiceStatus(*raw)
		filter.Status = &status
	}

	services, err := h.services.Workflow.ListServices(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}

func (h *Handler) getService(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	found, err := h.services.Workflow.GetService(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

type transitionRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) transitionService(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req transitionRequest
	if !h.bind(c, &req) {
		return
	}

	moved, err := h.services.Workflow.Transition(c.Request.Context(), principal, id, model.ServiceStatus(strings.TrimSpace(req.Status)))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, moved)
}

type batchItemRequest struct {
	ServiceID           uuid.UUID  `json:"service_id"`
	Type                string     `json:"type" binding:"required"`
	Status              string     `json:"status"`
	Priority            string     `json:"priority"`
	QuoteNumber         *string    `json:"quote_number"`
	PurchaseOrderNumber *string    `json:"purchase_order_number"`
	CraneID             *uuid.UUID `json:"crane_id"`
	OperatorID          *uuid.UUID `json:"operator_id"`
	AssistantOperatorID *uuid.UUID `json:"assistant_operator_id"`
}

type batchRequest struct {
	Items []batchItemRequest `json:"items" binding:"required,dive"`
}

func (r batchItemRequest) patch() (service.ServicePatch, error) {
	switch strings.ToLower(strings.TrimSpace(r.Type)) {
	case "status":
		return service.StatusPatch{Status: model.ServiceStatus(r.Status)}, nil
	case "reference":
		return service.ReferencePatch{QuoteNumber: r.QuoteNumber, PurchaseOrderNumber: r.PurchaseOrderNumber}, nil
	case "assignment":
		return service.AssignmentPatch{CraneID: r.CraneID, OperatorID: r.OperatorID, AssistantOperatorID: r.AssistantOperatorID}, nil
	case "priority":
		return service.PriorityPatch{Priority: model.ServicePriority(r.Priority)}, nil
	default:
		return nil, fmt.Errorf("unknown patch type %q", r.Type)
	}
}

type batchFailure struct {
	Index   int       `json:"index"`
	ItemID  uuid.UUID `json:"item_id"`
	Applied int       `json:"applied"`
	Message string    `json:"message"`
	Code    string    `json:"code"`
}

type batchResponse struct {
	Result *service.BatchResult `json:"result,omitempty"`
	Events []service.BatchEvent `json:"events"`
	Failed *batchFailure        `json:"failed,omitempty"`
}

// applyBatch runs a batch and answers with the whole progress log, or
// streams it as server-sent events when the client asks for
// text/event-stream.
func (h *Handler) applyBatch(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req batchRequest
	if !h.bind(c, &req) {
		return
	}
	items := make([]service.BatchItem, 0, len(req.Items))
	for i, item := range req.Items {
		patch, err := item.patch()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("item %d: %v", i+1, err)})
			return
		}
		items = append(items, service.BatchItem{ServiceID: item.ServiceID, Patch: patch})
	}

	if strings.Contains(c.GetHeader("Accept"), "text/event-stream") {
		h.streamBatch(c, principal, items)
		return
	}

	var events []service.BatchEvent
	result, err := h.services.Batch.Apply(c.Request.Context(), principal, items, func(evt service.BatchEvent) {
		events = append(events, evt)
	})
	if err != nil && result == nil {
		h.handleError(c, err)
		return
	}

	resp := batchResponse{Result: result, Events: events}
	status := http.StatusOK
	if result.Failed != nil {
		status, resp.Failed = failure(result.Failed)
	}
	c.JSON(status, resp)
}

func (h *Handler) streamBatch(c *gin.Context, principal model.Principal, items []service.BatchItem) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	result, err := h.services.Batch.Apply(c.Request.Context(), principal, items, func(evt service.BatchEvent) {
		c.SSEvent(string(evt.Phase), evt)
		c.Writer.Flush()
	})
	switch {
	case err != nil && result == nil:
		_, code := classify(err)
		c.SSEvent("error", errorResponse{Error: err.Error(), Code: code})
	case result.Failed != nil:
		_, failed := failure(result.Failed)
		c.SSEvent("result", batchResponse{Result: result, Failed: failed})
	default:
		c.SSEvent("result", batchResponse{Result: result})
	}
	c.Writer.Flush()
}

func failure(batchErr *service.BatchError) (int, *batchFailure) {
	status, code := classify(batchErr.Err)
	return status, &batchFailure{
		Index:   batchErr.Index,
		ItemID:  batchErr.ItemID,
		Applied: batchErr.Applied,
		Message: batchErr.Err.Error(),
		Code:    code,
	}
}
