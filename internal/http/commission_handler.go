package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/service"
)

func (h *Handler) computeCommissions(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	entries, err := h.services.Commissions.RecomputeForService(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) listServiceCommissions(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	entries, err := h.services.Commissions.ListServiceEntries(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) listOperatorCommissions(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	liquidationID, ok := queryUUID(c, "liquidation_id")
	if !ok {
		return
	}
	entries, err := h.services.Commissions.ListOperatorEntries(c.Request.Context(), id, liquidationID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

type generateLiquidationRequest struct {
	OperatorID  uuid.UUID `json:"operator_id"`
	PeriodStart string    `json:"period_start" binding:"required"`
	PeriodEnd   string    `json:"period_end" binding:"required"`
}

func (h *Handler) generateLiquidation(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req generateLiquidationRequest
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

	liquidation, err := h.services.Commissions.GenerateLiquidation(c.Request.Context(), service.GenerateLiquidationInput{
		OperatorID:  req.OperatorID,
		PeriodStart: start,
		PeriodEnd:   end,
		Principal:   principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, liquidation)
}

func (h *Handler) listLiquidations(c *gin.Context) {
	operatorID, ok := queryUUID(c, "operator_id")
	if !ok {
		return
	}
	filter := model.LiquidationFilter{OperatorID: operatorID}
	if raw := queryString(c, "status"); raw != nil {
		status := model.LiquidationStatus(*raw)
		filter.Status = &status
	}
	liquidations, err := h.services.Commissions.ListLiquidations(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liquidations": liquidations})
}

func (h *Handler) getLiquidation(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	liquidation, err := h.services.Commissions.GetLiquidation(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	entries, err := h.services.Commissions.ListOperatorEntries(c.Request.Context(), liquidation.OperatorID, &liquidation.ID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liquidation": liquidation, "entries": entries})
}

func (h *Handler) approveLiquidation(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	liquidation, err := h.services.Commissions.ApproveLiquidation(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, liquidation)
}

func (h *Handler) payLiquidation(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	liquidation, err := h.services.Commissions.MarkLiquidationPaid(c.Request.Context(), principal, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, liquidation)
}
