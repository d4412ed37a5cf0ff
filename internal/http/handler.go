package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nurpe/towing-settlement/internal/excel"
	"github.com/nurpe/towing-settlement/internal/http/middleware"
	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/pdf"
	"github.com/nurpe/towing-settlement/internal/service"
)

type Services struct {
	Workflow    *service.Workflow
	Batch       *service.BatchEngine
	Settlement  *service.Settlement
	Reconciler  *service.Reconciler
	Commissions *service.CommissionLedger
	Excel       *excel.Generator
	PDF         *pdf.Generator
}

type Handler struct {
	services Services
	log      zerolog.Logger
}

func NewHandler(services Services, log zerolog.Logger) *Handler {
	return &Handler{services: services, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/services", h.createService)
	protected.GET("/services", h.listServices)
	protected.GET("/services/:id", h.getService)
	protected.POST("/services/:id/transition", h.transitionService)
	protected.POST("/services/batch", h.applyBatch)
	protected.POST("/services/:id/commissions", h.computeCommissions)
	protected.GET("/services/:id/commissions", h.listServiceCommissions)

	protected.POST("/closures", h.createClosure)
	protected.GET("/closures", h.listClosures)
	protected.GET("/closures/:id", h.getClosure)
	protected.POST("/closures/:id/approve", h.approveClosure)
	protected.DELETE("/closures/:id", h.discardClosure)
	protected.GET("/closures/:id/export", h.exportClosure)
	protected.POST("/closures/:id/invoice", h.createInvoice)

	protected.GET("/invoices", h.listInvoices)
	protected.POST("/invoices/mark-paid", h.markInvoicesPaid)
	protected.GET("/invoices/:id", h.getInvoice)
	protected.GET("/invoices/:id/pdf", h.invoicePDF)
	protected.POST("/invoices/:id/send", h.sendInvoice)
	protected.POST("/invoices/:id/cancel", h.cancelInvoice)

	protected.POST("/payments", h.registerPayment)
	protected.GET("/payments", h.listPayments)
	protected.GET("/payments/:id", h.getPayment)
	protected.POST("/payments/:id/confirm", h.confirmPayment)

	protected.POST("/bank-transactions", h.importTransactions)
	protected.POST("/bank-transactions/import", h.importStatement)
	protected.GET("/bank-transactions", h.listBankTransactions)
	protected.GET("/bank-transactions/:id", h.getBankTransaction)
	protected.POST("/bank-transactions/:id/match", h.matchTransaction)
	protected.POST("/bank-transactions/:id/unmatch", h.unmatchTransaction)

	protected.GET("/operators/:id/commissions", h.listOperatorCommissions)
	protected.POST("/liquidations", h.generateLiquidation)
	protected.GET("/liquidations", h.listLiquidations)
	protected.GET("/liquidations/:id", h.getLiquidation)
	protected.POST("/liquidations/:id/approve", h.approveLiquidation)
	protected.POST("/liquidations/:id/pay", h.payLiquidation)
}

func (h *Handler) principal(c *gin.Context) (model.Principal, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
	}
	return principal, ok
}

func (h *Handler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps a service error to its HTTP status and a stable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, service.ErrAlreadyMatched):
		return http.StatusConflict, "already_matched"
	case errors.Is(err, service.ErrAmountMismatch):
		return http.StatusConflict, "amount_mismatch"
	case errors.Is(err, service.ErrClosureNotApproved):
		return http.StatusConflict, "closure_not_approved"
	case errors.Is(err, service.ErrClosureAlreadyInvoiced):
		return http.StatusConflict, "closure_already_invoiced"
	case errors.Is(err, service.ErrConcurrentUpdate):
		return http.StatusConflict, "concurrent_update"
	case errors.Is(err, service.ErrNoEligibleServices):
		return http.StatusUnprocessableEntity, "no_eligible_services"
	case errors.Is(err, service.ErrNoEntriesInPeriod):
		return http.StatusUnprocessableEntity, "no_entries_in_period"
	case errors.Is(err, service.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable, "dependency_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, errorResponse{Error: "internal error", Code: code})
		return
	}
	if status == http.StatusServiceUnavailable {
		h.log.Warn().Err(err).Str("path", c.FullPath()).Msg("dependency unavailable")
	}
	c.JSON(status, errorResponse{Error: err.Error(), Code: code})
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}

// optionalDate parses raw when present.
func optionalDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parsed, err := parseDate(raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func queryUUID(c *gin.Context, key string) (*uuid.UUID, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
		return nil, false
	}
	return &id, true
}

func queryString(c *gin.Context, key string) *string {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	return &raw
}
