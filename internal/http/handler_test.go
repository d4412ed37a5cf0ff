package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/towing-settlement/internal/auth"
	"github.com/nurpe/towing-settlement/internal/config"
	"github.com/nurpe/towing-settlement/internal/excel"
	"github.com/nurpe/towing-settlement/internal/http/middleware"
	"github.com/nurpe/towing-settlement/internal/model"
	"github.com/nurpe/towing-settlement/internal/pdf"
	"github.com/nurpe/towing-settlement/internal/repository/memory"
	"github.com/nurpe/towing-settlement/internal/service"
)

const testSecret = "test-secret"

var (
	orgID      = uuid.New()
	dispatcher = model.Principal{UserID: uuid.New(), OrgID: orgID, Role: model.UserRoleDispatcher}
	finance    = model.Principal{UserID: uuid.New(), OrgID: orgID, Role: model.UserRoleFinance}
	operator   = model.Principal{UserID: uuid.New(), OrgID: orgID, Role: model.UserRoleOperator}
)

type testServer struct {
	router *gin.Engine
	parser *auth.Parser
	client model.Client
	terms  model.PaymentTerms
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	settings := config.SettlementConfig{
		DefaultTaxRate:  decimal.NewFromInt(19),
		Currency:        "CLP",
		ServicePrefix:   "SRV",
		ClosurePrefix:   "CB",
		InvoicePrefix:   "FAC",
		BulkParallelism: 2,
	}
	cfg := &config.Config{Environment: "test", Settlement: settings}

	store := memory.New()
	client := model.Client{ID: uuid.New(), Name: "Constructora Andes", TaxID: "76.123.456-7"}
	terms := model.PaymentTerms{ID: uuid.New(), Name: "30 days", Days: 30}
	store.PutClient(client)
	store.PutPaymentTerms(terms)

	excelGenerator := excel.NewGenerator()
	workflow := service.NewWorkflow(store, nil, settings)
	handler := NewHandler(Services{
		Workflow:    workflow,
		Batch:       service.NewBatchEngine(workflow),
		Settlement:  service.NewSettlement(store, nil, settings),
		Reconciler:  service.NewReconciler(store, nil, settings, excelGenerator),
		Commissions: service.NewCommissionLedger(store, nil, settings),
		Excel:       excelGenerator,
		PDF:         pdf.NewGenerator(),
	}, zerolog.Nop())

	parser := auth.NewParser(testSecret)
	return &testServer{
		router: NewRouter(handler, middleware.Auth(parser), cfg),
		parser: parser,
		client: client,
		terms:  terms,
	}
}

func (s *testServer) do(t *testing.T, method, path string, principal *model.Principal, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if principal != nil {
		token, err := s.parser.Issue(*principal, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func today() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

func (s *testServer) createService(t *testing.T, subtotal, total int64) model.Service {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/services", &dispatcher, gin.H{
		"client_id":      s.client.ID,
		"scheduled_date": today().Format("2006-01-02"),
		"subtotal":       subtotal,
		"total":          total,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Service](t, rec)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/services", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/services", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/services", &operator, gin.H{
		"client_id":      s.client.ID,
		"scheduled_date": today().Format("2006-01-02"),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "permission_denied", decode[errorResponse](t, rec).Code)

	rec = s.do(t, http.MethodGet, "/services/not-a-uuid", &dispatcher, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/services/"+uuid.NewString(), &dispatcher, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[errorResponse](t, rec).Code)

	created := s.createService(t, 100000, 119000)
	rec = s.do(t, http.MethodPost, "/services/"+created.ID.String()+"/transition", &dispatcher, gin.H{"status": "cancelled"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/services/"+created.ID.String()+"/transition", &dispatcher, gin.H{"status": "dispatched"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", decode[errorResponse](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/closures", &finance, gin.H{
		"client_id":    s.client.ID,
		"period_start": today().Format("2006-01-02"),
		"period_end":   today().Format("2006-01-02"),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "no_eligible_services", decode[errorResponse](t, rec).Code)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{service.ErrAlreadyMatched, http.StatusConflict, "already_matched"},
		{service.ErrAmountMismatch, http.StatusConflict, "amount_mismatch"},
		{service.ErrClosureNotApproved, http.StatusConflict, "closure_not_approved"},
		{service.ErrConcurrentUpdate, http.StatusConflict, "concurrent_update"},
		{service.ErrNoEntriesInPeriod, http.StatusUnprocessableEntity, "no_entries_in_period"},
		{service.ErrDependencyUnavailable, http.StatusServiceUnavailable, "dependency_unavailable"},
		{assert.AnError, http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, code := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.code)
		assert.Equal(t, tc.code, code)
	}
}

func TestBatchFailureBody(t *testing.T) {
	s := newTestServer(t)
	first := s.createService(t, 100000, 119000)
	missing := uuid.New()

	rec := s.do(t, http.MethodPost, "/services/batch", &dispatcher, gin.H{
		"items": []gin.H{
			{"service_id": first.ID, "type": "status", "status": "dispatched"},
			{"service_id": missing, "type": "priority", "priority": "high"},
		},
	})
	require.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())

	resp := decode[batchResponse](t, rec)
	require.NotNil(t, resp.Failed)
	assert.Equal(t, 2, resp.Failed.Index)
	assert.Equal(t, missing, resp.Failed.ItemID)
	assert.Equal(t, 1, resp.Failed.Applied)
	assert.Equal(t, "not_found", resp.Failed.Code)
	assert.Equal(t, 1, resp.Result.Applied)
	require.NotEmpty(t, resp.Events)
	assert.Equal(t, service.BatchPhaseStart, resp.Events[0].Phase)
	assert.Equal(t, service.BatchPhaseError, resp.Events[len(resp.Events)-1].Phase)

	rec = s.do(t, http.MethodGet, "/services/"+first.ID.String(), &dispatcher, nil)
	assert.Equal(t, model.ServiceStatusDispatched, decode[model.Service](t, rec).Status)
}

func TestBatchUnknownPatchType(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/services/batch", &dispatcher, gin.H{
		"items": []gin.H{{"service_id": uuid.New(), "type": "teleport"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchStream(t *testing.T) {
	s := newTestServer(t)
	created := s.createService(t, 100000, 119000)

	raw, err := json.Marshal(gin.H{
		"items": []gin.H{{"service_id": created.ID, "type": "status", "status": "completed"}},
	})
	require.NoError(t, err)
	token, err := s.parser.Issue(dispatcher, jwt.RegisteredClaims{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/services/batch", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")
	for _, name := range []string{"event:start", "event:progress", "event:complete", "event:result"} {
		assert.Contains(t, body, name)
	}
	assert.Less(t, strings.Index(body, "event:start"), strings.Index(body, "event:result"))
}

func TestSettlementFlow(t *testing.T) {
	s := newTestServer(t)
	created := s.createService(t, 150000, 178500)
	rec := s.do(t, http.MethodPost, "/services/"+created.ID.String()+"/transition", &dispatcher, gin.H{"status": "completed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/closures", &finance, gin.H{
		"client_id":    s.client.ID,
		"period_start": today().AddDate(0, 0, -1).Format("2006-01-02"),
		"period_end":   today().AddDate(0, 0, 1).Format("2006-01-02"),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	closure := decode[model.BillingClosure](t, rec)
	assert.True(t, decimal.NewFromInt(28500).Equal(closure.TaxAmount))
	assert.True(t, decimal.NewFromInt(178500).Equal(closure.Total))

	closurePath := "/closures/" + closure.ID.String()
	rec = s.do(t, http.MethodPost, closurePath+"/invoice", &finance, gin.H{
		"fiscal_folio":     "DTE-1",
		"payment_terms_id": s.terms.ID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "closure_not_approved", decode[errorResponse](t, rec).Code)

	rec = s.do(t, http.MethodPost, closurePath+"/approve", &finance, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, closurePath+"/export", &finance, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), closure.Folio+".xlsx")

	rec = s.do(t, http.MethodPost, closurePath+"/invoice", &finance, gin.H{
		"fiscal_folio":     "DTE-1",
		"payment_terms_id": s.terms.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	invoice := decode[model.Invoice](t, rec)
	assert.True(t, decimal.NewFromInt(178500).Equal(invoice.BalanceDue))

	invoicePath := "/invoices/" + invoice.ID.String()
	rec = s.do(t, http.MethodPost, invoicePath+"/send", &finance, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, invoicePath+"/pdf", &finance, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = s.do(t, http.MethodPost, "/payments", &finance, gin.H{
		"client_id":  s.client.ID,
		"invoice_id": invoice.ID,
		"amount":     178500,
		"confirm":    true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	payment := decode[model.Payment](t, rec)
	assert.Equal(t, model.PaymentStatusConfirmed, payment.Status)

	rec = s.do(t, http.MethodGet, invoicePath, &finance, nil)
	paid := decode[model.Invoice](t, rec)
	assert.Equal(t, model.InvoiceStatusPaid, paid.Status)
	assert.True(t, paid.BalanceDue.IsZero())

	rec = s.do(t, http.MethodPost, "/bank-transactions", &finance, gin.H{
		"transactions": []gin.H{
			{"description": "Transferencia Constructora Andes", "amount": 178500, "transaction_date": today().Format("2006-01-02")},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	imported := decode[struct {
		Transactions []model.BankTransaction `json:"transactions"`
	}](t, rec)
	require.Len(t, imported.Transactions, 1)

	matchPath := "/bank-transactions/" + imported.Transactions[0].ID.String() + "/match"
	rec = s.do(t, http.MethodPost, matchPath, &finance, gin.H{"payment_id": payment.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, matchPath, &finance, gin.H{"payment_id": payment.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_matched", decode[errorResponse](t, rec).Code)

	rec = s.do(t, http.MethodGet, "/services/"+created.ID.String(), &finance, nil)
	assert.Equal(t, model.ServiceStatusInvoiced, decode[model.Service](t, rec).Status)
}

func TestMarkInvoicesPaidReportsPerInvoiceErrors(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/invoices/mark-paid", &finance, gin.H{"invoice_ids": []uuid.UUID{uuid.New()}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[struct {
		Outcomes []markPaidOutcome `json:"outcomes"`
		Failed   int               `json:"failed"`
	}](t, rec)
	require.Len(t, resp.Outcomes, 1)
	assert.Equal(t, 1, resp.Failed)
	assert.Equal(t, "not_found", resp.Outcomes[0].Code)
}
