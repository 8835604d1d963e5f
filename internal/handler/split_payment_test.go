package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitpay/internal/clock"
	"splitpay/internal/domain"
	"splitpay/internal/handler"
	"splitpay/internal/repository/memory"
	"splitpay/internal/service"
	"splitpay/internal/tests"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, withArchive bool) (*gin.Engine, *tests.MockTerminal) {
	t.Helper()

	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	terminal := tests.NewMockTerminal()
	opts := []service.SplitPaymentOption{
		service.WithSessionLocker(memory.NewSessionLocker(clk)),
		service.WithIDGenerator(func() string { return "split-1" }),
	}
	if withArchive {
		opts = append(opts, service.WithArchive(tests.NewMockArchive()))
	}
	svc := service.NewSplitPaymentService(
		memory.NewProgressStore(clk),
		service.NewPartInitiator(terminal),
		service.NewStatusPoller(terminal, clk),
		clk,
		opts...,
	)
	h := handler.NewSplitPaymentHandler(svc)

	r := gin.New()
	r.POST("/v1/split-payments", h.CreateSplitPayment)
	r.GET("/v1/split-payments/reconciliation", h.ListNeedingVoid)
	r.GET("/v1/split-payments/:id", h.GetSplitPayment)
	r.DELETE("/v1/split-payments/:id", h.DeleteSplitPayment)
	return r, terminal
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const twoPartBody = `{
	"total": {"total": "100.00", "standard_base": 84.03, "standard_tax": "15.97"},
	"parts": [
		{"payment_method": "card", "percentage": 50},
		{"payment_method": "mobile_wallet", "percentage": "50", "label": "guest"}
	],
	"reference": 100,
	"preceding_reference": 99,
	"session_id": "session-1",
	"poll_interval_ms": 10,
	"poll_max_attempts": 3
}`

func TestCreateSplitPayment_Completed(t *testing.T) {
	r, terminal := newRouter(t, false)
	terminal.QueueSale(tests.Accepted("tx-1"), tests.Accepted("tx-2"))
	terminal.QueueStatus("tx-1", tests.Status("APPROVED"))
	terminal.QueueStatus("tx-2", tests.Status("APPROVED"))

	w := do(r, http.MethodPost, "/v1/split-payments", twoPartBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var progress domain.SplitPaymentProgress
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &progress))
	assert.Equal(t, domain.SplitStatusCompleted, progress.Status)
	assert.Equal(t, "guest", progress.Parts[1].Label)
	assert.Equal(t, "50.00", progress.Parts[0].Amount.Total.StringFixed(2))
	assert.Contains(t, w.Body.String(), `"standard_base":"42.02"`)

	get := do(r, http.MethodGet, "/v1/split-payments/split-1?session_id=session-1", "")
	require.Equal(t, http.StatusOK, get.Code)
	assert.JSONEq(t, w.Body.String(), get.Body.String())

	del := do(r, http.MethodDelete, "/v1/split-payments/split-1", "")
	assert.Equal(t, http.StatusNoContent, del.Code)

	gone := do(r, http.MethodGet, "/v1/split-payments/split-1", "")
	assert.Equal(t, http.StatusNotFound, gone.Code)
}

func TestCreateSplitPayment_FailedSplitIsStillOK(t *testing.T) {
	r, terminal := newRouter(t, false)
	terminal.QueueSale(tests.Accepted("tx-1"), tests.Declined("Card expired"))
	terminal.QueueStatus("tx-1", tests.Status("APPROVED"))

	w := do(r, http.MethodPost, "/v1/split-payments", twoPartBody)
	require.Equal(t, http.StatusOK, w.Code)

	var progress domain.SplitPaymentProgress
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &progress))
	assert.Equal(t, domain.SplitStatusFailed, progress.Status)
	assert.Equal(t, "initiation failed: Card expired", progress.Parts[1].Error)
}

func TestCreateSplitPayment_BadRequests(t *testing.T) {
	r, terminal := newRouter(t, false)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{`, "invalid request body"},
		{"sum 95", `{"total":{"total":10},"parts":[{"payment_method":"card","percentage":95}],"reference":1,"session_id":"s"}`, "95"},
		{"no session", `{"total":{"total":10},"parts":[{"payment_method":"card","percentage":100}],"reference":1}`, "session_id"},
		{"unpaired tax", `{"total":{"total":10,"reduced_base":9},"parts":[{"payment_method":"card","percentage":100}],"reference":1,"session_id":"s"}`, "reduced_base"},
		{"negative poll", `{"total":{"total":10},"parts":[{"payment_method":"card","percentage":100}],"reference":1,"session_id":"s","poll_max_attempts":-1}`, "poll"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/v1/split-payments", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp handler.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Contains(t, resp.Error, tc.want)
		})
	}
	assert.Empty(t, terminal.Calls())
}

func TestGetSplitPayment_WrongSession(t *testing.T) {
	r, terminal := newRouter(t, false)
	terminal.QueueSale(tests.Accepted("tx-1"), tests.Accepted("tx-2"))
	terminal.QueueStatus("tx-1", tests.Status("APPROVED"))
	terminal.QueueStatus("tx-2", tests.Status("APPROVED"))
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/v1/split-payments", twoPartBody).Code)

	w := do(r, http.MethodGet, "/v1/split-payments/split-1?session_id=someone-else", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListNeedingVoid(t *testing.T) {
	r, terminal := newRouter(t, true)
	terminal.QueueSale(tests.Accepted("tx-1"), tests.Accepted("tx-2"))
	terminal.QueueStatus("tx-1", tests.Status("APPROVED"))
	terminal.QueueStatus("tx-2", tests.Status("DECLINED"))
	require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/v1/split-payments", twoPartBody).Code)

	w := do(r, http.MethodGet, "/v1/split-payments/reconciliation?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp handler.ReconciliationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "split-1", resp.SplitPayments[0].ID)

	bad := do(r, http.MethodGet, "/v1/split-payments/reconciliation?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestListNeedingVoid_ArchiveDisabled(t *testing.T) {
	r, _ := newRouter(t, false)

	w := do(r, http.MethodGet, "/v1/split-payments/reconciliation", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
