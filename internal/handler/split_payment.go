package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"splitpay/internal/domain"
	"splitpay/internal/service"
)

// SplitPaymentHandler handles HTTP requests for split payments.
type SplitPaymentHandler struct {
	splitService *service.SplitPaymentService
}

// NewSplitPaymentHandler creates a new SplitPaymentHandler.
func NewSplitPaymentHandler(splitService *service.SplitPaymentService) *SplitPaymentHandler {
	return &SplitPaymentHandler{splitService: splitService}
}

// CreateSplitPaymentRequest is the HTTP request body for a split payment.
type CreateSplitPaymentRequest struct {
	Total              domain.TaxAmount   `json:"total"`
	Parts              []domain.SplitPart `json:"parts"`
	Reference          int64              `json:"reference"`
	PrecedingReference int64              `json:"preceding_reference"`
	SessionID          string             `json:"session_id"`
	PollIntervalMS     int64              `json:"poll_interval_ms"`
	PollMaxAttempts    int                `json:"poll_max_attempts"`
	TerminalID         string             `json:"terminal_id"`
	StationID          string             `json:"station_id"`
	CashierID          string             `json:"cashier_id"`
	PrintReceipt       *bool              `json:"print_receipt"`
}

// ReconciliationResponse lists split payments that need a manual void.
type ReconciliationResponse struct {
	SplitPayments []*domain.SplitPaymentProgress `json:"split_payments"`
	Count         int                            `json:"count"`
}

// CreateSplitPayment handles POST /v1/split-payments. It blocks until every
// part has an outcome and answers with the final progress.
func (h *SplitPaymentHandler) CreateSplitPayment(c *gin.Context) {
	var req CreateSplitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	if req.PollIntervalMS < 0 || req.PollMaxAttempts < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "poll_interval_ms and poll_max_attempts must not be negative"})
		return
	}

	progress, err := h.splitService.Process(c.Request.Context(), service.SplitPaymentRequest{
		Total:              req.Total,
		Parts:              req.Parts,
		Reference:          req.Reference,
		PrecedingReference: req.PrecedingReference,
		SessionID:          req.SessionID,
		PollInterval:       time.Duration(req.PollIntervalMS) * time.Millisecond,
		PollMaxAttempts:    req.PollMaxAttempts,
		TerminalID:         req.TerminalID,
		StationID:          req.StationID,
		CashierID:          req.CashierID,
		PrintReceipt:       req.PrintReceipt,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, progress)
}

// GetSplitPayment handles GET /v1/split-payments/:id
func (h *SplitPaymentHandler) GetSplitPayment(c *gin.Context) {
	progress, err := h.splitService.GetProgress(c.Request.Context(), c.Param("id"), c.Query("session_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, progress)
}

// DeleteSplitPayment handles DELETE /v1/split-payments/:id
func (h *SplitPaymentHandler) DeleteSplitPayment(c *gin.Context) {
	if err := h.splitService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListNeedingVoid handles GET /v1/split-payments/reconciliation
func (h *SplitPaymentHandler) ListNeedingVoid(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	splits, err := h.splitService.ListNeedingVoid(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if splits == nil {
		splits = []*domain.SplitPaymentProgress{}
	}

	respondJSON(c, http.StatusOK, ReconciliationResponse{SplitPayments: splits, Count: len(splits)})
}
