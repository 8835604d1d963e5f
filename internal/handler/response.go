package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"splitpay/internal/domain"
	"splitpay/internal/repository"
	"splitpay/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	var validationErr *service.ValidationError

	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.As(err, &validationErr),
		errors.Is(err, service.ErrInvalidSplitID),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrUnpairedTaxField):
		return http.StatusBadRequest

	// Conflict errors
	case errors.Is(err, service.ErrSessionBusy),
		errors.Is(err, service.ErrSplitInProgress),
		errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict

	// Service unavailable
	case errors.Is(err, service.ErrArchiveDisabled):
		return http.StatusServiceUnavailable

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}
