// Package handlers provides HTTP handler implementations for the public API.
//
// This file holds the response helpers shared by every endpoint: the error
// envelope, JSON success writes and the translation of service errors into
// status codes.
//
// Example error response:
//
//	HTTP/1.1 409 Conflict
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "already_pushed",
//	  "message": "email already pushed to billing"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"google.golang.org/api/googleapi"

	"github.com/tbourn/legal-billing-backend/internal/http/middleware"
	"github.com/tbourn/legal-billing-backend/internal/integrations/clio"
	"github.com/tbourn/legal-billing-backend/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_connected"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"not connected"`
}

// fail aborts the request with a structured error. Server errors are logged
// with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail for the router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr maps a service error onto the envelope. Errors it does not know
// become a 500 with fallback as code and the error text as message.
func failErr(c *gin.Context, err error, fallback string) {
	var (
		cfgErr  *services.ConfigurationError
		tokErr  *clio.TokenExchangeError
		provErr *clio.ProviderError
		gErr    *googleapi.Error
	)
	switch {
	case errors.As(err, &cfgErr):
		fail(c, http.StatusServiceUnavailable, ErrCodeConfiguration, err.Error())
	case errors.As(err, &tokErr):
		fail(c, http.StatusBadRequest, ErrCodeTokenExchangeFailed, err.Error())
	case errors.As(err, &provErr), errors.As(err, &gErr):
		fail(c, http.StatusBadGateway, ErrCodeProvider, err.Error())
	case errors.Is(err, services.ErrNotConnected):
		fail(c, http.StatusConflict, ErrCodeNotConnected, err.Error())
	case errors.Is(err, services.ErrSyncInProgress):
		fail(c, http.StatusConflict, ErrCodeSyncInProgress, err.Error())
	case errors.Is(err, services.ErrAlreadyPushed):
		fail(c, http.StatusConflict, ErrCodeAlreadyPushed, err.Error())
	case errors.Is(err, services.ErrEmailNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidSummary), errors.Is(err, services.ErrInvalidEmail):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	default:
		fail(c, http.StatusInternalServerError, fallback, err.Error())
	}
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
