// Status, health and browser-extension handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/legal-billing-backend/internal/domain"
	"github.com/tbourn/legal-billing-backend/internal/http/middleware"
)

// StatusResponse reports which integrations hold a credential.
type StatusResponse struct {
	GmailConnected bool   `json:"gmail_connected"`
	ClioConnected  bool   `json:"clio_connected"`
	Status         string `json:"status" example:"healthy"`
	Message        string `json:"message,omitempty"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status" example:"healthy"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// ExtensionStatusResponse describes the extension API.
type ExtensionStatusResponse struct {
	Status    string            `json:"status" example:"active"`
	Message   string            `json:"message"`
	Endpoints map[string]string `json:"endpoints"`
}

// CaptureRequest is an email captured by the browser extension.
type CaptureRequest struct {
	ID        string     `json:"id"         binding:"required" example:"18c2f1a9e0b4d7c3"`
	ThreadID  string     `json:"thread_id"`
	Subject   string     `json:"subject"`
	Sender    string     `json:"sender"`
	Recipient string     `json:"recipient"`
	Body      string     `json:"body"`
	DateSent  *time.Time `json:"date_sent"`
}

// CaptureResponse acknowledges a captured email.
type CaptureResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	EmailID string `json:"email_id"`
	Created bool   `json:"created"`
}

// Status godoc
// @ID          status
// @Summary     Integration status
// @Description Reports whether mailbox and billing credentials are stored.
// @Tags        System
// @Produce     json
// @Success     200  {object}  handlers.StatusResponse
// @Router      /status [get]
func (h *Handlers) Status(c *gin.Context) {
	ctx := c.Request.Context()
	resp := StatusResponse{Status: "healthy"}

	gmailOK, err := h.mailbox.Connected(ctx)
	if err == nil {
		var cred *domain.Credential
		cred, err = h.creds.Current(ctx)
		resp.ClioConnected = cred != nil
	}
	resp.GmailConnected = gmailOK
	if err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Msg("status check failed")
		resp = StatusResponse{Status: "error", Message: err.Error()}
	}
	ok(c, http.StatusOK, resp)
}

// Health godoc
// @ID          health
// @Summary     Liveness probe
// @Tags        System
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Timestamp: h.now().UTC(),
	})
}

// Root returns a short service banner.
func (h *Handlers) Root(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{
		"message": h.serviceName + " API",
		"version": h.version,
		"health":  "/health",
		"status":  "/api/status",
	})
}

// ExtensionStatus godoc
// @ID          extensionStatus
// @Summary     Extension API status
// @Tags        Extension
// @Produce     json
// @Success     200  {object}  handlers.ExtensionStatusResponse
// @Router      /extension/status [get]
func (h *Handlers) ExtensionStatus(c *gin.Context) {
	ok(c, http.StatusOK, ExtensionStatusResponse{
		Status:  "active",
		Message: "Extension API is running",
		Endpoints: map[string]string{
			"capture": "/api/extension/capture",
			"status":  "/api/extension/status",
		},
	})
}

// CaptureEmail godoc
// @ID          captureEmail
// @Summary     Store an email captured by the extension
// @Description Upserts by message id. A known id leaves the stored email untouched.
// @Tags        Extension
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.CaptureRequest  true  "Captured email"
// @Success     201  {object}  handlers.CaptureResponse  "Stored"
// @Success     200  {object}  handlers.CaptureResponse  "Already stored"
// @Failure     400  {object}  handlers.ErrorResponse    "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse    "Internal error"
// @Router      /extension/capture [post]
func (h *Handlers) CaptureEmail(c *gin.Context) {
	var req CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id required")
		return
	}

	e, created, err := h.mailbox.Capture(c.Request.Context(), domain.InboundEmail{
		ID:        req.ID,
		ThreadID:  req.ThreadID,
		Subject:   req.Subject,
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Body:      req.Body,
		DateSent:  req.DateSent,
	})
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}

	status, msg := http.StatusOK, "Email already captured"
	if created {
		status, msg = http.StatusCreated, "Email captured successfully"
	}
	ok(c, status, CaptureResponse{Success: true, Message: msg, EmailID: e.GmailID, Created: created})
}
