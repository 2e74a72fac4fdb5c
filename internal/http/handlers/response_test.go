package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"

	"github.com/tbourn/legal-billing-backend/internal/integrations/clio"
	"github.com/tbourn/legal-billing-backend/internal/services"
)

func Test_fail_500_LogsAndBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-500")
		c.Set("logger", &logger)
		c.Next()
	})
	r.POST("/push", func(c *gin.Context) {
		fail(c, http.StatusInternalServerError, ErrCodePushFailed, "database is locked")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/push", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.RequestID != "rid-500" || resp.Code != ErrCodePushFailed || resp.Message != "database is locked" {
		t.Fatalf("unexpected body: %+v", resp)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error log, got: %s", buf.String())
	}
}

func Test_failErr_Mapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"config", &services.ConfigurationError{Setting: "OPENAI_API_KEY"}, http.StatusServiceUnavailable, ErrCodeConfiguration},
		{"token exchange", &clio.TokenExchangeError{StatusCode: 400, Body: "invalid_grant"}, http.StatusBadRequest, ErrCodeTokenExchangeFailed},
		{"provider", fmt.Errorf("matters: %w", &clio.ProviderError{StatusCode: 503}), http.StatusBadGateway, ErrCodeProvider},
		{"gmail api", fmt.Errorf("gmail: list messages: %w", &googleapi.Error{Code: 401}), http.StatusBadGateway, ErrCodeProvider},
		{"not connected", services.ErrNotConnected, http.StatusConflict, ErrCodeNotConnected},
		{"in progress", services.ErrSyncInProgress, http.StatusConflict, ErrCodeSyncInProgress},
		{"pushed", services.ErrAlreadyPushed, http.StatusConflict, ErrCodeAlreadyPushed},
		{"missing", services.ErrEmailNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"invalid summary", services.ErrInvalidSummary, http.StatusBadRequest, ErrCodeBadRequest},
		{"invalid email", services.ErrInvalidEmail, http.StatusBadRequest, ErrCodeBadRequest},
		{"other", errors.New("disk I/O error"), http.StatusInternalServerError, ErrCodeListFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", func(c *gin.Context) { failErr(c, tc.err, ErrCodeListFailed) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			if w.Code != tc.status {
				t.Fatalf("status=%d want %d", w.Code, tc.status)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("json: %v", err)
			}
			if resp.Code != tc.code || resp.Message != tc.err.Error() {
				t.Fatalf("unexpected body: %+v", resp)
			}
		})
	}
}
