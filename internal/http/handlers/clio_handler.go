// Billing-system (Clio) HTTP handlers.
//
// Endpoints:
//   - GET  /clio/auth-url      (consent URL; /clio/auth is an alias)
//   - GET  /callback           (OAuth redirect target, outside the API base)
//   - GET  /clio/test          (connectivity check)
//   - POST /clio/push-entries  (sync pass, honours Idempotency-Key)
//   - GET  /clio/matters
//   - GET  /clio/runs          (sync history, paginated)
package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/legal-billing-backend/internal/domain"
	"github.com/tbourn/legal-billing-backend/internal/http/middleware"
	"github.com/tbourn/legal-billing-backend/internal/integrations/clio"
	"github.com/tbourn/legal-billing-backend/internal/services"
)

// HeaderIdempotentReplay marks a push response served from a recorded run.
const HeaderIdempotentReplay = "Idempotent-Replay"

// AuthURLResponse carries a provider consent URL.
type AuthURLResponse struct {
	AuthURL string `json:"auth_url" example:"https://app.clio.com/oauth/authorize?response_type=code&client_id=abc"`
}

// MattersResponse wraps the matters visible to the connected user.
type MattersResponse struct {
	Success bool             `json:"success"`
	Matters []map[string]any `json:"matters"`
}

// ListRunsResponse wraps a page of sync runs.
type ListRunsResponse struct {
	Runs       []domain.SyncRun `json:"runs"`
	Pagination Pagination       `json:"pagination"`
}

// ClioAuthURL godoc
// @ID          clioAuthURL
// @Summary     Billing system consent URL
// @Description Returns the URL the user must visit to authorize access to Clio.
// @Tags        Clio
// @Produce     json
// @Success     200  {object}  handlers.AuthURLResponse
// @Router      /clio/auth-url [get]
func (h *Handlers) ClioAuthURL(c *gin.Context) {
	ok(c, http.StatusOK, AuthURLResponse{AuthURL: h.creds.AuthorizationURL()})
}

// ClioCallback godoc
// @ID          clioCallback
// @Summary     OAuth callback for the billing system
// @Description Exchanges the authorization code and stores the credential, then
// @Description redirects to the frontend with clio_connected=true or clio_error=<reason>.
// @Description Nothing is stored when the provider reports an error or no code is given.
// @Tags        Clio
// @Param       code   query  string  false  "Authorization code"
// @Param       error  query  string  false  "Provider error"
// @Success     307  {string}  string  "Redirect to the frontend"
// @Router      /callback [get]
func (h *Handlers) ClioCallback(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	if perr := c.Query("error"); perr != "" {
		lg.Warn().Str("provider_error", perr).Msg("clio authorization denied")
		h.redirect(c, "clio_error", perr)
		return
	}
	code := c.Query("code")
	if code == "" {
		h.redirect(c, "clio_error", "no_code")
		return
	}

	if _, err := h.creds.Connect(c.Request.Context(), code); err != nil {
		lg.Error().Err(err).Msg("clio token exchange failed")
		h.redirect(c, "clio_error", callbackReason(err))
		return
	}
	lg.Info().Msg("clio credential stored")
	h.redirect(c, "clio_connected", "true")
}

// ClioTest godoc
// @ID          clioTest
// @Summary     Test the billing system connection
// @Description Calls the provider's who-am-i endpoint with the stored token. A missing
// @Description token or a failed call is reported in the body, not as an HTTP error.
// @Tags        Clio
// @Produce     json
// @Success     200  {object}  services.ConnectionStatus
// @Failure     500  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /clio/test [get]
func (h *Handlers) ClioTest(c *gin.Context) {
	st, err := h.conn.Test(c.Request.Context())
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, st)
}

// PushEntries godoc
// @ID          pushEntries
// @Summary     Push pending time entries
// @Description Submits one time entry per summarized, unpushed email. Per-record
// @Description failures are listed in errors and do not stop the batch. With an
// @Description Idempotency-Key, a retry within the key lifetime replays the recorded run.
// @Tags        Clio
// @Produce     json
// @Param       Idempotency-Key  header  string  false  "Client retry key"  example(push-2024-01-05-1)
// @Success     200  {object}  services.PushResult
// @Header      200  {string}  Idempotent-Replay  "true when the result was replayed"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid Idempotency-Key"
// @Failure     409  {object}  handlers.ErrorResponse  "Another pass is running"
// @Failure     500  {object}  handlers.ErrorResponse  "Store unavailable or malformed credential"
// @Router      /clio/push-entries [post]
func (h *Handlers) PushEntries(c *gin.Context) {
	key, _ := middleware.GetIdempotencyKey(c)
	res, err := h.sync.PushIdempotent(c.Request.Context(), key)
	if err != nil {
		failErr(c, err, ErrCodePushFailed)
		return
	}
	if res.Replayed {
		c.Header(HeaderIdempotentReplay, "true")
	}
	ok(c, http.StatusOK, res)
}

// ClioMatters godoc
// @ID          clioMatters
// @Summary     List matters
// @Tags        Clio
// @Produce     json
// @Success     200  {object}  handlers.MattersResponse
// @Failure     409  {object}  handlers.ErrorResponse  "No credential stored"
// @Failure     502  {object}  handlers.ErrorResponse  "Provider error"
// @Router      /clio/matters [get]
func (h *Handlers) ClioMatters(c *gin.Context) {
	ms, err := h.conn.Matters(c.Request.Context())
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	if ms == nil {
		ms = []map[string]any{}
	}
	ok(c, http.StatusOK, MattersResponse{Success: true, Matters: ms})
}

// ListRuns godoc
// @ID          listSyncRuns
// @Summary     Sync history (paginated)
// @Tags        Clio
// @Produce     json
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListRunsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /clio/runs [get]
func (h *Handlers) ListRuns(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.sync.Runs(c.Request.Context(), page, pageSize)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.SyncRun{}
	}
	ok(c, http.StatusOK, ListRunsResponse{Runs: items, Pagination: newPagination(page, pageSize, total)})
}

// redirect sends the browser back to the frontend with one status param.
func (h *Handlers) redirect(c *gin.Context, key, value string) {
	q := url.Values{}
	q.Set(key, value)
	c.Redirect(http.StatusTemporaryRedirect, strings.TrimRight(h.frontendURL, "/")+"/?"+q.Encode())
}

// callbackReason condenses a failed connect into a short redirect value.
// Provider bodies stay in the logs.
func callbackReason(err error) string {
	var (
		cfgErr *services.ConfigurationError
		tokErr *clio.TokenExchangeError
	)
	switch {
	case errors.As(err, &cfgErr):
		return ErrCodeConfiguration
	case errors.As(err, &tokErr):
		return ErrCodeTokenExchangeFailed
	default:
		return ErrCodeInternal
	}
}
