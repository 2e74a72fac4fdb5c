// Mailbox (Gmail) HTTP handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/legal-billing-backend/internal/domain"
	"github.com/tbourn/legal-billing-backend/internal/http/middleware"
	"github.com/tbourn/legal-billing-backend/internal/services"
	"github.com/tbourn/legal-billing-backend/internal/utils"
)

// EmailView is an email as listed by the mailbox endpoints. ID is the
// mailbox message id.
type EmailView struct {
	ID                 string     `json:"id"`
	Subject            string     `json:"subject"`
	Sender             string     `json:"sender"`
	Recipient          string     `json:"recipient"`
	Body               string     `json:"body"`
	DateSent           *time.Time `json:"date_sent"`
	Summary            *string    `json:"summary"`
	BillingHours       *float64   `json:"billing_hours"`
	BillingDescription *string    `json:"billing_description"`
	PushedToClio       bool       `json:"pushed_to_clio"`
}

// ImportResponse reports one mailbox import.
type ImportResponse struct {
	Success       bool        `json:"success"`
	EmailsFetched int         `json:"emails_fetched"`
	NewEmails     int         `json:"new_emails"`
	Emails        []EmailView `json:"emails"`
}

// StoredEmailsResponse wraps every stored email.
type StoredEmailsResponse struct {
	Success bool        `json:"success"`
	Emails  []EmailView `json:"emails"`
}

func toEmailView(e domain.Email) EmailView {
	return EmailView{
		ID:                 e.GmailID,
		Subject:            e.Subject,
		Sender:             e.Sender,
		Recipient:          e.Recipient,
		Body:               e.Body,
		DateSent:           e.DateSent,
		Summary:            e.Summary,
		BillingHours:       e.BillingHours,
		BillingDescription: e.BillingDescription,
		PushedToClio:       e.PushedToClio,
	}
}

func toEmailViews(es []domain.Email) []EmailView {
	out := make([]EmailView, 0, len(es))
	for _, e := range es {
		out = append(out, toEmailView(e))
	}
	return out
}

// GmailAuthURL godoc
// @ID          gmailAuthURL
// @Summary     Mailbox consent URL
// @Tags        Gmail
// @Produce     json
// @Success     200  {object}  handlers.AuthURLResponse
// @Failure     503  {object}  handlers.ErrorResponse  "Client secret not configured"
// @Router      /gmail/auth-url [get]
func (h *Handlers) GmailAuthURL(c *gin.Context) {
	u, err := h.mailbox.AuthURL()
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, AuthURLResponse{AuthURL: u})
}

// GmailCallback godoc
// @ID          gmailCallback
// @Summary     OAuth callback for the mailbox
// @Description Stores the mailbox token, then redirects to the frontend with
// @Description gmail_connected=true or gmail_error=<reason>.
// @Tags        Gmail
// @Param       code   query  string  false  "Authorization code"
// @Param       error  query  string  false  "Provider error"
// @Success     307  {string}  string  "Redirect to the frontend"
// @Router      /gmail/callback [get]
func (h *Handlers) GmailCallback(c *gin.Context) {
	lg := middleware.LoggerFrom(c)

	if perr := c.Query("error"); perr != "" {
		lg.Warn().Str("provider_error", perr).Msg("gmail authorization denied")
		h.redirect(c, "gmail_error", perr)
		return
	}
	code := c.Query("code")
	if code == "" {
		h.redirect(c, "gmail_error", "no_code")
		return
	}
	if err := h.mailbox.Connect(c.Request.Context(), code); err != nil {
		lg.Error().Err(err).Msg("gmail token exchange failed")
		h.redirect(c, "gmail_error", callbackReason(err))
		return
	}
	h.redirect(c, "gmail_connected", "true")
}

// FetchEmails godoc
// @ID          fetchEmails
// @Summary     Import recent emails
// @Description Fetches messages from the last days_back days and stores the ones not
// @Description seen before. Already stored messages are returned unchanged.
// @Tags        Gmail
// @Produce     json
// @Param       days_back    query  int  false  "Days to look back"     minimum(1) default(7)
// @Param       max_results  query  int  false  "Messages to fetch"     minimum(1) maximum(500) default(100)
// @Success     200  {object}  handlers.ImportResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Mailbox not connected"
// @Failure     502  {object}  handlers.ErrorResponse  "Mailbox API error"
// @Failure     503  {object}  handlers.ErrorResponse  "Client secret not configured"
// @Router      /gmail/emails [get]
func (h *Handlers) FetchEmails(c *gin.Context) {
	days := utils.ParseIntOr(c.Query("days_back"), 0)
	limit := utils.ParseIntOr(c.Query("max_results"), 0)

	res, err := h.mailbox.Import(c.Request.Context(), days, limit)
	if err != nil {
		failErr(c, err, ErrCodeImportFailed)
		return
	}
	ok(c, http.StatusOK, importResponse(res))
}

// StoredEmails godoc
// @ID          storedEmails
// @Summary     List stored emails
// @Description Returns every stored email, newest first.
// @Tags        Gmail
// @Produce     json
// @Success     200  {object}  handlers.StoredEmailsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /gmail/emails/stored [get]
func (h *Handlers) StoredEmails(c *gin.Context) {
	es, err := h.mailbox.Stored(c.Request.Context())
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, StoredEmailsResponse{Success: true, Emails: toEmailViews(es)})
}

func importResponse(res *services.ImportResult) ImportResponse {
	return ImportResponse{
		Success:       res.Success,
		EmailsFetched: res.EmailsFetched,
		NewEmails:     res.NewEmails,
		Emails:        toEmailViews(res.Emails),
	}
}
