// Summary HTTP handlers: generation, review listing and human edits.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/legal-billing-backend/internal/domain"
)

// SummaryView is one summarized email as shown for review.
type SummaryView struct {
	ID                 uint       `json:"id"`
	EmailID            string     `json:"email_id"`
	Subject            string     `json:"subject"`
	Summary            string     `json:"summary"`
	BillingHours       float64    `json:"billing_hours"`
	BillingDescription string     `json:"billing_description"`
	DateSent           *time.Time `json:"date_sent"`
	PushedToClio       bool       `json:"pushed_to_clio"`
}

// ListSummariesResponse wraps every summarized email.
type ListSummariesResponse struct {
	Success   bool          `json:"success"`
	Summaries []SummaryView `json:"summaries"`
}

// UpdateSummaryRequest is the JSON payload for editing a summary.
type UpdateSummaryRequest struct {
	Summary            string  `json:"summary"             binding:"required" example:"Reviewed draft lease and flagged indemnity clause"`
	BillingHours       float64 `json:"billing_hours"       binding:"required,gt=0" example:"0.5"`
	BillingDescription string  `json:"billing_description" example:"Contract review"`
}

// UpdateSummaryResponse returns the edited summary.
type UpdateSummaryResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Summary SummaryView `json:"summary"`
}

func toSummaryView(e domain.Email) SummaryView {
	v := SummaryView{
		ID:           e.ID,
		EmailID:      e.GmailID,
		Subject:      e.Subject,
		BillingHours: e.Quantity(),
		DateSent:     e.DateSent,
		PushedToClio: e.PushedToClio,
	}
	if e.Summary != nil {
		v.Summary = *e.Summary
	}
	if e.BillingDescription != nil {
		v.BillingDescription = *e.BillingDescription
	}
	return v
}

// GenerateSummaries godoc
// @ID          generateSummaries
// @Summary     Generate missing summaries
// @Description Annotates every email without a summary. Per-email failures are listed
// @Description in errors and leave that email unsummarized for the next run.
// @Tags        Summarizer
// @Produce     json
// @Success     200  {object}  services.GenerateResult
// @Failure     503  {object}  handlers.ErrorResponse  "Model API key not configured"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /summarizer/generate [post]
func (h *Handlers) GenerateSummaries(c *gin.Context) {
	res, err := h.summaries.Generate(c.Request.Context())
	if err != nil {
		failErr(c, err, ErrCodeGenerateFailed)
		return
	}
	ok(c, http.StatusOK, res)
}

// ListSummaries godoc
// @ID          listSummaries
// @Summary     List summaries
// @Description Returns summarized emails, newest first. Supports weak ETag via
// @Description If-None-Match and may return 304.
// @Tags        Summarizer
// @Produce     json
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"summaries:3:1704445200\")
// @Success     200  {object}  handlers.ListSummariesResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /summarizer/summaries [get]
func (h *Handlers) ListSummaries(c *gin.Context) {
	ctx := c.Request.Context()

	// ETag pre-check (best effort).
	if count, last, err := h.summaries.Stats(ctx); err == nil {
		var ts int64
		if last != nil {
			ts = last.UnixNano()
		}
		etag := fmt.Sprintf(`W/"summaries:%d:%d"`, count, ts)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	es, err := h.summaries.List(ctx)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	views := make([]SummaryView, 0, len(es))
	for _, e := range es {
		views = append(views, toSummaryView(e))
	}
	ok(c, http.StatusOK, ListSummariesResponse{Success: true, Summaries: views})
}

// UpdateSummary godoc
// @ID          updateSummary
// @Summary     Edit a summary
// @Description Replaces the summary, hours and description of an email whose time
// @Description entry has not been pushed yet.
// @Tags        Summarizer
// @Accept      json
// @Produce     json
// @Param       id    path  int                            true  "Email ID"  example(42)
// @Param       body  body  handlers.UpdateSummaryRequest  true  "New annotation"
// @Success     200  {object}  handlers.UpdateSummaryResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Email not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Already pushed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /summarizer/summaries/{id} [put]
func (h *Handlers) UpdateSummary(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return
	}

	var req UpdateSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "summary and positive billing_hours required")
		return
	}

	e, err := h.summaries.Update(c.Request.Context(), uint(id), domain.Annotation{
		Summary:            req.Summary,
		BillingHours:       req.BillingHours,
		BillingDescription: req.BillingDescription,
	})
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, UpdateSummaryResponse{
		Success: true,
		Message: "Summary updated successfully",
		Summary: toSummaryView(*e),
	})
}
