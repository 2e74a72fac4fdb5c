// Package services – SummaryService
//
// This file implements summary generation and review. Generation annotates
// every stored email that has no summary yet; a failed call leaves the
// email untouched and is reported in the result. Review edits are accepted
// only while the email has not been pushed.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/legal-billing-backend/internal/domain"
	"github.com/tbourn/legal-billing-backend/internal/repo"
	"github.com/tbourn/legal-billing-backend/internal/utils"
)

// Annotator produces a billing annotation for one email.
type Annotator interface {
	Annotate(ctx context.Context, e *domain.Email) (domain.Annotation, error)
}

// GenerateResult is the outcome of one generation batch.
type GenerateResult struct {
	Success            bool     `json:"success"`
	SummariesGenerated int      `json:"summaries_generated"`
	Errors             []string `json:"errors"`
	Message            string   `json:"message"`
}

// SummaryStore defines the repository contract required by SummaryService.
type SummaryStore interface {
	ListUnsummarized(ctx context.Context, db *gorm.DB) ([]domain.Email, error)
	ListSummarized(ctx context.Context, db *gorm.DB) ([]domain.Email, error)
	SummariesStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error)
	GetEmail(ctx context.Context, db *gorm.DB, id uint) (*domain.Email, error)

	// SetAnnotation writes a generated annotation only where none exists.
	SetAnnotation(ctx context.Context, db *gorm.DB, id uint, a domain.Annotation) (bool, error)
	// UpdateSummary replaces the annotation of an unpushed email.
	UpdateSummary(ctx context.Context, db *gorm.DB, id uint, a domain.Annotation) (bool, error)
}

// SummaryService generates and edits email summaries.
type SummaryService struct {
	DB   *gorm.DB
	Repo SummaryStore
	// Annotator is nil when no model API key is configured.
	Annotator Annotator
}

// Generate annotates every email without a summary.
func (s *SummaryService) Generate(ctx context.Context) (*GenerateResult, error) {
	tr := otel.Tracer("services/SummaryService")
	ctx, span := tr.Start(ctx, "Generate")
	defer span.End()

	pending, err := s.Repo.ListUnsummarized(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return &GenerateResult{Success: true, Errors: []string{}, Message: "No emails need summaries"}, nil
	}
	if s.Annotator == nil {
		return nil, &ConfigurationError{Setting: "OPENAI_API_KEY"}
	}

	res := &GenerateResult{Success: true, Errors: []string{}}
	for i := range pending {
		e := &pending[i]
		a, err := s.Annotator.Annotate(ctx, e)
		if err != nil {
			summariesGeneratedTotal.WithLabelValues("failed").Inc()
			res.Errors = append(res.Errors, fmt.Sprintf("%d: %s", e.ID, err.Error()))
			log.Warn().Err(err).Uint("email_id", e.ID).Msg("summarizer: annotation failed")
			continue
		}
		a = normalizeAnnotation(a)
		if a.Summary == "" {
			summariesGeneratedTotal.WithLabelValues("failed").Inc()
			res.Errors = append(res.Errors, fmt.Sprintf("%d: empty summary", e.ID))
			continue
		}
		if a.BillingHours <= 0 {
			a.BillingHours = domain.DefaultBillingHours
		}
		stored, err := s.Repo.SetAnnotation(ctx, s.DB, e.ID, a)
		if err != nil {
			return nil, err
		}
		if stored {
			summariesGeneratedTotal.WithLabelValues("stored").Inc()
			res.SummariesGenerated++
		}
	}
	span.SetAttributes(attribute.Int("summaries.generated", res.SummariesGenerated))
	res.Message = fmt.Sprintf("Generated %d summaries", res.SummariesGenerated)
	return res, nil
}

// List returns summarized emails, newest first.
func (s *SummaryService) List(ctx context.Context) ([]domain.Email, error) {
	return s.Repo.ListSummarized(ctx, s.DB)
}

// Stats returns the number of summarized emails and their latest update,
// used for ETag computation.
func (s *SummaryService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return s.Repo.SummariesStats(ctx, s.DB)
}

// Update replaces the annotation of an email that has not been pushed.
func (s *SummaryService) Update(ctx context.Context, id uint, a domain.Annotation) (*domain.Email, error) {
	tr := otel.Tracer("services/SummaryService")
	ctx, span := tr.Start(ctx, "Update", trace.WithAttributes(attribute.Int("email.id", int(id))))
	defer span.End()

	a = normalizeAnnotation(a)
	if a.Summary == "" || a.BillingHours <= 0 {
		return nil, ErrInvalidSummary
	}

	changed, err := s.Repo.UpdateSummary(ctx, s.DB, id, a)
	if err != nil {
		return nil, err
	}
	e, err := s.Repo.GetEmail(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrEmailNotFound
		}
		return nil, err
	}
	if !changed && e.PushedToClio {
		return nil, ErrAlreadyPushed
	}
	return e, nil
}

func normalizeAnnotation(a domain.Annotation) domain.Annotation {
	a.Summary = utils.CleanText(a.Summary)
	a.BillingDescription = strings.TrimSpace(utils.CleanText(a.BillingDescription))
	return a
}
