// Package services – MailboxService
//
// This file implements the import side of the workflow: the Gmail
// authorization flow, fetching a date range of messages and storing them
// upsert-by-external-id, plus the capture endpoint used by the browser
// extension. Existing rows are never overwritten by an import.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/tbourn/legal-billing-backend/internal/domain"
	"github.com/tbourn/legal-billing-backend/internal/integrations/gmail"
	"github.com/tbourn/legal-billing-backend/internal/repo"
	"github.com/tbourn/legal-billing-backend/internal/utils"
)

const (
	defaultDaysBack   = 7
	defaultMaxResults = 100
	maxMaxResults     = 500
)

// MailFetcher is the Gmail side of the import.
type MailFetcher interface {
	AuthCodeURL() string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Fetch(ctx context.Context, tok *oauth2.Token, q gmail.Query) ([]domain.InboundEmail, *oauth2.Token, error)
}

// ImportResult is the outcome of one mailbox import.
type ImportResult struct {
	Success       bool           `json:"success"`
	EmailsFetched int            `json:"emails_fetched"`
	NewEmails     int            `json:"new_emails"`
	Emails        []domain.Email `json:"emails"`
}

// EmailStore defines the email persistence MailboxService needs.
type EmailStore interface {
	// InsertEmailIfAbsent stores in unless its external id is known and
	// reports whether a row was created.
	InsertEmailIfAbsent(ctx context.Context, db *gorm.DB, in domain.InboundEmail) (*domain.Email, bool, error)
	ListEmails(ctx context.Context, db *gorm.DB) ([]domain.Email, error)
}

// MailboxService imports and stores emails.
type MailboxService struct {
	DB     *gorm.DB
	Creds  CredentialStore
	Emails EmailStore
	// Mail is nil when no Google client secret is configured.
	Mail MailFetcher

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// AuthURL returns the Gmail consent URL.
func (s *MailboxService) AuthURL() (string, error) {
	if s.Mail == nil {
		return "", &ConfigurationError{Setting: "GOOGLE_CLIENT_SECRET_FILE"}
	}
	return s.Mail.AuthCodeURL(), nil
}

// Connect exchanges code and stores the mailbox token in the gmail slot.
func (s *MailboxService) Connect(ctx context.Context, code string) error {
	if s.Mail == nil {
		return &ConfigurationError{Setting: "GOOGLE_CLIENT_SECRET_FILE"}
	}
	tok, err := s.Mail.Exchange(ctx, code)
	if err != nil {
		return err
	}
	return s.saveToken(ctx, tok)
}

// Connected reports whether a mailbox token is stored.
func (s *MailboxService) Connected(ctx context.Context) (bool, error) {
	_, err := s.Creds.GetCredential(ctx, s.DB, domain.SlotGmail)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Import fetches messages from the last daysBack days (today included) and
// stores the ones not seen before. A refreshed token is written back.
func (s *MailboxService) Import(ctx context.Context, daysBack, maxResults int) (*ImportResult, error) {
	if daysBack <= 0 {
		daysBack = defaultDaysBack
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if maxResults > maxMaxResults {
		maxResults = maxMaxResults
	}

	tr := otel.Tracer("services/MailboxService")
	ctx, span := tr.Start(ctx, "Import",
		trace.WithAttributes(
			attribute.Int("days_back", daysBack),
			attribute.Int("max_results", maxResults),
		),
	)
	defer span.End()

	if s.Mail == nil {
		return nil, &ConfigurationError{Setting: "GOOGLE_CLIENT_SECRET_FILE"}
	}
	cred, err := s.Creds.GetCredential(ctx, s.DB, domain.SlotGmail)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotConnected
		}
		return nil, err
	}

	tok := &oauth2.Token{AccessToken: cred.AccessToken, RefreshToken: cred.RefreshToken, TokenType: "Bearer"}
	if cred.ExpiresAt != nil {
		tok.Expiry = *cred.ExpiresAt
	}

	now := s.now()
	q := gmail.Query{
		After:      now.AddDate(0, 0, -daysBack),
		Before:     now.AddDate(0, 0, 1),
		MaxResults: int64(maxResults),
	}
	msgs, current, err := s.Mail.Fetch(ctx, tok, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if current != nil && current.AccessToken != tok.AccessToken {
		if err := s.saveToken(ctx, current); err != nil {
			log.Warn().Err(err).Msg("gmail: store refreshed token")
		}
	}

	res := &ImportResult{Success: true, EmailsFetched: len(msgs), Emails: make([]domain.Email, 0, len(msgs))}
	for _, m := range msgs {
		e, created, err := s.Emails.InsertEmailIfAbsent(ctx, s.DB, m)
		if err != nil {
			return nil, err
		}
		if created {
			res.NewEmails++
			emailsImportedTotal.Inc()
		}
		res.Emails = append(res.Emails, *e)
	}
	return res, nil
}

// Capture stores one email submitted by the browser extension. The external
// id is required; an email already stored is returned unchanged.
func (s *MailboxService) Capture(ctx context.Context, in domain.InboundEmail) (*domain.Email, bool, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return nil, false, ErrInvalidEmail
	}
	in.Body = utils.TruncateRunes(in.Body, gmail.MaxBodyRunes)
	e, created, err := s.Emails.InsertEmailIfAbsent(ctx, s.DB, in)
	if err != nil {
		return nil, false, err
	}
	if created {
		emailsImportedTotal.Inc()
	}
	return e, created, nil
}

// Stored returns every stored email, newest first.
func (s *MailboxService) Stored(ctx context.Context) ([]domain.Email, error) {
	return s.Emails.ListEmails(ctx, s.DB)
}

func (s *MailboxService) saveToken(ctx context.Context, tok *oauth2.Token) error {
	c := &domain.Credential{
		Slot:         domain.SlotGmail,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		CreatedAt:    s.now(),
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		c.ExpiresAt = &exp
	}
	return s.Creds.ReplaceCredential(ctx, s.DB, c)
}

func (s *MailboxService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
