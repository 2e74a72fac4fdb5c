// Package services – CredentialService
//
// This file implements the billing-system side of the OAuth2
// authorization-code flow: building the consent URL, exchanging a code for
// a token and keeping exactly one stored credential in the "clio" slot.
// Tokens are never refreshed here; an expired token surfaces as a provider
// error on the next call.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/tbourn/legal-billing-backend/internal/config"
	"github.com/tbourn/legal-billing-backend/internal/domain"
	"github.com/tbourn/legal-billing-backend/internal/repo"
)

// CredentialStore defines the repository contract for the credential slots.
type CredentialStore interface {
	// GetCredential returns the credential in slot or repo.ErrNotFound.
	GetCredential(ctx context.Context, db *gorm.DB, slot string) (*domain.Credential, error)

	// ReplaceCredential atomically replaces whatever occupies c.Slot.
	ReplaceCredential(ctx context.Context, db *gorm.DB, c *domain.Credential) error
}

// Authorizer performs the provider side of the authorization-code flow.
type Authorizer interface {
	AuthCodeURL() string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
}

// CredentialService manages the stored billing-system credential.
type CredentialService struct {
	DB     *gorm.DB
	Repo   CredentialStore
	Auth   Authorizer
	Config config.ClioConfig

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewCredentialService wires a CredentialService.
func NewCredentialService(db *gorm.DB, store CredentialStore, auth Authorizer, cfg config.ClioConfig) *CredentialService {
	return &CredentialService{DB: db, Repo: store, Auth: auth, Config: cfg}
}

// AuthorizationURL returns the provider consent URL. It has no side effects.
func (s *CredentialService) AuthorizationURL() string {
	return s.Auth.AuthCodeURL()
}

// ExchangeCode trades code for a credential without storing it. A missing
// client registration yields *ConfigurationError; a rejected code yields
// the provider's *clio.TokenExchangeError.
func (s *CredentialService) ExchangeCode(ctx context.Context, code string) (*domain.Credential, error) {
	tr := otel.Tracer("services/CredentialService")
	ctx, span := tr.Start(ctx, "ExchangeCode")
	defer span.End()

	if strings.TrimSpace(s.Config.ClientID) == "" {
		return nil, &ConfigurationError{Setting: "CLIO_CLIENT_ID"}
	}
	if strings.TrimSpace(s.Config.ClientSecret) == "" {
		return nil, &ConfigurationError{Setting: "CLIO_CLIENT_SECRET"}
	}

	tok, err := s.Auth.ExchangeCode(ctx, code)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &domain.Credential{
		Slot:         domain.SlotClio,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		CreatedAt:    s.now(),
	}, nil
}

// Store replaces the stored credential with c.
func (s *CredentialService) Store(ctx context.Context, c *domain.Credential) error {
	c.Slot = domain.SlotClio
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	return s.Repo.ReplaceCredential(ctx, s.DB, c)
}

// Connect exchanges code and stores the resulting credential. Nothing is
// stored when the exchange fails.
func (s *CredentialService) Connect(ctx context.Context, code string) (*domain.Credential, error) {
	c, err := s.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.Store(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Current returns the stored credential, or nil when none exists. A stored
// credential without an access token yields ErrMalformedCredential.
func (s *CredentialService) Current(ctx context.Context) (*domain.Credential, error) {
	tr := otel.Tracer("services/CredentialService")
	ctx, span := tr.Start(ctx, "Current", trace.WithAttributes(attribute.String("credential.slot", domain.SlotClio)))
	defer span.End()

	c, err := s.Repo.GetCredential(ctx, s.DB, domain.SlotClio)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return nil, ErrMalformedCredential
	}
	return c, nil
}

func (s *CredentialService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
