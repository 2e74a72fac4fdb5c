package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/tbourn/legal-billing-backend/internal/config"
	"github.com/tbourn/legal-billing-backend/internal/domain"
	"github.com/tbourn/legal-billing-backend/internal/integrations/clio"
)

var clioCfg = config.ClioConfig{ClientID: "cid", ClientSecret: "secret", RedirectURI: "http://localhost/callback"}

func TestCredentialService_CurrentEmpty(t *testing.T) {
	db := newSvcDB(t)
	s := NewCredentialService(db, dbStore{}, &fakeAuth{}, clioCfg)
	c, err := s.Current(context.Background())
	if err != nil || c != nil {
		t.Fatalf("expected nil credential, got %+v, %v", c, err)
	}
}

func TestCredentialService_ReplaceKeepsExactlyOne(t *testing.T) {
	db := newSvcDB(t)
	s := NewCredentialService(db, dbStore{}, &fakeAuth{}, clioCfg)
	ctx := context.Background()

	if err := s.Store(ctx, &domain.Credential{AccessToken: "a1", RefreshToken: "r1"}); err != nil {
		t.Fatalf("store 1: %v", err)
	}
	if err := s.Store(ctx, &domain.Credential{AccessToken: "a2"}); err != nil {
		t.Fatalf("store 2: %v", err)
	}

	var n int64
	db.Model(&domain.Credential{}).Where("slot = ?", domain.SlotClio).Count(&n)
	if n != 1 {
		t.Fatalf("expected exactly one credential, got %d", n)
	}
	c, err := s.Current(ctx)
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if c.AccessToken != "a2" || c.RefreshToken != "" || c.ExpiresAt != nil {
		t.Fatalf("expected second credential, got %+v", c)
	}
}

func TestCredentialService_ConnectStoresExchangedToken(t *testing.T) {
	db := newSvcDB(t)
	fixed := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)
	auth := &fakeAuth{tok: &oauth2.Token{AccessToken: "at", RefreshToken: "rt", Expiry: fixed.Add(time.Hour)}}
	s := NewCredentialService(db, dbStore{}, auth, clioCfg)
	s.Now = func() time.Time { return fixed }

	c, err := s.Connect(context.Background(), "code")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if c.Slot != domain.SlotClio || c.AccessToken != "at" || c.RefreshToken != "rt" {
		t.Fatalf("unexpected credential: %+v", c)
	}
	if c.ExpiresAt != nil {
		t.Fatal("expiry must be left unset")
	}
	if !c.CreatedAt.Equal(fixed) {
		t.Fatalf("created at = %v", c.CreatedAt)
	}
	got, _ := s.Current(context.Background())
	if got == nil || got.AccessToken != "at" {
		t.Fatalf("credential not stored: %+v", got)
	}
}

func TestCredentialService_RejectedCodeStoresNothing(t *testing.T) {
	db := newSvcDB(t)
	auth := &fakeAuth{err: &clio.TokenExchangeError{StatusCode: 400, Body: `{"error":"invalid_grant"}`}}
	s := NewCredentialService(db, dbStore{}, auth, clioCfg)

	_, err := s.Connect(context.Background(), "bad")
	var tee *clio.TokenExchangeError
	if !errors.As(err, &tee) || tee.StatusCode != 400 {
		t.Fatalf("expected TokenExchangeError(400), got %v", err)
	}
	if c, _ := s.Current(context.Background()); c != nil {
		t.Fatalf("nothing should be stored, got %+v", c)
	}
}

func TestCredentialService_MissingRegistration(t *testing.T) {
	db := newSvcDB(t)
	auth := &fakeAuth{tok: &oauth2.Token{AccessToken: "at"}}

	cases := []struct {
		cfg  config.ClioConfig
		want string
	}{
		{config.ClioConfig{ClientSecret: "s"}, "CLIO_CLIENT_ID"},
		{config.ClioConfig{ClientID: "c"}, "CLIO_CLIENT_SECRET"},
	}
	for _, tc := range cases {
		s := NewCredentialService(db, dbStore{}, auth, tc.cfg)
		_, err := s.ExchangeCode(context.Background(), "code")
		var ce *ConfigurationError
		if !errors.As(err, &ce) || ce.Setting != tc.want {
			t.Fatalf("expected ConfigurationError(%s), got %v", tc.want, err)
		}
	}
	if auth.calls != 0 {
		t.Fatalf("provider must not be called, got %d calls", auth.calls)
	}
}

func TestCredentialService_AuthorizationURL(t *testing.T) {
	s := NewCredentialService(nil, dbStore{}, &fakeAuth{}, clioCfg)
	if got := s.AuthorizationURL(); got != "https://clio.test/oauth/authorize?client_id=cid" {
		t.Fatalf("url = %q", got)
	}
}
