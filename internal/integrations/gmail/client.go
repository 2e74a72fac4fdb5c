// Package gmail fetches messages from a Gmail mailbox for import. It owns
// the Google OAuth2 web flow built from the client secret JSON and turns
// Gmail API messages into domain.InboundEmail values.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/tbourn/legal-billing-backend/internal/config"
	"github.com/tbourn/legal-billing-backend/internal/domain"
)

// ErrNoClientSecret is returned when the client secret file is missing.
var ErrNoClientSecret = errors.New("gmail: client secret file not found")

// Client wraps the OAuth2 configuration and creates a Gmail service per
// fetch from the stored token.
type Client struct {
	oauth      *oauth2.Config
	endpoint   string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithEndpoint points the Gmail API at a different base URL.
func WithEndpoint(u string) Option {
	return func(c *Client) { c.endpoint = u }
}

// WithHTTPClient sets the base HTTP client used under the OAuth2 transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient loads the client secret JSON named in cfg. A missing file
// yields ErrNoClientSecret.
func NewClient(cfg config.GoogleConfig, opts ...Option) (*Client, error) {
	raw, err := os.ReadFile(cfg.ClientSecretFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoClientSecret
		}
		return nil, fmt.Errorf("gmail: read client secret: %w", err)
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gmail.GmailReadonlyScope}
	}
	conf, err := google.ConfigFromJSON(raw, scopes...)
	if err != nil {
		return nil, fmt.Errorf("gmail: parse client secret: %w", err)
	}
	if cfg.RedirectURI != "" {
		conf.RedirectURL = cfg.RedirectURI
	}
	return NewClientFromConfig(conf, opts...), nil
}

// NewClientFromConfig builds a Client around an existing OAuth2 config.
func NewClientFromConfig(conf *oauth2.Config, opts ...Option) *Client {
	c := &Client{oauth: conf, httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthCodeURL returns the consent URL. Offline access is requested so the
// stored token carries a refresh token.
func (c *Client) AuthCodeURL() string {
	return c.oauth.AuthCodeURL("", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("gmail: exchange code: %w", err)
	}
	return tok, nil
}

// Query selects the messages to fetch.
type Query struct {
	After      time.Time
	Before     time.Time
	MaxResults int64
}

// String renders the Gmail search expression for q.
func (q Query) String() string {
	return fmt.Sprintf("after:%s before:%s", q.After.Format("2006/01/02"), q.Before.Format("2006/01/02"))
}

// Fetch lists messages matching q and loads each in full format. A message
// that fails to load is logged and skipped. The returned token is the one
// in use after the call; it differs from tok when a refresh happened.
func (c *Client) Fetch(ctx context.Context, tok *oauth2.Token, q Query) ([]domain.InboundEmail, *oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	ts := oauth2.ReuseTokenSource(tok, c.oauth.TokenSource(ctx, tok))

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("gmail: create service: %w", err)
	}

	call := svc.Users.Messages.List("me").Q(q.String()).Context(ctx)
	if q.MaxResults > 0 {
		call = call.MaxResults(q.MaxResults)
	}
	list, err := call.Do()
	if err != nil {
		return nil, nil, fmt.Errorf("gmail: list messages: %w", err)
	}

	out := make([]domain.InboundEmail, 0, len(list.Messages))
	for _, m := range list.Messages {
		full, err := svc.Users.Messages.Get("me", m.Id).Format("full").Context(ctx).Do()
		if err != nil {
			log.Warn().Err(err).Str("message_id", m.Id).Msg("gmail: skipping message")
			continue
		}
		out = append(out, ParseMessage(full))
	}

	current, err := ts.Token()
	if err != nil {
		current = tok
	}
	return out, current, nil
}
