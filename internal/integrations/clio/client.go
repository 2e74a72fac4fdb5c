// Package clio is a focused client for the Clio practice-management API:
// the OAuth2 authorization-code flow plus the few v4 REST endpoints the
// billing backend needs (time entries, identity, matters).
//
// Every outbound call is bounded by the configured timeout. Failures come
// back as typed errors so callers can tell a rejected authorization code
// (TokenExchangeError) apart from a transient provider failure
// (ProviderError).
package clio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/tbourn/legal-billing-backend/internal/config"
)

// Scopes requested during authorization.
var Scopes = []string{"read", "write"}

// TokenExchangeError reports that the provider rejected an authorization
// code. Body is the raw provider response.
type TokenExchangeError struct {
	StatusCode int
	Body       string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("clio: token exchange failed with status %d: %s", e.StatusCode, e.Body)
}

// ProviderError captures a failed API call: a non-success status, a
// transport failure or a timeout.
type ProviderError struct {
	StatusCode int
	Body       string
	Timeout    bool
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Timeout:
		return "timeout: " + errText(e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
	default:
		return "transport: " + errText(e.Err)
	}
}

func (e *ProviderError) Unwrap() error { return e.Err }

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// TimeEntry is the payload of a time-entry creation call. Date is
// YYYY-MM-DD and omitted when unknown; Quantity is in hours.
type TimeEntry struct {
	Date        string  `json:"date,omitempty"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Note        string  `json:"note"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// Client talks to a single Clio region.
type Client struct {
	baseURL    string
	timeout    time.Duration
	oauth      *oauth2.Config
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient sets the base HTTP client used for all calls. Its
// transport is reused under the OAuth2 bearer transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient builds a Client from cfg.
func NewClient(cfg config.ClioConfig, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	c := &Client{
		baseURL: base,
		timeout: cfg.Timeout,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/oauth/authorize",
				TokenURL:  base + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{},
	}
	if c.timeout <= 0 {
		c.timeout = 15 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuthCodeURL returns the authorization URL the user is sent to. It has no
// state parameter and no side effects.
func (c *Client) AuthCodeURL() string {
	return c.oauth.AuthCodeURL("")
}

// ExchangeCode trades an authorization code for a token with one POST to
// the token endpoint. A rejected code, or a response without an access
// token, yields *TokenExchangeError.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return nil, &TokenExchangeError{StatusCode: status, Body: string(re.Body)}
		}
		if strings.Contains(err.Error(), "missing access_token") {
			return nil, &TokenExchangeError{StatusCode: http.StatusOK, Body: "response missing access_token"}
		}
		return nil, &ProviderError{Timeout: isTimeout(err), Err: err}
	}
	if tok.AccessToken == "" {
		return nil, &TokenExchangeError{StatusCode: http.StatusOK, Body: "response missing access_token"}
	}
	return tok, nil
}

// CreateTimeEntry submits a time entry. Only 200 and 201 count as accepted.
func (c *Client) CreateTimeEntry(ctx context.Context, accessToken string, e TimeEntry) error {
	body, err := json.Marshal(envelope[TimeEntry]{Data: e})
	if err != nil {
		return fmt.Errorf("clio: marshal time entry: %w", err)
	}
	_, err = c.do(ctx, accessToken, http.MethodPost, "/api/v4/time_entries.json", body, http.StatusOK, http.StatusCreated)
	return err
}

// WhoAmI returns the identity payload of the token's owner.
func (c *Client) WhoAmI(ctx context.Context, accessToken string) (map[string]any, error) {
	raw, err := c.do(ctx, accessToken, http.MethodGet, "/api/v4/users/who_am_i.json", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	var out envelope[map[string]any]
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clio: decode who_am_i: %w", err)
	}
	if out.Data == nil {
		out.Data = map[string]any{}
	}
	return out.Data, nil
}

// ListMatters returns the matters visible to the token's owner.
func (c *Client) ListMatters(ctx context.Context, accessToken string) ([]map[string]any, error) {
	raw, err := c.do(ctx, accessToken, http.MethodGet, "/api/v4/matters.json", nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	var out envelope[[]map[string]any]
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("clio: decode matters: %w", err)
	}
	if out.Data == nil {
		out.Data = []map[string]any{}
	}
	return out.Data, nil
}

// do issues one bearer-authenticated request and returns the body when the
// status is one of accept.
func (c *Client) do(ctx context.Context, accessToken, method, path string, body []byte, accept ...int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("clio: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	hc := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, c.httpClient),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
	)
	res, err := hc.Do(req)
	if err != nil {
		return nil, &ProviderError{Timeout: isTimeout(err), Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if !statusIn(res.StatusCode, accept) {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &ProviderError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(buf))}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, &ProviderError{Timeout: isTimeout(err), Err: fmt.Errorf("read response body: %w", err)}
	}
	return buf, nil
}

func statusIn(code int, accept []int) bool {
	for _, a := range accept {
		if code == a {
			return true
		}
	}
	return false
}

// isTimeout reports whether err stems from a deadline rather than a refused
// or broken connection.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
