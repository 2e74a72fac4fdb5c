// Package openai annotates stored emails for billing through an
// OpenAI-compatible Chat Completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tbourn/legal-billing-backend/internal/config"
	"github.com/tbourn/legal-billing-backend/internal/domain"
	"github.com/tbourn/legal-billing-backend/internal/utils"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	maxPromptBody  = 2000
	maxRawSummary  = 300

	systemPrompt = "You are a legal assistant helping with email summarization for billing purposes. Always respond with valid JSON."
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Client produces billing annotations for emails.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient builds a Client from cfg. An empty API key is rejected.
func NewClient(cfg config.OpenAIConfig, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("openai: api key must not be empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		apiKey:     key,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	if c.model == "" {
		c.model = "gpt-3.5-turbo"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// Annotate asks the model for a summary, suggested hours and a billing
// description of e. A reply that is not JSON is used as raw summary text.
// Transport and status failures are returned as errors.
func (c *Client) Annotate(ctx context.Context, e *domain.Email) (domain.Annotation, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(e)},
		},
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		return domain.Annotation{}, fmt.Errorf("openai: marshal request: %w", err)
	}

	url := chatURL(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Annotation{}, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return domain.Annotation{}, fmt.Errorf("openai: request failed: %w", err)
	}

	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.Annotation{}, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return domain.Annotation{}, errors.New("openai: no choices in response")
	}
	return ParseAnnotation(payload.Choices[0].Message.Content, e.Subject), nil
}

func buildPrompt(e *domain.Email) string {
	date := ""
	if e.DateSent != nil {
		date = e.DateSent.Format(time.RFC3339)
	}
	var b strings.Builder
	b.WriteString("Please analyze this legal email and provide:\n")
	b.WriteString("1. A professional summary suitable for legal billing\n")
	b.WriteString("2. Suggested billing hours (in decimal format, e.g., 0.25, 0.5, 1.0)\n")
	b.WriteString("3. A brief billing description\n\n")
	fmt.Fprintf(&b, "Email Details:\nSubject: %s\nFrom: %s\nTo: %s\nDate: %s\n\n", e.Subject, e.Sender, e.Recipient, date)
	fmt.Fprintf(&b, "Email Content:\n%s\n\n", utils.TruncateRunes(e.Body, maxPromptBody))
	b.WriteString(`Please respond in JSON format:
{"summary": "Professional summary of the email content and legal significance", "billing_hours": 0.25, "billing_description": "Brief description for billing purposes"}`)
	return b.String()
}

type annotationReply struct {
	Summary            string  `json:"summary"`
	BillingHours       float64 `json:"billing_hours"`
	BillingDescription string  `json:"billing_description"`
}

// ParseAnnotation turns a model reply into an Annotation. Code fences
// around the JSON are ignored. Missing or non-positive hours become
// domain.DefaultBillingHours.
func ParseAnnotation(content, subject string) domain.Annotation {
	content = strings.TrimSpace(content)
	var r annotationReply
	if err := json.Unmarshal([]byte(stripFence(content)), &r); err != nil || strings.TrimSpace(r.Summary) == "" {
		return domain.Annotation{
			Summary:            utils.TruncateRunes(content, maxRawSummary),
			BillingHours:       domain.DefaultBillingHours,
			BillingDescription: "Email communication regarding " + utils.TruncateRunes(subject, 50),
		}
	}
	if r.BillingHours <= 0 {
		r.BillingHours = domain.DefaultBillingHours
	}
	if strings.TrimSpace(r.BillingDescription) == "" {
		r.BillingDescription = "Email communication regarding " + utils.TruncateRunes(subject, 50)
	}
	return domain.Annotation{
		Summary:            r.Summary,
		BillingHours:       r.BillingHours,
		BillingDescription: r.BillingDescription,
	}
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
