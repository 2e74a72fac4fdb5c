package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/tbourn/legal-billing-backend/internal/config"
	"github.com/tbourn/legal-billing-backend/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-test"}, WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func reply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(b)
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(config.OpenAIConfig{APIKey: "  "})
	require.Error(t, err)
}

func TestChatURL(t *testing.T) {
	require.Equal(t, "https://api.openai.com/v1/chat/completions", chatURL(""))
	require.Equal(t, "http://x/v1/chat/completions", chatURL("http://x/v1/"))
	require.Equal(t, "http://x/v1/chat/completions", chatURL("http://x"))
}

func TestAnnotate_RequestShapeAndJSONReply(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, reply(`{"summary":"Reviewed NDA","billing_hours":0.5,"billing_description":"NDA review"}`))
	})

	e := &domain.Email{Subject: "NDA", Sender: "a@x", Recipient: "b@x", Body: strings.Repeat("x", 3000)}
	ann, err := c.Annotate(context.Background(), e)
	require.NoError(t, err)
	require.Equal(t, domain.Annotation{Summary: "Reviewed NDA", BillingHours: 0.5, BillingDescription: "NDA review"}, ann)

	require.Equal(t, "gpt-test", got.Model)
	require.Equal(t, 500, got.MaxTokens)
	require.InDelta(t, 0.3, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	require.Equal(t, "system", got.Messages[0].Role)
	require.Contains(t, got.Messages[1].Content, "Subject: NDA")
	require.NotContains(t, got.Messages[1].Content, strings.Repeat("x", 2001))
}

func TestAnnotate_StatusErrorIsReturned(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":"rate limited"}`)
	})
	_, err := c.Annotate(context.Background(), &domain.Email{Subject: "s"})
	var se *HTTPStatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusTooManyRequests, se.StatusCode)
}

func TestAnnotate_NoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	})
	_, err := c.Annotate(context.Background(), &domain.Email{})
	require.Error(t, err)
}

func TestParseAnnotation(t *testing.T) {
	fenced := "```json\n{\"summary\":\"S\",\"billing_hours\":0,\"billing_description\":\"D\"}\n```"
	ann := ParseAnnotation(fenced, "subj")
	require.Equal(t, "S", ann.Summary)
	require.Equal(t, domain.DefaultBillingHours, ann.BillingHours)
	require.Equal(t, "D", ann.BillingDescription)

	raw := ParseAnnotation(strings.Repeat("é", 400), strings.Repeat("s", 80))
	require.Equal(t, 300, utf8.RuneCountInString(raw.Summary))
	require.Equal(t, domain.DefaultBillingHours, raw.BillingHours)
	require.Equal(t, "Email communication regarding "+strings.Repeat("s", 50), raw.BillingDescription)

	noDesc := ParseAnnotation(`{"summary":"S","billing_hours":1.5}`, "Lease")
	require.Equal(t, 1.5, noDesc.BillingHours)
	require.Equal(t, "Email communication regarding Lease", noDesc.BillingDescription)
}
