package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/tbourn/legal-billing-backend/internal/config"
)

func b64(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }

func TestParseMessage_HeadersBodyAndDate(t *testing.T) {
	m := &gmail.Message{
		Id:       "m1",
		ThreadId: "t1",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Contract review"},
				{Name: "From", Value: "Ada <ada@example.com>"},
				{Name: "to", Value: "bob@example.com"},
				{Name: "Date", Value: "Fri, 05 Jan 2024 10:30:00 +0000"},
			},
			Parts: []*gmail.MessagePart{
				{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: b64("<p>html</p>")}},
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: b64("plain body")}},
			},
		},
	}

	got := ParseMessage(m)
	require.Equal(t, "m1", got.ID)
	require.Equal(t, "t1", got.ThreadID)
	require.Equal(t, "Contract review", got.Subject)
	require.Equal(t, "Ada <ada@example.com>", got.Sender)
	require.Equal(t, "bob@example.com", got.Recipient)
	require.Equal(t, "plain body", got.Body)
	require.NotNil(t, got.DateSent)
	require.Equal(t, "2024-01-05", got.DateSent.Format("2006-01-02"))
}

func TestParseMessage_FallbacksAndTruncation(t *testing.T) {
	long := strings.Repeat("ä", MaxBodyRunes+50)
	m := &gmail.Message{
		Id:           "m2",
		InternalDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli(),
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers:  []*gmail.MessagePartHeader{{Name: "Date", Value: "not a date"}},
			// unpadded base64url
			Body: &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte(long))},
		},
	}
	got := ParseMessage(m)
	require.Equal(t, MaxBodyRunes, utf8.RuneCountInString(got.Body))
	require.NotNil(t, got.DateSent)
	require.Equal(t, "2024-03-01", got.DateSent.Format("2006-01-02"))

	bare := ParseMessage(&gmail.Message{Id: "m3"})
	require.Nil(t, bare.DateSent)
	require.Empty(t, bare.Body)
}

func TestQuery_String(t *testing.T) {
	q := Query{
		After:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Before: time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC),
	}
	require.Equal(t, "after:2024/01/01 before:2024/01/08", q.String())
}

func TestNewClient_MissingSecretFile(t *testing.T) {
	_, err := NewClient(config.GoogleConfig{ClientSecretFile: filepath.Join(t.TempDir(), "nope.json")})
	require.ErrorIs(t, err, ErrNoClientSecret)
}

func TestNewClient_FromSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_secret.json")
	secret := `{"web":{"client_id":"gid","client_secret":"gs","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost:8000/gmail/callback"]}}`
	require.NoError(t, os.WriteFile(path, []byte(secret), 0o600))

	c, err := NewClient(config.GoogleConfig{ClientSecretFile: path, RedirectURI: "http://example.com/gmail/callback"})
	require.NoError(t, err)
	u := c.AuthCodeURL()
	require.Contains(t, u, "client_id=gid")
	require.Contains(t, u, "access_type=offline")
	require.Contains(t, u, "redirect_uri=http%3A%2F%2Fexample.com%2Fgmail%2Fcallback")
	require.Contains(t, u, "gmail.readonly")
}

func TestFetch_ListsGetsAndSkipsFailures(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		gotQuery = r.URL.Query().Get("q")
		require.Equal(t, "5", r.URL.Query().Get("maxResults"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]string{{"id": "ok1"}, {"id": "broken"}},
		})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/ok1", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "full", r.URL.Query().Get("format"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "ok1",
			"threadId": "t",
			"payload": map[string]any{
				"mimeType": "text/plain",
				"headers":  []map[string]string{{"name": "Subject", "value": "Hi"}},
				"body":     map[string]string{"data": b64("hello")},
			},
		})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":500,"message":"boom"}}`, http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClientFromConfig(&oauth2.Config{ClientID: "x"}, WithEndpoint(srv.URL+"/"), WithHTTPClient(srv.Client()))
	tok := &oauth2.Token{AccessToken: "at", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}

	q := Query{After: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Before: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), MaxResults: 5}
	msgs, current, err := c.Fetch(context.Background(), tok, q)
	require.NoError(t, err)
	require.Equal(t, "after:2024/01/01 before:2024/01/08", gotQuery)
	require.Len(t, msgs, 1)
	require.Equal(t, "ok1", msgs[0].ID)
	require.Equal(t, "hello", msgs[0].Body)
	require.Equal(t, "at", current.AccessToken)
}

func TestFetch_ListFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":401,"message":"unauthorized"}}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c := NewClientFromConfig(&oauth2.Config{}, WithEndpoint(srv.URL+"/"), WithHTTPClient(srv.Client()))
	tok := &oauth2.Token{AccessToken: "at", Expiry: time.Now().Add(time.Hour)}
	_, _, err := c.Fetch(context.Background(), tok, Query{After: time.Now(), Before: time.Now()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "list messages")
}
