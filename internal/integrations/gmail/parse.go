package gmail

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"

	"github.com/tbourn/legal-billing-backend/internal/domain"
	"github.com/tbourn/legal-billing-backend/internal/utils"
)

// MaxBodyRunes bounds the stored body of an imported message.
const MaxBodyRunes = 1000

// ParseMessage extracts the import fields of a full-format Gmail message.
func ParseMessage(m *gmail.Message) domain.InboundEmail {
	out := domain.InboundEmail{ID: m.Id, ThreadID: m.ThreadId}
	if m.Payload == nil {
		out.DateSent = internalDate(m.InternalDate)
		return out
	}

	var dateHdr string
	for _, h := range m.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			out.Subject = h.Value
		case "from":
			out.Sender = h.Value
		case "to":
			out.Recipient = h.Value
		case "date":
			dateHdr = h.Value
		}
	}

	out.DateSent = parseDate(dateHdr, m.InternalDate)
	out.Body = utils.TruncateRunes(extractBody(m.Payload), MaxBodyRunes)
	return out
}

// parseDate reads an RFC 5322 Date header, falling back to the message's
// internal timestamp (milliseconds since epoch).
func parseDate(hdr string, internalMillis int64) *time.Time {
	if hdr != "" {
		if t, err := mail.ParseDate(hdr); err == nil {
			return &t
		}
	}
	return internalDate(internalMillis)
}

func internalDate(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

// extractBody returns the text/plain body of the payload itself, or of its
// first direct text/plain part.
func extractBody(p *gmail.MessagePart) string {
	if p.MimeType == "text/plain" {
		return decodeBody(p.Body)
	}
	for _, part := range p.Parts {
		if part.MimeType == "text/plain" {
			if s := decodeBody(part.Body); s != "" {
				return s
			}
		}
	}
	return ""
}

// decodeBody decodes base64url data with or without padding.
func decodeBody(b *gmail.MessagePartBody) string {
	if b == nil || b.Data == "" {
		return ""
	}
	raw, err := base64.URLEncoding.DecodeString(b.Data)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(b.Data, "="))
		if err != nil {
			return ""
		}
	}
	return strings.ToValidUTF8(string(raw), "")
}
