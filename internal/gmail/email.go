package gmail

import (
	"encoding/base64"
	"mime"
	"net/mail"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// CreateRawEmail builds a plain-text RFC 2822 message and encodes it the way
// users.messages.send expects: URL-safe base64, padding kept.
// The output depends only on the arguments.
func CreateRawEmail(from, to, subject, body string) string {
	var b strings.Builder

	b.WriteString("From: ")
	b.WriteString(from)
	b.WriteString("\r\n")

	b.WriteString("To: ")
	b.WriteString(to)
	b.WriteString("\r\n")

	// Subject may contain non-ASCII characters
	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(subject))
	b.WriteString("\r\n")

	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

// encodeRFC2047 encodes a header value according to RFC 2047 when it
// contains non-ASCII characters and returns it unchanged otherwise.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

// HeaderValue returns the first header called name (case-insensitive) in the
// message payload, or "".
func HeaderValue(msg *gmail.Message, name string) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// SenderAddress returns the bare address of the message's From header.
// A header that does not parse is returned trimmed.
func SenderAddress(msg *gmail.Message) string {
	from := HeaderValue(msg, "From")
	if from == "" {
		return ""
	}
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return strings.TrimSpace(from)
	}
	return addr.Address
}

// HasLabel reports whether the message carries labelID.
func HasLabel(msg *gmail.Message, labelID string) bool {
	if msg == nil {
		return false
	}
	for _, id := range msg.LabelIds {
		if id == labelID {
			return true
		}
	}
	return false
}
