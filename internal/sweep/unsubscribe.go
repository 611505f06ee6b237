package sweep

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

const defaultUnsubscribeSubject = "unsubscribe"

// UnsubscribeTarget is the mechanism picked from a List-Unsubscribe header.
// Exactly one of Mailto or URL is set.
type UnsubscribeTarget struct {
	Mailto  string
	Subject string
	URL     string
}

// Patterns are tried in order; the first that matches wins, so a mailto:
// target beats an HTTP link in the same header.
var (
	mailtoPattern = regexp.MustCompile(`(?i)<\s*mailto:([^>?\s]+)(\?[^>]*)?\s*>`)
	httpPattern   = regexp.MustCompile(`(?i)<\s*(https?://[^>\s]+)\s*>`)
)

// ParseListUnsubscribe picks the unsubscribe mechanism advertised by a
// List-Unsubscribe header, e.g.
// <mailto:unsub@example.com?subject=bye>, <https://example.com/unsub>
func ParseListUnsubscribe(header string) (UnsubscribeTarget, bool) {
	if m := mailtoPattern.FindStringSubmatch(header); m != nil {
		to := m[1]
		if dec, err := url.PathUnescape(to); err == nil {
			to = dec
		}
		return UnsubscribeTarget{Mailto: to, Subject: mailtoSubject(m[2])}, true
	}
	if m := httpPattern.FindStringSubmatch(header); m != nil {
		return UnsubscribeTarget{URL: m[1]}, true
	}
	return UnsubscribeTarget{}, false
}

func mailtoSubject(rawQuery string) string {
	q, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return defaultUnsubscribeSubject
	}
	for k, v := range q {
		if strings.EqualFold(k, "subject") && len(v) > 0 && strings.TrimSpace(v[0]) != "" {
			return v[0]
		}
	}
	return defaultUnsubscribeSubject
}

// composeUnsubscribeMail builds an empty-bodied RFC 5322 message. From is
// left out; Gmail fills in the authenticated account.
func composeUnsubscribeMail(to, subject string, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("compose unsubscribe mail: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compose unsubscribe mail: %w", err)
	}
	return buf.Bytes(), nil
}
