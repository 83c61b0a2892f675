package submission

import (
	"strconv"
	"strings"
)

// Reserved payload keys. Everything else is matched against the form's
// field names.
const (
	KeyFormID              = "form_tools_form_id"
	KeyIgnoreSubmission    = "form_tools_ignore_submission"
	KeyRedirectURL         = "form_tools_redirect_url"
	KeyInactiveRedirectURL = "form_tools_inactive_form_redirect_url"
	KeyFormURL             = "form_tools_form_url"
	KeyCaptchaChallenge    = "recaptcha_challenge_field"
	KeyCaptchaResponse     = "recaptcha_response_field"
)

// Payload is an inbound form-style key/value map. Keys may carry
// multiple values (checkbox groups, multi-selects).
type Payload map[string][]string

// First returns the first value for a key, or "".
func (p Payload) First(key string) string {
	if vs := p[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Has reports whether the key is present at all. Presence flags like
// the ignore marker count even with an empty value.
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// FormID extracts the target form ID, or 0 when absent or malformed.
func (p Payload) FormID() int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(p.First(KeyFormID)), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// HasCaptcha reports whether the payload carries a challenge/response
// pair.
func (p Payload) HasCaptcha() bool {
	return p.First(KeyCaptchaChallenge) != "" && p.First(KeyCaptchaResponse) != ""
}

// IsReservedKey reports whether the key belongs to the engine rather
// than a form field.
func IsReservedKey(key string) bool {
	switch key {
	case KeyFormID, KeyIgnoreSubmission, KeyRedirectURL,
		KeyInactiveRedirectURL, KeyFormURL,
		KeyCaptchaChallenge, KeyCaptchaResponse:
		return true
	}
	return false
}

// stripTags removes markup from a value: everything between < and >
// goes, unterminated tags included.
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case inTag:
			if r == '>' {
				inTag = false
			}
		case r == '<':
			inTag = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
