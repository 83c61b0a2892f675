package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayloadFirst(t *testing.T) {
	p := Payload{"name": {"Joe", "Jane"}, "empty": {}}
	assert.Equal(t, "Joe", p.First("name"))
	assert.Empty(t, p.First("empty"))
	assert.Empty(t, p.First("missing"))
}

func TestPayloadHas(t *testing.T) {
	p := Payload{KeyIgnoreSubmission: {""}}
	assert.True(t, p.Has(KeyIgnoreSubmission), "presence counts even with an empty value")
	assert.False(t, p.Has(KeyRedirectURL))
}

func TestPayloadFormID(t *testing.T) {
	assert.Equal(t, int64(12), Payload{KeyFormID: {"12"}}.FormID())
	assert.Equal(t, int64(12), Payload{KeyFormID: {" 12 "}}.FormID())
	assert.Zero(t, Payload{KeyFormID: {"abc"}}.FormID())
	assert.Zero(t, Payload{KeyFormID: {"-3"}}.FormID())
	assert.Zero(t, Payload{KeyFormID: {"0"}}.FormID())
	assert.Zero(t, Payload{}.FormID())
}

func TestPayloadHasCaptcha(t *testing.T) {
	assert.True(t, Payload{
		KeyCaptchaChallenge: {"c"},
		KeyCaptchaResponse:  {"r"},
	}.HasCaptcha())
	assert.False(t, Payload{KeyCaptchaChallenge: {"c"}}.HasCaptcha())
	assert.False(t, Payload{
		KeyCaptchaChallenge: {""},
		KeyCaptchaResponse:  {"r"},
	}.HasCaptcha())
}

func TestIsReservedKey(t *testing.T) {
	for _, key := range []string{
		KeyFormID, KeyIgnoreSubmission, KeyRedirectURL,
		KeyInactiveRedirectURL, KeyFormURL,
		KeyCaptchaChallenge, KeyCaptchaResponse,
	} {
		assert.True(t, IsReservedKey(key), key)
	}
	assert.False(t, IsReservedKey("email"))
	assert.False(t, IsReservedKey("form_tools"))
}

func TestStripTags(t *testing.T) {
	cases := map[string]string{
		"plain text":                    "plain text",
		"<b>bold</b> words":             "bold words",
		"a <script>alert(1)</script> b": "a alert(1) b",
		"unterminated <tag":             "unterminated ",
		"<>":                            "",
		"5 < 6 > 4":                     "5  4",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripTags(in), in)
	}
}
