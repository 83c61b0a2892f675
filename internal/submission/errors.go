package submission

import "errors"

// Pipeline-terminating errors. Each maps to a distinct caller-facing
// response.
var (
	// ErrInvalidForm means the payload named no form or an unknown one.
	ErrInvalidForm = errors.New("submission: invalid or missing form ID")

	// ErrFormIncomplete means the form exists but setup never finished.
	ErrFormIncomplete = errors.New("submission: form setup is incomplete")

	// ErrFormDisabled means the form exists but is switched off and no
	// override redirect was supplied.
	ErrFormDisabled = errors.New("submission: form is disabled")

	// ErrNoRedirectConfigured means the submission was handled but
	// neither the payload nor the form defines where to send the user.
	ErrNoRedirectConfigured = errors.New("submission: no redirect URL configured")
)
