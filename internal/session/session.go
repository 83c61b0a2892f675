// Package session parks in-flight submissions that are waiting on
// CAPTCHA verification. The payload is held server-side under a
// session key and replayed once verification passes.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no parked submission exists for a key.
var ErrNotFound = errors.New("session: not found")

// ParkedSubmission is a submission held pending CAPTCHA verification.
type ParkedSubmission struct {
	FormID    int64               `json:"form_id"`
	Values    map[string][]string `json:"values"`
	IPAddress string              `json:"ip_address"`
	ParkedAt  time.Time           `json:"parked_at"`
}

// Store persists parked submissions keyed by session ID.
type Store interface {
	// Park saves the submission under the key for at most ttl.
	Park(ctx context.Context, key string, sub *ParkedSubmission, ttl time.Duration) error

	// Take retrieves and removes the submission for the key, returning
	// ErrNotFound when nothing is parked there.
	Take(ctx context.Context, key string) (*ParkedSubmission, error)

	// Drop discards whatever is parked under the key.
	Drop(ctx context.Context, key string) error
}
