// errors.go defines the vault error taxonomy. Handlers map these onto HTTP
// statuses; everything unrecognized is treated as an internal store failure.
//
// The taxonomy deliberately destroys information in two places. All
// authentication failures collapse into ErrUnauthorized so a caller probing
// the bot API cannot distinguish a revoked token from a forged one. And
// ErrNotFound covers both "does not exist" and "exists but belongs to someone
// else", so resource IDs cannot be confirmed across owner boundaries.
package vault

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized covers every authentication failure: missing or forged
	// bearer token, revoked or expired token, inactive bot, wrong password.
	ErrUnauthorized = errors.New("vault: unauthorized")

	// ErrForbidden is returned when an authenticated bot asks for a credential
	// its owner has not granted it.
	ErrForbidden = errors.New("vault: forbidden")

	// ErrNotFound is returned when a resource does not exist or is owned by
	// someone other than the caller. The two cases are indistinguishable.
	ErrNotFound = errors.New("vault: not found")

	// ErrIntegrity is returned when a stored payload fails authenticated
	// decryption. No partial plaintext is ever released alongside it.
	ErrIntegrity = errors.New("vault: stored payload failed integrity check")
)

// RateLimitedError is returned when a bot token has exhausted its request
// budget for the current window.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("vault: rate limited, retry in %s", e.RetryAfter)
}

// Is makes errors.Is(err, &RateLimitedError{}) match any rate limit error.
func (e *RateLimitedError) Is(target error) bool {
	_, ok := target.(*RateLimitedError)
	return ok
}

// ValidationError is returned when caller input fails shape or consistency
// checks. The message is safe to show to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "vault: " + e.Message
}

// Is makes errors.Is(err, &ValidationError{}) match any validation error.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// storeErr wraps an unexpected database failure with operation context.
func storeErr(op string, err error) error {
	return fmt.Errorf("vault: %s: %w", op, err)
}
