package collector

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for provider failure classes. Callers branch on these
// with errors.Is to decide between failing, pausing, and retrying.
var (
	// ErrAuthFailed means the provider rejected our credentials. Not
	// retryable: the source must be disabled until an operator fixes it.
	ErrAuthFailed = errors.New("provider authentication failed")

	// ErrRateLimited means the provider throttled us. The source should
	// be paused for an extended cooldown before any retry.
	ErrRateLimited = errors.New("provider rate limited")
)

// TransientError wraps a failure that is expected to clear on its own,
// such as a timeout or a provider 5xx.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a TransientError.
func Transient(err error) error {
	return &TransientError{Err: err}
}

// IsTransient reports whether err is a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// SourceUnavailableError means the source's circuit breaker or pause
// window blocked the collection before any request was made. Remaining
// tells callers how long to defer the retry.
type SourceUnavailableError struct {
	SourceID  string
	Remaining time.Duration
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable for %s", e.SourceID, e.Remaining)
}

// retryableSubstrings is the fallback classification for errors from
// opaque provider SDK layers that carry no type information.
var retryableSubstrings = []string{
	"timeout",
	"connection",
	"rate limit",
	"temporary",
	"503",
	"502",
	"504",
}

// LooksTransient reports whether an untyped error message resembles a
// transient failure. Used only at the provider boundary where typed
// errors are unavailable.
func LooksTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
