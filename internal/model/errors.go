package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// ErrProfileNotFound is returned by the profile service when no company
// exists at the requested URL. Permanent: cached with the negative TTL,
// never retried.
var ErrProfileNotFound = errors.New("company profile not found")

// ErrSourceUnavailable is returned by a source adapter once its internal
// retry budget is exhausted. Fatal to the run when every adapter fails.
var ErrSourceUnavailable = errors.New("listing source unavailable")

// StorageError wraps a persistence-gateway failure. Constraint conflicts are
// absorbed by upsert semantics and never surface; anything that does surface
// means storage is unavailable and aborts the run.
type StorageError struct {
	Op  string // e.g. "upsert job"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err originated in the persistence gateway.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// ValidationError is malformed model output that survived the repair-retry
// budget. Not retryable; the affected item is degraded, not the run.
type ValidationError struct {
	Attempts int
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("output failed schema validation after %d attempt(s): %s",
		e.Attempts, strings.Join(e.Problems, "; "))
}

// IsTransient classifies an error for retry purposes: 429 and 5xx responses
// and plain network failures are transient; other 4xx, not-found, validation
// failures, and context cancellation are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrProfileNotFound) {
		return false
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == 429 {
			return true
		}
		if httpErr.StatusCode >= 500 {
			return true
		}
		return false
	}
	// Non-HTTP errors (network, DNS, etc.) are worth retrying.
	return true
}
