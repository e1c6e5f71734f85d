// Package errs defines the error taxonomy shared across the retrieval engine.
// Every failure mode is classified into one of five kinds so that callers can
// decide mechanically whether to skip, retry, or fail:
//
//	Validation       — malformed catalog record or unknown identifier (skip/report)
//	ProviderTransient — timeout/rate-limit from an external provider (retry with backoff)
//	ProviderPermanent — auth/malformed-request from an external provider (fail immediately)
//	Configuration    — embedding-model mismatch between cache and config (fatal to the query)
//	CacheCorruption  — an on-disk cache entry failed integrity checks (drop the entry, continue)
//
// Sentinels are matched with [errors.Is]; wrap helpers attach context while
// preserving the kind.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel values for each error kind. Wrap with the helpers below so the
// kind survives normal %w chains.
var (
	// ErrValidation marks a record-level validation failure.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a lookup for an identifier that does not exist.
	// It is a distinct sub-kind of validation so surfaces can report
	// "not found" rather than a generic failure.
	ErrNotFound = errors.New("not found")

	// ErrProviderTransient marks a retryable provider failure
	// (timeout, rate limit, 5xx).
	ErrProviderTransient = errors.New("transient provider error")

	// ErrProviderPermanent marks a non-retryable provider failure
	// (auth, malformed request, 4xx other than 429).
	ErrProviderPermanent = errors.New("permanent provider error")

	// ErrConfiguration marks a configuration mismatch, e.g. cached
	// embeddings computed under a different model than the one configured.
	ErrConfiguration = errors.New("configuration error")

	// ErrCacheCorruption marks a single on-disk cache entry that failed
	// integrity checks on load.
	ErrCacheCorruption = errors.New("cache corruption")
)

// Validation wraps err (or formats a new error) as a validation failure.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound formats a not-found error for the given identifier.
func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

// Transient wraps err as a retryable provider failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrProviderTransient, err)
}

// Permanent wraps err as a non-retryable provider failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrProviderPermanent, err)
}

// Configuration formats a configuration error with enough detail for the
// operator to trigger a cache rebuild.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Corruption formats a cache corruption error for a single entry.
func Corruption(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCacheCorruption, fmt.Sprintf(format, args...))
}

// IsTransient reports whether err should be retried. Context deadline
// expiry on a provider call counts as transient per the concurrency model:
// timeouts are retryable failures, not crashes.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrProviderPermanent) {
		return false
	}
	return errors.Is(err, ErrProviderTransient) || errors.Is(err, context.DeadlineExceeded)
}

// IsNotFound reports whether err is a not-found lookup failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
