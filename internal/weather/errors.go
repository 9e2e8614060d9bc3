package weather

import (
	"errors"
	"fmt"
)

// FailureKind classifies a failed provider call so callers can decide whether
// a retry elsewhere makes sense.
type FailureKind int

const (
	// FailureTransient covers timeouts, connection errors and 5xx responses.
	FailureTransient FailureKind = iota
	// FailureRateLimited means the provider returned 429 and retries were exhausted.
	FailureRateLimited
	// FailureBadRequest covers 400/404 responses; retrying the same request cannot help.
	FailureBadRequest
	// FailureMalformed means the provider answered 200 but the body was unusable.
	FailureMalformed
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransient:
		return "transient"
	case FailureRateLimited:
		return "rate_limited"
	case FailureBadRequest:
		return "bad_request"
	case FailureMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// FetchError is the classified failure result of a provider call.
type FetchError struct {
	Kind     FailureKind
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("weather fetch failed (%s, %d attempt(s)): %v", e.Kind, e.Attempts, e.Err)
	}
	return fmt.Sprintf("weather fetch failed (%s, %d attempt(s))", e.Kind, e.Attempts)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure class is expected to succeed on a
// later retry (timeouts, server errors, rate limits).
func (e *FetchError) Retryable() bool {
	return e.Kind == FailureTransient || e.Kind == FailureRateLimited
}

// AsFetchError extracts a FetchError from an error chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errEmptyHourly   = errors.New("no hourly data in response")
	errMissingHourly = errors.New("invalid response structure: missing hourly block")
)
