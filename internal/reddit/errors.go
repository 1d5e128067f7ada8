package reddit

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested user or listing does not exist
	ErrNotFound = errors.New("target not found")
	// ErrRateLimited is returned on HTTP 429
	ErrRateLimited = errors.New("rate limited by upstream")
	// ErrServiceUnavailable is returned on HTTP 503 once retries are exhausted
	ErrServiceUnavailable = errors.New("upstream service unavailable")
	// ErrServerError is returned on any other HTTP 5xx
	ErrServerError = errors.New("upstream server error")
	// ErrTimeout is returned when the request timed out or was aborted
	ErrTimeout = errors.New("upstream request timed out")
	// ErrFetch covers every other network or decoding failure
	ErrFetch = errors.New("fetch failed")
)

// FetchError describes a failed upstream call. It matches exactly one of the
// sentinel errors above through errors.Is.
type FetchError struct {
	URL        string
	StatusCode int
	Kind       error
	Err        error
}

func (e *FetchError) Error() string {
	msg := e.Kind.Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StatusError builds the FetchError for a non-2xx response
func StatusError(url string, status int) *FetchError {
	return &FetchError{URL: url, StatusCode: status, Kind: kindForStatus(status)}
}

func kindForStatus(status int) error {
	switch {
	case status == 404:
		return ErrNotFound
	case status == 429:
		return ErrRateLimited
	case status == 503:
		return ErrServiceUnavailable
	case status >= 500:
		return ErrServerError
	default:
		return ErrFetch
	}
}
