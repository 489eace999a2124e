package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound indicates the upstream answered 404. It is never retried.
	ErrNotFound = errors.New("resource not found")

	// ErrDecode indicates a 2xx body that could not be decoded.
	ErrDecode = errors.New("malformed response body")
)

// StatusError is a non-2xx response observed on one attempt.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string // first bytes of the body, for diagnosis
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
	}
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// ExhaustedRetriesError is returned once every attempt in the retry budget
// has failed. Err is the last failure observed.
type ExhaustedRetriesError struct {
	URL        string
	Attempts   int
	StatusCode int // last observed status, 0 for transport failures
	Err        error
}

func (e *ExhaustedRetriesError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("giving up on %s after %d attempts (last status %d): %v", e.URL, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("giving up on %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *ExhaustedRetriesError) Unwrap() error { return e.Err }

// IsNotFound returns true if the error indicates a 404.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsExhausted returns true if the retry budget ran out.
func IsExhausted(err error) bool {
	var exhausted *ExhaustedRetriesError
	return errors.As(err, &exhausted)
}

// IsRateLimited returns true if the last failure was a 429.
func IsRateLimited(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}
