package main

import (
	"errors"

	"github.com/matsen/citeq/internal/config"
	"github.com/matsen/citeq/internal/httpx"
	"github.com/matsen/citeq/internal/resolve"
)

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (bad file, bad value, missing model)
	ExitResolution  = 3 // No researcher could be resolved
	ExitUpstream    = 4 // Upstream API failure (retries exhausted, rate limit)
)

// exitError carries an explicit exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// withCode tags err with an exit code.
func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCodeFor maps an error returned by a command to the process exit code.
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch {
	case resolve.IsResolutionFailed(err):
		return ExitResolution
	case errors.Is(err, config.ErrInvalid):
		return ExitConfigError
	case httpx.IsExhausted(err), httpx.IsRateLimited(err):
		return ExitUpstream
	}
	var se *httpx.StatusError
	if errors.As(err, &se) {
		return ExitUpstream
	}
	return ExitError
}
