package resilience

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError reports a response whose status code was not 2xx.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d from %s", e.StatusCode, e.URL)
}

// NewHTTPError builds an HTTPError for the given status and URL.
func NewHTTPError(statusCode int, url string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, URL: url}
}

// IsClientError reports whether the status code falls in [400, 500).
func IsClientError(statusCode int) bool {
	return statusCode >= http.StatusBadRequest && statusCode < http.StatusInternalServerError
}

// IsRetryable classifies err for the retry loop. A 4xx HTTPError anywhere
// in the chain is fatal. Everything else is retryable, including network
// failures, client timeouts, 5xx responses, undecodable bodies, and errors
// that carry no status code at all. Cancellation of the caller's context is
// handled by the retry loop itself.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var he *HTTPError
	if errors.As(err, &he) && he.StatusCode != 0 {
		return !IsClientError(he.StatusCode)
	}

	return true
}
