package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	ErrMissingBaseURL = errors.New("base url is required")
	ErrMissingAPIKey  = errors.New("api key is required")
	ErrEmptyEnvelope  = errors.New("envelope has no messages")
)

// FailureReason is a typed enum for classifying why a submission failed.
type FailureReason string

const (
	ReasonTimeout  FailureReason = "timeout"
	ReasonNetwork  FailureReason = "network"
	ReasonAuth     FailureReason = "auth"
	ReasonStatus   FailureReason = "status"
	ReasonShape    FailureReason = "shape"
	ReasonCanceled FailureReason = "canceled"
)

// RequestError is the terminal failure of a submission. It carries the
// classified reason, the HTTP status when one was seen, and how many
// attempts were made before giving up.
type RequestError struct {
	Reason   FailureReason
	Status   int
	Attempts int
	Err      error
}

func (e *RequestError) Error() string {
	cause := string(e.Reason)
	if e.Status > 0 {
		cause = fmt.Sprintf("%s (http %d)", cause, e.Status)
	}
	if e.Err != nil {
		cause = fmt.Sprintf("%s: %v", cause, e.Err)
	}
	return fmt.Sprintf("request failed after %d attempt(s): %s", e.Attempts, cause)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// retryable reports whether another attempt could succeed.
func (e *RequestError) retryable() bool {
	switch e.Reason {
	case ReasonTimeout, ReasonNetwork:
		return true
	case ReasonStatus:
		return retryableStatus(e.Status)
	}
	return false
}

// Reason extracts the failure classification from err, or "" if err does
// not wrap a RequestError.
func Reason(err error) FailureReason {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Reason
	}
	return ""
}

// IsTimeout checks if the error is a timeout-classified request failure.
func IsTimeout(err error) bool {
	return Reason(err) == ReasonTimeout
}

// IsAuth checks if the error is an authentication (401) failure.
func IsAuth(err error) bool {
	return Reason(err) == ReasonAuth
}

// IsRateLimited checks if the error is a rate limit (429) failure.
func IsRateLimited(err error) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Status == http.StatusTooManyRequests
	}
	return false
}

// retryableStatus reports whether an HTTP status is transient enough to
// retry. Rate limits and server-side errors qualify; everything else is
// terminal on first sight.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

var timeoutPatterns = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"etimedout",
}

// classifyTransport assigns a reason to an error from the HTTP round trip.
func classifyTransport(err error) FailureReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	if containsAnyPattern(err, timeoutPatterns) {
		return ReasonTimeout
	}
	return ReasonNetwork
}

// reasonFromContext maps a parent-context error to a failure reason.
func reasonFromContext(err error) FailureReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonCanceled
}

// containsAnyPattern checks if the lowercased error message contains any
// of the given patterns.
func containsAnyPattern(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
