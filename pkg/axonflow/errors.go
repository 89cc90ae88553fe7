package axonflow

import (
	"errors"
	"fmt"

	"github.com/getaxonflow/axonflow-go/internal/retry"
)

// Common sentinel errors.
var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrClientClosed       = errors.New("client is closed")
	ErrMissingConnectorID = errors.New("connector id is required")
)

// ConnectionError indicates the request never produced a response:
// DNS failure, refused connection, dropped socket, attempt timeout.
// These are transient and safe to retry.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Retryable reports that connection failures may be retried.
func (e *ConnectionError) Retryable() bool { return true }

// AuthenticationError indicates the agent rejected the client credentials (401).
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Message != "" {
		return "authentication failed: " + e.Message
	}
	return "authentication failed"
}

// PolicyViolationError indicates a request was denied by governance policy,
// either via a 403 or a response carrying blocked=true. It is never retried
// and never swallowed: a blocked LLM call must surface to the application.
type PolicyViolationError struct {
	Policy      string
	BlockReason string
	Policies    []string
	StatusCode  int
}

func (e *PolicyViolationError) Error() string {
	msg := "request blocked by policy"
	if e.Policy != "" {
		msg += " " + e.Policy
	}
	if e.BlockReason != "" {
		msg += ": " + e.BlockReason
	}
	return msg
}

// NotFoundError indicates an entity-scoped read returned 404.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
	}
	return e.Resource + " not found"
}

// ServerError indicates a 5xx (or transient 408/429) response. Retryable up
// to the configured attempt limit, then surfaced with the final status and body.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Retryable reports that server errors may be retried.
func (e *ServerError) Retryable() bool { return true }

// ClientError indicates a non-retryable 4xx response outside the dedicated
// taxonomy (not 401/403/404 and not the transient 408/429 subset).
type ClientError struct {
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// RetryExhaustedError wraps the last error observed after all retry attempts.
type RetryExhaustedError = retry.ExhaustedError

// IsRetryable reports whether err (or anything it wraps) is a transient
// failure the retry engine may re-attempt.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

// IsPolicyViolation reports whether err is a governance block.
func IsPolicyViolation(err error) bool {
	var pv *PolicyViolationError
	return errors.As(err, &pv)
}

// IsNotFound reports whether err is an entity-not-found failure.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
