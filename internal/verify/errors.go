package verify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// TransientError marks a validator failure as retryable (timeouts, connection resets,
// HTTP 429 and 5xx).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// LimitedTransientError is a TransientError that caps how many extra retries it gets,
// independent of the configured retry budget.
type LimitedTransientError struct {
	Err        error
	MaxRetries int
}

func (e *LimitedTransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *LimitedTransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return &TransientError{Err: e.Err}
}

func (e *LimitedTransientError) MaxExtraRetries() int {
	if e == nil || e.MaxRetries < 0 {
		return 0
	}
	return e.MaxRetries
}

// MalformedResponseError reports a validator payload that could not be interpreted.
type MalformedResponseError struct {
	Address string
	Reason  string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	if e == nil {
		return "malformed validator response"
	}
	msg := "malformed validator response"
	if e.Address != "" {
		msg += " for " + e.Address
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HTTPError is a sanitized summary of a non-2xx validator response.
//
// Raw bodies are never kept; Snippet is redacted and truncated.
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	Message    string
	Snippet    string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "validator http error"
	}
	parts := []string{
		fmt.Sprintf("validator api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.Message) != "" {
		parts = append(parts, "message="+strings.TrimSpace(e.Message))
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

type retryCap interface {
	MaxExtraRetries() int
}

// RetryBudget returns how many extra attempts err may get, given the configured default.
func RetryBudget(defaultMax int, err error) int {
	if defaultMax < 0 {
		defaultMax = 0
	}
	var capErr retryCap
	if errors.As(err, &capErr) {
		capMax := capErr.MaxExtraRetries()
		if capMax < 0 {
			capMax = 0
		}
		if capMax < defaultMax {
			return capMax
		}
	}
	return defaultMax
}
