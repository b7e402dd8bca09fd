// Package verify defines the contract for external email deliverability checks and the
// decorators (throttle, retry, tracing) that wrap a validator.
package verify

import (
	"context"
	"strings"
)

// Status is the validator's deliverability verdict for one address.
type Status string

const (
	StatusSafe    Status = "safe"
	StatusRisky   Status = "risky"
	StatusInvalid Status = "invalid"
	StatusUnknown Status = "unknown"
)

// ParseStatus maps a validator verdict to a Status. Anything unrecognized is unknown.
func ParseStatus(s string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusSafe:
		return StatusSafe
	case StatusRisky:
		return StatusRisky
	case StatusInvalid:
		return StatusInvalid
	default:
		return StatusUnknown
	}
}

// Definitive reports whether the verdict will not change on retry. Unknown results are
// not cached.
func (s Status) Definitive() bool {
	return s == StatusSafe || s == StatusRisky || s == StatusInvalid
}

// Result is the validator's answer for one address.
type Result struct {
	Address         string   `json:"address"`
	Status          Status   `json:"status"`
	IsReachableSMTP bool     `json:"is_reachable_smtp"`
	IsDisposable    bool     `json:"is_disposable"`
	IsRoleAccount   bool     `json:"is_role_account"`
	IsCatchAll      bool     `json:"is_catch_all"`
	MXRecords       []string `json:"mx_records,omitempty"`

	// Cached is set when the result was served from a cache rather than the validator.
	Cached bool `json:"-"`
}

// Validator checks the deliverability of one address.
type Validator interface {
	Validate(ctx context.Context, address string) (Result, error)
}

// Func adapts a plain function to Validator.
type Func func(ctx context.Context, address string) (Result, error)

func (f Func) Validate(ctx context.Context, address string) (Result, error) {
	return f(ctx, address)
}
