package engine

import (
	"github.com/shpitdev/email-pattern-finder/internal/lead"
	"github.com/shpitdev/email-pattern-finder/internal/verify"
)

// Status is the outcome for one lead.
type Status string

const (
	StatusSafe      Status = "safe"
	StatusRisky     Status = "risky"
	StatusNoneFound Status = "none_found"
)

// LeadResult is the best address found for a lead. ValidatedEmail is set exactly when
// Status is safe or risky; IsReachable then holds the validator's verdict for it.
type LeadResult struct {
	Lead lead.Lead

	ValidatedEmail  string
	Status          Status
	IsReachable     verify.Status
	IsReachableSMTP bool
	IsDisposable    bool
	IsRoleAccount   bool
	MXRecords       []string

	// PatternsTested counts submissions; PatternsValidated counts safe or risky verdicts.
	PatternsTested    int
	PatternsValidated int

	// Reused marks a result carried over from a previous run.
	Reused bool
}

// Found reports whether an address was selected.
func (r LeadResult) Found() bool {
	return r.Status == StatusSafe || r.Status == StatusRisky
}

func (r *LeadResult) accept(addr string, s Status, res verify.Result) {
	r.ValidatedEmail = addr
	r.Status = s
	r.IsReachable = res.Status
	r.IsReachableSMTP = res.IsReachableSMTP
	r.IsDisposable = res.IsDisposable
	r.IsRoleAccount = res.IsRoleAccount
	r.MXRecords = append([]string(nil), res.MXRecords...)
}
