// Package pipeline reads leads and writes validation results as CSV, and plans
// incremental reruns against a previous output.
package pipeline

import (
	"strconv"
	"strings"

	"github.com/shpitdev/email-pattern-finder/internal/engine"
	"github.com/shpitdev/email-pattern-finder/internal/lead"
)

// Row is the stable output schema for one lead.
type Row struct {
	// Index is the lead's input position. It is not written.
	Index int

	FirstName         string
	LastName          string
	CompanyDomain     string
	ValidatedEmail    string
	ValidationStatus  string
	IsReachable       string
	IsReachableSMTP   bool
	IsDisposable      bool
	IsRoleAccount     bool
	MXRecords         []string
	PatternsTested    int
	PatternsValidated int

	Extra []lead.Column
}

// Header returns the stable result columns followed by the passthrough columns.
func Header(extra []string) []string {
	h := []string{
		"first_name",
		"last_name",
		"company_domain",
		"validated_email",
		"validation_status",
		"is_reachable",
		"is_reachable_smtp",
		"is_disposable",
		"is_role_account",
		"mx_records",
		"patterns_tested",
		"patterns_validated",
	}
	return append(h, extra...)
}

func reservedColumns() map[string]struct{} {
	h := Header(nil)
	m := make(map[string]struct{}, len(h))
	for _, c := range h {
		m[c] = struct{}{}
	}
	return m
}

// FromResult converts an engine result to its output row.
func FromResult(r engine.LeadResult) Row {
	return Row{
		Index:             r.Lead.Index,
		FirstName:         r.Lead.FirstName,
		LastName:          r.Lead.LastName,
		CompanyDomain:     r.Lead.CompanyDomain,
		ValidatedEmail:    r.ValidatedEmail,
		ValidationStatus:  string(r.Status),
		IsReachable:       string(r.IsReachable),
		IsReachableSMTP:   r.IsReachableSMTP,
		IsDisposable:      r.IsDisposable,
		IsRoleAccount:     r.IsRoleAccount,
		MXRecords:         append([]string(nil), r.MXRecords...),
		PatternsTested:    r.PatternsTested,
		PatternsValidated: r.PatternsValidated,
		Extra:             r.Lead.Extra,
	}
}

// Key matches the row to a lead.Lead key.
func (r Row) Key() string {
	return lead.Lead{FirstName: r.FirstName, LastName: r.LastName, CompanyDomain: r.CompanyDomain}.Key()
}

// Found reports whether the row carries an address.
func (r Row) Found() bool {
	return strings.TrimSpace(r.ValidatedEmail) != "" &&
		(r.ValidationStatus == string(engine.StatusSafe) || r.ValidationStatus == string(engine.StatusRisky))
}

func (r Row) record(extra []string) []string {
	rec := []string{
		r.FirstName,
		r.LastName,
		r.CompanyDomain,
		r.ValidatedEmail,
		r.ValidationStatus,
		r.IsReachable,
		strconv.FormatBool(r.IsReachableSMTP),
		strconv.FormatBool(r.IsDisposable),
		strconv.FormatBool(r.IsRoleAccount),
		strings.Join(r.MXRecords, ", "),
		strconv.Itoa(r.PatternsTested),
		strconv.Itoa(r.PatternsValidated),
	}
	if len(extra) == 0 {
		return rec
	}
	vals := make(map[string]string, len(r.Extra))
	for _, c := range r.Extra {
		vals[c.Name] = c.Value
	}
	for _, name := range extra {
		rec = append(rec, vals[name])
	}
	return rec
}
