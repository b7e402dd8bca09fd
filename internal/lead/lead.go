// Package lead defines the input record of the email finder and its validation rules.
package lead

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// Column is one passthrough input column, kept in input order.
type Column struct {
	Name  string
	Value string
}

// Lead identifies a person and their employer's domain.
type Lead struct {
	// Index is the 0-based position of the lead in its input.
	Index int `csv:"-"`

	FirstName     string `csv:"first_name" validate:"required"`
	LastName      string `csv:"last_name" validate:"required"`
	CompanyDomain string `csv:"company_domain" validate:"required"`

	// Extra holds the input columns that are not part of the lead identity.
	Extra []Column `csv:"-"`
}

// Key identifies a lead across runs: lower-cased first and last name plus the
// normalized domain.
func (l Lead) Key() string {
	return strings.ToLower(strings.TrimSpace(l.FirstName)) + "\x1f" +
		strings.ToLower(strings.TrimSpace(l.LastName)) + "\x1f" +
		NormalizeDomain(l.CompanyDomain)
}

// InputValidationError reports a lead that cannot be processed. The lead is skipped;
// processing continues with the remaining leads.
type InputValidationError struct {
	Index  int
	Fields []string
	Err    error
}

func (e *InputValidationError) Error() string {
	if e == nil {
		return "invalid lead"
	}
	msg := fmt.Sprintf("invalid lead %d", e.Index)
	if len(e.Fields) > 0 {
		msg += " (fields: " + strings.Join(e.Fields, ", ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InputValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("csv"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalize trims the identity fields and normalizes the company domain, then checks the
// lead. It returns *InputValidationError when a required field is missing or the domain
// is not a registrable host name. Internationalized and underscore host names are
// accepted.
func Normalize(l Lead) (Lead, error) {
	l.FirstName = strings.TrimSpace(l.FirstName)
	l.LastName = strings.TrimSpace(l.LastName)
	l.CompanyDomain = NormalizeDomain(l.CompanyDomain)

	if err := validate.Struct(l); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			reasons := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
				reasons = append(reasons, fe.Field()+" failed "+fe.Tag())
			}
			return l, &InputValidationError{Index: l.Index, Fields: fields, Err: errors.New(strings.Join(reasons, "; "))}
		}
		return l, &InputValidationError{Index: l.Index, Err: err}
	}

	if err := checkDomain(l.CompanyDomain); err != nil {
		return l, &InputValidationError{Index: l.Index, Fields: []string{"company_domain"}, Err: err}
	}
	return l, nil
}

// checkDomain rejects values that cannot be a mail domain: embedded whitespace, a
// single label, or a bare public suffix ("co.uk").
func checkDomain(d string) error {
	if strings.IndexFunc(d, unicode.IsSpace) >= 0 {
		return fmt.Errorf("company_domain %q contains whitespace", d)
	}
	// The suffix list is keyed by A-labels; Punycode does no strict host name checks.
	ascii, err := idna.Punycode.ToASCII(d)
	if err != nil {
		return fmt.Errorf("company_domain %q: %w", d, err)
	}
	if !strings.Contains(strings.Trim(ascii, "."), ".") {
		return fmt.Errorf("company_domain %q is not a host name", d)
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(ascii); err != nil {
		return err
	}
	return nil
}

// NormalizeDomain turns user-entered company domains ("https://www.Acme.com/about",
// "@acme.com", "acme.com.") into a bare lower-case host name ("acme.com").
func NormalizeDomain(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)
	if at := strings.LastIndex(s, "@"); at >= 0 && !strings.Contains(s, "://") {
		s = s[at+1:]
	}
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			s = u.Host
		}
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ".")
	s = strings.TrimPrefix(s, "www.")
	return s
}
