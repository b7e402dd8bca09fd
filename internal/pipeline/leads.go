package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shpitdev/email-pattern-finder/internal/lead"
)

// LeadFile is a parsed leads CSV.
type LeadFile struct {
	Leads []lead.Lead
	// Extra names the passthrough columns, in input order.
	Extra []string
}

var leadColumns = []string{"first_name", "last_name", "company_domain"}

// ReadLeadsCSV reads leads from a CSV with first_name, last_name and company_domain
// columns (matched case-insensitively). Other columns are carried through to the output,
// except those that collide with result columns.
//
// Rows are not validated here; blank or malformed leads are reported when processed.
func ReadLeadsCSV(r io.Reader) (LeadFile, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return LeadFile{}, errors.New("read header: empty input")
	}
	if err != nil {
		return LeadFile{}, fmt.Errorf("read header: %w", err)
	}

	idx := map[string]int{}
	reserved := reservedColumns()
	var out LeadFile
	var extraIdx []int
	for i, col := range header {
		name := normalizeColumn(col)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if _, dup := idx[name]; dup {
			continue
		}
		idx[name] = i
		if _, ok := reserved[name]; ok || name == "" {
			continue
		}
		out.Extra = append(out.Extra, strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		extraIdx = append(extraIdx, i)
	}
	var missing []string
	for _, name := range leadColumns {
		if _, ok := idx[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return LeadFile{}, fmt.Errorf("missing required column(s) %s", strings.Join(missing, ", "))
	}

	for n := 0; ; n++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return LeadFile{}, fmt.Errorf("read row %d: %w", n+1, err)
		}
		if blank(rec) {
			continue
		}
		get := func(i int) string {
			if i < 0 || i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		l := lead.Lead{
			Index:         len(out.Leads),
			FirstName:     get(idx["first_name"]),
			LastName:      get(idx["last_name"]),
			CompanyDomain: get(idx["company_domain"]),
		}
		for j, i := range extraIdx {
			l.Extra = append(l.Extra, lead.Column{Name: out.Extra[j], Value: get(i)})
		}
		out.Leads = append(out.Leads, l)
	}
}

func normalizeColumn(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
