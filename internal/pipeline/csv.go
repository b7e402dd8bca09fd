package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shpitdev/email-pattern-finder/internal/lead"
)

// Writer streams result rows; every row is flushed so an interrupted run keeps what it
// finished.
type Writer struct {
	cw    *csv.Writer
	extra []string
}

// NewWriter writes the header for the given passthrough columns.
func NewWriter(w io.Writer, extra []string) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(extra)); err != nil {
		return nil, err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return &Writer{cw: cw, extra: extra}, nil
}

func (w *Writer) Write(r Row) error {
	if err := w.cw.Write(r.record(w.extra)); err != nil {
		return err
	}
	w.cw.Flush()
	return w.cw.Error()
}

// WriteCSV writes rows with the stable Header ordering.
func WriteCSV(w io.Writer, extra []string, rows []Row) error {
	rw, err := NewWriter(w, extra)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := rw.Write(r); err != nil {
			return err
		}
	}
	return nil
}

// ResultFile is a parsed result CSV.
type ResultFile struct {
	Rows  []Row
	Extra []string
}

// ReadResultsCSV reads a CSV written by WriteCSV. All stable columns must be present;
// any others are kept as passthrough.
func ReadResultsCSV(r io.Reader) (ResultFile, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return ResultFile{}, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	reserved := reservedColumns()
	var out ResultFile
	var extraIdx []int
	for i, name := range header {
		name = strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")
		if _, dup := index[name]; dup {
			continue
		}
		index[name] = i
		if _, ok := reserved[name]; !ok && name != "" {
			out.Extra = append(out.Extra, name)
			extraIdx = append(extraIdx, i)
		}
	}
	for _, name := range Header(nil) {
		if _, ok := index[name]; !ok {
			return ResultFile{}, fmt.Errorf("missing required column %q", name)
		}
	}

	for n := 0; ; n++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return ResultFile{}, fmt.Errorf("read row %d: %w", n+1, err)
		}

		get := func(col string) string {
			i := index[col]
			if i < 0 || i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		row := Row{
			Index:             n,
			FirstName:         get("first_name"),
			LastName:          get("last_name"),
			CompanyDomain:     get("company_domain"),
			ValidatedEmail:    get("validated_email"),
			ValidationStatus:  strings.TrimSpace(get("validation_status")),
			IsReachable:       strings.TrimSpace(get("is_reachable")),
			IsReachableSMTP:   parseBool(get("is_reachable_smtp")),
			IsDisposable:      parseBool(get("is_disposable")),
			IsRoleAccount:     parseBool(get("is_role_account")),
			MXRecords:         splitRecords(get("mx_records")),
			PatternsTested:    parseInt(get("patterns_tested")),
			PatternsValidated: parseInt(get("patterns_validated")),
		}
		for j, i := range extraIdx {
			v := ""
			if i < len(rec) {
				v = rec[i]
			}
			row.Extra = append(row.Extra, lead.Column{Name: out.Extra[j], Value: v})
		}
		out.Rows = append(out.Rows, row)
	}
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	return err == nil && b
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func splitRecords(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
