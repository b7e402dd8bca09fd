package pipeline_test

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/shpitdev/email-pattern-finder/internal/engine"
	"github.com/shpitdev/email-pattern-finder/internal/lead"
	"github.com/shpitdev/email-pattern-finder/internal/pipeline"
	"github.com/shpitdev/email-pattern-finder/internal/verify"
)

func TestReadLeadsCSV(t *testing.T) {
	t.Run("required columns and passthrough", func(t *testing.T) {
		in := "\ufeffCompany, First_Name ,last_name,Company_Domain,linkedin\n" +
			"Acme,John,Doe,acme.com,https://linkedin.com/in/jd\n" +
			",,,,\n" +
			"Globex,Ann,,globex.io\n"
		got, err := pipeline.ReadLeadsCSV(strings.NewReader(in))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(got.Extra, []string{"Company", "linkedin"}) {
			t.Fatalf("unexpected extra columns: %#v", got.Extra)
		}
		if len(got.Leads) != 2 {
			t.Fatalf("expected 2 leads (blank row skipped), got %d", len(got.Leads))
		}
		first := got.Leads[0]
		if first.Index != 0 || first.FirstName != "John" || first.LastName != "Doe" || first.CompanyDomain != "acme.com" {
			t.Fatalf("unexpected lead[0]: %#v", first)
		}
		wantExtra := []lead.Column{{Name: "Company", Value: "Acme"}, {Name: "linkedin", Value: "https://linkedin.com/in/jd"}}
		if !reflect.DeepEqual(first.Extra, wantExtra) {
			t.Fatalf("unexpected lead[0] extra: %#v", first.Extra)
		}
		second := got.Leads[1]
		if second.Index != 1 || second.LastName != "" || second.Extra[1].Value != "" {
			t.Fatalf("short row should pad with empty values: %#v", second)
		}
	})

	t.Run("result columns are not passed through", func(t *testing.T) {
		in := "first_name,last_name,company_domain,validated_email,notes\nJohn,Doe,acme.com,old@acme.com,x\n"
		got, err := pipeline.ReadLeadsCSV(strings.NewReader(in))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(got.Extra, []string{"notes"}) {
			t.Fatalf("unexpected extra columns: %#v", got.Extra)
		}
	})

	t.Run("missing columns", func(t *testing.T) {
		_, err := pipeline.ReadLeadsCSV(strings.NewReader("first_name,domain\nJohn,acme.com\n"))
		if err == nil || !strings.Contains(err.Error(), "last_name, company_domain") {
			t.Fatalf("expected missing column error, got %v", err)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := pipeline.ReadLeadsCSV(strings.NewReader("")); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := pipeline.WriteCSV(&buf, []string{"company"}, []pipeline.Row{
		{
			FirstName: "John", LastName: "Doe", CompanyDomain: "acme.com",
			ValidatedEmail: "john@acme.com", ValidationStatus: "safe", IsReachable: "safe",
			IsReachableSMTP: true, MXRecords: []string{"mx1.acme.com", "mx2.acme.com"},
			PatternsTested: 3, PatternsValidated: 2,
			Extra: []lead.Column{{Name: "company", Value: "Acme, Inc."}},
		},
		{
			FirstName: "Ann", LastName: "Lee", CompanyDomain: "globex.io",
			ValidationStatus: "none_found", PatternsTested: 20,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "first_name,last_name,company_domain,validated_email,validation_status,is_reachable,is_reachable_smtp,is_disposable,is_role_account,mx_records,patterns_tested,patterns_validated,company\n" +
		"John,Doe,acme.com,john@acme.com,safe,safe,true,false,false,\"mx1.acme.com, mx2.acme.com\",3,2,\"Acme, Inc.\"\n" +
		"Ann,Lee,globex.io,,none_found,,false,false,false,,20,0,\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestResultsRoundTrip(t *testing.T) {
	rows := []pipeline.Row{{
		FirstName: "John", LastName: "Doe", CompanyDomain: "acme.com",
		ValidatedEmail: "john@acme.com", ValidationStatus: "risky", IsReachable: "risky",
		IsDisposable: true, IsRoleAccount: true, MXRecords: []string{"mx.acme.com"},
		PatternsTested: 5, PatternsValidated: 1,
		Extra: []lead.Column{{Name: "title", Value: "CTO"}},
	}}
	var buf bytes.Buffer
	if err := pipeline.WriteCSV(&buf, []string{"title"}, rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := pipeline.ReadResultsCSV(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got.Extra, []string{"title"}) {
		t.Fatalf("unexpected extra: %#v", got.Extra)
	}
	if !reflect.DeepEqual(got.Rows, rows) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", got.Rows, rows)
	}
}

func TestReadResultsCSV_MissingColumn(t *testing.T) {
	_, err := pipeline.ReadResultsCSV(strings.NewReader("first_name,last_name\nJohn,Doe\n"))
	if err == nil || !strings.Contains(err.Error(), "company_domain") {
		t.Fatalf("expected missing column error, got %v", err)
	}
}

func TestFromResult(t *testing.T) {
	res := engine.LeadResult{
		Lead:              lead.Lead{Index: 7, FirstName: "John", LastName: "Doe", CompanyDomain: "acme.com", Extra: []lead.Column{{Name: "x", Value: "1"}}},
		ValidatedEmail:    "john@acme.com",
		Status:            engine.StatusSafe,
		IsReachable:       verify.StatusSafe,
		IsReachableSMTP:   true,
		MXRecords:         []string{"mx.acme.com"},
		PatternsTested:    3,
		PatternsValidated: 2,
	}
	row := pipeline.FromResult(res)
	if row.Index != 7 || row.ValidationStatus != "safe" || row.IsReachable != "safe" || row.ValidatedEmail != "john@acme.com" || !row.Found() {
		t.Fatalf("unexpected row: %#v", row)
	}
	if len(row.Extra) != 1 || row.Extra[0].Value != "1" {
		t.Fatalf("extra not carried: %#v", row.Extra)
	}
}
