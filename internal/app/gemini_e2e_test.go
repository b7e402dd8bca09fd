//go:build gemini_e2e

package app_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shpitdev/email-pattern-finder/internal/app"
	"github.com/shpitdev/email-pattern-finder/internal/config"
	"github.com/shpitdev/email-pattern-finder/internal/personalize"
	"github.com/shpitdev/email-pattern-finder/internal/worker"
)

func TestRunPersonalize_RealGemini_EndToEnd(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Fatalf("GEMINI_API_KEY is required for gemini_e2e tests")
	}
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		t.Fatalf("GEMINI_MODEL is required for gemini_e2e tests")
	}

	ctx := context.Background()

	baseDir := t.TempDir()
	if artifactDir := os.Getenv("GEMINI_E2E_ARTIFACT_DIR"); artifactDir != "" {
		if err := os.MkdirAll(artifactDir, 0755); err != nil {
			t.Fatalf("create GEMINI_E2E_ARTIFACT_DIR: %v", err)
		}
		baseDir = artifactDir
	}

	// Synthetic prospects only; this checks API and schema assumptions.
	in := "first_name,last_name,company_domain,validated_email,validation_status,is_reachable,is_reachable_smtp," +
		"is_disposable,is_role_account,mx_records,patterns_tested,patterns_validated,title\n" +
		"Alice,Example,example.com,alice.example@example.com,safe,safe,true,false,false,mx.example.com,1,1,Head of Data\n" +
		"Bob,Sample,example.org,bob@example.org,risky,risky,false,false,false,,4,1,CTO\n" +
		"Carol,None,example.net,,none_found,,false,false,false,,20,0,CEO\n"
	inputPath := filepath.Join(baseDir, "validated.csv")
	outputPath := filepath.Join(baseDir, "personalized.csv")
	if err := os.WriteFile(inputPath, []byte(in), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	cfg := config.Defaults()
	cfg.Gemini.APIKey = apiKey
	cfg.Gemini.Model = model
	cfg.Gemini.BaseURL = os.Getenv("GEMINI_BASE_URL")
	cfg.ProductDescription = "A data quality platform that deduplicates CRM records."

	drafter, err := app.BuildDrafter(ctx, cfg)
	if err != nil {
		t.Fatalf("create gemini drafter: %v", err)
	}

	report, err := app.RunPersonalize(ctx, app.PersonalizeOptions{
		InputPath:  inputPath,
		OutputPath: outputPath,
		Worker: personalize.Options{
			Workers:        1,
			MaxRetries:     2,
			RequestTimeout: 60 * time.Second,
			FailurePolicy:  worker.FailurePolicyFailFast,
		},
	}, drafter, nil)
	if err != nil {
		t.Fatalf("RunPersonalize failed: %v", err)
	}
	if report.Drafted != 2 {
		t.Fatalf("expected 2 drafts, got %+v", report)
	}

	b, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	if err != nil {
		t.Fatalf("parse output csv: %v", err)
	}
	if len(records) != 1+2 {
		t.Fatalf("expected header + 2 rows, got %d records", len(records))
	}

	wantHeader := personalize.Header()
	for i := range wantHeader {
		if records[0][i] != wantHeader[i] {
			t.Fatalf("header[%d]: want %q got %q", i, wantHeader[i], records[0][i])
		}
	}
	for i := 1; i < len(records); i++ {
		row := records[i]
		if row[4] == "" || row[5] == "" {
			t.Fatalf("row[%d] missing subject or message: %#v", i, row)
		}
		if row[6] != "ok" {
			t.Fatalf("row[%d] expected status ok, got %#v", i, row)
		}
		if row[8] != model {
			t.Fatalf("row[%d] expected model %q, got %#v", i, model, row)
		}
	}
}
