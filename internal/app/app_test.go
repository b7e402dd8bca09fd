package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/email-pattern-finder/internal/app"
	"github.com/shpitdev/email-pattern-finder/internal/config"
	"github.com/shpitdev/email-pattern-finder/internal/engine"
	"github.com/shpitdev/email-pattern-finder/internal/mockreacher"
	"github.com/shpitdev/email-pattern-finder/internal/personalize"
	"github.com/shpitdev/email-pattern-finder/internal/pipeline"
	"github.com/shpitdev/email-pattern-finder/internal/verify"
	"github.com/shpitdev/email-pattern-finder/internal/worker"
)

const leadsCSV = "First_Name,last_name,company_domain,title\n" +
	"John,Doe,https://www.acme.com/,CTO\n" +
	"Jane,Roe,beta.io,VP Sales\n" +
	"Solo,,acme.com,Founder\n"

func setup(t *testing.T) (*mockreacher.Server, config.Config, string) {
	t.Helper()

	mock := mockreacher.New()
	mock.AddMailbox("john.doe@acme.com", "safe")
	mock.SetCatchAll("beta.io")
	mock.RequireBearerToken("secret-token")
	ts := httptest.NewServer(mock.Handler())
	t.Cleanup(ts.Close)

	cfg := config.Defaults()
	cfg.Reacher.URL = ts.URL
	cfg.Reacher.APIKey = "secret-token"
	cfg.ValidationDelay = 0
	cfg.MaxRetries = 0
	cfg.RequestTimeout = 5 * time.Second

	dir := t.TempDir()
	in := filepath.Join(dir, "leads.csv")
	require.NoError(t, os.WriteFile(in, []byte(leadsCSV), 0o644))
	return mock, cfg, in
}

func readOutput(t *testing.T, path string) pipeline.ResultFile {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	out, err := pipeline.ReadResultsCSV(f)
	require.NoError(t, err)
	return out
}

func TestRunFind_EndToEndAgainstMockReacher(t *testing.T) {
	t.Parallel()
	mock, cfg, in := setup(t)

	v, closeFn, err := app.BuildValidator(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	outDir := filepath.Join(t.TempDir(), "nested", "out")
	now := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	report, err := app.RunFind(context.Background(), app.FindOptions{
		InputPath: in,
		OutputDir: outDir,
		Engine:    app.EngineConfig(cfg),
		Now:       func() time.Time { return now },
	}, v, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, "validated_emails_20261015_093000.csv"), report.OutputPath)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Rows)
	assert.Equal(t, 1, report.Summary.Safe)
	assert.Equal(t, 1, report.Summary.NoneFound)
	require.Len(t, report.Summary.Skipped, 1)
	assert.Equal(t, 2, report.Summary.Skipped[0].Index)

	out := readOutput(t, report.OutputPath)
	assert.Equal(t, []string{"title"}, out.Extra)
	require.Len(t, out.Rows, 2)

	john := out.Rows[0]
	assert.Equal(t, "john.doe@acme.com", john.ValidatedEmail)
	assert.Equal(t, "safe", john.ValidationStatus)
	assert.Equal(t, "safe", john.IsReachable)
	assert.Equal(t, "acme.com", john.CompanyDomain)
	assert.Equal(t, 1, john.PatternsTested)
	assert.Equal(t, 1, john.PatternsValidated)
	assert.True(t, john.IsReachableSMTP)
	assert.Equal(t, []string{"mx1.acme.com"}, john.MXRecords)
	require.Len(t, john.Extra, 1)
	assert.Equal(t, "CTO", john.Extra[0].Value)

	jane := out.Rows[1]
	assert.Equal(t, "none_found", jane.ValidationStatus)
	assert.Empty(t, jane.ValidatedEmail)
	assert.Empty(t, jane.IsReachable)
	assert.Equal(t, len(mock.Calls())-1, jane.PatternsTested)
	assert.Equal(t, jane.PatternsTested, jane.PatternsValidated)
}

func TestRunFind_IncludeRisky(t *testing.T) {
	t.Parallel()
	_, cfg, in := setup(t)
	cfg.IncludeRisky = true

	v, closeFn, err := app.BuildValidator(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	outPath := filepath.Join(t.TempDir(), "out.csv")
	_, err = app.RunFind(context.Background(), app.FindOptions{
		InputPath:  in,
		OutputPath: outPath,
		Engine:     app.EngineConfig(cfg),
	}, v, nil)
	require.NoError(t, err)

	out := readOutput(t, outPath)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "risky", out.Rows[1].ValidationStatus)
	assert.Equal(t, "jane.roe@beta.io", out.Rows[1].ValidatedEmail)
}

func TestRunFind_ResumeReusesSafeRows(t *testing.T) {
	t.Parallel()
	mock, cfg, in := setup(t)

	v, closeFn, err := app.BuildValidator(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	dir := t.TempDir()
	first := filepath.Join(dir, "first.csv")
	_, err = app.RunFind(context.Background(), app.FindOptions{InputPath: in, OutputPath: first, Engine: app.EngineConfig(cfg)}, v, nil)
	require.NoError(t, err)
	callsAfterFirst := mock.Calls()

	second := filepath.Join(dir, "second.csv")
	report, err := app.RunFind(context.Background(), app.FindOptions{
		InputPath:  in,
		OutputPath: second,
		ResumeFrom: first,
		Engine:     app.EngineConfig(cfg),
	}, v, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.Reused)

	for _, c := range mock.Calls()[len(callsAfterFirst):] {
		assert.False(t, strings.HasSuffix(c.ToEmail, "@acme.com"), "john should be reused, got call for %s", c.ToEmail)
	}

	a := readOutput(t, first)
	b := readOutput(t, second)
	require.Len(t, b.Rows, 2)
	assert.Equal(t, a.Rows[0].ValidatedEmail, b.Rows[0].ValidatedEmail)
	assert.Equal(t, a.Rows[1].ValidationStatus, b.Rows[1].ValidationStatus)
}

func TestRunFind_CachedValidatorSkipsRepeatCalls(t *testing.T) {
	t.Parallel()
	mock, cfg, in := setup(t)
	mr := miniredis.RunT(t)
	cfg.Cache.RedisURL = "redis://" + mr.Addr()

	v, closeFn, err := app.BuildValidator(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	dir := t.TempDir()
	_, err = app.RunFind(context.Background(), app.FindOptions{
		InputPath:  in,
		OutputPath: filepath.Join(dir, "a.csv"),
		Engine:     app.EngineConfig(cfg),
	}, v, nil)
	require.NoError(t, err)
	require.NotEmpty(t, mock.Calls())

	callsFirst := len(mock.Calls())
	_, err = app.RunFind(context.Background(), app.FindOptions{
		InputPath:  in,
		OutputPath: filepath.Join(dir, "c.csv"),
		Engine:     app.EngineConfig(cfg),
	}, v, nil)
	require.NoError(t, err)
	assert.Equal(t, callsFirst, len(mock.Calls()))
	assert.Equal(t, readOutput(t, filepath.Join(dir, "a.csv")).Rows, readOutput(t, filepath.Join(dir, "c.csv")).Rows)
}

func TestRunFind_ValidatorUnavailableWritesPartialOutput(t *testing.T) {
	t.Parallel()
	mock, cfg, in := setup(t)
	mock.FailNext(http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusServiceUnavailable)
	cfg.MaxConsecutiveErrors = 3

	v, closeFn, err := app.BuildValidator(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	outPath := filepath.Join(t.TempDir(), "partial.csv")
	report, err := app.RunFind(context.Background(), app.FindOptions{InputPath: in, OutputPath: outPath, Engine: app.EngineConfig(cfg)}, v, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, engine.ErrValidatorUnavailable))
	assert.Equal(t, outPath, report.OutputPath)
	assert.Len(t, mock.Calls(), 3)

	out := readOutput(t, outPath)
	assert.Empty(t, out.Rows)
	assert.Equal(t, []string{"title"}, out.Extra)
}

func TestRunFind_StreamsRowsAndCountsDuplicates(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	in := filepath.Join(dir, "leads.csv")
	require.NoError(t, os.WriteFile(in, []byte("first_name,last_name,company_domain\n"+
		"John,Doe,acme.com\n"+
		"Jane,Roe,beta.io\n"+
		"john,DOE,www.acme.com\n"), 0o644))
	outPath := filepath.Join(dir, "out.csv")

	var seenWhileJaneRan []string
	v := verify.Func(func(_ context.Context, address string) (verify.Result, error) {
		if address == "john.doe@acme.com" {
			return verify.Result{Address: address, Status: verify.StatusSafe}, nil
		}
		if strings.HasSuffix(address, "@beta.io") && seenWhileJaneRan == nil {
			data, err := os.ReadFile(outPath)
			if err != nil {
				return verify.Result{}, err
			}
			seenWhileJaneRan = strings.Split(strings.TrimSpace(string(data)), "\n")
		}
		return verify.Result{Address: address, Status: verify.StatusInvalid}, nil
	})

	cfg := config.Defaults()
	cfg.ValidationDelay = 0
	report, err := app.RunFind(context.Background(), app.FindOptions{InputPath: in, OutputPath: outPath, Engine: app.EngineConfig(cfg)}, v, nil)
	require.NoError(t, err)

	// John's row is on disk before Jane's validation finishes.
	require.Len(t, seenWhileJaneRan, 2)
	assert.True(t, strings.HasPrefix(seenWhileJaneRan[1], "John,Doe,acme.com,john.doe@acme.com,safe"))

	assert.Equal(t, 3, report.Rows)
	assert.Equal(t, 3, report.Summary.Leads)
	assert.Equal(t, 2, report.Summary.Safe)
	assert.Equal(t, 1, report.Summary.NoneFound)
	assert.Equal(t, report.Rows, report.Summary.Safe+report.Summary.Risky+report.Summary.NoneFound)

	out := readOutput(t, outPath)
	require.Len(t, out.Rows, 3)
	assert.Equal(t, "john.doe@acme.com", out.Rows[2].ValidatedEmail)
	assert.Equal(t, "none_found", out.Rows[1].ValidationStatus)
}

func TestRunFind_MissingInput(t *testing.T) {
	t.Parallel()
	_, err := app.RunFind(context.Background(), app.FindOptions{
		InputPath: filepath.Join(t.TempDir(), "missing.csv"),
		Engine:    engine.DefaultConfig(),
	}, nil, nil)
	require.Error(t, err)
}

func TestBuildValidator_BadRedis(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()
	cfg.Cache.RedisURL = "redis://127.0.0.1:1"
	_, closeFn, err := app.BuildValidator(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "result cache")
	assert.NoError(t, closeFn())
}

type fakeDrafter struct{}

func (fakeDrafter) Draft(_ context.Context, p personalize.Prospect) (personalize.Draft, error) {
	return personalize.Draft{
		Subject: "Hi " + p.FirstName,
		Body:    "Note for " + p.Attr("title") + " at " + p.CompanyDomain,
		Model:   "fake-model",
	}, nil
}

func TestRunPersonalize_FromFindOutput(t *testing.T) {
	t.Parallel()
	_, cfg, in := setup(t)

	v, closeFn, err := app.BuildValidator(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	dir := t.TempDir()
	found := filepath.Join(dir, "found.csv")
	_, err = app.RunFind(context.Background(), app.FindOptions{InputPath: in, OutputPath: found, Engine: app.EngineConfig(cfg)}, v, nil)
	require.NoError(t, err)

	now := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	report, err := app.RunPersonalize(context.Background(), app.PersonalizeOptions{
		InputPath: found,
		OutputDir: dir,
		Worker:    app.WorkerOptions(cfg),
		Now:       func() time.Time { return now },
	}, fakeDrafter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Prospects)
	assert.Equal(t, 1, report.Drafted)
	assert.Zero(t, report.Failed)
	assert.Equal(t, filepath.Join(dir, "personalized_emails_20261015_100000.csv"), report.OutputPath)

	b, err := os.ReadFile(report.OutputPath)
	require.NoError(t, err)
	want := "email,first_name,last_name,company_domain,subject,personalized_message,status,error,model\n" +
		"john.doe@acme.com,John,Doe,acme.com,Hi John,Note for CTO at acme.com,ok,,fake-model\n"
	assert.Equal(t, want, string(b))
}

func TestWorkerOptions(t *testing.T) {
	cfg := config.Defaults()
	cfg.Workers = 4
	cfg.RateLimitRPS = 2
	cfg.FailFast = true

	got := app.WorkerOptions(cfg)
	assert.Equal(t, 4, got.Workers)
	assert.Equal(t, 2.0, got.RateLimitRPS)
	assert.Equal(t, worker.FailurePolicyFailFast, got.FailurePolicy)
	assert.Equal(t, cfg.MaxRetries, got.MaxRetries)
}

func TestBuildDrafter_RequiresKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.Gemini.Model = "gemini-2.5-flash"
	_, err := app.BuildDrafter(context.Background(), cfg)
	require.Error(t, err)
}
