// Package app wires configuration, the validator stack and the pipeline I/O into the
// find and personalize runs used by the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shpitdev/email-pattern-finder/internal/config"
	"github.com/shpitdev/email-pattern-finder/internal/engine"
	"github.com/shpitdev/email-pattern-finder/internal/pipeline"
	"github.com/shpitdev/email-pattern-finder/internal/redact"
	"github.com/shpitdev/email-pattern-finder/internal/verify"
	"github.com/shpitdev/email-pattern-finder/internal/verify/reacher"
	"github.com/shpitdev/email-pattern-finder/internal/verify/rediscache"
)

// FindOptions configures RunFind.
type FindOptions struct {
	InputPath string
	// OutputPath wins over OutputDir when set.
	OutputPath string
	OutputDir  string
	// ResumeFrom is a previous result CSV whose safe rows are reused.
	ResumeFrom string

	Engine engine.Config

	// Clock drives the validation delay. Defaults to the system clock.
	Clock verify.Clock
	// Now stamps default output file names. Defaults to time.Now.
	Now func() time.Time
}

// FindReport describes a finished (or interrupted) find run.
type FindReport struct {
	RunID      string
	OutputPath string
	Rows       int
	Summary    engine.Summary
}

// RunFind reads leads, finds an address for each one and writes the result CSV. Rows
// are flushed as they settle, so a run that stops early (cancellation, an unavailable
// validator or a killed process) leaves every finished row in the output.
func RunFind(ctx context.Context, opts FindOptions, v verify.Validator, logger *zap.Logger) (FindReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	report := FindReport{RunID: uuid.NewString()}
	logger = logger.With(zap.String("run_id", report.RunID))

	leads, err := readLeads(opts.InputPath)
	if err != nil {
		return report, err
	}

	var prior []pipeline.Row
	if opts.ResumeFrom != "" {
		prev, err := readResults(opts.ResumeFrom)
		if err != nil {
			return report, fmt.Errorf("resume: %w", err)
		}
		prior = prev.Rows
	}
	plan := pipeline.BuildPlan(leads.Leads, prior)
	logger.Info("find run start",
		zap.String("input", opts.InputPath),
		zap.Int("leads", len(leads.Leads)),
		zap.Int("reused", plan.Reused()),
		zap.Int("pending", len(plan.Pending)),
		zap.Int("max_patterns", opts.Engine.MaxPatterns),
		zap.Duration("delay", opts.Engine.ValidationDelay),
		zap.Bool("include_risky", opts.Engine.IncludeRisky),
	)

	engOpts := []engine.Option{engine.WithLogger(logger)}
	if opts.Clock != nil {
		engOpts = append(engOpts, engine.WithClock(opts.Clock))
	}
	eng, err := engine.New(opts.Engine, v, engOpts...)
	if err != nil {
		return report, err
	}

	outPath := opts.OutputPath
	if outPath == "" {
		outPath = filepath.Join(opts.OutputDir, "validated_emails_"+opts.Now().Format("20060102_150405")+".csv")
	}
	f, err := createOutput(outPath)
	if err != nil {
		return report, err
	}
	defer func() {
		_ = f.Close()
	}()
	w, err := pipeline.NewWriter(f, leads.Extra)
	if err != nil {
		return report, err
	}
	report.OutputPath = outPath

	// Rows are written as soon as they are settled in input order.
	emitter := plan.Emitter(w)
	sum, runErr := eng.Run(ctx, plan.Pending, emitter.Add)
	if err := emitter.Close(); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if err := f.Close(); err != nil {
		runErr = errors.Join(runErr, err)
	}

	// Count what was written: duplicates of a lead and reused rows each have a row.
	sum.Leads = len(leads.Leads)
	sum.Reused = plan.Reused()
	sum.Safe = emitter.Count(engine.StatusSafe)
	sum.Risky = emitter.Count(engine.StatusRisky)
	sum.NoneFound = emitter.Count(engine.StatusNoneFound)
	report.Summary = sum
	report.Rows = emitter.Written()

	fields := []zap.Field{
		zap.String("output", outPath),
		zap.Int("rows", report.Rows),
		zap.Int("safe", sum.Safe),
		zap.Int("risky", sum.Risky),
		zap.Int("none_found", sum.NoneFound),
		zap.Int("reused", sum.Reused),
		zap.Int("skipped", len(sum.Skipped)),
		zap.Int("patterns_tested", sum.PatternsTested),
		zap.Duration("duration", sum.Duration.Round(time.Millisecond)),
	}
	if runErr != nil {
		logger.Error("find run stopped early", append(fields, zap.String("error", redact.Secrets(runErr.Error())))...)
		return report, runErr
	}
	logger.Info("find run complete", fields...)
	return report, nil
}

// BuildValidator assembles the validator stack from cfg: Reacher client, request
// logging, retries for transient failures and, when a Redis URL is configured, a
// result cache. The returned close func releases the cache connection.
func BuildValidator(ctx context.Context, cfg config.Config, logger *zap.Logger) (verify.Validator, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	noop := func() error { return nil }

	client, err := reacher.New(reacher.Config{
		BaseURL:    cfg.Reacher.URL,
		APIKey:     cfg.Reacher.APIKey,
		APIKeyPath: cfg.Reacher.APIKeyPath,
		CAPath:     cfg.Reacher.CAPath,
		Timeout:    cfg.RequestTimeout,
	})
	if err != nil {
		return nil, noop, err
	}

	var v verify.Validator = verify.Traced(client, logger, cfg.MaxRetries)
	// Retries are external calls too and keep the same spacing.
	v = verify.WithRetry(v, verify.RetryOptions{
		MaxRetries:     cfg.MaxRetries,
		RequestTimeout: cfg.RequestTimeout,
		MinDelay:       cfg.ValidationDelay,
	})

	if strings.TrimSpace(cfg.Cache.RedisURL) == "" {
		return v, noop, nil
	}
	rdb, err := rediscache.Open(ctx, cfg.Cache.RedisURL)
	if err != nil {
		return nil, noop, fmt.Errorf("result cache: %w", err)
	}
	logger.Info("result cache enabled", zap.Duration("ttl", cfg.Cache.TTL))
	return rediscache.Wrap(rdb, v, rediscache.Options{TTL: cfg.Cache.TTL, Logger: logger}), rdb.Close, nil
}

// EngineConfig extracts the engine settings from cfg.
func EngineConfig(cfg config.Config) engine.Config {
	return engine.Config{
		MaxPatterns:          cfg.MaxPatterns,
		ValidationDelay:      cfg.ValidationDelay,
		IncludeRisky:         cfg.IncludeRisky,
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
	}
}

func readLeads(path string) (pipeline.LeadFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return pipeline.LeadFile{}, err
	}
	defer func() {
		_ = f.Close()
	}()
	out, err := pipeline.ReadLeadsCSV(f)
	if err != nil {
		return pipeline.LeadFile{}, fmt.Errorf("read leads %s: %w", path, err)
	}
	return out, nil
}

func readResults(path string) (pipeline.ResultFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return pipeline.ResultFile{}, err
	}
	defer func() {
		_ = f.Close()
	}()
	out, err := pipeline.ReadResultsCSV(f)
	if err != nil {
		return pipeline.ResultFile{}, fmt.Errorf("read results %s: %w", path, err)
	}
	return out, nil
}

func createOutput(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}
