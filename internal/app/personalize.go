package app

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shpitdev/email-pattern-finder/internal/config"
	"github.com/shpitdev/email-pattern-finder/internal/personalize"
	"github.com/shpitdev/email-pattern-finder/internal/personalize/gemini"
	"github.com/shpitdev/email-pattern-finder/internal/worker"
)

// PersonalizeOptions configures RunPersonalize.
type PersonalizeOptions struct {
	// InputPath is a result CSV written by RunFind.
	InputPath  string
	OutputPath string
	OutputDir  string

	Worker personalize.Options
	Now    func() time.Time
}

// PersonalizeReport describes a finished personalize run.
type PersonalizeReport struct {
	RunID      string
	OutputPath string
	Prospects  int
	Drafted    int
	Failed     int
}

// RunPersonalize drafts one email per validated address in a result CSV and writes the
// drafts next to the other outputs.
func RunPersonalize(ctx context.Context, opts PersonalizeOptions, d personalize.Drafter, logger *zap.Logger) (PersonalizeReport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	report := PersonalizeReport{RunID: uuid.NewString()}
	logger = logger.With(zap.String("run_id", report.RunID))

	results, err := readResults(opts.InputPath)
	if err != nil {
		return report, err
	}
	prospects := personalize.ProspectsFromRows(results.Rows)
	report.Prospects = len(prospects)
	logger.Info("personalize run start",
		zap.String("input", opts.InputPath),
		zap.Int("rows", len(results.Rows)),
		zap.Int("prospects", len(prospects)),
		zap.Int("workers", opts.Worker.Workers),
		zap.Float64("rate_limit_rps", opts.Worker.RateLimitRPS),
		zap.Bool("fail_fast", opts.Worker.FailurePolicy == worker.FailurePolicyFailFast),
	)

	start := time.Now()
	rows, err := personalize.Run(ctx, prospects, d, opts.Worker, logger)
	if err != nil {
		return report, err
	}
	for _, r := range rows {
		if r.Status == "ok" {
			report.Drafted++
		} else {
			report.Failed++
		}
	}

	outPath := opts.OutputPath
	if outPath == "" {
		outPath = filepath.Join(opts.OutputDir, "personalized_emails_"+opts.Now().Format("20060102_150405")+".csv")
	}
	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return report, err
		}
	}
	f, err := os.Create(outPath)
	if err != nil {
		return report, err
	}
	defer func() {
		_ = f.Close()
	}()
	if err := personalize.WriteCSV(f, rows); err != nil {
		return report, err
	}
	if err := f.Close(); err != nil {
		return report, err
	}
	report.OutputPath = outPath

	logger.Info("personalize run complete",
		zap.String("output", outPath),
		zap.Int("drafted", report.Drafted),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
	return report, nil
}

// WorkerOptions extracts the personalization pool settings from cfg.
func WorkerOptions(cfg config.Config) personalize.Options {
	opts := personalize.Options{
		Workers:        cfg.Workers,
		MaxRetries:     cfg.MaxRetries,
		RequestTimeout: 2 * cfg.RequestTimeout,
		RateLimitRPS:   cfg.RateLimitRPS,
	}
	if cfg.FailFast {
		opts.FailurePolicy = worker.FailurePolicyFailFast
	}
	return opts
}

// BuildDrafter creates the Gemini drafter from cfg.
func BuildDrafter(ctx context.Context, cfg config.Config) (*gemini.Drafter, error) {
	return gemini.New(ctx, gemini.Config{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		BaseURL: cfg.Gemini.BaseURL,
		Product: cfg.ProductDescription,
	})
}
