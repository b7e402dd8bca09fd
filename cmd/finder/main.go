package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shpitdev/email-pattern-finder/internal/app"
	"github.com/shpitdev/email-pattern-finder/internal/config"
	"github.com/shpitdev/email-pattern-finder/internal/logging"
	"github.com/shpitdev/email-pattern-finder/internal/redact"
	"github.com/shpitdev/email-pattern-finder/internal/version"
)

// exitError carries the process exit code: 2 for configuration problems, 1 for failed runs.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func configErr(err error) error { return &exitError{code: 2, err: err} }

type runtime struct {
	cfg    config.Config
	logger *zap.Logger

	newLogger func(level, format string) (*zap.Logger, error)
}

func newRuntime() *runtime {
	return &runtime{newLogger: logging.New}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string) int {
	return executeWith(ctx, newRuntime(), args)
}

func executeWith(ctx context.Context, rt *runtime, args []string) int {
	root := newRootCmdWith(rt)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	// Cobra skips post-run hooks when a command fails; flush here so failed runs keep
	// their last log lines.
	if rt.logger != nil {
		_ = rt.logger.Sync()
	}
	if err == nil {
		return 0
	}
	_, _ = fmt.Fprintf(os.Stderr, "error: %s\n", redact.Secrets(err.Error()))
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(newRuntime())
}

func newRootCmdWith(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:           "finder",
		Short:         "Find and validate work email addresses for a list of leads",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return rt.load(cmd)
		},
	}
	config.BindFlags(root.PersistentFlags())

	root.AddCommand(newFindCmd(rt), newPersonalizeCmd(rt), newVersionCmd())
	return root
}

func (rt *runtime) load(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		return configErr(err)
	}
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return configErr(err)
	}
	if err := config.ApplyFlags(cmd.Flags(), &cfg); err != nil {
		return configErr(err)
	}
	if err := cfg.Validate(); err != nil {
		return configErr(err)
	}
	logger, err := rt.newLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return configErr(err)
	}
	rt.cfg = cfg
	rt.logger = logger.With(zap.String("version", version.Current))
	return nil
}

func newFindCmd(rt *runtime) *cobra.Command {
	var input, output, resume string
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Generate candidate addresses per lead and keep the best validated one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input == "" {
				return configErr(errors.New("--input is required"))
			}
			ctx := cmd.Context()
			v, closeValidator, err := app.BuildValidator(ctx, rt.cfg, rt.logger)
			if err != nil {
				return configErr(err)
			}
			defer func() {
				_ = closeValidator()
			}()

			report, err := app.RunFind(ctx, app.FindOptions{
				InputPath:  input,
				OutputPath: output,
				OutputDir:  rt.cfg.OutputDir,
				ResumeFrom: resume,
				Engine:     app.EngineConfig(rt.cfg),
			}, v, rt.logger)
			if report.OutputPath != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s (safe=%d risky=%d none_found=%d skipped=%d)\n",
					report.Rows, report.OutputPath,
					report.Summary.Safe, report.Summary.Risky, report.Summary.NoneFound, len(report.Summary.Skipped))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Leads CSV with first_name,last_name,company_domain columns")
	cmd.Flags().StringVar(&output, "output", "", "Output CSV path (default <output-dir>/validated_emails_<timestamp>.csv)")
	cmd.Flags().StringVar(&resume, "resume", "", "Previous output CSV; leads with a safe address there are not re-validated")
	return cmd
}

func newPersonalizeCmd(rt *runtime) *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "personalize",
		Short: "Draft a personalized email for every validated address in a find output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input == "" {
				return configErr(errors.New("--input is required"))
			}
			ctx := cmd.Context()
			drafter, err := app.BuildDrafter(ctx, rt.cfg)
			if err != nil {
				return configErr(err)
			}
			report, err := app.RunPersonalize(ctx, app.PersonalizeOptions{
				InputPath:  input,
				OutputPath: output,
				OutputDir:  rt.cfg.OutputDir,
				Worker:     app.WorkerOptions(rt.cfg),
			}, drafter, rt.logger)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d drafts to %s (failed=%d)\n", report.Drafted, report.OutputPath, report.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "Result CSV written by find")
	cmd.Flags().StringVar(&output, "output", "", "Output CSV path (default <output-dir>/personalized_emails_<timestamp>.csv)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Current)
		},
	}
}
