package personalize

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/shpitdev/email-pattern-finder/internal/redact"
	"github.com/shpitdev/email-pattern-finder/internal/worker"
)

// Row is the stable output schema for one drafted email.
type Row struct {
	Email         string
	FirstName     string
	LastName      string
	CompanyDomain string
	Subject       string
	Message       string
	Status        string
	Error         string
	Model         string
}

// Header returns the stable CSV header for Row.
func Header() []string {
	return []string{
		"email",
		"first_name",
		"last_name",
		"company_domain",
		"subject",
		"personalized_message",
		"status",
		"error",
		"model",
	}
}

// Options configures Run.
type Options = worker.Options

// Run drafts an email for every prospect through the worker pool. Per-prospect failures
// become rows with status "error" unless opts asks to fail fast.
func Run(ctx context.Context, prospects []Prospect, d Drafter, opts Options, logger *zap.Logger) ([]Row, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	draft := func(ctx context.Context, p Prospect) (Draft, error) {
		if strings.TrimSpace(p.Email) == "" {
			return Draft{}, errEmptyEmail
		}
		return d.Draft(ctx, p)
	}

	done := 0
	results, err := worker.ProcessAll(ctx, prospects, draft, func(r worker.Result[Prospect, Draft]) error {
		done++
		fields := []zap.Field{
			zap.String("email", r.Input.Email),
			zap.Int("done", done),
			zap.Int("total", len(prospects)),
		}
		if r.Err != nil {
			logger.Warn("draft failed", append(fields, zap.String("error", redact.Secrets(r.Err.Error())))...)
			return nil
		}
		logger.Info("draft ready", fields...)
		return nil
	}, opts)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(results))
	for _, r := range results {
		row := Row{
			Email:         r.Input.Email,
			FirstName:     r.Input.FirstName,
			LastName:      r.Input.LastName,
			CompanyDomain: r.Input.CompanyDomain,
			Model:         r.Output.Model,
		}
		if r.Err != nil {
			row.Status = "error"
			row.Error = redact.Secrets(r.Err.Error())
		} else {
			row.Status = "ok"
			row.Subject = r.Output.Subject
			row.Message = r.Output.Body
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV writes rows with the stable Header ordering.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			r.Email,
			r.FirstName,
			r.LastName,
			r.CompanyDomain,
			r.Subject,
			r.Message,
			r.Status,
			r.Error,
			r.Model,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
