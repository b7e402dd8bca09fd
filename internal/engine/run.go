package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/shpitdev/email-pattern-finder/internal/lead"
)

// Summary counts the outcomes of a run.
type Summary struct {
	Leads     int
	Safe      int
	Risky     int
	NoneFound int
	Reused    int
	Skipped   []*lead.InputValidationError

	PatternsTested int
	Duration       time.Duration
}

func (s *Summary) add(r LeadResult) {
	switch r.Status {
	case StatusSafe:
		s.Safe++
	case StatusRisky:
		s.Risky++
	default:
		s.NoneFound++
	}
	if r.Reused {
		s.Reused++
	}
	s.PatternsTested += r.PatternsTested
}

// EmitFunc receives each lead's result in input order. Returning an error stops the run.
type EmitFunc func(LeadResult) error

// Run processes leads in order, one at a time. Leads that fail input validation are
// logged, recorded in the summary and produce no result; they never stop the run.
//
// Run stops early when ctx is done, when emit fails, or with ErrValidatorUnavailable
// when the validator keeps failing.
func (e *Engine) Run(ctx context.Context, leads []lead.Lead, emit EmitFunc) (Summary, error) {
	start := time.Now()
	sum := Summary{Leads: len(leads)}

	for i, l := range leads {
		if err := ctx.Err(); err != nil {
			sum.Duration = time.Since(start)
			return sum, err
		}

		res, err := e.Process(ctx, l)
		var ive *lead.InputValidationError
		if errors.As(err, &ive) {
			sum.Skipped = append(sum.Skipped, ive)
			e.logger.Warn("skipping lead", zap.Int("lead", l.Index), zap.Strings("fields", ive.Fields), zap.Error(ive.Err))
			continue
		}
		if err != nil {
			sum.Duration = time.Since(start)
			return sum, err
		}

		e.logger.Info("lead processed",
			zap.Int("lead", l.Index),
			zap.Int("n", i+1),
			zap.Int("of", len(leads)),
			zap.String("status", string(res.Status)),
			zap.String("email", res.ValidatedEmail),
			zap.Int("patterns_tested", res.PatternsTested),
			zap.Int("patterns_validated", res.PatternsValidated),
		)
		sum.add(res)
		if emit != nil {
			if err := emit(res); err != nil {
				sum.Duration = time.Since(start)
				return sum, err
			}
		}
	}
	sum.Duration = time.Since(start)
	return sum, nil
}
