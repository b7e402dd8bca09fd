// Package engine finds a person's work email address: it generates candidate addresses
// from common corporate conventions, checks them one at a time with an external
// validator, and keeps the best verdict.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shpitdev/email-pattern-finder/internal/lead"
	"github.com/shpitdev/email-pattern-finder/internal/pattern"
	"github.com/shpitdev/email-pattern-finder/internal/redact"
	"github.com/shpitdev/email-pattern-finder/internal/verify"
)

// ErrValidatorUnavailable stops a run after too many consecutive validator failures.
var ErrValidatorUnavailable = errors.New("validator unavailable")

// Config is fixed for the lifetime of an Engine.
type Config struct {
	// MaxPatterns caps candidates per lead.
	MaxPatterns int
	// ValidationDelay separates consecutive validator calls.
	ValidationDelay time.Duration
	// IncludeRisky accepts the best risky address when no safe one exists.
	IncludeRisky bool
	// MaxConsecutiveErrors trips the circuit breaker. 0 disables it.
	MaxConsecutiveErrors int
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		MaxPatterns:          20,
		ValidationDelay:      1500 * time.Millisecond,
		IncludeRisky:         false,
		MaxConsecutiveErrors: 50,
	}
}

func (c Config) validate() error {
	if c.MaxPatterns <= 0 {
		return fmt.Errorf("max patterns must be > 0 (got %d)", c.MaxPatterns)
	}
	if c.ValidationDelay < 0 {
		return fmt.Errorf("validation delay must be >= 0 (got %s)", c.ValidationDelay)
	}
	if c.MaxConsecutiveErrors < 0 {
		return fmt.Errorf("max consecutive errors must be >= 0 (got %d)", c.MaxConsecutiveErrors)
	}
	return nil
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock used to space validator calls.
func WithClock(c verify.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// Engine runs leads through candidate generation and validation.
//
// An Engine is not safe for concurrent use: validator calls are serialized and the
// circuit breaker counts failures across leads.
type Engine struct {
	cfg       Config
	validator verify.Validator
	clock     verify.Clock
	logger    *zap.Logger

	errStreak int
	lastErr   error
}

// New returns an Engine that submits addresses to v, spaced by cfg.ValidationDelay.
func New(cfg Config, v verify.Validator, opts ...Option) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errors.New("validator is required")
	}
	e := &Engine{cfg: cfg, logger: zap.NewNop()}
	for _, o := range opts {
		o(e)
	}
	e.validator = verify.NewThrottle(v, cfg.ValidationDelay, e.clock)
	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Generate returns the ranked candidates for l, capped at the configured maximum.
func (e *Engine) Generate(l lead.Lead) []pattern.Candidate {
	return pattern.Generate(l.FirstName, l.LastName, l.CompanyDomain, e.cfg.MaxPatterns)
}

// ValidateAndSelect submits candidates in rank order and keeps the best verdict: the
// first safe address ends the search; otherwise the first risky one is used when risky
// results are accepted. A failed call counts as invalid for its candidate, and unknown
// verdicts are treated as invalid.
//
// The returned error is non-nil only when ctx is done or the circuit breaker trips; the
// result then reflects the candidates checked so far.
func (e *Engine) ValidateAndSelect(ctx context.Context, l lead.Lead, candidates []pattern.Candidate) (LeadResult, error) {
	out := LeadResult{Lead: l, Status: StatusNoneFound}

	var risky *verify.Result
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		addr := c.Address()
		res, err := e.validator.Validate(ctx, addr)
		out.PatternsTested++

		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			e.logger.Warn("validation failed; treating as invalid",
				zap.Int("lead", l.Index),
				zap.String("address", addr),
				zap.String("error", redact.Secrets(err.Error())),
			)
			if bErr := e.recordFailure(err); bErr != nil {
				return out, bErr
			}
			continue
		}
		e.errStreak = 0
		e.lastErr = nil

		switch res.Status {
		case verify.StatusSafe:
			out.PatternsValidated++
			out.accept(addr, StatusSafe, res)
			return out, nil
		case verify.StatusRisky:
			out.PatternsValidated++
			if risky == nil {
				r := res
				r.Address = addr
				risky = &r
			}
		}
	}

	if risky != nil && e.cfg.IncludeRisky {
		out.accept(risky.Address, StatusRisky, *risky)
	}
	return out, nil
}

func (e *Engine) recordFailure(err error) error {
	e.errStreak++
	e.lastErr = err
	if e.cfg.MaxConsecutiveErrors > 0 && e.errStreak >= e.cfg.MaxConsecutiveErrors {
		return fmt.Errorf("%w: %d consecutive failures, last: %w", ErrValidatorUnavailable, e.errStreak, err)
	}
	return nil
}

// Process validates l, then generates and checks its candidates.
func (e *Engine) Process(ctx context.Context, l lead.Lead) (LeadResult, error) {
	norm, err := lead.Normalize(l)
	if err != nil {
		return LeadResult{Lead: l, Status: StatusNoneFound}, err
	}
	return e.ValidateAndSelect(ctx, norm, e.Generate(norm))
}
