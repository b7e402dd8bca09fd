package verify

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shpitdev/email-pattern-finder/internal/redact"
)

type traced struct {
	next       Validator
	logger     *zap.Logger
	maxRetries int
}

// Traced logs every call to next: the request at debug level and the outcome at info
// (or warn on error). Place it inside WithRetry so each attempt is logged with its
// attempt number.
func Traced(next Validator, logger *zap.Logger, maxRetries int) Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &traced{
		next:       next,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

func (t *traced) Validate(ctx context.Context, address string) (Result, error) {
	address = strings.TrimSpace(address)
	attempt := attemptFrom(ctx)

	deadlineIn := "none"
	if d, ok := ctx.Deadline(); ok {
		deadlineIn = time.Until(d).Round(time.Millisecond).String()
	}
	t.logger.Debug("validate request",
		zap.String("address", address),
		zap.Int("attempt", attempt),
		zap.String("deadline_in", deadlineIn),
	)

	start := time.Now()
	res, err := t.next.Validate(ctx, address)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		budget := RetryBudget(t.maxRetries, err)
		retryable := IsTransient(err)
		t.logger.Warn("validate response",
			zap.String("address", address),
			zap.Int("attempt", attempt),
			zap.Duration("duration", elapsed),
			zap.String("status", "error"),
			zap.Bool("retryable", retryable),
			zap.Bool("will_retry", retryable && attempt <= budget),
			zap.String("error", redact.Secrets(err.Error())),
		)
		return res, err
	}

	t.logger.Info("validate response",
		zap.String("address", address),
		zap.Int("attempt", attempt),
		zap.Duration("duration", elapsed),
		zap.String("status", string(res.Status)),
		zap.Bool("reachable_smtp", res.IsReachableSMTP),
		zap.Bool("catch_all", res.IsCatchAll),
		zap.Strings("mx", res.MXRecords),
	)
	return res, nil
}
