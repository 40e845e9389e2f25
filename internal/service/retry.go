package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/generation"
	"github.com/phrazzld/examgen-api/internal/store"
)

// maxGenerationAttempts is the total number of calls made to the external
// service for one sub-job before the failure is surfaced.
const maxGenerationAttempts = 3

// retryingGenerator wraps a generation.Generator with bounded retries and
// failure-class-aware backoff. Timeouts back off twice as hard as parse and
// generic API failures. Before each sleep the section heartbeat is refreshed
// so the reaper does not reclaim a job that is actively retrying.
type retryingGenerator struct {
	inner     generation.Generator
	sections  store.SectionStore
	attempts  uint
	baseDelay time.Duration
	logger    *slog.Logger
}

func newRetryingGenerator(inner generation.Generator, sections store.SectionStore, attempts int, baseDelay time.Duration, logger *slog.Logger) *retryingGenerator {
	if attempts <= 0 {
		attempts = maxGenerationAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &retryingGenerator{
		inner:     inner,
		sections:  sections,
		attempts:  uint(attempts),
		baseDelay: baseDelay,
		logger:    logger.With("component", "retrying_generator"),
	}
}

// GenerateBatch calls the wrapped generator up to attempts times. After the
// final failed attempt the last error propagates to the orchestrator.
func (r *retryingGenerator) GenerateBatch(ctx context.Context, req generation.BatchRequest) (*generation.BatchResult, error) {
	var result *generation.BatchResult

	err := retry.Do(
		func() error {
			res, err := r.inner.GenerateBatch(ctx, req)
			if err != nil {
				return err
			}
			result = res
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// Safety blocks and cancellations do not heal with repetition.
			if errors.Is(err, generation.ErrContentBlocked) {
				return false
			}
			if errors.Is(err, context.Canceled) {
				return false
			}
			return true
		}),
		retry.DelayType(func(n uint, err error, _ *retry.Config) time.Duration {
			return r.backoffFor(n+1, err)
		}),
		retry.OnRetry(func(n uint, err error) {
			r.heartbeat(ctx, req.SectionID, n+1, err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// backoffFor computes the delay after the given 1-based failed attempt.
func (r *retryingGenerator) backoffFor(attempt uint, err error) time.Duration {
	base := r.baseDelay
	if errors.Is(err, generation.ErrTimeout) {
		return base * 2 * time.Duration(attempt)
	}
	return base * time.Duration(attempt)
}

// heartbeat refreshes the section's liveness timestamp before the retry
// sleep. A refresh failure is logged and ignored; losing one heartbeat only
// risks an early reclaim, which the reaper handles safely.
func (r *retryingGenerator) heartbeat(ctx context.Context, sectionID uuid.UUID, attempt uint, cause error) {
	r.logger.Warn("generation attempt failed, retrying",
		"section_id", sectionID,
		"attempt", attempt,
		"error", cause)

	if err := r.sections.RefreshHeartbeat(ctx, sectionID); err != nil {
		r.logger.Warn("failed to refresh heartbeat before retry",
			"section_id", sectionID,
			"error", err)
	}
}
