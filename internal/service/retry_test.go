package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retryRequest() generation.BatchRequest {
	return generation.BatchRequest{
		SectionID: uuid.New(),
		AttemptID: uuid.New(),
		Count:     30,
	}
}

func TestRetryingGenerator_GenerateBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("recovers from transient failures within the attempt budget", func(t *testing.T) {
		t.Parallel()
		sections := &mockSectionStore{}
		inner := &mockGenerator{
			generate: func(call int, _ generation.BatchRequest) (*generation.BatchResult, error) {
				if call < 2 {
					return nil, generation.ErrAPIFailure
				}
				return questionBatch(30), nil
			},
		}
		gen := newRetryingGenerator(inner, sections, 3, time.Millisecond, testLogger())

		result, err := gen.GenerateBatch(ctx, retryRequest())
		require.NoError(t, err)
		assert.Len(t, result.Questions, 30)
		assert.Len(t, inner.requests, 3)
		// The heartbeat is refreshed before each retry sleep.
		assert.Equal(t, 2, sections.heartbeatCalls)
	})

	t.Run("surfaces the last error after exhausting attempts", func(t *testing.T) {
		t.Parallel()
		inner := &mockGenerator{
			generate: func(int, generation.BatchRequest) (*generation.BatchResult, error) {
				return nil, generation.ErrTimeout
			},
		}
		gen := newRetryingGenerator(inner, &mockSectionStore{}, 3, time.Millisecond, testLogger())

		_, err := gen.GenerateBatch(ctx, retryRequest())
		assert.ErrorIs(t, err, generation.ErrTimeout)
		assert.Len(t, inner.requests, 3)
	})

	t.Run("safety blocks are not retried", func(t *testing.T) {
		t.Parallel()
		inner := &mockGenerator{
			generate: func(int, generation.BatchRequest) (*generation.BatchResult, error) {
				return nil, generation.ErrContentBlocked
			},
		}
		gen := newRetryingGenerator(inner, &mockSectionStore{}, 3, time.Millisecond, testLogger())

		_, err := gen.GenerateBatch(ctx, retryRequest())
		assert.ErrorIs(t, err, generation.ErrContentBlocked)
		assert.Len(t, inner.requests, 1)
	})

	t.Run("cancellation is not retried", func(t *testing.T) {
		t.Parallel()
		inner := &mockGenerator{
			generate: func(int, generation.BatchRequest) (*generation.BatchResult, error) {
				return nil, context.Canceled
			},
		}
		gen := newRetryingGenerator(inner, &mockSectionStore{}, 3, time.Millisecond, testLogger())

		_, err := gen.GenerateBatch(ctx, retryRequest())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Len(t, inner.requests, 1)
	})

	t.Run("heartbeat refresh failure does not abort the retry", func(t *testing.T) {
		t.Parallel()
		sections := &mockSectionStore{
			refreshHeartbeats: func(context.Context, uuid.UUID) error {
				return assert.AnError
			},
		}
		inner := &mockGenerator{
			generate: func(call int, _ generation.BatchRequest) (*generation.BatchResult, error) {
				if call == 0 {
					return nil, generation.ErrParseFailure
				}
				return questionBatch(5), nil
			},
		}
		gen := newRetryingGenerator(inner, sections, 3, time.Millisecond, testLogger())

		result, err := gen.GenerateBatch(ctx, retryRequest())
		require.NoError(t, err)
		assert.Len(t, result.Questions, 5)
	})
}

func TestRetryingGenerator_BackoffFor(t *testing.T) {
	t.Parallel()
	gen := newRetryingGenerator(&mockGenerator{}, &mockSectionStore{}, 3, 2*time.Second, testLogger())

	tests := []struct {
		name    string
		attempt uint
		err     error
		want    time.Duration
	}{
		{name: "first generic failure", attempt: 1, err: generation.ErrAPIFailure, want: 2 * time.Second},
		{name: "second generic failure", attempt: 2, err: generation.ErrParseFailure, want: 4 * time.Second},
		{name: "first timeout backs off twice as hard", attempt: 1, err: generation.ErrTimeout, want: 4 * time.Second},
		{name: "second timeout", attempt: 2, err: generation.ErrTimeout, want: 8 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, gen.backoffFor(tc.attempt, tc.err))
		})
	}
}
