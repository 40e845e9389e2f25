package task

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSectionGenerationTask(t *testing.T) {
	t.Parallel()

	runner := RunnerFunc(func(ctx context.Context, sectionID uuid.UUID, fromBatch int) error {
		return nil
	})

	t.Run("valid", func(t *testing.T) {
		task, err := NewSectionGenerationTask(uuid.New(), 1, runner, discardLogger())
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, task.ID())
		assert.Equal(t, TaskTypeSectionGeneration, task.Type())
		assert.Equal(t, TaskStatusPending, task.Status())
	})

	t.Run("nil_runner", func(t *testing.T) {
		_, err := NewSectionGenerationTask(uuid.New(), 1, nil, discardLogger())
		assert.ErrorIs(t, err, ErrNilRunner)
	})

	t.Run("nil_logger", func(t *testing.T) {
		_, err := NewSectionGenerationTask(uuid.New(), 1, runner, nil)
		assert.ErrorIs(t, err, ErrNilLogger)
	})

	t.Run("empty_section_id", func(t *testing.T) {
		_, err := NewSectionGenerationTask(uuid.Nil, 1, runner, discardLogger())
		assert.ErrorIs(t, err, ErrEmptySectionID)
	})
}

func TestSectionGenerationTask_Payload(t *testing.T) {
	t.Parallel()

	sectionID := uuid.New()
	runner := RunnerFunc(func(ctx context.Context, id uuid.UUID, fromBatch int) error {
		return nil
	})

	task, err := NewSectionGenerationTask(sectionID, 2, runner, discardLogger())
	require.NoError(t, err)

	var payload struct {
		SectionID uuid.UUID `json:"section_id"`
		FromBatch int       `json:"from_batch"`
	}
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, sectionID, payload.SectionID)
	assert.Equal(t, 2, payload.FromBatch)
}

func TestSectionGenerationTask_Execute(t *testing.T) {
	t.Parallel()

	sectionID := uuid.New()

	t.Run("success", func(t *testing.T) {
		var gotSectionID uuid.UUID
		var gotFromBatch int
		runner := RunnerFunc(func(ctx context.Context, id uuid.UUID, fromBatch int) error {
			gotSectionID = id
			gotFromBatch = fromBatch
			return nil
		})

		task, err := NewSectionGenerationTask(sectionID, 3, runner, discardLogger())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))
		assert.Equal(t, sectionID, gotSectionID)
		assert.Equal(t, 3, gotFromBatch)
		assert.Equal(t, TaskStatusCompleted, task.Status())
	})

	t.Run("runner_error", func(t *testing.T) {
		runnerErr := errors.New("sub-job failed")
		runner := RunnerFunc(func(ctx context.Context, id uuid.UUID, fromBatch int) error {
			return runnerErr
		})

		task, err := NewSectionGenerationTask(sectionID, 1, runner, discardLogger())
		require.NoError(t, err)

		err = task.Execute(context.Background())
		assert.ErrorIs(t, err, runnerErr)
		assert.Equal(t, TaskStatusFailed, task.Status())
	})

	t.Run("cancelled_context", func(t *testing.T) {
		runner := RunnerFunc(func(ctx context.Context, id uuid.UUID, fromBatch int) error {
			t.Fatal("runner should not run with cancelled context")
			return nil
		})

		task, err := NewSectionGenerationTask(sectionID, 1, runner, discardLogger())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err = task.Execute(ctx)
		assert.Error(t, err)
		assert.Equal(t, TaskStatusFailed, task.Status())
	})
}

func TestSectionGenerationTaskFactory_Resolve(t *testing.T) {
	t.Parallel()

	t.Run("rebuilds_execution", func(t *testing.T) {
		sectionID := uuid.New()
		var gotSectionID uuid.UUID
		var gotFromBatch int
		runner := RunnerFunc(func(ctx context.Context, id uuid.UUID, fromBatch int) error {
			gotSectionID = id
			gotFromBatch = fromBatch
			return nil
		})

		factory, err := NewSectionGenerationTaskFactory(runner, discardLogger())
		require.NoError(t, err)

		payload, err := json.Marshal(map[string]interface{}{
			"section_id": sectionID.String(),
			"from_batch": 2,
		})
		require.NoError(t, err)

		execute, err := factory.Resolve(TaskTypeSectionGeneration, payload)
		require.NoError(t, err)

		require.NoError(t, execute(context.Background()))
		assert.Equal(t, sectionID, gotSectionID)
		assert.Equal(t, 2, gotFromBatch)
	})

	t.Run("unknown_task_type", func(t *testing.T) {
		factory, err := NewSectionGenerationTaskFactory(RunnerFunc(func(ctx context.Context, id uuid.UUID, fromBatch int) error {
			return nil
		}), discardLogger())
		require.NoError(t, err)

		_, err = factory.Resolve("unrelated_type", []byte(`{}`))
		assert.Error(t, err)
	})

	t.Run("malformed_payload", func(t *testing.T) {
		factory, err := NewSectionGenerationTaskFactory(RunnerFunc(func(ctx context.Context, id uuid.UUID, fromBatch int) error {
			return nil
		}), discardLogger())
		require.NoError(t, err)

		_, err = factory.Resolve(TaskTypeSectionGeneration, []byte(`not-json`))
		assert.Error(t, err)
	})

	t.Run("missing_section_id", func(t *testing.T) {
		factory, err := NewSectionGenerationTaskFactory(RunnerFunc(func(ctx context.Context, id uuid.UUID, fromBatch int) error {
			return nil
		}), discardLogger())
		require.NoError(t, err)

		_, err = factory.Resolve(TaskTypeSectionGeneration, []byte(`{"from_batch":1}`))
		assert.ErrorIs(t, err, ErrEmptySectionID)
	})
}
