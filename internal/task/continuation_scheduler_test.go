package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSubmitter captures submitted tasks instead of queuing them.
type recordingSubmitter struct {
	tasks     []Task
	submitErr error
}

func (s *recordingSubmitter) Submit(ctx context.Context, task Task) error {
	if s.submitErr != nil {
		return s.submitErr
	}
	s.tasks = append(s.tasks, task)
	return nil
}

// newSchedulerUnderTest wires a scheduler to an emitter with the real event
// handler registered, mirroring the production setup.
func newSchedulerUnderTest(t *testing.T, submitter TaskSubmitter) *ContinuationScheduler {
	t.Helper()

	runner := RunnerFunc(func(ctx context.Context, sectionID uuid.UUID, fromBatch int) error {
		return nil
	})
	factory, err := NewSectionGenerationTaskFactory(runner, discardLogger())
	require.NoError(t, err)

	emitter := events.NewInMemoryEventEmitter(discardLogger())
	emitter.RegisterHandler(NewTaskFactoryEventHandler(factory, submitter, discardLogger()))

	scheduler, err := NewContinuationScheduler(emitter, discardLogger())
	require.NoError(t, err)
	return scheduler
}

func TestContinuationScheduler_EnqueueContinuation(t *testing.T) {
	t.Parallel()

	sectionID := uuid.New()

	t.Run("creates_and_submits_task", func(t *testing.T) {
		submitter := &recordingSubmitter{}
		scheduler := newSchedulerUnderTest(t, submitter)

		require.NoError(t, scheduler.EnqueueContinuation(context.Background(), sectionID, 2))

		require.Len(t, submitter.tasks, 1)
		submitted := submitter.tasks[0]
		assert.Equal(t, TaskTypeSectionGeneration, submitted.Type())

		var payload struct {
			SectionID uuid.UUID `json:"section_id"`
			FromBatch int       `json:"from_batch"`
		}
		require.NoError(t, json.Unmarshal(submitted.Payload(), &payload))
		assert.Equal(t, sectionID, payload.SectionID)
		assert.Equal(t, 2, payload.FromBatch)
	})

	t.Run("submit_failure_propagates", func(t *testing.T) {
		submitter := &recordingSubmitter{submitErr: errors.New("queue full")}
		scheduler := newSchedulerUnderTest(t, submitter)

		err := scheduler.EnqueueContinuation(context.Background(), sectionID, 1)
		assert.Error(t, err)
	})

	t.Run("nil_emitter_rejected", func(t *testing.T) {
		_, err := NewContinuationScheduler(nil, discardLogger())
		assert.Error(t, err)
	})
}

func TestTaskFactoryEventHandler_HandleEvent(t *testing.T) {
	t.Parallel()

	runner := RunnerFunc(func(ctx context.Context, sectionID uuid.UUID, fromBatch int) error {
		return nil
	})

	newHandler := func(t *testing.T, submitter TaskSubmitter) *TaskFactoryEventHandler {
		t.Helper()
		factory, err := NewSectionGenerationTaskFactory(runner, discardLogger())
		require.NoError(t, err)
		return NewTaskFactoryEventHandler(factory, submitter, discardLogger())
	}

	t.Run("ignores_other_event_types", func(t *testing.T) {
		submitter := &recordingSubmitter{}
		handler := newHandler(t, submitter)

		event, err := events.NewTaskRequestEvent("unrelated_type", map[string]interface{}{})
		require.NoError(t, err)

		require.NoError(t, handler.HandleEvent(context.Background(), event))
		assert.Empty(t, submitter.tasks)
	})

	t.Run("rejects_invalid_section_id", func(t *testing.T) {
		submitter := &recordingSubmitter{}
		handler := newHandler(t, submitter)

		event, err := events.NewTaskRequestEvent(TaskTypeSectionGeneration, map[string]interface{}{
			"section_id": "not-a-uuid",
			"from_batch": 1,
		})
		require.NoError(t, err)

		assert.Error(t, handler.HandleEvent(context.Background(), event))
		assert.Empty(t, submitter.tasks)
	})
}
