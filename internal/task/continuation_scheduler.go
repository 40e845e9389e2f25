package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/events"
)

// TaskSubmitter accepts tasks for durable background processing. Implemented
// by TaskRunner.
type TaskSubmitter interface {
	Submit(ctx context.Context, task Task) error
}

// ContinuationScheduler requests "continue generation for section X" by
// emitting a task request event. The registered event handler persists and
// queues the task, so emitters stay decoupled from the queue machinery. It
// satisfies the orchestrator's continuation interface.
type ContinuationScheduler struct {
	emitter events.EventEmitter
	logger  *slog.Logger
}

// NewContinuationScheduler creates a ContinuationScheduler.
func NewContinuationScheduler(emitter events.EventEmitter, logger *slog.Logger) (*ContinuationScheduler, error) {
	if emitter == nil {
		return nil, fmt.Errorf("emitter cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContinuationScheduler{
		emitter: emitter,
		logger:  logger.With("component", "continuation_scheduler"),
	}, nil
}

// EnqueueContinuation emits a request for the next sub-job of a section. The
// event handler turns it into a durable queued task; a handler failure
// propagates back here so the caller can record the miss.
func (s *ContinuationScheduler) EnqueueContinuation(ctx context.Context, sectionID uuid.UUID, fromBatch int) error {
	event, err := events.NewTaskRequestEvent(TaskTypeSectionGeneration, map[string]interface{}{
		"section_id": sectionID.String(),
		"from_batch": fromBatch,
	})
	if err != nil {
		return fmt.Errorf("failed to create continuation event: %w", err)
	}

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to emit continuation event: %w", err)
	}

	s.logger.Debug("continuation requested",
		"section_id", sectionID,
		"from_batch", fromBatch,
		"event_id", event.ID)
	return nil
}
