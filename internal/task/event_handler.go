package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/events"
)

// TaskFactoryEventHandler implements the events.EventHandler interface.
// It turns section-generation request events into durable tasks so emitters
// stay decoupled from the queue machinery.
type TaskFactoryEventHandler struct {
	factory   *SectionGenerationTaskFactory
	submitter TaskSubmitter
	logger    *slog.Logger
}

// NewTaskFactoryEventHandler creates a new event handler that uses the given
// task factory to create tasks and submits them to the provided submitter.
func NewTaskFactoryEventHandler(
	factory *SectionGenerationTaskFactory,
	submitter TaskSubmitter,
	logger *slog.Logger,
) *TaskFactoryEventHandler {
	return &TaskFactoryEventHandler{
		factory:   factory,
		submitter: submitter,
		logger:    logger.With("component", "task_factory_event_handler"),
	}
}

// HandleEvent processes events by creating and submitting tasks.
func (h *TaskFactoryEventHandler) HandleEvent(
	ctx context.Context,
	event *events.TaskRequestEvent,
) error {
	if event.Type != TaskTypeSectionGeneration {
		h.logger.Debug("ignoring event with unsupported type",
			"event_type", event.Type,
			"event_id", event.ID)
		return nil
	}

	var payload struct {
		SectionID string `json:"section_id"`
		FromBatch int    `json:"from_batch"`
	}
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	sectionID, err := uuid.Parse(payload.SectionID)
	if err != nil {
		h.logger.Error("invalid section ID",
			"error", err,
			"section_id", payload.SectionID,
			"event_id", event.ID)
		return fmt.Errorf("invalid section ID: %w", err)
	}

	t, err := h.factory.CreateTask(sectionID, payload.FromBatch)
	if err != nil {
		h.logger.Error("failed to create task",
			"error", err,
			"section_id", sectionID,
			"event_id", event.ID)
		return fmt.Errorf("failed to create task: %w", err)
	}

	if err := h.submitter.Submit(ctx, t); err != nil {
		h.logger.Error("failed to submit task",
			"error", err,
			"task_id", t.ID(),
			"section_id", sectionID,
			"event_id", event.ID)
		return fmt.Errorf("failed to submit task: %w", err)
	}

	h.logger.Info("task created and submitted successfully",
		"task_id", t.ID(),
		"section_id", sectionID,
		"event_id", event.ID)
	return nil
}

// Ensure TaskFactoryEventHandler implements events.EventHandler
var _ events.EventHandler = (*TaskFactoryEventHandler)(nil)
