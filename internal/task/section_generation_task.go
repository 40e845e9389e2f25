package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Status constants for SectionGenerationTask
// These match the TaskStatus values defined in task.go
const (
	statusPending    = "pending"
	statusProcessing = "processing"
	statusCompleted  = "completed"
	statusFailed     = "failed"
)

// Common errors
var (
	ErrNilRunner      = errors.New("generation runner cannot be nil")
	ErrNilLogger      = errors.New("logger cannot be nil")
	ErrEmptySectionID = errors.New("section ID cannot be empty")
)

// SectionGenerationRunner runs one continuation sub-job for a section. The
// service layer implements this; the narrow interface keeps the task package
// free of orchestration internals.
type SectionGenerationRunner interface {
	ContinueGeneration(ctx context.Context, sectionID uuid.UUID, fromBatch int) error
}

// RunnerFunc adapts a plain function to the SectionGenerationRunner interface.
type RunnerFunc func(ctx context.Context, sectionID uuid.UUID, fromBatch int) error

// ContinueGeneration implements SectionGenerationRunner.
func (f RunnerFunc) ContinueGeneration(ctx context.Context, sectionID uuid.UUID, fromBatch int) error {
	return f(ctx, sectionID, fromBatch)
}

// sectionGenerationPayload represents the serialized data stored in the task
type sectionGenerationPayload struct {
	SectionID uuid.UUID `json:"section_id"`
	// FromBatch is the batch number the continuation was enqueued after. The
	// orchestrator uses it for idempotent processing under at-least-once
	// delivery.
	FromBatch int `json:"from_batch"`
}

// SectionGenerationTask implements the Task interface for running one
// generation sub-job against a section.
type SectionGenerationTask struct {
	id        uuid.UUID
	sectionID uuid.UUID
	fromBatch int
	runner    SectionGenerationRunner
	logger    *slog.Logger
	status    string // Using string instead of TaskStatus to avoid a self-referential type
}

// NewSectionGenerationTask creates a new section generation task
func NewSectionGenerationTask(
	sectionID uuid.UUID,
	fromBatch int,
	runner SectionGenerationRunner,
	logger *slog.Logger,
) (*SectionGenerationTask, error) {
	if runner == nil {
		return nil, ErrNilRunner
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if sectionID == uuid.Nil {
		return nil, ErrEmptySectionID
	}

	return &SectionGenerationTask{
		id:        uuid.New(),
		sectionID: sectionID,
		fromBatch: fromBatch,
		runner:    runner,
		logger:    logger.With("task_type", TaskTypeSectionGeneration, "section_id", sectionID),
		status:    statusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *SectionGenerationTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *SectionGenerationTask) Type() string {
	return TaskTypeSectionGeneration
}

// Payload returns the task data as a byte slice
func (t *SectionGenerationTask) Payload() []byte {
	payload := sectionGenerationPayload{
		SectionID: t.sectionID,
		FromBatch: t.fromBatch,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte{}
	}
	return data
}

// Status returns the current task status
func (t *SectionGenerationTask) Status() TaskStatus {
	return TaskStatus(t.status)
}

// Execute runs one continuation sub-job. The orchestrator handles its own
// idempotency and state transitions; this layer only reports the result back
// to the task runner.
func (t *SectionGenerationTask) Execute(ctx context.Context) error {
	t.status = statusProcessing
	t.logger.Info("running section generation sub-job", "from_batch", t.fromBatch)

	if err := ctx.Err(); err != nil {
		t.status = statusFailed
		return fmt.Errorf("task cancelled by context: %w", err)
	}

	if err := t.runner.ContinueGeneration(ctx, t.sectionID, t.fromBatch); err != nil {
		t.status = statusFailed
		t.logger.Error("section generation sub-job failed", "error", err)
		return fmt.Errorf("failed to continue generation: %w", err)
	}

	t.status = statusCompleted
	t.logger.Info("section generation sub-job finished")
	return nil
}
