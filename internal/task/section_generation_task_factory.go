package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// SectionGenerationTaskFactory creates SectionGenerationTask instances and
// rebuilds them from persisted payloads, serving as the TaskResolver for the
// durable queue's recovery path.
type SectionGenerationTaskFactory struct {
	runner SectionGenerationRunner
	logger *slog.Logger
}

// NewSectionGenerationTaskFactory creates a new factory bound to the given
// runner.
func NewSectionGenerationTaskFactory(runner SectionGenerationRunner, logger *slog.Logger) (*SectionGenerationTaskFactory, error) {
	if runner == nil {
		return nil, ErrNilRunner
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SectionGenerationTaskFactory{
		runner: runner,
		logger: logger,
	}, nil
}

// CreateTask creates a new SectionGenerationTask continuing generation from
// the given batch number.
func (f *SectionGenerationTaskFactory) CreateTask(sectionID uuid.UUID, fromBatch int) (Task, error) {
	return NewSectionGenerationTask(sectionID, fromBatch, f.runner, f.logger)
}

var _ TaskResolver = (*SectionGenerationTaskFactory)(nil)

// Resolve implements TaskResolver for tasks recovered from storage.
func (f *SectionGenerationTaskFactory) Resolve(taskType string, payload []byte) (func(ctx context.Context) error, error) {
	if taskType != TaskTypeSectionGeneration {
		return nil, fmt.Errorf("unknown task type %q", taskType)
	}

	var p sectionGenerationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode section generation payload: %w", err)
	}
	if p.SectionID == uuid.Nil {
		return nil, ErrEmptySectionID
	}

	return func(ctx context.Context) error {
		return f.runner.ContinueGeneration(ctx, p.SectionID, p.FromBatch)
	}, nil
}
