package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/config"
	"github.com/phrazzld/examgen-api/internal/domain"
	"github.com/phrazzld/examgen-api/internal/store"
)

// StaleJobReaper reclaims sections stuck in the generating state because
// their worker died without finishing. Reclaim depends on what was salvaged:
// sections with zero persisted items go back to ready so the run can be
// restarted cleanly; sections with any items transition to in_review with a
// diagnostic so partial work is never silently lost.
type StaleJobReaper struct {
	sections  store.SectionStore
	questions store.QuestionStore
	threshold time.Duration
	logger    *slog.Logger
}

// NewStaleJobReaper creates a StaleJobReaper with the configured heartbeat
// threshold.
func NewStaleJobReaper(sections store.SectionStore, questions store.QuestionStore, cfg config.GenerationConfig, logger *slog.Logger) *StaleJobReaper {
	minutes := cfg.StaleJobThresholdMinutes
	if minutes <= 0 {
		minutes = config.DefaultStaleJobThresholdMinutes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StaleJobReaper{
		sections:  sections,
		questions: questions,
		threshold: time.Duration(minutes) * time.Minute,
		logger:    logger.With("component", "stale_job_reaper"),
	}
}

// ReapAll sweeps every generating section whose heartbeat is older than the
// threshold. Returns the number of sections reclaimed. Individual reclaim
// failures are logged and skipped so one bad row does not stall the sweep.
func (r *StaleJobReaper) ReapAll(ctx context.Context) (int, error) {
	stale, err := r.sections.FindStaleGenerating(ctx, r.threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale sections: %w", err)
	}

	reclaimed := 0
	for _, section := range stale {
		if err := r.reclaim(ctx, section); err != nil {
			r.logger.Error("failed to reclaim stale section",
				"section_id", section.ID,
				"error", err)
			continue
		}
		reclaimed++
	}

	if reclaimed > 0 {
		r.logger.Info("reclaimed stale generation jobs", "count", reclaimed)
	}
	return reclaimed, nil
}

// ReapSection checks one section and reclaims it if its heartbeat is stale.
// Called on status reads so a stuck job is noticed as soon as someone looks
// at it. Returns true when the section was reclaimed; the caller should
// re-read state afterwards.
func (r *StaleJobReaper) ReapSection(ctx context.Context, sectionID uuid.UUID) (bool, error) {
	section, err := r.sections.GetByID(ctx, sectionID)
	if err != nil {
		return false, err
	}
	if section.Status != domain.SectionStatusGenerating {
		return false, nil
	}
	if !section.HeartbeatStale(r.threshold, time.Now().UTC()) {
		return false, nil
	}
	if err := r.reclaim(ctx, section); err != nil {
		return false, err
	}
	return true, nil
}

func (r *StaleJobReaper) reclaim(ctx context.Context, section *domain.Section) error {
	count, err := r.questions.CountByAttempt(ctx, section.ID, section.GenerationAttemptID)
	if err != nil {
		return fmt.Errorf("failed to count persisted items: %w", err)
	}

	if count == 0 {
		r.logger.Info("resetting stalled section with no persisted items",
			"section_id", section.ID)
		return r.sections.UpdateStatus(ctx, section.ID, domain.SectionStatusReady)
	}

	diagnostic := fmt.Sprintf(
		"generation stalled after %d of %d questions; moved to review with partial results",
		count, section.TargetQuestions)

	r.logger.Info("moving stalled section with partial items to review",
		"section_id", section.ID,
		"questions_available", count)

	if err := section.CompleteGeneration(diagnostic); err != nil {
		return fmt.Errorf("failed to complete stalled section: %w", err)
	}
	return r.sections.Update(ctx, section)
}
