package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/config"
	"github.com/phrazzld/examgen-api/internal/domain"
	"github.com/phrazzld/examgen-api/internal/generation"
	"github.com/phrazzld/examgen-api/internal/protocol"
	"github.com/phrazzld/examgen-api/internal/store"
	"github.com/phrazzld/examgen-api/internal/validation"
)

// ContinuationEnqueuer schedules the next sub-job for a section on the
// durable task queue. Implemented by the task layer; kept as a small local
// interface so the service does not depend on queue internals.
type ContinuationEnqueuer interface {
	// EnqueueContinuation schedules a sub-job that continues generation from
	// the given batch number. Processing is idempotent keyed by
	// (section, batch number), so at-least-once delivery is safe.
	EnqueueContinuation(ctx context.Context, sectionID uuid.UUID, fromBatch int) error
}

// BatchOutcome reports the result of one orchestrator invocation. The HTTP
// layer translates it directly into the continuation endpoint's response
// shapes.
type BatchOutcome struct {
	// Completed is true when the section reached review, either by meeting
	// its target, exhausting chapter quotas, or the graceful partial path.
	Completed bool

	// ChaptersExhausted is true when completion came from consuming every
	// chapter quota before the overall target.
	ChaptersExhausted bool

	// PartialFailure is true when retries were exhausted but prior batches
	// were salvaged. The HTTP layer reports this as 207.
	PartialFailure bool

	// BatchNumber is the sub-job just completed (0 on the completed-shape
	// fast path where no sub-job ran).
	BatchNumber int

	// QuestionsGenerated is the number of questions accepted this sub-job.
	QuestionsGenerated int

	// TotalGenerated is the section's cumulative accepted count.
	TotalGenerated int

	// TargetQuestions is the fixed over-generation target.
	TargetQuestions int

	// HasMore is true when another sub-job is needed.
	HasMore bool

	// NextBatchTriggered is true when the continuation was enqueued.
	NextBatchTriggered bool

	// BatchesCompleted and Diagnostic carry salvage details on the partial
	// failure path.
	BatchesCompleted int
	Diagnostic       string
}

// GenerationService runs generation sub-jobs against sections.
type GenerationService interface {
	// StartGeneration begins a new generation run for a ready section and
	// executes the first sub-job synchronously. Returns ErrNotOwned when the
	// section belongs to a different user, so callers need no separate
	// ownership read.
	StartGeneration(ctx context.Context, sectionID, userID uuid.UUID) (*BatchOutcome, error)

	// ContinueGeneration executes one continuation sub-job. fromBatch is the
	// batch number the continuation was enqueued after; a mismatch means the
	// sub-job already ran and the call returns the current snapshot without
	// mutation.
	ContinueGeneration(ctx context.Context, sectionID uuid.UUID, fromBatch int) (*BatchOutcome, error)

	// Regenerate discards the current attempt's progress (items are kept but
	// scoped out by attempt id) and starts a fresh run from in_review.
	// Returns ErrNotOwned when the section belongs to a different user.
	Regenerate(ctx context.Context, sectionID, userID uuid.UUID) (*BatchOutcome, error)

	// GetSection returns the section's current state. The HTTP layer pairs
	// this with a reaper check so stale jobs are reclaimed on read.
	GetSection(ctx context.Context, sectionID uuid.UUID) (*domain.Section, error)
}

// generationService implements GenerationService. It is the only mutator of
// section state besides the reaper.
type generationService struct {
	db        *sql.DB
	sections  store.SectionStore
	questions store.QuestionStore
	generator generation.Generator
	protocols *protocol.Registry
	validator *validation.QuestionValidator
	source    ContentSource
	quality   QualityChecker
	enqueuer  ContinuationEnqueuer
	genCfg    config.GenerationConfig
	llmCfg    config.LLMConfig
	logger    *slog.Logger
}

// GenerationServiceParams bundles the dependencies of NewGenerationService.
type GenerationServiceParams struct {
	DB         *sql.DB
	Sections   store.SectionStore
	Questions  store.QuestionStore
	Generator  generation.Generator
	Protocols  *protocol.Registry
	Validator  *validation.QuestionValidator
	Source     ContentSource
	Quality    QualityChecker
	Enqueuer   ContinuationEnqueuer
	Generation config.GenerationConfig
	LLM        config.LLMConfig
	Logger     *slog.Logger
}

// NewGenerationService creates a GenerationService. The generator is wrapped
// with the retry policy here so callers hand in the bare client.
func NewGenerationService(p GenerationServiceParams) (GenerationService, error) {
	switch {
	case p.DB == nil:
		return nil, errors.New("db cannot be nil")
	case p.Sections == nil:
		return nil, errors.New("section store cannot be nil")
	case p.Questions == nil:
		return nil, errors.New("question store cannot be nil")
	case p.Generator == nil:
		return nil, errors.New("generator cannot be nil")
	case p.Protocols == nil:
		return nil, errors.New("protocol registry cannot be nil")
	case p.Validator == nil:
		return nil, errors.New("validator cannot be nil")
	case p.Enqueuer == nil:
		return nil, errors.New("continuation enqueuer cannot be nil")
	}
	if p.Source == nil {
		p.Source = NewEmptyContentSource()
	}
	if p.Quality == nil {
		p.Quality = NewDuplicateStemChecker()
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}

	baseDelay := time.Duration(p.Generation.RetryBaseDelaySeconds) * time.Second
	if baseDelay <= 0 {
		baseDelay = time.Duration(config.DefaultRetryBaseDelaySeconds) * time.Second
	}

	return &generationService{
		db:        p.DB,
		sections:  p.Sections,
		questions: p.Questions,
		generator: newRetryingGenerator(p.Generator, p.Sections, p.Generation.MaxAttempts, baseDelay, p.Logger),
		protocols: p.Protocols,
		validator: p.Validator,
		source:    p.Source,
		quality:   p.Quality,
		enqueuer:  p.Enqueuer,
		genCfg:    p.Generation,
		llmCfg:    p.LLM,
		logger:    p.Logger.With("component", "generation_service"),
	}, nil
}

// staleThreshold returns the heartbeat age after which a generating claim may
// be taken over.
func (s *generationService) staleThreshold() time.Duration {
	minutes := s.genCfg.StaleJobThresholdMinutes
	if minutes <= 0 {
		minutes = config.DefaultStaleJobThresholdMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// StartGeneration implements GenerationService.StartGeneration.
func (s *generationService) StartGeneration(ctx context.Context, sectionID, userID uuid.UUID) (*BatchOutcome, error) {
	section, err := s.loadSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if section.UserID != userID {
		return nil, ErrNotOwned
	}

	switch section.Status {
	case domain.SectionStatusReady:
		return s.begin(ctx, section)
	case domain.SectionStatusInReview:
		// Re-invoking on a completed section is the idempotent fast path.
		return s.completedSnapshot(section), nil
	case domain.SectionStatusGenerating:
		if section.HeartbeatStale(s.staleThreshold(), time.Now().UTC()) {
			// The previous run died. Take its claim over and continue where
			// it left off; the CAS keeps two takeovers from both proceeding.
			if err := s.sections.ClaimForGeneration(ctx, sectionID, s.staleThreshold()); err != nil {
				if errors.Is(err, store.ErrClaimFailed) {
					return nil, ErrGenerationInProgress
				}
				return nil, NewGenerationError("start", "failed to reclaim stale section", err)
			}
			return s.ContinueGeneration(ctx, sectionID, section.BatchNumber)
		}
		return nil, ErrGenerationInProgress
	case domain.SectionStatusFinalized:
		return nil, ErrSectionFinalized
	default:
		return nil, ErrSectionNotEligible
	}
}

// Regenerate implements GenerationService.Regenerate.
func (s *generationService) Regenerate(ctx context.Context, sectionID, userID uuid.UUID) (*BatchOutcome, error) {
	section, err := s.loadSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	if section.UserID != userID {
		return nil, ErrNotOwned
	}

	switch section.Status {
	case domain.SectionStatusReady, domain.SectionStatusInReview:
		return s.begin(ctx, section)
	case domain.SectionStatusGenerating:
		return nil, ErrGenerationInProgress
	case domain.SectionStatusFinalized:
		return nil, ErrSectionFinalized
	default:
		return nil, ErrSectionNotEligible
	}
}

// begin claims the section, mints a new attempt, and runs the first sub-job.
func (s *generationService) begin(ctx context.Context, section *domain.Section) (*BatchOutcome, error) {
	if err := section.BeginGeneration(); err != nil {
		switch {
		case errors.Is(err, domain.ErrSectionFinalized):
			return nil, ErrSectionFinalized
		case errors.Is(err, domain.ErrInvalidTransition):
			return nil, ErrSectionNotEligible
		}
		return nil, NewGenerationError("start", "failed to begin generation", err)
	}

	// Compare-and-swap on the status row. Losing the claim means another
	// invocation got there first.
	if err := s.sections.ClaimForGeneration(ctx, section.ID, s.staleThreshold()); err != nil {
		if errors.Is(err, store.ErrClaimFailed) {
			return nil, ErrGenerationInProgress
		}
		return nil, NewGenerationError("start", "failed to claim section", err)
	}

	if err := s.sections.Update(ctx, section); err != nil {
		return nil, NewGenerationError("start", "failed to persist generation start", err)
	}

	s.logger.Info("generation run started",
		"section_id", section.ID,
		"attempt_id", section.GenerationAttemptID,
		"target_questions", section.TargetQuestions,
		"total_batches", section.TotalBatches)

	return s.runSubJob(ctx, section)
}

// ContinueGeneration implements GenerationService.ContinueGeneration.
func (s *generationService) ContinueGeneration(ctx context.Context, sectionID uuid.UUID, fromBatch int) (*BatchOutcome, error) {
	section, err := s.loadSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	if section.Status != domain.SectionStatusGenerating {
		if section.Status == domain.SectionStatusInReview || section.Status == domain.SectionStatusFinalized {
			// Stale continuation for a run that already finished.
			return s.completedSnapshot(section), nil
		}
		return nil, ErrSectionNotEligible
	}

	// At-least-once delivery: a redelivered continuation observes that its
	// batch already ran and returns without mutating anything.
	if section.BatchNumber != fromBatch {
		s.logger.Info("skipping already-processed continuation",
			"section_id", section.ID,
			"expected_batch", fromBatch,
			"current_batch", section.BatchNumber)
		outcome := s.snapshot(section)
		outcome.HasMore = section.Remaining() > 0
		return outcome, nil
	}

	return s.runSubJob(ctx, section)
}

// GetSection implements GenerationService.GetSection.
func (s *generationService) GetSection(ctx context.Context, sectionID uuid.UUID) (*domain.Section, error) {
	section, err := s.loadSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	return section, nil
}

// runSubJob executes one bounded generation sub-job against a claimed,
// generating section.
func (s *generationService) runSubJob(ctx context.Context, section *domain.Section) (*BatchOutcome, error) {
	log := s.logger.With(
		"section_id", section.ID,
		"attempt_id", section.GenerationAttemptID,
		"batch_number", section.BatchNumber+1)

	// Step 1: nothing left to generate means the run is done.
	if section.Remaining() <= 0 {
		return s.finalize(ctx, section, "")
	}

	// Steps 2-3: resolve the active scope and clamp the request size.
	scope, err := nextBatchScope(section)
	if err != nil {
		if errors.Is(err, errChaptersExhausted) {
			log.Info("chapter quotas exhausted, finalizing below target",
				"total_generated", section.QuestionsGenerated,
				"target_questions", section.TargetQuestions)
			outcome, ferr := s.finalize(ctx, section, "chapter quotas exhausted before overall target")
			if ferr != nil {
				return nil, ferr
			}
			outcome.ChaptersExhausted = true
			return outcome, nil
		}
		return nil, NewGenerationError("run_batch", "failed to resolve batch scope", err)
	}
	if scope.Count <= 0 {
		return s.finalize(ctx, section, "")
	}

	// Step 4: dedup context scoped to the attempt and active chapter.
	prior, err := dedupContext(ctx, s.questions, section, scope)
	if err != nil {
		return nil, NewGenerationError("run_batch", "failed to build dedup context", err)
	}

	// Step 5: resolve mode material and call the external service through the
	// retry wrapper.
	req, err := s.buildRequest(ctx, section, scope, prior)
	if err != nil {
		return nil, NewGenerationError("run_batch", "failed to build generation request", err)
	}

	result, err := s.generator.GenerateBatch(ctx, req)
	if err != nil {
		return s.handleGenerationFailure(ctx, section, err)
	}

	// The model sometimes returns more items than asked for. Extras would
	// push the section past its target and past the chapter quota, so clamp
	// to the requested count before anything is persisted.
	if len(result.Questions) > scope.Count {
		log.Warn("model returned more questions than requested, truncating",
			"requested", scope.Count,
			"returned", len(result.Questions))
		result.Questions = result.Questions[:scope.Count]
	}

	// Step 6: soft validation. Violations are logged, never dropped.
	for _, violation := range s.validator.Validate(result.Questions) {
		log.Warn("generated question violates content rules",
			"violation", violation.String())
	}

	// Steps 7: persist items and progress atomically.
	if err := s.persistBatch(ctx, section, scope, result); err != nil {
		return nil, NewGenerationError("run_batch", "failed to persist batch", err)
	}

	log.Info("sub-job persisted",
		"questions_added", len(result.Questions),
		"total_generated", section.QuestionsGenerated,
		"total_tokens", result.Usage.TotalTokens)

	// Steps 8-9: continue or finalize.
	if section.Remaining() <= 0 {
		outcome, err := s.finalize(ctx, section, "")
		if err != nil {
			return nil, err
		}
		outcome.BatchNumber = section.BatchNumber
		outcome.QuestionsGenerated = len(result.Questions)
		return outcome, nil
	}

	outcome := s.snapshot(section)
	outcome.QuestionsGenerated = len(result.Questions)
	outcome.HasMore = true
	outcome.NextBatchTriggered = s.triggerContinuation(ctx, section)
	return outcome, nil
}

// buildRequest assembles the prompt and grounding material for one sub-job.
func (s *generationService) buildRequest(ctx context.Context, section *domain.Section, scope batchScope, prior []json.RawMessage) (generation.BatchRequest, error) {
	proto, err := s.protocols.Resolve(section.Stream, section.Subject)
	if err != nil {
		return generation.BatchRequest{}, fmt.Errorf("failed to resolve protocol: %w", err)
	}

	var scopeDoc string
	var attachments []generation.Attachment
	switch section.Mode {
	case domain.ModeScopeOnly:
		scopeDoc, err = s.source.ScopeDocument(ctx, section)
		if err != nil {
			return generation.BatchRequest{}, fmt.Errorf("failed to load scope document: %w", err)
		}
	case domain.ModeSourceOfTruth:
		attachments, err = s.source.SourceAttachments(ctx, section)
		if err != nil {
			return generation.BatchRequest{}, fmt.Errorf("failed to load source attachments: %w", err)
		}
	}

	prompt, err := proto.BuildPrompt(protocol.PromptRequest{
		SectionTitle:   section.Title,
		Subject:        section.Subject,
		ChapterName:    scope.ChapterName,
		Count:          scope.Count,
		Mode:           section.Mode,
		ScopeDocument:  scopeDoc,
		PriorQuestions: prior,
	})
	if err != nil {
		return generation.BatchRequest{}, fmt.Errorf("failed to build prompt: %w", err)
	}

	return generation.BatchRequest{
		SectionID:      section.ID,
		AttemptID:      section.GenerationAttemptID,
		Mode:           section.Mode,
		Count:          scope.Count,
		Prompt:         prompt,
		ScopeDocument:  scopeDoc,
		Attachments:    attachments,
		PriorQuestions: prior,
	}, nil
}

// persistBatch writes the accepted questions and the advanced section state
// in one transaction. Question ordinals continue from the durable count, so a
// failed transaction leaves no gap and no orphaned progress.
func (s *generationService) persistBatch(ctx context.Context, section *domain.Section, scope batchScope, result *generation.BatchResult) error {
	var chapterID *uuid.UUID
	if scope.Chaptered {
		id := scope.ChapterID
		chapterID = &id
	}

	nextBatch := section.BatchNumber + 1
	questions := make([]*domain.GeneratedQuestion, 0, len(result.Questions))
	for i, payload := range result.Questions {
		q, err := domain.NewGeneratedQuestion(
			section.ID, chapterID, section.GenerationAttemptID,
			section.QuestionsGenerated+i+1, nextBatch, payload,
		)
		if err != nil {
			return fmt.Errorf("invalid generated question at index %d: %w", i, err)
		}
		questions = append(questions, q)
	}

	audit := domain.BatchAudit{
		QuestionsAdded:   len(result.Questions),
		PromptTokens:     result.Usage.PromptTokens,
		CompletionTokens: result.Usage.CompletionTokens,
		TotalTokens:      result.Usage.TotalTokens,
		CostUSD:          s.estimateCost(result.Usage),
	}

	return store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.questions.WithTx(tx).CreateMultiple(ctx, questions); err != nil {
			return err
		}

		section.RecordBatch(audit)
		if scope.Chaptered {
			section.Schedule.RecordGenerated(scope.ChapterIndex, len(result.Questions))
		}
		return s.sections.WithTx(tx).Update(ctx, section)
	})
}

// estimateCost converts token usage into a dollar estimate from configured
// rates. Zero rates produce a zero estimate.
func (s *generationService) estimateCost(usage generation.Usage) float64 {
	return float64(usage.PromptTokens)/1000.0*s.llmCfg.PromptCostPer1K +
		float64(usage.CompletionTokens)/1000.0*s.llmCfg.CompletionCostPer1K
}

// handleGenerationFailure implements the graceful degradation policy after
// the retry budget is exhausted. Sections with at least one accepted batch
// are finalized so prior work stays reviewable; sections with none keep their
// diagnostic and stay claimable for a manual retry.
func (s *generationService) handleGenerationFailure(ctx context.Context, section *domain.Section, cause error) (*BatchOutcome, error) {
	diagnostic := fmt.Sprintf("batch %d failed after retries: %v", section.BatchNumber+1, cause)

	s.logger.Error("generation failed after exhausting retries",
		"section_id", section.ID,
		"batches_completed", section.BatchNumber,
		"error", cause)

	if section.BatchNumber == 0 {
		if err := s.sections.SetGenerationError(ctx, section.ID, diagnostic); err != nil {
			s.logger.Error("failed to record generation diagnostic",
				"section_id", section.ID,
				"error", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, cause)
	}

	outcome, err := s.finalize(ctx, section, diagnostic)
	if err != nil {
		return nil, err
	}
	outcome.PartialFailure = true
	outcome.Diagnostic = diagnostic
	return outcome, nil
}

// finalize runs the quality post-pass and moves the section to review. This
// is the single exit point for full success, chapters-exhausted, and graceful
// partial failure, so generated work is never silently lost.
func (s *generationService) finalize(ctx context.Context, section *domain.Section, diagnostic string) (*BatchOutcome, error) {
	questions, err := s.questions.FindByAttempt(ctx, section.ID, section.GenerationAttemptID)
	if err != nil {
		return nil, NewGenerationError("finalize", "failed to load attempt questions", err)
	}

	findings := s.quality.Check(ctx, section, questions)
	if len(findings) > 0 {
		s.logger.Warn("quality post-pass reported findings",
			"section_id", section.ID,
			"findings", len(findings))
		for _, f := range findings {
			diagnostic = appendDiagnostic(diagnostic, f)
		}
	}

	if err := section.CompleteGeneration(diagnostic); err != nil {
		return nil, NewGenerationError("finalize", "failed to complete generation", err)
	}
	if err := s.sections.Update(ctx, section); err != nil {
		return nil, NewGenerationError("finalize", "failed to persist completion", err)
	}

	s.logger.Info("generation run finalized",
		"section_id", section.ID,
		"total_generated", section.QuestionsGenerated,
		"target_questions", section.TargetQuestions,
		"batches_completed", section.BatchNumber)

	outcome := s.completedSnapshot(section)
	outcome.Diagnostic = diagnostic
	return outcome, nil
}

// triggerContinuation enqueues the next sub-job. Failure to enqueue is
// recorded as a non-fatal diagnostic; the accepted items from this sub-job
// remain valid and the reaper will eventually resurface the section.
func (s *generationService) triggerContinuation(ctx context.Context, section *domain.Section) bool {
	if err := s.enqueuer.EnqueueContinuation(ctx, section.ID, section.BatchNumber); err != nil {
		s.logger.Error("failed to enqueue continuation",
			"section_id", section.ID,
			"batch_number", section.BatchNumber,
			"error", err)

		diagnostic := fmt.Sprintf("continuation after batch %d could not be scheduled: %v", section.BatchNumber, err)
		if serr := s.sections.SetGenerationError(ctx, section.ID, diagnostic); serr != nil {
			s.logger.Error("failed to record continuation diagnostic",
				"section_id", section.ID,
				"error", serr)
		}
		return false
	}
	return true
}

func (s *generationService) loadSection(ctx context.Context, sectionID uuid.UUID) (*domain.Section, error) {
	section, err := s.sections.GetByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, store.ErrSectionNotFound) {
			return nil, ErrSectionNotFound
		}
		return nil, NewGenerationError("load_section", "failed to load section", err)
	}
	return section, nil
}

func (s *generationService) snapshot(section *domain.Section) *BatchOutcome {
	return &BatchOutcome{
		BatchNumber:      section.BatchNumber,
		TotalGenerated:   section.QuestionsGenerated,
		TargetQuestions:  section.TargetQuestions,
		BatchesCompleted: section.BatchNumber,
	}
}

func (s *generationService) completedSnapshot(section *domain.Section) *BatchOutcome {
	outcome := s.snapshot(section)
	outcome.Completed = true
	return outcome
}

func appendDiagnostic(diagnostic, finding string) string {
	if diagnostic == "" {
		return finding
	}
	return diagnostic + "; " + finding
}
