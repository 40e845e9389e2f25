package domain

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// SectionStatus represents the generation lifecycle state of a section.
type SectionStatus string

// Possible section status values
const (
	// SectionStatusPending indicates no chapters have been chosen yet.
	SectionStatusPending SectionStatus = "pending"
	// SectionStatusReady indicates chapters are chosen but generation has not started.
	SectionStatusReady SectionStatus = "ready"
	// SectionStatusGenerating indicates a sub-job is in flight or a continuation is queued.
	SectionStatusGenerating SectionStatus = "generating"
	// SectionStatusInReview indicates the target was reached, or retries were
	// exhausted with at least one accepted batch.
	SectionStatusInReview SectionStatus = "in_review"
	// SectionStatusFinalized indicates the section was externally approved and is read-only.
	SectionStatusFinalized SectionStatus = "finalized"
)

// GenerationMode selects how the external service is grounded for a section.
type GenerationMode string

// Supported generation modes
const (
	// ModeSelfKnowledge instructs the model to draw on general syllabus knowledge.
	ModeSelfKnowledge GenerationMode = "self_knowledge"
	// ModeScopeOnly substitutes a structured scope document for source material.
	ModeScopeOnly GenerationMode = "scope_only"
	// ModeSourceOfTruth uploads source documents as the sole factual ground truth.
	ModeSourceOfTruth GenerationMode = "source_of_truth"
)

// DefaultBatchSize is the number of questions requested per sub-job when the
// section does not override it.
const DefaultBatchSize = 30

// OverGenerationFactor is applied to the nominal question count so a later
// selection step has a surplus pool to choose from.
const OverGenerationFactor = 1.5

// Common validation errors for Section
var (
	ErrEmptySectionID        = errors.New("section ID cannot be empty")
	ErrEmptySectionExamID    = errors.New("section exam ID cannot be empty")
	ErrEmptySectionSubjectID = errors.New("section subject ID cannot be empty")
	ErrInvalidQuestionCount  = errors.New("section question count must be positive")
	ErrInvalidSectionStatus  = errors.New("invalid section status")
	ErrInvalidGenerationMode = errors.New("invalid generation mode")
	ErrSectionFinalized      = errors.New("section is finalized and read-only")
	ErrInvalidTransition     = errors.New("invalid section status transition")
)

// BatchAudit records usage metrics for one completed sub-job.
type BatchAudit struct {
	BatchNumber      int       `json:"batch_number"`
	QuestionsAdded   int       `json:"questions_added"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	CompletedAt      time.Time `json:"completed_at"`
}

// Section represents one content-generation job scoped to a subject grouping
// within a larger exam. It carries the durable progress state that lets
// generation resume across sub-jobs and process restarts.
type Section struct {
	ID        uuid.UUID `json:"id"`
	ExamID    uuid.UUID `json:"exam_id"`
	SubjectID uuid.UUID `json:"subject_id"`
	UserID    uuid.UUID `json:"user_id"`
	Stream    string    `json:"stream"`
	Subject   string    `json:"subject"`
	Title     string    `json:"title"`

	Status SectionStatus  `json:"status"`
	Mode   GenerationMode `json:"generation_mode"`

	// Target sizing. TargetQuestions is fixed when generation starts and is
	// never recomputed mid-job, even if QuestionCount is edited later.
	QuestionCount   int `json:"question_count"`
	TargetQuestions int `json:"target_questions"`
	BatchSize       int `json:"batch_size"`

	// Progress counters. QuestionsGenerated only advances after accepted
	// questions are durably persisted.
	BatchNumber        int `json:"batch_number"`
	TotalBatches       int `json:"total_batches"`
	QuestionsGenerated int `json:"questions_generated"`

	// GenerationAttemptID scopes dedup context and prior items to the current
	// run. Regeneration mints a fresh value so stale items never pollute dedup.
	GenerationAttemptID uuid.UUID `json:"generation_attempt_id"`

	Schedule ChapterSchedule `json:"chapter_schedule"`

	BatchAudits []BatchAudit `json:"batch_audits,omitempty"`

	LastBatchCompletedAt  *time.Time `json:"last_batch_completed_at,omitempty"`
	GenerationStartedAt   *time.Time `json:"generation_started_at,omitempty"`
	GenerationCompletedAt *time.Time `json:"generation_completed_at,omitempty"`
	GenerationError       string     `json:"generation_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSection creates a new Section in the ready state with targets derived
// from the nominal question count. Returns an error if validation fails.
func NewSection(examID, subjectID, userID uuid.UUID, stream, subject, title string, questionCount int, mode GenerationMode) (*Section, error) {
	now := time.Now().UTC()
	section := &Section{
		ID:              uuid.New(),
		ExamID:          examID,
		SubjectID:       subjectID,
		UserID:          userID,
		Stream:          stream,
		Subject:         subject,
		Title:           title,
		Status:          SectionStatusReady,
		Mode:            mode,
		QuestionCount:   questionCount,
		TargetQuestions: TargetForCount(questionCount),
		BatchSize:       DefaultBatchSize,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := section.Validate(); err != nil {
		return nil, err
	}

	return section, nil
}

// TargetForCount computes the over-generation target for a nominal count.
func TargetForCount(questionCount int) int {
	return int(math.Ceil(float64(questionCount) * OverGenerationFactor))
}

// Validate checks if the Section has valid data.
func (s *Section) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySectionID
	}
	if s.ExamID == uuid.Nil {
		return ErrEmptySectionExamID
	}
	if s.SubjectID == uuid.Nil {
		return ErrEmptySectionSubjectID
	}
	if s.QuestionCount <= 0 {
		return ErrInvalidQuestionCount
	}
	if !isValidSectionStatus(s.Status) {
		return ErrInvalidSectionStatus
	}
	if !isValidGenerationMode(s.Mode) {
		return ErrInvalidGenerationMode
	}
	return nil
}

// Remaining returns how many questions are still needed to reach the target.
func (s *Section) Remaining() int {
	return s.TargetQuestions - s.QuestionsGenerated
}

// UsesChapterSchedule reports whether generation is sequenced across chapters.
func (s *Section) UsesChapterSchedule() bool {
	return len(s.Schedule.Chapters) > 0
}

// BeginGeneration transitions the section into the generating state for a new
// run, minting a fresh attempt id and fixing targets and batch counts. Only
// valid from ready or in_review (regeneration).
func (s *Section) BeginGeneration() error {
	switch s.Status {
	case SectionStatusReady, SectionStatusInReview:
	case SectionStatusFinalized:
		return ErrSectionFinalized
	default:
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	s.Status = SectionStatusGenerating
	s.GenerationAttemptID = uuid.New()
	s.TargetQuestions = TargetForCount(s.QuestionCount)
	if s.BatchSize <= 0 {
		s.BatchSize = DefaultBatchSize
	}
	s.TotalBatches = int(math.Ceil(float64(s.TargetQuestions) / float64(s.BatchSize)))
	s.BatchNumber = 0
	s.QuestionsGenerated = 0
	s.BatchAudits = nil
	s.GenerationError = ""
	s.GenerationStartedAt = &now
	s.GenerationCompletedAt = nil
	s.LastBatchCompletedAt = &now
	s.Schedule.ResetProgress()
	s.UpdatedAt = now
	return nil
}

// RecordBatch advances progress counters after a sub-job durably persisted its
// questions, refreshing the liveness heartbeat.
func (s *Section) RecordBatch(audit BatchAudit) {
	now := time.Now().UTC()
	s.BatchNumber++
	s.QuestionsGenerated += audit.QuestionsAdded
	audit.BatchNumber = s.BatchNumber
	if audit.CompletedAt.IsZero() {
		audit.CompletedAt = now
	}
	s.BatchAudits = append(s.BatchAudits, audit)
	s.LastBatchCompletedAt = &now
	s.UpdatedAt = now
}

// CompleteGeneration transitions the section to in_review and stamps the
// completion time. Diagnostic may be empty on full success.
func (s *Section) CompleteGeneration(diagnostic string) error {
	if s.Status != SectionStatusGenerating {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	s.Status = SectionStatusInReview
	s.GenerationCompletedAt = &now
	s.GenerationError = diagnostic
	s.UpdatedAt = now
	return nil
}

// HeartbeatStale reports whether the last progress heartbeat is older than the
// given threshold. Sections without a heartbeat fall back to the generation
// start time.
func (s *Section) HeartbeatStale(threshold time.Duration, now time.Time) bool {
	ts := s.LastBatchCompletedAt
	if ts == nil {
		ts = s.GenerationStartedAt
	}
	if ts == nil {
		return true
	}
	return now.Sub(*ts) > threshold
}

func isValidSectionStatus(status SectionStatus) bool {
	switch status {
	case SectionStatusPending, SectionStatusReady, SectionStatusGenerating,
		SectionStatusInReview, SectionStatusFinalized:
		return true
	default:
		return false
	}
}

func isValidGenerationMode(mode GenerationMode) bool {
	switch mode {
	case ModeSelfKnowledge, ModeScopeOnly, ModeSourceOfTruth:
		return true
	default:
		return false
	}
}
