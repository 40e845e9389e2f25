package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Question-specific validation errors
var (
	// ErrQuestionIDEmpty is returned when a question ID is empty or nil.
	ErrQuestionIDEmpty = errors.New("question ID cannot be empty")

	// ErrQuestionSectionIDEmpty is returned when a question's section ID is empty or nil.
	ErrQuestionSectionIDEmpty = errors.New("question section ID cannot be empty")

	// ErrQuestionAttemptIDEmpty is returned when a question's attempt ID is empty or nil.
	ErrQuestionAttemptIDEmpty = errors.New("question attempt ID cannot be empty")

	// ErrQuestionOrderInvalid is returned when a question's ordinal is not positive.
	ErrQuestionOrderInvalid = errors.New("question order must be positive")

	// ErrQuestionContentEmpty is returned when a question's content is empty.
	ErrQuestionContentEmpty = errors.New("question content cannot be empty")

	// ErrQuestionContentInvalid is returned when a question's content is not valid JSON.
	ErrQuestionContentInvalid = errors.New("question content must be valid JSON")
)

// GeneratedQuestion represents one accepted content unit produced by a
// generation sub-job. The content is stored as a JSONB structure, allowing
// for flexible question formats across exam protocols.
type GeneratedQuestion struct {
	ID        uuid.UUID `json:"id"`
	SectionID uuid.UUID `json:"section_id"`
	// ChapterID is nil for sections that do not use chapter scheduling.
	ChapterID *uuid.UUID `json:"chapter_id,omitempty"`
	// AttemptID ties the question to the generation run that produced it.
	AttemptID uuid.UUID `json:"attempt_id"`
	// QuestionOrder is the 1-based ordinal continued across sub-jobs.
	QuestionOrder int `json:"question_order"`
	// BatchNumber is the sub-job this question was produced in.
	BatchNumber int             `json:"batch_number"`
	Content     json.RawMessage `json:"content"`
	// Selected is set by the downstream review step, never by generation.
	Selected  bool      `json:"selected"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuestionContent is the conventional structure of the content field. Content
// is stored as JSONB so protocols can extend it without schema changes.
type QuestionContent struct {
	Stem        string   `json:"stem"`
	Options     []string `json:"options,omitempty"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
	Archetype   string   `json:"archetype,omitempty"`
	Form        string   `json:"form,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
}

// NewGeneratedQuestion creates a question tied to a section, attempt, and
// ordinal position. Returns an error if validation fails.
func NewGeneratedQuestion(
	sectionID uuid.UUID,
	chapterID *uuid.UUID,
	attemptID uuid.UUID,
	questionOrder int,
	batchNumber int,
	content json.RawMessage,
) (*GeneratedQuestion, error) {
	now := time.Now().UTC()
	q := &GeneratedQuestion{
		ID:            uuid.New(),
		SectionID:     sectionID,
		ChapterID:     chapterID,
		AttemptID:     attemptID,
		QuestionOrder: questionOrder,
		BatchNumber:   batchNumber,
		Content:       content,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}

	return q, nil
}

// Validate checks if the GeneratedQuestion has valid data.
func (q *GeneratedQuestion) Validate() error {
	if q.ID == uuid.Nil {
		return ErrQuestionIDEmpty
	}
	if q.SectionID == uuid.Nil {
		return ErrQuestionSectionIDEmpty
	}
	if q.AttemptID == uuid.Nil {
		return ErrQuestionAttemptIDEmpty
	}
	if q.QuestionOrder <= 0 {
		return ErrQuestionOrderInvalid
	}
	if len(q.Content) == 0 {
		return ErrQuestionContentEmpty
	}
	if !json.Valid(q.Content) {
		return ErrQuestionContentInvalid
	}
	return nil
}

// ParsedContent unmarshals the content payload into the conventional shape.
func (q *GeneratedQuestion) ParsedContent() (*QuestionContent, error) {
	var content QuestionContent
	if err := json.Unmarshal(q.Content, &content); err != nil {
		return nil, ErrQuestionContentInvalid
	}
	return &content, nil
}
