package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/domain"
)

// QuestionStore defines the interface for generated-question persistence.
type QuestionStore interface {
	// CreateMultiple saves a batch of questions. It MUST run within a
	// transaction (use WithTx together with store.RunInTransaction) so a
	// sub-job's items are persisted all-or-nothing; a partial insert would
	// corrupt question_order continuation. All questions must pass domain
	// validation.
	CreateMultiple(ctx context.Context, questions []*domain.GeneratedQuestion) error

	// GetByID retrieves a question by its unique ID.
	// Returns ErrQuestionNotFound if the question does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GeneratedQuestion, error)

	// FindByAttempt returns all questions for the given section and
	// generation attempt, ordered by question_order. Items from prior
	// attempts on the same section are excluded.
	FindByAttempt(ctx context.Context, sectionID, attemptID uuid.UUID) ([]*domain.GeneratedQuestion, error)

	// FindByAttemptAndChapter narrows FindByAttempt to one chapter so dedup
	// context never leaks questions across chapters.
	FindByAttemptAndChapter(ctx context.Context, sectionID, attemptID, chapterID uuid.UUID) ([]*domain.GeneratedQuestion, error)

	// CountByAttempt returns the number of persisted questions for the given
	// section and attempt.
	CountByAttempt(ctx context.Context, sectionID, attemptID uuid.UUID) (int, error)

	// WithTx returns a QuestionStore bound to the provided transaction.
	WithTx(tx *sql.Tx) QuestionStore
}
