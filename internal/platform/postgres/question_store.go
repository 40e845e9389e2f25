package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/domain"
	"github.com/phrazzld/examgen-api/internal/platform/logger"
	"github.com/phrazzld/examgen-api/internal/store"
)

// QuestionStore implements store.QuestionStore using PostgreSQL.
type QuestionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewQuestionStore creates a PostgreSQL implementation of store.QuestionStore.
func NewQuestionStore(db store.DBTX, logger *slog.Logger) *QuestionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionStore{
		db:     db,
		logger: logger.With(slog.String("component", "question_store")),
	}
}

var _ store.QuestionStore = (*QuestionStore)(nil)

const questionColumns = `
	id, section_id, chapter_id, attempt_id, question_order, batch_number,
	content, selected, created_at, updated_at`

// CreateMultiple implements store.QuestionStore.CreateMultiple. The caller is
// responsible for running this inside a transaction via WithTx; a multi-row
// INSERT keeps the round-trip count at one per batch.
func (q *QuestionStore) CreateMultiple(ctx context.Context, questions []*domain.GeneratedQuestion) error {
	log := logger.FromContextOrDefault(ctx, q.logger)

	if len(questions) == 0 {
		return nil
	}

	for _, question := range questions {
		if err := question.Validate(); err != nil {
			log.Warn("question validation failed during batch insert",
				slog.String("error", err.Error()),
				slog.String("question_id", question.ID.String()))
			return err
		}
	}

	const paramsPerRow = 10
	placeholders := make([]string, 0, len(questions))
	args := make([]any, 0, len(questions)*paramsPerRow)
	for i, question := range questions {
		base := i * paramsPerRow
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		args = append(args,
			question.ID, question.SectionID, question.ChapterID,
			question.AttemptID, question.QuestionOrder, question.BatchNumber,
			[]byte(question.Content), question.Selected,
			question.CreatedAt, question.UpdatedAt,
		)
	}

	query := `INSERT INTO generated_questions (` + questionColumns + `) VALUES ` +
		strings.Join(placeholders, ", ")

	_, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to insert question batch",
			slog.String("error", err.Error()),
			slog.Int("count", len(questions)))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.QuestionStore.GetByID.
func (q *QuestionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GeneratedQuestion, error) {
	query := `SELECT ` + questionColumns + ` FROM generated_questions WHERE id = $1`
	row := q.db.QueryRowContext(ctx, query, id)

	question, err := scanQuestion(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrQuestionNotFound
		}
		return nil, MapError(err)
	}
	return question, nil
}

// FindByAttempt implements store.QuestionStore.FindByAttempt.
func (q *QuestionStore) FindByAttempt(ctx context.Context, sectionID, attemptID uuid.UUID) ([]*domain.GeneratedQuestion, error) {
	query := `
		SELECT ` + questionColumns + `
		FROM generated_questions
		WHERE section_id = $1 AND attempt_id = $2
		ORDER BY question_order ASC
	`
	return q.queryQuestions(ctx, query, sectionID, attemptID)
}

// FindByAttemptAndChapter implements store.QuestionStore.FindByAttemptAndChapter.
func (q *QuestionStore) FindByAttemptAndChapter(ctx context.Context, sectionID, attemptID, chapterID uuid.UUID) ([]*domain.GeneratedQuestion, error) {
	query := `
		SELECT ` + questionColumns + `
		FROM generated_questions
		WHERE section_id = $1 AND attempt_id = $2 AND chapter_id = $3
		ORDER BY question_order ASC
	`
	return q.queryQuestions(ctx, query, sectionID, attemptID, chapterID)
}

// CountByAttempt implements store.QuestionStore.CountByAttempt.
func (q *QuestionStore) CountByAttempt(ctx context.Context, sectionID, attemptID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM generated_questions WHERE section_id = $1 AND attempt_id = $2`
	var count int
	if err := q.db.QueryRowContext(ctx, query, sectionID, attemptID).Scan(&count); err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

// WithTx implements store.QuestionStore.WithTx.
func (q *QuestionStore) WithTx(tx *sql.Tx) store.QuestionStore {
	return &QuestionStore{db: tx, logger: q.logger}
}

func (q *QuestionStore) queryQuestions(ctx context.Context, query string, args ...any) ([]*domain.GeneratedQuestion, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var questions []*domain.GeneratedQuestion
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, MapError(err)
		}
		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return questions, nil
}

func scanQuestion(row rowScanner) (*domain.GeneratedQuestion, error) {
	var (
		question  domain.GeneratedQuestion
		chapterID uuid.NullUUID
		content   []byte
	)
	err := row.Scan(
		&question.ID, &question.SectionID, &chapterID,
		&question.AttemptID, &question.QuestionOrder, &question.BatchNumber,
		&content, &question.Selected,
		&question.CreatedAt, &question.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if chapterID.Valid {
		id := chapterID.UUID
		question.ChapterID = &id
	}
	question.Content = content
	return &question, nil
}
