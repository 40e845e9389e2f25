package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/domain"
	"github.com/phrazzld/examgen-api/internal/platform/logger"
	"github.com/phrazzld/examgen-api/internal/store"
)

// SectionStore implements store.SectionStore using PostgreSQL.
type SectionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewSectionStore creates a PostgreSQL implementation of store.SectionStore.
// If logger is nil, the process default is used.
func NewSectionStore(db store.DBTX, logger *slog.Logger) *SectionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SectionStore{
		db:     db,
		logger: logger.With(slog.String("component", "section_store")),
	}
}

var _ store.SectionStore = (*SectionStore)(nil)

const sectionColumns = `
	id, exam_id, subject_id, user_id, stream, subject, title,
	status, generation_mode, question_count, target_questions, batch_size,
	batch_number, total_batches, questions_generated, generation_attempt_id,
	chapter_schedule, batch_audits,
	last_batch_completed_at, generation_started_at, generation_completed_at,
	generation_error, created_at, updated_at`

// Create implements store.SectionStore.Create.
func (s *SectionStore) Create(ctx context.Context, section *domain.Section) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := section.Validate(); err != nil {
		log.Warn("section validation failed during create",
			slog.String("error", err.Error()),
			slog.String("section_id", section.ID.String()))
		return err
	}
	if err := section.Schedule.Validate(); err != nil {
		return err
	}

	scheduleJSON, auditsJSON, err := marshalSectionBlobs(section)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO sections (` + sectionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`
	_, err = s.db.ExecContext(ctx, query,
		section.ID, section.ExamID, section.SubjectID, section.UserID,
		section.Stream, section.Subject, section.Title,
		section.Status, section.Mode,
		section.QuestionCount, section.TargetQuestions, section.BatchSize,
		section.BatchNumber, section.TotalBatches, section.QuestionsGenerated,
		nullableUUID(section.GenerationAttemptID),
		scheduleJSON, auditsJSON,
		section.LastBatchCompletedAt, section.GenerationStartedAt,
		section.GenerationCompletedAt, section.GenerationError,
		section.CreatedAt, section.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create section",
			slog.String("error", err.Error()),
			slog.String("section_id", section.ID.String()))
		return MapError(err)
	}
	return nil
}

// GetByID implements store.SectionStore.GetByID.
func (s *SectionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Section, error) {
	query := `SELECT ` + sectionColumns + ` FROM sections WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, id)

	section, err := scanSection(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrSectionNotFound
		}
		return nil, MapError(err)
	}
	return section, nil
}

// Update implements store.SectionStore.Update. It writes the full mutable
// state in one statement; identity fields never change after Create.
func (s *SectionStore) Update(ctx context.Context, section *domain.Section) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := section.Validate(); err != nil {
		return err
	}

	scheduleJSON, auditsJSON, err := marshalSectionBlobs(section)
	if err != nil {
		return err
	}

	query := `
		UPDATE sections SET
			status = $1, generation_mode = $2,
			question_count = $3, target_questions = $4, batch_size = $5,
			batch_number = $6, total_batches = $7, questions_generated = $8,
			generation_attempt_id = $9, chapter_schedule = $10, batch_audits = $11,
			last_batch_completed_at = $12, generation_started_at = $13,
			generation_completed_at = $14, generation_error = $15,
			updated_at = $16
		WHERE id = $17
	`
	result, err := s.db.ExecContext(ctx, query,
		section.Status, section.Mode,
		section.QuestionCount, section.TargetQuestions, section.BatchSize,
		section.BatchNumber, section.TotalBatches, section.QuestionsGenerated,
		nullableUUID(section.GenerationAttemptID),
		scheduleJSON, auditsJSON,
		section.LastBatchCompletedAt, section.GenerationStartedAt,
		section.GenerationCompletedAt, section.GenerationError,
		time.Now().UTC(),
		section.ID,
	)
	if err != nil {
		log.Error("failed to update section",
			slog.String("error", err.Error()),
			slog.String("section_id", section.ID.String()))
		return MapError(err)
	}
	return requireRowAffected(result, store.ErrSectionNotFound)
}

// UpdateStatus implements store.SectionStore.UpdateStatus.
func (s *SectionStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SectionStatus) error {
	query := `UPDATE sections SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return MapError(err)
	}
	return requireRowAffected(result, store.ErrSectionNotFound)
}

// ClaimForGeneration implements store.SectionStore.ClaimForGeneration.
// The WHERE clause is the compare-and-swap that keeps two near-simultaneous
// invocations from both claiming the same section: a generating section is
// only claimable once its heartbeat has gone stale.
func (s *SectionStore) ClaimForGeneration(ctx context.Context, id uuid.UUID, staleAfter time.Duration) error {
	now := time.Now().UTC()
	query := `
		UPDATE sections
		SET status = $1, last_batch_completed_at = $2, updated_at = $2
		WHERE id = $3
		  AND (status IN ($4, $5)
		       OR (status = $1 AND COALESCE(last_batch_completed_at, generation_started_at, 'epoch') < $6))
	`
	result, err := s.db.ExecContext(ctx, query,
		domain.SectionStatusGenerating,
		now,
		id,
		domain.SectionStatusReady,
		domain.SectionStatusInReview,
		now.Add(-staleAfter),
	)
	if err != nil {
		return MapError(err)
	}
	return requireRowAffected(result, store.ErrClaimFailed)
}

// RefreshHeartbeat implements store.SectionStore.RefreshHeartbeat.
func (s *SectionStore) RefreshHeartbeat(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE sections SET last_batch_completed_at = $1, updated_at = $1 WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return MapError(err)
	}
	return requireRowAffected(result, store.ErrSectionNotFound)
}

// SetGenerationError implements store.SectionStore.SetGenerationError.
func (s *SectionStore) SetGenerationError(ctx context.Context, id uuid.UUID, diagnostic string) error {
	query := `UPDATE sections SET generation_error = $1, updated_at = $2 WHERE id = $3`
	result, err := s.db.ExecContext(ctx, query, diagnostic, time.Now().UTC(), id)
	if err != nil {
		return MapError(err)
	}
	return requireRowAffected(result, store.ErrSectionNotFound)
}

// FindStaleGenerating implements store.SectionStore.FindStaleGenerating.
func (s *SectionStore) FindStaleGenerating(ctx context.Context, olderThan time.Duration) ([]*domain.Section, error) {
	query := `
		SELECT ` + sectionColumns + `
		FROM sections
		WHERE status = $1
		  AND COALESCE(last_batch_completed_at, generation_started_at, 'epoch') < $2
		ORDER BY updated_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query,
		domain.SectionStatusGenerating,
		time.Now().UTC().Add(-olderThan),
	)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var sections []*domain.Section
	for rows.Next() {
		section, err := scanSection(rows)
		if err != nil {
			return nil, MapError(err)
		}
		sections = append(sections, section)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return sections, nil
}

// WithTx implements store.SectionStore.WithTx.
func (s *SectionStore) WithTx(tx *sql.Tx) store.SectionStore {
	return &SectionStore{db: tx, logger: s.logger}
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSection(row rowScanner) (*domain.Section, error) {
	var (
		section      domain.Section
		attemptID    uuid.NullUUID
		scheduleJSON []byte
		auditsJSON   []byte
		genError     sql.NullString
	)

	err := row.Scan(
		&section.ID, &section.ExamID, &section.SubjectID, &section.UserID,
		&section.Stream, &section.Subject, &section.Title,
		&section.Status, &section.Mode,
		&section.QuestionCount, &section.TargetQuestions, &section.BatchSize,
		&section.BatchNumber, &section.TotalBatches, &section.QuestionsGenerated,
		&attemptID,
		&scheduleJSON, &auditsJSON,
		&section.LastBatchCompletedAt, &section.GenerationStartedAt,
		&section.GenerationCompletedAt, &genError,
		&section.CreatedAt, &section.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if attemptID.Valid {
		section.GenerationAttemptID = attemptID.UUID
	}
	section.GenerationError = genError.String

	if len(scheduleJSON) > 0 {
		if err := json.Unmarshal(scheduleJSON, &section.Schedule); err != nil {
			return nil, fmt.Errorf("%w: malformed chapter schedule: %v", store.ErrInvalidEntity, err)
		}
		if err := section.Schedule.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}
	}
	if len(auditsJSON) > 0 {
		if err := json.Unmarshal(auditsJSON, &section.BatchAudits); err != nil {
			return nil, fmt.Errorf("%w: malformed batch audits: %v", store.ErrInvalidEntity, err)
		}
	}
	return &section, nil
}

func marshalSectionBlobs(section *domain.Section) ([]byte, []byte, error) {
	scheduleJSON, err := json.Marshal(section.Schedule)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal chapter schedule: %w", err)
	}
	auditsJSON, err := json.Marshal(section.BatchAudits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal batch audits: %w", err)
	}
	return scheduleJSON, auditsJSON, nil
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func requireRowAffected(result sql.Result, missing error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return missing
	}
	return nil
}
