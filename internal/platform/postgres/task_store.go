package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/platform/logger"
	"github.com/phrazzld/examgen-api/internal/store"
	"github.com/phrazzld/examgen-api/internal/task"
)

// TaskStore implements the task.TaskStore interface using PostgreSQL.
type TaskStore struct {
	db       store.DBTX
	logger   *slog.Logger
	resolver task.TaskResolver
}

// NewTaskStore creates a PostgreSQL implementation of task.TaskStore.
func NewTaskStore(db store.DBTX, logger *slog.Logger) *TaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

var _ task.TaskStore = (*TaskStore)(nil)

// SetResolver installs the resolver used to rebuild execution logic for tasks
// loaded from the database. Wiring happens after construction because the
// resolver's services themselves depend on this store.
func (s *TaskStore) SetResolver(resolver task.TaskResolver) {
	s.resolver = resolver
}

// SaveTask persists a task to the database.
func (s *TaskStore) SaveTask(ctx context.Context, t task.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO tasks (id, type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, query,
		t.ID(), t.Type(), t.Payload(), t.Status(), now, now,
	)
	if err != nil {
		log.Error("failed to save task",
			slog.String("task_id", t.ID().String()),
			slog.String("task_type", t.Type()),
			slog.String("error", err.Error()))
		return MapError(err)
	}
	return nil
}

// UpdateTaskStatus updates the status of a task in the database. A missing
// task is treated as a no-op so workers and the recovery path never fail on a
// row that was cleaned up underneath them.
func (s *TaskStore) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status task.TaskStatus, errorMsg string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := s.db.ExecContext(ctx, query, status, errorMsg, time.Now().UTC(), taskID)
	if err != nil {
		log.Error("failed to update task status",
			slog.String("task_id", taskID.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		log.Warn("no task found with ID to update status",
			slog.String("task_id", taskID.String()))
	}
	return nil
}

// GetPendingTasks retrieves all tasks with "pending" status.
func (s *TaskStore) GetPendingTasks(ctx context.Context) ([]task.Task, error) {
	return s.getTasksByStatus(ctx, task.TaskStatusPending, 0)
}

// GetProcessingTasks retrieves tasks with "processing" status.
func (s *TaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]task.Task, error) {
	return s.getTasksByStatus(ctx, task.TaskStatusProcessing, olderThan)
}

// WithTx implements task.TaskStore.WithTx. The resolver carries over so
// recovered tasks stay executable inside transactions too.
func (s *TaskStore) WithTx(tx *sql.Tx) task.TaskStore {
	return &TaskStore{db: tx, logger: s.logger, resolver: s.resolver}
}

func (s *TaskStore) getTasksByStatus(ctx context.Context, status task.TaskStatus, olderThan time.Duration) ([]task.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, type, payload, status, error_message, created_at, updated_at
		FROM tasks
		WHERE status = $1
		ORDER BY created_at ASC
	`
	args := []any{status}
	if olderThan > 0 {
		query = `
			SELECT id, type, payload, status, error_message, created_at, updated_at
			FROM tasks
			WHERE status = $1 AND updated_at < $2
			ORDER BY created_at ASC
		`
		args = append(args, time.Now().UTC().Add(-olderThan))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks by status",
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []task.Task
	for rows.Next() {
		var (
			id           uuid.UUID
			taskType     string
			payload      []byte
			taskStatus   task.TaskStatus
			errorMessage sql.NullString
			createdAt    time.Time
			updatedAt    time.Time
		)
		if err := rows.Scan(&id, &taskType, &payload, &taskStatus, &errorMessage, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}

		t := &databaseTask{
			id:           id,
			taskType:     taskType,
			payload:      payload,
			status:       taskStatus,
			errorMessage: errorMessage.String,
			createdAt:    createdAt,
			updatedAt:    updatedAt,
		}

		// Rehydrate execution logic up front so a recovered task fails at
		// load time, not when a worker finally picks it up.
		if s.resolver != nil {
			executeFn, err := s.resolver.Resolve(taskType, payload)
			if err != nil {
				log.Warn("could not resolve stored task, leaving it inert",
					slog.String("task_id", id.String()),
					slog.String("task_type", taskType),
					slog.String("error", err.Error()))
			} else {
				t.executeFn = executeFn
			}
		}

		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}
	return tasks, nil
}

// databaseTask implements the task.Task interface for tasks loaded from the
// database.
type databaseTask struct {
	id           uuid.UUID
	taskType     string
	payload      []byte
	status       task.TaskStatus
	errorMessage string
	createdAt    time.Time
	updatedAt    time.Time
	executeFn    func(ctx context.Context) error
}

// ID returns the task's unique identifier
func (t *databaseTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *databaseTask) Type() string {
	return t.taskType
}

// Payload returns the task data as a byte slice
func (t *databaseTask) Payload() []byte {
	return t.payload
}

// Status returns the current task status
func (t *databaseTask) Status() task.TaskStatus {
	return t.status
}

// Execute runs the rehydrated task logic.
func (t *databaseTask) Execute(ctx context.Context) error {
	if t.executeFn == nil {
		return errors.New("no execution function resolved for recovered task")
	}
	return t.executeFn(ctx)
}
