package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// stubTask is a minimal Task for exercising the queue and runner.
type stubTask struct {
	id       uuid.UUID
	taskType string
	payload  []byte
	status   TaskStatus

	// ExecuteFn lets individual tests observe or fail execution.
	ExecuteFn func(ctx context.Context) error
}

func newStubTask(message string) *stubTask {
	payload, _ := json.Marshal(map[string]string{"message": message})
	return &stubTask{
		id:        uuid.New(),
		taskType:  "stub_task",
		payload:   payload,
		status:    TaskStatusPending,
		ExecuteFn: func(context.Context) error { return nil },
	}
}

func (t *stubTask) ID() uuid.UUID                     { return t.id }
func (t *stubTask) Type() string                      { return t.taskType }
func (t *stubTask) Payload() []byte                   { return t.payload }
func (t *stubTask) Status() TaskStatus                { return t.status }
func (t *stubTask) Execute(ctx context.Context) error { return t.ExecuteFn(ctx) }

// stubTaskStore is an in-memory TaskStore. Status transitions are tracked
// in side maps rather than mutating the stored tasks, so tests can assert
// on the store's view independently of the task values they hold.
type stubTaskStore struct {
	mu       sync.RWMutex
	tasks    map[uuid.UUID]Task
	statuses map[uuid.UUID]TaskStatus
	statusAt map[uuid.UUID]time.Time

	// SaveFn, when set, replaces the default save behavior.
	SaveFn func(ctx context.Context, task Task) error
}

func newStubTaskStore() *stubTaskStore {
	return &stubTaskStore{
		tasks:    make(map[uuid.UUID]Task),
		statuses: make(map[uuid.UUID]TaskStatus),
		statusAt: make(map[uuid.UUID]time.Time),
	}
}

func (s *stubTaskStore) SaveTask(ctx context.Context, task Task) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, task)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID()] = task
	s.statuses[task.ID()] = task.Status()
	s.statusAt[task.ID()] = time.Now()
	return nil
}

func (s *stubTaskStore) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return nil
	}
	s.statuses[taskID] = status
	s.statusAt[taskID] = time.Now()
	return nil
}

func (s *stubTaskStore) GetPendingTasks(ctx context.Context) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []Task
	for id, task := range s.tasks {
		if s.statuses[id] == TaskStatusPending {
			pending = append(pending, task)
		}
	}
	return pending, nil
}

func (s *stubTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var processing []Task
	for id, task := range s.tasks {
		if s.statuses[id] != TaskStatusProcessing {
			continue
		}
		if olderThan == 0 || now.Sub(s.statusAt[id]) > olderThan {
			processing = append(processing, task)
		}
	}
	return processing, nil
}

func (s *stubTaskStore) WithTx(tx *sql.Tx) TaskStore {
	return s
}

// statusOf reads the store's tracked status for a task.
func (s *stubTaskStore) statusOf(id uuid.UUID) TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statuses[id]
}

// backdate shifts a task's status timestamp into the past, for stuck-task
// scenarios.
func (s *stubTaskStore) backdate(id uuid.UUID, age time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusAt[id] = time.Now().Add(-age)
}
