package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/config"
	"github.com/phrazzld/examgen-api/internal/domain"
	"github.com/phrazzld/examgen-api/internal/generation"
	"github.com/phrazzld/examgen-api/internal/protocol"
	"github.com/phrazzld/examgen-api/internal/store"
	"github.com/phrazzld/examgen-api/internal/validation"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockSectionStore is an in-memory store.SectionStore backed by one section.
// Claim semantics mirror the SQL CAS: claimable states and stale heartbeats
// succeed, fresh generating claims fail.
type mockSectionStore struct {
	section *domain.Section

	updateCalls       int
	claimCalls        int
	heartbeatCalls    int
	diagnostics       []string
	claimErr          error
	updateErr         error
	staleSections     []*domain.Section
	findStaleErr      error
	refreshHeartbeats func(ctx context.Context, id uuid.UUID) error
}

var _ store.SectionStore = (*mockSectionStore)(nil)

func (m *mockSectionStore) Create(ctx context.Context, section *domain.Section) error {
	m.section = section
	return nil
}

func (m *mockSectionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Section, error) {
	if m.section == nil || m.section.ID != id {
		return nil, store.ErrSectionNotFound
	}
	// Return a shallow copy so callers mutate their own view until Update.
	copied := *m.section
	return &copied, nil
}

func (m *mockSectionStore) Update(ctx context.Context, section *domain.Section) error {
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	copied := *section
	m.section = &copied
	return nil
}

func (m *mockSectionStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.SectionStatus) error {
	if m.section == nil || m.section.ID != id {
		return store.ErrSectionNotFound
	}
	m.section.Status = status
	return nil
}

func (m *mockSectionStore) ClaimForGeneration(ctx context.Context, id uuid.UUID, staleAfter time.Duration) error {
	m.claimCalls++
	if m.claimErr != nil {
		return m.claimErr
	}
	if m.section == nil || m.section.ID != id {
		return store.ErrSectionNotFound
	}
	switch m.section.Status {
	case domain.SectionStatusReady, domain.SectionStatusInReview:
		m.section.Status = domain.SectionStatusGenerating
		return nil
	case domain.SectionStatusGenerating:
		if m.section.HeartbeatStale(staleAfter, time.Now().UTC()) {
			return nil
		}
		return store.ErrClaimFailed
	default:
		return store.ErrClaimFailed
	}
}

func (m *mockSectionStore) RefreshHeartbeat(ctx context.Context, id uuid.UUID) error {
	m.heartbeatCalls++
	if m.refreshHeartbeats != nil {
		return m.refreshHeartbeats(ctx, id)
	}
	return nil
}

func (m *mockSectionStore) SetGenerationError(ctx context.Context, id uuid.UUID, diagnostic string) error {
	m.diagnostics = append(m.diagnostics, diagnostic)
	if m.section != nil && m.section.ID == id {
		m.section.GenerationError = diagnostic
	}
	return nil
}

func (m *mockSectionStore) FindStaleGenerating(ctx context.Context, olderThan time.Duration) ([]*domain.Section, error) {
	if m.findStaleErr != nil {
		return nil, m.findStaleErr
	}
	return m.staleSections, nil
}

func (m *mockSectionStore) WithTx(tx *sql.Tx) store.SectionStore {
	return m
}

// mockQuestionStore is an in-memory store.QuestionStore.
type mockQuestionStore struct {
	questions []*domain.GeneratedQuestion
	createErr error
	countErr  error
}

var _ store.QuestionStore = (*mockQuestionStore)(nil)

func (m *mockQuestionStore) CreateMultiple(ctx context.Context, questions []*domain.GeneratedQuestion) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.questions = append(m.questions, questions...)
	return nil
}

func (m *mockQuestionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GeneratedQuestion, error) {
	for _, q := range m.questions {
		if q.ID == id {
			return q, nil
		}
	}
	return nil, store.ErrQuestionNotFound
}

func (m *mockQuestionStore) FindByAttempt(ctx context.Context, sectionID, attemptID uuid.UUID) ([]*domain.GeneratedQuestion, error) {
	var out []*domain.GeneratedQuestion
	for _, q := range m.questions {
		if q.SectionID == sectionID && q.AttemptID == attemptID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *mockQuestionStore) FindByAttemptAndChapter(ctx context.Context, sectionID, attemptID, chapterID uuid.UUID) ([]*domain.GeneratedQuestion, error) {
	var out []*domain.GeneratedQuestion
	for _, q := range m.questions {
		if q.SectionID == sectionID && q.AttemptID == attemptID && q.ChapterID != nil && *q.ChapterID == chapterID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (m *mockQuestionStore) CountByAttempt(ctx context.Context, sectionID, attemptID uuid.UUID) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	count := 0
	for _, q := range m.questions {
		if q.SectionID == sectionID && q.AttemptID == attemptID {
			count++
		}
	}
	return count, nil
}

func (m *mockQuestionStore) WithTx(tx *sql.Tx) store.QuestionStore {
	return m
}

// mockGenerator returns scripted results per call and records requests.
type mockGenerator struct {
	requests []generation.BatchRequest
	generate func(call int, req generation.BatchRequest) (*generation.BatchResult, error)
}

func (m *mockGenerator) GenerateBatch(ctx context.Context, req generation.BatchRequest) (*generation.BatchResult, error) {
	call := len(m.requests)
	m.requests = append(m.requests, req)
	if m.generate != nil {
		return m.generate(call, req)
	}
	return questionBatch(req.Count), nil
}

// questionBatch fabricates a result with the requested number of questions.
// Stems are globally unique so the duplicate-stem post-pass stays quiet.
func questionBatch(count int) *generation.BatchResult {
	questions := make([]json.RawMessage, 0, count)
	for i := 0; i < count; i++ {
		questions = append(questions, json.RawMessage(fmt.Sprintf(
			`{"stem":"What is the value of constant %s?","options":["a","b","c","d"],"answer":"a"}`,
			uuid.NewString())))
	}
	return &generation.BatchResult{
		Questions: questions,
		Usage:     generation.Usage{PromptTokens: 1200, CompletionTokens: 3400, TotalTokens: 4600},
	}
}

// mockEnqueuer records continuation requests.
type mockEnqueuer struct {
	calls []int
	err   error
}

func (m *mockEnqueuer) EnqueueContinuation(ctx context.Context, sectionID uuid.UUID, fromBatch int) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, fromBatch)
	return nil
}

// serviceHarness bundles a generation service with its mocked collaborators.
type serviceHarness struct {
	service   GenerationService
	sections  *mockSectionStore
	questions *mockQuestionStore
	generator *mockGenerator
	enqueuer  *mockEnqueuer
	sqlMock   sqlmock.Sqlmock
}

// expectBatches queues transaction expectations for n persisted batches.
func (h *serviceHarness) expectBatches(n int) {
	for i := 0; i < n; i++ {
		h.sqlMock.ExpectBegin()
		h.sqlMock.ExpectCommit()
	}
}

func testGenerationConfig() config.GenerationConfig {
	return config.GenerationConfig{
		BatchSize: 30,
		// One attempt keeps unit tests free of backoff sleeps; the retry
		// policy itself is covered in retry_test.go.
		MaxAttempts:              1,
		RetryBaseDelaySeconds:    1,
		StaleJobThresholdMinutes: 7,
	}
}

func newServiceHarness(t *testing.T, section *domain.Section) *serviceHarness {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &serviceHarness{
		sections:  &mockSectionStore{section: section},
		questions: &mockQuestionStore{},
		generator: &mockGenerator{},
		enqueuer:  &mockEnqueuer{},
		sqlMock:   mock,
	}

	protocols, err := protocol.NewDefaultRegistry()
	require.NoError(t, err)

	validator, err := validation.NewQuestionValidator()
	require.NoError(t, err)

	h.service, err = NewGenerationService(GenerationServiceParams{
		DB:         db,
		Sections:   h.sections,
		Questions:  h.questions,
		Generator:  h.generator,
		Protocols:  protocols,
		Validator:  validator,
		Enqueuer:   h.enqueuer,
		Generation: testGenerationConfig(),
		LLM: config.LLMConfig{
			PromptCostPer1K:     0.005,
			CompletionCostPer1K: 0.015,
		},
		Logger: testLogger(),
	})
	require.NoError(t, err)

	return h
}

// readySection builds a ready section with question count 30, so the target
// is 45 and a 30-question batch size needs exactly two sub-jobs.
func readySection(t *testing.T) *domain.Section {
	t.Helper()
	section, err := domain.NewSection(
		uuid.New(), uuid.New(), uuid.New(),
		"engineering", "physics", "Physics Section A",
		30, domain.ModeSelfKnowledge,
	)
	require.NoError(t, err)
	return section
}

// chapteredSection builds a ready section whose chapter quotas sum below the
// overall target.
func chapteredSection(t *testing.T, quotas ...int) *domain.Section {
	t.Helper()
	section := readySection(t)
	for i, quota := range quotas {
		section.Schedule.Chapters = append(section.Schedule.Chapters, domain.ChapterAllocation{
			ChapterID:       uuid.New(),
			ChapterName:     fmt.Sprintf("Chapter %d", i+1),
			QuestionsTarget: quota,
		})
	}
	return section
}
