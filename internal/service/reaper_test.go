package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stalledSection builds a generating section whose heartbeat is well past the
// reaper threshold.
func stalledSection(t *testing.T) *domain.Section {
	t.Helper()
	section := readySection(t)
	require.NoError(t, section.BeginGeneration())
	stale := time.Now().UTC().Add(-30 * time.Minute)
	section.LastBatchCompletedAt = &stale
	return section
}

func newReaperUnderTest(sections *mockSectionStore, questions *mockQuestionStore) *StaleJobReaper {
	return NewStaleJobReaper(sections, questions, testGenerationConfig(), testLogger())
}

func TestStaleJobReaper_ReapAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("no stale sections", func(t *testing.T) {
		t.Parallel()
		reaper := newReaperUnderTest(&mockSectionStore{}, &mockQuestionStore{})

		reclaimed, err := reaper.ReapAll(ctx)
		require.NoError(t, err)
		assert.Zero(t, reclaimed)
	})

	t.Run("section with no persisted items goes back to ready", func(t *testing.T) {
		t.Parallel()
		section := stalledSection(t)
		sections := &mockSectionStore{section: section, staleSections: []*domain.Section{section}}
		reaper := newReaperUnderTest(sections, &mockQuestionStore{})

		reclaimed, err := reaper.ReapAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, reclaimed)
		assert.Equal(t, domain.SectionStatusReady, sections.section.Status)
	})

	t.Run("section with partial items moves to review with a diagnostic", func(t *testing.T) {
		t.Parallel()
		section := stalledSection(t)
		section.RecordBatch(domain.BatchAudit{QuestionsAdded: 30})
		stale := time.Now().UTC().Add(-30 * time.Minute)
		section.LastBatchCompletedAt = &stale

		questions := &mockQuestionStore{}
		for i := 0; i < 30; i++ {
			q, err := domain.NewGeneratedQuestion(
				section.ID, nil, section.GenerationAttemptID, i+1, 1,
				questionBatch(1).Questions[0])
			require.NoError(t, err)
			questions.questions = append(questions.questions, q)
		}
		sections := &mockSectionStore{section: section, staleSections: []*domain.Section{section}}
		reaper := newReaperUnderTest(sections, questions)

		reclaimed, err := reaper.ReapAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, reclaimed)
		assert.Equal(t, domain.SectionStatusInReview, sections.section.Status)
		assert.Contains(t, sections.section.GenerationError,
			"generation stalled after 30 of 45 questions")
	})

	t.Run("one failed reclaim does not stall the sweep", func(t *testing.T) {
		t.Parallel()
		missing := stalledSection(t)
		present := stalledSection(t)
		// Only the second section exists in the store, so the first reclaim
		// fails and is skipped.
		sections := &mockSectionStore{
			section:       present,
			staleSections: []*domain.Section{missing, present},
		}
		reaper := newReaperUnderTest(sections, &mockQuestionStore{})

		reclaimed, err := reaper.ReapAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, reclaimed)
		assert.Equal(t, domain.SectionStatusReady, sections.section.Status)
	})

	t.Run("lookup failure aborts the sweep", func(t *testing.T) {
		t.Parallel()
		sections := &mockSectionStore{findStaleErr: assert.AnError}
		reaper := newReaperUnderTest(sections, &mockQuestionStore{})

		_, err := reaper.ReapAll(ctx)
		assert.Error(t, err)
	})
}

func TestStaleJobReaper_ReapSection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("ignores sections that are not generating", func(t *testing.T) {
		t.Parallel()
		section := readySection(t)
		sections := &mockSectionStore{section: section}
		reaper := newReaperUnderTest(sections, &mockQuestionStore{})

		reclaimed, err := reaper.ReapSection(ctx, section.ID)
		require.NoError(t, err)
		assert.False(t, reclaimed)
	})

	t.Run("ignores a live heartbeat", func(t *testing.T) {
		t.Parallel()
		section := readySection(t)
		require.NoError(t, section.BeginGeneration())
		sections := &mockSectionStore{section: section}
		reaper := newReaperUnderTest(sections, &mockQuestionStore{})

		reclaimed, err := reaper.ReapSection(ctx, section.ID)
		require.NoError(t, err)
		assert.False(t, reclaimed)
		assert.Equal(t, domain.SectionStatusGenerating, sections.section.Status)
	})

	t.Run("reclaims a stale section on read", func(t *testing.T) {
		t.Parallel()
		section := stalledSection(t)
		sections := &mockSectionStore{section: section}
		reaper := newReaperUnderTest(sections, &mockQuestionStore{})

		reclaimed, err := reaper.ReapSection(ctx, section.ID)
		require.NoError(t, err)
		assert.True(t, reclaimed)
		assert.Equal(t, domain.SectionStatusReady, sections.section.Status)
	})

	t.Run("unknown section", func(t *testing.T) {
		t.Parallel()
		reaper := newReaperUnderTest(&mockSectionStore{}, &mockQuestionStore{})

		_, err := reaper.ReapSection(ctx, uuid.New())
		assert.Error(t, err)
	})
}
