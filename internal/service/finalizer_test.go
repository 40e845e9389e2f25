package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/examgen-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stemQuestion(t *testing.T, order int, stem string) *domain.GeneratedQuestion {
	t.Helper()
	content, err := json.Marshal(map[string]any{"stem": stem, "answer": "a"})
	require.NoError(t, err)
	q, err := domain.NewGeneratedQuestion(uuid.New(), nil, uuid.New(), order, 1, content)
	require.NoError(t, err)
	return q
}

func TestDuplicateStemChecker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	checker := NewDuplicateStemChecker()

	t.Run("unique stems produce no findings", func(t *testing.T) {
		t.Parallel()
		questions := []*domain.GeneratedQuestion{
			stemQuestion(t, 1, "Define enthalpy of formation."),
			stemQuestion(t, 2, "State the second law of thermodynamics."),
		}
		assert.Empty(t, checker.Check(ctx, nil, questions))
	})

	t.Run("flags repeats after case and whitespace normalization", func(t *testing.T) {
		t.Parallel()
		questions := []*domain.GeneratedQuestion{
			stemQuestion(t, 1, "Define enthalpy of formation."),
			stemQuestion(t, 7, "define   Enthalpy of  formation."),
		}
		findings := checker.Check(ctx, nil, questions)
		require.Len(t, findings, 1)
		assert.Equal(t, "question 7 repeats the stem of question 1", findings[0])
	})

	t.Run("skips items without a parseable stem", func(t *testing.T) {
		t.Parallel()
		broken := stemQuestion(t, 1, "placeholder")
		broken.Content = json.RawMessage(`{"answer":"a"}`)
		questions := []*domain.GeneratedQuestion{
			broken,
			stemQuestion(t, 2, "State Hooke's law."),
		}
		assert.Empty(t, checker.Check(ctx, nil, questions))
	})
}
