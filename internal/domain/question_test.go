package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeneratedQuestion(t *testing.T) {
	t.Parallel()

	content := json.RawMessage(`{"stem":"What is the powerhouse of the cell?","answer":"Mitochondria"}`)

	t.Run("valid question", func(t *testing.T) {
		t.Parallel()
		chapterID := uuid.New()
		q, err := NewGeneratedQuestion(uuid.New(), &chapterID, uuid.New(), 1, 1, content)
		require.NoError(t, err)
		assert.False(t, q.Selected, "selection flag defaults unset")
		assert.Equal(t, 1, q.QuestionOrder)
	})

	t.Run("nil chapter is allowed", func(t *testing.T) {
		t.Parallel()
		q, err := NewGeneratedQuestion(uuid.New(), nil, uuid.New(), 3, 1, content)
		require.NoError(t, err)
		assert.Nil(t, q.ChapterID)
	})

	t.Run("zero order rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewGeneratedQuestion(uuid.New(), nil, uuid.New(), 0, 1, content)
		assert.ErrorIs(t, err, ErrQuestionOrderInvalid)
	})

	t.Run("empty attempt id rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewGeneratedQuestion(uuid.New(), nil, uuid.Nil, 1, 1, content)
		assert.ErrorIs(t, err, ErrQuestionAttemptIDEmpty)
	})

	t.Run("invalid JSON content rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewGeneratedQuestion(uuid.New(), nil, uuid.New(), 1, 1, json.RawMessage(`{not json`))
		assert.ErrorIs(t, err, ErrQuestionContentInvalid)
	})
}

func TestGeneratedQuestion_ParsedContent(t *testing.T) {
	t.Parallel()

	q, err := NewGeneratedQuestion(uuid.New(), nil, uuid.New(), 1, 1,
		json.RawMessage(`{"stem":"S","options":["a","b"],"answer":"a","archetype":"recall"}`))
	require.NoError(t, err)

	content, err := q.ParsedContent()
	require.NoError(t, err)
	assert.Equal(t, "S", content.Stem)
	assert.Equal(t, []string{"a", "b"}, content.Options)
	assert.Equal(t, "recall", content.Archetype)
}
