package shared

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithJSON(t *testing.T) {
	t.Parallel()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/sections/abc", nil)

	RespondWithJSON(w, r, http.StatusOK, map[string]int{"total_generated": 45})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 45, body["total_generated"])
}

func TestRespondWithError(t *testing.T) {
	t.Parallel()

	t.Run("includes the trace ID from the request context", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/sections/abc/generate", nil)
		r = r.WithContext(SetTraceID(r.Context()))

		RespondWithError(w, r, http.StatusConflict, "Generation already in progress")

		assert.Equal(t, http.StatusConflict, w.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Generation already in progress", body.Error)
		assert.Equal(t, GetTraceID(r.Context()), body.TraceID)
	})

	t.Run("omits trace ID when none was set", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/sections/abc", nil)

		RespondWithError(w, r, http.StatusNotFound, "Section not found")

		assert.NotContains(t, w.Body.String(), "trace_id")
	})
}

func TestRespondWithErrorAndLog(t *testing.T) {
	t.Parallel()

	t.Run("response carries only the safe message", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/sections/abc/generate", nil)
		cause := errors.New("pq: connection to postgres://user:hunter2@db:5432/exams refused")

		RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to process request", cause)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Failed to process request", body.Error)
		assert.NotContains(t, w.Body.String(), "hunter2")
		assert.NotContains(t, w.Body.String(), "postgres://")
	})

	t.Run("nil error is allowed", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/sections/abc", nil)

		RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid section ID format", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
