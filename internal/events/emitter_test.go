package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEmitter() *InMemoryEventEmitter {
	return NewInMemoryEventEmitter(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestInMemoryEventEmitter_EmitEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("no handlers is a no-op", func(t *testing.T) {
		t.Parallel()
		event, err := NewTaskRequestEvent("section_generation", map[string]int{"from_batch": 1})
		require.NoError(t, err)

		assert.NoError(t, testEmitter().EmitEvent(ctx, event))
	})

	t.Run("delivers to every registered handler", func(t *testing.T) {
		t.Parallel()
		emitter := testEmitter()
		first := &recordingHandler{}
		second := &recordingHandler{}
		emitter.RegisterHandler(first)
		emitter.RegisterHandler(second)

		event, err := NewTaskRequestEvent("section_generation", map[string]int{"from_batch": 1})
		require.NoError(t, err)
		require.NoError(t, emitter.EmitEvent(ctx, event))

		require.Len(t, first.events, 1)
		require.Len(t, second.events, 1)
		assert.Equal(t, event.ID, first.events[0].ID)
	})

	t.Run("handler failure propagates but does not stop delivery", func(t *testing.T) {
		t.Parallel()
		emitter := testEmitter()
		failing := &recordingHandler{err: errors.New("enqueue failed")}
		healthy := &recordingHandler{}
		emitter.RegisterHandler(failing)
		emitter.RegisterHandler(healthy)

		event, err := NewTaskRequestEvent("section_generation", map[string]int{"from_batch": 3})
		require.NoError(t, err)

		err = emitter.EmitEvent(ctx, event)
		assert.EqualError(t, err, "enqueue failed")
		assert.Len(t, failing.events, 1)
		assert.Len(t, healthy.events, 1)
	})
}
