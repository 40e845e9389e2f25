package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_Enqueue(t *testing.T) {
	t.Run("accepts tasks up to capacity", func(t *testing.T) {
		queue := NewTaskQueue(2, discardLogger())

		require.NoError(t, queue.Enqueue(newStubTask("first")))
		require.NoError(t, queue.Enqueue(newStubTask("second")))

		overflow := newStubTask("third")
		err := queue.Enqueue(overflow)
		assert.ErrorIs(t, err, ErrQueueFull)

		// Draining one slot makes room again.
		<-queue.GetChannel()
		assert.NoError(t, queue.Enqueue(overflow))
	})

	t.Run("rejects tasks after close", func(t *testing.T) {
		queue := NewTaskQueue(4, discardLogger())
		queued := newStubTask("queued before close")
		require.NoError(t, queue.Enqueue(queued))

		queue.Close()

		err := queue.Enqueue(newStubTask("late"))
		assert.ErrorIs(t, err, ErrQueueClosed)

		// Already-queued tasks stay readable after close.
		received := <-queue.GetChannel()
		assert.Equal(t, queued.ID(), received.ID())

		select {
		case _, ok := <-queue.GetChannel():
			assert.False(t, ok)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timed out waiting for closed channel read")
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		queue := NewTaskQueue(1, discardLogger())
		queue.Close()
		queue.Close()
	})
}

func TestTaskQueue_GetChannel(t *testing.T) {
	queue := NewTaskQueue(8, discardLogger())

	submitted := newStubTask("payload")
	require.NoError(t, queue.Enqueue(submitted))

	received := <-queue.GetChannel()
	assert.Equal(t, submitted.ID(), received.ID())
	assert.Equal(t, submitted.Type(), received.Type())
}

func TestTaskQueue_ConcurrentEnqueue(t *testing.T) {
	queue := NewTaskQueue(100, discardLogger())

	const taskCount = 50
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < taskCount; i++ {
			assert.NoError(t, queue.Enqueue(newStubTask("concurrent")))
		}
	}()
	<-done

	for i := 0; i < taskCount; i++ {
		select {
		case <-queue.GetChannel():
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timed out waiting for task %d", i)
		}
	}
}
