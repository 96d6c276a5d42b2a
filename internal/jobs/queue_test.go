package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PublishAndProcess(t *testing.T) {
	q := NewQueue(10, 2)

	var mu sync.Mutex
	seen := make(map[uuid.UUID]bool)
	done := make(chan struct{}, 5)

	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, task *Task) {
		mu.Lock()
		seen[task.JobID] = true
		mu.Unlock()
		done <- struct{}{}
	}))

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, q.Publish(context.Background(), &Task{JobID: ids[i]}))
	}

	for range ids {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for tasks")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		assert.True(t, seen[id])
	}
}

func TestQueue_PublishAfterStop(t *testing.T) {
	q := NewQueue(1, 1)
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, task *Task) {}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))

	err := q.Publish(context.Background(), &Task{JobID: uuid.New()})
	assert.Error(t, err)
}

func TestQueue_StopIsIdempotent(t *testing.T) {
	q := NewQueue(1, 1)
	require.NoError(t, q.Start(context.Background(), func(ctx context.Context, task *Task) {}))

	assert.NoError(t, q.Stop(context.Background()))
	assert.NoError(t, q.Stop(context.Background()))
	assert.NoError(t, q.Close())
}

func TestQueue_PublishHonorsContext(t *testing.T) {
	q := NewQueue(0, 1) // unbuffered, no workers started yet

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := q.Publish(ctx, &Task{JobID: uuid.New()})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
