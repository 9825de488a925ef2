package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("library unavailable")
		}
		return nil
	}, QueueConfig{MaxRetries: 5, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "submit"}))
	q.Wait()

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestQueueReportsExhaustedJobs(t *testing.T) {
	var mu sync.Mutex
	var exhausted []Job
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		return errors.New("always fails")
	}, QueueConfig{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		OnExhausted: func(job Job, err error) {
			mu.Lock()
			exhausted = append(exhausted, job)
			mu.Unlock()
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "ticket"}))
	q.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, exhausted, 1)
	assert.Equal(t, 2, exhausted[0].Attempt)
	assert.NotEmpty(t, exhausted[0].ID)
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{Type: "noop"}))
}

func TestMuxDispatch(t *testing.T) {
	mux := NewMux()
	var got string
	mux.Handle("archive", func(ctx context.Context, job Job) error {
		got = job.Payload.(string)
		return nil
	})

	require.NoError(t, mux.Dispatch(context.Background(), Job{Type: "archive", Payload: "pv-1"}))
	assert.Equal(t, "pv-1", got)
	assert.Error(t, mux.Dispatch(context.Background(), Job{Type: "unknown"}))
}
