package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsTasks(t *testing.T) {
	q := New(2, 0)

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue("count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}))
	}

	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, int32(10), ran.Load())
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	q := New(1, 3, WithBackoff(time.Millisecond))

	var attempts atomic.Int32
	require.NoError(t, q.Enqueue("flaky", func(ctx context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("not yet")
		}
		return nil
	}))

	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestQueueGivesUpAfterRetries(t *testing.T) {
	q := New(1, 2, WithBackoff(time.Millisecond))

	var attempts atomic.Int32
	require.NoError(t, q.Enqueue("broken", func(ctx context.Context) error {
		attempts.Add(1)
		return errors.New("always")
	}))

	require.NoError(t, q.Close(context.Background()))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestQueueRecoversPanics(t *testing.T) {
	q := New(1, 0)

	var after atomic.Bool
	require.NoError(t, q.Enqueue("panics", func(ctx context.Context) error {
		panic("boom")
	}))
	require.NoError(t, q.Enqueue("after", func(ctx context.Context) error {
		after.Store(true)
		return nil
	}))

	require.NoError(t, q.Close(context.Background()))
	assert.True(t, after.Load())
}

func TestEnqueueAfterClose(t *testing.T) {
	q := New(1, 0)
	require.NoError(t, q.Close(context.Background()))

	err := q.Enqueue("late", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)

	// closing twice is safe
	assert.NoError(t, q.Close(context.Background()))
}

func TestEnqueueWhenFull(t *testing.T) {
	q := New(1, 0, WithBuffer(1))

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, q.Enqueue("block", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	require.NoError(t, q.Enqueue("waiting", func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, q.Enqueue("overflow", func(ctx context.Context) error { return nil }), ErrQueueFull)

	close(release)
	require.NoError(t, q.Close(context.Background()))
}

func TestCloseTimeoutAbandonsRetries(t *testing.T) {
	q := New(1, 5, WithBackoff(time.Hour))

	started := make(chan struct{})
	require.NoError(t, q.Enqueue("slow-retry", func(ctx context.Context) error {
		select {
		case <-started:
		default:
			close(started)
		}
		return errors.New("fail")
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(ctx), context.DeadlineExceeded)
}
