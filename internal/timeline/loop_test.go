package timeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()
	var got []int
	for i := 1; i <= 3; i++ {
		i := i
		require.True(t, q.Enqueue(func() { got = append(got, i) }))
	}

	for {
		task, ok := q.TryDequeue()
		if !ok {
			break
		}
		task()
	}
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestTaskQueue_EnqueueAfterClose(t *testing.T) {
	q := newTaskQueue()
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(func() {}))
	assert.Equal(t, 0, q.Len())
}

func TestLoop_RunPendingIncludesFollowUps(t *testing.T) {
	l := New()
	var order []string

	l.Post(func() {
		order = append(order, "a")
		l.Post(func() { order = append(order, "c") })
	})
	l.Post(func() { order = append(order, "b") })

	n := l.RunPending()

	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, int64(3), l.Clock().Current())
}

func TestLoop_RunExecutesPostedTasks(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()

	var mu sync.Mutex
	count := 0
	for i := 0; i < 10; i++ {
		l.Post(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}

	require.NoError(t, l.Do(ctx, func() {}))
	mu.Lock()
	assert.Equal(t, 10, count)
	mu.Unlock()

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLoop_StopDrainsThenReturns(t *testing.T) {
	l := New()
	ran := 0
	for i := 0; i < 5; i++ {
		l.Post(func() { ran++ })
	}
	l.Stop()

	err := l.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, ran)
	assert.False(t, l.Post(func() {}))
}

func TestLoop_DoAfterStop(t *testing.T) {
	l := New()
	l.Stop()

	err := l.Do(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestLoop_DoRespectsContext(t *testing.T) {
	l := New() // never run
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Do(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoop_PanicDoesNotStopLoop(t *testing.T) {
	l := New()
	after := false
	l.Post(func() { panic("boom") })
	l.Post(func() { after = true })

	assert.Equal(t, 2, l.RunPending())
	assert.True(t, after)
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}
