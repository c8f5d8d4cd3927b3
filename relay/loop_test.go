package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsTasksInOrder(t *testing.T) {
	l := startLoop(t)
	var mu sync.Mutex
	var order []int
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Call(context.Background(), func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestLoopReturnsTaskError(t *testing.T) {
	l := startLoop(t)
	want := errors.New("boom")
	err := l.Call(context.Background(), func(ctx context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestLoopCallTimesOut(t *testing.T) {
	l := startLoop(t)
	started := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		_ = l.Call(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
		close(finished)
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ran := false
	err := l.Call(ctx, func(ctx context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-finished
	// the abandoned task is skipped once the loop reaches it
	require.NoError(t, l.Call(context.Background(), func(ctx context.Context) error { return nil }))
	assert.False(t, ran)
}

func TestLoopRecoversPanics(t *testing.T) {
	l := startLoop(t)
	err := l.Call(context.Background(), func(ctx context.Context) error { panic("bad task") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad task")
	assert.NoError(t, l.Call(context.Background(), func(ctx context.Context) error { return nil }))
}

func TestLoopStopped(t *testing.T) {
	l := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = l.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	err := l.Call(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrLoopStopped)
}

func TestLoopStartedTaskIgnoresCallerCancel(t *testing.T) {
	l := startLoop(t)
	started := make(chan struct{})
	taskErr := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = l.Call(ctx, func(ctx context.Context) error {
			close(started)
			time.Sleep(20 * time.Millisecond)
			taskErr <- ctx.Err()
			return nil
		})
	}()
	<-started
	cancel()
	assert.NoError(t, <-taskErr)
}
