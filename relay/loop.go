package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/SoulShadow8326/intrasudo25/discordbot/telemetry"
)

// ErrLoopStopped is returned by Call once the loop has exited.
var ErrLoopStopped = errors.New("relay loop stopped")

type task struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Loop runs submitted work one task at a time, in submission order, on a single goroutine.
// Reconciliation passes and forward sends go through it so they never interleave.
type Loop struct {
	tasks   chan task
	stopped chan struct{}
}

func NewLoop(queue int) *Loop {
	if queue < 1 {
		queue = 1
	}
	return &Loop{tasks: make(chan task, queue), stopped: make(chan struct{})}
}

// Run executes tasks until ctx is canceled. It always returns nil after a clean stop.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-l.tasks:
			telemetry.SetLoopQueueDepth(len(l.tasks))
			l.exec(t)
		}
	}
}

func (l *Loop) exec(t task) {
	// the caller already gave up; skip rather than act on a stale request
	if err := t.ctx.Err(); err != nil {
		t.done <- err
		return
	}
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("relay task panicked", slog.String("component", "relay_loop"), slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
				err = fmt.Errorf("relay task panicked: %v", r)
			}
		}()
		err = t.fn(context.WithoutCancel(t.ctx))
	}()
	t.done <- err
}

// Call runs fn on the loop and waits for it. It returns ctx's error if ctx ends first.
// A task that already started runs to completion: fn receives ctx's values but not its
// cancellation.
func (l *Loop) Call(ctx context.Context, fn func(context.Context) error) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case l.tasks <- t:
		telemetry.SetLoopQueueDepth(len(l.tasks))
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrLoopStopped
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		// Run may have finished this task right before exiting
		select {
		case err := <-t.done:
			return err
		default:
			return ErrLoopStopped
		}
	}
}
