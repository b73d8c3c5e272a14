// Package schedule runs periodic background work that can be cancelled and
// awaited by its owner.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/dares/internal/logging"
)

// TickFunc is one unit of periodic work. A returned error is logged and
// the schedule continues; the next tick is the retry.
type TickFunc func(ctx context.Context) error

// Task is a running periodic job.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Every starts fn on a ticker of the given interval. The first run happens
// one interval after start. timeout bounds each run; zero means no bound
// beyond the task's own lifetime.
func Every(ctx context.Context, name string, interval, timeout time.Duration, fn TickFunc, logger logging.Logger) *Task {
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{name: name, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runCtx, runCancel := ctx, context.CancelFunc(func() {})
				if timeout > 0 {
					runCtx, runCancel = context.WithTimeout(ctx, timeout)
				}
				err := fn(runCtx)
				runCancel()
				if err != nil && ctx.Err() == nil {
					logger.Warn(ctx, "scheduled task failed", "task", name, "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return t
}

// Name returns the label given at start.
func (t *Task) Name() string { return t.name }

// Cancel stops future ticks without waiting. A run in progress sees its
// context cancelled.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(t.cancel)
}

// Stop cancels the task and waits for an in-flight run to return. It is
// safe to call more than once, but never from inside the task's own
// TickFunc.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.Cancel()
	<-t.done
}

// Done is closed once the task goroutine has exited.
func (t *Task) Done() <-chan struct{} { return t.done }
