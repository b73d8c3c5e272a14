package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvery_TicksAtInterval(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var n atomic.Int32
		task := Every(context.Background(), "count", time.Minute, 0, func(ctx context.Context) error {
			n.Add(1)
			return nil
		}, nil)

		time.Sleep(59 * time.Second)
		synctest.Wait()
		assert.Equal(t, int32(0), n.Load())

		time.Sleep(time.Second)
		synctest.Wait()
		assert.Equal(t, int32(1), n.Load())

		time.Sleep(10 * time.Minute)
		synctest.Wait()
		assert.Equal(t, int32(11), n.Load())

		task.Stop()
		assert.Equal(t, "count", task.Name())
	})
}

func TestStop_NoTicksAfterwards(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var n atomic.Int32
		task := Every(context.Background(), "x", time.Minute, 0, func(ctx context.Context) error {
			n.Add(1)
			return nil
		}, nil)

		time.Sleep(2 * time.Minute)
		synctest.Wait()
		task.Stop()
		task.Stop()

		time.Sleep(time.Hour)
		synctest.Wait()
		assert.Equal(t, int32(2), n.Load())

		select {
		case <-task.Done():
		default:
			t.Fatal("done channel not closed")
		}
	})
}

func TestEvery_ErrorsDoNotStopSchedule(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var n atomic.Int32
		task := Every(context.Background(), "flaky", time.Minute, 0, func(ctx context.Context) error {
			if n.Add(1) == 1 {
				return errors.New("transient")
			}
			return nil
		}, nil)
		defer task.Stop()

		time.Sleep(3 * time.Minute)
		synctest.Wait()
		assert.Equal(t, int32(3), n.Load())
	})
}

func TestEvery_TimeoutBoundsRun(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		deadlines := make(chan time.Time, 1)
		task := Every(context.Background(), "bounded", time.Minute, 5*time.Second, func(ctx context.Context) error {
			d, ok := ctx.Deadline()
			if ok {
				deadlines <- d
			}
			return nil
		}, nil)

		time.Sleep(time.Minute)
		synctest.Wait()
		now := time.Now()
		task.Stop()

		require.Len(t, deadlines, 1)
		assert.True(t, (<-deadlines).Equal(now.Add(5*time.Second)))
	})
}

func TestStop_ParentCancel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		task := Every(ctx, "parent", time.Minute, 0, func(ctx context.Context) error { return nil }, nil)
		cancel()
		synctest.Wait()

		select {
		case <-task.Done():
		default:
			t.Fatal("task should exit with its parent context")
		}
		task.Stop()
	})
}

func TestStop_NilTask(t *testing.T) {
	var task *Task
	task.Stop()
}

func TestCancel_FromInsideTick(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var task *Task
		started := make(chan struct{})
		var n atomic.Int32
		task = Every(context.Background(), "self", time.Minute, 0, func(ctx context.Context) error {
			<-started
			n.Add(1)
			task.Cancel()
			return ctx.Err()
		}, nil)
		close(started)

		time.Sleep(5 * time.Minute)
		synctest.Wait()
		assert.Equal(t, int32(1), n.Load())
		task.Stop()
	})
}
